// Package status keeps the live task lifecycle counters of a dispatch run.
package status

import (
	"sync"
	"sync/atomic"

	"github.com/vietddude/dispatch/internal/core/domain"
	"github.com/vietddude/dispatch/internal/pipeline/metrics"
)

// Counter names used as the metrics label.
const (
	CounterStarted     = "started"
	CounterSucceeded   = "succeeded"
	CounterFailed      = "failed"
	CounterRateLimited = "rate_limited"
	CounterAPIErrors   = "api_errors"
	CounterOtherErrors = "other_errors"
)

// Tracker records task lifecycle counts. All methods are safe for concurrent use.
//
// InProgress counts tasks, not attempts: a task enters it when the feeder
// starts it and leaves it only at its terminal outcome, so a task waiting
// for a retry is still in progress.
//
// The lifecycle counters move together under mu so every snapshot satisfies
// Started == InProgress + Succeeded + Failed.
type Tracker struct {
	mu         sync.Mutex
	started    int64
	inProgress int64
	succeeded  int64
	failed     int64

	rateLimited atomic.Int64
	apiErrors   atomic.Int64
	otherErrors atomic.Int64
}

// NewTracker creates a zeroed tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// TaskStarted records a task handed to the pipeline.
func (t *Tracker) TaskStarted() {
	t.mu.Lock()
	t.started++
	t.inProgress++
	t.mu.Unlock()
	metrics.TaskEvents.WithLabelValues(CounterStarted).Inc()
	metrics.TasksInProgress.Inc()
}

// TaskFinished moves one task from in progress to its terminal counter.
func (t *Tracker) TaskFinished(succeeded bool) {
	t.mu.Lock()
	if succeeded {
		t.succeeded++
	} else {
		t.failed++
	}
	t.inProgress--
	t.mu.Unlock()

	if succeeded {
		metrics.TaskEvents.WithLabelValues(CounterSucceeded).Inc()
	} else {
		metrics.TaskEvents.WithLabelValues(CounterFailed).Inc()
	}
	metrics.TasksInProgress.Dec()
}

// RateLimited records an upstream rate-limit response.
func (t *Tracker) RateLimited() {
	t.rateLimited.Add(1)
	metrics.TaskEvents.WithLabelValues(CounterRateLimited).Inc()
}

// APIError records an upstream-reported error list.
func (t *Tracker) APIError() {
	t.apiErrors.Add(1)
	metrics.TaskEvents.WithLabelValues(CounterAPIErrors).Inc()
}

// OtherError records a transport or response-parsing failure.
func (t *Tracker) OtherError() {
	t.otherErrors.Add(1)
	metrics.TaskEvents.WithLabelValues(CounterOtherErrors).Inc()
}

// Snapshot returns the current counter values.
func (t *Tracker) Snapshot() domain.Counters {
	t.mu.Lock()
	c := domain.Counters{
		Started:    t.started,
		InProgress: t.inProgress,
		Succeeded:  t.succeeded,
		Failed:     t.failed,
	}
	t.mu.Unlock()

	c.RateLimited = t.rateLimited.Load()
	c.APIErrors = t.apiErrors.Load()
	c.OtherErrors = t.otherErrors.Load()
	return c
}
