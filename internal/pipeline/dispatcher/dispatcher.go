// Package dispatcher issues tasks against the upstream endpoints, retries
// transient failures and records every terminal outcome exactly once.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/vietddude/dispatch/internal/core/domain"
	"github.com/vietddude/dispatch/internal/infra/rpc/provider"
	"github.com/vietddude/dispatch/internal/infra/rpc/routing"
	"github.com/vietddude/dispatch/internal/infra/sink"
	"github.com/vietddude/dispatch/internal/pipeline/metrics"
	"github.com/vietddude/dispatch/internal/pipeline/status"
)

// DefaultMaxInFlight bounds concurrent upstream calls when unset.
const DefaultMaxInFlight = 64

// Picker chooses the endpoint for one attempt.
type Picker interface {
	Select() provider.Provider
}

// Config holds dispatcher dependencies.
type Config struct {
	Picker      Picker
	Sink        sink.Sink
	Tracker     *status.Tracker
	Retry       routing.RetryConfig
	MaxInFlight int64
}

// SleepFunc waits out a retry backoff or returns early when ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSleep replaces the backoff sleep, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(d *Dispatcher) {
		d.sleep = fn
	}
}

// Dispatcher consumes tasks from the ingestion channel and its own retry queue.
type Dispatcher struct {
	cfg     Config
	sem     *semaphore.Weighted
	retries chan *domain.Task
	sleep   SleepFunc
	pending sync.WaitGroup
	running atomic.Bool
	log     *slog.Logger
}

// New creates a dispatcher.
func New(cfg Config, opts ...Option) (*Dispatcher, error) {
	if cfg.Picker == nil {
		return nil, domain.ErrNoEndpoints
	}
	if cfg.Sink == nil || cfg.Tracker == nil {
		return nil, errors.New("dispatcher requires a sink and a tracker")
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	if cfg.Retry.InitialDelay <= 0 {
		cfg.Retry = routing.DefaultRetryConfig
	}

	d := &Dispatcher{
		cfg:     cfg,
		sem:     semaphore.NewWeighted(cfg.MaxInFlight),
		retries: make(chan *domain.Task),
		sleep:   sleepCtx,
		log:     slog.With("component", "dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run dispatches every task received on in and returns once in is closed and
// every received task has reached a terminal outcome. It keeps draining in
// after ctx is cancelled; such tasks are recorded as failures without a call.
func (d *Dispatcher) Run(ctx context.Context, in <-chan *domain.Task) error {
	if !d.running.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already running")
	}
	defer d.running.Store(false)

	drained := make(chan struct{})
	for {
		select {
		case task, ok := <-in:
			if !ok {
				in = nil
				go func() {
					d.pending.Wait()
					close(drained)
				}()
				continue
			}
			d.pending.Add(1)
			d.launch(ctx, task)

		case task := <-d.retries:
			d.launch(ctx, task)

		case <-drained:
			d.log.Info("All tasks settled")
			return nil
		}
	}
}

// launch waits for an in-flight slot and starts one attempt.
func (d *Dispatcher) launch(ctx context.Context, task *domain.Task) {
	if err := ctx.Err(); err != nil {
		d.cfg.Tracker.OtherError()
		d.fail(ctx, task, err.Error())
		return
	}
	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.cfg.Tracker.OtherError()
		d.fail(ctx, task, err.Error())
		return
	}
	metrics.RequestsInFlight.Inc()
	go d.attempt(ctx, task)
}

func (d *Dispatcher) attempt(ctx context.Context, task *domain.Task) {
	held := true
	release := func() {
		if held {
			held = false
			d.sem.Release(1)
			metrics.RequestsInFlight.Dec()
		}
	}
	defer release()

	settled := false
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Panic while dispatching task",
				"task_id", task.ID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			if !settled {
				d.cfg.Tracker.OtherError()
				d.fail(ctx, task, fmt.Sprintf("panic: %v", r))
			}
		}
	}()

	p := d.cfg.Picker.Select()
	name := p.GetName()

	d.log.Debug("Sent",
		"task_id", task.ID,
		"endpoint", name,
		"attempt", task.Attempt()+1,
	)

	start := time.Now()
	resp, err := p.Complete(ctx, task.Input)
	latency := time.Since(start)
	metrics.RequestLatency.WithLabelValues(name).Observe(latency.Seconds())
	release()

	if err != nil {
		delay, retry := d.onCallError(ctx, task, name, err)
		settled = true
		if retry {
			d.scheduleRetry(ctx, task, delay)
		} else {
			d.fail(ctx, task, err.Error())
		}
		return
	}

	// A rate-limit status is counted but the body still decides the outcome
	if resp.RateLimited {
		d.cfg.Tracker.RateLimited()
	}

	verdict, errValue := ClassifyResponse(resp)
	metrics.RequestsTotal.WithLabelValues(name, verdict.String()).Inc()

	d.log.Debug("Response",
		"task_id", task.ID,
		"endpoint", name,
		"status", resp.StatusCode,
		"latency", latency,
		"verdict", verdict,
	)

	switch verdict {
	case VerdictSuccess:
		settled = true
		d.succeed(ctx, task, resp.Body)
	case VerdictAPIError:
		d.cfg.Tracker.APIError()
		d.log.Warn("Upstream reported errors", "task_id", task.ID, "endpoint", name, "status", resp.StatusCode)
		settled = true
		d.fail(ctx, task, errValue)
	default:
		d.cfg.Tracker.OtherError()
		d.log.Error("Response is not JSON", "task_id", task.ID, "endpoint", name, "status", resp.StatusCode)
		settled = true
		d.fail(ctx, task, errValue)
	}
}

// onCallError spends one attempt on a failed call and reports whether the
// task should be retried after the returned delay. Only transport failures
// are retried, and only while the budget lasts.
func (d *Dispatcher) onCallError(ctx context.Context, task *domain.Task, endpoint string, err error) (time.Duration, bool) {
	action := routing.ClassifyError(err)
	metrics.RequestsTotal.WithLabelValues(endpoint, action.String()).Inc()

	if action == routing.ActionFatal {
		d.cfg.Tracker.OtherError()
		d.log.Error("Request failed", "task_id", task.ID, "endpoint", endpoint, "error", err)
		return 0, false
	}

	task.AttemptsRemaining--
	if task.AttemptsRemaining > 0 && ctx.Err() == nil {
		delay := routing.Backoff(task.Attempt(), d.cfg.Retry)
		d.log.Warn("Request failed, retrying",
			"task_id", task.ID,
			"endpoint", endpoint,
			"attempts_remaining", task.AttemptsRemaining,
			"backoff", delay,
			"error", err,
		)
		return delay, true
	}

	d.cfg.Tracker.OtherError()
	d.log.Error("Request failed, giving up", "task_id", task.ID, "endpoint", endpoint, "error", err)
	return 0, false
}

// scheduleRetry hands the task back to the run loop after delay.
func (d *Dispatcher) scheduleRetry(ctx context.Context, task *domain.Task, delay time.Duration) {
	metrics.RetriesScheduled.Inc()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("Panic while settling task", "task_id", task.ID, "panic", r)
			}
		}()
		if err := d.sleep(ctx, delay); err != nil {
			d.cfg.Tracker.OtherError()
			d.fail(ctx, task, err.Error())
			return
		}
		// Run keeps receiving until this task settles
		d.retries <- task
	}()
}

// succeed and fail settle the task even if recording panics.
func (d *Dispatcher) succeed(ctx context.Context, task *domain.Task, body []byte) {
	defer d.settle(true)
	task.Results = append(task.Results, json.RawMessage(body))
	d.record(ctx, task, domain.StreamResults, json.RawMessage(body))
}

func (d *Dispatcher) fail(ctx context.Context, task *domain.Task, errValue any) {
	defer d.settle(false)
	d.record(ctx, task, domain.StreamErrors, domain.ErrorRecord{Input: task.Input, Error: errValue})
}

func (d *Dispatcher) settle(succeeded bool) {
	d.cfg.Tracker.TaskFinished(succeeded)
	d.pending.Done()
}

// record appends one outcome. Sink failures are logged and counted only; the
// task outcome stands.
func (d *Dispatcher) record(ctx context.Context, task *domain.Task, stream domain.Stream, doc any) {
	rec, err := sink.Encode(stream, task.ID, doc)
	if err == nil {
		err = d.cfg.Sink.Append(context.WithoutCancel(ctx), rec)
	}
	if err != nil {
		metrics.SinkErrors.WithLabelValues(string(stream)).Inc()
		d.log.Error("Failed to record outcome",
			"task_id", task.ID,
			"stream", stream,
			"error", err,
		)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
