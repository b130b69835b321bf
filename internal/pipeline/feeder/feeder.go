// Package feeder turns a newline-delimited JSON source into tasks at a fixed rate.
package feeder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/vietddude/dispatch/internal/core/domain"
	"github.com/vietddude/dispatch/internal/pipeline/metrics"
	"github.com/vietddude/dispatch/internal/pipeline/status"
)

// maxLineSize bounds a single input document.
const maxLineSize = 16 * 1024 * 1024

// Config holds feeder settings.
type Config struct {
	RequestsPerSecond int
	MaxAttempts       int
	InputField        string
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Feeder reads lines, parses them into tasks and enqueues them.
type Feeder struct {
	cfg      Config
	tracker  *status.Tracker
	interval time.Duration
	sleep    SleepFunc
	nextID   uint64
	log      *slog.Logger
}

// Option configures a Feeder.
type Option func(*Feeder)

// WithSleep replaces the pacing sleep, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(f *Feeder) {
		f.sleep = fn
	}
}

// New creates a feeder. RequestsPerSecond must be positive.
func New(cfg Config, tracker *status.Tracker, opts ...Option) *Feeder {
	if cfg.InputField == "" {
		cfg.InputField = "input"
	}
	f := &Feeder{
		cfg:      cfg,
		tracker:  tracker,
		interval: Interval(cfg.RequestsPerSecond),
		sleep:    sleepCtx,
		log:      slog.With("component", "feeder"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Interval is the fixed pause after each enqueue for a target rate.
func Interval(requestsPerSecond int) time.Duration {
	if requestsPerSecond <= 0 {
		return time.Second
	}
	return time.Second / time.Duration(requestsPerSecond)
}

// ChannelCapacity sizes the ingestion channel to about two seconds of traffic.
func ChannelCapacity(requestsPerSecond int) int {
	return max(2*requestsPerSecond, 1)
}

// Run feeds every valid line of r into out and closes out when done. It
// returns the number of tasks enqueued. Malformed lines are logged and
// skipped; only read errors and cancellation end the run early. The caller
// must keep receiving from out until it is closed.
func (f *Feeder) Run(ctx context.Context, r io.Reader, out chan<- *domain.Task) (int, error) {
	defer close(out)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	fed := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		payload, input, err := ParseRecord(line, f.cfg.InputField)
		if err != nil {
			metrics.MalformedLines.Inc()
			f.log.Warn("Skipping malformed line", "line", lineNo, "error", err)
			continue
		}

		task := domain.NewTask(f.nextID, payload, input, f.cfg.MaxAttempts)
		f.nextID++

		// The consumer drains out until it is closed, even after cancellation,
		// so this send always completes and the task gets a terminal outcome.
		f.tracker.TaskStarted()
		out <- task
		fed++

		if err := f.sleep(ctx, f.interval); err != nil {
			return fed, err
		}
	}

	if err := scanner.Err(); err != nil {
		return fed, fmt.Errorf("read input line %d: %w", lineNo+1, err)
	}

	f.log.Info("Input exhausted", "lines", lineNo, "tasks", fed)
	return fed, nil
}

// ParseRecord decodes one line into a JSON object and extracts the string
// under field. Any failure wraps domain.ErrMalformedRecord.
func ParseRecord(line []byte, field string) (map[string]any, string, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, "", fmt.Errorf("%w: invalid JSON: %v", domain.ErrMalformedRecord, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, "", fmt.Errorf("%w: trailing data after JSON document", domain.ErrMalformedRecord)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, "", fmt.Errorf("%w: document is not a JSON object", domain.ErrMalformedRecord)
	}

	raw, ok := obj[field]
	if !ok {
		return nil, "", fmt.Errorf("%w: missing %q field", domain.ErrMalformedRecord, field)
	}
	input, ok := raw.(string)
	if !ok {
		return nil, "", fmt.Errorf("%w: %q field is %T, want string", domain.ErrMalformedRecord, field, raw)
	}

	return obj, input, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
