package routing

import (
	"errors"
	"math"
	"time"

	"github.com/vietddude/dispatch/internal/infra/rpc/provider"
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides sensible defaults. With InitialDelay 1s and a
// multiple of 2 the n-th retry waits 2^n seconds.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    1 * time.Second,
	MaxDelay:        5 * time.Minute,
	BackoffMultiple: 2.0,
}

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionFatal
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	default:
		return "fatal"
	}
}

// ClassifyError determines the action for a failed upstream call. Only a
// transport failure, where no response arrived, is retried.
func ClassifyError(err error) ErrorAction {
	var te *provider.TransportError
	if errors.As(err, &te) {
		return ActionRetry
	}

	// Body read failures and request construction errors
	return ActionFatal
}

// Backoff returns the delay before retry number attempt (1-based), i.e.
// InitialDelay * BackoffMultiple^attempt, capped at MaxDelay.
func Backoff(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.BackoffMultiple, float64(attempt))
	if config.MaxDelay > 0 && delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	return time.Duration(delay)
}
