// Package provider implements the upstream chat endpoints.
//
// This package contains:
//   - Provider interface: core abstraction for an upstream endpoint
//   - ChatProvider: chat-completion JSON over HTTP implementation
//   - Template: the fixed request payload shape
//   - TransportError: the typed failure used for retry decisions
package provider

import (
	"context"
	"fmt"
	"time"
)

// Provider defines the core interface for an upstream endpoint.
type Provider interface {
	// GetName returns the endpoint identifier
	GetName() string

	// GetWeight returns the relative selection weight
	GetWeight() int

	// GetHealth returns current health metrics
	GetHealth() HealthStatus

	// Complete sends one input through the request template
	Complete(ctx context.Context, input string) (*Response, error)

	// Close cleans up resources
	Close() error
}

// Response is a received upstream response. Its outcome is decided by the
// body, whatever the status.
type Response struct {
	StatusCode int
	Body       []byte
	Latency    time.Duration
	// RateLimited is set for a 429, or a 4xx whose body names a rate limit.
	RateLimited bool
}

// HealthStatus represents the observed health of a provider.
type HealthStatus struct {
	Name          string        `json:"name"`
	Weight        int           `json:"weight"`
	Requests      int           `json:"requests"`
	Failures      int           `json:"failures"`
	Latency       time.Duration `json:"avg_latency"`
	ErrorRate     float64       `json:"error_rate"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at"`
}

// TransportError means no response was received (connect failure, timeout).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
