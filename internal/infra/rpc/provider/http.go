package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/vietddude/dispatch/internal/core/domain"
)

// ChatProvider implements Provider for a chat-completion API over HTTP.
type ChatProvider struct {
	*BaseProvider

	endpoint   string
	apiKey     string
	template   Template
	httpClient *http.Client
	limiter    *rate.Limiter // nil = unlimited
}

// NewChatProvider creates a new HTTP chat provider for an endpoint.
func NewChatProvider(ep domain.Endpoint, tmpl Template, timeout time.Duration) *ChatProvider {
	p := &ChatProvider{
		BaseProvider: NewBaseProvider(ep.Name, ep.Weight),
		endpoint:     ep.URL,
		apiKey:       ep.APIKey,
		template:     tmpl,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 32,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	if ep.QPS > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(ep.QPS), 1)
	}
	return p
}

// Complete sends input through the template and returns the raw response.
//
// Errors:
//   - *TransportError when no response was received
//   - a plain error when the request could not be built or the body could
//     not be read
//
// Every received response is returned, whatever its status.
func (p *ChatProvider) Complete(ctx context.Context, input string) (*Response, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	payload, err := p.template.Build(input)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.RecordFailure()
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	latency := time.Since(start)
	if err != nil {
		// A response arrived, so this is not retried
		p.RecordFailure()
		return nil, fmt.Errorf("read response: %w", err)
	}

	// Rate limit detection; some upstreams throttle with 403 or 400 and say so in the body.
	rateLimited := resp.StatusCode == http.StatusTooManyRequests ||
		(resp.StatusCode >= http.StatusBadRequest && DetectThrottlePattern(string(body)))

	if resp.StatusCode >= http.StatusBadRequest {
		p.RecordFailure()
	} else {
		p.RecordSuccess(latency)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		Body:        body,
		Latency:     latency,
		RateLimited: rateLimited,
	}, nil
}

// Close cleans up resources.
func (p *ChatProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
