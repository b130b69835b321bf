package provider

import (
	"sync"
	"time"
)

// BaseProvider implements common provider functionality.
// It handles health tracking and the static selection weight.
type BaseProvider struct {
	Name   string
	Weight int

	mu           sync.RWMutex
	health       HealthStatus
	totalLatency time.Duration
	successCount int
}

// NewBaseProvider creates a new BaseProvider.
func NewBaseProvider(name string, weight int) *BaseProvider {
	return &BaseProvider{
		Name:   name,
		Weight: weight,
		health: HealthStatus{
			Name:   name,
			Weight: weight,
		},
	}
}

// GetName returns the provider's name.
func (p *BaseProvider) GetName() string {
	return p.Name
}

// GetWeight returns the provider's selection weight.
func (p *BaseProvider) GetWeight() int {
	return p.Weight
}

// GetHealth returns the provider's health status.
func (p *BaseProvider) GetHealth() HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.health
}

func (p *BaseProvider) RecordSuccess(latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.successCount++
	p.health.Requests++
	p.totalLatency += latency
	p.health.LastSuccessAt = time.Now()

	p.health.ErrorRate = float64(p.health.Failures) / float64(p.health.Requests)
	p.health.Latency = p.totalLatency / time.Duration(p.successCount)
}

func (p *BaseProvider) RecordFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.health.Failures++
	p.health.Requests++
	p.health.LastFailureAt = time.Now()

	p.health.ErrorRate = float64(p.health.Failures) / float64(p.health.Requests)
}
