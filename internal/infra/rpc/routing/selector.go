package routing

import (
	"math/rand/v2"
	"sync"

	"github.com/vietddude/dispatch/internal/core/domain"
	"github.com/vietddude/dispatch/internal/infra/rpc/provider"
)

// Selector picks a provider per request, proportionally to its static weight.
type Selector struct {
	providers   []provider.Provider
	totalWeight int

	mu  sync.Mutex
	rng *rand.Rand // nil = process-wide source
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithRand makes selection draw from r instead of the global source.
func WithRand(r *rand.Rand) SelectorOption {
	return func(s *Selector) {
		s.rng = r
	}
}

// NewSelector creates a weighted selector. Weights must be non-negative; a
// zero weight means the provider is only ever returned as the fallback.
func NewSelector(providers []provider.Provider, opts ...SelectorOption) (*Selector, error) {
	if len(providers) == 0 {
		return nil, domain.ErrNoEndpoints
	}

	s := &Selector{providers: providers}
	for _, p := range providers {
		if p.GetWeight() > 0 {
			s.totalWeight += p.GetWeight()
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Select draws r in [0, totalWeight) and walks the list subtracting weights
// until r falls inside one. Falls back to the first provider.
func (s *Selector) Select() provider.Provider {
	if s.totalWeight <= 0 {
		return s.providers[0]
	}

	r := s.draw(s.totalWeight)
	for _, p := range s.providers {
		w := p.GetWeight()
		if w <= 0 {
			continue
		}
		if r < w {
			return p
		}
		r -= w
	}

	return s.providers[0] // Fallback
}

func (s *Selector) draw(n int) int {
	if s.rng == nil {
		return rand.IntN(n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}
