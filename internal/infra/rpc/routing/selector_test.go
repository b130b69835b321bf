package routing

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/vietddude/dispatch/internal/core/domain"
	"github.com/vietddude/dispatch/internal/infra/rpc/provider"
)

// mockProvider implements provider.Provider for selection tests
type mockProvider struct {
	name   string
	weight int
}

func (m *mockProvider) GetName() string { return m.name }
func (m *mockProvider) GetWeight() int  { return m.weight }
func (m *mockProvider) GetHealth() provider.HealthStatus {
	return provider.HealthStatus{Name: m.name, Weight: m.weight}
}
func (m *mockProvider) Complete(ctx context.Context, input string) (*provider.Response, error) {
	return &provider.Response{StatusCode: 200, Body: []byte(`{}`)}, nil
}
func (m *mockProvider) Close() error { return nil }

func TestSelector_WeightedDistribution(t *testing.T) {
	a := &mockProvider{name: "a", weight: 1}
	b := &mockProvider{name: "b", weight: 3}

	s, err := NewSelector([]provider.Provider{a, b}, WithRand(rand.New(rand.NewPCG(1, 2))))
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}

	const draws = 100000
	counts := map[string]int{}
	for i := 0; i < draws; i++ {
		counts[s.Select().GetName()]++
	}

	shareA := float64(counts["a"]) / draws
	if shareA < 0.23 || shareA > 0.27 {
		t.Errorf("expected ~25%% for a, got %.3f (%v)", shareA, counts)
	}
}

func TestSelector_ZeroWeight(t *testing.T) {
	fallback := &mockProvider{name: "fallback", weight: 0}
	main := &mockProvider{name: "main", weight: 5}

	s, err := NewSelector([]provider.Provider{fallback, main})
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	for i := 0; i < 1000; i++ {
		if got := s.Select().GetName(); got != "main" {
			t.Fatalf("zero-weight provider selected: %s", got)
		}
	}

	// All weights zero: first provider is the fallback
	s, _ = NewSelector([]provider.Provider{
		&mockProvider{name: "first"},
		&mockProvider{name: "second"},
	})
	if got := s.Select().GetName(); got != "first" {
		t.Errorf("expected fallback to first, got %s", got)
	}
}

func TestSelector_Empty(t *testing.T) {
	if _, err := NewSelector(nil); !errors.Is(err, domain.ErrNoEndpoints) {
		t.Errorf("expected ErrNoEndpoints, got %v", err)
	}
}
