package pelorus

import (
	"github.com/pelorus-ai/pelorus/batch"
	"github.com/pelorus-ai/pelorus/breaker"
	"github.com/pelorus-ai/pelorus/health"
)

// ProviderStatus combines everything the gateway knows about one provider.
type ProviderStatus struct {
	Health  health.Health   `json:"health"`
	State   breaker.State   `json:"circuit"`
	Metrics breaker.Metrics `json:"metrics"`
}

// Stats is a point-in-time view of the whole gateway.
type Stats struct {
	Providers map[string]ProviderStatus `json:"providers"`
	Batcher   batch.Stats               `json:"batcher"`
}

// Stats snapshots every provider's health, circuit state, and counters
// together with the batcher's queue depth.
func (g *Gateway) Stats() Stats {
	states := g.breakers.AllStates()
	metrics := g.breakers.AllMetrics()

	providers := make(map[string]ProviderStatus, len(states))
	for name, h := range g.health.Snapshot() {
		providers[name] = ProviderStatus{
			Health:  h,
			State:   states[name],
			Metrics: metrics[name],
		}
	}
	return Stats{Providers: providers, Batcher: g.batcher.Stats()}
}

// ProviderNames lists registered providers in no particular order.
func (g *Gateway) ProviderNames() []string {
	return g.breakers.Names()
}

// RankedProviders returns the current fallback order: healthy and fast
// first, cooled-off providers excluded.
func (g *Gateway) RankedProviders() []string {
	return g.health.Rank()
}

// AllStates snapshots every provider's circuit state.
func (g *Gateway) AllStates() map[string]breaker.State {
	return g.breakers.AllStates()
}

// AllMetrics snapshots every provider's breaker counters.
func (g *Gateway) AllMetrics() map[string]breaker.Metrics {
	return g.breakers.AllMetrics()
}

// ProviderHealth returns the health snapshot for one provider.
func (g *Gateway) ProviderHealth(name string) (health.Health, bool) {
	t, ok := g.health.Get(name)
	if !ok {
		return health.Health{}, false
	}
	return t.Snapshot(), true
}

// BreakerState returns the circuit state for one provider.
func (g *Gateway) BreakerState(name string) (breaker.State, bool) {
	b, ok := g.breakers.Get(name)
	if !ok {
		return breaker.State{}, false
	}
	return b.State(), true
}

// ForceOpen opens the named provider's circuit. Manual intervention for
// taking a misbehaving provider out of rotation.
func (g *Gateway) ForceOpen(name string) bool {
	b, ok := g.breakers.Get(name)
	if ok {
		b.ForceOpen()
	}
	return ok
}

// ForceClose closes the named provider's circuit.
func (g *Gateway) ForceClose(name string) bool {
	b, ok := g.breakers.Get(name)
	if ok {
		b.ForceClose()
	}
	return ok
}
