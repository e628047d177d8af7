package breaker

import (
	"github.com/pelorus-ai/pelorus/internal/registry"
)

// Registry holds one breaker per provider. It is an explicit object rather
// than package-level state, so independent gateways (one per tenant, for
// example) can coexist in a single process.
type Registry struct {
	breakers registry.Registry[*Breaker]
}

// NewRegistry builds an empty breaker registry.
func NewRegistry() *Registry {
	return &Registry{breakers: registry.New[*Breaker]()}
}

// Register stores a breaker for name. Registering an existing name returns
// the existing breaker so accumulated history survives re-registration.
func (r *Registry) Register(name string, cfg Config) (*Breaker, error) {
	if existing, ok := r.breakers.Get(name); ok {
		return existing, nil
	}
	b, err := New(name, cfg)
	if err != nil {
		return nil, err
	}
	r.breakers.Set(name, b)
	return b, nil
}

// Get returns the breaker for name.
func (r *Registry) Get(name string) (*Breaker, bool) {
	return r.breakers.Get(name)
}

// Names lists all registered breaker names.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.breakers.Len())
	r.breakers.ForEach(func(name string, _ *Breaker) {
		names = append(names, name)
	})
	return names
}

// AllStates snapshots every breaker's state, keyed by provider name.
func (r *Registry) AllStates() map[string]State {
	states := make(map[string]State, r.breakers.Len())
	r.breakers.ForEach(func(name string, b *Breaker) {
		states[name] = b.State()
	})
	return states
}

// AllMetrics snapshots every breaker's counters, keyed by provider name.
func (r *Registry) AllMetrics() map[string]Metrics {
	all := make(map[string]Metrics, r.breakers.Len())
	r.breakers.ForEach(func(name string, b *Breaker) {
		all[name] = b.Metrics()
	})
	return all
}

// ForceOpenAll opens every registered breaker.
func (r *Registry) ForceOpenAll() {
	r.breakers.ForEach(func(_ string, b *Breaker) { b.ForceOpen() })
}

// ForceCloseAll closes every registered breaker.
func (r *Registry) ForceCloseAll() {
	r.breakers.ForEach(func(_ string, b *Breaker) { b.ForceClose() })
}

// ResetAll resets every registered breaker's window and counters.
func (r *Registry) ResetAll() {
	r.breakers.ForEach(func(_ string, b *Breaker) { b.Reset() })
}
