// Package health tracks per-provider health for fallback ranking. It is
// deliberately independent of the circuit breaker: the breaker decides
// whether calls are attempted at all, health decides which provider the
// orchestrator tries first.
package health

import (
	"sort"
	"sync"
	"time"

	"github.com/pelorus-ai/pelorus/internal/registry"
)

const (
	// unhealthyAfter marks a provider unhealthy once this many consecutive
	// failures accumulate. A single success restores health immediately,
	// favoring availability as soon as a provider recovers.
	unhealthyAfter = 3

	// retryCooloff is how long an unhealthy provider is excluded from
	// candidate ranking before it is given another chance.
	retryCooloff = 5 * time.Minute

	// ewmaAlpha smooths the average response time.
	ewmaAlpha = 0.3

	// seedResponseTime is the optimistic starting latency estimate before
	// the first sample arrives.
	seedResponseTime = time.Second
)

// Health is a snapshot of one provider's health.
type Health struct {
	IsHealthy            bool          `json:"is_healthy"`
	ConsecutiveFailures  int           `json:"consecutive_failures"`
	ConsecutiveSuccesses int           `json:"consecutive_successes"`
	LastSuccess          time.Time     `json:"last_success,omitempty"`
	LastFailure          time.Time     `json:"last_failure,omitempty"`
	AvgResponseTime      time.Duration `json:"avg_response_time"`
}

// Tracker accumulates health for a single provider. Safe for concurrent use.
type Tracker struct {
	mu sync.Mutex
	h  Health
}

// NewTracker starts healthy with the seed latency estimate.
func NewTracker() *Tracker {
	return &Tracker{h: Health{IsHealthy: true, AvgResponseTime: seedResponseTime}}
}

// RecordSuccess marks the provider healthy, resets the failure streak, and
// folds the observed latency into the moving average.
func (t *Tracker) RecordSuccess(responseTime time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.h.IsHealthy = true
	t.h.LastSuccess = time.Now()
	t.h.ConsecutiveFailures = 0
	t.h.ConsecutiveSuccesses++
	t.h.AvgResponseTime = time.Duration(
		ewmaAlpha*float64(responseTime) + (1-ewmaAlpha)*float64(t.h.AvgResponseTime))
}

// RecordFailure extends the failure streak and marks the provider unhealthy
// once it reaches the threshold.
func (t *Tracker) RecordFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.h.LastFailure = time.Now()
	t.h.ConsecutiveSuccesses = 0
	t.h.ConsecutiveFailures++
	if t.h.ConsecutiveFailures >= unhealthyAfter {
		t.h.IsHealthy = false
	}
}

// Snapshot returns a copy of the current health.
func (t *Tracker) Snapshot() Health {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.h
}

// ShouldRetry reports whether the provider is worth attempting: healthy
// providers always are, unhealthy ones again once the cool-off has passed
// since their last failure.
func (t *Tracker) ShouldRetry() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.h.IsHealthy {
		return true
	}
	if t.h.LastFailure.IsZero() {
		return true
	}
	return time.Since(t.h.LastFailure) > retryCooloff
}

// Set holds one tracker per provider.
type Set struct {
	trackers registry.Registry[*Tracker]
}

// NewSet builds an empty tracker set.
func NewSet() *Set {
	return &Set{trackers: registry.New[*Tracker]()}
}

// Register adds a tracker for name if one does not exist yet.
func (s *Set) Register(name string) *Tracker {
	t, _ := s.trackers.GetOrCompute(name, NewTracker)
	return t
}

// Get returns the tracker for name.
func (s *Set) Get(name string) (*Tracker, bool) {
	return s.trackers.Get(name)
}

// Snapshot returns the health of every tracked provider.
func (s *Set) Snapshot() map[string]Health {
	out := make(map[string]Health, s.trackers.Len())
	s.trackers.ForEach(func(name string, t *Tracker) {
		out[name] = t.Snapshot()
	})
	return out
}

// Rank orders providers for fallback: providers in their cool-off are
// excluded entirely, healthy providers come before unhealthy ones, and ties
// break on ascending average response time, then name for determinism.
func (s *Set) Rank() []string {
	type candidate struct {
		name string
		h    Health
	}
	var cands []candidate
	s.trackers.ForEach(func(name string, t *Tracker) {
		if !t.ShouldRetry() {
			return
		}
		cands = append(cands, candidate{name: name, h: t.Snapshot()})
	})

	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.h.IsHealthy != b.h.IsHealthy {
			return a.h.IsHealthy
		}
		if a.h.AvgResponseTime != b.h.AvgResponseTime {
			return a.h.AvgResponseTime < b.h.AvgResponseTime
		}
		return a.name < b.name
	})

	names := make([]string, len(cands))
	for i, c := range cands {
		names[i] = c.name
	}
	return names
}
