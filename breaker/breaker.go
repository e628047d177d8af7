package breaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pelorus-ai/pelorus/metrics"
	"github.com/pelorus-ai/pelorus/pkg/slogx"
	"golang.org/x/sync/semaphore"
)

// outcomeWindowCap bounds the outcome log; when exceeded, the oldest entries
// are trimmed in one pass down to outcomeWindowKeep.
const (
	outcomeWindowCap  = 1000
	outcomeWindowKeep = 800
)

// ewmaAlpha is the smoothing factor for the average response time.
const ewmaAlpha = 0.1

type outcome struct {
	at      time.Time
	dur     time.Duration
	success bool
	errKind string
}

// Breaker is a circuit breaker for a single provider. All state transitions
// are serialized by one lock scoped to this breaker, so breakers for
// different providers never contend. The half-open probe count is a separate
// counting permit; it is never acquired while the state lock is held.
type Breaker struct {
	name string
	cfg  Config
	log  *slog.Logger

	probes *semaphore.Weighted

	mu                   sync.Mutex
	state                State
	outcomes             []outcome
	stats                Metrics
	consecutiveFailures  int
	consecutiveSuccesses int
}

// New builds a breaker for the named provider. The configuration is validated
// once and then immutable.
func New(name string, cfg Config) (*Breaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Breaker{
		name:   name,
		cfg:    cfg,
		log:    slog.Default().With(slogx.Breaker(name)),
		probes: semaphore.NewWeighted(cfg.HalfOpenMaxCalls),
		state:  State{Kind: Closed},
	}, nil
}

// Name returns the provider name this breaker guards.
func (b *Breaker) Name() string { return b.name }

// CanExecute reports whether a call would currently be admitted.
//
// While closed it is always true. While open it becomes true once the
// recovery timeout has elapsed, in which case the state advances to half-open
// as a side effect. While half-open it is true only when a probe permit is
// available; the permit is released again immediately, Execute re-acquires it
// for the duration of the actual call.
func (b *Breaker) CanExecute() bool {
	release, ok := b.admit()
	if release != nil {
		release()
	}
	return ok
}

// admit decides whether a call may proceed. When the breaker is half-open
// and a probe permit was acquired, release returns it; release runs on every
// exit path of the protected call.
func (b *Breaker) admit() (release func(), ok bool) {
	b.mu.Lock()
	switch b.state.Kind {
	case Closed:
		b.mu.Unlock()
		return nil, true
	case Open:
		if time.Since(b.state.OpenedAt) < b.cfg.Timeout {
			b.mu.Unlock()
			return nil, false
		}
		b.state = State{Kind: HalfOpen}
		b.stats.HalfOpenTransitions++
		b.mu.Unlock()
		metrics.SetCircuitState(b.name, metrics.CircuitHalfOpen)
		b.log.Info("circuit breaker transitioned to half-open")
	default:
		b.mu.Unlock()
	}

	// Half-open: admission is bounded by the probe permits.
	if !b.probes.TryAcquire(1) {
		return nil, false
	}
	b.mu.Lock()
	if b.state.Kind == HalfOpen {
		b.state.Attempts++
	}
	b.mu.Unlock()
	return func() { b.probes.Release(1) }, true
}

// Execute runs op under the breaker. It rejects immediately with *OpenError
// when the breaker does not admit the call, bounds op by the configured
// request timeout, and records the outcome before returning. Outcome
// recording happens here, on the dispatch path, so a caller abandoning the
// result never skews the statistics.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	release, ok := b.admit()
	if !ok {
		b.blocked()
		return &OpenError{Name: b.name}
	}
	if release != nil {
		defer release()
	}

	start := time.Now()
	err := b.run(ctx, op)
	dur := time.Since(start)

	switch {
	case err == nil:
		b.RecordSuccess(dur)
	case isTimeout(err):
		b.RecordFailure(dur, "timeout")
	default:
		b.RecordFailure(dur, err.Error())
	}
	return err
}

// Do runs op under b and returns its typed result.
func Do[T any](ctx context.Context, b *Breaker, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := b.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// run executes op with the request timeout. The operation runs in its own
// goroutine so that an operation which ignores context cancellation still
// yields a timeout outcome on time.
func (b *Breaker) run(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- op(ctx) }()

	select {
	case err := <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			return &TimeoutError{Name: b.name, After: b.cfg.RequestTimeout}
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &TimeoutError{Name: b.name, After: b.cfg.RequestTimeout}
		}
		return ctx.Err()
	}
}

func isTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// RecordSuccess appends a successful outcome, resets the consecutive failure
// count, and closes a half-open circuit once enough consecutive successes
// have accumulated.
func (b *Breaker) RecordSuccess(dur time.Duration) {
	b.mu.Lock()
	b.appendOutcome(outcome{at: time.Now(), dur: dur, success: true})
	b.consecutiveFailures = 0
	b.consecutiveSuccesses++

	closed := false
	if b.state.Kind == HalfOpen && b.consecutiveSuccesses >= b.cfg.SuccessThreshold {
		b.state = State{Kind: Closed}
		b.consecutiveSuccesses = 0
		b.stats.CircuitCloses++
		closed = true
	}

	b.stats.TotalRequests++
	b.stats.SuccessfulRequests++
	b.stats.CurrentFailureRate = b.failureRateLocked()
	b.smoothResponseTime(dur)
	b.mu.Unlock()

	metrics.ObserveRequest(b.name, "success", dur)
	if closed {
		metrics.SetCircuitState(b.name, metrics.CircuitClosed)
		b.log.Info("circuit breaker closed after successful recovery")
	}
}

// RecordFailure appends a failed outcome, resets the consecutive success
// count, and opens the circuit when either detector trips: the consecutive
// failure threshold, or the windowed failure rate once minimum throughput is
// reached.
func (b *Breaker) RecordFailure(dur time.Duration, errKind string) {
	b.mu.Lock()
	b.appendOutcome(outcome{at: time.Now(), dur: dur, success: false, errKind: errKind})
	b.consecutiveSuccesses = 0
	b.consecutiveFailures++
	failures := b.consecutiveFailures

	opened := false
	if b.shouldOpenLocked() && b.state.Kind != Open {
		b.state = State{Kind: Open, OpenedAt: time.Now()}
		b.stats.CircuitOpens++
		opened = true
	}

	b.stats.TotalRequests++
	b.stats.FailedRequests++
	b.stats.CurrentFailureRate = b.failureRateLocked()
	b.smoothResponseTime(dur)
	b.mu.Unlock()

	metrics.ObserveRequest(b.name, "failure", dur)
	if opened {
		metrics.SetCircuitState(b.name, metrics.CircuitOpen)
		b.log.Warn("circuit breaker opened",
			slog.Int("consecutive_failures", failures),
			slog.String("error_kind", errKind))
	}
}

// shouldOpenLocked evaluates both detectors. The consecutive counter is the
// cheap first check; the windowed rate only applies once the window holds at
// least MinimumThroughput outcomes. Successes reset the consecutive counters
// but never clear the window, so the two detectors stay independent.
func (b *Breaker) shouldOpenLocked() bool {
	if b.consecutiveFailures >= b.cfg.FailureThreshold {
		return true
	}

	windowStart := time.Now().Add(-b.cfg.FailureRateWindow)
	var total, failed int
	for _, o := range b.outcomes {
		if o.at.Before(windowStart) {
			continue
		}
		total++
		if !o.success {
			failed++
		}
	}
	if total < b.cfg.MinimumThroughput {
		return false
	}
	return float64(failed)/float64(total) >= b.cfg.FailureRateThreshold
}

// appendOutcome adds an entry and prunes the window: entries older than twice
// the failure rate window are dropped, and if the log still exceeds the cap
// only the newest entries are kept.
func (b *Breaker) appendOutcome(o outcome) {
	b.outcomes = append(b.outcomes, o)

	cutoff := time.Now().Add(-2 * b.cfg.FailureRateWindow)
	firstLive := 0
	for firstLive < len(b.outcomes) && b.outcomes[firstLive].at.Before(cutoff) {
		firstLive++
	}
	if firstLive > 0 {
		b.outcomes = append(b.outcomes[:0], b.outcomes[firstLive:]...)
	}

	if len(b.outcomes) > outcomeWindowCap {
		b.outcomes = append(b.outcomes[:0], b.outcomes[len(b.outcomes)-outcomeWindowKeep:]...)
	}
}

func (b *Breaker) smoothResponseTime(dur time.Duration) {
	if b.stats.AvgResponseTime == 0 {
		b.stats.AvgResponseTime = dur
		return
	}
	b.stats.AvgResponseTime = time.Duration(
		ewmaAlpha*float64(dur) + (1-ewmaAlpha)*float64(b.stats.AvgResponseTime))
}

func (b *Breaker) failureRateLocked() float64 {
	windowStart := time.Now().Add(-b.cfg.FailureRateWindow)
	var total, failed int
	for _, o := range b.outcomes {
		if o.at.Before(windowStart) {
			continue
		}
		total++
		if !o.success {
			failed++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(failed) / float64(total)
}

func (b *Breaker) blocked() {
	b.mu.Lock()
	b.stats.RequestsBlocked++
	b.mu.Unlock()
	metrics.IncBlocked(b.name)
}

// State returns a snapshot of the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Metrics returns a snapshot of the breaker's counters.
func (b *Breaker) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// CurrentFailureRate returns the failure ratio over the configured window,
// or 0 when the window is empty.
func (b *Breaker) CurrentFailureRate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureRateLocked()
}

// ForceOpen opens the circuit regardless of outcomes. Manual intervention.
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	b.state = State{Kind: Open, OpenedAt: time.Now()}
	b.stats.CircuitOpens++
	b.mu.Unlock()
	metrics.SetCircuitState(b.name, metrics.CircuitOpen)
	b.log.Warn("circuit breaker manually forced open")
}

// ForceClose closes the circuit and resets the consecutive counters.
func (b *Breaker) ForceClose() {
	b.mu.Lock()
	b.state = State{Kind: Closed}
	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
	b.stats.CircuitCloses++
	b.mu.Unlock()
	metrics.SetCircuitState(b.name, metrics.CircuitClosed)
	b.log.Info("circuit breaker manually forced closed")
}

// Reset clears the outcome window, counters, and metrics. The state is left
// untouched; combine with ForceClose for a full reset.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.outcomes = nil
	b.stats = Metrics{}
	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
	b.mu.Unlock()
	b.log.Info("circuit breaker reset")
}
