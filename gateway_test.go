package pelorus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pelorus-ai/pelorus/batch"
	"github.com/pelorus-ai/pelorus/breaker"
	"github.com/pelorus-ai/pelorus/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider is a scriptable provider for gateway tests.
type stubProvider struct {
	name string
	fn   func(ctx context.Context, req *provider.Request) (*provider.Response, error)

	mu    sync.Mutex
	calls []*provider.Request
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	return s.fn(ctx, req)
}

func (s *stubProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{MaxTokens: 4096, ContextWindow: 128000}
}

func (s *stubProvider) SupportedModels() []string { return []string{"test-model"} }

func (s *stubProvider) RateLimits() provider.RateLimits {
	return provider.RateLimits{RequestsPerMinute: 60, TokensPerMinute: 10000}
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func succeeding(name, text string) *stubProvider {
	return &stubProvider{name: name, fn: func(_ context.Context, req *provider.Request) (*provider.Response, error) {
		return &provider.Response{
			ID:    "resp-" + name,
			Model: req.Model,
			Choices: []provider.Choice{
				{Message: provider.Assistant(text), FinishReason: provider.FinishStop},
			},
		}, nil
	}}
}

func failing(name string, err error) *stubProvider {
	return &stubProvider{name: name, fn: func(context.Context, *provider.Request) (*provider.Response, error) {
		return nil, err
	}}
}

func newTestGateway(t *testing.T, providers ...provider.Provider) *Gateway {
	t.Helper()

	batchCfg := batch.DefaultConfig()
	batchCfg.MaxWait = 10 * time.Millisecond

	g, err := New(
		WithBreakerConfig(breaker.Config{
			FailureThreshold:     3,
			SuccessThreshold:     2,
			Timeout:              time.Second,
			RequestTimeout:       time.Second,
			HalfOpenMaxCalls:     1,
			MinimumThroughput:    100,
			FailureRateWindow:    time.Minute,
			FailureRateThreshold: 0.5,
		}),
		WithBatchConfig(batchCfg),
	)
	require.NoError(t, err)
	t.Cleanup(g.Close)

	for _, p := range providers {
		require.NoError(t, g.RegisterProvider(p))
	}
	return g
}

func TestRegisterProviderDuplicate(t *testing.T) {
	g := newTestGateway(t, succeeding("alpha", "hi"))
	err := g.RegisterProvider(succeeding("alpha", "hi again"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestCompleteNoProviders(t *testing.T) {
	g := newTestGateway(t)
	_, err := g.Complete(context.Background(), provider.NewRequest("test-model", provider.User("hi")))
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestCompleteFallsBackOnFailure(t *testing.T) {
	boom := errors.New("upstream exploded")
	alpha := failing("alpha", boom)
	beta := succeeding("beta", "from beta")
	g := newTestGateway(t, alpha, beta)

	resp, err := g.Complete(context.Background(), provider.NewRequest("test-model", provider.User("hi")))
	require.NoError(t, err)
	assert.Equal(t, "from beta", resp.Text())

	assert.Equal(t, 1, alpha.callCount(), "alpha ranked first by name and was tried")
	assert.Equal(t, 1, beta.callCount())

	h, ok := g.ProviderHealth("alpha")
	require.True(t, ok)
	assert.Equal(t, 1, h.ConsecutiveFailures, "real failures count against health")
}

func TestCompleteSkipsOpenCircuit(t *testing.T) {
	alpha := succeeding("alpha", "from alpha")
	beta := succeeding("beta", "from beta")
	g := newTestGateway(t, alpha, beta)

	require.True(t, g.ForceOpen("alpha"))

	resp, err := g.Complete(context.Background(), provider.NewRequest("test-model", provider.User("hi")))
	require.NoError(t, err)
	assert.Equal(t, "from beta", resp.Text())
	assert.Zero(t, alpha.callCount(), "open circuit rejects before the provider is called")

	h, _ := g.ProviderHealth("alpha")
	assert.Zero(t, h.ConsecutiveFailures, "circuit rejections do not count against health")
}

func TestCompleteExhausted(t *testing.T) {
	errAlpha := errors.New("alpha down")
	errBeta := errors.New("beta down")
	g := newTestGateway(t, failing("alpha", errAlpha), failing("beta", errBeta))

	_, err := g.Complete(context.Background(), provider.NewRequest("test-model", provider.User("hi")))

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	require.Len(t, ex.Attempts, 2)
	assert.ErrorIs(t, err, errAlpha)
	assert.ErrorIs(t, err, errBeta)
}

func TestCompletePreferredProvider(t *testing.T) {
	alpha := succeeding("alpha", "from alpha")
	beta := succeeding("beta", "from beta")
	g := newTestGateway(t, alpha, beta)

	resp, err := g.Complete(context.Background(), provider.NewRequest("test-model", provider.User("hi")), "beta")
	require.NoError(t, err)
	assert.Equal(t, "from beta", resp.Text())
	assert.Zero(t, alpha.callCount())
}

func TestSubmitResolvesThroughDispatch(t *testing.T) {
	alpha := succeeding("alpha", "batched answer")
	g := newTestGateway(t, alpha)

	fut, err := g.Submit(provider.NewRequest("test-model", provider.User("what is 2+2?")))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := fut.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "batched answer", resp.Text())

	// The dispatched response was cached, so a repeat resolves without
	// another provider call.
	calls := alpha.callCount()
	fut2, err := g.Submit(provider.NewRequest("test-model", provider.User("what is 2+2?")))
	require.NoError(t, err)
	resp2, err := fut2.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "batched answer", resp2.Text())
	assert.Equal(t, calls, alpha.callCount())
}

func TestSubmitFailureReachesFuture(t *testing.T) {
	boom := errors.New("upstream exploded")
	g := newTestGateway(t, failing("alpha", boom))

	fut, err := g.Submit(provider.NewRequest("test-model", provider.User("hi")))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = fut.Get(ctx)
	var ex *ExhaustedError
	assert.ErrorAs(t, err, &ex)
}

func TestTriggerImmediate(t *testing.T) {
	alpha := succeeding("alpha", "right away")
	g := newTestGateway(t, alpha)

	sub, err := g.Trigger(context.Background(), provider.NewRequest("test-model", provider.User("hi")), TriggerImmediate)
	require.NoError(t, err)
	assert.Zero(t, sub.Handle)

	resp, err := sub.Future.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "right away", resp.Text())

	require.Equal(t, 1, alpha.callCount())
	alpha.mu.Lock()
	priority := alpha.calls[0].Priority
	alpha.mu.Unlock()
	assert.Equal(t, provider.PriorityCritical, priority)
}

func TestTriggerQueued(t *testing.T) {
	g := newTestGateway(t, succeeding("alpha", "queued answer"))

	sub, err := g.Trigger(context.Background(), provider.NewRequest("test-model", provider.User("hi")), TriggerQueued)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := sub.Future.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "queued answer", resp.Text())
}

func TestTriggerConditionalHeldUntilRelease(t *testing.T) {
	alpha := succeeding("alpha", "held answer")
	g := newTestGateway(t, alpha)

	sub, err := g.Trigger(context.Background(), provider.NewRequest("test-model", provider.User("hi")), TriggerConditional)
	require.NoError(t, err)
	require.NotZero(t, sub.Handle)

	shortCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = sub.Future.Get(shortCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "held request does not dispatch on its own")

	require.True(t, g.ReleaseHold(sub.Handle))

	ctx, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	resp, err := sub.Future.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "held answer", resp.Text())
}

func TestTriggerManualPriority(t *testing.T) {
	alpha := succeeding("alpha", "manual answer")
	g := newTestGateway(t, alpha)

	sub, err := g.Trigger(context.Background(), provider.NewRequest("test-model", provider.User("hi")), TriggerManual)
	require.NoError(t, err)
	require.NotZero(t, sub.Handle)
	require.True(t, g.ReleaseHold(sub.Handle))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = sub.Future.Get(ctx)
	require.NoError(t, err)

	alpha.mu.Lock()
	priority := alpha.calls[0].Priority
	alpha.mu.Unlock()
	assert.Equal(t, provider.PriorityHigh, priority)
}

func TestTriggerScheduledDefers(t *testing.T) {
	g := newTestGateway(t, succeeding("alpha", "later"))

	sub, err := g.Trigger(context.Background(), provider.NewRequest("test-model", provider.User("hi")), TriggerScheduled)
	require.NoError(t, err)
	assert.Zero(t, sub.Handle)

	shortCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = sub.Future.Get(shortCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "scheduled request waits out its delay")
}

func TestStats(t *testing.T) {
	g := newTestGateway(t, succeeding("alpha", "hi"), failing("beta", errors.New("down")))

	_, err := g.Complete(context.Background(), provider.NewRequest("test-model", provider.User("hi")))
	require.NoError(t, err)

	stats := g.Stats()
	require.Contains(t, stats.Providers, "alpha")
	require.Contains(t, stats.Providers, "beta")
	assert.True(t, stats.Providers["alpha"].Health.IsHealthy)
	assert.Equal(t, breaker.Closed, stats.Providers["alpha"].State.Kind)
	assert.EqualValues(t, 1, stats.Providers["alpha"].Metrics.SuccessfulRequests)

	assert.ElementsMatch(t, []string{"alpha", "beta"}, g.ProviderNames())
	assert.Contains(t, g.RankedProviders(), "alpha")
}

func TestForceOpenClose(t *testing.T) {
	g := newTestGateway(t, succeeding("alpha", "hi"))

	require.True(t, g.ForceOpen("alpha"))
	st, ok := g.BreakerState("alpha")
	require.True(t, ok)
	assert.Equal(t, breaker.Open, st.Kind)

	require.True(t, g.ForceClose("alpha"))
	st, _ = g.BreakerState("alpha")
	assert.Equal(t, breaker.Closed, st.Kind)

	assert.False(t, g.ForceOpen("missing"))
}
