package pelorus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fogfish/opts"
	"github.com/pelorus-ai/pelorus/batch"
	"github.com/pelorus-ai/pelorus/breaker"
	"github.com/pelorus-ai/pelorus/health"
	"github.com/pelorus-ai/pelorus/internal/registry"
	"github.com/pelorus-ai/pelorus/pkg/slogx"
	"github.com/pelorus-ai/pelorus/provider"
)

// Gateway fronts a set of completion providers with circuit breaking,
// health-ranked fallback, and request deduplication and batching.
type Gateway struct {
	breakerCfg  breaker.Config
	breakerCfgs map[string]breaker.Config
	batchCfg    batch.Config
	log         *slog.Logger

	providers registry.Registry[provider.Provider]
	breakers  *breaker.Registry
	health    *health.Set
	batcher   *batch.Batcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// Gateway construction options.
var (
	// WithBreakerConfig sets the circuit breaker configuration shared by all
	// providers without an override.
	WithBreakerConfig = opts.ForName[Gateway, breaker.Config]("breakerCfg")

	// WithBatchConfig sets the batching and deduplication configuration.
	WithBatchConfig = opts.ForName[Gateway, batch.Config]("batchCfg")

	// WithLogger sets the logger; slog.Default is used otherwise.
	WithLogger = opts.ForName[Gateway, *slog.Logger]("log")
)

// WithBreakerOverride sets a per-provider circuit breaker configuration.
func WithBreakerOverride(name string, cfg breaker.Config) opts.Option[Gateway] {
	return opts.Type[Gateway](func(g *Gateway) error {
		if g.breakerCfgs == nil {
			g.breakerCfgs = map[string]breaker.Config{}
		}
		g.breakerCfgs[name] = cfg
		return nil
	})
}

// New builds a gateway and starts its batch dispatch loop. Call Close to
// stop it and fail any requests still queued.
func New(options ...opts.Option[Gateway]) (*Gateway, error) {
	g := &Gateway{
		breakerCfg: breaker.DefaultConfig(),
		batchCfg:   batch.DefaultConfig(),
		log:        slog.Default(),
		providers:  registry.New[provider.Provider](),
		breakers:   breaker.NewRegistry(),
		health:     health.NewSet(),
	}
	if err := opts.Apply(g, options); err != nil {
		return nil, err
	}

	batcher, err := batch.New(g.batchCfg)
	if err != nil {
		return nil, err
	}
	g.batcher = batcher
	g.ctx, g.cancel = context.WithCancel(context.Background())

	g.wg.Add(1)
	go g.dispatchLoop()
	return g, nil
}

// RegisterProvider adds a provider and wires up its circuit breaker and
// health tracker. Registering the same name twice is an error.
func (g *Gateway) RegisterProvider(p provider.Provider) error {
	name := p.Name()
	if _, exists := g.providers.Get(name); exists {
		return fmt.Errorf("pelorus: provider %q already registered", name)
	}

	cfg := g.breakerCfg
	if override, ok := g.breakerCfgs[name]; ok {
		cfg = override
	}
	if _, err := g.breakers.Register(name, cfg); err != nil {
		return err
	}

	g.providers.Set(name, p)
	g.health.Register(name)
	g.log.Info("provider registered", slogx.Provider(name))
	return nil
}

// Complete performs a synchronous completion with fallback. Candidates are
// walked in health order: healthy providers first, fastest first, with
// providers in their failure cool-off excluded. Naming preferred providers
// moves them to the front of that order.
//
// A provider whose circuit is open is skipped without counting against its
// health; any other failure moves on to the next candidate. When every
// candidate fails, the per-provider errors come back in an *ExhaustedError.
func (g *Gateway) Complete(ctx context.Context, req *provider.Request, preferred ...string) (*provider.Response, error) {
	candidates := g.candidates(preferred)
	if len(candidates) == 0 {
		return nil, ErrNoProviders
	}

	var attempts []Attempt
	for _, name := range candidates {
		p, ok := g.providers.Get(name)
		if !ok {
			continue
		}
		br, ok := g.breakers.Get(name)
		if !ok {
			continue
		}

		start := time.Now()
		resp, err := breaker.Do(ctx, br, func(ctx context.Context) (*provider.Response, error) {
			return p.Complete(ctx, req)
		})
		if err == nil {
			g.recordSuccess(name, time.Since(start))
			return resp, nil
		}

		var oe *breaker.OpenError
		if errors.As(err, &oe) {
			g.log.Debug("provider skipped, circuit open", slogx.Provider(name))
		} else {
			g.recordFailure(name, err)
		}
		attempts = append(attempts, Attempt{Provider: name, Err: err})

		if ctx.Err() != nil {
			break
		}
	}
	return nil, &ExhaustedError{Attempts: attempts}
}

// Submit queues a request for deduplication and batching and returns a
// future for its response. The batch dispatch loop completes it using the
// same fallback path as Complete.
func (g *Gateway) Submit(req *provider.Request) (batch.Future, error) {
	return g.batcher.Submit(req)
}

// candidates produces the provider order for one completion attempt.
func (g *Gateway) candidates(preferred []string) []string {
	ranked := g.health.Rank()

	if len(preferred) == 0 {
		return ranked
	}

	seen := make(map[string]bool, len(ranked))
	out := make([]string, 0, len(ranked))
	for _, name := range preferred {
		if _, ok := g.providers.Get(name); ok && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, name := range ranked {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func (g *Gateway) recordSuccess(name string, dur time.Duration) {
	if t, ok := g.health.Get(name); ok {
		t.RecordSuccess(dur)
	}
}

func (g *Gateway) recordFailure(name string, err error) {
	if t, ok := g.health.Get(name); ok {
		t.RecordFailure()
	}
	g.log.Warn("provider call failed", slogx.Provider(name), slogx.Error(err))
}

// dispatchLoop drains the batcher and resolves each batch. Batches run in
// their own goroutines; the batcher's permit bound caps how many are in
// flight at once.
func (g *Gateway) dispatchLoop() {
	defer g.wg.Done()
	for b := range g.batcher.Batches() {
		g.wg.Add(1)
		go func(b *batch.Batch) {
			defer g.wg.Done()
			g.dispatchBatch(b)
		}(b)
	}
}

func (g *Gateway) dispatchBatch(b *batch.Batch) {
	defer b.Done()

	g.log.Debug("dispatching batch",
		slog.String("batch_id", b.ID.String()),
		slog.Int("size", b.Len()))

	for _, item := range b.Items {
		if g.ctx.Err() != nil {
			item.Fail(g.ctx.Err())
			continue
		}

		resp, err := g.Complete(g.ctx, item.Request)
		if err != nil {
			item.Fail(err)
			continue
		}
		g.batcher.CacheResponse(item.Hash, resp)
		item.Complete(resp)
	}
}

// Close stops the dispatch loop, fails queued requests, and waits for
// in-flight batches to finish. Safe to call more than once.
func (g *Gateway) Close() {
	g.closeOnce.Do(func() {
		g.cancel()
		g.batcher.Close()
		g.wg.Wait()
	})
}
