package batch

import (
	"context"
	"sync"

	"github.com/pelorus-ai/pelorus/provider"
)

// Future resolves to the response for a submitted request once the batch
// containing it has been dispatched and completed. Abandoning a future never
// corrupts shared state: outcome recording happens on the dispatch path, not
// here.
type Future interface {
	// Get blocks until the result is available or ctx is done.
	Get(ctx context.Context) (*provider.Response, error)
}

type result struct {
	resp *provider.Response
	err  error
}

// promise is the write side of a Future. Complete and fail are idempotent;
// only the first resolution wins.
type promise struct {
	ch   chan result
	once sync.Once

	mu   sync.Mutex
	res  result
	done bool
}

func newPromise() *promise {
	return &promise{ch: make(chan result, 1)}
}

func (p *promise) complete(resp *provider.Response) {
	p.once.Do(func() { p.ch <- result{resp: resp} })
}

func (p *promise) fail(err error) {
	p.once.Do(func() { p.ch <- result{err: err} })
}

func (p *promise) Get(ctx context.Context) (*provider.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return p.res.resp, p.res.err
	}

	select {
	case r := <-p.ch:
		p.res, p.done = r, true
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolved is a Future that already has its answer, used for dedup cache hits.
type resolved struct {
	resp *provider.Response
}

func (r resolved) Get(context.Context) (*provider.Response, error) {
	return r.resp, nil
}
