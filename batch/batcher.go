package batch

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/google/uuid"
	"github.com/pelorus-ai/pelorus/metrics"
	"github.com/pelorus-ai/pelorus/pkg/uuidx"
	"github.com/pelorus-ai/pelorus/provider"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrQueueFull is backpressure: the pending queue is at its ceiling and
	// the caller must retry later or drop the request.
	ErrQueueFull = errors.New("batch: pending queue is full")

	// ErrClosed is returned for submissions after Close, and resolves any
	// futures that were still pending at shutdown.
	ErrClosed = errors.New("batch: batcher is closed")
)

// Item is one queued request inside a batch. Ownership moves from the
// batcher to the orchestrator along with the batch; the orchestrator must
// resolve every item exactly once via Complete or Fail.
type Item struct {
	Request    *provider.Request
	Hash       uint64
	Priority   provider.Priority
	EnqueuedAt time.Time

	// notBefore delays eligibility for scheduled requests; held parks the
	// item until Release is called.
	notBefore time.Time
	held      bool

	promises []*promise
}

// Complete resolves every future waiting on this item.
func (it *Item) Complete(resp *provider.Response) {
	for _, p := range it.promises {
		p.complete(resp)
	}
}

// Fail resolves every future waiting on this item with err.
func (it *Item) Fail(err error) {
	for _, p := range it.promises {
		p.fail(err)
	}
}

// Waiters returns how many submissions are coalesced onto this item.
func (it *Item) Waiters() int { return len(it.promises) }

// Batch is a closed group of requests ready for dispatch. Its priority is
// the maximum of its members'.
type Batch struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Priority  provider.Priority
	Items     []*Item

	release func()
	once    sync.Once
}

// Len returns the number of items in the batch.
func (b *Batch) Len() int { return len(b.Items) }

// Done returns the batch's concurrency permit. It must be called exactly
// once after all items are resolved; extra calls are ignored.
func (b *Batch) Done() {
	b.once.Do(b.release)
}

type cacheEntry struct {
	resp       *provider.Response
	insertedAt time.Time
	ttl        time.Duration
}

func (e *cacheEntry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) > e.ttl
}

// Stats is a point-in-time view of the batcher.
type Stats struct {
	PendingRequests       int   `json:"pending_requests"`
	CacheEntries          int   `json:"cache_entries"`
	AvailableBatchPermits int64 `json:"available_batch_permits"`
}

// Batcher deduplicates and batches completion requests. The cache and the
// pending queue have their own lock, independent of any circuit breaker
// lock, and no lock is held across dispatch: a slow provider call never
// blocks unrelated submissions.
type Batcher struct {
	cfg Config
	log *slog.Logger

	cache   *haxmap.Map[uint64, *cacheEntry]
	permits *semaphore.Weighted
	out     chan *Batch

	inflight atomic.Int64

	mu           sync.Mutex
	pending      *orderedmap.OrderedMap[uint64, *Item]
	pendingCount int
	closed       bool

	done      chan struct{}
	closeOnce sync.Once
}

// New builds a batcher and starts its flush timer. Callers consume batches
// from Batches and must call Close when finished.
func New(cfg Config) (*Batcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Batcher{
		cfg:     cfg,
		log:     slog.Default().With(slog.String("component", "batcher")),
		cache:   haxmap.New[uint64, *cacheEntry](),
		permits: semaphore.NewWeighted(cfg.MaxConcurrentBatches),
		out:     make(chan *Batch, cfg.MaxConcurrentBatches),
		pending: orderedmap.New[uint64, *Item](),
		done:    make(chan struct{}),
	}
	go b.flushLoop()
	return b, nil
}

// Batches is the stream of closed batches, in dispatch order.
func (b *Batcher) Batches() <-chan *Batch { return b.out }

// Submit queues a request and returns a future for its response. Cache hits
// resolve immediately without enqueueing; identical pending requests
// coalesce onto the queued item so at most one call per dedup key is ever
// in flight.
func (b *Batcher) Submit(req *provider.Request) (Future, error) {
	return b.submit(req, time.Time{}, false)
}

// SubmitAfter queues a request that only becomes eligible for batching once
// delay has passed.
func (b *Batcher) SubmitAfter(req *provider.Request, delay time.Duration) (Future, error) {
	return b.submit(req, time.Now().Add(delay), false)
}

// SubmitHeld queues a request that is parked until Release is called with
// the request's fingerprint.
func (b *Batcher) SubmitHeld(req *provider.Request) (Future, uint64, error) {
	fut, err := b.submit(req, time.Time{}, true)
	if err != nil {
		return nil, 0, err
	}
	return fut, req.Fingerprint(), nil
}

func (b *Batcher) submit(req *provider.Request, notBefore time.Time, held bool) (Future, error) {
	hash := req.Fingerprint()

	if b.cfg.EnableDeduplication {
		if resp := b.cachedResponse(hash); resp != nil {
			metrics.CacheHits.Inc()
			b.log.Debug("dedup cache hit", slog.Uint64("hash", hash))
			return resolved{resp: resp}, nil
		}
	}

	p := newPromise()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	if b.pendingCount >= b.cfg.MaxPending {
		b.mu.Unlock()
		metrics.QueueRejections.Inc()
		return nil, ErrQueueFull
	}

	if b.cfg.EnableDeduplication {
		if existing, ok := b.pending.Get(hash); ok {
			existing.promises = append(existing.promises, p)
			b.pendingCount++
			b.mu.Unlock()
			return p, nil
		}
	}

	b.pending.Set(hash, &Item{
		Request:    req,
		Hash:       hash,
		Priority:   req.Priority,
		EnqueuedAt: time.Now(),
		notBefore:  notBefore,
		held:       held,
		promises:   []*promise{p},
	})
	b.pendingCount++
	full := b.eligibleLenLocked() >= b.cfg.MaxBatchSize
	b.mu.Unlock()

	if full {
		b.tryFlush()
	}
	return p, nil
}

// Release frees a held request so the next flush can pick it up. It reports
// whether a held request with that fingerprint existed.
func (b *Batcher) Release(hash uint64) bool {
	b.mu.Lock()
	item, ok := b.pending.Get(hash)
	if ok && item.held {
		item.held = false
	} else {
		ok = false
	}
	b.mu.Unlock()

	if ok {
		b.tryFlush()
	}
	return ok
}

// CacheResponse stores a response under the given fingerprint with the
// configured TTL. Called automatically by the orchestrator after every
// successful dispatch, and usable directly for pre-warming.
func (b *Batcher) CacheResponse(hash uint64, resp *provider.Response) {
	if !b.cfg.EnableDeduplication {
		return
	}
	b.cache.Set(hash, &cacheEntry{resp: resp, insertedAt: time.Now(), ttl: b.cfg.CacheTTL})
}

// cachedResponse returns a live cached response, lazily evicting expired
// entries on lookup.
func (b *Batcher) cachedResponse(hash uint64) *provider.Response {
	entry, ok := b.cache.Get(hash)
	if !ok {
		return nil
	}
	if entry.expired(time.Now()) {
		b.cache.Del(hash)
		return nil
	}
	return entry.resp
}

// eligibleLenLocked counts pending items that may be batched right now.
func (b *Batcher) eligibleLenLocked() int {
	now := time.Now()
	n := 0
	for pair := b.pending.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.held || pair.Value.notBefore.After(now) {
			continue
		}
		n++
	}
	return n
}

// tryFlush closes and dispatches batches while a trigger holds: either
// enough eligible items for a full batch, or the oldest eligible item has
// waited past the deadline. It stops when no permit is available; the timer
// retries on the next tick.
func (b *Batcher) tryFlush() {
	for b.flushOne() {
	}
}

func (b *Batcher) flushOne() bool {
	now := time.Now()

	b.mu.Lock()
	var eligible []*Item
	for pair := b.pending.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.held || pair.Value.notBefore.After(now) {
			continue
		}
		eligible = append(eligible, pair.Value)
	}
	if len(eligible) == 0 {
		b.mu.Unlock()
		return false
	}

	sizeTrigger := len(eligible) >= b.cfg.MaxBatchSize
	ageTrigger := now.Sub(eligible[0].EnqueuedAt) >= b.cfg.MaxWait
	if !sizeTrigger && !ageTrigger {
		b.mu.Unlock()
		return false
	}

	if !b.permits.TryAcquire(1) {
		b.mu.Unlock()
		return false
	}

	take := len(eligible)
	if take > b.cfg.MaxBatchSize {
		take = b.cfg.MaxBatchSize
	}
	items := eligible[:take]
	for _, it := range items {
		b.pending.Delete(it.Hash)
		b.pendingCount -= len(it.promises)
	}
	b.mu.Unlock()

	b.inflight.Add(1)

	if b.cfg.PriorityOrdering {
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Priority > items[j].Priority
		})
	}
	priority := provider.PriorityLow
	for _, it := range items {
		if it.Priority > priority {
			priority = it.Priority
		}
	}

	// V7 IDs sort by creation time, which keeps batch logs scannable.
	batch := &Batch{
		ID:        uuidx.New(),
		CreatedAt: now,
		Priority:  priority,
		Items:     items,
	}
	batch.release = func() {
		b.inflight.Add(-1)
		b.permits.Release(1)
	}

	metrics.BatchesDispatched.Inc()
	metrics.BatchSize.Observe(float64(len(items)))
	b.log.Debug("batch dispatched",
		slog.String("batch_id", batch.ID.String()),
		slog.Int("size", len(items)),
		slog.String("priority", priority.String()))

	b.out <- batch
	return true
}

// flushLoop is the only background task the batcher owns: a periodic timer
// that fires the age trigger for batches that never fill up.
func (b *Batcher) flushLoop() {
	interval := b.cfg.MaxWait / 2
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.tryFlush()
		}
	}
}

// Stats reports queue depth, cache size, and remaining batch permits.
func (b *Batcher) Stats() Stats {
	b.mu.Lock()
	pending := b.pendingCount
	b.mu.Unlock()

	return Stats{
		PendingRequests:       pending,
		CacheEntries:          int(b.cache.Len()),
		AvailableBatchPermits: b.cfg.MaxConcurrentBatches - b.inflight.Load(),
	}
}

// Close stops the flush timer, fails any requests still pending, and closes
// the Batches channel. Safe to call more than once.
func (b *Batcher) Close() {
	b.closeOnce.Do(func() {
		close(b.done)

		b.mu.Lock()
		b.closed = true
		var leftover []*Item
		for pair := b.pending.Oldest(); pair != nil; pair = pair.Next() {
			leftover = append(leftover, pair.Value)
		}
		b.pending = orderedmap.New[uint64, *Item]()
		b.pendingCount = 0
		b.mu.Unlock()

		for _, it := range leftover {
			it.Fail(ErrClosed)
		}
		close(b.out)
	})
}
