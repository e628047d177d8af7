package pelorus

import (
	"context"
	"fmt"
	"time"

	"github.com/pelorus-ai/pelorus/batch"
	"github.com/pelorus-ai/pelorus/provider"
)

// Strategy selects how a triggered request enters the gateway.
type Strategy int

const (
	// TriggerImmediate runs the request synchronously at critical priority,
	// bypassing the batch queue entirely.
	TriggerImmediate Strategy = iota
	// TriggerQueued enqueues at normal priority for the next batch.
	TriggerQueued
	// TriggerScheduled enqueues at low priority and holds the request out of
	// batching for a fixed delay.
	TriggerScheduled
	// TriggerConditional enqueues at normal priority but parks the request
	// until ReleaseHold is called with its handle.
	TriggerConditional
	// TriggerManual parks like TriggerConditional but at high priority, for
	// operator-gated requests.
	TriggerManual
)

func (s Strategy) String() string {
	switch s {
	case TriggerImmediate:
		return "immediate"
	case TriggerQueued:
		return "queued"
	case TriggerScheduled:
		return "scheduled"
	case TriggerConditional:
		return "conditional"
	case TriggerManual:
		return "manual"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// scheduledDelay is how long TriggerScheduled defers eligibility.
const scheduledDelay = time.Minute

// Submission is the result of Trigger: a future for the response and, for
// the held strategies, the handle that releases it.
type Submission struct {
	Future batch.Future
	// Handle is non-zero only for TriggerConditional and TriggerManual.
	Handle uint64
}

// Trigger submits a request under the given strategy. The strategy decides
// the request's priority and how it enters the queue; any priority already
// set on the request is overwritten.
func (g *Gateway) Trigger(ctx context.Context, req *provider.Request, strategy Strategy) (*Submission, error) {
	switch strategy {
	case TriggerImmediate:
		resp, err := g.Complete(ctx, req.WithPriority(provider.PriorityCritical))
		if err != nil {
			return nil, err
		}
		return &Submission{Future: completedFuture{resp: resp}}, nil

	case TriggerQueued:
		fut, err := g.batcher.Submit(req.WithPriority(provider.PriorityNormal))
		if err != nil {
			return nil, err
		}
		return &Submission{Future: fut}, nil

	case TriggerScheduled:
		fut, err := g.batcher.SubmitAfter(req.WithPriority(provider.PriorityLow), scheduledDelay)
		if err != nil {
			return nil, err
		}
		return &Submission{Future: fut}, nil

	case TriggerConditional:
		fut, handle, err := g.batcher.SubmitHeld(req.WithPriority(provider.PriorityNormal))
		if err != nil {
			return nil, err
		}
		return &Submission{Future: fut, Handle: handle}, nil

	case TriggerManual:
		fut, handle, err := g.batcher.SubmitHeld(req.WithPriority(provider.PriorityHigh))
		if err != nil {
			return nil, err
		}
		return &Submission{Future: fut, Handle: handle}, nil

	default:
		return nil, fmt.Errorf("pelorus: unknown trigger strategy %d", int(strategy))
	}
}

// ReleaseHold frees a request parked by TriggerConditional or TriggerManual.
// It reports whether a held request with that handle existed.
func (g *Gateway) ReleaseHold(handle uint64) bool {
	return g.batcher.Release(handle)
}

// completedFuture adapts an already-computed response to the Future shape so
// immediate triggers look like every other submission to the caller.
type completedFuture struct {
	resp *provider.Response
}

func (f completedFuture) Get(context.Context) (*provider.Response, error) {
	return f.resp, nil
}
