// Package pelorus is a resilience gateway for AI completion providers. It
// fronts any number of providers with per-provider circuit breakers, health
// tracking with latency-aware fallback ordering, and a deduplicating batch
// queue, so that one degraded upstream neither takes the application down
// nor burns budget on duplicate calls.
//
// The synchronous path is Gateway.Complete, which walks providers in health
// order under their circuit breakers. The asynchronous path is
// Gateway.Submit and Gateway.Trigger, which queue requests for
// deduplication and batching and resolve through futures.
package pelorus
