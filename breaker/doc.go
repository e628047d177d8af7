// Package breaker implements a per-provider circuit breaker with two
// independent failure detectors: a consecutive-failure threshold that catches
// sharp outages quickly, and a sliding-window failure rate that catches slow,
// creeping degradation.
//
// A breaker cycles through three states. Closed admits every call. Open
// rejects everything until a recovery timeout elapses. HalfOpen admits a
// bounded number of probe calls; enough consecutive successes close the
// circuit again, while any qualifying failure reopens it.
package breaker
