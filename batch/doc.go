// Package batch accepts individual completion requests, deduplicates
// identical in-flight or recently answered requests, and groups the rest
// into bounded batches that are handed to the orchestrator.
//
// A batch closes on whichever trigger fires first: it reaches the maximum
// size, or its oldest member has waited the maximum time. The double trigger
// bounds both worst-case latency and worst-case batch cost.
package batch
