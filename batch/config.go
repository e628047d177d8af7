package batch

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid batch config")

// Config controls batching, deduplication, and backpressure.
type Config struct {
	// MaxBatchSize closes a batch once it holds this many requests.
	MaxBatchSize int `json:"max_batch_size" mapstructure:"max_batch_size"`
	// MaxWait closes a batch once its oldest request has waited this long.
	MaxWait time.Duration `json:"max_wait_time" mapstructure:"max_wait_time"`
	// MaxConcurrentBatches bounds batches dispatched but not yet finished.
	MaxConcurrentBatches int64 `json:"max_concurrent_batches" mapstructure:"max_concurrent_batches"`
	// MaxPending is the backpressure ceiling: submissions beyond this many
	// queued requests fail fast with ErrQueueFull.
	MaxPending int `json:"max_pending" mapstructure:"max_pending"`
	// EnableDeduplication collapses identical requests onto one upstream call
	// and serves repeats from a short-TTL cache.
	EnableDeduplication bool `json:"enable_deduplication" mapstructure:"enable_deduplication"`
	// PriorityOrdering sorts a batch's members by descending priority before
	// dispatch.
	PriorityOrdering bool `json:"priority_ordering" mapstructure:"priority_ordering"`
	// CacheTTL is how long a cached response stays servable.
	CacheTTL time.Duration `json:"cache_ttl" mapstructure:"cache_ttl"`
}

// DefaultConfig returns the baseline batching configuration.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize:         10,
		MaxWait:              100 * time.Millisecond,
		MaxConcurrentBatches: 5,
		MaxPending:           1000,
		EnableDeduplication:  true,
		PriorityOrdering:     true,
		CacheTTL:             5 * time.Minute,
	}
}

// Validate reports the first problem with the configuration. All errors wrap
// ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.MaxBatchSize < 1:
		return fmt.Errorf("%w: max batch size must be at least 1, got %d", ErrInvalidConfig, c.MaxBatchSize)
	case c.MaxWait <= 0:
		return fmt.Errorf("%w: max wait must be positive, got %s", ErrInvalidConfig, c.MaxWait)
	case c.MaxConcurrentBatches < 1:
		return fmt.Errorf("%w: max concurrent batches must be at least 1, got %d", ErrInvalidConfig, c.MaxConcurrentBatches)
	case c.MaxPending < 1:
		return fmt.Errorf("%w: max pending must be at least 1, got %d", ErrInvalidConfig, c.MaxPending)
	case c.CacheTTL <= 0:
		return fmt.Errorf("%w: cache TTL must be positive, got %s", ErrInvalidConfig, c.CacheTTL)
	}
	return nil
}
