package breaker

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid circuit breaker config")

// Config controls a breaker's failure detection and recovery behavior.
// It is immutable for the lifetime of the breaker.
type Config struct {
	// FailureThreshold opens the circuit after this many consecutive failures.
	FailureThreshold int `json:"failure_threshold" mapstructure:"failure_threshold"`
	// SuccessThreshold closes a half-open circuit after this many consecutive successes.
	SuccessThreshold int `json:"success_threshold" mapstructure:"success_threshold"`
	// Timeout is how long an open circuit waits before admitting probes.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	// RequestTimeout bounds each individual call.
	RequestTimeout time.Duration `json:"request_timeout" mapstructure:"request_timeout"`
	// HalfOpenMaxCalls bounds concurrent probe calls while half-open.
	HalfOpenMaxCalls int64 `json:"half_open_max_calls" mapstructure:"half_open_max_calls"`
	// MinimumThroughput is the minimum number of windowed outcomes before the
	// failure rate detector is consulted.
	MinimumThroughput int `json:"minimum_throughput" mapstructure:"minimum_throughput"`
	// FailureRateWindow is the time span over which the failure rate is computed.
	FailureRateWindow time.Duration `json:"failure_rate_window" mapstructure:"failure_rate_window"`
	// FailureRateThreshold opens the circuit once the windowed failure ratio
	// reaches this value (0.0 to 1.0).
	FailureRateThreshold float64 `json:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:     5,
		SuccessThreshold:     3,
		Timeout:              60 * time.Second,
		RequestTimeout:       30 * time.Second,
		HalfOpenMaxCalls:     3,
		MinimumThroughput:    10,
		FailureRateWindow:    60 * time.Second,
		FailureRateThreshold: 0.5,
	}
}

// Conservative returns a stricter configuration for critical dependencies:
// opens sooner, probes less, and demands more successes to recover.
func Conservative() Config {
	return Config{
		FailureThreshold:     3,
		SuccessThreshold:     5,
		Timeout:              120 * time.Second,
		RequestTimeout:       45 * time.Second,
		HalfOpenMaxCalls:     2,
		MinimumThroughput:    20,
		FailureRateWindow:    120 * time.Second,
		FailureRateThreshold: 0.3,
	}
}

// Aggressive returns a configuration tuned for fast recovery: tolerates more
// failures before opening and re-closes quickly.
func Aggressive() Config {
	return Config{
		FailureThreshold:     8,
		SuccessThreshold:     2,
		Timeout:              30 * time.Second,
		RequestTimeout:       15 * time.Second,
		HalfOpenMaxCalls:     5,
		MinimumThroughput:    5,
		FailureRateWindow:    30 * time.Second,
		FailureRateThreshold: 0.7,
	}
}

// Validate reports the first problem with the configuration. All errors wrap
// ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.FailureThreshold < 1:
		return fmt.Errorf("%w: failure threshold must be at least 1, got %d", ErrInvalidConfig, c.FailureThreshold)
	case c.SuccessThreshold < 1:
		return fmt.Errorf("%w: success threshold must be at least 1, got %d", ErrInvalidConfig, c.SuccessThreshold)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfig, c.Timeout)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("%w: request timeout must be positive, got %s", ErrInvalidConfig, c.RequestTimeout)
	case c.HalfOpenMaxCalls < 1:
		return fmt.Errorf("%w: half-open max calls must be at least 1, got %d", ErrInvalidConfig, c.HalfOpenMaxCalls)
	case c.MinimumThroughput < 1:
		return fmt.Errorf("%w: minimum throughput must be at least 1, got %d", ErrInvalidConfig, c.MinimumThroughput)
	case c.FailureRateWindow <= 0:
		return fmt.Errorf("%w: failure rate window must be positive, got %s", ErrInvalidConfig, c.FailureRateWindow)
	case c.FailureRateThreshold <= 0 || c.FailureRateThreshold > 1:
		return fmt.Errorf("%w: failure rate threshold must be in (0, 1], got %g", ErrInvalidConfig, c.FailureRateThreshold)
	}
	return nil
}
