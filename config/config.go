// Package config loads gateway configuration from YAML with environment
// variable expansion and overrides. Precedence, lowest to highest: built-in
// defaults, the config file, environment variables.
package config

import (
	"github.com/pelorus-ai/pelorus/batch"
	"github.com/pelorus-ai/pelorus/breaker"
)

// Config is the root of the gateway configuration.
type Config struct {
	Logging   LoggingConfig             `mapstructure:"logging"`
	Metrics   MetricsConfig             `mapstructure:"metrics"`
	Breaker   breaker.Config            `mapstructure:"circuit_breaker"`
	Breakers  map[string]breaker.Config `mapstructure:"circuit_breakers"`
	Batch     batch.Config              `mapstructure:"batching"`
	Providers ProvidersConfig           `mapstructure:"providers"`
}

// LoggingConfig controls the log handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// ProvidersConfig holds per-provider credentials and endpoints.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `mapstructure:"openai"`
	Anthropic ProviderConfig `mapstructure:"anthropic"`
}

// ProviderConfig is the connection configuration for a single provider. A
// provider with an empty API key is considered disabled.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// Enabled reports whether the provider has credentials.
func (p ProviderConfig) Enabled() bool { return p.APIKey != "" }

// BreakerFor returns the circuit breaker configuration for the named
// provider, falling back to the shared configuration when no per-provider
// override exists.
func (c *Config) BreakerFor(name string) breaker.Config {
	if cfg, ok := c.Breakers[name]; ok {
		return cfg
	}
	return c.Breaker
}

// Validate checks the tunable sections. All errors wrap the respective
// package's ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := c.Breaker.Validate(); err != nil {
		return err
	}
	for _, cfg := range c.Breakers {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	return c.Batch.Validate()
}
