package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load reads configuration from path, expanding ${VAR} and ${VAR:default}
// placeholders from the environment before parsing. A missing file is not an
// error; defaults and environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := loadConfigFile(v, path); err != nil {
		return nil, err
	}

	v.SetEnvPrefix("PELORUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load that panics on error, for program entry points.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

func loadConfigFile(v *viper.Viper, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := v.ReadConfig(strings.NewReader(expandEnv(string(content)))); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

var placeholderRE = regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)

// expandEnv substitutes ${VAR} and ${VAR:default} placeholders. An unset
// variable without a default is left as-is so the failure is visible in the
// parsed value rather than silently becoming empty.
func expandEnv(s string) string {
	return placeholderRE.ReplaceAllStringFunc(s, func(match string) string {
		sub := placeholderRE.FindStringSubmatch(match)
		key, hasDefault, defVal := sub[1], sub[2] != "", sub[3]

		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		if hasDefault {
			return defVal
		}
		return match
	})
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("circuit_breaker.failure_threshold", 5)
	v.SetDefault("circuit_breaker.success_threshold", 3)
	v.SetDefault("circuit_breaker.timeout", "60s")
	v.SetDefault("circuit_breaker.request_timeout", "30s")
	v.SetDefault("circuit_breaker.half_open_max_calls", 3)
	v.SetDefault("circuit_breaker.minimum_throughput", 10)
	v.SetDefault("circuit_breaker.failure_rate_window", "60s")
	v.SetDefault("circuit_breaker.failure_rate_threshold", 0.5)

	v.SetDefault("batching.max_batch_size", 10)
	v.SetDefault("batching.max_wait_time", 100*time.Millisecond)
	v.SetDefault("batching.max_concurrent_batches", 5)
	v.SetDefault("batching.max_pending", 1000)
	v.SetDefault("batching.enable_deduplication", true)
	v.SetDefault("batching.priority_ordering", true)
	v.SetDefault("batching.cache_ttl", "5m")

	v.SetDefault("providers.openai.base_url", "")
	v.SetDefault("providers.anthropic.base_url", "")
}
