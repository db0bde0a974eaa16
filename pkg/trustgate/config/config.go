// Package config loads the engine configuration from file, environment, and
// defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/solwatch/trustgate/pkg/trustgate/platform"
	"github.com/solwatch/trustgate/pkg/trustgate/telemetry"
	"github.com/solwatch/trustgate/pkg/trustgate/watch"
)

// Config represents the top-level configuration.
type Config struct {
	Platform  platform.HTTPConfig     `mapstructure:"platform"`
	TrustList TrustListConfig         `mapstructure:"trust_list"`
	Identity  IdentityConfig          `mapstructure:"identity"`
	Validator ValidatorConfig         `mapstructure:"validator"`
	Telemetry telemetry.MetricsConfig `mapstructure:"telemetry"`
	Watch     watch.Config            `mapstructure:"watch"`
	Logging   LoggingConfig           `mapstructure:"logging"`
}

// TrustListConfig holds curated-list configuration.
type TrustListConfig struct {
	URL string `mapstructure:"url"`
}

// IdentityConfig holds handle-resolution configuration.
type IdentityConfig struct {
	CachePath     string        `mapstructure:"cache_path"`
	CacheValidity time.Duration `mapstructure:"cache_validity"`
	BatchSize     int           `mapstructure:"batch_size"`
	BatchDelay    time.Duration `mapstructure:"batch_delay"`
	RateLimitWait time.Duration `mapstructure:"rate_limit_wait"`
}

// ValidatorConfig holds validation-session configuration.
type ValidatorConfig struct {
	CallBudget      int     `mapstructure:"call_budget"`
	QuickCallBudget int     `mapstructure:"quick_call_budget"`
	SampleCap       int     `mapstructure:"sample_cap"`
	PageSize        int     `mapstructure:"page_size"`
	MinRequired     int     `mapstructure:"min_required"`
	BoostFactor     float64 `mapstructure:"boost_factor"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// LoadConfig loads the configuration from the specified file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	setDefaultConfig(v)

	v.SetEnvPrefix("TRUSTGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Info().Str("config_file", configPath).Msg("Loaded configuration file")
	} else {
		log.Info().Msg("No configuration file provided, using environment variables and defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaultConfig sets the default configuration values.
func setDefaultConfig(v *viper.Viper) {
	// Platform defaults. bearer_token defaults to empty so the key is
	// known to viper; AutomaticEnv only resolves keys it has seen.
	v.SetDefault("platform.base_url", "https://api.x.com/2")
	v.SetDefault("platform.bearer_token", "")
	v.SetDefault("platform.request_timeout", "30s")
	v.SetDefault("platform.retry_max", 2)
	v.SetDefault("platform.calls_per_second", 1.0)

	// Trust list defaults
	v.SetDefault("trust_list.url", "")

	// Identity defaults
	v.SetDefault("identity.cache_path", "trusted_accounts_cache.json")
	v.SetDefault("identity.cache_validity", "24h")
	v.SetDefault("identity.batch_size", 100)
	v.SetDefault("identity.batch_delay", "1100ms")
	v.SetDefault("identity.rate_limit_wait", "15m")

	// Validator defaults
	v.SetDefault("validator.call_budget", 20)
	v.SetDefault("validator.quick_call_budget", 5)
	v.SetDefault("validator.sample_cap", 1000)
	v.SetDefault("validator.page_size", 1000)
	v.SetDefault("validator.min_required", 2)
	v.SetDefault("validator.boost_factor", 0.3)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", ":9090")
	v.SetDefault("telemetry.namespace", "trustgate")
	v.SetDefault("telemetry.rate_limit", 60)

	// Watch defaults
	v.SetDefault("watch.account_id", "")
	v.SetDefault("watch.trigger_phrase", "")
	v.SetDefault("watch.state_file", "last_seen_id.txt")
	v.SetDefault("watch.poll_interval", "5m")
	v.SetDefault("watch.min_required", 2)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
}
