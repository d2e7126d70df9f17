package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load,
// e.g. QAGEN_DATABASE_URL or QAGEN_PIPELINE_WORKERS.
const EnvPrefix = "QAGEN"

// Load reads configuration from defaults, an optional config.yaml in the
// working directory, and QAGEN_* environment variables, in increasing order
// of precedence. The result is validated before it is returned.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path falls back to
// an optional config.yaml in the working directory.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults are invisible to AutomaticEnv during Unmarshal.
	for _, key := range []string{"database.url", "llm.api_key", "llm.base_url"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	validate := validator.New()
	validate.RegisterStructValidation(validateLimits, Config{})
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.progress_cache_ttl", 5*time.Second)
	v.SetDefault("server.max_samples", 50)

	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.top_p", 0.7)
	v.SetDefault("llm.top_k", 50)
	v.SetDefault("llm.max_tokens", 512)
	v.SetDefault("llm.repetition_penalty", 1.1)
	v.SetDefault("llm.stop", []string{})
	v.SetDefault("llm.prompt_prefix", "")
	v.SetDefault("llm.prompt_suffix", "")
	v.SetDefault("llm.max_attempts", 10)
	v.SetDefault("llm.wait_window", 2*time.Second)
	v.SetDefault("llm.wait_offset", 250*time.Millisecond)
	v.SetDefault("llm.call_timeout", 60*time.Second)

	v.SetDefault("pipeline.num_questions", 4)
	v.SetDefault("pipeline.max_attempts", 5)
	v.SetDefault("pipeline.workers", 3)
	v.SetDefault("pipeline.batch_size", 5)
	v.SetDefault("pipeline.item_concurrency", 5)
	v.SetDefault("pipeline.claim_lease", 15*time.Minute)
	v.SetDefault("pipeline.commit_margin", 30*time.Second)
	v.SetDefault("pipeline.idle_delay", 2*time.Second)
	v.SetDefault("pipeline.error_delay", 10*time.Second)
	v.SetDefault("pipeline.max_item_failures", 5)
	v.SetDefault("pipeline.accept_partial_questions", false)
	v.SetDefault("pipeline.answer_max_tokens", 200)
	v.SetDefault("pipeline.checkpoint_interval", 30*time.Second)
	v.SetDefault("pipeline.poll_interval", time.Minute)

	v.SetDefault("identity.max_attempts", 3)
	v.SetDefault("identity.initial_backoff", time.Second)
}
