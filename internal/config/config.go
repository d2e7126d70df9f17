package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Pipeline PipelineConfig `mapstructure:"pipeline" validate:"required"`
	Identity IdentityConfig `mapstructure:"identity" validate:"required"`
}

// ServerConfig contains the admin API and logging settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error fatal"`

	// ProgressCacheTTL bounds how stale the checkpoints served by the
	// progress endpoint may be.
	ProgressCacheTTL time.Duration `mapstructure:"progress_cache_ttl" validate:"gte=0"`
	MaxSamples       int           `mapstructure:"max_samples" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gt=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// LLMConfig contains the generation service settings shared by every stage.
type LLMConfig struct {
	Provider string `mapstructure:"provider" validate:"required,oneof=gemini openai"`
	APIKey   string `mapstructure:"api_key" validate:"required_if=Provider gemini"`
	BaseURL  string `mapstructure:"base_url" validate:"required_if=Provider openai"`
	Model    string `mapstructure:"model" validate:"required"`

	Temperature       float32 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	TopP              float32 `mapstructure:"top_p" validate:"gte=0,lte=1"`
	TopK              int     `mapstructure:"top_k" validate:"gte=0"`
	MaxTokens         int     `mapstructure:"max_tokens" validate:"gt=0"`
	RepetitionPenalty float32 `mapstructure:"repetition_penalty" validate:"gte=0"`

	Stop         []string `mapstructure:"stop"`
	PromptPrefix string   `mapstructure:"prompt_prefix"`
	PromptSuffix string   `mapstructure:"prompt_suffix"`

	// MaxAttempts bounds consecutive transient failures per call.
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gt=0"`
	WaitWindow  time.Duration `mapstructure:"wait_window" validate:"gte=0"`
	WaitOffset  time.Duration `mapstructure:"wait_offset" validate:"gte=0"`
	CallTimeout time.Duration `mapstructure:"call_timeout" validate:"gt=0"`
}

// PipelineConfig controls the stage runners. ClaimLease must cover
// LLMConfig.CallBudget plus CommitMargin, and Workers plus ConnHeadroom must
// fit in DatabaseConfig.MaxOpenConns.
type PipelineConfig struct {
	NumQuestions           int           `mapstructure:"num_questions" validate:"gt=0,lt=10"`
	MaxAttempts            int           `mapstructure:"max_attempts" validate:"gt=0"`
	Workers                int           `mapstructure:"workers" validate:"gt=0"`
	BatchSize              int           `mapstructure:"batch_size" validate:"gt=0"`
	ItemConcurrency        int           `mapstructure:"item_concurrency" validate:"gt=0"`
	ClaimLease             time.Duration `mapstructure:"claim_lease" validate:"gt=0"`
	CommitMargin           time.Duration `mapstructure:"commit_margin" validate:"gte=0"`
	IdleDelay              time.Duration `mapstructure:"idle_delay" validate:"gte=0"`
	ErrorDelay             time.Duration `mapstructure:"error_delay" validate:"gte=0"`
	MaxItemFailures        int           `mapstructure:"max_item_failures" validate:"gte=0"`
	AcceptPartialQuestions bool          `mapstructure:"accept_partial_questions"`
	AnswerMaxTokens        int           `mapstructure:"answer_max_tokens" validate:"gte=0"`
	CheckpointInterval     time.Duration `mapstructure:"checkpoint_interval" validate:"gte=0"`
	PollInterval           time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
}

// IdentityConfig controls retries of identity creation.
type IdentityConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"gt=0"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gte=0"`
}
