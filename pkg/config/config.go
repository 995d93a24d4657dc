package config

import "time"

// Store type constants
const (
	// StoreTypeMemory keeps documents in process
	StoreTypeMemory = "memory"
	// StoreTypeMongoDB represents MongoDB
	StoreTypeMongoDB = "mongodb"
	// StoreTypeDynamoDB represents AWS DynamoDB
	StoreTypeDynamoDB = "dynamodb"
)

// Log format constants
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config is the root configuration of a docprobe run
type Config struct {
	Service       ServiceConfig       `mapstructure:"service" yaml:"service"`
	Store         StoreConfig         `mapstructure:"store" yaml:"store"`
	Checker       CheckerConfig       `mapstructure:"checker" yaml:"checker"`
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// StoreConfig selects and configures the document store under test.
type StoreConfig struct {
	Type       string `mapstructure:"type" yaml:"type"` // memory, mongodb, dynamodb
	URL        string `mapstructure:"url" yaml:"url" redact:"true"`
	Database   string `mapstructure:"database" yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`

	// DynamoDB
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id" redact:"true"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key" redact:"true"`
	SessionToken    string `mapstructure:"session_token" yaml:"session_token" redact:"true"`

	// MongoDB credentials, overriding any embedded in URL
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password" redact:"true"`

	ConnectTimeout   time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
	TextIndexFields  []string      `mapstructure:"text_index_fields" yaml:"text_index_fields"`
}

// CheckerConfig configures the checklist run.
type CheckerConfig struct {
	// StartupDelay is waited after connecting, before the first check.
	StartupDelay time.Duration `mapstructure:"startup_delay" yaml:"startup_delay"`
	// CheckTimeout bounds every check; zero disables the bound.
	CheckTimeout time.Duration `mapstructure:"check_timeout" yaml:"check_timeout"`
	Extended     bool          `mapstructure:"extended" yaml:"extended"`
	// FailOnError makes the run exit non-zero when any assertion failed.
	FailOnError bool `mapstructure:"fail_on_error" yaml:"fail_on_error"`
}

// ObservabilityConfig configures logging, tracing and metrics.
type ObservabilityConfig struct {
	LogLevel          string  `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string  `mapstructure:"log_format" yaml:"log_format"`
	TracingEnabled    bool    `mapstructure:"tracing_enabled" yaml:"tracing_enabled"`
	TracingEndpoint   string  `mapstructure:"tracing_endpoint" yaml:"tracing_endpoint"`
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate" yaml:"tracing_sample_rate"`
	MetricsPushURL    string  `mapstructure:"metrics_push_url" yaml:"metrics_push_url"`
	MetricsJob        string  `mapstructure:"metrics_job" yaml:"metrics_job"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "docprobe",
			Environment: "development",
		},
		Store: StoreConfig{
			Type:             StoreTypeMemory,
			Database:         "docprobe",
			Collection:       "posts",
			ConnectTimeout:   10 * time.Second,
			OperationTimeout: 5 * time.Second,
			TextIndexFields:  []string{"title", "content"},
		},
		Checker: CheckerConfig{
			StartupDelay: 500 * time.Millisecond,
			CheckTimeout: 30 * time.Second,
			FailOnError:  true,
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         LogFormatText,
			TracingEndpoint:   "localhost:4317",
			TracingSampleRate: 1.0,
			MetricsJob:        "docprobe",
		},
	}
}
