package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper for configuration management
type ViperLoader struct {
	configFile         string
	envPrefix          string
	serviceNameDefault string
	flags              *pflag.FlagSet
}

// NewViperLoader creates a new ViperLoader
// configFile: path to configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (e.g., "DOCPROBE")
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
	}
}

// WithServiceNameDefault sets the default service.name used when no config/env override is provided.
func (l *ViperLoader) WithServiceNameDefault(serviceName string) *ViperLoader {
	if l == nil {
		return l
	}
	l.serviceNameDefault = strings.TrimSpace(serviceName)
	return l
}

// WithFlags binds the command-line flags listed in FlagKeys. A flag overrides every
// other source, but only when it was set explicitly.
func (l *ViperLoader) WithFlags(flags *pflag.FlagSet) *ViperLoader {
	if l == nil {
		return l
	}
	l.flags = flags
	return l
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"store-type":       "store.type",
	"store-url":        "store.url",
	"store-database":   "store.database",
	"store-collection": "store.collection",
	"extended":         "checker.extended",
	"check-timeout":    "checker.check_timeout",
	"startup-delay":    "checker.startup_delay",
	"log-level":        "observability.log_level",
	"log-format":       "observability.log_format",
}

// Load loads configuration with precedence: flags > ENV > file > defaults
func (l *ViperLoader) Load() (*Config, error) {
	v, err := l.newViper()
	if err != nil {
		return nil, err
	}
	return l.decode(v)
}

func (l *ViperLoader) newViper() (*viper.Viper, error) {
	v := viper.New()
	l.setDefaults(v, DefaultConfig())

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}
	return v, nil
}

func (l *ViperLoader) decode(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(l.envPrefix)
	l.bindEnvVars(v)
	if err := l.bindFlags(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// bindEnvVars explicitly binds environment variables for nested structs
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	v.BindEnv("service.name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("service.environment", l.prefixedEnv("SERVICE_ENVIRONMENT"), l.prefixedEnv("ENVIRONMENT"))

	// Store
	v.BindEnv("store.type", l.prefixedEnv("STORE_TYPE"))
	v.BindEnv("store.url", l.prefixedEnv("STORE_URL"))
	v.BindEnv("store.database", l.prefixedEnv("STORE_DATABASE"))
	v.BindEnv("store.collection", l.prefixedEnv("STORE_COLLECTION"))
	v.BindEnv("store.region", l.prefixedEnv("STORE_REGION"), "AWS_REGION")
	v.BindEnv("store.endpoint", l.prefixedEnv("STORE_ENDPOINT"))
	v.BindEnv("store.access_key_id", l.prefixedEnv("STORE_ACCESS_KEY_ID"))
	v.BindEnv("store.secret_access_key", l.prefixedEnv("STORE_SECRET_ACCESS_KEY"))
	v.BindEnv("store.session_token", l.prefixedEnv("STORE_SESSION_TOKEN"))
	v.BindEnv("store.username", l.prefixedEnv("STORE_USERNAME"))
	v.BindEnv("store.password", l.prefixedEnv("STORE_PASSWORD"))
	v.BindEnv("store.connect_timeout", l.prefixedEnv("STORE_CONNECT_TIMEOUT"))
	v.BindEnv("store.operation_timeout", l.prefixedEnv("STORE_OPERATION_TIMEOUT"))
	v.BindEnv("store.text_index_fields", l.prefixedEnv("STORE_TEXT_INDEX_FIELDS"))

	// Checker
	v.BindEnv("checker.startup_delay", l.prefixedEnv("CHECKER_STARTUP_DELAY"))
	v.BindEnv("checker.check_timeout", l.prefixedEnv("CHECKER_CHECK_TIMEOUT"))
	v.BindEnv("checker.extended", l.prefixedEnv("CHECKER_EXTENDED"))
	v.BindEnv("checker.fail_on_error", l.prefixedEnv("CHECKER_FAIL_ON_ERROR"))

	// Observability
	v.BindEnv("observability.log_level", l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("observability.log_format", l.prefixedEnv("LOG_FORMAT"))
	v.BindEnv("observability.tracing_enabled", l.prefixedEnv("TRACING_ENABLED"))
	v.BindEnv("observability.tracing_endpoint", l.prefixedEnv("TRACING_ENDPOINT"))
	v.BindEnv("observability.tracing_sample_rate", l.prefixedEnv("TRACING_SAMPLE_RATE"))
	v.BindEnv("observability.metrics_push_url", l.prefixedEnv("METRICS_PUSH_URL"))
	v.BindEnv("observability.metrics_job", l.prefixedEnv("METRICS_JOB"))
}

func (l *ViperLoader) bindFlags(v *viper.Viper) error {
	if l.flags == nil {
		return nil
	}
	for name, key := range FlagKeys {
		flag := l.flags.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		prefix = "DOCPROBE"
	}
	return fmt.Sprintf("%s_%s", strings.ToUpper(prefix), suffix)
}

func (l *ViperLoader) defaultServiceName(fallback string) string {
	if l != nil {
		if configured := strings.TrimSpace(l.serviceNameDefault); configured != "" {
			return configured
		}
	}
	return strings.TrimSpace(fallback)
}

// setDefaults sets default values in Viper from the default config
func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("service.name", l.defaultServiceName(cfg.Service.Name))
	v.SetDefault("service.environment", cfg.Service.Environment)

	v.SetDefault("store.type", cfg.Store.Type)
	v.SetDefault("store.database", cfg.Store.Database)
	v.SetDefault("store.collection", cfg.Store.Collection)
	v.SetDefault("store.connect_timeout", cfg.Store.ConnectTimeout)
	v.SetDefault("store.operation_timeout", cfg.Store.OperationTimeout)
	v.SetDefault("store.text_index_fields", cfg.Store.TextIndexFields)

	v.SetDefault("checker.startup_delay", cfg.Checker.StartupDelay)
	v.SetDefault("checker.check_timeout", cfg.Checker.CheckTimeout)
	v.SetDefault("checker.extended", cfg.Checker.Extended)
	v.SetDefault("checker.fail_on_error", cfg.Checker.FailOnError)

	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.log_format", cfg.Observability.LogFormat)
	v.SetDefault("observability.tracing_enabled", cfg.Observability.TracingEnabled)
	v.SetDefault("observability.tracing_endpoint", cfg.Observability.TracingEndpoint)
	v.SetDefault("observability.tracing_sample_rate", cfg.Observability.TracingSampleRate)
	v.SetDefault("observability.metrics_job", cfg.Observability.MetricsJob)
}

// Validate normalizes cfg and returns every problem found, joined.
func (l *ViperLoader) Validate(cfg *Config) error {
	var errs []error

	cfg.Store.Type = strings.ToLower(strings.TrimSpace(cfg.Store.Type))
	cfg.Store.TextIndexFields = normalizeStringSlice(cfg.Store.TextIndexFields)
	cfg.Observability.LogLevel = strings.ToLower(strings.TrimSpace(cfg.Observability.LogLevel))
	cfg.Observability.LogFormat = strings.ToLower(strings.TrimSpace(cfg.Observability.LogFormat))

	if strings.TrimSpace(cfg.Service.Name) == "" {
		errs = append(errs, errors.New("service.name is required"))
	}

	validStoreTypes := []string{StoreTypeMemory, StoreTypeMongoDB, StoreTypeDynamoDB}
	if !contains(validStoreTypes, cfg.Store.Type) {
		errs = append(errs, fmt.Errorf("invalid store.type: %s (must be one of: %v)", cfg.Store.Type, validStoreTypes))
	}
	if strings.TrimSpace(cfg.Store.Collection) == "" {
		errs = append(errs, errors.New("store.collection is required"))
	}
	switch cfg.Store.Type {
	case StoreTypeMongoDB:
		if cfg.Store.URL == "" {
			errs = append(errs, errors.New("store.url is required for MongoDB"))
		}
		if cfg.Store.Database == "" {
			errs = append(errs, errors.New("store.database is required for MongoDB"))
		}
	case StoreTypeDynamoDB:
		if cfg.Store.Region == "" {
			errs = append(errs, errors.New("store.region is required for DynamoDB"))
		}
	}
	if len(cfg.Store.TextIndexFields) == 0 {
		errs = append(errs, errors.New("store.text_index_fields must contain at least one field"))
	}
	if cfg.Store.ConnectTimeout < 0 {
		errs = append(errs, errors.New("store.connect_timeout must not be negative"))
	}
	if cfg.Store.OperationTimeout < 0 {
		errs = append(errs, errors.New("store.operation_timeout must not be negative"))
	}

	if cfg.Checker.StartupDelay < 0 {
		errs = append(errs, errors.New("checker.startup_delay must not be negative"))
	}
	if cfg.Checker.CheckTimeout < 0 {
		errs = append(errs, errors.New("checker.check_timeout must not be negative"))
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, cfg.Observability.LogLevel) {
		errs = append(errs, fmt.Errorf("invalid observability.log_level: %s (must be one of: %v)", cfg.Observability.LogLevel, validLogLevels))
	}
	validLogFormats := []string{LogFormatJSON, LogFormatText}
	if !contains(validLogFormats, cfg.Observability.LogFormat) {
		errs = append(errs, fmt.Errorf("invalid observability.log_format: %s (must be one of: %v)", cfg.Observability.LogFormat, validLogFormats))
	}
	if cfg.Observability.TracingEnabled && cfg.Observability.TracingEndpoint == "" {
		errs = append(errs, errors.New("observability.tracing_endpoint is required when tracing is enabled"))
	}
	if cfg.Observability.TracingSampleRate < 0 || cfg.Observability.TracingSampleRate > 1 {
		errs = append(errs, fmt.Errorf("observability.tracing_sample_rate must be between 0 and 1, got %v", cfg.Observability.TracingSampleRate))
	}
	if cfg.Observability.MetricsPushURL != "" && strings.TrimSpace(cfg.Observability.MetricsJob) == "" {
		errs = append(errs, errors.New("observability.metrics_job is required when metrics_push_url is set"))
	}

	return errors.Join(errs...)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func normalizeStringSlice(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
