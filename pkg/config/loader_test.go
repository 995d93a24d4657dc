package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

func clearDocprobeEnv() {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "DOCPROBE_") {
			key := strings.Split(env, "=")[0]
			os.Unsetenv(key)
		}
	}
}

func writeConfigFile(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	raw, err := yaml.Marshal(data)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Service.Name != "docprobe" {
		t.Errorf("expected service name docprobe, got %s", cfg.Service.Name)
	}
	if cfg.Store.Type != StoreTypeMemory {
		t.Errorf("expected store type memory, got %s", cfg.Store.Type)
	}
	if cfg.Store.Collection != "posts" {
		t.Errorf("expected collection posts, got %s", cfg.Store.Collection)
	}
	if cfg.Checker.StartupDelay != 500*time.Millisecond {
		t.Errorf("expected startup delay 500ms, got %v", cfg.Checker.StartupDelay)
	}
	if !cfg.Checker.FailOnError {
		t.Error("expected fail_on_error to default to true")
	}
	if cfg.Observability.LogLevel != "info" || cfg.Observability.LogFormat != LogFormatText {
		t.Errorf("unexpected log defaults %s/%s", cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	}
}

func TestViperLoader_LoadDefaults(t *testing.T) {
	clearDocprobeEnv()
	cfg, err := NewViperLoader("", "DOCPROBE").Load()
	if err != nil {
		t.Fatalf("expected no error loading defaults, got: %v", err)
	}
	if cfg.Store.Type != StoreTypeMemory || cfg.Store.OperationTimeout != 5*time.Second {
		t.Errorf("unexpected store defaults: %+v", cfg.Store)
	}
	if strings.Join(cfg.Store.TextIndexFields, ",") != "title,content" {
		t.Errorf("expected text index on title,content, got %v", cfg.Store.TextIndexFields)
	}
}

func TestViperLoader_WithServiceNameDefault(t *testing.T) {
	clearDocprobeEnv()
	cfg, err := NewViperLoader("", "DOCPROBE").WithServiceNameDefault(" blog-probe ").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "blog-probe" {
		t.Errorf("expected service name blog-probe, got %s", cfg.Service.Name)
	}
}

func TestViperLoader_LoadWithEnvOverride(t *testing.T) {
	clearDocprobeEnv()
	t.Setenv("DOCPROBE_STORE_TYPE", "MongoDB")
	t.Setenv("DOCPROBE_STORE_URL", "mongodb://localhost:27017")
	t.Setenv("DOCPROBE_STORE_DATABASE", "blog")
	t.Setenv("DOCPROBE_STORE_TEXT_INDEX_FIELDS", "title,body")
	t.Setenv("DOCPROBE_CHECKER_EXTENDED", "true")
	t.Setenv("DOCPROBE_CHECKER_CHECK_TIMEOUT", "3s")
	t.Setenv("DOCPROBE_LOG_LEVEL", "debug")
	t.Setenv("DOCPROBE_ENVIRONMENT", "ci")

	cfg, err := NewViperLoader("", "DOCPROBE").Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.Store.Type != StoreTypeMongoDB {
		t.Errorf("expected normalized store type mongodb, got %s", cfg.Store.Type)
	}
	if cfg.Store.Database != "blog" || cfg.Store.URL != "mongodb://localhost:27017" {
		t.Errorf("unexpected store config %+v", cfg.Store)
	}
	if strings.Join(cfg.Store.TextIndexFields, ",") != "title,body" {
		t.Errorf("expected text index fields title,body, got %v", cfg.Store.TextIndexFields)
	}
	if !cfg.Checker.Extended || cfg.Checker.CheckTimeout != 3*time.Second {
		t.Errorf("unexpected checker config %+v", cfg.Checker)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Observability.LogLevel)
	}
	if cfg.Service.Environment != "ci" {
		t.Errorf("expected environment ci, got %s", cfg.Service.Environment)
	}
}

func TestViperLoader_FlagsOverrideEnv(t *testing.T) {
	clearDocprobeEnv()
	t.Setenv("DOCPROBE_LOG_LEVEL", "warn")
	t.Setenv("DOCPROBE_STORE_COLLECTION", "from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.String("store-collection", "posts", "")
	flags.Bool("extended", false, "")
	if err := flags.Parse([]string{"--log-level=error", "--extended"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := NewViperLoader("", "DOCPROBE").WithFlags(flags).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Observability.LogLevel != "error" {
		t.Errorf("expected flag log level error, got %s", cfg.Observability.LogLevel)
	}
	if !cfg.Checker.Extended {
		t.Error("expected --extended to enable extended checks")
	}
	if cfg.Store.Collection != "from-env" {
		t.Errorf("unset flag must not override env, got %s", cfg.Store.Collection)
	}
}

func TestViperLoader_LoadFromFile(t *testing.T) {
	clearDocprobeEnv()
	path := writeConfigFile(t, t.TempDir(), "config.yaml", map[string]any{
		"store": map[string]any{
			"type":       "dynamodb",
			"region":     "eu-west-1",
			"endpoint":   "http://localhost:8000",
			"collection": "articles",
		},
		"checker": map[string]any{"startup_delay": "0s"},
	})

	cfg, err := NewViperLoader(path, "DOCPROBE").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Type != StoreTypeDynamoDB || cfg.Store.Region != "eu-west-1" || cfg.Store.Collection != "articles" {
		t.Errorf("unexpected store config %+v", cfg.Store)
	}
	if cfg.Checker.StartupDelay != 0 {
		t.Errorf("expected startup delay 0, got %v", cfg.Checker.StartupDelay)
	}
}

func TestViperLoader_MissingFile(t *testing.T) {
	if _, err := NewViperLoader(filepath.Join(t.TempDir(), "missing.yaml"), "DOCPROBE").Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestViperLoader_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   []string
	}{
		{
			name:   "unknown store type",
			mutate: func(c *Config) { c.Store.Type = "cassandra" },
			want:   []string{"invalid store.type"},
		},
		{
			name:   "mongodb without url and database",
			mutate: func(c *Config) { c.Store.Type = StoreTypeMongoDB; c.Store.Database = "" },
			want:   []string{"store.url is required", "store.database is required"},
		},
		{
			name:   "dynamodb without region",
			mutate: func(c *Config) { c.Store.Type = StoreTypeDynamoDB },
			want:   []string{"store.region is required"},
		},
		{
			name:   "blank text index fields",
			mutate: func(c *Config) { c.Store.TextIndexFields = []string{" ", ""} },
			want:   []string{"store.text_index_fields"},
		},
		{
			name: "negative durations",
			mutate: func(c *Config) {
				c.Checker.StartupDelay = -time.Second
				c.Checker.CheckTimeout = -time.Second
			},
			want: []string{"checker.startup_delay", "checker.check_timeout"},
		},
		{
			name: "observability",
			mutate: func(c *Config) {
				c.Observability.LogLevel = "trace"
				c.Observability.LogFormat = "xml"
				c.Observability.TracingEnabled = true
				c.Observability.TracingEndpoint = ""
				c.Observability.TracingSampleRate = 2
				c.Observability.MetricsPushURL = "http://push:9091"
				c.Observability.MetricsJob = ""
			},
			want: []string{
				"observability.log_level",
				"observability.log_format",
				"tracing_endpoint is required",
				"tracing_sample_rate",
				"metrics_job is required",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := NewViperLoader("", "DOCPROBE").Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			for _, want := range tt.want {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err, want)
				}
			}
		})
	}
}

func TestViperLoader_ValidConfiguration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Type = " MongoDB "
	cfg.Store.URL = "mongodb://localhost:27017"
	if err := NewViperLoader("", "DOCPROBE").Validate(cfg); err != nil {
		t.Fatalf("expected valid configuration, got %v", err)
	}
	if cfg.Store.Type != StoreTypeMongoDB {
		t.Errorf("expected normalized store type, got %q", cfg.Store.Type)
	}
}

func TestViperLoader_LoadWithSecrets(t *testing.T) {
	clearDocprobeEnv()
	dir := t.TempDir()
	configPath := writeConfigFile(t, dir, "config.yaml", map[string]any{
		"store": map[string]any{"type": "mongodb", "database": "blog"},
	})
	writeConfigFile(t, dir, "secrets.yaml", map[string]any{
		"store": map[string]any{"url": "mongodb://user:pass@db:27017", "password": "hunter2"},
	})

	cfg, secrets, err := NewViperLoader(configPath, "DOCPROBE").LoadWithSecrets()
	if err != nil {
		t.Fatalf("LoadWithSecrets() error = %v", err)
	}
	if cfg.Store.URL != "mongodb://user:pass@db:27017" || cfg.Store.Password != "hunter2" {
		t.Errorf("secrets not merged: %+v", cfg.Store)
	}
	if secrets == nil || secrets.Store.Password != "hunter2" || secrets.Store.Database != "" {
		t.Errorf("unexpected secrets config %+v", secrets)
	}
}

func TestViperLoader_SecretsFileFromEnv(t *testing.T) {
	clearDocprobeEnv()
	dir := t.TempDir()
	secretsPath := writeConfigFile(t, dir, "creds.yaml", map[string]any{
		"store": map[string]any{"session_token": "tok"},
	})
	t.Setenv("DOCPROBE_SECRETS_FILE", secretsPath)

	cfg, secrets, err := NewViperLoader("", "DOCPROBE").LoadWithSecrets()
	if err != nil {
		t.Fatalf("LoadWithSecrets() error = %v", err)
	}
	if cfg.Store.SessionToken != "tok" || secrets.Store.SessionToken != "tok" {
		t.Errorf("secrets file from env not loaded: %+v", cfg.Store)
	}

	t.Setenv("DOCPROBE_SECRETS_FILE", dir)
	if _, _, err := NewViperLoader("", "DOCPROBE").LoadWithSecrets(); err == nil {
		t.Error("expected error when the secrets path is a directory")
	}
	t.Setenv("DOCPROBE_SECRETS_FILE", " ")
	if _, _, err := NewViperLoader("", "DOCPROBE").LoadWithSecrets(); err == nil {
		t.Error("expected error when the secrets path is empty")
	}
}

func TestRedacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.URL = "mongodb://user:pass@db"
	cfg.Store.Username = "reader"
	secrets := &Config{Store: StoreConfig{Username: "reader"}}

	out := cfg.Redacted(secrets)
	store := out["store"].(map[string]any)
	if store["url"] != RedactedValue {
		t.Errorf("url not redacted: %v", store["url"])
	}
	if store["username"] != RedactedValue {
		t.Errorf("username from secrets file not redacted: %v", store["username"])
	}
	if store["password"] != "" {
		t.Errorf("empty password should stay empty, got %v", store["password"])
	}
	if store["operation_timeout"] != "5s" {
		t.Errorf("durations should render as strings, got %v", store["operation_timeout"])
	}
	if out["service"].(map[string]any)["name"] != "docprobe" {
		t.Errorf("unexpected service section %v", out["service"])
	}

	raw, err := yaml.Marshal(cfg.Redacted(nil))
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	if strings.Contains(string(raw), "user:pass") {
		t.Errorf("redacted YAML leaks credentials:\n%s", raw)
	}
}

func TestContains(t *testing.T) {
	if !contains([]string{"a", "b"}, "b") || contains([]string{"a"}, "c") || contains(nil, "a") {
		t.Fatal("contains() misreports membership")
	}
}

func TestProperty_ConfigurationPrecedence(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 25
	properties := gopter.NewProperties(params)

	genLogLevel := gen.OneConstOf("debug", "info", "warn", "error")
	genTimeout := gen.IntRange(1, 300).Map(func(seconds int) time.Duration {
		return time.Duration(seconds) * time.Second
	})
	dir := t.TempDir()

	properties.Property("ENV overrides file and defaults", prop.ForAll(
		func(envLevel, fileLevel string, envTimeout, fileTimeout time.Duration) bool {
			clearDocprobeEnv()
			defer clearDocprobeEnv()

			path := writeConfigFile(t, dir, "precedence.yaml", map[string]any{
				"checker":       map[string]any{"check_timeout": fileTimeout.String()},
				"observability": map[string]any{"log_level": fileLevel},
			})
			os.Setenv("DOCPROBE_CHECKER_CHECK_TIMEOUT", envTimeout.String())
			os.Setenv("DOCPROBE_LOG_LEVEL", envLevel)

			cfg, err := NewViperLoader(path, "DOCPROBE").Load()
			if err != nil {
				t.Logf("Load error: %v", err)
				return false
			}
			return cfg.Checker.CheckTimeout == envTimeout && cfg.Observability.LogLevel == envLevel
		},
		genLogLevel, genLogLevel, genTimeout, genTimeout,
	))

	properties.Property("file overrides defaults when ENV not set", prop.ForAll(
		func(fileLevel string, fileTimeout time.Duration) bool {
			clearDocprobeEnv()

			path := writeConfigFile(t, dir, "file.yaml", map[string]any{
				"checker":       map[string]any{"check_timeout": fileTimeout.String()},
				"observability": map[string]any{"log_level": fileLevel},
			})
			cfg, err := NewViperLoader(path, "DOCPROBE").Load()
			if err != nil {
				return false
			}
			return cfg.Checker.CheckTimeout == fileTimeout && cfg.Observability.LogLevel == fileLevel
		},
		genLogLevel, genTimeout,
	))

	properties.TestingRun(t)
}

func TestProperty_ValidationReportsEveryProblem(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 50
	properties := gopter.NewProperties(params)

	properties.Property("each broken section adds one joined error", prop.ForAll(
		func(badType, badLevel, badFormat bool) bool {
			cfg := DefaultConfig()
			want := 0
			if badType {
				cfg.Store.Type = "nope"
				want++
			}
			if badLevel {
				cfg.Observability.LogLevel = "loud"
				want++
			}
			if badFormat {
				cfg.Observability.LogFormat = "xml"
				want++
			}
			err := NewViperLoader("", "DOCPROBE").Validate(cfg)
			if want == 0 {
				return err == nil
			}
			var joined interface{ Unwrap() []error }
			if !errors.As(err, &joined) {
				return false
			}
			return len(joined.Unwrap()) == want
		},
		gen.Bool(), gen.Bool(), gen.Bool(),
	))

	properties.TestingRun(t)
}

func ExampleViperLoader_Load() {
	os.Setenv("DOCPROBE_STORE_COLLECTION", "articles")
	defer os.Unsetenv("DOCPROBE_STORE_COLLECTION")

	cfg, err := NewViperLoader("", "DOCPROBE").Load()
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(cfg.Store.Type, cfg.Store.Collection)
	// Output: memory articles
}
