// Package cli wires configuration, logging and the checklist into the docprobe command.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nimburion/docprobe/pkg/config"
	"github.com/nimburion/docprobe/pkg/observability/logger"
	"github.com/nimburion/docprobe/pkg/repository/document"
	"github.com/nimburion/docprobe/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// CommandOptions configures the root command.
type CommandOptions struct {
	Name        string
	Description string
	ConfigPath  string
	EnvPrefix   string

	// Optional: replaces the store selected by configuration.
	Adapter document.Adapter

	// Optional: custom config validation, run after the built-in one.
	ValidateConfig func(cfg *config.Config) error

	// Optional: additional custom commands.
	CustomCommands []*cobra.Command
}

type rootFlags struct {
	cfgPath             string
	secretFilePath      string
	serviceNameOverride string
	showSecrets         bool
}

// NewRootCommand creates the docprobe CLI: run (default), healthcheck, version and config.
func NewRootCommand(opts CommandOptions) *cobra.Command {
	if opts.Name == "" {
		opts.Name = "docprobe"
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = "DOCPROBE"
	}
	if opts.Description == "" {
		opts.Description = "Exercise a document store through a CRUD checklist"
	}

	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.cfgPath, "config-file", "c", opts.ConfigPath, "config file path")
	pf.StringVar(&flags.secretFilePath, "secret-file", "", "path to secrets file (sets "+resolveEnvPrefix(opts.EnvPrefix)+"_SECRETS_FILE)")
	pf.StringVar(&flags.serviceNameOverride, "service-name", "", "service name override")
	registerConfigFlags(pf)

	loadConfig := func(cmd *cobra.Command) (*config.Config, logger.Logger, error) {
		return loadConfigAndLogger(opts, flags, cmd.Flags(), cmd.ErrOrStderr())
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the CRUD checklist against the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runChecks(cmd.Context(), cfg, log, opts.Adapter, cmd.OutOrStdout())
		},
	}
	rootCmd.AddCommand(runCmd)
	rootCmd.RunE = runCmd.RunE

	rootCmd.AddCommand(&cobra.Command{
		Use:   "healthcheck",
		Short: "Check connectivity to the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return checkHealth(cmd.Context(), cfg, log, opts.Adapter, cmd.OutOrStdout())
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Current(opts.Name)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Service:    %s\n", info.Service)
			fmt.Fprintf(out, "Version:    %s\n", info.Version)
			fmt.Fprintf(out, "Commit:     %s\n", info.Commit)
			fmt.Fprintf(out, "Build Time: %s\n", info.BuildTime)
		},
	})

	rootCmd.AddCommand(newConfigCommand(opts, flags))

	for _, customCmd := range opts.CustomCommands {
		rootCmd.AddCommand(customCmd)
	}
	return rootCmd
}

func newConfigCommand(opts CommandOptions, flags *rootFlags) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := loadWithSecrets(opts, flags, cmd.Flags()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	})

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, secrets, err := loadWithSecrets(opts, flags, cmd.Flags())
			if err != nil {
				return err
			}
			var settings any = cfg.Redacted(secrets)
			if flags.showSecrets {
				settings = cfg
			}
			formatted, err := formatSettings(settings)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatted)
			return nil
		},
	}
	showCmd.Flags().BoolVar(&flags.showSecrets, "show-secrets", false, "show secret values")
	configCmd.AddCommand(showCmd)

	return configCmd
}

func registerConfigFlags(fs *pflag.FlagSet) {
	fs.String("store-type", "", "document store: memory, mongodb or dynamodb")
	fs.String("store-url", "", "store connection URL")
	fs.String("store-database", "", "database name")
	fs.String("store-collection", "", "collection or table name")
	fs.Bool("extended", false, "also run the query, search, update and bulk checks")
	fs.Duration("check-timeout", 0, "timeout for a single check")
	fs.Duration("startup-delay", 0, "wait after connecting before the first check")
	fs.String("log-level", "", "log level: debug, info, warn or error")
	fs.String("log-format", "", "log format: text or json")
}

func loadWithSecrets(opts CommandOptions, flags *rootFlags, fs *pflag.FlagSet) (*config.Config, *config.Config, error) {
	if err := applySecretFileFlag(opts.EnvPrefix, flags.secretFilePath); err != nil {
		return nil, nil, err
	}
	loader := config.NewViperLoader(flags.cfgPath, opts.EnvPrefix).
		WithServiceNameDefault(opts.Name).
		WithFlags(fs)
	cfg, secrets, err := loader.LoadWithSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Name = resolveServiceNameValue(cfg.Service.Name, opts.Name, flags.serviceNameOverride)

	if opts.ValidateConfig != nil {
		if err := opts.ValidateConfig(cfg); err != nil {
			return nil, nil, fmt.Errorf("custom validation failed: %w", err)
		}
	}
	return cfg, secrets, nil
}

// loadConfigAndLogger loads the configuration and builds the logger it describes.
// Logs go to logOut so the report on stdout stays readable.
func loadConfigAndLogger(opts CommandOptions, flags *rootFlags, fs *pflag.FlagSet, logOut io.Writer) (*config.Config, logger.Logger, error) {
	cfg, _, err := loadWithSecrets(opts, flags, fs)
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.NewZapLogger(logger.Config{
		Level:  logger.LogLevel(cfg.Observability.LogLevel),
		Format: logger.LogFormat(cfg.Observability.LogFormat),
		Output: logOut,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	logConfigIfDebug(log, cfg)
	return cfg, log, nil
}

func applySecretFileFlag(envPrefix, secretFilePath string) error {
	if secretFilePath == "" {
		return nil
	}
	info, err := os.Stat(secretFilePath)
	if err != nil {
		return fmt.Errorf("secret file %s is not accessible: %w", secretFilePath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("secret file %s must not be a directory", secretFilePath)
	}
	return os.Setenv(resolveEnvPrefix(envPrefix)+"_SECRETS_FILE", filepath.Clean(secretFilePath))
}

func formatSettings(settings any) (string, error) {
	if settings == nil {
		return "{}\n", nil
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}

// Execute builds the default command, runs it and exits non-zero on error.
func Execute() {
	ExecuteCommand(context.Background(), NewRootCommand(CommandOptions{}))
}

// ExecuteCommand runs cmd and exits with an appropriate code.
func ExecuteCommand(ctx context.Context, cmd *cobra.Command) {
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func logConfigIfDebug(log logger.Logger, cfg *config.Config) {
	if log == nil || cfg == nil {
		return
	}
	if !strings.EqualFold(cfg.Observability.LogLevel, string(logger.DebugLevel)) {
		return
	}
	log.Debug("effective configuration", "config", cfg.Redacted(nil))
}

func resolveEnvPrefix(prefix string) string {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		return "DOCPROBE"
	}
	return strings.ToUpper(trimmed)
}

func resolveServiceNameValue(currentConfigName, defaultServiceName, serviceNameOverride string) string {
	if override := strings.TrimSpace(serviceNameOverride); override != "" {
		return override
	}
	if configured := strings.TrimSpace(currentConfigName); configured != "" {
		return configured
	}
	if fallback := strings.TrimSpace(defaultServiceName); fallback != "" {
		return fallback
	}
	return "docprobe"
}
