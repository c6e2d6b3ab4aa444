package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/teemow/inboxbridge/internal/config"
	"github.com/teemow/inboxbridge/internal/google"
	"github.com/teemow/inboxbridge/internal/logging"
)

// Persistent flag names shared by every command.
const (
	flagConfig          = "config"
	flagDebug           = "debug"
	flagTokenFile       = "token-file"
	flagCredentialsFile = "credentials-file"
)

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String(flagConfig, "", fmt.Sprintf("Path to a TOML config file (default %s)", config.DefaultPath()))
	cmd.PersistentFlags().Bool(flagDebug, false, "Enable debug logging")
	cmd.PersistentFlags().String(flagTokenFile, config.DefaultTokenFile, "Path of the stored OAuth token (env: INBOXBRIDGE_TOKEN_FILE)")
	cmd.PersistentFlags().String(flagCredentialsFile, config.DefaultCredentialsFile, "Path of the OAuth client secrets JSON (env: INBOXBRIDGE_CREDENTIALS_FILE)")
}

// loadConfig resolves the effective configuration for cmd. Flags only
// override file and environment values when set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	path, _ := flags.GetString(flagConfig)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	overrideString(flags, flagTokenFile, &cfg.Auth.TokenFile)
	overrideString(flags, flagCredentialsFile, &cfg.Auth.CredentialsFile)
	overrideString(flags, "transport", &cfg.Server.Transport)
	overrideString(flags, "http-addr", &cfg.Server.HTTPAddr)
	overrideBool(flags, "read-only", &cfg.Server.ReadOnly)
	overrideBool(flags, "watch-token", &cfg.Server.WatchToken)
	overrideBool(flags, "metrics-enabled", &cfg.Metrics.Enabled)
	overrideString(flags, "metrics-addr", &cfg.Metrics.Addr)
	overrideBool(flags, "force-consent", &cfg.Auth.ForceConsent)
	if f := flags.Lookup("no-browser"); f != nil && f.Changed {
		noBrowser, _ := flags.GetBool("no-browser")
		cfg.Auth.OpenBrowser = !noBrowser
	}
	if debug, _ := flags.GetBool(flagDebug); debug {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideString(flags *pflag.FlagSet, name string, dst *string) {
	f := flags.Lookup(name)
	if f == nil || !f.Changed {
		return
	}
	*dst = f.Value.String()
}

func overrideBool(flags *pflag.FlagSet, name string, dst *bool) {
	f := flags.Lookup(name)
	if f == nil || !f.Changed {
		return
	}
	v, err := flags.GetBool(name)
	if err == nil {
		*dst = v
	}
}

// newLogger writes to stderr; stdout carries the MCP stdio stream.
func newLogger(cfg *config.Config) *slog.Logger {
	return logging.NewLogger(os.Stderr, cfg.Log.Level)
}

// newCredentialManager wires the token file store and the interactive
// browser flow described by cfg.Auth.
func newCredentialManager(cfg *config.Config, logger *slog.Logger, metrics google.AuthMetrics) (*google.Manager, error) {
	flow := google.NewLocalServerFlow(google.FlowOptions{
		CallbackHost: cfg.Auth.CallbackHost,
		CallbackPort: cfg.Auth.CallbackPort,
		ForceConsent: cfg.Auth.ForceConsent,
		Timeout:      cfg.Auth.Timeout.Std(),
		OpenBrowser:  cfg.Auth.OpenBrowser,
		Out:          os.Stderr,
		Logger:       logger,
	})

	return google.NewManager(google.ManagerConfig{
		Store:             google.NewFileStore(cfg.Auth.TokenFile, logger),
		ClientSecretsFile: cfg.Auth.CredentialsFile,
		Flow:              flow,
		Metrics:           metrics,
		Logger:            logger,
	})
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the inboxbridge configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		Long: `Print the configuration that results from built-in defaults, the config
file, INBOXBRIDGE_* environment variables and flags. The output can be saved
as a starting point for a config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out, err := cfg.Encode()
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})

	return configCmd
}
