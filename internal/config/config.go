package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/teemow/inboxbridge/internal/instrumentation"
)

// Transport names accepted by the serve command.
const (
	TransportStdio          = "stdio"
	TransportStreamableHTTP = "streamable-http"
)

// Defaults.
const (
	DefaultTokenFile       = "token.json"
	DefaultCredentialsFile = "credentials.json"
	DefaultCallbackHost    = "localhost"
	DefaultAuthTimeout     = 5 * time.Minute
	DefaultHTTPAddr        = "127.0.0.1:8080"
	DefaultMetricsAddr     = "127.0.0.1:9090"
	DefaultLogLevel        = "info"
)

// Config is the full set of inboxbridge settings.
type Config struct {
	Auth    AuthConfig    `toml:"auth"`
	Server  ServerConfig  `toml:"server"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`

	Instrumentation InstrumentationConfig `toml:"instrumentation"`
}

// AuthConfig controls where credentials live and how the interactive
// authorization flow behaves.
type AuthConfig struct {
	// TokenFile holds the persisted user credential. Relative paths are
	// resolved against the working directory.
	TokenFile string `toml:"token_file"`

	// CredentialsFile is the OAuth client secrets JSON downloaded from the
	// Google Cloud console.
	CredentialsFile string `toml:"credentials_file"`

	// CallbackHost and CallbackPort select the loopback address of the
	// authorization callback listener. Port 0 picks an ephemeral port.
	CallbackHost string `toml:"callback_host"`
	CallbackPort int    `toml:"callback_port"`

	// ForceConsent sends prompt=consent on every interactive
	// authorization, which makes Google reissue a refresh token.
	ForceConsent bool `toml:"force_consent"`

	// Timeout bounds how long the flow waits for the browser callback.
	Timeout Duration `toml:"timeout"`

	// OpenBrowser launches the system browser with the consent URL.
	OpenBrowser bool `toml:"open_browser"`
}

// ServerConfig controls the MCP server.
type ServerConfig struct {
	Transport string `toml:"transport"`
	HTTPAddr  string `toml:"http_addr"`

	// ReadOnly omits the tools that send mail or create events.
	ReadOnly bool `toml:"read_only"`

	// WatchToken drops memoized API clients when the token file changes
	// on disk, e.g. after running "inboxbridge auth login".
	WatchToken bool `toml:"watch_token"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// MetricsConfig holds configuration for the metrics server.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// InstrumentationConfig controls OpenTelemetry metrics and tracing and
// the tool audit log.
type InstrumentationConfig struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`

	// MetricsExporter is one of prometheus, otlp or stdout.
	MetricsExporter string `toml:"metrics_exporter"`

	// TracingExporter is one of otlp, stdout or none.
	TracingExporter string `toml:"tracing_exporter"`

	OTLPEndpoint      string  `toml:"otlp_endpoint"`
	OTLPInsecure      bool    `toml:"otlp_insecure"`
	TraceSamplingRate float64 `toml:"trace_sampling_rate"`

	AuditEnabled          bool `toml:"audit_enabled"`
	AuditIncludeRemoteIDs bool `toml:"audit_include_remote_ids"`
}

func instrumentationDefaults() InstrumentationConfig {
	d := instrumentation.DefaultConfig()
	return InstrumentationConfig{
		Enabled:               d.Enabled,
		ServiceName:           d.ServiceName,
		MetricsExporter:       d.MetricsExporter,
		TracingExporter:       d.TracingExporter,
		OTLPEndpoint:          d.OTLPEndpoint,
		OTLPInsecure:          d.OTLPInsecure,
		TraceSamplingRate:     d.TraceSamplingRate,
		AuditEnabled:          d.Audit.Enabled,
		AuditIncludeRemoteIDs: d.Audit.IncludeRemoteIDs,
	}
}

// Settings converts c into the instrumentation provider configuration.
func (c InstrumentationConfig) Settings(serviceVersion string) instrumentation.Config {
	return instrumentation.Config{
		ServiceName:       c.ServiceName,
		ServiceVersion:    serviceVersion,
		Enabled:           c.Enabled,
		MetricsExporter:   c.MetricsExporter,
		TracingExporter:   c.TracingExporter,
		OTLPEndpoint:      c.OTLPEndpoint,
		OTLPInsecure:      c.OTLPInsecure,
		TraceSamplingRate: c.TraceSamplingRate,
		Audit: instrumentation.AuditConfig{
			Enabled:          c.AuditEnabled,
			IncludeRemoteIDs: c.AuditIncludeRemoteIDs,
		},
	}
}

// Duration is a time.Duration that reads and writes as a Go duration
// string ("90s", "5m") in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		Auth: AuthConfig{
			TokenFile:       DefaultTokenFile,
			CredentialsFile: DefaultCredentialsFile,
			CallbackHost:    DefaultCallbackHost,
			CallbackPort:    0,
			ForceConsent:    false,
			Timeout:         Duration(DefaultAuthTimeout),
			OpenBrowser:     true,
		},
		Server: ServerConfig{
			Transport:  TransportStdio,
			HTTPAddr:   DefaultHTTPAddr,
			WatchToken: true,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    DefaultMetricsAddr,
		},
		Instrumentation: instrumentationDefaults(),
	}
}

// DefaultPath returns the location searched for a config file when none
// is given explicitly.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "inboxbridge", "config.toml")
}

// Load builds a Config from defaults, the TOML file at path and the
// environment. An empty path tries DefaultPath and silently skips it when
// absent; an explicit path that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		err := cfg.mergeFile(path)
		if err != nil && (explicit || !errors.Is(err, os.ErrNotExist)) {
			return nil, err
		}
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variables. lookup is os.LookupEnv outside
// of tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	boolean := func(dst *bool, key string) {
		if v, ok := lookup(key); ok && v != "" {
			if parsed, err := strconv.ParseBool(v); err == nil {
				*dst = parsed
			}
		}
	}

	str(&c.Auth.TokenFile, "INBOXBRIDGE_TOKEN_FILE")
	str(&c.Auth.CredentialsFile, "INBOXBRIDGE_CREDENTIALS_FILE")
	str(&c.Auth.CallbackHost, "INBOXBRIDGE_CALLBACK_HOST")
	if v, ok := lookup("INBOXBRIDGE_CALLBACK_PORT"); ok && v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Auth.CallbackPort = port
		}
	}
	boolean(&c.Auth.ForceConsent, "INBOXBRIDGE_FORCE_CONSENT")
	boolean(&c.Auth.OpenBrowser, "INBOXBRIDGE_OPEN_BROWSER")
	if v, ok := lookup("INBOXBRIDGE_AUTH_TIMEOUT"); ok && v != "" {
		var d Duration
		if err := d.UnmarshalText([]byte(v)); err == nil {
			c.Auth.Timeout = d
		}
	}

	str(&c.Server.Transport, "INBOXBRIDGE_TRANSPORT")
	str(&c.Server.HTTPAddr, "INBOXBRIDGE_HTTP_ADDR")
	boolean(&c.Server.ReadOnly, "INBOXBRIDGE_READ_ONLY")
	boolean(&c.Server.WatchToken, "INBOXBRIDGE_WATCH_TOKEN")

	str(&c.Log.Level, "INBOXBRIDGE_LOG_LEVEL")

	boolean(&c.Metrics.Enabled, "METRICS_ENABLED")
	str(&c.Metrics.Addr, "METRICS_ADDR")

	boolean(&c.Instrumentation.Enabled, "INSTRUMENTATION_ENABLED")
	str(&c.Instrumentation.ServiceName, "OTEL_SERVICE_NAME")
	str(&c.Instrumentation.MetricsExporter, "METRICS_EXPORTER")
	str(&c.Instrumentation.TracingExporter, "TRACING_EXPORTER")
	str(&c.Instrumentation.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	boolean(&c.Instrumentation.OTLPInsecure, "OTEL_EXPORTER_OTLP_INSECURE")
	if v, ok := lookup("OTEL_TRACES_SAMPLER_ARG"); ok && v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			c.Instrumentation.TraceSamplingRate = rate
		}
	}
	boolean(&c.Instrumentation.AuditEnabled, "AUDIT_LOGGING_ENABLED")
	boolean(&c.Instrumentation.AuditIncludeRemoteIDs, "AUDIT_LOGGING_INCLUDE_REMOTE_IDS")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.TokenFile) == "" {
		return fmt.Errorf("auth.token_file must not be empty")
	}
	if strings.TrimSpace(c.Auth.CredentialsFile) == "" {
		return fmt.Errorf("auth.credentials_file must not be empty")
	}
	if c.Auth.CallbackPort < 0 || c.Auth.CallbackPort > 65535 {
		return fmt.Errorf("auth.callback_port must be between 0 and 65535, got %d", c.Auth.CallbackPort)
	}
	if !isLoopbackHost(c.Auth.CallbackHost) {
		return fmt.Errorf("auth.callback_host must be a loopback host, got %q", c.Auth.CallbackHost)
	}
	if c.Auth.Timeout.Std() <= 0 {
		return fmt.Errorf("auth.timeout must be positive, got %s", c.Auth.Timeout.Std())
	}
	switch c.Server.Transport {
	case TransportStdio, TransportStreamableHTTP:
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: %s, %s)", c.Server.Transport, TransportStdio, TransportStreamableHTTP)
	}
	settings := c.Instrumentation.Settings("")
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("instrumentation: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func isLoopbackHost(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
