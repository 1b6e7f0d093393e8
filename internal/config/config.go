package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Config is the root configuration for the panel daemon.
type Config struct {
	General   GeneralConfig   `json:"general"`
	Server    ServerConfig    `json:"server"`
	Gateway   GatewayConfig   `json:"gateway"`
	Webhook   WebhookConfig   `json:"webhook"`
	Relay     RelayConfig     `json:"relay"`
	Database  DatabaseConfig  `json:"database"`
	AutoReply AutoReplyConfig `json:"autoReply"`
	Watcher   WatcherConfig   `json:"watcher"`
	Metrics   MetricsConfig   `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"`
}

// ServerConfig configures the admin HTTP server (API + webhook + relay).
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// GatewayConfig points at the external Evolution-style gateway. URL and APIKey
// can also come from EVOPANEL_GATEWAY_URL / EVOPANEL_GATEWAY_APIKEY.
type GatewayConfig struct {
	URL             string `json:"url" envconfig:"URL"`
	APIKey          string `json:"apiKey" envconfig:"APIKEY"`
	TimeoutSeconds  int    `json:"timeoutSeconds" envconfig:"TIMEOUT_SECONDS"`
	DefaultInstance string `json:"defaultInstance" envconfig:"DEFAULT_INSTANCE"`
}

type WebhookConfig struct {
	Path   string `json:"path"`
	Secret string `json:"secret,omitempty"` // empty disables signature checks
}

type RelayConfig struct {
	Path string `json:"path"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

// AutoReplyConfig controls the canned-reply responder.
type AutoReplyConfig struct {
	Enabled       bool   `json:"enabled"`
	Template      string `json:"template"`
	TemplatesPath string `json:"templatesPath,omitempty"`
}

// WatcherConfig bounds the connection-state poller.
type WatcherConfig struct {
	IntervalMs  int `json:"intervalMs"`
	MaxAttempts int `json:"maxAttempts"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.evopanel).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".evopanel"
	}
	return filepath.Join(home, ".evopanel")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.AutoReply.TemplatesPath = ExpandPath(cfg.AutoReply.TemplatesPath)

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overlays EVOPANEL_GATEWAY_* environment variables onto the gateway
// section, so the daemon can run against a gateway without a config file edit.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process("EVOPANEL_GATEWAY", &cfg.Gateway); err != nil {
		return fmt.Errorf("gateway env overlay: %w", err)
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}

	if cfg.Gateway.TimeoutSeconds < 1 {
		errs = append(errs, "gateway.timeoutSeconds must be >= 1")
	}
	if cfg.Gateway.URL != "" && !strings.HasPrefix(cfg.Gateway.URL, "http") {
		errs = append(errs, "gateway.url must be an http(s) URL")
	}

	if !strings.HasPrefix(cfg.Webhook.Path, "/") {
		errs = append(errs, "webhook.path must start with /")
	}
	if !strings.HasPrefix(cfg.Relay.Path, "/") {
		errs = append(errs, "relay.path must start with /")
	}

	if cfg.Watcher.IntervalMs < 100 {
		errs = append(errs, "watcher.intervalMs must be >= 100")
	}
	if cfg.Watcher.MaxAttempts < 1 {
		errs = append(errs, "watcher.maxAttempts must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Warnings reports non-fatal misconfigurations. An unconfigured gateway is
// legal (the panel still serves the webhook and relay) but every send and
// instance call will fail, so startup must say so instead of degrading
// silently.
func Warnings(cfg *Config) []string {
	var warns []string
	if cfg.Gateway.URL == "" {
		warns = append(warns, "gateway.url is empty (set it in the config file or via EVOPANEL_GATEWAY_URL); sends and instance commands will fail")
	}
	if cfg.Gateway.URL != "" && cfg.Gateway.APIKey == "" {
		warns = append(warns, "gateway.apiKey is empty (set it in the config file or via EVOPANEL_GATEWAY_APIKEY)")
	}
	return warns
}

// LogLevel maps general.logLevel to a slog level, defaulting to info.
func LogLevel(cfg *Config) slog.Level {
	switch cfg.General.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
