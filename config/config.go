// Package config provides CLI configuration management for the viq command-line tool.
// It supports loading configuration from YAML files, environment variables, and command-line flags.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Default configuration values.
const (
	DefaultBaseURL         = "http://127.0.0.1:8000"
	DefaultTimeout         = 10 * time.Minute
	DefaultOutputFormat    = OutputFormatText
	DefaultPageSize        = 20
	MaxPageSize            = 500
	DefaultConfigDir       = ".viq"
	DefaultConfigFile      = "config.yaml"
	DefaultDashboardListen = "127.0.0.1:8090"
	DefaultEventsChannel   = "viq.uploads"
	DefaultExportDirectory = "."
)

// TLSConfig holds client TLS settings for the backend connection.
type TLSConfig struct {
	// CACert is the path to a CA certificate for verifying the backend.
	CACert string `yaml:"ca_cert,omitempty"`

	// ClientCert is the path to a client certificate for mTLS.
	ClientCert string `yaml:"client_cert,omitempty"`

	// ClientKey is the path to the client private key for mTLS.
	ClientKey string `yaml:"client_key,omitempty"`

	// SkipVerify disables server certificate verification (insecure, for testing only).
	SkipVerify bool `yaml:"skip_verify,omitempty"`
}

// ResolvePaths expands ~ in certificate paths.
func (c *TLSConfig) ResolvePaths() {
	c.CACert = expandPath(c.CACert)
	c.ClientCert = expandPath(c.ClientCert)
	c.ClientKey = expandPath(c.ClientKey)
}

// IsConfigured reports whether any custom TLS material is set.
func (c *TLSConfig) IsConfigured() bool {
	return c.CACert != "" || c.ClientCert != "" || c.SkipVerify
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path // Return original if home dir lookup fails.
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// EventsConfig holds the optional Redis publisher settings for upload events.
type EventsConfig struct {
	// RedisAddr is host:port of the Redis server. Empty disables publishing.
	RedisAddr string `yaml:"redis_addr,omitempty"`

	// RedisPassword is the optional Redis password.
	RedisPassword string `yaml:"redis_password,omitempty"`

	// Channel is the pub/sub channel upload events are published on.
	Channel string `yaml:"channel,omitempty"`
}

// Enabled reports whether upload events should be published.
func (c *EventsConfig) Enabled() bool {
	return c != nil && c.RedisAddr != ""
}

// GetChannel returns the channel name, defaulting to DefaultEventsChannel.
func (c *EventsConfig) GetChannel() string {
	if c == nil || c.Channel == "" {
		return DefaultEventsChannel
	}
	return c.Channel
}

// CLIConfig holds the CLI configuration settings.
type CLIConfig struct {
	// BaseURL is the root URL of the call-report backend.
	BaseURL string `yaml:"base_url"`

	// Timeout is the default timeout for a single command.
	Timeout time.Duration `yaml:"timeout"`

	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat `yaml:"output_format"`

	// PageSize is the number of reports fetched per page.
	PageSize int `yaml:"page_size"`

	// ExportDir is where exported reports are written.
	ExportDir string `yaml:"export_dir,omitempty"`

	// DashboardListen is the address the local dashboard daemon binds to.
	DashboardListen string `yaml:"dashboard_listen,omitempty"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`

	// LogJSON switches log output to JSON lines.
	LogJSON bool `yaml:"log_json,omitempty"`

	// Insecure disables TLS verification (for development only).
	Insecure bool `yaml:"insecure,omitempty"`

	// Events holds the optional upload event publisher settings.
	Events EventsConfig `yaml:"events,omitempty"`

	// TLS contains the TLS/mTLS configuration settings.
	TLS TLSConfig `yaml:"tls,omitempty"`
}

// DefaultConfig returns a CLIConfig with default values.
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		BaseURL:         DefaultBaseURL,
		Timeout:         DefaultTimeout,
		OutputFormat:    DefaultOutputFormat,
		PageSize:        DefaultPageSize,
		ExportDir:       DefaultExportDirectory,
		DashboardListen: DefaultDashboardListen,
	}
}

// ConfigDir returns the configuration directory path.
// Uses $VIQ_CONFIG_DIR if set, otherwise ~/.viq
func ConfigDir() (string, error) {
	if dir := os.Getenv("VIQ_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the CLI configuration from file and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file (~/.viq/config.yaml or $VIQ_CONFIG_DIR/config.yaml)
// 3. Environment variables (VIQ_BASE_URL, VIQ_TIMEOUT, VIQ_OUTPUT_FORMAT, ...)
func LoadConfig() (*CLIConfig, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// configFile is the on-disk shape; durations are stored as strings.
type configFile struct {
	BaseURL         string       `yaml:"base_url"`
	Timeout         string       `yaml:"timeout"`
	OutputFormat    OutputFormat `yaml:"output_format"`
	PageSize        int          `yaml:"page_size,omitempty"`
	ExportDir       string       `yaml:"export_dir,omitempty"`
	DashboardListen string       `yaml:"dashboard_listen,omitempty"`
	Debug           bool         `yaml:"debug,omitempty"`
	LogJSON         bool         `yaml:"log_json,omitempty"`
	Insecure        bool         `yaml:"insecure,omitempty"`
	Events          EventsConfig `yaml:"events,omitempty"`
	TLS             TLSConfig    `yaml:"tls,omitempty"`
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *CLIConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fileCfg.BaseURL != "" {
		cfg.BaseURL = fileCfg.BaseURL
	}
	if fileCfg.Timeout != "" {
		timeout, err := time.ParseDuration(fileCfg.Timeout)
		if err != nil {
			return fmt.Errorf("parsing timeout: %w", err)
		}
		cfg.Timeout = timeout
	}
	if fileCfg.OutputFormat != "" {
		cfg.OutputFormat = fileCfg.OutputFormat
	}
	if fileCfg.PageSize != 0 {
		cfg.PageSize = fileCfg.PageSize
	}
	if fileCfg.ExportDir != "" {
		cfg.ExportDir = fileCfg.ExportDir
	}
	if fileCfg.DashboardListen != "" {
		cfg.DashboardListen = fileCfg.DashboardListen
	}
	cfg.Debug = fileCfg.Debug
	cfg.LogJSON = fileCfg.LogJSON
	cfg.Insecure = fileCfg.Insecure
	cfg.Events = fileCfg.Events
	cfg.TLS = fileCfg.TLS

	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *CLIConfig) {
	if v := os.Getenv("VIQ_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}

	if v := os.Getenv("VIQ_TIMEOUT"); v != "" {
		if timeout, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = timeout
		}
	}

	if v := os.Getenv("VIQ_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}

	if v := os.Getenv("VIQ_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PageSize = n
		}
	}

	if v := os.Getenv("VIQ_EXPORT_DIR"); v != "" {
		cfg.ExportDir = v
	}

	if v := os.Getenv("VIQ_DASHBOARD_LISTEN"); v != "" {
		cfg.DashboardListen = v
	}

	if v := os.Getenv("VIQ_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}

	if v := os.Getenv("VIQ_LOG_JSON"); v == "true" || v == "1" {
		cfg.LogJSON = true
	}

	if v := os.Getenv("VIQ_INSECURE"); v == "true" || v == "1" {
		cfg.Insecure = true
	}

	// Event publisher environment variables.
	if v := os.Getenv("VIQ_REDIS_ADDR"); v != "" {
		cfg.Events.RedisAddr = v
	}
	if v := os.Getenv("VIQ_REDIS_PASSWORD"); v != "" {
		cfg.Events.RedisPassword = v
	}
	if v := os.Getenv("VIQ_EVENTS_CHANNEL"); v != "" {
		cfg.Events.Channel = v
	}

	// TLS environment variables.
	if v := os.Getenv("VIQ_TLS_CA_CERT"); v != "" {
		cfg.TLS.CACert = v
	}
	if v := os.Getenv("VIQ_TLS_CLIENT_CERT"); v != "" {
		cfg.TLS.ClientCert = v
	}
	if v := os.Getenv("VIQ_TLS_CLIENT_KEY"); v != "" {
		cfg.TLS.ClientKey = v
	}
	if v := os.Getenv("VIQ_TLS_SKIP_VERIFY"); v == "true" || v == "1" {
		cfg.TLS.SkipVerify = true
	}
}

// Validate checks that the configuration is valid.
func (c *CLIConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base_url: scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid base_url: missing host")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}

	if c.PageSize < 1 || c.PageSize > MaxPageSize {
		return fmt.Errorf("page_size must be between 1 and %d, got %d", MaxPageSize, c.PageSize)
	}

	return nil
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// SaveConfig saves the configuration to the config file.
func SaveConfig(cfg *CLIConfig) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(configDir, DefaultConfigFile)

	fileCfg := configFile{
		BaseURL:         cfg.BaseURL,
		Timeout:         cfg.Timeout.String(),
		OutputFormat:    cfg.OutputFormat,
		PageSize:        cfg.PageSize,
		ExportDir:       cfg.ExportDir,
		DashboardListen: cfg.DashboardListen,
		Debug:           cfg.Debug,
		LogJSON:         cfg.LogJSON,
		Insecure:        cfg.Insecure,
		Events:          cfg.Events,
		TLS:             cfg.TLS,
	}

	data, err := yaml.Marshal(&fileCfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// Set updates a single configuration key from its string form.
// Keys match the YAML names used in the config file.
func (c *CLIConfig) Set(key, value string) error {
	switch key {
	case "base_url":
		c.BaseURL = strings.TrimRight(value, "/")
	case "timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("parsing timeout: %w", err)
		}
		c.Timeout = d
	case "output_format":
		c.OutputFormat = OutputFormat(value)
	case "page_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("parsing page_size: %w", err)
		}
		c.PageSize = n
	case "export_dir":
		c.ExportDir = value
	case "dashboard_listen":
		c.DashboardListen = value
	case "debug":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("parsing debug: %w", err)
		}
		c.Debug = b
	case "insecure":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("parsing insecure: %w", err)
		}
		c.Insecure = b
	case "events.redis_addr":
		c.Events.RedisAddr = value
	case "events.channel":
		c.Events.Channel = value
	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
	return c.Validate()
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
