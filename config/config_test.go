package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every VIQ_ variable the loader reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"VIQ_CONFIG_DIR",
		"VIQ_BASE_URL",
		"VIQ_TIMEOUT",
		"VIQ_OUTPUT_FORMAT",
		"VIQ_PAGE_SIZE",
		"VIQ_EXPORT_DIR",
		"VIQ_DASHBOARD_LISTEN",
		"VIQ_DEBUG",
		"VIQ_LOG_JSON",
		"VIQ_INSECURE",
		"VIQ_REDIS_ADDR",
		"VIQ_REDIS_PASSWORD",
		"VIQ_EVENTS_CHANNEL",
		"VIQ_TLS_CA_CERT",
		"VIQ_TLS_CLIENT_CERT",
		"VIQ_TLS_CLIENT_KEY",
		"VIQ_TLS_SKIP_VERIFY",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// TestDefaultConfig verifies default configuration values.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %v, want %v", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.OutputFormat != DefaultOutputFormat {
		t.Errorf("OutputFormat = %v, want %v", cfg.OutputFormat, DefaultOutputFormat)
	}
	if cfg.PageSize != 20 {
		t.Errorf("PageSize = %v, want 20", cfg.PageSize)
	}
	if cfg.Debug {
		t.Error("Debug should be false by default")
	}
	if cfg.Insecure {
		t.Error("Insecure should be false by default")
	}
	if cfg.Events.Enabled() {
		t.Error("event publishing should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestDefaultConstants(t *testing.T) {
	if DefaultConfigDir != ".viq" {
		t.Errorf("DefaultConfigDir = %v, want .viq", DefaultConfigDir)
	}
	if DefaultConfigFile != "config.yaml" {
		t.Errorf("DefaultConfigFile = %v, want config.yaml", DefaultConfigFile)
	}
	if DefaultOutputFormat != OutputFormatText {
		t.Errorf("DefaultOutputFormat = %v, want text", DefaultOutputFormat)
	}
}

// TestOutputFormat_IsValid verifies output format validation.
func TestOutputFormat_IsValid(t *testing.T) {
	tests := []struct {
		format OutputFormat
		valid  bool
	}{
		{OutputFormatText, true},
		{OutputFormatJSON, true},
		{OutputFormatYAML, true},
		{"invalid", false},
		{"", false},
		{"JSON", false}, // Case sensitive
		{"csv", false},
	}

	for _, tc := range tests {
		if got := tc.format.IsValid(); got != tc.valid {
			t.Errorf("OutputFormat(%q).IsValid() = %v, want %v", tc.format, got, tc.valid)
		}
	}
}

// TestCLIConfig_Validate verifies configuration validation.
func TestCLIConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*CLIConfig)
		wantErr string
	}{
		{name: "valid default", modify: func(*CLIConfig) {}},
		{name: "https base url", modify: func(c *CLIConfig) { c.BaseURL = "https://reports.example.com/api" }},
		{name: "empty base url", modify: func(c *CLIConfig) { c.BaseURL = "" }, wantErr: "base_url is required"},
		{name: "bad scheme", modify: func(c *CLIConfig) { c.BaseURL = "ftp://host" }, wantErr: "scheme must be http or https"},
		{name: "missing host", modify: func(c *CLIConfig) { c.BaseURL = "http://" }, wantErr: "missing host"},
		{name: "zero timeout", modify: func(c *CLIConfig) { c.Timeout = 0 }, wantErr: "timeout must be positive"},
		{name: "negative timeout", modify: func(c *CLIConfig) { c.Timeout = -time.Second }, wantErr: "timeout must be positive"},
		{name: "bad output format", modify: func(c *CLIConfig) { c.OutputFormat = "xml" }, wantErr: "invalid output_format"},
		{name: "page size zero", modify: func(c *CLIConfig) { c.PageSize = 0 }, wantErr: "page_size must be between"},
		{name: "page size too large", modify: func(c *CLIConfig) { c.PageSize = MaxPageSize + 1 }, wantErr: "page_size must be between"},
		{name: "page size max", modify: func(c *CLIConfig) { c.PageSize = MaxPageSize }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tc.wantErr)
			}
		})
	}
}

// TestConfigDir verifies config directory path resolution.
func TestConfigDir(t *testing.T) {
	t.Run("with env var", func(t *testing.T) {
		customDir := filepath.Join(t.TempDir(), "viq")
		t.Setenv("VIQ_CONFIG_DIR", customDir)

		dir, err := ConfigDir()
		if err != nil {
			t.Fatalf("ConfigDir() error = %v", err)
		}
		if dir != customDir {
			t.Errorf("ConfigDir() = %v, want %v", dir, customDir)
		}
	})

	t.Run("default without env var", func(t *testing.T) {
		clearEnv(t)

		dir, err := ConfigDir()
		if err != nil {
			t.Fatalf("ConfigDir() error = %v", err)
		}
		home, _ := os.UserHomeDir()
		if want := filepath.Join(home, DefaultConfigDir); dir != want {
			t.Errorf("ConfigDir() = %v, want %v", dir, want)
		}
	})
}

func TestConfigPath(t *testing.T) {
	customDir := t.TempDir()
	t.Setenv("VIQ_CONFIG_DIR", customDir)

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath() error = %v", err)
	}
	if want := filepath.Join(customDir, DefaultConfigFile); path != want {
		t.Errorf("ConfigPath() = %v, want %v", path, want)
	}
}

// TestLoadConfig_Defaults verifies default values when no config file exists.
func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("VIQ_CONFIG_DIR", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %v, want %v", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.PageSize != DefaultPageSize {
		t.Errorf("PageSize = %v, want %v", cfg.PageSize, DefaultPageSize)
	}
}

// TestLoadConfig_WithEnvOverrides verifies environment variable overrides.
func TestLoadConfig_WithEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("VIQ_CONFIG_DIR", t.TempDir())
	t.Setenv("VIQ_BASE_URL", "https://calls.example.com")
	t.Setenv("VIQ_TIMEOUT", "45s")
	t.Setenv("VIQ_OUTPUT_FORMAT", "json")
	t.Setenv("VIQ_PAGE_SIZE", "50")
	t.Setenv("VIQ_DEBUG", "true")
	t.Setenv("VIQ_INSECURE", "1")
	t.Setenv("VIQ_REDIS_ADDR", "localhost:6379")
	t.Setenv("VIQ_TLS_CA_CERT", "/etc/viq/ca.pem")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.BaseURL != "https://calls.example.com" {
		t.Errorf("BaseURL = %v, want https://calls.example.com", cfg.BaseURL)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", cfg.Timeout)
	}
	if cfg.OutputFormat != OutputFormatJSON {
		t.Errorf("OutputFormat = %v, want json", cfg.OutputFormat)
	}
	if cfg.PageSize != 50 {
		t.Errorf("PageSize = %v, want 50", cfg.PageSize)
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
	if !cfg.Insecure {
		t.Error("Insecure should be true")
	}
	if !cfg.Events.Enabled() || cfg.Events.GetChannel() != DefaultEventsChannel {
		t.Errorf("Events = %+v, want enabled on default channel", cfg.Events)
	}
	if cfg.TLS.CACert != "/etc/viq/ca.pem" {
		t.Errorf("TLS.CACert = %v, want /etc/viq/ca.pem", cfg.TLS.CACert)
	}
}

// TestLoadFromEnv_InvalidValues verifies malformed env values are ignored.
func TestLoadFromEnv_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("VIQ_TIMEOUT", "not-a-duration")
	t.Setenv("VIQ_PAGE_SIZE", "many")

	cfg := DefaultConfig()
	loadFromEnv(cfg)

	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.PageSize != DefaultPageSize {
		t.Errorf("PageSize = %v, want %v", cfg.PageSize, DefaultPageSize)
	}
}

// TestLoadConfig_FromFile verifies loading a YAML config file.
func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("VIQ_CONFIG_DIR", dir)

	content := `base_url: https://file.example.com
timeout: 2m
output_format: yaml
page_size: 10
events:
  redis_addr: redis:6379
  channel: calls
`
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.BaseURL != "https://file.example.com" {
		t.Errorf("BaseURL = %v, want https://file.example.com", cfg.BaseURL)
	}
	if cfg.Timeout != 2*time.Minute {
		t.Errorf("Timeout = %v, want 2m", cfg.Timeout)
	}
	if cfg.OutputFormat != OutputFormatYAML {
		t.Errorf("OutputFormat = %v, want yaml", cfg.OutputFormat)
	}
	if cfg.PageSize != 10 {
		t.Errorf("PageSize = %v, want 10", cfg.PageSize)
	}
	if cfg.Events.GetChannel() != "calls" {
		t.Errorf("Events.Channel = %v, want calls", cfg.Events.GetChannel())
	}

	// Env still wins over the file.
	t.Setenv("VIQ_PAGE_SIZE", "30")
	cfg, err = LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.PageSize != 30 {
		t.Errorf("PageSize = %v, want 30", cfg.PageSize)
	}
}

func TestLoadConfig_InvalidTimeout(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("VIQ_CONFIG_DIR", dir)

	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("timeout: soon\n"), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() should fail on an invalid timeout")
	}
}

func TestLoadConfig_InvalidPageSize(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("VIQ_CONFIG_DIR", dir)

	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("page_size: 1000\n"), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	_, err := LoadConfig()
	if err == nil || !strings.Contains(err.Error(), "page_size") {
		t.Errorf("LoadConfig() error = %v, want page_size validation error", err)
	}
}

// TestSaveConfig verifies saving and reloading round-trips through the file.
func TestSaveConfig(t *testing.T) {
	clearEnv(t)
	dir := filepath.Join(t.TempDir(), "nested", "viq")
	t.Setenv("VIQ_CONFIG_DIR", dir)

	cfg := DefaultConfig()
	cfg.BaseURL = "https://saved.example.com"
	cfg.Timeout = 90 * time.Second
	cfg.PageSize = 25
	cfg.Events.RedisAddr = "localhost:6379"

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, DefaultConfigFile))
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file permissions = %o, want 0600", perm)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if loaded.BaseURL != cfg.BaseURL {
		t.Errorf("BaseURL = %v, want %v", loaded.BaseURL, cfg.BaseURL)
	}
	if loaded.Timeout != cfg.Timeout {
		t.Errorf("Timeout = %v, want %v", loaded.Timeout, cfg.Timeout)
	}
	if loaded.PageSize != 25 {
		t.Errorf("PageSize = %v, want 25", loaded.PageSize)
	}
	if loaded.Events.RedisAddr != "localhost:6379" {
		t.Errorf("Events.RedisAddr = %v, want localhost:6379", loaded.Events.RedisAddr)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cfg")
	t.Setenv("VIQ_CONFIG_DIR", dir)

	if err := EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected a directory")
	}
}

// TestCLIConfig_Set verifies single-key updates used by `viq config set`.
func TestCLIConfig_Set(t *testing.T) {
	tests := []struct {
		key, value string
		check      func(*CLIConfig) bool
		wantErr    bool
	}{
		{key: "base_url", value: "https://x.example.com/", check: func(c *CLIConfig) bool { return c.BaseURL == "https://x.example.com" }},
		{key: "timeout", value: "30s", check: func(c *CLIConfig) bool { return c.Timeout == 30*time.Second }},
		{key: "output_format", value: "json", check: func(c *CLIConfig) bool { return c.OutputFormat == OutputFormatJSON }},
		{key: "page_size", value: "100", check: func(c *CLIConfig) bool { return c.PageSize == 100 }},
		{key: "debug", value: "true", check: func(c *CLIConfig) bool { return c.Debug }},
		{key: "events.redis_addr", value: "r:6379", check: func(c *CLIConfig) bool { return c.Events.RedisAddr == "r:6379" }},
		{key: "timeout", value: "later", wantErr: true},
		{key: "page_size", value: "0", wantErr: true},
		{key: "output_format", value: "xml", wantErr: true},
		{key: "colour", value: "blue", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			cfg := DefaultConfig()
			err := cfg.Set(tc.key, tc.value)
			if tc.wantErr {
				if err == nil {
					t.Errorf("Set(%q, %q) expected error", tc.key, tc.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("Set(%q, %q) error = %v", tc.key, tc.value, err)
			}
			if !tc.check(cfg) {
				t.Errorf("Set(%q, %q) did not apply: %+v", tc.key, tc.value, cfg)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	got, err := ExpandPath("~/exports")
	if err != nil {
		t.Fatalf("ExpandPath() error = %v", err)
	}
	if want := filepath.Join(home, "exports"); got != want {
		t.Errorf("ExpandPath() = %v, want %v", got, want)
	}

	got, _ = ExpandPath("/abs/path")
	if got != "/abs/path" {
		t.Errorf("ExpandPath() = %v, want /abs/path", got)
	}

	got, _ = ExpandPath("")
	if got != "" {
		t.Errorf("ExpandPath(\"\") = %v, want empty", got)
	}
}

func TestTLSConfig_ResolvePaths(t *testing.T) {
	home, _ := os.UserHomeDir()
	tls := TLSConfig{CACert: "~/certs/ca.pem", ClientCert: "/abs/client.pem"}
	tls.ResolvePaths()

	if want := filepath.Join(home, "certs", "ca.pem"); tls.CACert != want {
		t.Errorf("CACert = %v, want %v", tls.CACert, want)
	}
	if tls.ClientCert != "/abs/client.pem" {
		t.Errorf("ClientCert = %v, want unchanged", tls.ClientCert)
	}
	if !tls.IsConfigured() {
		t.Error("IsConfigured() should be true with a CA cert")
	}
}
