package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var summitEnvVars = []string{
	"SUMMIT_CONFIG_DIR",
	"SUMMIT_REPORT_SOURCE_URL",
	"SUMMIT_TRANSCRIPT_URL",
	"SUMMIT_CHAT_URL",
	"SUMMIT_TIMEOUT",
	"SUMMIT_OUTPUT_FORMAT",
	"SUMMIT_LOCALE",
	"SUMMIT_ENVIRONMENT",
	"SUMMIT_SERVER_ADDRESS",
	"SUMMIT_REDIS_ADDRESS",
	"SUMMIT_REDIS_PASSWORD",
	"SUMMIT_REDIS_DB",
	"SUMMIT_JOURNAL_DSN",
	"SUMMIT_DEBUG",
	"SUMMIT_LOG_JSON",
}

// isolateEnv points the config dir at a temp dir and clears every SUMMIT_* override.
func isolateEnv(t *testing.T) string {
	t.Helper()
	for _, key := range summitEnvVars {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	dir := t.TempDir()
	t.Setenv("SUMMIT_CONFIG_DIR", dir)
	return dir
}

// TestDefaultConfig verifies default configuration values.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ReportSourceURL != DefaultReportSourceURL {
		t.Errorf("ReportSourceURL = %v, want %v", cfg.ReportSourceURL, DefaultReportSourceURL)
	}
	if cfg.TranscriptURL != DefaultTranscriptURL {
		t.Errorf("TranscriptURL = %v, want %v", cfg.TranscriptURL, DefaultTranscriptURL)
	}
	if cfg.ChatURL != DefaultChatURL {
		t.Errorf("ChatURL = %v, want %v", cfg.ChatURL, DefaultChatURL)
	}
	if cfg.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0 (transport default)", cfg.Timeout)
	}
	if cfg.Upload.NavigateDelay != 3*time.Second {
		t.Errorf("Upload.NavigateDelay = %v, want 3s", cfg.Upload.NavigateDelay)
	}
	if cfg.Upload.ResetDelay != 5*time.Second {
		t.Errorf("Upload.ResetDelay = %v, want 5s", cfg.Upload.ResetDelay)
	}
	if cfg.Upload.MaxTitleLength != 100 {
		t.Errorf("Upload.MaxTitleLength = %v, want 100", cfg.Upload.MaxTitleLength)
	}
	if cfg.Upload.NavigateRoute != "/meetings" {
		t.Errorf("Upload.NavigateRoute = %v, want /meetings", cfg.Upload.NavigateRoute)
	}
	if cfg.Redis.Enabled() {
		t.Error("Redis should be disabled by default")
	}
	if cfg.Journal.Enabled() {
		t.Error("Journal should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
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
		{"JSON", false},
	}

	for _, tc := range tests {
		if got := tc.format.IsValid(); got != tc.valid {
			t.Errorf("OutputFormat(%q).IsValid() = %v, want %v", tc.format, got, tc.valid)
		}
	}
}

// TestConfig_Validate verifies configuration validation.
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"relative chat url", func(c *Config) { c.ChatURL = "/api" }, "chat_url"},
		{"ftp report url", func(c *Config) { c.ReportSourceURL = "ftp://example.com" }, "report_source_url"},
		{"empty transcript url", func(c *Config) { c.TranscriptURL = "" }, "transcript_url"},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, "timeout"},
		{"bad output format", func(c *Config) { c.OutputFormat = "xml" }, "output_format"},
		{"empty server address", func(c *Config) { c.Server.Address = "" }, "server.address"},
		{"zero navigate delay", func(c *Config) { c.Upload.NavigateDelay = 0 }, "delays"},
		{"zero title length", func(c *Config) { c.Upload.MaxTitleLength = 0 }, "max_title_length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

// TestLoadConfig_Defaults verifies default values when no config exists.
func TestLoadConfig_Defaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.ChatURL != DefaultChatURL {
		t.Errorf("ChatURL = %v, want %v", cfg.ChatURL, DefaultChatURL)
	}
	if cfg.OutputFormat != OutputFormatText {
		t.Errorf("OutputFormat = %v, want text", cfg.OutputFormat)
	}
}

// TestLoadConfig_WithEnvOverrides verifies environment variable overrides.
func TestLoadConfig_WithEnvOverrides(t *testing.T) {
	isolateEnv(t)

	t.Setenv("SUMMIT_CHAT_URL", "http://chat.local:9000/api")
	t.Setenv("SUMMIT_TRANSCRIPT_URL", "http://scripts.local/api")
	t.Setenv("SUMMIT_TIMEOUT", "45s")
	t.Setenv("SUMMIT_OUTPUT_FORMAT", "json")
	t.Setenv("SUMMIT_REDIS_ADDRESS", "localhost:6379")
	t.Setenv("SUMMIT_REDIS_DB", "2")
	t.Setenv("SUMMIT_JOURNAL_DSN", "postgres://summit@localhost/summit")
	t.Setenv("SUMMIT_DEBUG", "1")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.ChatURL != "http://chat.local:9000/api" {
		t.Errorf("ChatURL = %v", cfg.ChatURL)
	}
	if cfg.TranscriptURL != "http://scripts.local/api" {
		t.Errorf("TranscriptURL = %v", cfg.TranscriptURL)
	}
	if cfg.ReportSourceURL != DefaultReportSourceURL {
		t.Errorf("ReportSourceURL = %v, want default", cfg.ReportSourceURL)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", cfg.Timeout)
	}
	if cfg.OutputFormat != OutputFormatJSON {
		t.Errorf("OutputFormat = %v, want json", cfg.OutputFormat)
	}
	if !cfg.Redis.Enabled() || cfg.Redis.DB != 2 {
		t.Errorf("Redis = %+v, want enabled db 2", cfg.Redis)
	}
	if !cfg.Journal.Enabled() {
		t.Error("Journal should be enabled")
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
}

// TestLoadConfig_FromFile verifies loading from YAML file.
func TestLoadConfig_FromFile(t *testing.T) {
	dir := isolateEnv(t)

	configContent := `report_source_url: http://reports.internal/api
timeout: 2m
output_format: yaml
locale: en
server:
  address: 127.0.0.1:9999
  shutdown_timeout: 30s
upload:
  navigate_delay: 1s
  reset_delay: 2s
  max_title_length: 60
redis:
  address: redis:6379
debug: true
`
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(configContent), 0600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.ReportSourceURL != "http://reports.internal/api" {
		t.Errorf("ReportSourceURL = %v", cfg.ReportSourceURL)
	}
	if cfg.ChatURL != DefaultChatURL {
		t.Errorf("ChatURL = %v, want default", cfg.ChatURL)
	}
	if cfg.Timeout != 2*time.Minute {
		t.Errorf("Timeout = %v, want 2m", cfg.Timeout)
	}
	if cfg.OutputFormat != OutputFormatYAML {
		t.Errorf("OutputFormat = %v, want yaml", cfg.OutputFormat)
	}
	if cfg.Locale != "en" {
		t.Errorf("Locale = %v, want en", cfg.Locale)
	}
	if cfg.Server.Address != "127.0.0.1:9999" || cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Upload.NavigateDelay != time.Second || cfg.Upload.ResetDelay != 2*time.Second {
		t.Errorf("Upload delays = %v/%v", cfg.Upload.NavigateDelay, cfg.Upload.ResetDelay)
	}
	if cfg.Upload.MaxTitleLength != 60 {
		t.Errorf("Upload.MaxTitleLength = %v, want 60", cfg.Upload.MaxTitleLength)
	}
	if cfg.Upload.NavigateRoute != DefaultNavigateRoute {
		t.Errorf("Upload.NavigateRoute = %v, want default", cfg.Upload.NavigateRoute)
	}
	if cfg.Redis.Address != "redis:6379" {
		t.Errorf("Redis.Address = %v", cfg.Redis.Address)
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
}

// TestLoadConfig_InvalidDuration verifies handling of an unparsable duration.
func TestLoadConfig_InvalidDuration(t *testing.T) {
	dir := isolateEnv(t)

	content := "upload:\n  navigate_delay: soon\n"
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig() should fail with invalid duration")
	}
	if !strings.Contains(err.Error(), "upload.navigate_delay") {
		t.Errorf("error = %v, want mention of upload.navigate_delay", err)
	}
}

// TestSaveConfig_RoundTrip verifies a saved config loads back unchanged.
func TestSaveConfig_RoundTrip(t *testing.T) {
	isolateEnv(t)

	cfg := DefaultConfig()
	cfg.ChatURL = "http://chat.example.com/api"
	cfg.Timeout = 90 * time.Second
	cfg.Upload.ResetDelay = 7 * time.Second
	cfg.Journal.DSN = "postgres://summit@db/summit"

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if loaded.ChatURL != cfg.ChatURL {
		t.Errorf("ChatURL = %v, want %v", loaded.ChatURL, cfg.ChatURL)
	}
	if loaded.Timeout != cfg.Timeout {
		t.Errorf("Timeout = %v, want %v", loaded.Timeout, cfg.Timeout)
	}
	if loaded.Upload.ResetDelay != 7*time.Second {
		t.Errorf("Upload.ResetDelay = %v, want 7s", loaded.Upload.ResetDelay)
	}
	if loaded.Journal.DSN != cfg.Journal.DSN {
		t.Errorf("Journal.DSN = %v, want %v", loaded.Journal.DSN, cfg.Journal.DSN)
	}
}
