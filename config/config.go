// Package config provides configuration management for summit.
// It supports loading configuration from YAML files, environment variables, and command-line flags.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
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
	DefaultReportSourceURL = "https://report-source-e7haeydbc7fngjdy.koreacentral-01.azurewebsites.net/api"
	DefaultTranscriptURL   = "https://scriptcreateservice06-a6buhjcfbnfbcuhz.koreacentral-01.azurewebsites.net/api"
	DefaultChatURL         = "https://chat-bot001-dbcredbkhqbsc4fn.koreacentral-01.azurewebsites.net/api"

	DefaultServerAddress   = ":8080"
	DefaultShutdownTimeout = 10 * time.Second

	DefaultNavigateDelay  = 3 * time.Second
	DefaultResetDelay     = 5 * time.Second
	DefaultMaxTitleLength = 100
	DefaultNavigateRoute  = "/meetings"

	DefaultOutputFormat = OutputFormatText
	DefaultEnvironment  = "development"
	DefaultLocale       = "ko"
	DefaultConfigDir    = ".summit"
	DefaultConfigFile   = "config.yaml"
)

// ServerConfig holds settings for `summit serve`.
type ServerConfig struct {
	// Address is the listen address (host:port).
	Address string `yaml:"address"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// UploadConfig holds upload lifecycle timings and limits.
type UploadConfig struct {
	// NavigateDelay is the wait between a completed upload and the navigation to the meeting list.
	NavigateDelay time.Duration `yaml:"navigate_delay"`

	// ResetDelay is the wait between the navigation and the state reset.
	ResetDelay time.Duration `yaml:"reset_delay"`

	// MaxTitleLength caps the meeting title, in characters.
	MaxTitleLength int `yaml:"max_title_length"`

	// NavigateRoute is where a completed upload sends the user.
	NavigateRoute string `yaml:"navigate_route"`
}

// RedisConfig holds the optional upload event publisher connection.
// An empty Address disables event publishing.
type RedisConfig struct {
	Address  string `yaml:"address,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// JournalConfig holds the optional Postgres upload journal connection.
// An empty DSN disables the journal.
type JournalConfig struct {
	DSN string `yaml:"dsn,omitempty"`
}

// Enabled reports whether a journal DSN is configured.
func (j JournalConfig) Enabled() bool {
	return j.DSN != ""
}

// Config holds the summit configuration settings.
type Config struct {
	// ReportSourceURL is the base URL of the report-source service (summaries, minutes, tags).
	ReportSourceURL string `yaml:"report_source_url"`

	// TranscriptURL is the base URL of the transcript service (speech-to-text, segments).
	TranscriptURL string `yaml:"transcript_url"`

	// ChatURL is the base URL of the chat/answer service.
	ChatURL string `yaml:"chat_url"`

	// Timeout bounds each external request. Zero keeps the transport default.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat `yaml:"output_format"`

	// Locale drives title collation when sorting meetings.
	Locale string `yaml:"locale"`

	// Environment is attached to every log entry.
	Environment string `yaml:"environment,omitempty"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`

	// LogJSON switches log output to JSON.
	LogJSON bool `yaml:"log_json,omitempty"`

	Server  ServerConfig  `yaml:"server"`
	Upload  UploadConfig  `yaml:"upload"`
	Redis   RedisConfig   `yaml:"redis,omitempty"`
	Journal JournalConfig `yaml:"journal,omitempty"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		ReportSourceURL: DefaultReportSourceURL,
		TranscriptURL:   DefaultTranscriptURL,
		ChatURL:         DefaultChatURL,
		OutputFormat:    DefaultOutputFormat,
		Locale:          DefaultLocale,
		Environment:     DefaultEnvironment,
		Server: ServerConfig{
			Address:         DefaultServerAddress,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Upload: UploadConfig{
			NavigateDelay:  DefaultNavigateDelay,
			ResetDelay:     DefaultResetDelay,
			MaxTitleLength: DefaultMaxTitleLength,
			NavigateRoute:  DefaultNavigateRoute,
		},
	}
}

// ConfigDir returns the configuration directory path.
// Uses $SUMMIT_CONFIG_DIR if set, otherwise ~/.summit
func ConfigDir() (string, error) {
	if dir := os.Getenv("SUMMIT_CONFIG_DIR"); dir != "" {
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

// LoadConfig loads the configuration from file and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file (~/.summit/config.yaml or $SUMMIT_CONFIG_DIR/config.yaml)
// 3. Environment variables (SUMMIT_*)
func LoadConfig() (*Config, error) {
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

// configFile mirrors Config with durations as strings.
type configFile struct {
	ReportSourceURL string        `yaml:"report_source_url,omitempty"`
	TranscriptURL   string        `yaml:"transcript_url,omitempty"`
	ChatURL         string        `yaml:"chat_url,omitempty"`
	Timeout         string        `yaml:"timeout,omitempty"`
	OutputFormat    OutputFormat  `yaml:"output_format,omitempty"`
	Locale          string        `yaml:"locale,omitempty"`
	Environment     string        `yaml:"environment,omitempty"`
	Debug           bool          `yaml:"debug,omitempty"`
	LogJSON         bool          `yaml:"log_json,omitempty"`
	Server          serverFile    `yaml:"server,omitempty"`
	Upload          uploadFile    `yaml:"upload,omitempty"`
	Redis           RedisConfig   `yaml:"redis,omitempty"`
	Journal         JournalConfig `yaml:"journal,omitempty"`
}

type serverFile struct {
	Address         string `yaml:"address,omitempty"`
	ShutdownTimeout string `yaml:"shutdown_timeout,omitempty"`
}

type uploadFile struct {
	NavigateDelay  string `yaml:"navigate_delay,omitempty"`
	ResetDelay     string `yaml:"reset_delay,omitempty"`
	MaxTitleLength int    `yaml:"max_title_length,omitempty"`
	NavigateRoute  string `yaml:"navigate_route,omitempty"`
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	setString(&cfg.ReportSourceURL, fileCfg.ReportSourceURL)
	setString(&cfg.TranscriptURL, fileCfg.TranscriptURL)
	setString(&cfg.ChatURL, fileCfg.ChatURL)
	setString(&cfg.Locale, fileCfg.Locale)
	setString(&cfg.Environment, fileCfg.Environment)
	setString(&cfg.Server.Address, fileCfg.Server.Address)
	setString(&cfg.Upload.NavigateRoute, fileCfg.Upload.NavigateRoute)

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"timeout", fileCfg.Timeout, &cfg.Timeout},
		{"server.shutdown_timeout", fileCfg.Server.ShutdownTimeout, &cfg.Server.ShutdownTimeout},
		{"upload.navigate_delay", fileCfg.Upload.NavigateDelay, &cfg.Upload.NavigateDelay},
		{"upload.reset_delay", fileCfg.Upload.ResetDelay, &cfg.Upload.ResetDelay},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	if fileCfg.OutputFormat != "" {
		cfg.OutputFormat = fileCfg.OutputFormat
	}
	if fileCfg.Upload.MaxTitleLength > 0 {
		cfg.Upload.MaxTitleLength = fileCfg.Upload.MaxTitleLength
	}
	cfg.Debug = fileCfg.Debug
	cfg.LogJSON = fileCfg.LogJSON
	cfg.Redis = fileCfg.Redis
	cfg.Journal = fileCfg.Journal

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *Config) {
	setString(&cfg.ReportSourceURL, os.Getenv("SUMMIT_REPORT_SOURCE_URL"))
	setString(&cfg.TranscriptURL, os.Getenv("SUMMIT_TRANSCRIPT_URL"))
	setString(&cfg.ChatURL, os.Getenv("SUMMIT_CHAT_URL"))
	setString(&cfg.Locale, os.Getenv("SUMMIT_LOCALE"))
	setString(&cfg.Environment, os.Getenv("SUMMIT_ENVIRONMENT"))
	setString(&cfg.Server.Address, os.Getenv("SUMMIT_SERVER_ADDRESS"))
	setString(&cfg.Redis.Address, os.Getenv("SUMMIT_REDIS_ADDRESS"))
	setString(&cfg.Redis.Password, os.Getenv("SUMMIT_REDIS_PASSWORD"))
	setString(&cfg.Journal.DSN, os.Getenv("SUMMIT_JOURNAL_DSN"))

	if v := os.Getenv("SUMMIT_TIMEOUT"); v != "" {
		if timeout, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = timeout
		}
	}

	if v := os.Getenv("SUMMIT_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}

	if v := os.Getenv("SUMMIT_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}

	if v := os.Getenv("SUMMIT_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}

	if v := os.Getenv("SUMMIT_LOG_JSON"); v == "true" || v == "1" {
		cfg.LogJSON = true
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	urls := []struct {
		name  string
		value string
	}{
		{"report_source_url", c.ReportSourceURL},
		{"transcript_url", c.TranscriptURL},
		{"chat_url", c.ChatURL},
	}
	for _, u := range urls {
		if err := validateBaseURL(u.value); err != nil {
			return fmt.Errorf("%s: %w", u.name, err)
		}
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}

	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}

	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}

	if c.Upload.NavigateDelay <= 0 || c.Upload.ResetDelay <= 0 {
		return fmt.Errorf("upload delays must be positive")
	}

	if c.Upload.MaxTitleLength <= 0 {
		return fmt.Errorf("upload.max_title_length must be positive")
	}

	return nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q must be an absolute http(s) URL", raw)
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
func SaveConfig(cfg *Config) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	fileCfg := configFile{
		ReportSourceURL: cfg.ReportSourceURL,
		TranscriptURL:   cfg.TranscriptURL,
		ChatURL:         cfg.ChatURL,
		OutputFormat:    cfg.OutputFormat,
		Locale:          cfg.Locale,
		Environment:     cfg.Environment,
		Debug:           cfg.Debug,
		LogJSON:         cfg.LogJSON,
		Server: serverFile{
			Address:         cfg.Server.Address,
			ShutdownTimeout: cfg.Server.ShutdownTimeout.String(),
		},
		Upload: uploadFile{
			NavigateDelay:  cfg.Upload.NavigateDelay.String(),
			ResetDelay:     cfg.Upload.ResetDelay.String(),
			MaxTitleLength: cfg.Upload.MaxTitleLength,
			NavigateRoute:  cfg.Upload.NavigateRoute,
		},
		Redis:   cfg.Redis,
		Journal: cfg.Journal,
	}
	if cfg.Timeout > 0 {
		fileCfg.Timeout = cfg.Timeout.String()
	}

	data, err := yaml.Marshal(&fileCfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(configDir, DefaultConfigFile), data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
