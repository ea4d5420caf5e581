// Package main provides the summit CLI entry point.
// summit browses summarized meetings, asks questions about them, uploads new
// recordings and serves the same-origin HTTP API in front of the meeting services.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/summit/cmd"
	"github.com/otherjamesbrown/summit/config"
	"github.com/otherjamesbrown/summit/pkg/buildinfo"
	"github.com/otherjamesbrown/summit/pkg/logging"
)

// Global flags and state.
var (
	timeout      time.Duration
	outputFormat string
	debug        bool
	logJSON      bool

	// cfg holds the loaded configuration.
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "summit",
	Short: "Summit - meeting summaries, minutes and Q&A",
	Long: `summit is the command-line interface for Summit meeting intelligence.

It talks to the report-source, transcript and chat services directly, and
can run the same-origin HTTP server that web clients use.

COMMON WORKFLOWS:
  Browse meetings:  summit meetings list  →  summit meetings show <id>
  Ask questions:    summit chat ask "question" -m <id>
  Add a recording:  summit upload standup.m4a --title "Daily standup"
  Run the server:   summit serve

DISCOVERY:
  summit <command> --help     Subcommands, flags, and examples for any command
  summit config show          Effective configuration`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for commands that don't need it.
		if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		applyFlagOverrides(cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		logging.SetGlobal(logging.NewLogger(loggerConfig(cfg, cmd.Name())))
		return nil
	},
}

// applyFlagOverrides layers the persistent flags over the loaded configuration.
func applyFlagOverrides(c *config.Config) {
	if timeout != 0 {
		c.Timeout = timeout
	}
	if outputFormat != "" {
		c.OutputFormat = config.OutputFormat(outputFormat)
	}
	if debug {
		c.Debug = true
	}
	if logJSON {
		c.LogJSON = true
	}
}

// loggerConfig keeps the CLI quiet unless --debug is set; the server logs at info.
func loggerConfig(c *config.Config, command string) *logging.Config {
	level := logging.LevelWarn
	if command == "serve" {
		level = logging.LevelInfo
	}
	if c.Debug {
		level = logging.LevelDebug
	}
	return &logging.Config{
		Level:       level,
		ServiceName: "summit",
		Environment: c.Environment,
		JSONFormat:  c.LogJSON,
		Output:      os.Stderr,
	}
}

// loadedConfig hands subcommands the configuration resolved by the root command.
func loadedConfig() (*config.Config, error) {
	if cfg != nil {
		return cfg, nil
	}
	return config.LoadConfig()
}

var versionOutputJSON bool

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of the summit binary.

Examples:
  summit version
  summit version --output-json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.Get("summit")
		out := cmd.OutOrStdout()

		if versionOutputJSON || outputFormat == string(config.OutputFormatJSON) {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}

		fmt.Fprintf(out, "summit version %s\n", info.Version)
		fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
		fmt.Fprintf(out, "  go:         %s\n", info.GoVersion)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long:  `View and modify the summit configuration settings.`,
}

// configShowCmd displays current configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration: file values, then SUMMIT_* environment overrides, then flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		out := cmd.OutOrStdout()

		switch c.OutputFormat {
		case config.OutputFormatJSON:
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(redacted(c))
		case config.OutputFormatYAML:
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(redacted(c))
		}

		configPath, _ := config.ConfigPath()
		fmt.Fprintln(out, "Current configuration:")
		fmt.Fprintf(out, "  Config file:       %s\n", configPath)
		fmt.Fprintf(out, "  Report source URL: %s\n", c.ReportSourceURL)
		fmt.Fprintf(out, "  Transcript URL:    %s\n", c.TranscriptURL)
		fmt.Fprintf(out, "  Chat URL:          %s\n", c.ChatURL)
		fmt.Fprintf(out, "  Timeout:           %s\n", valueOrDefault(durationString(c.Timeout), "(transport default)"))
		fmt.Fprintf(out, "  Output format:     %s\n", c.OutputFormat)
		fmt.Fprintf(out, "  Locale:            %s\n", c.Locale)
		fmt.Fprintf(out, "  Debug:             %t\n", c.Debug)
		fmt.Fprintf(out, "  Server address:    %s\n", c.Server.Address)
		fmt.Fprintf(out, "  Navigate after:    %s\n", c.Upload.NavigateDelay)
		fmt.Fprintf(out, "  Reset after:       %s\n", c.Upload.ResetDelay)
		fmt.Fprintf(out, "  Redis:             %s\n", valueOrDefault(c.Redis.Address, "(disabled)"))
		journal := "(disabled)"
		if c.Journal.Enabled() {
			journal = "(configured)"
		}
		fmt.Fprintf(out, "  Journal:           %s\n", journal)
		return nil
	},
}

// redacted returns a copy of c without secrets.
func redacted(c *config.Config) *config.Config {
	out := *c
	if out.Redis.Password != "" {
		out.Redis.Password = "****"
	}
	if out.Journal.DSN != "" {
		out.Journal.DSN = "****"
	}
	return &out
}

// configInitCmd initializes configuration.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with default values if one doesn't exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		configPath, err := config.ConfigPath()
		if err != nil {
			return fmt.Errorf("getting config path: %w", err)
		}

		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(out, "Configuration file already exists: %s\n", configPath)
			fmt.Fprintln(out, "Use 'summit config show' to view current settings.")
			return nil
		}

		defaultCfg := config.DefaultConfig()
		if err := config.SaveConfig(defaultCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(out, "Created configuration file: %s\n", configPath)
		fmt.Fprintln(out, "\nDefault settings:")
		fmt.Fprintf(out, "  Report source URL: %s\n", defaultCfg.ReportSourceURL)
		fmt.Fprintf(out, "  Output format:     %s\n", defaultCfg.OutputFormat)
		fmt.Fprintf(out, "  Server address:    %s\n", defaultCfg.Server.Address)
		return nil
	},
}

// configSetCmd sets a configuration value.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the config file.

Available keys:
  report_source_url  - Report-source service base URL
  transcript_url     - Transcript service base URL
  chat_url           - Chat service base URL
  timeout            - Request timeout (e.g., 30s, 1m)
  output_format      - Default output format (text, json, yaml)
  locale             - Title collation locale (e.g., ko, en)
  debug              - Enable debug logging (true/false)
  server_address     - Listen address for 'summit serve'
  redis_address      - Redis address for upload events (empty disables)
  journal_dsn        - Postgres DSN for the upload journal (empty disables)

Examples:
  summit config set timeout 1m
  summit config set output_format json
  summit config set redis_address localhost:6379`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		currentCfg, err := config.LoadConfig()
		if err != nil {
			currentCfg = config.DefaultConfig()
		}
		if err := setConfigValue(currentCfg, key, value); err != nil {
			return err
		}
		if err := currentCfg.Validate(); err != nil {
			return err
		}
		if err := config.SaveConfig(currentCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}

func setConfigValue(c *config.Config, key, value string) error {
	switch key {
	case "report_source_url":
		c.ReportSourceURL = value
	case "transcript_url":
		c.TranscriptURL = value
	case "chat_url":
		c.ChatURL = value
	case "timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		c.Timeout = d
	case "output_format":
		format := config.OutputFormat(value)
		if !format.IsValid() {
			return fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", value)
		}
		c.OutputFormat = format
	case "locale":
		c.Locale = value
	case "debug":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid debug value: %s (must be true or false)", value)
		}
		c.Debug = b
	case "server_address":
		c.Server.Address = value
	case "redis_address":
		c.Redis.Address = value
	case "journal_dsn":
		c.Journal.DSN = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

// completionCmd generates shell completion scripts.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for summit.

Bash:
  $ source <(summit completion bash)

Zsh:
  $ summit completion zsh > "${fpath[1]}/_summit"

Fish:
  $ summit completion fish | source

PowerShell:
  PS> summit completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func durationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func init() {
	// Global flags.
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "request timeout (e.g., 30s, 1m)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "", "default output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON")

	versionCmd.Flags().BoolVar(&versionOutputJSON, "output-json", false, "Output version info as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "meetings", Title: "Meetings:"},
		&cobra.Group{ID: "ops", Title: "Operations:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	meetingDeps := cmd.DefaultMeetingDeps()
	meetingDeps.LoadConfig = loadedConfig
	meetingCmd := cmd.NewMeetingCommand(meetingDeps)
	meetingCmd.GroupID = "meetings"
	rootCmd.AddCommand(meetingCmd)

	chatDeps := cmd.DefaultChatDeps()
	chatDeps.LoadConfig = loadedConfig
	chatCmd := cmd.NewChatCommand(chatDeps)
	chatCmd.GroupID = "meetings"
	rootCmd.AddCommand(chatCmd)

	uploadDeps := cmd.DefaultUploadDeps()
	uploadDeps.LoadConfig = loadedConfig
	uploadCmd := cmd.NewUploadCommand(uploadDeps)
	uploadCmd.GroupID = "meetings"
	rootCmd.AddCommand(uploadCmd)
	uploadsCmd := cmd.NewUploadsCommand(uploadDeps)
	uploadsCmd.GroupID = "meetings"
	rootCmd.AddCommand(uploadsCmd)

	serveDeps := cmd.DefaultServeDeps()
	serveDeps.LoadConfig = loadedConfig
	serveCmd := cmd.NewServeCommand(serveDeps)
	serveCmd.GroupID = "ops"
	rootCmd.AddCommand(serveCmd)

	configCmd.GroupID = "setup"
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)

	completionCmd.GroupID = "setup"
	rootCmd.AddCommand(completionCmd)
	versionCmd.GroupID = "setup"
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
