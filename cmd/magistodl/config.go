package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"magistodl/pkg/config"
	errs "magistodl/pkg/errors"
	"magistodl/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage magistodl configuration files.

Configuration is loaded from (highest priority first):
  - Command line flags
  - Environment variables (MAGISTODL_*, also read from .env files)
  - Configuration file
  - Default values`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is written to ~/.config/magistodl/config.yaml unless a different
path is given with --config.`,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after all sources are merged.
The password is masked.`,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the configuration for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Value ranges and durations
  - Download and log directory accessibility`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# magistodl configuration file
#
# Every option can also be set with an environment variable prefixed with
# MAGISTODL_, for example MAGISTODL_DOWNLOAD_DIR or MAGISTODL_EMAIL.
# Durations use Go syntax: 500ms, 15s, 2m.

browser:
  # Run Chrome without a window. Manual login needs a window.
  headless: false
  # Chrome binary, empty to let chromedp find it
  exec_path: ""
  # Persistent profile keeps you logged in between runs
  user_data_dir: ""
  window_width: 1920
  window_height: 1080
  navigation_timeout: 60s

site:
  base_url: "https://www.magisto.com"
  login_url: "https://www.magisto.com/connect"
  listing_paths:
    - /video/mine
    - /my-movies
    - /videos
    - /dashboard
    - /library
    - /home
  brand: "Magisto"

session:
  # Pause for a manual login in the browser window
  prompt: true
  login_discovery_timeout: 5s
  email_field_timeout: 10s
  login_settle: 8s
  post_login_click_delay: 3s

credentials:
  # Prefer 'magistodl auth login' over a plain-text password here
  email: ""
  password: ""
  # Name of an account stored with 'magistodl auth login'
  account: ""

download:
  directory: "./downloads"
  page_load_delay: 3s
  widget_settle: 5s
  button_timeout: 15s
  confirm_timeout: 5s
  post_click_delay: 3s
  # How long to wait for the browser to write a file after the click
  settle_window: 10s
  # Stop waiting as soon as a finished file appears
  watch: true

enumeration:
  scroll_settle: 3s
  # Scrolls without new content before the list counts as complete
  stable_iterations: 15
  listing_load_delay: 5s
  # 0 means no limit
  max_scrolls: 0

reconcile:
  extensions: [mp4, mov, avi, mkv, wmv, webm]
  quality_suffixes: ["", _HD, _FULL_HD, _HQ, _FULL]
  generic_titles:
    - untitled
    - bez názvu
    - no title
    - no name
    - untitled video
    - new video
    - video
    - my video
  generic_max_length: 2
  truncate_length: 20
  flexible_min: 15
  flexible_max: 25
  boilerplate: [Magisto, Download, Page not Found]

rate_limit:
  # 0 disables pacing
  page_visits_per_minute: 30
  # Allow this many visits back to back (token bucket), 0 for a strict window
  burst: 0

retry:
  max_attempts: 3
  initial_delay: 2s
  max_delay: 30s
  multiplier: 2.0

notifications:
  enabled: false

logging:
  # debug, info, warn, error
  level: info
  # Also write JSON lines here
  file: ""
  color: true

metrics:
  # Prometheus node-exporter textfile, empty to disable
  textfile: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		return errs.New(errs.ErrorTypeConfig, "configuration file already exists: "+configPath, nil)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return errs.New(errs.ErrorTypeStorage, "failed to create config directory", err)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		return errs.New(errs.ErrorTypeStorage, "failed to create configuration file", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	out := ui.Output()
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "1. Set download.directory in the configuration file")
	fmt.Fprintln(out, "2. Run 'magistodl config validate' to check the configuration")
	fmt.Fprintln(out, "3. Start downloading with 'magistodl run'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return errs.New(errs.ErrorTypeConfig, "failed to load configuration", err)
	}

	display := *cfg
	if display.Credentials.Password != "" {
		display.Credentials.Password = "********"
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	fmt.Fprint(ui.Output(), string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.FindConfigFile()
	}
	if path != "" {
		ui.PrintInfo("Validating configuration", path)
	} else {
		ui.PrintInfo("Validating configuration", "(defaults and environment)")
	}

	cfg, err := config.Load(path, nil)
	if err != nil {
		return errs.New(errs.ErrorTypeConfig, "configuration validation failed", err)
	}

	var problems, warnings []string

	if err := os.MkdirAll(cfg.Download.Directory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create download directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if cfg.Browser.Headless && cfg.Session.Prompt && !cfg.Credentials.HasPair() && cfg.Credentials.Account == "" {
		warnings = append(warnings, "headless mode without credentials: manual login has no window")
	}
	if cfg.Credentials.Password != "" {
		warnings = append(warnings, "password stored in plain text, consider 'magistodl auth login'")
	}
	if cfg.Download.SettleWindow < cfg.Download.PostClickDelay {
		warnings = append(warnings, "settle_window is shorter than post_click_delay")
	}

	out := ui.Output()
	if len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintf(out, "  - %s\n", p)
		}
		return errs.New(errs.ErrorTypeConfig, "configuration has errors", nil)
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
		fmt.Fprintln(out)
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Fprintln(out, "\nConfiguration summary:")
	fmt.Fprintf(out, "  Download directory: %s\n", cfg.Download.Directory)
	fmt.Fprintf(out, "  Settle window: %s\n", cfg.Download.SettleWindow)
	fmt.Fprintf(out, "  Rate limit: %d page visits/minute\n", cfg.RateLimit.PageVisitsPerMinute)
	fmt.Fprintf(out, "  Max retries: %d\n", cfg.Retry.MaxAttempts)
	fmt.Fprintf(out, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
