package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix shared by every environment variable the tool reads.
const EnvPrefix = "MAGISTODL_"

// Config holds all configuration options for the downloader
type Config struct {
	Browser       BrowserConfig      `yaml:"browser" json:"browser"`
	Site          SiteConfig         `yaml:"site" json:"site"`
	Session       SessionConfig      `yaml:"session" json:"session"`
	Credentials   CredentialsConfig  `yaml:"credentials" json:"credentials"`
	Download      DownloadConfig     `yaml:"download" json:"download"`
	Enumeration   EnumerationConfig  `yaml:"enumeration" json:"enumeration"`
	Reconcile     ReconcileConfig    `yaml:"reconcile" json:"reconcile"`
	RateLimit     RateLimitConfig    `yaml:"rate_limit" json:"rate_limit"`
	Retry         RetryConfig        `yaml:"retry" json:"retry"`
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`
	Logging       LoggingConfig      `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig      `yaml:"metrics" json:"metrics"`
}

// BrowserConfig controls how the Chrome instance is launched
type BrowserConfig struct {
	Headless          bool          `yaml:"headless" json:"headless"`
	ExecPath          string        `yaml:"exec_path" json:"exec_path"`
	UserDataDir       string        `yaml:"user_data_dir" json:"user_data_dir"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	WindowWidth       int           `yaml:"window_width" json:"window_width"`
	WindowHeight      int           `yaml:"window_height" json:"window_height"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
}

// SiteConfig holds the hosting service endpoints
type SiteConfig struct {
	BaseURL      string   `yaml:"base_url" json:"base_url"`
	LoginURL     string   `yaml:"login_url" json:"login_url"`
	ListingPaths []string `yaml:"listing_paths" json:"listing_paths"`
	Brand        string   `yaml:"brand" json:"brand"`
}

// SessionConfig holds the login timings
type SessionConfig struct {
	// Prompt enables the interactive manual-login pause. When false the
	// manual step re-checks immediately and falls through to automatic login.
	Prompt                bool          `yaml:"prompt" json:"prompt"`
	LoginDiscoveryTimeout time.Duration `yaml:"login_discovery_timeout" json:"login_discovery_timeout"`
	EmailFieldTimeout     time.Duration `yaml:"email_field_timeout" json:"email_field_timeout"`
	LoginSettle           time.Duration `yaml:"login_settle" json:"login_settle"`
	PostLoginClickDelay   time.Duration `yaml:"post_login_click_delay" json:"post_login_click_delay"`
}

// CredentialsConfig holds the optional automatic-login credential pair
type CredentialsConfig struct {
	Email    string `yaml:"email" json:"email"`
	Password string `yaml:"password" json:"-"`
	// Account names a credential stored with `magistodl auth login`.
	Account string `yaml:"account" json:"account"`
}

// HasPair reports whether both halves of the credential pair are present.
func (c CredentialsConfig) HasPair() bool {
	return c.Email != "" && c.Password != ""
}

// DownloadConfig holds the per-resource retrieval timings
type DownloadConfig struct {
	Directory      string        `yaml:"directory" json:"directory"`
	PageLoadDelay  time.Duration `yaml:"page_load_delay" json:"page_load_delay"`
	WidgetSettle   time.Duration `yaml:"widget_settle" json:"widget_settle"`
	ButtonTimeout  time.Duration `yaml:"button_timeout" json:"button_timeout"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout" json:"confirm_timeout"`
	PostClickDelay time.Duration `yaml:"post_click_delay" json:"post_click_delay"`
	SettleWindow   time.Duration `yaml:"settle_window" json:"settle_window"`
	// Watch ends the settle window early once a completed file shows up.
	Watch bool `yaml:"watch" json:"watch"`
}

// EnumerationConfig holds the infinite-scroll convergence settings
type EnumerationConfig struct {
	ScrollSettle     time.Duration `yaml:"scroll_settle" json:"scroll_settle"`
	StableIterations int           `yaml:"stable_iterations" json:"stable_iterations"`
	ListingLoadDelay time.Duration `yaml:"listing_load_delay" json:"listing_load_delay"`
	MaxScrolls       int           `yaml:"max_scrolls" json:"max_scrolls"`
}

// ReconcileConfig holds the filename matching heuristics
type ReconcileConfig struct {
	Extensions       []string `yaml:"extensions" json:"extensions"`
	QualitySuffixes  []string `yaml:"quality_suffixes" json:"quality_suffixes"`
	GenericTitles    []string `yaml:"generic_titles" json:"generic_titles"`
	GenericMaxLength int      `yaml:"generic_max_length" json:"generic_max_length"`
	TruncateLength   int      `yaml:"truncate_length" json:"truncate_length"`
	FlexibleMin      int      `yaml:"flexible_min" json:"flexible_min"`
	FlexibleMax      int      `yaml:"flexible_max" json:"flexible_max"`
	Boilerplate      []string `yaml:"boilerplate" json:"boilerplate"`
}

// RateLimitConfig paces page visits
type RateLimitConfig struct {
	PageVisitsPerMinute int `yaml:"page_visits_per_minute" json:"page_visits_per_minute"`
	// Burst switches to a token bucket allowing this many visits back to
	// back. Zero keeps the strict sliding window.
	Burst int `yaml:"burst" json:"burst"`
}

// RetryConfig controls navigation retries
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
	Color bool   `yaml:"color" json:"color"`
}

// MetricsConfig holds the Prometheus textfile destination
type MetricsConfig struct {
	Textfile string `yaml:"textfile" json:"textfile"`
}

// DefaultConfig returns a Config instance with the values the hosting
// service has been observed to need.
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:          false,
			WindowWidth:       1920,
			WindowHeight:      1080,
			NavigationTimeout: 60 * time.Second,
		},
		Site: SiteConfig{
			BaseURL:  "https://www.magisto.com",
			LoginURL: "https://www.magisto.com/connect",
			ListingPaths: []string{
				"/video/mine",
				"/my-movies",
				"/videos",
				"/dashboard",
				"/library",
				"/home",
			},
			Brand: "Magisto",
		},
		Session: SessionConfig{
			Prompt:                true,
			LoginDiscoveryTimeout: 5 * time.Second,
			EmailFieldTimeout:     10 * time.Second,
			LoginSettle:           8 * time.Second,
			PostLoginClickDelay:   3 * time.Second,
		},
		Download: DownloadConfig{
			Directory:      "./downloads",
			PageLoadDelay:  3 * time.Second,
			WidgetSettle:   5 * time.Second,
			ButtonTimeout:  15 * time.Second,
			ConfirmTimeout: 5 * time.Second,
			PostClickDelay: 3 * time.Second,
			SettleWindow:   10 * time.Second,
			Watch:          true,
		},
		Enumeration: EnumerationConfig{
			ScrollSettle:     3 * time.Second,
			StableIterations: 15,
			ListingLoadDelay: 5 * time.Second,
			MaxScrolls:       0,
		},
		Reconcile: ReconcileConfig{
			Extensions:      []string{"mp4", "mov", "avi", "mkv", "wmv", "webm"},
			QualitySuffixes: []string{"", "_HD", "_FULL_HD", "_HQ", "_FULL"},
			GenericTitles: []string{
				"untitled",
				"bez názvu",
				"no title",
				"no name",
				"untitled video",
				"new video",
				"video",
				"my video",
			},
			GenericMaxLength: 2,
			TruncateLength:   20,
			FlexibleMin:      15,
			FlexibleMax:      25,
			Boilerplate:      []string{"Magisto", "Download", "Page not Found"},
		},
		RateLimit: RateLimitConfig{
			PageVisitsPerMinute: 30,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 2 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
		Notifications: NotificationConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level: "info",
			Color: true,
		},
	}
}

// LoadFromEnv loads configuration from MAGISTODL_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	setBool := func(name string, dst *bool) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	setString("EMAIL", &c.Credentials.Email)
	setString("PASSWORD", &c.Credentials.Password)
	setString("ACCOUNT", &c.Credentials.Account)

	setString("DOWNLOAD_DIR", &c.Download.Directory)
	setDuration("SETTLE_WINDOW", &c.Download.SettleWindow)
	setDuration("BUTTON_TIMEOUT", &c.Download.ButtonTimeout)

	setBool("HEADLESS", &c.Browser.Headless)
	setString("CHROME_PATH", &c.Browser.ExecPath)
	setString("USER_DATA_DIR", &c.Browser.UserDataDir)

	setBool("PROMPT", &c.Session.Prompt)
	setInt("STABLE_ITERATIONS", &c.Enumeration.StableIterations)
	setInt("PAGE_VISITS_PER_MINUTE", &c.RateLimit.PageVisitsPerMinute)
	setInt("RATE_LIMIT_BURST", &c.RateLimit.Burst)
	setBool("NOTIFICATIONS_ENABLED", &c.Notifications.Enabled)

	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)
	setString("METRICS_TEXTFILE", &c.Metrics.Textfile)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile returns the first existing config file in the standard
// locations, or "" if there is none.
func FindConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		"magistodl.yaml",
		"magistodl.yml",
		filepath.Join(home, ".config", "magistodl", "config.yaml"),
		filepath.Join(home, ".config", "magistodl", "config.yml"),
		"/etc/magistodl/config.yaml",
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// DefaultConfigPath is where `config init` writes when no path is given.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "magistodl.yaml"
	}
	return filepath.Join(home, ".config", "magistodl", "config.yaml")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Download.Directory == "" {
		errs = append(errs, errors.New("download directory is required"))
	}
	if c.Site.BaseURL == "" || c.Site.LoginURL == "" {
		errs = append(errs, errors.New("site base_url and login_url are required"))
	}

	positive := map[string]time.Duration{
		"download.button_timeout":         c.Download.ButtonTimeout,
		"download.confirm_timeout":        c.Download.ConfirmTimeout,
		"download.settle_window":          c.Download.SettleWindow,
		"session.login_discovery_timeout": c.Session.LoginDiscoveryTimeout,
		"session.email_field_timeout":     c.Session.EmailFieldTimeout,
		"browser.navigation_timeout":      c.Browser.NavigationTimeout,
	}
	for name, d := range positive {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	nonNegative := map[string]time.Duration{
		"download.page_load_delay":       c.Download.PageLoadDelay,
		"download.widget_settle":         c.Download.WidgetSettle,
		"download.post_click_delay":      c.Download.PostClickDelay,
		"enumeration.scroll_settle":      c.Enumeration.ScrollSettle,
		"enumeration.listing_load_delay": c.Enumeration.ListingLoadDelay,
		"session.login_settle":           c.Session.LoginSettle,
		"session.post_login_click_delay": c.Session.PostLoginClickDelay,
	}
	for name, d := range nonNegative {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s cannot be negative", name))
		}
	}

	if c.Enumeration.StableIterations <= 0 {
		errs = append(errs, errors.New("enumeration.stable_iterations must be positive"))
	}
	if c.Enumeration.MaxScrolls < 0 {
		errs = append(errs, errors.New("enumeration.max_scrolls cannot be negative"))
	}

	r := c.Reconcile
	if len(r.Extensions) == 0 {
		errs = append(errs, errors.New("reconcile.extensions must not be empty"))
	}
	if r.TruncateLength <= 0 {
		errs = append(errs, errors.New("reconcile.truncate_length must be positive"))
	}
	if r.FlexibleMin <= 0 || r.FlexibleMax < r.FlexibleMin {
		errs = append(errs, fmt.Errorf("reconcile flexible range [%d, %d] is invalid", r.FlexibleMin, r.FlexibleMax))
	}
	if r.GenericMaxLength < 0 {
		errs = append(errs, errors.New("reconcile.generic_max_length cannot be negative"))
	}

	if c.RateLimit.PageVisitsPerMinute < 0 {
		errs = append(errs, errors.New("rate_limit.page_visits_per_minute cannot be negative"))
	}
	if c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit.burst cannot be negative"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry.multiplier must be at least 1"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only flags the user actually set should be present in the map.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if dir, ok := flags["output"].(string); ok && dir != "" {
		c.Download.Directory = dir
	}
	if email, ok := flags["email"].(string); ok && email != "" {
		c.Credentials.Email = email
	}
	if account, ok := flags["account"].(string); ok && account != "" {
		c.Credentials.Account = account
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if profile, ok := flags["profile-dir"].(string); ok && profile != "" {
		c.Browser.UserDataDir = profile
	}
	if prompt, ok := flags["prompt"].(bool); ok {
		c.Session.Prompt = prompt
	}
	if settle, ok := flags["settle"].(time.Duration); ok && settle > 0 {
		c.Download.SettleWindow = settle
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile, ok := flags["log-file"].(string); ok && logFile != "" {
		c.Logging.File = logFile
	}
	if metrics, ok := flags["metrics-file"].(string); ok && metrics != "" {
		c.Metrics.Textfile = metrics
	}
	if notify, ok := flags["notify"].(bool); ok {
		c.Notifications.Enabled = notify
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment (.env included) > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	home, _ := os.UserHomeDir()
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(home, ".env"))
	_ = godotenv.Load(filepath.Join(home, ".magistodl.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
