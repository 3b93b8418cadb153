package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Enumeration.StableIterations != 15 {
		t.Errorf("Expected 15 stable iterations, got %d", cfg.Enumeration.StableIterations)
	}
	if cfg.Download.ButtonTimeout != 15*time.Second {
		t.Errorf("Expected button timeout 15s, got %v", cfg.Download.ButtonTimeout)
	}
	if cfg.Download.SettleWindow != 10*time.Second {
		t.Errorf("Expected settle window 10s, got %v", cfg.Download.SettleWindow)
	}
	if cfg.Download.Directory != "./downloads" {
		t.Errorf("Expected download directory ./downloads, got %s", cfg.Download.Directory)
	}

	assert.Equal(t, 20, cfg.Reconcile.TruncateLength)
	assert.Equal(t, 15, cfg.Reconcile.FlexibleMin)
	assert.Equal(t, 25, cfg.Reconcile.FlexibleMax)
	assert.Contains(t, cfg.Reconcile.GenericTitles, "my video")
	assert.Equal(t, "", cfg.Reconcile.QualitySuffixes[0], "bare title must be tried first")
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MAGISTODL_EMAIL", "someone@example.com")
	t.Setenv("MAGISTODL_PASSWORD", "secret")
	t.Setenv("MAGISTODL_DOWNLOAD_DIR", "/tmp/videos")
	t.Setenv("MAGISTODL_HEADLESS", "true")
	t.Setenv("MAGISTODL_SETTLE_WINDOW", "25s")
	t.Setenv("MAGISTODL_STABLE_ITERATIONS", "4")
	t.Setenv("MAGISTODL_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "someone@example.com", cfg.Credentials.Email)
	assert.Equal(t, "secret", cfg.Credentials.Password)
	assert.True(t, cfg.Credentials.HasPair())
	assert.Equal(t, "/tmp/videos", cfg.Download.Directory)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 25*time.Second, cfg.Download.SettleWindow)
	assert.Equal(t, 4, cfg.Enumeration.StableIterations)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvRejectsMalformedValues(t *testing.T) {
	t.Setenv("MAGISTODL_HEADLESS", "sometimes")
	t.Setenv("MAGISTODL_SETTLE_WINDOW", "ten seconds")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAGISTODL_HEADLESS")
	assert.Contains(t, err.Error(), "MAGISTODL_SETTLE_WINDOW")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError bool
	}{
		{
			name:      "defaults",
			mutate:    func(c *Config) {},
			wantError: false,
		},
		{
			name:      "missing download directory",
			mutate:    func(c *Config) { c.Download.Directory = "" },
			wantError: true,
		},
		{
			name:      "zero button timeout",
			mutate:    func(c *Config) { c.Download.ButtonTimeout = 0 },
			wantError: true,
		},
		{
			name:      "inverted flexible range",
			mutate:    func(c *Config) { c.Reconcile.FlexibleMin, c.Reconcile.FlexibleMax = 25, 15 },
			wantError: true,
		},
		{
			name:      "no stable iterations",
			mutate:    func(c *Config) { c.Enumeration.StableIterations = 0 },
			wantError: true,
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.Logging.Level = "verbose" },
			wantError: true,
		},
		{
			name:      "zero scroll settle is allowed",
			mutate:    func(c *Config) { c.Enumeration.ScrollSettle = 0 },
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()

	cfg.MergeCommandLineFlags(map[string]interface{}{
		"output":    "/flag/output",
		"email":     "flag@example.com",
		"headless":  true,
		"prompt":    false,
		"settle":    30 * time.Second,
		"log-level": "error",
	})

	assert.Equal(t, "/flag/output", cfg.Download.Directory)
	assert.Equal(t, "flag@example.com", cfg.Credentials.Email)
	assert.True(t, cfg.Browser.Headless)
	assert.False(t, cfg.Session.Prompt)
	assert.Equal(t, 30*time.Second, cfg.Download.SettleWindow)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Download.Directory = "/srv/videos"
	cfg.Reconcile.FlexibleMax = 30
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "/srv/videos", loaded.Download.Directory)
	assert.Equal(t, 30, loaded.Reconcile.FlexibleMax)
	assert.Equal(t, 15*time.Second, loaded.Download.ButtonTimeout)
}

func TestLoadFromFileDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
download:
  directory: /data/magisto
  settle_window: 45s
enumeration:
  stable_iterations: 5
reconcile:
  generic_titles: ["untitled", "film"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "/data/magisto", cfg.Download.Directory)
	assert.Equal(t, 45*time.Second, cfg.Download.SettleWindow)
	assert.Equal(t, 5, cfg.Enumeration.StableIterations)
	assert.Equal(t, []string{"untitled", "film"}, cfg.Reconcile.GenericTitles)
	// untouched keys keep their defaults
	assert.Equal(t, 5*time.Second, cfg.Download.ConfirmTimeout)
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\ndownload:\n  directory: /from/file\n"), 0644))

	t.Setenv("MAGISTODL_DOWNLOAD_DIR", "/from/env")

	cfg, err := Load(path, map[string]interface{}{"log-level": "debug"})
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.Download.Directory)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download: [not, a, map"), 0644))

	_, err := Load(path, nil)
	assert.Error(t, err)
}
