package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"magistodl/pkg/config"
	errs "magistodl/pkg/errors"
	"magistodl/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "magistodl",
	Short: "Back up your Magisto video library to a local folder",
	Long: `magistodl drives a Chrome window through your Magisto account and downloads
every video in your library that is not already in the download folder.

Features:
  - Manual login in the browser window, or automatic login with stored credentials
  - Infinite-scroll enumeration of the whole library
  - Skips videos already on disk, even under a renamed or truncated filename
  - A ledger of which file each video produced, so later runs never re-download
  - Downloads that finish after a run ends are picked up on the next run

Running magistodl without a subcommand is the same as 'magistodl run'.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetColor(false)
		}
		if quiet {
			ui.SetQuietMode(true)
		}

		// Don't show logo for certain commands
		if cmd.Name() != "version" && cmd.Name() != "help" && cmd.Name() != "show" {
			ui.PrintLogo()
		}
	},
	RunE: runDownload,
}

// Execute runs the root command and exits with the code for the error kind
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(errs.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: ./magistodl.yaml or ~/.config/magistodl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show debug logs and a line per video")

	rootCmd.SetVersionTemplate(`magistodl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads the configuration with the flags the user set on cmd.
// Only changed flags are merged so file and environment values survive.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := make(map[string]interface{})
	fs := cmd.Flags()

	for _, name := range []string{"output", "email", "account", "profile-dir", "log-file", "metrics-file"} {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			flags[name] = v
		}
	}
	for _, name := range []string{"headless", "prompt", "notify"} {
		if fs.Changed(name) {
			v, _ := fs.GetBool(name)
			flags[name] = v
		}
	}
	if fs.Changed("settle") {
		v, _ := fs.GetDuration("settle")
		flags["settle"] = v
	}

	switch {
	case logLevel != "":
		flags["log-level"] = logLevel
	case verbose:
		flags["log-level"] = "debug"
	case quiet:
		flags["log-level"] = "error"
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeConfig, "failed to load configuration", err)
	}
	if noColor {
		cfg.Logging.Color = false
	}
	return cfg, nil
}
