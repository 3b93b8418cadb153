package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"magistodl/pkg/auth"
	"magistodl/pkg/browser"
	"magistodl/pkg/config"
	errs "magistodl/pkg/errors"
	"magistodl/pkg/logger"
	"magistodl/pkg/scraper"
	"magistodl/pkg/session"
	"magistodl/pkg/ui"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Download every video in your library that is not on disk yet",
	Long: `Open Chrome, make sure you are logged in, enumerate your whole library and
download every video that cannot be matched to a file in the download folder.

Login uses, in order:
  - the stored account named with --account
  - --email / MAGISTODL_EMAIL with the password from MAGISTODL_PASSWORD or a prompt
  - the most recently stored account ('magistodl auth login')
  - otherwise you log in by hand in the browser window and press Enter

Runs are safe to repeat: videos already downloaded are skipped.`,
	Example: `  # Download into ./downloads, logging in by hand
  magistodl run

  # Use a specific folder and a stored account
  magistodl run --output ~/Videos/Magisto --account family

  # Unattended run with a persistent Chrome profile
  magistodl run --prompt=false --profile-dir ~/.config/magistodl/chrome`,
	Args: cobra.NoArgs,
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(runCmd)

	addRunFlags(runCmd.Flags())
	// The root command runs a download too
	addRunFlags(rootCmd.Flags())
}

func addRunFlags(fs *pflag.FlagSet) {
	fs.StringP("output", "o", "", "download directory (default: ./downloads)")
	fs.String("email", "", "account email for automatic login")
	fs.StringP("account", "a", "", "use a stored account")
	fs.Bool("headless", false, "run Chrome without a window (automatic login only)")
	fs.String("profile-dir", "", "persistent Chrome profile directory")
	fs.Bool("prompt", true, "pause for a manual login in the browser window")
	fs.Duration("settle", 0, "how long to wait for a download to appear (default: 10s)")
	fs.String("log-file", "", "also write JSON logs to this file")
	fs.String("metrics-file", "", "write Prometheus metrics to this textfile")
	fs.Bool("notify", false, "send a desktop notification when the run ends")
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return errs.New(errs.ErrorTypeConfig, "failed to initialize logger", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("magistodl starting")

	dir, err := filepath.Abs(cfg.Download.Directory)
	if err != nil {
		return errs.New(errs.ErrorTypeStorage, "invalid download directory", err)
	}
	cfg.Download.Directory = dir

	if err := resolveCredentials(cfg, log); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.PrintInfo("Download directory", dir)
	if cfg.Credentials.HasPair() {
		ui.PrintInfo("Automatic login", cfg.Credentials.Email)
	} else if cfg.Session.Prompt {
		auth.ShowQuickLoginGuide(ui.Output())
	}

	driver, err := browser.NewChromeDriver(ctx, browser.OptionsFromConfig(cfg.Browser, dir), log)
	if err != nil {
		return err
	}
	defer driver.Close()

	var cont session.Continuation = session.Immediate{}
	if cfg.Session.Prompt {
		cont = session.LineContinuation{In: os.Stdin, Out: ui.Output()}
	}

	s, err := scraper.New(cfg, driver, cont, log)
	if err != nil {
		return err
	}
	defer s.Close()

	if !ui.IsQuietMode() {
		s.SetProgress(ui.NewProgressDisplay(ui.Output(), verbose))
	}

	stats, err := s.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			ui.PrintWarning("Interrupted")
		}
		log.WithError(err).Error("Run failed")
		return err
	}

	log.InfoWithFields("Run completed", map[string]interface{}{
		"run_id":     stats.RunID,
		"downloaded": stats.Downloaded,
		"skipped":    stats.Skipped,
		"failed":     stats.Failed,
	})
	if stats.Failed > 0 {
		ui.PrintWarning(fmt.Sprintf("%d videos failed, run again to retry them", stats.Failed))
	}
	return nil
}

// resolveCredentials completes cfg.Credentials from the credential stores
// and, for an email without a password, from a terminal prompt.
func resolveCredentials(cfg *config.Config, log logger.Logger) error {
	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Warn("Credential stores unavailable")
	} else {
		resolved, err := manager.Resolve(cfg.Credentials)
		if err != nil {
			return errs.New(errs.ErrorTypeAuth, fmt.Sprintf("stored account %q not found, see 'magistodl auth list'", cfg.Credentials.Account), err)
		}
		cfg.Credentials = resolved
	}

	if cfg.Credentials.Email != "" && cfg.Credentials.Password == "" && cfg.Session.Prompt && isTerminal() {
		fmt.Fprintf(ui.Output(), "🔑 Password for %s (Enter to log in by hand): ", cfg.Credentials.Email)
		password, err := readPassword()
		if err != nil {
			return errs.New(errs.ErrorTypeAuth, "failed to read password", err)
		}
		cfg.Credentials.Password = password
	}
	return nil
}
