// Package downloader drives the retrieval of one resource through the
// browser and confirms it by watching the download directory.
package downloader

import (
	"context"
	"errors"
	"time"

	"magistodl/pkg/browser"
	"magistodl/pkg/config"
	errs "magistodl/pkg/errors"
	"magistodl/pkg/logger"
	"magistodl/pkg/models"
	"magistodl/pkg/retry"
	"magistodl/pkg/site"
	"magistodl/pkg/storage"
)

// Directory is the download directory as seen around a click
type Directory interface {
	Snapshot() (storage.Snapshot, error)
	NewFiles(before storage.Snapshot) ([]models.DownloadedFile, error)
}

// Ledger records which file a resource produced
type Ledger interface {
	Append(rec models.MappingRecord) (bool, error)
}

// SettleFunc blocks for at most window while the browser writes the file.
// It may return early once a new completed file appears.
type SettleFunc func(ctx context.Context, before storage.Snapshot, window time.Duration) error

// Result describes one retrieval attempt
type Result struct {
	models.DownloadResult
	// Before is the directory snapshot taken just before the click.
	Before   storage.Snapshot
	Duration time.Duration
}

// Downloader runs the click-and-confirm protocol for resources that were
// reconciled NotFound. It handles one resource at a time.
type Downloader struct {
	driver  browser.Driver
	profile *site.Profile
	cfg     config.DownloadConfig
	dir     Directory
	ledger  Ledger
	logger  logger.Logger

	settle SettleFunc
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Downloader. settle may be nil, in which case the full
// settle window is always waited out.
func New(d browser.Driver, p *site.Profile, cfg config.DownloadConfig, dir Directory, ledger Ledger, settle SettleFunc, log logger.Logger) *Downloader {
	dl := &Downloader{
		driver:  d,
		profile: p,
		cfg:     cfg,
		dir:     dir,
		ledger:  ledger,
		logger:  logger.ForComponent(log, "downloader"),
		settle:  settle,
		sleep:   retry.Wait,
	}
	if dl.settle == nil {
		dl.settle = func(ctx context.Context, _ storage.Snapshot, window time.Duration) error {
			return dl.sleep(ctx, window)
		}
	}
	return dl
}

// Download retrieves ref. A missing retrieval control is returned as a
// control_not_found error and a page that will not load as a navigation
// error; both only concern this resource. A click that produced no file in
// the settle window is not an error: the result is DownloadUnconfirmed.
func (dl *Downloader) Download(ctx context.Context, ref models.ResourceReference) (*Result, error) {
	start := time.Now()
	log := dl.logger.WithField("url", ref.URL)

	if err := dl.open(ctx, ref.URL); err != nil {
		return nil, err
	}
	if err := dl.sleep(ctx, dl.cfg.WidgetSettle); err != nil {
		return nil, err
	}

	button, sel, err := browser.FirstClickable(ctx, dl.driver, dl.profile.DownloadSelectors, dl.cfg.ButtonTimeout, nil)
	if err != nil {
		if isAbsent(err) {
			log.Warn("No download button found")
			return nil, errs.ForURL(errs.ErrorTypeControlNotFound, ref.URL, "no download button found", err)
		}
		return nil, err
	}
	log.DebugWithFields("Found download button", map[string]interface{}{"selector": sel.String()})

	before, err := dl.dir.Snapshot()
	if err != nil {
		return nil, err
	}

	if err := button.Click(ctx); err != nil {
		if errs.Is(err, errs.ErrorTypeBrowser) {
			return nil, err
		}
		return nil, errs.ForURL(errs.ErrorTypeControlNotFound, ref.URL, "download button could not be clicked", err)
	}
	log.Info("Clicked download button")

	if err := dl.sleep(ctx, dl.cfg.PostClickDelay); err != nil {
		return nil, err
	}
	if err := dl.confirm(ctx, log, button); err != nil {
		return nil, err
	}

	if err := dl.settle(ctx, before, dl.cfg.SettleWindow); err != nil {
		return nil, err
	}

	result := &Result{
		DownloadResult: models.DownloadResult{URL: ref.URL, Status: models.DownloadUnconfirmed},
		Before:         before,
	}

	added, err := dl.dir.NewFiles(before)
	if err != nil {
		return nil, err
	}
	if len(added) == 0 {
		result.Duration = time.Since(start)
		log.WarnWithFields("No new file appeared, download may still be in progress", map[string]interface{}{
			"settle_window": dl.cfg.SettleWindow.String(),
		})
		return result, nil
	}

	file := added[0]
	if len(added) > 1 {
		log.WarnWithFields("Several new files appeared, recording the first", map[string]interface{}{
			"count": len(added),
		})
	}
	if _, err := dl.ledger.Append(models.MappingRecord{URL: ref.URL, Filename: file.Name}); err != nil {
		return nil, err
	}

	result.Status = models.DownloadConfirmed
	result.Filename = file.Name
	result.Duration = time.Since(start)
	log.InfoWithFields("Download confirmed", map[string]interface{}{
		"file":     file.Name,
		"size":     file.Size,
		"duration": result.Duration.String(),
	})
	return result, nil
}

// open navigates to url unless the browser is already there
func (dl *Downloader) open(ctx context.Context, url string) error {
	if current, err := dl.driver.CurrentURL(ctx); err == nil && current == url {
		return nil
	}
	if err := dl.driver.Navigate(ctx, url); err != nil {
		if errs.Is(err, errs.ErrorTypeBrowser) || ctx.Err() != nil {
			return err
		}
		return errs.ForURL(errs.ErrorTypeNavigation, url, "failed to open resource page", err)
	}
	return nil
}

// confirm clicks the optional confirmation control. Its absence is normal.
func (dl *Downloader) confirm(ctx context.Context, log logger.Logger, first browser.Element) error {
	el, sel, err := browser.FirstClickable(ctx, dl.driver, dl.profile.ConfirmSelectors, dl.cfg.ConfirmTimeout, browser.SameElement(first))
	if err != nil {
		if isAbsent(err) {
			log.Debug("No confirmation dialog")
			return nil
		}
		return err
	}
	if err := el.Click(ctx); err != nil {
		if errs.Is(err, errs.ErrorTypeBrowser) {
			return err
		}
		log.WithError(err).Warn("Confirmation button could not be clicked")
		return nil
	}
	log.DebugWithFields("Clicked confirmation button", map[string]interface{}{"selector": sel.String()})
	return nil
}

func isAbsent(err error) bool {
	return errors.Is(err, browser.ErrTimeout) || errors.Is(err, browser.ErrNotFound)
}
