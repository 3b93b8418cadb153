package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"magistodl/internal/downloader"
	"magistodl/pkg/browser"
	"magistodl/pkg/checkpoint"
	"magistodl/pkg/config"
	"magistodl/pkg/enumerator"
	errs "magistodl/pkg/errors"
	"magistodl/pkg/logger"
	"magistodl/pkg/metrics"
	"magistodl/pkg/models"
	"magistodl/pkg/ratelimit"
	"magistodl/pkg/reconcile"
	"magistodl/pkg/retry"
	"magistodl/pkg/session"
	"magistodl/pkg/site"
	"magistodl/pkg/storage"
	"magistodl/pkg/ui"
)

// Outcome labels used in logs and metrics
const (
	OutcomeDownloaded  = "downloaded"
	OutcomeUnconfirmed = "unconfirmed"
	OutcomeSkipped     = "skipped"
	OutcomeFailed      = "failed"
)

// RunStatistics is the aggregate result of one run
type RunStatistics struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	Enumerated  int
	Total       int
	Downloaded  int
	Unconfirmed int
	Skipped     int
	Failed      int
	// Recovered counts earlier unconfirmed downloads whose file was found.
	Recovered int

	LibraryFiles int
	LibraryBytes int64
}

// Processed is the number of resources that reached an outcome
func (s *RunStatistics) Processed() int {
	return s.Downloaded + s.Unconfirmed + s.Skipped + s.Failed
}

// Summary converts the statistics for the terminal report
func (s *RunStatistics) Summary() ui.Summary {
	return ui.Summary{
		RunID:        s.RunID,
		Downloaded:   s.Downloaded,
		Unconfirmed:  s.Unconfirmed,
		Skipped:      s.Skipped,
		Failed:       s.Failed,
		Total:        s.Total,
		Recovered:    s.Recovered,
		Duration:     s.Duration,
		LibraryFiles: s.LibraryFiles,
		LibraryBytes: s.LibraryBytes,
	}
}

// Scraper is the run controller. It sequences login, enumeration,
// validation and, per resource, reconciliation and download. A failure on
// one resource is counted and the queue continues; only fatal errors end
// the run early.
type Scraper struct {
	driver      browser.Driver
	session     Authenticator
	enumerator  Enumerator
	validator   Validator
	reconciler  Reconciler
	downloader  Retriever
	storage     *storage.Manager
	ledger      *storage.MappingStore
	checkpoints *checkpoint.Manager
	watcher     *storage.Watcher
	rateLimiter ratelimit.Limiter
	retry       *retry.Config
	metrics     *metrics.Metrics
	progress    Progress
	notifier    *ui.Notifier
	config      *config.Config
	logger      logger.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New wires every component around an open browser. cont is the manual
// login continuation; nil continues immediately.
func New(cfg *config.Config, d browser.Driver, cont session.Continuation, log logger.Logger) (*Scraper, error) {
	log = logger.ForComponent(log, "run")

	storageManager, err := storage.NewManager(cfg.Download.Directory)
	if err != nil {
		return nil, err
	}
	ledger, err := storage.OpenMappingStore(storageManager.Dir())
	if err != nil {
		return nil, err
	}

	profile := site.Magisto(cfg.Site)
	policy := reconcile.PolicyFromConfig(cfg.Reconcile, cfg.Site.Brand)
	titles := reconcile.NewPageTitleReader(d, profile.TitleSelectors, policy, log)

	s := &Scraper{
		driver:      d,
		session:     session.NewManager(d, profile, cfg.Session, cfg.Credentials, cont, log),
		enumerator:  enumerator.New(d, profile, cfg.Enumeration, storageManager, log),
		validator:   enumerator.NewValidator(profile, log),
		reconciler:  reconcile.NewEngine(storageManager, ledger, titles, policy, log),
		storage:     storageManager,
		ledger:      ledger,
		checkpoints: checkpoint.NewManager(storageManager.Dir(), log),
		rateLimiter: ratelimit.FromConfig(cfg.RateLimit),
		retry:       retry.FromConfig(cfg.Retry, log),
		metrics:     metrics.New(),
		progress:    nopProgress{},
		notifier:    ui.NewNotifier(cfg.Notifications.Enabled),
		config:      cfg,
		logger:      log,
		sleep:       retry.Wait,
		now:         time.Now,
	}

	var settle downloader.SettleFunc
	if cfg.Download.Watch {
		w, err := storage.NewWatcher(storageManager, log)
		if err != nil {
			log.WithError(err).Warn("Directory watch unavailable, waiting out the full settle window")
		} else {
			s.watcher = w
			settle = w.Settle
		}
	}
	s.downloader = downloader.New(d, profile, cfg.Download, storageManager, ledger, settle, log)

	return s, nil
}

// SetProgress sets the terminal progress reporter
func (s *Scraper) SetProgress(p Progress) {
	if p == nil {
		p = nopProgress{}
	}
	s.progress = p
}

// SetNotifier replaces the desktop notifier
func (s *Scraper) SetNotifier(n *ui.Notifier) {
	s.notifier = n
}

// Close releases the directory watcher. The browser belongs to the caller.
func (s *Scraper) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// Run performs one complete pass. The statistics are returned even when a
// fatal error ends the run early.
func (s *Scraper) Run(ctx context.Context) (*RunStatistics, error) {
	stats := &RunStatistics{RunID: uuid.NewString(), StartedAt: s.now()}
	log := s.logger.WithField("run_id", stats.RunID)

	log.InfoWithFields("Run started", map[string]interface{}{
		"directory": s.storage.Dir(),
		"recorded":  s.ledger.Len(),
	})

	cp, err := s.loadCheckpoint(log, stats)
	if err != nil {
		return s.finish(log, stats, err), err
	}

	refs, err := s.discover(ctx, stats)
	if err != nil {
		return s.finish(log, stats, err), err
	}

	s.progress.Begin(len(refs))
	logger.LogStage(log, "download", map[string]interface{}{"resources": len(refs)})

	for i, ref := range refs {
		rlog := log.WithFields(map[string]interface{}{
			"url":      ref.URL,
			"position": fmt.Sprintf("%d/%d", i+1, len(refs)),
		})
		if err := s.process(ctx, rlog, ref, cp, stats); err != nil {
			rlog.WithError(err).Error("Aborting run")
			return s.finish(log, stats, err), err
		}
	}

	recovered, err := s.checkpoints.Resolve(cp, s.storage, s.ledger)
	stats.Recovered += len(recovered)
	if err != nil {
		err = errs.New(errs.ErrorTypeStorage, "failed to resolve pending downloads", err)
		return s.finish(log, stats, err), err
	}

	return s.finish(log, stats, nil), nil
}

// loadCheckpoint reads the pending downloads of earlier runs and settles
// those whose file has since appeared.
func (s *Scraper) loadCheckpoint(log logger.Logger, stats *RunStatistics) (*checkpoint.Checkpoint, error) {
	cp, err := s.checkpoints.Load()
	if err != nil {
		log.WithError(err).Warn("Unreadable checkpoint, starting without pending downloads")
		cp = checkpoint.New()
	}

	recovered, err := s.checkpoints.Resolve(cp, s.storage, s.ledger)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeStorage, "failed to resolve pending downloads", err)
	}
	stats.Recovered += len(recovered)
	if pending := len(cp.Pending); pending > 0 {
		log.InfoWithFields("Unconfirmed downloads from earlier runs will be checked again", map[string]interface{}{
			"pending": pending,
		})
	}
	return cp, nil
}

// discover logs in, enumerates and validates. Every error it returns is
// fatal for the run.
func (s *Scraper) discover(ctx context.Context, stats *RunStatistics) ([]models.ResourceReference, error) {
	if err := s.session.Establish(ctx); err != nil {
		return nil, err
	}

	urls, err := s.enumerator.Enumerate(ctx)
	if err != nil {
		return nil, err
	}
	stats.Enumerated = len(urls)
	s.metrics.Enumerated.Set(float64(len(urls)))

	refs, err := s.validator.Validate(urls)
	if err != nil {
		return nil, err
	}
	stats.Total = len(refs)
	s.metrics.Validated.Set(float64(len(refs)))
	return refs, nil
}

// process takes one resource to an outcome. It returns an error only when
// the run must stop; everything else is counted as a failure.
func (s *Scraper) process(ctx context.Context, log logger.Logger, ref models.ResourceReference, cp *checkpoint.Checkpoint, stats *RunStatistics) error {
	start := s.now()
	s.progress.StartResource(ref.URL)
	defer func() {
		s.metrics.ObserveResource(s.now().Sub(start))
	}()

	if err := s.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	err := retry.Do(ctx, func(ctx context.Context) error {
		return s.open(ctx, ref.URL)
	}, s.retry)
	if err == nil {
		err = s.sleep(ctx, s.config.Download.PageLoadDelay)
	}
	if err != nil {
		return s.failed(log, ref, stats, err)
	}

	outcome, err := s.reconciler.Reconcile(ctx, ref)
	if err != nil {
		return s.failed(log, ref, stats, err)
	}
	if outcome.Found {
		stats.Skipped++
		s.metrics.IncResource(OutcomeSkipped)
		s.metrics.IncMatch(string(outcome.Method))
		s.progress.Skipped(ref.URL, string(outcome.Method))
		logger.LogOutcome(log, ref.URL, OutcomeSkipped, nil)
		if cp.Clear(ref.URL) {
			return s.saveCheckpoint(cp)
		}
		return nil
	}

	result, err := s.downloader.Download(ctx, ref)
	if err != nil {
		return s.failed(log, ref, stats, err)
	}

	switch result.Status {
	case models.DownloadConfirmed:
		stats.Downloaded++
		s.metrics.IncResource(OutcomeDownloaded)
		s.progress.Downloaded(ref.URL, result.Filename)
		logger.LogOutcome(log, ref.URL, OutcomeDownloaded, nil)
		if cp.Clear(ref.URL) {
			return s.saveCheckpoint(cp)
		}
		return nil
	default:
		stats.Unconfirmed++
		s.metrics.IncResource(OutcomeUnconfirmed)
		s.progress.Unconfirmed(ref.URL)
		logger.LogOutcome(log, ref.URL, OutcomeUnconfirmed, nil)
		cp.MarkPending(ref.URL, stats.RunID, result.Before, s.now())
		return s.saveCheckpoint(cp)
	}
}

// failed counts a per-resource failure, or hands a fatal error back
func (s *Scraper) failed(log logger.Logger, ref models.ResourceReference, stats *RunStatistics, err error) error {
	if errs.IsFatal(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	stats.Failed++
	s.metrics.IncResource(OutcomeFailed)
	s.metrics.IncError(err)
	s.progress.Failed(ref.URL, err)
	logger.LogOutcome(log, ref.URL, OutcomeFailed, err)
	return nil
}

// open loads a resource page, classifying load failures as navigation
// errors so they are retried.
func (s *Scraper) open(ctx context.Context, url string) error {
	if err := s.driver.Navigate(ctx, url); err != nil {
		if errs.Is(err, errs.ErrorTypeBrowser) || ctx.Err() != nil {
			return err
		}
		return errs.ForURL(errs.ErrorTypeNavigation, url, "failed to open resource page", err)
	}
	return nil
}

func (s *Scraper) saveCheckpoint(cp *checkpoint.Checkpoint) error {
	if err := s.checkpoints.Save(cp); err != nil {
		return errs.New(errs.ErrorTypeStorage, "failed to save checkpoint", err)
	}
	return nil
}

// finish records the library totals, writes metrics, prints the summary
// and sends the notification.
func (s *Scraper) finish(log logger.Logger, stats *RunStatistics, runErr error) *RunStatistics {
	stats.Duration = s.now().Sub(stats.StartedAt)

	files, bytes, err := s.storage.MediaStats(s.config.Reconcile.Extensions)
	if err != nil {
		log.WithError(err).Warn("Could not measure the library")
	}
	stats.LibraryFiles, stats.LibraryBytes = files, bytes

	s.metrics.SetLibrary(files, bytes)
	s.metrics.Finish(stats.Duration, s.now())
	if path := s.config.Metrics.Textfile; path != "" {
		if err := s.metrics.WriteTextfile(path); err != nil {
			log.WithError(err).Warn("Could not write metrics")
		}
	}

	logger.LogMetrics(log, "run", map[string]interface{}{
		"enumerated":    stats.Enumerated,
		"total":         stats.Total,
		"downloaded":    stats.Downloaded,
		"unconfirmed":   stats.Unconfirmed,
		"skipped":       stats.Skipped,
		"failed":        stats.Failed,
		"recovered":     stats.Recovered,
		"library_files": files,
		"library_gb":    ui.FormatGB(bytes),
		"duration":      stats.Duration.String(),
	})

	if runErr != nil {
		s.notifier.SendError("Run failed", runErr.Error())
		return stats
	}

	s.progress.Complete(stats.Summary())
	s.notifier.SendSuccess("Run complete", fmt.Sprintf("%d downloaded, %d already present, %d failed",
		stats.Downloaded, stats.Skipped, stats.Failed))
	return stats
}
