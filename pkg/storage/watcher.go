package storage

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	errs "magistodl/pkg/errors"
	"magistodl/pkg/logger"
)

// Watcher observes the download directory so a settle window can end as
// soon as the browser finishes writing a file.
type Watcher struct {
	manager *Manager
	fsw     *fsnotify.Watcher
	logger  logger.Logger
}

// NewWatcher starts watching the manager's directory
func NewWatcher(m *Manager, log logger.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errs.New(errs.ErrorTypeStorage, "failed to create directory watcher", err)
	}
	if err := fsw.Add(m.Dir()); err != nil {
		fsw.Close()
		return nil, errs.New(errs.ErrorTypeStorage, "failed to watch download directory", err)
	}
	return &Watcher{
		manager: m,
		fsw:     fsw,
		logger:  logger.ForComponent(log, "watcher"),
	}, nil
}

// Settle blocks until window elapses or a completed file that is not in
// before appears, whichever comes first. Only ctx cancellation is an error.
func (w *Watcher) Settle(ctx context.Context, before Snapshot, window time.Duration) error {
	if w.arrived(before) {
		return nil
	}

	timer := time.NewTimer(window)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return waitOut(ctx, timer)
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(ev.Name)
			if before.Has(name) || IsBookkeeping(name) || IsPartial(name) {
				continue
			}
			if w.arrived(before) {
				w.logger.DebugWithFields("New file arrived", map[string]interface{}{
					"file": name,
				})
				return nil
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return waitOut(ctx, timer)
			}
			w.logger.WithError(err).Warn("Directory watcher error")
		}
	}
}

func (w *Watcher) arrived(before Snapshot) bool {
	files, err := w.manager.NewFiles(before)
	return err == nil && len(files) > 0
}

func waitOut(ctx context.Context, timer *time.Timer) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close stops watching
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
