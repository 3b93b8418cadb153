package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"magistodl/pkg/logger"
	"magistodl/pkg/models"
	"magistodl/pkg/storage"
)

// Version of the checkpoint file format
const Version = 1

// PendingDownload is a click whose file never showed up in the settle window
type PendingDownload struct {
	URL         string    `json:"url"`
	RunID       string    `json:"run_id"`
	AttemptedAt time.Time `json:"attempted_at"`
	// Before lists the directory entries present just before the click.
	Before []string `json:"before"`
}

// Checkpoint is the state carried between runs for unconfirmed downloads
type Checkpoint struct {
	Pending   map[string]*PendingDownload `json:"pending"`
	CreatedAt time.Time                   `json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
	Version   int                         `json:"version"`
}

// New returns an empty checkpoint
func New() *Checkpoint {
	now := time.Now()
	return &Checkpoint{
		Pending:   make(map[string]*PendingDownload),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   Version,
	}
}

// MarkPending records an unconfirmed download of url
func (cp *Checkpoint) MarkPending(url, runID string, before storage.Snapshot, at time.Time) {
	cp.Pending[url] = &PendingDownload{
		URL:         url,
		RunID:       runID,
		AttemptedAt: at,
		Before:      before.Names(),
	}
}

// Clear forgets url and reports whether it was pending
func (cp *Checkpoint) Clear(url string) bool {
	if _, ok := cp.Pending[url]; !ok {
		return false
	}
	delete(cp.Pending, url)
	return true
}

// IsPending checks if url has an unconfirmed download
func (cp *Checkpoint) IsPending(url string) bool {
	_, ok := cp.Pending[url]
	return ok
}

// Entries returns the pending downloads, oldest attempt first
func (cp *Checkpoint) Entries() []*PendingDownload {
	entries := make([]*PendingDownload, 0, len(cp.Pending))
	for _, p := range cp.Pending {
		entries = append(entries, p)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].AttemptedAt.Equal(entries[j].AttemptedAt) {
			return entries[i].AttemptedAt.Before(entries[j].AttemptedAt)
		}
		return entries[i].URL < entries[j].URL
	})
	return entries
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager keeps the checkpoint file inside the download directory
func NewManager(downloadDir string, log logger.Logger) *Manager {
	return &Manager{
		checkpointPath: filepath.Join(downloadDir, storage.PendingFileName),
		logger:         logger.ForComponent(log, "checkpoint"),
	}
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Load loads an existing checkpoint or returns an empty one
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var cp Checkpoint
	if err := json.UnmarshalRead(file, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Pending == nil {
		cp.Pending = make(map[string]*PendingDownload)
	}

	if len(cp.Pending) > 0 {
		m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
			"pending":    len(cp.Pending),
			"updated_at": cp.UpdatedAt,
		})
	}
	return &cp, nil
}

// Save writes the checkpoint atomically. An empty checkpoint removes the
// file instead.
func (m *Manager) Save(cp *Checkpoint) error {
	if len(cp.Pending) == 0 {
		return m.Delete()
	}
	cp.UpdatedAt = time.Now()
	cp.Version = Version

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	if err := json.MarshalWrite(file, cp, jsontext.WithIndent("  ")); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"pending": len(cp.Pending),
	})
	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// Directory lists the download directory
type Directory interface {
	List() ([]models.DownloadedFile, error)
}

// Ledger is the mapping store as seen by Resolve
type Ledger interface {
	Claimed(filename string) bool
	Append(rec models.MappingRecord) (bool, error)
}

// Resolve settles pending downloads against the directory. An entry is
// resolved when exactly one completed file that no ledger record claims has
// appeared since its snapshot; the file is then recorded for its URL and
// the entry removed. Entries are visited oldest first so an earlier click
// claims a late file before a later one can. The resolved records are
// returned; the checkpoint is saved when anything changed.
func (m *Manager) Resolve(cp *Checkpoint, dir Directory, ledger Ledger) ([]models.MappingRecord, error) {
	if len(cp.Pending) == 0 {
		return nil, nil
	}

	files, err := dir.List()
	if err != nil {
		return nil, err
	}

	var resolved []models.MappingRecord
	for _, p := range cp.Entries() {
		var candidates []models.DownloadedFile
		for _, f := range storage.Diff(storage.SnapshotOf(p.Before...), files) {
			if !ledger.Claimed(f.Name) {
				candidates = append(candidates, f)
			}
		}

		fields := map[string]interface{}{
			"url":        p.URL,
			"candidates": len(candidates),
		}
		if len(candidates) != 1 {
			m.logger.DebugWithFields("Pending download still unresolved", fields)
			continue
		}

		rec := models.MappingRecord{URL: p.URL, Filename: candidates[0].Name}
		if _, err := ledger.Append(rec); err != nil {
			return resolved, err
		}
		cp.Clear(p.URL)
		resolved = append(resolved, rec)

		fields["file"] = rec.Filename
		m.logger.InfoWithFields("Pending download resolved", fields)
	}

	if len(resolved) > 0 {
		if err := m.Save(cp); err != nil {
			return resolved, err
		}
	}
	return resolved, nil
}
