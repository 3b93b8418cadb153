package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	errs "magistodl/pkg/errors"
	"magistodl/pkg/models"
)

// Bookkeeping files the tool itself writes into the download directory.
const (
	MappingFileName     = "download_mapping.txt"
	PendingFileName     = ".magistodl-pending.json"
	DebugScreenshotName = "debug_screenshot.png"
)

var partialSuffixes = []string{".crdownload", ".part", ".tmp"}

// IsPartial reports whether name is an in-progress browser download
func IsPartial(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range partialSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// IsBookkeeping reports whether name is one of the tool's own files
func IsBookkeeping(name string) bool {
	switch name {
	case MappingFileName, PendingFileName, DebugScreenshotName:
		return true
	}
	return false
}

// Snapshot is the set of entry names present in the download directory at
// one instant.
type Snapshot map[string]struct{}

// SnapshotOf builds a Snapshot from names
func SnapshotOf(names ...string) Snapshot {
	s := make(Snapshot, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether name was present
func (s Snapshot) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the entries in sorted order
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Manager owns the download directory: listing, snapshots, diffs and the
// few files the tool writes there itself.
type Manager struct {
	dir string
}

// NewManager creates the download directory if needed
func NewManager(dir string) (*Manager, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeStorage, "invalid download directory", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, errs.New(errs.ErrorTypeStorage, "failed to create download directory", err)
	}
	return &Manager{dir: abs}, nil
}

// Dir returns the absolute download directory
func (m *Manager) Dir() string {
	return m.dir
}

// Path returns the absolute path of name inside the directory
func (m *Manager) Path(name string) string {
	return filepath.Join(m.dir, name)
}

// Exists reports whether name is a regular file in the directory
func (m *Manager) Exists(name string) bool {
	info, err := os.Stat(m.Path(name))
	return err == nil && info.Mode().IsRegular()
}

// List returns every regular file in the directory, sorted by name
func (m *Manager) List() ([]models.DownloadedFile, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeStorage, "failed to read download directory", err)
	}

	files := make([]models.DownloadedFile, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		files = append(files, models.DownloadedFile{
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return files, nil
}

// Snapshot records the names currently in the directory
func (m *Manager) Snapshot() (Snapshot, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeStorage, "failed to read download directory", err)
	}
	s := make(Snapshot, len(entries))
	for _, entry := range entries {
		s[entry.Name()] = struct{}{}
	}
	return s, nil
}

// NewFiles returns the completed files that are not in before, ignoring
// bookkeeping files and partial downloads. The earliest modified file comes
// first, ties broken by name.
func (m *Manager) NewFiles(before Snapshot) ([]models.DownloadedFile, error) {
	files, err := m.List()
	if err != nil {
		return nil, err
	}
	return Diff(before, files), nil
}

// Diff is NewFiles over an already taken listing
func Diff(before Snapshot, after []models.DownloadedFile) []models.DownloadedFile {
	var added []models.DownloadedFile
	for _, f := range after {
		if before.Has(f.Name) || IsBookkeeping(f.Name) || IsPartial(f.Name) {
			continue
		}
		added = append(added, f)
	}
	sort.SliceStable(added, func(i, j int) bool {
		if !added[i].ModTime.Equal(added[j].ModTime) {
			return added[i].ModTime.Before(added[j].ModTime)
		}
		return added[i].Name < added[j].Name
	})
	return added
}

// MediaStats counts the files with one of exts and their total size
func (m *Manager) MediaStats(exts []string) (count int, bytes int64, err error) {
	files, err := m.List()
	if err != nil {
		return 0, 0, err
	}
	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		want[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}
	for _, f := range files {
		if want[f.Extension()] {
			count++
			bytes += f.Size
		}
	}
	return count, bytes, nil
}

// Save writes r to name inside the directory through a temporary file and
// an atomic rename.
func (m *Manager) Save(name string, r io.Reader) error {
	filename := m.Path(name)

	tempFile := filename + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
