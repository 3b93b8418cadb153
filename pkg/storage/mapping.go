package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	errs "magistodl/pkg/errors"
	"magistodl/pkg/models"
)

// MappingStore is the append-only URL to filename ledger. Each line is
// "<url>|<filename>"; an identical line is never written twice, but
// duplicates already in the file are left alone.
type MappingStore struct {
	path string

	mu      sync.Mutex
	lines   map[string]bool
	records []models.MappingRecord
}

// OpenMappingStore loads the ledger kept in dir, if there is one
func OpenMappingStore(dir string) (*MappingStore, error) {
	s := &MappingStore{
		path:  filepath.Join(dir, MappingFileName),
		lines: make(map[string]bool),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MappingStore) load() error {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errs.New(errs.ErrorTypeStorage, "failed to open mapping store", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		rec, ok := parseLine(line)
		if !ok {
			continue
		}
		s.lines[line] = true
		s.records = append(s.records, rec)
	}
	if err := scanner.Err(); err != nil {
		return errs.New(errs.ErrorTypeStorage, "failed to read mapping store", err)
	}
	return nil
}

// parseLine splits on the first "|"; URLs never contain a raw pipe.
func parseLine(line string) (models.MappingRecord, bool) {
	url, filename, ok := strings.Cut(line, "|")
	if !ok || url == "" || filename == "" {
		return models.MappingRecord{}, false
	}
	return models.MappingRecord{URL: url, Filename: filename}, true
}

func formatLine(rec models.MappingRecord) string {
	return rec.URL + "|" + rec.Filename
}

// Path returns the ledger file location
func (s *MappingStore) Path() string {
	return s.path
}

// Lookup returns the filenames recorded for url, oldest first
func (s *MappingStore) Lookup(url string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	for _, rec := range s.records {
		if rec.URL == url {
			names = append(names, rec.Filename)
		}
	}
	return names
}

// Records returns a copy of every record in file order
func (s *MappingStore) Records() []models.MappingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.MappingRecord(nil), s.records...)
}

// Claimed reports whether any record points at filename
func (s *MappingStore) Claimed(filename string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.Filename == filename {
			return true
		}
	}
	return false
}

// Len returns the number of records loaded or written
func (s *MappingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Append durably writes rec unless the identical line is already present.
// It reports whether a line was written.
func (s *MappingStore) Append(rec models.MappingRecord) (bool, error) {
	if rec.URL == "" || rec.Filename == "" {
		return false, fmt.Errorf("mapping record needs both url and filename")
	}
	if strings.ContainsAny(rec.Filename, "\n|") || strings.Contains(rec.URL, "\n") {
		return false, fmt.Errorf("mapping record contains a separator: %q", formatLine(rec))
	}

	line := formatLine(rec)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lines[line] {
		return false, nil
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return false, errs.New(errs.ErrorTypeStorage, "failed to open mapping store", err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return false, errs.New(errs.ErrorTypeStorage, "failed to append mapping record", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return false, errs.New(errs.ErrorTypeStorage, "failed to sync mapping store", err)
	}
	if err := f.Close(); err != nil {
		return false, errs.New(errs.ErrorTypeStorage, "failed to close mapping store", err)
	}

	s.lines[line] = true
	s.records = append(s.records, rec)
	return true, nil
}
