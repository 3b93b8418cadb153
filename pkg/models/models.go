package models

import (
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ResourceReference is a validated link to one downloadable video page.
// Its identity is the exact URL string.
type ResourceReference struct {
	URL string
}

// Identifier returns the weak identifier hint taken from the trailing path
// segment of the URL. It is not unique and must never be used as a key.
func (r ResourceReference) Identifier() string {
	return TrailingSegment(r.URL)
}

// TrailingSegment returns the last "/"-separated segment of a URL's path.
// A trailing slash yields an empty segment. Query and fragment are ignored.
func TrailingSegment(rawURL string) string {
	s := rawURL
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// MappingRecord binds a resource URL to the file its download produced
type MappingRecord struct {
	URL      string
	Filename string
}

// DownloadedFile is an entry observed in the download directory
type DownloadedFile struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Extension returns the lower-cased extension without the dot
func (f DownloadedFile) Extension() string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(f.Name), "."))
}

// Stem returns the file name without its extension
func (f DownloadedFile) Stem() string {
	return strings.TrimSuffix(f.Name, filepath.Ext(f.Name))
}

// ScrollConvergenceState tracks one enumeration pass over an infinite list
type ScrollConvergenceState struct {
	LastHeight       int64
	StableIterations int
	Iterations       int
}

// Observe records a height measured after a scroll and reports whether the
// listing has converged given the stability threshold.
func (s *ScrollConvergenceState) Observe(height int64, threshold int) bool {
	s.Iterations++
	if height == s.LastHeight {
		s.StableIterations++
	} else {
		s.StableIterations = 0
		s.LastHeight = height
	}
	return s.StableIterations >= threshold
}

// MatchMethod names the reconciliation strategy that produced a hit
type MatchMethod string

const (
	MatchIdentifier     MatchMethod = "identifier"
	MatchMapping        MatchMethod = "mapping"
	MatchTitleExact     MatchMethod = "title_exact"
	MatchTitlePrefix    MatchMethod = "title_prefix"
	MatchTitleTruncated MatchMethod = "title_truncated"
	MatchTitleFlexible  MatchMethod = "title_flexible"
	MatchNone           MatchMethod = ""
)

// MatchOutcome is either Found(path) or NotFound
type MatchOutcome struct {
	Found  bool
	Path   string
	Method MatchMethod
	// Reason explains a NotFound, e.g. a generic title override.
	Reason string
}

// Found builds a hit for the file at p
func Found(p string, method MatchMethod) MatchOutcome {
	return MatchOutcome{Found: true, Path: p, Method: method}
}

// NotFound builds a miss
func NotFound(reason string) MatchOutcome {
	return MatchOutcome{Reason: reason}
}

// DownloadStatus is the result of one retrieval attempt
type DownloadStatus string

const (
	// DownloadConfirmed means a new file appeared and was recorded.
	DownloadConfirmed DownloadStatus = "downloaded"
	// DownloadUnconfirmed means the click happened but no file appeared in
	// the settle window.
	DownloadUnconfirmed DownloadStatus = "unconfirmed"
)

// DownloadResult describes what a retrieval attempt produced
type DownloadResult struct {
	URL      string
	Status   DownloadStatus
	Filename string
}
