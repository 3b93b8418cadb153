// Package reconcile decides whether a resource has already been downloaded.
//
// Four strategies run in order and the first hit wins:
//
//  1. identifier: a media file whose name contains the URL's trailing segment
//  2. mapping: a ledger record for the exact URL whose file still exists
//  3. title: the page title matched exactly, by prefix, truncated, or
//     flexibly truncated against file names
//  4. nothing matched: NotFound
//
// A generic page title ("Untitled", "My video", two characters or less)
// forces NotFound when the title strategy is reached, because it cannot
// tell two resources apart.
package reconcile

import (
	"context"
	"sort"
	"strings"

	"magistodl/pkg/logger"
	"magistodl/pkg/models"
)

// Directory is the download directory as the engine sees it
type Directory interface {
	List() ([]models.DownloadedFile, error)
	Exists(name string) bool
	Path(name string) string
}

// Ledger looks up mapping records by URL
type Ledger interface {
	Lookup(url string) []string
}

// Engine runs the layered matching strategies
type Engine struct {
	dir    Directory
	ledger Ledger
	titles TitleReader
	policy Policy
	logger logger.Logger
}

// NewEngine creates an Engine. titles may be nil, which disables the title
// strategy.
func NewEngine(dir Directory, ledger Ledger, titles TitleReader, policy Policy, log logger.Logger) *Engine {
	return &Engine{
		dir:    dir,
		ledger: ledger,
		titles: titles,
		policy: policy,
		logger: logger.ForComponent(log, "reconcile"),
	}
}

// mediaIndex is one listing of the download directory restricted to the
// known media extensions.
type mediaIndex struct {
	names  []string
	byName map[string]bool
	// stems maps lower-cased extension to stems, sorted.
	stems map[string][]string
}

func (e *Engine) index() (*mediaIndex, error) {
	files, err := e.dir.List()
	if err != nil {
		return nil, err
	}
	idx := &mediaIndex{byName: make(map[string]bool), stems: make(map[string][]string)}
	want := make(map[string]bool, len(e.policy.Extensions))
	for _, ext := range e.policy.Extensions {
		want[ext] = true
	}
	for _, f := range files {
		ext := f.Extension()
		if !want[ext] {
			continue
		}
		idx.names = append(idx.names, f.Name)
		idx.byName[f.Name] = true
		idx.stems[ext] = append(idx.stems[ext], f.Name[:len(f.Name)-len(ext)-1])
	}
	sort.Strings(idx.names)
	for ext := range idx.stems {
		sort.Strings(idx.stems[ext])
	}
	return idx, nil
}

// fileName rebuilds the on-disk name of a stem found under ext. Extensions
// were lower-cased for indexing, so the original name is looked up.
func (idx *mediaIndex) fileName(stem, ext string) string {
	for _, n := range idx.names {
		if strings.HasPrefix(n, stem) && len(n) == len(stem)+1+len(ext) && strings.EqualFold(n[len(stem)+1:], ext) {
			return n
		}
	}
	return stem + "." + ext
}

// Reconcile decides Found or NotFound for ref. The resource page must be
// open in the browser when the title strategy is reached. Only a failure to
// read the download directory is returned as an error.
func (e *Engine) Reconcile(ctx context.Context, ref models.ResourceReference) (models.MatchOutcome, error) {
	log := e.logger.WithField("url", ref.URL)

	idx, err := e.index()
	if err != nil {
		return models.MatchOutcome{}, err
	}

	if outcome, ok := e.byIdentifier(idx, ref); ok {
		return e.found(log, outcome), nil
	}
	if outcome, ok := e.byMapping(log, ref); ok {
		return e.found(log, outcome), nil
	}

	if e.titles == nil {
		return e.notFound(log, "no match"), nil
	}
	title, ok := e.titles.ReadTitle(ctx)
	if !ok {
		return e.notFound(log, "no title"), nil
	}
	if e.policy.IsGeneric(title) {
		log.InfoWithFields("Generic title, downloading again", map[string]interface{}{"title": title})
		return e.notFound(log, "generic title"), nil
	}
	if outcome, ok := e.byTitle(idx, title); ok {
		return e.found(log, outcome), nil
	}
	return e.notFound(log, "no match"), nil
}

func (e *Engine) found(log logger.Logger, outcome models.MatchOutcome) models.MatchOutcome {
	log.InfoWithFields("Already downloaded", map[string]interface{}{
		"method": string(outcome.Method),
		"file":   outcome.Path,
	})
	return outcome
}

func (e *Engine) notFound(log logger.Logger, reason string) models.MatchOutcome {
	log.DebugWithFields("Not downloaded yet", map[string]interface{}{"reason": reason})
	return models.NotFound(reason)
}

func (e *Engine) byIdentifier(idx *mediaIndex, ref models.ResourceReference) (models.MatchOutcome, bool) {
	id := ref.Identifier()
	if id == "" {
		return models.MatchOutcome{}, false
	}
	for _, ext := range e.policy.Extensions {
		for _, stem := range idx.stems[ext] {
			if strings.Contains(stem, id) {
				return models.Found(e.dir.Path(idx.fileName(stem, ext)), models.MatchIdentifier), true
			}
		}
	}
	return models.MatchOutcome{}, false
}

func (e *Engine) byMapping(log logger.Logger, ref models.ResourceReference) (models.MatchOutcome, bool) {
	for _, name := range e.ledger.Lookup(ref.URL) {
		if e.dir.Exists(name) {
			return models.Found(e.dir.Path(name), models.MatchMapping), true
		}
		log.DebugWithFields("Stale mapping record", map[string]interface{}{"file": name})
	}
	return models.MatchOutcome{}, false
}

// byTitle runs the title strategies against one directory index
func (e *Engine) byTitle(idx *mediaIndex, title string) (models.MatchOutcome, bool) {
	if outcome, ok := e.exactOrPrefix(idx, title, false, models.MatchTitleExact, models.MatchTitlePrefix); ok {
		return outcome, true
	}

	titleLen := runeLen(title)
	if titleLen > e.policy.TruncateLength {
		short := truncate(title, e.policy.TruncateLength)
		if outcome, ok := e.exactOrPrefix(idx, short, true, models.MatchTitleTruncated, models.MatchTitleTruncated); ok {
			return outcome, true
		}
	}

	upper := e.policy.FlexibleMax
	if titleLen-1 < upper {
		upper = titleLen - 1
	}
	for n := e.policy.FlexibleMin; n <= upper; n++ {
		short := strings.ToLower(truncate(title, n))
		for _, ext := range e.policy.Extensions {
			for _, stem := range idx.stems[ext] {
				if !strings.HasPrefix(strings.ToLower(stem), short) {
					continue
				}
				clean := e.policy.StripQualitySuffixes(stem)
				if strings.HasPrefix(strings.ToLower(clean), short) && runeLen(clean) <= titleLen {
					return models.Found(e.dir.Path(idx.fileName(stem, ext)), models.MatchTitleFlexible), true
				}
			}
		}
	}
	return models.MatchOutcome{}, false
}

// exactOrPrefix tries, per extension, the name plus each quality suffix and
// then any stem starting with name.
func (e *Engine) exactOrPrefix(idx *mediaIndex, name string, foldCase bool, exact, prefix models.MatchMethod) (models.MatchOutcome, bool) {
	for _, ext := range e.policy.Extensions {
		for _, suffix := range e.policy.QualitySuffixes {
			candidate := idx.fileName(name+suffix, ext)
			if idx.byName[candidate] {
				return models.Found(e.dir.Path(candidate), exact), true
			}
		}
		for _, stem := range idx.stems[ext] {
			if hasPrefix(stem, name, foldCase) {
				return models.Found(e.dir.Path(idx.fileName(stem, ext)), prefix), true
			}
		}
	}
	return models.MatchOutcome{}, false
}

func hasPrefix(s, prefix string, foldCase bool) bool {
	if foldCase {
		return strings.HasPrefix(strings.ToLower(s), strings.ToLower(prefix))
	}
	return strings.HasPrefix(s, prefix)
}
