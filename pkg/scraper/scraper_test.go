package scraper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"magistodl/pkg/browser/browsertest"
	"magistodl/pkg/config"
	errs "magistodl/pkg/errors"
	"magistodl/pkg/logger"
	"magistodl/pkg/storage"
	"magistodl/pkg/ui"
)

const (
	baseURL    = "https://www.magisto.com"
	spanButton = "//span[contains(text(),'Download')]"
)

type video struct {
	id    string
	title string
	// noButton leaves the page without a download control.
	noButton bool
	// silent clicks produce no file.
	silent      bool
	navigateErr error
}

func (v video) url() string {
	return baseURL + "/video/" + v.id
}

type fakeSite struct {
	driver  *browsertest.Driver
	buttons map[string]*browsertest.Element
}

func newFakeSite(t *testing.T, dir string, videos ...video) *fakeSite {
	t.Helper()
	s := &fakeSite{driver: browsertest.New(), buttons: make(map[string]*browsertest.Element)}

	s.driver.AddPage((&browsertest.Page{URL: baseURL}).
		Add(".user-avatar", browsertest.NewElement("img", "me")))

	var links strings.Builder
	links.WriteString(`<html><body><a href="/video/mine">My videos</a>`)
	for _, v := range videos {
		fmt.Fprintf(&links, `<div class="video-card"><a href="/video/%s">%s</a></div>`, v.id, v.title)
	}
	links.WriteString(`</body></html>`)
	s.driver.AddPage(&browsertest.Page{URL: baseURL + "/video/mine", HTML: links.String()})

	for _, v := range videos {
		v := v
		page := (&browsertest.Page{URL: v.url(), NavigateErr: v.navigateErr}).
			Add("h1", browsertest.NewElement("h1", v.title))
		if !v.noButton {
			button := browsertest.NewElement("span", "Download")
			if !v.silent {
				button.OnClick = func() error {
					return os.WriteFile(filepath.Join(dir, v.title+"_HD.mp4"), []byte("video "+v.id), 0644)
				}
			}
			page.Add(spanButton, button)
			s.buttons[v.id] = button
		}
		s.driver.AddPage(page)
	}
	return s
}

func testConfig(dir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Download.Directory = dir
	cfg.Download.PageLoadDelay = 0
	cfg.Download.WidgetSettle = 0
	cfg.Download.ButtonTimeout = 30 * time.Millisecond
	cfg.Download.ConfirmTimeout = 10 * time.Millisecond
	cfg.Download.PostClickDelay = 0
	cfg.Download.SettleWindow = time.Millisecond
	cfg.Download.Watch = false
	cfg.Enumeration.ScrollSettle = 0
	cfg.Enumeration.StableIterations = 1
	cfg.Enumeration.ListingLoadDelay = 0
	cfg.RateLimit.PageVisitsPerMinute = 0
	cfg.Retry.InitialDelay = time.Millisecond
	cfg.Retry.MaxDelay = time.Millisecond
	return cfg
}

type recordingProgress struct {
	nopProgress
	failed   []string
	complete []ui.Summary
}

func (r *recordingProgress) Failed(url string, err error) {
	r.failed = append(r.failed, url)
}

func (r *recordingProgress) Complete(s ui.Summary) {
	r.complete = append(r.complete, s)
}

func newScraper(t *testing.T, cfg *config.Config, site *fakeSite) (*Scraper, *recordingProgress) {
	t.Helper()
	s, err := New(cfg, site.driver, nil, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	progress := &recordingProgress{}
	s.SetProgress(progress)
	s.SetNotifier(ui.NewNotifierWithSender(nil, false))
	return s, progress
}

var library = []video{
	{id: "AAAAA111", title: "Lake trip"},
	{id: "BBBBB222", title: "Birthday at grandma"},
	{id: "CCCCC333", title: "First day of school"},
}

func TestRunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	site := newFakeSite(t, dir, library...)
	cfg := testConfig(dir)

	first, _ := newScraper(t, cfg, site)
	stats, err := first.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.Downloaded)
	assert.Zero(t, stats.Skipped)
	assert.Zero(t, stats.Failed)
	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, 3, stats.LibraryFiles)

	second, progress := newScraper(t, cfg, site)
	stats2, err := second.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, stats2.Downloaded)
	assert.Equal(t, 3, stats2.Skipped)
	assert.NotEqual(t, stats.RunID, stats2.RunID)
	for id, button := range site.buttons {
		assert.Equal(t, 1, button.Clicks(), id)
	}
	require.Len(t, progress.complete, 1)
	assert.Equal(t, 3, progress.complete[0].Skipped)

	ledger, err := storage.OpenMappingStore(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, ledger.Len())
	assert.Equal(t, []string{"Lake trip_HD.mp4"}, ledger.Lookup(library[0].url()))
}

func TestRunIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	videos := []video{
		library[0],
		{id: "DDDDD444", title: "No button here", noButton: true},
		library[2],
	}
	site := newFakeSite(t, dir, videos...)

	s, progress := newScraper(t, testConfig(dir), site)
	stats, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Downloaded)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 3, stats.Processed())
	assert.Equal(t, 1, site.buttons["CCCCC333"].Clicks())
	assert.Equal(t, []string{videos[1].url()}, progress.failed)
}

func TestRunRetriesNavigationThenContinues(t *testing.T) {
	dir := t.TempDir()
	broken := video{id: "EEEEE555", title: "Broken page", navigateErr: errors.New("net::ERR_CONNECTION_RESET")}
	site := newFakeSite(t, dir, broken, library[0])
	cfg := testConfig(dir)
	cfg.Retry.MaxAttempts = 3

	s, _ := newScraper(t, cfg, site)
	stats, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Downloaded)

	visits := 0
	for _, u := range site.driver.Visits() {
		if u == broken.url() {
			visits++
		}
	}
	assert.Equal(t, 3, visits)
}

func TestRunRecoversUnconfirmedDownload(t *testing.T) {
	dir := t.TempDir()
	late := video{id: "FFFFF666", title: "Slow export", silent: true}
	site := newFakeSite(t, dir, late, library[0])
	cfg := testConfig(dir)

	first, _ := newScraper(t, cfg, site)
	stats, err := first.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Unconfirmed)
	assert.Equal(t, 1, stats.Downloaded)
	assert.FileExists(t, filepath.Join(dir, storage.PendingFileName))

	// The browser finishes the export after the run ended.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Slow export.mp4"), []byte("late"), 0644))

	second, _ := newScraper(t, cfg, site)
	stats2, err := second.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats2.Recovered)
	assert.Equal(t, 2, stats2.Skipped)
	assert.Zero(t, stats2.Downloaded)
	assert.Equal(t, 1, site.buttons[late.id].Clicks())
	assert.NoFileExists(t, filepath.Join(dir, storage.PendingFileName))

	ledger, err := storage.OpenMappingStore(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"Slow export.mp4"}, ledger.Lookup(late.url()))
}

func TestRunRetriesUnresolvedUnconfirmedDownload(t *testing.T) {
	dir := t.TempDir()
	late := video{id: "FFFFF666", title: "Slow export", silent: true}
	site := newFakeSite(t, dir, late)
	cfg := testConfig(dir)

	first, _ := newScraper(t, cfg, site)
	_, err := first.Run(context.Background())
	require.NoError(t, err)

	second, _ := newScraper(t, cfg, site)
	stats, err := second.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Unconfirmed)
	assert.Equal(t, 2, site.buttons[late.id].Clicks())
}

func TestRunFatalErrors(t *testing.T) {
	t.Run("not logged in without credentials", func(t *testing.T) {
		dir := t.TempDir()
		site := newFakeSite(t, dir, library...)
		site.driver.AddPage(&browsertest.Page{URL: baseURL})

		s, progress := newScraper(t, testConfig(dir), site)
		stats, err := s.Run(context.Background())

		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.ErrorTypeAuth))
		assert.Equal(t, 4, errs.ExitCode(err))
		require.NotNil(t, stats)
		assert.Zero(t, stats.Total)
		assert.Empty(t, progress.complete)
	})

	t.Run("no resources", func(t *testing.T) {
		dir := t.TempDir()
		site := newFakeSite(t, dir)

		s, _ := newScraper(t, testConfig(dir), site)
		_, err := s.Run(context.Background())

		require.Error(t, err)
		assert.True(t, errs.IsFatal(err))
		assert.Equal(t, 5, errs.ExitCode(err))
	})
}

func TestRunWritesMetrics(t *testing.T) {
	dir := t.TempDir()
	site := newFakeSite(t, dir, library[0], video{id: "DDDDD444", title: "No button here", noButton: true})
	cfg := testConfig(dir)
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "magistodl.prom")

	s, _ := newScraper(t, cfg, site)
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `magistodl_resources_total{outcome="downloaded"} 1`)
	assert.Contains(t, out, `magistodl_resources_total{outcome="failed"} 1`)
	assert.Contains(t, out, `magistodl_errors_total{type="control_not_found"} 1`)
	assert.Contains(t, out, `magistodl_validated_resources 2`)
}
