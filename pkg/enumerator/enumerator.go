// Package enumerator discovers resource links on the infinitely scrolling
// listing page.
//
// A pass scrolls until the document height has stopped growing for a
// number of consecutive observations, then parses the converged DOM with
// goquery and applies a deliberately over-inclusive set of patterns. The
// raw candidates are deduplicated and loosely filtered here; the Validator
// applies the strict structural check afterwards.
package enumerator

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"magistodl/pkg/browser"
	"magistodl/pkg/config"
	errs "magistodl/pkg/errors"
	"magistodl/pkg/logger"
	"magistodl/pkg/models"
	"magistodl/pkg/retry"
	"magistodl/pkg/site"
	"magistodl/pkg/storage"
)

const debugLinkLimit = 20

// ScreenshotSaver stores the debug screenshot taken when nothing is found
type ScreenshotSaver interface {
	Save(name string, r io.Reader) error
}

// Enumerator finds resource links on the listing page
type Enumerator struct {
	driver  browser.Driver
	profile *site.Profile
	cfg     config.EnumerationConfig
	debug   ScreenshotSaver
	logger  logger.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Enumerator. debug may be nil to skip screenshots.
func New(d browser.Driver, p *site.Profile, cfg config.EnumerationConfig, debug ScreenshotSaver, log logger.Logger) *Enumerator {
	return &Enumerator{
		driver:  d,
		profile: p,
		cfg:     cfg,
		debug:   debug,
		logger:  logger.ForComponent(log, "enumerator"),
		sleep:   retry.Wait,
	}
}

// Enumerate collects candidate resource URLs. The current page is used
// first when it looks like a listing; otherwise each alternate listing path
// is tried in order until one yields at least one candidate. An empty
// result is an enumeration error.
func (e *Enumerator) Enumerate(ctx context.Context) ([]string, error) {
	logger.LogStage(e.logger, "enumerate", nil)

	current, err := e.driver.CurrentURL(ctx)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeBrowser, "cannot read current page", err)
	}

	if e.profile.IsListingURL(current) {
		doc, err := e.snapshot(ctx)
		if err != nil {
			return nil, err
		}
		if e.hasResources(doc) {
			e.logger.InfoWithFields("Already on the listing page", map[string]interface{}{"url": current})
			urls, err := e.collect(ctx)
			if err != nil || len(urls) > 0 {
				return urls, err
			}
		}
	}

	for _, path := range e.profile.ListingPaths {
		target := e.profile.ListingURL(path)
		urls, err := e.tryListing(ctx, target)
		if err != nil {
			if ctx.Err() != nil || errs.Is(err, errs.ErrorTypeBrowser) {
				return nil, err
			}
			e.logger.WithError(err).WarnWithFields("Listing page failed", map[string]interface{}{"url": target})
			continue
		}
		if len(urls) > 0 {
			return urls, nil
		}
	}

	e.dumpDebug(ctx)
	return nil, errs.New(errs.ErrorTypeEnumeration, "no resources found on any listing page", nil)
}

func (e *Enumerator) tryListing(ctx context.Context, target string) ([]string, error) {
	e.logger.InfoWithFields("Trying listing page", map[string]interface{}{"url": target})

	if err := e.driver.Navigate(ctx, target); err != nil {
		return nil, err
	}
	if err := e.sleep(ctx, e.cfg.ListingLoadDelay); err != nil {
		return nil, err
	}

	title, _ := e.driver.PageTitle(ctx)
	html, err := e.driver.HTML(ctx)
	if err != nil {
		return nil, err
	}
	if strings.Contains(strings.ToLower(title), "error") || strings.Contains(strings.ToLower(html), "not found") {
		e.logger.WarnWithFields("Listing page returned an error", map[string]interface{}{"url": target})
		return nil, nil
	}

	doc, err := parse(html)
	if err != nil {
		return nil, err
	}
	if !e.hasResources(doc) {
		e.logger.InfoWithFields("No resources on listing page", map[string]interface{}{"url": target})
		return nil, nil
	}
	return e.collect(ctx)
}

func (e *Enumerator) hasResources(doc *goquery.Document) bool {
	for _, sel := range e.profile.ListingProbes {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

func (e *Enumerator) collect(ctx context.Context) ([]string, error) {
	state, err := e.Converge(ctx)
	if err != nil {
		return nil, err
	}
	e.logger.InfoWithFields("Scrolling completed", map[string]interface{}{
		"iterations": state.Iterations,
		"height":     state.LastHeight,
	})
	return e.Extract(ctx)
}

// Converge scrolls to the bottom until the height has been unchanged for
// StableIterations consecutive observations, or MaxScrolls is reached when
// it is positive.
func (e *Enumerator) Converge(ctx context.Context) (models.ScrollConvergenceState, error) {
	var state models.ScrollConvergenceState

	height, err := e.driver.ScrollHeight(ctx)
	if err != nil {
		return state, errs.New(errs.ErrorTypeBrowser, "cannot measure listing height", err)
	}
	state.LastHeight = height

	for {
		if e.cfg.MaxScrolls > 0 && state.Iterations >= e.cfg.MaxScrolls {
			e.logger.WarnWithFields("Scroll limit reached before the listing converged", map[string]interface{}{
				"iterations": state.Iterations,
			})
			return state, nil
		}

		if err := e.driver.ScrollToBottom(ctx); err != nil {
			return state, errs.New(errs.ErrorTypeBrowser, "scroll failed", err)
		}
		if err := e.sleep(ctx, e.cfg.ScrollSettle); err != nil {
			return state, err
		}
		height, err := e.driver.ScrollHeight(ctx)
		if err != nil {
			return state, errs.New(errs.ErrorTypeBrowser, "cannot measure listing height", err)
		}

		grew := height != state.LastHeight
		done := state.Observe(height, e.cfg.StableIterations)
		e.logger.DebugWithFields("Scrolled", map[string]interface{}{
			"iteration": state.Iterations,
			"height":    height,
			"stable":    state.StableIterations,
			"grew":      grew,
		})
		if done {
			return state, nil
		}
	}
}

// Extract applies every extraction pattern to the current page and returns
// the distinct candidate links that pass the loose filter, in document
// order per pattern.
func (e *Enumerator) Extract(ctx context.Context) ([]string, error) {
	doc, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	base := e.baseURL(ctx)

	var raw []string
	for _, sel := range e.profile.Extraction {
		found := doc.Find(sel)
		e.logger.DebugWithFields("Extraction pattern", map[string]interface{}{
			"selector": sel,
			"matches":  found.Length(),
		})
		found.Each(func(_ int, s *goquery.Selection) {
			href := linkOf(s)
			if href != "" {
				raw = append(raw, resolve(base, href))
			}
		})
	}

	seen := make(map[string]bool, len(raw))
	var urls []string
	for _, href := range raw {
		if seen[href] {
			continue
		}
		seen[href] = true
		if e.profile.IsCandidate(href) {
			urls = append(urls, href)
		}
	}

	e.logger.InfoWithFields("Collected resource links", map[string]interface{}{
		"raw":    len(raw),
		"unique": len(urls),
	})
	return urls, nil
}

func (e *Enumerator) snapshot(ctx context.Context) (*goquery.Document, error) {
	html, err := e.driver.HTML(ctx)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeBrowser, "cannot read page", err)
	}
	return parse(html)
}

func parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errs.New(errs.ErrorTypeEnumeration, "cannot parse page", err)
	}
	return doc, nil
}

func (e *Enumerator) baseURL(ctx context.Context) *url.URL {
	current, err := e.driver.CurrentURL(ctx)
	if err != nil {
		current = e.profile.BaseURL
	}
	u, err := url.Parse(current)
	if err != nil {
		return nil
	}
	return u
}

// linkOf returns the href of an anchor, or of the first anchor inside a
// card element.
func linkOf(s *goquery.Selection) string {
	if href, ok := s.Attr("href"); ok {
		return strings.TrimSpace(href)
	}
	if href, ok := s.Find("a[href]").First().Attr("href"); ok {
		return strings.TrimSpace(href)
	}
	return ""
}

func resolve(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// dumpDebug logs what the page does contain and saves a screenshot
func (e *Enumerator) dumpDebug(ctx context.Context) {
	current, _ := e.driver.CurrentURL(ctx)
	title, _ := e.driver.PageTitle(ctx)
	fields := map[string]interface{}{
		"url":   current,
		"title": title,
	}

	if doc, err := e.snapshot(ctx); err == nil {
		links := doc.Find("a[href]")
		fields["links"] = links.Length()
		fields["images"] = doc.Find("img").Length()
		videoLinks := 0
		base := e.baseURL(ctx)
		links.Each(func(i int, s *goquery.Selection) {
			href := resolve(base, linkOf(s))
			if strings.Contains(href, "/video/") {
				videoLinks++
			}
			if i < debugLinkLimit {
				e.logger.DebugWithFields("Page link", map[string]interface{}{
					"index": i + 1,
					"href":  href,
					"text":  truncate(strings.TrimSpace(s.Text()), 50),
				})
			}
		})
		fields["video_links"] = videoLinks
	}
	e.logger.WarnWithFields("No resources found", fields)

	if e.debug == nil {
		return
	}
	png, err := e.driver.Screenshot(ctx)
	if err != nil {
		e.logger.WithError(err).Warn("Could not take debug screenshot")
		return
	}
	if err := e.debug.Save(storage.DebugScreenshotName, bytes.NewReader(png)); err != nil {
		e.logger.WithError(err).Warn("Could not save debug screenshot")
		return
	}
	e.logger.InfoWithFields("Debug screenshot saved", map[string]interface{}{"file": storage.DebugScreenshotName})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
