// Package site describes the hosting service as data: every ordered
// locator list and URL marker the downloader relies on lives here, so
// markup drift is fixed in one place.
package site

import (
	"strings"

	"magistodl/pkg/browser"
	"magistodl/pkg/config"
	"magistodl/pkg/models"
)

// Profile is the selector and URL profile of one hosting service
type Profile struct {
	Brand    string
	BaseURL  string
	LoginURL string
	// ListingPaths are tried in order when the current page is not a listing.
	ListingPaths []string

	// Session detection and login.
	AuthIndicators   []browser.Selector
	AuthURLPatterns  []string
	LoginAffordances []browser.Selector
	EmailField       browser.Selector
	PasswordField    browser.Selector

	// Enumeration. Probes and extraction patterns are CSS, evaluated over
	// the page snapshot.
	ListingURLMarkers []string
	ListingProbes     []string
	Extraction        []string
	ResourceMarkers   []string
	LooseExclusions   []string
	LooseMinTrailing  int

	// Validation.
	StrictExclusions  []string
	StrictMinTrailing int
	MinSlashes        int

	// Resource page.
	TitleSelectors    []browser.Selector
	DownloadSelectors []browser.Selector
	ConfirmSelectors  []browser.Selector
}

// Magisto returns the profile for magisto.com, with endpoints taken from cfg
func Magisto(cfg config.SiteConfig) *Profile {
	p := &Profile{
		Brand:        cfg.Brand,
		BaseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		LoginURL:     cfg.LoginURL,
		ListingPaths: append([]string(nil), cfg.ListingPaths...),

		AuthIndicators: browser.ParseSelectors(
			"//a[contains(@href, '/video/mine')]",
			"//a[contains(@href, '/my-movies')]",
			"//button[contains(text(), 'Profile')]",
			"//div[contains(@class, 'user-menu')]",
			"[data-test-id*='user']",
			".user-avatar",
			"//a[contains(text(), 'My Videos')]",
			"//a[contains(text(), 'Dashboard')]",
		),
		AuthURLPatterns: []string{"/dashboard", "/video/", "/my-movies", "/profile"},
		LoginAffordances: browser.ParseSelectors(
			"//a[contains(text(),'Log in')]",
			"//a[contains(text(),'Sign in')]",
			"//button[contains(text(),'Log in')]",
			"//button[contains(text(),'Sign in')]",
			".login-btn",
			"[data-test-id='login-button']",
			"input[name='email']",
		),
		EmailField:    browser.ByCSS("input[name='email']"),
		PasswordField: browser.ByCSS("input[name='password']"),

		ListingURLMarkers: []string{"/video/", "/my-movies", "mine"},
		ListingProbes: []string{
			"a[data-test-id='movie-card']",
			"a[data-testid*='movie']",
			"a[data-testid*='video']",
			".video-card",
			".movie-card",
			"a[href*='/video/']",
			"a[href*='/movie/']",
			"[data-test*='video']",
			"[data-test*='movie']",
		},
		Extraction: []string{
			"a[data-test-id='movie-card']",
			"a[data-testid*='movie']",
			"a[data-testid*='video']",
			".video-card a",
			".movie-card a",
			"a[href*='/video/']:not([href$='/video/mine'])",
			"a[href*='/movie/']:not([href$='/my-movies'])",
			"[data-test*='video'] a",
			"[data-test*='movie'] a",
			"div[class*='video'] a",
			"div[class*='movie'] a",
			"article a[href*='/video/']",
			".thumbnail a",
			".video-thumbnail a",
		},
		ResourceMarkers:  []string{"/video/", "/movie/", "/watch/", "/view/"},
		LooseExclusions:  []string{"/video/mine", "/my-movies", "/videos", "/dashboard"},
		LooseMinTrailing: 4,

		StrictExclusions:  []string{"/mine", "/my-movies", "/videos", "/dashboard"},
		StrictMinTrailing: 5,
		MinSlashes:        4,

		TitleSelectors: browser.ParseSelectors(
			"h1",
			"h2",
			"h3",
			".video-title",
			".title",
			".video-name",
			".media-title",
			"[data-test-id='video-title']",
			"[data-testid='video-title']",
			"//span[contains(text(),'Download')]/../..//h1",
			"//span[contains(text(),'Download')]/../..//h2",
			"//span[contains(text(),'Download')]/../..//h3",
			"//span[contains(text(),'Download')]/../preceding-sibling::*//*[string-length(text()) > 3]",
			"//span[contains(text(),'Download')]/../following-sibling::*//*[string-length(text()) > 3]",
		),
		DownloadSelectors: browser.ParseSelectors(
			"//span[contains(text(),'Download')]",
			"//button[contains(text(),'Download')]",
			"//button[contains(text(),'download')]",
			"//a[contains(text(),'Download')]",
			"//a[contains(text(),'download')]",
			"//button[contains(@class,'download')]",
			"//a[contains(@class,'download')]",
			"//span[contains(@class,'download')]",
		),
		ConfirmSelectors: browser.ParseSelectors(
			"//button[contains(text(),'Download')]",
			"//span[contains(text(),'Download')]",
			"//button[contains(text(),'Confirm')]",
			"//button[contains(text(),'OK')]",
			"//button[contains(text(),'Yes')]",
			"//div[@class='modal']//button[contains(text(),'Download')]",
			"//div[@class='popup']//button[contains(text(),'Download')]",
			"//div[@class='dialog']//button[contains(text(),'Download')]",
		),
	}
	if p.Brand == "" {
		p.Brand = "Magisto"
	}
	return p
}

// ListingURL joins a listing path onto the base URL
func (p *Profile) ListingURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return p.BaseURL + "/" + strings.TrimLeft(path, "/")
}

// IsAuthenticatedURL reports whether url is a page only a signed-in user sees
func (p *Profile) IsAuthenticatedURL(url string) bool {
	return containsAny(url, p.AuthURLPatterns)
}

// IsListingURL reports whether url looks like the resource listing
func (p *Profile) IsListingURL(url string) bool {
	return containsAny(url, p.ListingURLMarkers)
}

// IsCandidate is the loose filter applied during extraction.
func (p *Profile) IsCandidate(href string) bool {
	if !containsAny(href, p.ResourceMarkers) || containsAny(href, p.LooseExclusions) {
		return false
	}
	return runeLen(models.TrailingSegment(href)) >= p.LooseMinTrailing
}

// IsResourceURL is the strict validator: enough path structure, no listing
// marker anywhere, and an identifier-sized trailing segment.
func (p *Profile) IsResourceURL(url string) bool {
	if strings.Count(url, "/") < p.MinSlashes {
		return false
	}
	if containsAny(url, p.StrictExclusions) {
		return false
	}
	return runeLen(models.TrailingSegment(url)) >= p.StrictMinTrailing
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func runeLen(s string) int {
	return len([]rune(s))
}
