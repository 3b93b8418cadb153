package site

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"magistodl/pkg/browser"
	"magistodl/pkg/config"
)

func profile() *Profile {
	return Magisto(config.DefaultConfig().Site)
}

func TestIsCandidate(t *testing.T) {
	tests := []struct {
		href string
		want bool
	}{
		{"https://www.magisto.com/video/AbCdEf123", true},
		{"https://www.magisto.com/movie/xyz9", true},
		{"https://www.magisto.com/watch/abcd", true},
		{"https://www.magisto.com/video/mine", false},
		{"https://www.magisto.com/my-movies", false},
		{"https://www.magisto.com/dashboard/video/abcdef", false},
		{"https://www.magisto.com/video/abc", false},
		{"https://www.magisto.com/pricing", false},
	}
	p := profile()
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsCandidate(tt.href))
		})
	}
}

func TestIsResourceURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.magisto.com/video/AbCdEf123", true},
		{"https://www.magisto.com/video/abcd", false},
		{"https://www.magisto.com/video/mine", false},
		{"https://www.magisto.com/album/mine", false},
		{"https://www.magisto.com/abcdefgh", false},
		{"https://www.magisto.com/videos/abcdefgh", false},
	}
	p := profile()
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsResourceURL(tt.url))
		})
	}
}

func TestURLHelpers(t *testing.T) {
	p := profile()

	assert.Equal(t, "https://www.magisto.com/video/mine", p.ListingURL("/video/mine"))
	assert.Equal(t, "https://other.example/list", p.ListingURL("https://other.example/list"))

	assert.True(t, p.IsListingURL("https://www.magisto.com/video/mine"))
	assert.True(t, p.IsListingURL("https://www.magisto.com/my-movies"))
	assert.False(t, p.IsListingURL("https://www.magisto.com/"))

	assert.True(t, p.IsAuthenticatedURL("https://www.magisto.com/profile/settings"))
	assert.False(t, p.IsAuthenticatedURL("https://www.magisto.com/connect"))
}

func TestSelectorKinds(t *testing.T) {
	p := profile()

	assert.Equal(t, browser.XPath, p.DownloadSelectors[0].Kind)
	assert.Equal(t, browser.CSS, p.TitleSelectors[0].Kind)
	assert.Equal(t, browser.CSS, p.LoginAffordances[len(p.LoginAffordances)-1].Kind)
	assert.Equal(t, "Magisto", p.Brand)
}
