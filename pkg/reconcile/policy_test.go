package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"magistodl/pkg/config"
)

func TestPolicyBoilerplate(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		text string
		want bool
	}{
		{"Magisto", true},
		{"Download", true},
		{"Page not Found", true},
		{"12345", true},
		{"01:23", true},
		{"Trip: day one", true},
		{"Sunset over the bay", false},
		{"2019 road trip", false},
		{"ab", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsBoilerplate(tt.text))
		})
	}
}

func TestPolicyGeneric(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		title string
		want  bool
	}{
		{"Untitled", true},
		{"UNTITLED VIDEO", true},
		{"  new video ", true},
		{"Bez názvu", true},
		{"ab", true},
		{"é", true},
		{"abc", false},
		{"Untitled 2", false},
		{"Summer at the lake", false},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsGeneric(tt.title))
		})
	}
}

func TestPolicyStripQualitySuffixes(t *testing.T) {
	p := DefaultPolicy()

	assert.Equal(t, "Lake", p.StripQualitySuffixes("Lake_FULL_HD"))
	assert.Equal(t, "Lake", p.StripQualitySuffixes("Lake_HQ"))
	assert.Equal(t, "Lake (1)", p.StripQualitySuffixes("Lake_HD (1)"))
	assert.Equal(t, "Lake", p.StripQualitySuffixes("Lake"))
}

func TestPolicyFromConfig(t *testing.T) {
	rc := config.ReconcileConfig{
		Extensions:    []string{".MP4", "mov"},
		GenericTitles: []string{" Untitled "},
		Boilerplate:   []string{"Download"},
	}

	p := PolicyFromConfig(rc, "Brand")

	assert.Equal(t, []string{"mp4", "mov"}, p.Extensions)
	assert.Equal(t, []string{"untitled"}, p.GenericTitles)
	assert.Equal(t, []string{"Download", "Brand"}, p.Boilerplate)
	assert.True(t, p.IsBoilerplate("Brand"))

	again := PolicyFromConfig(config.ReconcileConfig{Boilerplate: []string{"Brand"}}, "Brand")
	assert.Equal(t, []string{"Brand"}, again.Boilerplate)
}
