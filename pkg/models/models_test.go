package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrailingSegment(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.magisto.com/video/AbCdEf123", "AbCdEf123"},
		{"https://www.magisto.com/video/AbCdEf123?utm=x", "AbCdEf123"},
		{"https://www.magisto.com/video/AbCdEf123#play", "AbCdEf123"},
		{"https://www.magisto.com/video/", ""},
		{"no-slashes", "no-slashes"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, TrailingSegment(tt.url))
		})
	}

	ref := ResourceReference{URL: "https://www.magisto.com/video/XyZ987"}
	assert.Equal(t, "XyZ987", ref.Identifier())
}

func TestDownloadedFile(t *testing.T) {
	f := DownloadedFile{Name: "Summer Trip_HD.MP4"}
	assert.Equal(t, "mp4", f.Extension())
	assert.Equal(t, "Summer Trip_HD", f.Stem())
}

func TestScrollConvergenceState(t *testing.T) {
	var s ScrollConvergenceState
	heights := []int64{1000, 2000, 2000, 3000, 3000, 3000}

	var converged bool
	for _, h := range heights {
		converged = s.Observe(h, 2)
	}

	assert.True(t, converged)
	assert.Equal(t, 6, s.Iterations)
	assert.Equal(t, int64(3000), s.LastHeight)
	assert.Equal(t, 2, s.StableIterations)
}

func TestMatchOutcome(t *testing.T) {
	hit := Found("/dl/a.mp4", MatchMapping)
	assert.True(t, hit.Found)
	assert.Equal(t, MatchMapping, hit.Method)

	miss := NotFound("generic title")
	assert.False(t, miss.Found)
	assert.Equal(t, MatchNone, miss.Method)
	assert.Equal(t, "generic title", miss.Reason)
}
