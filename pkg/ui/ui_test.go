package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func plainOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetColor(false)
	t.Cleanup(func() {
		SetOutput(nil)
		SetColor(true)
		SetQuietMode(false)
	})
	return &buf
}

func TestBar(t *testing.T) {
	tests := []struct {
		done, total int
		filled      int
	}{
		{0, 10, 0},
		{5, 10, 10},
		{10, 10, 20},
		{3, 0, 0},
		{12, 10, 20},
	}
	for _, tt := range tests {
		bar := []rune(Bar(tt.done, tt.total))
		assert.Len(t, bar, 20)
		filled := 0
		for _, r := range bar {
			if string(r) == ProgressBar {
				filled++
			}
		}
		assert.Equal(t, tt.filled, filled, "%d/%d", tt.done, tt.total)
	}
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "2.0 GB", FormatBytes(2*1024*1024*1024))
	assert.Equal(t, "1.50 GB", FormatGB(1536*1024*1024))
	assert.Equal(t, "0.00 GB", FormatGB(0))
	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "3m5s", FormatDuration(185*time.Second))
	assert.Equal(t, "2h1m", FormatDuration(121*time.Minute))
}

func TestProgressDisplayDebug(t *testing.T) {
	plainOutput(t)
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, true)

	p.Begin(3)
	p.Downloaded("https://x/video/A", "a.mp4")
	p.Skipped("https://x/video/B", "mapping")
	p.Failed("https://x/video/C", errors.New("no download button found"))
	p.Complete(Summary{RunID: "r1", Downloaded: 1, Skipped: 1, Failed: 1, Total: 3, LibraryFiles: 2, LibraryBytes: 1024 * 1024 * 1024})

	out := buf.String()
	assert.Contains(t, out, "3 resources to check")
	assert.Contains(t, out, "✓ https://x/video/A • a.mp4")
	assert.Contains(t, out, "= https://x/video/B • already downloaded (mapping)")
	assert.Contains(t, out, "✗ https://x/video/C • no download button found")
	assert.Contains(t, out, "Run r1 finished")
	assert.Contains(t, out, "1 failed")
	assert.Contains(t, out, "3 of 3 resources processed")
	assert.Contains(t, out, "library: 2 videos, 1.00 GB")
	assert.NotContains(t, out, "unconfirmed")
}

func TestProgressDisplayLine(t *testing.T) {
	plainOutput(t)
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, false)

	p.Begin(2)
	p.StartResource("https://x/video/A")
	p.Unconfirmed("https://x/video/A")

	out := buf.String()
	assert.Contains(t, out, "1/2 • 0 new • 0 skipped • 1 unconfirmed")
	assert.Contains(t, out, "• https://x/video/A")
}

type recordingSender struct {
	sent []string
	err  error
}

func (r *recordingSender) Send(title, message string) error {
	r.sent = append(r.sent, title+"|"+message)
	return r.err
}

func TestNotifier(t *testing.T) {
	buf := plainOutput(t)

	sender := &recordingSender{err: errors.New("no daemon")}
	NewNotifierWithSender(sender, true).SendSuccess("Run complete", "3 new videos")
	NewNotifierWithSender(sender, false).SendError("Run failed", "auth")

	assert.Equal(t, []string{"Run complete|3 new videos"}, sender.sent)
	assert.Contains(t, buf.String(), "Run complete: 3 new videos")
	assert.Contains(t, buf.String(), "Run failed: auth")
}

func TestQuietMode(t *testing.T) {
	buf := plainOutput(t)
	SetQuietMode(true)

	PrintInfo("Directory", "/tmp")
	PrintSuccess("done")
	PrintError("boom")

	assert.Equal(t, "boom\n", buf.String())
}

func TestEscapeAppleScript(t *testing.T) {
	assert.Equal(t, `say \"hi\" \\ bye`, escapeAppleScript(`say "hi" \ bye`))
}
