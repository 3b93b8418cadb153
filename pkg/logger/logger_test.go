package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"magistodl/pkg/config"
)

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	return &zerologLogger{zl: zerolog.New(buf).Level(zerolog.DebugLevel)}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "debug level with color", cfg: &config.LoggingConfig{Level: "debug", Color: true}},
		{name: "invalid level", cfg: &config.LoggingConfig{Level: "loud"}, wantErr: true},
		{name: "file output", cfg: &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"trace-everything", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestFieldChaining(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.WithField("component", "enumerator").
		WithFields(map[string]interface{}{"iteration": 3, "height": int64(4200)}).
		Info("Scrolled")

	out := buf.String()
	assert.Contains(t, out, `"component":"enumerator"`)
	assert.Contains(t, out, `"iteration":3`)
	assert.Contains(t, out, `"height":4200`)
	assert.Contains(t, out, "Scrolled")
}

func TestChildDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := newBufferLogger(&buf)

	_ = parent.WithField("url", "https://example.com/video/a")
	parent.Info("parent line")

	assert.NotContains(t, buf.String(), "example.com")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	assert.Same(t, l, l.WithError(nil))

	l.WithError(errors.New("button missing")).Warn("Download failed")
	assert.Contains(t, buf.String(), `"error":"button missing"`)
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.InfoWithFields("all types", map[string]interface{}{
		"settle": 10 * time.Second,
		"files":  []string{"a.mp4", "b.mp4"},
		"at":     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		"ok":     true,
		"custom": struct{ Name string }{Name: "x"},
	})

	out := buf.String()
	assert.Contains(t, out, `"settle":"10s"`)
	assert.Contains(t, out, `"files":["a.mp4","b.mp4"]`)
	assert.True(t, strings.Contains(out, `"ok":true`))
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogStage(tl, "enumerate", map[string]interface{}{"url": "https://example.com/video/mine"})
	LogOutcome(tl, "https://example.com/video/abc", "skipped", nil)
	LogOutcome(tl, "https://example.com/video/def", "failed", errors.New("no button"))
	ForComponent(tl, "session").Info("Checking login")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "enumerate", msgs[0].Fields["stage"])
	assert.Equal(t, "skipped", msgs[1].Fields["outcome"])
	assert.Equal(t, "WARN", msgs[2].Level)
	assert.EqualError(t, msgs[2].Error, "no button")
	assert.Equal(t, "session", msgs[3].Fields["component"])
}

func TestTestLoggerSharesSink(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("url", "u").WithError(errors.New("e"))

	child.Error("child")
	tl.Info("parent")

	assert.True(t, tl.HasMessage("child"))
	assert.True(t, tl.HasMessageContaining("par"))
	assert.True(t, tl.HasError())
	assert.Len(t, tl.GetMessagesByLevel("INFO"), 1)

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("a", 1).WithError(errors.New("x")).Info("ignored")
	assert.NotNil(t, l.GetZerolog())
}
