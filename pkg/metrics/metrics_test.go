package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "magistodl/pkg/errors"
)

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.IncResource("downloaded")
	m.IncResource("downloaded")
	m.IncResource("skipped")
	m.IncMatch("mapping")
	m.IncError(errs.New(errs.ErrorTypeControlNotFound, "no button", nil))
	m.IncError(errors.New("plain"))
	m.Enumerated.Set(12)
	m.Validated.Set(10)
	m.SetLibrary(3, 2048)
	m.ObserveResource(7 * time.Second)
	m.Finish(90*time.Second, time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "magistodl.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	for _, want := range []string{
		`magistodl_resources_total{outcome="downloaded"} 2`,
		`magistodl_resources_total{outcome="skipped"} 1`,
		`magistodl_matches_total{method="mapping"} 1`,
		`magistodl_errors_total{type="control_not_found"} 1`,
		`magistodl_errors_total{type="unknown"} 1`,
		`magistodl_enumerated_links 12`,
		`magistodl_validated_resources 10`,
		`magistodl_library_files 3`,
		`magistodl_library_bytes 2048`,
		`magistodl_run_duration_seconds 90`,
		`magistodl_last_run_timestamp_seconds 1.7e+09`,
		`magistodl_resource_duration_seconds_count 1`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestWriteTextfileUnwritable(t *testing.T) {
	m := New()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeStorage))
}
