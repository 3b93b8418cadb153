package storage

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"magistodl/pkg/models"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestMappingAppendDedups(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenMappingStore(dir)
	require.NoError(t, err)

	rec := models.MappingRecord{URL: "https://www.magisto.com/video/abcdef", Filename: "Beach Day.mp4"}

	wrote, err := store.Append(rec)
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = store.Append(rec)
	require.NoError(t, err)
	assert.False(t, wrote)

	assert.Equal(t, []string{"https://www.magisto.com/video/abcdef|Beach Day.mp4"}, readLines(t, store.Path()))
}

func TestMappingDedupSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	rec := models.MappingRecord{URL: "https://www.magisto.com/video/abcdef", Filename: "a.mp4"}

	first, err := OpenMappingStore(dir)
	require.NoError(t, err)
	_, err = first.Append(rec)
	require.NoError(t, err)

	second, err := OpenMappingStore(dir)
	require.NoError(t, err)
	wrote, err := second.Append(rec)
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Len(t, readLines(t, second.Path()), 1)
}

func TestMappingLookupKeepsExistingDuplicates(t *testing.T) {
	dir := t.TempDir()
	content := strings.Join([]string{
		"https://x/video/aaaaa|one.mp4",
		"https://x/video/aaaaa|one.mp4",
		"garbage line",
		"",
		"https://x/video/aaaaa|two.mp4",
		"https://x/video/bbbbb|b|weird.mp4",
	}, "\n")
	require.NoError(t, os.WriteFile(dir+"/"+MappingFileName, []byte(content), 0644))

	store, err := OpenMappingStore(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"one.mp4", "one.mp4", "two.mp4"}, store.Lookup("https://x/video/aaaaa"))
	assert.Equal(t, []string{"b|weird.mp4"}, store.Lookup("https://x/video/bbbbb"))
	assert.Empty(t, store.Lookup("https://x/video/ccccc"))
	assert.Equal(t, 4, store.Len())
	records := store.Records()
	require.Len(t, records, 4)
	assert.Equal(t, "two.mp4", records[2].Filename)
	assert.True(t, store.Claimed("two.mp4"))
	assert.False(t, store.Claimed("three.mp4"))
}

func TestMappingAppendRejectsSeparators(t *testing.T) {
	store, err := OpenMappingStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Append(models.MappingRecord{URL: "https://x/video/a", Filename: "a|b.mp4"})
	assert.Error(t, err)
	_, err = store.Append(models.MappingRecord{URL: "", Filename: "a.mp4"})
	assert.Error(t, err)
}
