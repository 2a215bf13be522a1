package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igarchive/pkg/models"
)

func fixedWriter(t *testing.T, dir string) *Writer {
	t.Helper()
	w := NewWriter(dir, nil)
	w.now = func() time.Time {
		return time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	}
	return w
}

func TestWriteProducesTimestampedFile(t *testing.T) {
	dir := t.TempDir()
	w := fixedWriter(t, dir)

	path, err := w.Write(&Document{
		Account: "archivist",
		Posts:   []models.Post{{ID: "1_100", User: "someone"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "feed_20240315_093000.json", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 1, doc.TotalPosts)
	assert.Equal(t, "archivist", doc.Account)
	assert.NotEmpty(t, doc.GeneratedAt)
}

func TestWriteFilenameReflectsOptions(t *testing.T) {
	dir := t.TempDir()
	w := fixedWriter(t, dir)

	path, err := w.Write(&Document{
		Chronological:     true,
		SponsoredExcluded: true,
	})

	require.NoError(t, err)
	assert.Equal(t, "feed_20240315_093000_chrono_no_ads.json", filepath.Base(path))
}

func TestWriteLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	w := fixedWriter(t, dir)

	_, err := w.Write(&Document{Posts: []models.Post{{ID: "a"}}})
	require.NoError(t, err)

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestLoadExistingIDsCollectsAcrossFiles(t *testing.T) {
	dir := t.TempDir()

	writeArchive(t, dir, "feed_20240101_000000.json", []models.Post{
		{ID: "1_100"}, {ID: "2_100"},
	})
	writeArchive(t, dir, "feed_20240201_000000_chrono.json", []models.Post{
		{ID: "2_100"}, {ID: "3_100"},
	})

	ids, err := LoadExistingIDs(dir, nil)

	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.True(t, ids["1_100"])
	assert.True(t, ids["2_100"])
	assert.True(t, ids["3_100"])
}

func TestLoadExistingIDsSkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()

	writeArchive(t, dir, "feed_20240101_000000.json", []models.Post{{ID: "1_100"}})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feed_20240102_000000.json"), []byte("{broken"), 0644))

	ids, err := LoadExistingIDs(dir, nil)

	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestLoadExistingIDsEmptyDirectory(t *testing.T) {
	ids, err := LoadExistingIDs(t.TempDir(), nil)

	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSortChronologicalOrdersNewestFirst(t *testing.T) {
	posts := []models.Post{
		{ID: "a", Timestamp: 100},
		{ID: "c", Timestamp: 300},
		{ID: "b", Timestamp: 200},
	}

	SortChronological(posts)

	assert.Equal(t, "c", posts[0].ID)
	assert.Equal(t, "b", posts[1].ID)
	assert.Equal(t, "a", posts[2].ID)
}

func writeArchive(t *testing.T, dir, name string, posts []models.Post) {
	t.Helper()
	data, err := json.Marshal(Document{Posts: posts})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
}
