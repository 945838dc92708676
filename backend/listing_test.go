package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mwantia/folders/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(entries []*data.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Name)
	}
	return out
}

func TestPrefixListing_ObjectStorageScenario(t *testing.T) {
	objects := []RawObject{
		{Key: "folder1/file1.txt", Size: 123},
		{Key: "folder1/image.jpg", Size: 456},
	}
	prefixes := []string{"folder1/folder2/"}

	entries := PrefixListing("/folder1", "folder1/", "/", objects, prefixes)
	require.Len(t, entries, 3)
	require.NoError(t, data.ValidateListing("/folder1/", entries))

	byName := make(map[string]*data.Entry)
	for _, entry := range entries {
		byName[entry.Name] = entry
	}

	assert.Equal(t, data.FolderExtension, byName["folder2"].Extension)
	assert.Equal(t, int64(0), byName["folder2"].Size)
	assert.Equal(t, "", byName["folder2"].Type)
	assert.Equal(t, "/folder1/folder2", byName["folder2"].FullPath)

	assert.Equal(t, "txt", byName["file1.txt"].Extension)
	assert.Equal(t, int64(123), byName["file1.txt"].Size)
	assert.Equal(t, "jpg", byName["image.jpg"].Extension)
	assert.Equal(t, int64(456), byName["image.jpg"].Size)

	// Native prefixes come first
	assert.Equal(t, "folder2", entries[0].Name)
}

func TestPrefixListing_ManualGroupingDeduplicates(t *testing.T) {
	objects := []RawObject{
		{Key: "a/", Size: 0},
		{Key: "a/x/1.txt", Size: 1},
		{Key: "a/x/2.txt", Size: 2},
		{Key: "a/y/1.txt", Size: 3},
	}

	entries := PrefixListing("/a", "a/", "/", objects, nil)
	assert.Equal(t, []string{"x", "y"}, names(entries))
	for _, entry := range entries {
		assert.True(t, entry.IsFolder())
	}
}

func TestPrefixListing_MarkerAndForeignKeys(t *testing.T) {
	objects := []RawObject{
		{Key: "dir/"},
		{Key: "other/file.txt", Size: 5},
		{Key: "dir/file.txt", Size: 7, LastModified: time.UnixMilli(42)},
	}

	entries := PrefixListing("/dir", "dir/", "/", objects, []string{"dir/", "dir/sub/"})
	assert.Equal(t, []string{"sub", "file.txt"}, names(entries))
	assert.Equal(t, int64(42), entries[1].ModificationTime)
}

func TestFolderAndFileListing(t *testing.T) {
	folders := FolderListing("/", []string{"default", "test_schema", "default"}, map[string]any{"owner": "aws"})
	assert.Equal(t, []string{"default", "test_schema"}, names(folders))
	assert.Equal(t, "aws", folders[0].Meta["owner"])

	files := FileListing("/db/table", []string{"columns.md", "select.md"})
	require.Len(t, files, 2)
	assert.Equal(t, "md", files[0].Extension)
	assert.Equal(t, data.ContentTypeTextMarkdown, files[0].Type)
	assert.Equal(t, "/db/table/columns.md", files[0].FullPath)
}

func TestEnrich_PreservesOrderAndIgnoresFailures(t *testing.T) {
	ctx := t.Context()
	settings := (&Settings{EnrichConcurrency: 4}).WithDefaults("test")

	entries := []*data.Entry{
		data.NewFolder("/", "slow"),
		data.NewFile("/", "file.txt", 3),
		data.NewFolder("/", "broken"),
		data.NewFolder("/", "fast"),
	}
	original := entries[2]

	err := Enrich(ctx, settings, entries, func(ctx context.Context, entry *data.Entry) error {
		switch entry.Name {
		case "slow":
			time.Sleep(20 * time.Millisecond)
			entry.Size = 100
		case "broken":
			entry.Size = 999
			return errors.New("summary unavailable")
		case "fast":
			entry.Size = 1
			entry.Meta["fileCount"] = 1
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"slow", "file.txt", "broken", "fast"}, names(entries))
	assert.Equal(t, int64(100), entries[0].Size)
	assert.Equal(t, int64(3), entries[1].Size)
	assert.Same(t, original, entries[2])
	assert.Equal(t, int64(0), entries[2].Size)
	assert.Equal(t, int64(1), entries[3].Size)
	assert.Equal(t, 1, entries[3].Meta["fileCount"])
}

func TestEnrich_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	entries := []*data.Entry{data.NewFolder("/", "a")}
	err := Enrich(ctx, (&Settings{}).WithDefaults("test"), entries, func(ctx context.Context, entry *data.Entry) error {
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
}
