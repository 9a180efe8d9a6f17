package download

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	q := New(nil)
	_, err := q.Enqueue("music/a.ogg", hashOf(1), 100, 1)
	require.NoError(t, err)
	_, err = q.Enqueue("video/b.mp4", hashOf(2), 200, 2)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "downloadqueue")
	require.NoError(t, q.SaveToDisk(path))

	loaded, err := LoadFromDisk(path, nil)
	require.NoError(t, err)

	var got []string
	loaded.root.walkPaths("", func(full string, f *File) { got = append(got, full) })
	assert.ElementsMatch(t, []string{"music/a.ogg", "video/b.mp4"}, got)
}

func TestSaveToDiskUsesWorkingSiblingThenRenames(t *testing.T) {
	q := New(nil)
	_, err := q.Enqueue("a.bin", hashOf(1), 1, 1)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "downloadqueue")
	require.NoError(t, q.SaveToDisk(path))

	assert.FileExists(t, path)
	assert.NoFileExists(t, path+".working")
}
