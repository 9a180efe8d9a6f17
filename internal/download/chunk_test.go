package download

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChunkFetcher struct {
	content map[string][]byte
	fail    map[string]bool
}

func (f *fakeChunkFetcher) FetchRange(ctx context.Context, url string, start, end int64) (io.ReadCloser, error) {
	if f.fail[url] {
		return nil, assertErr
	}
	data := f.content[url][start : end+1]
	return io.NopCloser(newByteReader(data)), nil
}

var assertErr = &fetchErr{"simulated failure"}

type fetchErr struct{ msg string }

func (e *fetchErr) Error() string { return e.msg }

func newByteReader(b []byte) io.Reader { return &sliceReader{data: b} }

type sliceReader struct {
	data []byte
	pos  int
}

func (s *sliceReader) Read(p []byte) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += n
	return n, nil
}

func TestFetchFileSingleSource(t *testing.T) {
	content := make([]byte, ChunkSize+100)
	for i := range content {
		content[i] = byte(i)
	}
	fetcher := &fakeChunkFetcher{content: map[string][]byte{"http://alice": content}}

	f := &File{SaveAs: "a.bin", Size: int64(len(content))}
	sources := map[string]Source{"alice": {Alias: "alice", URL: "http://alice"}}
	stats := &fakeStats{}

	dest := filepath.Join(t.TempDir(), "out.bin")
	out, err := os.Create(dest)
	require.NoError(t, err)
	defer out.Close()

	require.NoError(t, FetchFile(context.Background(), fetcher, f, sources, stats, out, nil))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestFetchFileFallsBackToSecondSource(t *testing.T) {
	content := []byte("hello world this is a small file")
	fetcher := &fakeChunkFetcher{
		content: map[string][]byte{"http://bob": content},
		fail:    map[string]bool{"http://alice": true},
	}

	f := &File{SaveAs: "a.bin", Size: int64(len(content))}
	sources := map[string]Source{
		"alice": {Alias: "alice", URL: "http://alice"},
		"bob":   {Alias: "bob", URL: "http://bob"},
	}
	stats := &fakeStats{favourite: map[string]bool{"alice": true}}

	dest := filepath.Join(t.TempDir(), "out.bin")
	out, err := os.Create(dest)
	require.NoError(t, err)
	defer out.Close()

	require.NoError(t, FetchFile(context.Background(), fetcher, f, sources, stats, out, nil))
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestFetchFileNoSourcesReturnsErr(t *testing.T) {
	f := &File{SaveAs: "a.bin", Size: 10}
	stats := &fakeStats{}
	dest, _ := os.CreateTemp(t.TempDir(), "out")
	defer dest.Close()

	err := FetchFile(context.Background(), &fakeChunkFetcher{}, f, map[string]Source{}, stats, dest, nil)
	assert.ErrorIs(t, err, ErrNoSource)
}
