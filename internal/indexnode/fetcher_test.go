package indexnode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bs2609/fs2/internal/filelist"
	"github.com/bs2609/fs2/internal/peerregistry"
	"github.com/bs2609/fs2/internal/shareimport"
)

func TestFetchManifestParsesXML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<shares><share name="music" revision="3" type="FILELIST"/></shares>`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher()
	p := &peerregistry.Peer{PingURL: srv.URL + "/ping"}
	manifest, err := f.FetchManifest(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, manifest, 1)
	assert.Equal(t, "music", manifest[0].Name)
	assert.Equal(t, uint64(3), manifest[0].Revision)
	assert.Equal(t, peerregistry.ShareTypeFilelist, manifest[0].Type)
}

func TestFetchManifestUnreachableWraps(t *testing.T) {
	f := NewHTTPFetcher()
	p := &peerregistry.Peer{PingURL: "http://127.0.0.1:1/ping"}
	_, err := f.FetchManifest(context.Background(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, shareimport.ErrUnreachable)
}

func TestFetchFileListDecodesBinary(t *testing.T) {
	want := filelist.Item{Name: "music", Children: []filelist.Item{
		{Name: "song.ogg", Size: 42},
	}}
	filelist.Rebuild(&want)
	data, err := filelist.EncodeBinary(want)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/filelists/music.FileList", r.URL.Path)
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	f := NewHTTPFetcher()
	p := &peerregistry.Peer{PingURL: srv.URL + "/ping"}
	share := &peerregistry.Share{Name: "music", Type: peerregistry.ShareTypeFilelist}
	got, err := f.FetchFileList(context.Background(), p, share)
	require.NoError(t, err)
	assert.Equal(t, "music", got.Name)
}

func TestFetchFileListNotFoundWrapsShareNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewHTTPFetcher()
	p := &peerregistry.Peer{PingURL: srv.URL + "/ping"}
	share := &peerregistry.Share{Name: "music", Type: peerregistry.ShareTypeXML}
	_, err := f.FetchFileList(context.Background(), p, share)
	require.Error(t, err)
	assert.ErrorIs(t, err, shareimport.ErrShareNotFound)
}
