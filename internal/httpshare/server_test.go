package httpshare

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/bs2609/fs2/internal/metrics"
	"github.com/bs2609/fs2/internal/shareengine"
)

type fakeShares struct {
	shares map[string]*shareengine.Share
}

func (f *fakeShares) Share(name string) *shareengine.Share { return f.shares[name] }
func (f *fakeShares) Shares() []*shareengine.Share {
	out := make([]*shareengine.Share, 0, len(f.shares))
	for _, s := range f.shares {
		out = append(out, s)
	}
	return out
}

func newTestServer(t *testing.T, content []byte) (*Server, *shareengine.Share) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "song.ogg"), content, 0o644))

	sh := shareengine.New("music", dir, filepath.Join(t.TempDir(), "music.FileList"), nil, nil)
	require.NoError(t, sh.Refresh(context.Background()))

	fs := &fakeShares{shares: map[string]*shareengine.Share{"music": sh}}
	m := metrics.NewClient(prometheus.NewRegistry())
	s := NewServer(fs, nil, NewSlotQueue(4), m, logrus.NewEntry(logrus.New()))
	return s, sh
}

func TestHandleDownloadFullBody(t *testing.T) {
	content := []byte("hello world")
	s, _ := newTestServer(t, content)

	req := httptest.NewRequest(http.MethodGet, "/share/music/song.ogg", nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, content, rr.Body.Bytes())
}

func TestHandleDownloadRange(t *testing.T) {
	content := []byte("0123456789")
	s, _ := newTestServer(t, content)

	req := httptest.NewRequest(http.MethodGet, "/share/music/song.ogg", nil)
	req.Header.Set("Range", "bytes=2-4")
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)

	require.Equal(t, http.StatusPartialContent, rr.Code)
	require.Equal(t, "234", rr.Body.String())
	require.Equal(t, "bytes 2-4/10", rr.Header().Get("Content-Range"))
}

func TestHandleDownloadOutOfRangeDegradesToFullBody(t *testing.T) {
	content := []byte("0123456789")
	s, _ := newTestServer(t, content)

	req := httptest.NewRequest(http.MethodGet, "/share/music/song.ogg", nil)
	req.Header.Set("Range", "bytes=500-600")
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, content, rr.Body.Bytes())
}

func TestHandlePingListsShares(t *testing.T) {
	s, _ := newTestServer(t, []byte("x"))
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body, _ := io.ReadAll(rr.Body)
	require.Contains(t, string(body), `name="music"`)
}

func TestHandleDownloadMissingFile404s(t *testing.T) {
	s, _ := newTestServer(t, []byte("x"))
	req := httptest.NewRequest(http.MethodGet, "/share/music/nope.ogg", nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}
