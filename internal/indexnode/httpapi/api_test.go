package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bs2609/fs2/internal/fsindex"
	"github.com/bs2609/fs2/internal/metrics"
	"github.com/bs2609/fs2/internal/peerregistry"
	"github.com/bs2609/fs2/internal/wire"
)

type okPinger struct{ err error }

func (p *okPinger) Ping(string) error { return p.err }

func newTestAPI(t *testing.T) (*API, *fsindex.Index, *peerregistry.Registry) {
	idx := fsindex.New()
	reg := peerregistry.New(idx)
	m := metrics.NewIndexnode(prometheus.NewRegistry())
	a := New(idx, reg, nil, m, &okPinger{}, logrus.NewEntry(logrus.New()))
	return a, idx, reg
}

func TestHandleHelloRegistersPeer(t *testing.T) {
	a, _, reg := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	req.RemoteAddr = "1.2.3.4:5555"
	req.Header.Set(wire.HeaderVersion, "1")
	req.Header.Set(wire.HeaderPort, "49152")
	req.Header.Set(wire.HeaderClientToken, "17")
	req.Header.Set(wire.HeaderAlias, "bob")

	rr := httptest.NewRecorder()
	a.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, reg.Count())
}

func TestHandleHelloRejectsMissingHeaders(t *testing.T) {
	a, _, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	rr := httptest.NewRecorder()
	a.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleHelloRejectsUnreachablePeer(t *testing.T) {
	idx := fsindex.New()
	reg := peerregistry.New(idx)
	m := metrics.NewIndexnode(prometheus.NewRegistry())
	a := New(idx, reg, nil, m, &okPinger{err: assertErr}, logrus.NewEntry(logrus.New()))

	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	req.RemoteAddr = "1.2.3.4:5555"
	req.Header.Set(wire.HeaderVersion, "1")
	req.Header.Set(wire.HeaderPort, "49152")
	req.Header.Set(wire.HeaderClientToken, "17")

	rr := httptest.NewRecorder()
	a.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusPreconditionFailed, rr.Code)
}

var assertErr = pingErr("unreachable")

type pingErr string

func (e pingErr) Error() string { return string(e) }

func TestHandleBrowseDirectoryListing(t *testing.T) {
	a, idx, _ := newTestAPI(t)
	root := idx.RegisterClient("bob")
	idx.ImportShare(root, "music", &fsindex.ShareRef{PeerAddr: "1.1.1.1:1", Name: "music"},
		fsindex.ImportNode{Name: "music", IsDir: true})

	req := httptest.NewRequest(http.MethodGet, "/browse/bob", nil)
	rr := httptest.NewRecorder()
	a.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "music")
}

func TestHandleBrowseFileRedirects(t *testing.T) {
	a, idx, _ := newTestAPI(t)
	root := idx.RegisterClient("bob")
	var h wire.Hash
	h[0] = 0xab
	idx.ImportShare(root, "music", &fsindex.ShareRef{PeerAddr: "1.1.1.1:1", Name: "music"},
		fsindex.ImportNode{Name: "music", IsDir: true, Children: []fsindex.ImportNode{
			{Name: "song.ogg", Hash: h, Size: 10},
		}})

	req := httptest.NewRequest(http.MethodGet, "/browse/bob/music/song.ogg", nil)
	rr := httptest.NewRecorder()
	a.ServeHTTP(rr, req)

	require.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	assert.Contains(t, rr.Header().Get("Location"), h.String())
}

func TestHandleSearchFindsAcrossPeers(t *testing.T) {
	a, idx, _ := newTestAPI(t)
	var h1, h2 wire.Hash
	h1[0], h2[0] = 1, 2
	r1 := idx.RegisterClient("alice")
	idx.ImportShare(r1, "s", &fsindex.ShareRef{PeerAddr: "1.1.1.1:1", Name: "s"},
		fsindex.ImportNode{Name: "s", IsDir: true, Children: []fsindex.ImportNode{
			{Name: "foo bar.txt", Hash: h1, Size: 1},
		}})
	r2 := idx.RegisterClient("bob")
	idx.ImportShare(r2, "s", &fsindex.ShareRef{PeerAddr: "2.2.2.2:2", Name: "s"},
		fsindex.ImportNode{Name: "s", IsDir: true, Children: []fsindex.ImportNode{
			{Name: "bar baz.txt", Hash: h2, Size: 1},
		}})

	req := httptest.NewRequest(http.MethodGet, "/search?q=bar", nil)
	rr := httptest.NewRecorder()
	a.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "foo bar.txt")
	assert.Contains(t, rr.Body.String(), "bar baz.txt")
}

func TestHandleDownloadRedirectsToPeer(t *testing.T) {
	a, idx, reg := newTestAPI(t)
	id := peerregistry.Identity{IP: "9.9.9.9", Port: 4000}
	p := reg.Hello(peerregistry.HelloRequest{Identity: id, Alias: "bob", Token: "1", PingURL: "http://9.9.9.9:4000/ping"})

	var h wire.Hash
	h[0] = 7
	idx.ImportShare(p.Root, "music", &fsindex.ShareRef{PeerAddr: id.String(), Name: "music"},
		fsindex.ImportNode{Name: "music", IsDir: true, Children: []fsindex.ImportNode{
			{Name: "song.ogg", Hash: h, Size: 5},
		}})

	req := httptest.NewRequest(http.MethodGet, "/download/"+h.String(), nil)
	rr := httptest.NewRecorder()
	a.ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "http://9.9.9.9:4000/share/music/song.ogg", rr.Header().Get("Location"))
}

func TestHandleAlternativesListsEveryHolder(t *testing.T) {
	a, idx, reg := newTestAPI(t)
	var h wire.Hash
	h[0] = 9
	for i, alias := range []string{"alice", "bob", "carol"} {
		id := peerregistry.Identity{IP: "10.0.0.1", Port: 5000 + i}
		p := reg.Hello(peerregistry.HelloRequest{Identity: id, Alias: alias, Token: "1", PingURL: "http://peer/ping"})
		idx.ImportShare(p.Root, "s", &fsindex.ShareRef{PeerAddr: id.String(), Name: "s"},
			fsindex.ImportNode{Name: "s", IsDir: true, Children: []fsindex.ImportNode{
				{Name: alias + ".bin", Hash: h, Size: 1},
			}})
	}

	req := httptest.NewRequest(http.MethodGet, "/alternatives/"+h.String(), nil)
	rr := httptest.NewRecorder()
	a.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 3, strings.Count(rr.Body.String(), "<peer "))
}

func TestHandleStatsReturnsCounts(t *testing.T) {
	a, _, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rr := httptest.NewRecorder()
	a.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "stats")
}

func TestHandleRobots(t *testing.T) {
	a, _, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/robots.txt", nil)
	rr := httptest.NewRecorder()
	a.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Disallow")
}
