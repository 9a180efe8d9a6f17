package shareimport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bs2609/fs2/internal/filelist"
	"github.com/bs2609/fs2/internal/fsindex"
	"github.com/bs2609/fs2/internal/metrics"
	"github.com/bs2609/fs2/internal/peerregistry"
	"github.com/bs2609/fs2/internal/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu        sync.Mutex
	manifests map[string][]peerregistry.ManifestEntry
	lists     map[string]filelist.Item
	errs      map[string]error
}

func (f *fakeFetcher) FetchManifest(ctx context.Context, p *peerregistry.Peer) ([]peerregistry.ManifestEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.manifests[p.Alias], nil
}

func (f *fakeFetcher) FetchFileList(ctx context.Context, p *peerregistry.Peer, s *peerregistry.Share) (filelist.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := p.Alias + "/" + s.Name
	if err, ok := f.errs[key]; ok {
		return filelist.Item{}, err
	}
	return f.lists[key], nil
}

func newTestImporter(f *fakeFetcher) (*Importer, *peerregistry.Registry, *fsindex.Index) {
	idx := fsindex.New()
	reg := peerregistry.New(idx)
	m := metrics.NewIndexnode(prometheus.NewRegistry())
	log := logrus.NewEntry(logrus.New())
	im := New(reg, idx, f, m, log, 4)
	return im, reg, idx
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestOnHelloImportsNewShare(t *testing.T) {
	var h wire.Hash
	h[0] = 1
	f := &fakeFetcher{
		manifests: map[string][]peerregistry.ManifestEntry{
			"bob": {{Name: "music", Revision: 1}},
		},
		lists: map[string]filelist.Item{
			"bob/music": {
				Name: "music", Children: []filelist.Item{
					{Name: "song.ogg", Size: 10, Hash: h},
				},
			},
		},
	}
	im, reg, idx := newTestImporter(f)
	p := reg.Hello(peerregistry.HelloRequest{Identity: peerregistry.Identity{IP: "1.1.1.1", Port: 1}, Alias: "bob"})

	require.NoError(t, im.OnHello(context.Background(), p))
	waitFor(t, func() bool { return idx.LookupPath("bob/music/song.ogg") != nil })

	share := p.Share("music")
	require.NotNil(t, share)
	waitFor(t, func() bool { return share.Revision == 1 })
}

func TestRefreshRollsBackOnUnreachable(t *testing.T) {
	f := &fakeFetcher{
		manifests: map[string][]peerregistry.ManifestEntry{"bob": {{Name: "music", Revision: 5}}},
		errs:      map[string]error{"bob/music": ErrUnreachable},
	}
	im, reg, _ := newTestImporter(f)
	p := reg.Hello(peerregistry.HelloRequest{Identity: peerregistry.Identity{IP: "1.1.1.1", Port: 1}, Alias: "bob"})

	require.NoError(t, im.OnHello(context.Background(), p))
	waitFor(t, func() bool {
		s := p.Share("music")
		return s != nil && s.PendingRevision == s.Revision
	})
}

func TestReconcileDelistsDroppedShare(t *testing.T) {
	f := &fakeFetcher{manifests: map[string][]peerregistry.ManifestEntry{
		"bob": {{Name: "music", Revision: 1}},
	}}
	im, reg, idx := newTestImporter(f)
	p := reg.Hello(peerregistry.HelloRequest{Identity: peerregistry.Identity{IP: "1.1.1.1", Port: 1}, Alias: "bob"})
	f.lists = map[string]filelist.Item{"bob/music": {Name: "music", Children: []filelist.Item{}}}
	require.NoError(t, im.OnHello(context.Background(), p))
	waitFor(t, func() bool { return idx.LookupPath("bob/music") != nil })

	f.manifests["bob"] = nil
	require.NoError(t, im.OnHello(context.Background(), p))
	assert.Nil(t, idx.LookupPath("bob/music"))
}
