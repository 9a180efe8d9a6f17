// Package shareimport implements the indexnode's share importer and
// refresh worker pool (spec §4.3): for each peer hello it diffs the
// peer's share manifest against what the indexnode already knows, then
// services refreshes - full file-list fetch, parse, atomic graft into
// the filesystem index - on a bounded pool.
package shareimport

import (
	"context"
	"errors"

	"github.com/bs2609/fs2/internal/filelist"
	"github.com/bs2609/fs2/internal/fsindex"
	"github.com/bs2609/fs2/internal/metrics"
	"github.com/bs2609/fs2/internal/peerregistry"
	"github.com/sirupsen/logrus"
)

// ErrUnreachable marks a transient network failure during a refresh
// fetch - spec §4.3/§7 "On a 404 ... or network failure, revision is
// rolled back".
var ErrUnreachable = errors.New("shareimport: peer unreachable")

// ErrShareNotFound marks a 404 from the peer's /filelists endpoint.
var ErrShareNotFound = errors.New("shareimport: share not found on peer")

// Fetcher retrieves data from a peer over the network. The indexnode
// wires a real HTTP-backed implementation; tests supply a fake.
type Fetcher interface {
	// FetchManifest requests a peer's /ping and returns its current
	// share manifest (spec §4.3).
	FetchManifest(ctx context.Context, p *peerregistry.Peer) ([]peerregistry.ManifestEntry, error)
	// FetchFileList requests the full file list for share from its
	// owning peer, decoding XML or FILELIST binary per share.Type.
	FetchFileList(ctx context.Context, p *peerregistry.Peer, share *peerregistry.Share) (filelist.Item, error)
}

// Importer owns the bounded refresh worker pool and the registry/index
// it mutates.
type Importer struct {
	registry *peerregistry.Registry
	index    *fsindex.Index
	fetcher  Fetcher
	metrics  *metrics.Indexnode
	log      *logrus.Entry
	pool     *pool
}

// New creates an Importer whose refresh workers run with concurrency
// poolSize (spec §4.3 "Refresh is serviced by a bounded worker pool
// (size is config)").
func New(registry *peerregistry.Registry, index *fsindex.Index, fetcher Fetcher, m *metrics.Indexnode, log *logrus.Entry, poolSize int) *Importer {
	return &Importer{
		registry: registry,
		index:    index,
		fetcher:  fetcher,
		metrics:  m,
		log:      log,
		pool:     newPool(poolSize),
	}
}

// OnHello reconciles a peer's manifest against known shares and submits
// every share needing a refresh to the worker pool (spec §4.3).
func (im *Importer) OnHello(ctx context.Context, p *peerregistry.Peer) error {
	manifest, err := im.fetcher.FetchManifest(ctx, p)
	if err != nil {
		return err
	}
	toDelist, toRefresh := im.registry.ReconcileShares(p, manifest)
	for _, s := range toDelist {
		im.index.DelistShare(p.Root, s.Name)
	}
	for _, s := range toRefresh {
		s := s
		im.pool.submit(func() { im.refresh(ctx, p, s) })
	}
	return nil
}

// refresh fetches and imports one share. It enforces at-most-one
// refresh per share by locking the share for the duration (spec §5 "For
// a given peer, one refresh per share at a time").
func (im *Importer) refresh(ctx context.Context, p *peerregistry.Peer, s *peerregistry.Share) {
	s.Lock()
	defer s.Unlock()

	if s.Delisted || !s.NeedsRefresh() {
		return
	}
	target := s.PendingRevision
	log := im.log.WithFields(logrus.Fields{"peer": p.Alias, "share": s.Name, "rev": target})

	tree, err := im.fetcher.FetchFileList(ctx, p, s)
	if err != nil {
		im.metrics.SharesFailed.Inc()
		if errors.Is(err, ErrShareNotFound) || errors.Is(err, ErrUnreachable) {
			// Transient: roll the pending revision back so the next
			// hello's reconcile schedules another attempt (spec §7).
			s.PendingRevision = s.Revision
			log.WithError(err).Warn("share refresh rolled back")
			return
		}
		// Any other exception leaves the share poisoned until the next
		// explicit manifest change bumps PendingRevision again (spec
		// §4.3, and the open question in spec §9 about this asymmetry).
		log.WithError(err).Error("share refresh failed, not retrying until next change")
		return
	}

	node := toImportNode(tree)
	im.index.ImportShare(p.Root, s.Name, &fsindex.ShareRef{PeerAddr: p.Identity.String(), Name: s.Name}, node)
	s.Revision = target
	im.metrics.SharesRefreshed.Inc()
	log.Debug("share refreshed")
}

func toImportNode(it filelist.Item) fsindex.ImportNode {
	n := fsindex.ImportNode{Name: it.Name, IsDir: it.IsDir(), Size: it.Size, Hash: it.Hash}
	if it.IsDir() {
		n.Children = make([]fsindex.ImportNode, len(it.Children))
		for i, c := range it.Children {
			n.Children[i] = toImportNode(c)
		}
	}
	return n
}
