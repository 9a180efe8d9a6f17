package peerregistry

import (
	"fmt"
	"sync"
	"time"

	"github.com/bs2609/fs2/internal/fsindex"
)

// MaxFailedLivenesses is K in spec §4.2: a peer is evicted once its
// failed-ping counter exceeds this threshold.
const MaxFailedLivenesses = 3

// PingInterval is the shared timer interval liveness pings are issued on
// (spec §4.2 "Pings are issued by a shared timer at a fixed interval").
const PingInterval = 90 * time.Second

// ReservedLocalOnlyAliases are aliases only a loopback peer may use
// without being suffixed (spec §4.2 "Alias uniqueness").
var ReservedLocalOnlyAliases = map[string]struct{}{
	"local": {}, "localhost": {}, "self": {},
}

// HelloRequest is the normalised form of an incoming /hello (spec §6).
type HelloRequest struct {
	Identity Identity
	Alias    string
	Token    string
	Secure   bool
	Loopback bool
	PingURL  string
}

// Registry is the indexnode's peer map plus the global alias set (spec
// §3.3, §4.2). It holds no network dependency: Hello/Evict operate on
// already-verified inputs, and the indexnode package is responsible for
// doing the reachability ping before calling Hello, and for driving the
// liveness timer that calls Peer.TryBeginPing and EndPingOK/EndPingFail.
type Registry struct {
	index *fsindex.Index

	mu      sync.RWMutex
	peers   map[Identity]*Peer
	aliases map[string]Identity
}

// New creates an empty Registry backed by index.
func New(index *fsindex.Index) *Registry {
	return &Registry{
		index:   index,
		peers:   make(map[Identity]*Peer),
		aliases: make(map[string]Identity),
	}
}

// Get returns the peer at id, or nil.
func (r *Registry) Get(id Identity) *Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.peers[id]
}

// Snapshot returns every currently registered peer.
func (r *Registry) Snapshot() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// Count returns the number of currently registered peers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Hello registers req as a new peer, or refreshes an existing one's
// token/secure/alias in place (spec §4.2 "Registration"). The caller
// must have already verified reachability with a ping before calling
// Hello - this method makes no network calls.
func (r *Registry) Hello(req HelloRequest) *Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.peers[req.Identity]; ok {
		p.ClientToken = req.Token
		p.Secure = req.Secure
		p.PingURL = req.PingURL
		r.setAliasLocked(p, req.Alias)
		return p
	}

	alias := req.Alias
	if _, collides := r.aliases[alias]; collides {
		alias = fmt.Sprintf("%s-%s", alias, req.Identity)
	} else if _, reserved := ReservedLocalOnlyAliases[alias]; reserved && !req.Loopback {
		alias = fmt.Sprintf("%s-%s", alias, req.Identity)
	}
	root := r.index.RegisterClient(alias)
	p := newPeer(req.Identity, root)
	p.ClientToken = req.Token
	p.Secure = req.Secure
	p.Loopback = req.Loopback
	p.PingURL = req.PingURL
	p.Alias = alias
	r.peers[req.Identity] = p
	r.aliases[alias] = req.Identity
	return p
}

// setAliasLocked implements spec §4.2 "Alias uniqueness": a no-op if the
// alias is unchanged; otherwise, if it collides with another peer or is
// reserved for loopback-only use and this peer isn't loopback, the alias
// is suffixed with the peer's address before being applied.
func (r *Registry) setAliasLocked(p *Peer, proposed string) {
	if proposed == p.Alias {
		return
	}

	final := proposed
	if owner, collides := r.aliases[proposed]; collides && owner != p.Identity {
		final = fmt.Sprintf("%s-%s", proposed, p.Identity)
	} else if _, reserved := ReservedLocalOnlyAliases[proposed]; reserved && !p.Loopback {
		final = fmt.Sprintf("%s-%s", proposed, p.Identity)
	}

	delete(r.aliases, p.Alias)
	r.aliases[final] = p.Identity
	r.index.RenameClient(p.Root, final)
	p.Alias = final
}

// Evict removes a peer entirely: cancels its liveness timer, removes it
// from the address map, delists every one of its shares, frees its
// alias, and erases its fs-root (spec §4.2 "Eviction").
func (r *Registry) Evict(id Identity) {
	r.mu.Lock()
	p, ok := r.peers[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.peers, id)
	delete(r.aliases, p.Alias)
	r.mu.Unlock()

	if p.livenessTimer != nil {
		p.livenessTimer.Stop()
	}
	for _, s := range p.Shares() {
		s.Delisted = true
	}
	r.index.DeregisterClient(p.Root)
}

// ManifestEntry is one line of a peer's /ping share manifest (spec
// §4.3): name, revision and type, nothing else.
type ManifestEntry struct {
	Name     string
	Revision uint64
	Type     ShareType
}

// ReconcileShares diffs a peer's previously known shares against a fresh
// manifest fetched from /ping, per spec §4.3:
//
//   - present only on the indexnode side  -> returned in toDelist
//   - present only on the peer side       -> a new Share is created,
//     scheduled, and returned in toRefresh
//   - present on both, peer revision newer -> pending bumped, returned
//     in toRefresh
//
// It never performs I/O; the caller (internal/shareimport) is
// responsible for actually fetching and importing file lists.
func (r *Registry) ReconcileShares(p *Peer, manifest []ManifestEntry) (toDelist, toRefresh []*Share) {
	seen := make(map[string]bool, len(manifest))

	for _, m := range manifest {
		seen[m.Name] = true
		existing := p.Share(m.Name)
		if existing == nil {
			s := &Share{
				Name:            m.Name,
				Owner:           p,
				Type:            m.Type,
				PendingRevision: m.Revision,
				Listed:          true,
			}
			p.putShare(s)
			toRefresh = append(toRefresh, s)
			continue
		}
		if existing.Delisted {
			continue
		}
		if m.Revision > existing.PendingRevision {
			existing.PendingRevision = m.Revision
			toRefresh = append(toRefresh, existing)
		}
	}

	for _, s := range p.Shares() {
		if !seen[s.Name] {
			s.Delisted = true
			toDelist = append(toDelist, s)
		}
	}
	return toDelist, toRefresh
}
