// Package peerregistry implements the indexnode's peer map, liveness
// state machine and alias-uniqueness rules (spec §3.3, §4.2).
package peerregistry

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/bs2609/fs2/internal/fsindex"
)

// ShareType mirrors spec §3.3.
type ShareType uint8

const (
	ShareTypeFilelist ShareType = iota
	ShareTypeXML
)

// Share is the indexnode's view of one of a peer's exported shares
// (spec §3.3). Revision is monotone increasing; PendingRevision tracks
// the most recently-advertised revision not yet fetched.
type Share struct {
	Name            string
	Owner           *Peer
	Type            ShareType
	Revision        uint64
	PendingRevision uint64
	UID             string
	Listed          bool
	Delisted        bool

	refreshMu sync.Mutex
}

// Lock serialises refreshes of this share (spec §5 "the refresh
// serialises per share (synchronized on that share object)").
func (s *Share) Lock() { s.refreshMu.Lock() }

// Unlock releases the refresh lock taken by Lock.
func (s *Share) Unlock() { s.refreshMu.Unlock() }

// NeedsRefresh reports whether the share has been advertised at a
// revision newer than the one currently imported (spec §3.3 "A share is
// queued for refresh iff pendingRevision > revision").
func (s *Share) NeedsRefresh() bool {
	return !s.Delisted && s.PendingRevision > s.Revision
}

// Identity is the (ip, port) pair peers are keyed by (spec §3.3).
type Identity struct {
	IP   string
	Port int
}

func (id Identity) String() string {
	return net.JoinHostPort(id.IP, strconv.Itoa(id.Port))
}

// Peer is the indexnode's full record of one registered client (spec
// §3.3).
type Peer struct {
	Identity    Identity
	Alias       string
	ClientToken string
	Secure      bool
	Loopback    bool
	PingURL     string
	Root        *fsindex.Entry

	mu     sync.Mutex
	shares map[string]*Share

	failedLiveness int
	livenessTimer  *time.Timer
	pingInFlight   bool
}

func newPeer(id Identity, root *fsindex.Entry) *Peer {
	return &Peer{
		Identity: id,
		Root:     root,
		shares:   make(map[string]*Share),
	}
}

// Share returns the named share, or nil.
func (p *Peer) Share(name string) *Share {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shares[name]
}

// Shares returns a snapshot of the peer's shares (spec §4.3 "iterate a
// snapshot of shares").
func (p *Peer) Shares() []*Share {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Share, 0, len(p.shares))
	for _, s := range p.shares {
		out = append(out, s)
	}
	return out
}

func (p *Peer) putShare(s *Share) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shares[s.Name] = s
}

func (p *Peer) removeShare(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.shares, name)
}

// FailedLiveness returns the consecutive failed-ping counter (spec §8
// invariant 4).
func (p *Peer) FailedLiveness() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failedLiveness
}

// TryBeginPing reports whether a ping may start: it enforces the
// at-most-one-in-flight-ping invariant of spec §4.2/§5, returning false
// (and logging is the caller's job) if a ping is already outstanding.
func (p *Peer) TryBeginPing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pingInFlight {
		return false
	}
	p.pingInFlight = true
	return true
}

// EndPingOK resets the failed-liveness counter on a successful ping
// (spec §4.2 state machine).
func (p *Peer) EndPingOK() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pingInFlight = false
	p.failedLiveness = 0
}

// EndPingFail increments the failed-liveness counter and returns the new
// value.
func (p *Peer) EndPingFail() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pingInFlight = false
	p.failedLiveness++
	return p.failedLiveness
}
