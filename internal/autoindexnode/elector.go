package autoindexnode

import (
	"context"
	"sort"
	"sync"
	"time"
)

// AdvertiseInterval is the fixed period adverts are sent at (spec §6
// "INDEXNODE_ADVERTISE_INTERVAL_MS").
const AdvertiseInterval = 5 * time.Second

// expiryIntervals is how many missed advertise intervals before a
// table entry is dropped (spec §4.6 "Entries expire after five
// advertise intervals without a refresh").
const expiryIntervals = 5

type seenAdvert struct {
	capability int64
	active     bool
	lastSeen   time.Time
}

// Table tracks every unexpired advert seen on the network, keyed by its
// advert UID.
type Table struct {
	mu      sync.Mutex
	entries map[string]seenAdvert
	now     func() time.Time
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{entries: make(map[string]seenAdvert), now: time.Now}
}

// Observe records a for future ranking, refreshing its lastSeen.
func (t *Table) Observe(a Advert) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[a.UID] = seenAdvert{capability: a.Capability, active: a.Active, lastSeen: t.now()}
}

// Expire drops entries not refreshed within expiryIntervals*interval.
func (t *Table) Expire(interval time.Duration) {
	cutoff := t.now().Add(-expiryIntervals * interval)
	t.mu.Lock()
	defer t.mu.Unlock()
	for uid, e := range t.entries {
		if e.lastSeen.Before(cutoff) {
			delete(t.entries, uid)
		}
	}
}

// rankedPeers returns every unexpired peer's (uid, capability), sorted
// by descending capability with uid as the tiebreak key.
func (t *Table) rankedPeers() []struct {
	uid        string
	capability int64
} {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]struct {
		uid        string
		capability int64
	}, 0, len(t.entries))
	for uid, e := range t.entries {
		out = append(out, struct {
			uid        string
			capability int64
		}{uid, e.capability})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].capability != out[j].capability {
			return out[i].capability > out[j].capability
		}
		return out[i].uid < out[j].uid
	})
	return out
}

// hasActiveOtherThan reports whether any table entry other than uid is
// an active indexnode (spec §4.6 "If a superior advert arrives, it relinquishes").
func (t *Table) hasActiveOtherThan(uid string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for u, e := range t.entries {
		if u != uid && e.active {
			return true
		}
	}
	return false
}

// ShouldElect implements spec §4.6's self-election rule: a client
// elects itself active iff its capability is strictly greater than
// every unexpired peer, or its UID sorts first among peers tied at the
// top capability. It never elects while the table holds an active
// advert from another UID.
func ShouldElect(myUID string, myCapability int64, table *Table) bool {
	if table.hasActiveOtherThan(myUID) {
		return false
	}
	ranked := table.rankedPeers()
	if len(ranked) == 0 {
		return true
	}
	top := ranked[0].capability
	if myCapability > top {
		return true
	}
	if myCapability < top {
		return false
	}
	// Tied at the top: elect iff myUID sorts first among every peer
	// also at that capability.
	for _, p := range ranked {
		if p.capability != top {
			break
		}
		if p.uid < myUID {
			return false
		}
	}
	return true
}

// Manager owns this process's election state: whether it currently runs
// an embedded indexnode, and the advertiser loop (spec §4.6).
type Manager struct {
	transport Transport
	table     *Table
	uid       string
	port      int

	onElected    func()
	onRelinquish func()

	mu     sync.Mutex
	active bool
}

// NewManager creates a Manager that advertises on transport and calls
// onElected/onRelinquish as its election state flips.
func NewManager(transport Transport, port int, onElected, onRelinquish func()) *Manager {
	return &Manager{
		transport:    transport,
		table:        NewTable(),
		uid:          NewUID(),
		port:         port,
		onElected:    onElected,
		onRelinquish: onRelinquish,
	}
}

// Run drives the advertise/listen/elect loop until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	go m.listen(ctx)

	ticker := time.NewTicker(AdvertiseInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.table.Expire(AdvertiseInterval)
			m.tick()
		}
	}
}

func (m *Manager) listen(ctx context.Context) {
	for {
		payload, _, err := m.transport.Receive(ctx)
		if err != nil {
			return
		}
		a, err := Decode(payload)
		if err != nil || a.UID == m.uid {
			continue
		}
		m.table.Observe(a)
	}
}

func (m *Manager) tick() {
	score := Capability()
	elect := ShouldElect(m.uid, score, m.table)

	m.mu.Lock()
	wasActive := m.active
	m.active = elect
	m.mu.Unlock()

	if elect {
		if !wasActive && m.onElected != nil {
			m.onElected()
		}
		_ = m.transport.Send(Advert{Active: true, Port: m.port, UID: m.uid}.Encode())
		return
	}

	if wasActive && m.onRelinquish != nil {
		m.onRelinquish()
	}
	_ = m.transport.Send(Advert{Active: false, Capability: score, UID: m.uid}.Encode())
}

// Active reports whether this process currently believes it is the
// elected active indexnode.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}
