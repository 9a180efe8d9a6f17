package shareengine

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/bs2609/fs2/internal/ratelimit"
)

// Manager owns every share a client exports and the per-volume pool
// their refreshes are dispatched through (spec §4.4 "A refresh is
// submitted to a per-filesystem-volume worker pool").
type Manager struct {
	bandwidth *ratelimit.Bucket
	onChange  ChangeNotifier
	log       *logrus.Entry
	pool      *VolumePool

	shares map[string]*Share
}

// NewManager creates an empty Manager. bandwidth throttles hashing
// across every share it owns; onChange fires after any share's
// successful refresh.
func NewManager(bandwidth *ratelimit.Bucket, onChange ChangeNotifier, log *logrus.Entry) *Manager {
	return &Manager{
		bandwidth: bandwidth,
		onChange:  onChange,
		log:       log,
		pool:      NewVolumePool(),
		shares:    make(map[string]*Share),
	}
}

// AddShare creates and registers a new share rooted at root, restoring
// its prior file list from listPath if present.
func (m *Manager) AddShare(name, root, listPath string) (*Share, error) {
	s := New(name, root, listPath, m.bandwidth, m.onChange)
	if _, err := os.Stat(listPath); err == nil {
		if err := s.Load(); err != nil {
			return nil, err
		}
	}
	m.shares[name] = s
	return s, nil
}

// Share returns the named share, or nil.
func (m *Manager) Share(name string) *Share { return m.shares[name] }

// Shares returns every share the manager owns.
func (m *Manager) Shares() []*Share {
	out := make([]*Share, 0, len(m.shares))
	for _, s := range m.shares {
		out = append(out, s)
	}
	return out
}

// RequestRefresh submits s's refresh to the worker for its filesystem
// volume, so two shares on the same disk never refresh concurrently
// while shares on different disks proceed in parallel.
func (m *Manager) RequestRefresh(ctx context.Context, s *Share) {
	vol := volumeID(s.Root)
	m.pool.Submit(vol, func() {
		if err := s.Refresh(ctx); err != nil && m.log != nil {
			m.log.WithError(err).WithField("share", s.Name).Warn("share refresh failed")
		}
	})
}

// Shutdown stops every owned share, so in-flight refreshes end at their
// next directory boundary and no new refresh starts (spec §4.4, §5).
func (m *Manager) Shutdown() {
	for _, s := range m.shares {
		s.Shutdown()
	}
}

// volumeID derives an opaque per-filesystem-volume identifier for a
// share root. It is a thin OS-portable stand-in for a device id: the
// same volume yields the same id for as long as it stays mounted at the
// same point, and an unmounted-then-remounted volume is free to land on
// a different worker, since the old one will simply idle out (spec §4.4
// "the pool is dynamically adjusted as mount points appear and
// disappear").
func volumeID(root string) string {
	if dev := statDevice(root); dev != "" {
		return dev
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return root
	}
	return filepath.VolumeName(abs)
}
