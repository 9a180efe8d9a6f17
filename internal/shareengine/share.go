package shareengine

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/bs2609/fs2/internal/filelist"
	"github.com/bs2609/fs2/internal/ratelimit"
)

// Status is a share's lifecycle state (spec §4.4).
type Status int32

const (
	StatusBuilding Status = iota
	StatusRefreshing
	StatusActive
	StatusSaving
	StatusError
	StatusShutdown
)

func (s Status) String() string {
	switch s {
	case StatusBuilding:
		return "BUILDING"
	case StatusRefreshing:
		return "REFRESHING"
	case StatusActive:
		return "ACTIVE"
	case StatusSaving:
		return "SAVING"
	case StatusError:
		return "ERROR"
	case StatusShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// ChangeNotifier is invoked after a successful refresh bumps the
// revision, so the communicator can re-register with every known
// indexnode (spec §4.4 "Refresh completion ... triggers a change
// notification to every registered indexnode").
type ChangeNotifier func(share *Share)

// Share is one client-exported directory tree (spec §4.4).
type Share struct {
	Name string
	Root string // canonical, symlink-resolved share root on disk
	Path string // on-disk .FileList path this share persists to

	bandwidth *ratelimit.Bucket
	onChange  ChangeNotifier

	mu       sync.RWMutex
	status   atomic.Int32
	revision uint64
	list     filelist.Item
	shutdown atomic.Bool
}

// New creates a share rooted at root, persisting to listPath, with an
// initially empty file list.
func New(name, root, listPath string, bandwidth *ratelimit.Bucket, onChange ChangeNotifier) *Share {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			root = resolved
		}
	}
	s := &Share{Name: name, Root: root, Path: listPath, bandwidth: bandwidth, onChange: onChange}
	s.status.Store(int32(StatusBuilding))
	s.list = filelist.Item{Name: name, Children: []filelist.Item{}}
	return s
}

// Status returns the share's current lifecycle state.
func (s *Share) Status() Status { return Status(s.status.Load()) }

// Revision returns the share's current monotone revision (spec §3.3).
func (s *Share) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// List returns a copy of the share's current file list root item.
func (s *Share) List() filelist.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list
}

// Shutdown requests cooperative cancellation: any refresh in progress
// stops at its next directory boundary, and no new refresh is started
// (spec §4.4, §5 "Cancellation").
func (s *Share) Shutdown() {
	s.shutdown.Store(true)
	s.status.Store(int32(StatusShutdown))
}

func (s *Share) cancelled() bool { return s.shutdown.Load() }

// Load restores the share's file list from disk at startup, self
// healing a mismatched internal name (spec §6).
func (s *Share) Load() error {
	it, _, err := filelist.LoadAndSelfHeal(s.Path, s.Name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.list = it
	s.mu.Unlock()
	s.status.Store(int32(StatusActive))
	return nil
}

// Refresh walks Root, diffing against the prior list, and on success
// bumps the revision, persists the new list, and notifies onChange
// (spec §4.4).
func (s *Share) Refresh(ctx context.Context) error {
	if s.shutdown.Load() {
		return nil
	}
	s.status.Store(int32(StatusRefreshing))

	s.mu.RLock()
	prior := s.list.Children
	s.mu.RUnlock()

	children, err := refreshDir(ctx, s.Root, s.Root, prior, s.bandwidth, s.cancelled)
	if err != nil {
		s.status.Store(int32(StatusError))
		return err
	}

	newList := filelist.Item{Name: s.Name, Children: children}
	filelist.Rebuild(&newList)

	s.status.Store(int32(StatusSaving))
	if err := filelist.SaveToDisk(s.Path, newList); err != nil {
		s.status.Store(int32(StatusError))
		return err
	}

	s.mu.Lock()
	s.list = newList
	s.revision++
	s.mu.Unlock()

	s.status.Store(int32(StatusActive))
	if s.onChange != nil {
		s.onChange(s)
	}
	return nil
}
