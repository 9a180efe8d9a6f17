// Package fsindex implements the indexnode's in-memory virtual
// filesystem: a tree of Entry nodes merging every registered peer's
// share trees into one namespace, plus the hash and keyword secondary
// indices used for search and deduplication (spec §3.1-§3.2, §4.1).
//
// The shape mirrors the teacher's backend/union package, which also
// merges several independent upstream trees into one addressable Fs:
// here the "upstreams" are peers' shares rather than configured remotes,
// and entries additionally carry a content hash used for
// cross-peer deduplication that union has no equivalent of.
package fsindex

import (
	"github.com/bs2609/fs2/internal/wire"
)

// Kind distinguishes a directory entry from a file entry.
type Kind uint8

const (
	KindDir Kind = iota
	KindFile
)

// ShareRef identifies the share an entry was imported from. It is a
// plain value (no behaviour) so fsindex does not need to import the
// peer registry or share importer packages.
type ShareRef struct {
	PeerAddr string
	Name     string
}

// Entry is a node in the indexnode's virtual filesystem (spec §3.1).
//
// Size and LinkCount are maintained as invariants by the Index that owns
// the entry; callers must never mutate them directly outside Index
// methods, which is why they are unexported and only reachable via
// accessor methods from other packages.
type Entry struct {
	name      string
	kind      Kind
	parent    *Entry
	children  map[string]*Entry // nil for files
	size      int64
	linkCount int
	hash      wire.Hash // zero value for directories
	share     *ShareRef // nil for root and per-client container entries
}

// Name returns the entry's element name, unique among its siblings.
func (e *Entry) Name() string { return e.name }

// IsDir reports whether the entry is a directory.
func (e *Entry) IsDir() bool { return e.kind == KindDir }

// Parent returns the entry's parent, or nil for the root.
func (e *Entry) Parent() *Entry { return e.parent }

// Size returns the file size, or the recursively aggregated size for a
// directory (spec §3.1 invariant 1).
func (e *Entry) Size() int64 { return e.size }

// LinkCount returns 2 for an empty directory, 2+#subdirs otherwise, or 1
// for a file (spec §3.1 invariant 1).
func (e *Entry) LinkCount() int { return e.linkCount }

// Hash returns the file's content digest, or the zero Hash for a
// directory.
func (e *Entry) Hash() wire.Hash { return e.hash }

// Share returns the owning share, or nil for the root and per-client
// container entries.
func (e *Entry) Share() *ShareRef { return e.share }

// Child looks up an immediate child by name. Returns nil if e is a file
// or has no such child.
func (e *Entry) Child(name string) *Entry {
	if e.children == nil {
		return nil
	}
	return e.children[name]
}

// Children returns a snapshot slice of the entry's immediate children,
// safe to range over without holding the index lock. It reads the
// children map without taking the index lock itself.
func (e *Entry) Children() []*Entry {
	out := make([]*Entry, 0, len(e.children))
	for _, c := range e.children {
		out = append(out, c)
	}
	return out
}

// Path returns the entry's slash-separated path from the root,
// excluding the root itself.
func (e *Entry) Path() string {
	if e.parent == nil {
		return ""
	}
	parentPath := e.parent.Path()
	if parentPath == "" {
		return e.name
	}
	return parentPath + "/" + e.name
}

func newDirEntry(name string, parent *Entry) *Entry {
	return &Entry{
		name:      name,
		kind:      KindDir,
		parent:    parent,
		children:  make(map[string]*Entry),
		linkCount: 2,
	}
}

func newFileEntry(name string, parent *Entry, size int64, hash wire.Hash, share *ShareRef) *Entry {
	return &Entry{
		name:      name,
		kind:      KindFile,
		parent:    parent,
		size:      size,
		hash:      hash,
		linkCount: 1,
		share:     share,
	}
}
