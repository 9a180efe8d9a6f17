package fsindex

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bs2609/fs2/internal/wire"
)

// Index is the indexnode's merged virtual filesystem: one tree plus a
// hash index and a keyword index (spec §3.1-§3.2, §4.1).
//
// Lock order: a structural mutation takes treeMu first and, while holding
// it, takes hashMu and keywordMu one at a time, never both together and
// never before treeMu. Readers take a single lock. All three are taken
// only for the window of a single mutation; no lock is ever held across
// network I/O (the share importer
// fetches file lists before calling ImportShare, not while holding any
// lock here).
type Index struct {
	hashMu    sync.RWMutex
	keywordMu sync.RWMutex
	treeMu    sync.RWMutex

	root         *Entry
	hashIndex    map[wire.Hash]map[*Entry]struct{}
	keywordIndex map[string]map[*Entry]struct{}

	estimatedTransfer int64 // atomic
}

// New creates an empty Index with just a root directory.
func New() *Index {
	return &Index{
		root:         newDirEntry("", nil),
		hashIndex:    make(map[wire.Hash]map[*Entry]struct{}),
		keywordIndex: make(map[string]map[*Entry]struct{}),
	}
}

// Root returns the tree's root entry.
func (idx *Index) Root() *Entry {
	idx.treeMu.RLock()
	defer idx.treeMu.RUnlock()
	return idx.root
}

// LookupPath splits path on "/", skips empty segments, and walks
// children case-sensitively. The empty path resolves to the root (spec
// §4.1 "Path lookup").
func (idx *Index) LookupPath(path string) *Entry {
	idx.treeMu.RLock()
	defer idx.treeMu.RUnlock()
	cur := idx.root
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		if cur == nil || !cur.IsDir() {
			return nil
		}
		cur = cur.Child(seg)
	}
	return cur
}

// CountFiles returns the number of file entries reachable from root,
// i.e. the total fileCount aggregate (spec §4.1).
func (idx *Index) CountFiles() int {
	idx.hashMu.RLock()
	defer idx.hashMu.RUnlock()
	n := 0
	for _, set := range idx.hashIndex {
		n += len(set)
	}
	return n
}

// CountUniqueFiles returns the number of distinct hash equivalence
// classes (spec §4.1).
func (idx *Index) CountUniqueFiles() int {
	idx.hashMu.RLock()
	defer idx.hashMu.RUnlock()
	return len(idx.hashIndex)
}

// TotalSize reads the root's aggregate size - cheap, spec §4.1.
func (idx *Index) TotalSize() int64 {
	idx.treeMu.RLock()
	defer idx.treeMu.RUnlock()
	return idx.root.size
}

// UniqueSize sums one representative per hash class - linear in unique
// files, spec §4.1.
func (idx *Index) UniqueSize() int64 {
	idx.hashMu.RLock()
	defer idx.hashMu.RUnlock()
	var total int64
	for _, set := range idx.hashIndex {
		for e := range set {
			total += e.size
			break
		}
	}
	return total
}

// IncrementSent bumps the estimatedTransfer counter by n bytes. Called on
// every download hand-off (spec §4.1).
func (idx *Index) IncrementSent(n int64) {
	atomic.AddInt64(&idx.estimatedTransfer, n)
}

// EstimatedTransfer returns the running total bumped by IncrementSent.
func (idx *Index) EstimatedTransfer() int64 {
	return atomic.LoadInt64(&idx.estimatedTransfer)
}

// SearchHash returns every file entry in the hash index equal to h (the
// "alternatives" for a file, spec §3.2, §6 /alternatives).
func (idx *Index) SearchHash(h wire.Hash) []*Entry {
	idx.hashMu.RLock()
	defer idx.hashMu.RUnlock()
	set := idx.hashIndex[h]
	out := make([]*Entry, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	return out
}

// indexEntry adds e to the hash index (if a file) and to the keyword
// index under every keyword of its name. Callers must already hold
// treeMu for the structural mutation this is part of; indexEntry itself
// takes hashMu and then keywordMu, one at a time, preserving the
// documented lock order.
func (idx *Index) indexEntry(e *Entry) {
	if e.kind == KindFile && !e.hash.IsZero() {
		idx.hashMu.Lock()
		set := idx.hashIndex[e.hash]
		if set == nil {
			set = make(map[*Entry]struct{})
			idx.hashIndex[e.hash] = set
		}
		set[e] = struct{}{}
		idx.hashMu.Unlock()
	}

	idx.keywordMu.Lock()
	for _, kw := range keywordsOf(e.name) {
		set := idx.keywordIndex[kw]
		if set == nil {
			set = make(map[*Entry]struct{})
			idx.keywordIndex[kw] = set
		}
		set[e] = struct{}{}
	}
	idx.keywordMu.Unlock()
}

// unindexEntry removes e from both secondary indices. Same locking
// contract as indexEntry.
func (idx *Index) unindexEntry(e *Entry) {
	if e.kind == KindFile && !e.hash.IsZero() {
		idx.hashMu.Lock()
		if set := idx.hashIndex[e.hash]; set != nil {
			delete(set, e)
			if len(set) == 0 {
				delete(idx.hashIndex, e.hash)
			}
		}
		idx.hashMu.Unlock()
	}

	idx.keywordMu.Lock()
	for _, kw := range keywordsOf(e.name) {
		if set := idx.keywordIndex[kw]; set != nil {
			delete(set, e)
			if len(set) == 0 {
				delete(idx.keywordIndex, kw)
			}
		}
	}
	idx.keywordMu.Unlock()
}

// unindexSubtree removes e and, recursively, all of its descendants from
// the secondary indices. Used by erase.
func (idx *Index) unindexSubtree(e *Entry) {
	if e.IsDir() {
		for _, c := range e.children {
			idx.unindexSubtree(c)
		}
	}
	idx.unindexEntry(e)
}

// adjustAncestors walks from from itself up to the root, adding sizeDelta
// to size at each level; it does not touch linkCount. Must be called with
// treeMu held for writing.
func adjustAncestors(from *Entry, sizeDelta int64) {
	for p := from; p != nil; p = p.parent {
		p.size += sizeDelta
	}
}

func recomputeLinkCount(dir *Entry) {
	subdirs := 0
	for _, c := range dir.children {
		if c.IsDir() {
			subdirs++
		}
	}
	dir.linkCount = 2 + subdirs
}

// insertChild adds child under parent, indexing it and rolling up
// size/linkCount. Must be called with treeMu held for writing.
func (idx *Index) insertChild(parent, child *Entry) {
	child.parent = parent
	parent.children[child.name] = child
	recomputeLinkCount(parent)
	adjustAncestors(parent, child.size)
	idx.indexSubtree(child)
}

// indexSubtree adds e and, recursively, all of its descendants to the
// secondary indices. Mirrors unindexSubtree. Used when grafting a
// subtree (of arbitrary depth) into the tree in one call.
func (idx *Index) indexSubtree(e *Entry) {
	idx.indexEntry(e)
	if e.IsDir() {
		for _, c := range e.children {
			idx.indexSubtree(c)
		}
	}
}

// erase recursively removes the subtree rooted at e from both the tree
// and the secondary indices, atomically with respect to concurrent
// readers (spec §3.1 "Lifecycle").
func (idx *Index) erase(e *Entry) {
	idx.treeMu.Lock()
	defer idx.treeMu.Unlock()
	idx.eraseLocked(e)
}

func (idx *Index) eraseLocked(e *Entry) {
	if e.parent == nil {
		return // never erase the root itself
	}
	parent := e.parent
	delete(parent.children, e.name)
	recomputeLinkCount(parent)
	adjustAncestors(parent, -e.size)
	idx.unindexSubtree(e)
}

// rename detaches e from its parent's map under the old name and
// reinserts it under newName, updating keyword postings but leaving the
// hash index untouched (spec §4.1 "Rename").
func (idx *Index) rename(e *Entry, newName string) {
	idx.treeMu.Lock()
	defer idx.treeMu.Unlock()
	if e.parent == nil || e.name == newName {
		return
	}
	idx.keywordMu.Lock()
	for _, kw := range keywordsOf(e.name) {
		if set := idx.keywordIndex[kw]; set != nil {
			delete(set, e)
			if len(set) == 0 {
				delete(idx.keywordIndex, kw)
			}
		}
	}
	idx.keywordMu.Unlock()

	delete(e.parent.children, e.name)
	e.name = newName
	e.parent.children[newName] = e

	idx.keywordMu.Lock()
	for _, kw := range keywordsOf(e.name) {
		set := idx.keywordIndex[kw]
		if set == nil {
			set = make(map[*Entry]struct{})
			idx.keywordIndex[kw] = set
		}
		set[e] = struct{}{}
	}
	idx.keywordMu.Unlock()
}

// RegisterClient materialises a new per-client root entry directly under
// the index root, named after alias, and returns it. Deregistration later
// erases this same entry (spec §4.1, §4.2).
func (idx *Index) RegisterClient(alias string) *Entry {
	idx.treeMu.Lock()
	defer idx.treeMu.Unlock()
	e := newDirEntry(alias, idx.root)
	idx.root.children[alias] = e
	recomputeLinkCount(idx.root)
	idx.indexEntry(e)
	return e
}

// DeregisterClient erases a peer's root entry and everything beneath it.
func (idx *Index) DeregisterClient(root *Entry) {
	idx.erase(root)
}

// RenameClient renames a peer's root entry in place, e.g. on alias
// change (spec §4.2 "Alias uniqueness").
func (idx *Index) RenameClient(root *Entry, newAlias string) {
	idx.rename(root, newAlias)
}
