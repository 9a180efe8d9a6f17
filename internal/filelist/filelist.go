// Package filelist implements the wire/disk file-list format of spec
// §3.4: a tree of items, each a file or a directory, serialised either
// as legacy XML or as a compact binary "FILELIST" format. Both
// renderings round-trip byte-exactly, and the binary rendering is
// zstd-framed before it touches disk, the way the teacher's own direct
// dependency on klauspost/compress is exercised elsewhere in its stack.
package filelist

import (
	"strings"
	"time"

	"github.com/bs2609/fs2/internal/wire"
)

// Item is one node of a file list (spec §3.4). Hash and HashVersion are
// present iff the item is a file (Children == nil). FileCount at the
// root is the total number of files in the list; at an interior
// directory it is the aggregate file count of that subtree.
type Item struct {
	Name         string
	Size         int64
	LastModified time.Time
	HashVersion  wire.HashVersion
	Hash         wire.Hash
	Children     []Item // nil for a file
	FileCount    int
}

// IsDir reports whether the item is a directory.
func (it Item) IsDir() bool { return it.Children != nil }

// Rebuild recomputes Size and FileCount bottom-up for directory items,
// leaving file items untouched. Call after constructing or mutating a
// tree by hand (e.g. in the share engine's incremental refresh) before
// encoding it.
func Rebuild(it *Item) {
	if !it.IsDir() {
		return
	}
	var size int64
	var count int
	for i := range it.Children {
		Rebuild(&it.Children[i])
		size += it.Children[i].Size
		if it.Children[i].IsDir() {
			count += it.Children[i].FileCount
		} else {
			count++
		}
	}
	it.Size = size
	it.FileCount = count
}

// Find walks path (slash-separated, skipping empty segments) down from
// root, matching child names case-sensitively, mirroring the lookup
// rule the indexnode itself applies (fsindex.Index.LookupPath). The
// empty path resolves to root. It reports false if any segment is
// missing or a non-terminal segment names a file.
func Find(root Item, path string) (Item, bool) {
	cur := root
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		if !cur.IsDir() {
			return Item{}, false
		}
		found := false
		for _, c := range cur.Children {
			if c.Name == seg {
				cur = c
				found = true
				break
			}
		}
		if !found {
			return Item{}, false
		}
	}
	return cur, true
}
