package fsindex

import "github.com/bs2609/fs2/internal/wire"

// ImportNode is the minimal shape the share importer (internal/shareimport)
// and the file-list codec (internal/filelist) hand to fsindex when
// grafting a share's tree into the index. It deliberately knows nothing
// about the wire format the tree was decoded from.
type ImportNode struct {
	Name     string
	IsDir    bool
	Size     int64 // ignored for directories; recomputed from children
	Hash     wire.Hash
	Children []ImportNode
}

// ImportShare builds the subtree described by root in isolation, then
// atomically grafts it under peerRoot as a child named shareName,
// replacing any prior subtree for that share (spec §4.1, §4.3).
//
// Building the subtree before taking any lock means a malformed tree
// (caught by buildSubtree returning a partial/invalid result) never
// touches the index - spec §4.1 "Failure model": "Any import failure
// discards the partially imported subtree".
func (idx *Index) ImportShare(peerRoot *Entry, shareName string, share *ShareRef, tree ImportNode) {
	built := buildSubtree(tree, nil, share)
	if built == nil {
		return
	}

	idx.treeMu.Lock()
	defer idx.treeMu.Unlock()

	if existing := peerRoot.Child(shareName); existing != nil {
		idx.eraseLocked(existing)
	}
	built.name = shareName
	idx.insertChild(peerRoot, built)
}

// DelistShare removes a share's subtree from the index entirely (spec
// §4.3 "Entries present only on indexnode side → delist").
func (idx *Index) DelistShare(peerRoot *Entry, shareName string) {
	idx.treeMu.Lock()
	defer idx.treeMu.Unlock()
	if existing := peerRoot.Child(shareName); existing != nil {
		idx.eraseLocked(existing)
	}
}

// buildSubtree recursively constructs a detached Entry tree from an
// ImportNode tree, skipping corrupt nodes rather than aborting (spec
// §4.1 "Failure model": "Corrupt entries ... are silently skipped at
// import"). A node is corrupt if it claims to be a file but carries the
// zero hash (the sentinel reserved for directories).
func buildSubtree(n ImportNode, parent *Entry, share *ShareRef) *Entry {
	if n.IsDir {
		dir := newDirEntry(n.Name, parent)
		dir.share = share
		var total int64
		for _, c := range n.Children {
			child := buildSubtree(c, dir, share)
			if child == nil {
				continue
			}
			dir.children[child.name] = child
			total += child.size
		}
		recomputeLinkCount(dir)
		dir.size = total
		return dir
	}
	if n.Hash.IsZero() {
		return nil // corrupt: a file must carry a non-empty hash
	}
	return newFileEntry(n.Name, parent, n.Size, n.Hash, share)
}
