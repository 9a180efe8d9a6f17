package fsindex

import (
	"sort"

	"github.com/bs2609/fs2/internal/wire"
)

type wireHash = wire.Hash

// MaxSearchResults caps the number of entries SearchName streams out
// (spec §4.1 "Search ordering").
const MaxSearchResults = 500

// SearchName returns the intersection of the keyword posting lists for
// query's keywords, in no defined order, deduplicating files by
// hash after intersection while always keeping directory hits (spec
// §4.1, §8 invariant 5). An empty keyword set - or any keyword absent
// from the index - yields an empty result (spec §9 "Open questions").
func (idx *Index) SearchName(query string) []*Entry {
	keywords := keywordsOfQuery(query)
	if len(keywords) == 0 {
		return nil
	}

	idx.keywordMu.RLock()
	var sets []map[*Entry]struct{}
	for _, kw := range keywords {
		set, ok := idx.keywordIndex[kw]
		if !ok || len(set) == 0 {
			idx.keywordMu.RUnlock()
			return nil
		}
		sets = append(sets, set)
	}
	// Intersect starting from the smallest set for efficiency; the result
	// order follows map iteration and is not defined.
	sort.Slice(sets, func(i, j int) bool { return len(sets[i]) < len(sets[j]) })
	inter := make(map[*Entry]struct{}, len(sets[0]))
	for e := range sets[0] {
		inter[e] = struct{}{}
	}
	for _, set := range sets[1:] {
		for e := range inter {
			if _, ok := set[e]; !ok {
				delete(inter, e)
			}
		}
	}
	idx.keywordMu.RUnlock()

	seenHash := make(map[wireHash]bool)
	out := make([]*Entry, 0, len(inter))
	for e := range inter {
		if !e.IsDir() {
			if seenHash[e.hash] {
				continue
			}
			seenHash[e.hash] = true
		}
		out = append(out, e)
		if len(out) >= MaxSearchResults {
			break
		}
	}
	return out
}

// PopularFiles sorts hash equivalence classes by descending cardinality,
// picks one representative per class, and returns the top limit (spec
// §4.1 "Search ordering").
func (idx *Index) PopularFiles(limit int) []*Entry {
	idx.hashMu.RLock()
	defer idx.hashMu.RUnlock()

	type class struct {
		rep   *Entry
		count int
	}
	classes := make([]class, 0, len(idx.hashIndex))
	for _, set := range idx.hashIndex {
		if len(set) == 0 {
			continue
		}
		var rep *Entry
		for e := range set {
			rep = e
			break
		}
		classes = append(classes, class{rep: rep, count: len(set)})
	}
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].count != classes[j].count {
			return classes[i].count > classes[j].count
		}
		return classes[i].rep.name < classes[j].rep.name
	})
	if limit > len(classes) {
		limit = len(classes)
	}
	out := make([]*Entry, 0, limit)
	for _, c := range classes[:limit] {
		out = append(out, c.rep)
	}
	return out
}
