package download

import "math/rand"

// Source is one peer's candidate URL for a file (spec §4.5 "multi-source
// candidate map alias->source").
type Source struct {
	Alias string
	URL   string
}

// PeerStats answers the ranking questions the scheduler needs about a
// candidate peer, without the scheduler knowing how they're tracked
// (spec §4.5 "the controller asks PeerStats for the best source").
type PeerStats interface {
	// RemotelyQueued reports whether alias currently has us queued for
	// one of its own downloads (rule 1: worst).
	RemotelyQueued(alias string) bool
	// Favourite reports whether alias is a user-designated favourite
	// (rule 2).
	Favourite(alias string) bool
	// ActiveDownloadsFrom reports how many downloads are currently
	// active from alias to us (rule 3: fewest wins).
	ActiveDownloadsFrom(alias string) int
	// BeginDownload records that a chunk fetch from alias has started.
	BeginDownload(alias string)
	// EndDownload records that a chunk fetch from alias has finished.
	EndDownload(alias string)
}

type scored struct {
	src         Source
	queued      bool
	favourite   bool
	activeCount int
}

// ChooseSource implements the peer ranking of spec §4.5:
//
//  1. peers that have us remotely queued are worst
//  2. otherwise favourites beat non-favourites
//  3. otherwise fewest current active downloads from us wins
//  4. ties broken uniformly at random
//
// It returns false if sources is empty.
func ChooseSource(sources map[string]Source, stats PeerStats) (Source, bool) {
	if len(sources) == 0 {
		return Source{}, false
	}

	ranked := make([]scored, 0, len(sources))
	for alias, src := range sources {
		ranked = append(ranked, scored{
			src:         src,
			queued:      stats.RemotelyQueued(alias),
			favourite:   stats.Favourite(alias),
			activeCount: stats.ActiveDownloadsFrom(alias),
		})
	}

	best := []scored{ranked[0]}
	for _, cand := range ranked[1:] {
		switch compareRank(cand, best[0]) {
		case -1:
			best = []scored{cand}
		case 0:
			best = append(best, cand)
		}
	}

	return best[rand.Intn(len(best))].src, true
}

// compareRank returns -1 if a ranks strictly better than b, 1 if worse,
// 0 if tied (spec §4.5 rules 1-3).
func compareRank(a, b scored) int {
	if a.queued != b.queued {
		if a.queued {
			return 1 // a is worst
		}
		return -1
	}
	if a.favourite != b.favourite {
		if a.favourite {
			return -1
		}
		return 1
	}
	if a.activeCount != b.activeCount {
		if a.activeCount < b.activeCount {
			return -1
		}
		return 1
	}
	return 0
}
