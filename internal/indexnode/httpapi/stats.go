package httpapi

import (
	"encoding/xml"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bs2609/fs2/internal/fsindex"
	"github.com/bs2609/fs2/internal/peerregistry"
)

// StatsCache regenerates the /stats page at most once per refreshEvery,
// coalescing concurrent requests that arrive while a generation is
// already running onto that single in-flight computation (spec §5
// "Timers: ... statistics regeneration (at most once per configured
// interval; a second request coalesces onto the already-running
// generator)").
type StatsCache struct {
	index    *fsindex.Index
	registry *peerregistry.Registry
	group    singleflight.Group

	refreshEvery time.Duration
	mu           sync.Mutex
	generatedAt  time.Time
	cached       xmlStats
}

// NewStatsCache creates a cache regenerating at most once every 30
// seconds, the spec's unnamed-but-implied "configured interval".
func NewStatsCache(index *fsindex.Index, registry *peerregistry.Registry) *StatsCache {
	return &StatsCache{index: index, registry: registry, refreshEvery: 30 * time.Second}
}

type xmlStats struct {
	XMLName           xml.Name `xml:"stats"`
	Peers             int      `xml:"peers,attr"`
	Files             int      `xml:"files,attr"`
	UniqueFiles       int      `xml:"uniqueFiles,attr"`
	TotalSize         int64    `xml:"totalSize,attr"`
	UniqueSize        int64    `xml:"uniqueSize,attr"`
	EstimatedTransfer int64    `xml:"estimatedTransfer,attr"`
}

// Get returns the cached stats snapshot, regenerating it if stale.
func (c *StatsCache) Get() xmlStats {
	c.mu.Lock()
	fresh := time.Since(c.generatedAt) < c.refreshEvery
	cached := c.cached
	c.mu.Unlock()
	if fresh {
		return cached
	}

	v, _, _ := c.group.Do("stats", func() (interface{}, error) {
		s := xmlStats{
			Peers:             c.registry.Count(),
			Files:             c.index.CountFiles(),
			UniqueFiles:       c.index.CountUniqueFiles(),
			TotalSize:         c.index.TotalSize(),
			UniqueSize:        c.index.UniqueSize(),
			EstimatedTransfer: c.index.EstimatedTransfer(),
		}
		c.mu.Lock()
		c.cached = s
		c.generatedAt = time.Now()
		c.mu.Unlock()
		return s, nil
	})
	return v.(xmlStats)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	s := a.stats.Get()
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_ = xml.NewEncoder(w).Encode(s)
}
