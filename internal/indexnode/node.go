package indexnode

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/bs2609/fs2/internal/fsindex"
	"github.com/bs2609/fs2/internal/indexnode/httpapi"
	"github.com/bs2609/fs2/internal/metrics"
	"github.com/bs2609/fs2/internal/peerregistry"
	"github.com/bs2609/fs2/internal/shareimport"
)

// Config bundles the settings a Node is built from (spec §6 "Config").
type Config struct {
	RefreshPoolSize int
	AdvertisePort   int // 0 disables UDP self-advertisement
}

// Node wires together every indexnode-side component into one runnable
// server: the filesystem index, the peer registry, the share importer
// and the HTTP surface (spec §4, §6).
type Node struct {
	Index    *fsindex.Index
	Registry *peerregistry.Registry
	Importer *shareimport.Importer
	API      *httpapi.API
	Metrics  *metrics.Indexnode

	advertiser *Advertiser
	log        *logrus.Entry
}

// New builds a fully wired Node. reg is the prometheus registerer
// metrics are published to - tests pass a private registry to avoid
// cross-test collisions.
func New(cfg Config, reg prometheus.Registerer, log *logrus.Entry) *Node {
	index := fsindex.New()
	registry := peerregistry.New(index)
	m := metrics.NewIndexnode(reg)
	importer := shareimport.New(registry, index, NewHTTPFetcher(), m, log, cfg.RefreshPoolSize)
	api := httpapi.New(index, registry, importer, m, NewHTTPPinger(), log)

	n := &Node{
		Index:    index,
		Registry: registry,
		Importer: importer,
		API:      api,
		Metrics:  m,
		log:      log,
	}
	if cfg.AdvertisePort != 0 {
		n.advertiser = NewAdvertiser(cfg.AdvertisePort)
	}
	return n
}

// ServeHTTP makes Node an http.Handler, delegating to its API.
func (n *Node) ServeHTTP(w http.ResponseWriter, r *http.Request) { n.API.ServeHTTP(w, r) }

// Run drives the node's background loops (liveness pinging and, if
// configured, UDP self-advertisement) until ctx is cancelled.
func (n *Node) Run(ctx context.Context) {
	if n.advertiser != nil {
		go n.advertiser.Run(ctx)
	}
	n.runLiveness(ctx)
}

// runLiveness implements spec §4.2's shared liveness timer: every
// PingInterval, every registered peer not already mid-ping is pinged
// concurrently; a peer whose failed-liveness counter exceeds
// MaxFailedLivenesses is evicted.
func (n *Node) runLiveness(ctx context.Context) {
	pinger := NewHTTPPinger()
	ticker := time.NewTicker(peerregistry.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, p := range n.Registry.Snapshot() {
				p := p
				if !p.TryBeginPing() {
					continue
				}
				go n.pingOne(pinger, p)
			}
		}
	}
}

func (n *Node) pingOne(pinger *HTTPPinger, p *peerregistry.Peer) {
	if err := pinger.Ping(p.PingURL); err != nil {
		failed := p.EndPingFail()
		n.Metrics.PingFailures.Inc()
		if failed > peerregistry.MaxFailedLivenesses {
			n.log.WithField("peer", p.Alias).Warn("peer exceeded failed liveness threshold, evicting")
			n.Registry.Evict(p.Identity)
			n.Metrics.PeersEvicted.Inc()
		}
		return
	}
	p.EndPingOK()
}
