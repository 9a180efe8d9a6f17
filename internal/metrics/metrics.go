// Package metrics exposes prometheus counters for operators, alongside
// the human-facing /stats endpoint, the way the teacher exposes
// its own transfer/stat counters over its rc surface.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Indexnode holds the counters maintained by an indexnode instance.
type Indexnode struct {
	EstimatedTransfer prometheus.Counter
	FilesServed       prometheus.Counter
	PeersRegistered   prometheus.Gauge
	PeersEvicted      prometheus.Counter
	SharesRefreshed   prometheus.Counter
	SharesFailed      prometheus.Counter
	PingFailures      prometheus.Counter
}

// NewIndexnode registers a fresh Indexnode metric set against reg. Tests
// pass a private prometheus.NewRegistry() to avoid collisions between
// parallel test instances.
func NewIndexnode(reg prometheus.Registerer) *Indexnode {
	m := &Indexnode{
		EstimatedTransfer: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fs2", Subsystem: "indexnode", Name: "estimated_transfer_bytes_total",
			Help: "Sum of file sizes handed off via /download redirects.",
		}),
		FilesServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fs2", Subsystem: "indexnode", Name: "files_served_total",
			Help: "Count of /download redirects served.",
		}),
		PeersRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fs2", Subsystem: "indexnode", Name: "peers_registered",
			Help: "Peers currently ALIVE in the registry.",
		}),
		PeersEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fs2", Subsystem: "indexnode", Name: "peers_evicted_total",
			Help: "Peers evicted for exceeding the failed liveness threshold.",
		}),
		SharesRefreshed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fs2", Subsystem: "indexnode", Name: "shares_refreshed_total",
			Help: "Successful share refresh completions.",
		}),
		SharesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fs2", Subsystem: "indexnode", Name: "shares_refresh_failed_total",
			Help: "Share refresh attempts that failed or rolled back.",
		}),
		PingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fs2", Subsystem: "indexnode", Name: "ping_failures_total",
			Help: "Liveness ping failures across all peers.",
		}),
	}
	reg.MustRegister(m.EstimatedTransfer, m.FilesServed, m.PeersRegistered,
		m.PeersEvicted, m.SharesRefreshed, m.SharesFailed, m.PingFailures)
	return m
}

// Client holds the counters maintained by a client instance.
type Client struct {
	BytesHashed      prometheus.Counter
	BytesServed      prometheus.Counter
	BytesDownloaded  prometheus.Counter
	DownloadsActive  prometheus.Gauge
	DownloadsNoSrc   prometheus.Counter
	RefreshesRunning prometheus.Gauge
}

// NewClient registers a fresh Client metric set against reg.
func NewClient(reg prometheus.Registerer) *Client {
	m := &Client{
		BytesHashed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fs2", Subsystem: "client", Name: "bytes_hashed_total",
			Help: "Bytes read by the share engine hashing pass.",
		}),
		BytesServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fs2", Subsystem: "client", Name: "bytes_served_total",
			Help: "Bytes written by the file HTTP server.",
		}),
		BytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fs2", Subsystem: "client", Name: "bytes_downloaded_total",
			Help: "Bytes received by the download scheduler.",
		}),
		DownloadsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fs2", Subsystem: "client", Name: "downloads_active",
			Help: "Download-file entries currently being fetched.",
		}),
		DownloadsNoSrc: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fs2", Subsystem: "client", Name: "downloads_no_source_total",
			Help: "Download files marked no-sources.",
		}),
		RefreshesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fs2", Subsystem: "client", Name: "share_refreshes_running",
			Help: "Share refreshes currently executing.",
		}),
	}
	reg.MustRegister(m.BytesHashed, m.BytesServed, m.BytesDownloaded,
		m.DownloadsActive, m.DownloadsNoSrc, m.RefreshesRunning)
	return m
}
