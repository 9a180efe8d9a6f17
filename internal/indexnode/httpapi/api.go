package httpapi

import (
	"encoding/xml"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/bs2609/fs2/internal/fsindex"
	"github.com/bs2609/fs2/internal/metrics"
	"github.com/bs2609/fs2/internal/peerregistry"
	"github.com/bs2609/fs2/internal/shareimport"
	"github.com/bs2609/fs2/internal/wire"
)

// Pinger verifies a peer is reachable before it is registered (spec
// §4.2 "Registration ... verifies reachability by an immediate ping").
type Pinger interface {
	Ping(pingURL string) error
}

// API wires the filesystem index, peer registry, share importer and
// metrics into the indexnode's HTTP surface (spec §6).
type API struct {
	router   chi.Router
	index    *fsindex.Index
	registry *peerregistry.Registry
	importer *shareimport.Importer
	metrics  *metrics.Indexnode
	pinger   Pinger
	stats    *StatsCache
	log      *logrus.Entry
}

// New builds an API and mounts every route of spec §6.
func New(index *fsindex.Index, registry *peerregistry.Registry, importer *shareimport.Importer, m *metrics.Indexnode, pinger Pinger, log *logrus.Entry) *API {
	a := &API{
		router:   chi.NewRouter(),
		index:    index,
		registry: registry,
		importer: importer,
		metrics:  m,
		pinger:   pinger,
		log:      log,
	}
	a.stats = NewStatsCache(index, registry)

	a.router.Use(middleware.Recoverer)
	a.router.Get("/hello", a.handleHello)
	a.router.Get("/browse/*", a.handleBrowse)
	a.router.Get("/search", a.handleSearch)
	a.router.Get("/download/{hash}", a.handleDownload)
	a.router.Get("/alternatives/{hash}", a.handleAlternatives)
	a.router.Get("/stats", a.handleStats)
	a.router.Get("/filelists/{name}", a.handleFileListRedirect)
	a.router.Get("/robots.txt", a.handleRobots)
	return a
}

// ServeHTTP makes API an http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) { a.router.ServeHTTP(w, r) }

// handleHello implements GET /hello (spec §4.2, §6, S1): validates the
// required headers, pings the peer back, and registers or refreshes it.
func (a *API) handleHello(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(wire.HeaderVersion) == "" {
		http.Error(w, "missing fs2-version", http.StatusBadRequest)
		return
	}
	portStr := r.Header.Get(wire.HeaderPort)
	port, err := strconv.Atoi(portStr)
	if err != nil || port < wire.PortMin || port > wire.PortMax {
		http.Error(w, "bad fs2-port", http.StatusBadRequest)
		return
	}
	token := r.Header.Get(wire.HeaderClientToken)
	if token == "" {
		http.Error(w, "missing fs2-cltoken", http.StatusBadRequest)
		return
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	identity := peerregistry.Identity{IP: host, Port: port}
	secure := r.TLS != nil
	scheme := "http"
	if secure {
		scheme = "https"
	}
	pingURL := scheme + "://" + net.JoinHostPort(host, portStr) + "/ping"

	if err := a.pinger.Ping(pingURL); err != nil {
		http.Error(w, "peer unreachable", http.StatusPreconditionFailed)
		return
	}

	alias := r.Header.Get(wire.HeaderAlias)
	if alias == "" {
		alias = identity.String()
	}

	p := a.registry.Hello(peerregistry.HelloRequest{
		Identity: identity,
		Alias:    alias,
		Token:    token,
		Secure:   secure,
		Loopback: host == "127.0.0.1" || host == "::1",
		PingURL:  pingURL,
	})

	if avatar := r.Header.Get(wire.HeaderAvatarHash); avatar != "" {
		w.Header().Set(wire.HeaderAvatarHash, avatar)
	}

	if a.importer != nil {
		go func() { _ = a.importer.OnHello(r.Context(), p) }()
	}

	w.WriteHeader(http.StatusOK)
}

// xmlSearchResult is the /search response body (spec §6, S3).
type xmlSearchResult struct {
	XMLName xml.Name      `xml:"results"`
	Results []xmlDirEntry `xml:"result"`
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	entries := a.index.SearchName(q)
	var out xmlSearchResult
	for _, e := range entries {
		out.Results = append(out.Results, xmlDirEntry{Name: e.Path(), IsDir: e.IsDir(), Size: e.Size()})
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_ = xml.NewEncoder(w).Encode(out)
}

func (a *API) handleFileListRedirect(w http.ResponseWriter, r *http.Request) {
	// The indexnode itself never stores file lists; it only aggregates
	// already-imported trees. A /filelists/{name} request is forwarded
	// to whichever peer owns that share.
	name := chi.URLParam(r, "name")
	for _, p := range a.registry.Snapshot() {
		if s := p.Share(strings.TrimSuffix(name, pathExt(name))); s != nil {
			http.Redirect(w, r, strings.TrimSuffix(peerBaseURL(p), "/")+"/filelists/"+name, http.StatusFound)
			return
		}
	}
	http.NotFound(w, r)
}

func (a *API) handleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n"))
}

func pathExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}

// peerBaseURL derives a peer's HTTP base URL from its registered ping
// URL (which already carries scheme/host/port), stripping the /ping
// suffix.
func peerBaseURL(p *peerregistry.Peer) string {
	return strings.TrimSuffix(p.PingURL, "/ping")
}

// identityFromAddr parses the "ip:port" form ShareRef.PeerAddr is
// populated with (internal/shareimport sets it from Identity.String())
// back into an Identity for a registry lookup.
func (a *API) identityFromAddr(addr string) peerregistry.Identity {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return peerregistry.Identity{}
	}
	port, _ := strconv.Atoi(portStr)
	return peerregistry.Identity{IP: host, Port: port}
}
