// Package httpapi implements the indexnode's HTTP surface: /hello,
// /browse, /search, /download, /alternatives, /stats, /filelists and
// /robots.txt (spec §6), routed with go-chi the way the teacher routes
// its own rc and serve HTTP surfaces.
package httpapi

import (
	"encoding/xml"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bs2609/fs2/internal/fsindex"
	"github.com/bs2609/fs2/internal/wire"
)

// xmlDirEntry is one line of a /browse directory listing.
type xmlDirEntry struct {
	Name  string `xml:"name,attr"`
	IsDir bool   `xml:"isDir,attr"`
	Size  int64  `xml:"size,attr"`
}

type xmlDirListing struct {
	XMLName xml.Name      `xml:"directory"`
	Path    string        `xml:"path,attr"`
	Entries []xmlDirEntry `xml:"entry"`
}

// handleBrowse implements GET /browse/{path} (spec §6, S1/S2): a
// directory lists its children; a file redirects to /download/{hex}.
func (a *API) handleBrowse(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	e := a.index.LookupPath(path)
	if e == nil {
		http.NotFound(w, r)
		return
	}

	if !e.IsDir() {
		http.Redirect(w, r, "/download/"+e.Hash().String(), http.StatusTemporaryRedirect)
		return
	}

	listing := xmlDirListing{Path: path}
	for _, c := range e.Children() {
		listing.Entries = append(listing.Entries, xmlDirEntry{Name: c.Name(), IsDir: c.IsDir(), Size: c.Size()})
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_ = xml.NewEncoder(w).Encode(listing)
}

// handleDownload implements GET /download/{hex-hash} (spec §6): redirect
// to one peer URL serving the file, chosen arbitrarily among
// alternatives (the download scheduler's peer ranking lives client
// side; the indexnode just needs any live holder).
func (a *API) handleDownload(w http.ResponseWriter, r *http.Request) {
	h, err := wire.ParseHash(chi.URLParam(r, "hash"))
	if err != nil {
		http.Error(w, "bad hash", http.StatusBadRequest)
		return
	}
	entries := a.index.SearchHash(h)
	if len(entries) == 0 {
		http.NotFound(w, r)
		return
	}
	e := entries[0]
	url := a.fileURL(e)
	if url == "" {
		http.NotFound(w, r)
		return
	}
	a.metrics.FilesServed.Inc()
	a.metrics.EstimatedTransfer.Add(float64(e.Size()))
	a.index.IncrementSent(e.Size())
	http.Redirect(w, r, url, http.StatusFound)
}

// xmlAlternatives is the /alternatives/{hash} response body (spec §6,
// S4).
type xmlAlternatives struct {
	XMLName xml.Name      `xml:"alternatives"`
	Hash    string        `xml:"hash,attr"`
	Peers   []xmlAltEntry `xml:"peer"`
}

type xmlAltEntry struct {
	Name string `xml:"name,attr"`
	URL  string `xml:"url,attr"`
}

// handleAlternatives implements GET /alternatives/{hex-hash} (spec §6,
// §8 S4): every peer currently holding a file with this hash.
func (a *API) handleAlternatives(w http.ResponseWriter, r *http.Request) {
	h, err := wire.ParseHash(chi.URLParam(r, "hash"))
	if err != nil {
		http.Error(w, "bad hash", http.StatusBadRequest)
		return
	}
	entries := a.index.SearchHash(h)
	alt := xmlAlternatives{Hash: h.String()}
	for _, e := range entries {
		alt.Peers = append(alt.Peers, xmlAltEntry{Name: e.Path(), URL: a.fileURL(e)})
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_ = xml.NewEncoder(w).Encode(alt)
}

// fileURL resolves an indexed file entry back to the serving peer's
// download URL, built from the peer's registered PingURL (which carries
// its scheme/host/port) plus the share-relative path.
func (a *API) fileURL(e *fsindex.Entry) string {
	share := e.Share()
	if share == nil {
		return ""
	}
	p := a.registry.Get(a.identityFromAddr(share.PeerAddr))
	if p == nil {
		return ""
	}
	base := strings.TrimSuffix(peerBaseURL(p), "/")
	prefix := p.Alias + "/" + share.Name + "/"
	rel := strings.TrimPrefix(e.Path(), prefix)
	return base + "/share/" + share.Name + "/" + rel
}
