// Package httpshare implements the client's HTTP file server: it serves
// share files with Range support, a peer manifest at /ping, and raw
// file lists at /filelists/{name}. Share file downloads pass through a
// shared bandwidth bucket and a per-peer slot queue; /ping and
// /filelists are not rate-limited (spec §2, §4.4, §6).
package httpshare

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/bs2609/fs2/internal/filelist"
	"github.com/bs2609/fs2/internal/metrics"
	"github.com/bs2609/fs2/internal/ratelimit"
	"github.com/bs2609/fs2/internal/shareengine"
	"github.com/bs2609/fs2/internal/wire"
)

// ShareSource looks up a share by name. It is satisfied by
// *shareengine.Manager; tests supply a fake.
type ShareSource interface {
	Share(name string) *shareengine.Share
	Shares() []*shareengine.Share
}

// Server is the client's file-serving HTTP endpoint set (spec §2
// "HTTP file server").
type Server struct {
	router    chi.Router
	shares    ShareSource
	bandwidth *ratelimit.Bucket
	slots     *SlotQueue
	metrics   *metrics.Client
	log       *logrus.Entry
}

// NewServer wires routes onto a fresh chi router. bandwidth throttles
// the bytes of every share file download combined; slots bounds
// concurrent downloads per peer.
func NewServer(shares ShareSource, bandwidth *ratelimit.Bucket, slots *SlotQueue, m *metrics.Client, log *logrus.Entry) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		shares:    shares,
		bandwidth: bandwidth,
		slots:     slots,
		metrics:   m,
		log:       log,
	}
	s.router.Use(middleware.Recoverer)
	s.router.Get("/ping", s.handlePing)
	s.router.Get("/filelists/{name}", s.handleFileList)
	s.router.Get("/share/{name}/*", s.handleDownload)
	s.router.Get("/robots.txt", s.handleRobots)
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// pingManifest is the XML snapshot a client returns from /ping: every
// share it currently exports, at its current revision (spec §4.2
// "returns an XML snapshot of its shares", §4.3 "manifest entry has
// (name, revision, type)").
type pingManifest struct {
	XMLName xml.Name       `xml:"shares"`
	Shares  []pingShareEntry `xml:"share"`
}

type pingShareEntry struct {
	Name     string `xml:"name,attr"`
	Revision uint64 `xml:"revision,attr"`
	Type     string `xml:"type,attr"`
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	var m pingManifest
	for _, sh := range s.shares.Shares() {
		m.Shares = append(m.Shares, pingShareEntry{Name: sh.Name, Revision: sh.Revision(), Type: "FILELIST"})
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = xml.NewEncoder(w).Encode(m)
}

func (s *Server) handleFileList(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]

	sh := s.shares.Share(base)
	if sh == nil {
		http.NotFound(w, r)
		return
	}

	switch ext {
	case ".xml":
		data, err := filelist.EncodeXML(sh.List())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		_, _ = w.Write(data)
	case ".FileList":
		data, err := filelist.EncodeBinary(sh.List())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "User-agent: *\nDisallow: /\n")
}

// handleDownload serves one file out of a share, honouring the three
// Range forms of spec §6 and degrading out-of-range requests to a full
// 200 body with a logged warning rather than a 416.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	shareName := chi.URLParam(r, "name")
	relPath := chi.URLParam(r, "*")

	sh := s.shares.Share(shareName)
	if sh == nil {
		http.NotFound(w, r)
		return
	}
	item, ok := filelist.Find(sh.List(), relPath)
	if !ok || item.IsDir() {
		http.NotFound(w, r)
		return
	}

	peer := peerKey(r)
	release, err := s.slots.Acquire(r.Context(), peer)
	if err != nil {
		http.Error(w, "request cancelled waiting for a download slot", http.StatusServiceUnavailable)
		return
	}
	defer release()

	fullPath := filepath.Join(sh.Root, relPath)
	f, err := os.Open(fullPath)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	rng, hasRange := byteRange{}, false
	if h := r.Header.Get("Range"); h != "" {
		rng, hasRange = parseRange(h, item.Size)
		if !hasRange && s.log != nil {
			s.log.WithField("path", relPath).Warn("out-of-range request, serving full body")
		}
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set(wire.HeaderAvatarHash, r.Header.Get(wire.HeaderAvatarHash))

	var body io.Reader = f
	if hasRange {
		if _, err := f.Seek(rng.start, io.SeekStart); err != nil {
			http.Error(w, "seek failed", http.StatusInternalServerError)
			return
		}
		body = io.LimitReader(f, rng.length())
		w.Header().Set("Content-Range", rng.contentRangeHeader(item.Size))
		w.Header().Set("Content-Length", strconv.FormatInt(rng.length(), 10))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(item.Size, 10))
		w.WriteHeader(http.StatusOK)
	}

	written, _ := copyThrottled(r.Context(), w, body, s.bandwidth)
	if s.metrics != nil {
		s.metrics.BytesServed.Add(float64(written))
	}
}

// peerKey identifies the requesting peer for slot accounting. The
// indexnode protocol has no authenticated peer identity on a bare file
// GET, so the remote address stands in for it.
func peerKey(r *http.Request) string {
	return r.RemoteAddr
}

func copyThrottled(ctx context.Context, w io.Writer, r io.Reader, bandwidth *ratelimit.Bucket) (int64, error) {
	const chunkSize = 64 * 1024
	buf := make([]byte, chunkSize)
	var total int64
	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}
		n, err := r.Read(buf)
		if n > 0 {
			if bandwidth != nil {
				if werr := bandwidth.WaitN(ctx, n); werr != nil {
					return total, werr
				}
			}
			wn, werr := w.Write(buf[:n])
			total += int64(wn)
			if werr != nil {
				return total, werr
			}
		}
		if err != nil {
			if err == io.EOF {
				return total, nil
			}
			return total, err
		}
	}
}
