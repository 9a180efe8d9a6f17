// Package indexnode wires the filesystem index, peer registry, share
// importer and HTTP surface into a single runnable server (spec §4,
// §6).
package indexnode

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bs2609/fs2/internal/filelist"
	"github.com/bs2609/fs2/internal/peerregistry"
	"github.com/bs2609/fs2/internal/shareimport"
)

// xmlManifest mirrors the client's /ping response shape (see
// internal/httpshare.pingManifest) from the indexnode's side of the
// wire.
type xmlManifest struct {
	XMLName xml.Name          `xml:"shares"`
	Shares  []xmlManifestItem `xml:"share"`
}

type xmlManifestItem struct {
	Name     string `xml:"name,attr"`
	Revision uint64 `xml:"revision,attr"`
	Type     string `xml:"type,attr"`
}

// HTTPFetcher implements shareimport.Fetcher over real HTTP requests to
// a peer's own file server (spec §4.3 "fetches the peer's share
// manifest").
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher builds a Fetcher using http.DefaultClient.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: http.DefaultClient}
}

func (f *HTTPFetcher) baseURL(p *peerregistry.Peer) string {
	return strings.TrimSuffix(p.PingURL, "/ping")
}

// FetchManifest requests peer's /ping endpoint and returns its share
// manifest.
func (f *HTTPFetcher) FetchManifest(ctx context.Context, p *peerregistry.Peer) ([]peerregistry.ManifestEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.PingURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shareimport.ErrUnreachable, p.PingURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", shareimport.ErrUnreachable, p.PingURL, resp.StatusCode)
	}

	var m xmlManifest
	if err := xml.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, err
	}

	out := make([]peerregistry.ManifestEntry, 0, len(m.Shares))
	for _, s := range m.Shares {
		typ := peerregistry.ShareTypeFilelist
		if s.Type == "XML" {
			typ = peerregistry.ShareTypeXML
		}
		out = append(out, peerregistry.ManifestEntry{Name: s.Name, Revision: s.Revision, Type: typ})
	}
	return out, nil
}

// FetchFileList requests share's full file list from its owning peer,
// decoding XML or binary FILELIST per share.Type (spec §4.3, §6
// "/filelists/{name}[.xml|.FileList]").
func (f *HTTPFetcher) FetchFileList(ctx context.Context, p *peerregistry.Peer, share *peerregistry.Share) (filelist.Item, error) {
	ext := ".FileList"
	if share.Type == peerregistry.ShareTypeXML {
		ext = ".xml"
	}
	url := f.baseURL(p) + "/filelists/" + share.Name + ext

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return filelist.Item{}, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return filelist.Item{}, fmt.Errorf("%w: %s: %v", shareimport.ErrUnreachable, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return filelist.Item{}, fmt.Errorf("%w: %s", shareimport.ErrShareNotFound, url)
	}
	if resp.StatusCode != http.StatusOK {
		return filelist.Item{}, fmt.Errorf("%w: %s: status %d", shareimport.ErrUnreachable, url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return filelist.Item{}, err
	}
	if ext == ".xml" {
		return filelist.DecodeXML(data)
	}
	return filelist.DecodeBinary(data)
}
