package download

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"sync"

	"github.com/bs2609/fs2/internal/wire"
)

type xmlAlternatives struct {
	XMLName xml.Name      `xml:"alternatives"`
	Peers   []xmlAltEntry `xml:"peer"`
}

type xmlAltEntry struct {
	Name string `xml:"name,attr"`
	URL  string `xml:"url,attr"`
}

// IndexnodeSourceProvider resolves a file's candidate sources by asking
// a known indexnode for /alternatives/{hex-hash} (spec §6, §8 S4).
type IndexnodeSourceProvider struct {
	BaseURL string
	Client  *http.Client
}

// NewIndexnodeSourceProvider builds a provider against baseURL (an
// indexnode's root HTTP address, no trailing slash).
func NewIndexnodeSourceProvider(baseURL string) *IndexnodeSourceProvider {
	return &IndexnodeSourceProvider{BaseURL: baseURL, Client: http.DefaultClient}
}

// Sources fetches every peer currently holding hash, keyed by each
// alternative's name attribute, which is also the Source's Alias and so
// ChooseSource's peer identity. The indexnode fills that attribute with
// the entry's full path in its virtual tree; no alias is split out of it.
func (p *IndexnodeSourceProvider) Sources(ctx context.Context, hash wire.Hash) (map[string]Source, error) {
	url := fmt.Sprintf("%s/alternatives/%s", p.BaseURL, hash.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alternatives %s: status %d", url, resp.StatusCode)
	}

	var alt xmlAlternatives
	if err := xml.NewDecoder(resp.Body).Decode(&alt); err != nil {
		return nil, err
	}

	out := make(map[string]Source, len(alt.Peers))
	for _, entry := range alt.Peers {
		if entry.URL == "" {
			continue
		}
		out[entry.Name] = Source{Alias: entry.Name, URL: entry.URL}
	}
	return out, nil
}

// LiveStats is the in-memory PeerStats implementation the scheduler
// consults to rank sources (spec §4.5 ranking rules): which peers this
// client remotely-queued a file with, which are marked favourite, and
// how many downloads are presently active against each.
type LiveStats struct {
	mu             sync.Mutex
	remoteQueued   map[string]bool
	favourites     map[string]bool
	activeDownload map[string]int
}

// NewLiveStats creates an empty tracker.
func NewLiveStats() *LiveStats {
	return &LiveStats{
		remoteQueued:   make(map[string]bool),
		favourites:     make(map[string]bool),
		activeDownload: make(map[string]int),
	}
}

// SetFavourite marks or unmarks alias as a favourite peer.
func (s *LiveStats) SetFavourite(alias string, favourite bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if favourite {
		s.favourites[alias] = true
	} else {
		delete(s.favourites, alias)
	}
}

// SetRemotelyQueued records that this client is already queued
// remotely against alias for some file.
func (s *LiveStats) SetRemotelyQueued(alias string, queued bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if queued {
		s.remoteQueued[alias] = true
	} else {
		delete(s.remoteQueued, alias)
	}
}

// BeginDownload increments alias's active download count; EndDownload
// decrements it. Callers bracket a chunk fetch with these.
func (s *LiveStats) BeginDownload(alias string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeDownload[alias]++
}

// EndDownload decrements alias's active download count.
func (s *LiveStats) EndDownload(alias string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeDownload[alias] > 0 {
		s.activeDownload[alias]--
	}
}

// RemotelyQueued implements PeerStats.
func (s *LiveStats) RemotelyQueued(alias string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteQueued[alias]
}

// Favourite implements PeerStats.
func (s *LiveStats) Favourite(alias string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favourites[alias]
}

// ActiveDownloadsFrom implements PeerStats.
func (s *LiveStats) ActiveDownloadsFrom(alias string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeDownload[alias]
}
