// Package communicator implements the client side of peer registration:
// it registers with every configured indexnode, re-registers on share
// change, and reports failures without ever blocking a share refresh on
// a slow or unreachable indexnode (spec §4.4 "Indexnode communicator").
package communicator

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/bs2609/fs2/internal/shareengine"
)

// Identity is this client's self-reported registration identity, sent
// on every /hello (spec §6 header table).
type Identity struct {
	Alias       string
	ClientToken string
	Port        int
	AvatarHash  string
	Secure      bool
}

// Communicator owns one IndexnodeClient per configured indexnode and
// drives registration/re-registration against all of them (spec §4.4).
type Communicator struct {
	identity Identity
	log      *logrus.Entry

	mu    sync.RWMutex
	peers map[string]*IndexnodeClient
}

// New creates an empty Communicator for identity. Indexnodes are added
// with AddIndexnode once known (from static config or auto-indexnode
// discovery).
func New(identity Identity, log *logrus.Entry) *Communicator {
	return &Communicator{
		identity: identity,
		log:      log,
		peers:    make(map[string]*IndexnodeClient),
	}
}

// AddIndexnode registers baseURL as a known indexnode and immediately
// attempts a hello against it. A no-op if baseURL is already known.
func (c *Communicator) AddIndexnode(ctx context.Context, baseURL string) {
	c.mu.Lock()
	if _, ok := c.peers[baseURL]; ok {
		c.mu.Unlock()
		return
	}
	client := NewIndexnodeClient(baseURL, c.identity, c.log)
	c.peers[baseURL] = client
	c.mu.Unlock()

	if err := client.Hello(ctx); err != nil && c.log != nil {
		c.log.WithError(err).WithField("indexnode", baseURL).Warn("initial registration failed")
	}
}

// RemoveIndexnode forgets baseURL; it is not un-registered from the
// indexnode's side, which relies on its own liveness pings to evict a
// peer that stops responding.
func (c *Communicator) RemoveIndexnode(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.peers, baseURL)
}

// Indexnodes returns every currently known indexnode base URL.
func (c *Communicator) Indexnodes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.peers))
	for url := range c.peers {
		out = append(out, url)
	}
	return out
}

// RegisterAll re-sends /hello to every known indexnode concurrently,
// fanning out with an errgroup, one goroutine per indexnode, and returns
// once every hello has finished. A single indexnode's failure does not
// stop the others.
func (c *Communicator) RegisterAll(ctx context.Context) {
	c.mu.RLock()
	clients := make([]*IndexnodeClient, 0, len(c.peers))
	urls := make([]string, 0, len(c.peers))
	for url, client := range c.peers {
		clients = append(clients, client)
		urls = append(urls, url)
	}
	c.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for i, client := range clients {
		client, url := client, urls[i]
		g.Go(func() error {
			if err := client.Hello(gctx); err != nil && c.log != nil {
				c.log.WithError(err).WithField("indexnode", url).Warn("re-registration failed")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// OnShareChange is a shareengine.ChangeNotifier that re-registers with
// every known indexnode whenever any share's refresh completes (spec
// §4.4 "Refresh completion ... triggers a change notification to every
// registered indexnode").
func (c *Communicator) OnShareChange(_ *shareengine.Share) {
	go c.RegisterAll(context.Background())
}
