package communicator

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/bs2609/fs2/internal/erroriface"
	"github.com/bs2609/fs2/internal/wire"
)

// IndexnodeClient drives the /hello registration exchange with a single
// indexnode (spec §4.2 "Registration (/hello)").
type IndexnodeClient struct {
	baseURL  string
	identity Identity
	http     *http.Client
	log      *logrus.Entry
	backoff  *Backoff
}

// NewIndexnodeClient creates a client for the indexnode at baseURL.
func NewIndexnodeClient(baseURL string, identity Identity, log *logrus.Entry) *IndexnodeClient {
	return &IndexnodeClient{
		baseURL:  baseURL,
		identity: identity,
		http:     http.DefaultClient,
		log:      log,
		backoff:  NewBackoff(),
	}
}

// Hello sends /hello with the required headers, retrying transient
// failures with backoff. A 4xx response is a protocol error and is
// wrapped as erroriface.NoRetry rather than retried (spec §7).
func (c *IndexnodeClient) Hello(ctx context.Context) error {
	return c.backoff.Retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/hello", nil)
		if err != nil {
			return erroriface.NewNoRetry("build hello request", err)
		}
		req.Header.Set(wire.HeaderVersion, wire.ProtocolVersion)
		req.Header.Set(wire.HeaderPort, strconv.Itoa(c.identity.Port))
		req.Header.Set(wire.HeaderClientToken, c.identity.ClientToken)
		req.Header.Set(wire.HeaderAlias, c.identity.Alias)
		req.Header.Set(wire.HeaderAvatarHash, c.identity.AvatarHash)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("hello %s: %w", c.baseURL, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return erroriface.NewNoRetry("hello", fmt.Errorf("indexnode rejected registration: %d", resp.StatusCode))
		default:
			return fmt.Errorf("hello %s: unexpected status %d", c.baseURL, resp.StatusCode)
		}
	})
}
