package indexnode

import (
	"fmt"
	"net/http"
	"time"
)

// HTTPPinger verifies a peer is reachable by issuing a real GET against
// its advertised ping URL before registering it (spec §4.2
// "Registration ... verifies reachability by an immediate ping").
type HTTPPinger struct {
	Client *http.Client
}

// NewHTTPPinger builds a Pinger with a short timeout, since a hung
// pinger would otherwise stall /hello indefinitely.
func NewHTTPPinger() *HTTPPinger {
	return &HTTPPinger{Client: &http.Client{Timeout: 10 * time.Second}}
}

// Ping issues a GET against pingURL and succeeds only on a 200.
func (h *HTTPPinger) Ping(pingURL string) error {
	resp, err := h.Client.Get(pingURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping %s: status %d", pingURL, resp.StatusCode)
	}
	return nil
}
