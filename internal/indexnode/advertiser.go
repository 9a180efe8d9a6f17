package indexnode

import (
	"context"
	"time"

	"github.com/bs2609/fs2/internal/autoindexnode"
)

// Advertiser periodically broadcasts this dedicated indexnode as active
// on the UDP advert channel, so any auto-indexnode-capable client sees a
// superior advert and relinquishes rather than electing itself (spec
// §4.6 "If a superior advert arrives, it relinquishes").
type Advertiser struct {
	transport autoindexnode.Transport
	port      int
	uid       string
}

// NewAdvertiser opens a UDP broadcast transport bound to the fixed
// advert port and advertises port as this indexnode's listen port.
func NewAdvertiser(port int) *Advertiser {
	transport, err := autoindexnode.NewUDPBroadcast()
	if err != nil {
		return nil
	}
	return &Advertiser{transport: transport, port: port, uid: autoindexnode.NewUID()}
}

// Run sends an Active advert every AdvertiseInterval until ctx is
// cancelled.
func (a *Advertiser) Run(ctx context.Context) {
	if a == nil {
		return
	}
	defer a.transport.Close()

	ticker := time.NewTicker(autoindexnode.AdvertiseInterval)
	defer ticker.Stop()
	payload := autoindexnode.Advert{Active: true, Port: a.port, UID: a.uid}.Encode()
	_ = a.transport.Send(payload)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = a.transport.Send(payload)
		}
	}
}
