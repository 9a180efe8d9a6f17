package autoindexnode

import (
	"context"
	"net"
)

// Transport decouples advert send/receive from OS broadcast quirks
// (spec §9 redesign flag "Dynamic service discovery through UDP:
// decouple from OS broadcast quirks - prefer a small pluggable
// transport interface so multicast, broadcast, and explicit bootstraps
// are selectable"). UDPBroadcast is the real implementation; tests and
// an explicit-bootstrap deployment supply their own.
type Transport interface {
	Send(payload string) error
	Receive(ctx context.Context) (payload string, from string, err error)
	Close() error
}

// AdvertisementPort is the fixed UDP port adverts are exchanged on
// (spec §6 "ADVERTISEMENT_DATAGRAM_PORT").
const AdvertisementPort = 59088

// UDPBroadcast sends to the IPv4 limited broadcast address and listens
// on AdvertisementPort, the default transport (spec §6 "IPv4 broadcast
// to 255.255.255.255").
type UDPBroadcast struct {
	conn      *net.UDPConn
	broadcast *net.UDPAddr
}

// NewUDPBroadcast opens a UDP socket bound to AdvertisementPort.
func NewUDPBroadcast() (*UDPBroadcast, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: AdvertisementPort})
	if err != nil {
		return nil, err
	}
	return &UDPBroadcast{
		conn:      conn,
		broadcast: &net.UDPAddr{IP: net.IPv4bcast, Port: AdvertisementPort},
	}, nil
}

// Send broadcasts payload to every host on the local network segment.
func (u *UDPBroadcast) Send(payload string) error {
	_, err := u.conn.WriteToUDP([]byte(payload), u.broadcast)
	return err
}

// Receive blocks for the next datagram, or until ctx is cancelled.
func (u *UDPBroadcast) Receive(ctx context.Context) (string, string, error) {
	type result struct {
		payload string
		from    string
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		buf := make([]byte, 1024)
		n, addr, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			ch <- result{err: err}
			return
		}
		ch <- result{payload: string(buf[:n]), from: addr.String()}
	}()

	select {
	case <-ctx.Done():
		return "", "", ctx.Err()
	case r := <-ch:
		return r.payload, r.from, r.err
	}
}

// Close releases the underlying socket.
func (u *UDPBroadcast) Close() error { return u.conn.Close() }
