// Package autoindexnode implements the UDP advert protocol that lets a
// client elect itself as the active indexnode when no dedicated one is
// present (spec §4.6).
package autoindexnode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ProtocolVersion is the fixed version prefix every advert carries.
const ProtocolVersion = 1

// Advert is a decoded UDP broadcast datagram (spec §4.6 "Advert
// formats").
type Advert struct {
	Active     bool
	Port       int    // valid iff Active
	Capability int64  // valid iff !Active
	UID        string // per-run random identifier
}

// Encode renders a, matching the two wire forms of spec §4.6:
//
//	Active:       <protoVer>:<port>:<advertUID>
//	Prospective:  <protoVer>:autoindexnode:<capability>:<advertUID>
func (a Advert) Encode() string {
	if a.Active {
		return fmt.Sprintf("%d:%d:%s", ProtocolVersion, a.Port, a.UID)
	}
	return fmt.Sprintf("%d:autoindexnode:%d:%s", ProtocolVersion, a.Capability, a.UID)
}

// Decode parses a received datagram payload into an Advert.
func Decode(payload string) (Advert, error) {
	parts := strings.Split(payload, ":")
	if len(parts) < 3 {
		return Advert{}, errBadAdvert
	}
	if _, err := strconv.Atoi(parts[0]); err != nil {
		return Advert{}, errBadAdvert
	}

	if parts[1] == "autoindexnode" {
		if len(parts) != 4 {
			return Advert{}, errBadAdvert
		}
		cap64, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return Advert{}, errBadAdvert
		}
		return Advert{Active: false, Capability: cap64, UID: parts[3]}, nil
	}

	if len(parts) != 3 {
		return Advert{}, errBadAdvert
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil {
		return Advert{}, errBadAdvert
	}
	return Advert{Active: true, Port: port, UID: parts[2]}, nil
}

// NewUID generates a per-run advert identifier (spec glossary "Advert
// UID").
func NewUID() string {
	return uuid.NewString()
}

var errBadAdvert = fmt.Errorf("autoindexnode: malformed advert datagram")
