// Package wire holds the constants and small value types shared by both
// the indexnode and the client side of the fs2 protocol: HTTP header
// names, the port range a peer must advertise within, and the fixed
// width content digest type (spec §3.1, §6).
package wire

import (
	"encoding/hex"
	"errors"
)

// HTTP header names exchanged between a client and an indexnode on
// /hello and /ping (spec §6).
const (
	HeaderVersion    = "fs2-version"
	HeaderPort       = "fs2-port"
	HeaderClientToken = "fs2-cltoken"
	HeaderAlias      = "fs2-alias"
	HeaderAvatarHash = "fs2-avatarhash"
)

// ProtocolVersion is the fs2-version header value this build sends on
// every /hello (spec §6). The indexnode only requires the header be
// present and non-empty; it does not reject an unrecognised version.
const ProtocolVersion = "1"

// PortMin and PortMax bound the port a peer may advertise in fs2-port.
const (
	PortMin = 1024
	PortMax = 65535
)

// FileDigestBits is the width, in bits, of a file content digest.
// FileDigestBytes is the same width in bytes.
const (
	FileDigestBits  = 256
	FileDigestBytes = FileDigestBits / 8
)

// HashPrefixSuffixLen is C in the digest contract of spec §4.4: the
// number of bytes taken from the head and from the tail of a file.
const HashPrefixSuffixLen = 64 * 1024

// HashVersion pins the digest algorithm a file list entry was hashed
// with, so a change in hashing policy can be detected and triggers a
// re-hash rather than silently mixing generations of hashes.
type HashVersion uint8

// CurrentHashVersion is the hash version produced by this build.
const CurrentHashVersion HashVersion = 1

// Hash is a fixed-width content digest. The zero value (all-zero bytes)
// denotes "this is a directory" per spec §3.1 and is never a valid file
// hash.
type Hash [FileDigestBytes]byte

// ErrBadHashLength is returned when decoding a hash of the wrong width.
var ErrBadHashLength = errors.New("wire: bad hash length")

// IsZero reports whether h is the empty (directory) hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String renders h as lowercase hex, as used in /download/{hex-hash} and
// /alternatives/{hex-hash} paths.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ParseHash decodes a hex string into a Hash, rejecting any length other
// than FileDigestBytes*2 hex characters (spec §3.1 "a non-empty hash of
// wrong length is rejected at import").
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != FileDigestBytes {
		return h, ErrBadHashLength
	}
	copy(h[:], b)
	return h, nil
}
