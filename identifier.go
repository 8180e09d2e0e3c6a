package peercloud

import (
	"github.com/google/uuid"
)

// IdentifierSize is the length in bytes of a PeerIdentifier on the wire.
const IdentifierSize = 16

// PeerIdentifier is the opaque identity of a peer. A new one is generated each
// time a peer starts, so it is never reused across restarts. It is comparable
// and can be used directly as a map key.
type PeerIdentifier [IdentifierSize]byte

// NewPeerIdentifier returns a fresh random identifier.
func NewPeerIdentifier() PeerIdentifier {
	return PeerIdentifier(uuid.New())
}

// String returns the canonical UUID representation of the identifier.
func (p PeerIdentifier) String() string {
	return uuid.UUID(p).String()
}

// IsZero returns true if the identifier is all zeros.
func (p PeerIdentifier) IsZero() bool {
	return p == PeerIdentifier{}
}

// shard maps the identifier onto one of n buckets.
func (p PeerIdentifier) shard(n int) int {
	var h uint32
	for _, b := range p {
		h = h*31 + uint32(b)
	}
	return int(h % uint32(n))
}
