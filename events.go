package peercloud

import "fmt"

// EventKind tells what happened to the cloud.
type EventKind int

const (
	// PeerJoined is emitted when a peer announced its registration to us.
	PeerJoined EventKind = iota
	// PeerLeft is emitted when a known neighbor announced it is leaving.
	PeerLeft
	// PeerDetected is emitted when a peer answered our own registration.
	PeerDetected
	// UserData is emitted for every complete application payload.
	UserData
)

func (k EventKind) String() string {
	switch k {
	case PeerJoined:
		return "peer_joined"
	case PeerLeft:
		return "peer_left"
	case PeerDetected:
		return "peer_detected"
	case UserData:
		return "user_data"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Event is delivered on the channel returned by Peer.Events.
type Event struct {
	Kind EventKind
	// Peer is the neighbor the event is about.
	Peer PeerIdentifier
	// Endpoints announced by the peer, for every kind but UserData.
	Endpoints []Endpoint
	// Neighbors of the peer, only for PeerDetected.
	Neighbors []NeighborInfo
	// Data is the reassembled payload, only for UserData.
	Data []byte
}

func (e Event) String() string {
	switch e.Kind {
	case UserData:
		return fmt.Sprintf("%s from %s: %d bytes", e.Kind, e.Peer, len(e.Data))
	case PeerDetected:
		return fmt.Sprintf("%s %s at %v with %d neighbors", e.Kind, e.Peer, e.Endpoints, len(e.Neighbors))
	default:
		return fmt.Sprintf("%s %s at %v", e.Kind, e.Peer, e.Endpoints)
	}
}
