package peercloud

import (
	"fmt"
	"math"
)

// MessageType is the tag selecting the payload variant of an Envelope.
type MessageType byte

const (
	// TypeAnnounceRegistration is broadcast by a peer joining the cloud.
	TypeAnnounceRegistration MessageType = 0x00
	// TypeAnnounceLeaving is sent to all neighbors on graceful departure.
	TypeAnnounceLeaving MessageType = 0x01
	// TypeReplyRegistration answers a registration with the known neighbors.
	TypeReplyRegistration MessageType = 0x02
	// TypeUserMessage carries application data, possibly one fragment of it.
	TypeUserMessage MessageType = 0x80
)

func (t MessageType) String() string {
	switch t {
	case TypeAnnounceRegistration:
		return "announce_registration"
	case TypeAnnounceLeaving:
		return "announce_leaving"
	case TypeReplyRegistration:
		return "reply_registration"
	case TypeUserMessage:
		return "user_message"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(t))
	}
}

// Message is one of the four payload variants: *AnnounceRegistration,
// *AnnounceLeaving, *ReplyRegistration or *UserMessage. The set is closed;
// other packages cannot implement it.
type Message interface {
	Type() MessageType
	marshal(w *writer) error
}

// AnnounceRegistration is broadcast when a peer joins. It lists the endpoints
// the sender is reachable on.
type AnnounceRegistration struct {
	Endpoints *EndpointSet
}

// AnnounceLeaving is sent on graceful departure.
type AnnounceLeaving struct {
	Endpoints *EndpointSet
}

// NeighborInfo is the public view of a neighbor, as carried inside a
// ReplyRegistration.
type NeighborInfo struct {
	ID        PeerIdentifier
	Endpoints *EndpointSet
}

// ReplyRegistration is unicast in response to an AnnounceRegistration. It
// carries the sender's own endpoints and its full neighbor list.
type ReplyRegistration struct {
	Endpoints *EndpointSet
	Neighbors []NeighborInfo
}

// UserMessage carries application data. FragmentCount == 1 means the data is
// not fragmented, in which case FragmentIndex is always 0 and is not written
// on the wire.
type UserMessage struct {
	Data          []byte
	FragmentCount uint16
	FragmentIndex uint16
}

func (*AnnounceRegistration) Type() MessageType { return TypeAnnounceRegistration }
func (*AnnounceLeaving) Type() MessageType      { return TypeAnnounceLeaving }
func (*ReplyRegistration) Type() MessageType    { return TypeReplyRegistration }
func (*UserMessage) Type() MessageType          { return TypeUserMessage }

func (a *AnnounceRegistration) marshal(w *writer) error {
	return w.endpoints(a.Endpoints)
}

func (a *AnnounceLeaving) marshal(w *writer) error {
	return w.endpoints(a.Endpoints)
}

func (r *ReplyRegistration) marshal(w *writer) error {
	if err := w.endpoints(r.Endpoints); err != nil {
		return err
	}
	if len(r.Neighbors) > math.MaxUint16 {
		return fmt.Errorf("%w: %d", ErrTooManyNeighbors, len(r.Neighbors))
	}
	w.uint16(uint16(len(r.Neighbors)))
	for _, n := range r.Neighbors {
		w.Write(n.ID[:])
		if err := w.endpoints(n.Endpoints); err != nil {
			return err
		}
	}
	return nil
}

func (u *UserMessage) marshal(w *writer) error {
	if u.FragmentCount == 0 {
		return ErrZeroFragmentCount
	}
	if u.FragmentIndex >= u.FragmentCount {
		return fmt.Errorf("%w: %d of %d", ErrFragmentIndex, u.FragmentIndex, u.FragmentCount)
	}
	if uint64(len(u.Data)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(u.Data))
	}
	w.uint16(u.FragmentCount)
	if u.FragmentCount > 1 {
		w.uint16(u.FragmentIndex)
	}
	w.uint32(uint32(len(u.Data)))
	w.Write(u.Data)
	return nil
}

// parseMessage reads the payload of the given type from r.
func parseMessage(t MessageType, r *reader) (Message, error) {
	switch t {
	case TypeAnnounceRegistration:
		eps, err := r.endpoints()
		if err != nil {
			return nil, err
		}
		return &AnnounceRegistration{Endpoints: eps}, nil
	case TypeAnnounceLeaving:
		eps, err := r.endpoints()
		if err != nil {
			return nil, err
		}
		return &AnnounceLeaving{Endpoints: eps}, nil
	case TypeReplyRegistration:
		return parseReply(r)
	case TypeUserMessage:
		return parseUserMessage(r)
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnsupportedType, byte(t))
	}
}

func parseReply(r *reader) (*ReplyRegistration, error) {
	eps, err := r.endpoints()
	if err != nil {
		return nil, err
	}
	count, err := r.uint16("neighbor count")
	if err != nil {
		return nil, err
	}
	// an identifier plus an empty endpoint list is the smallest neighbor
	if r.remaining() < int(count)*(IdentifierSize+2) {
		return nil, fmt.Errorf("%w: %d neighbors announced, %d bytes left", ErrTruncated, count, r.remaining())
	}
	reply := &ReplyRegistration{
		Endpoints: eps,
		Neighbors: make([]NeighborInfo, 0, count),
	}
	for i := 0; i < int(count); i++ {
		var n NeighborInfo
		if err := r.copyInto(n.ID[:], "neighbor identifier"); err != nil {
			return nil, err
		}
		if n.Endpoints, err = r.endpoints(); err != nil {
			return nil, err
		}
		reply.Neighbors = append(reply.Neighbors, n)
	}
	return reply, nil
}

func parseUserMessage(r *reader) (*UserMessage, error) {
	count, err := r.uint16("fragment count")
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrZeroFragmentCount
	}
	u := &UserMessage{FragmentCount: count}
	if count > 1 {
		if u.FragmentIndex, err = r.uint16("fragment index"); err != nil {
			return nil, err
		}
		if u.FragmentIndex >= count {
			return nil, fmt.Errorf("%w: %d of %d", ErrFragmentIndex, u.FragmentIndex, count)
		}
	}
	length, err := r.uint32("payload length")
	if err != nil {
		return nil, err
	}
	if uint64(length) > uint64(r.remaining()) {
		return nil, fmt.Errorf("%w: payload needs %d bytes, %d left", ErrTruncated, length, r.remaining())
	}
	data, err := r.next(int(length), "payload")
	if err != nil {
		return nil, err
	}
	u.Data = make([]byte, len(data))
	copy(u.Data, data)
	return u, nil
}
