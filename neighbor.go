package peercloud

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownNeighbor is returned for ordered traffic from a peer that has
	// not registered.
	ErrUnknownNeighbor = errors.New("peercloud: unknown neighbor")
	// ErrStalePacket is returned for a packet index already delivered or
	// already waiting in the out-of-order buffer.
	ErrStalePacket = errors.New("peercloud: stale packet index")
	// ErrBufferFull is returned when the out-of-order buffer of a neighbor
	// reached its configured capacity.
	ErrBufferFull = errors.New("peercloud: out-of-order buffer full")
)

// Neighbor is a remote peer this process tracks ordering and reassembly state
// for. All its methods are thread-safe; two different neighbors never
// contend for the same lock.
type Neighbor struct {
	sync.Mutex
	id PeerIdentifier
	// endpoints the neighbor has been seen at, never shrinks
	endpoints *EndpointSet
	// next expected user packet index is incoming+1
	incoming uint64
	// false until the sequence start is known, see Registry.Discover
	synced bool
	// user envelopes received ahead of incoming+1
	buffer []*Envelope
	// reassembly queues by start packet index
	queues fragmentQueues
	// out-of-order buffer capacity, 0 for unbounded
	maxBuffered int
}

func newNeighbor(id PeerIdentifier, ep Endpoint, maxBuffered int) *Neighbor {
	return &Neighbor{
		id:          id,
		endpoints:   NewEndpointSet(ep),
		queues:      make(fragmentQueues),
		maxBuffered: maxBuffered,
	}
}

// ID returns the identifier of the neighbor.
func (n *Neighbor) ID() PeerIdentifier {
	return n.id
}

// Endpoints returns a copy of the endpoints the neighbor is known at.
func (n *Neighbor) Endpoints() []Endpoint {
	n.Lock()
	defer n.Unlock()
	return n.endpoints.Slice()
}

// Info returns a snapshot of the public information of the neighbor.
func (n *Neighbor) Info() NeighborInfo {
	n.Lock()
	defer n.Unlock()
	return NeighborInfo{ID: n.id, Endpoints: NewEndpointSet(n.endpoints.list...)}
}

// IncomingIndex returns the packet index of the last user message delivered
// in order.
func (n *Neighbor) IncomingIndex() uint64 {
	n.Lock()
	defer n.Unlock()
	return n.incoming
}

// Synced returns false for a discovered neighbor that has not sent any user
// packet yet.
func (n *Neighbor) Synced() bool {
	n.Lock()
	defer n.Unlock()
	return n.synced
}

// Buffered returns the number of envelopes waiting for a gap to be filled.
func (n *Neighbor) Buffered() int {
	n.Lock()
	defer n.Unlock()
	return len(n.buffer)
}

// PendingQueues returns the number of fragment groups not yet complete.
func (n *Neighbor) PendingQueues() int {
	n.Lock()
	defer n.Unlock()
	return len(n.queues)
}

func (n *Neighbor) addEndpoint(ep Endpoint) bool {
	n.Lock()
	defer n.Unlock()
	return n.endpoints.Add(ep)
}

// Admit runs a user envelope through the ordering buffer. It returns the
// envelopes that can now be delivered, in packet index order:
//   - an index already delivered is stale and dropped;
//   - an index beyond the next expected one is buffered until the gap closes;
//   - the next expected index is returned, followed by every buffered envelope
//     that continues the sequence without a gap.
//
// A missing index is never requested again: everything buffered behind it
// waits forever. The first packet of a neighbor that is not synced yet is
// always the next expected one.
func (n *Neighbor) Admit(env *Envelope) ([]*Envelope, error) {
	n.Lock()
	defer n.Unlock()

	idx := env.PacketIndex
	if !n.synced && idx > 0 {
		n.synced = true
		n.incoming = idx - 1
	}
	if idx <= n.incoming {
		return nil, fmt.Errorf("%w: %d, expecting %d", ErrStalePacket, idx, n.incoming+1)
	}
	if idx > n.incoming+1 {
		for _, b := range n.buffer {
			if b.PacketIndex == idx {
				return nil, fmt.Errorf("%w: %d already buffered", ErrStalePacket, idx)
			}
		}
		if n.maxBuffered > 0 && len(n.buffer) >= n.maxBuffered {
			return nil, fmt.Errorf("%w: %d envelopes", ErrBufferFull, len(n.buffer))
		}
		n.buffer = append(n.buffer, env)
		return nil, nil
	}

	n.incoming++
	if len(n.buffer) == 0 {
		return []*Envelope{env}, nil
	}
	sort.Slice(n.buffer, func(i, j int) bool {
		return n.buffer[i].PacketIndex < n.buffer[j].PacketIndex
	})
	ready := []*Envelope{env}
	i := 0
	for ; i < len(n.buffer) && n.buffer[i].PacketIndex == n.incoming+1; i++ {
		ready = append(ready, n.buffer[i])
		n.incoming++
	}
	rest := make([]*Envelope, len(n.buffer)-i)
	copy(rest, n.buffer[i:])
	n.buffer = rest
	return ready, nil
}

// Reassemble handles a user message released by Admit. An unfragmented
// message is returned as is. A fragment is stored in the queue of its group;
// the concatenated payload is returned once every fragment of the group
// arrived. The boolean is false while the group is incomplete.
func (n *Neighbor) Reassemble(packetIndex uint64, u *UserMessage) ([]byte, bool, error) {
	if u.FragmentCount <= 1 {
		return u.Data, true, nil
	}
	n.Lock()
	defer n.Unlock()
	return n.queues.add(packetIndex, u)
}
