package peercloud

// Network is the datagram transport a Peer runs on. A Network implementation
// does not need to provide any transport layer guarantees: datagrams may be
// lost, duplicated or reordered.
type Network interface {
	// RegisterListener stores a Listener to dispatch incoming datagrams to it
	// later on. Implementations must allow multiple Listener to be registered.
	RegisterListener(Listener)
	// Send sends the datagram to the given endpoint.
	Send(to Endpoint, data []byte) error
	// Broadcast sends the datagram to the given port on every reachable
	// broadcast address.
	Broadcast(port uint16, data []byte) error
	// LocalEndpoints returns the endpoints this Network receives on.
	LocalEndpoints() []Endpoint
	// Close stops receiving and releases the underlying socket.
	Close() error
}

// Fanout is implemented by a Network whose Broadcast writes several
// datagrams, one per destination address. BroadcastN returns how many were
// written.
type Fanout interface {
	BroadcastN(port uint16, data []byte) (int, error)
}

// Listener is the interface that gets registered to the Network. Each time a
// new datagram arrives, it is dispatched to the registered Listeners. The data
// slice must not be retained after NewDatagram returns unless copied.
type Listener interface {
	NewDatagram(data []byte, from Endpoint)
}

// ListenFunc is an adapter to use an ordinary function as a Listener.
type ListenFunc func(data []byte, from Endpoint)

// NewDatagram implements the Listener interface.
func (f ListenFunc) NewDatagram(data []byte, from Endpoint) {
	f(data, from)
}

// LocalIdentity tells datagrams sent by this host apart from the others, so a
// peer does not answer its own broadcasts.
type LocalIdentity interface {
	// HardwareID returns the identity of the local interface used to reach the
	// given endpoint.
	HardwareID(to Endpoint) uint64
	// IsLocal returns true if the hardware identity belongs to this host.
	IsLocal(hw uint64) bool
}
