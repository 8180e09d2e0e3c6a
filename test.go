package peercloud

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// ErrNoRoute is returned by a TestNetwork sending to an endpoint no network
// of its hub is bound to.
var ErrNoRoute = errors.New("peercloud: no route to endpoint")

// TestHub is an in-memory broadcast domain connecting TestNetworks. It is
// useful to test or demo several peers inside one process.
type TestHub struct {
	sync.RWMutex
	nets map[Endpoint]*TestNetwork
	next uint32
}

// NewTestHub returns an empty hub.
func NewTestHub() *TestHub {
	return &TestHub{nets: make(map[Endpoint]*TestNetwork)}
}

// NewNetwork returns a network bound to the given port on a fresh address of
// the hub, in 10.0.0.0/8.
func (h *TestHub) NewNetwork(port uint16) *TestNetwork {
	h.Lock()
	defer h.Unlock()
	h.next++
	var ip [4]byte
	binary.BigEndian.PutUint32(ip[:], 10<<24|h.next)
	t := &TestNetwork{hub: h, ep: Endpoint{IP: ip, Port: port}}
	h.nets[t.ep] = t
	return t
}

func (h *TestHub) get(ep Endpoint) (*TestNetwork, bool) {
	h.RLock()
	defer h.RUnlock()
	t, ok := h.nets[ep]
	return t, ok
}

func (h *TestHub) bound(port uint16) []*TestNetwork {
	h.RLock()
	defer h.RUnlock()
	var list []*TestNetwork
	for ep, t := range h.nets {
		if ep.Port == port {
			list = append(list, t)
		}
	}
	return list
}

// TestNetwork is a Network implementation dispatching datagrams synchronously
// to the networks of its hub. It is also the LocalIdentity of its peer: its
// hardware identity is derived from its address.
type TestNetwork struct {
	hub *TestHub
	ep  Endpoint

	sync.RWMutex
	lis []Listener
	// Filter, when set, is called for every outgoing datagram. Returning
	// false drops the datagram silently.
	Filter func(to Endpoint, data []byte) bool
}

// Endpoint returns the endpoint the network is bound to.
func (t *TestNetwork) Endpoint() Endpoint {
	return t.ep
}

// RegisterListener implements the Network interface
func (t *TestNetwork) RegisterListener(l Listener) {
	t.Lock()
	defer t.Unlock()
	t.lis = append(t.lis, l)
}

// Send implements the Network interface
func (t *TestNetwork) Send(to Endpoint, data []byte) error {
	dst, ok := t.hub.get(to)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoRoute, to)
	}
	if !t.pass(to, data) {
		return nil
	}
	dst.dispatch(data, t.ep)
	return nil
}

// Broadcast implements the Network interface. Like a real broadcast, the
// datagram also reaches the sender if it is bound to the port.
func (t *TestNetwork) Broadcast(port uint16, data []byte) error {
	for _, dst := range t.hub.bound(port) {
		if !t.pass(Endpoint{IP: broadcastIP, Port: port}, data) {
			continue
		}
		dst.dispatch(data, t.ep)
	}
	return nil
}

// LocalEndpoints implements the Network interface
func (t *TestNetwork) LocalEndpoints() []Endpoint {
	return []Endpoint{t.ep}
}

// Close implements the Network interface. The network stops receiving.
func (t *TestNetwork) Close() error {
	t.hub.Lock()
	delete(t.hub.nets, t.ep)
	t.hub.Unlock()
	return nil
}

// HardwareID implements the LocalIdentity interface
func (t *TestNetwork) HardwareID(Endpoint) uint64 {
	return uint64(binary.BigEndian.Uint32(t.ep.IP[:]))
}

// IsLocal implements the LocalIdentity interface
func (t *TestNetwork) IsLocal(hw uint64) bool {
	return hw == t.HardwareID(t.ep)
}

func (t *TestNetwork) pass(to Endpoint, data []byte) bool {
	t.RLock()
	f := t.Filter
	t.RUnlock()
	return f == nil || f(to, data)
}

// SetFilter replaces the filter of outgoing datagrams.
func (t *TestNetwork) SetFilter(f func(to Endpoint, data []byte) bool) {
	t.Lock()
	defer t.Unlock()
	t.Filter = f
}

func (t *TestNetwork) dispatch(data []byte, from Endpoint) {
	t.RLock()
	lis := t.lis
	t.RUnlock()
	for _, l := range lis {
		l.NewDatagram(data, from)
	}
}

// Test is a struct implementing some useful functionality to run several
// peers on one hub.
type Test struct {
	hub   *TestHub
	nets  []*TestNetwork
	peers []*Peer
}

// NewTest returns n peers, each on its own network of a common hub, using the
// given config. All networks are bound to the config port.
func NewTest(n int, conf *Config) *Test {
	if conf == nil {
		conf = DefaultConfig()
	}
	c := mergeWithDefault(conf)
	hub := NewTestHub()
	t := &Test{hub: hub}
	for i := 0; i < n; i++ {
		net := hub.NewNetwork(c.Port)
		t.nets = append(t.nets, net)
		t.peers = append(t.peers, NewPeer(net, net, c))
	}
	return t
}

// Peers returns the peers of the test.
func (t *Test) Peers() []*Peer {
	return t.peers
}

// Networks returns the networks of the test, in the order of the peers.
func (t *Test) Networks() []*TestNetwork {
	return t.nets
}

// Hub returns the hub connecting the networks.
func (t *Test) Hub() *TestHub {
	return t.hub
}

// Stop closes every peer.
func (t *Test) Stop() {
	for _, p := range t.peers {
		p.Close()
	}
}
