package peercloud

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by operations on a closed Peer.
var ErrClosed = errors.New("peercloud: peer closed")

// broadcastIP is the limited broadcast address, used to pick the hardware
// identity stamped on registrations.
var broadcastIP = [4]byte{255, 255, 255, 255}

// Peer is a member of a cloud of peers. It announces itself, tracks the
// neighbors it learns about, and exchanges ordered application payloads with
// them. Peer is thread-safe.
type Peer struct {
	sync.Mutex
	// Config holding parameters of the peer
	c *Config
	// identifier of this peer, fresh for every instance
	id PeerIdentifier
	// Network to send and receive datagrams
	net Network
	// tells our own interfaces apart, may be nil
	local LocalIdentity
	// known neighbors
	reg *Registry
	// routes incoming datagrams to the workers
	proc *shardedProcessing
	// last packet index used by an outgoing user message
	outgoing atomic.Uint64
	// channel to expose events to the user
	events chan Event
	// closed when the peer is closed, unblocks the workers
	done chan struct{}
	// datagrams dropped before reaching the application
	dropped atomic.Uint64
	log     Logger
	joined  bool
	closed  bool
}

// NewPeer returns a Peer receiving on the given network. local tells the
// datagrams sent from this host apart; it can be nil, in which case only the
// datagrams bearing our own identifier are filtered. The first config in the
// slice is taken if not nil. Otherwise, the default config generated by
// DefaultConfig() is used. The peer processes incoming datagrams right away
// but only announces itself on Join.
func NewPeer(n Network, local LocalIdentity, conf ...*Config) *Peer {
	var config *Config
	if len(conf) > 0 && conf[0] != nil {
		config = mergeWithDefault(conf[0])
	} else {
		config = DefaultConfig()
	}
	id := NewPeerIdentifier()
	p := &Peer{
		c:      config,
		id:     id,
		net:    n,
		local:  local,
		reg:    NewRegistry(config.MaxBuffered),
		events: make(chan Event, config.EventBuffer),
		done:   make(chan struct{}),
		log:    config.Logger.With("peer", id),
	}
	p.proc = newShardedProcessing(config.Workers, config.QueueSize, p.handle)
	p.proc.Start()
	p.net.RegisterListener(p)
	return p
}

// ID returns the identifier of this peer.
func (p *Peer) ID() PeerIdentifier {
	return p.id
}

// Events returns the channel over which the peer notifies of joining, leaving
// and detected peers and of received payloads. The channel must be drained:
// processing of incoming datagrams waits while it is full. It is closed by
// Close.
func (p *Peer) Events() <-chan Event {
	return p.events
}

// Neighbors returns a snapshot of the known neighbors.
func (p *Peer) Neighbors() []NeighborInfo {
	return p.reg.Neighbors()
}

// Neighbor returns the state of the neighbor with the given identifier.
func (p *Peer) Neighbor(id PeerIdentifier) (*Neighbor, bool) {
	return p.reg.Get(id)
}

// Join broadcasts our registration on the configured port. Every peer
// receiving it answers with its own endpoints and neighbors.
func (p *Peer) Join() error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	msg := &AnnounceRegistration{Endpoints: NewEndpointSet(p.net.LocalEndpoints()...)}
	buff, err := p.encode(Endpoint{IP: broadcastIP, Port: p.c.Port}, 0, msg)
	if err != nil {
		return err
	}
	if err := p.net.Broadcast(p.c.Port, buff); err != nil {
		return fmt.Errorf("peercloud: broadcasting registration: %w", err)
	}
	p.Lock()
	p.joined = true
	p.Unlock()
	p.log.Info("event", "joined", "port", p.c.Port, "endpoints", msg.Endpoints)
	return nil
}

// Leave announces to every neighbor that we are leaving. Neighbors are kept:
// the peer can Join again.
func (p *Peer) Leave() error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	return p.leave()
}

func (p *Peer) leave() error {
	msg := &AnnounceLeaving{Endpoints: NewEndpointSet(p.net.LocalEndpoints()...)}
	eps := p.reg.Endpoints()
	err := p.sendAll(eps, 0, msg)
	p.Lock()
	p.joined = false
	p.Unlock()
	p.log.Info("event", "left", "endpoints", len(eps))
	return err
}

// Send delivers data to every endpoint of every neighbor. Data larger than
// the configured fragment size is split into fragments taking consecutive
// packet indices. Errors of the different destinations are joined.
func (p *Peer) Send(data []byte) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	msgs, err := fragment(data, p.c.FragmentSize)
	if err != nil {
		return err
	}
	first := p.reserve(len(msgs))
	eps := p.reg.Endpoints()
	if len(eps) == 0 {
		return nil
	}
	var errs []error
	for i, m := range msgs {
		if err := p.sendAll(eps, first+uint64(i), m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendTo delivers data to a single endpoint. It takes its packet indices from
// the counter shared with Send: the other neighbors see a gap they never
// recover from, so it is only meant for a peer with a single neighbor, or
// for the last message sent.
func (p *Peer) SendTo(to Endpoint, data []byte) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	msgs, err := fragment(data, p.c.FragmentSize)
	if err != nil {
		return err
	}
	first := p.reserve(len(msgs))
	var errs []error
	for i, m := range msgs {
		if err := p.sendAll([]Endpoint{to}, first+uint64(i), m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close leaves the cloud if joined, stops processing incoming datagrams and
// closes the event channel. The network is not closed.
func (p *Peer) Close() error {
	p.Lock()
	if p.closed {
		p.Unlock()
		return nil
	}
	p.closed = true
	joined := p.joined
	p.Unlock()

	var err error
	if joined {
		err = p.leave()
	}
	close(p.done)
	p.proc.Stop()
	close(p.events)
	return err
}

// NewDatagram implements the Listener interface. It queues the datagram for
// processing and returns immediately.
func (p *Peer) NewDatagram(data []byte, from Endpoint) {
	buff := make([]byte, len(data))
	copy(buff, data)
	if !p.proc.Incoming(datagram{data: buff, from: from}) {
		p.drop(from, "queue_full", nil)
	}
}

func (p *Peer) checkOpen() error {
	p.Lock()
	defer p.Unlock()
	if p.closed {
		return ErrClosed
	}
	return nil
}

// reserve takes n consecutive packet indices and returns the first one.
func (p *Peer) reserve(n int) uint64 {
	last := p.outgoing.Add(uint64(n))
	return last - uint64(n) + 1
}

// encode builds the signed datagram carrying msg to the given endpoint.
func (p *Peer) encode(to Endpoint, index uint64, msg Message) ([]byte, error) {
	env := &Envelope{
		Sender:      p.id,
		PacketIndex: index,
		Message:     msg,
	}
	if p.local != nil {
		env.HardwareID = p.local.HardwareID(to)
	}
	if p.c.SecretKey != nil {
		if err := SignEnvelope(env, p.c.SecretKey, p.c.Rand); err != nil {
			return nil, err
		}
	}
	return env.MarshalBinary()
}

// sendAll sends the message to every endpoint. The datagram only depends on
// the hardware identity of the destination, so it is encoded once per local
// interface.
func (p *Peer) sendAll(eps []Endpoint, index uint64, msg Message) error {
	cache := make(map[uint64][]byte)
	var errs []error
	for _, ep := range eps {
		var hw uint64
		if p.local != nil {
			hw = p.local.HardwareID(ep)
		}
		buff, ok := cache[hw]
		if !ok {
			var err error
			if buff, err = p.encode(ep, index, msg); err != nil {
				return err
			}
			cache[hw] = buff
		}
		if err := p.net.Send(ep, buff); err != nil {
			errs = append(errs, fmt.Errorf("sending %s to %s: %w", msg.Type(), ep, err))
		}
	}
	return errors.Join(errs...)
}

func (p *Peer) emit(e Event) {
	select {
	case p.events <- e:
	case <-p.done:
	}
}

func (p *Peer) drop(from Endpoint, reason string, err error) {
	p.dropped.Add(1)
	if err != nil {
		p.log.Debug("event", "drop", "from", from, "reason", reason, "err", err)
		return
	}
	p.log.Debug("event", "drop", "from", from, "reason", reason)
}

// handle runs on the processing workers: parse, filter, verify and dispatch.
func (p *Peer) handle(d datagram) {
	env, err := ParseEnvelope(d.data)
	if err != nil {
		p.drop(d.from, "parse", err)
		return
	}
	if env.Sender == p.id {
		p.drop(d.from, "self", nil)
		return
	}
	if !p.c.AllowLoopback && p.local != nil && p.local.IsLocal(env.HardwareID) {
		p.drop(d.from, "loopback", nil)
		return
	}
	if err := VerifyEnvelope(env, p.c.PublicKey); err != nil {
		p.drop(d.from, "signature", err)
		return
	}
	switch msg := env.Message.(type) {
	case *AnnounceRegistration:
		p.onRegistration(env, msg, d.from)
	case *AnnounceLeaving:
		p.onLeaving(env, msg, d.from)
	case *ReplyRegistration:
		p.onReply(env, msg, d.from)
	case *UserMessage:
		p.onUserMessage(env, d.from)
	}
}

// announced returns the endpoints listed in a registration, or the source of
// the datagram if the list is empty.
func announced(set *EndpointSet, from Endpoint) []Endpoint {
	if set == nil || set.Len() == 0 {
		return []Endpoint{from}
	}
	return set.Slice()
}

// observe registers a neighbor learned from a registration or a reply. Unless
// ordering is strict, its sequence starts at the first user packet it
// delivers, so a peer joining a busy cloud is not stuck on indices sent
// before it arrived.
func (p *Peer) observe(id PeerIdentifier, ep Endpoint) {
	if p.c.StrictOrdering {
		p.reg.Observe(id, ep)
		return
	}
	p.reg.Discover(id, ep)
}

// onRegistration answers a new peer at each of its endpoints with our
// endpoints and neighbors, and registers it there.
func (p *Peer) onRegistration(env *Envelope, msg *AnnounceRegistration, from Endpoint) {
	if p.reg.Contains(env.Sender) {
		p.drop(from, "known_neighbor", nil)
		return
	}
	own := NewEndpointSet(p.net.LocalEndpoints()...)
	eps := announced(msg.Endpoints, from)
	for _, ep := range eps {
		reply := &ReplyRegistration{Endpoints: own, Neighbors: p.reg.Neighbors()}
		if err := p.sendAll([]Endpoint{ep}, 0, reply); err != nil {
			p.log.Warn("event", "reply", "to", ep, "err", err)
		}
		p.observe(env.Sender, ep)
	}
	p.log.Debug("event", "peer_joined", "id", env.Sender, "endpoints", len(eps))
	p.emit(Event{Kind: PeerJoined, Peer: env.Sender, Endpoints: eps})
}

func (p *Peer) onLeaving(env *Envelope, msg *AnnounceLeaving, from Endpoint) {
	if !p.reg.Remove(env.Sender) {
		p.drop(from, "unknown_neighbor", nil)
		return
	}
	p.log.Debug("event", "peer_left", "id", env.Sender)
	p.emit(Event{Kind: PeerLeft, Peer: env.Sender, Endpoints: msg.Endpoints.Slice()})
}

func (p *Peer) onReply(env *Envelope, msg *ReplyRegistration, from Endpoint) {
	if p.reg.Contains(env.Sender) {
		p.drop(from, "known_neighbor", nil)
		return
	}
	eps := announced(msg.Endpoints, from)
	for _, ep := range eps {
		p.observe(env.Sender, ep)
	}
	p.log.Debug("event", "peer_detected", "id", env.Sender, "endpoints", len(eps), "neighbors", len(msg.Neighbors))
	p.emit(Event{Kind: PeerDetected, Peer: env.Sender, Endpoints: eps, Neighbors: msg.Neighbors})
}

func (p *Peer) onUserMessage(env *Envelope, from Endpoint) {
	n, ok := p.reg.Get(env.Sender)
	if !ok {
		p.drop(from, "unknown_neighbor", nil)
		return
	}
	ready, err := n.Admit(env)
	if err != nil {
		p.drop(from, "ordering", err)
		return
	}
	for _, e := range ready {
		data, complete, err := n.Reassemble(e.PacketIndex, e.Message.(*UserMessage))
		if err != nil {
			p.drop(from, "reassembly", err)
			continue
		}
		if !complete {
			continue
		}
		p.emit(Event{Kind: UserData, Peer: env.Sender, Data: data})
	}
}
