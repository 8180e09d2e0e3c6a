package peercloud

import (
	"sync"
)

// Registry holds the neighbors known to a peer. Membership changes are
// serialized by the registry lock while per-neighbor state is guarded by each
// Neighbor's own lock, so traffic from different neighbors never contends.
type Registry struct {
	sync.RWMutex
	neighbors   map[PeerIdentifier]*Neighbor
	maxBuffered int
}

// NewRegistry returns an empty registry. maxBuffered bounds the out-of-order
// buffer of every neighbor; 0 means unbounded.
func NewRegistry(maxBuffered int) *Registry {
	return &Registry{
		neighbors:   make(map[PeerIdentifier]*Neighbor),
		maxBuffered: maxBuffered,
	}
}

// Observe records that the peer id is reachable at ep. It creates the neighbor
// if needed and returns true in that case; otherwise ep is added to the
// neighbor's endpoints. A created neighbor expects packet index 1 first.
func (r *Registry) Observe(id PeerIdentifier, ep Endpoint) bool {
	return r.observe(id, ep, true)
}

// Discover is like Observe but a neighbor it creates takes the index of the
// first user packet it sends as the start of its sequence. Packets it sent
// before are never delivered.
func (r *Registry) Discover(id PeerIdentifier, ep Endpoint) bool {
	return r.observe(id, ep, false)
}

func (r *Registry) observe(id PeerIdentifier, ep Endpoint, synced bool) bool {
	r.Lock()
	n, ok := r.neighbors[id]
	if !ok {
		n = newNeighbor(id, ep, r.maxBuffered)
		n.synced = synced
		r.neighbors[id] = n
		r.Unlock()
		return true
	}
	r.Unlock()
	n.addEndpoint(ep)
	return false
}

// Remove deletes the neighbor along with its buffered envelopes and partial
// fragment groups. It returns false if the neighbor was unknown.
func (r *Registry) Remove(id PeerIdentifier) bool {
	r.Lock()
	defer r.Unlock()
	if _, ok := r.neighbors[id]; !ok {
		return false
	}
	delete(r.neighbors, id)
	return true
}

// Get returns the neighbor registered under id.
func (r *Registry) Get(id PeerIdentifier) (*Neighbor, bool) {
	r.RLock()
	defer r.RUnlock()
	n, ok := r.neighbors[id]
	return n, ok
}

// Contains returns true if id is a registered neighbor.
func (r *Registry) Contains(id PeerIdentifier) bool {
	_, ok := r.Get(id)
	return ok
}

// Admit passes a user envelope from id through the ordering buffer of that
// neighbor. See Neighbor.Admit.
func (r *Registry) Admit(id PeerIdentifier, env *Envelope) ([]*Envelope, error) {
	n, ok := r.Get(id)
	if !ok {
		return nil, ErrUnknownNeighbor
	}
	return n.Admit(env)
}

// Len returns the number of neighbors.
func (r *Registry) Len() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.neighbors)
}

// Neighbors returns a snapshot of every neighbor with its endpoints.
func (r *Registry) Neighbors() []NeighborInfo {
	list := r.list()
	infos := make([]NeighborInfo, 0, len(list))
	for _, n := range list {
		infos = append(infos, n.Info())
	}
	return infos
}

// Endpoints returns every endpoint of every neighbor.
func (r *Registry) Endpoints() []Endpoint {
	var eps []Endpoint
	for _, n := range r.list() {
		eps = append(eps, n.Endpoints()...)
	}
	return eps
}

func (r *Registry) list() []*Neighbor {
	r.RLock()
	defer r.RUnlock()
	list := make([]*Neighbor, 0, len(r.neighbors))
	for _, n := range r.neighbors {
		list = append(list, n)
	}
	return list
}
