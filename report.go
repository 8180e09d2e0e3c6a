package peercloud

import (
	"sync/atomic"

	"github.com/montanaflynn/stats"
)

// ReportPeer holds a Peer and is able to issue some stats about its
// internals.
type ReportPeer struct {
	*Peer
}

// Stats contains different stats about the different components of a Peer.
type Stats struct {
	Network   map[string]float64
	Neighbors map[string]float64
}

// NewReportPeer returns a Peer that can report statistics. Network counters
// are only available if the peer was built on a ReportNetwork.
func NewReportPeer(p *Peer) *ReportPeer {
	return &ReportPeer{p}
}

// Stats returns the stats of internal components of the peer.
func (r *ReportPeer) Stats() *Stats {
	s := new(Stats)
	if net, ok := r.Peer.net.(*ReportNetwork); ok {
		s.Network = net.Values()
	}
	s.Neighbors = r.Values()
	return s
}

// Values returns the counters of the peer. Buffer depths are
// summarized over every neighbor.
func (r *ReportPeer) Values() map[string]float64 {
	var buffered, queues stats.Float64Data
	for _, info := range r.reg.list() {
		buffered = append(buffered, float64(info.Buffered()))
		queues = append(queues, float64(info.PendingQueues()))
	}
	values := map[string]float64{
		"neighbors":     float64(len(buffered)),
		"dropped":       float64(r.dropped.Load()),
		"outgoingIndex": float64(r.outgoing.Load()),
	}
	summarize(values, "buffered", buffered)
	summarize(values, "queues", queues)
	return values
}

func summarize(values map[string]float64, name string, data stats.Float64Data) {
	if data.Len() == 0 {
		return
	}
	if mean, err := data.Mean(); err == nil {
		values[name+"Avg"] = mean
	}
	if max, err := data.Max(); err == nil {
		values[name+"Max"] = max
	}
	if sum, err := data.Sum(); err == nil {
		values[name+"Sum"] = sum
	}
}

// ReportNetwork is a struct that implements the Network interface by augmenting
// the Network's method with accountability. How many datagrams received and
// sent can be logged.
type ReportNetwork struct {
	Network
	sent     atomic.Uint64
	rcvd     atomic.Uint64
	sentSize atomic.Uint64
	rcvdSize atomic.Uint64
	lis      []Listener
}

// NewReportNetwork returns a Network with reporting capabilities. It must wrap
// the network before the peer registers to it.
func NewReportNetwork(n Network) *ReportNetwork {
	r := &ReportNetwork{
		Network: n,
	}
	n.RegisterListener(r)
	return r
}

// Send implements the Network interface
func (r *ReportNetwork) Send(to Endpoint, data []byte) error {
	r.sent.Add(1)
	r.sentSize.Add(uint64(len(data)))
	return r.Network.Send(to, data)
}

// Broadcast implements the Network interface. A broadcast counts as one
// datagram, or as many as the network wrote if it implements Fanout.
func (r *ReportNetwork) Broadcast(port uint16, data []byte) error {
	f, ok := r.Network.(Fanout)
	if !ok {
		r.sent.Add(1)
		r.sentSize.Add(uint64(len(data)))
		return r.Network.Broadcast(port, data)
	}
	n, err := f.BroadcastN(port, data)
	r.sent.Add(uint64(n))
	r.sentSize.Add(uint64(n * len(data)))
	return err
}

// RegisterListener implements the Network interface. Listeners must be
// registered before datagrams start flowing.
func (r *ReportNetwork) RegisterListener(l Listener) {
	r.lis = append(r.lis, l)
}

// NewDatagram implements the Listener interface
func (r *ReportNetwork) NewDatagram(data []byte, from Endpoint) {
	r.rcvd.Add(1)
	r.rcvdSize.Add(uint64(len(data)))
	for _, l := range r.lis {
		l.NewDatagram(data, from)
	}
}

// Sent returns the number of sent datagrams
func (r *ReportNetwork) Sent() uint64 {
	return r.sent.Load()
}

// Received returns the number of received datagrams
func (r *ReportNetwork) Received() uint64 {
	return r.rcvd.Load()
}

// Values returns the counters as a flat map.
func (r *ReportNetwork) Values() map[string]float64 {
	return map[string]float64{
		"sentPackets": float64(r.Sent()),
		"rcvdPackets": float64(r.Received()),
		"sentBytes":   float64(r.sentSize.Load()),
		"rcvdBytes":   float64(r.rcvdSize.Load()),
	}
}
