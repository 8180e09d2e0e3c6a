package peercloud

// this contains the logic for processing incoming datagrams asynchronously.
// Each datagram received from the network is routed to a worker chosen from
// the sender identifier, so datagrams of one sender are handled in arrival
// order while different senders are handled concurrently.

import (
	"sync"
)

type datagram struct {
	data []byte
	from Endpoint
}

// shardedProcessing dispatches incoming datagrams onto a fixed set of worker
// queues. It is an asynchronous processing interface that needs to be started
// and stopped when needed.
type shardedProcessing struct {
	sync.RWMutex
	shards []chan datagram
	handle func(datagram)
	wg     sync.WaitGroup
	done   bool
}

// newShardedProcessing returns a processing running workers goroutines, each
// one reading from a queue of the given capacity and calling handle for every
// datagram.
func newShardedProcessing(workers, queue int, handle func(datagram)) *shardedProcessing {
	shards := make([]chan datagram, workers)
	for i := range shards {
		shards[i] = make(chan datagram, queue)
	}
	return &shardedProcessing{
		shards: shards,
		handle: handle,
	}
}

func (s *shardedProcessing) Start() {
	for _, ch := range s.shards {
		s.wg.Add(1)
		go s.process(ch)
	}
}

func (s *shardedProcessing) process(ch chan datagram) {
	defer s.wg.Done()
	for d := range ch {
		s.handle(d)
	}
}

// Incoming queues the datagram without blocking. It returns false if the
// datagram was dropped because its queue is full or processing is stopped.
// Datagrams too short to carry a sender all go to the first queue, where they
// fail to parse.
func (s *shardedProcessing) Incoming(d datagram) bool {
	s.RLock()
	defer s.RUnlock()
	if s.done {
		return false
	}
	idx := 0
	if id, ok := peekSender(d.data); ok {
		idx = id.shard(len(s.shards))
	}
	select {
	case s.shards[idx] <- d:
		return true
	default:
		return false
	}
}

// Stop closes every queue and waits for the workers to finish the datagrams
// already queued.
func (s *shardedProcessing) Stop() {
	s.Lock()
	if s.done {
		s.Unlock()
		return
	}
	s.done = true
	for _, ch := range s.shards {
		close(ch)
	}
	s.Unlock()
	s.wg.Wait()
}
