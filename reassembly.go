package peercloud

import (
	"errors"
	"fmt"
)

// ErrFragmentMismatch is returned when a fragment disagrees with the group it
// belongs to, i.e. it announces a different fragment count.
var ErrFragmentMismatch = errors.New("peercloud: fragment does not match its group")

// fragmentQueue collects the fragments of one fragmented user message. It is
// keyed by the packet index the first fragment was sent at.
type fragmentQueue struct {
	start  uint64
	slots  [][]byte
	filled BitSet
}

func newFragmentQueue(start uint64, count uint16) *fragmentQueue {
	return &fragmentQueue{
		start:  start,
		slots:  make([][]byte, count),
		filled: NewWilffBitset(int(count)),
	}
}

// put stores the fragment data at its slot. A slot already filled is kept as
// is.
func (q *fragmentQueue) put(idx uint16, data []byte) {
	if q.filled.Get(int(idx)) {
		return
	}
	q.slots[idx] = data
	q.filled.Set(int(idx), true)
}

func (q *fragmentQueue) ready() bool {
	return q.filled.All()
}

// drain concatenates the fragments in slot order.
func (q *fragmentQueue) drain() []byte {
	size := 0
	for _, s := range q.slots {
		size += len(s)
	}
	out := make([]byte, 0, size)
	for _, s := range q.slots {
		out = append(out, s...)
	}
	return out
}

// fragmentQueues is the set of pending reassembly queues of a neighbor.
type fragmentQueues map[uint64]*fragmentQueue

// add places the fragment carried by the envelope in its queue. It returns the
// reassembled payload and true when the fragment completed its group, in
// which case the queue is removed.
func (f fragmentQueues) add(packetIndex uint64, u *UserMessage) ([]byte, bool, error) {
	if uint64(u.FragmentIndex) > packetIndex {
		return nil, false, fmt.Errorf("%w: fragment %d at packet %d", ErrFragmentIndex, u.FragmentIndex, packetIndex)
	}
	start := packetIndex - uint64(u.FragmentIndex)
	q, ok := f[start]
	if !ok {
		q = newFragmentQueue(start, u.FragmentCount)
		f[start] = q
	} else if len(q.slots) != int(u.FragmentCount) {
		return nil, false, fmt.Errorf("%w: count %d, group of %d at %d",
			ErrFragmentMismatch, u.FragmentCount, len(q.slots), start)
	}
	q.put(u.FragmentIndex, u.Data)
	if !q.ready() {
		return nil, false, nil
	}
	delete(f, start)
	return q.drain(), true, nil
}
