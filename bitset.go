package peercloud

import (
	"github.com/willf/bitset"
)

// BitSet tracks which slots of a fixed-size array are filled.
type BitSet interface {
	// BitLength returns the fixed size of this BitSet
	BitLength() int
	// Cardinality returns the number of '1''s set
	Cardinality() int
	// Set the bit at the given index to 1 or 0 depending on the given boolean.
	// If the index is out of bound, implementations MUST not change the bitset.
	Set(int, bool)
	// Get returns the status of the i-th bit in this bitset. Implementations
	// must return false if the index is out of bounds.
	Get(int) bool
	// All returns true if every bit is set.
	All() bool
}

// implementation of a BitSet using the wilff library.
type wilffBitset struct {
	b *bitset.BitSet
	l int
}

// NewWilffBitset returns a BitSet implemented using the wilff's bitset library.
func NewWilffBitset(length int) BitSet {
	return &wilffBitset{
		b: bitset.New(uint(length)),
		l: length,
	}
}

func (w *wilffBitset) BitLength() int {
	return w.l
}

func (w *wilffBitset) Cardinality() int {
	return int(w.b.Count())
}

func (w *wilffBitset) Set(idx int, status bool) {
	if !w.inBound(idx) {
		// do nothing if out of bounds
		return
	}
	w.b = w.b.SetTo(uint(idx), status)
}

func (w *wilffBitset) Get(idx int) bool {
	if !w.inBound(idx) {
		return false
	}
	return w.b.Test(uint(idx))
}

func (w *wilffBitset) All() bool {
	return w.Cardinality() == w.l
}

func (w *wilffBitset) inBound(idx int) bool {
	return !(idx < 0 || idx >= w.l)
}
