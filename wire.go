package peercloud

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// All multi-byte integers on the wire are little-endian.
var order = binary.LittleEndian

// reader consumes fixed-width fields from a datagram. Every read fails with
// ErrTruncated if the remaining input is shorter than the field.
type reader struct {
	buf []byte
	off int
}

func newReader(b []byte) *reader {
	return &reader{buf: b}
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

// next returns the next n bytes without copying them.
func (r *reader) next(n int, field string) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("%w: %s needs %d bytes, %d left", ErrTruncated, field, n, r.remaining())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) byte(field string) (byte, error) {
	b, err := r.next(1, field)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) uint16(field string) (uint16, error) {
	b, err := r.next(2, field)
	if err != nil {
		return 0, err
	}
	return order.Uint16(b), nil
}

func (r *reader) uint32(field string) (uint32, error) {
	b, err := r.next(4, field)
	if err != nil {
		return 0, err
	}
	return order.Uint32(b), nil
}

func (r *reader) uint64(field string) (uint64, error) {
	b, err := r.next(8, field)
	if err != nil {
		return 0, err
	}
	return order.Uint64(b), nil
}

// copyInto fills dst entirely or fails.
func (r *reader) copyInto(dst []byte, field string) error {
	b, err := r.next(len(dst), field)
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

func (r *reader) endpoints() (*EndpointSet, error) {
	count, err := r.uint16("endpoint count")
	if err != nil {
		return nil, err
	}
	// each endpoint takes 6 bytes, reject lying counts before allocating
	if r.remaining() < int(count)*6 {
		return nil, fmt.Errorf("%w: %d endpoints announced, %d bytes left", ErrTruncated, count, r.remaining())
	}
	set := new(EndpointSet)
	for i := 0; i < int(count); i++ {
		var e Endpoint
		if err := r.copyInto(e.IP[:], "endpoint address"); err != nil {
			return nil, err
		}
		if e.Port, err = r.uint16("endpoint port"); err != nil {
			return nil, err
		}
		set.Add(e)
	}
	return set, nil
}

// writer accumulates the serialized form of an envelope.
type writer struct {
	bytes.Buffer
}

func (w *writer) uint16(v uint16) {
	var b [2]byte
	order.PutUint16(b[:], v)
	w.Write(b[:])
}

func (w *writer) uint32(v uint32) {
	var b [4]byte
	order.PutUint32(b[:], v)
	w.Write(b[:])
}

func (w *writer) uint64(v uint64) {
	var b [8]byte
	order.PutUint64(b[:], v)
	w.Write(b[:])
}

func (w *writer) endpoints(s *EndpointSet) error {
	n := 0
	if s != nil {
		n = s.Len()
	}
	if n > math.MaxUint16 {
		return fmt.Errorf("%w: %d", ErrTooManyEndpoints, n)
	}
	w.uint16(uint16(n))
	if s == nil {
		return nil
	}
	for _, e := range s.list {
		w.Write(e.IP[:])
		w.uint16(e.Port)
	}
	return nil
}
