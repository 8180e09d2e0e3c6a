package peercloud

import (
	"errors"
	"fmt"
)

// Version is the only envelope version defined.
const Version = 0x1

// SignatureSize is the fixed width of the signature field.
const SignatureSize = 128

// HeaderSize is the number of bytes before the payload: version, hardware
// identity, sender identifier, packet index, signature and type tag.
const HeaderSize = 1 + 8 + IdentifierSize + 8 + SignatureSize + 1

// offsets of header fields, used to peek at a datagram before parsing it
const (
	senderOffset    = 1 + 8
	signatureOffset = senderOffset + IdentifierSize + 8
)

// Parsing errors. A datagram failing with any of them is dropped.
var (
	ErrUnsupportedVersion = errors.New("peercloud: unsupported envelope version")
	ErrUnsupportedType    = errors.New("peercloud: unsupported message type")
	ErrTruncated          = errors.New("peercloud: truncated field")
	ErrTooManyEndpoints   = errors.New("peercloud: too many endpoints")
	ErrTooManyNeighbors   = errors.New("peercloud: too many neighbors")
	ErrZeroFragmentCount  = errors.New("peercloud: zero fragment count")
	ErrFragmentIndex      = errors.New("peercloud: fragment index out of range")
	ErrPayloadTooLarge    = errors.New("peercloud: payload too large")
)

// Envelope is the versioned frame wrapping every protocol message.
type Envelope struct {
	// HardwareID identifies the network interface the envelope was sent from.
	// It is only used to filter out our own broadcasts, never for security.
	HardwareID uint64
	// Sender is the identifier of the originating peer.
	Sender PeerIdentifier
	// PacketIndex orders user messages per sender. Announce, leave and reply
	// messages always carry 0.
	PacketIndex uint64
	// Signature is zero-filled when the envelope is not signed.
	Signature [SignatureSize]byte
	// Message is the typed payload.
	Message Message

	// raw holds the exact bytes this envelope was parsed from
	raw []byte
}

// ParseEnvelope parses a datagram into an Envelope.
func ParseEnvelope(b []byte) (*Envelope, error) {
	e := new(Envelope)
	if err := e.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return e, nil
}

// UnmarshalBinary implements the encoding.BinaryUnmarshaler interface. Bytes
// following the payload are ignored.
func (e *Envelope) UnmarshalBinary(b []byte) error {
	r := newReader(b)
	version, err := r.byte("version")
	if err != nil {
		return err
	}
	if version != Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	if e.HardwareID, err = r.uint64("hardware identity"); err != nil {
		return err
	}
	if err := r.copyInto(e.Sender[:], "sender identifier"); err != nil {
		return err
	}
	if e.PacketIndex, err = r.uint64("packet index"); err != nil {
		return err
	}
	if err := r.copyInto(e.Signature[:], "signature"); err != nil {
		return err
	}
	t, err := r.byte("message type")
	if err != nil {
		return err
	}
	if e.Message, err = parseMessage(MessageType(t), r); err != nil {
		return err
	}
	e.raw = b[:r.off]
	return nil
}

// MarshalBinary implements the encoding.BinaryMarshaler interface.
func (e *Envelope) MarshalBinary() ([]byte, error) {
	if e.Message == nil {
		return nil, errors.New("peercloud: envelope without message")
	}
	var w writer
	w.Grow(HeaderSize + 64)
	w.WriteByte(Version)
	w.uint64(e.HardwareID)
	w.Write(e.Sender[:])
	w.uint64(e.PacketIndex)
	w.Write(e.Signature[:])
	w.WriteByte(byte(e.Message.Type()))
	if err := e.Message.marshal(&w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Type returns the type of the embedded message.
func (e *Envelope) Type() MessageType {
	return e.Message.Type()
}

// Signed returns true if the signature field is not all zeros.
func (e *Envelope) Signed() bool {
	return e.Signature != [SignatureSize]byte{}
}

// signedBytes returns the bytes a signature covers: the serialized envelope
// with the signature field zero-filled. For a parsed envelope these are the
// received bytes themselves.
func (e *Envelope) signedBytes() ([]byte, error) {
	var buff []byte
	if e.raw != nil {
		buff = make([]byte, len(e.raw))
		copy(buff, e.raw)
	} else {
		var err error
		if buff, err = e.MarshalBinary(); err != nil {
			return nil, err
		}
	}
	for i := signatureOffset; i < signatureOffset+SignatureSize; i++ {
		buff[i] = 0
	}
	return buff, nil
}

// peekSender returns the sender identifier of a datagram without parsing it.
func peekSender(b []byte) (PeerIdentifier, bool) {
	var id PeerIdentifier
	if len(b) < senderOffset+IdentifierSize {
		return id, false
	}
	copy(id[:], b[senderOffset:])
	return id, true
}
