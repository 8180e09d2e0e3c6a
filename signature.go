package peercloud

import (
	"errors"
	"fmt"
)

var (
	// ErrSignatureTooLong is returned when a scheme produces a signature that
	// does not fit the envelope.
	ErrSignatureTooLong = errors.New("peercloud: signature longer than signature field")
	// ErrInvalidSignature is returned when an envelope fails verification.
	ErrInvalidSignature = errors.New("peercloud: invalid signature")
)

// PadSignature right-pads sig with zeros to SignatureSize bytes.
func PadSignature(sig []byte) ([SignatureSize]byte, error) {
	var out [SignatureSize]byte
	if len(sig) > SignatureSize {
		return out, fmt.Errorf("%w: %d bytes", ErrSignatureTooLong, len(sig))
	}
	copy(out[:], sig)
	return out, nil
}

// UnpadSignature returns the first n bytes of a padded signature and checks
// the remaining padding is all zeros, for schemes whose signatures are
// shorter than the field.
func UnpadSignature(sig []byte, n int) ([]byte, error) {
	if len(sig) < n {
		return nil, fmt.Errorf("%w: %d bytes, expected %d", ErrInvalidSignature, len(sig), n)
	}
	for _, b := range sig[n:] {
		if b != 0 {
			return nil, fmt.Errorf("%w: non zero padding", ErrInvalidSignature)
		}
	}
	return sig[:n], nil
}
