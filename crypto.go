package peercloud

import (
	"fmt"
	"io"
)

// SignEnvelope signs the envelope with the given key: the signature field is
// zero-filled, the envelope serialized, and the resulting signature stored in
// the field. Any bytes the envelope was parsed from are discarded.
func SignEnvelope(e *Envelope, sk SecretKey, rand io.Reader) error {
	e.raw = nil
	e.Signature = [SignatureSize]byte{}
	msg, err := e.MarshalBinary()
	if err != nil {
		return err
	}
	sig, err := sk.Sign(msg, rand)
	if err != nil {
		return err
	}
	e.Signature, err = PadSignature(sig)
	return err
}

// VerifyEnvelope verifies the envelope signature under the given public key.
// The signature covers the envelope bytes with the signature field
// zero-filled. A nil key accepts every envelope: the protocol then runs
// unauthenticated.
func VerifyEnvelope(e *Envelope, pk PublicKey) error {
	if pk == nil {
		return nil
	}
	msg, err := e.signedBytes()
	if err != nil {
		return err
	}
	if err := pk.VerifySignature(msg, e.Signature[:]); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}
	return nil
}
