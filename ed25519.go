package peercloud

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/ed25519"
)

// Ed25519PublicKey verifies Ed25519 signatures.
type Ed25519PublicKey struct {
	k ed25519.PublicKey
}

// Ed25519SecretKey signs envelopes with Ed25519.
type Ed25519SecretKey struct {
	k ed25519.PrivateKey
}

// GenerateEd25519Key returns a new Ed25519 key pair. Its 64-byte signatures
// are zero padded inside the signature field.
func GenerateEd25519Key(random io.Reader) (SecretKey, error) {
	if random == nil {
		random = rand.Reader
	}
	_, priv, err := ed25519.GenerateKey(random)
	if err != nil {
		return nil, err
	}
	return &Ed25519SecretKey{priv}, nil
}

// NewEd25519SecretKey returns the key pair derived from a 32-byte seed.
func NewEd25519SecretKey(seed []byte) (SecretKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: ed25519 seed must be %d bytes", ErrInvalidKey, ed25519.SeedSize)
	}
	return &Ed25519SecretKey{ed25519.NewKeyFromSeed(seed)}, nil
}

// NewEd25519PublicKey wraps a raw 32-byte public key.
func NewEd25519PublicKey(raw []byte) (PublicKey, error) {
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: ed25519 public key must be %d bytes", ErrInvalidKey, ed25519.PublicKeySize)
	}
	return &Ed25519PublicKey{ed25519.PublicKey(raw)}, nil
}

func (e *Ed25519SecretKey) PublicKey() PublicKey {
	return &Ed25519PublicKey{e.k.Public().(ed25519.PublicKey)}
}

// Sign ignores the reader: Ed25519 signatures are deterministic.
func (e *Ed25519SecretKey) Sign(msg []byte, _ io.Reader) ([]byte, error) {
	return ed25519.Sign(e.k, msg), nil
}

// Seed returns the 32-byte seed the key was derived from.
func (e *Ed25519SecretKey) Seed() []byte {
	return e.k.Seed()
}

func (e *Ed25519PublicKey) String() string {
	return "ed25519:" + hex.EncodeToString(e.k)
}

func (e *Ed25519PublicKey) VerifySignature(msg, sig []byte) error {
	sig, err := UnpadSignature(sig, ed25519.SignatureSize)
	if err != nil {
		return err
	}
	if !ed25519.Verify(e.k, msg, sig) {
		return errors.New("ed25519: signature invalid")
	}
	return nil
}

// Bytes returns the raw public key.
func (e *Ed25519PublicKey) Bytes() []byte {
	return []byte(e.k)
}
