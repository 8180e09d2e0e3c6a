// Package bn256 allows peercloud envelopes to be authenticated with the BLS
// signature scheme over the BN256 groups. It implements the peercloud
// SecretKey and PublicKey interfaces. Signatures are points on G1 whose 64
// byte encoding is zero padded inside the envelope signature field. The BN256
// implementation comes from the cloudflare/bn256 package, including the base
// points.
package bn256

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"math/big"

	"github.com/cloudflare/bn256"
	"github.com/peercloud/peercloud"
)

// SignatureSize is the length of a marshalled G1 point.
const SignatureSize = 64

// Hash is the hash function used to hash the message prior to signing
var Hash = sha256.New

// G2Base is the base point specified for the G2 group. If one wants to use a
// different point, set this variable before using any public methods / structs
// of this package.
var G2Base *bn256.G2

func init() {
	G2Base = new(bn256.G2).ScalarBaseMult(big.NewInt(1))
}

// PublicKey holds the public key information = point in G2
type PublicKey struct {
	p *bn256.G2
}

// String returns the hex encoded sha256 digest of the marshalled key.
func (p *PublicKey) String() string {
	buff, _ := p.MarshalBinary()
	s := sha256.Sum256(buff)
	return "bn256:" + hex.EncodeToString(s[:8])
}

// VerifySignature checks the given BLS signature on the message m using the
// public key p by verifying that the equality e(H(m), X) == e(H(m), x*B2) ==
// e(x*H(m), B2) == e(S, B2) holds where e is the pairing operation and B2 is
// the base point from curve G2.
func (p *PublicKey) VerifySignature(msg, sig []byte) error {
	raw, err := peercloud.UnpadSignature(sig, SignatureSize)
	if err != nil {
		return err
	}
	s := new(bn256.G1)
	if _, err := s.Unmarshal(raw); err != nil {
		return errors.New("bn256: signature can't unmarshal: " + err.Error())
	}
	hm := hashedMessage(msg)
	leftPair := bn256.Pair(hm, p.p).Marshal()
	rightPair := bn256.Pair(s, G2Base).Marshal()
	if !bytes.Equal(leftPair, rightPair) {
		return errors.New("bn256: signature invalid")
	}
	return nil
}

// MarshalBinary returns the encoding of the G2 point.
func (p *PublicKey) MarshalBinary() ([]byte, error) {
	if p.p == nil {
		return nil, errors.New("bn256: empty public key")
	}
	return p.p.Marshal(), nil
}

// UnmarshalBinary reads a G2 point.
func (p *PublicKey) UnmarshalBinary(buff []byte) error {
	p.p = new(bn256.G2)
	_, err := p.p.Unmarshal(buff)
	return err
}

// SecretKey holds the secret scalar and can return the corresponding public
// key. It can sign messages using the BLS signature scheme.
type SecretKey struct {
	s   *big.Int
	pub *PublicKey
}

// NewKeyPair returns a new keypair generated from the given reader.
func NewKeyPair(reader io.Reader) (*SecretKey, error) {
	if reader == nil {
		reader = rand.Reader
	}
	secret, public, err := bn256.RandomG2(reader)
	if err != nil {
		return nil, err
	}
	return &SecretKey{s: secret, pub: &PublicKey{public}}, nil
}

// PublicKey implements the peercloud.SecretKey interface.
func (s *SecretKey) PublicKey() peercloud.PublicKey {
	return s.pub
}

// Sign creates a BLS signature S = x * H(m) on a message m using the private
// key x. The signature S is a point on curve G1. BLS signatures are
// deterministic, the reader is not used.
func (s *SecretKey) Sign(msg []byte, _ io.Reader) ([]byte, error) {
	p := new(bn256.G1).ScalarMult(hashedMessage(msg), s.s)
	return p.Marshal(), nil
}

// MarshalBinary returns the big-endian bytes of the secret scalar.
func (s *SecretKey) MarshalBinary() ([]byte, error) {
	return s.s.Bytes(), nil
}

// UnmarshalBinary reads the secret scalar and recomputes the public key.
func (s *SecretKey) UnmarshalBinary(buff []byte) error {
	if len(buff) == 0 {
		return errors.New("bn256: empty secret key")
	}
	s.s = new(big.Int).SetBytes(buff)
	s.pub = &PublicKey{new(bn256.G2).ScalarMult(G2Base, s.s)}
	return nil
}

// hashedMessage returns the message hashed to G1
// XXX: this should be fixed as to have a method that maps a message
// (potentially a digest) to a point WITHOUT knowing the corresponding scalar.
func hashedMessage(msg []byte) *bn256.G1 {
	h := Hash()
	h.Write(msg)
	k := new(big.Int).SetBytes(h.Sum(nil))
	k.Mod(k, bn256.Order)
	return new(bn256.G1).ScalarBaseMult(k)
}
