package peercloud

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
)

// RSAKeyBits is the modulus size whose PKCS#1 v1.5 signatures exactly fill
// the envelope signature field.
const RSAKeyBits = SignatureSize * 8

// ErrInvalidKey is returned when key material cannot be used by a scheme.
var ErrInvalidKey = errors.New("peercloud: invalid key")

// RSAPublicKey verifies PKCS#1 v1.5 SHA-1 signatures.
type RSAPublicKey struct {
	k *rsa.PublicKey
}

// RSASecretKey signs envelopes with PKCS#1 v1.5 over SHA-1.
type RSASecretKey struct {
	k *rsa.PrivateKey
}

// GenerateRSAKey returns a new RSA key pair whose signatures fill the
// signature field. Signatures are PKCS#1 v1.5 over the SHA-1 digest of the
// envelope.
func GenerateRSAKey(random io.Reader) (SecretKey, error) {
	if random == nil {
		random = rand.Reader
	}
	k, err := rsa.GenerateKey(random, RSAKeyBits)
	if err != nil {
		return nil, err
	}
	return &RSASecretKey{k}, nil
}

// NewRSASecretKey wraps an existing private key. Its modulus must not be
// larger than RSAKeyBits.
func NewRSASecretKey(k *rsa.PrivateKey) (SecretKey, error) {
	if k == nil || k.N.BitLen() > RSAKeyBits {
		return nil, fmt.Errorf("%w: rsa modulus must be at most %d bits", ErrInvalidKey, RSAKeyBits)
	}
	return &RSASecretKey{k}, nil
}

// NewRSAPublicKey wraps an existing public key.
func NewRSAPublicKey(k *rsa.PublicKey) (PublicKey, error) {
	if k == nil || k.N.BitLen() > RSAKeyBits {
		return nil, fmt.Errorf("%w: rsa modulus must be at most %d bits", ErrInvalidKey, RSAKeyBits)
	}
	return &RSAPublicKey{k}, nil
}

func (r *RSASecretKey) PublicKey() PublicKey {
	return &RSAPublicKey{&r.k.PublicKey}
}

func (r *RSASecretKey) Sign(msg []byte, random io.Reader) ([]byte, error) {
	if random == nil {
		random = rand.Reader
	}
	digest := sha1.Sum(msg)
	return rsa.SignPKCS1v15(random, r.k, crypto.SHA1, digest[:])
}

// MarshalPEM returns the PKCS#1 PEM encoding of the private key.
func (r *RSASecretKey) MarshalPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(r.k),
	})
}

func (r *RSAPublicKey) String() string {
	return fmt.Sprintf("rsa-%d:%x", r.k.N.BitLen(), r.k.N.Bytes()[:8])
}

func (r *RSAPublicKey) VerifySignature(msg, sig []byte) error {
	size := r.k.Size()
	sig, err := UnpadSignature(sig, size)
	if err != nil {
		return err
	}
	digest := sha1.Sum(msg)
	return rsa.VerifyPKCS1v15(r.k, crypto.SHA1, digest[:], sig)
}

// MarshalPEM returns the PKIX PEM encoding of the public key.
func (r *RSAPublicKey) MarshalPEM() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(r.k)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// ParseRSASecretKeyPEM reads a PKCS#1 PEM encoded private key.
func ParseRSASecretKeyPEM(data []byte) (SecretKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no pem block", ErrInvalidKey)
	}
	k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	return NewRSASecretKey(k)
}

// ParseRSAPublicKeyPEM reads a PKIX PEM encoded public key.
func ParseRSAPublicKeyPEM(data []byte) (PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no pem block", ErrInvalidKey)
	}
	k, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := k.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an rsa public key", ErrInvalidKey)
	}
	return NewRSAPublicKey(pub)
}
