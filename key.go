package peercloud

import "io"

// PublicKey verifies signatures produced by the corresponding SecretKey.
type PublicKey interface {
	String() string
	// VerifySignature returns nil if sig is a valid signature of msg. The
	// signature is given as found in the envelope, i.e. zero padded to
	// SignatureSize bytes.
	VerifySignature(msg, sig []byte) error
}

// SecretKey holds methods to produce a valid signature that can be verified
// under the corresponding public key.
type SecretKey interface {
	PublicKey() PublicKey
	// Sign returns a signature over the given message and using the reader for
	// any randomness necessary, if any. The rand argument can be left nil. The
	// signature must not be longer than SignatureSize bytes.
	Sign(msg []byte, rand io.Reader) ([]byte, error)
}
