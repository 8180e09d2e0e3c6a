package peercloud

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func signedEnvelope(t *testing.T, sk SecretKey) []byte {
	e := &Envelope{
		HardwareID:  3,
		Sender:      fakeID(7),
		PacketIndex: 12,
		Message:     &UserMessage{Data: []byte("hello world"), FragmentCount: 1},
	}
	require.NoError(t, SignEnvelope(e, sk, rand.Reader))
	require.True(t, e.Signed())
	buff, err := e.MarshalBinary()
	require.NoError(t, err)
	return buff
}

func TestEnvelopeSignatureSchemes(t *testing.T) {
	rsaKey, err := GenerateRSAKey(rand.Reader)
	require.NoError(t, err)
	edKey, err := GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)
	otherKey, err := GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)

	for _, sk := range []SecretKey{rsaKey, edKey} {
		t.Logf(" -- scheme %s -- ", sk.PublicKey())
		buff := signedEnvelope(t, sk)
		pk := sk.PublicKey()

		e, err := ParseEnvelope(buff)
		require.NoError(t, err)
		require.NoError(t, VerifyEnvelope(e, pk))
		require.NoError(t, VerifyEnvelope(e, nil))

		// payload tampering
		tampered := append([]byte{}, buff...)
		tampered[len(tampered)-1] ^= 0x01
		e, err = ParseEnvelope(tampered)
		require.NoError(t, err)
		require.ErrorIs(t, VerifyEnvelope(e, pk), ErrInvalidSignature)
		// unauthenticated mode accepts it
		require.NoError(t, VerifyEnvelope(e, nil))

		// header tampering
		tampered = append([]byte{}, buff...)
		tampered[1] ^= 0x01
		e, err = ParseEnvelope(tampered)
		require.NoError(t, err)
		require.ErrorIs(t, VerifyEnvelope(e, pk), ErrInvalidSignature)

		// wrong key
		e, err = ParseEnvelope(buff)
		require.NoError(t, err)
		require.ErrorIs(t, VerifyEnvelope(e, otherKey.PublicKey()), ErrInvalidSignature)
	}
}

func TestRSASignatureFillsField(t *testing.T) {
	sk, err := GenerateRSAKey(rand.Reader)
	require.NoError(t, err)
	sig, err := sk.Sign([]byte("msg"), rand.Reader)
	require.NoError(t, err)
	require.Len(t, sig, SignatureSize)
	require.NoError(t, sk.PublicKey().VerifySignature([]byte("msg"), sig))
}

func TestRSAKeyPEM(t *testing.T) {
	sk, err := GenerateRSAKey(rand.Reader)
	require.NoError(t, err)
	rsk := sk.(*RSASecretKey)

	secretPEM := rsk.MarshalPEM()
	sk2, err := ParseRSASecretKeyPEM(secretPEM)
	require.NoError(t, err)
	publicPEM, err := rsk.PublicKey().(*RSAPublicKey).MarshalPEM()
	require.NoError(t, err)
	pk2, err := ParseRSAPublicKeyPEM(publicPEM)
	require.NoError(t, err)

	sig, err := sk2.Sign([]byte("msg"), rand.Reader)
	require.NoError(t, err)
	require.NoError(t, pk2.VerifySignature([]byte("msg"), sig))

	_, err = ParseRSASecretKeyPEM([]byte("not a pem"))
	require.Error(t, err)
}

func TestEd25519Padding(t *testing.T) {
	seed := bytes.Repeat([]byte{1}, 32)
	sk, err := NewEd25519SecretKey(seed)
	require.NoError(t, err)
	require.Equal(t, seed, sk.(*Ed25519SecretKey).Seed())

	sig, err := sk.Sign([]byte("msg"), nil)
	require.NoError(t, err)
	padded, err := PadSignature(sig)
	require.NoError(t, err)
	pk := sk.PublicKey()
	require.NoError(t, pk.VerifySignature([]byte("msg"), padded[:]))

	padded[SignatureSize-1] = 1
	require.ErrorIs(t, pk.VerifySignature([]byte("msg"), padded[:]), ErrInvalidSignature)

	pk2, err := NewEd25519PublicKey(pk.(*Ed25519PublicKey).Bytes())
	require.NoError(t, err)
	require.Equal(t, pk.String(), pk2.String())

	_, err = NewEd25519SecretKey([]byte{1})
	require.ErrorIs(t, err, ErrInvalidKey)
	_, err = PadSignature(make([]byte, SignatureSize+1))
	require.ErrorIs(t, err, ErrSignatureTooLong)
}
