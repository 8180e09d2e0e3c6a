package peercloud

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func mkEndpoint(a, b, c, d byte, port uint16) Endpoint {
	return Endpoint{IP: [4]byte{a, b, c, d}, Port: port}
}

func fakeID(b byte) PeerIdentifier {
	var id PeerIdentifier
	for i := range id {
		id[i] = b
	}
	return id
}

func requireSameEnvelope(t *testing.T, exp, got *Envelope) {
	require.Equal(t, exp.HardwareID, got.HardwareID)
	require.Equal(t, exp.Sender, got.Sender)
	require.Equal(t, exp.PacketIndex, got.PacketIndex)
	require.Equal(t, exp.Signature, got.Signature)
	require.Equal(t, exp.Type(), got.Type())
	switch m := exp.Message.(type) {
	case *AnnounceRegistration:
		require.Equal(t, m.Endpoints.Slice(), got.Message.(*AnnounceRegistration).Endpoints.Slice())
	case *AnnounceLeaving:
		require.Equal(t, m.Endpoints.Slice(), got.Message.(*AnnounceLeaving).Endpoints.Slice())
	case *ReplyRegistration:
		r := got.Message.(*ReplyRegistration)
		require.Equal(t, m.Endpoints.Slice(), r.Endpoints.Slice())
		require.Len(t, r.Neighbors, len(m.Neighbors))
		for i, n := range m.Neighbors {
			require.Equal(t, n.ID, r.Neighbors[i].ID)
			require.Equal(t, n.Endpoints.Slice(), r.Neighbors[i].Endpoints.Slice())
		}
	case *UserMessage:
		u := got.Message.(*UserMessage)
		require.True(t, bytes.Equal(m.Data, u.Data))
		require.Equal(t, m.FragmentCount, u.FragmentCount)
		require.Equal(t, m.FragmentIndex, u.FragmentIndex)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	eps := NewEndpointSet(mkEndpoint(192, 168, 1, 10, 21000), mkEndpoint(10, 0, 0, 1, 65535))
	var sig [SignatureSize]byte
	sig[0], sig[127] = 0xaa, 0xbb

	var tests = []*Envelope{
		{Message: &AnnounceRegistration{Endpoints: NewEndpointSet()}},
		{HardwareID: 0x0102030405060708, Sender: fakeID(1), Message: &AnnounceRegistration{Endpoints: eps}},
		{Sender: fakeID(2), Signature: sig, Message: &AnnounceLeaving{Endpoints: eps}},
		{Sender: fakeID(3), Message: &ReplyRegistration{Endpoints: NewEndpointSet()}},
		{Sender: fakeID(3), PacketIndex: 42, Message: &ReplyRegistration{
			Endpoints: eps,
			Neighbors: []NeighborInfo{
				{ID: fakeID(4), Endpoints: NewEndpointSet(mkEndpoint(1, 2, 3, 4, 5))},
				{ID: fakeID(5), Endpoints: NewEndpointSet()},
			},
		}},
		{Sender: fakeID(6), PacketIndex: 1, Message: &UserMessage{Data: []byte{0x42}, FragmentCount: 1}},
		{Sender: fakeID(6), PacketIndex: 1, Message: &UserMessage{Data: []byte{}, FragmentCount: 1}},
		{Sender: fakeID(6), PacketIndex: ^uint64(0), Message: &UserMessage{Data: []byte("hello"), FragmentCount: 3, FragmentIndex: 2}},
	}
	for i, e := range tests {
		t.Logf(" -- test %d -- ", i)
		buff, err := e.MarshalBinary()
		require.NoError(t, err)
		got, err := ParseEnvelope(buff)
		require.NoError(t, err)
		requireSameEnvelope(t, e, got)

		// serialization is the exact inverse of parsing
		buff2, err := got.MarshalBinary()
		require.NoError(t, err)
		require.Equal(t, buff, buff2)
	}
}

func TestEnvelopeLayout(t *testing.T) {
	e := &Envelope{
		HardwareID:  1,
		Sender:      fakeID(0xee),
		PacketIndex: 2,
		Message:     &UserMessage{Data: []byte{0xff}, FragmentCount: 1},
	}
	buff, err := e.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, HeaderSize+2+4+1, len(buff))
	require.Equal(t, byte(Version), buff[0])
	require.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0}, buff[1:9])
	require.Equal(t, bytes.Repeat([]byte{0xee}, IdentifierSize), buff[senderOffset:senderOffset+IdentifierSize])
	require.Equal(t, []byte{2, 0, 0, 0, 0, 0, 0, 0}, buff[25:33])
	require.Equal(t, make([]byte, SignatureSize), buff[signatureOffset:signatureOffset+SignatureSize])
	require.Equal(t, byte(TypeUserMessage), buff[HeaderSize-1])
	// count, no index, length, payload
	require.Equal(t, []byte{1, 0, 1, 0, 0, 0, 0xff}, buff[HeaderSize:])

	e.Message = &AnnounceRegistration{Endpoints: NewEndpointSet(mkEndpoint(192, 168, 0, 1, 0x1234))}
	buff, err = e.MarshalBinary()
	require.NoError(t, err)
	// addresses in network order, port little-endian
	require.Equal(t, []byte{1, 0, 192, 168, 0, 1, 0x34, 0x12}, buff[HeaderSize:])
}

func TestEnvelopeDuplicateEndpoints(t *testing.T) {
	e := &Envelope{Message: &AnnounceRegistration{Endpoints: NewEndpointSet()}}
	buff, err := e.MarshalBinary()
	require.NoError(t, err)
	// two copies of the same endpoint
	buff = buff[:HeaderSize]
	buff = append(buff, 2, 0, 10, 0, 0, 1, 1, 0, 10, 0, 0, 1, 1, 0)
	got, err := ParseEnvelope(buff)
	require.NoError(t, err)
	require.Equal(t, 1, got.Message.(*AnnounceRegistration).Endpoints.Len())
}

func TestEnvelopeTrailingBytes(t *testing.T) {
	e := &Envelope{Message: &UserMessage{Data: []byte{1, 2}, FragmentCount: 1}}
	buff, err := e.MarshalBinary()
	require.NoError(t, err)
	got, err := ParseEnvelope(append(buff, 0xde, 0xad))
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, got.Message.(*UserMessage).Data)
}

func TestEnvelopeParseErrors(t *testing.T) {
	valid := func(m Message) []byte {
		buff, err := (&Envelope{Sender: fakeID(1), Message: m}).MarshalBinary()
		require.NoError(t, err)
		return buff
	}
	header := func(mt MessageType) []byte {
		buff := valid(&AnnounceRegistration{})
		buff = buff[:HeaderSize]
		buff[HeaderSize-1] = byte(mt)
		return buff
	}
	withPayload := func(mt MessageType, payload ...byte) []byte {
		return append(header(mt), payload...)
	}
	badVersion := valid(&AnnounceRegistration{})
	badVersion[0] = 2

	var tests = []struct {
		in  []byte
		err error
	}{
		{nil, ErrTruncated},
		{[]byte{Version}, ErrTruncated},
		{badVersion, ErrUnsupportedVersion},
		{header(0x03), ErrUnsupportedType},
		{header(0x7f), ErrUnsupportedType},
		// endpoint count announces more than is available
		{withPayload(TypeAnnounceRegistration, 2, 0, 1, 2, 3, 4, 5, 6), ErrTruncated},
		{withPayload(TypeAnnounceLeaving, 1), ErrTruncated},
		{withPayload(TypeReplyRegistration, 0, 0), ErrTruncated},
		{withPayload(TypeReplyRegistration, 0, 0, 1, 0), ErrTruncated},
		{withPayload(TypeUserMessage, 0, 0, 0, 0, 0, 0), ErrZeroFragmentCount},
		{withPayload(TypeUserMessage, 2, 0, 2, 0, 0, 0, 0, 0), ErrFragmentIndex},
		{withPayload(TypeUserMessage, 2, 0), ErrTruncated},
		{withPayload(TypeUserMessage, 1, 0, 5, 0, 0, 0, 1, 2), ErrTruncated},
		{withPayload(TypeUserMessage, 1, 0, 0xff, 0xff, 0xff, 0xff), ErrTruncated},
	}
	for i, test := range tests {
		t.Logf(" -- test %d -- ", i)
		_, err := ParseEnvelope(test.in)
		require.ErrorIs(t, err, test.err)
	}
}

func TestEnvelopeTruncatedAtEveryByte(t *testing.T) {
	e := &Envelope{
		HardwareID: 7,
		Sender:     fakeID(9),
		Message: &ReplyRegistration{
			Endpoints: NewEndpointSet(mkEndpoint(1, 1, 1, 1, 1)),
			Neighbors: []NeighborInfo{{ID: fakeID(8), Endpoints: NewEndpointSet(mkEndpoint(2, 2, 2, 2, 2))}},
		},
	}
	buff, err := e.MarshalBinary()
	require.NoError(t, err)
	for i := 0; i < len(buff); i++ {
		_, err := ParseEnvelope(buff[:i])
		require.ErrorIs(t, err, ErrTruncated, "length %d", i)
	}
}

func TestEnvelopeMarshalErrors(t *testing.T) {
	var tests = []struct {
		m   Message
		err error
	}{
		{&UserMessage{Data: []byte{1}}, ErrZeroFragmentCount},
		{&UserMessage{Data: []byte{1}, FragmentCount: 2, FragmentIndex: 2}, ErrFragmentIndex},
		{&ReplyRegistration{Neighbors: make([]NeighborInfo, 1<<16)}, ErrTooManyNeighbors},
	}
	for _, test := range tests {
		_, err := (&Envelope{Message: test.m}).MarshalBinary()
		require.ErrorIs(t, err, test.err)
	}

	eps := new(EndpointSet)
	for i := 0; i < 1<<16; i++ {
		eps.Add(mkEndpoint(10, byte(i>>8), byte(i), 1, 1))
	}
	_, err := (&Envelope{Message: &AnnounceRegistration{Endpoints: eps}}).MarshalBinary()
	require.ErrorIs(t, err, ErrTooManyEndpoints)

	_, err = (&Envelope{}).MarshalBinary()
	require.Error(t, err)
}

func TestPeekSender(t *testing.T) {
	buff, err := (&Envelope{Sender: fakeID(3), Message: &AnnounceLeaving{}}).MarshalBinary()
	require.NoError(t, err)
	id, ok := peekSender(buff)
	require.True(t, ok)
	require.Equal(t, fakeID(3), id)

	_, ok = peekSender(buff[:senderOffset+IdentifierSize-1])
	require.False(t, ok)
}

func TestMessageTypeString(t *testing.T) {
	require.Equal(t, "user_message", TypeUserMessage.String())
	require.Equal(t, "unknown(0x03)", MessageType(3).String())
}
