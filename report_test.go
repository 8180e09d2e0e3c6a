package peercloud

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReportPeer(t *testing.T) {
	hub := NewTestHub()
	netA, netB := hub.NewNetwork(testPort), hub.NewNetwork(testPort)
	repA := NewReportNetwork(netA)
	a := NewReportPeer(NewPeer(repA, netA, testConfig()))
	b := NewPeer(netB, netB, testConfig())
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Join())
	require.Eventually(t, func() bool {
		return len(a.Neighbors()) == 1 && len(b.Neighbors()) == 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, a.Send([]byte("hello")))
	waitFor(t, b, UserData)

	s := a.Stats()
	// registration broadcast and one user message
	require.Equal(t, 2.0, s.Network["sentPackets"])
	// own broadcast echo and the reply of b
	require.Equal(t, 2.0, s.Network["rcvdPackets"])
	require.Greater(t, s.Network["sentBytes"], 0.0)
	require.Equal(t, uint64(2), repA.Sent())

	require.Equal(t, 1.0, s.Neighbors["neighbors"])
	require.Equal(t, 1.0, s.Neighbors["outgoingIndex"])
	require.Equal(t, 0.0, s.Neighbors["bufferedMax"])
	require.Equal(t, 1.0, s.Neighbors["dropped"])

	// b was not built on a report network
	s = NewReportPeer(b).Stats()
	require.Nil(t, s.Network)
	require.Equal(t, 1.0, s.Neighbors["neighbors"])
}

// subnets is a TestNetwork that broadcasts each datagram once per subnet.
type subnets struct {
	*TestNetwork
	count int
}

func (s *subnets) BroadcastN(port uint16, data []byte) (int, error) {
	for i := 0; i < s.count; i++ {
		if err := s.TestNetwork.Broadcast(port, data); err != nil {
			return i, err
		}
	}
	return s.count, nil
}

func TestReportNetworkFanout(t *testing.T) {
	hub := NewTestHub()
	netA := hub.NewNetwork(testPort)
	plain := NewReportNetwork(netA)
	fanout := NewReportNetwork(&subnets{netA, 3})

	data := []byte("announce")
	require.NoError(t, plain.Broadcast(testPort, data))
	require.Equal(t, uint64(1), plain.Sent())
	require.Equal(t, float64(len(data)), plain.Values()["sentBytes"])

	require.NoError(t, fanout.Broadcast(testPort, data))
	require.Equal(t, uint64(3), fanout.Sent())
	require.Equal(t, float64(3*len(data)), fanout.Values()["sentBytes"])
}
