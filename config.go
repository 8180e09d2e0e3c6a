package peercloud

import (
	"crypto/rand"
	"io"
	"runtime"
)

// Config holds the different parameters used to configure a Peer.
type Config struct {
	// Port is the UDP port peers listen on. Registrations are broadcast to it.
	// If not specified, DefaultPort is used.
	Port uint16

	// AllowLoopback disables the filtering of datagrams sent from a local
	// interface. It is needed to run several peers on the same host. Datagrams
	// carrying the peer's own identifier are dropped regardless.
	AllowLoopback bool

	// SecretKey signs every outgoing envelope when set.
	SecretKey SecretKey

	// PublicKey verifies every incoming envelope when set. Peers of a cloud
	// share one key pair; leaving it nil runs the protocol unauthenticated.
	PublicKey PublicKey

	// FragmentSize is the maximum number of user bytes carried by a single
	// datagram. Larger payloads are split into several fragments. If not
	// specified, DefaultFragmentSize is used.
	FragmentSize int

	// Workers is the number of goroutines processing incoming datagrams. The
	// datagrams of a given sender are always handled by the same worker. If
	// not specified, the number of CPUs is used.
	Workers int

	// QueueSize is the capacity of the queue of each worker. Datagrams
	// arriving while the queue is full are dropped.
	QueueSize int

	// EventBuffer is the capacity of the channel returned by Peer.Events.
	EventBuffer int

	// MaxBuffered caps the out-of-order buffer of each neighbor. 0 means no
	// limit: a lost datagram then grows the buffer with every later one.
	MaxBuffered int

	// StrictOrdering makes every neighbor expect packet index 1 first. By
	// default the first user packet received from a neighbor sets its
	// sequence instead, which lets a peer join a cloud that already
	// exchanged messages.
	StrictOrdering bool

	// Logger used by the peer. DefaultLogger if not specified.
	Logger Logger

	// Rand is the source of randomness handed to SecretKey.Sign.
	Rand io.Reader
}

// DefaultPort is the port registrations are broadcast to by default.
const DefaultPort = 21000

// DefaultFragmentSize keeps a fragment and its headers inside a typical
// ethernet MTU.
const DefaultFragmentSize = 1200

// MaxFragmentSize is the largest fragment that fits a UDP datagram along with
// the envelope headers.
const MaxFragmentSize = 65507 - HeaderSize - 8

// DefaultQueueSize is the default capacity of each worker queue.
const DefaultQueueSize = 256

// DefaultEventBuffer is the default capacity of the event channel.
const DefaultEventBuffer = 64

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:         DefaultPort,
		FragmentSize: DefaultFragmentSize,
		Workers:      runtime.NumCPU(),
		QueueSize:    DefaultQueueSize,
		EventBuffer:  DefaultEventBuffer,
		Logger:       DefaultLogger,
		Rand:         rand.Reader,
	}
}

func mergeWithDefault(c *Config) *Config {
	c2 := *c
	d := DefaultConfig()
	if c.Port == 0 {
		c2.Port = d.Port
	}
	if c.FragmentSize <= 0 || c.FragmentSize > MaxFragmentSize {
		c2.FragmentSize = d.FragmentSize
	}
	if c.Workers <= 0 {
		c2.Workers = d.Workers
	}
	if c.QueueSize <= 0 {
		c2.QueueSize = d.QueueSize
	}
	if c.EventBuffer <= 0 {
		c2.EventBuffer = d.EventBuffer
	}
	if c.MaxBuffered < 0 {
		c2.MaxBuffered = 0
	}
	if c.Logger == nil {
		c2.Logger = d.Logger
	}
	if c.Rand == nil {
		c2.Rand = d.Rand
	}
	return &c2
}
