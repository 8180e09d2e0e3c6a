// Package udp implements the peercloud Network interface on top of a single
// UDP socket. The same socket is used to receive, to send unicast datagrams
// and to broadcast registration announces on every local subnet.
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/peercloud/peercloud"
)

// MaxDatagramSize is the largest UDP payload the network reads.
const MaxDatagramSize = 65507

var _ peercloud.Fanout = (*Network)(nil)

// Network is a peercloud.Network implementation using UDP as its transport
// layer.
type Network struct {
	sync.RWMutex
	conn      *net.UDPConn
	bound     peercloud.Endpoint
	local     []peercloud.Endpoint
	listeners []peercloud.Listener
	logger    peercloud.Logger
	closed    bool
	done      chan struct{}
}

// NewNetwork binds a UDP socket on the given "ip:port" address. When the port
// is already taken, the socket is bound to an ephemeral port on the same ip
// instead. A nil logger disables logging.
func NewNetwork(addr string, logger peercloud.Logger) (*Network, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = peercloud.NopLogger
	}
	conn, err := listen(udpAddr.IP, udpAddr.Port)
	if err != nil && udpAddr.Port != 0 {
		logger.Warn("event", "bind", "addr", addr, "err", err, "fallback", "ephemeral")
		conn, err = listen(udpAddr.IP, 0)
	}
	if err != nil {
		return nil, err
	}

	bound, err := peercloud.EndpointFromUDPAddr(conn.LocalAddr().(*net.UDPAddr))
	if err != nil {
		conn.Close()
		return nil, err
	}
	udpNet := &Network{
		conn:   conn,
		bound:  bound,
		logger: logger.With("udp", bound.String()),
		done:   make(chan struct{}),
	}
	udpNet.local = localEndpoints(udpAddr.IP, bound)
	go udpNet.handler()
	return udpNet, nil
}

func listen(ip net.IP, port int) (*net.UDPConn, error) {
	host := ""
	if ip != nil {
		host = ip.String()
	}
	lc := net.ListenConfig{Control: control}
	pc, err := lc.ListenPacket(context.Background(), "udp4", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	return pc.(*net.UDPConn), nil
}

// Endpoint returns the address the socket is bound to.
func (udpNet *Network) Endpoint() peercloud.Endpoint {
	return udpNet.bound
}

// RegisterListener registers listener for processing incoming datagrams
func (udpNet *Network) RegisterListener(listener peercloud.Listener) {
	udpNet.Lock()
	defer udpNet.Unlock()
	udpNet.listeners = append(udpNet.listeners, listener)
}

// Send sends the datagram to the given endpoint.
func (udpNet *Network) Send(to peercloud.Endpoint, data []byte) error {
	_, err := udpNet.conn.WriteToUDPAddrPort(data, to.AddrPort())
	return err
}

// Broadcast sends the datagram to the given port on the broadcast address of
// every local subnet and on the limited broadcast address. It only fails when
// none of the destinations could be written to.
func (udpNet *Network) Broadcast(port uint16, data []byte) error {
	_, err := udpNet.BroadcastN(port, data)
	return err
}

// BroadcastN is like Broadcast and returns the number of datagrams written.
func (udpNet *Network) BroadcastN(port uint16, data []byte) (int, error) {
	var errs []error
	sent := 0
	for _, ip := range broadcastAddrs() {
		to, err := peercloud.NewEndpoint(ip, port)
		if err != nil {
			continue
		}
		if err := udpNet.Send(to, data); err != nil {
			udpNet.logger.Debug("event", "broadcast", "to", to.String(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", to, err))
			continue
		}
		sent++
	}
	if sent == 0 {
		return 0, errors.Join(errs...)
	}
	return sent, nil
}

// LocalEndpoints returns the endpoints the socket receives on. A socket bound
// to the wildcard address receives on every local IPv4 address.
func (udpNet *Network) LocalEndpoints() []peercloud.Endpoint {
	out := make([]peercloud.Endpoint, len(udpNet.local))
	copy(out, udpNet.local)
	return out
}

// Close stops the receiving goroutine and closes the socket.
func (udpNet *Network) Close() error {
	udpNet.Lock()
	if udpNet.closed {
		udpNet.Unlock()
		return nil
	}
	udpNet.closed = true
	udpNet.Unlock()
	err := udpNet.conn.Close()
	<-udpNet.done
	return err
}

func (udpNet *Network) handler() {
	defer close(udpNet.done)
	buff := make([]byte, MaxDatagramSize)
	for {
		n, addr, err := udpNet.conn.ReadFromUDPAddrPort(buff)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			udpNet.logger.Warn("event", "read", "err", err)
			continue
		}
		from, err := peercloud.EndpointFromAddrPort(addr)
		if err != nil {
			udpNet.logger.Debug("event", "read", "from", addr.String(), "err", err)
			continue
		}
		udpNet.dispatch(buff[:n], from)
	}
}

func (udpNet *Network) dispatch(data []byte, from peercloud.Endpoint) {
	udpNet.RLock()
	defer udpNet.RUnlock()
	for _, listener := range udpNet.listeners {
		listener.NewDatagram(data, from)
	}
}
