package peercloud

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// ErrNotIPv4 is returned when an address cannot be represented on the wire.
var ErrNotIPv4 = errors.New("peercloud: endpoint is not an IPv4 address")

// Endpoint is an IPv4 address and UDP port at which a peer can be reached.
// Two endpoints are equal when both address and port match.
type Endpoint struct {
	IP   [4]byte
	Port uint16
}

// NewEndpoint returns the endpoint for the given IPv4 address and port.
func NewEndpoint(ip net.IP, port uint16) (Endpoint, error) {
	ip4 := ip.To4()
	if ip4 == nil {
		return Endpoint{}, fmt.Errorf("%w: %s", ErrNotIPv4, ip)
	}
	var e Endpoint
	copy(e.IP[:], ip4)
	e.Port = port
	return e, nil
}

// EndpointFromUDPAddr converts a UDP address into an Endpoint.
func EndpointFromUDPAddr(addr *net.UDPAddr) (Endpoint, error) {
	if addr == nil {
		return Endpoint{}, ErrNotIPv4
	}
	return NewEndpoint(addr.IP, uint16(addr.Port))
}

// EndpointFromAddrPort converts a netip.AddrPort into an Endpoint. IPv4-mapped
// IPv6 addresses are unmapped first.
func EndpointFromAddrPort(ap netip.AddrPort) (Endpoint, error) {
	addr := ap.Addr().Unmap()
	if !addr.Is4() {
		return Endpoint{}, fmt.Errorf("%w: %s", ErrNotIPv4, addr)
	}
	return Endpoint{IP: addr.As4(), Port: ap.Port()}, nil
}

// ParseEndpoint parses a "host:port" string where host is an IPv4 literal.
func ParseEndpoint(s string) (Endpoint, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return Endpoint{}, err
	}
	return EndpointFromAddrPort(ap)
}

// UDPAddr returns the endpoint as a *net.UDPAddr.
func (e Endpoint) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(e.IP[0], e.IP[1], e.IP[2], e.IP[3]), Port: int(e.Port)}
}

// AddrPort returns the endpoint as a netip.AddrPort.
func (e Endpoint) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom4(e.IP), e.Port)
}

func (e Endpoint) String() string {
	return e.AddrPort().String()
}

// EndpointSet is an append-only set of endpoints. Iteration follows insertion
// order so the serialized form of a set is deterministic. The zero value is
// an empty set ready to use. It is not safe for concurrent use.
type EndpointSet struct {
	list []Endpoint
	idx  map[Endpoint]struct{}
}

// NewEndpointSet returns a set holding the given endpoints, duplicates
// removed.
func NewEndpointSet(eps ...Endpoint) *EndpointSet {
	s := new(EndpointSet)
	for _, e := range eps {
		s.Add(e)
	}
	return s
}

// Add inserts the endpoint and returns true if it was not already present.
func (s *EndpointSet) Add(e Endpoint) bool {
	if s.idx == nil {
		s.idx = make(map[Endpoint]struct{})
	}
	if _, ok := s.idx[e]; ok {
		return false
	}
	s.idx[e] = struct{}{}
	s.list = append(s.list, e)
	return true
}

// Contains returns true if the endpoint is in the set.
func (s *EndpointSet) Contains(e Endpoint) bool {
	if s == nil {
		return false
	}
	_, ok := s.idx[e]
	return ok
}

// Len returns the number of endpoints.
func (s *EndpointSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.list)
}

// Slice returns a copy of the endpoints in insertion order.
func (s *EndpointSet) Slice() []Endpoint {
	if s == nil {
		return nil
	}
	out := make([]Endpoint, len(s.list))
	copy(out, s.list)
	return out
}

func (s *EndpointSet) String() string {
	if s == nil {
		return "{}"
	}
	strs := make([]string, len(s.list))
	for i, e := range s.list {
		strs[i] = e.String()
	}
	return "{" + strings.Join(strs, ",") + "}"
}
