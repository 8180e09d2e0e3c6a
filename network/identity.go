// Package network holds helpers shared by the peercloud transports.
package network

import (
	"encoding/binary"
	"net"
	"sync"

	"github.com/peercloud/peercloud"
)

// HardwareID packs a MAC address into the 8 byte hardware identity carried by
// every datagram: the address bytes are zero padded and read little endian.
// Interfaces without a hardware address, such as the loopback, map to zero.
func HardwareID(mac net.HardwareAddr) uint64 {
	var buff [8]byte
	copy(buff[:], mac)
	return binary.LittleEndian.Uint64(buff[:])
}

// Interfaces is a peercloud.LocalIdentity built from the network interfaces
// of the host. The hardware identity of a destination is the one of the
// interface the host routes it through.
type Interfaces struct {
	sync.Mutex
	byIP   map[[4]byte]uint64
	ids    map[uint64]bool
	routes map[[4]byte]uint64
	route  func(to peercloud.Endpoint) ([4]byte, error)
}

// Address binds a local IPv4 address to the hardware address of its
// interface.
type Address struct {
	IP  net.IP
	MAC net.HardwareAddr
}

// NewInterfaces reads the IPv4 addresses of every interface of the host.
func NewInterfaces() (*Interfaces, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var list []Address
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			return nil, err
		}
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				list = append(list, Address{IP: ipnet.IP, MAC: iface.HardwareAddr})
			}
		}
	}
	return NewStaticInterfaces(list), nil
}

// NewStaticInterfaces returns the identity of a host owning the given
// addresses.
func NewStaticInterfaces(addrs []Address) *Interfaces {
	i := &Interfaces{
		byIP:   make(map[[4]byte]uint64),
		ids:    make(map[uint64]bool),
		routes: make(map[[4]byte]uint64),
		route:  sourceFor,
	}
	for _, a := range addrs {
		ip4 := a.IP.To4()
		if ip4 == nil {
			continue
		}
		hw := HardwareID(a.MAC)
		i.byIP[[4]byte(ip4)] = hw
		i.ids[hw] = true
	}
	return i
}

// HardwareID implements the peercloud.LocalIdentity interface. Routes are
// resolved once per destination address.
func (i *Interfaces) HardwareID(to peercloud.Endpoint) uint64 {
	i.Lock()
	defer i.Unlock()
	if hw, ok := i.routes[to.IP]; ok {
		return hw
	}
	var hw uint64
	if src, err := i.route(to); err == nil {
		hw = i.byIP[src]
	}
	i.routes[to.IP] = hw
	return hw
}

// IsLocal implements the peercloud.LocalIdentity interface.
func (i *Interfaces) IsLocal(hw uint64) bool {
	i.Lock()
	defer i.Unlock()
	return i.ids[hw]
}

// sourceFor returns the local address the kernel picks to reach the
// endpoint. Connecting a UDP socket sends nothing on the wire.
func sourceFor(to peercloud.Endpoint) ([4]byte, error) {
	conn, err := net.DialUDP("udp4", nil, to.UDPAddr())
	if err != nil {
		return [4]byte{}, err
	}
	defer conn.Close()
	src, err := peercloud.EndpointFromUDPAddr(conn.LocalAddr().(*net.UDPAddr))
	if err != nil {
		return [4]byte{}, err
	}
	return src.IP, nil
}
