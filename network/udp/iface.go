package udp

import (
	"net"

	"github.com/peercloud/peercloud"
)

var limitedBroadcast = net.IPv4bcast.To4()

// localEndpoints returns the bound endpoint, or one endpoint per local IPv4
// address when the socket listens on the wildcard address.
func localEndpoints(ip net.IP, bound peercloud.Endpoint) []peercloud.Endpoint {
	if ip != nil && !ip.IsUnspecified() {
		return []peercloud.Endpoint{bound}
	}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return []peercloud.Endpoint{bound}
	}
	set := peercloud.NewEndpointSet()
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if e, err := peercloud.NewEndpoint(ipnet.IP, bound.Port); err == nil {
			set.Add(e)
		}
	}
	if set.Len() == 0 {
		return []peercloud.Endpoint{bound}
	}
	return set.Slice()
}

// broadcastAddrs lists the directed broadcast address of every IPv4 subnet of
// the interfaces that are up and support broadcast, followed by the limited
// broadcast address.
func broadcastAddrs() []net.IP {
	var out []net.IP
	seen := make(map[string]bool)
	ifaces, _ := net.Interfaces()
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagBroadcast == 0 {
			continue
		}
		if iface.Flags&(net.FlagLoopback|net.FlagPointToPoint) != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			b := directedBroadcast(ipnet)
			if b == nil || seen[b.String()] {
				continue
			}
			seen[b.String()] = true
			out = append(out, b)
		}
	}
	return append(out, limitedBroadcast)
}

// directedBroadcast returns the broadcast address of an IPv4 subnet, nil for
// IPv6 subnets.
func directedBroadcast(n *net.IPNet) net.IP {
	ip := n.IP.To4()
	if ip == nil || len(n.Mask) != net.IPv4len {
		return nil
	}
	b := make(net.IP, net.IPv4len)
	for i := range ip {
		b[i] = ip[i] | ^n.Mask[i]
	}
	return b
}
