//go:build !unix

package udp

import "syscall"

func control(network, address string, c syscall.RawConn) error {
	return nil
}
