//go:build !unix

package udp

import (
	"errors"
	"net"
)

var errUnsupported = errors.New("non-blocking UDP not supported on this platform")

func recvNonBlocking(fd uintptr, buf []byte) (int, error) {
	return 0, errUnsupported
}

func sendNonBlocking(fd uintptr, pkt []byte, peer *net.UDPAddr) error {
	return errUnsupported
}

func isWouldBlock(err error) bool {
	return false
}

func isPeerUnreachable(err error) bool {
	return false
}
