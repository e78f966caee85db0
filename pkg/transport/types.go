// Package transport defines the non-blocking datagram link between the
// bridge and its host.
package transport

import "errors"

var (
	// ErrWouldBlock indicates nothing could be received or sent right now.
	ErrWouldBlock = errors.New("would block")
	// ErrNotReady indicates the link is not up yet.
	ErrNotReady = errors.New("transport not ready")
)

// Receiver receives datagrams without blocking.
type Receiver interface {
	// TryReceive copies at most one pending datagram into buf and returns
	// its length, truncated to len(buf). It returns ErrWouldBlock when no
	// datagram is pending.
	TryReceive(buf []byte) (int, error)
}

// Sender sends datagrams to the fixed peer without blocking.
type Sender interface {
	// TrySend sends one datagram. The datagram is dropped on any error.
	TrySend(pkt []byte) error
}

// Datagram is a bidirectional non-blocking datagram endpoint.
type Datagram interface {
	Receiver
	Sender
}

// IsTransient tells whether err only means the link can't take or
// deliver a datagram at the moment.
func IsTransient(err error) bool {
	return errors.Is(err, ErrWouldBlock) || errors.Is(err, ErrNotReady)
}
