// Package udp implements transport.Datagram on a UDP socket using
// non-blocking socket calls, so neither loop ever waits on the network.
package udp

import (
	"context"
	"net"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"
	"golang.org/x/net/ipv4"

	"github.com/robotalks/rtbridge/pkg/transport"
)

type socket struct {
	conn *net.UDPConn
	raw  syscall.RawConn
}

// Transport is a UDP datagram endpoint bound to a local address and
// sending to a fixed peer.
type Transport struct {
	Config

	network string
	peer    *net.UDPAddr
	current atomic.Pointer[socket]
	faults  chan error
}

// New validates the config and resolves the peer. The socket is bound
// by Open or Run.
func (c *Config) New() (*Transport, error) {
	peer, err := net.ResolveUDPAddr("udp", c.Peer)
	if err != nil {
		return nil, errors.Annotatef(err, "resolve peer %s", c.Peer)
	}
	network := "udp4"
	if peer.IP != nil && peer.IP.To4() == nil {
		network = "udp6"
	}
	if _, err := net.ResolveUDPAddr(network, c.Listen); err != nil {
		return nil, errors.Annotatef(err, "resolve listen address %s", c.Listen)
	}
	return &Transport{
		Config:  *c,
		network: network,
		peer:    peer,
		faults:  make(chan error, 1),
	}, nil
}

// MustNew creates the Transport and fails on error.
func (c *Config) MustNew() *Transport {
	t, err := c.New()
	if err != nil {
		glog.Fatalf("udp transport: %v", err)
	}
	return t
}

// Open binds the socket if it is not bound yet.
func (t *Transport) Open() error {
	if t.current.Load() != nil {
		return nil
	}
	laddr, err := net.ResolveUDPAddr(t.network, t.Listen)
	if err != nil {
		return errors.Trace(err)
	}
	conn, err := net.ListenUDP(t.network, laddr)
	if err != nil {
		return errors.Annotatef(err, "bind %s", t.Listen)
	}
	raw, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return errors.Annotate(err, "raw conn")
	}
	if t.TOS > 0 && t.network == "udp4" {
		if err := ipv4.NewConn(conn).SetTOS(t.TOS); err != nil {
			glog.Warningf("udp: set TOS %d: %v", t.TOS, err)
		}
	}
	t.current.Store(&socket{conn: conn, raw: raw})
	glog.Infof("udp: listening on %s, peer %s", conn.LocalAddr(), t.peer)
	return nil
}

// Ready tells whether the socket is bound.
func (t *Transport) Ready() bool {
	return t.current.Load() != nil
}

// LocalAddr returns the bound address, nil if not bound.
func (t *Transport) LocalAddr() net.Addr {
	if s := t.current.Load(); s != nil {
		return s.conn.LocalAddr()
	}
	return nil
}

// Close releases the socket.
func (t *Transport) Close() error {
	if s := t.current.Swap(nil); s != nil {
		return s.conn.Close()
	}
	return nil
}

// Run keeps the socket bound until ctx is done. Binding is retried every
// RetryInterval, and the socket is re-bound after a non-transient fault.
func (t *Transport) Run(ctx context.Context) error {
	defer t.Close()
	retry := t.RetryInterval
	if retry <= 0 {
		retry = time.Second
	}
	for {
		select {
		case <-t.faults:
		default:
		}
		if err := t.Open(); err != nil {
			glog.Warningf("udp: %v, retry in %v", err, retry)
		} else {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case err := <-t.faults:
				glog.Warningf("udp: socket fault %v, re-binding", err)
				t.Close()
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry):
		}
	}
}

// TryReceive implements transport.Receiver.
func (t *Transport) TryReceive(buf []byte) (int, error) {
	s := t.current.Load()
	if s == nil {
		return 0, transport.ErrNotReady
	}
	var n int
	var opErr error
	if err := s.raw.Read(func(fd uintptr) bool {
		n, opErr = recvNonBlocking(fd, buf)
		return true
	}); err != nil {
		return 0, t.fault(err)
	}
	if opErr != nil {
		return 0, t.classify(opErr)
	}
	return n, nil
}

// TrySend implements transport.Sender.
func (t *Transport) TrySend(pkt []byte) error {
	s := t.current.Load()
	if s == nil {
		return transport.ErrNotReady
	}
	var opErr error
	if err := s.raw.Write(func(fd uintptr) bool {
		opErr = sendNonBlocking(fd, pkt, t.peer)
		return true
	}); err != nil {
		return t.fault(err)
	}
	if opErr != nil {
		return t.classify(opErr)
	}
	return nil
}

func (t *Transport) classify(err error) error {
	switch {
	case isWouldBlock(err):
		return transport.ErrWouldBlock
	case isPeerUnreachable(err):
		// ICMP feedback from an absent peer, the socket stays usable.
		return err
	}
	return t.fault(err)
}

func (t *Transport) fault(err error) error {
	select {
	case t.faults <- err:
	default:
	}
	return err
}
