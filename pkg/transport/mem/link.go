// Package mem provides an in-memory datagram link used to run the bridge
// against a host in the same process.
package mem

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/robotalks/rtbridge/pkg/transport"
)

// DefaultCapacity is the number of datagrams buffered per direction.
const DefaultCapacity = 16

type pipe struct {
	lock     sync.Mutex
	pending  *queue.Queue
	capacity int
}

func newPipe(capacity int) *pipe {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &pipe{pending: queue.New(), capacity: capacity}
}

func (p *pipe) push(pkt []byte) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.pending.Length() >= p.capacity {
		return transport.ErrWouldBlock
	}
	p.pending.Add(append([]byte(nil), pkt...))
	return nil
}

func (p *pipe) pop(buf []byte) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.pending.Length() == 0 {
		return 0, transport.ErrWouldBlock
	}
	return copy(buf, p.pending.Remove().([]byte)), nil
}

func (p *pipe) length() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.pending.Length()
}

// Endpoint is one end of a Link, it implements transport.Datagram.
type Endpoint struct {
	link     *Link
	in, out  *pipe
	sent     atomic.Uint64
	received atomic.Uint64
}

// Link connects two Endpoints.
type Link struct {
	A, B *Endpoint
	down atomic.Bool
}

// NewLink creates a Link buffering up to capacity datagrams per direction.
func NewLink(capacity int) *Link {
	ab, ba := newPipe(capacity), newPipe(capacity)
	l := &Link{}
	l.A = &Endpoint{link: l, in: ba, out: ab}
	l.B = &Endpoint{link: l, in: ab, out: ba}
	return l
}

// SetDown simulates the link going down or coming back. While down,
// sends fail with transport.ErrNotReady and already queued datagrams
// stay queued.
func (l *Link) SetDown(down bool) {
	l.down.Store(down)
}

// TrySend implements transport.Sender.
func (e *Endpoint) TrySend(pkt []byte) error {
	if e.link.down.Load() {
		return transport.ErrNotReady
	}
	if err := e.out.push(pkt); err != nil {
		return err
	}
	e.sent.Add(1)
	return nil
}

// TryReceive implements transport.Receiver.
func (e *Endpoint) TryReceive(buf []byte) (int, error) {
	n, err := e.in.pop(buf)
	if err == nil {
		e.received.Add(1)
	}
	return n, err
}

// Pending returns the number of datagrams waiting to be received.
func (e *Endpoint) Pending() int {
	return e.in.length()
}

// Sent returns the number of datagrams successfully sent.
func (e *Endpoint) Sent() uint64 {
	return e.sent.Load()
}

// Received returns the number of datagrams received.
func (e *Endpoint) Received() uint64 {
	return e.received.Load()
}
