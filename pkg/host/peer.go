// Package host implements the supervisory side of the bridge link:
// it sends command frames and collects telemetry frames.
package host

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	fx "github.com/robotalks/rtbridge/pkg/framework"
	"github.com/robotalks/rtbridge/pkg/wire"
)

// Sample is a received telemetry frame.
type Sample struct {
	wire.TelemetryFrame
	ReceivedAt time.Time
}

// PeerStats counts received datagrams.
type PeerStats struct {
	Received  uint64
	Malformed uint64
}

// Peer talks to one bridge.
type Peer struct {
	Codec wire.Codec

	conn   *net.UDPConn
	bridge atomic.Pointer[net.UDPAddr]

	lock      sync.RWMutex
	last      *Sample
	watchers  map[chan Sample]struct{}
	received  atomic.Uint64
	malformed atomic.Uint64
}

// Dial binds the telemetry address. Call Run to start receiving.
func (c *Config) Dial() (*Peer, error) {
	laddr, err := net.ResolveUDPAddr("udp", c.Listen)
	if err != nil {
		return nil, errors.Annotatef(err, "resolve listen address %s", c.Listen)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, errors.Annotatef(err, "bind %s", c.Listen)
	}
	p := &Peer{
		Codec:    wire.LittleEndian,
		conn:     conn,
		watchers: make(map[chan Sample]struct{}),
	}
	if err := p.SetBridge(c.Bridge); err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

// SetBridge changes the address commands are sent to.
func (p *Peer) SetBridge(addr string) error {
	bridge, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return errors.Annotatef(err, "resolve bridge address %s", addr)
	}
	p.bridge.Store(bridge)
	return nil
}

// LocalAddr returns the telemetry address.
func (p *Peer) LocalAddr() net.Addr {
	return p.conn.LocalAddr()
}

// SendCommand sends a command frame.
func (p *Peer) SendCommand(fraction0, fraction1 float32) error {
	frame := wire.CommandFrame{Fractions: [wire.Channels]float32{fraction0, fraction1}}
	return p.SendRaw(p.Codec.EncodeCommand(nil, frame))
}

// SendRaw sends arbitrary bytes to the bridge.
func (p *Peer) SendRaw(data []byte) error {
	_, err := p.conn.WriteToUDP(data, p.bridge.Load())
	return err
}

// Last returns the latest telemetry, nil if none received.
func (p *Peer) Last() *Sample {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.last
}

// Stats returns the receive counters.
func (p *Peer) Stats() PeerStats {
	return PeerStats{Received: p.received.Load(), Malformed: p.malformed.Load()}
}

// Watch returns a chan receiving every telemetry sample until cancel is
// called. Samples are dropped while the chan is full.
func (p *Peer) Watch(size int) (<-chan Sample, func()) {
	ch := make(chan Sample, size)
	p.lock.Lock()
	p.watchers[ch] = struct{}{}
	p.lock.Unlock()
	return ch, func() {
		p.lock.Lock()
		delete(p.watchers, ch)
		p.lock.Unlock()
	}
}

// Run implements framework.Runnable. The socket is closed on return.
func (p *Peer) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, p.conn, p.receive)
}

func (p *Peer) receive() error {
	buf := make([]byte, 256)
	for {
		n, _, err := p.conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}
		frame, err := p.Codec.DecodeTelemetry(buf[:n])
		if err != nil {
			p.malformed.Add(1)
			glog.V(3).Infof("telemetry: %v", err)
			continue
		}
		p.received.Add(1)
		p.publish(Sample{TelemetryFrame: frame, ReceivedAt: time.Now()})
	}
}

func (p *Peer) publish(s Sample) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.last = &s
	for ch := range p.watchers {
		select {
		case ch <- s:
		default:
		}
	}
}
