package bridge

import (
	"errors"

	"github.com/golang/glog"

	fx "github.com/robotalks/rtbridge/pkg/framework"
	"github.com/robotalks/rtbridge/pkg/transport"
	"github.com/robotalks/rtbridge/pkg/wire"
)

// ReceiveBufferSize is the largest inbound datagram considered, longer
// datagrams are truncated.
const ReceiveBufferSize = 64

// CommandLoop applies at most one inbound command per iteration.
// Without a command the outputs hold their last value.
type CommandLoop struct {
	Actuator Actuator
	Receiver transport.Receiver
	Codec    wire.Codec
	State    *State
	Stats    *Stats

	buf [ReceiveBufferSize]byte
}

// Control implements framework.Controller.
func (c *CommandLoop) Control(ctx fx.ControlContext) error {
	n, err := c.Receiver.TryReceive(c.buf[:])
	if err != nil {
		if !transport.IsTransient(err) {
			c.Stats.ReceiveErrors.Add(1)
			glog.V(3).Infof("command receive: %v", err)
		}
		return nil
	}
	c.Stats.CommandsReceived.Add(1)
	frame, err := c.Codec.DecodeCommand(c.buf[:n])
	if err != nil {
		if errors.Is(err, wire.ErrFrameTooShort) {
			c.Stats.Undersized.Add(1)
		}
		glog.V(3).Infof("command discarded: %v", err)
		return nil
	}
	for ch, fraction := range frame.Fractions {
		applied, err := c.Actuator.SetOutput(ch, fraction)
		if err != nil {
			c.Stats.OutputErrors.Add(1)
			glog.V(3).Infof("output %d: %v", ch, err)
			continue
		}
		c.State.SetCommandedFraction(ch, applied)
	}
	c.Stats.CommandsApplied.Add(1)
	return nil
}
