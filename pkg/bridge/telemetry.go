package bridge

import (
	"github.com/golang/glog"

	fx "github.com/robotalks/rtbridge/pkg/framework"
	"github.com/robotalks/rtbridge/pkg/transport"
	"github.com/robotalks/rtbridge/pkg/wire"
)

// TelemetryLoop samples the inputs and sends one telemetry frame per
// iteration. Frames are best effort and dropped when the link is busy.
type TelemetryLoop struct {
	Sensor Sensor
	Sender transport.Sender
	Codec  wire.Codec
	State  *State
	Stats  *Stats

	buf [wire.TelemetryFrameSize]byte
}

// Control implements framework.Controller.
func (t *TelemetryLoop) Control(ctx fx.ControlContext) error {
	us := ctx.Now().Microseconds()
	for ch := 0; ch < wire.Channels; ch++ {
		v, err := t.Sensor.ReadInput(ch)
		if err != nil {
			t.Stats.InputErrors.Add(1)
			glog.V(3).Infof("input %d: %v", ch, err)
			continue
		}
		t.State.SetSampledVoltage(ch, v)
	}
	t.State.SetTimestampMicros(us)

	frame := wire.TelemetryFrame{TimeSeconds: wire.SecondsFromMicros(us)}
	for ch := 0; ch < wire.Channels; ch++ {
		frame.Fractions[ch] = t.State.CommandedFraction(ch)
		frame.Voltages[ch] = t.State.SampledVoltage(ch)
	}
	if err := t.Sender.TrySend(t.Codec.EncodeTelemetry(t.buf[:0], frame)); err != nil {
		t.Stats.SendErrors.Add(1)
		glog.V(3).Infof("telemetry dropped: %v", err)
		return nil
	}
	t.Stats.TelemetrySent.Add(1)
	return nil
}
