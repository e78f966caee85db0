package bridge

import (
	"sync/atomic"

	"github.com/robotalks/rtbridge/pkg/atomicf"
	"github.com/robotalks/rtbridge/pkg/wire"
)

// State is shared between the command loop and the telemetry loop.
// Every field has a single writer and is accessed atomically on its own,
// so readers may observe fields from different iterations.
type State struct {
	fractions [wire.Channels]atomicf.F32
	voltages  [wire.Channels]atomicf.F32
	timestamp atomic.Int64
}

// Snapshot is a field by field copy of State.
type Snapshot struct {
	TimestampMicros int64
	Fractions       [wire.Channels]float32
	Voltages        [wire.Channels]float32
}

// CommandedFraction returns the last applied fraction of an output.
func (s *State) CommandedFraction(ch int) float32 {
	return s.fractions[ch].Load()
}

// SetCommandedFraction is only called by the command loop.
func (s *State) SetCommandedFraction(ch int, f float32) {
	s.fractions[ch].Store(f)
}

// SampledVoltage returns the last sampled voltage of an input.
func (s *State) SampledVoltage(ch int) float32 {
	return s.voltages[ch].Load()
}

// SetSampledVoltage is only called by the telemetry loop.
func (s *State) SetSampledVoltage(ch int, v float32) {
	s.voltages[ch].Store(v)
}

// TimestampMicros returns the monotonic time of the last sample.
func (s *State) TimestampMicros() int64 {
	return s.timestamp.Load()
}

// SetTimestampMicros is only called by the telemetry loop.
func (s *State) SetTimestampMicros(us int64) {
	s.timestamp.Store(us)
}

// Snapshot reads all fields.
func (s *State) Snapshot() (snap Snapshot) {
	snap.TimestampMicros = s.TimestampMicros()
	for n := 0; n < wire.Channels; n++ {
		snap.Fractions[n] = s.CommandedFraction(n)
		snap.Voltages[n] = s.SampledVoltage(n)
	}
	return
}
