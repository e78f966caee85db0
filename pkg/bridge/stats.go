package bridge

import (
	"fmt"
	"sync/atomic"
)

// Stats counts the events of both loops. Counting never alters timing.
type Stats struct {
	CommandsReceived atomic.Uint64
	CommandsApplied  atomic.Uint64
	Undersized       atomic.Uint64
	ReceiveErrors    atomic.Uint64
	OutputErrors     atomic.Uint64
	TelemetrySent    atomic.Uint64
	SendErrors       atomic.Uint64
	InputErrors      atomic.Uint64
}

// StatsSnapshot is a copy of Stats.
type StatsSnapshot struct {
	CommandsReceived uint64
	CommandsApplied  uint64
	Undersized       uint64
	ReceiveErrors    uint64
	OutputErrors     uint64
	TelemetrySent    uint64
	SendErrors       uint64
	InputErrors      uint64
}

// Snapshot reads all counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		CommandsReceived: s.CommandsReceived.Load(),
		CommandsApplied:  s.CommandsApplied.Load(),
		Undersized:       s.Undersized.Load(),
		ReceiveErrors:    s.ReceiveErrors.Load(),
		OutputErrors:     s.OutputErrors.Load(),
		TelemetrySent:    s.TelemetrySent.Load(),
		SendErrors:       s.SendErrors.Load(),
		InputErrors:      s.InputErrors.Load(),
	}
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf("cmd rx=%d applied=%d undersized=%d rxerr=%d outerr=%d tele tx=%d txerr=%d inerr=%d",
		s.CommandsReceived, s.CommandsApplied, s.Undersized, s.ReceiveErrors, s.OutputErrors,
		s.TelemetrySent, s.SendErrors, s.InputErrors)
}
