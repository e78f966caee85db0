package bridge

import (
	"context"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/rtbridge/pkg/framework"
	"github.com/robotalks/rtbridge/pkg/hal"
	"github.com/robotalks/rtbridge/pkg/transport"
	"github.com/robotalks/rtbridge/pkg/wire"
)

// Link is the datagram transport used by a Bridge.
type Link = transport.Datagram

// Bridge owns the shared state and both loops.
type Bridge struct {
	Config Config
	Driver *hal.Driver
	Link   Link
	State  *State
	Stats  *Stats
	Clock  fx.Clock

	Command   *fx.Loop
	Telemetry *fx.Loop

	runnables []fx.Runnable
}

// New configures the peripheral and creates a Bridge on the system clock.
func (c *Config) New(p hal.Peripheral, link Link) (*Bridge, error) {
	return c.NewWithClock(p, link, fx.NewSystemClock())
}

// NewWithClock creates a Bridge whose loops run on clock.
func (c *Config) NewWithClock(p hal.Peripheral, link Link, clock fx.Clock) (*Bridge, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	driver, err := hal.NewDriver(p, c.HAL)
	if err != nil {
		return nil, err
	}
	b := &Bridge{
		Config: *c,
		Driver: driver,
		Link:   link,
		State:  &State{},
		Stats:  &Stats{},
		Clock:  clock,
	}
	b.Command = &fx.Loop{
		Name:     "command",
		Period:   c.CommandPeriod,
		MaxLag:   c.maxLag(c.CommandPeriod),
		Clock:    clock,
		Priority: c.CommandPriority,
	}
	b.Command.AddController(fx.PrLvControl, &CommandLoop{
		Actuator: driver,
		Receiver: link,
		Codec:    wire.LittleEndian,
		State:    b.State,
		Stats:    b.Stats,
	})
	b.Telemetry = &fx.Loop{
		Name:     "telemetry",
		Period:   c.TelemetryPeriod,
		MaxLag:   c.maxLag(c.TelemetryPeriod),
		Clock:    clock,
		Priority: c.TelemetryPriority,
	}
	b.Telemetry.AddController(fx.PrLvSense, &TelemetryLoop{
		Sensor: driver,
		Sender: link,
		Codec:  wire.LittleEndian,
		State:  b.State,
		Stats:  b.Stats,
	})
	return b, nil
}

// AddRunnable adds Runnables started and stopped with the bridge,
// e.g. the transport supervisor.
func (b *Bridge) AddRunnable(runnables ...fx.Runnable) *Bridge {
	b.runnables = append(b.runnables, runnables...)
	return b
}

// Run runs both loops until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	runner := fx.NewRunnerWith(ctx)
	runner.Go(b.runnables...)
	runner.Go(
		fx.NamedRun("telemetry", b.Telemetry),
		fx.NamedRun("command", b.Command),
	)
	if b.Config.StatsInterval > 0 {
		runner.Go(fx.NamedRun("stats", fx.RunFunc(b.logStats)))
	}
	return runner.Wait()
}

func (b *Bridge) logStats(ctx context.Context) error {
	ticker := time.NewTicker(b.Config.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if glog.V(1) {
			cmd, tele := b.Command.Stats(), b.Telemetry.Stats()
			glog.Infof("%s; command loop iter=%d overrun=%d skipped=%d late=%v; telemetry loop iter=%d overrun=%d skipped=%d late=%v",
				b.Stats.Snapshot(),
				cmd.Iterations, cmd.Overruns, cmd.Skipped, cmd.MaxLateness,
				tele.Iterations, tele.Overruns, tele.Skipped, tele.MaxLateness)
		}
	}
}
