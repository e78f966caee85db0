package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/rtbridge/pkg/framework"
	"github.com/robotalks/rtbridge/pkg/hal"
	"github.com/robotalks/rtbridge/pkg/hal/sim"
	"github.com/robotalks/rtbridge/pkg/transport/mem"
	"github.com/robotalks/rtbridge/pkg/wire"
)

type iterationCtx struct {
	now time.Duration
}

func (c *iterationCtx) Context() context.Context { return context.Background() }
func (c *iterationCtx) Now() time.Duration       { return c.now }
func (c *iterationCtx) Deadline() time.Duration  { return c.now }
func (c *iterationCtx) Iteration() uint64        { return 0 }
func (c *iterationCtx) PriorityLevel() int       { return fx.PrLvControl }

type testEnv struct {
	link       *mem.Link
	peripheral *sim.Peripheral
	driver     *hal.Driver
	state      *State
	stats      *Stats
	command    *CommandLoop
	telemetry  *TelemetryLoop
	ctx        *iterationCtx
}

func newTestEnv(t *testing.T, clamp hal.ClampMode) *testEnv {
	env := &testEnv{
		link:  mem.NewLink(8),
		state: &State{},
		stats: &Stats{},
		ctx:   &iterationCtx{},
	}
	env.peripheral = sim.New(sim.Config{Gain: 1}, &fx.VirtualClock{})
	conf := hal.DefaultConfig
	conf.Clamp = clamp
	var err error
	env.driver, err = hal.NewDriver(env.peripheral, conf)
	require.NoError(t, err)
	env.command = &CommandLoop{
		Actuator: env.driver,
		Receiver: env.link.A,
		Codec:    wire.LittleEndian,
		State:    env.state,
		Stats:    env.stats,
	}
	env.telemetry = &TelemetryLoop{
		Sensor: env.driver,
		Sender: env.link.A,
		Codec:  wire.LittleEndian,
		State:  env.state,
		Stats:  env.stats,
	}
	return env
}

func (e *testEnv) sendCommand(t *testing.T, f0, f1 float32) {
	pkt := wire.LittleEndian.EncodeCommand(nil, wire.CommandFrame{Fractions: [2]float32{f0, f1}})
	require.NoError(t, e.link.B.TrySend(pkt))
}

func (e *testEnv) control(t *testing.T) {
	require.NoError(t, e.command.Control(e.ctx))
}

func (e *testEnv) sample(t *testing.T) (wire.TelemetryFrame, []byte) {
	require.NoError(t, e.telemetry.Control(e.ctx))
	buf := make([]byte, 64)
	n, err := e.link.B.TryReceive(buf)
	require.NoError(t, err)
	f, err := wire.LittleEndian.DecodeTelemetry(buf[:n])
	require.NoError(t, err)
	return f, buf[:n]
}

func (e *testEnv) duty(ch int) uint32 {
	duty, _ := e.peripheral.Duty(ch)
	return duty
}

func TestCommandScenario(t *testing.T) {
	env := newTestEnv(t, hal.ClampDuty)
	env.sendCommand(t, 0.5, 0.25)
	env.control(t)
	require.Equal(t, uint32(2048), env.duty(0))
	require.Equal(t, uint32(1024), env.duty(1))

	_, raw := env.sample(t)
	require.Len(t, raw, wire.TelemetryFrameSize)
	decoded, err := wire.LittleEndian.DecodeCommand(raw[4:12])
	require.NoError(t, err)
	require.Equal(t, [2]float32{0.5, 0.25}, decoded.Fractions)
}

func TestNoCommandReportsZero(t *testing.T) {
	env := newTestEnv(t, hal.ClampDuty)
	for i := 0; i < 3; i++ {
		env.control(t)
		f, _ := env.sample(t)
		require.Equal(t, [2]float32{0, 0}, f.Fractions)
	}
	_, writes := env.peripheral.Duty(0)
	require.Zero(t, writes)
	require.Zero(t, env.stats.CommandsReceived.Load())
}

func TestZeroOrderHold(t *testing.T) {
	env := newTestEnv(t, hal.ClampDuty)
	env.sendCommand(t, 0.75, 0.1)
	env.control(t)
	for i := 0; i < 5; i++ {
		env.control(t)
	}
	duty, writes := env.peripheral.Duty(0)
	require.Equal(t, uint32(3071), duty)
	require.Equal(t, 1, writes)
	require.Equal(t, float32(0.75), env.state.CommandedFraction(0))
	require.Equal(t, float32(0.1), env.state.CommandedFraction(1))
	require.Equal(t, uint64(1), env.stats.CommandsApplied.Load())
}

func TestLastWriteWins(t *testing.T) {
	env := newTestEnv(t, hal.ClampDuty)
	env.sendCommand(t, 0.1, 0.2)
	env.sendCommand(t, 0.3, 0.4)

	env.control(t)
	require.Equal(t, float32(0.1), env.state.CommandedFraction(0))
	require.Equal(t, 1, env.link.A.Pending())

	env.control(t)
	require.Equal(t, float32(0.3), env.state.CommandedFraction(0))
	require.Equal(t, float32(0.4), env.state.CommandedFraction(1))
	require.Equal(t, hal.DutyFromFraction(0.3, 12), env.duty(0))
	require.Equal(t, hal.DutyFromFraction(0.4, 12), env.duty(1))
}

func TestUndersizedFrames(t *testing.T) {
	for size := 0; size < wire.CommandFrameSize; size++ {
		env := newTestEnv(t, hal.ClampDuty)
		env.sendCommand(t, 0.5, 0.5)
		env.control(t)

		require.NoError(t, env.link.B.TrySend(make([]byte, size)))
		env.control(t)
		require.Equal(t, float32(0.5), env.state.CommandedFraction(0), "size %d", size)
		require.Equal(t, uint32(2048), env.duty(1))
		require.Equal(t, uint64(1), env.stats.Undersized.Load())
		require.Equal(t, uint64(2), env.stats.CommandsReceived.Load())
		require.Equal(t, uint64(1), env.stats.CommandsApplied.Load())
	}
}

func TestOversizedFrameUsesLeadingBytes(t *testing.T) {
	env := newTestEnv(t, hal.ClampDuty)
	pkt := wire.LittleEndian.EncodeCommand(nil, wire.CommandFrame{Fractions: [2]float32{0.25, 1}})
	pkt = append(pkt, make([]byte, 100)...)
	require.NoError(t, env.link.B.TrySend(pkt))
	env.control(t)
	require.Equal(t, float32(0.25), env.state.CommandedFraction(0))
	require.Equal(t, float32(1), env.state.CommandedFraction(1))
	require.Equal(t, uint32(4095), env.duty(1))
}

func TestClampModes(t *testing.T) {
	t.Run("duty", func(t *testing.T) {
		env := newTestEnv(t, hal.ClampDuty)
		env.sendCommand(t, 1.5, -0.5)
		env.control(t)
		require.Equal(t, uint32(4095), env.duty(0))
		require.Equal(t, uint32(0), env.duty(1))
		f, _ := env.sample(t)
		require.Equal(t, [2]float32{1.5, -0.5}, f.Fractions)
	})
	t.Run("fraction", func(t *testing.T) {
		env := newTestEnv(t, hal.ClampFraction)
		env.sendCommand(t, 1.5, -0.5)
		env.control(t)
		require.Equal(t, uint32(4095), env.duty(0))
		require.Equal(t, uint32(0), env.duty(1))
		f, _ := env.sample(t)
		require.Equal(t, [2]float32{1, 0}, f.Fractions)
	})
}

func TestOutputErrorKeepsLastApplied(t *testing.T) {
	env := newTestEnv(t, hal.ClampDuty)
	env.sendCommand(t, 0.5, 0.5)
	env.control(t)

	env.peripheral.FailOutputs(errors.New("pwm fault"))
	env.sendCommand(t, 0.9, 0.9)
	env.control(t)
	require.Equal(t, float32(0.5), env.state.CommandedFraction(0))
	require.Equal(t, uint64(2), env.stats.OutputErrors.Load())
}

func TestTelemetrySample(t *testing.T) {
	env := newTestEnv(t, hal.ClampDuty)
	env.sendCommand(t, 1, 0.5)
	env.control(t)

	env.ctx.now = 1500 * time.Millisecond
	f, raw := env.sample(t)
	require.Len(t, raw, 20)
	require.Equal(t, float32(1.5), f.TimeSeconds)
	require.Equal(t, [2]float32{1, 0.5}, f.Fractions)
	require.InDelta(t, 3.3, f.Voltages[0], 1e-5)
	require.InDelta(t, 1.65, f.Voltages[1], 1e-3)
	require.Equal(t, int64(1500000), env.state.TimestampMicros())
	require.Equal(t, f.Voltages[0], env.state.SampledVoltage(0))
	require.Equal(t, uint64(1), env.stats.TelemetrySent.Load())
}

func TestTelemetryInputErrorKeepsPrevious(t *testing.T) {
	env := newTestEnv(t, hal.ClampDuty)
	env.peripheral.ForceInput(1, 2)
	first, _ := env.sample(t)

	env.peripheral.FailInput(1, errors.New("adc timeout"))
	env.peripheral.ForceInput(1, 3)
	env.ctx.now = 10 * time.Millisecond
	second, _ := env.sample(t)
	require.Equal(t, first.Voltages[1], second.Voltages[1])
	require.InDelta(t, 0.01, second.TimeSeconds, 1e-9)
	require.Equal(t, uint64(1), env.stats.InputErrors.Load())
}

func TestTelemetrySendFailureDropped(t *testing.T) {
	env := newTestEnv(t, hal.ClampDuty)
	env.link.SetDown(true)
	require.NoError(t, env.telemetry.Control(env.ctx))
	require.Zero(t, env.link.B.Pending())
	require.Equal(t, uint64(1), env.stats.SendErrors.Load())

	env.link.SetDown(false)
	env.sample(t)
	require.Equal(t, uint64(1), env.stats.TelemetrySent.Load())
}

func TestConfigValidate(t *testing.T) {
	conf := NewConfig()
	require.NoError(t, conf.Validate())

	conf.TelemetryPeriod = conf.CommandPeriod
	require.Error(t, conf.Validate())

	conf = NewConfig()
	conf.HAL.Channels = 3
	require.Error(t, conf.Validate())

	conf = NewConfig()
	conf.CommandPeriod = 0
	require.Error(t, conf.Validate())
}

func newTestBridge(t *testing.T, link *mem.Link) *Bridge {
	conf := NewConfig()
	conf.CommandPriority, conf.TelemetryPriority = 0, 0
	conf.StatsInterval = 0
	b, err := conf.New(sim.New(sim.Config{Gain: 1}, nil), link.A)
	require.NoError(t, err)
	return b
}

func TestBridgeEndToEnd(t *testing.T) {
	link := mem.NewLink(mem.DefaultCapacity)
	b := newTestBridge(t, link)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	pkt := wire.LittleEndian.EncodeCommand(nil, wire.CommandFrame{Fractions: [2]float32{0.5, 0.25}})
	require.NoError(t, link.B.TrySend(pkt))

	buf := make([]byte, 64)
	require.Eventually(t, func() bool {
		for {
			n, err := link.B.TryReceive(buf)
			if err != nil {
				return false
			}
			f, err := wire.LittleEndian.DecodeTelemetry(buf[:n])
			if err == nil && f.Fractions == [2]float32{0.5, 0.25} && f.Voltages[0] > 1.5 {
				return true
			}
		}
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestIndependentCadence(t *testing.T) {
	if testing.Short() {
		t.Skip("real time")
	}
	link := mem.NewLink(1000)
	b := newTestBridge(t, link)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	time.Sleep(500 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	tele, cmd := b.Telemetry.Stats().Iterations, b.Command.Stats().Iterations
	require.InDelta(t, 50, float64(tele), 12, "telemetry iterations")
	require.InDelta(t, 25, float64(cmd), 6, "command iterations")
	require.Greater(t, tele, cmd)
}
