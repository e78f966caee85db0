package hal_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rtbridge/pkg/framework"
	"github.com/robotalks/rtbridge/pkg/hal"
	"github.com/robotalks/rtbridge/pkg/hal/sim"
)

func newDriver(t *testing.T, clamp hal.ClampMode) (*hal.Driver, *sim.Peripheral) {
	p := sim.New(sim.Config{Gain: 1}, &framework.VirtualClock{})
	conf := hal.DefaultConfig
	conf.Clamp = clamp
	d, err := hal.NewDriver(p, conf)
	require.NoError(t, err)
	return d, p
}

func TestDriverSetOutput(t *testing.T) {
	d, p := newDriver(t, hal.ClampDuty)

	applied, err := d.SetOutput(0, 0.5)
	require.NoError(t, err)
	require.Equal(t, float32(0.5), applied)
	applied, err = d.SetOutput(1, 0.25)
	require.NoError(t, err)
	require.Equal(t, float32(0.25), applied)

	duty, writes := p.Duty(0)
	require.Equal(t, uint32(2048), duty)
	require.Equal(t, 1, writes)
	duty, _ = p.Duty(1)
	require.Equal(t, uint32(1024), duty)

	applied, err = d.SetOutput(0, 1.5)
	require.NoError(t, err)
	require.Equal(t, float32(1.5), applied)
	duty, _ = p.Duty(0)
	require.Equal(t, uint32(4095), duty)

	_, err = d.SetOutput(2, 0.5)
	require.True(t, errors.Is(err, hal.ErrChannel))
}

func TestDriverClampFraction(t *testing.T) {
	d, p := newDriver(t, hal.ClampFraction)
	applied, err := d.SetOutput(0, 1.5)
	require.NoError(t, err)
	require.Equal(t, float32(1), applied)
	applied, err = d.SetOutput(1, -0.5)
	require.NoError(t, err)
	require.Equal(t, float32(0), applied)
	duty, _ := p.Duty(0)
	require.Equal(t, uint32(4095), duty)
	duty, _ = p.Duty(1)
	require.Equal(t, uint32(0), duty)
}

func TestDriverReadInput(t *testing.T) {
	d, p := newDriver(t, hal.ClampDuty)
	_, err := d.SetOutput(0, 1)
	require.NoError(t, err)
	v, err := d.ReadInput(0)
	require.NoError(t, err)
	require.InDelta(t, 3.3, v, 1e-6)

	p.ForceInput(1, 1.65)
	v, err = d.ReadInput(1)
	require.NoError(t, err)
	require.InDelta(t, 1.65, v, 3.3/4095)

	errRead := errors.New("adc busy")
	p.FailInput(1, errRead)
	_, err = d.ReadInput(1)
	require.Equal(t, errRead, err)

	_, err = d.ReadInput(-1)
	require.True(t, errors.Is(err, hal.ErrChannel))
}

func TestNewDriverInvalidConfig(t *testing.T) {
	conf := hal.DefaultConfig
	conf.OutputBits = 0
	_, err := hal.NewDriver(sim.New(sim.Config{}, nil), conf)
	require.Error(t, err)
}
