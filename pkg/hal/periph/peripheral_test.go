package periph

import (
	"testing"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

func TestDutyFromCount(t *testing.T) {
	require.Equal(t, gpio.Duty(0), dutyFromCount(0, 12))
	require.Equal(t, gpio.DutyMax, dutyFromCount(4095, 12))
	require.Equal(t, gpio.DutyMax, dutyFromCount(5000, 12))
	require.InDelta(t, float64(gpio.DutyMax)/2, float64(dutyFromCount(2048, 12)), float64(gpio.DutyMax)/4095)
}

func TestCodeFromSample(t *testing.T) {
	testCases := []struct {
		volts float64
		code  uint32
	}{
		{0, 0},
		{-0.1, 0},
		{3.3, 4095},
		{4, 4095},
		{1, 1241},
	}
	for _, tc := range testCases {
		s := analog.Sample{V: physic.ElectricPotential(tc.volts * float64(physic.Volt))}
		require.Equal(t, tc.code, codeFromSample(s, 3.3, 12), "volts=%v", tc.volts)
	}
}

func TestNewConfigCopiesSlices(t *testing.T) {
	conf := NewConfig()
	conf.PWMPins[0] = "X"
	require.NotEqual(t, "X", defaultConfig.PWMPins[0])
}
