package hal

import (
	"github.com/juju/errors"
)

// Config defines the electrical parameters of the peripheral.
type Config struct {
	Channels       int
	OutputBits     int
	FrequencyHz    int
	InputBits      int
	FullScaleVolts float64
	Clamp          ClampMode
}

// DefaultConfig is a 12-bit 1kHz PWM and a 12-bit 3.3V ADC on two channels.
var DefaultConfig = Config{
	Channels:       2,
	OutputBits:     12,
	FrequencyHz:    1000,
	InputBits:      12,
	FullScaleVolts: 3.3,
}

// Driver exposes a Peripheral in engineering units.
type Driver struct {
	Config
	Peripheral Peripheral
}

// NewDriver configures the peripheral and wraps it.
func NewDriver(p Peripheral, conf Config) (*Driver, error) {
	if conf.Channels <= 0 || conf.OutputBits <= 0 || conf.OutputBits > 31 ||
		conf.InputBits <= 0 || conf.InputBits > 31 || conf.FullScaleVolts <= 0 {
		return nil, errors.NotValidf("peripheral config %+v", conf)
	}
	if err := p.ConfigureOutputs(conf.Channels, conf.OutputBits, conf.FrequencyHz); err != nil {
		return nil, errors.Annotate(err, "configure outputs")
	}
	if err := p.ConfigureInputs(conf.Channels, conf.FullScaleVolts, conf.InputBits); err != nil {
		return nil, errors.Annotate(err, "configure inputs")
	}
	return &Driver{Config: conf, Peripheral: p}, nil
}

// SetOutput drives an output to a fraction of full scale and returns the
// fraction actually applied under the clamp mode.
func (d *Driver) SetOutput(channel int, fraction float32) (float32, error) {
	if err := checkChannel(channel, d.Channels); err != nil {
		return 0, err
	}
	fraction = d.Clamp.Apply(fraction)
	return fraction, d.Peripheral.SetOutputDuty(channel, DutyFromFraction(fraction, d.OutputBits))
}

// ReadInput samples an input and returns volts.
func (d *Driver) ReadInput(channel int) (float32, error) {
	if err := checkChannel(channel, d.Channels); err != nil {
		return 0, err
	}
	code, err := d.Peripheral.ReadInputRaw(channel)
	if err != nil {
		return 0, err
	}
	return VoltageFromCode(code, d.FullScaleVolts, d.InputBits), nil
}
