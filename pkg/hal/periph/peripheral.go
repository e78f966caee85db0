// Package periph drives the bridge outputs with hardware PWM pins and
// samples the inputs with an ADS1115 ADC, both through periph.io.
package periph

import (
	"flag"
	"os"
	"strings"
	"sync"

	"github.com/juju/errors"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"

	"github.com/robotalks/rtbridge/pkg/hal"
)

// Config defines the pins and the ADC wiring.
type Config struct {
	// PWMPins are the output pin names, one per channel.
	PWMPins []string
	// I2CBus is the bus name of the ADC, empty for the first bus.
	I2CBus string
	// ADCAddress is the I²C address of the ADS1115.
	ADCAddress uint
	// ADCChannels maps bridge inputs to single-ended ADC channels.
	ADCChannels []int
	// SampleRate of the ADC conversions.
	SampleRate physic.Frequency
}

var defaultConfig = Config{
	PWMPins:     []string{"GPIO12", "GPIO13"},
	ADCAddress:  0x48,
	ADCChannels: []int{0, 1},
	SampleRate:  860 * physic.Hertz,
}

var singleEnded = []ads1x15.Channel{ads1x15.Channel0, ads1x15.Channel1, ads1x15.Channel2, ads1x15.Channel3}

func init() {
	if val := os.Getenv("RTB_PWM_PINS"); val != "" {
		defaultConfig.PWMPins = strings.Split(val, ",")
	}
	if val := os.Getenv("RTB_I2C_BUS"); val != "" {
		defaultConfig.I2CBus = val
	}
}

type pinsValue struct {
	pins *[]string
}

func (v pinsValue) String() string {
	if v.pins == nil {
		return ""
	}
	return strings.Join(*v.pins, ",")
}

func (v pinsValue) Set(s string) error {
	*v.pins = strings.Split(s, ",")
	return nil
}

// SetupFlags registers the hardware options.
func SetupFlags() {
	flag.Var(pinsValue{&defaultConfig.PWMPins}, "pwm-pins", "Comma separated PWM pin names")
	flag.StringVar(&defaultConfig.I2CBus, "i2c-bus", defaultConfig.I2CBus, "I2C bus of the ADC")
	flag.UintVar(&defaultConfig.ADCAddress, "adc-addr", defaultConfig.ADCAddress, "I2C address of the ADS1115")
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	conf.PWMPins = append([]string(nil), defaultConfig.PWMPins...)
	conf.ADCChannels = append([]int(nil), defaultConfig.ADCChannels...)
	return &conf
}

// Peripheral implements hal.Peripheral on periph.io.
type Peripheral struct {
	Config

	outBits   int
	frequency physic.Frequency
	pins      []gpio.PinIO

	inBits    int
	fullScale float64
	bus       i2c.BusCloser
	adc       *ads1x15.Dev
	inputs    []ads1x15.PinADC
	inputLock sync.Mutex
}

// New initializes the periph.io host drivers.
func (c *Config) New() (*Peripheral, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Annotate(err, "periph/init")
	}
	return &Peripheral{Config: *c}, nil
}

// ConfigureOutputs implements hal.Outputs.
func (p *Peripheral) ConfigureOutputs(count, resolutionBits, frequencyHz int) error {
	if count > len(p.PWMPins) {
		return errors.NotValidf("%d outputs with %d PWM pins", count, len(p.PWMPins))
	}
	p.pins = make([]gpio.PinIO, count)
	for n := range p.pins {
		pin := gpioreg.ByName(p.PWMPins[n])
		if pin == nil {
			return errors.NotFoundf("PWM pin %s", p.PWMPins[n])
		}
		p.pins[n] = pin
	}
	p.outBits, p.frequency = resolutionBits, physic.Frequency(frequencyHz)*physic.Hertz
	for n := range p.pins {
		if err := p.SetOutputDuty(n, 0); err != nil {
			return errors.Annotatef(err, "PWM init pin=%s", p.PWMPins[n])
		}
	}
	return nil
}

// SetOutputDuty implements hal.Outputs.
func (p *Peripheral) SetOutputDuty(channel int, duty uint32) error {
	if channel < 0 || channel >= len(p.pins) {
		return hal.ErrChannel
	}
	return p.pins[channel].PWM(dutyFromCount(duty, p.outBits), p.frequency)
}

// ConfigureInputs implements hal.Inputs.
func (p *Peripheral) ConfigureInputs(count int, fullScale float64, resolutionBits int) error {
	if count > len(p.ADCChannels) {
		return errors.NotValidf("%d inputs with %d ADC channels", count, len(p.ADCChannels))
	}
	bus, err := i2creg.Open(p.I2CBus)
	if err != nil {
		return errors.Annotatef(err, "I2C Open bus=%s", p.I2CBus)
	}
	adc, err := ads1x15.NewADS1115(bus, &ads1x15.Opts{I2cAddress: uint16(p.ADCAddress)})
	if err != nil {
		bus.Close()
		return errors.Annotatef(err, "ADS1115 addr=%#x", p.ADCAddress)
	}
	maxVoltage := physic.ElectricPotential(fullScale * float64(physic.Volt))
	inputs := make([]ads1x15.PinADC, count)
	for n := range inputs {
		ch := p.ADCChannels[n]
		if ch < 0 || ch >= len(singleEnded) {
			bus.Close()
			return errors.NotValidf("ADC channel %d", ch)
		}
		if inputs[n], err = adc.PinForChannel(singleEnded[ch], maxVoltage, p.SampleRate, ads1x15.BestQuality); err != nil {
			bus.Close()
			return errors.Annotatef(err, "ADC channel %d", ch)
		}
	}
	p.bus, p.adc, p.inputs = bus, adc, inputs
	p.inBits, p.fullScale = resolutionBits, fullScale
	return nil
}

// ReadInputRaw implements hal.Inputs.
func (p *Peripheral) ReadInputRaw(channel int) (uint32, error) {
	if channel < 0 || channel >= len(p.inputs) {
		return 0, hal.ErrChannel
	}
	p.inputLock.Lock()
	sample, err := p.inputs[channel].Read()
	p.inputLock.Unlock()
	if err != nil {
		return 0, err
	}
	return codeFromSample(sample, p.fullScale, p.inBits), nil
}

// Close halts the outputs and releases the ADC bus.
func (p *Peripheral) Close() error {
	for _, pin := range p.pins {
		pin.Halt()
	}
	for _, in := range p.inputs {
		in.Halt()
	}
	if p.bus != nil {
		return p.bus.Close()
	}
	return nil
}

// dutyFromCount rescales a duty count to the periph.io duty range.
func dutyFromCount(count uint32, bits int) gpio.Duty {
	max := uint64(hal.MaxCode(bits))
	if uint64(count) >= max {
		return gpio.DutyMax
	}
	return gpio.Duty(uint64(count) * uint64(gpio.DutyMax) / max)
}

// codeFromSample requantizes an ADC sample to the configured resolution.
func codeFromSample(s analog.Sample, fullScale float64, bits int) uint32 {
	max := hal.MaxCode(bits)
	v := float64(s.V) / float64(physic.Volt)
	code := v / fullScale * float64(max)
	switch {
	case code <= 0:
		return 0
	case code >= float64(max):
		return max
	}
	return uint32(code + 0.5)
}
