// Package sim provides a simulated peripheral: every output drives the
// input of the same channel through a first-order RC filter.
package sim

import (
	"flag"
	"math"
	"sync"
	"time"

	"github.com/robotalks/rtbridge/pkg/framework"
	"github.com/robotalks/rtbridge/pkg/hal"
)

// Config defines the simulated plant.
type Config struct {
	// TimeConstant of the RC filter, 0 makes inputs follow outputs instantly.
	TimeConstant time.Duration
	// Gain scales the output voltage seen by the input.
	Gain float64
}

var defaultConfig = Config{
	TimeConstant: 5 * time.Millisecond,
	Gain:         1,
}

// SetupFlags registers the simulator options.
func SetupFlags() {
	flag.DurationVar(&defaultConfig.TimeConstant, "sim-tau", defaultConfig.TimeConstant, "Simulated RC time constant")
	flag.Float64Var(&defaultConfig.Gain, "sim-gain", defaultConfig.Gain, "Simulated loopback gain")
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// NewPeripheral creates the simulated peripheral using the config.
func (c *Config) NewPeripheral(clock framework.TimeSource) *Peripheral {
	return New(*c, clock)
}

type channel struct {
	duty      uint32
	writes    int
	level     float64
	updatedAt time.Duration
	forced    bool
	readErr   error
}

// Peripheral implements hal.Peripheral.
type Peripheral struct {
	Config
	Clock framework.TimeSource

	lock       sync.Mutex
	outBits    int
	inBits     int
	fullScale  float64
	frequency  int
	channels   []channel
	inputCount int
	writeErr   error
}

// New creates a simulated peripheral. A nil clock uses the system clock.
func New(conf Config, clock framework.TimeSource) *Peripheral {
	if clock == nil {
		clock = framework.NewSystemClock()
	}
	return &Peripheral{Config: conf, Clock: clock}
}

// ConfigureOutputs implements hal.Outputs.
func (p *Peripheral) ConfigureOutputs(count, resolutionBits, frequencyHz int) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.channels = make([]channel, count)
	p.outBits, p.frequency = resolutionBits, frequencyHz
	return nil
}

// ConfigureInputs implements hal.Inputs.
func (p *Peripheral) ConfigureInputs(count int, fullScale float64, resolutionBits int) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.inputCount, p.fullScale, p.inBits = count, fullScale, resolutionBits
	return nil
}

// SetOutputDuty implements hal.Outputs.
func (p *Peripheral) SetOutputDuty(ch int, duty uint32) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.outBits == 0 {
		return hal.ErrNotConfigured
	}
	if ch < 0 || ch >= len(p.channels) {
		return hal.ErrChannel
	}
	if p.writeErr != nil {
		return p.writeErr
	}
	c := &p.channels[ch]
	p.settle(c, p.Clock.Now())
	c.duty = duty
	c.writes++
	return nil
}

// ReadInputRaw implements hal.Inputs.
func (p *Peripheral) ReadInputRaw(ch int) (uint32, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.inBits == 0 {
		return 0, hal.ErrNotConfigured
	}
	if ch < 0 || ch >= p.inputCount || ch >= len(p.channels) {
		return 0, hal.ErrChannel
	}
	c := &p.channels[ch]
	if c.readErr != nil {
		return 0, c.readErr
	}
	p.settle(c, p.Clock.Now())
	max := hal.MaxCode(p.inBits)
	code := math.Round(c.level / p.fullScale * float64(max))
	switch {
	case code <= 0:
		return 0, nil
	case code >= float64(max):
		return max, nil
	}
	return uint32(code), nil
}

// settle moves the filtered level towards the current output up to now.
func (p *Peripheral) settle(c *channel, now time.Duration) {
	defer func() { c.updatedAt = now }()
	if c.forced {
		return
	}
	target := p.Gain * p.fullScale * float64(c.duty) / float64(hal.MaxCode(p.outBits))
	if p.TimeConstant <= 0 {
		c.level = target
		return
	}
	if dt := now - c.updatedAt; dt > 0 {
		c.level += (target - c.level) * (1 - math.Exp(-float64(dt)/float64(p.TimeConstant)))
	}
}

// Duty returns the last duty written to a channel and the number of writes.
func (p *Peripheral) Duty(ch int) (duty uint32, writes int) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.channels[ch].duty, p.channels[ch].writes
}

// ForceInput disconnects an input from its output and pins it to volts.
func (p *Peripheral) ForceInput(ch int, volts float64) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.channels[ch].forced = true
	p.channels[ch].level = volts
}

// FailInput makes reads of a channel fail with err, nil restores it.
func (p *Peripheral) FailInput(ch int, err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.channels[ch].readErr = err
}

// FailOutputs makes all duty writes fail with err, nil restores them.
func (p *Peripheral) FailOutputs(err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.writeErr = err
}
