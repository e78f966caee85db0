package bridge

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/rtbridge/pkg/hal"
	"github.com/robotalks/rtbridge/pkg/wire"
)

// Config defines the loop timing and the peripheral parameters.
type Config struct {
	CommandPeriod     time.Duration
	TelemetryPeriod   time.Duration
	CommandPriority   int
	TelemetryPriority int
	// MaxLagPeriods bounds catch-up after a stall, negative for unbounded.
	MaxLagPeriods int
	HAL           hal.Config
	// StatsInterval of the stats log line, 0 disables it.
	StatsInterval time.Duration
}

var defaultConfig = Config{
	CommandPeriod:     20 * time.Millisecond,
	TelemetryPeriod:   10 * time.Millisecond,
	CommandPriority:   5,
	TelemetryPriority: 6,
	MaxLagPeriods:     4,
	HAL:               hal.DefaultConfig,
	StatsInterval:     10 * time.Second,
}

func init() {
	if d, err := time.ParseDuration(os.Getenv("RTB_CTRL_PERIOD")); err == nil {
		defaultConfig.CommandPeriod = d
	}
	if d, err := time.ParseDuration(os.Getenv("RTB_TELE_PERIOD")); err == nil {
		defaultConfig.TelemetryPeriod = d
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.DurationVar(&defaultConfig.CommandPeriod, "ctrl-period", defaultConfig.CommandPeriod, "Command loop period")
	flag.DurationVar(&defaultConfig.TelemetryPeriod, "tele-period", defaultConfig.TelemetryPeriod, "Telemetry loop period")
	flag.IntVar(&defaultConfig.CommandPriority, "ctrl-prio", defaultConfig.CommandPriority, "Real-time priority of command loop, 0 to disable")
	flag.IntVar(&defaultConfig.TelemetryPriority, "tele-prio", defaultConfig.TelemetryPriority, "Real-time priority of telemetry loop, 0 to disable")
	flag.IntVar(&defaultConfig.MaxLagPeriods, "max-lag", defaultConfig.MaxLagPeriods, "Periods a loop may lag before deadlines are dropped, negative for unbounded")
	flag.IntVar(&defaultConfig.HAL.OutputBits, "pwm-bits", defaultConfig.HAL.OutputBits, "PWM resolution in bits")
	flag.IntVar(&defaultConfig.HAL.FrequencyHz, "pwm-freq", defaultConfig.HAL.FrequencyHz, "PWM frequency in Hz")
	flag.IntVar(&defaultConfig.HAL.InputBits, "adc-bits", defaultConfig.HAL.InputBits, "ADC resolution in bits")
	flag.Float64Var(&defaultConfig.HAL.FullScaleVolts, "full-scale", defaultConfig.HAL.FullScaleVolts, "ADC full scale voltage")
	flag.BoolFunc("clamp", "Clamp commanded fractions to [0, 1] before applying", func(s string) error {
		on, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		defaultConfig.HAL.Clamp = hal.ClampDuty
		if on {
			defaultConfig.HAL.Clamp = hal.ClampFraction
		}
		return nil
	})
	flag.DurationVar(&defaultConfig.StatsInterval, "stats-interval", defaultConfig.StatsInterval, "Interval of stats logging, 0 to disable")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Validate checks the timing constraints.
func (c *Config) Validate() error {
	if c.CommandPeriod <= 0 || c.TelemetryPeriod <= 0 {
		return fmt.Errorf("loop periods must be positive")
	}
	if c.TelemetryPeriod >= c.CommandPeriod {
		return fmt.Errorf("telemetry period %v must be shorter than command period %v",
			c.TelemetryPeriod, c.CommandPeriod)
	}
	if c.HAL.Channels != wire.Channels {
		return fmt.Errorf("%d channels configured, frames carry %d", c.HAL.Channels, wire.Channels)
	}
	return nil
}

func (c *Config) maxLag(period time.Duration) time.Duration {
	if c.MaxLagPeriods < 0 {
		return -1
	}
	return time.Duration(c.MaxLagPeriods) * period
}

// MustNew creates a Bridge and fails on error.
func (c *Config) MustNew(p hal.Peripheral, link Link) *Bridge {
	b, err := c.New(p, link)
	if err != nil {
		glog.Fatalf("bridge: %v", err)
	}
	return b
}
