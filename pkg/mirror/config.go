package mirror

import (
	"flag"
	"os"
	"time"

	"github.com/robotalks/rtbridge/pkg/env"
)

// Config defines the MQTT mirror.
type Config struct {
	// MQTTBrokerURL e.g. mqtt://host:port/topic-prefix, empty disables the mirror.
	MQTTBrokerURL  string
	Type           string
	ID             string
	SampleInterval time.Duration
	StatsInterval  time.Duration
}

var defaultConfig = Config{
	Type:           "rtbridge",
	SampleInterval: 100 * time.Millisecond,
	StatsInterval:  time.Second,
}

func init() {
	if val := os.Getenv("RTB_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	defaultConfig.ID = env.MachineID()
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL of the mirror, empty to disable")
	flag.StringVar(&defaultConfig.ID, "id", defaultConfig.ID, "Bridge ID in mirror topics")
	flag.DurationVar(&defaultConfig.SampleInterval, "mirror-interval", defaultConfig.SampleInterval, "Interval of mirrored telemetry samples")
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Enabled tells whether a broker is configured.
func (c *Config) Enabled() bool {
	return c.MQTTBrokerURL != ""
}

// Name is the topic path of the bridge.
func (c *Config) Name() string {
	return c.Type + "/" + c.ID
}
