package host

import (
	"flag"
	"os"
)

// Config defines the host side addresses.
type Config struct {
	// Listen is the local address receiving telemetry.
	Listen string
	// Bridge is the address of the bridge receiving commands.
	Bridge string
}

var defaultConfig = Config{
	Listen: ":25001",
	Bridge: "127.0.0.1:12345",
}

func init() {
	if val := os.Getenv("RTB_BRIDGE"); val != "" {
		defaultConfig.Bridge = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Listen, "listen", defaultConfig.Listen, "Local address receiving telemetry")
	flag.StringVar(&defaultConfig.Bridge, "bridge", defaultConfig.Bridge, "Bridge address receiving commands")
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}
