package udp

import (
	"flag"
	"os"
	"time"
)

// Config defines the UDP endpoints.
type Config struct {
	// Listen is the local address receiving commands.
	Listen string
	// Peer is the host address receiving telemetry.
	Peer string
	// TOS is the IPv4 type-of-service byte for outgoing datagrams, 0 keeps the default.
	TOS int
	// RetryInterval is the delay between bind attempts.
	RetryInterval time.Duration
}

var defaultConfig = Config{
	Listen:        ":12345",
	Peer:          "127.0.0.1:25001",
	RetryInterval: time.Second,
}

func init() {
	if val := os.Getenv("RTB_LISTEN"); val != "" {
		defaultConfig.Listen = val
	}
	if val := os.Getenv("RTB_PEER"); val != "" {
		defaultConfig.Peer = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Listen, "listen", defaultConfig.Listen, "Local address receiving commands")
	flag.StringVar(&defaultConfig.Peer, "peer", defaultConfig.Peer, "Host address receiving telemetry")
	flag.IntVar(&defaultConfig.TOS, "tos", defaultConfig.TOS, "IPv4 TOS of telemetry datagrams, e.g. 184 for DSCP EF")
	flag.DurationVar(&defaultConfig.RetryInterval, "bind-retry", defaultConfig.RetryInterval, "Delay between bind attempts")
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}
