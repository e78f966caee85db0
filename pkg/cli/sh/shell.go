// Package sh provides an interactive shell talking to a bridge.
package sh

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/rtbridge/pkg/host"
	"github.com/robotalks/rtbridge/pkg/wire"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell *ishell.Shell
	Peer  *host.Peer
}

const shellKey = "$shell"

var (
	evalOnly   bool
	outputJSON bool

	commands = []*ishell.Cmd{
		&SetCmd,
		&RawCmd,
		&LastCmd,
		&WatchCmd,
		&StatsCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds adds more commands, used during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell on a peer.
func New(peer *host.Peer) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Shell:       ishell.New(),
		Peer:        peer,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(fmt.Sprintf("[%s] > ", peer.LocalAddr()))
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) error {
	if len(args) > 0 {
		return s.Shell.Process(args...)
	}
	if !s.Interactive {
		return fmt.Errorf("command expected")
	}
	s.Shell.Run()
	return nil
}

// ParseFractions parses the arguments of the set command.
func ParseFractions(args []string) (f [wire.Channels]float32, err error) {
	if len(args) != wire.Channels {
		return f, fmt.Errorf("%d fractions required", wire.Channels)
	}
	for n, arg := range args {
		val, err := strconv.ParseFloat(arg, 32)
		if err != nil {
			return f, fmt.Errorf("invalid fraction %q: %v", arg, err)
		}
		f[n] = float32(val)
	}
	return f, nil
}

// ParseHex parses bytes written as hex, spaces are ignored.
func ParseHex(args []string) ([]byte, error) {
	return hex.DecodeString(strings.ReplaceAll(strings.Join(args, ""), " ", ""))
}

// FormatSample prints a sample in one line.
func FormatSample(s *host.Sample) string {
	return fmt.Sprintf("t=%.3fs out=[%.4f %.4f] in=[%.3fV %.3fV]",
		s.TimeSeconds, s.Fractions[0], s.Fractions[1], s.Voltages[0], s.Voltages[1])
}

func (s *Shell) print(c *ishell.Context, v interface{}, text string) {
	if !s.OutputJSON {
		c.Println(text)
		return
	}
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

var (
	// SetCmd sends a command frame.
	SetCmd = ishell.Cmd{
		Name:    "set",
		Aliases: []string{"s"},
		Help:    "FRACTION0 FRACTION1",
		Func: func(c *ishell.Context) {
			f, err := ParseFractions(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if err := ShellFrom(c).Peer.SendCommand(f[0], f[1]); err != nil {
				c.Err(err)
			}
		},
	}

	// RawCmd sends arbitrary bytes.
	RawCmd = ishell.Cmd{
		Name: "raw",
		Help: "HEX...",
		Func: func(c *ishell.Context) {
			data, err := ParseHex(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if err := ShellFrom(c).Peer.SendRaw(data); err != nil {
				c.Err(err)
			}
		},
	}

	// LastCmd prints the latest telemetry.
	LastCmd = ishell.Cmd{
		Name:    "last",
		Aliases: []string{"l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			sample := s.Peer.Last()
			if sample == nil {
				c.Println("No telemetry received")
				return
			}
			s.print(c, sample, FormatSample(sample))
		},
	}

	// WatchCmd prints telemetry for a while.
	WatchCmd = ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "[DURATION]",
		Func: func(c *ishell.Context) {
			dur := time.Second
			if len(c.Args) > 0 {
				var err error
				if dur, err = time.ParseDuration(c.Args[0]); err != nil {
					c.Err(err)
					return
				}
			}
			s := ShellFrom(c)
			samples, cancel := s.Peer.Watch(16)
			defer cancel()
			ctx, stop := context.WithTimeout(context.Background(), dur)
			defer stop()
			for {
				select {
				case sample := <-samples:
					s.print(c, &sample, FormatSample(&sample))
				case <-ctx.Done():
					return
				}
			}
		},
	}

	// StatsCmd prints receive counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			stats := s.Peer.Stats()
			s.print(c, stats, fmt.Sprintf("received=%d malformed=%d", stats.Received, stats.Malformed))
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	host.SetupFlags()
	flag.Parse()
	peer, err := host.NewConfig().Dial()
	if err != nil {
		glog.Fatalln(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go peer.Run(ctx)
	if err := New(peer).Run(flag.Args()...); err != nil {
		glog.Fatalln(err)
	}
}
