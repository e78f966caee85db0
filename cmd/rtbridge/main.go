package main

import (
	"flag"
	"io"

	"github.com/golang/glog"

	"github.com/robotalks/rtbridge/pkg/bridge"
	fx "github.com/robotalks/rtbridge/pkg/framework"
	"github.com/robotalks/rtbridge/pkg/hal"
	"github.com/robotalks/rtbridge/pkg/hal/periph"
	"github.com/robotalks/rtbridge/pkg/hal/sim"
	"github.com/robotalks/rtbridge/pkg/mirror"
	"github.com/robotalks/rtbridge/pkg/transport/udp"
)

var halName = "sim"

func init() {
	flag.StringVar(&halName, "hal", halName, "Peripheral backend: sim or periph")
	bridge.SetupFlags()
	udp.SetupFlags()
	sim.SetupFlags()
	periph.SetupFlags()
	mirror.SetupFlags()
}

func mustPeripheral() hal.Peripheral {
	switch halName {
	case "sim":
		return sim.NewConfig().NewPeripheral(nil)
	case "periph":
		p, err := periph.NewConfig().New()
		if err != nil {
			glog.Fatalf("periph: %v", err)
		}
		return p
	}
	glog.Fatalf("unknown hal %q", halName)
	return nil
}

func main() {
	flag.Parse()
	defer glog.Flush()

	p := mustPeripheral()
	if closer, ok := p.(io.Closer); ok {
		defer closer.Close()
	}
	tr := udp.NewConfig().MustNew()
	b := bridge.NewConfig().MustNew(p, tr)
	b.AddRunnable(fx.NamedRun("udp", tr))

	if conf := mirror.NewConfig(); conf.Enabled() {
		pub, err := conf.NewPublisher(b)
		if err != nil {
			glog.Fatalf("mirror: %v", err)
		}
		b.AddRunnable(fx.NamedRun("mirror", pub))
	}

	err := fx.NewRunner().
		HandleSignals().
		Go(fx.NamedRun("bridge", fx.RunFunc(b.Run))).
		Wait()
	if err != nil {
		glog.Errorf("bridge stopped: %v", err)
	}
}
