// Package mirror republishes the bridge state to MQTT for monitoring.
// It samples the shared state on its own schedule and never touches the
// loops.
package mirror

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/rtbridge/pkg/bridge"
	"github.com/robotalks/rtbridge/pkg/mirror/mqtt"
	"github.com/robotalks/rtbridge/pkg/wire"
)

// Topic suffixes under <type>/<id>/.
const (
	TopicMeta      = "meta"
	TopicTelemetry = "telemetry"
	TopicStats     = "stats"
)

// Meta is the retained description of a bridge.
type Meta struct {
	Type              string  `json:"type"`
	ID                string  `json:"id"`
	Channels          int     `json:"channels"`
	CommandPeriodMS   float64 `json:"command_period_ms"`
	TelemetryPeriodMS float64 `json:"telemetry_period_ms"`
	OutputBits        int     `json:"output_bits"`
	InputBits         int     `json:"input_bits"`
	FullScaleVolts    float64 `json:"full_scale_volts"`
	Clamp             string  `json:"clamp"`
}

// Publisher mirrors a Bridge to MQTT.
type Publisher struct {
	Config Config
	Queue  *mqtt.Queue
	Bridge *bridge.Bridge

	metaJSON []byte
}

// NewMeta describes the bridge.
func (c *Config) NewMeta(b *bridge.Bridge) Meta {
	return Meta{
		Type:              c.Type,
		ID:                c.ID,
		Channels:          wire.Channels,
		CommandPeriodMS:   float64(b.Config.CommandPeriod) / float64(time.Millisecond),
		TelemetryPeriodMS: float64(b.Config.TelemetryPeriod) / float64(time.Millisecond),
		OutputBits:        b.Config.HAL.OutputBits,
		InputBits:         b.Config.HAL.InputBits,
		FullScaleVolts:    b.Config.HAL.FullScaleVolts,
		Clamp:             b.Config.HAL.Clamp.String(),
	}
}

// NewPublisher creates a Publisher. The retained meta is cleared by
// the broker when the connection drops.
func (c *Config) NewPublisher(b *bridge.Bridge) (*Publisher, error) {
	meta, err := json.Marshal(c.NewMeta(b))
	if err != nil {
		return nil, err
	}
	opts, topicPrefix, err := mqtt.ClientOptionsFromURL(c.MQTTBrokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+c.Name()+"/"+TopicMeta, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("rtbridge:" + c.ID)
	}
	p := &Publisher{
		Config:   *c,
		Queue:    mqtt.NewQueue(opts, topicPrefix),
		Bridge:   b,
		metaJSON: meta,
	}
	p.Queue.OnConnect = func(*mqtt.Queue) { p.publishMeta() }
	return p, nil
}

// Run implements framework.Runnable.
func (p *Publisher) Run(ctx context.Context) error {
	p.Queue.Connect()
	sampleInterval, statsInterval := p.Config.SampleInterval, p.Config.StatsInterval
	if sampleInterval <= 0 {
		sampleInterval = defaultConfig.SampleInterval
	}
	if statsInterval <= 0 {
		statsInterval = defaultConfig.StatsInterval
	}
	samples, stats := time.NewTicker(sampleInterval), time.NewTicker(statsInterval)
	defer samples.Stop()
	defer stats.Stop()
	for {
		select {
		case <-ctx.Done():
			p.Queue.PubWith(p.Config.Name()+"/"+TopicMeta, nil, 1, true).WaitTimeout(time.Second)
			p.Queue.Close()
			return ctx.Err()
		case <-samples.C:
			p.publish(TopicTelemetry, SampleFrom(p.Bridge.State.Snapshot()))
		case <-stats.C:
			p.publish(TopicStats, StatsFrom(p.Bridge))
		}
	}
}

func (p *Publisher) publishMeta() {
	p.Queue.PubWith(p.Config.Name()+"/"+TopicMeta, p.metaJSON, 1, true)
}

func (p *Publisher) publish(topic string, msg Message) {
	typed, err := TypedFrom(msg)
	if err == nil {
		var data []byte
		if data, err = typed.Encode(); err == nil {
			p.Queue.Pub(p.Config.Name()+"/"+topic, data)
			return
		}
	}
	glog.Errorf("mirror %s: %v", topic, err)
}

// SampleFrom converts a state snapshot.
func SampleFrom(snap bridge.Snapshot) *TelemetrySample {
	return &TelemetrySample{
		TimestampMicros: snap.TimestampMicros,
		Fractions:       append([]float32(nil), snap.Fractions[:]...),
		Voltages:        append([]float32(nil), snap.Voltages[:]...),
	}
}

// StatsFrom collects the counters of a bridge.
func StatsFrom(b *bridge.Bridge) *BridgeStats {
	s := b.Stats.Snapshot()
	cmd, tele := b.Command.Stats(), b.Telemetry.Stats()
	return &BridgeStats{
		CommandsReceived:    s.CommandsReceived,
		CommandsApplied:     s.CommandsApplied,
		Undersized:          s.Undersized,
		ReceiveErrors:       s.ReceiveErrors,
		OutputErrors:        s.OutputErrors,
		TelemetrySent:       s.TelemetrySent,
		SendErrors:          s.SendErrors,
		InputErrors:         s.InputErrors,
		CommandIterations:   cmd.Iterations,
		CommandOverruns:     cmd.Overruns,
		CommandSkipped:      cmd.Skipped,
		TelemetryIterations: tele.Iterations,
		TelemetryOverruns:   tele.Overruns,
		TelemetrySkipped:    tele.Skipped,
	}
}
