package mirror

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rtbridge/pkg/bridge"
	"github.com/robotalks/rtbridge/pkg/hal/sim"
	"github.com/robotalks/rtbridge/pkg/transport/mem"
)

func newBridge(t *testing.T) *bridge.Bridge {
	b, err := bridge.NewConfig().New(sim.New(sim.Config{Gain: 1}, nil), mem.NewLink(0).A)
	require.NoError(t, err)
	return b
}

func TestTypedRoundTrip(t *testing.T) {
	sample := SampleFrom(bridge.Snapshot{
		TimestampMicros: 1234,
		Fractions:       [2]float32{0.5, 0.25},
		Voltages:        [2]float32{1.65, 0.8},
	})
	typed, err := TypedFrom(sample)
	require.NoError(t, err)
	require.Equal(t, TelemetrySampleTypeID, typed.TypeId)
	data, err := typed.Encode()
	require.NoError(t, err)

	decoded, err := DecodeTyped(data)
	require.NoError(t, err)
	msg, err := decoded.Decode()
	require.NoError(t, err)
	require.Equal(t, sample, msg)

	_, err = (&Typed{TypeId: 7}).Decode()
	require.Error(t, err)
	require.IsType(t, &ErrUnknownType{}, err)

	_, err = TypedFrom(nil)
	require.Equal(t, ErrNilMessage, err)
}

func TestStatsFrom(t *testing.T) {
	b := newBridge(t)
	b.Stats.CommandsReceived.Add(2)
	b.Stats.SendErrors.Add(1)
	stats := StatsFrom(b)
	require.Equal(t, uint64(2), stats.CommandsReceived)
	require.Equal(t, uint64(1), stats.SendErrors)
	require.Zero(t, stats.TelemetryIterations)
}

func TestMeta(t *testing.T) {
	conf := NewConfig()
	conf.ID = "dev1"
	require.Equal(t, "rtbridge/dev1", conf.Name())
	require.False(t, conf.Enabled())

	data, err := json.Marshal(conf.NewMeta(newBridge(t)))
	require.NoError(t, err)
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &meta))
	require.Equal(t, "dev1", meta["id"])
	require.Equal(t, float64(20), meta["command_period_ms"])
	require.Equal(t, float64(10), meta["telemetry_period_ms"])
	require.Equal(t, "duty", meta["clamp"])
}

func TestNewPublisher(t *testing.T) {
	conf := NewConfig()
	conf.ID = "dev1"
	conf.MQTTBrokerURL = "mqtt://localhost:1883/lab/"
	p, err := conf.NewPublisher(newBridge(t))
	require.NoError(t, err)
	require.Equal(t, "lab/", p.Queue.TopicPrefix)
	require.NotNil(t, p.Queue.OnConnect)
}
