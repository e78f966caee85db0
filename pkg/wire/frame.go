// Package wire encodes the datagrams exchanged between the bridge and its host.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// Channels is the number of outputs and inputs carried in a frame.
	Channels = 2
	// CommandFrameSize is the minimal size of a command datagram.
	CommandFrameSize = Channels * 4
	// TelemetryFrameSize is the size of a telemetry datagram.
	TelemetryFrameSize = (1 + 2*Channels) * 4
)

// ErrFrameTooShort is matched by all FrameSizeError values.
var ErrFrameTooShort = errors.New("frame too short")

// FrameSizeError reports a datagram shorter than the frame it should hold.
type FrameSizeError struct {
	Want int
	Got  int
}

// Error implements error.
func (e *FrameSizeError) Error() string {
	return fmt.Sprintf("frame too short: %d bytes, want %d", e.Got, e.Want)
}

// Is makes errors.Is(err, ErrFrameTooShort) true.
func (e *FrameSizeError) Is(target error) bool {
	return target == ErrFrameTooShort
}

// CommandFrame carries the commanded output fractions.
type CommandFrame struct {
	Fractions [Channels]float32
}

// TelemetryFrame is one sample sent to the host.
type TelemetryFrame struct {
	// TimeSeconds is the sample timestamp in seconds of the bridge
	// monotonic clock.
	TimeSeconds float32
	Fractions   [Channels]float32
	Voltages    [Channels]float32
}

// Codec converts frames from and to bytes.
type Codec interface {
	// DecodeCommand parses the leading CommandFrameSize bytes of b,
	// trailing bytes are ignored.
	DecodeCommand(b []byte) (CommandFrame, error)
	// EncodeCommand appends the encoded frame to b.
	EncodeCommand(b []byte, f CommandFrame) []byte
	// EncodeTelemetry appends the encoded frame to b.
	EncodeTelemetry(b []byte, f TelemetryFrame) []byte
	DecodeTelemetry(b []byte) (TelemetryFrame, error)
}

// LittleEndian encodes every field as a little-endian IEEE-754 float32.
var LittleEndian Codec = leCodec{}

type leCodec struct{}

func getF32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func appendF32(b []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
}

func (leCodec) DecodeCommand(b []byte) (f CommandFrame, err error) {
	if len(b) < CommandFrameSize {
		return f, &FrameSizeError{Want: CommandFrameSize, Got: len(b)}
	}
	for i := range f.Fractions {
		f.Fractions[i] = getF32(b[i*4:])
	}
	return f, nil
}

func (leCodec) EncodeCommand(b []byte, f CommandFrame) []byte {
	for _, v := range f.Fractions {
		b = appendF32(b, v)
	}
	return b
}

func (leCodec) EncodeTelemetry(b []byte, f TelemetryFrame) []byte {
	b = appendF32(b, f.TimeSeconds)
	for _, v := range f.Fractions {
		b = appendF32(b, v)
	}
	for _, v := range f.Voltages {
		b = appendF32(b, v)
	}
	return b
}

func (leCodec) DecodeTelemetry(b []byte) (f TelemetryFrame, err error) {
	if len(b) < TelemetryFrameSize {
		return f, &FrameSizeError{Want: TelemetryFrameSize, Got: len(b)}
	}
	f.TimeSeconds = getF32(b)
	for i := range f.Fractions {
		f.Fractions[i] = getF32(b[4+i*4:])
	}
	for i := range f.Voltages {
		f.Voltages[i] = getF32(b[4+Channels*4+i*4:])
	}
	return f, nil
}

// SecondsFromMicros converts a microsecond timestamp to the frame time field.
func SecondsFromMicros(us int64) float32 {
	return float32(float64(us) / 1e6)
}
