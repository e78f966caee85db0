package mirror

import (
	"errors"
	"fmt"

	"github.com/golang/protobuf/proto"
)

// TypeID masks
const (
	TypeIDMaskKind  uint32 = 0x80000000
	TypeIDKindEvent uint32 = 0x80000000
)

// Message type IDs.
const (
	TelemetrySampleTypeID uint32 = TypeIDKindEvent | 0x00010001
	BridgeStatsTypeID     uint32 = TypeIDKindEvent | 0x00010002
)

// Message is a protobuf message with a type ID.
type Message interface {
	proto.Message
	TypeID() uint32
}

// MessageTypes maps type IDs to message factories.
var MessageTypes = map[uint32]func() Message{
	TelemetrySampleTypeID: func() Message { return &TelemetrySample{} },
	BridgeStatsTypeID:     func() Message { return &BridgeStats{} },
}

// ErrUnknownType indicates unknown type id.
type ErrUnknownType struct {
	TypeID uint32
}

// Error implements error.
func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("unknown type: %x", e.TypeID)
}

// ErrNilMessage is returned when encoding a nil message.
var ErrNilMessage = errors.New("nil message")

// Typed wraps an encoded message with its type ID.
type Typed struct {
	TypeId  uint32 `protobuf:"varint,1,opt,name=type_id,json=typeId,proto3" json:"type_id,omitempty"`
	Message []byte `protobuf:"bytes,2,opt,name=message,proto3" json:"message,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Typed) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Typed) Reset() { *m = Typed{} }

// String implements proto.Message.
func (m *Typed) String() string { return proto.CompactTextString(m) }

// TypedFrom encodes msg into a Typed.
func TypedFrom(msg Message) (*Typed, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return &Typed{TypeId: msg.TypeID(), Message: data}, nil
}

// Decode decodes the wrapped message.
func (m *Typed) Decode() (Message, error) {
	factory, ok := MessageTypes[m.TypeId]
	if !ok {
		return nil, &ErrUnknownType{TypeID: m.TypeId}
	}
	msg := factory()
	if err := proto.Unmarshal(m.Message, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Encode encodes the Typed to bytes.
func (m *Typed) Encode() ([]byte, error) {
	return proto.Marshal(m)
}

// DecodeTyped decodes bytes into Typed.
func DecodeTyped(data []byte) (*Typed, error) {
	var typed Typed
	if err := proto.Unmarshal(data, &typed); err != nil {
		return nil, err
	}
	return &typed, nil
}

// TelemetrySample is a decimated copy of the bridge state.
type TelemetrySample struct {
	TimestampMicros int64     `protobuf:"varint,1,opt,name=timestamp_micros,json=timestampMicros,proto3" json:"timestamp_micros,omitempty"`
	Fractions       []float32 `protobuf:"fixed32,2,rep,packed,name=fractions,proto3" json:"fractions,omitempty"`
	Voltages        []float32 `protobuf:"fixed32,3,rep,packed,name=voltages,proto3" json:"voltages,omitempty"`
}

// TypeID implements Message.
func (m *TelemetrySample) TypeID() uint32 { return TelemetrySampleTypeID }

// ProtoMessage implements proto.Message.
func (m *TelemetrySample) ProtoMessage() {}

// Reset implements proto.Message.
func (m *TelemetrySample) Reset() { *m = TelemetrySample{} }

// String implements proto.Message.
func (m *TelemetrySample) String() string { return proto.CompactTextString(m) }

// BridgeStats carries the bridge and loop counters.
type BridgeStats struct {
	CommandsReceived    uint64 `protobuf:"varint,1,opt,name=commands_received,json=commandsReceived,proto3" json:"commands_received,omitempty"`
	CommandsApplied     uint64 `protobuf:"varint,2,opt,name=commands_applied,json=commandsApplied,proto3" json:"commands_applied,omitempty"`
	Undersized          uint64 `protobuf:"varint,3,opt,name=undersized,proto3" json:"undersized,omitempty"`
	ReceiveErrors       uint64 `protobuf:"varint,4,opt,name=receive_errors,json=receiveErrors,proto3" json:"receive_errors,omitempty"`
	OutputErrors        uint64 `protobuf:"varint,5,opt,name=output_errors,json=outputErrors,proto3" json:"output_errors,omitempty"`
	TelemetrySent       uint64 `protobuf:"varint,6,opt,name=telemetry_sent,json=telemetrySent,proto3" json:"telemetry_sent,omitempty"`
	SendErrors          uint64 `protobuf:"varint,7,opt,name=send_errors,json=sendErrors,proto3" json:"send_errors,omitempty"`
	InputErrors         uint64 `protobuf:"varint,8,opt,name=input_errors,json=inputErrors,proto3" json:"input_errors,omitempty"`
	CommandIterations   uint64 `protobuf:"varint,9,opt,name=command_iterations,json=commandIterations,proto3" json:"command_iterations,omitempty"`
	CommandOverruns     uint64 `protobuf:"varint,10,opt,name=command_overruns,json=commandOverruns,proto3" json:"command_overruns,omitempty"`
	CommandSkipped      uint64 `protobuf:"varint,11,opt,name=command_skipped,json=commandSkipped,proto3" json:"command_skipped,omitempty"`
	TelemetryIterations uint64 `protobuf:"varint,12,opt,name=telemetry_iterations,json=telemetryIterations,proto3" json:"telemetry_iterations,omitempty"`
	TelemetryOverruns   uint64 `protobuf:"varint,13,opt,name=telemetry_overruns,json=telemetryOverruns,proto3" json:"telemetry_overruns,omitempty"`
	TelemetrySkipped    uint64 `protobuf:"varint,14,opt,name=telemetry_skipped,json=telemetrySkipped,proto3" json:"telemetry_skipped,omitempty"`
}

// TypeID implements Message.
func (m *BridgeStats) TypeID() uint32 { return BridgeStatsTypeID }

// ProtoMessage implements proto.Message.
func (m *BridgeStats) ProtoMessage() {}

// Reset implements proto.Message.
func (m *BridgeStats) Reset() { *m = BridgeStats{} }

// String implements proto.Message.
func (m *BridgeStats) String() string { return proto.CompactTextString(m) }
