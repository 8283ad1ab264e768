// Package protocol defines the wire format of the RGB-D streaming session:
// message type codes, packet headers, and the frame message the producer
// hands to the fragmenter.
package protocol

import (
	"encoding/binary"
	"errors"
	"math"
)

// ByteOrder is the byte order of every multi-byte field on the wire.
var ByteOrder = binary.LittleEndian

// Message type codes. 0, 1 and 2 are fixed by the protocol (receiver to
// sender); 3-5 are sender-to-receiver and chosen by this implementation,
// fixed for the protocol's lifetime.
const (
	MsgPing           uint8 = 0
	MsgReceiverReport uint8 = 1
	MsgNack           uint8 = 2
	MsgInit           uint8 = 3
	MsgFrameData      uint8 = 4
	MsgFrameParity    uint8 = 5
)

// ReceiverReportSize is the encoded size of a type-1 datagram, header
// byte included.
const ReceiverReportSize = 1 + 4 + 4 + 4 + 4 + 4

// FrameDataHeaderSize is the size of the header on every type-4 packet,
// before the payload slice.
const FrameDataHeaderSize = 1 + 4 + 4 + 4 + 4

// FrameParityHeaderSize is the size of the header on every type-5
// packet, before the parity bytes.
const FrameParityHeaderSize = 1 + 4 + 4 + 4 + 4

// InitHeaderSize is the size of the header on every type-3 packet,
// before the calibration fragment bytes.
const InitHeaderSize = 1 + 4 + 4 + 4

var (
	// ErrPacketTooSmall is returned when a datagram is shorter than its
	// message type requires.
	ErrPacketTooSmall = errors.New("protocol: packet too small")
	// ErrUnknownMessageType names an unrecognized leading byte. No
	// function in this package returns it; MessageType reports any byte.
	ErrUnknownMessageType = errors.New("protocol: unknown message type")
)

// ReceiverReport is the type-1 datagram a receiver sends once per decoded
// frame.
type ReceiverReport struct {
	FrameID            int32
	PacketCollectionMS float32
	DecoderMS          float32
	FrameTimestampMS   float32
	PacketCount        int32
}

// Encode writes the report as a type-1 datagram.
func (r ReceiverReport) Encode() []byte {
	buf := make([]byte, ReceiverReportSize)
	buf[0] = MsgReceiverReport
	ByteOrder.PutUint32(buf[1:5], uint32(r.FrameID))
	ByteOrder.PutUint32(buf[5:9], math.Float32bits(r.PacketCollectionMS))
	ByteOrder.PutUint32(buf[9:13], math.Float32bits(r.DecoderMS))
	ByteOrder.PutUint32(buf[13:17], math.Float32bits(r.FrameTimestampMS))
	ByteOrder.PutUint32(buf[17:21], uint32(r.PacketCount))
	return buf
}

// DecodeReceiverReport parses a type-1 datagram; data includes the
// leading type byte.
func DecodeReceiverReport(data []byte) (ReceiverReport, error) {
	if len(data) < ReceiverReportSize {
		return ReceiverReport{}, ErrPacketTooSmall
	}
	return ReceiverReport{
		FrameID:            int32(ByteOrder.Uint32(data[1:5])),
		PacketCollectionMS: math.Float32frombits(ByteOrder.Uint32(data[5:9])),
		DecoderMS:          math.Float32frombits(ByteOrder.Uint32(data[9:13])),
		FrameTimestampMS:   math.Float32frombits(ByteOrder.Uint32(data[13:17])),
		PacketCount:        int32(ByteOrder.Uint32(data[17:21])),
	}, nil
}

// Nack is the type-2 datagram a receiver sends to request retransmission
// of specific packet indices within one frame.
type Nack struct {
	FrameID int32
	Missing []int32
}

// Encode writes the NACK as a type-2 datagram.
func (n Nack) Encode() []byte {
	buf := make([]byte, 1+4+4+4*len(n.Missing))
	buf[0] = MsgNack
	ByteOrder.PutUint32(buf[1:5], uint32(n.FrameID))
	ByteOrder.PutUint32(buf[5:9], uint32(len(n.Missing)))
	cursor := 9
	for _, idx := range n.Missing {
		ByteOrder.PutUint32(buf[cursor:cursor+4], uint32(idx))
		cursor += 4
	}
	return buf
}

// DecodeNack parses a type-2 datagram; data includes the leading type
// byte.
func DecodeNack(data []byte) (Nack, error) {
	if len(data) < 9 {
		return Nack{}, ErrPacketTooSmall
	}
	frameID := int32(ByteOrder.Uint32(data[1:5]))
	count := int(ByteOrder.Uint32(data[5:9]))
	if count < 0 || len(data) < 9+4*count {
		return Nack{}, ErrPacketTooSmall
	}
	missing := make([]int32, count)
	cursor := 9
	for i := 0; i < count; i++ {
		missing[i] = int32(ByteOrder.Uint32(data[cursor : cursor+4]))
		cursor += 4
	}
	return Nack{FrameID: frameID, Missing: missing}, nil
}

// FrameDataHeader identifies one data-packet fragment of a frame.
type FrameDataHeader struct {
	SessionID   int32
	FrameID     int32
	PacketIndex int32
	PacketCount int32
}

// EncodeFrameData writes a type-4 datagram combining the header with a
// payload slice.
func EncodeFrameData(h FrameDataHeader, payload []byte) []byte {
	buf := make([]byte, FrameDataHeaderSize+len(payload))
	buf[0] = MsgFrameData
	ByteOrder.PutUint32(buf[1:5], uint32(h.SessionID))
	ByteOrder.PutUint32(buf[5:9], uint32(h.FrameID))
	ByteOrder.PutUint32(buf[9:13], uint32(h.PacketIndex))
	ByteOrder.PutUint32(buf[13:17], uint32(h.PacketCount))
	copy(buf[FrameDataHeaderSize:], payload)
	return buf
}

// DecodeFrameData parses a type-4 datagram; the returned payload aliases
// data.
func DecodeFrameData(data []byte) (FrameDataHeader, []byte, error) {
	if len(data) < FrameDataHeaderSize {
		return FrameDataHeader{}, nil, ErrPacketTooSmall
	}
	h := FrameDataHeader{
		SessionID:   int32(ByteOrder.Uint32(data[1:5])),
		FrameID:     int32(ByteOrder.Uint32(data[5:9])),
		PacketIndex: int32(ByteOrder.Uint32(data[9:13])),
		PacketCount: int32(ByteOrder.Uint32(data[13:17])),
	}
	return h, data[FrameDataHeaderSize:], nil
}

// FrameParityHeader identifies one XOR parity packet covering a group of
// consecutive data-packet indices within a frame.
type FrameParityHeader struct {
	SessionID   int32
	FrameID     int32
	GroupStart  int32
	GroupLength int32
}

// EncodeFrameParity writes a type-5 datagram combining the header with
// parity bytes.
func EncodeFrameParity(h FrameParityHeader, parity []byte) []byte {
	buf := make([]byte, FrameParityHeaderSize+len(parity))
	buf[0] = MsgFrameParity
	ByteOrder.PutUint32(buf[1:5], uint32(h.SessionID))
	ByteOrder.PutUint32(buf[5:9], uint32(h.FrameID))
	ByteOrder.PutUint32(buf[9:13], uint32(h.GroupStart))
	ByteOrder.PutUint32(buf[13:17], uint32(h.GroupLength))
	copy(buf[FrameParityHeaderSize:], parity)
	return buf
}

// DecodeFrameParity parses a type-5 datagram; the returned parity slice
// aliases data.
func DecodeFrameParity(data []byte) (FrameParityHeader, []byte, error) {
	if len(data) < FrameParityHeaderSize {
		return FrameParityHeader{}, nil, ErrPacketTooSmall
	}
	h := FrameParityHeader{
		SessionID:   int32(ByteOrder.Uint32(data[1:5])),
		FrameID:     int32(ByteOrder.Uint32(data[5:9])),
		GroupStart:  int32(ByteOrder.Uint32(data[9:13])),
		GroupLength: int32(ByteOrder.Uint32(data[13:17])),
	}
	return h, data[FrameParityHeaderSize:], nil
}

// InitHeader identifies one fragment of the init packet's calibration
// blob.
type InitHeader struct {
	SessionID     int32
	FragmentIndex int32
	FragmentCount int32
}

// EncodeInit writes a type-3 datagram combining the header with a
// calibration-blob fragment.
func EncodeInit(h InitHeader, fragment []byte) []byte {
	buf := make([]byte, InitHeaderSize+len(fragment))
	buf[0] = MsgInit
	ByteOrder.PutUint32(buf[1:5], uint32(h.SessionID))
	ByteOrder.PutUint32(buf[5:9], uint32(h.FragmentIndex))
	ByteOrder.PutUint32(buf[9:13], uint32(h.FragmentCount))
	copy(buf[InitHeaderSize:], fragment)
	return buf
}

// DecodeInit parses a type-3 datagram; the returned fragment aliases
// data.
func DecodeInit(data []byte) (InitHeader, []byte, error) {
	if len(data) < InitHeaderSize {
		return InitHeader{}, nil, ErrPacketTooSmall
	}
	h := InitHeader{
		SessionID:     int32(ByteOrder.Uint32(data[1:5])),
		FragmentIndex: int32(ByteOrder.Uint32(data[5:9])),
		FragmentCount: int32(ByteOrder.Uint32(data[9:13])),
	}
	return h, data[InitHeaderSize:], nil
}

// MessageType returns the leading type byte of a datagram, or an error
// if data is empty.
func MessageType(data []byte) (uint8, error) {
	if len(data) < 1 {
		return 0, ErrPacketTooSmall
	}
	return data[0], nil
}
