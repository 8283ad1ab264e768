package protocol

import (
	"encoding/binary"
	"errors"
	"math"
)

// FrameMessageHeaderSize is the fixed-size portion of a frame message,
// before the variable-length color and depth payloads.
const FrameMessageHeaderSize = 4 + 1 + 4 + 4

// ErrMessageTooSmall is returned when a buffer is too short to contain a
// frame message.
var ErrMessageTooSmall = errors.New("protocol: frame message too small")

// FrameMessage is the payload the producer fragments into data packets:
// §4.4 step 5 of the session protocol.
type FrameMessage struct {
	FrameTimestampMS float32
	Keyframe         bool
	Color            []byte
	Depth            []byte
}

// Encode serializes the frame message: frame_timestamp_ms:f32,
// keyframe:u8, color length + bytes, depth length + bytes.
func (m FrameMessage) Encode() []byte {
	buf := make([]byte, FrameMessageHeaderSize+len(m.Color)+len(m.Depth))
	ByteOrder.PutUint32(buf[0:4], math.Float32bits(m.FrameTimestampMS))
	if m.Keyframe {
		buf[4] = 1
	}
	ByteOrder.PutUint32(buf[5:9], uint32(len(m.Color)))
	cursor := 9
	copy(buf[cursor:cursor+len(m.Color)], m.Color)
	cursor += len(m.Color)
	ByteOrder.PutUint32(buf[cursor:cursor+4], uint32(len(m.Depth)))
	cursor += 4
	copy(buf[cursor:cursor+len(m.Depth)], m.Depth)
	return buf
}

// DecodeFrameMessage parses a frame message produced by Encode.
func DecodeFrameMessage(data []byte) (FrameMessage, error) {
	if len(data) < FrameMessageHeaderSize {
		return FrameMessage{}, ErrMessageTooSmall
	}
	m := FrameMessage{
		FrameTimestampMS: math.Float32frombits(ByteOrder.Uint32(data[0:4])),
		Keyframe:         data[4] != 0,
	}
	colorLen := int(ByteOrder.Uint32(data[5:9]))
	cursor := 9
	if colorLen < 0 || len(data) < cursor+colorLen+4 {
		return FrameMessage{}, ErrMessageTooSmall
	}
	m.Color = data[cursor : cursor+colorLen]
	cursor += colorLen
	depthLen := int(binary.LittleEndian.Uint32(data[cursor : cursor+4]))
	cursor += 4
	if depthLen < 0 || len(data) < cursor+depthLen {
		return FrameMessage{}, ErrMessageTooSmall
	}
	m.Depth = data[cursor : cursor+depthLen]
	return m, nil
}

// Fragment splits a frame message into MTU-sized data packets, per §4.3:
// payload slices of size mtu-header_size, numbered 0..N-1 with
// packet_count fixed to N in every header. mtu must be larger than
// FrameDataHeaderSize.
func Fragment(sessionID, frameID int32, message []byte, mtu int) [][]byte {
	payloadSize := mtu - FrameDataHeaderSize
	if payloadSize <= 0 {
		panic("protocol: mtu too small for frame data header")
	}
	count := (len(message) + payloadSize - 1) / payloadSize
	if count == 0 {
		count = 1
	}
	packets := make([][]byte, count)
	for i := 0; i < count; i++ {
		start := i * payloadSize
		end := start + payloadSize
		if end > len(message) {
			end = len(message)
		}
		h := FrameDataHeader{
			SessionID:   sessionID,
			FrameID:     frameID,
			PacketIndex: int32(i),
			PacketCount: int32(count),
		}
		packets[i] = EncodeFrameData(h, message[start:end])
	}
	return packets
}

// Payload returns the data-packet's payload, i.e. the bytes following
// FrameDataHeaderSize, for a packet produced by Fragment/EncodeFrameData.
func Payload(packet []byte) []byte {
	if len(packet) < FrameDataHeaderSize {
		return nil
	}
	return packet[FrameDataHeaderSize:]
}

// Reassemble concatenates data-packet payloads given in packet_index
// order back into the original frame message bytes. It assumes every
// entry of payloads is present (no nil gaps).
func Reassemble(payloads [][]byte) []byte {
	total := 0
	for _, p := range payloads {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range payloads {
		out = append(out, p...)
	}
	return out
}
