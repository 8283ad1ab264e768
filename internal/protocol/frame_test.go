package protocol

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestFrameMessageRoundTrip(t *testing.T) {
	want := FrameMessage{
		FrameTimestampMS: 123456.5,
		Keyframe:         true,
		Color:            []byte("compressed color bytes"),
		Depth:            []byte("compressed depth bytes"),
	}
	got, err := DecodeFrameMessage(want.Encode())
	if err != nil {
		t.Fatalf("DecodeFrameMessage: %v", err)
	}
	if got.FrameTimestampMS != want.FrameTimestampMS || got.Keyframe != want.Keyframe ||
		!bytes.Equal(got.Color, want.Color) || !bytes.Equal(got.Depth, want.Depth) {
		t.Fatalf("round trip mismatch: want %+v, got %+v", want, got)
	}
}

func TestFrameMessageEmptyPayloads(t *testing.T) {
	want := FrameMessage{FrameTimestampMS: 1, Keyframe: false}
	got, err := DecodeFrameMessage(want.Encode())
	if err != nil {
		t.Fatalf("DecodeFrameMessage: %v", err)
	}
	if len(got.Color) != 0 || len(got.Depth) != 0 {
		t.Fatalf("expected empty payloads, got %+v", got)
	}
}

// TestFragmentThenReassemble is the fragment-then-reassemble round-trip
// law: splitting a frame message into data packets and reassembling in
// arbitrary (here: reverse) order yields the exact original bytes.
func TestFragmentThenReassemble(t *testing.T) {
	message := FrameMessage{
		FrameTimestampMS: 42,
		Keyframe:         false,
		Color:            bytes.Repeat([]byte{0xAB}, 3000),
		Depth:            bytes.Repeat([]byte{0xCD}, 1200),
	}.Encode()

	packets := Fragment(7, 3, message, 1500)
	if len(packets) < 2 {
		t.Fatalf("expected multiple fragments, got %d", len(packets))
	}

	payloads := make([][]byte, len(packets))
	for i := len(packets) - 1; i >= 0; i-- {
		h, payload, err := DecodeFrameData(packets[i])
		if err != nil {
			t.Fatalf("DecodeFrameData: %v", err)
		}
		if int(h.PacketCount) != len(packets) {
			t.Fatalf("inconsistent packet count: header says %d, have %d", h.PacketCount, len(packets))
		}
		payloads[h.PacketIndex] = payload
	}

	got := Reassemble(payloads)
	if !bytes.Equal(got, message) {
		t.Fatalf("reassembled bytes do not match original: got %d bytes, want %d bytes", len(got), len(message))
	}
}

func TestFragmentPacketCountMatchesLength(t *testing.T) {
	message := make([]byte, 7000)
	rand.New(rand.NewSource(1)).Read(message)
	mtu := 1500
	packets := Fragment(1, 1, message, mtu)

	payloadSize := mtu - FrameDataHeaderSize
	wantCount := (len(message) + payloadSize - 1) / payloadSize
	if len(packets) != wantCount {
		t.Fatalf("expected %d packets, got %d", wantCount, len(packets))
	}
	for i, p := range packets {
		h, payload, err := DecodeFrameData(p)
		if err != nil {
			t.Fatalf("DecodeFrameData: %v", err)
		}
		if int(h.PacketIndex) != i {
			t.Fatalf("packet %d has index %d", i, h.PacketIndex)
		}
		if i < len(packets)-1 && len(payload) != payloadSize {
			t.Fatalf("non-terminal packet %d has short payload %d", i, len(payload))
		}
	}
}
