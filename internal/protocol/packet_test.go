package protocol

import (
	"bytes"
	"testing"
)

func TestReceiverReportRoundTrip(t *testing.T) {
	want := ReceiverReport{
		FrameID:            42,
		PacketCollectionMS: 1.5,
		DecoderMS:          2.25,
		FrameTimestampMS:   1000.75,
		PacketCount:        7,
	}
	encoded := want.Encode()
	if encoded[0] != MsgReceiverReport {
		t.Fatalf("expected type byte %d, got %d", MsgReceiverReport, encoded[0])
	}
	got, err := DecodeReceiverReport(encoded)
	if err != nil {
		t.Fatalf("DecodeReceiverReport: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: want %+v, got %+v", want, got)
	}
}

func TestDecodeReceiverReportTooSmall(t *testing.T) {
	if _, err := DecodeReceiverReport([]byte{MsgReceiverReport, 1, 2}); err != ErrPacketTooSmall {
		t.Fatalf("expected ErrPacketTooSmall, got %v", err)
	}
}

func TestNackRoundTrip(t *testing.T) {
	want := Nack{FrameID: 7, Missing: []int32{1, 2, 9}}
	encoded := want.Encode()
	if encoded[0] != MsgNack {
		t.Fatalf("expected type byte %d, got %d", MsgNack, encoded[0])
	}
	got, err := DecodeNack(encoded)
	if err != nil {
		t.Fatalf("DecodeNack: %v", err)
	}
	if got.FrameID != want.FrameID || !equalInt32(got.Missing, want.Missing) {
		t.Fatalf("round trip mismatch: want %+v, got %+v", want, got)
	}
}

func equalInt32(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNackEmptyMissing(t *testing.T) {
	want := Nack{FrameID: 3, Missing: nil}
	got, err := DecodeNack(want.Encode())
	if err != nil {
		t.Fatalf("DecodeNack: %v", err)
	}
	if got.FrameID != 3 || len(got.Missing) != 0 {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestFrameDataRoundTrip(t *testing.T) {
	h := FrameDataHeader{SessionID: 11, FrameID: 3, PacketIndex: 1, PacketCount: 4}
	payload := []byte("some fragment bytes")
	encoded := EncodeFrameData(h, payload)
	if encoded[0] != MsgFrameData {
		t.Fatalf("expected type byte %d, got %d", MsgFrameData, encoded[0])
	}
	gotH, gotPayload, err := DecodeFrameData(encoded)
	if err != nil {
		t.Fatalf("DecodeFrameData: %v", err)
	}
	if gotH != h {
		t.Fatalf("header mismatch: want %+v, got %+v", h, gotH)
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Fatalf("payload mismatch: want %q, got %q", payload, gotPayload)
	}
}

func TestFrameParityRoundTrip(t *testing.T) {
	h := FrameParityHeader{SessionID: 5, FrameID: 9, GroupStart: 0, GroupLength: 3}
	parity := []byte{1, 2, 3, 4}
	encoded := EncodeFrameParity(h, parity)
	if encoded[0] != MsgFrameParity {
		t.Fatalf("expected type byte %d, got %d", MsgFrameParity, encoded[0])
	}
	gotH, gotParity, err := DecodeFrameParity(encoded)
	if err != nil {
		t.Fatalf("DecodeFrameParity: %v", err)
	}
	if gotH != h || !bytes.Equal(gotParity, parity) {
		t.Fatalf("mismatch: want (%+v, %v), got (%+v, %v)", h, parity, gotH, gotParity)
	}
}

func TestInitRoundTrip(t *testing.T) {
	h := InitHeader{SessionID: 99, FragmentIndex: 0, FragmentCount: 2}
	frag := []byte("calibration-blob-fragment")
	encoded := EncodeInit(h, frag)
	if encoded[0] != MsgInit {
		t.Fatalf("expected type byte %d, got %d", MsgInit, encoded[0])
	}
	gotH, gotFrag, err := DecodeInit(encoded)
	if err != nil {
		t.Fatalf("DecodeInit: %v", err)
	}
	if gotH != h || !bytes.Equal(gotFrag, frag) {
		t.Fatalf("mismatch: want (%+v, %v), got (%+v, %v)", h, frag, gotH, gotFrag)
	}
}

func TestMessageType(t *testing.T) {
	mt, err := MessageType([]byte{MsgPing})
	if err != nil || mt != MsgPing {
		t.Fatalf("expected (%d, nil), got (%d, %v)", MsgPing, mt, err)
	}
	if _, err := MessageType(nil); err != ErrPacketTooSmall {
		t.Fatalf("expected ErrPacketTooSmall, got %v", err)
	}
}
