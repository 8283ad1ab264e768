package capture

import (
	"testing"
	"time"
)

func TestSyntheticDeviceProducesFrameOnTickAdvance(t *testing.T) {
	d := NewSyntheticDevice(2, 2, time.Millisecond)
	deadline := time.Now().Add(50 * time.Millisecond)
	for time.Now().Before(deadline) {
		if frame, ok := d.GetCapture(); ok {
			if len(frame.Color.Pixels) != 2*2*4 {
				t.Fatalf("expected %d color bytes, got %d", 2*2*4, len(frame.Color.Pixels))
			}
			if len(frame.Depth.Pixels) != 2*2 {
				t.Fatalf("expected %d depth samples, got %d", 2*2, len(frame.Depth.Pixels))
			}
			return
		}
	}
	t.Fatalf("expected at least one frame within the deadline")
}

func TestSyntheticDeviceCalibrationEncodesDimensions(t *testing.T) {
	d := NewSyntheticDevice(640, 480, time.Millisecond)
	blob := d.Calibration()
	if len(blob) != 8 {
		t.Fatalf("expected 8-byte calibration blob, got %d", len(blob))
	}
}

func TestPassthroughEncodersRoundTrip(t *testing.T) {
	img := ImageBuffer{Width: 1, Height: 1, StrideBytes: 4, Pixels: []byte{1, 2, 3, 4}}
	out, err := PassthroughColorEncoder{}.Encode(img, false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(out) != string(img.Pixels) {
		t.Fatalf("expected passthrough color bytes to match input")
	}

	depthOut, err := PassthroughDepthEncoder{}.Encode([]int16{1, -1, 300}, false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(depthOut) != 6 {
		t.Fatalf("expected 6 packed bytes, got %d", len(depthOut))
	}
}
