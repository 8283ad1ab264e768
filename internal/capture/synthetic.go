package capture

import (
	"encoding/binary"
	"time"
)

// SyntheticDevice is a deterministic stand-in for a real capture device,
// used by the CLI demo and by sender tests in place of hardware. It
// produces a new frame at a fixed device interval and never fails.
type SyntheticDevice struct {
	width, height   int
	interval        time.Duration
	calibration     []byte
	start           time.Time
	lastEmittedTick int64
	now             func() time.Time
}

var _ Device = (*SyntheticDevice)(nil)

// NewSyntheticDevice builds a synthetic device producing width x height
// frames at the given device interval.
func NewSyntheticDevice(width, height int, interval time.Duration) *SyntheticDevice {
	return &SyntheticDevice{
		width:           width,
		height:          height,
		interval:        interval,
		calibration:     syntheticCalibrationBlob(width, height),
		start:           time.Now(),
		lastEmittedTick: -1,
		now:             time.Now,
	}
}

// GetCapture synthesizes one frame per elapsed device interval; calls
// between ticks report no capture available, exercising the producer's
// CaptureUnavailable skip path exactly like a real device whose sensor
// has not advanced yet.
func (d *SyntheticDevice) GetCapture() (Frame, bool) {
	elapsed := d.now().Sub(d.start)
	tick := int64(elapsed / d.interval)
	if tick <= d.lastEmittedTick {
		return Frame{}, false
	}
	d.lastEmittedTick = tick

	colorPixels := make([]byte, d.width*d.height*4)
	depthPixels := make([]int16, d.width*d.height)
	fill := byte(tick)
	for i := range colorPixels {
		colorPixels[i] = fill
	}
	for i := range depthPixels {
		depthPixels[i] = int16(tick % 4096)
	}

	return Frame{
		Color: ImageBuffer{
			Width:       d.width,
			Height:      d.height,
			StrideBytes: d.width * 4,
			Pixels:      colorPixels,
		},
		Depth: DepthBuffer{
			Width:  d.width,
			Height: d.height,
			Pixels: depthPixels,
		},
		DeviceTimestamp: elapsed,
	}, true
}

// TransformColorToDepthSpace is the identity transform: the synthetic
// color and depth frames already share a resolution and origin.
func (d *SyntheticDevice) TransformColorToDepthSpace(color ImageBuffer, _ DepthBuffer) ImageBuffer {
	return color
}

// Calibration returns the synthetic calibration blob.
func (d *SyntheticDevice) Calibration() []byte {
	return d.calibration
}

// Close is a no-op; the synthetic device owns no OS resources.
func (d *SyntheticDevice) Close() error {
	return nil
}

func syntheticCalibrationBlob(width, height int) []byte {
	blob := make([]byte, 8)
	binary.LittleEndian.PutUint32(blob[0:4], uint32(width))
	binary.LittleEndian.PutUint32(blob[4:8], uint32(height))
	return blob
}

// PassthroughColorEncoder "encodes" a color frame by copying its pixel
// bytes, standing in for a real VP8/H.264 encoder in the demo CLI and in
// tests where only the packetization path, not the codec, is exercised.
type PassthroughColorEncoder struct{}

var _ ColorEncoder = PassthroughColorEncoder{}

// Encode returns a copy of the frame's raw pixels.
func (PassthroughColorEncoder) Encode(image ImageBuffer, _ bool) ([]byte, error) {
	out := make([]byte, len(image.Pixels))
	copy(out, image.Pixels)
	return out, nil
}

// PassthroughDepthEncoder "encodes" depth by packing int16 values
// little-endian, standing in for a real temporal run-length codec.
type PassthroughDepthEncoder struct{}

var _ DepthEncoder = PassthroughDepthEncoder{}

// Encode packs pixels little-endian.
func (PassthroughDepthEncoder) Encode(pixels []int16, _ bool) ([]byte, error) {
	out := make([]byte, len(pixels)*2)
	for i, p := range pixels {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(p))
	}
	return out, nil
}
