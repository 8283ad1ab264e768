// Package capture defines the contract between the sender core and the
// capture device, color encoder, and depth encoder collaborators. Per
// the session protocol, these are external: the core only calls them
// through this package's interfaces and never inspects their internals.
package capture

import "time"

// ImageBuffer is one color frame, already transformed into the depth
// camera's space and ready for the color encoder.
type ImageBuffer struct {
	Width       int
	Height      int
	StrideBytes int
	Pixels      []byte // packed BGRA, row-major, StrideBytes per row
}

// DepthBuffer is one depth frame: 16-bit depth values in millimeters,
// row-major, zero meaning invalid.
type DepthBuffer struct {
	Width  int
	Height int
	Pixels []int16
}

// Frame is one capture iteration's color+depth pair plus the device's
// own timestamp, used for pacing (§4.4).
type Frame struct {
	Color           ImageBuffer
	Depth           DepthBuffer
	DeviceTimestamp time.Duration // device clock, microsecond resolution
}

// Device is the capture collaborator: the hardware driver, out of scope
// for the session protocol itself.
type Device interface {
	// GetCapture returns the next available frame, or ok=false if none
	// is ready yet (§7 CaptureUnavailable — the producer skips silently).
	GetCapture() (frame Frame, ok bool)

	// TransformColorToDepthSpace reprojects a color frame into the depth
	// camera's coordinate space, a collaborator operation (§1 "color-space
	// conversion") distinct from frame capture itself.
	TransformColorToDepthSpace(color ImageBuffer, depth DepthBuffer) ImageBuffer

	// Calibration returns the device's calibration blob, opaque to the
	// core, retrieved once at session startup and sent verbatim in the
	// init packet.
	Calibration() []byte

	// Close releases the device.
	Close() error
}

// ColorEncoder compresses a transformed color frame. Per §6 it may
// return an error or an empty buffer on failure (§7 EncoderFailure),
// which the producer treats as "skip this capture."
type ColorEncoder interface {
	Encode(image ImageBuffer, keyframe bool) ([]byte, error)
}

// DepthEncoder compresses a depth frame.
type DepthEncoder interface {
	Encode(pixels []int16, keyframe bool) ([]byte, error)
}
