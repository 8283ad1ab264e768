package sender

import (
	"context"
	"log"
	"math"
	"sync/atomic"
	"time"

	"github.com/rgbdcast/kinectcast/internal/capture"
	"github.com/rgbdcast/kinectcast/internal/config"
	"github.com/rgbdcast/kinectcast/internal/fec"
	"github.com/rgbdcast/kinectcast/internal/protocol"
	"github.com/rgbdcast/kinectcast/internal/queue"
)

// producerSummaryEvery is the frame_id interval at which the
// producer logs a one-line stats summary, matching the original
// implementation's per-100-frame cadence.
const producerSummaryEvery = 100

// Producer owns the capture-to-wire half of a session: it pulls frames
// from the capture device, applies the adaptive pacing rule, encodes,
// fragments, builds XOR parity, and hands the result to the worker
// goroutine through a bounded SPSC queue (§4.4).
type Producer struct {
	cfg       config.Config
	sessionID int32
	device    capture.Device
	colorEnc  capture.ColorEncoder
	depthEnc  capture.DepthEncoder
	queue     *queue.SPSC
	stop      *atomic.Bool
	latestAck *atomic.Int32

	deviceFrameCount    int64
	lastSentDeviceFrame int64
	frameID             int32
}

// NewProducer builds a producer sharing the given stop flag and
// receiver-ack cell with the session's network worker.
func NewProducer(cfg config.Config, sessionID int32, device capture.Device, colorEnc capture.ColorEncoder, depthEnc capture.DepthEncoder, q *queue.SPSC, stop *atomic.Bool, latestAck *atomic.Int32) *Producer {
	return &Producer{
		cfg:       cfg,
		sessionID: sessionID,
		device:    device,
		colorEnc:  colorEnc,
		depthEnc:  depthEnc,
		queue:     q,
		stop:      stop,
		latestAck: latestAck,
	}
}

// pacingThreshold returns the minimum device-frame advance required
// before the next frame_id may be sent, given how far behind the
// receiver's last acknowledgment is. It replicates the original
// implementation's truncating integer cast of 2^(frame_id_diff-3): for
// frame_id_diff < 3 the threshold is 0 and at 3 it is 1, so every
// captured frame passes (device_frame_diff is at least 1); as the
// backlog grows the threshold
// grows exponentially, thinning the stream instead of piling up RTT.
func pacingThreshold(frameIDDiff int32) int64 {
	return int64(math.Pow(2, float64(frameIDDiff-3)))
}

// Run drives the capture loop until ctx is done or stop is set by the
// worker (a fatal socket error, most likely). It never returns an error
// itself: an iteration with no capture ready is skipped silently, and an
// encoder failure is logged and the frame skipped, matching §7's
// "producer skips this iteration" disposition.
func (p *Producer) Run(ctx context.Context) {
	for !p.stop.Load() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, ok := p.device.GetCapture()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		p.deviceFrameCount++

		ack := p.latestAck.Load()
		frameIDDiff := p.frameID - ack
		if frameIDDiff > 3 {
			deviceFrameDiff := p.deviceFrameCount - p.lastSentDeviceFrame
			if deviceFrameDiff < pacingThreshold(frameIDDiff) {
				continue
			}
		}

		keyframe := p.frameID == 0 || frameIDDiff > int32(p.cfg.KeyframeThreshold)

		alignedColor := p.device.TransformColorToDepthSpace(frame.Color, frame.Depth)

		colorPayload, err := p.colorEnc.Encode(alignedColor, keyframe)
		if err != nil || len(colorPayload) == 0 {
			log.Printf("producer: %v", &EncoderFailureError{Encoder: "color", Err: err})
			continue
		}
		depthPayload, err := p.depthEnc.Encode(frame.Depth.Pixels, keyframe)
		if err != nil || len(depthPayload) == 0 {
			log.Printf("producer: %v", &EncoderFailureError{Encoder: "depth", Err: err})
			continue
		}

		msg := protocol.FrameMessage{
			FrameTimestampMS: float32(frame.DeviceTimestamp.Microseconds()) / 1000.0,
			Keyframe:         keyframe,
			Color:            colorPayload,
			Depth:            depthPayload,
		}
		encoded := msg.Encode()

		dataPackets := protocol.Fragment(p.sessionID, p.frameID, encoded, p.cfg.MTU)
		payloads := make([][]byte, len(dataPackets))
		for i, pkt := range dataPackets {
			payloads[i] = protocol.Payload(pkt)
		}
		groups := fec.BuildGroups(payloads, p.cfg.XorGroupSize)
		parityPackets := make([][]byte, len(groups))
		for i, g := range groups {
			h := protocol.FrameParityHeader{
				SessionID:   p.sessionID,
				FrameID:     p.frameID,
				GroupStart:  int32(g.Start),
				GroupLength: int32(g.Length),
			}
			parityPackets[i] = protocol.EncodeFrameParity(h, g.Parity)
		}

		set := queue.FramePacketSet{FrameID: p.frameID, Data: dataPackets, Parity: parityPackets}
		for !p.queue.TryPush(set) {
			if p.stop.Load() {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Millisecond):
			}
		}

		p.lastSentDeviceFrame = p.deviceFrameCount
		if p.frameID%producerSummaryEvery == 0 {
			log.Printf("producer: frame_id=%d keyframe=%t data_packets=%d parity_packets=%d frame_id_diff=%d",
				p.frameID, keyframe, len(dataPackets), len(parityPackets), frameIDDiff)
		}
		p.frameID++
	}
}
