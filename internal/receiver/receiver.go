package receiver

import (
	"context"
	"errors"
	"log"
	"net"
	"time"

	"github.com/rgbdcast/kinectcast/internal/config"
	"github.com/rgbdcast/kinectcast/internal/metrics"
	"github.com/rgbdcast/kinectcast/internal/protocol"
)

const (
	pollTimeout     = 100 * time.Millisecond
	pingInterval    = 500 * time.Millisecond
	nackCheckPeriod = 200 * time.Millisecond
	nackDebounce    = 300 * time.Millisecond
	frameGCWindow   = 120 // frame ids older than newestComplete-this are dropped
)

// Consumer receives a fully reassembled frame's decoded color and depth
// buffers, standing in for the external color/depth decoders (§6),
// mirroring the teacher's callback-interface style for collaborators it
// does not implement itself.
type Consumer func(frameID int32, color, depth []byte) error

// Receiver is the authoritative reassembler for one streaming session:
// it holds per-frame state, attempts XOR recovery as packets arrive,
// and emits receiver reports and NACKs back to the sender (§4.6).
type Receiver struct {
	cfg       config.Config
	conn      *net.UDPConn
	remote    *net.UDPAddr
	sessionID int32

	frames         map[int32]*frameState
	newestComplete int32
	haveCompleted  bool

	nacks    *nackTracker
	metrics  *metrics.Receiver
	consumer Consumer
}

// NewReceiver builds a receiver that will talk to remote over conn.
// sessionID is learned from the init packet during Connect and need not
// be known yet. consumer is invoked with each frame's decoded color and
// depth buffers once reassembly completes; it may be nil if the caller
// only wants the report/NACK feedback loop.
func NewReceiver(cfg config.Config, conn *net.UDPConn, remote *net.UDPAddr, m *metrics.Receiver, consumer Consumer) *Receiver {
	return &Receiver{
		cfg:      cfg,
		conn:     conn,
		remote:   remote,
		frames:   make(map[int32]*frameState),
		nacks:    newNackTracker(nackDebounce),
		metrics:  m,
		consumer: consumer,
	}
}

// Connect sends a type-0 ping and assembles the sender's init packet
// fragments into the calibration blob, per §4.1. It resends the ping
// every pingInterval until every init fragment has arrived.
func (r *Receiver) Connect(ctx context.Context) ([]byte, error) {
	buf := make([]byte, r.cfg.MTU+256)
	fragments := make(map[int32][]byte)
	var fragmentCount int32 = -1
	var lastPing time.Time

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if time.Since(lastPing) >= pingInterval {
			if _, err := r.conn.WriteToUDP([]byte{protocol.MsgPing}, r.remote); err != nil {
				return nil, err
			}
			lastPing = time.Now()
		}

		if err := r.conn.SetReadDeadline(time.Now().Add(pollTimeout)); err != nil {
			return nil, err
		}
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return nil, err
		}

		msgType, err := protocol.MessageType(buf[:n])
		if err != nil || msgType != protocol.MsgInit {
			continue
		}
		h, fragment, err := protocol.DecodeInit(buf[:n])
		if err != nil {
			continue
		}
		r.sessionID = h.SessionID
		fragmentCount = h.FragmentCount
		cp := make([]byte, len(fragment))
		copy(cp, fragment)
		fragments[h.FragmentIndex] = cp

		if int32(len(fragments)) == fragmentCount {
			calibration := make([]byte, 0)
			for i := int32(0); i < fragmentCount; i++ {
				calibration = append(calibration, fragments[i]...)
			}
			return calibration, nil
		}
	}
}

// Run drives the receive loop until ctx is done or a fatal socket error
// occurs.
func (r *Receiver) Run(ctx context.Context) error {
	buf := make([]byte, r.cfg.MTU+256)
	lastNackCheck := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := r.conn.SetReadDeadline(time.Now().Add(pollTimeout)); err != nil {
			return err
		}
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if !errors.As(err, &netErr) || !netErr.Timeout() {
				return err
			}
		} else {
			r.dispatch(buf[:n])
		}

		if time.Since(lastNackCheck) >= nackCheckPeriod {
			r.checkNacks()
			lastNackCheck = time.Now()
		}
	}
}

func (r *Receiver) dispatch(data []byte) {
	msgType, err := protocol.MessageType(data)
	if err != nil {
		return
	}
	switch msgType {
	case protocol.MsgFrameData:
		r.ingestData(data)
	case protocol.MsgFrameParity:
		r.ingestParity(data)
	}
}

func (r *Receiver) stateFor(frameID int32) *frameState {
	st, ok := r.frames[frameID]
	if !ok {
		st = newFrameState(frameID, 0)
		r.frames[frameID] = st
	}
	return st
}

func (r *Receiver) ingestData(data []byte) {
	h, payload, err := protocol.DecodeFrameData(data)
	if err != nil || h.SessionID != r.sessionID {
		return
	}
	st := r.stateFor(h.FrameID)
	st.setPacketCount(h.PacketCount)
	st.insertData(h.PacketIndex, payload)
	r.afterInsert(st)
}

func (r *Receiver) ingestParity(data []byte) {
	h, parity, err := protocol.DecodeFrameParity(data)
	if err != nil || h.SessionID != r.sessionID {
		return
	}
	st := r.stateFor(h.FrameID)
	st.insertParity(h.GroupStart, h.GroupLength, parity)
	r.afterInsert(st)
}

// afterInsert attempts recovery and, on first completion, emits the
// frame's receiver report (§4.6 steps 3-4).
func (r *Receiver) afterInsert(st *frameState) {
	before := len(st.data)
	st.tryRecover()
	if recovered := len(st.data) - before; recovered > 0 {
		r.metrics.PacketsRecovered.Add(float64(recovered))
	}

	if st.completed || !st.isComplete() {
		return
	}
	st.completed = true
	r.metrics.FramesCompleted.Inc()
	r.nacks.forget(st.frameID)
	if !r.haveCompleted || st.frameID > r.newestComplete {
		r.haveCompleted = true
		r.newestComplete = st.frameID
	}
	r.emitReport(st)
	r.gc()
}

func (r *Receiver) emitReport(st *frameState) {
	msg, err := st.message()
	if err != nil {
		log.Printf("receiver: decode frame_id=%d: %v", st.frameID, err)
		return
	}

	var decoderMS float32
	if r.consumer != nil {
		start := time.Now()
		if err := r.consumer(st.frameID, msg.Color, msg.Depth); err != nil {
			log.Printf("receiver: consumer frame_id=%d: %v", st.frameID, err)
		}
		decoderMS = float32(time.Since(start).Milliseconds())
	}

	report := protocol.ReceiverReport{
		FrameID:            st.frameID,
		PacketCollectionMS: float32(time.Since(st.firstSeenAt).Milliseconds()),
		DecoderMS:          decoderMS,
		FrameTimestampMS:   msg.FrameTimestampMS,
		PacketCount:        st.packetCount,
	}
	if _, err := r.conn.WriteToUDP(report.Encode(), r.remote); err != nil {
		log.Printf("receiver: send report frame_id=%d: %v", st.frameID, err)
	}
}

// checkNacks requests retransmission for frames that are incomplete and
// older than the newest completed frame, per §4.6 step 5's "ordering
// policy": the receiver never blocks on out-of-order frames, so newer,
// still-in-flight frames are left alone.
func (r *Receiver) checkNacks() {
	for frameID, st := range r.frames {
		if st.completed || st.packetCount == 0 {
			continue
		}
		if !r.haveCompleted || frameID >= r.newestComplete {
			continue
		}
		if !r.nacks.shouldNotify(frameID) {
			continue
		}
		missing := st.missingIndices()
		if len(missing) == 0 {
			continue
		}
		nack := protocol.Nack{FrameID: frameID, Missing: missing}
		if _, err := r.conn.WriteToUDP(nack.Encode(), r.remote); err != nil {
			continue
		}
		r.nacks.markNotified(frameID)
		r.metrics.NacksSent.Inc()
	}
	r.gc()
}

// gc drops frame state older than the receiver's retention window so a
// permanently lost frame does not leak memory forever.
func (r *Receiver) gc() {
	if !r.haveCompleted {
		return
	}
	cutoff := r.newestComplete - frameGCWindow
	for frameID := range r.frames {
		if frameID < cutoff {
			delete(r.frames, frameID)
			r.nacks.forget(frameID)
		}
	}
}
