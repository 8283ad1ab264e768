package sender

import (
	"context"
	"errors"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/rgbdcast/kinectcast/internal/config"
	"github.com/rgbdcast/kinectcast/internal/metrics"
	"github.com/rgbdcast/kinectcast/internal/protocol"
	"github.com/rgbdcast/kinectcast/internal/queue"
)

// workerPollTimeout bounds each non-blocking read, so the worker loop
// can also drain the send queue and check the stop flag regularly
// instead of parking in a blocking Read.
const workerPollTimeout = 5 * time.Millisecond

// workerSummaryEvery is the acknowledged-frame interval at which the
// worker logs a send summary, matching the original implementation's
// per-100-ack-frame cadence.
const workerSummaryEvery = 100

// Worker owns the wire half of a session: it reads receiver reports and
// NACKs, retransmits on request, drains frame packet sets the producer
// enqueued, and purges the retention store as frames are acknowledged
// (§4.5).
type Worker struct {
	cfg       config.Config
	conn      *net.UDPConn
	remote    *net.UDPAddr
	queue     *queue.SPSC
	retention *RetentionStore
	stop      *atomic.Bool
	latestAck *atomic.Int32
	metrics   *metrics.Sender

	packetsSinceSummary int
	ackedSinceSummary   int
}

// NewWorker builds a worker bound to conn, talking to remote, sharing
// the stop flag and ack cell with the session's producer.
func NewWorker(cfg config.Config, conn *net.UDPConn, remote *net.UDPAddr, q *queue.SPSC, retention *RetentionStore, stop *atomic.Bool, latestAck *atomic.Int32, m *metrics.Sender) *Worker {
	return &Worker{
		cfg:       cfg,
		conn:      conn,
		remote:    remote,
		queue:     q,
		retention: retention,
		stop:      stop,
		latestAck: latestAck,
		metrics:   m,
	}
}

// Run drives the network loop until ctx is done or a fatal socket error
// occurs, in which case it sets the shared stop flag so the producer
// unwinds too (§7).
func (w *Worker) Run(ctx context.Context) error {
	buf := make([]byte, w.cfg.MTU+256)
	for !w.stop.Load() {
		select {
		case <-ctx.Done():
			w.stop.Store(true)
			return nil
		default:
		}

		if err := w.pollOnce(buf); err != nil {
			var fatal *FatalSocketError
			if errors.As(err, &fatal) {
				w.stop.Store(true)
				return err
			}
			log.Printf("worker: %v", err)
		}

		w.drainQueue()
	}
	return nil
}

// pollOnce reads at most one datagram and dispatches it by message type.
func (w *Worker) pollOnce(buf []byte) error {
	if err := w.conn.SetReadDeadline(time.Now().Add(workerPollTimeout)); err != nil {
		return &FatalSocketError{Err: err}
	}
	n, addr, err := w.conn.ReadFromUDP(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil
		}
		return &FatalSocketError{Err: err}
	}
	if !addrEqual(addr, w.remote) {
		return nil
	}

	msgType, err := protocol.MessageType(buf[:n])
	if err != nil {
		return &ProtocolViolationError{Err: err}
	}
	switch msgType {
	case protocol.MsgReceiverReport:
		w.handleReport(buf[:n])
	case protocol.MsgNack:
		w.handleNack(buf[:n])
	}
	return nil
}

// addrEqual reports whether got is the same UDP peer captured during the
// handshake (§4.1): a report or NACK carries no session id, so the
// captured remote address is the only isolation the worker has against
// datagrams from other endpoints.
func addrEqual(got, remote *net.UDPAddr) bool {
	if got == nil || remote == nil {
		return false
	}
	return got.Port == remote.Port && got.IP.Equal(remote.IP)
}

func (w *Worker) handleReport(data []byte) {
	report, err := protocol.DecodeReceiverReport(data)
	if err != nil {
		log.Printf("worker: %v", &ProtocolViolationError{Err: err})
		return
	}
	if sentAt, ok := w.retention.SendTime(report.FrameID); ok {
		w.metrics.LastRTTMillis.Set(float64(time.Since(sentAt).Milliseconds()))
	}

	for {
		prev := w.latestAck.Load()
		if report.FrameID <= prev {
			break
		}
		if w.latestAck.CompareAndSwap(prev, report.FrameID) {
			break
		}
	}
	w.retention.PurgeUpTo(report.FrameID)
	w.metrics.FramesAcked.Inc()
	w.metrics.RetentionSize.Set(float64(w.retention.Len()))

	w.ackedSinceSummary++
	if w.ackedSinceSummary >= workerSummaryEvery {
		log.Printf("worker: send summary packets_sent=%d frames_acked=%d retained=%d",
			w.packetsSinceSummary, w.ackedSinceSummary, w.retention.Len())
		w.packetsSinceSummary = 0
		w.ackedSinceSummary = 0
	}
}

func (w *Worker) handleNack(data []byte) {
	nack, err := protocol.DecodeNack(data)
	if err != nil {
		log.Printf("worker: %v", &ProtocolViolationError{Err: err})
		return
	}
	set, ok := w.retention.Get(nack.FrameID)
	if !ok {
		return
	}
	for _, idx := range nack.Missing {
		if idx < 0 || int(idx) >= len(set.Data) {
			continue
		}
		if err := w.send(set.Data[idx]); err != nil {
			log.Printf("worker: retransmit frame_id=%d packet_index=%d: %v", nack.FrameID, idx, err)
			continue
		}
		w.metrics.PacketsRetransmitted.Inc()
	}
}

// drainQueue sends every frame packet set currently queued by the
// producer: data packets first, then parity packets, matching the
// wire-order invariant of §8.
func (w *Worker) drainQueue() {
	for {
		set, ok := w.queue.TryPop()
		if !ok {
			return
		}
		for _, pkt := range set.Data {
			if err := w.send(pkt); err != nil {
				log.Printf("worker: send frame_id=%d: %v", set.FrameID, err)
			}
		}
		for _, pkt := range set.Parity {
			if err := w.send(pkt); err != nil {
				log.Printf("worker: send parity frame_id=%d: %v", set.FrameID, err)
			}
		}
		w.retention.Store(set, time.Now())
		w.metrics.PacketsSent.Add(float64(len(set.Data) + len(set.Parity)))
		w.packetsSinceSummary += len(set.Data) + len(set.Parity)
	}
}

// send writes one datagram to the remote peer, classifying the error
// per §7: a transient would-block condition is returned as a
// TransientSendError (the packet is either redundant with parity or
// will be recovered by a later NACK), anything else as a
// FatalSocketError.
func (w *Worker) send(pkt []byte) error {
	if err := w.conn.SetWriteDeadline(time.Now().Add(workerPollTimeout)); err != nil {
		return &FatalSocketError{Err: err}
	}
	_, err := w.conn.WriteToUDP(pkt, w.remote)
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransientSendError{Err: err}
	}
	return &FatalSocketError{Err: err}
}
