// Package sender implements the sending half of the RGB-D streaming
// session: bootstrap and handshake, the capture producer, and the
// network worker, coordinated through a lock-free SPSC queue and a pair
// of atomics rather than a mutex-guarded shared struct (§5).
package sender

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rgbdcast/kinectcast/internal/capture"
	"github.com/rgbdcast/kinectcast/internal/config"
	"github.com/rgbdcast/kinectcast/internal/metrics"
	"github.com/rgbdcast/kinectcast/internal/protocol"
	"github.com/rgbdcast/kinectcast/internal/queue"
)

// pingPollTimeout bounds each AwaitPing read so it can also observe
// context cancellation instead of blocking forever on a peer that
// never shows up.
const pingPollTimeout = 200 * time.Millisecond

// Session owns one sender's UDP socket for the lifetime of one receiver
// connection: handshake, then the producer/worker pair until either
// side stops.
type Session struct {
	cfg       config.Config
	conn      *net.UDPConn
	remote    *net.UDPAddr
	sessionID int32

	stop      atomic.Bool
	latestAck atomic.Int32

	retention *RetentionStore
	queue     *queue.SPSC
	metrics   *metrics.Sender
}

// NewSession binds a UDP socket on cfg.Port. A bind failure is a
// SessionAbortError: the caller (the CLI) is expected to re-prompt for
// a different port.
func NewSession(cfg config.Config, m *metrics.Sender) (*Session, error) {
	addr := &net.UDPAddr{Port: cfg.Port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, &SessionAbortError{Err: fmt.Errorf("bind port %d: %w", cfg.Port, err)}
	}
	if cfg.SendBufferBytes > 0 {
		_ = conn.SetWriteBuffer(cfg.SendBufferBytes)
	}
	return &Session{
		cfg:       cfg,
		conn:      conn,
		retention: NewRetentionStore(),
		queue:     queue.New(cfg.QueueCapacity),
		metrics:   m,
	}, nil
}

// AwaitPing blocks until a type-0 ping datagram arrives, and records its
// source as the session's remote peer (§4.1). It assigns the session id
// the sender stamps on every init, data and parity datagram.
func (s *Session) AwaitPing(ctx context.Context, sessionID int32) error {
	s.sessionID = sessionID
	buf := make([]byte, 64)
	for {
		select {
		case <-ctx.Done():
			return &SessionAbortError{Err: ctx.Err()}
		default:
		}
		if err := s.conn.SetReadDeadline(time.Now().Add(pingPollTimeout)); err != nil {
			return &SessionAbortError{Err: err}
		}
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return &SessionAbortError{Err: err}
		}
		msgType, err := protocol.MessageType(buf[:n])
		if err != nil || msgType != protocol.MsgPing {
			continue
		}
		s.remote = addr
		return nil
	}
}

// SendInit fragments calibration across one or more type-3 datagrams
// and sends them to the peer captured by AwaitPing (§4.1).
func (s *Session) SendInit(calibration []byte) error {
	payloadSize := s.cfg.MTU - protocol.InitHeaderSize
	if payloadSize <= 0 {
		return &SessionAbortError{Err: fmt.Errorf("mtu %d too small for init header", s.cfg.MTU)}
	}
	count := (len(calibration) + payloadSize - 1) / payloadSize
	if count == 0 {
		count = 1
	}
	for i := 0; i < count; i++ {
		start := i * payloadSize
		end := start + payloadSize
		if end > len(calibration) {
			end = len(calibration)
		}
		h := protocol.InitHeader{SessionID: s.sessionID, FragmentIndex: int32(i), FragmentCount: int32(count)}
		pkt := protocol.EncodeInit(h, calibration[start:end])
		if _, err := s.conn.WriteToUDP(pkt, s.remote); err != nil {
			return &SessionAbortError{Err: fmt.Errorf("send init fragment %d/%d: %w", i, count, err)}
		}
	}
	return nil
}

// Run spawns the producer and network worker and blocks until both
// exit. Both stop when ctx is done or the shared stop flag is set; Run
// returns the worker's error, if any (the producer returns none).
func (s *Session) Run(ctx context.Context, device capture.Device, colorEnc capture.ColorEncoder, depthEnc capture.DepthEncoder) error {
	producer := NewProducer(s.cfg, s.sessionID, device, colorEnc, depthEnc, s.queue, &s.stop, &s.latestAck)
	worker := NewWorker(s.cfg, s.conn, s.remote, s.queue, s.retention, &s.stop, &s.latestAck, s.metrics)

	var wg sync.WaitGroup
	var workerErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		producer.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		workerErr = worker.Run(ctx)
	}()

	wg.Wait()
	return workerErr
}

// Close releases the session's socket.
func (s *Session) Close() error {
	s.stop.Store(true)
	return s.conn.Close()
}
