// Package metrics exposes the sender's send-summary and the receiver's
// report telemetry (spec §4.5/§4.6) as Prometheus collectors, giving the
// periodic stdout summaries a queryable home.
package metrics

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sender holds the sender-side collectors. PacketLossRatio is registered
// but no code in this module sets it, so it stays at 0.
type Sender struct {
	PacketsSent         prometheus.Counter
	PacketsRetransmitted prometheus.Counter
	FramesAcked         prometheus.Counter
	LastRTTMillis       prometheus.Gauge
	PacketLossRatio     prometheus.Gauge
	RetentionSize       prometheus.Gauge
}

// NewSender registers and returns a fresh set of sender collectors on
// the given registry.
func NewSender(reg prometheus.Registerer) *Sender {
	s := &Sender{
		PacketsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kinectcast_sender_packets_sent_total",
			Help: "Total datagrams transmitted by the network worker, data and parity combined.",
		}),
		PacketsRetransmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kinectcast_sender_packets_retransmitted_total",
			Help: "Total data packets resent in response to a NACK.",
		}),
		FramesAcked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kinectcast_sender_frames_acked_total",
			Help: "Total frames for which a receiver report was processed.",
		}),
		LastRTTMillis: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kinectcast_sender_last_rtt_milliseconds",
			Help: "Round-trip time of the most recently acknowledged frame.",
		}),
		PacketLossRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kinectcast_sender_packet_loss_ratio",
			Help: "1 - (receiver-observed packets / sender-sent packets) over the last send summary window.",
		}),
		RetentionSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kinectcast_sender_retention_frames",
			Help: "Number of frames currently held in the retention map.",
		}),
	}
	reg.MustRegister(s.PacketsSent, s.PacketsRetransmitted, s.FramesAcked, s.LastRTTMillis, s.PacketLossRatio, s.RetentionSize)
	return s
}

// Receiver holds the receiver-side collectors.
type Receiver struct {
	FramesCompleted  prometheus.Counter
	PacketsRecovered prometheus.Counter
	NacksSent        prometheus.Counter
}

// NewReceiver registers and returns a fresh set of receiver collectors.
func NewReceiver(reg prometheus.Registerer) *Receiver {
	r := &Receiver{
		FramesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kinectcast_receiver_frames_completed_total",
			Help: "Total frames fully reassembled and decoded.",
		}),
		PacketsRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kinectcast_receiver_packets_recovered_total",
			Help: "Total data packets reconstructed via XOR recovery instead of arriving directly.",
		}),
		NacksSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kinectcast_receiver_nacks_sent_total",
			Help: "Total NACK datagrams sent requesting retransmission.",
		}),
	}
	reg.MustRegister(r.FramesCompleted, r.PacketsRecovered, r.NacksSent)
	return r
}

// Server serves the Prometheus text exposition format over HTTP. It is
// ambient observability, not a protocol feature: started only when
// Config.MetricsAddr is non-empty.
type Server struct {
	httpServer *http.Server
}

// StartServer starts an HTTP listener exposing reg's metrics at /metrics.
// It logs and returns nil (not fatal) if the listener cannot be bound,
// since metrics are diagnostic, never a reason to abort a session.
func StartServer(addr string, reg *prometheus.Registry) *Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("metrics: not starting, failed to bind %s: %v", addr, err)
		return nil
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics: server stopped: %v", err)
		}
	}()
	return &Server{httpServer: srv}
}

// Stop shuts the metrics server down, if one was started.
func (s *Server) Stop(ctx context.Context) {
	if s == nil || s.httpServer == nil {
		return
	}
	_ = s.httpServer.Shutdown(ctx)
}
