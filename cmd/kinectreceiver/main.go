// Command kinectreceiver is a manual/integration-test harness for the
// receiver half of the session protocol (§4.6): it connects to a
// kinectsender instance, reassembles frames, and logs a line per
// completed frame instead of rendering anything.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rgbdcast/kinectcast/internal/config"
	"github.com/rgbdcast/kinectcast/internal/metrics"
	"github.com/rgbdcast/kinectcast/internal/receiver"
)

func main() {
	senderAddr := flag.String("sender", "127.0.0.1:7777", "address of the kinectsender instance to connect to")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("kinectreceiver: shutting down...")
		cancel()
	}()

	if err := run(ctx, *senderAddr); err != nil {
		log.Fatalf("kinectreceiver: %v", err)
	}
}

func run(ctx context.Context, senderAddr string) error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	remote, err := net.ResolveUDPAddr("udp", senderAddr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return err
	}
	defer conn.Close()

	reg := prometheus.NewRegistry()
	m := metrics.NewReceiver(reg)

	consumer := func(frameID int32, color, depth []byte) error {
		log.Printf("kinectreceiver: frame_id=%d color_bytes=%d depth_bytes=%d", frameID, len(color), len(depth))
		return nil
	}
	r := receiver.NewReceiver(cfg, conn, remote, m, consumer)

	log.Printf("kinectreceiver: connecting to %s", senderAddr)
	calibration, err := r.Connect(ctx)
	if err != nil {
		return err
	}
	log.Printf("kinectreceiver: connected, calibration blob is %d bytes", len(calibration))

	return r.Run(ctx)
}
