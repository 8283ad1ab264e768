// Command kinectsender streams synthetic RGB-D frames to a single
// receiver over UDP using the session protocol in internal/sender.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rgbdcast/kinectcast/internal/capture"
	"github.com/rgbdcast/kinectcast/internal/config"
	"github.com/rgbdcast/kinectcast/internal/metrics"
	"github.com/rgbdcast/kinectcast/internal/sender"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("kinectsender: shutting down...")
		cancel()
	}()

	if err := run(ctx); err != nil {
		log.Fatalf("kinectsender: %v", err)
	}
}

// run implements the CLI's outer restart-on-SessionAbort loop (§7):
// any bootstrap failure re-prompts for a port rather than exiting.
func run(ctx context.Context) error {
	reader := bufio.NewReader(os.Stdin)
	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metricsServer := metrics.StartServer(cfg.MetricsAddr, reg)
	defer func() {
		if metricsServer != nil {
			metricsServer.Stop(context.Background())
		}
	}()
	senderMetrics := metrics.NewSender(reg)

	interval := time.Duration(cfg.DeviceFrameIntervalMS * float64(time.Millisecond))
	device := capture.NewSyntheticDevice(640, 480, interval)
	defer device.Close()
	colorEnc := capture.PassthroughColorEncoder{}
	depthEnc := capture.PassthroughDepthEncoder{}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		port, err := promptForPort(reader, cfg.Port)
		if err != nil {
			return err
		}
		cfg.Port = port

		sessionID := rand.Int31()
		if err := runSession(ctx, cfg, senderMetrics, device, colorEnc, depthEnc, sessionID); err != nil {
			log.Printf("kinectsender: session ended: %v", err)
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		return nil
	}
}

func runSession(ctx context.Context, cfg config.Config, m *metrics.Sender, device capture.Device, colorEnc capture.ColorEncoder, depthEnc capture.DepthEncoder, sessionID int32) error {
	sess, err := sender.NewSession(cfg, m)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.AwaitPing(ctx, sessionID); err != nil {
		return err
	}
	if err := sess.SendInit(device.Calibration()); err != nil {
		return err
	}
	log.Printf("kinectsender: session established on port %d", cfg.Port)
	return sess.Run(ctx, device, colorEnc, depthEnc)
}

// promptForPort reads one line from in, returning fallback on an empty
// line and re-prompting on non-numeric input (§6).
func promptForPort(in *bufio.Reader, fallback int) (int, error) {
	for {
		fmt.Print("Enter a port number to start sending frames: ")
		line, err := in.ReadString('\n')
		if err != nil {
			return 0, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return fallback, nil
		}
		port, err := strconv.Atoi(line)
		if err != nil {
			fmt.Println("Not a valid port number, try again.")
			continue
		}
		return port, nil
	}
}

