// Package config loads the tunables that the session protocol keeps out
// of compiled-in constants: the device's native capture interval, MTU,
// XOR group size, and the other values in the protocol's constants
// table (spec §6), plus the ambient metrics listen address.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of one sender session.
type Config struct {
	// Port is the UDP port to bind, overridden by the CLI prompt.
	Port int `yaml:"port"`

	// DeviceFrameIntervalMS is the capture device's native frame
	// interval in milliseconds, used by the pacing rule (§4.4). The
	// original implementation hardcodes 33ms (30fps); this must be
	// configurable for devices with a different native cadence.
	DeviceFrameIntervalMS float64 `yaml:"device_frame_interval_ms"`

	// MTU is the target datagram size, header included.
	MTU int `yaml:"mtu"`

	// XorGroupSize is the maximum number of consecutive data packets
	// covered by one XOR parity packet (G in spec §4.3).
	XorGroupSize int `yaml:"xor_group_size"`

	// SendBufferBytes sizes the UDP socket's send buffer.
	SendBufferBytes int `yaml:"send_buffer_bytes"`

	// KeyframeThreshold is the frame_id_diff above which a frame is
	// forced to be a keyframe (§4.4 step 3).
	KeyframeThreshold int `yaml:"keyframe_threshold"`

	// ColorBitrateKbps is the color encoder's target bitrate.
	ColorBitrateKbps int `yaml:"color_bitrate_kbps"`

	// DepthChangeThreshold and DepthInvalidThreshold tune the depth
	// encoder (opaque to the core beyond passing them through at
	// construction).
	DepthChangeThreshold  int `yaml:"depth_change_threshold"`
	DepthInvalidThreshold int `yaml:"depth_invalid_threshold"`

	// QueueCapacity bounds the producer/worker SPSC hand-off queue.
	QueueCapacity int `yaml:"queue_capacity"`

	// MetricsAddr is the listen address for the Prometheus metrics
	// endpoint. Empty disables it; no listener is started by default.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Defaults returns the protocol's fixed constants table (spec §6) as a
// Config, used whenever no config file is present or a field is left
// zero-valued in one that is.
func Defaults() Config {
	return Config{
		Port:                  7777,
		DeviceFrameIntervalMS: 33.0,
		MTU:                   1500,
		XorGroupSize:          5,
		SendBufferBytes:       1024 * 1024,
		KeyframeThreshold:     5,
		ColorBitrateKbps:      2000,
		DepthChangeThreshold:  10,
		DepthInvalidThreshold: 2,
		QueueCapacity:         16,
		MetricsAddr:           "",
	}
}

// Load reads a YAML config file at path and fills in any zero-valued
// field from Defaults(). A missing file is not an error: Load then
// simply returns Defaults().
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	applyOverrides(&cfg, loaded)
	return cfg, nil
}

func applyOverrides(base *Config, override Config) {
	if override.Port != 0 {
		base.Port = override.Port
	}
	if override.DeviceFrameIntervalMS != 0 {
		base.DeviceFrameIntervalMS = override.DeviceFrameIntervalMS
	}
	if override.MTU != 0 {
		base.MTU = override.MTU
	}
	if override.XorGroupSize != 0 {
		base.XorGroupSize = override.XorGroupSize
	}
	if override.SendBufferBytes != 0 {
		base.SendBufferBytes = override.SendBufferBytes
	}
	if override.KeyframeThreshold != 0 {
		base.KeyframeThreshold = override.KeyframeThreshold
	}
	if override.ColorBitrateKbps != 0 {
		base.ColorBitrateKbps = override.ColorBitrateKbps
	}
	if override.DepthChangeThreshold != 0 {
		base.DepthChangeThreshold = override.DepthChangeThreshold
	}
	if override.DepthInvalidThreshold != 0 {
		base.DepthInvalidThreshold = override.DepthInvalidThreshold
	}
	if override.QueueCapacity != 0 {
		base.QueueCapacity = override.QueueCapacity
	}
	if override.MetricsAddr != "" {
		base.MetricsAddr = override.MetricsAddr
	}
}
