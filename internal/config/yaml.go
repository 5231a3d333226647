// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	applog "barviz/internal/log"
	"barviz/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("barviz.yaml", "config.yaml"). If no file is found, it
// uses built-in defaults. After loading defaults or from file, it applies environment
// variable overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		for _, candidate := range []string{"barviz.yaml", "config.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		cfg.Path = path
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to path as YAML, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func invalid(format string, v ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, v...))
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok && c.LogLevel != "" {
		return invalid("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}

	a := c.Audio
	switch a.Source {
	case SourceDevice, SourceTone:
	case SourceWAV:
		if a.WAVFile == "" {
			return invalid("audio.wav_file must be set for the wav source")
		}
	default:
		return invalid("audio.source %q is not one of device, wav, tone", a.Source)
	}
	if a.InputDevice < MinDeviceID {
		return invalid("audio.input_device %d is below %d", a.InputDevice, MinDeviceID)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return invalid("audio.sample_rate %.0f outside [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.FramesPerBuffer <= 0 || a.FramesPerBuffer > MaxBufferFrames {
		return invalid("audio.frames_per_buffer %d outside [1, %d]", a.FramesPerBuffer, MaxBufferFrames)
	}
	if a.InputChannels < 1 {
		return invalid("audio.input_channels must be at least 1")
	}
	if a.GateThreshold < 0 || a.GateThreshold > 1 {
		return invalid("audio.gate_threshold %f outside [0, 1]", a.GateThreshold)
	}
	if a.Source == SourceTone && a.ToneFrequency <= 0 {
		return invalid("audio.tone_frequency must be positive")
	}

	an := c.Analysis
	if an.NumBands < 1 || an.NumBands > MaxBands {
		return invalid("analysis.num_bands %d outside [1, %d]", an.NumBands, MaxBands)
	}
	if !bitint.IsPowerOfTwo(an.TransformSize) || an.TransformSize > MaxTransformSize {
		return invalid("analysis.transform_size %d must be a power of two <= %d", an.TransformSize, MaxTransformSize)
	}
	if an.LowerFrequency <= 0 || an.UpperFrequency <= an.LowerFrequency {
		return invalid("analysis frequency range [%.1f, %.1f] is empty", an.LowerFrequency, an.UpperFrequency)
	}
	if an.AttackRate <= 0 || an.AttackRate > 1 {
		return invalid("analysis.attack_rate %f outside (0, 1]", an.AttackRate)
	}
	if an.DecayRate <= 0 || an.DecayRate > 1 {
		return invalid("analysis.decay_rate %f outside (0, 1]", an.DecayRate)
	}
	if an.LogBase <= 1 {
		return invalid("analysis.log_base must be greater than 1")
	}
	switch an.Scale {
	case "log", "linear", "log-growth":
	default:
		return invalid("analysis.scale %q is not one of log, linear, log-growth", an.Scale)
	}
	if an.GrowthFactor <= 0 {
		return invalid("analysis.growth_factor must be positive")
	}
	if an.Ceiling < 0 {
		return invalid("analysis.ceiling must not be negative")
	}

	t := c.Transport
	if t.UDPEnabled {
		if !strings.Contains(t.UDPTargetAddress, ":") {
			return invalid("transport.udp_target_address %q appears invalid (missing port?)", t.UDPTargetAddress)
		}
		if t.UDPSendInterval <= 0 {
			return invalid("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	if t.WebSocketEnabled && t.WebSocketAddress == "" {
		return invalid("transport.websocket_address must be set when the WebSocket transport is enabled")
	}

	if c.UI.Enabled && c.UI.FPS <= 0 {
		return invalid("ui.fps must be positive")
	}

	return nil
}

// applyEnvOverrides applies BARVIZ_* environment variables on top of the
// file and default values. Unparseable values are ignored.
func (c *Config) applyEnvOverrides() {
	// BARVIZ_DEBUG
	if val, ok := os.LookupEnv("BARVIZ_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
			applog.Debugf("configuration: Overriding debug from env: %v", bVal)
		}
	}
	// BARVIZ_LOG_LEVEL
	if val, ok := os.LookupEnv("BARVIZ_LOG_LEVEL"); ok {
		c.LogLevel = val
		applog.Debugf("configuration: Overriding log_level from env: %s", val)
	}

	// BARVIZ_SOURCE, BARVIZ_WAV_FILE
	if val, ok := os.LookupEnv("BARVIZ_SOURCE"); ok {
		c.Audio.Source = val
		applog.Debugf("configuration: Overriding audio.source from env: %s", val)
	}
	if val, ok := os.LookupEnv("BARVIZ_WAV_FILE"); ok {
		c.Audio.WAVFile = val
		applog.Debugf("configuration: Overriding audio.wav_file from env: %s", val)
	}

	// BARVIZ_BANDS
	if val, ok := os.LookupEnv("BARVIZ_BANDS"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Analysis.NumBands = n
			applog.Debugf("configuration: Overriding analysis.num_bands from env: %d", n)
		}
	}

	// BARVIZ_WS_{...}
	if val, ok := os.LookupEnv("BARVIZ_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.WebSocketEnabled = bVal
			applog.Debugf("configuration: Overriding transport.websocket_enabled from env: %v", bVal)
		}
	}
	if val, ok := os.LookupEnv("BARVIZ_WS_ADDRESS"); ok {
		c.Transport.WebSocketAddress = val
		applog.Debugf("configuration: Overriding transport.websocket_address from env: %s", val)
	}

	// BARVIZ_UDP_{...}
	if val, ok := os.LookupEnv("BARVIZ_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			applog.Debugf("configuration: Overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	if val, ok := os.LookupEnv("BARVIZ_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		applog.Debugf("configuration: Overriding transport.udp_target_address from env: %s", val)
	}
	if val, ok := os.LookupEnv("BARVIZ_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
			applog.Debugf("configuration: Overriding transport.udp_send_interval from env: %s", dur)
		}
	}
}
