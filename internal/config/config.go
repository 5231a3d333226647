// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the capture and analysis pipeline.
const (
	// Capture defaults
	DefaultSource          = SourceDevice // Live input device
	DefaultDeviceID        = MinDeviceID  // System default device
	DefaultChannels        = 2            // Loopback/monitor streams are usually stereo
	DefaultSampleRate      = 48000        // Hz
	DefaultFramesPerBuffer = 1024         // One transform per callback
	DefaultToneFrequency   = 440.0        // A4, synthetic source
	DefaultGateThreshold   = 0.001        // ~0.1% of full scale

	// Analysis defaults
	DefaultNumBands       = 12
	DefaultTransformSize  = 1024
	DefaultLowerFrequency = 20.0    // Hz
	DefaultUpperFrequency = 20000.0 // Hz
	DefaultAttackRate     = 0.9     // Fast rise
	DefaultDecayRate      = 0.15    // Slow fall
	DefaultLogBase        = 100.0   // Compression constant K
	DefaultScale          = "log"
	DefaultGrowthFactor   = 1.1
	DefaultCeiling        = 1.0

	// Transport and UI defaults
	DefaultWebSocketAddress = ":8080"
	DefaultUDPTarget        = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond // ~30Hz
	DefaultFPS              = 60

	// Hardware and processing limits
	MinDeviceID      = -1     // -1 represents system default device
	MinSampleRate    = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate    = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames  = 8192   // Maximum frames per buffer
	MaxTransformSize = 16384
	MaxBands         = 256
)

// Capture source kinds.
const (
	SourceDevice = "device" // PortAudio input stream
	SourceWAV    = "wav"    // WAV file replayed in real time
	SourceTone   = "tone"   // Synthetic sine wave
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug      bool            `yaml:"debug"`             // Enable debug mode (verbose logging).
	LogLevel   string          `yaml:"log_level"`         // Logging level (e.g., "debug", "info", "warn", "error").
	Command    string          `yaml:"command,omitempty"` // A one-off command to execute instead of running the pipeline.
	Path       string          `yaml:"-"`                 // File the configuration was loaded from, empty for defaults.
	SaveDevice bool            `yaml:"-"`                 // Persist the device chosen in the browser to Path.
	Audio      AudioConfig     `yaml:"audio"`             // Capture settings.
	Analysis   AnalysisConfig  `yaml:"analysis"`          // Transform, band and shaping settings.
	Recording  RecordingConfig `yaml:"recording"`         // Audio recording settings.
	Transport  TransportConfig `yaml:"transport"`         // Band vector transport settings.
	UI         UIConfig        `yaml:"ui"`                // Terminal renderer settings.
}

// AudioConfig holds settings related to audio capture.
type AudioConfig struct {
	Source          string  `yaml:"source"`            // "device", "wav" or "tone".
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index for audio input (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz; replaced by the file rate for wav sources.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per published block.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
	InputChannels   int     `yaml:"input_channels"`    // Channels captured; only the first is analysed.
	WAVFile         string  `yaml:"wav_file"`          // Input file for the wav source.
	Loop            bool    `yaml:"loop"`              // Restart the wav source at end of file.
	ToneFrequency   float64 `yaml:"tone_frequency"`    // Frequency of the tone source in Hz.
	GateEnabled     bool    `yaml:"gate_enabled"`      // Zero blocks whose peak is below GateThreshold.
	GateThreshold   float64 `yaml:"gate_threshold"`    // Gate threshold as a fraction of full scale (0-1).
}

// AnalysisConfig holds the transform, band mapping and shaping parameters.
type AnalysisConfig struct {
	NumBands        int     `yaml:"num_bands"`         // Count of output bands.
	TransformSize   int     `yaml:"transform_size"`    // FFT length, power of two.
	LowerFrequency  float64 `yaml:"lower_frequency"`   // Analysis range lower bound in Hz.
	UpperFrequency  float64 `yaml:"upper_frequency"`   // Analysis range upper bound in Hz.
	AttackRate      float64 `yaml:"attack_rate"`       // Easing rate while a band rises (0-1].
	DecayRate       float64 `yaml:"decay_rate"`        // Easing rate while a band falls (0-1].
	LogBase         float64 `yaml:"log_base"`          // Compression constant K, > 1.
	Scale           string  `yaml:"scale"`             // "log", "linear" or "log-growth".
	GrowthFactor    float64 `yaml:"growth_factor"`     // Per-band width growth for "log-growth".
	StrictBlockSize bool    `yaml:"strict_block_size"` // Skip blocks that do not round to TransformSize.
	Ceiling         float64 `yaml:"ceiling"`           // Upper clamp for shaped values, 0 disables.
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`     // Record the captured input to a WAV file.
	OutputDir  string `yaml:"output_dir"`  // Directory to save recorded audio files.
	OutputFile string `yaml:"output_file"` // File name; generated from the start time when empty.
}

// TransportConfig holds settings related to sending band vectors to other processes.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Serve band frames on /bands.
	WebSocketAddress string        `yaml:"websocket_address"`  // Listen address for the WebSocket server.
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send band packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between sending UDP packets.
	LogFrames        bool          `yaml:"log_frames"`         // Log every published frame at debug level.
}

// UIConfig holds settings for the terminal bar renderer.
type UIConfig struct {
	Enabled bool `yaml:"enabled"` // Render bars in the terminal.
	FPS     int  `yaml:"fps"`     // Redraw rate.
}

// NewConfig returns a Config populated with the built-in defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			Source:          DefaultSource,
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultChannels,
			ToneFrequency:   DefaultToneFrequency,
			Loop:            true,
			GateEnabled:     true,
			GateThreshold:   DefaultGateThreshold,
		},
		Analysis: AnalysisConfig{
			NumBands:        DefaultNumBands,
			TransformSize:   DefaultTransformSize,
			LowerFrequency:  DefaultLowerFrequency,
			UpperFrequency:  DefaultUpperFrequency,
			AttackRate:      DefaultAttackRate,
			DecayRate:       DefaultDecayRate,
			LogBase:         DefaultLogBase,
			Scale:           DefaultScale,
			GrowthFactor:    DefaultGrowthFactor,
			StrictBlockSize: true,
			Ceiling:         DefaultCeiling,
		},
		Recording: RecordingConfig{
			OutputDir: "./recordings",
		},
		Transport: TransportConfig{
			WebSocketAddress: DefaultWebSocketAddress,
			UDPTargetAddress: DefaultUDPTarget,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
		UI: UIConfig{
			Enabled: true,
			FPS:     DefaultFPS,
		},
	}
}
