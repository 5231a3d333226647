// SPDX-License-Identifier: MIT
package cmd

import (
	"barviz/internal/config"
	"barviz/pkg/build"

	"github.com/spf13/cobra"
)

// One-off commands that replace the pipeline run.
const (
	CommandList    = "list"
	CommandDevices = "devices"
	CommandVersion = "version"
)

// flagValues holds raw flag values until they are merged over the loaded file.
type flagValues struct {
	configPath  string
	source      string
	wavFile     string
	tone        float64
	device      int
	channels    int
	sampleRate  float64
	frames      int
	lowLatency  bool
	bands       int
	fftSize     int
	scale       string
	ui          bool
	ws          string
	udp         string
	record      bool
	output      string
	logLevel    string
	verbose     bool
	saveDevices bool
}

// ParseArgs parses args (without the program name) into a validated
// configuration. The file named by --config, or a default file when present,
// is loaded first and explicitly set flags override it. A nil config with a
// nil error means cobra already handled the invocation, for example --help.
func ParseArgs(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()

	var (
		flags   flagValues
		options *config.Config
	)

	load := func(c *cobra.Command, command string) error {
		cfg, err := config.LoadConfig(flags.configPath)
		if err != nil {
			return err
		}
		applyFlags(c, &flags, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		cfg.Command = command
		options = cfg
		return nil
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(c *cobra.Command, args []string) error {
			return load(c, "")
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandList,
		Short: "List available audio devices",
		RunE: func(c *cobra.Command, args []string) error {
			return load(c, CommandList)
		},
	})

	// Interactive device browser
	devicesCmd := &cobra.Command{
		Use:   CommandDevices,
		Short: "Browse audio devices and pick the input to analyse",
		RunE: func(c *cobra.Command, args []string) error {
			return load(c, CommandDevices)
		},
	}
	devicesCmd.Flags().BoolVar(&flags.saveDevices, "save", false,
		"Write the selected device to the configuration file")
	rootCmd.AddCommand(devicesCmd)

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandVersion,
		Short: "Print build information",
		RunE: func(c *cobra.Command, args []string) error {
			options = config.NewConfig()
			options.Command = CommandVersion
			return nil
		},
	})

	pf := rootCmd.PersistentFlags()

	// Configuration file
	pf.StringVarP(&flags.configPath, "config", "C", "",
		"Path to a YAML configuration file (default barviz.yaml or config.yaml if present)")

	// Audio Source Configuration
	pf.StringVar(&flags.source, "source", config.DefaultSource,
		"Capture source: device, wav or tone")
	pf.StringVar(&flags.wavFile, "file", "",
		"WAV file to replay when --source=wav")
	pf.Float64Var(&flags.tone, "tone", config.DefaultToneFrequency,
		"Tone frequency in Hz when --source=tone")

	// Audio Device Configuration
	pf.IntVarP(&flags.device, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.IntVarP(&flags.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to capture; only the first is analysed")
	pf.Float64VarP(&flags.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&flags.frames, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	pf.BoolVarP(&flags.lowLatency, "low-latency", "l", false,
		"Use low latency mode for real-time processing")

	// Analysis Configuration
	pf.IntVarP(&flags.bands, "bands", "n", config.DefaultNumBands,
		"Number of output bands")
	pf.IntVar(&flags.fftSize, "fft-size", config.DefaultTransformSize,
		"Transform size, a power of two")
	pf.StringVar(&flags.scale, "scale", config.DefaultScale,
		"Band scale: log, linear or log-growth")

	// Output Configuration
	pf.BoolVar(&flags.ui, "ui", true,
		"Render bars in the terminal")
	pf.StringVar(&flags.ws, "ws", "",
		"Serve band frames over WebSocket on this address (e.g. :8080)")
	pf.StringVar(&flags.udp, "udp", "",
		"Send band packets over UDP to this address (e.g. 127.0.0.1:9090)")

	// Recording Configuration
	pf.BoolVarP(&flags.record, "record", "r", false,
		"Record audio from the specified input device")
	pf.StringVarP(&flags.output, "output", "o", "",
		"Output file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")

	// Debug Configuration
	pf.StringVar(&flags.logLevel, "log-level", "info",
		"Log level: debug, info, warn, error or fatal")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false,
		"Show verbose output")

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return options, nil
}

// applyFlags copies every flag the user set onto cfg.
func applyFlags(c *cobra.Command, f *flagValues, cfg *config.Config) {
	changed := c.Flags().Changed

	if changed("source") {
		cfg.Audio.Source = f.source
	}
	if changed("file") {
		cfg.Audio.WAVFile = f.wavFile
		if !changed("source") {
			cfg.Audio.Source = config.SourceWAV
		}
	}
	if changed("tone") {
		cfg.Audio.ToneFrequency = f.tone
	}
	if changed("device") {
		cfg.Audio.InputDevice = f.device
	}
	if changed("channels") {
		cfg.Audio.InputChannels = f.channels
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = f.frames
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = f.lowLatency
	}
	if changed("bands") {
		cfg.Analysis.NumBands = f.bands
	}
	if changed("fft-size") {
		cfg.Analysis.TransformSize = f.fftSize
		if !changed("frames-per-buffer") {
			cfg.Audio.FramesPerBuffer = f.fftSize
		}
	}
	if changed("scale") {
		cfg.Analysis.Scale = f.scale
	}
	if changed("ui") {
		cfg.UI.Enabled = f.ui
	}
	if changed("ws") {
		cfg.Transport.WebSocketEnabled = f.ws != ""
		if f.ws != "" {
			cfg.Transport.WebSocketAddress = f.ws
		}
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = f.udp != ""
		if f.udp != "" {
			cfg.Transport.UDPTargetAddress = f.udp
		}
	}
	if changed("record") {
		cfg.Recording.Enabled = f.record
	}
	if changed("output") {
		cfg.Recording.OutputFile = f.output
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("verbose") && f.verbose {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
	if changed("save") {
		cfg.SaveDevice = f.saveDevices
	}
}
