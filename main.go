// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"barviz/cmd"
	"barviz/internal/analysis"
	"barviz/internal/audio"
	"barviz/internal/config"
	applog "barviz/internal/log"
	"barviz/internal/transport"
	"barviz/internal/transport/udp"
	"barviz/internal/tui"
	"barviz/pkg/build"
)

// logFile receives log output while the terminal renderer owns the screen.
const logFile = "barviz.log"

// main is the entry point for the spectrum bar analyser.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and the configuration file
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Start the capture source and the analysis loop
//   - Start recording, transports and the renderer if enabled
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals or renderer exit
//   - Stop producers before consumers and log, never propagate, errors
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds carry no ldflags and keep the defaults.
	if err := build.Initialize(); err != nil {
		applog.Debugf("Build: %v, using development build info", err)
	}

	cfg, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if cfg == nil {
		return // help or version flag handled by cobra
	}

	configureLogging(cfg)

	// Handle one-off commands that don't run the pipeline
	if cfg.Command != "" {
		if err := executeCommand(cfg); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	if err := run(cfg); err != nil {
		applog.Fatalf("%v", err)
	}
}

func configureLogging(cfg *config.Config) {
	level, ok := applog.ParseLevel(cfg.LogLevel)
	if !ok {
		level = applog.LevelInfo
	}
	if cfg.Debug {
		level = applog.LevelDebug
	}
	applog.SetLevel(level)
}

// executeCommand handles one-off commands such as listing devices.
func executeCommand(cfg *config.Config) error {
	switch cfg.Command {
	case cmd.CommandVersion:
		fmt.Println(build.GetBuildFlags())
		return nil

	case cmd.CommandList:
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
		return audio.ListDevices(os.Stdout)

	case cmd.CommandDevices:
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()

		sel, err := tui.StartDeviceListUI()
		if err != nil || sel == nil {
			return err
		}
		fmt.Printf("Selected [%d] %s at %.0f Hz\n", sel.DeviceID, sel.Name, sel.SampleRate)

		if !cfg.SaveDevice {
			fmt.Printf("Run with: %s --device %d --sample-rate %.0f\n",
				build.GetBuildFlags().Name, sel.DeviceID, sel.SampleRate)
			return nil
		}

		path := cfg.Path
		if path == "" {
			path = "barviz.yaml"
		}
		cfg.Command = ""
		cfg.Audio.Source = config.SourceDevice
		cfg.Audio.InputDevice = sel.DeviceID
		cfg.Audio.SampleRate = sel.SampleRate
		cfg.Audio.InputChannels = sel.Channels
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Printf("Saved to %s\n", path)
		return nil

	default:
		return fmt.Errorf("unknown command %q", cfg.Command)
	}
}

// run wires source → processor → sinks and blocks until shutdown.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Audio.Source == config.SourceDevice {
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer func() {
			if err := audio.Terminate(); err != nil {
				applog.Errorf("Shutdown: %v", err)
			}
		}()
	}

	src, err := audio.NewSource(cfg.Audio)
	if err != nil {
		return err
	}
	if err := src.Initialize(); err != nil {
		return err
	}

	acfg, err := analysis.FromConfig(cfg.Analysis, src.SampleRate())
	if err != nil {
		return err
	}

	var sinks []transport.Transport
	if cfg.Transport.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress)
		if err != nil {
			return err
		}
		applog.Infof("Transport: WebSocket frames on ws://%s%s", ws.Addr(), transport.BandsPath)
		sinks = append(sinks, ws)
	}
	if cfg.Transport.LogFrames {
		sinks = append(sinks, transport.NewLoggingTransport(1))
	}

	proc, err := analysis.NewProcessor(acfg, src.Exchange(), sinks...)
	if err != nil {
		closeAll(sinks)
		return err
	}

	var (
		sender    *udp.UDPSender
		publisher *udp.UDPPublisher
	)
	if cfg.Transport.UDPEnabled {
		sender, err = udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			closeAll(sinks)
			return err
		}
		publisher, err = udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, proc)
		if err != nil {
			sender.Close()
			closeAll(sinks)
			return err
		}
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	proc.Start()
	if err := src.StartCapture(); err != nil {
		proc.Stop()
		if sender != nil {
			sender.Close()
		}
		closeAll(sinks)
		return err
	}

	if cfg.Recording.Enabled {
		startRecording(src, cfg.Recording)
	}
	if publisher != nil {
		publisher.Start()
	}

	applog.WithFields(applog.Fields{
		"source":     cfg.Audio.Source,
		"sampleRate": src.SampleRate(),
		"bands":      proc.Bands(),
		"fftSize":    acfg.TransformSize,
		"scale":      acfg.Scale,
	}).Info("Pipeline running")

	if cfg.UI.Enabled {
		runRenderer(ctx, stop, proc, cfg.UI.FPS)
	} else {
		waitForShutdown(ctx, src)
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	// Producers first so the analysis loop is woken and drains.
	if err := src.Close(); err != nil {
		applog.Errorf("Shutdown: closing source: %v", err)
	}
	proc.Stop()
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			applog.Errorf("Shutdown: stopping UDP publisher: %v", err)
		}
		if err := sender.Close(); err != nil {
			applog.Errorf("Shutdown: closing UDP sender: %v", err)
		}
	}
	closeAll(sinks)

	stats := proc.Stats()
	applog.WithFields(applog.Fields{
		"processed": stats.Processed,
		"skipped":   stats.Skipped,
		"failed":    stats.Failed,
		"dropped":   src.Exchange().Dropped(),
	}).Info("Pipeline stopped")
	return nil
}

// runRenderer owns the terminal until the user quits or a signal arrives.
func runRenderer(ctx context.Context, stop context.CancelFunc, proc *analysis.Processor, fps int) {
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err == nil {
		applog.SetOutput(f)
		defer func() {
			applog.SetOutput(os.Stderr)
			f.Close()
		}()
	}

	program := tui.NewBarsProgram(proc, fps)
	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	if _, err := program.Run(); err != nil && !errors.Is(err, context.Canceled) {
		applog.Errorf("Renderer: %v", err)
	}
	stop()
}

// waitForShutdown blocks until a signal arrives or a finite source ends.
func waitForShutdown(ctx context.Context, src audio.Source) {
	var ended <-chan struct{}
	if d, ok := src.(interface{ Done() <-chan struct{} }); ok {
		ended = d.Done()
	}

	select {
	case <-ctx.Done():
	case <-ended:
		applog.Info("Source finished")
	}
}

func startRecording(src audio.Source, rc config.RecordingConfig) {
	engine, ok := src.(*audio.Engine)
	if !ok {
		applog.Warnf("Recording: only device capture can be recorded, ignoring")
		return
	}
	path := audio.RecordingPath(rc, time.Now().UTC())
	if err := engine.StartRecording(path); err != nil {
		applog.Errorf("Recording: %v", err)
	}
}

func closeAll(sinks []transport.Transport) {
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			applog.Errorf("Shutdown: closing transport: %v", err)
		}
	}
}
