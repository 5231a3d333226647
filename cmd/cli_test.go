// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"barviz/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory so no default config file is found.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestParseArgsDefaults(t *testing.T) {
	isolate(t)

	cfg, err := ParseArgs(nil)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "", cfg.Command)
	assert.Equal(t, config.NewConfig().Analysis, cfg.Analysis)
	assert.Equal(t, config.SourceDevice, cfg.Audio.Source)
	assert.True(t, cfg.UI.Enabled)
	assert.False(t, cfg.Transport.WebSocketEnabled)
}

func TestParseArgsFlags(t *testing.T) {
	isolate(t)

	cfg, err := ParseArgs([]string{
		"--bands", "24",
		"--scale", "linear",
		"--fft-size", "2048",
		"--ws", ":9000",
		"--udp", "127.0.0.1:7000",
		"--ui=false",
		"--source", "tone",
		"--tone", "1000",
		"-v",
	})
	require.NoError(t, err)

	assert.Equal(t, 24, cfg.Analysis.NumBands)
	assert.Equal(t, "linear", cfg.Analysis.Scale)
	assert.Equal(t, 2048, cfg.Analysis.TransformSize)
	assert.Equal(t, 2048, cfg.Audio.FramesPerBuffer, "block size follows the transform size")
	assert.True(t, cfg.Transport.WebSocketEnabled)
	assert.Equal(t, ":9000", cfg.Transport.WebSocketAddress)
	assert.True(t, cfg.Transport.UDPEnabled)
	assert.Equal(t, "127.0.0.1:7000", cfg.Transport.UDPTargetAddress)
	assert.False(t, cfg.UI.Enabled)
	assert.Equal(t, config.SourceTone, cfg.Audio.Source)
	assert.Equal(t, 1000.0, cfg.Audio.ToneFrequency)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseArgsFileImpliesWAVSource(t *testing.T) {
	isolate(t)

	cfg, err := ParseArgs([]string{"--file", "song.wav"})
	require.NoError(t, err)
	assert.Equal(t, config.SourceWAV, cfg.Audio.Source)
	assert.Equal(t, "song.wav", cfg.Audio.WAVFile)
}

func TestParseArgsConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
analysis:
  num_bands: 32
  decay_rate: 0.3
transport:
  udp_send_interval: 20ms
`), 0o644))

	cfg, err := ParseArgs([]string{"--config", path, "--bands", "8"})
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, 8, cfg.Analysis.NumBands, "flags win over the file")
	assert.Equal(t, 0.3, cfg.Analysis.DecayRate)
	assert.Equal(t, 20*time.Millisecond, cfg.Transport.UDPSendInterval)
}

func TestParseArgsSubcommands(t *testing.T) {
	isolate(t)

	cfg, err := ParseArgs([]string{"list"})
	require.NoError(t, err)
	assert.Equal(t, CommandList, cfg.Command)

	cfg, err = ParseArgs([]string{"devices", "--save"})
	require.NoError(t, err)
	assert.Equal(t, CommandDevices, cfg.Command)
	assert.True(t, cfg.SaveDevice)

	cfg, err = ParseArgs([]string{"version"})
	require.NoError(t, err)
	assert.Equal(t, CommandVersion, cfg.Command)
}

func TestParseArgsErrors(t *testing.T) {
	isolate(t)

	_, err := ParseArgs([]string{"--fft-size", "1000"})
	assert.ErrorIs(t, err, config.ErrInvalid)

	_, err = ParseArgs([]string{"--source", "wav"})
	assert.ErrorIs(t, err, config.ErrInvalid, "wav source needs a file")

	_, err = ParseArgs([]string{"--config", "missing.yaml"})
	assert.Error(t, err)

	_, err = ParseArgs([]string{"unexpected"})
	assert.Error(t, err)

	_, err = ParseArgs([]string{"--no-such-flag"})
	assert.Error(t, err)
}

func TestParseArgsHelp(t *testing.T) {
	isolate(t)

	cfg, err := ParseArgs([]string{"--help"})
	require.NoError(t, err)
	assert.Nil(t, cfg)
}
