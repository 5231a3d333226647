// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	applog "barviz/internal/log"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramePeak(t *testing.T) {
	tests := []struct {
		name      string
		bands     []float64
		wantIndex int
		wantValue float64
	}{
		{"empty", nil, -1, 0},
		{"single", []float64{0.3}, 0, 0.3},
		{"middle peak", []float64{0.1, 0.9, 0.4}, 1, 0.9},
		{"first of equal peaks", []float64{0.5, 0.5}, 0, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, v := Frame{Bands: tt.bands}.Peak()
			assert.Equal(t, tt.wantIndex, idx)
			assert.Equal(t, tt.wantValue, v)
		})
	}
}

func TestLoggingTransportSampling(t *testing.T) {
	var buf bytes.Buffer
	applog.SetOutput(&buf)
	applog.SetLevel(applog.LevelDebug)
	t.Cleanup(func() {
		applog.SetOutput(os.Stderr)
		applog.SetLevel(applog.LevelInfo)
	})

	lt := NewLoggingTransport(3)
	for i := range 7 {
		require.NoError(t, lt.Send(Frame{Seq: uint64(i), Bands: []float64{0, 1}}))
	}
	require.NoError(t, lt.Close())

	assert.Equal(t, uint64(7), lt.Sent())
	// Frames 0, 3 and 6 are logged.
	assert.Equal(t, 3, strings.Count(buf.String(), "msg=frame"))
}

func TestWebSocketTransportBroadcast(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { wst.Close() })

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+wst.Addr()+BandsPath, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return wst.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	want := Frame{Seq: 7, Timestamp: time.Unix(0, 42).UTC(), Bands: []float64{0.25, 0.5}, Edges: []float64{20, 200, 2000}}
	require.NoError(t, wst.Send(want))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Frame
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, want.Seq, got.Seq)
	assert.Equal(t, want.Bands, got.Bands)
	assert.Equal(t, want.Edges, got.Edges)
	assert.True(t, want.Timestamp.Equal(got.Timestamp))
}

func TestWebSocketTransportClose(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	require.NoError(t, err)

	require.NoError(t, wst.Close())
	require.NoError(t, wst.Close(), "second Close should be a no-op")
	assert.Error(t, wst.Send(Frame{}))
}

func TestWebSocketTransportBadAddress(t *testing.T) {
	_, err := NewWebSocketTransport("127.0.0.1:-1")
	assert.Error(t, err)
}
