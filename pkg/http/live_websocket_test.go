package http

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellbeing-server/pkg/models"
	"wellbeing-server/pkg/realtime"
)

func dialLiveUsage(t *testing.T) (*realtime.Tracker, *websocket.Conn) {
	t.Helper()

	tracker := realtime.NewTracker(testLogger(), nil)
	handler := NewLiveUsageHandler(testLogger(), tracker)
	handler.Start()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return tracker, conn
}

// awaitFrame reads until a frame of the wanted type arrives. The write
// pump may coalesce queued frames into one newline-separated message.
func awaitFrame(t *testing.T, conn *websocket.Conn, frameType string) LiveMessage {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		for _, line := range bytes.Split(data, []byte{'\n'}) {
			if len(line) == 0 {
				continue
			}
			var msg LiveMessage
			require.NoError(t, json.Unmarshal(line, &msg))
			if msg.Type == frameType {
				return msg
			}
		}
	}

	t.Fatalf("no %q frame received", frameType)
	return LiveMessage{}
}

func TestLiveUsageRejectsInvalidEvent(t *testing.T) {
	tracker, conn := dialLiveUsage(t)

	awaitFrame(t, conn, "connected")

	frame := LiveMessage{
		Type: "usage_update",
		Event: &models.UsageEvent{
			UserID:    "u1",
			AppName:   "",
			Duration:  -500,
			Timestamp: time.Now(),
		},
	}
	require.NoError(t, conn.WriteJSON(frame))

	errFrame := awaitFrame(t, conn, "error")
	assert.NotEmpty(t, errFrame.Error)

	_, ok := tracker.Session("u1", "")
	assert.False(t, ok)
}

func TestLiveUsageProcessesValidEvent(t *testing.T) {
	tracker, conn := dialLiveUsage(t)

	awaitFrame(t, conn, "connected")

	frame := LiveMessage{
		Type: "usage_update",
		Event: &models.UsageEvent{
			UserID:    "u1",
			AppName:   "instagram",
			Duration:  5,
			Timestamp: time.Now(),
		},
	}
	require.NoError(t, conn.WriteJSON(frame))

	result := awaitFrame(t, conn, "usage_result")
	require.NotNil(t, result.Update)
	assert.Equal(t, "u1", result.UserID)

	_, ok := tracker.Session("u1", "instagram")
	assert.True(t, ok)
}

func TestLiveUsageMissingEventFrame(t *testing.T) {
	_, conn := dialLiveUsage(t)

	awaitFrame(t, conn, "connected")

	require.NoError(t, conn.WriteJSON(LiveMessage{Type: "usage_update"}))

	errFrame := awaitFrame(t, conn, "error")
	assert.NotEmpty(t, errFrame.Error)
}
