package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/signbridge/internal/session"
	"github.com/ayusman/signbridge/internal/stability"
)

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/display"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) DisplayMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg DisplayMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func waitClients(t *testing.T, hub *DisplayHub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Clients() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestDisplayHub_Broadcast(t *testing.T) {
	hub := NewDisplayHub(nil)
	ts := httptest.NewServer(New(Config{Display: hub}))
	defer ts.Close()

	conn := dial(t, ts)
	waitClients(t, hub, 1)

	hub.PublishTransition(session.Transition{RunID: "r", Label: "A", Confidence: 0.9})
	msg := readMessage(t, conn)
	assert.Equal(t, "transition", msg.Type)
	require.NotNil(t, msg.Transition)
	assert.Equal(t, "A", msg.Transition.Label)
	assert.NotZero(t, msg.Timestamp)

	hub.PublishOutput(session.Output{Ready: true, State: stability.State{Label: "A", Confidence: 0.9, Stable: true}})
	msg = readMessage(t, conn)
	assert.Equal(t, "display", msg.Type)
	require.NotNil(t, msg.Output)
	assert.Equal(t, "A", msg.Output.State.Label)

	hub.PublishStatus(session.Snapshot{Status: session.StatusStopped})
	msg = readMessage(t, conn)
	assert.Equal(t, "status", msg.Type)
	require.NotNil(t, msg.Status)
	assert.Equal(t, session.StatusStopped, msg.Status.Status)
}

func TestDisplayHub_ReplaysLastOutput(t *testing.T) {
	hub := NewDisplayHub(nil)
	ts := httptest.NewServer(New(Config{Display: hub}))
	defer ts.Close()

	hub.PublishOutput(session.Output{Ready: true, State: stability.State{Label: "B", Confidence: 0.85, Stable: true}})

	conn := dial(t, ts)
	msg := readMessage(t, conn)
	assert.Equal(t, "display", msg.Type)
	assert.Equal(t, "B", msg.Output.State.Label)
}

func TestDisplayHub_ClientDisconnect(t *testing.T) {
	hub := NewDisplayHub(nil)
	ts := httptest.NewServer(New(Config{Display: hub}))
	defer ts.Close()

	conn := dial(t, ts)
	waitClients(t, hub, 1)

	conn.Close()
	waitClients(t, hub, 0)

	// Broadcasting without clients is a no-op.
	hub.PublishTransition(session.Transition{Label: "A"})
}
