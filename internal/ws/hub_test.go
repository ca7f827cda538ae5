package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster-pro/taskmaster/internal/logging"
)

func newTestHub(t *testing.T, userID uuid.UUID) (*Hub, *websocket.Conn) {
	t.Helper()

	hub := NewHub(logging.New("error"), func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, userID)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return hub, conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var f frame
	require.NoError(t, json.Unmarshal(msg, &f))
	return f
}

func waitConnected(t *testing.T, hub *Hub, userID uuid.UUID) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !hub.IsConnected(userID) {
		if time.Now().After(deadline) {
			t.Fatal("connection never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_ConnectAndPush(t *testing.T) {
	userID := uuid.New()
	hub, conn := newTestHub(t, userID)
	waitConnected(t, hub, userID)

	f := readFrame(t, conn)
	assert.Equal(t, "connected", f.Type)

	hub.Push(userID, "notification", map[string]string{"message": "task assigned to you"})

	f = readFrame(t, conn)
	assert.Equal(t, "notification", f.Type)
	data, ok := f.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "task assigned to you", data["message"])
}

func TestHub_PushToOtherUserNotDelivered(t *testing.T) {
	userID := uuid.New()
	hub, conn := newTestHub(t, userID)
	waitConnected(t, hub, userID)

	f := readFrame(t, conn)
	require.Equal(t, "connected", f.Type)

	// Frames for someone else must never reach this connection.
	hub.Push(uuid.New(), "notification", map[string]string{"message": "not yours"})
	hub.Push(userID, "notification", map[string]string{"message": "yours"})

	f = readFrame(t, conn)
	data, ok := f.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "yours", data["message"])
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	userID := uuid.New()
	hub, conn := newTestHub(t, userID)
	waitConnected(t, hub, userID)
	assert.Equal(t, 1, hub.ConnectedUsers())

	require.NoError(t, conn.Close())

	deadline := time.Now().Add(2 * time.Second)
	for hub.IsConnected(userID) {
		if time.Now().After(deadline) {
			t.Fatal("connection never unregistered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 0, hub.ConnectedUsers())
}

func TestHub_PushWithoutConnectionsIsNoop(t *testing.T) {
	hub := NewHub(logging.New("error"), func(*http.Request) bool { return true })

	// Must not panic or block.
	hub.Push(uuid.New(), "notification", map[string]string{"message": "into the void"})
	assert.False(t, hub.IsConnected(uuid.New()))
}
