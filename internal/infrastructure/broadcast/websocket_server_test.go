package broadcast

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"netqos/internal/core/domain"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestWebSocketServer(t *testing.T, hub *Hub) *httptest.Server {
	ws := NewWebSocketServer(hub, 10*time.Second, 30*time.Second, 5*time.Second, 0, zaptest.NewLogger(t).Sugar())
	return httptest.NewServer(http.HandlerFunc(ws.HandleWebSocket))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitForSubscribers(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber count never reached %d", want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketDeliversBroadcast(t *testing.T) {
	hub := newTestHub(t, 16)
	defer hub.Close()
	srv := newTestWebSocketServer(t, hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	waitForSubscribers(t, hub, 1)
	hub.Broadcast(domain.ChannelAlerts, map[string]string{"type": "alerts"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]string
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "alerts", msg["type"])
}

func TestWebSocketChannelQueryFilter(t *testing.T) {
	hub := newTestHub(t, 16)
	defer hub.Close()
	srv := newTestWebSocketServer(t, hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?channel=alerts", nil)
	require.NoError(t, err)
	defer conn.Close()

	waitForSubscribers(t, hub, 1)
	hub.Broadcast(domain.ChannelTraffic, map[string]string{"type": "traffic-update"})
	hub.Broadcast(domain.ChannelAlerts, map[string]string{"type": "alerts"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]string
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "alerts", msg["type"], "filtered subscriber must skip traffic messages")
}

func TestWebSocketSubscribeControlFrame(t *testing.T) {
	hub := newTestHub(t, 16)
	defer hub.Close()
	srv := newTestWebSocketServer(t, hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	waitForSubscribers(t, hub, 1)
	require.NoError(t, conn.WriteJSON(ControlMessage{Type: "subscribe", Channels: []string{domain.ChannelAllocation}}))

	// Wait until the control frame narrowed the filter.
	deadline := time.Now().Add(2 * time.Second)
	for {
		subs := 0
		hub.mu.RLock()
		for _, sub := range hub.subs {
			if len(sub.Channels()) == 1 {
				subs++
			}
		}
		hub.mu.RUnlock()
		if subs == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscribe control frame was not applied")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Broadcast(domain.ChannelTraffic, map[string]string{"type": "traffic-update"})
	hub.Broadcast(domain.ChannelAllocation, map[string]string{"type": "allocation-update"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]string
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "allocation-update", msg["type"])
}

func TestWebSocketDisconnectUnregisters(t *testing.T) {
	hub := newTestHub(t, 16)
	defer hub.Close()
	srv := newTestWebSocketServer(t, hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)

	waitForSubscribers(t, hub, 1)
	conn.Close()
	waitForSubscribers(t, hub, 0)
}
