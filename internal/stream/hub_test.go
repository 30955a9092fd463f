package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathanyu/trading-oms/internal/domain"
)

func dialTestHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("hub never reached %d clients, has %d", want, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublish_ReachesClient(t *testing.T) {
	hub := NewHub()
	conn := dialTestHub(t, hub)
	waitForClients(t, hub, 1)

	hub.Publish(domain.StreamEvent{Type: "order", Data: map[string]string{"orderId": "ORD-1"}})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var got domain.StreamEvent
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "order", got.Type)
}

func TestPublish_MultipleClients(t *testing.T) {
	hub := NewHub()
	first := dialTestHub(t, hub)
	second := dialTestHub(t, hub)
	waitForClients(t, hub, 2)

	hub.Publish(domain.StreamEvent{Type: "quote"})

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		var got domain.StreamEvent
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, "quote", got.Type)
	}
}

func TestPublish_NoClients(t *testing.T) {
	hub := NewHub()
	// Must not block or panic with nobody connected.
	hub.Publish(domain.StreamEvent{Type: "quote"})
	assert.Equal(t, 0, hub.ClientCount())
}

func TestClientDisconnect_Removed(t *testing.T) {
	hub := NewHub()
	conn := dialTestHub(t, hub)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)
}

func TestSlowClient_Dropped(t *testing.T) {
	hub := NewHub()

	// A client with a full send buffer and no write pump draining it.
	stuck := &client{send: make(chan domain.StreamEvent)}
	hub.mu.Lock()
	hub.clients[stuck] = struct{}{}
	hub.mu.Unlock()

	hub.Publish(domain.StreamEvent{Type: "quote"})

	assert.Equal(t, 0, hub.ClientCount())
	_, open := <-stuck.send
	assert.False(t, open, "send channel should be closed after drop")
}
