package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, interval time.Duration, snapshot func() any) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(snapshot, interval)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(NewWebSocketHandler(hub).HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WebSocketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg WebSocketMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWebSocketStreamsSnapshots(t *testing.T) {
	n := 0
	hub, srv := startHub(t, 20*time.Millisecond, func() any {
		n++
		return map[string]int{"seq": n}
	})
	conn := dial(t, srv)

	first := readMessage(t, conn)
	assert.Equal(t, "metrics", first.Type)
	second := readMessage(t, conn)
	assert.Equal(t, "metrics", second.Type)

	firstSeq := first.Payload.(map[string]any)["seq"].(float64)
	secondSeq := second.Payload.(map[string]any)["seq"].(float64)
	assert.Greater(t, secondSeq, firstSeq)

	assert.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWebSocketClientDisconnect(t *testing.T) {
	hub, srv := startHub(t, time.Hour, func() any { return "snapshot" })
	conn := dial(t, srv)

	msg := readMessage(t, conn)
	assert.Equal(t, "snapshot", msg.Payload)
	require.Equal(t, 1, hub.Clients())

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketHubShutdownClosesClients(t *testing.T) {
	hub := NewHub(func() any { return nil }, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	srv := httptest.NewServer(http.HandlerFunc(NewWebSocketHandler(hub).HandleWebSocket))
	defer srv.Close()

	conn := dial(t, srv)
	readMessage(t, conn)

	cancel()
	<-done
	assert.Equal(t, 0, hub.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
