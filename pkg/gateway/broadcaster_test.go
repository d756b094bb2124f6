package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/toolgate/internal/tracing"
	"github.com/harun/toolgate/pkg/toolexecutor"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBroadcaster_BroadcastTypedAddsSequence(t *testing.T) {
	serverConn, clientConn, cleanup := websocketConnPair(t)
	defer cleanup()

	registry := NewClientRegistry()
	registry.Add(&Client{ID: "client-1", Conn: serverConn, Authenticated: true})

	broadcaster := NewEventBroadcaster(registry, zerolog.Nop())
	broadcaster.BroadcastTyped(EventMessage{Event: "tool", Stream: StreamTypeTool, Phase: "start", TraceID: "trace-1", CallID: "call-1"})
	broadcaster.BroadcastTyped(EventMessage{Event: "tool", Stream: StreamTypeTool, Phase: "end", TraceID: "trace-1", CallID: "call-1"})

	first := readEvent(t, clientConn)
	second := readEvent(t, clientConn)

	assert.Equal(t, "event", first.Type)
	assert.Equal(t, StreamTypeTool, first.Stream)
	assert.Equal(t, "start", first.Phase)
	assert.Equal(t, "trace-1", first.TraceID)
	assert.Equal(t, "call-1", first.CallID)
	assert.NotZero(t, first.Seq)
	assert.NotZero(t, first.Timestamp)

	assert.Equal(t, "end", second.Phase)
	assert.Greater(t, second.Seq, first.Seq)
}

func TestEventBroadcaster_SkipsUnauthenticatedClients(t *testing.T) {
	serverConn, clientConn, cleanup := websocketConnPair(t)
	defer cleanup()

	registry := NewClientRegistry()
	registry.Add(&Client{ID: "client-1", Conn: serverConn})

	NewEventBroadcaster(registry, zerolog.Nop()).Broadcast("tick", nil)

	require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	var event EventMessage
	assert.Error(t, clientConn.ReadJSON(&event))
}

func TestEventBroadcaster_ToolHooks(t *testing.T) {
	serverConn, clientConn, cleanup := websocketConnPair(t)
	defer cleanup()

	registry := NewClientRegistry()
	registry.Add(&Client{ID: "client-1", Conn: serverConn, Authenticated: true})
	hooks := NewEventBroadcaster(registry, zerolog.Nop()).ToolHooks()

	ctx := tracing.WithTraceID(context.Background(), "trace-9")
	require.NoError(t, hooks.OnStart(ctx, toolexecutor.StartEvent{CallID: "c1", ToolName: "get_weather", Args: map[string]interface{}{"city": "Paris"}}))
	require.NoError(t, hooks.OnError(ctx, toolexecutor.ErrorEvent{CallID: "c1", ToolName: "get_weather", Err: errors.New("boom"), Duration: 5 * time.Millisecond}))

	start := readEvent(t, clientConn)
	assert.Equal(t, EventToolStart, start.Event)
	assert.Equal(t, "trace-9", start.TraceID)
	assert.Equal(t, "c1", start.CallID)
	startData := start.Data.(map[string]interface{})
	assert.Equal(t, "get_weather", startData["tool"])
	assert.NotContains(t, startData, "args")

	failed := readEvent(t, clientConn)
	assert.Equal(t, EventToolError, failed.Event)
	errData := failed.Data.(map[string]interface{})["error"].(map[string]interface{})
	assert.Equal(t, toolexecutor.CodeExecution, errData["code"])
	assert.Equal(t, "boom", errData["message"])
}

func readEvent(t *testing.T, conn *websocket.Conn) EventMessage {
	t.Helper()
	var event EventMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func websocketConnPair(t *testing.T) (*websocket.Conn, *websocket.Conn, func()) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	serverConnCh := make(chan *websocket.Conn, 1)
	errCh := make(chan error, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errCh <- err
			return
		}
		serverConnCh <- conn
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	var serverConn *websocket.Conn
	select {
	case serverConn = <-serverConnCh:
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server websocket connection")
	}

	cleanup := func() {
		_ = clientConn.Close()
		_ = serverConn.Close()
		srv.Close()
	}

	return serverConn, clientConn, cleanup
}
