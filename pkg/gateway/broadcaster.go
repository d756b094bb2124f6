package gateway

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/toolgate/internal/tracing"
	"github.com/harun/toolgate/pkg/adapters"
	"github.com/harun/toolgate/pkg/toolexecutor"
	"github.com/rs/zerolog"
)

// Tool lifecycle events pushed to WebSocket clients.
const (
	EventToolStart   = "tool.start"
	EventToolSuccess = "tool.success"
	EventToolError   = "tool.error"
)

// EventBroadcaster handles broadcasting events to all authenticated clients
type EventBroadcaster struct {
	clients *ClientRegistry
	logger  zerolog.Logger
	seq     uint64
}

// NewEventBroadcaster creates a new event broadcaster
func NewEventBroadcaster(clients *ClientRegistry, logger zerolog.Logger) *EventBroadcaster {
	return &EventBroadcaster{
		clients: clients,
		logger:  logger,
	}
}

// Broadcast sends an event to all authenticated clients
func (b *EventBroadcaster) Broadcast(event string, data interface{}) {
	b.BroadcastTyped(EventMessage{Event: event, Data: data})
}

// BroadcastTyped sends a typed stream event, filling in sequence and
// timestamp when unset.
func (b *EventBroadcaster) BroadcastTyped(msg EventMessage) {
	msg.Type = "event"
	if msg.Seq == 0 {
		msg.Seq = int64(atomic.AddUint64(&b.seq, 1))
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error().
			Err(err).
			Str("event", msg.Event).
			Int64("seq", msg.Seq).
			Msg("Failed to marshal event")
		return
	}

	clients := b.clients.All(true)
	if len(clients) == 0 {
		return
	}

	failed := 0
	for _, client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, payload); err != nil {
			b.logger.Warn().
				Err(err).
				Str("clientId", client.ID).
				Str("event", msg.Event).
				Msg("Failed to broadcast to client")
			failed++
		}
	}

	b.logger.Debug().
		Str("event", msg.Event).
		Int64("seq", msg.Seq).
		Int("delivered", len(clients)-failed).
		Int("failed", failed).
		Msg("Event broadcast complete")
}

// ToolHooks streams tool lifecycle events to connected clients. Arguments and
// results are not broadcast; clients that need them call tools.execute.
func (b *EventBroadcaster) ToolHooks() toolexecutor.Hooks {
	return toolexecutor.Hooks{
		OnStart: func(ctx context.Context, ev toolexecutor.StartEvent) error {
			b.BroadcastTyped(EventMessage{
				Event:   EventToolStart,
				Stream:  StreamTypeTool,
				Phase:   "start",
				TraceID: tracing.GetTraceID(ctx),
				CallID:  ev.CallID,
				Data:    map[string]interface{}{"tool": ev.ToolName},
			})
			return nil
		},
		OnSuccess: func(ctx context.Context, ev toolexecutor.SuccessEvent) error {
			b.BroadcastTyped(EventMessage{
				Event:   EventToolSuccess,
				Stream:  StreamTypeTool,
				Phase:   "end",
				TraceID: tracing.GetTraceID(ctx),
				CallID:  ev.CallID,
				Data: map[string]interface{}{
					"tool":       ev.ToolName,
					"durationMs": ev.Duration.Milliseconds(),
				},
			})
			return nil
		},
		OnError: func(ctx context.Context, ev toolexecutor.ErrorEvent) error {
			b.BroadcastTyped(EventMessage{
				Event:   EventToolError,
				Stream:  StreamTypeTool,
				Phase:   "error",
				TraceID: tracing.GetTraceID(ctx),
				CallID:  ev.CallID,
				Data: map[string]interface{}{
					"tool":       ev.ToolName,
					"durationMs": ev.Duration.Milliseconds(),
					"error":      adapters.NewToolError(ev.Err),
				},
			})
			return nil
		},
	}
}
