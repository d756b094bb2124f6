package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harun/toolgate/pkg/toolexecutor"
	"github.com/rs/zerolog"
)

// Tool lifecycle events a script can subscribe to.
const (
	EventToolStart   = "tool:start"
	EventToolSuccess = "tool:success"
	EventToolError   = "tool:error"
)

const envPrefix = "TOOLGATE_HOOK_"

var knownEvents = map[string]bool{
	EventToolStart:   true,
	EventToolSuccess: true,
	EventToolError:   true,
}

// IsKnownEvent reports whether event is a tool lifecycle event.
func IsKnownEvent(event string) bool {
	return knownEvents[strings.TrimSpace(event)]
}

// Hook is a shell script run on a lifecycle event. An empty Tools list
// matches every tool.
type Hook struct {
	ID      string
	Event   string
	Script  string
	Tools   []string
	Timeout time.Duration
	Enabled bool
}

func (h Hook) matches(toolName string) bool {
	if len(h.Tools) == 0 {
		return true
	}
	for _, t := range h.Tools {
		if t == toolName {
			return true
		}
	}
	return false
}

// Config configures a Hook manager.
type Config struct {
	Enabled bool
	Hooks   []Hook
	Logger  zerolog.Logger
}

// Manager runs configured scripts for tool lifecycle events.
type Manager struct {
	enabled bool
	logger  zerolog.Logger

	mu           sync.RWMutex
	hooksByEvent map[string][]Hook
}

// NewManager creates a hook manager.
func NewManager(cfg Config) (*Manager, error) {
	manager := &Manager{
		enabled:      cfg.Enabled,
		logger:       cfg.Logger.With().Str("component", "hooks").Logger(),
		hooksByEvent: make(map[string][]Hook),
	}

	if !cfg.Enabled {
		return manager, nil
	}

	for _, hook := range cfg.Hooks {
		if !hook.Enabled {
			continue
		}
		event := strings.TrimSpace(hook.Event)
		if event == "" {
			return nil, fmt.Errorf("hook event is required")
		}
		if !IsKnownEvent(event) {
			return nil, fmt.Errorf("unknown hook event %q", event)
		}
		if strings.TrimSpace(hook.Script) == "" {
			return nil, fmt.Errorf("hook script is required for event %q", event)
		}
		hook.Event = event
		manager.hooksByEvent[event] = append(manager.hooksByEvent[event], hook)
	}

	return manager, nil
}

// Count returns the number of active hooks.
func (m *Manager) Count() int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, hooks := range m.hooksByEvent {
		n += len(hooks)
	}
	return n
}

// Trigger runs every hook registered for event whose tool filter matches
// toolName. data is exported to the script environment and written as JSON
// to its stdin.
func (m *Manager) Trigger(ctx context.Context, event, toolName string, data map[string]interface{}) error {
	if m == nil || !m.enabled {
		return nil
	}
	event = strings.TrimSpace(event)
	if event == "" {
		return fmt.Errorf("event is required")
	}

	m.mu.RLock()
	hooks := append([]Hook(nil), m.hooksByEvent[event]...)
	m.mu.RUnlock()

	var errs []error
	for _, hook := range hooks {
		if !hook.matches(toolName) {
			continue
		}
		if err := m.executeHook(ctx, event, hook, data); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// ToolHooks adapts the manager to engine lifecycle hooks.
func (m *Manager) ToolHooks() toolexecutor.Hooks {
	return toolexecutor.Hooks{
		OnStart: func(ctx context.Context, ev toolexecutor.StartEvent) error {
			return m.Trigger(ctx, EventToolStart, ev.ToolName, map[string]interface{}{
				"tool":    ev.ToolName,
				"call_id": ev.CallID,
				"role":    toolexecutor.ResolveRole(ev.Context),
				"args":    ev.Args,
			})
		},
		OnSuccess: func(ctx context.Context, ev toolexecutor.SuccessEvent) error {
			return m.Trigger(ctx, EventToolSuccess, ev.ToolName, map[string]interface{}{
				"tool":        ev.ToolName,
				"call_id":     ev.CallID,
				"role":        toolexecutor.ResolveRole(ev.Context),
				"duration_ms": ev.Duration.Milliseconds(),
				"result":      ev.Result,
			})
		},
		OnError: func(ctx context.Context, ev toolexecutor.ErrorEvent) error {
			msg := ""
			if ev.Err != nil {
				msg = ev.Err.Error()
			}
			return m.Trigger(ctx, EventToolError, ev.ToolName, map[string]interface{}{
				"tool":        ev.ToolName,
				"call_id":     ev.CallID,
				"role":        toolexecutor.ResolveRole(ev.Context),
				"duration_ms": ev.Duration.Milliseconds(),
				"error":       msg,
			})
		},
	}
}

func (m *Manager) executeHook(ctx context.Context, event string, hook Hook, data map[string]interface{}) error {
	if ctx == nil {
		ctx = context.Background()
	}

	hookID := hook.ID
	if strings.TrimSpace(hookID) == "" {
		hookID = event
	}

	runCtx := ctx
	cancel := func() {}
	if hook.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, hook.Timeout)
	}
	defer cancel()

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("hook %s: failed to encode event data: %w", hookID, err)
	}

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", hook.Script)
	cmd.Env = buildHookEnvironment(event, data, payload)
	cmd.Stdin = bytes.NewReader(payload)

	output, err := cmd.CombinedOutput()
	outputText := strings.TrimSpace(string(output))
	if err != nil {
		if outputText != "" {
			return fmt.Errorf("hook %s failed: %w: %s", hookID, err, outputText)
		}
		return fmt.Errorf("hook %s failed: %w", hookID, err)
	}

	if outputText != "" {
		m.logger.Debug().
			Str("event", event).
			Str("hook_id", hookID).
			Str("output", outputText).
			Msg("Hook executed")
	}

	return nil
}

// buildHookEnvironment exports scalar data values as TOOLGATE_HOOK_DATA_<KEY>
// and the whole payload as TOOLGATE_HOOK_PAYLOAD.
func buildHookEnvironment(event string, data map[string]interface{}, payload []byte) []string {
	env := append([]string{}, os.Environ()...)
	env = append(env, envPrefix+"EVENT="+event, envPrefix+"PAYLOAD="+string(payload))

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		var value string
		switch v := data[key].(type) {
		case nil:
			continue
		case string:
			value = v
		case map[string]interface{}, []interface{}:
			raw, err := json.Marshal(v)
			if err != nil {
				continue
			}
			value = string(raw)
		default:
			value = fmt.Sprintf("%v", v)
		}
		env = append(env, envPrefix+"DATA_"+normalizeEnvKey(key)+"="+value)
	}
	return env
}

func normalizeEnvKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "UNKNOWN"
	}

	upper := strings.ToUpper(key)
	builder := strings.Builder{}
	builder.Grow(len(upper))
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			builder.WriteRune(r)
			continue
		}
		builder.WriteRune('_')
	}
	return builder.String()
}
