package gateway

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harun/toolgate/pkg/toolexecutor"
)

// idleAfter marks a client idle in ClientInfo.
const idleAfter = 5 * time.Minute

// ClientRegistry tracks connected WebSocket clients together with the caller
// identity each one declared through session.identify and its tool usage.
// Identity and usage fields on Client are guarded by the registry lock.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]*Client)}
}

func (r *ClientRegistry) Add(client *Client) {
	r.mu.Lock()
	r.clients[client.ID] = client
	r.mu.Unlock()
}

// Remove drops a client and reports whether it was registered.
func (r *ClientRegistry) Remove(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.clients[clientID]
	delete(r.clients, clientID)
	return ok
}

func (r *ClientRegistry) Get(clientID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[clientID]
	return client, ok
}

func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// All returns every client; authenticatedOnly filters to those allowed to
// receive events and call methods.
func (r *ClientRegistry) All(authenticatedOnly bool) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		if authenticatedOnly && !client.Authenticated {
			continue
		}
		out = append(out, client)
	}
	return out
}

// Touch records activity on a client.
func (r *ClientRegistry) Touch(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[clientID]; ok {
		client.LastActivity = time.Now()
	}
}

// SetIdentity stores the execution context used for this client's
// tools.execute calls that do not carry their own.
func (r *ClientRegistry) SetIdentity(clientID string, execCtx toolexecutor.ExecutionContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[clientID]
	if !ok {
		return fmt.Errorf("client %s is not connected", clientID)
	}
	if execCtx.User != nil {
		u := *execCtx.User
		execCtx.User = &u
	}
	client.identity = &execCtx
	return nil
}

// Identity returns the execution context a client declared, if any.
func (r *ClientRegistry) Identity(clientID string) (toolexecutor.ExecutionContext, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[clientID]
	if !ok || client.identity == nil {
		return toolexecutor.ExecutionContext{}, false
	}
	return *client.identity, true
}

// RecordToolCall counts a tools.execute made over a client connection.
func (r *ClientRegistry) RecordToolCall(clientID, toolName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[clientID]; ok {
		client.toolCalls++
		client.lastTool = toolName
	}
}

// Snapshot describes every connected client, oldest first.
func (r *ClientRegistry) Snapshot() []ClientInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	infos := make([]ClientInfo, 0, len(r.clients))
	for _, client := range r.clients {
		info := ClientInfo{
			ID:            client.ID,
			Authenticated: client.Authenticated,
			ConnectedAt:   client.ConnectedAt,
			LastActivity:  client.LastActivity,
			IPAddress:     client.IPAddress,
			Idle:          now.Sub(client.LastActivity) > idleAfter,
			ToolCalls:     client.toolCalls,
			LastTool:      client.lastTool,
		}
		if client.identity != nil {
			if client.identity.User != nil {
				info.UserID = client.identity.User.ID
			}
			info.Role = toolexecutor.ResolveRole(*client.identity)
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ConnectedAt.Before(infos[j].ConnectedAt) })
	return infos
}
