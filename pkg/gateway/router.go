package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

const defaultIdempotencyTTL = 5 * time.Minute

// RPCRouter registers RPC methods and routes parsed requests to them.
//
// A request carrying an idempotencyKey is answered from cache when the same
// caller repeats the same method with the same key and identical params.
// Only successful responses are cached, so a rejected tools.execute (for
// example CONFIRMATION_REQUIRED) can be replayed with new options under the
// same key and actually run.
type RPCRouter struct {
	mu      sync.RWMutex
	methods map[string]RequestHandler

	responses *responseCache
}

func NewRPCRouter() *RPCRouter {
	return &RPCRouter{
		methods:   make(map[string]RequestHandler),
		responses: newResponseCache(defaultIdempotencyTTL),
	}
}

// RegisterMethod registers an RPC method handler
func (r *RPCRouter) RegisterMethod(name string, handler RequestHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.methods[name] = handler
	return nil
}

// UnregisterMethod removes an RPC method handler
func (r *RPCRouter) UnregisterMethod(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.methods, name)
}

// ParseRequest parses and validates a JSON-RPC request
func (r *RPCRouter) ParseRequest(data []byte) (*RPCRequest, error) {
	var req RPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &RPCError{Code: ParseError, Message: "Parse error", Data: err.Error()}
	}

	switch {
	case req.ID == "":
		return nil, &RPCError{Code: InvalidRequest, Message: "Invalid request: missing id field"}
	case req.Method == "":
		return nil, &RPCError{Code: InvalidRequest, Message: "Invalid request: missing method field"}
	case req.JSONRPC != "" && req.JSONRPC != "2.0":
		return nil, &RPCError{Code: InvalidRequest, Message: fmt.Sprintf("Invalid request: unsupported jsonrpc version %q", req.JSONRPC)}
	}

	if req.JSONRPC == "" {
		req.JSONRPC = "2.0"
	}
	return &req, nil
}

// RouteRequest routes a request to the appropriate handler
func (r *RPCRouter) RouteRequest(ctx context.Context, req *RPCRequest) *RPCResponse {
	if req == nil {
		return &RPCResponse{
			JSONRPC: "2.0",
			Error:   &RPCError{Code: InvalidRequest, Message: "invalid request"},
		}
	}

	cacheKey := idempotencyKey(ctx, req)
	if cacheKey != "" {
		if cached, ok := r.responses.get(cacheKey); ok {
			cached.ID = req.ID
			return &cached
		}
	}

	r.mu.RLock()
	handler, exists := r.methods[req.Method]
	r.mu.RUnlock()

	if !exists {
		return &RPCResponse{
			ID:      req.ID,
			JSONRPC: "2.0",
			Error: &RPCError{
				Code:    MethodNotFound,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}

	result, err := handler(ctx, req.Params)
	if err != nil {
		var rpcErr *RPCError
		if !errors.As(err, &rpcErr) {
			rpcErr = &RPCError{Code: InternalError, Message: err.Error()}
		}
		return &RPCResponse{ID: req.ID, JSONRPC: "2.0", Error: rpcErr}
	}

	response := &RPCResponse{ID: req.ID, JSONRPC: "2.0", Result: result}
	if cacheKey != "" {
		r.responses.put(cacheKey, *response)
	}
	return response
}

// HasMethod checks if a method is registered
func (r *RPCRouter) HasMethod(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.methods[name]
	return exists
}

// GetMethods returns all registered method names, sorted
func (r *RPCRouter) GetMethods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]string, 0, len(r.methods))
	for name := range r.methods {
		methods = append(methods, name)
	}
	sort.Strings(methods)
	return methods
}

// idempotencyKey scopes req.IdempotencyKey to the calling client, the method
// and a digest of the params. encoding/json writes map keys in sorted order,
// so equal params always hash the same. Params that cannot be encoded are
// never cached.
func idempotencyKey(ctx context.Context, req *RPCRequest) string {
	if req.IdempotencyKey == "" {
		return ""
	}
	encoded, err := json.Marshal(req.Params)
	if err != nil {
		return ""
	}
	digest := sha256.Sum256(encoded)
	return fmt.Sprintf("%s\x00%s\x00%s\x00%s",
		callerFromContext(ctx).clientID, req.Method, req.IdempotencyKey, hex.EncodeToString(digest[:]))
}

type cachedRPCResponse struct {
	response  RPCResponse
	expiresAt time.Time
}

type responseCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cachedRPCResponse
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedRPCResponse),
	}
}

func (c *responseCache) get(key string) (RPCResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return RPCResponse{}, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return RPCResponse{}, false
	}
	return entry.response, true
}

// put stores a successful response and evicts expired entries.
func (c *responseCache) put(key string, response RPCResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cachedRPCResponse{response: response, expiresAt: now.Add(c.ttl)}
}

func (c *responseCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
