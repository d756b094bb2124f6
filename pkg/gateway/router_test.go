package gateway

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRPCRouter_RegisterMethod(t *testing.T) {
	router := NewRPCRouter()

	t.Run("should register method successfully", func(t *testing.T) {
		err := router.RegisterMethod("test.method", func(context.Context, map[string]interface{}) (interface{}, error) {
			return "result", nil
		})
		assert.NoError(t, err)
		assert.True(t, router.HasMethod("test.method"))
	})

	t.Run("should reject nil handler", func(t *testing.T) {
		err := router.RegisterMethod("test.nil", nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "handler cannot be nil")
	})

	t.Run("should unregister method", func(t *testing.T) {
		router.UnregisterMethod("test.method")
		assert.False(t, router.HasMethod("test.method"))
		router.UnregisterMethod("non.existent")
	})
}

func TestRPCRouter_ParseRequest(t *testing.T) {
	router := NewRPCRouter()

	t.Run("should parse valid request", func(t *testing.T) {
		req, err := router.ParseRequest([]byte(`{"id":"1","method":"tools.list","params":{"key":"value"}}`))
		require.NoError(t, err)
		assert.Equal(t, "1", req.ID)
		assert.Equal(t, "tools.list", req.Method)
		assert.Equal(t, "value", req.Params["key"])
		assert.Equal(t, "2.0", req.JSONRPC)
	})

	t.Run("should accept numeric id", func(t *testing.T) {
		req, err := router.ParseRequest([]byte(`{"jsonrpc":"2.0","id":7,"method":"tools.list"}`))
		require.NoError(t, err)
		assert.Equal(t, "7", req.ID)
	})

	tests := []struct {
		name    string
		data    string
		code    int
		message string
	}{
		{name: "malformed JSON", data: `{"id":`, code: ParseError, message: "Parse error"},
		{name: "missing id", data: `{"method":"tools.list"}`, code: InvalidRequest, message: "missing id"},
		{name: "missing method", data: `{"id":"1"}`, code: InvalidRequest, message: "missing method"},
		{name: "boolean id", data: `{"id":true,"method":"tools.list"}`, code: ParseError, message: "Parse error"},
		{name: "wrong version", data: `{"jsonrpc":"1.0","id":"1","method":"tools.list"}`, code: InvalidRequest, message: "unsupported jsonrpc version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := router.ParseRequest([]byte(tt.data))
			require.Error(t, err)
			rpcErr, ok := err.(*RPCError)
			require.True(t, ok)
			assert.Equal(t, tt.code, rpcErr.Code)
			assert.Contains(t, rpcErr.Message, tt.message)
		})
	}
}

func TestRPCRouter_RouteRequest(t *testing.T) {
	router := NewRPCRouter()
	ctx := context.Background()

	require.NoError(t, router.RegisterMethod("test.echo", func(_ context.Context, params map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"echo": params["input"]}, nil
	}))
	require.NoError(t, router.RegisterMethod("test.error", func(context.Context, map[string]interface{}) (interface{}, error) {
		return nil, fmt.Errorf("handler error")
	}))
	require.NoError(t, router.RegisterMethod("test.rpcerror", func(context.Context, map[string]interface{}) (interface{}, error) {
		return nil, &RPCError{Code: RiskViolation, Message: "denied", Data: map[string]interface{}{"code": "RISK_VIOLATION"}}
	}))

	t.Run("should route to registered handler", func(t *testing.T) {
		resp := router.RouteRequest(ctx, &RPCRequest{ID: "1", Method: "test.echo", Params: map[string]interface{}{"input": "hello"}})
		assert.Equal(t, "1", resp.ID)
		assert.Nil(t, resp.Error)
		assert.Equal(t, "hello", resp.Result.(map[string]interface{})["echo"])
	})

	t.Run("should return error for unknown method", func(t *testing.T) {
		resp := router.RouteRequest(ctx, &RPCRequest{ID: "1", Method: "unknown.method"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, MethodNotFound, resp.Error.Code)
	})

	t.Run("should map plain errors to internal error", func(t *testing.T) {
		resp := router.RouteRequest(ctx, &RPCRequest{ID: "1", Method: "test.error"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, InternalError, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "handler error")
	})

	t.Run("should pass RPC errors through", func(t *testing.T) {
		resp := router.RouteRequest(ctx, &RPCRequest{ID: "1", Method: "test.rpcerror"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, RiskViolation, resp.Error.Code)
		assert.Equal(t, "denied", resp.Error.Message)
		assert.Equal(t, "RISK_VIOLATION", resp.Error.Data.(map[string]interface{})["code"])
	})

	t.Run("should reject nil request", func(t *testing.T) {
		resp := router.RouteRequest(ctx, nil)
		require.NotNil(t, resp.Error)
		assert.Equal(t, InvalidRequest, resp.Error.Code)
	})
}

func TestRPCRouter_Idempotency(t *testing.T) {
	router := NewRPCRouter()
	calls := 0
	require.NoError(t, router.RegisterMethod("tools.execute", func(context.Context, map[string]interface{}) (interface{}, error) {
		calls++
		return calls, nil
	}))

	params := map[string]interface{}{"name": "get_weather", "args": map[string]interface{}{"city": "Paris"}}
	first := router.RouteRequest(context.Background(), &RPCRequest{ID: "a", Method: "tools.execute", Params: params, IdempotencyKey: "k1"})
	second := router.RouteRequest(context.Background(), &RPCRequest{ID: "b", Method: "tools.execute", Params: params, IdempotencyKey: "k1"})
	third := router.RouteRequest(context.Background(), &RPCRequest{ID: "c", Method: "tools.execute", Params: params, IdempotencyKey: "k2"})

	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, first.Result)
	assert.Equal(t, 1, second.Result)
	assert.Equal(t, "b", second.ID)
	assert.Equal(t, 2, third.Result)
}

func TestRPCRouter_IdempotencyScope(t *testing.T) {
	router := NewRPCRouter()
	calls := 0
	require.NoError(t, router.RegisterMethod("tools.execute", func(context.Context, map[string]interface{}) (interface{}, error) {
		calls++
		return calls, nil
	}))

	route := func(ctx context.Context, params map[string]interface{}) interface{} {
		resp := router.RouteRequest(ctx, &RPCRequest{ID: "1", Method: "tools.execute", Params: params, IdempotencyKey: "same"})
		require.Nil(t, resp.Error)
		return resp.Result
	}

	alice := withCaller(context.Background(), caller{clientID: "alice", transport: transportWebSocket})
	bob := withCaller(context.Background(), caller{clientID: "bob", transport: transportWebSocket})
	asAdmin := map[string]interface{}{"name": "delete_user", "context": map[string]interface{}{"user": map[string]interface{}{"role": "admin"}}}
	asUser := map[string]interface{}{"name": "delete_user", "context": map[string]interface{}{"user": map[string]interface{}{"role": "user"}}}

	assert.Equal(t, 1, route(alice, asAdmin))
	assert.Equal(t, 1, route(alice, asAdmin), "same caller, key and params replays")
	assert.Equal(t, 2, route(alice, asUser), "different params must not share a cached result")
	assert.Equal(t, 3, route(bob, asAdmin), "different client must not share a cached result")
	assert.Equal(t, 3, calls)
}

func TestRPCRouter_IdempotencyDoesNotCacheErrors(t *testing.T) {
	router := NewRPCRouter()
	calls := 0
	require.NoError(t, router.RegisterMethod("tools.execute", func(context.Context, map[string]interface{}) (interface{}, error) {
		calls++
		if calls == 1 {
			return nil, &RPCError{Code: ConfirmationRequired, Message: "confirm first"}
		}
		return "ran", nil
	}))

	req := func(id string) *RPCRequest {
		return &RPCRequest{ID: id, Method: "tools.execute", Params: map[string]interface{}{"name": "transfer_funds"}, IdempotencyKey: "k"}
	}

	rejected := router.RouteRequest(context.Background(), req("1"))
	require.NotNil(t, rejected.Error)
	assert.Equal(t, 0, router.responses.size())

	ran := router.RouteRequest(context.Background(), req("2"))
	require.Nil(t, ran.Error)
	assert.Equal(t, "ran", ran.Result)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, router.responses.size())
}

func TestRPCRouter_IdempotencyExpiry(t *testing.T) {
	router := NewRPCRouter()
	now := time.Now()
	router.responses.now = func() time.Time { return now }

	calls := 0
	require.NoError(t, router.RegisterMethod("tools.execute", func(context.Context, map[string]interface{}) (interface{}, error) {
		calls++
		return calls, nil
	}))
	req := &RPCRequest{ID: "1", Method: "tools.execute", IdempotencyKey: "k"}

	router.RouteRequest(context.Background(), req)
	router.RouteRequest(context.Background(), req)
	assert.Equal(t, 1, calls)

	now = now.Add(defaultIdempotencyTTL + time.Second)
	resp := router.RouteRequest(context.Background(), req)
	assert.Equal(t, 2, resp.Result)
}

func TestRPCRouter_GetMethods(t *testing.T) {
	router := NewRPCRouter()
	assert.Empty(t, router.GetMethods())

	handler := func(context.Context, map[string]interface{}) (interface{}, error) { return nil, nil }
	require.NoError(t, router.RegisterMethod("tools.list", handler))
	require.NoError(t, router.RegisterMethod("tools.execute", handler))
	require.NoError(t, router.RegisterMethod("tools.describe", handler))

	assert.Equal(t, []string{"tools.describe", "tools.execute", "tools.list"}, router.GetMethods())
}
