package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRPCRouter_RegisterMethod(t *testing.T) {
	router := NewRPCRouter()
	handler := func(ctx context.Context, params map[string]any) (any, error) { return "result", nil }

	require.NoError(t, router.RegisterMethod("test.method", handler))
	assert.True(t, router.HasMethod("test.method"))

	err := router.RegisterMethod("test.nil", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler cannot be nil")

	router.UnregisterMethod("test.method")
	router.UnregisterMethod("non.existent")
	assert.False(t, router.HasMethod("test.method"))
}

func TestRPCRouter_ParseRequest(t *testing.T) {
	router := NewRPCRouter()

	req, err := router.ParseRequest([]byte(`{"id":"1","method":"agent.status","params":{"agent_id":"coder"}}`))
	require.NoError(t, err)
	assert.Equal(t, "1", req.ID)
	assert.Equal(t, "agent.status", req.Method)
	assert.Equal(t, "coder", req.Params["agent_id"])
	assert.Equal(t, "2.0", req.JSONRPC)

	tests := []struct {
		name    string
		data    string
		code    int
		message string
	}{
		{name: "malformed", data: `{invalid json}`, code: ParseError, message: "Parse error"},
		{name: "missing id", data: `{"method":"m"}`, code: InvalidRequest, message: "missing id"},
		{name: "missing method", data: `{"id":"1"}`, code: InvalidRequest, message: "missing method"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := router.ParseRequest([]byte(tt.data))
			var rpcErr *RPCError
			require.ErrorAs(t, err, &rpcErr)
			assert.Equal(t, tt.code, rpcErr.Code)
			assert.Contains(t, rpcErr.Message, tt.message)
		})
	}
}

func TestRPCRouter_RouteRequest(t *testing.T) {
	router := NewRPCRouter()
	ctx := context.Background()

	require.NoError(t, router.RegisterMethod("test.echo", func(ctx context.Context, params map[string]any) (any, error) {
		return map[string]any{"echo": params["input"]}, nil
	}))
	require.NoError(t, router.RegisterMethod("test.error", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, errors.New("handler error")
	}))
	require.NoError(t, router.RegisterMethod("test.rpc_error", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, &RPCError{Code: InvalidParams, Message: "agent_id is required"}
	}))

	resp := router.RouteRequest(ctx, &RPCRequest{ID: "1", Method: "test.echo", Params: map[string]any{"input": "hello"}})
	assert.Equal(t, "1", resp.ID)
	assert.Nil(t, resp.Error)
	assert.Equal(t, "hello", resp.Result.(map[string]any)["echo"])

	resp = router.RouteRequest(ctx, &RPCRequest{ID: "2", Method: "unknown.method"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, MethodNotFound, resp.Error.Code)

	resp = router.RouteRequest(ctx, &RPCRequest{ID: "3", Method: "test.error"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, InternalError, resp.Error.Code)
	assert.Equal(t, "handler error", resp.Error.Message)

	resp = router.RouteRequest(ctx, &RPCRequest{ID: "4", Method: "test.rpc_error"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidParams, resp.Error.Code)

	resp = router.RouteRequest(ctx, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidRequest, resp.Error.Code)
}

func TestRPCRouter_IdempotencyReplaysResponse(t *testing.T) {
	router := NewRPCRouter()
	calls := 0
	require.NoError(t, router.RegisterMethod("agent.send", func(ctx context.Context, params map[string]any) (any, error) {
		calls++
		return calls, nil
	}))

	first := router.RouteRequest(context.Background(), &RPCRequest{ID: "a", Method: "agent.send", IdempotencyKey: "k1"})
	second := router.RouteRequest(context.Background(), &RPCRequest{ID: "b", Method: "agent.send", IdempotencyKey: "k1"})
	third := router.RouteRequest(context.Background(), &RPCRequest{ID: "c", Method: "agent.send", IdempotencyKey: "k2"})

	assert.Equal(t, 2, calls)
	assert.Equal(t, first.Result, second.Result)
	assert.Equal(t, "b", second.ID)
	assert.Equal(t, 2, third.Result)
}

func TestRPCRouter_GetMethods(t *testing.T) {
	router := NewRPCRouter()
	assert.Empty(t, router.GetMethods())

	handler := func(ctx context.Context, params map[string]any) (any, error) { return nil, nil }
	for _, name := range []string{"b.method", "a.method", "c.method"} {
		require.NoError(t, router.RegisterMethod(name, handler))
	}
	assert.Equal(t, []string{"a.method", "b.method", "c.method"}, router.GetMethods())
}

func TestRPCRouter_RecoversHandlerPanic(t *testing.T) {
	router := NewRPCRouter()
	require.NoError(t, router.RegisterMethod("test.panic", func(ctx context.Context, params map[string]any) (any, error) {
		panic("boom")
	}))

	resp := router.RouteRequest(context.Background(), &RPCRequest{ID: "1", Method: "test.panic"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, InternalError, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "boom")
}

func TestReplayCache(t *testing.T) {
	cache := newReplayCache(time.Minute)
	cache.put("agent.send:k", RPCResponse{ID: "1", Result: "ok", Error: &RPCError{Code: 1}})

	got, ok := cache.get("agent.send:k")
	require.True(t, ok)
	got.Error.Code = 2

	again, ok := cache.get("agent.send:k")
	require.True(t, ok)
	assert.Equal(t, 1, again.Error.Code, "cached responses are copied")

	cache.entries["agent.send:k"] = replayEntry{response: again, expiresAt: time.Now().Add(-time.Second)}
	_, ok = cache.get("agent.send:k")
	assert.False(t, ok)
	assert.Empty(t, cache.entries)
}
