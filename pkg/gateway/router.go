package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/harun/agentcore/internal/observability"
)

// RequestHandler handles one RPC method. Returning an *RPCError keeps its code.
type RequestHandler func(ctx context.Context, params map[string]any) (any, error)

const replayTTL = 5 * time.Minute

// RPCRouter dispatches JSON-RPC requests to registered handlers. Requests that
// carry an idempotency key get the first response replayed for replayTTL, so
// a client retrying agent.send does not post the same message twice.
type RPCRouter struct {
	mu      sync.RWMutex
	methods map[string]RequestHandler
	replay  *replayCache
}

// NewRPCRouter creates an empty router.
func NewRPCRouter() *RPCRouter {
	return &RPCRouter{
		methods: make(map[string]RequestHandler),
		replay:  newReplayCache(replayTTL),
	}
}

// RegisterMethod registers an RPC method handler, replacing any previous one.
func (r *RPCRouter) RegisterMethod(name string, handler RequestHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	r.mu.Lock()
	r.methods[name] = handler
	r.mu.Unlock()
	return nil
}

// UnregisterMethod removes an RPC method handler.
func (r *RPCRouter) UnregisterMethod(name string) {
	r.mu.Lock()
	delete(r.methods, name)
	r.mu.Unlock()
}

// HasMethod checks if a method is registered.
func (r *RPCRouter) HasMethod(name string) bool {
	_, ok := r.handler(name)
	return ok
}

// GetMethods returns the registered method names in sorted order.
func (r *RPCRouter) GetMethods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *RPCRouter) handler(name string) (RequestHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.methods[name]
	return h, ok
}

// ParseRequest decodes a JSON-RPC request. Decoding failures are returned as
// *RPCError.
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
	}
	if req.JSONRPC == "" {
		req.JSONRPC = "2.0"
	}
	return &req, nil
}

// RouteRequest runs the handler registered for req.Method. A panicking
// handler yields an InternalError response.
func (r *RPCRouter) RouteRequest(ctx context.Context, req *RPCRequest) *RPCResponse {
	if req == nil {
		return errorResponse("", InvalidRequest, "invalid request")
	}
	start := time.Now()

	key := ""
	if req.IdempotencyKey != "" {
		key = req.Method + ":" + req.IdempotencyKey
		if cached, ok := r.replay.get(key); ok {
			cached.ID = req.ID
			observability.RecordRPCRequest(req.Method, "replayed", time.Since(start))
			return &cached
		}
	}

	handler, ok := r.handler(req.Method)
	if !ok {
		observability.RecordRPCRequest("unknown", strconv.Itoa(MethodNotFound), time.Since(start))
		return errorResponse(req.ID, MethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}

	params := req.Params
	if params == nil {
		params = map[string]any{}
	}

	resp := &RPCResponse{ID: req.ID, JSONRPC: "2.0"}
	result, err := invoke(ctx, handler, params)
	if err != nil {
		var rpcErr *RPCError
		if !errors.As(err, &rpcErr) {
			rpcErr = &RPCError{Code: InternalError, Message: err.Error()}
		}
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}

	outcome := "ok"
	if resp.Error != nil {
		outcome = strconv.Itoa(resp.Error.Code)
	}
	observability.RecordRPCRequest(req.Method, outcome, time.Since(start))

	if key != "" {
		r.replay.put(key, *resp)
	}
	return resp
}

func invoke(ctx context.Context, handler RequestHandler, params map[string]any) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return handler(ctx, params)
}

func errorResponse(id string, code int, message string) *RPCResponse {
	return &RPCResponse{
		ID:      id,
		JSONRPC: "2.0",
		Error:   &RPCError{Code: code, Message: message},
	}
}

// replayCache keeps responses of idempotent requests until they expire.
type replayCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]replayEntry
}

type replayEntry struct {
	response  RPCResponse
	expiresAt time.Time
}

func newReplayCache(ttl time.Duration) *replayCache {
	return &replayCache{ttl: ttl, entries: make(map[string]replayEntry)}
}

func (c *replayCache) get(key string) (RPCResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return RPCResponse{}, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return RPCResponse{}, false
	}
	return entry.response.clone(), true
}

// put stores resp and sweeps expired entries.
func (c *replayCache) put(key string, resp RPCResponse) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = replayEntry{response: resp.clone(), expiresAt: now.Add(c.ttl)}
}

func (r RPCResponse) clone() RPCResponse {
	if r.Error != nil {
		errCopy := *r.Error
		r.Error = &errCopy
	}
	return r
}

type ctxKey int

const clientIDKey ctxKey = iota

func withClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey, clientID)
}

// clientIDFromContext returns the websocket client that issued the request,
// or "" for plain HTTP calls.
func clientIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey).(string)
	return id
}
