package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// RunIDKey identifies one started agent worker
	RunIDKey ContextKey = "run_id"
	// AgentIDKey is the context key for agent ID
	AgentIDKey ContextKey = "agent_id"
	// TurnIDKey identifies one user or inter-agent turn
	TurnIDKey ContextKey = "turn_id"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID string
	RunID   string
	AgentID string
	TurnID  string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewRunID generates a new run ID
func NewRunID() string {
	return uuid.New().String()
}

// NewTurnID generates a new turn ID
func NewTurnID() string {
	return uuid.New().String()
}

// WithTraceID returns a copy of ctx carrying traceID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRunID returns a copy of ctx carrying runID.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithAgentID returns a copy of ctx carrying agentID.
func WithAgentID(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, AgentIDKey, agentID)
}

// WithTurnID returns a copy of ctx carrying turnID.
func WithTurnID(ctx context.Context, turnID string) context.Context {
	return context.WithValue(ctx, TurnIDKey, turnID)
}

// GetTraceID returns the trace ID in ctx, or "".
func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

// GetRunID returns the run ID in ctx, or "".
func GetRunID(ctx context.Context) string {
	return stringValue(ctx, RunIDKey)
}

// GetAgentID returns the agent ID in ctx, or "".
func GetAgentID(ctx context.Context) string {
	return stringValue(ctx, AgentIDKey)
}

// GetTurnID returns the turn ID in ctx, or "".
func GetTurnID(ctx context.Context) string {
	return stringValue(ctx, TurnIDKey)
}

func stringValue(ctx context.Context, key ContextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID: GetTraceID(ctx),
		RunID:   GetRunID(ctx),
		AgentID: GetAgentID(ctx),
		TurnID:  GetTurnID(ctx),
	}
}

// NewContext stores the non-empty fields of tc in ctx.
func NewContext(ctx context.Context, tc *TraceContext) context.Context {
	if tc.TraceID != "" {
		ctx = WithTraceID(ctx, tc.TraceID)
	}
	if tc.RunID != "" {
		ctx = WithRunID(ctx, tc.RunID)
	}
	if tc.AgentID != "" {
		ctx = WithAgentID(ctx, tc.AgentID)
	}
	if tc.TurnID != "" {
		ctx = WithTurnID(ctx, tc.TurnID)
	}
	return ctx
}

// NewAgentRunContext tags ctx with a fresh run ID and the agent ID.
// A trace ID is generated when ctx carries none.
func NewAgentRunContext(ctx context.Context, agentID string) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	ctx = WithRunID(ctx, NewRunID())
	return WithAgentID(ctx, agentID)
}

// NewTurnContext tags ctx with a fresh turn ID.
func NewTurnContext(ctx context.Context) context.Context {
	return WithTurnID(ctx, NewTurnID())
}
