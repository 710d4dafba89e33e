package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// PropagateToLogger adds tracing context to a zerolog logger
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	lc := logger.With()
	if tc.TraceID != "" {
		lc = lc.Str("trace_id", tc.TraceID)
	}
	if tc.RunID != "" {
		lc = lc.Str("run_id", tc.RunID)
	}
	if tc.AgentID != "" {
		lc = lc.Str("agent_id", tc.AgentID)
	}
	if tc.TurnID != "" {
		lc = lc.Str("turn_id", tc.TurnID)
	}
	return lc.Logger()
}

// LoggerFromContext creates a logger with tracing context from the given context
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	return PropagateToLogger(ctx, baseLogger)
}

// MergeContext copies tracing values from source that target does not have yet.
func MergeContext(target, source context.Context) context.Context {
	tc := FromContext(source)

	if tc.TraceID != "" && GetTraceID(target) == "" {
		target = WithTraceID(target, tc.TraceID)
	}
	if tc.RunID != "" && GetRunID(target) == "" {
		target = WithRunID(target, tc.RunID)
	}
	if tc.AgentID != "" && GetAgentID(target) == "" {
		target = WithAgentID(target, tc.AgentID)
	}
	if tc.TurnID != "" && GetTurnID(target) == "" {
		target = WithTurnID(target, tc.TurnID)
	}

	return target
}

// Detach returns a context that keeps the tracing values and the active span
// of ctx but is not cancelled with it.
func Detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
