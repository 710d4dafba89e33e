package toolexecutor

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/harun/agentcore/internal/observability"
	"github.com/harun/agentcore/internal/tracing"
	"github.com/harun/agentcore/pkg/events"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultMaxOutputBytes = 10 * 1024
)

// Options configures an Executor.
type Options struct {
	AgentID        string
	WorkingDir     string
	Timeout        time.Duration
	MaxOutputBytes int
	Policy         *ToolPolicy
	Logger         *zerolog.Logger
}

// Executor runs tool invocations against a Registry.
type Executor struct {
	registry *Registry
	opts     Options
	logger   zerolog.Logger
}

// NewExecutor creates an executor over registry.
func NewExecutor(registry *Registry, opts Options) *Executor {
	if registry == nil {
		registry = NewRegistry()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = defaultMaxOutputBytes
	}
	base := log.Logger
	if opts.Logger != nil {
		base = *opts.Logger
	}
	return &Executor{
		registry: registry,
		opts:     opts,
		logger:   base.With().Str("component", "toolexecutor").Str("agent_id", opts.AgentID).Logger(),
	}
}

// Registry returns the registry backing the executor.
func (e *Executor) Registry() *Registry { return e.registry }

// Execute runs inv and reports the outcome as a ToolResult. Failures of any
// kind, including handler panics and timeouts, are returned in the result's
// Error field.
func (e *Executor) Execute(ctx context.Context, inv *events.ToolInvocation) events.ToolResult {
	if inv == nil {
		return events.ToolResult{Error: "tool invocation is nil"}
	}

	ctx, span := tracing.StartSpan(ctx, "tool.execute",
		attribute.String("tool.name", inv.Name),
		attribute.String("tool.invocation_id", inv.ID),
	)
	defer span.End()

	start := time.Now()
	output, err := e.execute(ctx, inv)
	duration := time.Since(start)
	observability.RecordToolExecution(inv.Name, duration, err == nil)

	result := events.ToolResult{ToolName: inv.Name, InvocationID: inv.ID}
	logger := tracing.LoggerFromContext(ctx, e.logger)
	if err != nil {
		tracing.FailSpan(span, err)
		result.Error = err.Error()
		logger.Error().Err(err).Str("tool", inv.Name).Str("invocation_id", inv.ID).Dur("duration", duration).Msg("Tool execution failed")
		observability.RecordToolAudit(ctx, e.opts.AgentID, inv.Name, inv.ID, "failed", map[string]any{
			"duration_ms": duration.Milliseconds(),
			"error":       result.Error,
		})
		return result
	}

	result.Result = output
	logger.Debug().Str("tool", inv.Name).Str("invocation_id", inv.ID).Dur("duration", duration).Msg("Tool execution completed")
	observability.RecordToolAudit(ctx, e.opts.AgentID, inv.Name, inv.ID, "completed", map[string]any{
		"duration_ms": duration.Milliseconds(),
	})
	return result
}

func (e *Executor) execute(ctx context.Context, inv *events.ToolInvocation) (any, error) {
	if !e.opts.Policy.IsToolAllowed(inv.Name) {
		return nil, fmt.Errorf("tool '%s' is not allowed by agent policy", inv.Name)
	}

	tool, schema := e.registry.lookup(inv.Name)
	if tool == nil {
		return nil, fmt.Errorf("tool not found: %s", inv.Name)
	}

	params := inv.ArgumentsMap()
	if err := validateParameters(schema, params); err != nil {
		return nil, fmt.Errorf("parameter validation failed: %w", err)
	}

	timeout := e.opts.Timeout
	if requested := timeoutArgument(params["timeout_seconds"]); requested > 0 {
		timeout = requested
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	timeoutCtx = ContextWithExecContext(timeoutCtx, &ExecutionContext{
		AgentID:      e.opts.AgentID,
		InvocationID: inv.ID,
		WorkingDir:   e.opts.WorkingDir,
		Timeout:      timeout,
	})

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error().Str("tool", inv.Name).Bytes("stack", debug.Stack()).Msg("Tool handler panicked")
				done <- outcome{err: fmt.Errorf("tool %s panicked: %v", inv.Name, r)}
			}
		}()
		value, err := tool.Handler(timeoutCtx, params)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, out.err
		}
		return e.truncateOutput(out.value), nil
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return nil, fmt.Errorf("tool execution cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("tool execution timeout after %v", timeout)
	}
}

// timeoutArgument reads a per-call timeout_seconds argument. Parsed XML
// yields int, decoded JSON yields float64.
func timeoutArgument(v any) time.Duration {
	switch n := v.(type) {
	case int:
		if n > 0 {
			return time.Duration(n) * time.Second
		}
	case int64:
		if n > 0 {
			return time.Duration(n) * time.Second
		}
	case float64:
		if n > 0 {
			return time.Duration(n * float64(time.Second))
		}
	}
	return 0
}

// truncateOutput caps string output, and the string fields of map output,
// at MaxOutputBytes.
func (e *Executor) truncateOutput(output any) any {
	switch v := output.(type) {
	case string:
		return e.truncateString(v)
	case map[string]any:
		for k, field := range v {
			if s, ok := field.(string); ok {
				v[k] = e.truncateString(s)
			}
		}
		return v
	}
	return output
}

func (e *Executor) truncateString(s string) string {
	if len(s) <= e.opts.MaxOutputBytes {
		return s
	}
	e.logger.Warn().Int("original", len(s)).Int("truncated", e.opts.MaxOutputBytes).Msg("Output truncated")
	return s[:e.opts.MaxOutputBytes] + "\n... [output truncated]"
}
