package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestPropagateToLogger(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-123")
	ctx = WithRunID(ctx, "run-456")
	ctx = WithAgentID(ctx, "agent-789")
	ctx = WithTurnID(ctx, "turn-000")

	var buf bytes.Buffer
	logger := PropagateToLogger(ctx, zerolog.New(&buf))
	logger.Info().Msg("test message")

	output := buf.String()
	for _, want := range []string{"trace-123", "run-456", "agent-789", "turn-000"} {
		if !strings.Contains(output, want) {
			t.Errorf("%s not in log output: %s", want, output)
		}
	}
}

func TestLoggerFromContext(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-xyz")

	var buf bytes.Buffer
	logger := LoggerFromContext(ctx, zerolog.New(&buf))
	logger.Info().Msg("test")

	if !strings.Contains(buf.String(), "trace-xyz") {
		t.Error("Trace ID not in log output")
	}
	if strings.Contains(buf.String(), "run_id") {
		t.Error("Empty run ID should not be logged")
	}
}

func TestMergeContext(t *testing.T) {
	source := WithRunID(WithTraceID(context.Background(), "trace-source"), "run-source")

	merged := MergeContext(context.Background(), source)
	if GetTraceID(merged) != "trace-source" {
		t.Error("Trace ID not merged")
	}
	if GetRunID(merged) != "run-source" {
		t.Error("Run ID not merged")
	}
}

func TestMergeContextNoOverwrite(t *testing.T) {
	source := WithTraceID(context.Background(), "trace-source")
	target := WithTraceID(context.Background(), "trace-target")

	if GetTraceID(MergeContext(target, source)) != "trace-target" {
		t.Error("Trace ID was overwritten")
	}
}

func TestDetach(t *testing.T) {
	ctx, cancel := context.WithCancel(WithAgentID(context.Background(), "agent"))
	detached := Detach(ctx)
	cancel()

	if detached.Err() != nil {
		t.Error("Detached context should not be cancelled")
	}
	if GetAgentID(detached) != "agent" {
		t.Error("Detached context lost its values")
	}
}
