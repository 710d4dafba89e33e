package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestOpenTelemetry_ExportsSpans(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, InitOpenTelemetry(OTelConfig{ServiceName: "agentcore-test", SampleRatio: 1, Output: &out}))
	require.NoError(t, InitOpenTelemetry(OTelConfig{ServiceName: "ignored"}), "second init is a no-op")

	ctx, span := StartSpan(context.Background(), "tool.execute", attribute.String("tool", "run_bash"))
	assert.NotEmpty(t, GetTraceID(ctx))
	FailSpan(span, errors.New("exit status 1"))
	FailSpan(span, nil)
	span.End()

	require.NoError(t, ShutdownOpenTelemetry(context.Background()))
	require.NoError(t, ShutdownOpenTelemetry(context.Background()))

	assert.Contains(t, out.String(), `"Name":"tool.execute"`)
	assert.Contains(t, out.String(), "exit status 1")
	assert.Contains(t, out.String(), "agentcore-test")
}

func TestStartSpan_KeepsExistingTraceID(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-123")
	ctx, span := StartSpan(ctx, "agent.llm_stream")
	defer span.End()

	assert.Equal(t, "trace-123", GetTraceID(ctx))
}
