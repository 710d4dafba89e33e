package observability

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AuditEvent is one entry of the tool audit trail.
type AuditEvent struct {
	Type         string         `json:"event_type"`
	Timestamp    time.Time      `json:"timestamp"`
	AgentID      string         `json:"agent_id,omitempty"`
	Action       string         `json:"action"` // e.g. "execute:run_bash", "approval"
	Status       string         `json:"status"` // "success", "failure", "approved", "denied"
	InvocationID string         `json:"invocation_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	TraceID      string         `json:"trace_id,omitempty"`
}

// AuditLogger writes audit events as JSON lines.
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   *os.File
}

var (
	auditMu   sync.RWMutex
	auditInst *AuditLogger
)

// GetAuditLogger returns the process audit logger. It writes to stderr until
// InitAuditLogger or SetAuditLogger replaces it.
func GetAuditLogger() *AuditLogger {
	auditMu.RLock()
	inst := auditInst
	auditMu.RUnlock()
	if inst != nil {
		return inst
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditInst == nil {
		auditInst = NewAuditLogger(zerolog.New(os.Stderr).With().Timestamp().Logger())
	}
	return auditInst
}

// NewAuditLogger wraps an existing logger.
func NewAuditLogger(logger zerolog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// SetAuditLogger replaces the process audit logger.
func SetAuditLogger(a *AuditLogger) {
	auditMu.Lock()
	defer auditMu.Unlock()
	auditInst = a
}

// InitAuditLogger appends audit events to the file at path.
func InitAuditLogger(path string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	SetAuditLogger(&AuditLogger{
		logger: zerolog.New(file).With().Timestamp().Logger(),
		file:   file,
	})
	return nil
}

// Record writes event and mirrors it as an event on the active span.
func (a *AuditLogger) Record(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		event.TraceID = span.SpanContext().TraceID().String()
		span.AddEvent(event.Action, trace.WithAttributes(
			attribute.String("audit.type", event.Type),
			attribute.String("audit.status", event.Status),
			attribute.String("audit.agent_id", event.AgentID),
			attribute.String("audit.invocation_id", event.InvocationID),
		))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Str("type", event.Type).
		Str("agent_id", event.AgentID).
		Str("action", event.Action).
		Str("status", event.Status).
		Str("invocation_id", event.InvocationID).
		Str("trace_id", event.TraceID)

	if event.Metadata != nil {
		entry.Interface("metadata", event.Metadata)
	}

	entry.Msg("")
}

// Close closes the underlying audit file, if any.
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

// RecordToolAudit writes a tool execution entry to the global audit log.
func RecordToolAudit(ctx context.Context, agentID, toolName, invocationID, status string, metadata map[string]any) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:         "tool",
		AgentID:      agentID,
		Action:       "execute:" + toolName,
		Status:       status,
		InvocationID: invocationID,
		Metadata:     metadata,
	})
}

// RecordApprovalAudit writes an approval decision to the global audit log.
func RecordApprovalAudit(ctx context.Context, agentID, invocationID string, approved bool, reason string) {
	status := "denied"
	if approved {
		status = "approved"
	}
	var metadata map[string]any
	if reason != "" {
		metadata = map[string]any{"reason": reason}
	}
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:         "approval",
		AgentID:      agentID,
		Action:       "approval",
		Status:       status,
		InvocationID: invocationID,
		Metadata:     metadata,
	})
}
