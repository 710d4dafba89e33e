package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harun/agentcore/internal/tracing"
	"github.com/harun/agentcore/pkg/agent"
	"github.com/harun/agentcore/pkg/events"
	"github.com/harun/agentcore/pkg/status"
)

// AgentHandle is the part of a running agent exposed over the gateway.
type AgentHandle interface {
	ID() string
	Status() status.AgentStatus
	WaitForStatus(ctx context.Context, want ...status.AgentStatus) (status.AgentStatus, error)
	PostUserMessage(content string, metadata map[string]string) error
	PostInterAgentMessage(msg events.InterAgentMessage) error
	Approve(invocationID string) error
	Deny(invocationID, reason string) error
	PendingApprovals() []*events.ToolInvocation
	History() []agent.Message
	EventLog() []agent.EventRecord
	QueueStats() map[string]int
}

var _ AgentHandle = (*agent.Agent)(nil)

// AgentDirectory resolves agent ids to handles.
type AgentDirectory interface {
	Lookup(agentID string) (AgentHandle, bool)
	List() []AgentHandle
}

// StaticDirectory is a concurrency-safe AgentDirectory backed by a map.
type StaticDirectory struct {
	mu     sync.RWMutex
	agents map[string]AgentHandle
}

// NewStaticDirectory creates a directory holding the given agents.
func NewStaticDirectory(agents ...AgentHandle) *StaticDirectory {
	d := &StaticDirectory{agents: make(map[string]AgentHandle, len(agents))}
	for _, a := range agents {
		d.agents[a.ID()] = a
	}
	return d
}

// Add registers a, replacing any agent with the same id.
func (d *StaticDirectory) Add(a AgentHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.agents[a.ID()] = a
}

// Lookup returns the agent registered under agentID.
func (d *StaticDirectory) Lookup(agentID string) (AgentHandle, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.agents[agentID]
	return a, ok
}

// List returns the agents ordered by id.
func (d *StaticDirectory) List() []AgentHandle {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]AgentHandle, 0, len(d.agents))
	for _, a := range d.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// registerBuiltinMethods registers all built-in RPC methods
func (s *Server) registerBuiltinMethods() {
	_ = s.router.RegisterMethod("agent.list", s.handleAgentList)
	_ = s.router.RegisterMethod("agent.status", s.handleAgentStatus)
	_ = s.router.RegisterMethod("agent.wait", s.handleAgentWait)
	_ = s.router.RegisterMethod("agent.send", s.handleAgentSend)
	_ = s.router.RegisterMethod("agent.message", s.handleAgentMessage)
	_ = s.router.RegisterMethod("agent.history", s.handleAgentHistory)
	_ = s.router.RegisterMethod("agent.events", s.handleAgentEvents)
	_ = s.router.RegisterMethod("gateway.clients", s.handleClients)
	_ = s.router.RegisterMethod("subscribe", s.handleSubscribe)
	_ = s.router.RegisterMethod("unsubscribe", s.handleUnsubscribe)
	s.registerApprovalMethods()
}

func invalidParams(format string, args ...any) *RPCError {
	return &RPCError{Code: InvalidParams, Message: fmt.Sprintf(format, args...)}
}

func stringParam(params map[string]any, key string, required bool) (string, error) {
	raw, exists := params[key]
	if !exists || raw == nil {
		if required {
			return "", invalidParams("%s parameter is required", key)
		}
		return "", nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", invalidParams("%s parameter must be a string", key)
	}
	if required && strings.TrimSpace(value) == "" {
		return "", invalidParams("%s parameter is required", key)
	}
	return value, nil
}

func stringsParam(params map[string]any, key string) ([]string, error) {
	raw, exists := params[key]
	if !exists || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, invalidParams("%s must contain strings", key)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, invalidParams("%s parameter must be a string or list of strings", key)
	}
}

// lookupAgent resolves the agent_id parameter.
func (s *Server) lookupAgent(params map[string]any) (AgentHandle, error) {
	id, err := stringParam(params, "agent_id", true)
	if err != nil {
		return nil, err
	}
	a, ok := s.agents.Lookup(id)
	if !ok {
		return nil, &RPCError{Code: AgentNotFound, Message: fmt.Sprintf("agent %q not found", id)}
	}
	return a, nil
}

// postError maps agent submission errors to RPC errors.
func postError(err error) error {
	if err == nil {
		return nil
	}
	return &RPCError{Code: InternalError, Message: err.Error()}
}

func agentSummary(a AgentHandle) map[string]any {
	return map[string]any{
		"agent_id":          a.ID(),
		"status":            a.Status().String(),
		"pending_approvals": len(a.PendingApprovals()),
		"queues":            a.QueueStats(),
	}
}

func (s *Server) handleAgentList(_ context.Context, _ map[string]any) (any, error) {
	list := s.agents.List()
	out := make([]map[string]any, 0, len(list))
	for _, a := range list {
		out = append(out, agentSummary(a))
	}
	return map[string]any{"agents": out}, nil
}

func (s *Server) handleAgentStatus(_ context.Context, params map[string]any) (any, error) {
	a, err := s.lookupAgent(params)
	if err != nil {
		return nil, err
	}
	return agentSummary(a), nil
}

// handleAgentWait blocks until the agent reaches one of the requested
// statuses or timeout_ms elapses.
func (s *Server) handleAgentWait(ctx context.Context, params map[string]any) (any, error) {
	a, err := s.lookupAgent(params)
	if err != nil {
		return nil, err
	}
	names, err := stringsParam(params, "status")
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		names = []string{status.Idle.String()}
	}
	want := make([]status.AgentStatus, 0, len(names))
	for _, name := range names {
		st, ok := status.Parse(name)
		if !ok {
			return nil, invalidParams("unknown status %q", name)
		}
		want = append(want, st)
	}

	timeout := 30 * time.Second
	if ms, ok := params["timeout_ms"].(float64); ok && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	got, err := a.WaitForStatus(waitCtx, want...)
	if err != nil {
		return map[string]any{
			"agent_id": a.ID(),
			"status":   a.Status().String(),
			"timeout":  true,
		}, nil
	}
	return map[string]any{"agent_id": a.ID(), "status": got.String(), "timeout": false}, nil
}

func (s *Server) handleAgentSend(ctx context.Context, params map[string]any) (any, error) {
	a, err := s.lookupAgent(params)
	if err != nil {
		return nil, err
	}
	content, err := stringParam(params, "content", true)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{}
	if raw, ok := params["metadata"].(map[string]any); ok {
		for k, v := range raw {
			metadata[k] = fmt.Sprint(v)
		}
	}
	if clientID := clientIDFromContext(ctx); clientID != "" {
		metadata["client_id"] = clientID
	}
	if traceID := tracing.GetTraceID(ctx); traceID != "" {
		metadata["trace_id"] = traceID
	}

	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Info().
		Str("agent_id", a.ID()).
		Int("content_len", len(content)).
		Msg("Gateway forwarding user message")

	if err := a.PostUserMessage(content, metadata); err != nil {
		return nil, postError(err)
	}
	return map[string]any{"accepted": true, "agent_id": a.ID()}, nil
}

func (s *Server) handleAgentMessage(_ context.Context, params map[string]any) (any, error) {
	a, err := s.lookupAgent(params)
	if err != nil {
		return nil, err
	}
	sender, err := stringParam(params, "sender_id", true)
	if err != nil {
		return nil, err
	}
	content, err := stringParam(params, "content", true)
	if err != nil {
		return nil, err
	}
	messageType, err := stringParam(params, "message_type", false)
	if err != nil {
		return nil, err
	}
	if messageType == "" {
		messageType = "message"
	}

	msg := events.InterAgentMessage{
		SenderID:    sender,
		RecipientID: a.ID(),
		MessageType: messageType,
		Content:     content,
	}
	if err := a.PostInterAgentMessage(msg); err != nil {
		return nil, postError(err)
	}
	return map[string]any{"accepted": true, "agent_id": a.ID()}, nil
}

func (s *Server) handleAgentHistory(_ context.Context, params map[string]any) (any, error) {
	a, err := s.lookupAgent(params)
	if err != nil {
		return nil, err
	}
	history := a.History()
	if limit, ok := params["limit"].(float64); ok && limit > 0 && int(limit) < len(history) {
		history = history[len(history)-int(limit):]
	}
	return map[string]any{"agent_id": a.ID(), "messages": history}, nil
}

func (s *Server) handleAgentEvents(_ context.Context, params map[string]any) (any, error) {
	a, err := s.lookupAgent(params)
	if err != nil {
		return nil, err
	}
	return map[string]any{"agent_id": a.ID(), "events": a.EventLog()}, nil
}

func (s *Server) handleClients(_ context.Context, _ map[string]any) (any, error) {
	return map[string]any{"clients": s.clients.Infos()}, nil
}

// subscriptionTarget resolves the calling websocket client and the agents
// named in params.
func (s *Server) subscriptionTarget(ctx context.Context, params map[string]any) (*Client, []string, error) {
	client, ok := s.clients.Get(clientIDFromContext(ctx))
	if !ok {
		return nil, nil, &RPCError{Code: InvalidRequest, Message: "subscriptions require a websocket connection"}
	}
	ids, err := stringsParam(params, "agents")
	if err != nil {
		return nil, nil, err
	}
	for _, id := range ids {
		if _, ok := s.agents.Lookup(id); !ok {
			return nil, nil, &RPCError{Code: AgentNotFound, Message: fmt.Sprintf("agent %q not found", id)}
		}
	}
	return client, ids, nil
}

func (s *Server) handleSubscribe(ctx context.Context, params map[string]any) (any, error) {
	client, ids, err := s.subscriptionTarget(ctx, params)
	if err != nil {
		return nil, err
	}
	client.Subscribe(ids...)
	agents := client.subscriptions()
	sort.Strings(agents)
	return map[string]any{"agents": agents}, nil
}

func (s *Server) handleUnsubscribe(ctx context.Context, params map[string]any) (any, error) {
	client, ids, err := s.subscriptionTarget(ctx, params)
	if err != nil {
		return nil, err
	}
	client.Unsubscribe(ids...)
	agents := client.subscriptions()
	sort.Strings(agents)
	return map[string]any{"agents": agents}, nil
}
