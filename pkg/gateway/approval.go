package gateway

import (
	"context"
	"errors"

	"github.com/harun/agentcore/pkg/agent"
)

// registerApprovalMethods exposes manual tool approval. Approval requests
// themselves reach clients as awaiting_tool_approval status events.
func (s *Server) registerApprovalMethods() {
	_ = s.router.RegisterMethod("agent.pending", s.handleAgentPending)
	_ = s.router.RegisterMethod("agent.approve", s.handleAgentApprove)
	_ = s.router.RegisterMethod("agent.deny", s.handleAgentDeny)
}

func (s *Server) handleAgentPending(_ context.Context, params map[string]any) (any, error) {
	a, err := s.lookupAgent(params)
	if err != nil {
		return nil, err
	}
	return map[string]any{"agent_id": a.ID(), "invocations": a.PendingApprovals()}, nil
}

func (s *Server) handleAgentApprove(ctx context.Context, params map[string]any) (any, error) {
	return s.decide(ctx, params, true)
}

func (s *Server) handleAgentDeny(ctx context.Context, params map[string]any) (any, error) {
	return s.decide(ctx, params, false)
}

func (s *Server) decide(ctx context.Context, params map[string]any, approved bool) (any, error) {
	a, err := s.lookupAgent(params)
	if err != nil {
		return nil, err
	}
	id, err := stringParam(params, "invocation_id", true)
	if err != nil {
		return nil, err
	}

	if approved {
		err = a.Approve(id)
	} else {
		reason, perr := stringParam(params, "reason", false)
		if perr != nil {
			return nil, perr
		}
		err = a.Deny(id, reason)
	}
	if errors.Is(err, agent.ErrUnknownInvocation) {
		return nil, invalidParams("no pending invocation %q", id)
	}
	if err != nil {
		return nil, postError(err)
	}

	actor := clientIDFromContext(ctx)
	if actor == "" {
		actor = "http"
	}
	s.logger.Info().
		Str("agent_id", a.ID()).
		Str("invocation_id", id).
		Bool("approved", approved).
		Str("actor", actor).
		Msg("Tool invocation decided")

	return map[string]any{"invocation_id": id, "approved": approved}, nil
}
