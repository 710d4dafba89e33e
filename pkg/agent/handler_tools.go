package agent

import (
	"context"
	"fmt"

	"github.com/harun/agentcore/internal/observability"
	"github.com/harun/agentcore/pkg/events"
	"github.com/harun/agentcore/pkg/status"
)

// handlePendingInvocation executes the invocation right away when tools
// auto-execute, or parks it until Approve or Deny is called.
func handlePendingInvocation(ctx context.Context, ac *Context, ev events.Event) error {
	e := ev.(events.PendingToolInvocation)
	inv := e.Invocation
	if inv == nil {
		return fmt.Errorf("pending tool invocation without invocation")
	}
	if _, current := ac.Transition(); current == status.ShuttingDown || current == status.ShutdownComplete {
		ac.Logger.Warn().Str("tool", inv.Name).Str("invocation_id", inv.ID).Msg("Dropping tool invocation during shutdown")
		return nil
	}

	if ac.Config.AutoExecuteTools {
		ac.executeAsync(ctx, inv)
		return nil
	}

	ac.addPending(inv)
	ac.Logger.Info().Str("tool", inv.Name).Str("invocation_id", inv.ID).Msg("Tool invocation awaiting approval")
	return nil
}

func handleApproval(ctx context.Context, ac *Context, ev events.Event) error {
	e := ev.(events.ToolExecutionApproval)
	inv, ok := ac.takePending(e.InvocationID)
	if !ok {
		ac.Logger.Debug().Str("invocation_id", e.InvocationID).Msg("Approval for unknown invocation ignored")
		ac.settleStale()
		return nil
	}

	observability.RecordToolApproval(e.Approved)
	observability.RecordApprovalAudit(ctx, ac.AgentID, inv.ID, e.Approved, e.Reason)

	if e.Approved {
		ac.Enqueue(events.ApprovedToolInvocation{Invocation: inv})
		return nil
	}

	msg := "tool execution denied"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	ac.Logger.Info().Str("tool", inv.Name).Str("invocation_id", inv.ID).Str("reason", e.Reason).Msg("Tool invocation denied")
	ac.Enqueue(events.ToolResult{ToolName: inv.Name, InvocationID: inv.ID, Error: msg})
	return nil
}

func handleApprovedInvocation(ctx context.Context, ac *Context, ev events.Event) error {
	e := ev.(events.ApprovedToolInvocation)
	if e.Invocation == nil {
		return fmt.Errorf("approved tool invocation without invocation")
	}
	if ac.turn == nil || !ac.turn.expects(e.Invocation.ID) {
		ac.Logger.Debug().Str("invocation_id", e.Invocation.ID).Msg("Approved invocation outside the current turn ignored")
		ac.settleStale()
		return nil
	}
	ac.executeAsync(ctx, e.Invocation)
	return nil
}

// handleToolResult collects results for the current turn. Once every
// invocation of the turn has a result the model is called again.
func handleToolResult(ctx context.Context, ac *Context, ev events.Event) error {
	res := ev.(events.ToolResult)
	turn := ac.turn
	if turn == nil || !turn.expects(res.InvocationID) {
		ac.Logger.Debug().Str("invocation_id", res.InvocationID).Msg("Late tool result ignored")
		ac.settleStale()
		return nil
	}

	turn.record(res)
	if !turn.complete() {
		return nil
	}
	ac.turn = nil

	msgs, text := turn.feedback()
	ac.AppendHistory(msgs...)
	ac.Enqueue(events.LLMUserMessageReady{Message: events.LLMUserMessage{Content: text}})
	return nil
}

// settleStale returns the agent to IDLE when an event that belongs to no
// turn moved it into a processing status. Nothing else would end that turn.
func (c *Context) settleStale() {
	old, current := c.Transition()
	if c.turn != nil || old == current || !current.IsProcessing() {
		return
	}
	c.Logger.Debug().Str("status", current.String()).Msg("Stale event moved agent outside a turn, returning to idle")
	c.Enqueue(events.AgentIdle{})
}

// executeAsync runs inv on the configured executor and enqueues its result.
func (c *Context) executeAsync(ctx context.Context, inv *events.ToolInvocation) {
	a := c.agent
	if a.cfg.ToolExecutor == nil {
		c.Enqueue(events.ToolResult{ToolName: inv.Name, InvocationID: inv.ID, Error: "no tool executor configured"})
		return
	}

	c.Logger.Debug().Str("tool", inv.Name).Str("invocation_id", inv.ID).Msg("Executing tool")
	a.toolWG.Add(1)
	go func() {
		defer a.toolWG.Done()
		defer func() {
			if r := recover(); r != nil {
				c.Enqueue(events.ToolResult{ToolName: inv.Name, InvocationID: inv.ID, Error: fmt.Sprintf("tool executor panicked: %v", r)})
			}
		}()
		res := a.cfg.ToolExecutor.Execute(ctx, inv)
		if res.InvocationID == "" {
			res.InvocationID = inv.ID
		}
		if res.ToolName == "" {
			res.ToolName = inv.Name
		}
		c.Enqueue(res)
	}()
}
