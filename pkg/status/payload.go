package status

import "github.com/harun/agentcore/pkg/events"

// Payload builds the additional data sent with a status change caused by ev.
// It returns nil for events that carry nothing worth reporting.
func Payload(ev events.Event) map[string]any {
	switch e := ev.(type) {
	case events.PendingToolInvocation:
		return invocationPayload(e.Invocation)
	case events.ApprovedToolInvocation:
		data := invocationPayload(e.Invocation)
		if data != nil {
			data["approved"] = true
		}
		return data
	case events.ToolExecutionApproval:
		data := map[string]any{
			"invocation_id": e.InvocationID,
			"approved":      e.Approved,
		}
		if e.Reason != "" {
			data["reason"] = e.Reason
		}
		return data
	case events.ToolResult:
		data := map[string]any{
			"tool_name":     e.ToolName,
			"invocation_id": e.InvocationID,
		}
		if e.Error != "" {
			data["error"] = e.Error
		}
		return data
	case events.AgentError:
		return map[string]any{
			"error_message": e.Message,
			"error_details": e.Details,
		}
	case events.BootstrapStepRequested:
		return map[string]any{"step_index": e.Index}
	case events.BootstrapStepCompleted:
		data := map[string]any{
			"step_index": e.Index,
			"step_name":  e.StepName,
			"success":    e.Success,
		}
		if e.Error != "" {
			data["error_message"] = e.Error
		}
		return data
	case events.BootstrapCompleted:
		if !e.Success {
			return map[string]any{"error_message": e.Error}
		}
	case events.LLMCompleteResponseReceived:
		return map[string]any{"is_error": e.IsError}
	}
	return nil
}

func invocationPayload(inv *events.ToolInvocation) map[string]any {
	if inv == nil {
		return nil
	}
	return map[string]any{
		"tool_name":     inv.Name,
		"invocation_id": inv.ID,
		"arguments":     inv.ArgumentsMap(),
	}
}
