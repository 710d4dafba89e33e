// Package status derives agent lifecycle statuses from events.
//
// Invariants:
// - Derive is total: every (status, event) pair yields a status.
// - Pairs without a listed transition leave the status unchanged.
// - Once in ERROR, only AgentError keeps the agent there; approvals and
//   approved invocations still move it to EXECUTING_TOOL or TOOL_DENIED.
package status

// AgentStatus is the lifecycle status of an agent.
type AgentStatus int

const (
	Uninitialized AgentStatus = iota
	Bootstrapping
	Idle
	ProcessingUserInput
	AwaitingLLMResponse
	AnalyzingLLMResponse
	AwaitingToolApproval
	ExecutingTool
	ToolDenied
	ProcessingToolResult
	ShuttingDown
	ShutdownComplete
	Error
)

var statusNames = [...]string{
	Uninitialized:        "uninitialized",
	Bootstrapping:        "bootstrapping",
	Idle:                 "idle",
	ProcessingUserInput:  "processing_user_input",
	AwaitingLLMResponse:  "awaiting_llm_response",
	AnalyzingLLMResponse: "analyzing_llm_response",
	AwaitingToolApproval: "awaiting_tool_approval",
	ExecutingTool:        "executing_tool",
	ToolDenied:           "tool_denied",
	ProcessingToolResult: "processing_tool_result",
	ShuttingDown:         "shutting_down",
	ShutdownComplete:     "shutdown_complete",
	Error:                "error",
}

func (s AgentStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// All returns every status in declaration order.
func All() []AgentStatus {
	out := make([]AgentStatus, 0, len(statusNames))
	for i := range statusNames {
		out = append(out, AgentStatus(i))
	}
	return out
}

// Parse returns the status with the given name.
func Parse(name string) (AgentStatus, bool) {
	for i, n := range statusNames {
		if n == name {
			return AgentStatus(i), true
		}
	}
	return Uninitialized, false
}

// IsTerminal reports whether the agent will not process further input.
func (s AgentStatus) IsTerminal() bool {
	return s == ShutdownComplete || s == Error
}

// IsProcessing reports whether the agent is in the middle of a turn.
func (s AgentStatus) IsProcessing() bool {
	switch s {
	case ProcessingUserInput, AwaitingLLMResponse, AnalyzingLLMResponse,
		AwaitingToolApproval, ExecutingTool, ToolDenied, ProcessingToolResult:
		return true
	}
	return false
}

// MarshalText encodes the status as its lowercase name.
func (s AgentStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
