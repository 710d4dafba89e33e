package eventqueue

import "github.com/harun/agentcore/pkg/events"

// QueueKind names one of the input queues.
type QueueKind int

const (
	UserMessage QueueKind = iota
	InterAgentMessage
	ToolInvocationRequest
	ToolResult
	ToolApproval
	Internal

	numQueues
)

// PriorityOrder lists the queues from highest to lowest priority.
var PriorityOrder = [numQueues]QueueKind{
	UserMessage,
	InterAgentMessage,
	ToolInvocationRequest,
	ToolResult,
	ToolApproval,
	Internal,
}

var queueNames = [numQueues]string{
	UserMessage:           "user_message",
	InterAgentMessage:     "inter_agent_message",
	ToolInvocationRequest: "tool_invocation_request",
	ToolResult:            "tool_result",
	ToolApproval:          "tool_approval",
	Internal:              "internal",
}

func (k QueueKind) String() string {
	if k < 0 || k >= numQueues {
		return "unknown"
	}
	return queueNames[k]
}

func (k QueueKind) valid() bool {
	return k >= 0 && k < numQueues
}

// Route returns the queue an event belongs to.
func Route(ev events.Event) QueueKind {
	switch ev.(type) {
	case events.UserMessageReceived:
		return UserMessage
	case events.InterAgentMessageReceived:
		return InterAgentMessage
	case events.PendingToolInvocation:
		return ToolInvocationRequest
	case events.ToolResult:
		return ToolResult
	case events.ToolExecutionApproval:
		return ToolApproval
	default:
		return Internal
	}
}
