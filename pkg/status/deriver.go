package status

import (
	"sync"

	"github.com/harun/agentcore/pkg/events"
)

// Options carries the configuration that influences transitions.
type Options struct {
	AutoExecuteTools bool
}

// Derive returns the status that follows current when ev is applied.
func Derive(current AgentStatus, ev events.Event, opts Options) AgentStatus {
	switch e := ev.(type) {
	case events.BootstrapStarted:
		if current == Uninitialized {
			return Bootstrapping
		}

	case events.BootstrapStepRequested:
		if current == Bootstrapping {
			return Bootstrapping
		}

	case events.BootstrapStepCompleted:
		if current == Bootstrapping && e.Success {
			return Bootstrapping
		}

	case events.AgentReady:
		if current == Bootstrapping {
			return Idle
		}

	case events.AgentIdle:
		if current.IsProcessing() {
			return Idle
		}

	case events.ShutdownRequested:
		if current != Error {
			return ShuttingDown
		}

	case events.AgentStopped:
		if current != Error {
			return ShutdownComplete
		}

	case events.AgentError:
		return Error

	case events.UserMessageReceived, events.InterAgentMessageReceived:
		if current == Idle {
			return ProcessingUserInput
		}

	case events.LLMUserMessageReady:
		if current != Error {
			return AwaitingLLMResponse
		}

	case events.LLMCompleteResponseReceived:
		if current == AwaitingLLMResponse {
			return AnalyzingLLMResponse
		}

	case events.PendingToolInvocation:
		if current != Error {
			if opts.AutoExecuteTools {
				return ExecutingTool
			}
			return AwaitingToolApproval
		}

	case events.ApprovedToolInvocation:
		return ExecutingTool

	case events.ToolExecutionApproval:
		if e.Approved {
			return ExecutingTool
		}
		return ToolDenied

	case events.ToolResult:
		if current == ExecutingTool {
			return ProcessingToolResult
		}
	}
	return current
}

// Deriver holds the current status of one agent.
type Deriver struct {
	mu      sync.RWMutex
	current AgentStatus
}

// NewDeriver returns a Deriver holding initial.
func NewDeriver(initial AgentStatus) *Deriver {
	return &Deriver{current: initial}
}

// Current returns the held status.
func (d *Deriver) Current() AgentStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

// Apply moves the held status according to ev and returns the old and new status.
func (d *Deriver) Apply(ev events.Event, opts Options) (AgentStatus, AgentStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	old := d.current
	d.current = Derive(old, ev, opts)
	return old, d.current
}
