package status

import (
	"sync"
	"testing"

	"github.com/harun/agentcore/pkg/events"
	"github.com/stretchr/testify/assert"
)

func sampleEvents() []events.Event {
	inv := events.NewToolInvocation("run_bash", nil, "call_1")
	return []events.Event{
		events.BootstrapStarted{},
		events.BootstrapStepRequested{Index: 0},
		events.BootstrapStepCompleted{Index: 0, StepName: "s", Success: true},
		events.BootstrapStepCompleted{Index: 0, StepName: "s", Success: false, Error: "x"},
		events.BootstrapCompleted{Success: true},
		events.BootstrapCompleted{Success: false, Error: "x"},
		events.AgentReady{},
		events.AgentIdle{},
		events.ShutdownRequested{},
		events.AgentStopped{},
		events.AgentError{Message: "m"},
		events.UserMessageReceived{},
		events.InterAgentMessageReceived{},
		events.LLMUserMessageReady{},
		events.LLMCompleteResponseReceived{},
		events.PendingToolInvocation{Invocation: inv},
		events.ApprovedToolInvocation{Invocation: inv},
		events.ToolExecutionApproval{InvocationID: "call_1", Approved: true},
		events.ToolExecutionApproval{InvocationID: "call_1", Approved: false},
		events.ToolResult{ToolName: "run_bash", InvocationID: "call_1"},
		events.GenericEvent{TypeName: "custom"},
	}
}

func TestDerive_Totality(t *testing.T) {
	for _, s := range All() {
		for _, ev := range sampleEvents() {
			for _, auto := range []bool{false, true} {
				assert.NotPanics(t, func() {
					got := Derive(s, ev, Options{AutoExecuteTools: auto})
					assert.NotEqual(t, "unknown", got.String())
				})
			}
		}
		assert.Equal(t, s, Derive(s, nil, Options{}))
	}
}

func TestDerive_Table(t *testing.T) {
	inv := events.NewToolInvocation("write_file", nil, "call_1")
	tests := []struct {
		name    string
		current AgentStatus
		event   events.Event
		auto    bool
		want    AgentStatus
	}{
		{"bootstrap starts", Uninitialized, events.BootstrapStarted{}, false, Bootstrapping},
		{"bootstrap started twice", Idle, events.BootstrapStarted{}, false, Idle},
		{"step requested", Bootstrapping, events.BootstrapStepRequested{Index: 1}, false, Bootstrapping},
		{"step completed ok", Bootstrapping, events.BootstrapStepCompleted{Success: true}, false, Bootstrapping},
		{"step failed is no-op", Bootstrapping, events.BootstrapStepCompleted{Success: false}, false, Bootstrapping},
		{"ready", Bootstrapping, events.AgentReady{}, false, Idle},
		{"ready outside bootstrap", ProcessingUserInput, events.AgentReady{}, false, ProcessingUserInput},
		{"shutdown", Idle, events.ShutdownRequested{}, false, ShuttingDown},
		{"shutdown from error", Error, events.ShutdownRequested{}, false, Error},
		{"stopped", ShuttingDown, events.AgentStopped{}, false, ShutdownComplete},
		{"stopped from error", Error, events.AgentStopped{}, false, Error},
		{"error from idle", Idle, events.AgentError{}, false, Error},
		{"error from uninitialized", Uninitialized, events.AgentError{}, false, Error},
		{"user message", Idle, events.UserMessageReceived{}, false, ProcessingUserInput},
		{"inter agent message", Idle, events.InterAgentMessageReceived{}, false, ProcessingUserInput},
		{"user message while busy", AwaitingLLMResponse, events.UserMessageReceived{}, false, AwaitingLLMResponse},
		{"llm ready", ProcessingUserInput, events.LLMUserMessageReady{}, false, AwaitingLLMResponse},
		{"llm ready after tool", ProcessingToolResult, events.LLMUserMessageReady{}, false, AwaitingLLMResponse},
		{"llm ready in error", Error, events.LLMUserMessageReady{}, false, Error},
		{"complete response", AwaitingLLMResponse, events.LLMCompleteResponseReceived{}, false, AnalyzingLLMResponse},
		{"late complete response", Idle, events.LLMCompleteResponseReceived{}, false, Idle},
		{"pending manual", AnalyzingLLMResponse, events.PendingToolInvocation{Invocation: inv}, false, AwaitingToolApproval},
		{"pending auto", AnalyzingLLMResponse, events.PendingToolInvocation{Invocation: inv}, true, ExecutingTool},
		{"pending in error", Error, events.PendingToolInvocation{Invocation: inv}, true, Error},
		{"approved invocation", AwaitingToolApproval, events.ApprovedToolInvocation{Invocation: inv}, false, ExecutingTool},
		{"approved invocation from error", Error, events.ApprovedToolInvocation{Invocation: inv}, false, ExecutingTool},
		{"approval granted", AwaitingToolApproval, events.ToolExecutionApproval{Approved: true}, false, ExecutingTool},
		{"approval denied", AwaitingToolApproval, events.ToolExecutionApproval{Approved: false}, false, ToolDenied},
		{"tool result", ExecutingTool, events.ToolResult{}, false, ProcessingToolResult},
		{"late tool result", Idle, events.ToolResult{}, false, Idle},
		{"turn ends", AnalyzingLLMResponse, events.AgentIdle{}, false, Idle},
		{"turn ends after denial", ToolDenied, events.AgentIdle{}, false, Idle},
		{"idle ignored while bootstrapping", Bootstrapping, events.AgentIdle{}, false, Bootstrapping},
		{"idle ignored in error", Error, events.AgentIdle{}, false, Error},
		{"generic is no-op", ExecutingTool, events.GenericEvent{}, false, ExecutingTool},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(tt.current, tt.event, Options{AutoExecuteTools: tt.auto})
			assert.Equal(t, tt.want, got, "%s + %s", tt.current, tt.event.Kind())
		})
	}
}

func TestDeriver_Apply(t *testing.T) {
	d := NewDeriver(Uninitialized)

	old, cur := d.Apply(events.BootstrapStarted{}, Options{})
	assert.Equal(t, Uninitialized, old)
	assert.Equal(t, Bootstrapping, cur)

	old, cur = d.Apply(events.UserMessageReceived{}, Options{})
	assert.Equal(t, Bootstrapping, old)
	assert.Equal(t, Bootstrapping, cur)

	d.Apply(events.AgentReady{}, Options{})
	assert.Equal(t, Idle, d.Current())
}

func TestDeriver_ConcurrentReaders(t *testing.T) {
	d := NewDeriver(Idle)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = d.Current()
			}
		}()
	}
	for j := 0; j < 100; j++ {
		d.Apply(events.UserMessageReceived{}, Options{})
		d.Apply(events.AgentIdle{}, Options{})
	}
	wg.Wait()
	assert.Equal(t, Idle, d.Current())
}

func TestStatus_StringAndParse(t *testing.T) {
	for _, s := range All() {
		parsed, ok := Parse(s.String())
		assert.True(t, ok)
		assert.Equal(t, s, parsed)
	}
	assert.Equal(t, "awaiting_tool_approval", AwaitingToolApproval.String())
	assert.Equal(t, "unknown", AgentStatus(99).String())

	_, ok := Parse("nope")
	assert.False(t, ok)
}

func TestPayload(t *testing.T) {
	args := events.NewArguments()
	args.Set("path", "a.txt")
	inv := events.NewToolInvocation("write_file", args, "call_7")

	data := Payload(events.PendingToolInvocation{Invocation: inv})
	assert.Equal(t, "write_file", data["tool_name"])
	assert.Equal(t, "call_7", data["invocation_id"])

	data = Payload(events.AgentError{Message: "boom", Details: "trace"})
	assert.Equal(t, "boom", data["error_message"])
	assert.Equal(t, "trace", data["error_details"])

	data = Payload(events.BootstrapStepCompleted{Index: 2, StepName: "prompt", Success: true})
	assert.Equal(t, 2, data["step_index"])
	assert.Equal(t, "prompt", data["step_name"])

	data = Payload(events.LLMCompleteResponseReceived{IsError: true})
	assert.Equal(t, true, data["is_error"])

	assert.Nil(t, Payload(events.AgentReady{}))
}
