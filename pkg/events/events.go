package events

// Kind identifies an event variant.
type Kind string

const (
	KindBootstrapStarted          Kind = "bootstrap_started"
	KindBootstrapStepRequested    Kind = "bootstrap_step_requested"
	KindBootstrapStepCompleted    Kind = "bootstrap_step_completed"
	KindBootstrapCompleted        Kind = "bootstrap_completed"
	KindAgentReady                Kind = "agent_ready"
	KindAgentIdle                 Kind = "agent_idle"
	KindShutdownRequested         Kind = "shutdown_requested"
	KindAgentStopped              Kind = "agent_stopped"
	KindAgentError                Kind = "agent_error"
	KindUserMessageReceived       Kind = "user_message_received"
	KindInterAgentMessageReceived Kind = "inter_agent_message_received"
	KindLLMUserMessageReady       Kind = "llm_user_message_ready"
	KindLLMCompleteResponse       Kind = "llm_complete_response_received"
	KindPendingToolInvocation     Kind = "pending_tool_invocation"
	KindApprovedToolInvocation    Kind = "approved_tool_invocation"
	KindToolExecutionApproval     Kind = "tool_execution_approval"
	KindToolResult                Kind = "tool_result"
	KindGeneric                   Kind = "generic"
)

// Event is implemented by every event variant in this package.
type Event interface {
	Kind() Kind
	isEvent()
}

type sealed struct{}

func (sealed) isEvent() {}

// BootstrapStarted begins the bootstrap sequence.
type BootstrapStarted struct{ sealed }

// BootstrapStepRequested asks the sequencer to run step Index.
type BootstrapStepRequested struct {
	sealed
	Index int
}

// BootstrapStepCompleted reports the outcome of one bootstrap step.
type BootstrapStepCompleted struct {
	sealed
	Index    int
	StepName string
	Success  bool
	Error    string
}

// BootstrapCompleted reports the outcome of the whole sequence.
type BootstrapCompleted struct {
	sealed
	Success bool
	Error   string
}

// AgentReady reports that bootstrap finished and the agent accepts input.
type AgentReady struct{ sealed }

// AgentIdle marks the end of a turn.
type AgentIdle struct{ sealed }

// ShutdownRequested asks the agent to finish outstanding tools and stop.
type ShutdownRequested struct{ sealed }

// AgentStopped is the last event the worker handles.
type AgentStopped struct{ sealed }

// AgentError moves the agent into the ERROR status.
type AgentError struct {
	sealed
	Message string
	Details string
}

// UserMessage is the payload of a user turn.
type UserMessage struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// InterAgentMessage is a message sent between agents of a team.
type InterAgentMessage struct {
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	MessageType string `json:"message_type"`
	Content     string `json:"content"`
}

// UserMessageReceived carries input from a user.
type UserMessageReceived struct {
	sealed
	Message UserMessage
}

// InterAgentMessageReceived carries input from another agent.
type InterAgentMessageReceived struct {
	sealed
	Message InterAgentMessage
}

// LLMUserMessage is the content submitted to the model for one round trip.
type LLMUserMessage struct {
	Content string `json:"content"`
}

// LLMUserMessageReady starts one model round trip.
type LLMUserMessageReady struct {
	sealed
	Message LLMUserMessage
}

// TokenUsage tracks token consumption of a response.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// CompleteResponse is the assembled model response of one round trip.
type CompleteResponse struct {
	Text        string            `json:"text"`
	Invocations []*ToolInvocation `json:"invocations,omitempty"`
	Usage       *TokenUsage       `json:"usage,omitempty"`
}

// LLMCompleteResponseReceived carries the assembled model response.
// IsError is set when the stream failed and Response holds the error text.
type LLMCompleteResponseReceived struct {
	sealed
	Response CompleteResponse
	IsError  bool
}

// PendingToolInvocation announces a tool call parsed from a response.
type PendingToolInvocation struct {
	sealed
	Invocation *ToolInvocation
}

// ApprovedToolInvocation schedules an approved tool call for execution.
type ApprovedToolInvocation struct {
	sealed
	Invocation *ToolInvocation
}

// ToolExecutionApproval is the approve/deny decision for a pending invocation.
type ToolExecutionApproval struct {
	sealed
	InvocationID string
	Approved     bool
	Reason       string
}

// ToolResult carries the outcome of one tool execution.
type ToolResult struct {
	sealed
	ToolName     string
	Result       any
	InvocationID string
	Error        string
}

// GenericEvent carries payloads that have no dedicated variant.
type GenericEvent struct {
	sealed
	Payload  map[string]any
	TypeName string
}

func (BootstrapStarted) Kind() Kind            { return KindBootstrapStarted }
func (BootstrapStepRequested) Kind() Kind      { return KindBootstrapStepRequested }
func (BootstrapStepCompleted) Kind() Kind      { return KindBootstrapStepCompleted }
func (BootstrapCompleted) Kind() Kind          { return KindBootstrapCompleted }
func (AgentReady) Kind() Kind                  { return KindAgentReady }
func (AgentIdle) Kind() Kind                   { return KindAgentIdle }
func (ShutdownRequested) Kind() Kind           { return KindShutdownRequested }
func (AgentStopped) Kind() Kind                { return KindAgentStopped }
func (AgentError) Kind() Kind                  { return KindAgentError }
func (UserMessageReceived) Kind() Kind         { return KindUserMessageReceived }
func (InterAgentMessageReceived) Kind() Kind   { return KindInterAgentMessageReceived }
func (LLMUserMessageReady) Kind() Kind         { return KindLLMUserMessageReady }
func (LLMCompleteResponseReceived) Kind() Kind { return KindLLMCompleteResponse }
func (PendingToolInvocation) Kind() Kind       { return KindPendingToolInvocation }
func (ApprovedToolInvocation) Kind() Kind      { return KindApprovedToolInvocation }
func (ToolExecutionApproval) Kind() Kind       { return KindToolExecutionApproval }
func (ToolResult) Kind() Kind                  { return KindToolResult }
func (GenericEvent) Kind() Kind                { return KindGeneric }

// IsError reports whether the tool execution failed.
func (r ToolResult) IsError() bool { return r.Error != "" }
