package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harun/agentcore/pkg/bootstrap"
	"github.com/harun/agentcore/pkg/events"
	"github.com/harun/agentcore/pkg/streamparser"
	"github.com/harun/agentcore/pkg/toolexecutor"
	"github.com/rs/zerolog"
)

var (
	// ErrMissingLLMClient is returned by New when no LLM client is configured.
	ErrMissingLLMClient = errors.New("llm client is required")
	// ErrShuttingDown is returned for input posted after shutdown began.
	ErrShuttingDown = errors.New("agent is shutting down")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("agent already started")
	// ErrUnknownInvocation is returned when approving an invocation that is not awaiting approval.
	ErrUnknownInvocation = errors.New("no pending approval for invocation")
)

const (
	defaultSystemPrompt = "You are a helpful assistant."
	defaultEventLogSize = 256
)

// ToolExecutor runs approved tool invocations.
type ToolExecutor interface {
	Execute(ctx context.Context, inv *events.ToolInvocation) events.ToolResult
}

// Config configures an Agent.
type Config struct {
	AgentID      string
	Name         string
	Role         string
	SystemPrompt string

	Model            string
	Temperature      float64
	MaxTokens        int
	MaxContextTokens int // 0 disables history compaction

	AutoExecuteTools bool
	// NativeTools offers the registered tools to the model through the
	// provider's tool-calling API in addition to the tag grammar.
	NativeTools bool

	// Parser defaults to streamparser.DefaultConfig when nil.
	Parser *streamparser.Config

	LLMClient    LLMClient
	ToolExecutor ToolExecutor
	Tools        *toolexecutor.Registry
	ToolNames    []string
	// ToolTimeout bounds each call of the default executor.
	ToolTimeout time.Duration

	Notifier Notifier

	// Steps defaults to DefaultSteps when nil. A non-nil empty slice runs no steps.
	Steps []bootstrap.Step[*Context]
	// Handlers replaces the default handler for individual event kinds.
	Handlers map[events.Kind]Handler

	WorkspaceDir   string
	EventLogSize   int
	QueueWarnAfter time.Duration
	Logger         *zerolog.Logger
}

func (c *Config) validate() error {
	if c.AgentID == "" {
		return fmt.Errorf("agent id cannot be empty")
	}
	if c.LLMClient == nil {
		return ErrMissingLLMClient
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max tokens cannot be negative")
	}
	if c.Parser != nil {
		if err := c.Parser.Validate(); err != nil {
			return fmt.Errorf("invalid parser config: %w", err)
		}
	}
	return nil
}

func (c *Config) withDefaults() {
	if c.Name == "" {
		c.Name = c.AgentID
	}
	if c.Parser == nil {
		p := streamparser.DefaultConfig()
		c.Parser = &p
	}
	if c.Steps == nil {
		c.Steps = DefaultSteps()
	}
	if c.EventLogSize == 0 {
		c.EventLogSize = defaultEventLogSize
	}
	if c.ToolExecutor == nil && c.Tools != nil {
		c.ToolExecutor = toolexecutor.NewExecutor(c.Tools, toolexecutor.Options{
			AgentID:    c.AgentID,
			WorkingDir: c.WorkspaceDir,
			Timeout:    c.ToolTimeout,
			Policy:     toolexecutor.NewAllowPolicy(c.ToolNames),
			Logger:     c.Logger,
		})
	}
}
