package agent

import (
	"context"
	"fmt"

	"github.com/harun/agentcore/internal/observability"
	"github.com/harun/agentcore/pkg/bootstrap"
	"github.com/harun/agentcore/pkg/events"
	"github.com/harun/agentcore/pkg/status"
)

// Handler processes one event kind.
type Handler interface {
	Handle(ctx context.Context, ac *Context, ev events.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ac *Context, ev events.Event) error

func (f HandlerFunc) Handle(ctx context.Context, ac *Context, ev events.Event) error {
	return f(ctx, ac, ev)
}

func defaultHandlers(seq *bootstrap.Sequencer[*Context]) map[events.Kind]Handler {
	bootstrapHandler := HandlerFunc(func(ctx context.Context, ac *Context, ev events.Event) error {
		seq.Handle(ctx, ac, ev)
		return nil
	})

	return map[events.Kind]Handler{
		events.KindBootstrapStarted:          bootstrapHandler,
		events.KindBootstrapStepRequested:    bootstrapHandler,
		events.KindBootstrapStepCompleted:    bootstrapHandler,
		events.KindBootstrapCompleted:        bootstrapHandler,
		events.KindAgentReady:                HandlerFunc(handleReady),
		events.KindAgentIdle:                 HandlerFunc(handleIdle),
		events.KindAgentError:                HandlerFunc(handleAgentError),
		events.KindShutdownRequested:         HandlerFunc(handleShutdownRequested),
		events.KindAgentStopped:              HandlerFunc(handleStopped),
		events.KindUserMessageReceived:       HandlerFunc(handleInputMessage),
		events.KindInterAgentMessageReceived: HandlerFunc(handleInputMessage),
		events.KindLLMUserMessageReady:       HandlerFunc(handleLLMUserMessage),
		events.KindLLMCompleteResponse:       HandlerFunc(handleCompleteResponse),
		events.KindPendingToolInvocation:     HandlerFunc(handlePendingInvocation),
		events.KindToolExecutionApproval:     HandlerFunc(handleApproval),
		events.KindApprovedToolInvocation:    HandlerFunc(handleApprovedInvocation),
		events.KindToolResult:                HandlerFunc(handleToolResult),
		events.KindGeneric:                   HandlerFunc(handleGeneric),
	}
}

// handlesInError lists the kinds still dispatched once the agent is in ERROR.
var handlesInError = map[events.Kind]bool{
	events.KindAgentError:        true,
	events.KindShutdownRequested: true,
	events.KindAgentStopped:      true,
}

func handleReady(ctx context.Context, ac *Context, ev events.Event) error {
	ac.Logger.Info().Int("system_prompt_bytes", len(ac.SystemPrompt)).Msg("Agent ready")
	return nil
}

// handleIdle re-enqueues input that arrived while a turn was in progress.
func handleIdle(ctx context.Context, ac *Context, ev events.Event) error {
	if len(ac.deferred) == 0 {
		return nil
	}
	deferred := ac.deferred
	ac.deferred = nil
	ac.Logger.Debug().Int("count", len(deferred)).Msg("Replaying deferred input")
	for _, d := range deferred {
		ac.Enqueue(d)
	}
	return nil
}

func handleAgentError(ctx context.Context, ac *Context, ev events.Event) error {
	e := ev.(events.AgentError)
	ac.Logger.Error().Str("error_message", e.Message).Str("error_details", e.Details).Msg("Agent error")
	return nil
}

func handleShutdownRequested(ctx context.Context, ac *Context, ev events.Event) error {
	if n := ac.clearPending(); n > 0 {
		ac.Logger.Warn().Int("count", n).Msg("Discarding tool invocations awaiting approval")
	}
	ac.agent.toolWG.Wait()
	ac.Enqueue(events.AgentStopped{})
	return nil
}

func handleStopped(ctx context.Context, ac *Context, ev events.Event) error {
	ac.Logger.Info().Msg("Agent stopped")
	return nil
}

// handleInputMessage turns user and inter-agent input into a model turn.
// Input that arrives mid-turn is deferred until the agent is idle again.
func handleInputMessage(ctx context.Context, ac *Context, ev events.Event) error {
	old, current := ac.Transition()
	switch {
	case old == status.Idle && current == status.ProcessingUserInput:
	case current.IsProcessing():
		ac.deferred = append(ac.deferred, ev)
		ac.Logger.Debug().Str("kind", string(ev.Kind())).Msg("Agent busy, deferring input")
		return nil
	default:
		ac.Logger.Warn().Str("kind", string(ev.Kind())).Str("status", current.String()).Msg("Dropping input received outside idle state")
		return nil
	}

	var content string
	switch e := ev.(type) {
	case events.UserMessageReceived:
		content = e.Message.Content
	case events.InterAgentMessageReceived:
		msg := e.Message
		content = fmt.Sprintf("[message from %s", msg.SenderID)
		if msg.MessageType != "" {
			content += fmt.Sprintf(" (%s)", msg.MessageType)
		}
		content += "]\n" + msg.Content
	}

	ac.Enqueue(events.LLMUserMessageReady{Message: events.LLMUserMessage{Content: content}})
	return nil
}

func handleGeneric(ctx context.Context, ac *Context, ev events.Event) error {
	e := ev.(events.GenericEvent)
	ac.Logger.Debug().Str("type", e.TypeName).Msg("Generic event")
	return nil
}

// dispatch runs the handler registered for ev.
func (a *Agent) dispatch(ctx context.Context, ev events.Event) {
	kind := ev.Kind()
	if a.actx.newStatus == status.Error && !handlesInError[kind] {
		a.logger.Debug().Str("kind", string(kind)).Msg("Agent in error state, event absorbed")
		return
	}

	h, ok := a.handlers[kind]
	if !ok {
		a.logger.Debug().Str("kind", string(kind)).Msg("No handler registered")
		return
	}

	err := a.invoke(ctx, h, ev)
	observability.RecordEventHandled(string(kind), err == nil)
	if err == nil {
		return
	}
	a.logger.Error().Err(err).Str("kind", string(kind)).Msg("Event handler failed")
	// a failing AgentError handler must not feed itself
	if kind != events.KindAgentError {
		a.queue.EnqueueEvent(events.AgentError{Message: err.Error(), Details: string(kind)})
	}
}

func (a *Agent) invoke(ctx context.Context, h Handler, ev events.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %s panicked: %v", ev.Kind(), r)
		}
	}()
	return h.Handle(ctx, a.actx, ev)
}
