package agent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/harun/agentcore/internal/observability"
	"github.com/harun/agentcore/internal/tracing"
	"github.com/harun/agentcore/pkg/bootstrap"
	"github.com/harun/agentcore/pkg/eventqueue"
	"github.com/harun/agentcore/pkg/events"
	"github.com/harun/agentcore/pkg/status"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Agent runs one LLM agent: a single worker consuming its event queue.
type Agent struct {
	cfg             Config
	logger          zerolog.Logger
	queue           *eventqueue.Manager
	deriver         *status.Deriver
	handlers        map[events.Kind]Handler
	notifier        Notifier
	segmentNotifier SegmentNotifier
	events          *eventLog
	actx            *Context

	toolWG sync.WaitGroup

	startOnce sync.Once
	started   atomic.Bool
	done      chan struct{}

	statusMu sync.Mutex
	statusCh chan struct{}
}

// New validates cfg and builds an agent. The worker starts with Start.
func New(cfg Config) (*Agent, error) {
	observability.EnsureRegistered()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid agent config: %w", err)
	}
	cfg.withDefaults()

	base := log.Logger
	if cfg.Logger != nil {
		base = *cfg.Logger
	}
	logger := base.With().Str("agent_id", cfg.AgentID).Logger()

	a := &Agent{
		cfg:      cfg,
		logger:   logger,
		deriver:  status.NewDeriver(status.Uninitialized),
		notifier: cfg.Notifier,
		events:   newEventLog(cfg.EventLogSize),
		done:     make(chan struct{}),
		statusCh: make(chan struct{}),
	}
	a.queue = eventqueue.New(eventqueue.Options{WarnAfter: cfg.QueueWarnAfter, Logger: &logger})
	if sn, ok := cfg.Notifier.(SegmentNotifier); ok {
		a.segmentNotifier = sn
	}
	a.actx = newContext(a)

	seq, err := bootstrap.NewSequencer(cfg.Steps, a.queue, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create bootstrap sequencer: %w", err)
	}
	a.handlers = defaultHandlers(seq)
	for kind, h := range cfg.Handlers {
		a.handlers[kind] = h
	}

	return a, nil
}

// ID returns the agent id.
func (a *Agent) ID() string { return a.cfg.AgentID }

// Start launches the worker. Cancelling ctx stops the worker without the
// shutdown protocol.
func (a *Agent) Start(ctx context.Context) error {
	err := ErrAlreadyStarted
	a.startOnce.Do(func() {
		err = nil
		a.started.Store(true)
		ctx = tracing.NewAgentRunContext(ctx, a.cfg.AgentID)
		a.logger = tracing.PropagateToLogger(ctx, a.logger)
		a.actx.Logger = a.logger
		go a.run(ctx)
	})
	return err
}

// PostUserMessage enqueues user input.
func (a *Agent) PostUserMessage(content string, metadata map[string]string) error {
	return a.post(events.UserMessageReceived{Message: events.UserMessage{Content: content, Metadata: metadata}})
}

// PostInterAgentMessage enqueues a message from another agent.
func (a *Agent) PostInterAgentMessage(msg events.InterAgentMessage) error {
	if msg.RecipientID == "" {
		msg.RecipientID = a.cfg.AgentID
	}
	return a.post(events.InterAgentMessageReceived{Message: msg})
}

// Approve allows a tool invocation awaiting approval to run.
func (a *Agent) Approve(invocationID string) error {
	return a.decide(invocationID, true, "")
}

// Deny rejects a tool invocation awaiting approval.
func (a *Agent) Deny(invocationID, reason string) error {
	return a.decide(invocationID, false, reason)
}

func (a *Agent) decide(invocationID string, approved bool, reason string) error {
	if !a.actx.hasPending(invocationID) {
		return fmt.Errorf("%w: %s", ErrUnknownInvocation, invocationID)
	}
	a.queue.EnqueueEvent(events.ToolExecutionApproval{InvocationID: invocationID, Approved: approved, Reason: reason})
	return nil
}

// Enqueue routes an arbitrary event into the agent's queue.
func (a *Agent) Enqueue(ev events.Event) error {
	if ev == nil {
		return fmt.Errorf("event cannot be nil")
	}
	a.queue.EnqueueEvent(ev)
	return nil
}

func (a *Agent) post(ev events.Event) error {
	if a.stopping() {
		return ErrShuttingDown
	}
	a.queue.EnqueueEvent(ev)
	return nil
}

func (a *Agent) stopping() bool {
	switch a.deriver.Current() {
	case status.ShuttingDown, status.ShutdownComplete:
		return true
	}
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// Status returns the current status.
func (a *Agent) Status() status.AgentStatus {
	return a.deriver.Current()
}

// WaitForStatus blocks until the status is one of want or ctx is done.
func (a *Agent) WaitForStatus(ctx context.Context, want ...status.AgentStatus) (status.AgentStatus, error) {
	for {
		a.statusMu.Lock()
		ch := a.statusCh
		a.statusMu.Unlock()

		current := a.deriver.Current()
		for _, w := range want {
			if current == w {
				return current, nil
			}
		}

		select {
		case <-ch:
		case <-a.done:
			// the worker is gone; only a final check remains
			current = a.deriver.Current()
			for _, w := range want {
				if current == w {
					return current, nil
				}
			}
			return current, fmt.Errorf("agent stopped in status %s", current)
		case <-ctx.Done():
			return a.deriver.Current(), ctx.Err()
		}
	}
}

// Stop requests shutdown and waits for the worker to finish.
func (a *Agent) Stop(ctx context.Context) error {
	if !a.started.Load() {
		return nil
	}
	select {
	case <-a.done:
		return nil
	default:
	}

	a.queue.EnqueueEvent(events.ShutdownRequested{})
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("agent %s did not stop: %w", a.cfg.AgentID, ctx.Err())
	}
}

// Done is closed when the worker exits.
func (a *Agent) Done() <-chan struct{} { return a.done }

// History returns a copy of the conversation history.
func (a *Agent) History() []Message { return a.actx.History() }

// EventLog returns the most recent processed events, oldest first.
func (a *Agent) EventLog() []EventRecord { return a.events.snapshot() }

// PendingApprovals returns invocations awaiting approval, oldest first.
func (a *Agent) PendingApprovals() []*events.ToolInvocation { return a.actx.pendingInvocations() }

// SystemPrompt returns the system prompt produced by bootstrap.
func (a *Agent) SystemPrompt() string { return a.actx.SystemPrompt }

// QueueStats returns the pending event count per queue.
func (a *Agent) QueueStats() map[string]int { return a.queue.Stats() }

func (a *Agent) signalStatus() {
	a.statusMu.Lock()
	close(a.statusCh)
	a.statusCh = make(chan struct{})
	a.statusMu.Unlock()
}
