package agent

import (
	"sort"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/harun/agentcore/pkg/events"
	"github.com/harun/agentcore/pkg/status"
	"github.com/rs/zerolog"
)

type pendingApproval struct {
	invocation *events.ToolInvocation
	since      time.Time
}

// Context is the shared runtime state of one agent. Bootstrap steps and
// handlers receive it; only the worker goroutine mutates the turn state.
type Context struct {
	AgentID string
	Config  *Config
	Logger  zerolog.Logger

	// SystemPrompt and WorkspaceDir are finalized by the bootstrap steps.
	SystemPrompt string
	WorkspaceDir string

	agent  *Agent
	values *haxmap.Map[string, any]

	histMu  sync.RWMutex
	history []Message

	pending *haxmap.Map[string, pendingApproval]

	// worker-owned
	oldStatus status.AgentStatus
	newStatus status.AgentStatus
	turn      *toolTurn
	nativeIDs map[string]bool
	deferred  []events.Event
}

func newContext(a *Agent) *Context {
	return &Context{
		AgentID:      a.cfg.AgentID,
		Config:       &a.cfg,
		Logger:       a.logger,
		SystemPrompt: a.cfg.SystemPrompt,
		WorkspaceDir: a.cfg.WorkspaceDir,
		agent:        a,
		values:       haxmap.New[string, any](),
		pending:      haxmap.New[string, pendingApproval](),
	}
}

// Enqueue routes ev into the agent's event queue.
func (c *Context) Enqueue(ev events.Event) {
	c.agent.queue.EnqueueEvent(ev)
}

// Status returns the agent's current status.
func (c *Context) Status() status.AgentStatus {
	return c.agent.deriver.Current()
}

// Transition returns the status change caused by the event being handled.
func (c *Context) Transition() (status.AgentStatus, status.AgentStatus) {
	return c.oldStatus, c.newStatus
}

// Set stores a value for later steps or handlers.
func (c *Context) Set(key string, value any) {
	c.values.Set(key, value)
}

// Get returns a value stored with Set.
func (c *Context) Get(key string) (any, bool) {
	return c.values.Get(key)
}

// History returns a copy of the conversation history.
func (c *Context) History() []Message {
	c.histMu.RLock()
	defer c.histMu.RUnlock()
	return append([]Message(nil), c.history...)
}

// AppendHistory adds messages to the conversation history.
func (c *Context) AppendHistory(msgs ...Message) {
	c.histMu.Lock()
	defer c.histMu.Unlock()
	c.history = append(c.history, msgs...)
}

func (c *Context) addPending(inv *events.ToolInvocation) {
	c.pending.Set(inv.ID, pendingApproval{invocation: inv, since: time.Now()})
}

func (c *Context) takePending(id string) (*events.ToolInvocation, bool) {
	p, ok := c.pending.Get(id)
	if !ok {
		return nil, false
	}
	c.pending.Del(id)
	return p.invocation, true
}

func (c *Context) hasPending(id string) bool {
	_, ok := c.pending.Get(id)
	return ok
}

// pendingInvocations returns invocations awaiting approval, oldest first.
func (c *Context) pendingInvocations() []*events.ToolInvocation {
	var entries []pendingApproval
	c.pending.ForEach(func(_ string, p pendingApproval) bool {
		entries = append(entries, p)
		return true
	})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].since.Before(entries[j].since)
	})

	out := make([]*events.ToolInvocation, len(entries))
	for i, p := range entries {
		out[i] = p.invocation
	}
	return out
}

func (c *Context) clearPending() int {
	var ids []string
	c.pending.ForEach(func(id string, _ pendingApproval) bool {
		ids = append(ids, id)
		return true
	})
	for _, id := range ids {
		c.pending.Del(id)
	}
	return len(ids)
}
