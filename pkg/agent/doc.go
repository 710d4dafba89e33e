// Package agent runs one LLM agent as an event-driven worker.
//
// Invariants:
// - Exactly one goroutine consumes an agent's event queue.
// - Status changes are derived from events before their handlers run.
// - External input waits in its queue until bootstrap has finished.
// - Tool invocations reach the executor only after auto-approval or an
//   explicit Approve call.
//
// Usage:
//
//	a, _ := agent.New(agent.Config{AgentID: "coder", LLMClient: client, Tools: reg})
//	_ = a.Start(ctx)
//	_ = a.PostUserMessage("list the workspace", nil)
//	_ = a.Stop(ctx)
package agent
