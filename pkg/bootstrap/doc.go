// Package bootstrap runs an agent's ordered startup steps as an event cycle on
// the agent's own queue.
//
// Invariants:
// - Steps run strictly in declared order, one per BootstrapStepRequested event.
// - The first failing step ends the sequence; later steps never run.
// - A step that panics is reported as a failed step.
//
// Usage:
//
//	seq, _ := bootstrap.NewSequencer[*agent.Context](steps, queue)
//	queue.EnqueueEvent(events.BootstrapStarted{})
//	// worker: seq.Handle(ctx, agentCtx, item.Event)
package bootstrap
