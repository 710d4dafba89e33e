// Package events defines the closed set of events that drive an agent.
//
// Invariants:
// - Every event type implements Event; the set is sealed by an unexported method.
// - Events are values: handlers never mutate an event after it was enqueued.
// - ToolInvocation arguments keep insertion order and unique keys.
//
// Usage:
//
//	inv := events.NewToolInvocation("write_file", args, "")
//	queue.EnqueueEvent(events.PendingToolInvocation{Invocation: inv})
package events
