// Package eventqueue multiplexes agent input events over six FIFO queues with a
// fixed priority order.
//
// Invariants:
// - Events in the same queue are dequeued in enqueue order.
// - Next always returns the head of the highest-priority non-empty queue,
//   re-evaluated on every call.
// - NextInternal only ever returns events from the internal queue.
// - Each enqueue wakes at most one blocked consumer; nothing is dropped.
//
// Usage:
//
//	q := eventqueue.New()
//	q.EnqueueEvent(events.UserMessageReceived{Message: events.UserMessage{Content: "hi"}})
//	item, err := q.Next(ctx)
package eventqueue
