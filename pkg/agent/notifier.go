package agent

import (
	"sync"
	"sync/atomic"

	"github.com/harun/agentcore/pkg/status"
	"github.com/harun/agentcore/pkg/streamparser"
	"github.com/rs/zerolog/log"
)

// Notifier receives status transitions. Implementations must not block.
type Notifier interface {
	NotifyStatusChange(newStatus, oldStatus status.AgentStatus, data map[string]any)
}

// SegmentNotifier receives parser segment events while a response streams.
type SegmentNotifier interface {
	NotifySegmentEvent(agentID string, ev streamparser.SegmentEvent)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(newStatus, oldStatus status.AgentStatus, data map[string]any)

func (f NotifierFunc) NotifyStatusChange(newStatus, oldStatus status.AgentStatus, data map[string]any) {
	f(newStatus, oldStatus, data)
}

// MultiNotifier fans a notification out to every member in order. Members
// that also implement SegmentNotifier receive segment events.
type MultiNotifier []Notifier

func (m MultiNotifier) NotifyStatusChange(newStatus, oldStatus status.AgentStatus, data map[string]any) {
	for _, n := range m {
		if n != nil {
			n.NotifyStatusChange(newStatus, oldStatus, data)
		}
	}
}

func (m MultiNotifier) NotifySegmentEvent(agentID string, ev streamparser.SegmentEvent) {
	for _, n := range m {
		if sn, ok := n.(SegmentNotifier); ok {
			sn.NotifySegmentEvent(agentID, ev)
		}
	}
}

type statusNote struct {
	newStatus status.AgentStatus
	oldStatus status.AgentStatus
	data      map[string]any
}

type segmentNote struct {
	agentID string
	ev      streamparser.SegmentEvent
}

// AsyncNotifier delivers notifications in order on its own goroutine.
// Status changes and segment boundaries are always delivered. Segment content
// deltas are dropped while the backlog is at its limit.
type AsyncNotifier struct {
	next    Notifier
	limit   int
	wake    chan struct{}
	done    chan struct{}
	dropped atomic.Int64

	mu      sync.Mutex
	backlog []any
	closed  bool
}

// NewAsyncNotifier wraps next. buffer bounds the content backlog and
// defaults to 256.
func NewAsyncNotifier(next Notifier, buffer int) *AsyncNotifier {
	if buffer <= 0 {
		buffer = 256
	}
	n := &AsyncNotifier{
		next:  next,
		limit: buffer,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go n.loop()
	return n
}

func (n *AsyncNotifier) NotifyStatusChange(newStatus, oldStatus status.AgentStatus, data map[string]any) {
	n.offer(statusNote{newStatus: newStatus, oldStatus: oldStatus, data: data}, false)
}

func (n *AsyncNotifier) NotifySegmentEvent(agentID string, ev streamparser.SegmentEvent) {
	if _, ok := n.next.(SegmentNotifier); !ok {
		return
	}
	n.offer(segmentNote{agentID: agentID, ev: ev}, ev.Kind == streamparser.EventContent)
}

// Dropped returns how many content deltas were discarded.
func (n *AsyncNotifier) Dropped() int64 {
	return n.dropped.Load()
}

// Close stops accepting notifications and waits for the backlog to drain.
func (n *AsyncNotifier) Close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	n.signal()
	<-n.done
}

func (n *AsyncNotifier) offer(note any, droppable bool) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	if droppable && len(n.backlog) >= n.limit {
		n.mu.Unlock()
		if n.dropped.Add(1)%100 == 1 {
			log.Warn().Int64("dropped", n.dropped.Load()).Msg("Notifier backlog full, dropping segment content")
		}
		return
	}
	n.backlog = append(n.backlog, note)
	n.mu.Unlock()
	n.signal()
}

func (n *AsyncNotifier) signal() {
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *AsyncNotifier) loop() {
	defer close(n.done)
	for {
		n.mu.Lock()
		batch, closed := n.backlog, n.closed
		n.backlog = nil
		n.mu.Unlock()

		for _, note := range batch {
			n.deliver(note)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-n.wake
	}
}

func (n *AsyncNotifier) deliver(note any) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Notifier panicked")
		}
	}()
	switch v := note.(type) {
	case statusNote:
		n.next.NotifyStatusChange(v.newStatus, v.oldStatus, v.data)
	case segmentNote:
		n.next.(SegmentNotifier).NotifySegmentEvent(v.agentID, v.ev)
	}
}
