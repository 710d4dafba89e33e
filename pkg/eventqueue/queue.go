package eventqueue

import (
	"context"
	"sync"
	"time"

	"github.com/harun/agentcore/internal/observability"
	"github.com/harun/agentcore/pkg/events"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Item is a dequeued event together with its queue bookkeeping.
type Item struct {
	Queue      QueueKind
	Event      events.Event
	Seq        uint64
	EnqueuedAt time.Time
}

// Options configures a Manager.
type Options struct {
	// WarnAfter logs a warning when an event waited longer than this before
	// being dequeued. Zero disables the warning.
	WarnAfter time.Duration
	Logger    *zerolog.Logger
}

type waiter struct {
	ch           chan struct{}
	internalOnly bool
}

// Manager owns the six input queues of one agent.
type Manager struct {
	mu      sync.Mutex
	queues  [numQueues][]Item
	seq     uint64
	waiters []*waiter

	warnAfter time.Duration
	logger    zerolog.Logger
}

// New creates an empty Manager.
func New(opts ...Options) *Manager {
	observability.EnsureRegistered()

	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	logger := log.Logger
	if o.Logger != nil {
		logger = *o.Logger
	}

	return &Manager{
		warnAfter: o.WarnAfter,
		logger:    logger.With().Str("component", "eventqueue").Logger(),
	}
}

// EnqueueEvent appends ev to the queue selected by Route.
func (m *Manager) EnqueueEvent(ev events.Event) {
	m.Enqueue(Route(ev), ev)
}

// Enqueue appends ev to the given queue and wakes one eligible waiting consumer.
// An unknown queue kind falls back to routing by event type.
func (m *Manager) Enqueue(kind QueueKind, ev events.Event) {
	if ev == nil {
		return
	}
	if !kind.valid() {
		m.logger.Warn().Int("queue", int(kind)).Str("event", string(ev.Kind())).Msg("Unknown queue kind, routing by event type")
		kind = Route(ev)
	}

	m.mu.Lock()
	m.seq++
	m.queues[kind] = append(m.queues[kind], Item{
		Queue:      kind,
		Event:      ev,
		Seq:        m.seq,
		EnqueuedAt: time.Now(),
	})
	depth := len(m.queues[kind])
	seq := m.seq
	m.wakeLocked(kind)
	m.mu.Unlock()

	m.logger.Debug().
		Str("queue", kind.String()).
		Str("event", string(ev.Kind())).
		Uint64("seq", seq).
		Int("depth", depth).
		Msg("Event enqueued")

	observability.RecordEnqueue(kind.String(), depth)
}

// Next blocks until an event is available in any queue and returns the head of
// the highest-priority non-empty queue. It returns ctx.Err() when ctx is done
// before an event arrives.
func (m *Manager) Next(ctx context.Context) (Item, error) {
	return m.next(ctx, false)
}

// NextInternal is Next restricted to the internal queue.
func (m *Manager) NextInternal(ctx context.Context) (Item, error) {
	return m.next(ctx, true)
}

// TryNext returns the next event without blocking.
func (m *Manager) TryNext() (Item, bool) {
	m.mu.Lock()
	item, ok := m.popLocked(false)
	m.mu.Unlock()
	if ok {
		m.observeDequeue(item)
	}
	return item, ok
}

// TryNextInternal returns the next internal event without blocking.
func (m *Manager) TryNextInternal() (Item, bool) {
	m.mu.Lock()
	item, ok := m.popLocked(true)
	m.mu.Unlock()
	if ok {
		m.observeDequeue(item)
	}
	return item, ok
}

// Len returns the number of buffered events in one queue.
func (m *Manager) Len(kind QueueKind) int {
	if !kind.valid() {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[kind])
}

// Pending returns the total number of buffered events.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, q := range m.queues {
		total += len(q)
	}
	return total
}

// Stats returns the depth of every queue keyed by queue name.
func (m *Manager) Stats() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := make(map[string]int, numQueues)
	for _, k := range PriorityOrder {
		stats[k.String()] = len(m.queues[k])
	}
	return stats
}

func (m *Manager) next(ctx context.Context, internalOnly bool) (Item, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		m.mu.Lock()
		if item, ok := m.popLocked(internalOnly); ok {
			m.mu.Unlock()
			m.observeDequeue(item)
			return item, nil
		}
		w := &waiter{ch: make(chan struct{}, 1), internalOnly: internalOnly}
		m.waiters = append(m.waiters, w)
		m.mu.Unlock()

		select {
		case <-w.ch:
		case <-ctx.Done():
			m.mu.Lock()
			if !m.removeWaiterLocked(w) {
				// Signalled while cancelling: hand the wake-up to someone else.
				m.rewakeLocked()
			}
			m.mu.Unlock()
			return Item{}, ctx.Err()
		}
	}
}

func (m *Manager) popLocked(internalOnly bool) (Item, bool) {
	if internalOnly {
		return m.popQueueLocked(Internal)
	}
	for _, k := range PriorityOrder {
		if item, ok := m.popQueueLocked(k); ok {
			return item, true
		}
	}
	return Item{}, false
}

func (m *Manager) popQueueLocked(kind QueueKind) (Item, bool) {
	q := m.queues[kind]
	if len(q) == 0 {
		return Item{}, false
	}
	item := q[0]
	q[0] = Item{}
	m.queues[kind] = q[1:]
	return item, true
}

// wakeLocked signals one waiter that can consume an event of the given kind.
// Internal events prefer waiters blocked in NextInternal.
func (m *Manager) wakeLocked(kind QueueKind) bool {
	idx := -1
	if kind == Internal {
		for i, w := range m.waiters {
			if w.internalOnly {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		for i, w := range m.waiters {
			if !w.internalOnly {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return false
	}

	w := m.waiters[idx]
	m.waiters = append(m.waiters[:idx], m.waiters[idx+1:]...)
	w.ch <- struct{}{}
	return true
}

func (m *Manager) rewakeLocked() {
	for _, k := range PriorityOrder {
		if len(m.queues[k]) > 0 && m.wakeLocked(k) {
			return
		}
	}
}

func (m *Manager) removeWaiterLocked(target *waiter) bool {
	for i, w := range m.waiters {
		if w == target {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Manager) waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiters)
}

func (m *Manager) observeDequeue(item Item) {
	wait := time.Since(item.EnqueuedAt)
	depth := m.Len(item.Queue)

	if m.warnAfter > 0 && wait > m.warnAfter {
		m.logger.Warn().
			Str("queue", item.Queue.String()).
			Str("event", string(item.Event.Kind())).
			Dur("wait", wait).
			Msg("Event waited longer than expected")
	}

	observability.RecordDequeue(item.Queue.String(), wait, depth)
}
