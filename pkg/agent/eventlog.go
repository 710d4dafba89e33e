package agent

import (
	"sync"
	"time"

	"github.com/harun/agentcore/pkg/events"
	"github.com/harun/agentcore/pkg/status"
)

// EventRecord describes one processed event.
type EventRecord struct {
	Seq       uint64             `json:"seq"`
	Kind      events.Kind        `json:"kind"`
	Queue     string             `json:"queue"`
	At        time.Time          `json:"at"`
	OldStatus status.AgentStatus `json:"old_status"`
	NewStatus status.AgentStatus `json:"new_status"`
}

// eventLog keeps the most recent records in a ring.
type eventLog struct {
	mu    sync.Mutex
	buf   []EventRecord
	next  int
	total uint64
}

func newEventLog(size int) *eventLog {
	if size < 0 {
		size = 0
	}
	return &eventLog{buf: make([]EventRecord, 0, size)}
}

func (l *eventLog) add(rec EventRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total++
	if cap(l.buf) == 0 {
		return
	}
	if len(l.buf) < cap(l.buf) {
		l.buf = append(l.buf, rec)
		return
	}
	l.buf[l.next] = rec
	l.next = (l.next + 1) % len(l.buf)
}

// snapshot returns the retained records oldest first.
func (l *eventLog) snapshot() []EventRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]EventRecord, 0, len(l.buf))
	out = append(out, l.buf[l.next:]...)
	out = append(out, l.buf[:l.next]...)
	return out
}

func (l *eventLog) count() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
