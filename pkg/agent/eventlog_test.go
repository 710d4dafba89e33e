package agent

import (
	"testing"

	"github.com/harun/agentcore/pkg/events"
	"github.com/stretchr/testify/assert"
)

func TestEventLog_Ring(t *testing.T) {
	l := newEventLog(3)
	for i := 1; i <= 5; i++ {
		l.add(EventRecord{Seq: uint64(i), Kind: events.KindGeneric})
	}

	snap := l.snapshot()
	seqs := make([]uint64, len(snap))
	for i, rec := range snap {
		seqs[i] = rec.Seq
	}
	assert.Equal(t, []uint64{3, 4, 5}, seqs)
	assert.Equal(t, uint64(5), l.count())
}

func TestEventLog_PartiallyFilled(t *testing.T) {
	l := newEventLog(4)
	l.add(EventRecord{Seq: 1})
	l.add(EventRecord{Seq: 2})
	assert.Len(t, l.snapshot(), 2)
	assert.Equal(t, uint64(1), l.snapshot()[0].Seq)
}

func TestEventLog_Disabled(t *testing.T) {
	l := newEventLog(-1)
	l.add(EventRecord{Seq: 1})
	assert.Empty(t, l.snapshot())
	assert.Equal(t, uint64(1), l.count())
}
