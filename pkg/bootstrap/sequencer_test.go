package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/harun/agentcore/pkg/eventqueue"
	"github.com/harun/agentcore/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testContext struct {
	ran []string
}

func recordingStep(name string, err error) Step[*testContext] {
	return StepFunc[*testContext]{
		StepName: name,
		Fn: func(ctx context.Context, c *testContext) error {
			c.ran = append(c.ran, name)
			return err
		},
	}
}

// drive runs the bootstrap cycle on q until no internal events remain and
// returns every event dequeued along the way.
func drive(t *testing.T, seq *Sequencer[*testContext], q *eventqueue.Manager, c *testContext) []events.Event {
	t.Helper()
	var seen []events.Event
	q.EnqueueEvent(events.BootstrapStarted{})
	for i := 0; i < 100; i++ {
		item, ok := q.TryNextInternal()
		if !ok {
			return seen
		}
		seen = append(seen, item.Event)
		seq.Handle(context.Background(), c, item.Event)
	}
	t.Fatal("bootstrap did not settle")
	return nil
}

func kinds(evs []events.Event) []events.Kind {
	out := make([]events.Kind, len(evs))
	for i, ev := range evs {
		out[i] = ev.Kind()
	}
	return out
}

func TestSequencer_RunsStepsInOrder(t *testing.T) {
	q := eventqueue.New()
	seq, err := NewSequencer([]Step[*testContext]{
		recordingStep("one", nil),
		recordingStep("two", nil),
		recordingStep("three", nil),
	}, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, seq.Steps())

	c := &testContext{}
	seen := drive(t, seq, q, c)

	assert.Equal(t, []string{"one", "two", "three"}, c.ran)
	assert.Equal(t, events.KindAgentReady, seen[len(seen)-1].Kind())

	var completed []int
	for _, ev := range seen {
		if sc, ok := ev.(events.BootstrapStepCompleted); ok {
			assert.True(t, sc.Success)
			completed = append(completed, sc.Index)
		}
	}
	assert.Equal(t, []int{0, 1, 2}, completed)
}

func TestSequencer_ShortCircuitsOnFailure(t *testing.T) {
	q := eventqueue.New()
	seq, err := NewSequencer([]Step[*testContext]{
		recordingStep("one", nil),
		recordingStep("two", errors.New("disk full")),
		recordingStep("three", nil),
	}, q)
	require.NoError(t, err)

	c := &testContext{}
	seen := drive(t, seq, q, c)

	assert.Equal(t, []string{"one", "two"}, c.ran)
	assert.Equal(t, []events.Kind{
		events.KindBootstrapStarted,
		events.KindBootstrapStepRequested,
		events.KindBootstrapStepCompleted,
		events.KindBootstrapStepRequested,
		events.KindBootstrapStepCompleted,
		events.KindBootstrapCompleted,
		events.KindAgentError,
	}, kinds(seen))

	failed := seen[4].(events.BootstrapStepCompleted)
	assert.False(t, failed.Success)
	assert.Equal(t, "two", failed.StepName)
	assert.Equal(t, "disk full", failed.Error)

	done := seen[5].(events.BootstrapCompleted)
	assert.False(t, done.Success)
	assert.Equal(t, "disk full", done.Error)
}

func TestSequencer_NoSteps(t *testing.T) {
	q := eventqueue.New()
	seq, err := NewSequencer[*testContext](nil, q)
	require.NoError(t, err)

	seen := drive(t, seq, q, &testContext{})
	assert.Equal(t, []events.Kind{
		events.KindBootstrapStarted,
		events.KindBootstrapCompleted,
		events.KindAgentReady,
	}, kinds(seen))
}

func TestSequencer_PanicIsFailure(t *testing.T) {
	q := eventqueue.New()
	seq, err := NewSequencer([]Step[*testContext]{
		StepFunc[*testContext]{StepName: "boom", Fn: func(context.Context, *testContext) error {
			panic("nil map")
		}},
		recordingStep("after", nil),
	}, q)
	require.NoError(t, err)

	c := &testContext{}
	var seen []events.Event
	assert.NotPanics(t, func() { seen = drive(t, seq, q, c) })

	assert.Empty(t, c.ran)
	assert.Equal(t, events.KindAgentError, seen[len(seen)-1].Kind())
	sc := seen[2].(events.BootstrapStepCompleted)
	assert.False(t, sc.Success)
	assert.Contains(t, sc.Error, "panicked")
}

func TestSequencer_OutOfRange(t *testing.T) {
	q := eventqueue.New()
	seq, err := NewSequencer([]Step[*testContext]{recordingStep("one", nil)}, q)
	require.NoError(t, err)

	seq.Handle(context.Background(), &testContext{}, events.BootstrapStepRequested{Index: 5})

	first, ok := q.TryNextInternal()
	require.True(t, ok)
	agentErr, ok := first.Event.(events.AgentError)
	require.True(t, ok)
	assert.Contains(t, agentErr.Message, "out of range")

	second, ok := q.TryNextInternal()
	require.True(t, ok)
	done := second.Event.(events.BootstrapCompleted)
	assert.False(t, done.Success)
	assert.Equal(t, agentErr.Message, done.Error)
}

func TestNewSequencer_RequiresEmitter(t *testing.T) {
	_, err := NewSequencer[*testContext](nil, nil)
	assert.ErrorIs(t, err, ErrNoEmitter)
}

func TestHandles(t *testing.T) {
	assert.True(t, Handles(events.BootstrapStarted{}))
	assert.True(t, Handles(events.BootstrapCompleted{}))
	assert.False(t, Handles(events.AgentReady{}))
}
