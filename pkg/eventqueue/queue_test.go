package eventqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/harun/agentcore/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userMsg(content string) events.Event {
	return events.UserMessageReceived{Message: events.UserMessage{Content: content}}
}

func TestRoute(t *testing.T) {
	tests := []struct {
		event events.Event
		want  QueueKind
	}{
		{userMsg("hi"), UserMessage},
		{events.InterAgentMessageReceived{}, InterAgentMessage},
		{events.PendingToolInvocation{}, ToolInvocationRequest},
		{events.ToolResult{}, ToolResult},
		{events.ToolExecutionApproval{}, ToolApproval},
		{events.ApprovedToolInvocation{}, Internal},
		{events.LLMUserMessageReady{}, Internal},
		{events.BootstrapStarted{}, Internal},
		{events.GenericEvent{}, Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Route(tt.event), "route %s", tt.event.Kind())
	}
}

func TestManager_PriorityOrder(t *testing.T) {
	q := New()

	q.EnqueueEvent(events.AgentReady{})
	q.EnqueueEvent(events.ToolExecutionApproval{InvocationID: "a"})
	q.EnqueueEvent(events.ToolResult{InvocationID: "r"})
	q.EnqueueEvent(events.PendingToolInvocation{})
	q.EnqueueEvent(events.InterAgentMessageReceived{})
	q.EnqueueEvent(userMsg("hi"))

	ctx := context.Background()
	var got []QueueKind
	for i := 0; i < 6; i++ {
		item, err := q.Next(ctx)
		require.NoError(t, err)
		got = append(got, item.Queue)
	}

	assert.Equal(t, PriorityOrder[:], got)
	assert.Equal(t, 0, q.Pending())
}

func TestManager_FIFOWithinQueue(t *testing.T) {
	q := New()
	for _, c := range []string{"one", "two", "three"} {
		q.EnqueueEvent(userMsg(c))
	}

	ctx := context.Background()
	var got []string
	var lastSeq uint64
	for i := 0; i < 3; i++ {
		item, err := q.Next(ctx)
		require.NoError(t, err)
		got = append(got, item.Event.(events.UserMessageReceived).Message.Content)
		assert.Greater(t, item.Seq, lastSeq)
		lastSeq = item.Seq
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestManager_FreshScanEachCall(t *testing.T) {
	q := New()
	q.EnqueueEvent(events.AgentIdle{})
	q.EnqueueEvent(events.AgentReady{})

	ctx := context.Background()
	first, err := q.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, events.KindAgentIdle, first.Event.Kind())

	q.EnqueueEvent(userMsg("urgent"))

	second, err := q.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, UserMessage, second.Queue)
}

func TestManager_NextBlocksUntilEnqueue(t *testing.T) {
	q := New()

	result := make(chan Item, 1)
	go func() {
		item, err := q.Next(context.Background())
		if err == nil {
			result <- item
		}
	}()

	assert.Eventually(t, func() bool { return q.waiting() == 1 }, time.Second, time.Millisecond)

	select {
	case <-result:
		t.Fatal("Next returned before anything was enqueued")
	default:
	}

	q.EnqueueEvent(events.ToolResult{InvocationID: "x"})

	select {
	case item := <-result:
		assert.Equal(t, ToolResult, item.Queue)
	case <-time.After(time.Second):
		t.Fatal("Next was not woken by enqueue")
	}
}

func TestManager_NextCancelled(t *testing.T) {
	q := New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, q.waiting())
}

func TestManager_NextInternalIgnoresOtherQueues(t *testing.T) {
	q := New()
	q.EnqueueEvent(userMsg("later"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.NextInternal(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	q.EnqueueEvent(events.BootstrapStepRequested{Index: 0})
	item, err := q.NextInternal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, events.KindBootstrapStepRequested, item.Event.Kind())
	assert.Equal(t, 1, q.Len(UserMessage))
}

func TestManager_NextInternalWokenOnlyByInternal(t *testing.T) {
	q := New()

	result := make(chan Item, 1)
	go func() {
		item, err := q.NextInternal(context.Background())
		if err == nil {
			result <- item
		}
	}()
	assert.Eventually(t, func() bool { return q.waiting() == 1 }, time.Second, time.Millisecond)

	q.EnqueueEvent(userMsg("ignored"))
	assert.Equal(t, 1, q.waiting())

	q.EnqueueEvent(events.AgentReady{})
	select {
	case item := <-result:
		assert.Equal(t, Internal, item.Queue)
	case <-time.After(time.Second):
		t.Fatal("NextInternal was not woken")
	}
	assert.Equal(t, 1, q.Len(UserMessage))
}

func TestManager_InternalPrefersInternalWaiter(t *testing.T) {
	q := New()

	general := make(chan Item, 1)
	internal := make(chan Item, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if item, err := q.Next(ctx); err == nil {
			general <- item
		}
	}()
	assert.Eventually(t, func() bool { return q.waiting() == 1 }, time.Second, time.Millisecond)
	go func() {
		if item, err := q.NextInternal(ctx); err == nil {
			internal <- item
		}
	}()
	assert.Eventually(t, func() bool { return q.waiting() == 2 }, time.Second, time.Millisecond)

	q.EnqueueEvent(events.AgentReady{})
	select {
	case item := <-internal:
		assert.Equal(t, events.KindAgentReady, item.Event.Kind())
	case <-time.After(time.Second):
		t.Fatal("internal waiter was not preferred")
	}

	q.EnqueueEvent(userMsg("hi"))
	select {
	case item := <-general:
		assert.Equal(t, UserMessage, item.Queue)
	case <-time.After(time.Second):
		t.Fatal("general waiter was not woken")
	}
}

func TestManager_ConcurrentProducers(t *testing.T) {
	q := New()
	const producers, perProducer = 8, 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.EnqueueEvent(events.ToolResult{InvocationID: "x"})
			}
		}()
	}

	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for received < producers*perProducer {
			if _, err := q.Next(context.Background()); err != nil {
				return
			}
			received++
		}
	}()

	wg.Wait()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain all events")
	}
	assert.Equal(t, producers*perProducer, received)
	assert.Equal(t, 0, q.Pending())
}

func TestManager_TryNextAndStats(t *testing.T) {
	q := New()

	_, ok := q.TryNext()
	assert.False(t, ok)

	q.EnqueueEvent(events.ToolExecutionApproval{})
	q.Enqueue(QueueKind(42), userMsg("misrouted"))

	stats := q.Stats()
	assert.Equal(t, 1, stats["tool_approval"])
	assert.Equal(t, 1, stats["user_message"])

	_, ok = q.TryNextInternal()
	assert.False(t, ok)

	item, ok := q.TryNext()
	require.True(t, ok)
	assert.Equal(t, UserMessage, item.Queue)
}
