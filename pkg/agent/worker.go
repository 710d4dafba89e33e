package agent

import (
	"context"
	"errors"
	"time"

	"github.com/harun/agentcore/internal/observability"
	"github.com/harun/agentcore/pkg/eventqueue"
	"github.com/harun/agentcore/pkg/events"
	"github.com/harun/agentcore/pkg/status"
)

// run is the single worker goroutine. Until bootstrap finishes it only reads
// the internal queue, so external input waits for an initialized agent.
func (a *Agent) run(ctx context.Context) {
	defer close(a.done)
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Interface("panic", r).Msg("Agent worker crashed")
		}
	}()

	a.logger.Info().Msg("Agent worker started")
	a.queue.EnqueueEvent(events.BootstrapStarted{})

	for {
		var (
			item eventqueue.Item
			err  error
		)
		switch a.deriver.Current() {
		case status.Uninitialized, status.Bootstrapping:
			item, err = a.queue.NextInternal(ctx)
		default:
			item, err = a.queue.Next(ctx)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				a.logger.Info().Str("status", a.deriver.Current().String()).Msg("Agent worker cancelled")
			} else {
				a.logger.Error().Err(err).Msg("Agent worker failed to dequeue")
			}
			return
		}

		a.process(ctx, item)
		if item.Event.Kind() == events.KindAgentStopped {
			a.logger.Info().Msg("Agent worker exited")
			return
		}
	}
}

// process derives the status change for one event, publishes it, and runs
// the event's handler.
func (a *Agent) process(ctx context.Context, item eventqueue.Item) {
	ev := item.Event
	old, current := a.deriver.Apply(ev, status.Options{AutoExecuteTools: a.cfg.AutoExecuteTools})
	a.actx.oldStatus, a.actx.newStatus = old, current

	a.events.add(EventRecord{
		Seq:       item.Seq,
		Kind:      ev.Kind(),
		Queue:     item.Queue.String(),
		At:        time.Now(),
		OldStatus: old,
		NewStatus: current,
	})

	if old != current {
		a.logger.Debug().
			Str("from", old.String()).
			Str("to", current.String()).
			Str("event", string(ev.Kind())).
			Msg("Status changed")
		observability.RecordStatusTransition(old.String(), current.String())
		if a.notifier != nil {
			a.notifier.NotifyStatusChange(current, old, status.Payload(ev))
		}
		a.signalStatus()
	}

	a.dispatch(ctx, ev)
}
