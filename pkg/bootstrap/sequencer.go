package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/harun/agentcore/internal/observability"
	"github.com/harun/agentcore/pkg/events"
	"github.com/rs/zerolog"
)

// ErrNoEmitter is returned by NewSequencer when no emitter is supplied.
var ErrNoEmitter = errors.New("bootstrap emitter is required")

// Step is one named unit of agent startup. C is the shared agent context the
// step may read and mutate.
type Step[C any] interface {
	Name() string
	Execute(ctx context.Context, c C) error
}

// StepFunc adapts a function to Step.
type StepFunc[C any] struct {
	StepName string
	Fn       func(ctx context.Context, c C) error
}

func (s StepFunc[C]) Name() string { return s.StepName }

func (s StepFunc[C]) Execute(ctx context.Context, c C) error {
	if s.Fn == nil {
		return nil
	}
	return s.Fn(ctx, c)
}

// Emitter accepts the events the sequencer produces.
type Emitter interface {
	EnqueueEvent(ev events.Event)
}

// Sequencer drives the bootstrap protocol.
type Sequencer[C any] struct {
	steps   []Step[C]
	emitter Emitter
	logger  zerolog.Logger
}

// NewSequencer creates a sequencer over steps. steps may be empty.
func NewSequencer[C any](steps []Step[C], emitter Emitter, logger ...zerolog.Logger) (*Sequencer[C], error) {
	if emitter == nil {
		return nil, ErrNoEmitter
	}
	l := zerolog.Nop()
	if len(logger) > 0 {
		l = logger[0]
	}
	return &Sequencer[C]{
		steps:   steps,
		emitter: emitter,
		logger:  l.With().Str("component", "bootstrap").Logger(),
	}, nil
}

// Steps returns the configured step names in order.
func (s *Sequencer[C]) Steps() []string {
	names := make([]string, len(s.steps))
	for i, st := range s.steps {
		names[i] = st.Name()
	}
	return names
}

// Handles reports whether ev belongs to the bootstrap protocol.
func Handles(ev events.Event) bool {
	switch ev.(type) {
	case events.BootstrapStarted, events.BootstrapStepRequested,
		events.BootstrapStepCompleted, events.BootstrapCompleted:
		return true
	}
	return false
}

// Handle advances the protocol for one bootstrap event. Other events are ignored.
func (s *Sequencer[C]) Handle(ctx context.Context, c C, ev events.Event) {
	switch e := ev.(type) {
	case events.BootstrapStarted:
		s.onStarted()
	case events.BootstrapStepRequested:
		s.onStepRequested(ctx, c, e)
	case events.BootstrapStepCompleted:
		s.onStepCompleted(e)
	case events.BootstrapCompleted:
		s.onCompleted(e)
	}
}

func (s *Sequencer[C]) onStarted() {
	s.logger.Info().Int("steps", len(s.steps)).Msg("Bootstrap started")
	if len(s.steps) == 0 {
		s.emitter.EnqueueEvent(events.BootstrapCompleted{Success: true})
		return
	}
	s.emitter.EnqueueEvent(events.BootstrapStepRequested{Index: 0})
}

func (s *Sequencer[C]) onStepRequested(ctx context.Context, c C, e events.BootstrapStepRequested) {
	if e.Index < 0 || e.Index >= len(s.steps) {
		msg := fmt.Sprintf("bootstrap step index %d out of range (have %d steps)", e.Index, len(s.steps))
		s.logger.Error().Int("index", e.Index).Msg(msg)
		s.emitter.EnqueueEvent(events.AgentError{Message: msg, Details: "invalid bootstrap configuration"})
		s.emitter.EnqueueEvent(events.BootstrapCompleted{Success: false, Error: msg})
		return
	}

	step := s.steps[e.Index]
	name := step.Name()
	start := time.Now()
	err := s.runStep(ctx, step, c)
	duration := time.Since(start)
	observability.RecordBootstrapStep(name, duration, err == nil)

	completed := events.BootstrapStepCompleted{Index: e.Index, StepName: name, Success: err == nil}
	if err != nil {
		completed.Error = err.Error()
		s.logger.Error().Err(err).Int("index", e.Index).Str("step", name).Dur("duration", duration).Msg("Bootstrap step failed")
	} else {
		s.logger.Debug().Int("index", e.Index).Str("step", name).Dur("duration", duration).Msg("Bootstrap step completed")
	}
	s.emitter.EnqueueEvent(completed)
}

func (s *Sequencer[C]) onStepCompleted(e events.BootstrapStepCompleted) {
	if !e.Success {
		msg := e.Error
		if msg == "" {
			msg = fmt.Sprintf("bootstrap step %q failed", e.StepName)
		}
		s.emitter.EnqueueEvent(events.BootstrapCompleted{Success: false, Error: msg})
		return
	}
	if next := e.Index + 1; next < len(s.steps) {
		s.emitter.EnqueueEvent(events.BootstrapStepRequested{Index: next})
		return
	}
	s.emitter.EnqueueEvent(events.BootstrapCompleted{Success: true})
}

func (s *Sequencer[C]) onCompleted(e events.BootstrapCompleted) {
	if !e.Success {
		s.logger.Error().Str("error", e.Error).Msg("Bootstrap failed")
		s.emitter.EnqueueEvent(events.AgentError{Message: "bootstrap failed", Details: e.Error})
		return
	}
	s.logger.Info().Msg("Bootstrap completed")
	s.emitter.EnqueueEvent(events.AgentReady{})
}

func (s *Sequencer[C]) runStep(ctx context.Context, step Step[C], c C) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("step", step.Name()).Bytes("stack", debug.Stack()).Msg("Bootstrap step panicked")
			err = fmt.Errorf("step %s panicked: %v", step.Name(), r)
		}
	}()
	return step.Execute(ctx, c)
}
