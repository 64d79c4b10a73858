// Package saga provides a small compensating-transaction runner: an ordered
// list of forward actions, each optionally paired with a compensation that
// undoes it. When a forward action fails, the compensations of all
// previously completed steps run in reverse order. Compensation failures are
// terminal: they are logged and surfaced through the step state, but no
// deeper rollback exists.
package saga

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Step status constants.
const (
	StepPending     = "pending"
	StepCompleted   = "completed"
	StepFailed      = "failed"
	StepCompensated = "compensated"
)

// Action is a forward or compensating action executed within a saga.
type Action func(ctx context.Context) error

// Step is a named forward action with an optional compensation. A nil
// Compensate means the step needs no undo (e.g. an idempotent recompute).
type Step struct {
	Name       string
	Run        Action
	Compensate Action

	status     string
	err        string
	executedAt time.Time
}

// Status returns the step's current execution status.
func (s *Step) Status() string {
	if s.status == "" {
		return StepPending
	}
	return s.status
}

// Err returns the recorded error message, if any.
func (s *Step) Err() string {
	return s.err
}

func (s *Step) complete() {
	s.status = StepCompleted
	s.executedAt = time.Now().UTC()
}

func (s *Step) fail(err error) {
	s.status = StepFailed
	s.err = err.Error()
	s.executedAt = time.Now().UTC()
}

func (s *Step) compensated() {
	s.status = StepCompensated
	s.executedAt = time.Now().UTC()
}

// Saga executes steps in order with rollback-on-failure semantics.
type Saga struct {
	name   string
	steps  []*Step
	logger *slog.Logger
}

// New creates a saga with the given name for logging.
func New(name string, logger *slog.Logger) *Saga {
	return &Saga{name: name, logger: logger}
}

// AddStep appends a step to the saga and returns the saga for chaining.
func (s *Saga) AddStep(step *Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Steps returns the saga's steps with their execution state.
func (s *Saga) Steps() []*Step {
	return s.steps
}

// Execute runs all steps in order. On the first forward failure it runs the
// compensations of every previously completed step in reverse order, then
// returns the forward error. Compensation errors do not mask the forward
// error; they are logged and leave the step in the failed state.
func (s *Saga) Execute(ctx context.Context) error {
	for i, step := range s.steps {
		if err := step.Run(ctx); err != nil {
			step.fail(err)
			s.logger.ErrorContext(ctx, "saga step failed",
				slog.String("saga", s.name),
				slog.String("step", step.Name),
				slog.String("error", err.Error()),
			)
			s.compensate(ctx, i-1)
			return fmt.Errorf("%s: step %s: %w", s.name, step.Name, err)
		}
		step.complete()
	}
	return nil
}

// compensate runs compensations for steps [0..from] in reverse order.
func (s *Saga) compensate(ctx context.Context, from int) {
	for i := from; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}

		if err := step.Compensate(ctx); err != nil {
			// No deeper rollback is defined; record and keep unwinding the
			// remaining steps.
			step.fail(err)
			s.logger.ErrorContext(ctx, "saga compensation failed",
				slog.String("saga", s.name),
				slog.String("step", step.Name),
				slog.String("error", err.Error()),
			)
			continue
		}

		step.compensated()
		s.logger.InfoContext(ctx, "saga step compensated",
			slog.String("saga", s.name),
			slog.String("step", step.Name),
		)
	}
}
