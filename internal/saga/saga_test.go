package saga

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestExecute_AllStepsSucceed(t *testing.T) {
	var order []string

	s := New("test", testLogger()).
		AddStep(&Step{
			Name: "first",
			Run: func(ctx context.Context) error {
				order = append(order, "first")
				return nil
			},
			Compensate: func(ctx context.Context) error {
				order = append(order, "undo-first")
				return nil
			},
		}).
		AddStep(&Step{
			Name: "second",
			Run: func(ctx context.Context) error {
				order = append(order, "second")
				return nil
			},
		})

	err := s.Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, StepCompleted, s.Steps()[0].Status())
	assert.Equal(t, StepCompleted, s.Steps()[1].Status())
}

func TestExecute_FirstStepFails_NoCompensation(t *testing.T) {
	compensated := false

	s := New("test", testLogger()).
		AddStep(&Step{
			Name: "first",
			Run: func(ctx context.Context) error {
				return errors.New("boom")
			},
			Compensate: func(ctx context.Context) error {
				compensated = true
				return nil
			},
		})

	err := s.Execute(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "step first")
	assert.False(t, compensated, "a failed step must not compensate itself")
	assert.Equal(t, StepFailed, s.Steps()[0].Status())
}

func TestExecute_LaterFailure_CompensatesInReverseOrder(t *testing.T) {
	var order []string

	s := New("test", testLogger()).
		AddStep(&Step{
			Name: "a",
			Run:  func(ctx context.Context) error { order = append(order, "a"); return nil },
			Compensate: func(ctx context.Context) error {
				order = append(order, "undo-a")
				return nil
			},
		}).
		AddStep(&Step{
			Name: "b",
			Run:  func(ctx context.Context) error { order = append(order, "b"); return nil },
			Compensate: func(ctx context.Context) error {
				order = append(order, "undo-b")
				return nil
			},
		}).
		AddStep(&Step{
			Name: "c",
			Run:  func(ctx context.Context) error { return errors.New("c failed") },
		})

	err := s.Execute(context.Background())

	require.Error(t, err)
	assert.Equal(t, []string{"a", "b", "undo-b", "undo-a"}, order)
	assert.Equal(t, StepCompensated, s.Steps()[0].Status())
	assert.Equal(t, StepCompensated, s.Steps()[1].Status())
	assert.Equal(t, StepFailed, s.Steps()[2].Status())
}

func TestExecute_NilCompensationSkipped(t *testing.T) {
	var order []string

	s := New("test", testLogger()).
		AddStep(&Step{
			Name: "ingest",
			Run:  func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error {
				order = append(order, "undo-ingest")
				return nil
			},
		}).
		AddStep(&Step{
			Name: "refresh",
			Run:  func(ctx context.Context) error { return nil },
			// idempotent recompute, nothing to undo
		}).
		AddStep(&Step{
			Name: "emit",
			Run:  func(ctx context.Context) error { return errors.New("broker down") },
		})

	err := s.Execute(context.Background())

	require.Error(t, err)
	assert.Equal(t, []string{"undo-ingest"}, order)
}

func TestExecute_CompensationFailureDoesNotStopUnwinding(t *testing.T) {
	var order []string

	s := New("test", testLogger()).
		AddStep(&Step{
			Name: "a",
			Run:  func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error {
				order = append(order, "undo-a")
				return nil
			},
		}).
		AddStep(&Step{
			Name: "b",
			Run:  func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error {
				order = append(order, "undo-b")
				return errors.New("undo failed")
			},
		}).
		AddStep(&Step{
			Name: "c",
			Run:  func(ctx context.Context) error { return errors.New("c failed") },
		})

	err := s.Execute(context.Background())

	require.Error(t, err)
	// The forward error is returned, not the compensation error.
	assert.Contains(t, err.Error(), "c failed")
	assert.Equal(t, []string{"undo-b", "undo-a"}, order)
	assert.Equal(t, StepFailed, s.Steps()[1].Status())
	assert.Equal(t, "undo failed", s.Steps()[1].Err())
	assert.Equal(t, StepCompensated, s.Steps()[0].Status())
}

func TestExecute_EmptySaga(t *testing.T) {
	assert.NoError(t, New("empty", testLogger()).Execute(context.Background()))
}
