package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecovolt/pkg/logger"
)

const DefaultCompensationTimeout = 10 * time.Second

// Step is one unit of a flow. Compensate, when set, undoes the effect of a
// step that completed before a later step failed.
type Step[S any] struct {
	Name       string
	Execute    func(ctx context.Context, state *S) error
	Compensate func(ctx context.Context, state *S) error

	// Attempts bounds how many times Execute runs while Retryable reports
	// the error as transient. Zero or one means no retry.
	Attempts  int
	Retryable func(err error) bool
}

// StepError identifies the step that stopped a flow.
type StepError struct {
	Flow string
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: step %s failed: %v", e.Flow, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type Flow[S any] struct {
	name                string
	steps               []Step[S]
	log                 *logger.Logger
	compensationTimeout time.Duration
}

func New[S any](name string, log *logger.Logger, steps ...Step[S]) *Flow[S] {
	return &Flow[S]{
		name:                name,
		steps:               steps,
		log:                 log,
		compensationTimeout: DefaultCompensationTimeout,
	}
}

func (f *Flow[S]) WithCompensationTimeout(d time.Duration) *Flow[S] {
	if d > 0 {
		f.compensationTimeout = d
	}
	return f
}

func (f *Flow[S]) Name() string {
	return f.name
}

// Run executes the steps in order. On the first failure the compensations of
// every completed step run in reverse order on a context that survives the
// caller's cancellation, so a timed-out request still rolls back.
func (f *Flow[S]) Run(ctx context.Context, state *S) error {
	done := make([]Step[S], 0, len(f.steps))

	for _, step := range f.steps {
		if err := ctx.Err(); err != nil {
			f.compensate(ctx, state, done)
			return &StepError{Flow: f.name, Step: step.Name, Err: err}
		}

		if err := f.execute(ctx, step, state); err != nil {
			f.compensate(ctx, state, done)
			return &StepError{Flow: f.name, Step: step.Name, Err: err}
		}
		done = append(done, step)
	}
	return nil
}

func (f *Flow[S]) execute(ctx context.Context, step Step[S], state *S) error {
	attempts := max(step.Attempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = step.Execute(ctx, state)
		if err == nil {
			return nil
		}
		if step.Retryable == nil || !step.Retryable(err) || ctx.Err() != nil {
			return err
		}
		if attempt < attempts {
			f.log.Warn("Retrying flow step",
				"flow", f.name,
				"step", step.Name,
				"attempt", attempt,
				"error", err,
			)
			if !sleep(ctx, backoff(attempt)) {
				return errors.Join(err, ctx.Err())
			}
		}
	}
	return err
}

func (f *Flow[S]) compensate(ctx context.Context, state *S, done []Step[S]) {
	if len(done) == 0 {
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.compensationTimeout)
	defer cancel()

	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(cctx, state); err != nil {
			f.log.Error("Flow compensation failed",
				"flow", f.name,
				"step", step.Name,
				"error", err,
			)
		}
	}
}

func backoff(attempt int) time.Duration {
	return time.Duration(attempt) * 25 * time.Millisecond
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
