package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"ecovolt/pkg/logger"
)

type trace struct {
	calls []string
}

func record(name string) func(ctx context.Context, s *trace) error {
	return func(ctx context.Context, s *trace) error {
		s.calls = append(s.calls, name)
		return nil
	}
}

func TestRun_AllStepsSucceed(t *testing.T) {
	f := New("ok", logger.Discard(),
		Step[trace]{Name: "a", Execute: record("a"), Compensate: record("undo-a")},
		Step[trace]{Name: "b", Execute: record("b")},
	)

	var s trace
	if err := f.Run(context.Background(), &s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(s.calls); got != 2 || s.calls[0] != "a" || s.calls[1] != "b" {
		t.Errorf("unexpected calls: %v", s.calls)
	}
}

func TestRun_CompensatesInReverseOrder(t *testing.T) {
	boom := errors.New("boom")
	f := New("fail", logger.Discard(),
		Step[trace]{Name: "a", Execute: record("a"), Compensate: record("undo-a")},
		Step[trace]{Name: "b", Execute: record("b"), Compensate: record("undo-b")},
		Step[trace]{Name: "c", Execute: func(ctx context.Context, s *trace) error { return boom }, Compensate: record("undo-c")},
	)

	var s trace
	err := f.Run(context.Background(), &s)

	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Step != "c" {
		t.Errorf("expected StepError for step c, got %v", err)
	}

	want := []string{"a", "b", "undo-b", "undo-a"}
	if len(s.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", s.calls, want)
	}
	for i := range want {
		if s.calls[i] != want[i] {
			t.Errorf("calls[%d] = %s, want %s", i, s.calls[i], want[i])
		}
	}
}

func TestRun_CompensationSurvivesCancelledCaller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var compensateErr error
	f := New("cancel", logger.Discard(),
		Step[trace]{
			Name:    "claim",
			Execute: record("claim"),
			Compensate: func(ctx context.Context, s *trace) error {
				compensateErr = ctx.Err()
				return nil
			},
		},
		Step[trace]{
			Name: "commit",
			Execute: func(ctx context.Context, s *trace) error {
				cancel()
				return ctx.Err()
			},
		},
	)

	var s trace
	if err := f.Run(ctx, &s); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if compensateErr != nil {
		t.Errorf("compensation ran on a cancelled context: %v", compensateErr)
	}
}

func TestRun_RetriesTransientErrors(t *testing.T) {
	transient := errors.New("transient")
	attempts := 0

	f := New("retry", logger.Discard(),
		Step[trace]{
			Name: "commit",
			Execute: func(ctx context.Context, s *trace) error {
				attempts++
				if attempts < 3 {
					return transient
				}
				return nil
			},
			Attempts:  3,
			Retryable: func(err error) bool { return errors.Is(err, transient) },
		},
	)

	var s trace
	if err := f.Run(context.Background(), &s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRun_DoesNotRetryPermanentErrors(t *testing.T) {
	permanent := errors.New("permanent")
	attempts := 0

	f := New("no-retry", logger.Discard(),
		Step[trace]{
			Name: "claim",
			Execute: func(ctx context.Context, s *trace) error {
				attempts++
				return permanent
			},
			Attempts:  5,
			Retryable: func(err error) bool { return false },
		},
	)

	var s trace
	_ = f.Run(context.Background(), &s)
	if attempts != 1 {
		t.Errorf("expected a single attempt, got %d", attempts)
	}
}

func TestRun_BoundedByCompensationTimeout(t *testing.T) {
	f := New("slow-undo", logger.Discard(),
		Step[trace]{
			Name:    "a",
			Execute: record("a"),
			Compensate: func(ctx context.Context, s *trace) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
		Step[trace]{Name: "b", Execute: func(ctx context.Context, s *trace) error { return errors.New("x") }},
	).WithCompensationTimeout(20 * time.Millisecond)

	start := time.Now()
	var s trace
	_ = f.Run(context.Background(), &s)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("compensation was not bounded, took %s", elapsed)
	}
}
