package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wavefrontHQ/newrelic/internal/domain"
)

var (
	errTransient = errors.New("transient")
	errFatal     = errors.New("fatal")
)

func isTransient(err error) bool {
	return errors.Is(err, errTransient)
}

func makeOp(steps []error) (func() error, *int) {
	attempt := 0
	return func() error {
		defer func() { attempt++ }()
		idx := attempt
		if idx >= len(steps) {
			idx = len(steps) - 1
		}
		return steps[idx]
	}, &attempt
}

func TestPolicy_Do(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name         string
		policy       Policy
		steps        []error
		cancelBefore bool
		wantAttempts int
		wantErrCheck func(error) bool
	}{
		{
			name:         "success_immediate",
			policy:       Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Classify: isTransient},
			steps:        []error{nil},
			wantAttempts: 1,
			wantErrCheck: func(err error) bool { return err == nil },
		},
		{
			name:         "fatal_invokes_once",
			policy:       Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, Classify: isTransient},
			steps:        []error{errFatal},
			wantAttempts: 1,
			wantErrCheck: func(err error) bool { return errors.Is(err, errFatal) },
		},
		{
			name:         "all_failures_fatal_classifier",
			policy:       Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, Classify: func(error) bool { return false }},
			steps:        []error{errTransient},
			wantAttempts: 1,
			wantErrCheck: func(err error) bool { return errors.Is(err, errTransient) },
		},
		{
			name:         "success_after_two_retries",
			policy:       Policy{MaxAttempts: 4, BaseDelay: time.Millisecond, Classify: isTransient},
			steps:        []error{errTransient, errTransient, nil},
			wantAttempts: 3,
			wantErrCheck: func(err error) bool { return err == nil },
		},
		{
			name:         "exhausted_returns_last_error",
			policy:       Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Classify: isTransient},
			steps:        []error{errTransient},
			wantAttempts: 3,
			wantErrCheck: func(err error) bool { return errors.Is(err, errTransient) },
		},
		{
			name:         "fatal_midway_stops",
			policy:       Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, Classify: isTransient},
			steps:        []error{errTransient, errFatal},
			wantAttempts: 2,
			wantErrCheck: func(err error) bool { return errors.Is(err, errFatal) },
		},
		{
			name:         "nil_classifier_never_retries",
			policy:       Policy{MaxAttempts: 5, BaseDelay: time.Millisecond},
			steps:        []error{errTransient},
			wantAttempts: 1,
			wantErrCheck: func(err error) bool { return errors.Is(err, errTransient) },
		},
		{
			name:         "canceled_before_start",
			policy:       Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Classify: isTransient},
			steps:        []error{errTransient},
			cancelBefore: true,
			wantAttempts: 0,
			wantErrCheck: func(err error) bool { return errors.Is(err, domain.ErrCanceled) },
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			if tc.cancelBefore {
				var cancel context.CancelFunc
				ctx, cancel = context.WithCancel(ctx)
				cancel()
			}

			op, attempts := makeOp(tc.steps)
			err := tc.policy.Do(ctx, op)

			if !tc.wantErrCheck(err) {
				t.Fatalf("unexpected error: %v", err)
			}
			if *attempts != tc.wantAttempts {
				t.Fatalf("attempts=%d want %d", *attempts, tc.wantAttempts)
			}
		})
	}
}

func TestPolicy_CanceledDuringBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	p := Policy{MaxAttempts: 3, BaseDelay: time.Second, Classify: isTransient}
	op, attempts := makeOp([]error{errTransient})

	err := p.Do(ctx, op)
	if !errors.Is(err, domain.ErrCanceled) {
		t.Fatalf("want ErrCanceled, got %v", err)
	}
	if *attempts != 1 {
		t.Fatalf("attempts=%d want 1", *attempts)
	}
}

func TestPolicy_DelayGrowth(t *testing.T) {
	t.Parallel()

	p := Policy{BaseDelay: time.Second, MaxDelay: 10 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	for i, w := range want {
		if got := p.delay(i + 1); got != w {
			t.Errorf("delay(%d)=%v want %v", i+1, got, w)
		}
	}
}
