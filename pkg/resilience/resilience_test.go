package resilience

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	apperrors "urut/pkg/errors"
	"urut/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
)

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "connection reset" }
func (fakeNetError) Timeout() bool   { return true }
func (fakeNetError) Temporary() bool { return true }

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Output: io.Discard})
}

func newTestExecutor(maxAttempts, failureThreshold int) *Executor {
	return NewExecutor(Settings{
		Name:             "test-store",
		MaxAttempts:      maxAttempts,
		BaseDelay:        time.Millisecond,
		FailureThreshold: failureThreshold,
		Cooldown:         time.Minute,
	}, testLogger())
}

func TestDoRetriesTransientErrors(t *testing.T) {
	executor := newTestExecutor(3, 10)

	attempts := 0
	err := executor.Do(context.Background(), "test.op", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return fakeNetError{}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	executor := newTestExecutor(3, 10)

	attempts := 0
	err := executor.Do(context.Background(), "test.op", func(ctx context.Context) error {
		attempts++
		return fakeNetError{}
	})

	if err == nil {
		t.Fatal("expected an error")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	executor := newTestExecutor(3, 10)
	permanent := errors.New("booking not found")

	attempts := 0
	err := executor.Do(context.Background(), "test.op", func(ctx context.Context) error {
		attempts++
		return permanent
	})

	if !errors.Is(err, permanent) {
		t.Fatalf("expected the permanent error back, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("permanent errors must not retry, got %d attempts", attempts)
	}
}

func TestBreakerOpensAfterConsecutiveTransientFailures(t *testing.T) {
	executor := newTestExecutor(1, 2)

	for i := 0; i < 2; i++ {
		err := executor.Do(context.Background(), "test.op", func(ctx context.Context) error {
			return fakeNetError{}
		})
		if err == nil {
			t.Fatal("expected an error")
		}
	}

	invoked := false
	err := executor.Do(context.Background(), "test.op", func(ctx context.Context) error {
		invoked = true
		return nil
	})

	if invoked {
		t.Error("an open breaker must fail fast without invoking the call")
	}
	if !apperrors.IsCode(err, apperrors.CodeUnavailable) {
		t.Errorf("expected SERVICE_UNAVAILABLE, got %v", err)
	}
}

func TestPermanentErrorsDoNotTripBreaker(t *testing.T) {
	executor := newTestExecutor(1, 2)
	permanent := errors.New("illegal lifecycle transition")

	for i := 0; i < 5; i++ {
		_ = executor.Do(context.Background(), "test.op", func(ctx context.Context) error {
			return permanent
		})
	}

	invoked := false
	err := executor.Do(context.Background(), "test.op", func(ctx context.Context) error {
		invoked = true
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !invoked {
		t.Error("business errors must not open the breaker")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network error", fakeNetError{}, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, false},
		{"no documents", mongo.ErrNoDocuments, false},
		{"application error", apperrors.Conflict("already accepted"), false},
		{"plain error", errors.New("illegal lifecycle transition"), false},
		{"wrapped network error", &wrapped{fakeNetError{}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

type wrapped struct{ err error }

func (w *wrapped) Error() string { return "store call failed: " + w.err.Error() }
func (w *wrapped) Unwrap() error { return w.err }
