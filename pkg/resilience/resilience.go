package resilience

import (
	"context"
	"errors"
	"net"
	"time"

	apperrors "urut/pkg/errors"
	"urut/pkg/logger"

	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/mongo"
)

// Executor guards every document-store call with bounded exponential-backoff
// retries and a circuit breaker. Only transient failures (timeouts,
// connectivity, server-side errors) are retried; validation, conflict and
// not-found errors propagate immediately and do not count against the
// breaker.
type Executor struct {
	breaker     *gobreaker.CircuitBreaker
	maxAttempts int
	baseDelay   time.Duration
	log         *logger.Logger
}

type Settings struct {
	Name             string
	MaxAttempts      int
	BaseDelay        time.Duration
	FailureThreshold int
	Cooldown         time.Duration
}

func NewExecutor(s Settings, log *logger.Logger) *Executor {
	threshold := uint32(s.FailureThreshold)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1, // half-open allows a single trial call
		Timeout:     s.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Executor{
		breaker:     breaker,
		maxAttempts: s.MaxAttempts,
		baseDelay:   s.BaseDelay,
		log:         log,
	}
}

// Do runs fn under the breaker and retry policy. When the breaker is open
// the call fails fast with a SERVICE_UNAVAILABLE error and fn is never
// invoked.
func (e *Executor) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := e.breaker.Execute(func() (any, error) {
		return nil, e.withRetries(ctx, op, fn)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		e.log.Warn("Store call rejected by open circuit breaker", "operation", op)
		return apperrors.UnavailableWith("booking store", err)
	}
	return err
}

func (e *Executor) withRetries(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(uint64(e.maxAttempts-1), retry.NewExponential(e.baseDelay))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		e.log.Warn("Transient store error, will retry",
			"operation", op,
			"attempt", attempt,
			"max_attempts", e.maxAttempts,
			"error", err,
		)
		return retry.RetryableError(err)
	})
}

// IsTransient classifies an error as retryable. Anything already shaped as
// an application error is a business outcome, not a store fault.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if apperrors.IsAppError(err) {
		return false
	}
	if mongo.IsDuplicateKeyError(err) || errors.Is(err, mongo.ErrNoDocuments) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var srvErr mongo.ServerError
	if errors.As(err, &srvErr) {
		// Server-side faults with a retryable label are worth another
		// attempt; schema and query rejections are not.
		return srvErr.HasErrorLabel("RetryableWriteError") || srvErr.HasErrorLabel("TransientTransactionError")
	}
	return false
}
