package conn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashita-ai/vitrine/internal/connlog"
	"github.com/ashita-ai/vitrine/internal/model"
	"github.com/ashita-ai/vitrine/internal/transport"
)

// RetryPolicy bounds WithRetry.
type RetryPolicy struct {
	MaxRetries int           // total attempts, including the first
	Delay      time.Duration // wait after the first failure; doubles each time
}

// DefaultRetryPolicy is three attempts with 1s and 2s waits between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, Delay: time.Second}
}

// WithRetry runs op until it succeeds or the policy is exhausted. After the
// n-th failure it waits Delay*2^(n-1). Validation, not-found and
// invalid-input errors are permanent and return immediately.
// The wait honors ctx; a cancelled ctx ends the sequence early.
func WithRetry[T any](ctx context.Context, log *connlog.Logger, name string, policy RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if policy.MaxRetries < 1 {
		policy.MaxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxRetries; attempt++ {
		v, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info(connlog.CategoryRetry, fmt.Sprintf("%s recovered", name), map[string]any{
					"operation": name,
					"attempts":  attempt,
				})
			}
			return v, nil
		}
		if permanent(err) {
			return zero, err
		}
		lastErr = err
		if attempt == policy.MaxRetries {
			break
		}

		delay := policy.Delay << (attempt - 1)
		log.Warn(connlog.CategoryRetry, fmt.Sprintf("%s failed, retrying", name), map[string]any{
			"operation": name,
			"attempt":   attempt,
			"delay":     delay.String(),
			"error":     err.Error(),
		})
		if err := sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("%s interrupted after %d attempts: %w (last error: %v)", name, attempt, err, lastErr)
		}
	}

	log.Error(connlog.CategoryRetry, fmt.Sprintf("%s failed after %d attempts", name, policy.MaxRetries), lastErr, map[string]any{
		"operation": name,
		"attempts":  policy.MaxRetries,
		"errorCode": codeOrUnknown(lastErr),
	})
	return zero, fmt.Errorf("%s failed after %d attempts: %w", name, policy.MaxRetries, lastErr)
}

func permanent(err error) bool {
	return errors.Is(err, model.ErrValidation) ||
		errors.Is(err, transport.ErrNotFound) ||
		errors.Is(err, transport.ErrInvalidInput)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func codeOrUnknown(err error) string {
	if code := ErrorCode(err); code != "" {
		return code
	}
	return "unknown"
}
