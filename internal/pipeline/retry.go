package pipeline

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds retries of provider-overload failures. Non-overload
// failures are never retried automatically.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy matches the configured defaults
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    8 * time.Second,
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultRetryPolicy.MaxDelay
	}
	return p
}

// RunWithRetry invokes the adapter, retrying the same invocation with
// exponential backoff on provider overload. The view is built once by the
// caller, so every attempt reuses the exact request; a successful retry
// therefore yields exactly one fragment.
func (a *Adapter) RunWithRetry(ctx context.Context, view *StageView, cfg ModelConfig, policy RetryPolicy) (*StageResult, error) {
	p := policy.normalized()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		res, err := a.Run(ctx, view, cfg)
		if err == nil {
			res.Attempts = attempt
			return res, nil
		}

		var overload *ProviderOverloadError
		if !errors.As(err, &overload) {
			return nil, err
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}

		delay := p.BaseDelay << uint(attempt-1)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}
