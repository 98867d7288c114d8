// internal/drivers/retry.go
package drivers

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy retries transient driver failures with exponential backoff.
type RetryPolicy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	jitter       bool
	logger       *zap.Logger
}

type RetryOption func(*RetryPolicy)

func WithMaxAttempts(n int) RetryOption {
	return func(p *RetryPolicy) {
		p.maxAttempts = max(n, 1)
	}
}

func WithInitialDelay(d time.Duration) RetryOption {
	return func(p *RetryPolicy) {
		p.initialDelay = d
	}
}

func WithMaxDelay(d time.Duration) RetryOption {
	return func(p *RetryPolicy) {
		p.maxDelay = d
	}
}

// WithJitter spreads each delay over 0.5x-1.5x.
func WithJitter(enabled bool) RetryOption {
	return func(p *RetryPolicy) {
		p.jitter = enabled
	}
}

func WithLogger(logger *zap.Logger) RetryOption {
	return func(p *RetryPolicy) {
		p.logger = logger
	}
}

func NewRetryPolicy(opts ...RetryOption) *RetryPolicy {
	p := &RetryPolicy{
		maxAttempts:  3,
		initialDelay: 100 * time.Millisecond,
		maxDelay:     5 * time.Second,
		multiplier:   2.0,
		jitter:       true,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute runs fn until it succeeds, returns a permanent error, or the
// attempts run out. ErrNotFound and context errors are permanent.
func (p *RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			if attempt > 0 {
				p.logger.Debug("operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if attempt == p.maxAttempts-1 {
			break
		}

		delay := p.delay(attempt)
		p.logger.Debug("operation failed, retrying",
			zap.Error(lastErr),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", p.maxAttempts),
			zap.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	p.logger.Warn("operation failed after all retries",
		zap.Error(lastErr),
		zap.Int("attempts", p.maxAttempts))
	return lastErr
}

func (p *RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.initialDelay) * math.Pow(p.multiplier, float64(attempt))
	if d > float64(p.maxDelay) {
		d = float64(p.maxDelay)
	}
	if p.jitter {
		d *= 0.5 + rand.Float64()
	}
	return time.Duration(d)
}

func retryable(err error) bool {
	return !errors.Is(err, ErrNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// RetryableDriver wraps a driver with a RetryPolicy.
type RetryableDriver struct {
	driver Driver
	policy *RetryPolicy
}

func NewRetryableDriver(driver Driver, policy *RetryPolicy) *RetryableDriver {
	if policy == nil {
		policy = NewRetryPolicy()
	}
	return &RetryableDriver{driver: driver, policy: policy}
}

func (r *RetryableDriver) Name() string {
	return r.driver.Name()
}

func (r *RetryableDriver) Get(ctx context.Context, container, artifact string) (io.ReadCloser, error) {
	var result io.ReadCloser
	err := r.policy.Execute(ctx, func() error {
		var err error
		result, err = r.driver.Get(ctx, container, artifact)
		return err
	})
	return result, err
}

// Put is only retried when data can be rewound.
func (r *RetryableDriver) Put(ctx context.Context, container, artifact string, data io.Reader) error {
	seeker, ok := data.(io.Seeker)
	if !ok {
		return r.driver.Put(ctx, container, artifact, data)
	}
	return r.policy.Execute(ctx, func() error {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return err
		}
		return r.driver.Put(ctx, container, artifact, data)
	})
}

func (r *RetryableDriver) Delete(ctx context.Context, container, artifact string) error {
	return r.policy.Execute(ctx, func() error {
		return r.driver.Delete(ctx, container, artifact)
	})
}

func (r *RetryableDriver) List(ctx context.Context, container, prefix string) ([]string, error) {
	var result []string
	err := r.policy.Execute(ctx, func() error {
		var err error
		result, err = r.driver.List(ctx, container, prefix)
		return err
	})
	return result, err
}

func (r *RetryableDriver) Exists(ctx context.Context, container, artifact string) (bool, error) {
	var result bool
	err := r.policy.Execute(ctx, func() error {
		var err error
		result, err = r.driver.Exists(ctx, container, artifact)
		return err
	})
	return result, err
}

// HealthCheck is not retried so probes report the current state.
func (r *RetryableDriver) HealthCheck(ctx context.Context) error {
	return r.driver.HealthCheck(ctx)
}
