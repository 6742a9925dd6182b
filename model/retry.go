package model

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
)

// RetryOptions configures WithRetry.
type RetryOptions struct {
	// MaxAttempts is the maximum number of attempts including the first.
	MaxAttempts uint
	// InitialInterval is the delay after the first failure.
	InitialInterval time.Duration
	// MaxInterval caps the delay between attempts.
	MaxInterval time.Duration
	Logger      logging.Logger
}

// retryModel decorates a Model with exponential backoff for transient
// failures. Only failures that happen before the first response chunk was
// forwarded are retried; once output reached the caller an error is final.
type retryModel struct {
	inner Model
	opts  RetryOptions
}

// WithRetry wraps m so that errors marked with core.Transient are retried
// with exponential backoff. When attempts are exhausted the last error is
// returned unchanged.
func WithRetry(m Model, optFns ...func(o *RetryOptions)) Model {
	opts := RetryOptions{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 1
	}

	return &retryModel{inner: m, opts: opts}
}

// Info implements Model.
func (r *retryModel) Info() Info { return r.inner.Info() }

// Generate implements Model.
func (r *retryModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = r.opts.InitialInterval
		b.MaxInterval = r.opts.MaxInterval

		attempt := 0
		_, err := backoff.Retry(ctx, func() (struct{}, error) {
			attempt++
			forwarded, err := r.attempt(ctx, req, out)
			if err == nil {
				return struct{}{}, nil
			}
			if forwarded || !core.IsTransient(err) {
				return struct{}{}, backoff.Permanent(err)
			}
			r.opts.Logger.Warn("model.retry", "model", r.inner.Info().Name, "attempt", attempt, "error", err.Error())
			return struct{}{}, err
		},
			backoff.WithBackOff(b),
			backoff.WithMaxTries(r.opts.MaxAttempts),
		)

		if err != nil {
			var perm *backoff.PermanentError
			if errors.As(err, &perm) {
				err = perm.Unwrap()
			}
			errCh <- err
		}
	}()

	return out, errCh
}

// attempt runs one inner Generate call, forwarding every response. It reports
// whether any response reached the caller.
func (r *retryModel) attempt(ctx context.Context, req Request, out chan<- Response) (bool, error) {
	respCh, errCh := r.inner.Generate(ctx, req)
	forwarded := false

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return forwarded, ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			select {
			case out <- resp:
				forwarded = true
			case <-ctx.Done():
				return forwarded, ctx.Err()
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return forwarded, err
			}
		}
	}

	return forwarded, nil
}
