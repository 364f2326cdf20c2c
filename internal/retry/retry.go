// Package retry runs an operation a bounded number of times with exponential
// backoff. Errors flagged as fatal stop the loop immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrExhausted is matched (errors.Is) by the error returned when every attempt failed
var ErrExhausted = errors.New("all attempts failed")

// Operation is one attempt. attempt starts at 1.
type Operation func(ctx context.Context, attempt int) error

// ExhaustedError wraps the last failure once MaxAttempts is reached
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d attempts failed, last error: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type options struct {
	fatal   func(error) bool
	onRetry func(attempt int, err error, wait time.Duration)
	timer   backoff.Timer
}

// Option configures Do
type Option func(*options)

// WithFatal installs a classifier; errors it accepts end the loop without retry
func WithFatal(fn func(error) bool) Option {
	return func(o *options) { o.fatal = fn }
}

// OnRetry is called after a failed attempt, before waiting. attempt is the one that failed.
func OnRetry(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(o *options) { o.onRetry = fn }
}

// WithTimer replaces the wall-clock timer used between attempts
func WithTimer(t backoff.Timer) Option {
	return func(o *options) { o.timer = t }
}

// Do calls op until it succeeds, returns a fatal error, the context ends, or
// the policy runs out of attempts.
func Do(ctx context.Context, p Policy, op Operation, opts ...Option) error {
	p = p.normalized()
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	attempt := 0
	var last error
	fatal := false

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempt++
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		last = err
		if IsPermanent(err) || (o.fatal != nil && o.fatal(err)) {
			fatal = true
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		if o.onRetry != nil {
			o.onRetry(attempt, err, wait)
		}
	}

	b := backoff.WithContext(backoff.WithMaxRetries(newSchedule(p), uint64(p.MaxAttempts-1)), ctx)
	err := backoff.RetryNotifyWithTimer(operation, b, notify, o.timer)
	switch {
	case err == nil:
		return nil
	case fatal:
		var pe *permanentError
		if errors.As(last, &pe) {
			return pe.err
		}
		return last
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return &ExhaustedError{Attempts: attempt, Err: last}
}
