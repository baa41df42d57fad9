// Package verify polls a predicate against live page state until it holds
// or a deadline passes. Rendered-state and persisted-state checks share the
// one loop in Eventually.
package verify

import (
	"context"
	"errors"
	"time"

	"github.com/go-rod/rod/lib/utils"
	"go.uber.org/zap"

	"dev/bravebird/pagecheck/pkg/models"
)

const (
	DefaultTimeout     = 5 * time.Second
	DefaultInterval    = 100 * time.Millisecond
	DefaultMaxInterval = time.Second
)

// Sampler reads live state once. It reports whether the check holds and a
// rendering of what it saw. A returned error means "not yet true" unless it
// is wrapped with Permanent.
type Sampler func(ctx context.Context) (ok bool, actual string, err error)

// Check is one named predicate
type Check struct {
	Description string
	Expected    string
	Sample      Sampler
}

type options struct {
	timeout     time.Duration
	interval    time.Duration
	maxInterval time.Duration
	logger      *zap.Logger
}

// Option adjusts one call to Eventually
type Option func(*options)

// WithTimeout overrides the deadline. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithInterval sets the first poll interval and the cap it backs off to
func WithInterval(initial, max time.Duration) Option {
	return func(o *options) {
		if initial > 0 {
			o.interval = initial
		}
		if max >= o.interval {
			o.maxInterval = max
		} else {
			o.maxInterval = o.interval
		}
	}
}

// WithLogger logs failed polls at debug level and timeouts at warn
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a sampling error that should stop polling immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Eventually runs check.Sample until it holds. It returns nil on the first
// success, the sample's error if it is permanent, ctx.Err() if the parent
// context is canceled, and a *models.TimeoutError once the check's deadline
// or an earlier parent deadline passes.
func Eventually(ctx context.Context, check Check, opts ...Option) error {
	o := options{
		timeout:     DefaultTimeout,
		interval:    DefaultInterval,
		maxInterval: DefaultMaxInterval,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	budget := o.timeout
	if d, ok := ctx.Deadline(); ok && time.Until(d) < budget {
		budget = max(time.Until(d), 0)
	}
	deadline, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	sleep := utils.BackoffSleeper(o.interval, o.maxInterval, func(d time.Duration) time.Duration {
		return d * 3 / 2
	})

	var (
		polls   int
		actual  string
		lastErr error
	)
	for {
		polls++
		ok, got, err := check.Sample(deadline)
		if err == nil {
			actual = got
		}
		if ok && err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if parentCanceled(ctx) {
			return ctx.Err()
		}
		if err != nil && deadline.Err() == nil {
			lastErr = err
		}
		o.logger.Debug("verify: not yet",
			zap.String("check", check.Description),
			zap.Int("poll", polls),
			zap.String("actual", got),
			zap.Error(err))

		if deadline.Err() != nil || sleep(deadline) != nil {
			if parentCanceled(ctx) {
				return ctx.Err()
			}
			break
		}
	}

	if lastErr == nil && ctx.Err() != nil {
		lastErr = ctx.Err()
	}
	if actual == "" && lastErr != nil {
		actual = "<unavailable>"
	}
	terr := &models.TimeoutError{
		Check:    check.Description,
		Expected: check.Expected,
		Actual:   actual,
		Timeout:  budget,
		Polls:    polls,
		LastErr:  lastErr,
	}
	o.logger.Warn("verify: timed out",
		zap.String("check", check.Description),
		zap.String("expected", check.Expected),
		zap.String("actual", actual),
		zap.Int("polls", polls))
	return terr
}

// parentCanceled reports an explicit cancel of ctx. A passed parent deadline
// is reported as a timeout instead.
func parentCanceled(ctx context.Context) bool {
	return ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded)
}
