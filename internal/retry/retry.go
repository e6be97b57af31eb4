// Package retry implements the gateway's retry engine (component J):
// classification of a pipeline attempt's outcome into retry/stop, and
// exponential backoff timing built on github.com/sethvargo/go-retry,
// with server-supplied retry-after delays honored for exactly one step.
package retry

import (
	"context"
	"errors"
	"time"

	retrylib "github.com/sethvargo/go-retry"

	"github.com/eugener/gatekeeper/internal"
)

// Reason labels a retry for the retries_total{reason} metric.
type Reason string

const (
	ReasonRateLimit   Reason = "rate_limit"
	ReasonServerError Reason = "server_error"
	ReasonTimeout     Reason = "timeout"
	ReasonNetwork     Reason = "network"
)

// baseDelay and capDelay implement spec's min(1000*2^i, 30_000)ms backoff
// formula. Variables (not consts) so tests can shrink them.
var (
	baseDelay = time.Second
	capDelay  = 30 * time.Second
)

// AttemptFunc performs a single transport exchange. A non-nil err denotes
// a transport/network failure (including context cancellation); env is
// only meaningful when err is nil.
type AttemptFunc func(ctx context.Context) (gateway.Envelope, error)

// Engine drives AttemptFunc through up to 1+maxRetries attempts per
// spec's classification table.
type Engine struct {
	maxRetries int
	onRetry    func(Reason)
}

// New creates an Engine. onRetry, if non-nil, is invoked once per retry
// (not per attempt) with the classified reason, before the backoff delay.
func New(maxRetries int, onRetry func(Reason)) *Engine {
	return &Engine{maxRetries: maxRetries, onRetry: onRetry}
}

// classify reports whether the outcome should be retried and, if so, why.
func classify(env gateway.Envelope, transportErr error) (shouldRetry bool, reason Reason) {
	if transportErr != nil {
		if errors.Is(transportErr, context.DeadlineExceeded) {
			return true, ReasonTimeout
		}
		return true, ReasonNetwork
	}
	if env.OK {
		return false, ""
	}
	if env.ErrorCode == nil {
		return true, ReasonNetwork
	}
	switch {
	case *env.ErrorCode == 429:
		return true, ReasonRateLimit
	case *env.ErrorCode >= 500:
		return true, ReasonServerError
	default:
		return false, ""
	}
}

// Run executes attempt at least once, retrying per the classification
// table until a non-retriable outcome, attempt budget exhaustion, or
// context cancellation.
func (e *Engine) Run(ctx context.Context, attempt AttemptFunc) (gateway.Envelope, error) {
	backoff := retrylib.WithMaxRetries(uint64(e.maxRetries),
		retrylib.WithCappedDuration(capDelay, retrylib.NewExponential(baseDelay)))

	for {
		env, err := attempt(ctx)
		shouldRetry, reason := classify(env, err)
		if !shouldRetry {
			return env, err
		}

		delay, stop := backoff.Next()
		if stop {
			return env, err
		}
		if env.Parameters != nil && env.Parameters.RetryAfterSeconds != nil {
			delay = time.Duration(*env.Parameters.RetryAfterSeconds) * time.Second
		}

		if e.onRetry != nil {
			e.onRetry(reason)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return gateway.Envelope{}, ctx.Err()
		case <-timer.C:
		}
	}
}
