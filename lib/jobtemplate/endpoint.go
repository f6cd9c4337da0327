// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jobtemplate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bureau-foundation/jobtemplate/lib/clock"
)

// EndpointDescriber lists the account's MediaConvert endpoints.
// Satisfied by *Client.
type EndpointDescriber interface {
	DescribeEndpoints(ctx context.Context) ([]string, error)
}

// RetryPolicy bounds the DescribeEndpoints retries on throttling.
type RetryPolicy struct {
	// InitialInterval is the wait after the first throttled attempt.
	InitialInterval time.Duration

	// MaxInterval caps the interval as it grows. Jitter is applied
	// after the cap, so a single wait can reach
	// MaxInterval*(1+RandomizationFactor).
	MaxInterval time.Duration

	// Multiplier grows the interval after each throttled attempt. 1
	// keeps the interval fixed.
	Multiplier float64

	// RandomizationFactor spreads each wait uniformly over
	// interval ± interval*RandomizationFactor. 0 disables jitter.
	RandomizationFactor float64

	// MaxAttempts is the total number of DescribeEndpoints calls,
	// including the first. 0 retries until the context is done.
	MaxAttempts int
}

// DefaultRetryPolicy waits exactly one minute after every throttled
// call and never gives up on its own. Growth, jitter and an attempt
// limit are opt-in through the other fields.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 60 * time.Second,
		MaxInterval:     60 * time.Second,
		Multiplier:      1,
	}
}

// Validate checks the policy for values the backoff cannot honor.
func (policy RetryPolicy) Validate() error {
	if policy.InitialInterval <= 0 {
		return fmt.Errorf("retry policy: initial interval must be positive (got %v)", policy.InitialInterval)
	}
	if policy.MaxInterval < policy.InitialInterval {
		return fmt.Errorf("retry policy: max interval %v is below initial interval %v", policy.MaxInterval, policy.InitialInterval)
	}
	if policy.Multiplier < 1 {
		return fmt.Errorf("retry policy: multiplier must be >= 1 (got %v)", policy.Multiplier)
	}
	if policy.RandomizationFactor < 0 || policy.RandomizationFactor >= 1 {
		return fmt.Errorf("retry policy: randomization factor must be in [0, 1) (got %v)", policy.RandomizationFactor)
	}
	if policy.MaxAttempts < 0 {
		return fmt.Errorf("retry policy: max attempts must be >= 0 (got %d)", policy.MaxAttempts)
	}
	return nil
}

// newBackOff builds the backoff schedule for one resolution. The
// elapsed-time limit is disabled; MaxAttempts, when set, is the only
// ceiling besides ctx.
func (policy RetryPolicy) newBackOff(ctx context.Context, clk clock.Clock) backoff.BackOff {
	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = policy.InitialInterval
	exponential.MaxInterval = policy.MaxInterval
	exponential.Multiplier = policy.Multiplier
	exponential.RandomizationFactor = policy.RandomizationFactor
	exponential.MaxElapsedTime = 0
	exponential.Clock = clk
	exponential.Reset()

	var schedule backoff.BackOff = exponential
	if policy.MaxAttempts > 0 {
		schedule = backoff.WithMaxRetries(exponential, uint64(policy.MaxAttempts-1))
	}
	return backoff.WithContext(schedule, ctx)
}

// ResolverConfig holds configuration for creating a Resolver.
type ResolverConfig struct {
	// Describer lists endpoints. Required.
	Describer EndpointDescriber

	// Policy bounds retries. Zero value means DefaultRetryPolicy().
	Policy RetryPolicy

	// Clock provides time operations. Defaults to clock.Real().
	// Inject clock.Fake() in tests for deterministic behavior.
	Clock clock.Clock

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Resolver discovers the account-specific MediaConvert endpoint.
type Resolver struct {
	describer EndpointDescriber
	policy    RetryPolicy
	clock     clock.Clock
	logger    *slog.Logger
}

// NewResolver creates a Resolver. Returns an error if the describer is
// missing or the policy is invalid.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	if config.Describer == nil {
		return nil, errors.New("jobtemplate: resolver requires an EndpointDescriber")
	}

	policy := config.Policy
	if policy == (RetryPolicy{}) {
		policy = DefaultRetryPolicy()
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		describer: config.Describer,
		policy:    policy,
		clock:     clk,
		logger:    logger,
	}, nil
}

// Resolve returns the first endpoint URL reported by DescribeEndpoints.
//
// TooManyRequestsException is retried per the policy. If the policy
// limits attempts and they run out, the last throttling error is
// returned (IsThrottled reports true). Any other error is returned after the first attempt. The wait
// between attempts ends early with ctx.Err() if ctx is cancelled.
func (resolver *Resolver) Resolve(ctx context.Context) (string, error) {
	var endpoint string
	attempt := 0

	operation := func() error {
		attempt++
		urls, err := resolver.describer.DescribeEndpoints(ctx)
		if err != nil {
			if IsThrottled(err) {
				return err
			}
			return backoff.Permanent(fmt.Errorf("describing endpoints: %w", err))
		}
		if len(urls) == 0 {
			return backoff.Permanent(errors.New("describing endpoints: service returned no endpoints"))
		}
		endpoint = urls[0]
		return nil
	}

	notify := func(err error, delay time.Duration) {
		resolver.logger.Info("too many requests on DescribeEndpoints, backing off",
			"attempt", attempt,
			"max_attempts", resolver.policy.MaxAttempts,
			"delay", delay,
		)
	}

	err := backoff.RetryNotifyWithTimer(operation,
		resolver.policy.newBackOff(ctx, resolver.clock),
		notify,
		&clockTimer{clock: resolver.clock},
	)
	if err != nil {
		if IsThrottled(err) {
			return "", fmt.Errorf("describing endpoints: still throttled after %d attempts: %w", attempt, err)
		}
		return "", err
	}

	resolver.logger.Info("resolved MediaConvert endpoint",
		"endpoint", endpoint,
		"attempts", attempt,
	)
	return endpoint, nil
}

// clockTimer adapts clock.Clock to backoff.Timer.
type clockTimer struct {
	clock   clock.Clock
	channel <-chan time.Time
}

func (timer *clockTimer) Start(duration time.Duration) {
	timer.channel = timer.clock.After(duration)
}

// Stop is a no-op: clock.After has no cancel, and a pending fake
// waiter or real timer is released when it fires.
func (timer *clockTimer) Stop() {}

func (timer *clockTimer) C() <-chan time.Time {
	return timer.channel
}
