// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package retry holds the backoff policy shared by network callers.
package retry

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	defaultAttempts = 3
	defaultDelay    = 200 * time.Millisecond
	defaultMaxDelay = 5 * time.Second
)

// Policy configures exponential backoff with jitter.
type Policy struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: defaultAttempts,
		Delay:    defaultDelay,
		MaxDelay: defaultMaxDelay,
	}
}

// Options converts the policy to retry-go options bound to ctx. Errors for
// which permanent reports true are returned immediately.
func (p Policy) Options(ctx context.Context, permanent func(error) bool) []retry.Option {
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(p.Delay),
		retry.MaxDelay(p.MaxDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
	}
	if p.Delay > 0 {
		opts = append(opts, retry.MaxJitter(p.Delay))
	}
	if permanent != nil {
		opts = append(opts, retry.RetryIf(func(err error) bool { return !permanent(err) }))
	}
	return opts
}

// Do runs fn until it succeeds, the attempts are exhausted, ctx is done or
// fn returns a permanent error.
func Do(ctx context.Context, p Policy, permanent func(error) bool, fn func() error) error {
	return retry.Do(fn, p.Options(ctx, permanent)...)
}

// DoWithData is Do for functions that return a value.
func DoWithData[T any](ctx context.Context, p Policy, permanent func(error) bool, fn func() (T, error)) (T, error) {
	return retry.DoWithData(fn, p.Options(ctx, permanent)...)
}
