// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package retry provides a bounded fixed-delay retry helper.
package retry

import (
	"context"
	"time"
)

// Policy represents a bounded retry policy with a fixed delay between
// attempts.
type Policy struct {
	// MaxAttempts is the max number of attempts before giving up.
	MaxAttempts int

	// Delay is the fixed delay between attempts.
	Delay time.Duration
}

// Do invokes op until it succeeds, the policy is exhausted, or the context is
// cancelled. The error from the last attempt is returned when all attempts
// fail.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 && p.Delay > 0 {
			select {
			case <-time.After(p.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			return lastErr
		}
	}

	return lastErr
}
