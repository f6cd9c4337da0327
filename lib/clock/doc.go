// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// The endpoint resolver waits between throttled DescribeEndpoints
// calls, and those waits are measured in minutes. Production code uses
// Real(); tests use Fake(), which advances only when Advance is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go func() { done <- resolve(ctx, c) }()
//	c.WaitForTimers(1)          // resolver registered its backoff wait
//	c.Advance(60 * time.Second) // fire it deterministically
//
// WaitForTimers closes the race between a goroutine registering a
// timer and the test advancing the clock.
package clock
