// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive] is the one place tests wait on the wall clock: it
// bounds how long a test blocks on a goroutine that is itself waiting
// on a fake clock, so a broken retry loop fails the test instead of
// hanging it.
package testutil
