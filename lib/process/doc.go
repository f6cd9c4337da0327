// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the binary entrypoint error handler. main()
// calls [Fatal] with the error from run(), before or after the
// structured logger exists, so the "error: ..." line and exit status
// are the same for every failure path.
package process
