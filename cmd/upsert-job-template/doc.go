// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Upsert-job-template creates or updates a MediaConvert job template. It
// assumes an IAM role through STS, resolves the account's MediaConvert
// endpoint unless one is given, and then creates the named template if
// it does not exist or updates it in place if it does. The settings file
// is forwarded to the service byte for byte.
package main
