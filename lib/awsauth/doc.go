// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package awsauth exchanges an IAM role ARN for temporary credentials.
//
// [LoadConfig] builds the base SDK configuration from the default
// credential chain (environment, shared config, instance role). A
// [Broker] then calls STS AssumeRole with those base credentials and
// returns the role's session credentials, which the MediaConvert
// client signs with.
package awsauth
