// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package jobtemplate creates and updates AWS Elemental MediaConvert job
// templates.
//
// [Client] wraps the MediaConvert SDK client with the four operations
// the upsert needs: DescribeEndpoints, GetJobTemplate, CreateJobTemplate
// and UpdateJobTemplate. Template settings are forwarded to the service
// exactly as read from disk: a serialize middleware replaces the SDK's
// typed request body with the caller's bytes before the request is
// signed.
//
// [Resolver] discovers the account's regional endpoint, backing off
// exponentially (with jitter and an attempt ceiling) while the service
// reports TooManyRequestsException.
//
// [Upserter] decides between create and update. A NotFoundException on
// lookup selects create; any other lookup error is returned unchanged.
// A ConflictException on create means another writer created the
// template after the lookup, and the upsert falls back to a single
// update.
package jobtemplate
