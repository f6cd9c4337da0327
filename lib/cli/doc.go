// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for upsert-job-template.
//
// The central type is [Command]: a named command with a [pflag.FlagSet]
// factory and a Run function receiving the positional arguments left
// after flag parsing. [Command.Execute] handles flag parsing, help
// output with examples, and "did you mean" suggestions for mistyped
// flags (Levenshtein distance <= 3, see suggest.go).
//
// [FlagsFromParams] binds a params struct to flags through struct tags
// (flag, desc, default), so a command declares its options once.
//
// [NewCommandLogger] builds the slog logger commands use.
package cli
