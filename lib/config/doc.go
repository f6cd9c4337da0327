// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for
// upsert-job-template.
//
// Configuration comes from a single optional file named by the --config
// flag or, failing that, the UPSERT_JOB_TEMPLATE_CONFIG environment
// variable. There is no automatic file search. Without a file the
// defaults from [Default] apply.
//
// The file may contain environment sections (development, staging,
// production) that override base values when [Config].Environment
// matches. ${VAR} and ${VAR:-default} patterns in the AWS settings are
// expanded from the process environment after loading.
//
// This package depends on no other packages in this module.
package config
