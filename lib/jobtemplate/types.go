// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jobtemplate

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert/types"
)

// Template is the service's view of a job template. The settings
// document is not decoded; this package only ever forwards it.
type Template struct {
	Name        string
	CreatedAt   time.Time
	LastUpdated time.Time
}

func templateFromAPI(jobTemplate *types.JobTemplate) *Template {
	if jobTemplate == nil {
		return &Template{}
	}
	return &Template{
		Name:        aws.ToString(jobTemplate.Name),
		CreatedAt:   aws.ToTime(jobTemplate.CreatedAt),
		LastUpdated: aws.ToTime(jobTemplate.LastUpdated),
	}
}

// Action is what an upsert did (or, in a dry run, would do).
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// Result describes a completed upsert.
type Result struct {
	Action Action

	// Template is the template as reported by the service after the
	// write. In a dry run it is the looked-up template for an update
	// and carries only the name for a create.
	Template *Template

	// DryRun is true when no write was sent.
	DryRun bool
}
