// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jobtemplate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// TemplateStore reads and writes job templates. Satisfied by *Client.
type TemplateStore interface {
	GetJobTemplate(ctx context.Context, name string) (*Template, error)
	CreateJobTemplate(ctx context.Context, name string, settings []byte) (*Template, error)
	UpdateJobTemplate(ctx context.Context, name string, settings []byte) (*Template, error)
}

// UpserterConfig holds configuration for creating an Upserter.
type UpserterConfig struct {
	// Store performs the lookups and writes. Required.
	Store TemplateStore

	// Output receives the progress and result lines. Defaults to
	// os.Stdout.
	Output io.Writer

	// DryRun performs the lookup and reports the action that would be
	// taken without sending a create or update.
	DryRun bool

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Upserter creates a job template if it does not exist and updates it
// if it does.
type Upserter struct {
	store  TemplateStore
	output io.Writer
	dryRun bool
	logger *slog.Logger
}

// NewUpserter creates an Upserter.
func NewUpserter(config UpserterConfig) (*Upserter, error) {
	if config.Store == nil {
		return nil, errors.New("jobtemplate: upserter requires a TemplateStore")
	}

	output := config.Output
	if output == nil {
		output = os.Stdout
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Upserter{
		store:  config.Store,
		output: output,
		dryRun: config.DryRun,
		logger: logger,
	}, nil
}

// Upsert makes the template named name hold settings.
//
// Existence is decided by GetJobTemplate: NotFoundException selects
// create, success selects update, and any other error is returned
// without writing anything. If create fails with ConflictException the
// template appeared after the lookup, and Upsert updates it instead.
func (upserter *Upserter) Upsert(ctx context.Context, name string, settings []byte) (*Result, error) {
	if name == "" {
		return nil, errors.New("job template name is required")
	}

	existing, err := upserter.store.GetJobTemplate(ctx, name)
	switch {
	case err == nil:
		fmt.Fprintln(upserter.output, "Job template already exists, updating it")
		if upserter.dryRun {
			return upserter.dryRunResult(ActionUpdated, name, existing), nil
		}
		return upserter.update(ctx, name, settings)

	case IsNotFound(err):
		fmt.Fprintln(upserter.output, "Job template does not exist, creating it")
		if upserter.dryRun {
			return upserter.dryRunResult(ActionCreated, name, &Template{Name: name}), nil
		}
		return upserter.create(ctx, name, settings)

	default:
		return nil, fmt.Errorf("looking up job template %q: %w", name, err)
	}
}

func (upserter *Upserter) create(ctx context.Context, name string, settings []byte) (*Result, error) {
	fmt.Fprintf(upserter.output, "Creating template %s\n", name)

	template, err := upserter.store.CreateJobTemplate(ctx, name, settings)
	if err != nil {
		if IsConflict(err) {
			upserter.logger.Warn("job template created concurrently, updating instead",
				"template", name,
				"error", err,
			)
			fmt.Fprintln(upserter.output, "Job template already exists, updating it")
			return upserter.update(ctx, name, settings)
		}
		return nil, fmt.Errorf("creating job template %q: %w", name, err)
	}

	fmt.Fprintf(upserter.output, "Created job template %s at %s and last updated at %s\n",
		name, formatTimestamp(template.CreatedAt), formatTimestamp(template.LastUpdated))
	return &Result{Action: ActionCreated, Template: template}, nil
}

func (upserter *Upserter) update(ctx context.Context, name string, settings []byte) (*Result, error) {
	fmt.Fprintf(upserter.output, "Updating template %s\n", name)

	template, err := upserter.store.UpdateJobTemplate(ctx, name, settings)
	if err != nil {
		return nil, fmt.Errorf("updating job template %q: %w", name, err)
	}

	fmt.Fprintf(upserter.output, "Updated job template %s at %s and last updated at %s\n",
		name, formatTimestamp(template.CreatedAt), formatTimestamp(template.LastUpdated))
	return &Result{Action: ActionUpdated, Template: template}, nil
}

func (upserter *Upserter) dryRunResult(action Action, name string, template *Template) *Result {
	verb := "create"
	if action == ActionUpdated {
		verb = "update"
	}
	fmt.Fprintf(upserter.output, "Dry run: would %s template %s\n", verb, name)
	return &Result{Action: action, Template: template, DryRun: true}
}

// formatTimestamp renders service timestamps in UTC RFC 3339, or
// "unknown" when the service omitted one.
func formatTimestamp(timestamp time.Time) string {
	if timestamp.IsZero() {
		return "unknown"
	}
	return timestamp.UTC().Format(time.RFC3339)
}
