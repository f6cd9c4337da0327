// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jobtemplate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert/types"
)

// Config holds configuration for creating a MediaConvert Client.
type Config struct {
	// AWS is the base SDK configuration (region, HTTP client, retryer).
	AWS aws.Config

	// Credentials signs MediaConvert requests. Typically the temporary
	// credentials from an assumed role. Defaults to AWS.Credentials.
	Credentials aws.CredentialsProvider

	// Endpoint is the account-specific MediaConvert endpoint URL. Empty
	// means the SDK's regional endpoint, which is sufficient for
	// DescribeEndpoints.
	Endpoint string

	// Retryer overrides the SDK retryer for every operation. Nil keeps
	// the SDK's standard retryer.
	Retryer aws.Retryer

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Client is a MediaConvert client exposing the job template operations
// with plain Go types.
type Client struct {
	api      *mediaconvert.Client
	endpoint string
	logger   *slog.Logger
}

// NewClient creates a MediaConvert client from the given configuration.
func NewClient(config Config) *Client {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := mediaconvert.NewFromConfig(config.AWS, func(options *mediaconvert.Options) {
		if config.Credentials != nil {
			options.Credentials = aws.NewCredentialsCache(config.Credentials)
		}
		if config.Endpoint != "" {
			options.BaseEndpoint = aws.String(config.Endpoint)
		}
		if config.Retryer != nil {
			options.Retryer = config.Retryer
		}
	})

	return &Client{
		api:      api,
		endpoint: config.Endpoint,
		logger:   logger,
	}
}

// NewDiscoveryClient creates the Client a Resolver drives. Unless
// config.Retryer is set, the SDK makes a single attempt per call so
// that throttling reaches the Resolver's own schedule and each resolver
// attempt is one DescribeEndpoints request on the wire.
func NewDiscoveryClient(config Config) *Client {
	if config.Retryer == nil {
		config.Retryer = retry.AddWithMaxAttempts(retry.NewStandard(), 1)
	}
	return NewClient(config)
}

// DescribeEndpoints returns the endpoint URLs the service reports for
// the calling account, in service order.
func (client *Client) DescribeEndpoints(ctx context.Context) ([]string, error) {
	output, err := client.api.DescribeEndpoints(ctx, &mediaconvert.DescribeEndpointsInput{})
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(output.Endpoints))
	for _, endpoint := range output.Endpoints {
		if url := aws.ToString(endpoint.Url); url != "" {
			urls = append(urls, url)
		}
	}
	return urls, nil
}

// GetJobTemplate looks up a job template by name. Returns an error
// satisfying IsNotFound when no such template exists.
func (client *Client) GetJobTemplate(ctx context.Context, name string) (*Template, error) {
	output, err := client.api.GetJobTemplate(ctx, &mediaconvert.GetJobTemplateInput{
		Name: aws.String(name),
	})
	if err != nil {
		return nil, err
	}
	return templateFromAPI(output.JobTemplate), nil
}

// CreateJobTemplate creates a job template named name. settings is sent
// unmodified as the request's settings document.
func (client *Client) CreateJobTemplate(ctx context.Context, name string, settings []byte) (*Template, error) {
	body, err := createRequestBody(name, settings)
	if err != nil {
		return nil, err
	}

	client.logger.Debug("sending CreateJobTemplate",
		"template", name,
		"endpoint", client.endpoint,
		"body_bytes", len(body),
	)

	output, err := client.api.CreateJobTemplate(ctx, &mediaconvert.CreateJobTemplateInput{
		Name: aws.String(name),
		// Satisfies the SDK's required-field validation; the serialized
		// body is replaced by withRawBody.
		Settings: &types.JobTemplateSettings{},
	}, withRawBody(body))
	if err != nil {
		return nil, err
	}
	if output.JobTemplate == nil {
		return nil, errors.New("CreateJobTemplate response has no job template")
	}
	return templateFromAPI(output.JobTemplate), nil
}

// UpdateJobTemplate replaces the settings of the job template named
// name. settings is sent unmodified as the request's settings document.
func (client *Client) UpdateJobTemplate(ctx context.Context, name string, settings []byte) (*Template, error) {
	body, err := updateRequestBody(settings)
	if err != nil {
		return nil, err
	}

	client.logger.Debug("sending UpdateJobTemplate",
		"template", name,
		"endpoint", client.endpoint,
		"body_bytes", len(body),
	)

	output, err := client.api.UpdateJobTemplate(ctx, &mediaconvert.UpdateJobTemplateInput{
		Name:     aws.String(name),
		Settings: &types.JobTemplateSettings{},
	}, withRawBody(body))
	if err != nil {
		return nil, err
	}
	if output.JobTemplate == nil {
		return nil, errors.New("UpdateJobTemplate response has no job template")
	}
	return templateFromAPI(output.JobTemplate), nil
}
