// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package awsauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/xid"

	"github.com/bureau-foundation/jobtemplate/lib/version"
)

// maxSessionNameLength is the STS limit on RoleSessionName.
const maxSessionNameLength = 64

// sessionNamePattern is the character set STS accepts in a
// RoleSessionName.
var sessionNamePattern = regexp.MustCompile(`^[\w+=,.@-]{2,64}$`)

// STSAPI is the subset of the STS client the broker uses. Satisfied by
// *sts.Client.
type STSAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// LoadConfig loads the SDK configuration from the default credential
// chain. An empty region leaves region resolution to the SDK
// (AWS_REGION, shared config).
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	options := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithAppID(version.UserAgent()),
	}
	if region != "" {
		options = append(options, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS configuration: %w", err)
	}
	if cfg.Region == "" {
		return aws.Config{}, errors.New("no AWS region configured (set --region, aws.region in the config file, or AWS_REGION)")
	}
	return cfg, nil
}

// NewSTSClient creates an STS client from the base configuration.
func NewSTSClient(cfg aws.Config) *sts.Client {
	return sts.NewFromConfig(cfg)
}

// Config holds configuration for creating a Broker.
type Config struct {
	// STS performs AssumeRole. Required.
	STS STSAPI

	// SessionName is the exact RoleSessionName to use. When empty, a
	// unique name is generated from SessionNamePrefix.
	SessionName string

	// SessionNamePrefix prefixes generated session names.
	// Default: upsert-job-template
	SessionNamePrefix string

	// Duration is the requested credential lifetime. Zero uses the
	// role's default (one hour).
	Duration time.Duration

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Broker assumes IAM roles through STS.
type Broker struct {
	sts               STSAPI
	sessionName       string
	sessionNamePrefix string
	duration          time.Duration
	logger            *slog.Logger
}

// NewBroker creates a Broker. Returns an error if STS is missing or the
// explicit session name is not a valid RoleSessionName.
func NewBroker(config Config) (*Broker, error) {
	if config.STS == nil {
		return nil, errors.New("awsauth: broker requires an STS client")
	}
	if config.SessionName != "" && !sessionNamePattern.MatchString(config.SessionName) {
		return nil, fmt.Errorf("awsauth: invalid role session name %q (2-64 characters from [A-Za-z0-9_+=,.@-])", config.SessionName)
	}

	prefix := config.SessionNamePrefix
	if prefix == "" {
		prefix = "upsert-job-template"
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Broker{
		sts:               config.STS,
		sessionName:       config.SessionName,
		sessionNamePrefix: prefix,
		duration:          config.Duration,
		logger:            logger,
	}, nil
}

// Assume exchanges roleARN for temporary credentials.
func (broker *Broker) Assume(ctx context.Context, roleARN string) (aws.Credentials, error) {
	if roleARN == "" {
		return aws.Credentials{}, errors.New("role ARN is required")
	}

	sessionName := broker.sessionName
	if sessionName == "" {
		sessionName = GenerateSessionName(broker.sessionNamePrefix)
	}

	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(sessionName),
	}
	if broker.duration > 0 {
		input.DurationSeconds = aws.Int32(int32(broker.duration / time.Second))
	}

	output, err := broker.sts.AssumeRole(ctx, input)
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("assuming role %s: %w", roleARN, err)
	}
	if output.Credentials == nil {
		return aws.Credentials{}, fmt.Errorf("assuming role %s: response has no credentials", roleARN)
	}

	creds := aws.Credentials{
		AccessKeyID:     aws.ToString(output.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(output.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(output.Credentials.SessionToken),
		Source:          "AssumeRole",
	}
	if output.Credentials.Expiration != nil {
		creds.CanExpire = true
		creds.Expires = *output.Credentials.Expiration
	}

	logAttributes := []any{
		"role", roleARN,
		"session", sessionName,
		"expires", creds.Expires,
	}
	if output.AssumedRoleUser != nil {
		logAttributes = append(logAttributes, "assumed_role", aws.ToString(output.AssumedRoleUser.Arn))
	}
	broker.logger.Info("assumed role", logAttributes...)

	return creds, nil
}

// Provider wraps credentials returned by Assume for an SDK client.
func Provider(creds aws.Credentials) aws.CredentialsProvider {
	return credentials.StaticCredentialsProvider{Value: creds}
}

// GenerateSessionName returns prefix followed by a unique xid, trimmed
// to the STS length limit and the RoleSessionName character set.
func GenerateSessionName(prefix string) string {
	suffix := xid.New().String()
	prefix = sanitizeSessionName(prefix)
	if limit := maxSessionNameLength - len(suffix) - 1; len(prefix) > limit {
		prefix = prefix[:limit]
	}
	if prefix == "" {
		return suffix
	}
	return prefix + "-" + suffix
}

var invalidSessionNameCharacters = regexp.MustCompile(`[^\w+=,.@-]`)

func sanitizeSessionName(name string) string {
	return invalidSessionNameCharacters.ReplaceAllString(name, "-")
}
