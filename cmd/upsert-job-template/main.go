// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/jobtemplate/lib/awsauth"
	"github.com/bureau-foundation/jobtemplate/lib/cli"
	"github.com/bureau-foundation/jobtemplate/lib/clock"
	"github.com/bureau-foundation/jobtemplate/lib/config"
	"github.com/bureau-foundation/jobtemplate/lib/jobtemplate"
	"github.com/bureau-foundation/jobtemplate/lib/process"
	"github.com/bureau-foundation/jobtemplate/lib/version"
)

const usageLine = "Usage: upsert-job-template <job template name> <mediaconvert role> <path to job template json> [mediaconvert endpoint | OPTIONAL]"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, defaultDependencies())
	stop()

	if err != nil {
		process.Fatal(err)
	}
}

// dependencies are the process-level collaborators of run. Tests
// replace them to observe remote calls without a network.
type dependencies struct {
	loadAWSConfig func(ctx context.Context, region string) (aws.Config, error)
	newSTS        func(cfg aws.Config) awsauth.STSAPI
	newDescriber  func(cfg aws.Config, credentials aws.CredentialsProvider, logger *slog.Logger) jobtemplate.EndpointDescriber
	newService    func(cfg aws.Config, credentials aws.CredentialsProvider, endpoint string, logger *slog.Logger) jobtemplate.TemplateStore
	newLogger     func(verbose bool) *slog.Logger
	clock         clock.Clock
}

func defaultDependencies() dependencies {
	return dependencies{
		loadAWSConfig: awsauth.LoadConfig,
		newSTS: func(cfg aws.Config) awsauth.STSAPI {
			return awsauth.NewSTSClient(cfg)
		},
		newDescriber: func(cfg aws.Config, credentials aws.CredentialsProvider, logger *slog.Logger) jobtemplate.EndpointDescriber {
			return jobtemplate.NewDiscoveryClient(jobtemplate.Config{
				AWS:         cfg,
				Credentials: credentials,
				Logger:      logger,
			})
		},
		newService: func(cfg aws.Config, credentials aws.CredentialsProvider, endpoint string, logger *slog.Logger) jobtemplate.TemplateStore {
			return jobtemplate.NewClient(jobtemplate.Config{
				AWS:         cfg,
				Credentials: credentials,
				Endpoint:    endpoint,
				Logger:      logger,
			})
		},
		newLogger: cli.NewCommandLogger,
		clock:     clock.Real(),
	}
}

type upsertParams struct {
	Region      string `flag:"region" desc:"AWS region (overrides aws.region from the config file and AWS_REGION)"`
	SessionName string `flag:"session-name" desc:"exact STS role session name (default: generated from the configured prefix)"`
	ConfigPath  string `flag:"config,c" desc:"path to a YAML config file (default: $UPSERT_JOB_TEMPLATE_CONFIG)"`
	MaxAttempts int    `flag:"max-attempts" desc:"maximum DescribeEndpoints calls while throttled (default: from config)"`
	DryRun      bool   `flag:"dry-run" desc:"assume the role and look up the template, but do not create or update it"`
	Version     bool   `flag:"version" desc:"print version information and exit"`
	Verbose     bool   `flag:"verbose,v" desc:"enable debug logging"`
}

func run(ctx context.Context, args []string, stdout io.Writer, deps dependencies) error {
	var params upsertParams

	command := &cli.Command{
		Name:    "upsert-job-template",
		Summary: "Create or update a MediaConvert job template",
		Description: `Create or update a MediaConvert job template.

Assumes the given IAM role, resolves the account's MediaConvert endpoint
(unless one is passed as the fourth argument), and creates the template
when it does not exist or updates it in place when it does. The settings
file is sent unmodified and must use the service's REST field names.

DescribeEndpoints is rate limited per account. Throttled calls are
retried with exponential backoff, starting at one minute.`,
		Usage: "upsert-job-template [flags] <job template name> <mediaconvert role> <path to job template json> [mediaconvert endpoint]",
		Examples: []cli.Example{
			{
				Description: "Upsert a template, discovering the endpoint",
				Command:     "upsert-job-template --region us-east-1 ott-hls arn:aws:iam::123456789012:role/MediaConvertRole templates/ott-hls.json",
			},
			{
				Description: "Use a known endpoint and only report what would change",
				Command:     "upsert-job-template --dry-run ott-hls arn:aws:iam::123456789012:role/MediaConvertRole templates/ott-hls.json https://abcd1234.mediaconvert.us-east-1.amazonaws.com",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("upsert-job-template", &params)
		},
		Output: stdout,
		Run: func(args []string) error {
			if params.Version {
				fmt.Fprintf(stdout, "upsert-job-template %s\n", version.Full())
				return nil
			}
			if len(args) < 3 || len(args) > 4 {
				fmt.Fprintln(stdout, usageLine)
				return nil
			}
			return upsert(ctx, args, &params, stdout, deps)
		},
	}

	return command.Execute(args)
}

func upsert(ctx context.Context, args []string, params *upsertParams, stdout io.Writer, deps dependencies) error {
	name, roleARN, settingsPath := args[0], args[1], args[2]
	var endpoint string
	if len(args) == 4 {
		endpoint = args[3]
	}

	cfg, err := config.Load(params.ConfigPath)
	if err != nil {
		return err
	}
	if params.Region != "" {
		cfg.AWS.Region = params.Region
	}
	if params.MaxAttempts != 0 {
		cfg.Discovery.MaxAttempts = params.MaxAttempts
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	policy, err := retryPolicy(cfg.Discovery)
	if err != nil {
		return err
	}

	// Read before any remote call so a bad path costs nothing.
	settings, err := os.ReadFile(settingsPath)
	if err != nil {
		return fmt.Errorf("reading job template settings: %w", err)
	}
	if len(bytes.TrimSpace(settings)) == 0 {
		return fmt.Errorf("%s: %w", settingsPath, jobtemplate.ErrEmptySettings)
	}

	logger := deps.newLogger(params.Verbose).With(
		"command", "upsert-job-template",
		"template", name,
	)

	awsConfig, err := deps.loadAWSConfig(ctx, cfg.AWS.Region)
	if err != nil {
		return err
	}

	broker, err := awsauth.NewBroker(awsauth.Config{
		STS:               deps.newSTS(awsConfig),
		SessionName:       params.SessionName,
		SessionNamePrefix: cfg.AWS.SessionNamePrefix,
		Logger:            logger,
	})
	if err != nil {
		return err
	}
	assumed, err := broker.Assume(ctx, roleARN)
	if err != nil {
		return err
	}
	credentials := awsauth.Provider(assumed)

	if endpoint == "" {
		resolver, err := jobtemplate.NewResolver(jobtemplate.ResolverConfig{
			Describer: deps.newDescriber(awsConfig, credentials, logger),
			Policy:    policy,
			Clock:     deps.clock,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		endpoint, err = resolver.Resolve(ctx)
		if err != nil {
			return err
		}
	} else {
		logger.Debug("using endpoint from arguments", "endpoint", endpoint)
	}

	upserter, err := jobtemplate.NewUpserter(jobtemplate.UpserterConfig{
		Store:  deps.newService(awsConfig, credentials, endpoint, logger),
		Output: stdout,
		DryRun: params.DryRun,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	result, err := upserter.Upsert(ctx, name, settings)
	if err != nil {
		return err
	}
	logger.Debug("upsert finished", "action", result.Action, "dry_run", result.DryRun)
	return nil
}

// retryPolicy converts the endpoint_discovery config section.
func retryPolicy(discovery config.DiscoveryConfig) (jobtemplate.RetryPolicy, error) {
	initial, maximum, err := discovery.Intervals()
	if err != nil {
		return jobtemplate.RetryPolicy{}, err
	}
	return jobtemplate.RetryPolicy{
		InitialInterval:     initial,
		MaxInterval:         maximum,
		Multiplier:          discovery.Multiplier,
		RandomizationFactor: discovery.RandomizationFactor,
		MaxAttempts:         discovery.MaxAttempts,
	}, nil
}
