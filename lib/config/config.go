// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable [Load] reads the config file
// path from when no --config flag is given.
const EnvironmentVariable = "UPSERT_JOB_TEMPLATE_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for personal sandbox accounts.
	Development Environment = "development"
	// Staging is for pre-production accounts.
	Staging Environment = "staging"
	// Production is for production accounts.
	Production Environment = "production"
)

// Config is the configuration for upsert-job-template.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// AWS configures the STS and MediaConvert clients.
	AWS AWSConfig `yaml:"aws"`

	// Discovery configures endpoint resolution retries.
	Discovery DiscoveryConfig `yaml:"endpoint_discovery"`

	// Per-environment overrides, applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	AWS       *AWSConfig       `yaml:"aws,omitempty"`
	Discovery *DiscoveryConfig `yaml:"endpoint_discovery,omitempty"`
}

// AWSConfig configures the AWS clients.
type AWSConfig struct {
	// Region is the AWS region for STS and MediaConvert. Empty means the
	// SDK's default resolution (AWS_REGION, shared config profile).
	Region string `yaml:"region"`

	// SessionNamePrefix is the AssumeRole session name prefix. A unique
	// suffix is appended per run.
	// Default: upsert-job-template
	SessionNamePrefix string `yaml:"session_name_prefix"`
}

// DiscoveryConfig configures the DescribeEndpoints backoff. Durations
// are Go duration strings ("60s", "10m").
type DiscoveryConfig struct {
	// InitialInterval is the wait after the first throttled attempt.
	// Default: 60s
	InitialInterval string `yaml:"initial_interval"`

	// MaxInterval caps the interval as it grows; jitter is applied on
	// top of the cap.
	// Default: 60s
	MaxInterval string `yaml:"max_interval"`

	// Multiplier grows the interval after each throttled attempt. 1
	// keeps it fixed.
	// Default: 1
	Multiplier float64 `yaml:"multiplier"`

	// RandomizationFactor is the jitter fraction applied to each wait.
	// Default: 0
	RandomizationFactor float64 `yaml:"randomization_factor"`

	// MaxAttempts bounds the total number of DescribeEndpoints calls.
	// 0 retries until interrupted.
	// Default: 0
	MaxAttempts int `yaml:"max_attempts"`
}

// Default returns the default configuration. It is the base the config
// file is merged into, and the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Environment: Development,
		AWS: AWSConfig{
			SessionNamePrefix: "upsert-job-template",
		},
		Discovery: DiscoveryConfig{
			InitialInterval: "60s",
			MaxInterval:     "60s",
			Multiplier:      1,
		},
	}
}

// Load loads configuration from path, or from the file named by
// UPSERT_JOB_TEMPLATE_CONFIG when path is empty. With neither set it
// returns Default(); the tool is usable with positional arguments alone.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvironmentVariable)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, applies the
// section for the configured environment, and expands ${VAR} patterns.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.AWS != nil {
		if overrides.AWS.Region != "" {
			c.AWS.Region = overrides.AWS.Region
		}
		if overrides.AWS.SessionNamePrefix != "" {
			c.AWS.SessionNamePrefix = overrides.AWS.SessionNamePrefix
		}
	}

	if overrides.Discovery != nil {
		if overrides.Discovery.InitialInterval != "" {
			c.Discovery.InitialInterval = overrides.Discovery.InitialInterval
		}
		if overrides.Discovery.MaxInterval != "" {
			c.Discovery.MaxInterval = overrides.Discovery.MaxInterval
		}
		if overrides.Discovery.Multiplier != 0 {
			c.Discovery.Multiplier = overrides.Discovery.Multiplier
		}
		// Zero jitter is a meaningful override, so it cannot be told
		// apart from "unset"; only positive values override.
		if overrides.Discovery.RandomizationFactor > 0 {
			c.Discovery.RandomizationFactor = overrides.Discovery.RandomizationFactor
		}
		if overrides.Discovery.MaxAttempts != 0 {
			c.Discovery.MaxAttempts = overrides.Discovery.MaxAttempts
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} in string fields
// that name external resources.
func (c *Config) expandVariables() {
	c.AWS.Region = expandVars(c.AWS.Region)
	c.AWS.SessionNamePrefix = expandVars(c.AWS.SessionNamePrefix)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Intervals parses InitialInterval and MaxInterval.
func (d DiscoveryConfig) Intervals() (initial, maximum time.Duration, err error) {
	initial, err = time.ParseDuration(d.InitialInterval)
	if err != nil {
		return 0, 0, fmt.Errorf("endpoint_discovery.initial_interval: %w", err)
	}
	maximum, err = time.ParseDuration(d.MaxInterval)
	if err != nil {
		return 0, 0, fmt.Errorf("endpoint_discovery.max_interval: %w", err)
	}
	return initial, maximum, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.AWS.SessionNamePrefix == "" {
		errs = append(errs, fmt.Errorf("aws.session_name_prefix is required"))
	}

	initial, maximum, err := c.Discovery.Intervals()
	if err != nil {
		errs = append(errs, err)
	} else {
		if initial <= 0 {
			errs = append(errs, fmt.Errorf("endpoint_discovery.initial_interval must be positive"))
		}
		if maximum < initial {
			errs = append(errs, fmt.Errorf("endpoint_discovery.max_interval must be >= initial_interval"))
		}
	}

	if c.Discovery.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("endpoint_discovery.multiplier must be >= 1"))
	}
	if c.Discovery.RandomizationFactor < 0 || c.Discovery.RandomizationFactor >= 1 {
		errs = append(errs, fmt.Errorf("endpoint_discovery.randomization_factor must be in [0, 1)"))
	}
	if c.Discovery.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("endpoint_discovery.max_attempts must be >= 0"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
