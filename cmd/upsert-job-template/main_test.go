// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"

	"github.com/bureau-foundation/jobtemplate/lib/awsauth"
	"github.com/bureau-foundation/jobtemplate/lib/clock"
	"github.com/bureau-foundation/jobtemplate/lib/config"
	"github.com/bureau-foundation/jobtemplate/lib/jobtemplate"
	"github.com/bureau-foundation/jobtemplate/lib/testutil"
)

const (
	testRole     = "arn:aws:iam::123456789012:role/MediaConvertRole"
	testEndpoint = "https://abcd1234.mediaconvert.us-east-1.amazonaws.com"
)

// settingsDocument has irregular whitespace and key order so a
// re-encoding anywhere on the path would show up as a mismatch.
const settingsDocument = `{ "outputGroups":[{"name":"HLS",   "outputs":[]}],
  "inputs": [ {"timecodeSource":"ZEROBASED"} ] }
`

type fakeSTS struct {
	mu    sync.Mutex
	roles []string
}

func (fake *fakeSTS) AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	fake.mu.Lock()
	fake.roles = append(fake.roles, aws.ToString(params.RoleArn))
	fake.mu.Unlock()
	return &sts.AssumeRoleOutput{Credentials: &ststypes.Credentials{
		AccessKeyId:     aws.String("ASIATEMPORARY"),
		SecretAccessKey: aws.String("temporary-secret"),
		SessionToken:    aws.String("temporary-token"),
		Expiration:      aws.Time(time.Date(2026, 10, 16, 13, 0, 0, 0, time.UTC)),
	}}, nil
}

type writeCall struct {
	name     string
	settings []byte
}

// fakeService is an in-memory MediaConvert account shared by every
// client the command builds.
type fakeService struct {
	mu sync.Mutex

	existing  map[string]bool
	throttles int

	describers      int
	clientEndpoints []string
	describeCalls   int
	getCalls        []string
	creates         []writeCall
	updates         []writeCall
}

func (fake *fakeService) DescribeEndpoints(ctx context.Context) ([]string, error) {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	fake.describeCalls++
	if fake.describeCalls <= fake.throttles {
		return nil, &types.TooManyRequestsException{Message: aws.String("Too many requests")}
	}
	return []string{testEndpoint}, nil
}

func (fake *fakeService) GetJobTemplate(ctx context.Context, name string) (*jobtemplate.Template, error) {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	fake.getCalls = append(fake.getCalls, name)
	if !fake.existing[name] {
		return nil, &types.NotFoundException{Message: aws.String("template not found")}
	}
	return &jobtemplate.Template{Name: name}, nil
}

func (fake *fakeService) CreateJobTemplate(ctx context.Context, name string, settings []byte) (*jobtemplate.Template, error) {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	fake.creates = append(fake.creates, writeCall{name: name, settings: bytes.Clone(settings)})
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	return &jobtemplate.Template{Name: name, CreatedAt: now, LastUpdated: now}, nil
}

func (fake *fakeService) UpdateJobTemplate(ctx context.Context, name string, settings []byte) (*jobtemplate.Template, error) {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	fake.updates = append(fake.updates, writeCall{name: name, settings: bytes.Clone(settings)})
	return &jobtemplate.Template{
		Name:        name,
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		LastUpdated: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC),
	}, nil
}

type harness struct {
	sts           *fakeSTS
	service       *fakeService
	clock         *clock.FakeClock
	awsConfigLoad int
	region        string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv(config.EnvironmentVariable, "")
	return &harness{
		sts:     &fakeSTS{},
		service: &fakeService{existing: map[string]bool{}},
		clock:   clock.Fake(time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)),
	}
}

func (h *harness) dependencies() dependencies {
	return dependencies{
		loadAWSConfig: func(ctx context.Context, region string) (aws.Config, error) {
			h.awsConfigLoad++
			h.region = region
			return aws.Config{Region: "us-east-1"}, nil
		},
		newSTS: func(aws.Config) awsauth.STSAPI { return h.sts },
		newDescriber: func(cfg aws.Config, credentials aws.CredentialsProvider, logger *slog.Logger) jobtemplate.EndpointDescriber {
			h.service.mu.Lock()
			h.service.describers++
			h.service.mu.Unlock()
			return h.service
		},
		newService: func(cfg aws.Config, credentials aws.CredentialsProvider, endpoint string, logger *slog.Logger) jobtemplate.TemplateStore {
			h.service.mu.Lock()
			h.service.clientEndpoints = append(h.service.clientEndpoints, endpoint)
			h.service.mu.Unlock()
			return h.service
		},
		newLogger: func(bool) *slog.Logger { return slog.New(slog.DiscardHandler) },
		clock:     h.clock,
	}
}

func (h *harness) remoteCalls() int {
	return h.awsConfigLoad + len(h.sts.roles) + h.service.describeCalls +
		len(h.service.getCalls) + len(h.service.creates) + len(h.service.updates)
}

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ott-hls.json")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing settings: %v", err)
	}
	return path
}

func TestRun_WrongArityPrintsUsage(t *testing.T) {
	settingsPath := writeSettings(t, settingsDocument)

	tests := []struct {
		name string
		args []string
	}{
		{"no arguments", nil},
		{"one argument", []string{"ott-hls"}},
		{"two arguments", []string{"ott-hls", testRole}},
		{"five arguments", []string{"ott-hls", testRole, settingsPath, testEndpoint, "extra"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			h := newHarness(t)
			var stdout bytes.Buffer

			if err := run(context.Background(), test.args, &stdout, h.dependencies()); err != nil {
				t.Fatalf("run returned error: %v", err)
			}
			if strings.TrimSpace(stdout.String()) != usageLine {
				t.Errorf("stdout = %q, want usage line", stdout.String())
			}
			if calls := h.remoteCalls(); calls != 0 {
				t.Errorf("%d remote calls made, want none", calls)
			}
		})
	}
}

func TestRun_CreatesAbsentTemplate(t *testing.T) {
	h := newHarness(t)
	settingsPath := writeSettings(t, settingsDocument)
	var stdout bytes.Buffer

	err := run(context.Background(), []string{"ott-hls", testRole, settingsPath, testEndpoint}, &stdout, h.dependencies())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(h.service.creates) != 1 {
		t.Fatalf("create called %d times, want 1", len(h.service.creates))
	}
	if len(h.service.updates) != 0 {
		t.Errorf("update called %d times, want 0", len(h.service.updates))
	}
	create := h.service.creates[0]
	if create.name != "ott-hls" {
		t.Errorf("created name = %q, want ott-hls", create.name)
	}
	if !bytes.Equal(create.settings, []byte(settingsDocument)) {
		t.Errorf("created settings differ from file:\n got %q\nwant %q", create.settings, settingsDocument)
	}
	if len(h.sts.roles) != 1 || h.sts.roles[0] != testRole {
		t.Errorf("assumed roles = %v, want [%s]", h.sts.roles, testRole)
	}

	output := stdout.String()
	for _, line := range []string{
		"Job template does not exist, creating it",
		"Creating template ott-hls",
		"Created job template ott-hls at 2026-10-16T12:00:00Z and last updated at 2026-10-16T12:00:00Z",
	} {
		if !strings.Contains(output, line) {
			t.Errorf("stdout missing %q:\n%s", line, output)
		}
	}
}

func TestRun_TemplateNamedHelp(t *testing.T) {
	h := newHarness(t)
	settingsPath := writeSettings(t, settingsDocument)
	var stdout bytes.Buffer

	err := run(context.Background(), []string{"help", testRole, settingsPath, testEndpoint}, &stdout, h.dependencies())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(h.service.creates) != 1 || h.service.creates[0].name != "help" {
		t.Fatalf("creates = %+v, want one create of template %q", h.service.creates, "help")
	}
	if strings.Contains(stdout.String(), "Usage:") {
		t.Errorf("help text printed for a template named help:\n%s", stdout.String())
	}
}

func TestRun_HelpFlag(t *testing.T) {
	for _, flag := range []string{"-h", "--help"} {
		t.Run(flag, func(t *testing.T) {
			h := newHarness(t)
			var stdout bytes.Buffer

			if err := run(context.Background(), []string{flag}, &stdout, h.dependencies()); err != nil {
				t.Fatalf("run: %v", err)
			}
			if !strings.Contains(stdout.String(), "Usage:") {
				t.Errorf("stdout = %q, want help text", stdout.String())
			}
			if h.remoteCalls() != 0 {
				t.Errorf("%s made remote calls", flag)
			}
		})
	}
}

func TestRun_UpdatesExistingTemplate(t *testing.T) {
	h := newHarness(t)
	h.service.existing["ott-hls"] = true
	settingsPath := writeSettings(t, settingsDocument)
	var stdout bytes.Buffer

	err := run(context.Background(), []string{"ott-hls", testRole, settingsPath, testEndpoint}, &stdout, h.dependencies())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(h.service.creates) != 0 {
		t.Errorf("create called %d times, want 0", len(h.service.creates))
	}
	if len(h.service.updates) != 1 {
		t.Fatalf("update called %d times, want 1", len(h.service.updates))
	}
	if !bytes.Equal(h.service.updates[0].settings, []byte(settingsDocument)) {
		t.Errorf("updated settings differ from file")
	}
	if !strings.Contains(stdout.String(), "Updated job template ott-hls at 2026-01-02T03:04:05Z and last updated at 2026-10-16T12:00:00Z") {
		t.Errorf("stdout missing update line:\n%s", stdout.String())
	}
}

func TestRun_ExplicitEndpointSkipsResolver(t *testing.T) {
	h := newHarness(t)
	settingsPath := writeSettings(t, settingsDocument)
	var stdout bytes.Buffer

	err := run(context.Background(), []string{"ott-hls", testRole, settingsPath, testEndpoint}, &stdout, h.dependencies())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if h.service.describeCalls != 0 || h.service.describers != 0 {
		t.Errorf("resolver used: %d describers built, %d DescribeEndpoints calls", h.service.describers, h.service.describeCalls)
	}
	if len(h.service.clientEndpoints) != 1 || h.service.clientEndpoints[0] != testEndpoint {
		t.Errorf("clients built for endpoints %q, want only %q", h.service.clientEndpoints, testEndpoint)
	}
}

func TestRun_ResolvesEndpointThroughThrottling(t *testing.T) {
	h := newHarness(t)
	h.service.throttles = 1
	settingsPath := writeSettings(t, settingsDocument)
	var stdout bytes.Buffer

	done := make(chan error, 1)
	go func() {
		done <- run(context.Background(), []string{"ott-hls", testRole, settingsPath}, &stdout, h.dependencies())
	}()

	// The default policy waits exactly one minute after the throttle.
	h.clock.WaitForTimers(1)
	h.clock.Advance(time.Minute)

	if err := testutil.RequireReceive(t, done, 5*time.Second, "waiting for run"); err != nil {
		t.Fatalf("run: %v", err)
	}

	if h.service.describeCalls != 2 {
		t.Errorf("DescribeEndpoints called %d times, want 2", h.service.describeCalls)
	}
	if h.service.describers != 1 {
		t.Errorf("%d discovery clients built, want 1", h.service.describers)
	}
	if len(h.service.clientEndpoints) != 1 || h.service.clientEndpoints[0] != testEndpoint {
		t.Errorf("template clients built for endpoints %q, want only the resolved %q", h.service.clientEndpoints, testEndpoint)
	}
	if len(h.service.creates) != 1 {
		t.Errorf("create called %d times, want 1", len(h.service.creates))
	}
}

func TestRun_MaxAttemptsFlag(t *testing.T) {
	h := newHarness(t)
	h.service.throttles = 10
	settingsPath := writeSettings(t, settingsDocument)
	var stdout bytes.Buffer

	err := run(context.Background(), []string{"--max-attempts", "1", "ott-hls", testRole, settingsPath}, &stdout, h.dependencies())
	if !jobtemplate.IsThrottled(err) {
		t.Fatalf("error = %v, want throttling error", err)
	}
	if h.service.describeCalls != 1 {
		t.Errorf("DescribeEndpoints called %d times, want 1", h.service.describeCalls)
	}
	if len(h.service.getCalls) != 0 {
		t.Errorf("template looked up after resolution failed")
	}
}

func TestRun_DryRun(t *testing.T) {
	h := newHarness(t)
	settingsPath := writeSettings(t, settingsDocument)
	var stdout bytes.Buffer

	err := run(context.Background(), []string{"--dry-run", "ott-hls", testRole, settingsPath, testEndpoint}, &stdout, h.dependencies())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(h.service.getCalls) != 1 {
		t.Errorf("lookup called %d times, want 1", len(h.service.getCalls))
	}
	if len(h.service.creates)+len(h.service.updates) != 0 {
		t.Errorf("dry run wrote to the service")
	}
}

func TestRun_RegionFlag(t *testing.T) {
	h := newHarness(t)
	settingsPath := writeSettings(t, settingsDocument)
	var stdout bytes.Buffer

	err := run(context.Background(), []string{"--region", "eu-west-1", "ott-hls", testRole, settingsPath, testEndpoint}, &stdout, h.dependencies())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.region != "eu-west-1" {
		t.Errorf("AWS config loaded for region %q, want eu-west-1", h.region)
	}
}

func TestRun_ConfigFile(t *testing.T) {
	h := newHarness(t)
	settingsPath := writeSettings(t, settingsDocument)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `environment: production
aws:
  region: us-west-2
production:
  aws:
    region: ap-southeast-2
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	var stdout bytes.Buffer

	err := run(context.Background(), []string{"--config", configPath, "ott-hls", testRole, settingsPath, testEndpoint}, &stdout, h.dependencies())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.region != "ap-southeast-2" {
		t.Errorf("AWS config loaded for region %q, want ap-southeast-2", h.region)
	}
}

func TestRun_SettingsFileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		h := newHarness(t)
		missing := filepath.Join(t.TempDir(), "missing.json")
		var stdout bytes.Buffer

		err := run(context.Background(), []string{"ott-hls", testRole, missing, testEndpoint}, &stdout, h.dependencies())
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("error = %v, want os.ErrNotExist", err)
		}
		if calls := h.remoteCalls(); calls != 0 {
			t.Errorf("%d remote calls made before reading settings failed", calls)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		h := newHarness(t)
		empty := writeSettings(t, "  \n")
		var stdout bytes.Buffer

		err := run(context.Background(), []string{"ott-hls", testRole, empty, testEndpoint}, &stdout, h.dependencies())
		if !errors.Is(err, jobtemplate.ErrEmptySettings) {
			t.Errorf("error = %v, want ErrEmptySettings", err)
		}
		if calls := h.remoteCalls(); calls != 0 {
			t.Errorf("%d remote calls made for empty settings", calls)
		}
	})
}

func TestRun_Version(t *testing.T) {
	h := newHarness(t)
	var stdout bytes.Buffer

	if err := run(context.Background(), []string{"--version"}, &stdout, h.dependencies()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "upsert-job-template ") {
		t.Errorf("stdout = %q, want version line", stdout.String())
	}
	if h.remoteCalls() != 0 {
		t.Errorf("--version made remote calls")
	}
}

func TestRun_UnknownFlagSuggestion(t *testing.T) {
	h := newHarness(t)
	var stdout bytes.Buffer

	err := run(context.Background(), []string{"--dryrun", "ott-hls", testRole, "x.json"}, &stdout, h.dependencies())
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if !strings.Contains(err.Error(), "--dry-run") {
		t.Errorf("error %q does not suggest --dry-run", err.Error())
	}
}
