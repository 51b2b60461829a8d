// Copyright 2025 The Storeforge Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package helm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os/exec"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Messages helm prints for conditions we absorb rather than fail on.
const (
	msgNameInUse       = "cannot re-use a name that is still in use"
	msgReleaseNotFound = "release: not found"
)

// runner executes the helm binary. It exists so tests can script helm
// behavior without a cluster.
type runner interface {
	run(ctx context.Context, binary string, args []string) (stdout, stderr string, err error)
}

type execRunner struct{}

func (execRunner) run(ctx context.Context, binary string, args []string) (string, string, error) {
	// #nosec G204 -- binary comes from configuration, args are built internally
	cmd := exec.CommandContext(ctx, binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), strings.TrimSpace(stderr.String()), err
}

// Client wraps the helm CLI. Releases are always named after the store
// they belong to, so release name collisions mirror store name
// collisions one-to-one.
type Client struct {
	binary string
	log    *zap.Logger
	runner runner
}

// NewClient creates a helm client around the given binary.
func NewClient(binary string, log *zap.Logger) *Client {
	return &Client{
		binary: binary,
		log:    log,
		runner: execRunner{},
	}
}

// Install installs a chart and blocks until its workloads are ready or
// the timeout elapses. A release that already exists under this name is
// treated as installed and absorbed; a readiness timeout surfaces as a
// *TimeoutError so callers can distinguish it from chart failures.
func (c *Client) Install(ctx context.Context, release, chartPath, namespace string, values map[string]string, timeout time.Duration) error {
	args := []string{
		"install", release, chartPath,
		"--namespace", namespace,
		"--create-namespace",
		"--timeout", fmt.Sprintf("%ds", int(timeout.Seconds())),
		"--wait",
	}
	for _, k := range slices.Sorted(maps.Keys(values)) {
		args = append(args, "--set", k+"="+values[k])
	}

	c.log.Info("running helm install",
		zap.String("release", release),
		zap.String("command", redactedCommand(c.binary, args)))

	_, stderr, err := c.runner.run(ctx, c.binary, args)
	if err != nil {
		if strings.Contains(stderr, msgNameInUse) {
			c.log.Warn("release already installed, skipping",
				zap.String("release", release),
				zap.String("namespace", namespace))
			return nil
		}
		if isTimeout(ctx, stderr) {
			return &TimeoutError{Release: release, Timeout: timeout}
		}
		return &ExecError{Op: "install", Release: release, Stderr: stderr}
	}

	c.log.Info("helm install complete",
		zap.String("release", release),
		zap.String("namespace", namespace))
	return nil
}

// Uninstall removes a release. A release helm has no record of counts
// as uninstalled.
func (c *Client) Uninstall(ctx context.Context, release, namespace string) error {
	args := []string{
		"uninstall", release,
		"--namespace", namespace,
	}

	_, stderr, err := c.runner.run(ctx, c.binary, args)
	if err != nil {
		if strings.Contains(stderr, msgReleaseNotFound) {
			c.log.Warn("release not found during uninstall",
				zap.String("release", release),
				zap.String("namespace", namespace))
			return nil
		}
		return &ExecError{Op: "uninstall", Release: release, Stderr: stderr}
	}

	c.log.Info("helm uninstall complete",
		zap.String("release", release),
		zap.String("namespace", namespace))
	return nil
}

// Status reports the state of one release. Returns ErrReleaseNotFound
// when helm does not know the release.
func (c *Client) Status(ctx context.Context, release, namespace string) (*ReleaseStatus, error) {
	args := []string{
		"status", release,
		"--namespace", namespace,
		"--output", "json",
	}

	stdout, stderr, err := c.runner.run(ctx, c.binary, args)
	if err != nil {
		if strings.Contains(stderr, msgReleaseNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrReleaseNotFound, release)
		}
		return nil, &ExecError{Op: "status", Release: release, Stderr: stderr}
	}

	var status ReleaseStatus
	if err := json.Unmarshal([]byte(stdout), &status); err != nil {
		return nil, fmt.Errorf("failed to parse helm status output: %w", err)
	}
	return &status, nil
}

// List returns the releases in a namespace, or across all namespaces
// when namespace is empty.
func (c *Client) List(ctx context.Context, namespace string) ([]Release, error) {
	args := []string{"list", "--output", "json"}
	if namespace != "" {
		args = append(args, "--namespace", namespace)
	} else {
		args = append(args, "--all-namespaces")
	}

	stdout, stderr, err := c.runner.run(ctx, c.binary, args)
	if err != nil {
		return nil, &ExecError{Op: "list", Release: "", Stderr: stderr}
	}

	var releases []Release
	if err := json.Unmarshal([]byte(stdout), &releases); err != nil {
		return nil, fmt.Errorf("failed to parse helm list output: %w", err)
	}
	return releases, nil
}

// isTimeout reports whether a failed install was a readiness timeout,
// either our context deadline or helm's own --timeout breach.
func isTimeout(ctx context.Context, stderr string) bool {
	if ctx.Err() == context.DeadlineExceeded {
		return true
	}
	return strings.Contains(stderr, "timed out waiting for the condition") ||
		strings.Contains(stderr, "context deadline exceeded")
}

// redactedCommand renders a helm command line for logging with secret
// chart values masked.
func redactedCommand(binary string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, binary)
	for i := 0; i < len(args); i++ {
		if args[i] == "--set" && i+1 < len(args) {
			parts = append(parts, args[i], redactSetPair(args[i+1]))
			i++
			continue
		}
		parts = append(parts, args[i])
	}
	return strings.Join(parts, " ")
}

func redactSetPair(pair string) string {
	key, _, ok := strings.Cut(pair, "=")
	if !ok {
		return pair
	}
	if isSensitiveKey(key) {
		return key + "=<redacted>"
	}
	return pair
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "password") ||
		strings.Contains(k, "secret") ||
		strings.Contains(k, "token")
}
