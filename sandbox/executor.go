// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/oklog/ulid/v2"
	"github.com/petmal/mindgauge/config"
	"github.com/petmal/mindgauge/pkg/logging"
)

var (
	// ErrSandboxInternal indicates a sandbox infrastructure failure unrelated
	// to the code under test.
	ErrSandboxInternal = errors.New("sandbox internal error")
	// ErrImageNotAvailable indicates that the sandbox image is not available locally.
	ErrImageNotAvailable = errors.New("sandbox image not available")
)

const (
	// containerWorkDir is where the harness files are mounted inside the container.
	containerWorkDir = "/sandbox"
	// resultMarker prefixes the harness result line on stdout.
	resultMarker = "__MINDGAUGE_RESULT__:"
	// numericEpsilon is the tolerance used when comparing floating-point outputs.
	numericEpsilon = 1e-6
)

// Executor runs extracted code in isolated containers, one container per case.
type Executor struct {
	client *client.Client
	cfg    config.SandboxConfig
}

// NewExecutor creates a sandbox executor backed by the local container engine.
func NewExecutor(ctx context.Context, cfg config.SandboxConfig) (*Executor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create container engine client: %v", ErrSandboxInternal, err)
	}

	return &Executor{
		client: cli,
		cfg:    cfg,
	}, nil
}

// ValidateImage ensures the configured sandbox image is available locally.
func (e *Executor) ValidateImage(ctx context.Context) error {
	image := e.cfg.GetImage()
	if _, _, err := e.client.ImageInspectWithRaw(ctx, image); err != nil {
		switch {
		case errdefs.IsNotFound(err):
			return fmt.Errorf("%w: image %q is not available locally. Pull the image with `docker pull %s` and try again", ErrImageNotAvailable, image, image)
		default:
			return fmt.Errorf("%w: failed to inspect image %q: %v", ErrSandboxInternal, image, err)
		}
	}
	return nil
}

// Close closes the container engine client connection.
func (e *Executor) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// Execute extracts the first fenced code block from the response and runs it
// against every declared case. Cases are isolated from each other: each runs
// in its own container with its own timeout budget, and a crash or timeout in
// one case never affects execution of subsequent cases. A case that cannot be
// attempted counts as failed, never as excluded.
func (e *Executor) Execute(ctx context.Context, logger logging.Logger, response string, expectation config.CodeExpectation, timeout time.Duration) (Outcome, error) {
	code, err := ExtractCodeBlock(response)
	if err != nil {
		logger.Error(ctx, logging.LevelDebug, err, "marking all cases failed")
		return failAll(len(expectation.Cases), TagNoCodeBlock, err.Error()), nil
	}

	if timeout <= 0 {
		timeout = e.cfg.GetTimeout()
	}

	outcome := Outcome{Cases: make([]CaseResult, 0, len(expectation.Cases))}
	for i, codeCase := range expectation.Cases {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}

		caseLogger := logger.WithContext(fmt.Sprintf("case %d: ", i))
		result := e.runCase(ctx, caseLogger, code, expectation.Entrypoint, codeCase, timeout)
		if result.Passed {
			caseLogger.Message(ctx, logging.LevelDebug, "passed")
		} else {
			caseLogger.Message(ctx, logging.LevelDebug, "failed (%s): %s", result.Tag, result.Detail)
		}
		outcome.Cases = append(outcome.Cases, result)
	}

	return outcome, nil
}

// runCase executes the code against a single input/output case in a fresh container.
func (e *Executor) runCase(ctx context.Context, logger logging.Logger, code string, entrypoint string, codeCase config.CodeCase, timeout time.Duration) CaseResult {
	// Write the harness files to a fresh workspace directory.
	tempDir, err := os.MkdirTemp("", "mindgauge-sandbox-*")
	if err != nil {
		return CaseResult{Tag: TagExecError, Detail: fmt.Sprintf("failed to create workspace directory: %v", err)}
	}
	defer os.RemoveAll(tempDir)

	argsJSON, err := json.Marshal(codeCase.Input.Args)
	if err != nil {
		return CaseResult{Tag: TagExecError, Detail: fmt.Sprintf("failed to encode case arguments: %v", err)}
	}

	script := buildHarness(code, entrypoint)
	if err := os.WriteFile(filepath.Join(tempDir, "main.py"), []byte(script), 0o644); err != nil {
		return CaseResult{Tag: TagExecError, Detail: fmt.Sprintf("failed to write harness: %v", err)}
	}
	if err := os.WriteFile(filepath.Join(tempDir, "args.json"), argsJSON, 0o644); err != nil {
		return CaseResult{Tag: TagExecError, Detail: fmt.Sprintf("failed to write case arguments: %v", err)}
	}

	stdout, stderr, err := e.runContainer(ctx, logger, tempDir, timeout)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CaseResult{Tag: TagExecTimeout, Detail: fmt.Sprintf("execution timed out after %s", timeout)}
	case err != nil:
		detail := strings.TrimSpace(stderr)
		if detail == "" {
			detail = err.Error()
		}
		return CaseResult{Tag: TagExecError, Detail: detail}
	}

	actual, ok := parseResult(stdout)
	if !ok {
		return CaseResult{Tag: TagExecError, Detail: "harness produced no result value"}
	}

	expected := normalizeValue(codeCase.Output)
	if !valuesEqual(expected, actual) {
		return CaseResult{Tag: TagAssertionFailed, Detail: fmt.Sprintf("expected %v, got %v", expected, actual)}
	}

	return CaseResult{Passed: true}
}

// runContainer creates, starts and waits for a single-use sandbox container
// and returns its captured stdout and stderr. The container has no network
// access and is forcibly removed on return so no zombie containers survive
// the call, even on timeout.
func (e *Executor) runContainer(ctx context.Context, logger logging.Logger, workDir string, timeout time.Duration) (stdout string, stderr string, err error) {
	containerConfig := &container.Config{
		Image:        e.cfg.GetImage(),
		Cmd:          []string{"python3", containerWorkDir + "/main.py"},
		AttachStdout: true,
		AttachStderr: true,
		Tty:          false,
	}

	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:     mount.TypeBind,
			Source:   workDir,
			Target:   containerWorkDir,
			ReadOnly: true,
		}},
		AutoRemove:    false, // manually remove container after retrieving logs
		NetworkMode:   network.NetworkNone,
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyDisabled},
	}

	if e.cfg.MaxMemoryMB != nil {
		hostConfig.Memory = int64(*e.cfg.MaxMemoryMB) * 1024 * 1024
	}
	if e.cfg.CPUPercent != nil {
		// NanoCPUs = (numCPUs * percent / 100) * 1e9
		hostConfig.NanoCPUs = int64(runtime.NumCPU()) * int64(*e.cfg.CPUPercent) * 10000000
	}

	containerName := fmt.Sprintf("mindgauge-sandbox-%s", ulid.Make().String())
	createResp, err := e.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, containerName)
	if err != nil {
		return "", "", fmt.Errorf("%w: failed to create sandbox container (image: %q): %v", ErrSandboxInternal, e.cfg.GetImage(), err)
	}
	logger.Message(ctx, logging.LevelTrace, "created sandbox container %q (ID: %s)", containerName, createResp.ID)

	// Ensure the container is removed even if execution fails or times out.
	defer func() {
		removeErr := e.client.ContainerRemove(ctx, createResp.ID, container.RemoveOptions{Force: true, RemoveVolumes: true})
		switch {
		case removeErr == nil, errdefs.IsConflict(removeErr), errdefs.IsNotFound(removeErr):
			// Container removed successfully or already removed. Ignore.
		default:
			logger.Error(ctx, logging.LevelWarn, removeErr, "failed to remove sandbox container after execution")
		}
	}()

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	status, err := e.waitContainer(execCtx, createResp.ID)
	duration := time.Since(start)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "", "", context.DeadlineExceeded
	case err != nil:
		return "", "", fmt.Errorf("%w: %v", ErrSandboxInternal, err)
	}
	logger.Message(ctx, logging.LevelTrace, "sandbox container %q exited with code %d in %v", createResp.ID, status.StatusCode, duration)

	stdout, stderr, err = e.readContainerLogs(ctx, createResp.ID)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrSandboxInternal, err)
	}

	if status.StatusCode != 0 {
		return stdout, stderr, fmt.Errorf("sandbox container exited with code %d", status.StatusCode)
	}

	return stdout, stderr, nil
}

// waitContainer starts a container and waits for it to complete, returning the final status.
func (e *Executor) waitContainer(ctx context.Context, containerID string) (status container.WaitResponse, err error) {
	if err := e.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return status, fmt.Errorf("failed to start sandbox container: %w", err)
	}

	statusCh, errCh := e.client.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return status, fmt.Errorf("failed waiting for sandbox execution to finish: %w", err)
		}
	case status = <-statusCh:
		return status, nil
	case <-ctx.Done():
		return status, ctx.Err()
	}

	return status, nil
}

// readContainerLogs returns the container's stdout and stderr streams separately.
func (e *Executor) readContainerLogs(ctx context.Context, containerID string) (string, string, error) {
	logs, err := e.client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to get sandbox container logs: %w", err)
	}
	defer logs.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	if _, err = stdcopy.StdCopy(&stdoutBuf, &stderrBuf, logs); err != nil {
		return "", "", fmt.Errorf("failed to read sandbox container output: %w", err)
	}

	return stdoutBuf.String(), stderrBuf.String(), nil
}

// buildHarness appends the result-printing harness to the extracted code.
// The harness loads the case arguments from the mounted args file, calls the
// entrypoint and prints the JSON-encoded return value behind a marker.
func buildHarness(code string, entrypoint string) string {
	var script strings.Builder
	script.WriteString(code)
	script.WriteString("\n\n")
	script.WriteString("import json as _json\n")
	script.WriteString("with open(\"" + containerWorkDir + "/args.json\") as _fp:\n")
	script.WriteString("    _args = _json.load(_fp)\n")
	script.WriteString("_result = " + entrypoint + "(*_args)\n")
	script.WriteString("print(\"" + resultMarker + "\" + _json.dumps(_result))\n")
	return script.String()
}

// parseResult extracts the harness result value from captured stdout.
func parseResult(stdout string) (interface{}, bool) {
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, resultMarker) {
			continue
		}

		var value interface{}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, resultMarker)), &value); err != nil {
			return nil, false
		}
		return value, true
	}
	return nil, false
}

// normalizeValue converts an expected value loaded from YAML into the same
// domain as JSON-decoded harness output so the two can be compared.
func normalizeValue(value interface{}) interface{} {
	encoded, err := json.Marshal(value)
	if err != nil {
		return value
	}

	var normalized interface{}
	if err := json.Unmarshal(encoded, &normalized); err != nil {
		return value
	}
	return normalized
}

// valuesEqual compares two JSON-domain values with numeric tolerance for
// floating-point numbers and exact equality for everything else.
func valuesEqual(expected interface{}, actual interface{}) bool {
	switch expectedValue := expected.(type) {
	case float64:
		actualValue, ok := actual.(float64)
		if !ok {
			return false
		}
		diff := expectedValue - actualValue
		if diff < 0 {
			diff = -diff
		}
		return diff <= numericEpsilon
	case []interface{}:
		actualValue, ok := actual.([]interface{})
		if !ok || len(expectedValue) != len(actualValue) {
			return false
		}
		for i := range expectedValue {
			if !valuesEqual(expectedValue[i], actualValue[i]) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		actualValue, ok := actual.(map[string]interface{})
		if !ok || len(expectedValue) != len(actualValue) {
			return false
		}
		for key, value := range expectedValue {
			other, exists := actualValue[key]
			if !exists || !valuesEqual(value, other) {
				return false
			}
		}
		return true
	default:
		return expected == actual
	}
}
