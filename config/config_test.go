// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `config:
  output-dir: ./results
  suite-source: ./suite.yaml
  responses-source: ./responses.jsonl
  workers: 8
  judge:
    model: mistral:7b
    max-requests-per-minute: 30
    retry-policy:
      max-retry-attempts: 2
      initial-delay-seconds: 3
  sandbox:
    image: python:3.11-slim
    timeout-seconds: 20
    max-memory-mb: 256
    cpu-percent: 50
  analysis:
    systematic-fraction: 0.4
    worst-test-limit: 10
    pass-thresholds:
      reasoning: 0.9
`

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o600))

	cfg, err := LoadConfigFromFile(context.Background(), path)
	require.NoError(t, err)

	app := cfg.Config
	assert.Equal(t, "./results", app.OutputDir)
	assert.Equal(t, 8, app.GetWorkers())
	assert.Equal(t, "mistral:7b", app.Judge.Model)
	assert.Equal(t, 30, app.Judge.MaxRequestsPerMinute)
	assert.Equal(t, 2, app.Judge.GetMaxRetryAttempts())
	assert.Equal(t, 3*time.Second, app.Judge.GetInitialRetryDelay())
	assert.Equal(t, "python:3.11-slim", app.Sandbox.GetImage())
	assert.Equal(t, 20*time.Second, app.Sandbox.GetTimeout())
	require.NotNil(t, app.Sandbox.MaxMemoryMB)
	assert.Equal(t, 256, *app.Sandbox.MaxMemoryMB)
	assert.Equal(t, 0.4, app.Analysis.GetSystematicFraction())
	assert.Equal(t, 10, app.Analysis.GetWorstTestLimit())
	assert.Equal(t, 0.9, app.Analysis.GetPassThreshold(CategoryReasoning))
}

func TestLoadConfigFromFileInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing output dir",
			yaml: "config:\n  suite-source: ./suite.yaml\n  responses-source: ./responses.jsonl\n",
		},
		{
			name: "unknown field",
			yaml: "config:\n  output-dir: ./out\n  suite-source: ./s.yaml\n  responses-source: ./r.jsonl\n  surprise: 1\n",
		},
		{
			name: "invalid workers",
			yaml: "config:\n  output-dir: ./out\n  suite-source: ./s.yaml\n  responses-source: ./r.jsonl\n  workers: -1\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))
			_, err := LoadConfigFromFile(context.Background(), path)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFromFileMissing(t *testing.T) {
	_, err := LoadConfigFromFile(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	var app AppConfig
	assert.Equal(t, DefaultWorkers, app.GetWorkers())
	assert.Equal(t, DefaultSandboxImage, app.Sandbox.GetImage())
	assert.Equal(t, DefaultSandboxTimeoutSeconds*time.Second, app.Sandbox.GetTimeout())
	assert.Equal(t, 1, app.Judge.GetMaxRetryAttempts())
	assert.Equal(t, time.Second, app.Judge.GetInitialRetryDelay())
	assert.Equal(t, DefaultSystematicFraction, app.Analysis.GetSystematicFraction())
	assert.Equal(t, DefaultSystematicCategories, app.Analysis.GetSystematicCategories())
	assert.Equal(t, DefaultWorstTestLimit, app.Analysis.GetWorstTestLimit())
}

func TestGetPassThresholdDefaults(t *testing.T) {
	var analysis AnalysisConfig
	assert.Equal(t, 1.0, analysis.GetPassThreshold(CategoryReasoning))
	assert.Equal(t, 0.7, analysis.GetPassThreshold(CategoryHallucination))
	assert.Equal(t, 0.7, analysis.GetPassThreshold(CategoryEmotion))
	assert.Equal(t, 1.0, analysis.GetPassThreshold(CategoryCode))
	assert.Equal(t, 1.0, analysis.GetPassThreshold(Category("unknown")))
}

func TestResolveFlagOverride(t *testing.T) {
	enabled := true
	assert.True(t, ResolveFlagOverride(&enabled, false))
	assert.False(t, ResolveFlagOverride(nil, false))
	assert.True(t, ResolveFlagOverride(nil, true))
}

func TestMakeAbs(t *testing.T) {
	assert.Equal(t, filepath.Join("/base", "rel.txt"), MakeAbs("/base", "rel.txt"))
	assert.Equal(t, "/abs/file.txt", MakeAbs("/base", "/abs/file.txt"))
	assert.Equal(t, "", MakeAbs("/base", ""))
}
