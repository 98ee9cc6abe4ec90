// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package main

import (
	"flag"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petmal/mindgauge/pkg/testutils"
	"github.com/petmal/mindgauge/version"
)

const (
	testOutputFileBasename = "results"
	mockSuite              = `suite-config:
  test-cases:
    - id: "reasoning-001"
      category: "reasoning"
      prompt: |-
        A train leaves the station at 09:15 and arrives at 10:45.
        How long was the journey in minutes?
      expected: "90"
      eval:
        method: "exact_match"
    - id: "reasoning-002"
      category: "reasoning"
      prompt: |-
        What is 17.5% of 240?
      expected: 42
      eval:
        method: "numeric_tolerance"
        params:
          tolerance: 0.01
    - id: "emotion-001"
      category: "emotion"
      prompt: |-
        A colleague writes that they missed a deadline and feel terrible about it.
        Write a short supportive reply.
      eval:
        method: "contains"
        params:
          required: ["understand"]
          forbidden: ["fault"]
    - id: "reasoning-disabled"
      disabled: true
      category: "reasoning"
      prompt: |-
        This one never runs.
      expected: "n/a"
      eval:
        method: "exact_match"`
	mockResponses = `{"test_id": "reasoning-001", "model": "model-alpha", "repeat": 0, "response": "90", "latency": 1200000000}
{"test_id": "reasoning-002", "model": "model-alpha", "repeat": 0, "response": "The answer is 42.", "latency": 900000000}
{"test_id": "emotion-001", "model": "model-alpha", "repeat": 0, "response": "I understand how stressful that must be. Let me know how I can help.", "latency": 1500000000}
{"test_id": "reasoning-001", "model": "model-beta", "repeat": 0, "response": "ninety minutes", "latency": 800000000}
`
)

func TestCommands(t *testing.T) {
	tests := []struct {
		name               string
		commands           []string
		wantStdoutContains []string
	}{
		{
			name:               "display help",
			commands:           []string{"help"},
			wantStdoutContains: []string{"Usage:"},
		},
		{
			name:               "display version",
			commands:           []string{"version"},
			wantStdoutContains: []string{fmt.Sprintf("%s %s", version.Name, version.GetVersion())},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sout := testutils.CaptureStdout(t, func() { testutils.WithArgs(t, main, tt.commands...) })
			testutils.AssertContainsAll(t, sout, tt.wantStdoutContains)
		})
	}
}

func TestRun(t *testing.T) {
	tests := []struct {
		name                  string
		suite                 string
		responses             string
		outputFileBasename    string
		formats               map[string]bool
		wantStdoutContains    []string
		wantStdoutNotContains []string
		wantCSVContains       []string
		wantJSONLContains     []string
		wantSummaryContains   []string
		wantLogContains       []string
	}{
		{
			name:               "evaluate recorded responses",
			suite:              mockSuite,
			responses:          mockResponses,
			outputFileBasename: testOutputFileBasename,
			formats:            map[string]bool{"csv": true, "jsonl": true, "summary": true},
			wantStdoutContains: []string{
				"Current working directory:",
				"Configuration directory:",
				"Loading configuration from file:",
				"Loading suite from file:",
				"Loading responses from file:",
				"Results in CSV format will be saved to:",
				"Results in JSONL format will be saved to:",
				"Results in JSON format will be saved to:",
				"Log messages will be saved to:",
			},
			wantCSVContains: []string{
				"Model,Test,Category,Method,Repeat,Score,Status,Tags,Duration,Rationale",
				"model-alpha,reasoning-001,reasoning,exact_match,0,1.000,PASS",
				"model-alpha,reasoning-002,reasoning,numeric_tolerance,0,1.000,PASS",
				"model-alpha,emotion-001,emotion,contains,0,1.000,PASS",
				"model-beta,reasoning-001,reasoning,exact_match,0,0.000,FAIL,mismatch",
			},
			wantJSONLContains: []string{
				`"test_id":"reasoning-001"`,
				`"model":"model-beta"`,
				`"tags":["mismatch"]`,
			},
			wantSummaryContains: []string{
				`"models"`,
				`"model-alpha"`,
				`"model-beta"`,
				`"correlations"`,
			},
			wantLogContains: []string{
				"starting evaluation of 4 trials on",
				"evaluation of all trials has finished",
			},
		},
		{
			name:               "nothing to evaluate when suite disabled",
			suite:              "suite-config:\n  disabled: true\n  test-cases:\n    - id: \"t\"\n      category: \"reasoning\"\n      prompt: \"p\"\n      expected: \"x\"\n      eval:\n        method: \"exact_match\"",
			responses:          mockResponses,
			outputFileBasename: testOutputFileBasename,
			formats:            map[string]bool{"csv": true},
			wantStdoutContains: []string{
				"Nothing to evaluate: all test cases are disabled.",
			},
			wantStdoutNotContains: []string{
				"Results in CSV format will be saved to:",
			},
		},
		{
			name:               "nothing to evaluate on empty responses",
			suite:              mockSuite,
			responses:          "",
			outputFileBasename: testOutputFileBasename,
			formats:            map[string]bool{"csv": true},
			wantStdoutContains: []string{
				"Nothing to evaluate: the responses file contains no records.",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outputDir := t.TempDir()
			suiteFile := testutils.CreateMockFile(t, "*.yaml", []byte(tt.suite))
			responsesFile := testutils.CreateMockFile(t, "*.jsonl", []byte(tt.responses))
			logFile := filepath.Join(outputDir, "run.log")
			configFile := testutils.CreateMockFile(t, "*.yaml", []byte(fmt.Sprintf(`config:
  output-dir: %q
  output-basename: %q
  log-file: %q
  suite-source: %q
  responses-source: %q
  workers: 2
`, outputDir, tt.outputFileBasename, logFile, suiteFile, responsesFile)))

			args := []string{"-config", configFile}
			for _, format := range []string{"csv", "jsonl", "summary"} {
				args = append(args, fmt.Sprintf("-%s=%s", format, strconv.FormatBool(tt.formats[format])))
			}
			args = append(args, "run")

			sout := testutils.CaptureStdout(t, func() {
				testutils.WithArgs(t, func() {
					resetFlagsAfterTest(t)
					main()
				}, args...)
			})
			testutils.AssertContainsAll(t, sout, tt.wantStdoutContains)
			for _, notWant := range tt.wantStdoutNotContains {
				require.NotContains(t, sout, notWant)
			}

			if len(tt.wantCSVContains) > 0 {
				testutils.AssertFileContains(t, filepath.Join(outputDir, testOutputFileBasename+".csv"), tt.wantCSVContains, nil)
			}
			if len(tt.wantJSONLContains) > 0 {
				testutils.AssertFileContains(t, filepath.Join(outputDir, testOutputFileBasename+".jsonl"), tt.wantJSONLContains, nil)
			}
			if len(tt.wantSummaryContains) > 0 {
				testutils.AssertFileContains(t, filepath.Join(outputDir, testOutputFileBasename+".json"), tt.wantSummaryContains, nil)
			}
			if len(tt.wantLogContains) > 0 {
				testutils.AssertFileContains(t, logFile, tt.wantLogContains, nil)
			}
		})
	}
}

// resetFlagsAfterTest restores flag values mutated by flag.Parse inside main.
func resetFlagsAfterTest(t *testing.T) {
	t.Cleanup(func() {
		flag.CommandLine.Visit(func(f *flag.Flag) {
			if strings.HasPrefix(f.Name, "test.") {
				// Leave the testing framework's own flags untouched.
				return
			}
			if err := flag.CommandLine.Set(f.Name, f.DefValue); err != nil {
				t.Errorf("failed to reset flag %s: %v", f.Name, err)
			}
		})
	})
}
