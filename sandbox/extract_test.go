// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCodeBlock(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
		wantErr  error
	}{
		{
			name:     "python fence",
			response: "Here is my solution:\n```python\ndef add(a, b):\n    return a + b\n```\nHope this helps!",
			want:     "def add(a, b):\n    return a + b",
		},
		{
			name:     "bare fence",
			response: "```\nprint(\"hello\")\n```",
			want:     "print(\"hello\")",
		},
		{
			name:     "first of multiple blocks",
			response: "```python\nfirst = 1\n```\nand then\n```python\nsecond = 2\n```",
			want:     "first = 1",
		},
		{
			name:     "windows line endings",
			response: "```python\r\nx = 1\r\n```",
			want:     "x = 1",
		},
		{
			name:     "trailing whitespace after language tag",
			response: "```python \ny = 2\n```",
			want:     "y = 2",
		},
		{
			name:     "no fence",
			response: "def add(a, b):\n    return a + b",
			wantErr:  ErrNoCodeBlock,
		},
		{
			name:     "empty block",
			response: "```python\n```",
			wantErr:  ErrNoCodeBlock,
		},
		{
			name:     "whitespace-only block",
			response: "```python\n   \n\t\n```",
			wantErr:  ErrNoCodeBlock,
		},
		{
			name:     "unterminated fence",
			response: "```python\ndef add(a, b):\n    return a + b",
			wantErr:  ErrNoCodeBlock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractCodeBlock(tt.response)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutcomeScore(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		want    float64
	}{
		{
			name:    "all passed",
			outcome: Outcome{Cases: []CaseResult{{Passed: true}, {Passed: true}}},
			want:    1.0,
		},
		{
			name:    "partial",
			outcome: Outcome{Cases: []CaseResult{{Passed: true}, {Tag: TagAssertionFailed}, {Passed: true}, {Tag: TagExecError}}},
			want:    0.5,
		},
		{
			name:    "none passed",
			outcome: Outcome{Cases: []CaseResult{{Tag: TagExecTimeout}}},
			want:    0.0,
		},
		{
			name:    "no cases",
			outcome: Outcome{},
			want:    0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.outcome.Score(), 1e-9)
		})
	}
}

func TestOutcomeTags(t *testing.T) {
	outcome := Outcome{Cases: []CaseResult{
		{Tag: TagExecError},
		{Passed: true},
		{Tag: TagAssertionFailed},
		{Tag: TagExecError},
	}}

	assert.Equal(t, []string{TagExecError, TagAssertionFailed}, outcome.Tags().Values())
	assert.Equal(t, []bool{false, true, false, false}, outcome.PassFlags())
}

func TestFailAll(t *testing.T) {
	outcome := failAll(3, TagNoCodeBlock, "no fenced code block found")
	require.Len(t, outcome.Cases, 3)
	for _, result := range outcome.Cases {
		assert.False(t, result.Passed)
		assert.Equal(t, TagNoCodeBlock, result.Tag)
		assert.Equal(t, "no fenced code block found", result.Detail)
	}
	assert.Zero(t, outcome.Score())
}
