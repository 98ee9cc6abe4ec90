// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package formatters

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/petmal/mindgauge/evaluation"
	"github.com/petmal/mindgauge/runners"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLFormatterWrite(t *testing.T) {
	formatter := NewJSONLFormatter()
	var out bytes.Buffer
	require.NoError(t, formatter.Write(mockResults, &out))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)

	var first evaluation.ResultRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "hallucination-001", first.TestID)
	assert.Equal(t, "model-alpha", first.Model)
	assert.Equal(t, "llm_judge", first.Method)
	assert.Equal(t, 0.25, first.Score)
	assert.False(t, first.Passed)
	assert.Equal(t, []string{"hallucinated_entity", "overconfident"}, first.Tags.Values())
	assert.Equal(t, 3200*time.Millisecond, first.Latency)

	var last evaluation.ResultRecord
	require.NoError(t, json.Unmarshal([]byte(lines[3]), &last))
	assert.Equal(t, "reasoning-002", last.TestID)
	assert.Equal(t, "model-beta", last.Model)
	assert.Equal(t, 1, last.Repeat)
}

func TestJSONLFormatterWriteEmpty(t *testing.T) {
	formatter := NewJSONLFormatter()
	var out bytes.Buffer
	require.NoError(t, formatter.Write(runners.Results{}, &out))
	assert.Empty(t, out.String())
}

func TestJSONLFormatterFileExt(t *testing.T) {
	assert.Equal(t, "jsonl", NewJSONLFormatter().FileExt())
}
