// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package evaluation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/petmal/mindgauge/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadResponses(t *testing.T) {
	in := strings.NewReader(`{"test_id": "reasoning-001", "model": "model-alpha", "repeat": 0, "response": "42", "latency": 1500000000}
{"test_id": "reasoning-001", "model": "model-alpha", "repeat": 1, "response": "forty-two", "latency": 980000000, "metadata": {"provider": "mock"}}
`)
	responses, err := LoadResponses(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.Equal(t, ResponseRecord{
		TestID:   "reasoning-001",
		Model:    "model-alpha",
		Repeat:   0,
		Response: "42",
		Latency:  1500 * time.Millisecond,
	}, responses[0])
	assert.Equal(t, 1, responses[1].Repeat)
	assert.Equal(t, map[string]string{"provider": "mock"}, responses[1].Metadata)
}

func TestLoadResponsesEmpty(t *testing.T) {
	responses, err := LoadResponses(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, responses)
}

func TestLoadResponsesInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{
			name: "malformed JSON",
			in:   `{"test_id": "reasoning-001", "model":` + "\n",
		},
		{
			name: "missing test reference",
			in:   `{"model": "model-alpha", "response": "42"}` + "\n",
		},
		{
			name: "missing model identifier",
			in:   `{"test_id": "reasoning-001", "response": "42"}` + "\n",
		},
		{
			name: "negative repeat index",
			in:   `{"test_id": "reasoning-001", "model": "model-alpha", "repeat": -1, "response": "42"}` + "\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadResponses(context.Background(), strings.NewReader(tt.in))
			assert.ErrorIs(t, err, ErrInvalidResponseRecord)
		})
	}
}

func TestLoadResponsesContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := LoadResponses(ctx, strings.NewReader(`{"test_id": "t", "model": "m"}`))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadResponsesFromFile(t *testing.T) {
	path := testutils.CreateMockFile(t, "*.jsonl", []byte(`{"test_id": "reasoning-001", "model": "model-alpha", "response": "42"}`))
	responses, err := LoadResponsesFromFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "model-alpha", responses[0].Model)
}

func TestLoadResponsesFromFileNotFound(t *testing.T) {
	_, err := LoadResponsesFromFile(context.Background(), "does-not-exist.jsonl")
	assert.Error(t, err)
}
