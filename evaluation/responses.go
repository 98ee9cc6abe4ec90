// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/petmal/mindgauge/config"
)

// ErrInvalidResponseRecord indicates a malformed or incomplete response record.
var ErrInvalidResponseRecord = errors.New("invalid response record")

// LoadResponsesFromFile reads response records from the JSON Lines file
// produced by the model-invocation layer.
func LoadResponsesFromFile(ctx context.Context, path string) ([]ResponseRecord, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open responses file: %w", err)
	}
	defer fp.Close()

	responses, err := LoadResponses(ctx, fp)
	if err != nil {
		return nil, fmt.Errorf("failed to read responses file %s: %w", path, err)
	}
	return responses, nil
}

// LoadResponses reads a stream of newline-delimited JSON response records.
// Every record must carry a test-case reference and a model identifier.
func LoadResponses(ctx context.Context, in io.Reader) ([]ResponseRecord, error) {
	decoder := json.NewDecoder(in)
	var responses []ResponseRecord
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var record ResponseRecord
		if err := decoder.Decode(&record); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrInvalidResponseRecord, len(responses)+1, err)
		}
		if !config.IsNotBlank(record.TestID) {
			return nil, fmt.Errorf("%w: record %d: missing test reference", ErrInvalidResponseRecord, len(responses)+1)
		}
		if !config.IsNotBlank(record.Model) {
			return nil, fmt.Errorf("%w: record %d: missing model identifier", ErrInvalidResponseRecord, len(responses)+1)
		}
		if record.Repeat < 0 {
			return nil, fmt.Errorf("%w: record %d: negative repeat index", ErrInvalidResponseRecord, len(responses)+1)
		}
		responses = append(responses, record)
	}
	return responses, nil
}
