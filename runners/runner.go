// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

// Package runners executes evaluation batches: it joins model responses with
// their test cases and fans the resulting trials out to the evaluation
// dispatcher over a bounded worker pool.
package runners

import (
	"context"

	"github.com/petmal/mindgauge/config"
	"github.com/petmal/mindgauge/evaluation"
	"github.com/petmal/mindgauge/pkg/utils"
)

// Trial pairs one test case with one model response awaiting evaluation.
type Trial struct {
	// TestCase is the benchmark item the response answers.
	TestCase config.TestCase
	// Response is the raw model output under evaluation.
	Response evaluation.ResponseRecord
}

// Runner evaluates batches of response records against a test suite.
type Runner interface {
	// Run evaluates all given responses and returns when done.
	Run(ctx context.Context, responses []evaluation.ResponseRecord) error
	// GetResults returns the results accumulated by the last Run call.
	GetResults() Results
	// Close releases resources when the runner is no longer needed.
	Close(ctx context.Context)
}

// Results is the scored outcome of one evaluation batch.
type Results []evaluation.ResultRecord

// ByModel groups the results by model name.
func (r Results) ByModel() map[string][]evaluation.ResultRecord {
	byModel := make(map[string][]evaluation.ResultRecord)
	for _, record := range r {
		byModel[record.Model] = append(byModel[record.Model], record)
	}
	return byModel
}

// Models returns the distinct model names in ascending order.
func (r Results) Models() []string {
	return utils.SortedKeys(r.ByModel())
}

// Failures returns only the failing results.
func (r Results) Failures() Results {
	failures := make(Results, 0, len(r))
	for _, record := range r {
		if record.IsFailure() {
			failures = append(failures, record)
		}
	}
	return failures
}
