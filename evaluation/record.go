// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

// Package evaluation turns raw model responses into scored result records.
// It implements the scoring methods, the judge-based scorer, and the
// dispatcher that routes each test case to its declared method.
package evaluation

import (
	"time"

	"github.com/petmal/mindgauge/config"
	"github.com/petmal/mindgauge/pkg/utils"
)

// Failure tags attached to result records by the scoring methods.
const (
	// TagMismatch marks an exact-match comparison failure.
	TagMismatch = "mismatch"
	// TagOutOfTolerance marks a numeric comparison outside the tolerance window.
	TagOutOfTolerance = "out_of_tolerance"
	// TagNoNumberFound marks a failed numeric extraction.
	TagNoNumberFound = "no_number_found"
	// TagMissingRequiredTerm marks an absent required term.
	TagMissingRequiredTerm = "missing_required_term"
	// TagForbiddenTermPresent marks a present forbidden term.
	TagForbiddenTermPresent = "forbidden_term_present"
	// TagJudgeParseFailed marks a judge verdict that could not be parsed
	// after the bounded retry was exhausted.
	TagJudgeParseFailed = "judge_parse_failed"
	// TagConfigError marks a test case with an unusable eval declaration.
	TagConfigError = "config_error"
)

// Execution-failure tags (no_code_block, exec_timeout, exec_error,
// assertion_failed) are declared in the sandbox package that emits them.

// Controlled vocabulary of judge verdict tags.
const (
	TagHallucinatedEntity = "hallucinated_entity"
	TagUnsupportedClaim   = "unsupported_claim"
	TagOverconfident      = "overconfident"
	TagJudgmentalTone     = "judgmental_tone"
)

// ResponseRecord is one model's raw output for one trial of a test case.
// Produced once per (test, model, repeat) trial by the external
// model-invocation layer; immutable.
type ResponseRecord struct {
	// TestID references the test case this response answers.
	TestID string `json:"test_id"`
	// Model identifies the model under test.
	Model string `json:"model"`
	// Repeat is the zero-based repeat index of this trial.
	Repeat int `json:"repeat"`
	// Response is the raw model output text.
	Response string `json:"response"`
	// Latency is the time the model took to produce the response.
	Latency time.Duration `json:"latency"`
	// Metadata carries optional execution metadata from the invocation layer.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ResultRecord is the scored outcome of evaluating one ResponseRecord
// against its TestCase. Immutable once produced by the dispatcher.
type ResultRecord struct {
	// TestID references the scored test case.
	TestID string `json:"test_id"`
	// Model identifies the model under test.
	Model string `json:"model"`
	// Repeat is the zero-based repeat index of the scored trial.
	Repeat int `json:"repeat"`
	// Category is copied from the test case.
	Category config.Category `json:"category"`
	// Difficulty is copied from the test case.
	Difficulty string `json:"difficulty,omitempty"`
	// VariantGroup is copied from the test case.
	VariantGroup string `json:"variant_group,omitempty"`
	// Method is the canonical name of the scoring method that produced the score.
	Method string `json:"method"`
	// Score is the trial score in [0, 1].
	Score float64 `json:"score"`
	// Passed reports whether Score reached the per-category pass threshold.
	Passed bool `json:"passed"`
	// Tags is the ordered set of failure tags attached by the scoring method.
	Tags utils.StringSet `json:"tags"`
	// Rationale is free-text scoring rationale, populated by judge-based methods.
	Rationale string `json:"rationale,omitempty"`
	// CaseResults is the per-case pass breakdown for code-category trials.
	CaseResults []bool `json:"case_results,omitempty"`
	// Latency is copied from the response record.
	Latency time.Duration `json:"latency"`
}

// IsFailure reports whether this trial counts as failing for failure-mode analysis.
func (r ResultRecord) IsFailure() bool {
	return !r.Passed
}
