// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package sandbox

import (
	"github.com/petmal/mindgauge/pkg/utils"
)

// Failure tags attached to individual code case results.
const (
	// TagNoCodeBlock marks a response without an extractable code block.
	TagNoCodeBlock = "no_code_block"
	// TagExecTimeout marks a case that exceeded its wall-clock budget.
	TagExecTimeout = "exec_timeout"
	// TagExecError marks a case that crashed or exited non-zero.
	TagExecError = "exec_error"
	// TagAssertionFailed marks a case whose output did not match the expected value.
	TagAssertionFailed = "assertion_failed"
)

// CaseResult is the outcome of executing one input/output case.
type CaseResult struct {
	// Passed reports whether the case produced the expected output.
	Passed bool
	// Tag is the failure tag; empty when the case passed.
	Tag string
	// Detail carries captured stderr, the timeout indicator, or a mismatch description.
	Detail string
}

// Outcome is the aggregated result of executing all cases of one code expectation.
type Outcome struct {
	// Cases holds per-case results in the order the cases were declared.
	Cases []CaseResult
}

// Score returns the partial credit: passed cases over total cases.
// A case that could not be attempted counts as failed, never as excluded.
func (o Outcome) Score() float64 {
	if len(o.Cases) == 0 {
		return 0.0
	}

	passed := 0
	for _, result := range o.Cases {
		if result.Passed {
			passed++
		}
	}
	return float64(passed) / float64(len(o.Cases))
}

// PassFlags returns the ordered per-case pass booleans.
func (o Outcome) PassFlags() []bool {
	flags := make([]bool, len(o.Cases))
	for i, result := range o.Cases {
		flags[i] = result.Passed
	}
	return flags
}

// Tags returns the ordered set of distinct failure tags across all cases.
func (o Outcome) Tags() utils.StringSet {
	tags := utils.NewStringSet()
	for _, result := range o.Cases {
		if result.Tag != "" {
			tags = tags.Add(result.Tag)
		}
	}
	return tags
}

// failAll returns an outcome with every declared case marked failed with the given tag.
func failAll(totalCases int, tag string, detail string) Outcome {
	cases := make([]CaseResult, totalCases)
	for i := range cases {
		cases[i] = CaseResult{Tag: tag, Detail: detail}
	}
	return Outcome{Cases: cases}
}
