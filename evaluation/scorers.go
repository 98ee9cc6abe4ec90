// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package evaluation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/petmal/mindgauge/config"
	"github.com/petmal/mindgauge/pkg/utils"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	numberRegex     = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

// normalizeText canonicalizes text for comparison: lowercase, trimmed,
// with runs of whitespace collapsed to single spaces.
func normalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(whitespaceRegex.ReplaceAllString(text, " ")))
}

// scoreExactMatch compares the normalized response against the normalized
// expected string. The score is 1.0 on equality and 0.0 otherwise.
func scoreExactMatch(response string, expected string) (float64, utils.StringSet) {
	if normalizeText(response) == normalizeText(expected) {
		return 1.0, utils.NewStringSet()
	}
	return 0.0, utils.NewStringSet(TagMismatch)
}

// scoreNumericTolerance extracts a numeric value from the response and
// compares it against the expected value within the configured tolerance.
// Extraction uses the first parseable number, or the first capture group of
// params.ExtractionPattern if declared.
func scoreNumericTolerance(response string, expected float64, params config.EvalParams) (float64, utils.StringSet) {
	extracted, ok := extractNumber(response, params.ExtractionPattern)
	if !ok {
		return 0.0, utils.NewStringSet(TagNoNumberFound, TagOutOfTolerance)
	}

	diff := extracted - expected
	if diff < 0 {
		diff = -diff
	}
	if diff <= params.GetTolerance() {
		return 1.0, utils.NewStringSet()
	}
	return 0.0, utils.NewStringSet(TagOutOfTolerance)
}

// extractNumber returns the first parseable number in the text.
// A custom pattern must contain at least one capture group holding the number.
func extractNumber(text string, pattern string) (float64, bool) {
	raw := ""
	if pattern != "" {
		custom, err := regexp.Compile(pattern)
		if err != nil {
			return 0, false
		}
		match := custom.FindStringSubmatch(text)
		if len(match) < 2 {
			return 0, false
		}
		raw = match[1]
	} else {
		raw = numberRegex.FindString(text)
	}

	if raw == "" {
		return 0, false
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// scoreContains scores the response by the fraction of required terms present.
// Any present forbidden term zeroes the score. Matching is case-insensitive
// substring containment.
func scoreContains(response string, params config.EvalParams) (float64, utils.StringSet) {
	responseLower := strings.ToLower(response)
	tags := utils.NewStringSet()

	for _, term := range params.Forbidden.Values() {
		if strings.Contains(responseLower, strings.ToLower(term)) {
			return 0.0, tags.Add(TagForbiddenTermPresent)
		}
	}

	required := params.Required.Values()
	if len(required) == 0 {
		return 1.0, tags
	}

	present := 0
	for _, term := range required {
		if strings.Contains(responseLower, strings.ToLower(term)) {
			present++
		}
	}

	score := float64(present) / float64(len(required))
	if present < len(required) {
		tags = tags.Add(TagMissingRequiredTerm)
	}
	return score, tags
}

// clampScore bounds a score to the valid [0, 1] range.
func clampScore(score float64) float64 {
	switch {
	case score < 0.0:
		return 0.0
	case score > 1.0:
		return 1.0
	default:
		return score
	}
}
