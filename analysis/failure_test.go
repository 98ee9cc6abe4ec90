// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package analysis

import (
	"testing"

	"github.com/petmal/mindgauge/config"
	"github.com/petmal/mindgauge/evaluation"
	"github.com/petmal/mindgauge/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeFailures_SystematicByFraction(t *testing.T) {
	// 4 failing trials for model-a; "mismatch" appears in 2 of them (50% >= 30%).
	records := []evaluation.ResultRecord{
		newResult("model-a", "r1", config.CategoryReasoning, 0.0, evaluation.TagMismatch),
		newResult("model-a", "r2", config.CategoryReasoning, 0.0, evaluation.TagMismatch),
		newResult("model-a", "r3", config.CategoryReasoning, 0.0, evaluation.TagOutOfTolerance),
		newResult("model-a", "r4", config.CategoryReasoning, 0.0),
		newResult("model-a", "r5", config.CategoryReasoning, 1.0),
	}

	profiles := AnalyzeFailures(records, config.AnalysisConfig{})
	require.Len(t, profiles, 1)

	profile := profiles[0]
	assert.Equal(t, "model-a", profile.Model)
	assert.Equal(t, 5, profile.TotalTrials)
	assert.Equal(t, 4, profile.FailingTrials)
	assert.Contains(t, profile.Systematic, evaluation.TagMismatch)
	assert.Contains(t, profile.Sporadic, evaluation.TagOutOfTolerance)
	assert.Equal(t, 2, profile.Tags[evaluation.TagMismatch].Count)
	assert.InDelta(t, 0.5, profile.Tags[evaluation.TagMismatch].FailingFraction, 1e-9)
}

func TestAnalyzeFailures_SystematicByCategorySpread(t *testing.T) {
	// "overconfident" appears only once per category but in two distinct
	// categories, which makes it systematic regardless of frequency.
	records := []evaluation.ResultRecord{
		newResult("model-a", "h1", config.CategoryHallucination, 0.2, evaluation.TagOverconfident),
		newResult("model-a", "e1", config.CategoryEmotion, 0.3, evaluation.TagOverconfident),
		newResult("model-a", "r1", config.CategoryReasoning, 0.0, evaluation.TagMismatch),
		newResult("model-a", "r2", config.CategoryReasoning, 0.0, evaluation.TagMismatch),
		newResult("model-a", "r3", config.CategoryReasoning, 0.0, evaluation.TagMismatch),
		newResult("model-a", "r4", config.CategoryReasoning, 0.0, evaluation.TagMismatch),
		newResult("model-a", "r5", config.CategoryReasoning, 0.0, evaluation.TagMismatch),
		newResult("model-a", "r6", config.CategoryReasoning, 0.0, evaluation.TagMismatch),
	}

	profiles := AnalyzeFailures(records, config.AnalysisConfig{})
	require.Len(t, profiles, 1)

	// 8 failing trials; overconfident sits at 25% of them, below the 30%
	// fraction, and is systematic only through the category spread.
	profile := profiles[0]
	assert.Contains(t, profile.Systematic, evaluation.TagOverconfident)
	assert.Contains(t, profile.Systematic, evaluation.TagMismatch)
	assert.Equal(t, []config.Category{config.CategoryEmotion, config.CategoryHallucination}, profile.Tags[evaluation.TagOverconfident].Categories)
}

func TestAnalyzeFailures_ConfigurableThresholds(t *testing.T) {
	records := []evaluation.ResultRecord{
		newResult("model-a", "r1", config.CategoryReasoning, 0.0, evaluation.TagMismatch),
		newResult("model-a", "r2", config.CategoryReasoning, 0.0, evaluation.TagOutOfTolerance),
		newResult("model-a", "r3", config.CategoryReasoning, 0.0, evaluation.TagOutOfTolerance),
	}

	// With a strict 90% fraction and a high category bound, nothing is systematic.
	strict := config.AnalysisConfig{
		SystematicFraction:   testutils.Ptr(0.9),
		SystematicCategories: 3,
	}
	profiles := AnalyzeFailures(records, strict)
	require.Len(t, profiles, 1)
	assert.Empty(t, profiles[0].Systematic)
	assert.ElementsMatch(t, []string{evaluation.TagMismatch, evaluation.TagOutOfTolerance}, profiles[0].Sporadic)

	// A permissive fraction flips both tags to systematic.
	permissive := config.AnalysisConfig{
		SystematicFraction:   testutils.Ptr(0.2),
		SystematicCategories: 3,
	}
	profiles = AnalyzeFailures(records, permissive)
	require.Len(t, profiles, 1)
	assert.ElementsMatch(t, []string{evaluation.TagMismatch, evaluation.TagOutOfTolerance}, profiles[0].Systematic)
}

func TestAnalyzeFailures_IgnoresTagsOnPassingTrials(t *testing.T) {
	// Two passing trials carry a diagnostic tag; counting them against a
	// single failing trial would inflate the fraction past 1.0 and flag the
	// tag as systematic.
	records := []evaluation.ResultRecord{
		newResult("model-a", "e1", config.CategoryEmotion, 1.0, evaluation.TagMissingRequiredTerm),
		newResult("model-a", "e2", config.CategoryEmotion, 1.0, evaluation.TagMissingRequiredTerm),
		newResult("model-a", "r1", config.CategoryReasoning, 0.0, evaluation.TagMismatch),
	}

	profiles := AnalyzeFailures(records, config.AnalysisConfig{})
	require.Len(t, profiles, 1)

	profile := profiles[0]
	assert.Equal(t, 3, profile.TotalTrials)
	assert.Equal(t, 1, profile.FailingTrials)
	assert.NotContains(t, profile.Tags, evaluation.TagMissingRequiredTerm)
	assert.NotContains(t, profile.Systematic, evaluation.TagMissingRequiredTerm)
	assert.Equal(t, 1, profile.Tags[evaluation.TagMismatch].Count)
	assert.InDelta(t, 1.0, profile.Tags[evaluation.TagMismatch].FailingFraction, 1e-9)
}

func TestAnalyzeFailures_WorstTestRanking(t *testing.T) {
	records := []evaluation.ResultRecord{
		newResult("model-a", "t-charlie", config.CategoryReasoning, 0.5),
		newResult("model-a", "t-charlie", config.CategoryReasoning, 0.5),
		newResult("model-a", "t-alpha", config.CategoryReasoning, 0.5),
		newResult("model-a", "t-bravo", config.CategoryReasoning, 0.0),
		newResult("model-a", "t-delta", config.CategoryReasoning, 1.0),
	}

	profiles := AnalyzeFailures(records, config.AnalysisConfig{})
	require.Len(t, profiles, 1)

	worst := profiles[0].WorstTests
	require.Len(t, worst, 4)
	assert.Equal(t, "t-bravo", worst[0].TestID)
	// Ties on mean score break by test id lexical order.
	assert.Equal(t, "t-alpha", worst[1].TestID)
	assert.Equal(t, "t-charlie", worst[2].TestID)
	assert.Equal(t, 2, worst[2].Trials)
	assert.Equal(t, "t-delta", worst[3].TestID)
}

func TestAnalyzeFailures_WorstTestLimit(t *testing.T) {
	records := []evaluation.ResultRecord{
		newResult("model-a", "t1", config.CategoryReasoning, 0.1),
		newResult("model-a", "t2", config.CategoryReasoning, 0.2),
		newResult("model-a", "t3", config.CategoryReasoning, 0.3),
	}

	profiles := AnalyzeFailures(records, config.AnalysisConfig{WorstTestLimit: 2})
	require.Len(t, profiles, 1)
	require.Len(t, profiles[0].WorstTests, 2)
	assert.Equal(t, "t1", profiles[0].WorstTests[0].TestID)
	assert.Equal(t, "t2", profiles[0].WorstTests[1].TestID)
}

func TestAnalyzeFailures_ModelsOrderedAndIsolated(t *testing.T) {
	records := []evaluation.ResultRecord{
		newResult("model-b", "t1", config.CategoryReasoning, 0.0, evaluation.TagMismatch),
		newResult("model-a", "t1", config.CategoryReasoning, 1.0),
	}

	profiles := AnalyzeFailures(records, config.AnalysisConfig{})
	require.Len(t, profiles, 2)
	assert.Equal(t, "model-a", profiles[0].Model)
	assert.Empty(t, profiles[0].Systematic)
	assert.Equal(t, "model-b", profiles[1].Model)
	assert.Equal(t, []string{evaluation.TagMismatch}, profiles[1].Systematic)
}

func TestAnalyzeFailures_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeFailures(nil, config.AnalysisConfig{}))
}
