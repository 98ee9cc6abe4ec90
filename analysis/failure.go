// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package analysis

import (
	"sort"

	"github.com/petmal/mindgauge/config"
	"github.com/petmal/mindgauge/evaluation"
	"github.com/petmal/mindgauge/pkg/utils"
)

// WorstTest is one entry in a model's ranked list of worst-performing tests.
type WorstTest struct {
	// TestID identifies the test case.
	TestID string `json:"test_id"`
	// MeanScore is the mean score of the model's trials on this test.
	MeanScore float64 `json:"mean_score"`
	// Trials is the number of trials behind the mean.
	Trials int `json:"trials"`
}

// TagStats describes how often one failure tag occurred for a model.
type TagStats struct {
	// Count is the number of trials carrying the tag.
	Count int `json:"count"`
	// FailingFraction is Count over the model's failing trial count.
	// Zero when the model has no failing trials.
	FailingFraction float64 `json:"failing_fraction"`
	// Categories lists the distinct categories the tag occurred in.
	Categories []config.Category `json:"categories"`
}

// FailureProfile classifies one model's failure tags and ranks its weakest tests.
type FailureProfile struct {
	// Model identifies the profiled model.
	Model string `json:"model"`
	// TotalTrials is the number of trials analyzed for the model.
	TotalTrials int `json:"total_trials"`
	// FailingTrials is the number of trials that did not pass.
	FailingTrials int `json:"failing_trials"`
	// Tags maps each observed failure tag to its occurrence statistics.
	Tags map[string]TagStats `json:"tags"`
	// Systematic lists tags that recur broadly for this model, ordered lexically.
	Systematic []string `json:"systematic"`
	// Sporadic lists the remaining observed tags, ordered lexically.
	Sporadic []string `json:"sporadic"`
	// WorstTests ranks the model's tests by mean score ascending,
	// ties broken by test id.
	WorstTests []WorstTest `json:"worst_tests"`
}

// AnalyzeFailures builds a failure profile per model. A tag is systematic when
// it appears in at least cfg's systematic fraction of the model's failing
// trials, or recurs across at least cfg's category bound of distinct
// categories; otherwise it is sporadic. Profiles are ordered by model name.
func AnalyzeFailures(records []evaluation.ResultRecord, cfg config.AnalysisConfig) []FailureProfile {
	byModel := make(map[string][]evaluation.ResultRecord)
	for _, record := range records {
		byModel[record.Model] = append(byModel[record.Model], record)
	}

	profiles := make([]FailureProfile, 0, len(byModel))
	for _, model := range utils.SortedKeys(byModel) {
		profiles = append(profiles, profileModel(model, byModel[model], cfg))
	}
	return profiles
}

func profileModel(model string, records []evaluation.ResultRecord, cfg config.AnalysisConfig) FailureProfile {
	profile := FailureProfile{
		Model:       model,
		TotalTrials: len(records),
		Tags:        make(map[string]TagStats),
	}

	tagCounts := make(map[string]int)
	tagCategories := make(map[string]map[config.Category]struct{})
	testScores := make(map[string][]float64)

	for _, record := range records {
		testScores[record.TestID] = append(testScores[record.TestID], record.Score)
		if !record.IsFailure() {
			// Tags on passing trials (e.g. a missing term above the pass
			// threshold) do not count toward failure-mode classification.
			continue
		}
		profile.FailingTrials++

		for _, tag := range record.Tags.Values() {
			tagCounts[tag]++
			if tagCategories[tag] == nil {
				tagCategories[tag] = make(map[config.Category]struct{})
			}
			tagCategories[tag][record.Category] = struct{}{}
		}
	}

	for _, tag := range utils.SortedKeys(tagCounts) {
		stats := TagStats{Count: tagCounts[tag]}
		if profile.FailingTrials > 0 {
			stats.FailingFraction = float64(tagCounts[tag]) / float64(profile.FailingTrials)
		}
		for category := range tagCategories[tag] {
			stats.Categories = append(stats.Categories, category)
		}
		sort.Slice(stats.Categories, func(i, j int) bool { return stats.Categories[i] < stats.Categories[j] })
		profile.Tags[tag] = stats

		systematic := (profile.FailingTrials > 0 && stats.FailingFraction >= cfg.GetSystematicFraction()) ||
			len(stats.Categories) >= cfg.GetSystematicCategories()
		if systematic {
			profile.Systematic = append(profile.Systematic, tag)
		} else {
			profile.Sporadic = append(profile.Sporadic, tag)
		}
	}

	profile.WorstTests = rankWorstTests(testScores, cfg.GetWorstTestLimit())
	return profile
}

// rankWorstTests ranks tests by mean score ascending with lexical test id
// tie-breaking for determinism, truncated to the given limit.
func rankWorstTests(testScores map[string][]float64, limit int) []WorstTest {
	ranked := make([]WorstTest, 0, len(testScores))
	for testID, scores := range testScores {
		sum := 0.0
		for _, score := range scores {
			sum += score
		}
		ranked = append(ranked, WorstTest{
			TestID:    testID,
			MeanScore: sum / float64(len(scores)),
			Trials:    len(scores),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].MeanScore != ranked[j].MeanScore {
			return ranked[i].MeanScore < ranked[j].MeanScore
		}
		return ranked[i].TestID < ranked[j].TestID
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
