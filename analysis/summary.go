// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package analysis

import (
	"sort"
	"time"

	"github.com/petmal/mindgauge/config"
	"github.com/petmal/mindgauge/evaluation"
	"github.com/petmal/mindgauge/pkg/utils"
)

// Thresholds for flagging a category as a strength or a weakness of a model.
const (
	strengthThreshold = 0.7
	weaknessThreshold = 0.5
)

// ModelSummary aggregates one model's results across all analyzers.
type ModelSummary struct {
	// Model identifies the summarized model.
	Model string `json:"model"`
	// Trials is the number of trials behind the summary.
	Trials int `json:"trials"`
	// OverallMean is the mean score across all of the model's trials.
	OverallMean float64 `json:"overall_mean"`
	// CategoryMeans holds the model's mean score per category.
	CategoryMeans map[config.Category]float64 `json:"category_means"`
	// Strengths lists categories the model scores well on, best first.
	Strengths []config.Category `json:"strengths"`
	// Weaknesses lists categories the model scores poorly on, worst first.
	Weaknesses []config.Category `json:"weaknesses"`
	// Consistency holds the model's per-group stability metrics.
	Consistency []ConsistencyMetric `json:"consistency"`
	// FailureProfile classifies the model's failure tags.
	FailureProfile FailureProfile `json:"failure_profile"`
}

// SummaryRecord is the full batch analysis of one result collection,
// consumed by external reporting and ranking components.
type SummaryRecord struct {
	// GeneratedAt is the summary creation timestamp.
	GeneratedAt time.Time `json:"generated_at"`
	// Trials is the total number of trials analyzed.
	Trials int `json:"trials"`
	// Models holds the per-model summaries ordered by model name.
	Models []ModelSummary `json:"models"`
	// Correlations holds the cross-category correlations over the model population.
	Correlations []Correlation `json:"correlations"`
}

// BuildSummary runs all analyzers over the result collection and assembles
// the summary record. The input collection is never modified. An empty
// collection fails with ErrEmptyGroup.
func BuildSummary(records []evaluation.ResultRecord, cfg config.AnalysisConfig) (SummaryRecord, error) {
	if len(records) == 0 {
		return SummaryRecord{}, ErrEmptyGroup
	}

	consistency := AnalyzeConsistency(records)
	profiles := AnalyzeFailures(records, cfg)

	byModel := make(map[string][]evaluation.ResultRecord)
	for _, record := range records {
		byModel[record.Model] = append(byModel[record.Model], record)
	}

	profileByModel := make(map[string]FailureProfile, len(profiles))
	for _, profile := range profiles {
		profileByModel[profile.Model] = profile
	}

	summary := SummaryRecord{
		GeneratedAt: time.Now(),
		Trials:      len(records),
	}

	for _, model := range utils.SortedKeys(byModel) {
		modelRecords := byModel[model]

		stats, err := ComputeStats(scoresOf(modelRecords))
		if err != nil {
			return SummaryRecord{}, err
		}

		categoryMeans := modelCategoryMeans(modelRecords)[model]
		strengths, weaknesses := classifyCategories(categoryMeans)

		var modelConsistency []ConsistencyMetric
		for _, metric := range consistency {
			if metric.Model == model {
				modelConsistency = append(modelConsistency, metric)
			}
		}

		summary.Models = append(summary.Models, ModelSummary{
			Model:          model,
			Trials:         len(modelRecords),
			OverallMean:    stats.Mean,
			CategoryMeans:  categoryMeans,
			Strengths:      strengths,
			Weaknesses:     weaknesses,
			Consistency:    modelConsistency,
			FailureProfile: profileByModel[model],
		})
	}

	summary.Correlations = AnalyzeTradeoffs(records)
	return summary, nil
}

func scoresOf(records []evaluation.ResultRecord) []float64 {
	scores := make([]float64, len(records))
	for i, record := range records {
		scores[i] = record.Score
	}
	return scores
}

// classifyCategories picks up to two strongest categories scoring above the
// strength threshold and up to two weakest scoring below the weakness threshold.
func classifyCategories(means map[config.Category]float64) (strengths []config.Category, weaknesses []config.Category) {
	ranked := make([]config.Category, 0, len(means))
	for category := range means {
		ranked = append(ranked, category)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if means[ranked[i]] != means[ranked[j]] {
			return means[ranked[i]] > means[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})

	for _, category := range ranked {
		if len(strengths) == 2 {
			break
		}
		if means[category] > strengthThreshold {
			strengths = append(strengths, category)
		}
	}
	for i := len(ranked) - 1; i >= 0; i-- {
		if len(weaknesses) == 2 {
			break
		}
		if means[ranked[i]] < weaknessThreshold {
			weaknesses = append(weaknesses, ranked[i])
		}
	}
	return strengths, weaknesses
}
