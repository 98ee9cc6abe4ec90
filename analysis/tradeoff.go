// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package analysis

import (
	"math"

	"github.com/petmal/mindgauge/config"
	"github.com/petmal/mindgauge/evaluation"
	"github.com/petmal/mindgauge/pkg/utils"
)

// TagInsufficientVariance marks a correlation that is undefined because one
// axis carries a constant or too-small score vector.
const TagInsufficientVariance = "insufficient_variance"

// InterpretationUndefined is reported when a correlation coefficient is undefined.
const InterpretationUndefined = "undefined"

// Correlation is the Pearson correlation of mean scores between two categories
// across the model population. The pair is unordered; each pair is reported once.
type Correlation struct {
	// CategoryA is the first category of the pair.
	CategoryA config.Category `json:"category_a"`
	// CategoryB is the second category of the pair.
	CategoryB config.Category `json:"category_b"`
	// Coefficient is the Pearson correlation coefficient in [-1, 1],
	// or nil when the correlation is undefined.
	Coefficient *float64 `json:"coefficient"`
	// Interpretation is a coarse label for the correlation strength.
	Interpretation string `json:"interpretation"`
	// Models is the number of models contributing scores to both axes.
	Models int `json:"models"`
	// Tags flags statistical caveats such as insufficient variance.
	Tags []string `json:"tags,omitempty"`
}

// AnalyzeTradeoffs computes the pairwise Pearson correlation of per-model
// category mean scores for every unordered category pair. A pair needs at
// least two models scored on both axes and non-constant score vectors;
// otherwise the coefficient is reported as undefined with an
// insufficient_variance tag, never as a fabricated value.
func AnalyzeTradeoffs(records []evaluation.ResultRecord) []Correlation {
	categoryMeans := modelCategoryMeans(records)
	models := utils.SortedKeys(categoryMeans)

	categories := config.Categories()
	correlations := make([]Correlation, 0, len(categories)*(len(categories)-1)/2)
	for i, categoryA := range categories {
		for _, categoryB := range categories[i+1:] {
			correlations = append(correlations, correlate(categoryA, categoryB, models, categoryMeans))
		}
	}
	return correlations
}

// modelCategoryMeans computes each model's mean score per category.
func modelCategoryMeans(records []evaluation.ResultRecord) map[string]map[config.Category]float64 {
	sums := make(map[string]map[config.Category]float64)
	counts := make(map[string]map[config.Category]int)
	for _, record := range records {
		if sums[record.Model] == nil {
			sums[record.Model] = make(map[config.Category]float64)
			counts[record.Model] = make(map[config.Category]int)
		}
		sums[record.Model][record.Category] += record.Score
		counts[record.Model][record.Category]++
	}

	means := make(map[string]map[config.Category]float64, len(sums))
	for model, categorySums := range sums {
		means[model] = make(map[config.Category]float64, len(categorySums))
		for category, sum := range categorySums {
			means[model][category] = sum / float64(counts[model][category])
		}
	}
	return means
}

func correlate(categoryA config.Category, categoryB config.Category, models []string, means map[string]map[config.Category]float64) Correlation {
	var xs, ys []float64
	for _, model := range models {
		x, okX := means[model][categoryA]
		y, okY := means[model][categoryB]
		if okX && okY {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}

	correlation := Correlation{
		CategoryA: categoryA,
		CategoryB: categoryB,
		Models:    len(xs),
	}

	coefficient, ok := pearson(xs, ys)
	if !ok {
		correlation.Interpretation = InterpretationUndefined
		correlation.Tags = []string{TagInsufficientVariance}
		return correlation
	}

	correlation.Coefficient = &coefficient
	correlation.Interpretation = interpretCorrelation(coefficient)
	return correlation
}

// pearson computes the Pearson correlation coefficient of two equal-length
// score vectors. Reports ok=false for fewer than two points or when either
// vector is constant, leaving the coefficient undefined.
func pearson(xs []float64, ys []float64) (coefficient float64, ok bool) {
	n := len(xs)
	if n < 2 || n != len(ys) {
		return 0, false
	}

	meanX, meanY := 0.0, 0.0
	for i := 0; i < n; i++ {
		meanX += xs[i]
		meanY += ys[i]
	}
	meanX /= float64(n)
	meanY /= float64(n)

	numerator, sumSqX, sumSqY := 0.0, 0.0, 0.0
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		numerator += dx * dy
		sumSqX += dx * dx
		sumSqY += dy * dy
	}

	denominator := math.Sqrt(sumSqX * sumSqY)
	if denominator == 0 {
		return 0, false
	}
	return numerator / denominator, true
}

// interpretCorrelation maps a coefficient to a coarse strength label.
func interpretCorrelation(coefficient float64) string {
	abs := math.Abs(coefficient)
	switch {
	case abs < 0.1:
		return "no relationship"
	case abs < 0.3:
		return "weak relationship"
	case abs < 0.5:
		return "moderate relationship"
	case abs < 0.7:
		return "strong relationship"
	default:
		return "very strong relationship"
	}
}
