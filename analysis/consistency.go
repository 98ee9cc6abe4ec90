// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

// Package analysis computes batch statistics over scored evaluation results:
// score stability across repeated and paraphrased trials, failure-mode
// classification, and cross-category behavioral tradeoffs. All analyzers
// consume an immutable result collection and never write back into it.
package analysis

import (
	"errors"
	"math"
	"sort"

	"github.com/petmal/mindgauge/evaluation"
)

// ErrEmptyGroup indicates that a statistic was requested over an empty score group.
var ErrEmptyGroup = errors.New("empty score group")

// maxPossibleStdDev is the largest population standard deviation attainable
// by values bounded in [0, 1]. It normalizes the consistency score.
const maxPossibleStdDev = 0.5

// GroupKind distinguishes how a consistency group was formed.
type GroupKind string

const (
	// GroupKindRepeat groups repeated trials of a single test case.
	GroupKindRepeat GroupKind = "repeat"
	// GroupKindVariant groups trials across a prompt-variant group.
	GroupKindVariant GroupKind = "variant"
)

// Stats holds the score statistics of one consistency group.
type Stats struct {
	// Mean is the arithmetic mean of the group's scores.
	Mean float64 `json:"mean"`
	// Variance is the population variance of the group's scores.
	Variance float64 `json:"variance"`
	// StdDev is the population standard deviation of the group's scores.
	StdDev float64 `json:"std_dev"`
	// Consistency is 1 - StdDev/maxPossibleStdDev clamped to [0, 1].
	Consistency float64 `json:"consistency"`
}

// ConsistencyMetric is the stability measurement of one (model, group) pair.
type ConsistencyMetric struct {
	// Model identifies the model the group belongs to.
	Model string `json:"model"`
	// Kind reports whether the group holds repeats or prompt variants.
	Kind GroupKind `json:"kind"`
	// GroupID is the test id for repeat groups or the variant-group id for variant groups.
	GroupID string `json:"group_id"`
	// Trials is the number of scores in the group.
	Trials int `json:"trials"`

	Stats
}

// ComputeStats computes mean, population variance, standard deviation and the
// bounded consistency score of a score group. A group of size 1 has variance 0
// and consistency 1.0 by definition. An empty group fails with ErrEmptyGroup.
func ComputeStats(scores []float64) (Stats, error) {
	if len(scores) == 0 {
		return Stats{}, ErrEmptyGroup
	}

	sum := 0.0
	minScore, maxScore := scores[0], scores[0]
	for _, score := range scores {
		sum += score
		minScore = math.Min(minScore, score)
		maxScore = math.Max(maxScore, score)
	}
	mean := sum / float64(len(scores))

	// Identical scores must yield exact variance 0 and consistency 1.0;
	// summing squared deviations would leave floating-point residue.
	if minScore == maxScore {
		return Stats{Mean: scores[0], Consistency: 1.0}, nil
	}

	variance := 0.0
	for _, score := range scores {
		diff := score - mean
		variance += diff * diff
	}
	variance /= float64(len(scores))
	stdDev := math.Sqrt(variance)

	consistency := 1.0 - stdDev/maxPossibleStdDev
	if consistency < 0 {
		consistency = 0
	}

	return Stats{
		Mean:        mean,
		Variance:    variance,
		StdDev:      stdDev,
		Consistency: consistency,
	}, nil
}

// AnalyzeConsistency groups result records by (model, test id) for repeats and
// by (model, variant group) for paraphrases, and computes the score statistics
// of every group. The returned metrics are deterministically ordered by model,
// kind and group id so repeated computation on the same input is reproducible.
func AnalyzeConsistency(records []evaluation.ResultRecord) []ConsistencyMetric {
	type groupKey struct {
		model   string
		kind    GroupKind
		groupID string
	}

	groups := make(map[groupKey][]float64)
	for _, record := range records {
		groups[groupKey{record.Model, GroupKindRepeat, record.TestID}] = append(groups[groupKey{record.Model, GroupKindRepeat, record.TestID}], record.Score)
		if record.VariantGroup != "" {
			groups[groupKey{record.Model, GroupKindVariant, record.VariantGroup}] = append(groups[groupKey{record.Model, GroupKindVariant, record.VariantGroup}], record.Score)
		}
	}

	metrics := make([]ConsistencyMetric, 0, len(groups))
	for key, scores := range groups {
		stats, err := ComputeStats(scores)
		if err != nil {
			continue // groups are non-empty by construction
		}
		metrics = append(metrics, ConsistencyMetric{
			Model:   key.model,
			Kind:    key.kind,
			GroupID: key.groupID,
			Trials:  len(scores),
			Stats:   stats,
		})
	}

	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].Model != metrics[j].Model {
			return metrics[i].Model < metrics[j].Model
		}
		if metrics[i].Kind != metrics[j].Kind {
			return metrics[i].Kind < metrics[j].Kind
		}
		return metrics[i].GroupID < metrics[j].GroupID
	})
	return metrics
}
