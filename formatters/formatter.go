// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

// Package formatters provides output formatting functionality for evaluation
// results. It supports CSV and JSON Lines result listings, a plain text log
// table, and a JSON batch summary.
package formatters

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/petmal/mindgauge/evaluation"
	"github.com/petmal/mindgauge/runners"
)

const tagSeparator = ";"

// ErrPrintResults indicates that result formatting failed.
var ErrPrintResults = errors.New("failed to print formatted results")

// Formatter handles converting results into specific output formats.
type Formatter interface {
	// FileExt returns the formatter's file extension.
	FileExt() string
	// Write outputs formatted results to the writer.
	Write(results runners.Results, out io.Writer) error
}

// ForEachOrdered invokes fn once per model in ascending model order.
func ForEachOrdered(results runners.Results, fn func(model string, records []evaluation.ResultRecord) error) error {
	byModel := results.ByModel()
	for _, model := range results.Models() {
		if err := fn(model, byModel[model]); err != nil {
			return err
		}
	}
	return nil
}

// ToStatus renders a pass flag as a stable status label.
func ToStatus(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}

// RoundToMS rounds a duration to whole milliseconds for stable display.
func RoundToMS(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}

// formatTags flattens a record's tag set into a single display value.
func formatTags(record evaluation.ResultRecord) string {
	return strings.Join(record.Tags.Values(), tagSeparator)
}
