// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package formatters

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/petmal/mindgauge/evaluation"
	"github.com/petmal/mindgauge/runners"
)

// NewCSVFormatter creates a new formatter that outputs results in CSV format.
func NewCSVFormatter() Formatter {
	return &csvFormatter{}
}

type csvFormatter struct{}

func (f csvFormatter) FileExt() string {
	return "csv"
}

func (f csvFormatter) Write(results runners.Results, out io.Writer) error {
	writer := csv.NewWriter(out)
	defer writer.Flush()

	headers := []string{"Model", "Test", "Category", "Method", "Repeat", "Score", "Status", "Tags", "Duration", "Rationale"}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("%w: %v", ErrPrintResults, err)
	}

	return ForEachOrdered(results, func(_ string, records []evaluation.ResultRecord) error {
		for _, record := range records {
			row := []string{
				record.Model,
				record.TestID,
				string(record.Category),
				record.Method,
				strconv.Itoa(record.Repeat),
				strconv.FormatFloat(record.Score, 'f', 3, 64),
				ToStatus(record.Passed),
				formatTags(record),
				RoundToMS(record.Latency).String(),
				record.Rationale,
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("%w: %v", ErrPrintResults, err)
			}
		}
		return nil
	})
}
