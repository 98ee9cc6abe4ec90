// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package formatters

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/petmal/mindgauge/evaluation"
	"github.com/petmal/mindgauge/runners"
)

// NewLogFormatter creates a new formatter that outputs detailed results as an ASCII table.
func NewLogFormatter() Formatter {
	return &logFormatter{}
}

type logFormatter struct{}

func (f logFormatter) FileExt() string {
	return "log"
}

func (f logFormatter) Write(results runners.Results, out io.Writer) error {
	tab := tabwriter.NewWriter(out, 0, 0, 1, ' ', tabwriter.Debug)
	defer tab.Flush()
	if _, err := fmt.Fprintln(tab, "Model\tTest\tCategory\tMethod\tRepeat\tScore\tStatus\tTags\tDuration\t"); err != nil {
		return fmt.Errorf("%w: %v", ErrPrintResults, err)
	}

	return ForEachOrdered(results, func(_ string, records []evaluation.ResultRecord) error {
		for _, record := range records {
			if _, err := fmt.Fprintf(tab, "%s\t%s\t%s\t%s\t%d\t%.3f\t%s\t%s\t%s\t\n", record.Model, record.TestID, record.Category, record.Method, record.Repeat, record.Score, ToStatus(record.Passed), formatTags(record), RoundToMS(record.Latency)); err != nil {
				return fmt.Errorf("%w: %v", ErrPrintResults, err)
			}
		}
		return nil
	})
}
