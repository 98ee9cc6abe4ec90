// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package formatters

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/petmal/mindgauge/analysis"
	"github.com/petmal/mindgauge/config"
	"github.com/petmal/mindgauge/runners"
)

// NewSummaryFormatter creates a formatter that runs the batch analyzers over
// the results and outputs the summary record as indented JSON.
func NewSummaryFormatter(cfg config.AnalysisConfig) Formatter {
	return &summaryFormatter{cfg: cfg}
}

type summaryFormatter struct {
	cfg config.AnalysisConfig
}

func (f summaryFormatter) FileExt() string {
	return "json"
}

func (f summaryFormatter) Write(results runners.Results, out io.Writer) error {
	summary, err := analysis.BuildSummary(results, f.cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPrintResults, err)
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(summary); err != nil {
		return fmt.Errorf("%w: %v", ErrPrintResults, err)
	}
	return nil
}
