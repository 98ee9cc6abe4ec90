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

	"github.com/petmal/mindgauge/evaluation"
	"github.com/petmal/mindgauge/runners"
)

// NewJSONLFormatter creates a new formatter that outputs one result record
// per line as JSON, matching the incremental persistence format.
func NewJSONLFormatter() Formatter {
	return &jsonlFormatter{}
}

type jsonlFormatter struct{}

func (f jsonlFormatter) FileExt() string {
	return "jsonl"
}

func (f jsonlFormatter) Write(results runners.Results, out io.Writer) error {
	encoder := json.NewEncoder(out)
	return ForEachOrdered(results, func(_ string, records []evaluation.ResultRecord) error {
		for _, record := range records {
			if err := encoder.Encode(record); err != nil {
				return fmt.Errorf("%w: %v", ErrPrintResults, err)
			}
		}
		return nil
	})
}
