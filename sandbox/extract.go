// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

// Package sandbox executes model-generated code against expected input/output
// cases in isolated containers. Each case runs in its own container with its
// own wall-clock budget so that one crash or timeout cannot contaminate
// sibling cases.
package sandbox

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoCodeBlock indicates that the response contains no extractable code block.
var ErrNoCodeBlock = errors.New("no code block found in response")

// codeBlockRegex matches the first fenced code block with an optional language marker.
var codeBlockRegex = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*[ \t]*\r?\n(.*?)```")

// ExtractCodeBlock returns the contents of the first fenced code block in the
// response text. Returns ErrNoCodeBlock if the response contains none.
func ExtractCodeBlock(response string) (string, error) {
	match := codeBlockRegex.FindStringSubmatch(response)
	if match == nil {
		return "", ErrNoCodeBlock
	}

	code := strings.TrimSpace(match[1])
	if code == "" {
		return "", ErrNoCodeBlock
	}
	return code, nil
}
