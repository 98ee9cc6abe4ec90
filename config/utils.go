// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package config

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadConfigFromFile reads and validates application configuration from the specified file path.
// Returns error if the file cannot be read or contains invalid configuration.
func LoadConfigFromFile(ctx context.Context, path string) (*Config, error) {
	fileContents, err := readFile(path, "configuration")
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yamlUnmarshalStrict(fileContents, cfg); err != nil {
		return nil, fmt.Errorf("malformed configuration file: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration definition: %w", err)
	}

	return cfg, nil
}

// LoadSuiteFromFile reads and validates suite definitions from the specified file path.
// Returns error if the file cannot be read or contains invalid test-case definitions.
// Test cases declaring an unrecognized eval method load successfully; the
// dispatcher records them as per-test configuration errors.
func LoadSuiteFromFile(ctx context.Context, path string) (*Suite, error) {
	fileContents, err := readFile(path, "suite")
	if err != nil {
		return nil, err
	}

	suite := &Suite{}
	if err := yamlUnmarshalStrict(fileContents, suite); err != nil {
		return nil, fmt.Errorf("malformed suite file: %w", err)
	}

	if err := validate.Struct(suite); err != nil {
		return suite, fmt.Errorf("invalid suite definition: %w", err)
	}

	return suite, nil
}

func readFile(path string, kind string) ([]byte, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file: %w", kind, err)
	}
	defer fp.Close()

	fileContents, err := io.ReadAll(fp)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s file: %w", kind, err)
	}

	return fileContents, nil
}

// yamlUnmarshalStrict is a helper function for strict YAML unmarshaling that fails on unknown fields.
func yamlUnmarshalStrict(in []byte, out interface{}) error {
	// NOTE: currently does not propagate to custom unmarshalers:
	// https://github.com/go-yaml/yaml/issues/460
	decoder := yaml.NewDecoder(bytes.NewReader(in))
	decoder.KnownFields(true) // fail on unknown fields
	return decoder.Decode(out)
}

// IsNotBlank returns true if the given string contains non-whitespace characters.
func IsNotBlank(value string) bool {
	return len(strings.TrimSpace(value)) > 0
}

// ResolveFlagOverride returns override value if not nil, otherwise returns parent value.
func ResolveFlagOverride(override *bool, parentValue bool) bool {
	if override != nil {
		return *override
	}
	return parentValue
}

// MakeAbs converts relative file path to absolute using the given base directory.
// Returns original path if it's already absolute or blank.
func MakeAbs(baseDirPath string, filePath string) string {
	if IsNotBlank(filePath) {
		if filepath.IsAbs(filePath) {
			return filePath
		}
		return filepath.Join(baseDirPath, filePath)
	}
	return filePath
}

// CleanIfNotBlank cleans the given file path if it's not blank.
// Returns original path if it's blank.
func CleanIfNotBlank(filePath string) string {
	if IsNotBlank(filePath) {
		return filepath.Clean(filePath)
	}
	return filePath
}
