// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

// Package config contains the data models representing the structure of configuration
// and benchmark suite definition files for the MindGauge application. It provides
// configuration management and handles loading and validation of application settings,
// test-case suites, and analysis thresholds from YAML files.
package config

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/petmal/mindgauge/pkg/utils"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidSuiteProperty indicates invalid test-case definition.
	ErrInvalidSuiteProperty = errors.New("invalid suite property")
	// ErrUnknownEvalMethod indicates that a test case declares an eval method
	// that is not part of the supported method set.
	ErrUnknownEvalMethod = errors.New("unknown eval method")
)

// Category identifies the behavioral axis a test case probes.
type Category string

// Supported test-case categories.
const (
	CategoryReasoning     Category = "reasoning"
	CategoryHallucination Category = "hallucination"
	CategoryEmotion       Category = "emotion"
	CategoryCode          Category = "code"
)

// Categories returns all supported categories in their canonical order.
func Categories() []Category {
	return []Category{CategoryReasoning, CategoryHallucination, CategoryEmotion, CategoryCode}
}

// EvalMethod is a closed enumeration of the supported scoring methods.
// Dispatching over EvalMethod is an exhaustive switch so that adding a method
// is a compile-time-checked extension rather than a runtime map lookup.
type EvalMethod int

const (
	// EvalMethodUnknown marks a method name that could not be recognized.
	EvalMethodUnknown EvalMethod = iota
	// EvalMethodExactMatch compares normalized response text against the expected string.
	EvalMethodExactMatch
	// EvalMethodNumericTolerance extracts a number from the response and compares it within tolerance.
	EvalMethodNumericTolerance
	// EvalMethodContains checks for required and forbidden terms in the response.
	EvalMethodContains
	// EvalMethodLLMJudge delegates scoring to an external judge model.
	EvalMethodLLMJudge
	// EvalMethodPythonExec executes model-generated code in the sandbox against test cases.
	EvalMethodPythonExec
)

var evalMethodNames = map[EvalMethod]string{
	EvalMethodExactMatch:       "exact_match",
	EvalMethodNumericTolerance: "numeric_tolerance",
	EvalMethodContains:         "contains",
	EvalMethodLLMJudge:         "llm_judge",
	EvalMethodPythonExec:       "python_exec",
}

// String returns the canonical method name used in suite definition files.
func (m EvalMethod) String() string {
	if name, ok := evalMethodNames[m]; ok {
		return name
	}
	return "unknown"
}

// ParseEvalMethod maps a method name from a suite definition to its EvalMethod.
// Returns ErrUnknownEvalMethod for unrecognized names.
func ParseEvalMethod(name string) (EvalMethod, error) {
	for method, methodName := range evalMethodNames {
		if methodName == name {
			return method, nil
		}
	}
	return EvalMethodUnknown, fmt.Errorf("%w: %q", ErrUnknownEvalMethod, name)
}

// EvalParams holds method-specific scoring parameters.
type EvalParams struct {
	// Tolerance is the absolute tolerance window for numeric_tolerance scoring.
	Tolerance *float64 `yaml:"tolerance" validate:"omitempty,gte=0"`

	// ExtractionPattern optionally overrides the default number extraction
	// pattern used by numeric_tolerance. Must contain one capture group.
	ExtractionPattern string `yaml:"extraction-pattern" validate:"omitempty"`

	// Required lists terms that must appear in the response for contains scoring.
	Required utils.StringSet `yaml:"required" validate:"omitempty"`

	// Forbidden lists terms whose presence zeroes the contains score.
	Forbidden utils.StringSet `yaml:"forbidden" validate:"omitempty"`

	// JudgePrompt is free-form extra guidance appended to the judge evaluation prompt.
	JudgePrompt string `yaml:"judge-prompt" validate:"omitempty"`

	// TimeoutSeconds overrides the sandbox per-case timeout for python_exec scoring.
	TimeoutSeconds *int `yaml:"timeout-seconds" validate:"omitempty,gt=0"`
}

// DefaultTolerance is the absolute tolerance used when a numeric_tolerance
// test case does not declare one.
const DefaultTolerance = 0.01

// GetTolerance returns the configured tolerance or the default.
func (p EvalParams) GetTolerance() float64 {
	if p.Tolerance != nil {
		return *p.Tolerance
	}
	return DefaultTolerance
}

// EvalSpec declares how a test case is scored.
type EvalSpec struct {
	// MethodName is the raw method name as declared in the suite file.
	// It is preserved so that configuration errors can report the offending name.
	MethodName string `yaml:"method" validate:"required"`

	// Params holds method-specific parameters.
	Params EvalParams `yaml:"params" validate:"omitempty"`

	// method is the parsed method kind; EvalMethodUnknown if MethodName was not recognized.
	method EvalMethod
}

// UnmarshalYAML implements custom YAML unmarshaling for EvalSpec.
// Unknown method names are tolerated at load time; the dispatcher records
// them as per-test configuration errors instead of failing the whole suite.
func (s *EvalSpec) UnmarshalYAML(value *yaml.Node) error {
	type evalSpecAlias EvalSpec
	aliasValue := evalSpecAlias{}

	if err := value.Decode(&aliasValue); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSuiteProperty, err)
	}

	*s = EvalSpec(aliasValue)
	s.method, _ = ParseEvalMethod(s.MethodName)
	return nil
}

// Method returns the parsed method kind.
func (s EvalSpec) Method() EvalMethod {
	return s.method
}

// NewEvalSpec creates an EvalSpec for the given method with the given parameters.
func NewEvalSpec(method EvalMethod, params EvalParams) EvalSpec {
	return EvalSpec{
		MethodName: method.String(),
		Params:     params,
		method:     method,
	}
}

// CodeInput describes the arguments passed to the entrypoint for one code test case.
type CodeInput struct {
	// Args is the ordered list of positional arguments.
	Args []interface{} `yaml:"args"`
}

// CodeCase is a single input/output pair for code scoring.
type CodeCase struct {
	// Input holds the entrypoint call arguments.
	Input CodeInput `yaml:"input" validate:"omitempty"`

	// Output is the expected return value of the entrypoint call.
	Output interface{} `yaml:"output"`
}

// CodeExpectation describes the expected behavior of model-generated code.
type CodeExpectation struct {
	// Entrypoint is the function name the sandbox harness calls.
	Entrypoint string `yaml:"entrypoint" validate:"required"`

	// Cases is the ordered list of input/output test cases.
	Cases []CodeCase `yaml:"cases" validate:"required,min=1,dive"`
}

// ExpectedValue is the polymorphic expected value of a test case.
// Its shape depends on the category: a string, a number, or a structured
// code expectation with an entrypoint and input/output cases.
type ExpectedValue struct {
	text   *string
	number *float64
	code   *CodeExpectation
}

// NewTextExpectation creates an ExpectedValue holding a string.
func NewTextExpectation(value string) ExpectedValue {
	return ExpectedValue{text: &value}
}

// NewNumberExpectation creates an ExpectedValue holding a number.
func NewNumberExpectation(value float64) ExpectedValue {
	text := strconv.FormatFloat(value, 'f', -1, 64)
	return ExpectedValue{text: &text, number: &value}
}

// NewCodeExpectation creates an ExpectedValue holding a code expectation.
func NewCodeExpectation(value CodeExpectation) ExpectedValue {
	return ExpectedValue{code: &value}
}

// UnmarshalYAML implements custom YAML unmarshaling for ExpectedValue.
// Scalars load as text, numeric scalars additionally as numbers,
// and mappings load as code expectations.
func (e *ExpectedValue) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var text string
		if err := value.Decode(&text); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSuiteProperty, err)
		}
		e.text = &text
		if number, err := strconv.ParseFloat(text, 64); err == nil {
			e.number = &number
		}
		return nil
	case yaml.MappingNode:
		var code CodeExpectation
		if err := value.Decode(&code); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSuiteProperty, err)
		}
		e.code = &code
		return nil
	default:
		return fmt.Errorf("%w: expected value must be a scalar or a code expectation mapping", ErrInvalidSuiteProperty)
	}
}

// MarshalYAML implements custom YAML marshaling for ExpectedValue.
func (e ExpectedValue) MarshalYAML() (interface{}, error) {
	switch {
	case e.code != nil:
		return e.code, nil
	case e.number != nil:
		return *e.number, nil
	case e.text != nil:
		return *e.text, nil
	default:
		return nil, nil
	}
}

// Text returns the expected string value if present.
func (e ExpectedValue) Text() (string, bool) {
	if e.text != nil {
		return *e.text, true
	}
	return "", false
}

// Number returns the expected numeric value if present.
func (e ExpectedValue) Number() (float64, bool) {
	if e.number != nil {
		return *e.number, true
	}
	return 0, false
}

// Code returns the expected code behavior if present.
func (e ExpectedValue) Code() (*CodeExpectation, bool) {
	return e.code, e.code != nil
}

// IsZero returns true if no expected value was declared.
func (e ExpectedValue) IsZero() bool {
	return e.text == nil && e.number == nil && e.code == nil
}

// TestCase defines a single benchmark item. Test cases are immutable once loaded.
type TestCase struct {
	// ID is the unique identifier of the test case.
	ID string `yaml:"id" validate:"required"`

	// Category is the behavioral axis this test case probes.
	Category Category `yaml:"category" validate:"required,oneof=reasoning hallucination emotion code"`

	// Prompt is the text sent to the model under test.
	Prompt string `yaml:"prompt" validate:"required"`

	// Expected is the expected value; its shape depends on the category.
	Expected ExpectedValue `yaml:"expected" validate:"omitempty"`

	// Rubric is free-form guidance for judge-based scoring.
	Rubric string `yaml:"rubric" validate:"omitempty"`

	// Eval declares the scoring method and its parameters.
	Eval EvalSpec `yaml:"eval" validate:"required"`

	// Difficulty is an optional difficulty tier label.
	Difficulty string `yaml:"difficulty" validate:"omitempty"`

	// Tags is an optional set of free-form labels.
	Tags utils.StringSet `yaml:"tags" validate:"omitempty"`

	// VariantGroup identifies the prompt-paraphrase group this case belongs to, if any.
	VariantGroup string `yaml:"variant-group" validate:"omitempty"`

	// Disabled indicates whether this specific test case should be skipped.
	// If set, overrides the global SuiteConfig.Disabled value.
	Disabled *bool `yaml:"disabled" validate:"omitempty"`
}

// Suite represents the top-level suite definition structure.
type Suite struct {
	// SuiteConfig contains all test-case definitions and settings.
	SuiteConfig SuiteConfig `yaml:"suite-config" validate:"required"`
}

// SuiteConfig represents test-case definitions and global settings.
type SuiteConfig struct {
	// TestCases is the list of benchmark items.
	TestCases []TestCase `yaml:"test-cases" validate:"required,unique=ID,dive"`

	// Disabled indicates whether all test cases should be disabled by default.
	// Individual test cases can override this setting.
	Disabled bool `yaml:"disabled" validate:"omitempty"`
}

// GetEnabledTestCases returns a filtered list of test cases that are not disabled.
// If TestCase.Disabled is nil, the global SuiteConfig.Disabled value is used instead.
func (c SuiteConfig) GetEnabledTestCases() []TestCase {
	enabled := make([]TestCase, 0, len(c.TestCases))
	for _, testCase := range c.TestCases {
		if !ResolveFlagOverride(testCase.Disabled, c.Disabled) {
			enabled = append(enabled, testCase)
		}
	}
	return enabled
}
