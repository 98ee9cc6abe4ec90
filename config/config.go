// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package config

import (
	"errors"
	"time"
)

// ErrInvalidConfigProperty indicates invalid configuration.
var ErrInvalidConfigProperty = errors.New("invalid configuration property")

// Defaults applied when the corresponding configuration value is absent.
const (
	// DefaultSandboxImage is the container image used to execute model-generated code.
	DefaultSandboxImage = "python:3.12-alpine"
	// DefaultSandboxTimeoutSeconds is the per-case wall-clock execution budget.
	DefaultSandboxTimeoutSeconds = 10
	// DefaultSystematicFraction is the fraction of failing trials above which
	// a failure tag is classified as systematic.
	DefaultSystematicFraction = 0.3
	// DefaultSystematicCategories is the number of distinct categories a tag
	// must recur in to be classified as systematic.
	DefaultSystematicCategories = 2
	// DefaultWorstTestLimit is the number of worst-performing tests reported per model.
	DefaultWorstTestLimit = 5
	// DefaultWorkers is the number of concurrent evaluation workers.
	DefaultWorkers = 4
)

// defaultPassThresholds holds the minimum score per category for a trial to
// count as passed. The strict axes (reasoning, code) require a perfect score.
var defaultPassThresholds = map[Category]float64{
	CategoryReasoning:     1.0,
	CategoryHallucination: 0.7,
	CategoryEmotion:       0.7,
	CategoryCode:          1.0,
}

// Config represents the top-level configuration structure.
type Config struct {
	// Config contains application-wide settings.
	Config AppConfig `yaml:"config" validate:"required"`
}

// AppConfig defines application-wide settings.
type AppConfig struct {
	// LogFile specifies path to the log file.
	LogFile string `yaml:"log-file" validate:"omitempty,filepath"`

	// OutputDir specifies directory where results will be saved.
	OutputDir string `yaml:"output-dir" validate:"required"`

	// OutputBaseName specifies base filename for result files.
	OutputBaseName string `yaml:"output-basename" validate:"omitempty,filepath"`

	// SuiteSource specifies path to the suite definition file.
	SuiteSource string `yaml:"suite-source" validate:"required,filepath"`

	// ResponsesSource specifies path to the response record stream (JSON Lines)
	// produced by the model-invocation layer.
	ResponsesSource string `yaml:"responses-source" validate:"required,filepath"`

	// Workers bounds the evaluation worker pool.
	Workers int `yaml:"workers" validate:"omitempty,gt=0"`

	// Judge configures the judge model used by llm_judge scoring.
	Judge JudgeConfig `yaml:"judge" validate:"omitempty"`

	// Sandbox configures the code sandbox executor.
	Sandbox SandboxConfig `yaml:"sandbox" validate:"omitempty"`

	// Analysis configures the post-hoc analyzers.
	Analysis AnalysisConfig `yaml:"analysis" validate:"omitempty"`
}

// GetWorkers returns the configured worker pool size or the default.
func (c AppConfig) GetWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return DefaultWorkers
}

// RetryPolicyConfig defines retry behavior for judge calls.
type RetryPolicyConfig struct {
	// MaxRetryAttempts specifies the maximum number of retry attempts.
	MaxRetryAttempts int `yaml:"max-retry-attempts" validate:"gte=0"`

	// InitialDelaySeconds specifies the initial delay between retry attempts.
	InitialDelaySeconds int `yaml:"initial-delay-seconds" validate:"gte=0"`
}

// JudgeConfig configures the judge model used for llm_judge scoring.
// The judge transport itself is an external collaborator; only its
// identity, pacing, and retry behavior are configured here.
type JudgeConfig struct {
	// Model is the judge model identifier passed to the judge client.
	Model string `yaml:"model" validate:"omitempty"`

	// MaxRequestsPerMinute limits the rate of judge requests. Zero disables limiting.
	MaxRequestsPerMinute int `yaml:"max-requests-per-minute" validate:"gte=0"`

	// RetryPolicy configures bounded retries on judge parse failures.
	RetryPolicy *RetryPolicyConfig `yaml:"retry-policy" validate:"omitempty"`
}

// GetMaxRetryAttempts returns the configured retry attempts, or one bounded
// retry by default so a single bad judge call never loops forever.
func (c JudgeConfig) GetMaxRetryAttempts() int {
	if c.RetryPolicy != nil {
		return c.RetryPolicy.MaxRetryAttempts
	}
	return 1
}

// GetInitialRetryDelay returns the configured initial retry delay.
func (c JudgeConfig) GetInitialRetryDelay() time.Duration {
	if c.RetryPolicy != nil && c.RetryPolicy.InitialDelaySeconds > 0 {
		return time.Duration(c.RetryPolicy.InitialDelaySeconds) * time.Second
	}
	return time.Second
}

// SandboxConfig configures the code sandbox executor.
type SandboxConfig struct {
	// Image is the container image used to execute extracted code.
	Image string `yaml:"image" validate:"omitempty"`

	// TimeoutSeconds is the wall-clock execution budget per code test case.
	TimeoutSeconds int `yaml:"timeout-seconds" validate:"omitempty,gt=0"`

	// MaxMemoryMB caps container memory. Nil leaves the runtime default.
	MaxMemoryMB *int `yaml:"max-memory-mb" validate:"omitempty,gt=0"`

	// CPUPercent caps container CPU as a percentage of total host CPU capacity.
	CPUPercent *int `yaml:"cpu-percent" validate:"omitempty,gt=0,lte=100"`
}

// GetImage returns the configured sandbox image or the default.
func (c SandboxConfig) GetImage() string {
	if IsNotBlank(c.Image) {
		return c.Image
	}
	return DefaultSandboxImage
}

// GetTimeout returns the per-case execution budget.
func (c SandboxConfig) GetTimeout() time.Duration {
	if c.TimeoutSeconds > 0 {
		return time.Duration(c.TimeoutSeconds) * time.Second
	}
	return DefaultSandboxTimeoutSeconds * time.Second
}

// AnalysisConfig configures the consistency, failure-mode and tradeoff analyzers.
// Analyzers receive this struct explicitly so they remain independently testable
// with different thresholds.
type AnalysisConfig struct {
	// SystematicFraction is the fraction of a model's failing trials in which
	// a tag must appear to be classified as systematic.
	SystematicFraction *float64 `yaml:"systematic-fraction" validate:"omitempty,gt=0,lte=1"`

	// SystematicCategories is the number of distinct categories a tag must
	// recur in to be classified as systematic.
	SystematicCategories int `yaml:"systematic-categories" validate:"omitempty,gt=0"`

	// WorstTestLimit caps the ranked list of worst-performing tests per model.
	WorstTestLimit int `yaml:"worst-test-limit" validate:"omitempty,gt=0"`

	// PassThresholds overrides the per-category minimum score for a trial to pass.
	PassThresholds map[Category]float64 `yaml:"pass-thresholds" validate:"omitempty,dive,gte=0,lte=1"`
}

// GetSystematicFraction returns the configured systematic fraction or the default.
func (c AnalysisConfig) GetSystematicFraction() float64 {
	if c.SystematicFraction != nil {
		return *c.SystematicFraction
	}
	return DefaultSystematicFraction
}

// GetSystematicCategories returns the configured category recurrence bound or the default.
func (c AnalysisConfig) GetSystematicCategories() int {
	if c.SystematicCategories > 0 {
		return c.SystematicCategories
	}
	return DefaultSystematicCategories
}

// GetWorstTestLimit returns the configured worst-test list size or the default.
func (c AnalysisConfig) GetWorstTestLimit() int {
	if c.WorstTestLimit > 0 {
		return c.WorstTestLimit
	}
	return DefaultWorstTestLimit
}

// GetPassThreshold returns the minimum passing score for the given category.
func (c AnalysisConfig) GetPassThreshold(category Category) float64 {
	if threshold, ok := c.PassThresholds[category]; ok {
		return threshold
	}
	if threshold, ok := defaultPassThresholds[category]; ok {
		return threshold
	}
	return 1.0
}
