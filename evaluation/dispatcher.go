// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/petmal/mindgauge/config"
	"github.com/petmal/mindgauge/pkg/logging"
	"github.com/petmal/mindgauge/pkg/utils"
	"github.com/petmal/mindgauge/sandbox"
)

// CodeExecutor runs extracted response code against declared cases in an
// isolated environment and reports the per-case outcome.
type CodeExecutor interface {
	Execute(ctx context.Context, logger logging.Logger, response string, expectation config.CodeExpectation, timeout time.Duration) (sandbox.Outcome, error)
}

// Dispatcher routes each trial to the scoring method its test case declares
// and produces the scored result record. Evaluation is deterministic for the
// deterministic methods: re-evaluating the same response against the same
// test case yields an identical record. Judge-based scores are sampled from
// an external model and carry no such guarantee.
type Dispatcher struct {
	judge       *judgeScorer
	executor    CodeExecutor
	analysisCfg config.AnalysisConfig
}

// NewDispatcher creates a dispatcher. judgeClient may be nil when no judge
// backend is configured; executor may be nil when no sandbox is available.
// Trials declaring a method whose collaborator is missing score 0.0 with a
// config_error tag instead of aborting the run.
func NewDispatcher(judgeClient JudgeClient, judgeCfg config.JudgeConfig, executor CodeExecutor, analysisCfg config.AnalysisConfig) *Dispatcher {
	dispatcher := &Dispatcher{
		executor:    executor,
		analysisCfg: analysisCfg,
	}
	if judgeClient != nil {
		dispatcher.judge = newJudgeScorer(judgeClient, judgeCfg)
	}
	return dispatcher
}

// Evaluate scores a single trial. Scoring failures caused by the test case
// declaration or by unrecoverable judge output degrade to a zero-score record
// with an explanatory tag; only context cancellation aborts with an error.
func (d *Dispatcher) Evaluate(ctx context.Context, logger logging.Logger, testCase config.TestCase, response ResponseRecord) (ResultRecord, error) {
	if err := ctx.Err(); err != nil {
		return ResultRecord{}, err
	}

	record := ResultRecord{
		TestID:       testCase.ID,
		Model:        response.Model,
		Repeat:       response.Repeat,
		Category:     testCase.Category,
		Difficulty:   testCase.Difficulty,
		VariantGroup: testCase.VariantGroup,
		Method:       testCase.Eval.MethodName,
		Tags:         utils.NewStringSet(),
		Latency:      response.Latency,
	}

	var err error
	switch testCase.Eval.Method() {
	case config.EvalMethodExactMatch:
		record.Score, record.Tags = d.evaluateExactMatch(testCase, response.Response, &record)
	case config.EvalMethodNumericTolerance:
		record.Score, record.Tags = d.evaluateNumericTolerance(testCase, response.Response, &record)
	case config.EvalMethodContains:
		record.Score, record.Tags = scoreContains(response.Response, testCase.Eval.Params)
	case config.EvalMethodLLMJudge:
		err = d.evaluateJudge(ctx, logger, testCase, response.Response, &record)
	case config.EvalMethodPythonExec:
		err = d.evaluateCode(ctx, logger, testCase, response.Response, &record)
	default:
		logger.Message(ctx, logging.LevelWarn, "test %q declares unknown scoring method %q", testCase.ID, testCase.Eval.MethodName)
		record.Rationale = fmt.Sprintf("unknown scoring method: %s", testCase.Eval.MethodName)
		record.Tags = utils.NewStringSet(TagConfigError)
	}
	if err != nil {
		return ResultRecord{}, err
	}

	record.Score = clampScore(record.Score)
	record.Passed = record.Score >= d.analysisCfg.GetPassThreshold(testCase.Category) && !record.Tags.Contains(TagConfigError)
	return record, nil
}

func (d *Dispatcher) evaluateExactMatch(testCase config.TestCase, response string, record *ResultRecord) (float64, utils.StringSet) {
	expected, ok := testCase.Expected.Text()
	if !ok {
		record.Rationale = "exact_match requires a textual expected value"
		return 0.0, utils.NewStringSet(TagConfigError)
	}
	return scoreExactMatch(response, expected)
}

func (d *Dispatcher) evaluateNumericTolerance(testCase config.TestCase, response string, record *ResultRecord) (float64, utils.StringSet) {
	expected, ok := testCase.Expected.Number()
	if !ok {
		record.Rationale = "numeric_tolerance requires a numeric expected value"
		return 0.0, utils.NewStringSet(TagConfigError)
	}
	return scoreNumericTolerance(response, expected, testCase.Eval.Params)
}

func (d *Dispatcher) evaluateJudge(ctx context.Context, logger logging.Logger, testCase config.TestCase, response string, record *ResultRecord) error {
	if d.judge == nil {
		record.Rationale = "no judge backend configured"
		record.Tags = utils.NewStringSet(TagConfigError)
		return nil
	}

	verdict, err := d.judge.Score(ctx, logger, testCase, response)
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		// The bounded retry is exhausted. Score the trial 0.0 rather than
		// losing it from the analysis population.
		logger.Error(ctx, logging.LevelWarn, err, "judge evaluation failed for test %q, scoring 0.0", testCase.ID)
		record.Rationale = err.Error()
		record.Tags = utils.NewStringSet(TagJudgeParseFailed)
		return nil
	}

	record.Score = verdict.Score
	record.Tags = utils.NewStringSet(verdict.Tags...)
	record.Rationale = verdict.Rationale
	return nil
}

func (d *Dispatcher) evaluateCode(ctx context.Context, logger logging.Logger, testCase config.TestCase, response string, record *ResultRecord) error {
	expectation, ok := testCase.Expected.Code()
	if !ok {
		record.Rationale = "python_exec requires a code expectation with cases"
		record.Tags = utils.NewStringSet(TagConfigError)
		return nil
	}
	if d.executor == nil {
		record.Rationale = "no sandbox executor configured"
		record.Tags = utils.NewStringSet(TagConfigError)
		return nil
	}

	var timeout time.Duration
	if testCase.Eval.Params.TimeoutSeconds != nil {
		timeout = time.Duration(*testCase.Eval.Params.TimeoutSeconds) * time.Second
	}

	outcome, err := d.executor.Execute(ctx, logger, response, *expectation, timeout)
	if err != nil {
		return err
	}

	record.Score = outcome.Score()
	record.Tags = outcome.Tags()
	record.CaseResults = outcome.PassFlags()
	return nil
}
