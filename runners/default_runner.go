// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package runners

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/petmal/mindgauge/config"
	"github.com/petmal/mindgauge/evaluation"
	"github.com/petmal/mindgauge/pkg/logging"
	"github.com/petmal/mindgauge/pkg/utils"
	"github.com/rs/zerolog"
)

// NewDefaultRunner creates a Runner that evaluates trials in parallel on a
// worker pool bounded by the configured worker count. Trials are independent;
// the dispatcher and scoring methods are safe for concurrent invocation.
func NewDefaultRunner(suite config.Suite, dispatcher *evaluation.Dispatcher, workers int, logger zerolog.Logger) Runner {
	testCases := make(map[string]config.TestCase)
	for _, testCase := range suite.SuiteConfig.GetEnabledTestCases() {
		testCases[testCase.ID] = testCase
	}

	if workers < 1 {
		workers = 1
	}
	return &defaultRunner{
		runID:      uuid.NewString(),
		testCases:  testCases,
		dispatcher: dispatcher,
		workers:    workers,
		logger:     logger,
	}
}

type defaultRunner struct {
	runID       string
	testCases   map[string]config.TestCase
	dispatcher  *evaluation.Dispatcher
	workers     int
	resultsLock sync.RWMutex
	results     Results
	logger      zerolog.Logger
}

func (r *defaultRunner) Run(ctx context.Context, responses []evaluation.ResponseRecord) error {
	trials := r.joinTrials(ctx, responses)
	r.logger.Info().Msgf("%s: starting evaluation of %d trial%s on %d worker%s...", pluralize(r.runID, countable(len(trials)), countable(r.workers))...)
	start := time.Now()

	r.resultsLock.Lock()
	r.results = make(Results, 0, len(trials))
	r.resultsLock.Unlock()

	jobs := make(chan Trial)
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			workerLogger := logging.NewZerologAdapter(r.logger).WithContext(fmt.Sprintf("worker %d: ", worker))
			for trial := range jobs {
				r.runTrial(ctx, workerLogger, trial)
			}
		}(i)
	}

	var err error
	for _, trial := range trials {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
			break
		}
		jobs <- trial
	}
	close(jobs)
	wg.Wait()

	// Workers append in completion order; sort so output is reproducible.
	r.resultsLock.Lock()
	sort.Slice(r.results, func(i, j int) bool {
		if r.results[i].Model != r.results[j].Model {
			return r.results[i].Model < r.results[j].Model
		}
		if r.results[i].TestID != r.results[j].TestID {
			return r.results[i].TestID < r.results[j].TestID
		}
		return r.results[i].Repeat < r.results[j].Repeat
	})
	r.resultsLock.Unlock()

	r.logger.Info().Msgf("%s: evaluation of all trials has finished in %s.", r.runID, time.Since(start))
	return err
}

// joinTrials pairs each response with its test case. Responses referencing an
// unknown or disabled test are dropped with a warning rather than failing the batch.
func (r *defaultRunner) joinTrials(ctx context.Context, responses []evaluation.ResponseRecord) []Trial {
	trials := make([]Trial, 0, len(responses))
	for _, response := range responses {
		testCase, ok := r.testCases[response.TestID]
		if !ok {
			r.logger.Warn().Msgf("%s: dropping response for unknown or disabled test %q (model: %s, repeat: %d)", r.runID, response.TestID, response.Model, response.Repeat)
			continue
		}
		trials = append(trials, Trial{TestCase: testCase, Response: response})
	}
	return trials
}

func (r *defaultRunner) runTrial(ctx context.Context, logger logging.Logger, trial Trial) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Msgf("%s: evaluation of test %q panicked: %v", r.runID, trial.TestCase.ID, p)
			r.appendResult(evaluation.ResultRecord{
				TestID:       trial.TestCase.ID,
				Model:        trial.Response.Model,
				Repeat:       trial.Response.Repeat,
				Category:     trial.TestCase.Category,
				Difficulty:   trial.TestCase.Difficulty,
				VariantGroup: trial.TestCase.VariantGroup,
				Method:       trial.TestCase.Eval.MethodName,
				Tags:         utils.NewStringSet(evaluation.TagConfigError),
				Rationale:    fmt.Sprintf("evaluation panicked: %v", p),
				Latency:      trial.Response.Latency,
			})
		}
	}()

	trialStart := time.Now()
	record, err := r.dispatcher.Evaluate(ctx, logger, trial.TestCase, trial.Response)
	if err != nil {
		r.logger.Warn().Err(err).Msgf("%s: evaluation of test %q was aborted (model: %s, repeat: %d)", r.runID, trial.TestCase.ID, trial.Response.Model, trial.Response.Repeat)
		return
	}
	r.logger.Debug().Msgf("%s: test %q scored %.3f for %s (repeat: %d) in %s", r.runID, record.TestID, record.Score, record.Model, record.Repeat, time.Since(trialStart))
	r.appendResult(record)
}

func (r *defaultRunner) appendResult(record evaluation.ResultRecord) {
	r.resultsLock.Lock()
	defer r.resultsLock.Unlock()
	r.results = append(r.results, record)
}

func (r *defaultRunner) GetResults() Results {
	r.resultsLock.RLock()
	defer r.resultsLock.RUnlock()
	return r.results
}

func (r *defaultRunner) Close(ctx context.Context) {
	// The runner owns no external resources; the judge client and sandbox
	// executor are closed by their creators.
}

type countable int

func pluralize(tokens ...any) []interface{} {
	pluralized := make([]interface{}, 0, 2*len(tokens))
	for _, token := range tokens {
		pluralized = append(pluralized, token)
		if v, ok := any(token).(countable); ok {
			switch v {
			case 1:
				pluralized = append(pluralized, "")
			default:
				pluralized = append(pluralized, "s")
			}
		}
	}

	return pluralized
}
