// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"

	invopop "github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
	"github.com/petmal/mindgauge/config"
	"github.com/petmal/mindgauge/pkg/logging"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

var (
	// ErrJudgeParse indicates that the judge output could not be parsed
	// as a structured verdict.
	ErrJudgeParse = errors.New("failed to parse judge verdict")
	// ErrJudgeUnavailable indicates that the judge model could not be reached.
	ErrJudgeUnavailable = errors.New("judge model unavailable")
	// ErrCompileSchema indicates that the verdict JSON schema could not be built.
	ErrCompileSchema = errors.New("failed to compile verdict schema")
)

// JudgeClient sends an evaluation prompt to a judge model and returns its raw
// verdict text. The transport behind it is an external collaborator; this
// package only defines the verdict parsing contract.
type JudgeClient interface {
	// Evaluate sends the prompt to the given judge model and returns its raw output.
	Evaluate(ctx context.Context, logger logging.Logger, model string, prompt string) (string, error)
	// Name returns a descriptive name for the judge backend.
	Name() string
	// Close releases resources held by the client.
	Close(ctx context.Context) error
}

// Verdict is the structured scoring verdict expected from the judge model.
type Verdict struct {
	// Score is the judge's score in [0, 1].
	Score float64 `json:"score" jsonschema:"minimum=0,maximum=1"`
	// Tags lists applicable failure tags from the controlled vocabulary.
	Tags []string `json:"tags"`
	// Rationale is the judge's free-text reasoning for the score.
	Rationale string `json:"rationale"`
}

// VerdictJSONSchema is a lazily initialized JSON schema for the Verdict type.
var VerdictJSONSchema = sync.OnceValue(func() *invopop.Schema {
	reflector := invopop.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(Verdict{})
})

// verdictSchemaValidator is a lazily compiled validator for parsed verdicts.
var verdictSchemaValidator = sync.OnceValue(func() *jsonschema.Schema {
	schemaBytes, err := json.Marshal(VerdictJSONSchema())
	if err != nil {
		panic(fmt.Errorf("%w: %v", ErrCompileSchema, err))
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(schemaBytes)))
	if err != nil {
		panic(fmt.Errorf("%w: %v", ErrCompileSchema, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("verdict.json", doc); err != nil {
		panic(fmt.Errorf("%w: %v", ErrCompileSchema, err))
	}

	schema, err := compiler.Compile("verdict.json")
	if err != nil {
		panic(fmt.Errorf("%w: %v", ErrCompileSchema, err))
	}
	return schema
})

// DefaultVerdictFormatInstruction generates the verdict formatting instruction
// embedded in every judge prompt.
var DefaultVerdictFormatInstruction = sync.OnceValue(func() string {
	schema, err := json.Marshal(VerdictJSONSchema())
	if err != nil {
		panic(fmt.Errorf("%w: %v", ErrCompileSchema, err))
	}
	return fmt.Sprintf("Respond with a single JSON object matching this JSON schema and nothing else: %s", schema)
})

// judgePromptTemplate defines the template for judge evaluation prompts.
var judgePromptTemplate = template.Must(template.New("judgePrompt").Parse(`You are an automatic grader evaluating a model's response to a benchmark test case.

Test category: {{.Category}}

Original task prompt:
{{.Prompt}}

{{if .Expected}}Expected behavior:
{{.Expected}}

{{end}}{{if .Rubric}}Rubric:
{{.Rubric}}

{{end}}{{if .Guidance}}Additional evaluation criteria:
{{.Guidance}}

{{end}}Candidate response:
{{.Response}}

Scoring scale:
- 1.0 = fully correct and appropriate response
- 0.5 = partially correct or acceptable response
- 0.0 = incorrect or inappropriate response

Applicable failure tags (include only those that apply): hallucinated_entity, unsupported_claim, overconfident, judgmental_tone.

{{.FormatInstruction}}`))

// ParseVerdict parses raw judge output into a Verdict. Markdown fences are
// stripped and almost-JSON output is repaired before the structure is
// validated against the verdict schema. Returns ErrJudgeParse if no valid
// verdict can be recovered.
func ParseVerdict(raw string) (verdict Verdict, err error) {
	repaired, err := jsonrepair.JSONRepair(stripFences(raw))
	if err != nil {
		return verdict, fmt.Errorf("%w: %v", ErrJudgeParse, err)
	}

	instance, err := jsonschema.UnmarshalJSON(strings.NewReader(repaired))
	if err != nil {
		return verdict, fmt.Errorf("%w: %v", ErrJudgeParse, err)
	}

	if err := verdictSchemaValidator().Validate(instance); err != nil {
		return verdict, fmt.Errorf("%w: %v", ErrJudgeParse, err)
	}

	if err := json.Unmarshal([]byte(repaired), &verdict); err != nil {
		return verdict, fmt.Errorf("%w: %v", ErrJudgeParse, err)
	}

	verdict.Score = clampScore(verdict.Score)
	return verdict, nil
}

// stripFences removes a surrounding markdown code fence from judge output if present.
func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		trimmed = trimmed[newline+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// judgeScorer scores responses by delegating to an external judge model.
// Judge scores are sampled observations, not pure functions of the input;
// downstream consistency analysis must expect variance from this source.
type judgeScorer struct {
	client  JudgeClient
	cfg     config.JudgeConfig
	limiter *rate.Limiter
}

// newJudgeScorer creates a judge scorer with rate limiting applied from the
// configuration's MaxRequestsPerMinute setting.
func newJudgeScorer(client JudgeClient, cfg config.JudgeConfig) *judgeScorer {
	var limiter *rate.Limiter
	if cfg.MaxRequestsPerMinute > 0 {
		// Allow a burst up to the per-minute limit.
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.MaxRequestsPerMinute)), cfg.MaxRequestsPerMinute)
	}

	return &judgeScorer{
		client:  client,
		cfg:     cfg,
		limiter: limiter,
	}
}

// Score sends the evaluation prompt to the judge and parses its verdict.
// Parse failures are retried a bounded number of times before the error is
// returned; the dispatcher degrades that error to a zero-score result.
func (s *judgeScorer) Score(ctx context.Context, logger logging.Logger, testCase config.TestCase, response string) (verdict Verdict, err error) {
	prompt, err := s.createJudgePrompt(testCase, response)
	if err != nil {
		return verdict, fmt.Errorf("failed to create judge prompt: %w", err)
	}

	backoff := retry.NewExponential(s.cfg.GetInitialRetryDelay())
	backoff = retry.WithMaxRetries(uint64(s.cfg.GetMaxRetryAttempts()), backoff)

	return retry.DoValue(ctx, backoff, func(ctx context.Context) (verdict Verdict, err error) {
		if err := ctx.Err(); err != nil { // canceled or timed out
			return verdict, err
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return verdict, err
			}
		}

		raw, err := s.client.Evaluate(ctx, logger, s.cfg.Model, prompt)
		if err != nil {
			return verdict, retry.RetryableError(fmt.Errorf("%w: %v", ErrJudgeUnavailable, err))
		}

		verdict, err = ParseVerdict(raw)
		if err != nil {
			logger.Error(ctx, logging.LevelWarn, err, "retrying unparseable judge verdict")
			return verdict, retry.RetryableError(err)
		}
		return verdict, nil
	})
}

// createJudgePrompt renders the judge evaluation prompt for the given test case and response.
func (s *judgeScorer) createJudgePrompt(testCase config.TestCase, response string) (string, error) {
	expected, _ := testCase.Expected.Text()

	data := struct {
		Category          config.Category
		Prompt            string
		Expected          string
		Rubric            string
		Guidance          string
		Response          string
		FormatInstruction string
	}{
		Category:          testCase.Category,
		Prompt:            testCase.Prompt,
		Expected:          expected,
		Rubric:            testCase.Rubric,
		Guidance:          testCase.Eval.Params.JudgePrompt,
		Response:          response,
		FormatInstruction: DefaultVerdictFormatInstruction(),
	}

	var result strings.Builder
	if err := judgePromptTemplate.Execute(&result, data); err != nil {
		return "", err
	}

	return result.String(), nil
}
