// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

// Package main provides the command-line interface and the main entry point for MindGauge.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/petmal/mindgauge/config"
	"github.com/petmal/mindgauge/evaluation"
	"github.com/petmal/mindgauge/formatters"
	"github.com/petmal/mindgauge/runners"
	"github.com/petmal/mindgauge/sandbox"
	"github.com/petmal/mindgauge/version"
)

const (
	runCommandName             = "run"
	helpCommandName            = "help"
	versionCommandName         = "version"
	unsetFlagValue             = "\x00"
	exitCodeBadCommand         = 2
	exitCodeFinishedWithErrors = 3
	defaultConfigFile          = "config.yaml"
)

var (
	commandDoc = map[string]string{
		runCommandName:     "evaluate recorded responses against the suite",
		helpCommandName:    "show help",
		versionCommandName: "show version",
	}
)

var (
	csvFormatter   = formatters.NewCSVFormatter()
	jsonlFormatter = formatters.NewJSONLFormatter()
	logFormatter   = formatters.NewLogFormatter()
)

var (
	configFilePath     = flag.String("config", defaultConfigFile, "configuration file path")
	suiteFilePath      = flag.String("suite", unsetFlagValue, "suite definitions file path")
	responsesFilePath  = flag.String("responses", unsetFlagValue, "response records file path (JSON Lines)")
	outputFileDir      = flag.String("output-dir", unsetFlagValue, "results output directory")
	outputFileBasename = flag.String("output-basename", unsetFlagValue, "base filename for results; replace if exists; blank = stdout")
	formatCSV          = formatFlag(csvFormatter, true)
	formatJSONL        = formatFlag(jsonlFormatter, false)
	formatSummary      = flag.Bool("summary", true, "generate JSON summary output")
	logFilePath        = flag.String("log", unsetFlagValue, "log file path; append if exists; blank = stdout")
	verbose            = flag.Bool("verbose", false, "enable detailed logging")
	debug              = flag.Bool("debug", false, "enable low-level debug logging")
)

func formatFlag(formatter formatters.Formatter, defaultValue bool) *bool {
	fileExt := formatter.FileExt()
	return flag.Bool(strings.ToLower(fileExt), defaultValue, fmt.Sprintf("generate %s output", strings.ToUpper(fileExt)))
}

var stderr = zerolog.New(zerolog.NewConsoleWriter(
	func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stderr
		w.TimeFormat = time.DateTime
		w.NoColor = true
	},
)).Level(zerolog.TraceLevel).With().Timestamp().Logger()

func init() {
	flag.Usage = func() {
		w := flag.CommandLine.Output()
		fmt.Fprintf(w, "Usage: %s [options] [command]\n", os.Args[0])
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Commands:")
		printCommandHelp(w, runCommandName, helpCommandName, versionCommandName)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Options:")
		flag.PrintDefaults()
	}
}

func printCommandHelp(out io.Writer, commands ...string) {
	for _, cmdName := range commands {
		formatCommandHelp(out, cmdName, commandDoc[cmdName])
	}
}

func formatCommandHelp(out io.Writer, name string, usage string) {
	fmt.Fprintf(out, "  %s\n", name)
	fmt.Fprintf(out, "        %s\n", usage)
}

func main() {
	flag.Parse()
	for _, arg := range flag.Args() {
		switch arg {
		case helpCommandName:
			printHelp(os.Stdout)
			return
		case versionCommandName:
			printVersion(os.Stdout)
			return
		case runCommandName:
			if ok, err := run(context.Background()); err != nil {
				stderr.Fatal().Err(err).Send()
			} else if !ok {
				os.Exit(exitCodeFinishedWithErrors)
			}
			return
		}
	}
	printHelp(nil) // os.Stderr
	os.Exit(exitCodeBadCommand)
}

func run(ctx context.Context) (ok bool, err error) {
	configPath := filepath.Clean(*configFilePath)
	workingDir, configDir, err := getWorkingDirectories(configPath)
	if err != nil {
		return
	}
	fmt.Printf("Current working directory: %s\n", workingDir)
	fmt.Printf("Configuration directory: %s\n", configDir)

	// Load configuration.
	fmt.Printf("Loading configuration from file: %s\n", configPath)
	cfg, err := config.LoadConfigFromFile(ctx, configPath)
	if err != nil {
		return
	}

	// Load the suite.
	suiteFile := config.CleanIfNotBlank(getFlagValueIfSet(suiteFilePath, config.MakeAbs(configDir, cfg.Config.SuiteSource)))
	fmt.Printf("Loading suite from file: %s\n", suiteFile)
	suite, err := config.LoadSuiteFromFile(ctx, suiteFile)
	if err != nil {
		return
	}

	targetTestCases := suite.SuiteConfig.GetEnabledTestCases()
	if len(targetTestCases) < 1 {
		fmt.Println("Nothing to evaluate: all test cases are disabled.")
		return true, nil
	}

	// Load the recorded responses.
	responsesFile := config.CleanIfNotBlank(getFlagValueIfSet(responsesFilePath, config.MakeAbs(configDir, cfg.Config.ResponsesSource)))
	fmt.Printf("Loading responses from file: %s\n", responsesFile)
	responses, err := evaluation.LoadResponsesFromFile(ctx, responsesFile)
	if err != nil {
		return
	}
	if len(responses) < 1 {
		fmt.Println("Nothing to evaluate: the responses file contains no records.")
		return true, nil
	}

	// Create output files.
	outputWriters := make(map[formatters.Formatter]io.Writer)
	for _, formatter := range enabledFormatters(cfg.Config.Analysis) {
		outputWriters[formatter] = os.Stdout // default
		if fileName := getFlagValueIfSet(outputFileBasename, cfg.Config.OutputBaseName); config.IsNotBlank(fileName) {
			fileName = fmt.Sprintf("%s.%s", fileName, formatter.FileExt())
			if fp, outputPath, err := createOutputFile(config.MakeAbs(
				getFlagValueIfSet(outputFileDir, config.MakeAbs(configDir, cfg.Config.OutputDir)), fileName), false); err != nil {
				return ok, err
			} else if fp != nil {
				defer fp.Close()
				fmt.Printf("Results in %s format will be saved to: %s\n", strings.ToUpper(formatter.FileExt()), outputPath)
				outputWriters[formatter] = fp
			}
		}
	}

	// Configure logger.
	logWriters := []io.Writer{zerolog.NewConsoleWriter(
		func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stdout
			w.TimeFormat = time.DateTime
			w.NoColor = false
		},
	)}
	logFile := os.Stdout
	if fp, logPath, err := createOutputFile(getFlagValueIfSet(logFilePath, config.MakeAbs(configDir, cfg.Config.LogFile)), true); err != nil {
		return ok, err
	} else if fp != nil {
		fmt.Printf("Log messages will be saved to: %s\n", logPath)
		defer fp.Close()
		logFile = fp
		logWriters = append(logWriters, zerolog.NewConsoleWriter(
			func(w *zerolog.ConsoleWriter) {
				w.Out = logFile
				w.TimeFormat = time.DateTime
				w.NoColor = true
			},
		)) // format the file output as plain-text without color codes
	}
	logger := zerolog.New(zerolog.MultiLevelWriter(logWriters...)).Level(getEnabledLogLevel()).With().Timestamp().Logger()

	// The judge transport is an external collaborator; without one, judge-based
	// test cases are recorded as per-test configuration errors.
	if hasMethod(targetTestCases, config.EvalMethodLLMJudge) {
		logger.Warn().Msg("no judge client is wired in: llm_judge test cases will score 0.0 with a config_error tag")
	}

	// Create the code sandbox only when the suite needs it.
	var executor evaluation.CodeExecutor
	if hasMethod(targetTestCases, config.EvalMethodPythonExec) {
		sandboxExecutor, err := sandbox.NewExecutor(ctx, cfg.Config.Sandbox)
		if err != nil {
			return ok, err
		}
		defer sandboxExecutor.Close()
		if err := sandboxExecutor.ValidateImage(ctx); err != nil {
			return ok, err
		}
		executor = sandboxExecutor
	}

	// Evaluate the trials.
	dispatcher := evaluation.NewDispatcher(nil, cfg.Config.Judge, executor, cfg.Config.Analysis)
	exec := runners.NewDefaultRunner(*suite, dispatcher, cfg.Config.GetWorkers(), logger)
	defer exec.Close(ctx)
	if err = exec.Run(ctx, responses); err != nil { // blocking call
		return
	}
	results := exec.GetResults()

	// Print and save the results.
	ok = !logResults(results, logFile)
	ok = ok && !saveResults(results, outputWriters)

	return
}

func enabledFormatters(analysisCfg config.AnalysisConfig) (enabled []formatters.Formatter) {
	if isEnabled(formatCSV) {
		enabled = append(enabled, csvFormatter)
	}
	if isEnabled(formatJSONL) {
		enabled = append(enabled, jsonlFormatter)
	}
	if isEnabled(formatSummary) {
		enabled = append(enabled, formatters.NewSummaryFormatter(analysisCfg))
	}
	return enabled
}

func hasMethod(testCases []config.TestCase, method config.EvalMethod) bool {
	for _, testCase := range testCases {
		if testCase.Eval.Method() == method {
			return true
		}
	}
	return false
}

func isEnabled(value *bool) bool {
	return value != nil && *value
}

func getWorkingDirectories(configFilePath string) (workingDir string, configDir string, err error) {
	workingDir, err = os.Getwd()
	if err != nil {
		return
	}

	// If the path is not absolute it will be joined with the current working directory.
	absConfigPath, err := filepath.Abs(configFilePath)
	if err != nil {
		return
	}
	configDir = filepath.Dir(absConfigPath)

	return
}

func getEnabledLogLevel() zerolog.Level {
	if isEnabled(debug) {
		return zerolog.TraceLevel
	} else if isEnabled(verbose) {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

func getFlagValueIfSet(value *string, defaultValue string) string {
	if (value != nil) && *value != unsetFlagValue {
		return *value
	}
	return defaultValue
}

func printHelp(out io.Writer) {
	flag.CommandLine.SetOutput(out)
	flag.Usage()
}

func printVersion(out io.Writer) {
	fmt.Fprintf(out, "%s %s\n", version.Name, version.GetVersion())
}

func createOutputFile(outputFilePath string, append bool) (outputFile *os.File, outputPath string, err error) {
	if outputPath = config.CleanIfNotBlank(outputFilePath); config.IsNotBlank(outputPath) {
		if err = os.MkdirAll(filepath.Dir(outputPath), os.ModePerm); err != nil {
			return
		}
		if append {
			outputFile, err = os.OpenFile(outputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		} else {
			outputFile, err = os.Create(outputPath)
		}
	}
	return
}

func logResults(results runners.Results, out io.Writer) (finishedWithErrors bool) {
	fmt.Fprintln(out)
	if err := logFormatter.Write(results, out); err != nil {
		stderr.Warn().Err(err).Msg("failed to log results")
		finishedWithErrors = true
	}
	fmt.Fprintln(out)
	return
}

func saveResults(results runners.Results, outputWriters map[formatters.Formatter]io.Writer) (finishedWithErrors bool) {
	for formatter, out := range outputWriters {
		if err := formatter.Write(results, out); err != nil {
			stderr.Warn().Err(err).Msgf("failed to write %s output", strings.ToUpper(formatter.FileExt()))
			finishedWithErrors = true
		}
	}
	return
}
