package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/BYTE-6D65/blinkbreak/cmd/behavior-test/framework"
	"github.com/BYTE-6D65/blinkbreak/cmd/behavior-test/tests"
)

const suiteName = "BlinkBreak Signal Behavior Test Suite"

var errSuiteFailed = errors.New("behavior suite failed")

type suiteOptions struct {
	all      bool
	category string
	test     string
	list     bool
	verbose  bool
	report   string
	timeout  time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newSuiteCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errSuiteFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func newSuiteCmd() *cobra.Command {
	opts := &suiteOptions{}
	cmd := &cobra.Command{
		Use:           "behavior-test",
		Short:         "Run end-to-end scenarios against the frame pipeline",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.all, "all", false, "run all tests")
	f.StringVar(&opts.category, "category", "", "run tests whose category starts with this prefix")
	f.StringVar(&opts.test, "test", "", "run tests whose name starts with this prefix (e.g. 2.1)")
	f.BoolVar(&opts.list, "list", false, "list the available tests and exit")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "print every assertion as it completes")
	f.StringVar(&opts.report, "report", "summary", "report format: summary, detailed, json, markdown")
	f.DurationVar(&opts.timeout, "timeout", time.Minute, "timeout per test")
	return cmd
}

func runSuite(ctx context.Context, out io.Writer, opts *suiteOptions) error {
	registry := buildTestRegistry()

	if opts.list {
		for _, tc := range registry {
			fmt.Fprintf(out, "%-40s %-20s %s\n", tc.Name(), tc.Category(), tc.Description())
		}
		return nil
	}
	if !opts.all && opts.category == "" && opts.test == "" {
		return errors.New("one of --all, --category or --test is required")
	}

	selected := filterTests(registry, opts)
	if len(selected) == 0 {
		return errors.New("no tests match the given filters")
	}

	report := framework.NewTestReport(suiteName)
	fmt.Fprintf(out, "=== %s ===\n\n", suiteName)
	fmt.Fprintf(out, "Running %d test(s)...\n\n", len(selected))

	for i, tc := range selected {
		if ctx.Err() != nil {
			fmt.Fprintln(out, "Interrupted, skipping remaining tests")
			break
		}
		fmt.Fprintf(out, "[%d/%d] %s\n", i+1, len(selected), tc.Name())

		result := runTest(ctx, tc, opts.timeout)
		report.AddResult(result)
		printOutcome(out, result, opts.verbose)
	}
	report.Finish()

	fmt.Fprintln(out)
	switch opts.report {
	case "summary":
		report.PrintSummary(out)
	case "detailed":
		report.PrintDetailed(out)
	case "json":
		if err := report.PrintJSON(out); err != nil {
			return fmt.Errorf("json report: %w", err)
		}
	case "markdown":
		report.PrintMarkdown(out)
	default:
		return fmt.Errorf("unknown report format %q", opts.report)
	}

	if report.FailedTests() > 0 {
		return errSuiteFailed
	}
	return nil
}

func printOutcome(out io.Writer, result *framework.TestResult, verbose bool) {
	if result.Passed {
		fmt.Fprintf(out, "  ✅ PASS (%s)\n", result.Duration)
	} else {
		fmt.Fprintf(out, "  ❌ FAIL (%s)\n", result.Duration)
	}

	for _, a := range result.Assertions {
		if a.Passed && !verbose {
			continue
		}
		mark := "✓"
		if !a.Passed {
			mark = "✗"
		}
		fmt.Fprintf(out, "    %s %s\n", mark, a.Name)
		if a.Message != "" && !a.Passed {
			fmt.Fprintf(out, "      %s\n", a.Message)
		}
	}
	for _, msg := range result.Failures {
		fmt.Fprintf(out, "    ! %s\n", msg)
	}
	fmt.Fprintln(out)
}

// runTest drives one test through setup, run and validation. Teardown
// always runs once setup succeeded.
func runTest(ctx context.Context, tc framework.TestCase, timeout time.Duration) (result *framework.TestResult) {
	testCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	failed := func(stage string, err error) *framework.TestResult {
		r := framework.NewTestResult(tc.Name(), tc.Category())
		r.AddError(fmt.Errorf("%s: %w", stage, err))
		r.Finish()
		return r
	}

	if err := tc.Setup(testCtx); err != nil {
		return failed("setup", err)
	}
	defer func() {
		if err := tc.Teardown(); err != nil {
			result.AddWarning(fmt.Sprintf("teardown: %v", err))
		}
	}()

	if err := tc.Run(testCtx); err != nil {
		return failed("run", err)
	}
	return tc.Validate()
}

func buildTestRegistry() []framework.TestCase {
	return []framework.TestCase{
		// Blink Control
		tests.NewTest11BlinkSteersPaddle(),
		tests.NewTest12QuietSignalIdle(),

		// SSVEP Calibration
		tests.NewTest21CalibrationSession(),
		tests.NewTest22NoFlickerBaseline(),

		// Drift Correction
		tests.NewTest31DriftRejection(),
	}
}

func filterTests(registry []framework.TestCase, opts *suiteOptions) []framework.TestCase {
	if opts.all {
		return registry
	}

	var selected []framework.TestCase
	for _, tc := range registry {
		switch {
		case opts.test != "":
			if strings.HasPrefix(tc.Name(), opts.test) {
				selected = append(selected, tc)
			}
		case strings.HasPrefix(tc.Category(), opts.category):
			selected = append(selected, tc)
		}
	}
	return selected
}
