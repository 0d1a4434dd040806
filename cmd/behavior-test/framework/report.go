package framework

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	headStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// TestReport collects the results of one suite run.
type TestReport struct {
	SuiteName string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration `json:",format:nano"`
	Results   []*TestResult
}

func NewTestReport(suiteName string) *TestReport {
	return &TestReport{SuiteName: suiteName, StartTime: time.Now()}
}

func (r *TestReport) AddResult(result *TestResult) {
	r.Results = append(r.Results, result)
}

func (r *TestReport) Finish() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}

func (r *TestReport) TotalTests() int { return len(r.Results) }

func (r *TestReport) PassedTests() int {
	n := 0
	for _, res := range r.Results {
		if res.Passed {
			n++
		}
	}
	return n
}

func (r *TestReport) FailedTests() int { return r.TotalTests() - r.PassedTests() }

// PassRate is the share of passed tests in percent, 0 for an empty report.
func (r *TestReport) PassRate() float64 {
	if len(r.Results) == 0 {
		return 0
	}
	return 100 * float64(r.PassedTests()) / float64(len(r.Results))
}

// byCategory groups results by category, in the order categories first ran.
func (r *TestReport) byCategory() ([]string, map[string][]*TestResult) {
	var names []string
	groups := make(map[string][]*TestResult)
	for _, res := range r.Results {
		if _, seen := groups[res.Category]; !seen {
			names = append(names, res.Category)
		}
		groups[res.Category] = append(groups[res.Category], res)
	}
	return names, groups
}

func badge(passed bool) string {
	if passed {
		return passStyle.Render("PASS")
	}
	return failStyle.Render("FAIL")
}

func (r *TestReport) verdict() string {
	if n := r.FailedTests(); n > 0 {
		return failStyle.Render(fmt.Sprintf("Some tests FAILED (%d of %d)", n, r.TotalTests()))
	}
	return passStyle.Render("All tests PASSED")
}

// PrintSummary writes one line per test, grouped by category, then totals.
func (r *TestReport) PrintSummary(w io.Writer) {
	fmt.Fprintln(w, headStyle.Render(r.SuiteName))
	fmt.Fprintln(w)

	names, groups := r.byCategory()
	for _, name := range names {
		fmt.Fprintf(w, "%s\n", name)
		for _, res := range groups[name] {
			fmt.Fprintf(w, "  [%s] %-45s %s\n", badge(res.Passed), res.TestName, res.Duration.Round(time.Microsecond))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "tests %d  passed %d  failed %d  rate %.1f%%  took %s\n",
		r.TotalTests(), r.PassedTests(), r.FailedTests(), r.PassRate(), r.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, r.verdict())
}

// PrintDetailed writes every assertion, metric, error and warning of each
// test before the summary.
func (r *TestReport) PrintDetailed(w io.Writer) {
	for _, res := range r.Results {
		writeResult(w, res)
	}
	r.PrintSummary(w)
}

func writeResult(w io.Writer, res *TestResult) {
	fmt.Fprintf(w, "[%s] %s (%s, %s)\n", badge(res.Passed), res.TestName, res.Category, res.Duration)

	for i, a := range res.Assertions {
		mark := "✓"
		if !a.Passed {
			mark = "✗"
		}
		fmt.Fprintf(w, "  %2d %s %s\n", i+1, mark, a.Name)
		if !a.Passed {
			fmt.Fprintf(w, "       want %v, got %v\n", a.Expected, a.Actual)
			if a.Message != "" {
				fmt.Fprintf(w, "       %s\n", a.Message)
			}
		}
	}

	keys := make([]string, 0, len(res.Metrics))
	for k := range res.Metrics {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  metric %s = %v\n", k, res.Metrics[k])
	}
	for _, msg := range res.Failures {
		fmt.Fprintf(w, "  error %s\n", msg)
	}
	for _, msg := range res.Warnings {
		fmt.Fprintf(w, "  warning %s\n", msg)
	}
	fmt.Fprintln(w, strings.Repeat("-", 72))
}

func (r *TestReport) PrintJSON(w io.Writer) error {
	return json.MarshalWrite(w, r, jsontext.WithIndent("  "))
}

// PrintMarkdown writes a totals table and one results table per category.
func (r *TestReport) PrintMarkdown(w io.Writer) {
	fmt.Fprintf(w, "# %s\n\n", r.SuiteName)
	fmt.Fprintf(w, "Run %s, took %s.\n\n", r.StartTime.Format(time.DateTime), r.Duration)

	fmt.Fprintln(w, "| Total | Passed | Failed | Rate |")
	fmt.Fprintln(w, "|---|---|---|---|")
	fmt.Fprintf(w, "| %d | %d | %d | %.1f%% |\n\n", r.TotalTests(), r.PassedTests(), r.FailedTests(), r.PassRate())

	names, groups := r.byCategory()
	for _, name := range names {
		fmt.Fprintf(w, "## %s\n\n| Test | Status | Duration |\n|---|---|---|\n", name)
		for _, res := range groups[name] {
			status := "✅ PASS"
			if !res.Passed {
				status = "❌ FAIL"
			}
			fmt.Fprintf(w, "| %s | %s | %s |\n", res.TestName, status, res.Duration)
		}
		fmt.Fprintln(w)
	}

	if n := r.FailedTests(); n > 0 {
		fmt.Fprintf(w, "**%d test(s) FAILED**\n", n)
	} else {
		fmt.Fprintln(w, "**All tests PASSED**")
	}
}
