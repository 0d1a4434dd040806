package framework

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestReport_GroupsByFirstRun(t *testing.T) {
	r := NewTestReport("suite")
	for _, c := range []string{"SSVEP Calibration", "Blink Control", "SSVEP Calibration"} {
		r.AddResult(NewTestResult("t", c))
	}

	names, groups := r.byCategory()
	if len(names) != 2 || names[0] != "SSVEP Calibration" || names[1] != "Blink Control" {
		t.Fatalf("Unexpected category order %v", names)
	}
	if len(groups["SSVEP Calibration"]) != 2 {
		t.Errorf("Expected 2 calibration results, got %d", len(groups["SSVEP Calibration"]))
	}
}

func TestReport_Counts(t *testing.T) {
	r := NewTestReport("suite")
	pass := NewTestResult("1.1", "Blink Control")
	fail := NewTestResult("1.2", "Blink Control")
	fail.AddError(errors.New("boom"))
	r.AddResult(pass)
	r.AddResult(fail)
	r.Finish()

	if r.PassedTests() != 1 || r.FailedTests() != 1 || r.PassRate() != 50 {
		t.Errorf("Unexpected counts: passed=%d failed=%d rate=%.1f", r.PassedTests(), r.FailedTests(), r.PassRate())
	}

	var buf bytes.Buffer
	r.PrintSummary(&buf)
	if !strings.Contains(buf.String(), "Some tests FAILED") {
		t.Errorf("Summary should report failure:\n%s", buf.String())
	}
}

func TestReport_PrintJSON(t *testing.T) {
	r := NewTestReport("suite")
	res := NewTestResult("2.1", "SSVEP Calibration")
	res.AddError(errors.New("session still running"))
	res.AddMetric("flushes", 30)
	r.AddResult(res)
	r.Finish()

	var buf bytes.Buffer
	if err := r.PrintJSON(&buf); err != nil {
		t.Fatalf("PrintJSON failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"SuiteName"`, `"session still running"`, `"flushes"`} {
		if !strings.Contains(out, want) {
			t.Errorf("JSON missing %s:\n%s", want, out)
		}
	}
}

func TestAssertions(t *testing.T) {
	tc := NewBaseTestCase()
	AssertCountEquals(tc, "equal", 3, 3)
	AssertNear(tc, "near", 100, 99.995, 0.01)
	AssertCountInRange(tc, "range", 1, 2, 5)

	res := tc.Result()
	if res.PassedAssertions() != 2 || res.FailedAssertions() != 1 || res.Passed {
		t.Errorf("Unexpected assertion tally: passed=%d failed=%d", res.PassedAssertions(), res.FailedAssertions())
	}
}
