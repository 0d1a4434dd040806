package framework

import (
	"fmt"
	"math"
	"os"
)

// AssertTrue checks if condition is true.
func AssertTrue(tc *BaseTestCase, name string, condition bool, message string) {
	tc.Assert(name, true, condition, condition, message)
}

// AssertFalse checks if condition is false.
func AssertFalse(tc *BaseTestCase, name string, condition bool, message string) {
	tc.Assert(name, false, condition, !condition, message)
}

// AssertEquals checks if two values are equal.
func AssertEquals(tc *BaseTestCase, name string, expected, actual any) {
	passed := expected == actual
	message := ""
	if !passed {
		message = fmt.Sprintf("Expected %v, got %v", expected, actual)
	}
	tc.Assert(name, expected, actual, passed, message)
}

// AssertCountEquals checks if count matches expected.
func AssertCountEquals(tc *BaseTestCase, name string, expected, actual int) {
	passed := expected == actual
	message := ""
	if !passed {
		message = fmt.Sprintf("Expected %d, got %d", expected, actual)
	}
	tc.Assert(name, expected, actual, passed, message)
}

// AssertCountGreaterThan checks if count is greater than minimum.
func AssertCountGreaterThan(tc *BaseTestCase, name string, min, actual int) {
	passed := actual > min
	message := ""
	if !passed {
		message = fmt.Sprintf("Expected count > %d, got %d", min, actual)
	}
	tc.Assert(name, fmt.Sprintf("> %d", min), actual, passed, message)
}

// AssertCountInRange checks if count is within [min, max].
func AssertCountInRange(tc *BaseTestCase, name string, min, max, actual int) {
	passed := actual >= min && actual <= max
	message := ""
	if !passed {
		message = fmt.Sprintf("Expected count in [%d, %d], got %d", min, max, actual)
	}
	tc.Assert(name, fmt.Sprintf("[%d, %d]", min, max), actual, passed, message)
}

// AssertNear checks if actual is within tolerance of expected.
func AssertNear(tc *BaseTestCase, name string, expected, actual, tolerance float64) {
	diff := math.Abs(expected - actual)
	passed := diff <= tolerance
	message := ""
	if !passed {
		message = fmt.Sprintf("Expected %.2f (±%.2f), got %.2f (diff: %.2f)", expected, tolerance, actual, diff)
	}
	tc.Assert(name, fmt.Sprintf("%.2f ± %.2f", expected, tolerance), actual, passed, message)
}

// AssertErrorReported checks that code was reported between min and max
// times.
func AssertErrorReported(tc *BaseTestCase, name, code string, min, max int) {
	actual := tc.ErrorCount(code)
	passed := actual >= min && actual <= max
	message := ""
	if !passed {
		message = fmt.Sprintf("Expected %s reported %d to %d times, got %d", code, min, max, actual)
	}
	tc.Assert(name, fmt.Sprintf("%s x [%d, %d]", code, min, max), actual, passed, message)
}

// AssertFileNotEmpty checks that path exists and has content.
func AssertFileNotEmpty(tc *BaseTestCase, name, path string) {
	info, err := os.Stat(path)
	passed := err == nil && info.Size() > 0
	message := ""
	switch {
	case err != nil:
		message = err.Error()
	case !passed:
		message = path + " is empty"
	}
	tc.Assert(name, "non-empty "+path, passed, passed, message)
}
