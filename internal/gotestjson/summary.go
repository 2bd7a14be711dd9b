package gotestjson

import (
	"fmt"
	"io"
)

// slowestShown caps the slow-test list in the console summary.
const slowestShown = 5

// TestTiming is the elapsed time of one test.
type TestTiming struct {
	Name           string
	ElapsedSeconds float64
}

// Summary counts what a run did.
type Summary struct {
	Packages       int
	Passed         int
	Failed         int
	Skipped        int
	Elapsed        float64
	FailedTests    []string
	FailedPackages []string
	BuildFailures  []string
	// Slowest lists tests by elapsed time, slowest first.
	Slowest []TestTiming
}

// OK reports whether nothing failed.
func (s Summary) OK() bool {
	return s.Failed == 0 && len(s.FailedPackages) == 0 && len(s.BuildFailures) == 0
}

// Print writes a console summary of s to w.
func (s Summary) Print(w io.Writer) {
	status := "ok"
	if !s.OK() {
		status = "FAIL"
	}
	fmt.Fprintf(w, "%s: packages=%d passed=%d failed=%d skipped=%d elapsed=%.3fs\n",
		status, s.Packages, s.Passed, s.Failed, s.Skipped, s.Elapsed)
	for _, name := range s.BuildFailures {
		fmt.Fprintf(w, "  build failed: %s\n", name)
	}
	for _, name := range s.FailedTests {
		fmt.Fprintf(w, "  --- FAIL: %s\n", name)
	}
	limit := len(s.Slowest)
	if limit > slowestShown {
		limit = slowestShown
	}
	if limit > 0 {
		fmt.Fprintln(w, "  slowest:")
	}
	for i := 0; i < limit; i++ {
		fmt.Fprintf(w, "  %d. %s %.3fs\n", i+1, s.Slowest[i].Name, s.Slowest[i].ElapsedSeconds)
	}
}
