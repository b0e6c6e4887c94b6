package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sebdah/goldie/v2"
)

// GoldenSuffix is the extension of golden trace files.
const GoldenSuffix = ".golden"

// AssertGolden compares the trace of r with testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, r *RunResult) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(GoldenSuffix),
	)
	g.Assert(t, name, []byte(FormatTrace(r)))
}

// GoldenPath returns the golden file of a scenario inside dir.
func GoldenPath(dir, scenario string) string {
	return filepath.Join(dir, scenario+GoldenSuffix)
}

// WriteGolden stores the trace of r as the scenario's golden file.
func WriteGolden(dir string, r *RunResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create golden dir: %w", err)
	}
	return os.WriteFile(GoldenPath(dir, r.Scenario), []byte(FormatTrace(r)), 0o644)
}

// CompareGolden checks the trace of r against the scenario's golden file.
// Runs are only comparable when unique keys are deterministic.
func CompareGolden(dir string, r *RunResult) (AssertionResult, error) {
	name := "golden " + r.Scenario
	want, err := os.ReadFile(GoldenPath(dir, r.Scenario))
	if err != nil {
		return AssertionResult{}, fmt.Errorf("read golden file: %w", err)
	}
	if diff := cmp.Diff(string(want), FormatTrace(r)); diff != "" {
		return mismatch(name, "%s", diff), nil
	}
	return matched(name), nil
}
