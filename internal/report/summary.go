// Package report renders run results: a console summary in text or JSON
// and an XLSX workbook.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/roach88/formharness/internal/harness"
)

// ScenarioSummary is the outcome of one scenario.
type ScenarioSummary struct {
	Name     string        `json:"name"`
	Pass     bool          `json:"pass"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Total    int           `json:"total"`
	Aborted  bool          `json:"aborted,omitempty"`
	Errors   []string      `json:"errors,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	RunID    string        `json:"run_id,omitempty"`
}

// Summary totals a set of runs. Counts are cases, not scenarios.
type Summary struct {
	Scenarios []ScenarioSummary `json:"scenarios"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Total     int               `json:"total"`
	Duration  time.Duration     `json:"duration_ns"`
}

// Pass reports whether every scenario passed.
func (s Summary) Pass() bool {
	for _, sc := range s.Scenarios {
		if !sc.Pass {
			return false
		}
	}
	return true
}

// Find returns the summary of the named scenario, or nil.
func (s *Summary) Find(name string) *ScenarioSummary {
	for i := range s.Scenarios {
		if s.Scenarios[i].Name == name {
			return &s.Scenarios[i]
		}
	}
	return nil
}

// Fail marks the scenario failed for a reason outside its cases, such as
// a golden trace mismatch.
func (sc *ScenarioSummary) Fail(reason string) {
	sc.Pass = false
	sc.Errors = append(sc.Errors, reason)
}

// Summarize totals runs. Cases an aborted run never reached count as
// failed. A nil run stands for a scenario that did not start.
func Summarize(runs []*harness.RunResult) Summary {
	s := Summary{Scenarios: make([]ScenarioSummary, 0, len(runs))}
	for _, r := range runs {
		if r == nil {
			continue
		}
		sc := ScenarioSummary{
			Name:     r.Scenario,
			Pass:     r.Pass(),
			Passed:   r.Passed,
			Failed:   r.Total - r.Passed,
			Total:    r.Total,
			Aborted:  r.Aborted,
			Duration: r.Duration,
		}
		for _, c := range r.Cases {
			for _, e := range c.Errors {
				sc.Errors = append(sc.Errors, fmt.Sprintf("case %d %s: %s", c.Index, c.Name, e))
			}
		}
		if r.Error != "" {
			sc.Errors = append(sc.Errors, r.Error)
		}
		s.Scenarios = append(s.Scenarios, sc)
		s.Passed += sc.Passed
		s.Failed += sc.Failed
		s.Total += sc.Total
		s.Duration += r.Duration
	}
	return s
}

// WriteText prints one line per scenario, the errors of failed ones and
// the totals.
func WriteText(w io.Writer, s Summary) {
	for _, sc := range s.Scenarios {
		mark := "✓"
		if !sc.Pass {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s (%d/%d)", mark, sc.Name, sc.Passed, sc.Total)
		if sc.Aborted {
			fmt.Fprint(w, " aborted")
		}
		fmt.Fprintln(w)
		for _, e := range sc.Errors {
			fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(e, "\n", "\n  "))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", s.Passed, s.Failed, s.Total)
	if s.Pass() {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}
