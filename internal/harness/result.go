package harness

import (
	"time"

	"github.com/roach88/formharness/internal/fixture"
)

// AssertionResult is the outcome of one assertion.
type AssertionResult struct {
	Name        string `json:"name"`
	Matched     bool   `json:"matched"`
	DiffDetails string `json:"diff_details,omitempty"`
}

// CaseResult is the outcome of one case.
type CaseResult struct {
	Index      int               `json:"index"`
	Name       string            `json:"name"`
	Action     fixture.Action    `json:"action"`
	Expected   fixture.Outcome   `json:"expected"`
	Pass       bool              `json:"pass"`
	Errors     []string          `json:"errors,omitempty"`
	Assertions []AssertionResult `json:"assertions,omitempty"`
	Duration   time.Duration     `json:"duration_ns"`
	Trace      []TraceEvent      `json:"trace,omitempty"`
	Screenshot string            `json:"screenshot,omitempty"`
}

func (c *CaseResult) fail(msg string) {
	c.Pass = false
	c.Errors = append(c.Errors, msg)
}

// RunResult is the outcome of one scenario.
type RunResult struct {
	Scenario string        `json:"scenario"`
	Setup    []TraceEvent  `json:"setup,omitempty"`
	Cases    []CaseResult  `json:"cases"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Total    int           `json:"total"`
	Aborted  bool          `json:"aborted,omitempty"`
	Error    string        `json:"error,omitempty"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration_ns"`
}

// Pass reports whether every case passed and the run was not aborted.
func (r *RunResult) Pass() bool {
	return !r.Aborted && r.Error == "" && r.Failed == 0
}

func (r *RunResult) add(c CaseResult) {
	r.Cases = append(r.Cases, c)
	if c.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}
