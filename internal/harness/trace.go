package harness

import (
	"fmt"
	"strings"
)

// Trace event types.
const (
	EventLogin   = "login"
	EventOpen    = "open"
	EventClick   = "click"
	EventFill    = "fill"
	EventRead    = "read"
	EventSubmit  = "submit"
	EventAlert   = "alert"
	EventDialog  = "dialog"
	EventHash    = "hash"
	EventAssert  = "assert"
	EventError   = "error"
	EventCapture = "screenshot"
)

// TraceEvent is one step of a case.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

func (e TraceEvent) String() string {
	return fmt.Sprintf("%d %s %s", e.Seq, e.Type, e.Detail)
}

// FormatTrace renders a run's traces one event per line, grouped by case.
// The output is stable for a given run and is what golden files hold.
func FormatTrace(r *RunResult) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "scenario %s\n", r.Scenario)
	for _, e := range r.Setup {
		fmt.Fprintf(&buf, "  %s\n", e)
	}
	for _, c := range r.Cases {
		status := "FAIL"
		if c.Pass {
			status = "PASS"
		}
		fmt.Fprintf(&buf, "case %d %s %s expect=%s: %s\n", c.Index, c.Action, c.Name, c.Expected, status)
		for _, e := range c.Trace {
			fmt.Fprintf(&buf, "  %s\n", e)
		}
	}
	if r.Aborted {
		fmt.Fprintf(&buf, "aborted\n")
	}
	return buf.String()
}
