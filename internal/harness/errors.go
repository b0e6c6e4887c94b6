package harness

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/formharness/internal/browser"
	"github.com/roach88/formharness/internal/sutdb"
)

// ErrAborted is returned by Run when an infrastructure error stopped the
// scenario before its last case.
var ErrAborted = errors.New("scenario aborted")

// AssertionError is a failed assertion, carrying what was expected and
// what the page or database showed.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Diff     string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s", e.Type)
	if e.Expected != "" || e.Actual != "" {
		fmt.Fprintf(&buf, "\n  expected: %s\n  actual:   %s", e.Expected, e.Actual)
	}
	if e.Diff != "" {
		fmt.Fprintf(&buf, "\n  diff (-want +got):\n%s", indent(e.Diff, "    "))
	}
	return buf.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// IsInfrastructure reports whether err comes from the browser or the
// database rather than from a comparison.
func IsInfrastructure(err error) bool {
	var (
		notFound *browser.ElementNotFoundError
		timeout  *browser.TimeoutError
		login    *browser.LoginError
		dbErr    *sutdb.DatabaseError
	)
	return errors.As(err, &notFound) || errors.As(err, &timeout) ||
		errors.As(err, &login) || errors.As(err, &dbErr)
}
