package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/roach88/formharness/internal/browser"
	"github.com/roach88/formharness/internal/form"
	"github.com/roach88/formharness/internal/ir"
	"github.com/roach88/formharness/internal/rowquery"
	"github.com/roach88/formharness/internal/sutdb"
)

// Assertions compares the page and the database with what a case expects.
// A returned error means the check could not be made; a mismatch is a
// result with Matched false.
type Assertions struct {
	driver browser.Driver
	db     *sutdb.DB
	logger *zap.Logger
}

// NewAssertions creates a helper over a driver and a database.
func NewAssertions(d browser.Driver, db *sutdb.DB, logger *zap.Logger) *Assertions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assertions{driver: d, db: db, logger: logger}
}

// Err converts a mismatch into an *AssertionError. It returns nil when the
// assertion matched.
func (r AssertionResult) Err() error {
	if r.Matched {
		return nil
	}
	return &AssertionError{Type: r.Name, Diff: r.DiffDetails}
}

func matched(name string) AssertionResult {
	return AssertionResult{Name: name, Matched: true}
}

func mismatch(name, format string, args ...any) AssertionResult {
	return AssertionResult{Name: name, DiffDetails: fmt.Sprintf(format, args...)}
}

// ExpectMessage reads the message box and checks its kind and title.
// Every expected line must be present; extra lines and order are ignored.
// An empty title is not checked.
func (a *Assertions) ExpectMessage(ctx context.Context, kind browser.MessageKind, title string, lines []string) (AssertionResult, error) {
	const name = "message"
	msg, err := a.driver.ReadMessage(ctx)
	if err != nil {
		return AssertionResult{}, err
	}
	a.logger.Debug("message", zap.Stringer("message", msg))

	var problems []string
	if msg.Kind != kind {
		problems = append(problems, fmt.Sprintf("kind: expected %s, got %s", kind, msg.Kind))
	}
	if title != "" && msg.Title != title {
		problems = append(problems, fmt.Sprintf("title: expected %q, got %q", title, msg.Title))
	}

	present := make(map[string]bool, len(msg.Lines))
	for _, l := range msg.Lines {
		present[l] = true
	}
	var missing []string
	for _, l := range lines {
		if !present[l] {
			missing = append(missing, l)
		}
	}
	if len(missing) > 0 {
		problems = append(problems, fmt.Sprintf("missing lines: %q\n%s", missing, cmp.Diff(sorted(lines), sorted(msg.Lines))))
	}

	if len(problems) > 0 {
		problems = append(problems, "shown: "+msg.String())
		return mismatch(name, "%s", strings.Join(problems, "\n")), nil
	}
	return matched(name), nil
}

func sorted(lines []string) []string {
	out := append([]string{}, lines...)
	sort.Strings(out)
	return out
}

// ExpectRowCount checks how many rows q matches.
func (a *Assertions) ExpectRowCount(ctx context.Context, q rowquery.Query, want int) (AssertionResult, error) {
	name := "row_count " + rowquery.TableOf(q)
	got, err := a.db.Count(ctx, q)
	if err != nil {
		return AssertionResult{}, err
	}
	if got != want {
		return mismatch(name, "expected %d rows, got %d", want, got), nil
	}
	return matched(name), nil
}

// ExpectUnchangedHash checks that the row-set hash of q still equals
// previous.
func (a *Assertions) ExpectUnchangedHash(ctx context.Context, q rowquery.Query, previous string) (AssertionResult, error) {
	name := "unchanged " + rowquery.TableOf(q)
	got, err := a.db.Hash(ctx, q)
	if err != nil {
		return AssertionResult{}, err
	}
	if got != previous {
		return mismatch(name, "row-set hash changed from %s to %s", previous, got), nil
	}
	return matched(name), nil
}

// ExpectRow checks that exactly one row of table matches where and that
// it holds every column of expect. Values compare by their text form, so
// an integer column matches a quoted fixture value.
func (a *Assertions) ExpectRow(ctx context.Context, table string, where, expect map[string]ir.IRValue) (AssertionResult, error) {
	name := "row " + table
	q := rowquery.Select{Table: table, Where: rowquery.WhereEquals(where), OrderBy: sortedKeys(where)}
	if len(q.OrderBy) == 0 {
		return AssertionResult{}, fmt.Errorf("%s: row lookup needs a where clause", name)
	}

	row, err := a.db.Row(ctx, q)
	var multi *sutdb.MultipleRowsError
	switch {
	case errors.Is(err, sutdb.ErrNoRows):
		return mismatch(name, "no row where %s", describeWhere(where)), nil
	case errors.As(err, &multi):
		return mismatch(name, "%d rows where %s, expected exactly one", multi.Count, describeWhere(where)), nil
	case err != nil:
		return AssertionResult{}, err
	}

	want := make(map[string]string, len(expect))
	got := make(map[string]string, len(expect))
	for col, v := range expect {
		want[col] = ir.Text(v)
		if actual, ok := row[col]; ok {
			got[col] = ir.Text(actual)
		} else {
			got[col] = "<missing>"
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		return mismatch(name, "%s", diff), nil
	}
	return matched(name), nil
}

// ExpectFields reads every field of expected back from the open form and
// compares it with the value the widget should show. existing holds the
// values of table fields before the submission, for row reconciliation.
func (a *Assertions) ExpectFields(ctx context.Context, layout form.Layout, expected, existing form.FieldSet) (AssertionResult, error) {
	const name = "fields"
	actual, err := layout.Read(ctx, a.driver, expected.Labels())
	if err != nil {
		return AssertionResult{}, err
	}

	want := make(map[string]any, len(expected))
	got := make(map[string]any, len(expected))
	for _, f := range expected {
		base, _ := existing.Get(f.Label)
		w, err := form.Expected(layout.Spec(f.Label), base, f.Value)
		if err != nil {
			return AssertionResult{}, fmt.Errorf("field %q: %w", f.Label, err)
		}
		g, _ := actual.Get(f.Label)
		if !form.Equal(w, g) {
			want[f.Label] = form.Plain(w)
			got[f.Label] = form.Plain(g)
		}
	}
	if len(want) > 0 {
		return mismatch(name, "%s", cmp.Diff(want, got)), nil
	}
	return matched(name), nil
}

func sortedKeys(m map[string]ir.IRValue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func describeWhere(where map[string]ir.IRValue) string {
	parts := make([]string, 0, len(where))
	for _, k := range sortedKeys(where) {
		parts = append(parts, fmt.Sprintf("%s = %q", k, ir.Text(where[k])))
	}
	return strings.Join(parts, " AND ")
}
