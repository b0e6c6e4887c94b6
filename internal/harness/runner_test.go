package harness_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/formharness/internal/browser"
	"github.com/roach88/formharness/internal/fixture"
	"github.com/roach88/formharness/internal/harness"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func loadScenario(t *testing.T, file, keyPrefix string) *fixture.Provider {
	t.Helper()
	s, err := fixture.LoadFile(filepath.Join("testdata", "scenarios", file))
	require.NoError(t, err)
	p, err := fixture.NewProvider(fixture.NewSequenceKeys(keyPrefix), s)
	require.NoError(t, err)
	return p
}

func parseScenario(t *testing.T, body, keyPrefix string) *fixture.Provider {
	t.Helper()
	s, err := fixture.Parse([]byte(body), fixture.FormatYAML, "inline.yaml")
	require.NoError(t, err)
	p, err := fixture.NewProvider(fixture.NewSequenceKeys(keyPrefix), s)
	require.NoError(t, err)
	return p
}

func TestRunner_ItemsLifecycle(t *testing.T) {
	e := newItemEnv(t)
	p := loadScenario(t, "items_calculated.yaml", "k")

	res, err := harness.NewRunner(p, e.session).Run(context.Background(), "items_calculated")
	require.NoError(t, err)

	for _, c := range res.Cases {
		assert.True(t, c.Pass, "case %d %s: %v", c.Index, c.Name, c.Errors)
	}
	assert.True(t, res.Pass())
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 5, res.Passed)
	assert.Zero(t, res.Failed)

	// The formula is stored verbatim.
	assert.Equal(t, 1, e.count(t, `SELECT COUNT(*) FROM items WHERE key_ = 'calc.k0001' AND params = 'avg(/host/trap,99h)'`))
	// The rejected formula created nothing.
	assert.Zero(t, e.count(t, `SELECT COUNT(*) FROM items WHERE key_ = 'calc.bad.k0002'`))
	// The seeded item was renamed, then deleted.
	assert.Zero(t, e.count(t, `SELECT COUNT(*) FROM items WHERE key_ = 'existing.calc'`))

	harness.AssertGolden(t, "items_calculated", res)
}

func TestRunner_HostsBothErrorsPresent(t *testing.T) {
	e := newHostEnv(t)
	p := loadScenario(t, "hosts_create.yaml", "h")

	res, err := harness.NewRunner(p, e.session).Run(context.Background(), "hosts_create")
	require.NoError(t, err)
	require.Len(t, res.Cases, 2)
	assert.True(t, res.Cases[0].Pass, "%v", res.Cases[0].Errors)
	assert.True(t, res.Cases[1].Pass, "%v", res.Cases[1].Errors)

	assert.Equal(t, 2, e.count(t, `SELECT COUNT(*) FROM hostmacro m JOIN hosts h ON h.hostid = m.hostid WHERE h.host = 'host-h0002'`))
	assert.Contains(t, e.driver.Calls(), "set name:macros[1][macro]={$A}")

	harness.AssertGolden(t, "hosts_create", res)
}

const unexpectedScenario = `
name: items
page:
  url: items.php
  open: Create item
  target_table: items
  unique_key: key_
  unique_field: Key
  link_field: Name
  titles:
    create: {success: Item added, failure: Cannot add item}
hash_queries: [{table: items, order_by: itemid}]
cases:
  - name: accepted although expected to fail
    expected: fail
    fields:
      Name: Calc {unique}
      Key: calc.{unique}
      Formula: sum(/host/trap,1h)
    error: Some error.
  - name: rejected although expected to pass
    fields:
      Name: Calc {unique}
      Key: calc.{unique}
      Formula: max()
  - name: good one
    fields:
      Name: Good {unique}
      Key: good.{unique}
      Formula: min(/host/trap,1h)
`

func TestRunner_AssertionFailuresDoNotAbort(t *testing.T) {
	e := newItemEnv(t)
	e.session.Config.Screenshots = true
	p := parseScenario(t, unexpectedScenario, "u")

	res, err := harness.NewRunner(p, e.session).Run(context.Background(), "items")
	require.NoError(t, err)
	require.Len(t, res.Cases, 3)
	assert.False(t, res.Pass())
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 1, res.Passed)

	first := res.Cases[0]
	assert.False(t, first.Pass)
	var names []string
	for _, a := range first.Assertions {
		if !a.Matched {
			names = append(names, a.Name)
		}
	}
	assert.Equal(t, []string{"message", "unchanged items", "row_count items"}, names)
	require.NotEmpty(t, first.Errors)
	assert.Contains(t, first.Errors[0], "kind: expected bad, got good")

	second := res.Cases[1]
	assert.False(t, second.Pass)
	assert.Contains(t, second.Errors[0], `Invalid parameter "/1/params": invalid number of parameters in function "max".`)

	assert.True(t, res.Cases[2].Pass)
	assert.Contains(t, e.driver.Calls(), "screenshot items_case00")
	assert.Contains(t, e.driver.Calls(), "screenshot items_case01")
	assert.NotContains(t, e.driver.Calls(), "screenshot items_case02")
}

func TestRunner_InfrastructureErrorAborts(t *testing.T) {
	e := newItemEnv(t)
	e.driver.Missing["button:Create item"] = true
	p := parseScenario(t, unexpectedScenario, "a")

	res, err := harness.NewRunner(p, e.session).Run(context.Background(), "items")
	require.Error(t, err)
	assert.ErrorIs(t, err, harness.ErrAborted)
	var notFound *browser.ElementNotFoundError
	assert.ErrorAs(t, err, &notFound)

	require.NotNil(t, res)
	assert.True(t, res.Aborted)
	assert.Len(t, res.Cases, 1)
	assert.Equal(t, 3, res.Total)
	assert.False(t, res.Pass())
	last := res.Cases[0].Trace[len(res.Cases[0].Trace)-1]
	assert.Equal(t, harness.EventError, last.Type)
}

func TestRunner_KeepGoing(t *testing.T) {
	e := newItemEnv(t)
	e.driver.Missing["button:Create item"] = true
	e.session.Config.KeepGoing = true
	p := parseScenario(t, unexpectedScenario, "g")

	res, err := harness.NewRunner(p, e.session).Run(context.Background(), "items")
	require.NoError(t, err)
	assert.False(t, res.Aborted)
	assert.Len(t, res.Cases, 3)
	assert.Equal(t, 3, res.Failed)
}

func TestRunner_LoginFailureAborts(t *testing.T) {
	e := newItemEnv(t)
	e.driver.Password = "secret"
	p := parseScenario(t, unexpectedScenario, "l")

	res, err := harness.NewRunner(p, e.session).Run(context.Background(), "items")
	var loginErr *browser.LoginError
	require.ErrorAs(t, err, &loginErr)
	assert.Equal(t, "Admin", loginErr.User)
	assert.True(t, res.Aborted)
	assert.Empty(t, res.Cases)
}

func TestRunner_CancelledContext(t *testing.T) {
	e := newItemEnv(t)
	p := parseScenario(t, unexpectedScenario, "c")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := harness.NewRunner(p, e.session).Run(ctx, "items")
	assert.ErrorIs(t, err, harness.ErrAborted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Cases)
}

func TestRunner_ConfigurationError(t *testing.T) {
	e := newItemEnv(t)
	p := parseScenario(t, `
name: broken
page: {url: items.php, target_table: items, unique_key: key_, unique_field: Key}
hash_queries: [{table: items, order_by: itemid}]
cases:
  - fields: {Formula: x}
`, "b")

	res, err := harness.NewRunner(p, e.session).Run(context.Background(), "broken")
	assert.Nil(t, res)
	var cfg *fixture.ConfigurationError
	require.ErrorAs(t, err, &cfg)
	assert.Equal(t, "name", cfg.Key)
	assert.False(t, errors.Is(err, harness.ErrAborted))

	_, err = harness.NewRunner(p, e.session).Run(context.Background(), "missing")
	var nf *fixture.ScenarioNotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestRunner_CancelLeavesNoRow(t *testing.T) {
	e := newItemEnv(t)
	p := parseScenario(t, `
name: cancel
page:
  url: items.php
  open: Create item
  target_table: items
  unique_key: key_
  unique_field: Key
hash_queries: [{table: items, order_by: itemid}, {table: hosts, order_by: hostid}]
cases:
  - name: cancel a new item
    action: cancel
    fields:
      Name: Cancelled
      Key: cancelled.{unique}
      Formula: avg(/host/trap,1h)
`, "x")

	res, err := harness.NewRunner(p, e.session).Run(context.Background(), "cancel")
	require.NoError(t, err)
	require.True(t, res.Pass(), "%v", res.Cases[0].Errors)
	assert.Contains(t, e.driver.Calls(), "click button:Cancel")
	assert.NotContains(t, e.driver.Calls(), "submit Add")
	assert.Len(t, res.Cases[0].Assertions, 3)
}

func TestRunner_CloneAndUpdateChain(t *testing.T) {
	e := newItemEnv(t)
	p := parseScenario(t, `
name: chain
page:
  url: items.php
  open: Create item
  target_table: items
  unique_key: key_
  unique_field: Key
  link_field: Name
  fields:
    Type: dropdown
    Enabled: checkbox
hash_queries: [{table: items, order_by: itemid}]
cases:
  - name: clone existing
    action: clone
    target: Existing calc
    fields:
      Name: Clone {unique}
      Key: clone.{unique}
    db: {params: last(/host/trap), type: 15}
  - name: first rename
    action: update
    target: Existing calc
    fields: {Name: Step one}
  - name: second rename through the old name
    action: update
    target: Existing calc
    fields: {Name: Step two}
  - name: rejected update
    action: update
    target: Existing calc
    expected: fail
    fields: {Formula: count()}
    error: 'Invalid parameter "/1/params": invalid number of parameters in function "count".'
`, "n")

	res, err := harness.NewRunner(p, e.session).Run(context.Background(), "chain")
	require.NoError(t, err)
	for _, c := range res.Cases {
		assert.True(t, c.Pass, "case %d %s: %v", c.Index, c.Name, c.Errors)
	}

	calls := e.driver.Calls()
	assert.Contains(t, calls, "click button:Clone")
	assert.Contains(t, calls, "click link:Step one")
	assert.Contains(t, calls, "click link:Step two")
	assert.Equal(t, 1, e.count(t, `SELECT COUNT(*) FROM items WHERE name = 'Step two' AND params = 'last(/host/trap)'`))
	assert.Equal(t, 1, e.count(t, `SELECT COUNT(*) FROM items WHERE key_ = 'clone.n0001'`))
}

func TestRunner_CloneKeepsSourceTableRows(t *testing.T) {
	e := newHostEnv(t)
	_, err := e.db.Exec(`INSERT INTO hosts (hostid, host, name) VALUES (50001, 'source-host', 'source-host')`)
	require.NoError(t, err)
	_, err = e.db.Exec(`INSERT INTO hostmacro (hostid, macro, value, description) VALUES (50001, '{$A}', '1', '')`)
	require.NoError(t, err)

	p := parseScenario(t, `
name: hosts_clone
page:
  url: zabbix.php?action=host.list
  open: Create host
  dialog: true
  target_table: hosts
  unique_key: host
  unique_field: Host name
  titles:
    create: {success: Host added, failure: Cannot add host}
  fields:
    Host groups: multiselect
    Macros:
      kind: multifield
      table: tbl_macros
      name: macros
      columns: [macro, value, description]
      sort_by: macro
hash_queries:
  - {table: hosts, order_by: hostid}
  - {table: hostmacro, order_by: hostmacroid}
cases:
  - name: clone adds a macro
    action: clone
    target: source-host
    fields:
      Host name: clone-{unique}
      Host groups: [Zabbix servers]
      Macros:
        - {macro: "{$B}", value: "2"}
`, "c")

	res, err := harness.NewRunner(p, e.session).Run(context.Background(), "hosts_clone")
	require.NoError(t, err)
	require.Len(t, res.Cases, 1)
	assert.True(t, res.Cases[0].Pass, "%v", res.Cases[0].Errors)

	assert.Contains(t, e.driver.Calls(), "click button:Clone")
	assert.Equal(t, 2, e.count(t,
		`SELECT COUNT(*) FROM hostmacro m JOIN hosts h ON h.hostid = m.hostid WHERE h.host = 'clone-c0001'`))
	assert.Equal(t, 1, e.count(t, `SELECT COUNT(*) FROM hostmacro WHERE hostid = 50001`))
}
