package harness_test

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/formharness/internal/browser"
	"github.com/roach88/formharness/internal/harness"
	"github.com/roach88/formharness/internal/rowquery"
	"github.com/roach88/formharness/internal/sutdb"
	"github.com/roach88/formharness/internal/testutil"
)

// The fake apps below play the console for the runner: they validate a
// submitted form the way the real pages do for the cases under test and
// write accepted records to the in-memory SUT database.

var (
	itemTypes   = map[int]string{0: "Zabbix agent", 15: "Calculated"}
	itemTypeIDs = map[string]int{"Zabbix agent": 0, "Calculated": 15}
	emptyCall   = regexp.MustCompile(`^(\w+)\(\)$`)
)

type itemApp struct {
	t       *testing.T
	db      *sql.DB
	current int64
}

func (a *itemApp) install(d *testutil.FakeDriver) {
	d.OnClick = a.click
	d.OnSubmit = a.submit
}

func (a *itemApp) click(d *testutil.FakeDriver, locator string) error {
	switch {
	case locator == "button:Create item":
		a.current = 0
	case strings.HasPrefix(locator, "link:"):
		name := strings.TrimPrefix(locator, "link:")
		var (
			id          int64
			key, params string
			typ, status int
		)
		err := a.db.QueryRow(`SELECT itemid, key_, params, type, status FROM items WHERE name = ?`, name).
			Scan(&id, &key, &params, &typ, &status)
		if errors.Is(err, sql.ErrNoRows) {
			return &browser.ElementNotFoundError{Locator: locator, Op: "click"}
		}
		require.NoError(a.t, err)

		a.current = id
		d.Preset("Name", name)
		d.Preset("Key", key)
		d.Preset("Formula", params)
		d.Preset("Type", itemTypes[typ])
		d.Preset("Enabled", strconv.FormatBool(status == 0))
	}
	return nil
}

func (a *itemApp) validate(d *testutil.FakeDriver) []string {
	var lines []string
	if d.Value("Name") == "" {
		lines = append(lines, `Incorrect value for field "name": cannot be empty.`)
	}
	if m := emptyCall.FindStringSubmatch(d.Value("Formula")); m != nil {
		lines = append(lines, fmt.Sprintf(`Invalid parameter "/1/params": invalid number of parameters in function %q.`, m[1]))
	}
	return lines
}

func itemStatus(enabled string) int {
	if enabled == "false" {
		return 1
	}
	return 0
}

func (a *itemApp) submit(d *testutil.FakeDriver, button string) browser.Message {
	switch button {
	case "Add":
		if lines := a.validate(d); len(lines) > 0 {
			return browser.Message{Kind: browser.MessageBad, Title: "Cannot add item", Lines: lines}
		}
		_, err := a.db.Exec(`INSERT INTO items (hostid, name, key_, type, params, status) VALUES (?, ?, ?, ?, ?, ?)`,
			testutil.SUTHostID, d.Value("Name"), d.Value("Key"), itemTypeIDs[d.Value("Type")],
			d.Value("Formula"), itemStatus(d.Value("Enabled")))
		require.NoError(a.t, err)
		return browser.Message{Kind: browser.MessageGood, Title: "Item added"}
	case "Update":
		if lines := a.validate(d); len(lines) > 0 {
			return browser.Message{Kind: browser.MessageBad, Title: "Cannot update item", Lines: lines}
		}
		_, err := a.db.Exec(`UPDATE items SET name = ?, key_ = ?, type = ?, params = ?, status = ? WHERE itemid = ?`,
			d.Value("Name"), d.Value("Key"), itemTypeIDs[d.Value("Type")],
			d.Value("Formula"), itemStatus(d.Value("Enabled")), a.current)
		require.NoError(a.t, err)
		return browser.Message{Kind: browser.MessageGood, Title: "Item updated"}
	case "Delete":
		_, err := a.db.Exec(`DELETE FROM items WHERE itemid = ?`, a.current)
		require.NoError(a.t, err)
		return browser.Message{Kind: browser.MessageGood, Title: "Item deleted"}
	}
	return browser.Message{Kind: browser.MessageBad, Title: "Unknown button " + button}
}

type hostApp struct {
	t      *testing.T
	db     *sql.DB
	groups map[string][]string
}

func (a *hostApp) install(d *testutil.FakeDriver) {
	a.groups = map[string][]string{}
	d.OnClick = a.click
	d.OnSubmit = a.submit
}

func (a *hostApp) click(d *testutil.FakeDriver, locator string) error {
	if !strings.HasPrefix(locator, "link:") {
		return nil
	}
	host := strings.TrimPrefix(locator, "link:")
	var id int64
	err := a.db.QueryRow(`SELECT hostid FROM hosts WHERE host = ?`, host).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return &browser.ElementNotFoundError{Locator: locator, Op: "click"}
	}
	require.NoError(a.t, err)

	d.Preset("Host name", host)
	d.PresetMulti("Host groups", a.groups[host])

	rows, err := a.db.Query(`SELECT macro, value, description FROM hostmacro WHERE hostid = ? ORDER BY macro`, id)
	require.NoError(a.t, err)
	defer rows.Close()
	n := 0
	for rows.Next() {
		var macro, value, description string
		require.NoError(a.t, rows.Scan(&macro, &value, &description))
		d.Preset(fmt.Sprintf("name:macros[%d][macro]", n), macro)
		d.Preset(fmt.Sprintf("name:macros[%d][value]", n), value)
		d.Preset(fmt.Sprintf("name:macros[%d][description]", n), description)
		n++
	}
	require.NoError(a.t, rows.Err())
	d.PresetRows("tbl_macros", n)
	return nil
}

func (a *hostApp) submit(d *testutil.FakeDriver, button string) browser.Message {
	// The console reports the host name before the groups.
	var lines []string
	host := d.Value("Host name")
	if host == "" {
		lines = append(lines, `Incorrect value for field "host": cannot be empty.`)
	}
	groups := d.Multi("Host groups")
	if len(groups) == 0 {
		lines = append(lines, `Field "groups" is mandatory.`)
	}
	if len(lines) > 0 {
		return browser.Message{Kind: browser.MessageBad, Title: "Cannot add host", Lines: lines}
	}

	res, err := a.db.Exec(`INSERT INTO hosts (host, name) VALUES (?, ?)`, host, host)
	require.NoError(a.t, err)
	id, err := res.LastInsertId()
	require.NoError(a.t, err)
	a.groups[host] = append([]string(nil), groups...)

	for i := 0; ; i++ {
		macro := d.Value(fmt.Sprintf("name:macros[%d][macro]", i))
		if macro == "" {
			break
		}
		_, err := a.db.Exec(`INSERT INTO hostmacro (hostid, macro, value, description) VALUES (?, ?, ?, ?)`,
			id, macro, d.Value(fmt.Sprintf("name:macros[%d][value]", i)),
			d.Value(fmt.Sprintf("name:macros[%d][description]", i)))
		require.NoError(a.t, err)
	}
	return browser.Message{Kind: browser.MessageGood, Title: "Host added"}
}

// env is one session against a fresh SUT database.
type env struct {
	db      *sql.DB
	driver  *testutil.FakeDriver
	session *harness.Session
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewSUTDB(t)
	d := testutil.NewFakeDriver()
	return &env{
		db:     db,
		driver: d,
		session: &harness.Session{
			Driver: d,
			DB:     sutdb.New(db, rowquery.DialectSQLite, zaptest.NewLogger(t)),
			Config: harness.Config{User: "Admin", Password: "zabbix"},
			Logger: zaptest.NewLogger(t),
			Clock:  harness.NewClock(),
		},
	}
}

func newItemEnv(t *testing.T) *env {
	e := newEnv(t)
	(&itemApp{t: t, db: e.db}).install(e.driver)
	return e
}

func newHostEnv(t *testing.T) *env {
	e := newEnv(t)
	(&hostApp{t: t, db: e.db}).install(e.driver)
	return e
}

func (e *env) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.QueryRow(query, args...).Scan(&n))
	return n
}
