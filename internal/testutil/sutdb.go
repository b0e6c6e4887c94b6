package testutil

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// SUTHostID is the seeded host that item scenarios write to.
const SUTHostID = 40001

// sutSchema is a small slice of the console's tables, enough to exercise
// row counts, row lookups and row-set hashes (including NULL and REAL
// columns).
const sutSchema = `
CREATE TABLE hosts (
	hostid      INTEGER PRIMARY KEY,
	host        TEXT    NOT NULL,
	name        TEXT    NOT NULL DEFAULT '',
	status      INTEGER NOT NULL DEFAULT 0,
	description TEXT    NOT NULL DEFAULT ''
);
CREATE TABLE items (
	itemid      INTEGER PRIMARY KEY,
	hostid      INTEGER NOT NULL REFERENCES hosts(hostid),
	name        TEXT    NOT NULL,
	key_        TEXT    NOT NULL,
	type        INTEGER NOT NULL DEFAULT 0,
	params      TEXT    NOT NULL DEFAULT '',
	delay       TEXT    NOT NULL DEFAULT '0',
	status      INTEGER NOT NULL DEFAULT 0,
	units       TEXT,
	history_pct REAL
);
CREATE TABLE hostmacro (
	hostmacroid INTEGER PRIMARY KEY,
	hostid      INTEGER NOT NULL REFERENCES hosts(hostid),
	macro       TEXT    NOT NULL,
	value       TEXT    NOT NULL DEFAULT '',
	description TEXT    NOT NULL DEFAULT ''
);
INSERT INTO hosts (hostid, host, name) VALUES (40001, 'Simple form test host', 'Simple form test host');
INSERT INTO items (itemid, hostid, name, key_, type, params, units, history_pct)
	VALUES (1, 40001, 'Existing calc', 'existing.calc', 15, 'last(/host/trap)', NULL, 12.5);
`

// NewSUTDB returns an in-memory SQLite database seeded with a minimal
// console schema. It is closed when the test ends.
func NewSUTDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(sutSchema)
	require.NoError(t, err)
	return db
}
