// Package rowquery describes the database reads the harness performs and
// compiles them to parameterized SQL.
//
// Assertions never build SQL by string concatenation of fixture values.
// A fixture names a table, a filter and an order key; rowquery validates the
// identifiers and produces dialect-specific SQL with bound parameters.
//
// # Determinism
//
// Every Select carries an ORDER BY. Row-set hashes are only comparable when
// both snapshots read the rows in the same order, so a Select without an
// order key is rejected by Validate.
//
// # Query Types
//
//   - Select: SELECT <columns> FROM <table> [WHERE ...] ORDER BY <keys>
//   - Count:  SELECT COUNT(*) FROM <table> [WHERE ...]
//   - Raw:    trusted SQL from a fixture, passed through with its args
//
// # Predicates
//
//   - Equals: column = ?
//   - In:     column IN (?, ?, ...)
//   - And:    conjunction (empty And is always true)
package rowquery
