// Package sutdb reads the database of the system under test.
//
// The harness never writes to this database during a case; it only counts
// rows, fetches rows and computes row-set hashes so assertions can tell
// whether a form submission changed anything.
package sutdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/roach88/formharness/internal/ir"
	"github.com/roach88/formharness/internal/rowquery"
)

// ErrNoRows is returned by Row when nothing matches.
var ErrNoRows = errors.New("no rows matched")

// DatabaseError wraps a failure of the query layer.
type DatabaseError struct {
	Op    string
	Query string
	Err   error
}

func (e *DatabaseError) Error() string {
	if e.Query == "" {
		return fmt.Sprintf("database %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("database %s %q: %v", e.Op, e.Query, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// MultipleRowsError is returned by Row when more than one row matches.
type MultipleRowsError struct {
	Count int
}

func (e *MultipleRowsError) Error() string {
	return fmt.Sprintf("expected exactly one row, got %d", e.Count)
}

// DB is a read handle on the database under test.
type DB struct {
	db       *sql.DB
	compiler *rowquery.Compiler
	logger   *zap.Logger
	owned    bool
}

// Open connects with a database/sql driver name and DSN.
// Supported drivers: sqlite3, mysql, postgres, clickhouse.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (*DB, error) {
	dialect, err := rowquery.ParseDialect(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, &DatabaseError{Op: "open", Err: err}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &DatabaseError{Op: "ping", Err: err}
	}

	// One connection: assertions read a single consistent view.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := New(db, dialect, logger)
	d.owned = true
	return d, nil
}

// New wraps an existing connection. The caller keeps ownership of db.
func New(db *sql.DB, dialect rowquery.Dialect, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{
		db:       db,
		compiler: rowquery.NewCompiler(dialect),
		logger:   logger,
	}
}

// Close closes the connection if it was opened by Open.
func (d *DB) Close() error {
	if d.db == nil || !d.owned {
		return nil
	}
	return d.db.Close()
}

// Dialect returns the placeholder dialect in use.
func (d *DB) Dialect() rowquery.Dialect {
	return d.compiler.Dialect
}

// Exec runs a statement. Used for fixture preparation, never during a case.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &DatabaseError{Op: "exec", Query: query, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &DatabaseError{Op: "rows affected", Query: query, Err: err}
	}
	return n, nil
}

// Count returns the number of rows a Count query matches.
// Select and Raw queries are counted by reading their rows.
func (d *DB) Count(ctx context.Context, q rowquery.Query) (int, error) {
	switch q.(type) {
	case rowquery.Count, *rowquery.Count:
	default:
		rows, err := d.Rows(ctx, q)
		if err != nil {
			return 0, err
		}
		return len(rows), nil
	}

	query, args, err := d.compiler.Compile(q)
	if err != nil {
		return 0, &DatabaseError{Op: "count", Err: err}
	}

	var n int
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, &DatabaseError{Op: "count", Query: query, Err: err}
	}
	d.logger.Debug("count", zap.String("sql", query), zap.Int("count", n))
	return n, nil
}

// Rows runs q and returns every row as a canonical object.
// NULL columns are omitted from the object.
func (d *DB) Rows(ctx context.Context, q rowquery.Query) ([]ir.IRObject, error) {
	query, args, err := d.compiler.Compile(q)
	if err != nil {
		return nil, &DatabaseError{Op: "query", Err: err}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &DatabaseError{Op: "query", Query: query, Err: err}
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, &DatabaseError{Op: "scan", Query: query, Err: err}
	}
	d.logger.Debug("rows", zap.String("sql", query), zap.Int("count", len(out)))
	return out, nil
}

// Row returns the single row matched by q.
func (d *DB) Row(ctx context.Context, q rowquery.Query) (ir.IRObject, error) {
	rows, err := d.Rows(ctx, q)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, ErrNoRows
	case 1:
		return rows[0], nil
	default:
		return nil, &MultipleRowsError{Count: len(rows)}
	}
}

// Hash returns the row-set hash of q's result.
func (d *DB) Hash(ctx context.Context, q rowquery.Query) (string, error) {
	rows, err := d.Rows(ctx, q)
	if err != nil {
		return "", err
	}
	h, err := ir.RowSetHash(rows)
	if err != nil {
		return "", &DatabaseError{Op: "hash", Err: err}
	}
	d.logger.Debug("hash", zap.String("table", rowquery.TableOf(q)), zap.String("hash", h))
	return h, nil
}

func scanRows(rows *sql.Rows) ([]ir.IRObject, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []ir.IRObject{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		obj := make(ir.IRObject, len(cols))
		for i, col := range cols {
			if v, ok := ir.FromColumn(values[i]); ok {
				obj[col] = v
			}
		}
		out = append(out, obj)
	}
	return out, rows.Err()
}
