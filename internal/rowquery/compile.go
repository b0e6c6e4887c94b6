package rowquery

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/formharness/internal/ir"
)

// Dialect selects the placeholder style of the generated SQL.
type Dialect string

const (
	DialectSQLite     Dialect = "sqlite3"
	DialectMySQL      Dialect = "mysql"
	DialectPostgres   Dialect = "postgres"
	DialectClickHouse Dialect = "clickhouse"
)

// ParseDialect maps a database/sql driver name to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	case "mysql":
		return DialectMySQL, nil
	case "postgres", "postgresql", "pgsql":
		return DialectPostgres, nil
	case "clickhouse":
		return DialectClickHouse, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Compiler turns queries into parameterized SQL.
// Values are never interpolated; identifiers are validated first.
type Compiler struct {
	Dialect Dialect
}

// NewCompiler creates a Compiler for the given dialect.
func NewCompiler(d Dialect) *Compiler {
	return &Compiler{Dialect: d}
}

// Compile validates q and returns (sql, params).
func (c *Compiler) Compile(q Query) (string, []any, error) {
	if err := Validate(q); err != nil {
		return "", nil, fmt.Errorf("invalid query: %w", err)
	}

	b := &builder{dialect: c.Dialect}

	switch query := q.(type) {
	case Select:
		return b.compileSelect(query)
	case *Select:
		return b.compileSelect(*query)
	case Count:
		return b.compileCount(query)
	case *Count:
		return b.compileCount(*query)
	case Raw:
		return query.SQL, query.Args, nil
	case *Raw:
		return query.SQL, query.Args, nil
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

// builder numbers placeholders across one statement.
type builder struct {
	dialect Dialect
	n       int
	params  []any
}

func (b *builder) bind(v any) string {
	b.n++
	b.params = append(b.params, v)
	if b.dialect == DialectPostgres {
		return "$" + strconv.Itoa(b.n)
	}
	return "?"
}

func (b *builder) compileSelect(s Select) (string, []any, error) {
	cols := "*"
	if len(s.Columns) > 0 {
		cols = strings.Join(s.Columns, ", ")
	}

	where, err := b.whereClause(s.Where)
	if err != nil {
		return "", nil, err
	}

	order := make([]string, len(s.OrderBy))
	for i, k := range s.OrderBy {
		order[i] = k + " ASC"
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		cols, s.Table, where, strings.Join(order, ", "))
	return sql, b.params, nil
}

func (b *builder) compileCount(c Count) (string, []any, error) {
	where, err := b.whereClause(c.Where)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", c.Table, where), b.params, nil
}

func (b *builder) whereClause(p Predicate) (string, error) {
	if p == nil {
		return "", nil
	}
	sql, err := b.compilePredicate(p)
	if err != nil {
		return "", fmt.Errorf("compile filter: %w", err)
	}
	return " WHERE " + sql, nil
}

func (b *builder) compilePredicate(p Predicate) (string, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil
	case Equals:
		return b.compileEquals(pred)
	case *Equals:
		return b.compileEquals(*pred)
	case In:
		return b.compileIn(pred)
	case *In:
		return b.compileIn(*pred)
	case And:
		return b.compileAnd(pred)
	case *And:
		return b.compileAnd(*pred)
	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (b *builder) compileEquals(eq Equals) (string, error) {
	param, err := irValueToParam(eq.Value)
	if err != nil {
		return "", fmt.Errorf("%s: %w", eq.Column, err)
	}
	return fmt.Sprintf("%s = %s", eq.Column, b.bind(param)), nil
}

func (b *builder) compileIn(in In) (string, error) {
	if len(in.Values) == 0 {
		return "1 = 0", nil
	}
	marks := make([]string, len(in.Values))
	for i, v := range in.Values {
		param, err := irValueToParam(v)
		if err != nil {
			return "", fmt.Errorf("%s[%d]: %w", in.Column, i, err)
		}
		marks[i] = b.bind(param)
	}
	return fmt.Sprintf("%s IN (%s)", in.Column, strings.Join(marks, ", ")), nil
}

func (b *builder) compileAnd(and And) (string, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil
	}
	parts := make([]string, 0, len(and.Predicates))
	for _, pred := range and.Predicates {
		sql, err := b.compilePredicate(pred)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return strings.Join(parts, " AND "), nil
}

// irValueToParam converts an ir.IRValue to a driver argument.
// Arrays and objects cannot be bound.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRArray:
		return nil, fmt.Errorf("IRArray cannot be used as SQL parameter directly")
	case ir.IRObject:
		return nil, fmt.Errorf("IRObject cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
