package rowquery

import (
	"sort"

	"github.com/roach88/formharness/internal/ir"
)

// Query is a sealed interface for database reads.
type Query interface {
	queryNode()
}

// Predicate is a sealed interface for WHERE conditions.
type Predicate interface {
	predicateNode()
}

// Select reads whole rows in a deterministic order.
// Columns empty means SELECT *.
type Select struct {
	Table   string
	Columns []string
	Where   Predicate
	OrderBy []string
}

func (Select) queryNode() {}

// Count counts the rows matching Where.
type Count struct {
	Table string
	Where Predicate
}

func (Count) queryNode() {}

// Raw is SQL written by a fixture author. It is passed through unchanged;
// placeholders must already match the target dialect.
type Raw struct {
	SQL  string
	Args []any
}

func (Raw) queryNode() {}

// Equals matches column = value.
type Equals struct {
	Column string
	Value  ir.IRValue
}

func (Equals) predicateNode() {}

// In matches column IN (values...). An empty list matches nothing.
type In struct {
	Column string
	Values []ir.IRValue
}

func (In) predicateNode() {}

// And is a conjunction. Empty means always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// WhereEquals builds an And of Equals from a column → value map.
// Columns are sorted so that the generated SQL is stable.
func WhereEquals(where map[string]ir.IRValue) Predicate {
	if len(where) == 0 {
		return nil
	}

	cols := make([]string, 0, len(where))
	for c := range where {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	preds := make([]Predicate, 0, len(cols))
	for _, c := range cols {
		preds = append(preds, Equals{Column: c, Value: where[c]})
	}
	if len(preds) == 1 {
		return preds[0]
	}
	return And{Predicates: preds}
}

// TableOf returns the table a query reads, or "" for Raw.
func TableOf(q Query) string {
	switch query := q.(type) {
	case Select:
		return query.Table
	case *Select:
		return query.Table
	case Count:
		return query.Table
	case *Count:
		return query.Table
	default:
		return ""
	}
}
