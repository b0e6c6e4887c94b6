package rowquery

import (
	"fmt"
	"regexp"
	"strings"
)

// validIdentifier matches table and column names that are safe to
// interpolate. Identifiers cannot be bound as parameters.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidationError reports a malformed query.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks identifiers and determinism rules.
func Validate(q Query) error {
	switch query := q.(type) {
	case nil:
		return &ValidationError{Field: "query", Message: "must not be nil"}
	case Select:
		return validateSelect(query)
	case *Select:
		return validateSelect(*query)
	case Count:
		return validateCount(query)
	case *Count:
		return validateCount(*query)
	case Raw:
		return validateRaw(query)
	case *Raw:
		return validateRaw(*query)
	default:
		return &ValidationError{Field: "query", Message: fmt.Sprintf("unsupported type %T", q)}
	}
}

func validateSelect(s Select) error {
	if err := validateIdent("table", s.Table); err != nil {
		return err
	}
	for i, c := range s.Columns {
		if err := validateIdent(fmt.Sprintf("columns[%d]", i), c); err != nil {
			return err
		}
	}
	if len(s.OrderBy) == 0 {
		return &ValidationError{Field: "order_by", Message: "is required: row hashes depend on a stable order"}
	}
	for i, c := range s.OrderBy {
		if err := validateIdent(fmt.Sprintf("order_by[%d]", i), c); err != nil {
			return err
		}
	}
	return validatePredicate("where", s.Where)
}

func validateCount(c Count) error {
	if err := validateIdent("table", c.Table); err != nil {
		return err
	}
	return validatePredicate("where", c.Where)
}

func validateRaw(r Raw) error {
	sql := strings.TrimSpace(r.SQL)
	if sql == "" {
		return &ValidationError{Field: "sql", Message: "must not be empty"}
	}
	if !strings.EqualFold(firstWord(sql), "select") {
		return &ValidationError{Field: "sql", Message: "only SELECT statements are allowed"}
	}
	return nil
}

func validatePredicate(field string, p Predicate) error {
	switch pred := p.(type) {
	case nil:
		return nil
	case Equals:
		if err := validateIdent(field, pred.Column); err != nil {
			return err
		}
		if pred.Value == nil {
			return &ValidationError{Field: field + "." + pred.Column, Message: "value is required"}
		}
	case *Equals:
		return validatePredicate(field, *pred)
	case In:
		return validateIdent(field, pred.Column)
	case *In:
		return validatePredicate(field, *pred)
	case And:
		for i, sub := range pred.Predicates {
			if err := validatePredicate(fmt.Sprintf("%s[%d]", field, i), sub); err != nil {
				return err
			}
		}
	case *And:
		return validatePredicate(field, *pred)
	default:
		return &ValidationError{Field: field, Message: fmt.Sprintf("unsupported predicate %T", p)}
	}
	return nil
}

func validateIdent(field, name string) error {
	if !validIdentifier.MatchString(name) {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid identifier %q: must match %s", name, validIdentifier.String()),
		}
	}
	return nil
}

func firstWord(s string) string {
	if i := strings.IndexAny(s, " \t\n\r("); i >= 0 {
		return s[:i]
	}
	return s
}
