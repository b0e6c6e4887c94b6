package form

import "strconv"

// Expected returns the value a widget should show after submitted was
// filled on top of existing. existing may be nil for a new record.
func Expected(spec FieldSpec, existing, submitted Value) (Value, error) {
	switch spec.Kind {
	case KindCheckbox:
		on, err := checkboxState(submitted)
		if err != nil {
			return nil, err
		}
		return Bool(on), nil
	case KindMultiselect:
		if t, ok := submitted.(Text); ok {
			if t == "" {
				return List{}, nil
			}
			return List{string(t)}, nil
		}
		return submitted, nil
	case KindMultifield, KindInterval:
		changes, ok := submitted.(Rows)
		if !ok {
			return nil, &ValueError{Kind: spec.Kind, Value: submitted}
		}
		base, _ := existing.(Rows)
		rows, err := Reconcile(base, changes)
		if err != nil {
			return nil, err
		}
		if spec.Kind == KindInterval {
			return normalizeIntervals(rows), nil
		}
		rows = projectColumns(rows, spec.Columns)
		if spec.SortBy != "" {
			rows = SortRows(rows, spec.SortBy)
		}
		return rows, nil
	default:
		return submitted, nil
	}
}

// Equal compares two values the way they appear on the page.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Text:
		bv, ok := b.(Text)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case Rows:
		bv, ok := b.(Rows)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !sameCells(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == nil && b == nil
	}
}

func sameCells(a, b Row) bool {
	if len(a.Cells) != len(b.Cells) {
		return false
	}
	for _, c := range a.Cells {
		if b.Get(c.Column) != c.Value {
			return false
		}
	}
	return true
}

func projectColumns(rows Rows, columns []string) Rows {
	if len(columns) == 0 {
		return rows
	}
	out := make(Rows, 0, len(rows))
	for _, r := range rows {
		p := Row{Index: NoIndex}
		for _, col := range columns {
			p.Cells = append(p.Cells, Cell{Column: col, Value: r.Get(col)})
		}
		if !p.Empty() {
			out = append(out, p)
		}
	}
	return out
}

func normalizeIntervals(rows Rows) Rows {
	out := make(Rows, 0, len(rows))
	for _, r := range rows {
		if r.Get(IntervalValue) == "" {
			continue
		}
		kind := r.Get(IntervalType)
		if kind == "" {
			kind = IntervalFlexible
		}
		n := Row{Index: NoIndex, Cells: []Cell{
			{Column: IntervalType, Value: kind},
			{Column: IntervalValue, Value: r.Get(IntervalValue)},
		}}
		if kind == IntervalFlexible {
			n.Cells = append(n.Cells, Cell{Column: IntervalPeriod, Value: r.Get(IntervalPeriod)})
		}
		out = append(out, n)
	}
	return out
}

// ParseBoolText converts spreadsheet cells like "true"/"FALSE" to Bool,
// leaving anything else as Text.
func ParseBoolText(s string) Value {
	switch s {
	case "true", "TRUE", "True", "false", "FALSE", "False":
		b, _ := strconv.ParseBool(s)
		return Bool(b)
	}
	return Text(s)
}
