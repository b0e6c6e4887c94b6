package form

import (
	"context"
	"fmt"
	"sort"
)

// CellLocator returns the locator of a table cell input.
func CellLocator(spec FieldSpec, row int, column string) string {
	return fmt.Sprintf("name:%s[%d][%s]", spec.Name, row, column)
}

// AddLocator returns the locator of a table's Add button.
func AddLocator(spec FieldSpec) string {
	return fmt.Sprintf("css:#%s .element-table-add", spec.Table)
}

// RemoveLocator returns the locator of the Remove button on a row.
func RemoveLocator(spec FieldSpec, row int) string {
	return fmt.Sprintf(`xpath:(//*[@id=%q]//button[contains(@class,"element-table-remove")])[%d]`, spec.Table, row+1)
}

// tableEditor applies row changes to a live table and tracks its size.
type tableEditor struct {
	w     Widgets
	spec  FieldSpec
	count int
	next  int
	set   func(ctx context.Context, idx int, r Row) error
}

func newTableEditor(ctx context.Context, w Widgets, spec FieldSpec, firstColumn string) (*tableEditor, error) {
	count, err := w.CountRows(ctx, spec.Table)
	if err != nil {
		return nil, err
	}
	e := &tableEditor{w: w, spec: spec, count: count, next: count}
	if spec.EmptyRow && count == 1 {
		first, err := w.ReadField(ctx, CellLocator(spec, 0, firstColumn))
		if err != nil {
			return nil, err
		}
		if first == "" {
			e.next = 0
		}
	}
	return e, nil
}

func (e *tableEditor) apply(ctx context.Context, rows Rows) error {
	for i, r := range rows {
		switch r.Action {
		case "", RowAdd:
			idx := e.next
			if r.Index != NoIndex {
				idx = r.Index
			}
			for idx >= e.count {
				if err := e.w.Click(ctx, AddLocator(e.spec)); err != nil {
					return fmt.Errorf("row %d: add: %w", i, err)
				}
				e.count++
			}
			if err := e.set(ctx, idx, r); err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			if idx+1 > e.next {
				e.next = idx + 1
			}
		case RowUpdate:
			if r.Index >= e.count {
				return fmt.Errorf("row %d: update index %d out of range (%d rows)", i, r.Index, e.count)
			}
			if err := e.set(ctx, r.Index, r); err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
		case RowRemove:
			if r.Index >= e.count {
				return fmt.Errorf("row %d: remove index %d out of range (%d rows)", i, r.Index, e.count)
			}
			if err := e.w.Click(ctx, RemoveLocator(e.spec, r.Index)); err != nil {
				return fmt.Errorf("row %d: remove: %w", i, err)
			}
			e.count--
			if e.next > r.Index {
				e.next--
			}
		}
	}
	return nil
}

type multifieldVariant struct{}

func (multifieldVariant) Kind() Kind { return KindMultifield }

func (multifieldVariant) Accepts(v Value) error {
	if _, ok := v.(Rows); !ok {
		return &ValueError{Kind: KindMultifield, Value: v}
	}
	return nil
}

func (m multifieldVariant) Fill(ctx context.Context, w Widgets, f Field, spec FieldSpec) error {
	if err := m.Accepts(f.Value); err != nil {
		return err
	}
	if err := spec.Validate(f.Label); err != nil {
		return err
	}

	e, err := newTableEditor(ctx, w, spec, spec.Columns[0])
	if err != nil {
		return err
	}
	e.set = func(ctx context.Context, idx int, r Row) error {
		for _, c := range r.Cells {
			loc := CellLocator(spec, idx, c.Column)
			var err error
			if spec.isDropdown(c.Column) {
				err = w.SetSelect(ctx, loc, c.Value)
			} else {
				err = w.SetText(ctx, loc, c.Value)
			}
			if err != nil {
				return fmt.Errorf("column %q: %w", c.Column, err)
			}
		}
		return nil
	}
	return e.apply(ctx, f.Value.(Rows))
}

func (multifieldVariant) Read(ctx context.Context, w Widgets, label string, spec FieldSpec) (Value, error) {
	if err := spec.Validate(label); err != nil {
		return nil, err
	}
	count, err := w.CountRows(ctx, spec.Table)
	if err != nil {
		return nil, err
	}

	rows := Rows{}
	for i := 0; i < count; i++ {
		r := Row{Index: NoIndex}
		for _, col := range spec.Columns {
			v, err := w.ReadField(ctx, CellLocator(spec, i, col))
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, col, err)
			}
			r.Cells = append(r.Cells, Cell{Column: col, Value: v})
		}
		if !r.Empty() {
			rows = append(rows, r)
		}
	}
	if spec.SortBy != "" {
		rows = SortRows(rows, spec.SortBy)
	}
	return rows, nil
}

// Interval row columns.
const (
	IntervalType       = "type"
	IntervalValue      = "interval"
	IntervalPeriod     = "period"
	IntervalFlexible   = "Flexible"
	IntervalScheduling = "Scheduling"
)

type intervalVariant struct{}

func (intervalVariant) Kind() Kind { return KindInterval }

func (intervalVariant) Accepts(v Value) error {
	rows, ok := v.(Rows)
	if !ok {
		return &ValueError{Kind: KindInterval, Value: v}
	}
	for i, r := range rows {
		if r.Action == RowRemove {
			continue
		}
		switch t := r.Get(IntervalType); t {
		case "", IntervalFlexible, IntervalScheduling:
		default:
			return fmt.Errorf("row %d: interval type must be %s or %s, got %q", i, IntervalFlexible, IntervalScheduling, t)
		}
	}
	return nil
}

func (iv intervalVariant) Fill(ctx context.Context, w Widgets, f Field, spec FieldSpec) error {
	if err := iv.Accepts(f.Value); err != nil {
		return err
	}
	if err := spec.Validate(f.Label); err != nil {
		return err
	}

	e, err := newTableEditor(ctx, w, spec, "delay")
	if err != nil {
		return err
	}
	e.set = func(ctx context.Context, idx int, r Row) error {
		kind := r.Get(IntervalType)
		if kind == "" {
			kind = IntervalFlexible
		}
		if err := w.SetSelect(ctx, CellLocator(spec, idx, "type"), kind); err != nil {
			return err
		}
		if kind == IntervalScheduling {
			return w.SetText(ctx, CellLocator(spec, idx, "schedule"), r.Get(IntervalValue))
		}
		if err := w.SetText(ctx, CellLocator(spec, idx, "delay"), r.Get(IntervalValue)); err != nil {
			return err
		}
		return w.SetText(ctx, CellLocator(spec, idx, "period"), r.Get(IntervalPeriod))
	}
	return e.apply(ctx, f.Value.(Rows))
}

func (intervalVariant) Read(ctx context.Context, w Widgets, label string, spec FieldSpec) (Value, error) {
	if err := spec.Validate(label); err != nil {
		return nil, err
	}
	count, err := w.CountRows(ctx, spec.Table)
	if err != nil {
		return nil, err
	}

	rows := Rows{}
	for i := 0; i < count; i++ {
		kind, err := w.ReadField(ctx, CellLocator(spec, i, "type"))
		if err != nil {
			return nil, err
		}
		r := Row{Index: NoIndex, Cells: []Cell{{Column: IntervalType, Value: kind}}}
		if kind == IntervalScheduling {
			v, err := w.ReadField(ctx, CellLocator(spec, i, "schedule"))
			if err != nil {
				return nil, err
			}
			r.Set(IntervalValue, v)
		} else {
			v, err := w.ReadField(ctx, CellLocator(spec, i, "delay"))
			if err != nil {
				return nil, err
			}
			p, err := w.ReadField(ctx, CellLocator(spec, i, "period"))
			if err != nil {
				return nil, err
			}
			r.Set(IntervalValue, v)
			r.Set(IntervalPeriod, p)
		}
		if r.Get(IntervalValue) != "" {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

func (s FieldSpec) isDropdown(column string) bool {
	for _, c := range s.Dropdowns {
		if c == column {
			return true
		}
	}
	return false
}

// Reconcile returns the table expected after applying changes to existing.
// Rows without an action are additions. Indexes refer to positions at the
// time the change is applied.
func Reconcile(existing, changes Rows) (Rows, error) {
	out := make(Rows, 0, len(existing)+len(changes))
	for _, r := range existing {
		out = append(out, cleanRow(r))
	}

	for i, c := range changes {
		switch c.Action {
		case "", RowAdd:
			if c.Index != NoIndex && c.Index < len(out) {
				out[c.Index] = cleanRow(c)
				continue
			}
			out = append(out, cleanRow(c))
		case RowUpdate:
			if c.Index >= len(out) {
				return nil, fmt.Errorf("change %d: update index %d out of range (%d rows)", i, c.Index, len(out))
			}
			merged := out[c.Index]
			for _, cell := range c.Cells {
				merged.Set(cell.Column, cell.Value)
			}
			out[c.Index] = merged
		case RowRemove:
			if c.Index >= len(out) {
				return nil, fmt.Errorf("change %d: remove index %d out of range (%d rows)", i, c.Index, len(out))
			}
			out = append(out[:c.Index], out[c.Index+1:]...)
		default:
			return nil, fmt.Errorf("change %d: unknown action %q", i, c.Action)
		}
	}
	return out, nil
}

// SortRows returns a copy of rows stably sorted by column.
func SortRows(rows Rows, column string) Rows {
	out := make(Rows, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Get(column) < out[j].Get(column)
	})
	return out
}

func cleanRow(r Row) Row {
	cells := make([]Cell, len(r.Cells))
	copy(cells, r.Cells)
	return Row{Index: NoIndex, Cells: cells}
}
