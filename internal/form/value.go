package form

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Value is a sealed interface for submitted field values.
type Value interface {
	formValue()
}

// Text is a single string value.
type Text string

func (Text) formValue() {}

// Bool is a checkbox state.
type Bool bool

func (Bool) formValue() {}

// List is a set of multiselect entries.
type List []string

func (List) formValue() {}

// Rows is the content of a dynamic table.
type Rows []Row

func (Rows) formValue() {}

// RowAction says what a Row does to an existing table.
type RowAction string

const (
	RowAdd    RowAction = "add"
	RowUpdate RowAction = "update"
	RowRemove RowAction = "remove"
)

// NoIndex marks a row without an explicit position.
const NoIndex = -1

// Cell is one column of a table row.
type Cell struct {
	Column string
	Value  string
}

// Row is one table row. Action and Index are only meaningful when the row
// describes a change to existing content.
type Row struct {
	Action RowAction
	Index  int
	Cells  []Cell
}

// Get returns the value of column, or "" if the row has no such cell.
func (r Row) Get(column string) string {
	for _, c := range r.Cells {
		if c.Column == column {
			return c.Value
		}
	}
	return ""
}

// Set overwrites column, appending it if missing.
func (r *Row) Set(column, value string) {
	for i := range r.Cells {
		if r.Cells[i].Column == column {
			r.Cells[i].Value = value
			return
		}
	}
	r.Cells = append(r.Cells, Cell{Column: column, Value: value})
}

// Empty reports whether every cell is blank.
func (r Row) Empty() bool {
	for _, c := range r.Cells {
		if c.Value != "" {
			return false
		}
	}
	return true
}

// Field is one label → value pair.
type Field struct {
	Label string
	Value Value
}

// FieldSet is an ordered mapping of label to value. Order is the order the
// fields are filled in.
type FieldSet []Field

// Get returns the value for label.
func (fs FieldSet) Get(label string) (Value, bool) {
	for _, f := range fs {
		if f.Label == label {
			return f.Value, true
		}
	}
	return nil, false
}

// Labels returns the labels in order.
func (fs FieldSet) Labels() []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Label
	}
	return out
}

// Merge overlays fields onto base. Labels already in base keep their
// position and take the new value; new labels are appended.
func Merge(base, fields FieldSet) FieldSet {
	out := make(FieldSet, len(base), len(base)+len(fields))
	copy(out, base)
	for _, f := range fields {
		replaced := false
		for i := range out {
			if out[i].Label == f.Label {
				out[i].Value = f.Value
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, f)
		}
	}
	return out
}

// MapStrings returns a copy of fs with fn applied to every string it holds.
func (fs FieldSet) MapStrings(fn func(string) string) FieldSet {
	if fs == nil {
		return nil
	}
	out := make(FieldSet, len(fs))
	for i, f := range fs {
		out[i] = Field{Label: f.Label, Value: MapValue(f.Value, fn)}
	}
	return out
}

// MapValue returns a copy of v with fn applied to every string it holds.
func MapValue(v Value, fn func(string) string) Value {
	switch val := v.(type) {
	case Text:
		return Text(fn(string(val)))
	case List:
		out := make(List, len(val))
		for i, s := range val {
			out[i] = fn(s)
		}
		return out
	case Rows:
		out := make(Rows, len(val))
		for i, r := range val {
			cells := make([]Cell, len(r.Cells))
			for j, c := range r.Cells {
				cells[j] = Cell{Column: c.Column, Value: fn(c.Value)}
			}
			out[i] = Row{Action: r.Action, Index: r.Index, Cells: cells}
		}
		return out
	default:
		return v
	}
}

// Plain converts v to plain Go values for JSON output and diffs.
// Row actions and indexes are dropped.
func Plain(v Value) any {
	switch val := v.(type) {
	case Text:
		return string(val)
	case Bool:
		return bool(val)
	case List:
		return []string(val)
	case Rows:
		out := make([]map[string]string, len(val))
		for i, r := range val {
			m := make(map[string]string, len(r.Cells))
			for _, c := range r.Cells {
				m[c.Column] = c.Value
			}
			out[i] = m
		}
		return out
	default:
		return nil
	}
}

// Describe renders v for logs and trace events.
func Describe(v Value) string {
	switch val := v.(type) {
	case Text:
		return strconv.Quote(string(val))
	case Bool:
		return strconv.FormatBool(bool(val))
	case List:
		return "[" + strings.Join(val, ", ") + "]"
	case Rows:
		return fmt.Sprintf("%d rows", len(val))
	default:
		return "<nil>"
	}
}

// UnmarshalYAML decodes a mapping while keeping key order.
func (fs *FieldSet) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*fs = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: fields must be a mapping", node.Line)
	}

	out := make(FieldSet, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, valNode := node.Content[i], node.Content[i+1]
		for _, f := range out {
			if f.Label == key.Value {
				return fmt.Errorf("line %d: duplicate field %q", key.Line, key.Value)
			}
		}
		v, err := decodeValue(valNode)
		if err != nil {
			return fmt.Errorf("field %q: %w", key.Value, err)
		}
		out = append(out, Field{Label: key.Value, Value: v})
	}
	*fs = out
	return nil
}

func decodeValue(node *yaml.Node) (Value, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!null":
			return Text(""), nil
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return nil, err
			}
			return Bool(b), nil
		default:
			return Text(node.Value), nil
		}
	case yaml.SequenceNode:
		if len(node.Content) == 0 {
			return List{}, nil
		}
		if node.Content[0].Kind == yaml.MappingNode {
			return decodeRows(node)
		}
		list := make(List, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: list entries must be scalars", item.Line)
			}
			list = append(list, item.Value)
		}
		return list, nil
	default:
		return nil, fmt.Errorf("line %d: expected a scalar, a list or a list of rows", node.Line)
	}
}

func decodeRows(node *yaml.Node) (Rows, error) {
	rows := make(Rows, 0, len(node.Content))
	for i, item := range node.Content {
		if item.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("row %d: expected a mapping", i)
		}
		row := Row{Index: NoIndex}
		for j := 0; j+1 < len(item.Content); j += 2 {
			k, v := item.Content[j], item.Content[j+1]
			if v.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("row %d: column %q must be a scalar", i, k.Value)
			}
			switch k.Value {
			case "action":
				a := RowAction(v.Value)
				if a != RowAdd && a != RowUpdate && a != RowRemove {
					return nil, fmt.Errorf("row %d: unknown action %q", i, v.Value)
				}
				row.Action = a
			case "index":
				n, err := strconv.Atoi(v.Value)
				if err != nil || n < 0 {
					return nil, fmt.Errorf("row %d: index must be a non-negative integer", i)
				}
				row.Index = n
			default:
				val := v.Value
				if v.Tag == "!!null" {
					val = ""
				}
				row.Cells = append(row.Cells, Cell{Column: k.Value, Value: val})
			}
		}
		if (row.Action == RowUpdate || row.Action == RowRemove) && row.Index == NoIndex {
			return nil, fmt.Errorf("row %d: %s requires an index", i, row.Action)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
