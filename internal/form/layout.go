package form

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Kind names a widget type.
type Kind string

const (
	KindText        Kind = "text"
	KindDropdown    Kind = "dropdown"
	KindCheckbox    Kind = "checkbox"
	KindMultiselect Kind = "multiselect"
	KindMultifield  Kind = "multifield"
	KindInterval    Kind = "interval"
)

// Kinds returns every known kind, sorted.
func Kinds() []Kind {
	out := make([]Kind, 0, len(variants))
	for k := range variants {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseKind validates a kind name. Empty means text.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return KindText, nil
	}
	k := Kind(s)
	if _, ok := variants[k]; !ok {
		return "", fmt.Errorf("unknown field kind %q (known: %v)", s, Kinds())
	}
	return k, nil
}

// FieldSpec describes how one labelled widget is located and driven.
type FieldSpec struct {
	Kind Kind `yaml:"kind"`
	// Locator replaces label lookup (id:, name:, css:, xpath:).
	Locator string `yaml:"locator"`
	// Table is the element id of a dynamic table.
	Table string `yaml:"table"`
	// Name is the input name prefix of table cells: name[row][column].
	Name string `yaml:"name"`
	// Columns lists the cells read back from each table row.
	Columns []string `yaml:"columns"`
	// SortBy sorts table rows by a column when reading and comparing.
	SortBy string `yaml:"sort_by"`
	// Dropdowns lists table columns that are select elements.
	Dropdowns []string `yaml:"dropdowns"`
	// EmptyRow is set when a new table starts with one blank row.
	EmptyRow bool `yaml:"empty_row"`
}

// UnmarshalYAML accepts either a bare kind name or a full mapping.
func (s *FieldSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		k, err := ParseKind(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*s = FieldSpec{Kind: k}
		return nil
	}

	type plain FieldSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	k, err := ParseKind(string(p.Kind))
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	p.Kind = k
	*s = FieldSpec(p)
	return nil
}

// Locate returns the locator for label.
func (s FieldSpec) Locate(label string) string {
	if s.Locator != "" {
		return s.Locator
	}
	return label
}

// Validate checks that table kinds carry what they need.
func (s FieldSpec) Validate(label string) error {
	switch s.Kind {
	case KindMultifield:
		if s.Table == "" || s.Name == "" {
			return fmt.Errorf("field %q: multifield needs table and name", label)
		}
		if len(s.Columns) == 0 {
			return fmt.Errorf("field %q: multifield needs columns", label)
		}
	case KindInterval:
		if s.Table == "" || s.Name == "" {
			return fmt.Errorf("field %q: interval needs table and name", label)
		}
	}
	return nil
}

// Layout maps field labels to widget specs. Labels not listed are text.
type Layout map[string]FieldSpec

// Spec returns the FieldSpec for label, defaulting the kind to text.
func (l Layout) Spec(label string) FieldSpec {
	if s, ok := l[label]; ok {
		if s.Kind == "" {
			s.Kind = KindText
		}
		return s
	}
	return FieldSpec{Kind: KindText}
}

// Variant returns the variant that drives label.
func (l Layout) Variant(label string) Variant {
	return variants[l.Spec(label).Kind]
}

// Validate checks every spec and every value in fs against the layout.
func (l Layout) Validate(fs FieldSet) error {
	for label, s := range l {
		if err := s.Validate(label); err != nil {
			return err
		}
	}
	for _, f := range fs {
		if err := l.Variant(f.Label).Accepts(f.Value); err != nil {
			return fmt.Errorf("field %q: %w", f.Label, err)
		}
	}
	return nil
}

// Fill drives every field of fs in order.
func (l Layout) Fill(ctx context.Context, w Widgets, fs FieldSet) error {
	for _, f := range fs {
		if err := l.Variant(f.Label).Fill(ctx, w, f, l.Spec(f.Label)); err != nil {
			return fmt.Errorf("fill %q: %w", f.Label, err)
		}
	}
	return nil
}

// Read reads back the current value of each label.
func (l Layout) Read(ctx context.Context, w Widgets, labels []string) (FieldSet, error) {
	out := make(FieldSet, 0, len(labels))
	for _, label := range labels {
		v, err := l.Variant(label).Read(ctx, w, label, l.Spec(label))
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", label, err)
		}
		out = append(out, Field{Label: label, Value: v})
	}
	return out, nil
}
