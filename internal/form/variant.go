package form

import (
	"context"
	"fmt"
	"strconv"
)

// Widgets are the browser primitives a Variant needs. Locators are either a
// visible label or an explicit id:, name:, css: or xpath: locator.
type Widgets interface {
	SetText(ctx context.Context, locator, text string) error
	SetSelect(ctx context.Context, locator, option string) error
	SetChecked(ctx context.Context, locator string, on bool) error
	SetMulti(ctx context.Context, locator string, values []string) error
	Click(ctx context.Context, locator string) error
	// ReadField returns an input's value, a select's chosen option text,
	// or "true"/"false" for checkboxes and radios.
	ReadField(ctx context.Context, locator string) (string, error)
	ReadMulti(ctx context.Context, locator string) ([]string, error)
	CountRows(ctx context.Context, table string) (int, error)
}

// Variant fills and reads one kind of widget.
type Variant interface {
	Kind() Kind
	Accepts(v Value) error
	Fill(ctx context.Context, w Widgets, f Field, spec FieldSpec) error
	Read(ctx context.Context, w Widgets, label string, spec FieldSpec) (Value, error)
}

// ValueError reports a value the widget kind cannot take.
type ValueError struct {
	Kind  Kind
	Value Value
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s field cannot take %T value %s", e.Kind, e.Value, Describe(e.Value))
}

var variants = map[Kind]Variant{
	KindText:        textVariant{},
	KindDropdown:    dropdownVariant{},
	KindCheckbox:    checkboxVariant{},
	KindMultiselect: multiselectVariant{},
	KindMultifield:  multifieldVariant{},
	KindInterval:    intervalVariant{},
}

// Lookup returns the variant for k.
func Lookup(k Kind) (Variant, error) {
	v, ok := variants[k]
	if !ok {
		return nil, fmt.Errorf("unknown field kind %q", k)
	}
	return v, nil
}

type textVariant struct{}

func (textVariant) Kind() Kind { return KindText }

func (textVariant) Accepts(v Value) error {
	if _, ok := v.(Text); !ok {
		return &ValueError{Kind: KindText, Value: v}
	}
	return nil
}

func (t textVariant) Fill(ctx context.Context, w Widgets, f Field, spec FieldSpec) error {
	if err := t.Accepts(f.Value); err != nil {
		return err
	}
	return w.SetText(ctx, spec.Locate(f.Label), string(f.Value.(Text)))
}

func (textVariant) Read(ctx context.Context, w Widgets, label string, spec FieldSpec) (Value, error) {
	s, err := w.ReadField(ctx, spec.Locate(label))
	if err != nil {
		return nil, err
	}
	return Text(s), nil
}

type dropdownVariant struct{}

func (dropdownVariant) Kind() Kind { return KindDropdown }

func (dropdownVariant) Accepts(v Value) error {
	if _, ok := v.(Text); !ok {
		return &ValueError{Kind: KindDropdown, Value: v}
	}
	return nil
}

func (d dropdownVariant) Fill(ctx context.Context, w Widgets, f Field, spec FieldSpec) error {
	if err := d.Accepts(f.Value); err != nil {
		return err
	}
	return w.SetSelect(ctx, spec.Locate(f.Label), string(f.Value.(Text)))
}

func (dropdownVariant) Read(ctx context.Context, w Widgets, label string, spec FieldSpec) (Value, error) {
	s, err := w.ReadField(ctx, spec.Locate(label))
	if err != nil {
		return nil, err
	}
	return Text(s), nil
}

type checkboxVariant struct{}

func (checkboxVariant) Kind() Kind { return KindCheckbox }

func (checkboxVariant) Accepts(v Value) error {
	switch val := v.(type) {
	case Bool:
		return nil
	case Text:
		if _, err := strconv.ParseBool(string(val)); err == nil {
			return nil
		}
	}
	return &ValueError{Kind: KindCheckbox, Value: v}
}

func (c checkboxVariant) Fill(ctx context.Context, w Widgets, f Field, spec FieldSpec) error {
	on, err := checkboxState(f.Value)
	if err != nil {
		return err
	}
	return w.SetChecked(ctx, spec.Locate(f.Label), on)
}

func (checkboxVariant) Read(ctx context.Context, w Widgets, label string, spec FieldSpec) (Value, error) {
	s, err := w.ReadField(ctx, spec.Locate(label))
	if err != nil {
		return nil, err
	}
	on, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("checkbox state %q: %w", s, err)
	}
	return Bool(on), nil
}

func checkboxState(v Value) (bool, error) {
	switch val := v.(type) {
	case Bool:
		return bool(val), nil
	case Text:
		on, err := strconv.ParseBool(string(val))
		if err == nil {
			return on, nil
		}
	}
	return false, &ValueError{Kind: KindCheckbox, Value: v}
}

type multiselectVariant struct{}

func (multiselectVariant) Kind() Kind { return KindMultiselect }

func (multiselectVariant) Accepts(v Value) error {
	switch v.(type) {
	case List, Text:
		return nil
	}
	return &ValueError{Kind: KindMultiselect, Value: v}
}

func (m multiselectVariant) Fill(ctx context.Context, w Widgets, f Field, spec FieldSpec) error {
	var values []string
	switch val := f.Value.(type) {
	case List:
		values = val
	case Text:
		if val != "" {
			values = []string{string(val)}
		}
	default:
		return &ValueError{Kind: KindMultiselect, Value: f.Value}
	}
	return w.SetMulti(ctx, spec.Locate(f.Label), values)
}

func (multiselectVariant) Read(ctx context.Context, w Widgets, label string, spec FieldSpec) (Value, error) {
	values, err := w.ReadMulti(ctx, spec.Locate(label))
	if err != nil {
		return nil, err
	}
	return List(values), nil
}
