package fixture

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/roach88/formharness/internal/form"
)

// Reserved spreadsheet columns. Every other header is a form label.
const (
	colName       = "name"
	colExpected   = "expected"
	colError      = "error"
	colErrorTitle = "error_title"
	colAction     = "action"
	colTarget     = "target"
)

// LoadSheet reads cases from a spreadsheet. The first row is the header.
// Empty cells leave the field out of the case; multi-line error cells
// give one expected line per text line.
func LoadSheet(path, sheet string, layout form.Layout) ([]CaseSpec, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%s: workbook has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: read sheet %q: %w", path, sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: sheet %q is empty", path, sheet)
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	var cases []CaseSpec
	for r, row := range rows[1:] {
		if blank(row) {
			continue
		}
		c := CaseSpec{}
		for i, cell := range row {
			if i >= len(header) || header[i] == "" || cell == "" {
				continue
			}
			switch header[i] {
			case colName:
				c.Name = cell
			case colExpected:
				c.Expected = cell
			case colError:
				c.Error = splitLines(cell)
			case colErrorTitle:
				c.ErrorTitle = cell
			case colAction:
				c.Action = cell
			case colTarget:
				c.Target = cell
			default:
				v, err := cellValue(layout.Spec(header[i]), cell)
				if err != nil {
					return nil, fmt.Errorf("%s: sheet %q row %d column %q: %w", path, sheet, r+2, header[i], err)
				}
				c.Fields = append(c.Fields, form.Field{Label: header[i], Value: v})
			}
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func cellValue(spec form.FieldSpec, cell string) (form.Value, error) {
	switch spec.Kind {
	case form.KindCheckbox:
		return form.ParseBoolText(cell), nil
	case form.KindMultiselect:
		return form.List(splitLines(cell)), nil
	case form.KindMultifield, form.KindInterval:
		return nil, fmt.Errorf("%s fields cannot be given in a spreadsheet", spec.Kind)
	default:
		return form.Text(cell), nil
	}
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
