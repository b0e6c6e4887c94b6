package fixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/roach88/formharness/internal/form"
)

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want Format
		ok   bool
	}{
		{"a.yaml", FormatYAML, true},
		{"a.YML", FormatYAML, true},
		{"dir/a.cue", FormatCUE, true},
		{"a.xlsx", "", false},
		{"README", "", false},
	}
	for _, tt := range tests {
		got, ok := FormatOf(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestLoadFile_YAML(t *testing.T) {
	s, err := LoadFile("testdata/items_calculated.yaml")
	require.NoError(t, err)

	assert.Equal(t, "items_calculated", s.Name)
	assert.Equal(t, "items", s.Page.TargetTable)
	assert.Equal(t, "Item added", s.Page.TitlesFor(ActionClone).Success)
	assert.Equal(t, "Cannot update item", s.Page.TitlesFor(ActionSimpleUpdate).Failure)
	assert.Equal(t, form.KindInterval, s.Page.Fields.Spec("Custom intervals").Kind)
	assert.Equal(t, []string{"Type", "Update interval"}, s.Defaults.Labels())
	require.Len(t, s.Cases, 3)
	assert.Equal(t, Lines{`Invalid parameter "/1/params": invalid number of parameters in function "avg".`}, s.Cases[1].Error)

	v, ok := s.Cases[0].Fields.Get("Enabled")
	require.True(t, ok)
	assert.Equal(t, form.Bool(false), v)
}

func TestLoadFile_CUE(t *testing.T) {
	s, err := LoadFile("testdata/hosts.cue")
	require.NoError(t, err)

	assert.Equal(t, "hosts_create", s.Name)
	assert.True(t, s.Page.Dialog)
	require.Len(t, s.Cases, 2)
	assert.Equal(t, []string{"Host name", "Host groups"}, s.Cases[0].Fields.Labels())
	assert.Len(t, s.Cases[0].Error, 2)

	groups, _ := s.Cases[0].Fields.Get("Host groups")
	assert.Equal(t, form.List{}, groups)

	macros, _ := s.Cases[1].Fields.Get("Macros")
	rows, ok := macros.(form.Rows)
	require.True(t, ok)
	require.Len(t, rows, 2)
	assert.Equal(t, "{$Z}", rows[0].Get("macro"))
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("name: x\npage:\n  url: a\n  colour: red\n"), FormatYAML, "x.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")

	_, err = Parse([]byte(`name: "x", extra: 1`), FormatCUE, "x.cue")
	require.Error(t, err)
}

func TestParse_CUEMustBeConcrete(t *testing.T) {
	_, err := Parse([]byte(`name: string`), FormatCUE, "x.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not concrete")
}

func TestParse_NameDefaultsToFileName(t *testing.T) {
	s, err := Parse([]byte("page: {url: a}\n"), FormatYAML, "dir/triggers_edit.yaml")
	require.NoError(t, err)
	assert.Equal(t, "triggers_edit", s.Name)
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"b.yaml", "a.cue", "notes.txt", "_draft.yaml", "_wip/c.yaml", "sub/d.yml"} {
		full := filepath.Join(dir, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("{}"), 0o644))
	}

	files, err := FindScenarioFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.cue"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "sub/d.yml"),
	}, files)
}

func writeWorkbook(t *testing.T, path string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestLoadSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formulas.xlsx")
	writeWorkbook(t, path, [][]any{
		{"name", "expected", "Formula", "Enabled", "Host groups", "error"},
		{"avg ok", "pass", "avg(/host/trap,99h)", "FALSE", "Linux\nZabbix servers", ""},
		{},
		{"avg empty", "fail", "avg()", "", "", "line one\r\nline two"},
	})

	layout := form.Layout{
		"Enabled":     {Kind: form.KindCheckbox},
		"Host groups": {Kind: form.KindMultiselect},
	}
	cases, err := LoadSheet(path, "", layout)
	require.NoError(t, err)
	require.Len(t, cases, 2)

	assert.Equal(t, "avg ok", cases[0].Name)
	assert.Equal(t, form.FieldSet{
		{Label: "Formula", Value: form.Text("avg(/host/trap,99h)")},
		{Label: "Enabled", Value: form.Bool(false)},
		{Label: "Host groups", Value: form.List{"Linux", "Zabbix servers"}},
	}, cases[0].Fields)

	assert.Equal(t, "fail", cases[1].Expected)
	assert.Equal(t, Lines{"line one", "line two"}, cases[1].Error)
	assert.Equal(t, []string{"Formula"}, cases[1].Fields.Labels())
}

func TestLoadSheet_RejectsTableFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "macros.xlsx")
	writeWorkbook(t, path, [][]any{
		{"name", "Macros"},
		{"one", "{$A}"},
	})

	layout := form.Layout{"Macros": {Kind: form.KindMultifield, Table: "t", Name: "m", Columns: []string{"macro"}}}
	_, err := LoadSheet(path, "Sheet1", layout)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestLoadFile_CasesFromSheet(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, filepath.Join(dir, "cases.xlsx"), [][]any{
		{"name", "Key", "Formula"},
		{"from sheet", "calc.{unique}", "sum(/host/trap,1h)"},
	})
	scenario := `
page: {url: items.php, target_table: items, unique_key: key_, unique_field: Key}
hash_queries: [{table: items, order_by: itemid}]
cases_file: cases.xlsx
cases:
  - name: inline
    fields:
      Key: inline.{unique}
      Formula: last(/host/trap)
`
	path := filepath.Join(dir, "sheet_items.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenario), 0o644))

	s, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, s.Cases, 2)
	assert.Equal(t, "inline", s.Cases[0].Name)
	assert.Equal(t, "from sheet", s.Cases[1].Name)
}
