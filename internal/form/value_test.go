package form

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestFieldSet_UnmarshalKeepsOrder(t *testing.T) {
	src := `
Name: Calc
Key: calc.key
Enabled: false
Update interval: 30
Description: ~
Groups: [Linux servers, Templates]
Macros:
  - {macro: "{$B}", value: "2"}
  - {action: update, index: 0, value: "3"}
  - {action: remove, index: 1}
`
	var fs FieldSet
	require.NoError(t, yaml.Unmarshal([]byte(src), &fs))

	assert.Equal(t, []string{"Name", "Key", "Enabled", "Update interval", "Description", "Groups", "Macros"}, fs.Labels())

	v, _ := fs.Get("Enabled")
	assert.Equal(t, Bool(false), v)
	v, _ = fs.Get("Update interval")
	assert.Equal(t, Text("30"), v)
	v, _ = fs.Get("Description")
	assert.Equal(t, Text(""), v)
	v, _ = fs.Get("Groups")
	assert.Equal(t, List{"Linux servers", "Templates"}, v)

	v, _ = fs.Get("Macros")
	rows := v.(Rows)
	require.Len(t, rows, 3)
	assert.Equal(t, Row{Index: NoIndex, Cells: []Cell{{"macro", "{$B}"}, {"value", "2"}}}, rows[0])
	assert.Equal(t, Row{Action: RowUpdate, Index: 0, Cells: []Cell{{"value", "3"}}}, rows[1])
	assert.Equal(t, Row{Action: RowRemove, Index: 1}, rows[2])
}

func TestFieldSet_UnmarshalErrors(t *testing.T) {
	tests := map[string]string{
		"duplicate":        "Name: a\nName: b\n",
		"nested mapping":   "Name: {a: b}\n",
		"bad action":       "Macros:\n  - {action: replace}\n",
		"update without i": "Macros:\n  - {action: update, value: x}\n",
		"not a mapping":    "[a, b]\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			var fs FieldSet
			assert.Error(t, yaml.Unmarshal([]byte(src), &fs))
		})
	}
}

func TestMerge(t *testing.T) {
	base := FieldSet{{"Type", Text("Calculated")}, {"Update interval", Text("30s")}}
	fields := FieldSet{{"Name", Text("Calc")}, {"Type", Text("Zabbix trapper")}}

	got := Merge(base, fields)
	assert.Equal(t, FieldSet{
		{"Type", Text("Zabbix trapper")},
		{"Update interval", Text("30s")},
		{"Name", Text("Calc")},
	}, got)
	assert.Equal(t, Text("Calculated"), base[0].Value)
}

func TestMapStrings(t *testing.T) {
	fs := FieldSet{
		{"Key", Text("calc.{unique}")},
		{"Groups", List{"g-{unique}"}},
		{"Macros", Rows{{Index: NoIndex, Cells: []Cell{{"macro", "{$M_{unique}}"}}}}},
		{"Enabled", Bool(true)},
	}
	repl := func(s string) string { return strings.ReplaceAll(s, "{unique}", "k1") }

	got := fs.MapStrings(repl)
	assert.Equal(t, Text("calc.k1"), got[0].Value)
	assert.Equal(t, List{"g-k1"}, got[1].Value)
	assert.Equal(t, "{$M_k1}", got[2].Value.(Rows)[0].Get("macro"))
	assert.Equal(t, Bool(true), got[3].Value)
	assert.Equal(t, Text("calc.{unique}"), fs[0].Value)
}

func TestPlainAndDescribe(t *testing.T) {
	rows := Rows{{Cells: []Cell{{"macro", "{$A}"}, {"value", "1"}}}}
	assert.Equal(t, []map[string]string{{"macro": "{$A}", "value": "1"}}, Plain(rows))
	assert.Equal(t, "calc", Plain(Text("calc")))
	assert.Equal(t, `"calc"`, Describe(Text("calc")))
	assert.Equal(t, "1 rows", Describe(rows))
	assert.Equal(t, "[a, b]", Describe(List{"a", "b"}))
}
