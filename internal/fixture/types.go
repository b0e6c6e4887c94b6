package fixture

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/formharness/internal/form"
	"github.com/roach88/formharness/internal/ir"
	"github.com/roach88/formharness/internal/rowquery"
)

// Outcome is what a case expects the form submission to do.
type Outcome string

const (
	OutcomePass Outcome = "pass"
	OutcomeFail Outcome = "fail"
)

// ParseOutcome accepts pass/fail and the good/bad spelling used by older
// fixtures. Empty means pass.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pass", "good":
		return OutcomePass, nil
	case "fail", "bad":
		return OutcomeFail, nil
	default:
		return "", fmt.Errorf("unknown outcome %q (want pass or fail)", s)
	}
}

// Action is the flow a case runs.
type Action string

const (
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionSimpleUpdate Action = "simple_update"
	ActionClone        Action = "clone"
	ActionDelete       Action = "delete"
	ActionCancel       Action = "cancel"
)

// ParseAction validates an action name. Empty means create.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case "":
		return ActionCreate, nil
	case ActionCreate, ActionUpdate, ActionSimpleUpdate, ActionClone, ActionDelete, ActionCancel:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// NeedsTarget reports whether the action works on an existing record.
func (a Action) NeedsTarget() bool {
	switch a {
	case ActionUpdate, ActionSimpleUpdate, ActionClone, ActionDelete:
		return true
	}
	return false
}

// Titles are the message titles shown after an action.
type Titles struct {
	Success string `yaml:"success"`
	Failure string `yaml:"failure"`
}

// Page describes the form under test.
type Page struct {
	// URL of the list page, relative to the console base URL.
	URL string `yaml:"url"`
	// Open is the button that opens an empty create form.
	Open string `yaml:"open"`
	// Dialog is set when the form opens in an overlay.
	Dialog       bool   `yaml:"dialog"`
	Submit       string `yaml:"submit"`
	UpdateSubmit string `yaml:"update_submit"`
	Cancel       string `yaml:"cancel"`
	Delete       string `yaml:"delete"`
	Clone        string `yaml:"clone"`

	Titles map[Action]Titles `yaml:"titles"`

	// TargetTable is the table a create writes to; UniqueKey is the column
	// that identifies the record and UniqueField the label that fills it.
	TargetTable string `yaml:"target_table"`
	UniqueKey   string `yaml:"unique_key"`
	UniqueField string `yaml:"unique_field"`
	// LinkField is the label whose value is the record's link text in the
	// list. Defaults to UniqueField.
	LinkField string `yaml:"link_field"`

	Fields form.Layout `yaml:"fields"`
}

// WithDefaults fills the button labels of the console.
func (p Page) WithDefaults() Page {
	def := func(s *string, v string) {
		if *s == "" {
			*s = v
		}
	}
	def(&p.Submit, "Add")
	def(&p.UpdateSubmit, "Update")
	def(&p.Cancel, "Cancel")
	def(&p.Delete, "Delete")
	def(&p.Clone, "Clone")
	def(&p.LinkField, p.UniqueField)
	return p
}

// TitlesFor returns the titles of action. Clone reports like create.
func (p Page) TitlesFor(a Action) Titles {
	if a == ActionClone {
		a = ActionCreate
	}
	if a == ActionSimpleUpdate {
		a = ActionUpdate
	}
	return p.Titles[a]
}

// HashQuery names a table snapshot used for unchanged-state assertions.
type HashQuery struct {
	Table   string         `yaml:"table"`
	OrderBy string         `yaml:"order_by"`
	Where   map[string]any `yaml:"where"`
}

// Query builds the Select that is hashed. order_by may list several
// comma-separated columns.
func (h HashQuery) Query() (rowquery.Select, error) {
	where := make(map[string]ir.IRValue, len(h.Where))
	for k, v := range h.Where {
		iv, err := ir.FromAny(v)
		if err != nil {
			return rowquery.Select{}, fmt.Errorf("where %s: %w", k, err)
		}
		where[k] = iv
	}

	var order []string
	for _, k := range strings.Split(h.OrderBy, ",") {
		if k = strings.TrimSpace(k); k != "" {
			order = append(order, k)
		}
	}

	q := rowquery.Select{Table: h.Table, Where: rowquery.WhereEquals(where), OrderBy: order}
	if err := rowquery.Validate(q); err != nil {
		return rowquery.Select{}, err
	}
	return q, nil
}

// Lines holds one or many expected error lines.
type Lines []string

// UnmarshalYAML accepts a single string or a list.
func (l *Lines) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" || node.Value == "" {
			*l = nil
			return nil
		}
		*l = Lines{node.Value}
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := node.Decode(&out); err != nil {
			return err
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: error must be a string or a list of strings", node.Line)
	}
}

// CaseSpec is a case as written in a scenario file.
type CaseSpec struct {
	Name       string         `yaml:"name"`
	Action     string         `yaml:"action"`
	Expected   string         `yaml:"expected"`
	Target     string         `yaml:"target"`
	Fields     form.FieldSet  `yaml:"fields"`
	Error      Lines          `yaml:"error"`
	ErrorTitle string         `yaml:"error_title"`
	Check      form.FieldSet  `yaml:"check"`
	DB         map[string]any `yaml:"db"`
}

// Scenario is one loaded scenario file.
type Scenario struct {
	Name           string        `yaml:"name"`
	Description    string        `yaml:"description"`
	Page           Page          `yaml:"page"`
	HashQueries    []HashQuery   `yaml:"hash_queries"`
	RequiredFields []string      `yaml:"required_fields"`
	Defaults       form.FieldSet `yaml:"defaults"`
	CasesFile      string        `yaml:"cases_file"`
	CasesSheet     string        `yaml:"cases_sheet"`
	Cases          []CaseSpec    `yaml:"cases"`

	// Source is the file the scenario was loaded from.
	Source string `yaml:"-"`
}

// TestCase is a validated, expanded case ready to run.
type TestCase struct {
	Index      int
	Name       string
	Action     Action
	Expected   Outcome
	Target     string
	Fields     form.FieldSet
	ErrorTitle string
	ErrorLines []string
	// Check lists the fields verified after re-opening the record.
	Check form.FieldSet
	// DB holds expected column values of the created or updated row.
	DB map[string]ir.IRValue
	// Key is the unique token substituted for {unique}.
	Key string
}
