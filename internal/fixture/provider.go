package fixture

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/roach88/formharness/internal/form"
	"github.com/roach88/formharness/internal/ir"
)

// Provider hands out the cases of loaded scenarios.
type Provider struct {
	scenarios map[string]*Scenario
	keys      KeyGenerator
}

// NewProvider builds a provider from already parsed scenarios.
func NewProvider(keys KeyGenerator, scenarios ...*Scenario) (*Provider, error) {
	if keys == nil {
		keys = UUIDKeys{}
	}
	p := &Provider{scenarios: make(map[string]*Scenario, len(scenarios)), keys: keys}
	for _, s := range scenarios {
		if prev, ok := p.scenarios[s.Name]; ok {
			return nil, &ConfigurationError{
				Source:  s.Source,
				Case:    -1,
				Key:     "name",
				Message: fmt.Sprintf("duplicate scenario name %q (also in %s)", s.Name, prev.Source),
			}
		}
		p.scenarios[s.Name] = s
	}
	return p, nil
}

// Load reads every scenario file under dir.
func Load(dir string, keys KeyGenerator) (*Provider, error) {
	files, err := FindScenarioFiles(dir)
	if err != nil {
		return nil, err
	}
	scenarios := make([]*Scenario, 0, len(files))
	for _, f := range files {
		s, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return NewProvider(keys, scenarios...)
}

// List returns scenario names, sorted.
func (p *Provider) List() []string {
	names := make([]string, 0, len(p.scenarios))
	for n := range p.scenarios {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Filter returns the sorted names matching a glob. An empty pattern
// matches everything.
func (p *Provider) Filter(pattern string) ([]string, error) {
	if pattern == "" {
		return p.List(), nil
	}
	var out []string
	for _, n := range p.List() {
		ok, err := path.Match(pattern, n)
		if err != nil {
			return nil, fmt.Errorf("bad filter %q: %w", pattern, err)
		}
		if ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// Scenario returns the scenario definition.
func (p *Provider) Scenario(name string) (*Scenario, error) {
	s, ok := p.scenarios[name]
	if !ok {
		return nil, &ScenarioNotFoundError{Name: name}
	}
	return s, nil
}

// Provide validates the scenario and returns its cases in file order with
// defaults merged and placeholders expanded. Each call returns fresh
// copies; each case gets the token the key generator assigns its index.
func (p *Provider) Provide(name string) ([]TestCase, error) {
	s, err := p.Scenario(name)
	if err != nil {
		return nil, err
	}
	if err := validateScenario(s); err != nil {
		return nil, err
	}

	out := make([]TestCase, 0, len(s.Cases))
	keys := make([]string, len(s.Cases))
	for i, spec := range s.Cases {
		tc, err := buildCase(s, i, spec)
		if err != nil {
			return nil, err
		}
		keys[i] = p.keys.Generate(i)
		tc.Key = keys[i]
		out = append(out, tc)
	}

	for i, tc := range out {
		bad, invalid := 0, false
		repl := func(str string) string {
			for _, n := range placeholderRefs(str) {
				if n < 0 || n >= len(keys) {
					bad, invalid = n, true
				}
			}
			return expandKeys(str, tc.Key, keys)
		}
		out[i] = expand(tc, repl)
		if invalid {
			return nil, &ConfigurationError{
				Source: s.Source, Scenario: s.Name, Case: i, CaseName: tc.Name,
				Key:     "{unique:N}",
				Message: fmt.Sprintf("refers to case %d, scenario has %d cases", bad, len(keys)),
			}
		}
	}
	return out, nil
}

// ValidateAll provides every scenario once and collects the errors.
func (p *Provider) ValidateAll() map[string]error {
	errs := map[string]error{}
	for _, n := range p.List() {
		if _, err := p.Provide(n); err != nil {
			errs[n] = err
		}
	}
	return errs
}

func validateScenario(s *Scenario) error {
	fail := func(key, msg string, args ...any) error {
		return &ConfigurationError{Source: s.Source, Scenario: s.Name, Case: -1, Key: key, Message: fmt.Sprintf(msg, args...)}
	}

	if s.Page.URL == "" {
		return fail("page.url", "is required")
	}
	if s.Page.TargetTable == "" {
		return fail("page.target_table", "is required")
	}
	if s.Page.UniqueKey == "" || s.Page.UniqueField == "" {
		return fail("page.unique_key", "unique_key and unique_field are required")
	}
	if len(s.HashQueries) == 0 {
		return fail("hash_queries", "at least one query is required")
	}
	for i, h := range s.HashQueries {
		if _, err := h.Query(); err != nil {
			return fail(fmt.Sprintf("hash_queries[%d]", i), "%v", err)
		}
	}
	if len(s.Cases) == 0 {
		return fail("cases", "scenario has no cases")
	}
	if err := s.Page.Fields.Validate(s.Defaults); err != nil {
		return fail("defaults", "%v", err)
	}
	return nil
}

func buildCase(s *Scenario, i int, spec CaseSpec) (TestCase, error) {
	fail := func(key, msg string, args ...any) error {
		return &ConfigurationError{
			Source: s.Source, Scenario: s.Name, Case: i, CaseName: spec.Name,
			Key: key, Message: fmt.Sprintf(msg, args...),
		}
	}

	if strings.TrimSpace(spec.Name) == "" {
		return TestCase{}, fail("name", "is required")
	}
	action, err := ParseAction(spec.Action)
	if err != nil {
		return TestCase{}, fail("action", "%v", err)
	}
	outcome, err := ParseOutcome(spec.Expected)
	if err != nil {
		return TestCase{}, fail("expected", "%v", err)
	}
	if action.NeedsTarget() && spec.Target == "" {
		return TestCase{}, fail("target", "%s needs the name of an existing record", action)
	}
	if outcome == OutcomeFail && len(spec.Error) == 0 {
		return TestCase{}, fail("error", "failing cases must state the expected error")
	}
	if (action == ActionSimpleUpdate || action == ActionDelete) && len(spec.Fields) > 0 {
		return TestCase{}, fail("fields", "%s does not take fields", action)
	}
	if outcome == OutcomeFail && (action == ActionDelete || action == ActionCancel || action == ActionSimpleUpdate) {
		return TestCase{}, fail("expected", "%s cases cannot expect failure", action)
	}

	fields := spec.Fields
	if action == ActionCreate || action == ActionCancel {
		fields = form.Merge(s.Defaults, spec.Fields)
	}
	if action == ActionCreate || action == ActionClone {
		for _, req := range s.RequiredFields {
			if _, ok := fields.Get(req); !ok {
				return TestCase{}, fail(req, "required field is missing")
			}
		}
	}
	if err := s.Page.Fields.Validate(fields); err != nil {
		return TestCase{}, fail("fields", "%v", err)
	}
	if err := s.Page.Fields.Validate(spec.Check); err != nil {
		return TestCase{}, fail("check", "%v", err)
	}

	db := make(map[string]ir.IRValue, len(spec.DB))
	for k, v := range spec.DB {
		iv, err := ir.FromAny(v)
		if err != nil {
			return TestCase{}, fail("db."+k, "%v", err)
		}
		db[k] = iv
	}

	check := spec.Check
	if len(check) == 0 && outcome == OutcomePass {
		check = fields
	}

	return TestCase{
		Index:      i,
		Name:       spec.Name,
		Action:     action,
		Expected:   outcome,
		Target:     spec.Target,
		Fields:     fields,
		ErrorTitle: spec.ErrorTitle,
		ErrorLines: append([]string(nil), spec.Error...),
		Check:      check,
		DB:         db,
	}, nil
}

// expand applies repl to every string of the case.
func expand(tc TestCase, repl func(string) string) TestCase {
	tc.Target = repl(tc.Target)
	tc.Fields = tc.Fields.MapStrings(repl)
	tc.Check = tc.Check.MapStrings(repl)
	for i, l := range tc.ErrorLines {
		tc.ErrorLines[i] = repl(l)
	}
	db := make(map[string]ir.IRValue, len(tc.DB))
	for k, v := range tc.DB {
		db[k] = expandIR(v, repl)
	}
	tc.DB = db
	return tc
}

func expandIR(v ir.IRValue, fn func(string) string) ir.IRValue {
	switch val := v.(type) {
	case ir.IRString:
		return ir.IRString(fn(string(val)))
	case ir.IRArray:
		out := make(ir.IRArray, len(val))
		for i, e := range val {
			out[i] = expandIR(e, fn)
		}
		return out
	case ir.IRObject:
		out := make(ir.IRObject, len(val))
		for k, e := range val {
			out[k] = expandIR(e, fn)
		}
		return out
	default:
		return v
	}
}
