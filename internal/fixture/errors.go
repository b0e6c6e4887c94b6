package fixture

import "fmt"

// ConfigurationError reports a malformed scenario or case.
type ConfigurationError struct {
	Source   string
	Scenario string
	// Case is the zero-based case index, or -1 for scenario-level problems.
	Case     int
	CaseName string
	Key      string
	Message  string
}

func (e *ConfigurationError) Error() string {
	where := e.Source
	if where == "" {
		where = e.Scenario
	}
	if e.Case >= 0 {
		if e.CaseName != "" {
			where = fmt.Sprintf("%s: case %d (%q)", where, e.Case, e.CaseName)
		} else {
			where = fmt.Sprintf("%s: case %d", where, e.Case)
		}
	}
	if e.Key != "" {
		return fmt.Sprintf("%s: %s: %s", where, e.Key, e.Message)
	}
	return fmt.Sprintf("%s: %s", where, e.Message)
}

// ScenarioNotFoundError is returned for an unknown scenario name.
type ScenarioNotFoundError struct {
	Name string
}

func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario %q not found", e.Name)
}
