package cli

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/formharness/internal/fixture"
)

// ValidateResult holds the outcome of checking every scenario.
type ValidateResult struct {
	Valid    bool              `json:"valid"`
	Checked  int               `json:"checked"`
	Problems map[string]string `json:"problems,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [scenarios-dir]",
		Short: "Check scenario files without a browser",
		Long: `Load every scenario file and check it the way a run would: page
description, field layout, case actions, expected outcomes and hash queries.

Exit codes:
  0 - All scenarios valid
  1 - One or more scenarios invalid
  2 - Command error (directory not found, etc.)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateScenarios(rootOpts, args, cmd)
		},
	}
	return cmd
}

func scenariosDir(opts *RootOptions, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := opts.loadConfig(true)
	if err != nil {
		return "", err
	}
	return cfg.Scenarios, nil
}

func validateScenarios(opts *RootOptions, args []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	dir, err := scenariosDir(opts, args)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}

	result := ValidateResult{Problems: map[string]string{}}
	provider, err := fixture.Load(dir, fixture.UUIDKeys{})
	if err != nil {
		// A file that does not parse stops loading the rest.
		result.Problems["(load)"] = err.Error()
	} else {
		names := provider.List()
		result.Checked = len(names)
		for name, err := range provider.ValidateAll() {
			result.Problems[name] = err.Error()
		}
		out.VerboseLog("Checked %d scenario(s) in %s", len(names), dir)
	}
	result.Valid = len(result.Problems) == 0

	err = out.Emit(result, func(w io.Writer) error {
		if result.Valid {
			_, err := fmt.Fprintf(w, "✓ All %d scenarios valid\n", result.Checked)
			return err
		}
		keys := make([]string, 0, len(result.Problems))
		for k := range result.Problems {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "✗ %s\n  %s\n", k, result.Problems[k])
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !result.Valid {
		return reportedFailure("%d invalid scenario(s)", len(result.Problems))
	}
	return nil
}
