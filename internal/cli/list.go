package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/formharness/internal/fixture"
)

// ScenarioInfo describes one scenario for list output.
type ScenarioInfo struct {
	Name        string `json:"name"`
	Cases       int    `json:"cases"`
	Page        string `json:"page"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "list [pattern]",
		Short:         "List scenarios",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := ""
			if len(args) == 1 {
				pattern = args[0]
			}
			return listScenarios(rootOpts, pattern, cmd)
		},
	}
	return cmd
}

func listScenarios(opts *RootOptions, pattern string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	dir, err := scenariosDir(opts, nil)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}
	provider, err := fixture.Load(dir, fixture.UUIDKeys{})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}
	names, err := provider.Filter(pattern)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid pattern", err)
	}

	infos := make([]ScenarioInfo, 0, len(names))
	for _, name := range names {
		s, err := provider.Scenario(name)
		if err != nil {
			return err
		}
		infos = append(infos, ScenarioInfo{
			Name:        s.Name,
			Cases:       len(s.Cases),
			Page:        s.Page.URL,
			Description: s.Description,
			Source:      s.Source,
		})
	}

	return out.Emit(infos, func(w io.Writer) error {
		if len(infos) == 0 {
			_, err := fmt.Fprintln(w, "No scenarios found.")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tCASES\tPAGE\tDESCRIPTION")
		for _, i := range infos {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", i.Name, i.Cases, i.Page, i.Description)
		}
		return tw.Flush()
	})
}
