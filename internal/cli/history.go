package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/formharness/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Scenario string
	Limit    int
	Prune    int // keep this many runs per scenario
}

// RunDetail is the output of history for one run.
type RunDetail struct {
	Run   store.RunRecord    `json:"run"`
	Cases []store.CaseRecord `json:"cases"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long: `Show recent runs from the history database, or the cases of one run.

Examples:
  formharness history
  formharness history --scenario items_calculated --limit 5
  formharness history 3f1c9a6e-6b0e-4f7e-9f5e-0a3c1d2b4e5f
  formharness history --prune 10`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "only runs of this scenario")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "number of runs")
	cmd.Flags().IntVar(&opts.Prune, "prune", 0, "delete all but the newest N runs of each scenario")

	return cmd
}

func showHistory(opts *HistoryOptions, args []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cfg, err := opts.loadConfig(true)
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.History); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("history database not found: %s", cfg.History))
	}
	st, err := store.Open(cfg.History)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open history", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Prune > 0 {
		n, err := st.Prune(ctx, opts.Prune)
		if err != nil {
			return WrapExitError(ExitCommandError, "prune failed", err)
		}
		return out.Emit(map[string]int64{"deleted": n}, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "Deleted %d run(s)\n", n)
			return err
		})
	}

	if len(args) == 1 {
		return showRun(ctx, st, args[0], out)
	}

	runs, err := st.History(ctx, store.HistoryFilter{Scenario: opts.Scenario, Limit: opts.Limit})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}
	return out.Emit(runs, func(w io.Writer) error {
		if len(runs) == 0 {
			_, err := fmt.Fprintln(w, "No runs recorded.")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tSCENARIO\tSTARTED\tRESULT\tDURATION\tTRACE")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.Scenario, r.Started.Local().Format(time.DateTime), runOutcome(r),
				r.Duration.Round(time.Millisecond), shortHash(r.TraceHash))
		}
		return tw.Flush()
	})
}

func showRun(ctx context.Context, st *store.Store, id string, out *OutputFormatter) error {
	run, cases, err := st.Run(ctx, id)
	if errors.Is(err, store.ErrRunNotFound) {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", id))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	return out.Emit(RunDetail{Run: run, Cases: cases}, func(w io.Writer) error {
		fmt.Fprintf(w, "%s %s %s\n", run.ID, run.Scenario, runOutcome(run))
		for _, c := range cases {
			mark := "✓"
			if !c.Pass {
				mark = "✗"
			}
			fmt.Fprintf(w, "%s %d %s [%s, expect %s]\n", mark, c.Index, c.Name, c.Action, c.Expected)
			for _, e := range c.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		if run.Error != "" {
			fmt.Fprintf(w, "aborted: %s\n", run.Error)
		}
		return nil
	})
}

func runOutcome(r store.RunRecord) string {
	switch {
	case r.Aborted:
		return fmt.Sprintf("aborted (%d/%d)", r.Passed, r.Total)
	case r.Pass():
		return fmt.Sprintf("pass (%d/%d)", r.Passed, r.Total)
	default:
		return fmt.Sprintf("fail (%d/%d)", r.Passed, r.Total)
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
