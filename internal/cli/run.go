package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/formharness/internal/browser"
	"github.com/roach88/formharness/internal/config"
	"github.com/roach88/formharness/internal/fixture"
	"github.com/roach88/formharness/internal/harness"
	"github.com/roach88/formharness/internal/logging"
	"github.com/roach88/formharness/internal/report"
	"github.com/roach88/formharness/internal/store"
	"github.com/roach88/formharness/internal/sutdb"
)

// SessionOpener opens the browser and database session of one scenario.
type SessionOpener func(ctx context.Context, cfg *config.Config, scenario string, logger *zap.Logger) (*harness.Session, error)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Parallel     int
	KeepGoing    bool
	Golden       string // compare traces with golden files in this dir
	UpdateGolden bool   // write golden files instead of comparing
	StableKeys   bool   // deterministic unique tokens
	NoHistory    bool
	Report       string // xlsx report path
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [pattern]",
		Short: "Run scenarios against the console",
		Long: `Run fixture scenarios in a real browser and check every submission
against the console's messages and database.

The optional pattern is a glob over scenario names.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed or aborted
  2 - Command error (bad config, missing scenarios, session failure)

Examples:
  formharness run
  formharness run "items_*" --parallel 4
  formharness run --stable-keys --golden testdata/golden
  formharness run --report results/report.xlsx --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := ""
			if len(args) == 1 {
				pattern = args[0]
			}
			return runScenarios(opts, pattern, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Parallel, "parallel", "p", 0, "scenarios run at once (default from config)")
	cmd.Flags().BoolVar(&opts.KeepGoing, "keep-going", false, "continue a scenario after an infrastructure error")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "compare traces with golden files in this directory")
	cmd.Flags().BoolVar(&opts.UpdateGolden, "update-golden", false, "write golden files instead of comparing")
	cmd.Flags().BoolVar(&opts.StableKeys, "stable-keys", false, "use sequential unique tokens")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "do not record the run")
	cmd.Flags().StringVar(&opts.Report, "report", "", "write an xlsx report to this file")

	return cmd
}

func runScenarios(opts *RunOptions, pattern string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cfg, err := opts.loadConfig(false)
	if err != nil {
		return err
	}
	if opts.Parallel > 0 {
		cfg.Parallel = opts.Parallel
	}
	if opts.KeepGoing {
		cfg.KeepGoing = true
	}
	if opts.UpdateGolden && opts.Golden == "" {
		return NewExitError(ExitCommandError, "--update-golden needs --golden")
	}
	if err := cfg.EnsurePassword(opts.prompt()); err != nil {
		return WrapExitError(ExitCommandError, "no password", err)
	}

	var keys fixture.KeyGenerator = fixture.UUIDKeys{}
	if opts.StableKeys || opts.Golden != "" {
		keys = fixture.NewSequenceKeys("fh")
	}
	provider, err := fixture.Load(cfg.Scenarios, keys)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}
	names, err := provider.Filter(pattern)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid pattern", err)
	}
	if len(names) == 0 {
		return out.Emit(report.Summarize(nil), func(w io.Writer) error {
			_, err := fmt.Fprintln(w, "No scenarios found.")
			return err
		})
	}

	logger, err := opts.logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Warn("received signal, stopping scenarios", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}
	}()

	opener := opts.Sessions
	if opener == nil {
		opener = openSession
	}
	factory := func(ctx context.Context, scenario string) (*harness.Session, error) {
		return opener(ctx, cfg, scenario, logger)
	}

	out.VerboseLog("Running %d scenario(s), %d at a time", len(names), cfg.Parallel)
	results, err := harness.RunAll(ctx, provider, names, cfg.Parallel, factory)
	if err != nil {
		return WrapExitError(ExitCommandError, "run failed", err)
	}

	sum := report.Summarize(results)
	if opts.Golden != "" {
		if err := checkGolden(opts, out, results, &sum); err != nil {
			return err
		}
	}

	if !opts.NoHistory && cfg.History != "" {
		if err := recordHistory(ctx, cfg.History, results, &sum); err != nil {
			return err
		}
	}

	if opts.Report != "" {
		sheet, err := report.WriteXLSX(opts.Report, results, time.Now())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to write report", err)
		}
		out.VerboseLog("Report written to %s (sheet %s)", opts.Report, sheet)
	}

	err = out.Emit(sum, func(w io.Writer) error {
		report.WriteText(w, sum)
		return nil
	})
	if err != nil {
		return err
	}

	if !sum.Pass() {
		failed := 0
		for _, sc := range sum.Scenarios {
			if !sc.Pass {
				failed++
			}
		}
		return reportedFailure("%d of %d scenarios failed", failed, len(sum.Scenarios))
	}
	return nil
}

// checkGolden writes or compares the golden trace of every run and folds
// mismatches into the summary.
func checkGolden(opts *RunOptions, out *OutputFormatter, results []*harness.RunResult, sum *report.Summary) error {
	for _, r := range results {
		if r == nil {
			continue
		}
		sc := sum.Find(r.Scenario)
		if sc == nil {
			continue
		}
		if opts.UpdateGolden {
			if err := harness.WriteGolden(opts.Golden, r); err != nil {
				return WrapExitError(ExitCommandError, "failed to update golden file", err)
			}
			continue
		}
		res, err := harness.CompareGolden(opts.Golden, r)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				sc.Fail("no golden file (run with --update-golden to create it)")
				continue
			}
			return WrapExitError(ExitCommandError, "golden comparison failed", err)
		}
		if !res.Matched {
			sc.Fail("trace does not match golden file (run with --update-golden to regenerate)")
			out.VerboseLog("%s", res.DiffDetails)
		}
	}
	return nil
}

// recordHistory stores every run under a fresh id.
func recordHistory(ctx context.Context, path string, results []*harness.RunResult, sum *report.Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return WrapExitError(ExitCommandError, "failed to create history directory", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open history", err)
	}
	defer st.Close()

	for _, r := range results {
		if r == nil {
			continue
		}
		id := uuid.NewString()
		if err := st.RecordRun(ctx, id, r); err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		if sc := sum.Find(r.Scenario); sc != nil {
			sc.RunID = id
		}
	}
	return nil
}

// openSession connects to the console database and starts a browser.
func openSession(ctx context.Context, cfg *config.Config, scenario string, logger *zap.Logger) (*harness.Session, error) {
	log := logging.Scenario(logger, scenario)

	db, err := sutdb.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, log)
	if err != nil {
		return nil, err
	}
	b, err := browser.New(ctx, cfg.BrowserOptions(), log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &harness.Session{
		Driver: b,
		DB:     db,
		Config: cfg.HarnessConfig(),
		Logger: log,
		Clock:  harness.NewClock(),
	}, nil
}
