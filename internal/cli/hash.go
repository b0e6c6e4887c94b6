package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/formharness/internal/fixture"
	"github.com/roach88/formharness/internal/sutdb"
)

// HashOptions holds flags for the hash command.
type HashOptions struct {
	*RootOptions
	OrderBy string
	Where   []string // column=value
}

// HashResult is the output of the hash command.
type HashResult struct {
	Table string `json:"table"`
	Rows  int    `json:"rows"`
	Hash  string `json:"hash"`
}

// NewHashCommand creates the hash command.
func NewHashCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HashOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "hash <table>",
		Short: "Print the row-set hash of a table",
		Long: `Print the row-set hash of a console table, the value hash queries in
scenarios compare before and after a rejected submission.

Examples:
  formharness hash items --order-by itemid
  formharness hash hostmacro --order-by hostmacroid --where hostid=40001`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return hashTable(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.OrderBy, "order-by", "", "comma-separated columns that order the rows (required)")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "column=value filter (repeatable)")
	cmd.MarkFlagRequired("order-by")

	return cmd
}

func hashTable(opts *HashOptions, table string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	hq := fixture.HashQuery{Table: table, OrderBy: opts.OrderBy, Where: map[string]any{}}
	for _, w := range opts.Where {
		col, val, ok := strings.Cut(w, "=")
		if !ok || col == "" {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid --where %q: want column=value", w))
		}
		hq.Where[col] = val
	}
	q, err := hq.Query()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid query", err)
	}

	cfg, err := opts.loadConfig(true)
	if err != nil {
		return err
	}
	if cfg.Database.Driver == "" || cfg.Database.DSN == "" {
		return NewExitError(ExitCommandError, "database.driver and database.dsn are required")
	}

	logger, err := opts.logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := sutdb.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer db.Close()

	rows, err := db.Rows(ctx, q)
	if err != nil {
		return WrapExitError(ExitCommandError, "query failed", err)
	}
	hash, err := db.Hash(ctx, q)
	if err != nil {
		return WrapExitError(ExitCommandError, "hash failed", err)
	}

	result := HashResult{Table: table, Rows: len(rows), Hash: hash}
	return out.Emit(result, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s  %s (%d rows)\n", result.Hash, result.Table, result.Rows)
		return err
	})
}
