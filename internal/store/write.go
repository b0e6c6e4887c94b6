package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/formharness/internal/harness"
)

// RecordRun stores a run and its case results in one transaction.
// Recording the same id twice is a no-op.
func (s *Store) RecordRun(ctx context.Context, id string, r *harness.RunResult) error {
	th, err := traceHash(r)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, scenario, started_at, duration_ns, passed, failed, total, aborted, error, trace_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		id,
		r.Scenario,
		r.Started.UTC().Format(time.RFC3339Nano),
		int64(r.Duration),
		r.Passed,
		r.Failed,
		r.Total,
		r.Aborted,
		r.Error,
		th,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	for _, c := range r.Cases {
		errsJSON, err := marshalErrors(c.Errors)
		if err != nil {
			return fmt.Errorf("record run: case %d: %w", c.Index, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO case_results
			(run_id, idx, name, action, expected, pass, errors, duration_ns, screenshot)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			id,
			c.Index,
			c.Name,
			string(c.Action),
			string(c.Expected),
			c.Pass,
			errsJSON,
			int64(c.Duration),
			c.Screenshot,
		)
		if err != nil {
			return fmt.Errorf("record run: case %d: %w", c.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run: commit: %w", err)
	}
	return nil
}

// Prune keeps the newest keep runs of every scenario and deletes the rest
// together with their case results. It returns the number of runs deleted.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs
		WHERE seq IN (
			SELECT seq FROM (
				SELECT seq, ROW_NUMBER() OVER (PARTITION BY scenario ORDER BY seq DESC) AS rn
				FROM runs
			)
			WHERE rn > ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return n, nil
}
