package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned by Run for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one stored run.
type RunRecord struct {
	Seq       int64         `json:"seq"`
	ID        string        `json:"id"`
	Scenario  string        `json:"scenario"`
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration_ns"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Total     int           `json:"total"`
	Aborted   bool          `json:"aborted,omitempty"`
	Error     string        `json:"error,omitempty"`
	TraceHash string        `json:"trace_hash"`
}

// Pass reports whether the stored run passed.
func (r RunRecord) Pass() bool {
	return !r.Aborted && r.Error == "" && r.Failed == 0
}

// CaseRecord is one stored case result.
type CaseRecord struct {
	Index      int           `json:"index"`
	Name       string        `json:"name"`
	Action     string        `json:"action"`
	Expected   string        `json:"expected"`
	Pass       bool          `json:"pass"`
	Errors     []string      `json:"errors,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	Screenshot string        `json:"screenshot,omitempty"`
}

// HistoryFilter selects runs. A zero Limit means 20.
type HistoryFilter struct {
	Scenario string
	Limit    int
}

const runColumns = `seq, id, scenario, started_at, duration_ns, passed, failed, total, aborted, error, trace_hash`

// History returns recent runs, newest first.
func (s *Store) History(ctx context.Context, f HistoryFilter) ([]RunRecord, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	var (
		rows *sql.Rows
		err  error
	)
	if f.Scenario != "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+runColumns+`
			FROM runs
			WHERE scenario = ?
			ORDER BY seq DESC
			LIMIT ?
		`, f.Scenario, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+runColumns+`
			FROM runs
			ORDER BY seq DESC
			LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Run returns a stored run and its cases in case order.
func (s *Store) Run(ctx context.Context, id string) (RunRecord, []CaseRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return RunRecord{}, nil, err
	}

	cases, err := s.cases(ctx, id)
	if err != nil {
		return RunRecord{}, nil, err
	}
	return r, cases, nil
}

// LastTraceHash returns the trace hash of the newest run of scenario, or
// "" when it never ran.
func (s *Store) LastTraceHash(ctx context.Context, scenario string) (string, error) {
	var h string
	err := s.db.QueryRowContext(ctx, `
		SELECT trace_hash FROM runs
		WHERE scenario = ?
		ORDER BY seq DESC
		LIMIT 1
	`, scenario).Scan(&h)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query last trace hash: %w", err)
	}
	return h, nil
}

func (s *Store) cases(ctx context.Context, runID string) ([]CaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, name, action, expected, pass, errors, duration_ns, screenshot
		FROM case_results
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query case results: %w", err)
	}
	defer rows.Close()

	cases := []CaseRecord{}
	for rows.Next() {
		var (
			c        CaseRecord
			errsJSON string
			dur      int64
		)
		if err := rows.Scan(&c.Index, &c.Name, &c.Action, &c.Expected, &c.Pass, &errsJSON, &dur, &c.Screenshot); err != nil {
			return nil, fmt.Errorf("scan case result: %w", err)
		}
		c.Duration = time.Duration(dur)
		if c.Errors, err = unmarshalErrors(errsJSON); err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate case results: %w", err)
	}
	return cases, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var (
		r       RunRecord
		started string
		dur     int64
	)
	err := row.Scan(&r.Seq, &r.ID, &r.Scenario, &started, &dur,
		&r.Passed, &r.Failed, &r.Total, &r.Aborted, &r.Error, &r.TraceHash)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, err
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}
	r.Duration = time.Duration(dur)
	if r.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return RunRecord{}, fmt.Errorf("parse started_at %q: %w", started, err)
	}
	return r, nil
}
