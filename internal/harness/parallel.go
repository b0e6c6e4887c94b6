package harness

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/formharness/internal/fixture"
)

// SessionFactory opens an independent session for one scenario.
type SessionFactory func(ctx context.Context, scenario string) (*Session, error)

// RunAll runs the named scenarios, at most parallel at a time, each in a
// session of its own. Results are in the order of names. An aborted
// scenario is reported in its result and does not stop the others; a
// configuration or session error cancels the whole run.
func RunAll(ctx context.Context, p *fixture.Provider, names []string, parallel int, open SessionFactory) ([]*RunResult, error) {
	if parallel < 1 {
		parallel = 1
	}
	results := make([]*RunResult, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, name := range names {
		g.Go(func() error {
			s, err := open(gctx, name)
			if err != nil {
				return fmt.Errorf("scenario %s: open session: %w", name, err)
			}
			defer s.Close()

			res, err := NewRunner(p, s).Run(gctx, name)
			if err != nil && !errors.Is(err, ErrAborted) {
				return fmt.Errorf("scenario %s: %w", name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
