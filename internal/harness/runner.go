package harness

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/formharness/internal/browser"
	"github.com/roach88/formharness/internal/fixture"
	"github.com/roach88/formharness/internal/form"
	"github.com/roach88/formharness/internal/ir"
	"github.com/roach88/formharness/internal/logging"
	"github.com/roach88/formharness/internal/rowquery"
)

// Runner drives the cases of a scenario through one Session.
type Runner struct {
	provider *fixture.Provider
	session  *Session
	assert   *Assertions
	logger   *zap.Logger
	clock    Clock
}

// NewRunner creates a runner. A nil logger or clock gets a default.
func NewRunner(p *fixture.Provider, s *Session) *Runner {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := s.Clock
	if clock == nil {
		clock = NewClock()
	}
	return &Runner{
		provider: p,
		session:  s,
		assert:   NewAssertions(s.Driver, s.DB, logger),
		logger:   logger,
		clock:    clock,
	}
}

// Run executes every case of the named scenario in order.
//
// Configuration errors are returned without a result. When an
// infrastructure error or cancellation stops the run early, the partial
// result is returned together with an error wrapping ErrAborted.
func (r *Runner) Run(ctx context.Context, name string) (*RunResult, error) {
	scenario, err := r.provider.Scenario(name)
	if err != nil {
		return nil, err
	}
	cases, err := r.provider.Provide(name)
	if err != nil {
		return nil, err
	}

	queries := make([]rowquery.Select, 0, len(scenario.HashQueries))
	for i, h := range scenario.HashQueries {
		q, err := h.Query()
		if err != nil {
			return nil, fmt.Errorf("hash query %d: %w", i, err)
		}
		queries = append(queries, q)
	}

	sr := &scenarioRun{
		Runner:  r,
		name:    name,
		page:    scenario.Page.WithDefaults(),
		queries: queries,
		renames: map[string]string{},
		logger:  logging.Scenario(r.logger, name),
	}
	res := &RunResult{Scenario: name, Total: len(cases), Started: time.Now()}
	sr.logger.Info("scenario started", zap.Int("cases", len(cases)))

	abort := func(cause error) (*RunResult, error) {
		res.Aborted = true
		res.Error = cause.Error()
		res.Duration = time.Since(res.Started)
		sr.logger.Error("scenario aborted", zap.Error(cause))
		return res, fmt.Errorf("%w: %s: %w", ErrAborted, name, cause)
	}

	if cfg := r.session.Config; cfg.User != "" {
		res.Setup = append(res.Setup, TraceEvent{Seq: r.clock.Next(), Type: EventLogin, Detail: cfg.User})
		if err := r.session.Driver.Login(ctx, cfg.User, cfg.Password); err != nil {
			return abort(fmt.Errorf("login: %w", err))
		}
	}

	for _, tc := range cases {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}
		cr, err := sr.runCase(ctx, tc)
		res.add(cr)
		if err != nil && (ctx.Err() != nil || (IsInfrastructure(err) && !r.session.Config.KeepGoing)) {
			return abort(fmt.Errorf("case %d (%s): %w", tc.Index, tc.Name, err))
		}
	}

	res.Duration = time.Since(res.Started)
	sr.logger.Info("scenario finished",
		zap.Int("passed", res.Passed),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// scenarioRun holds the state that lives across the cases of one run.
type scenarioRun struct {
	*Runner
	name    string
	page    fixture.Page
	queries []rowquery.Select
	// renames maps a record's old link text to its name after an update.
	renames map[string]string
	logger  *zap.Logger
}

func (s *scenarioRun) resolveTarget(name string) string {
	for range len(s.renames) {
		next, ok := s.renames[name]
		if !ok {
			break
		}
		name = next
	}
	return name
}

func (s *scenarioRun) runCase(ctx context.Context, tc fixture.TestCase) (CaseResult, error) {
	start := time.Now()
	c := &caseRun{
		scenarioRun: s,
		tc:          tc,
		logger:      logging.Case(s.logger, tc.Index, tc.Name),
		result: CaseResult{
			Index:    tc.Index,
			Name:     tc.Name,
			Action:   tc.Action,
			Expected: tc.Expected,
			Pass:     true,
		},
	}

	err := c.run(ctx)
	if err != nil {
		c.event(EventError, err.Error())
		c.result.fail(err.Error())
	}
	if !c.result.Pass {
		c.screenshot(ctx)
	}
	c.result.Duration = time.Since(start)

	if c.result.Pass {
		c.logger.Info("case passed", zap.Duration("duration", c.result.Duration))
	} else {
		c.logger.Warn("case failed", zap.Strings("errors", c.result.Errors), zap.Error(err))
	}
	return c.result, err
}

// caseRun drives one case.
type caseRun struct {
	*scenarioRun
	tc     fixture.TestCase
	result CaseResult
	logger *zap.Logger
}

func (c *caseRun) event(typ, detail string) {
	c.result.Trace = append(c.result.Trace, TraceEvent{Seq: c.clock.Next(), Type: typ, Detail: detail})
}

// step records an event and runs fn.
func (c *caseRun) step(typ, detail string, fn func() error) error {
	c.event(typ, detail)
	c.logger.Debug(typ, zap.String("step", detail))
	return fn()
}

// check records an assertion outcome. Only errors that prevented the
// check are returned.
func (c *caseRun) check(res AssertionResult, err error) error {
	if err != nil {
		return err
	}
	c.result.Assertions = append(c.result.Assertions, res)
	if res.Matched {
		c.event(EventAssert, res.Name+" ok")
		return nil
	}
	c.event(EventAssert, res.Name+" FAILED")
	c.result.fail(res.Err().Error())
	return nil
}

func (c *caseRun) run(ctx context.Context) error {
	switch c.tc.Action {
	case fixture.ActionCreate, fixture.ActionClone:
		return c.create(ctx)
	case fixture.ActionUpdate:
		return c.update(ctx)
	case fixture.ActionSimpleUpdate:
		return c.simpleUpdate(ctx)
	case fixture.ActionDelete:
		return c.delete(ctx)
	case fixture.ActionCancel:
		return c.cancel(ctx)
	default:
		return fmt.Errorf("unknown action %q", c.tc.Action)
	}
}

func (c *caseRun) create(ctx context.Context) error {
	fail := c.tc.Expected == fixture.OutcomeFail
	var hashes []string
	if fail {
		var err error
		if hashes, err = c.snapshot(ctx); err != nil {
			return err
		}
	}

	// A clone starts from the source record's tables.
	var existing form.FieldSet
	if c.tc.Action == fixture.ActionClone {
		if err := c.openRecord(ctx, c.resolveTarget(c.tc.Target)); err != nil {
			return err
		}
		if err := c.click(ctx, browser.Button(c.page.Clone)); err != nil {
			return err
		}
		var err error
		if existing, err = c.readTables(ctx); err != nil {
			return err
		}
	} else if err := c.openCreate(ctx); err != nil {
		return err
	}

	if err := c.fill(ctx, c.tc.Fields); err != nil {
		return err
	}
	key, err := c.key(ctx)
	if err != nil {
		return err
	}
	if err := c.submit(ctx, c.page.Submit); err != nil {
		return err
	}

	if fail {
		return c.expectRejected(ctx, hashes, key)
	}

	if err := c.expectAccepted(ctx, key); err != nil {
		return err
	}
	if !c.result.Pass {
		return nil
	}
	return c.verify(ctx, c.linkText(key), existing)
}

func (c *caseRun) update(ctx context.Context) error {
	target := c.resolveTarget(c.tc.Target)
	fail := c.tc.Expected == fixture.OutcomeFail
	var hashes []string
	if fail {
		var err error
		if hashes, err = c.snapshot(ctx); err != nil {
			return err
		}
	}

	if err := c.openRecord(ctx, target); err != nil {
		return err
	}
	existing, err := c.readTables(ctx)
	if err != nil {
		return err
	}
	if err := c.fill(ctx, c.tc.Fields); err != nil {
		return err
	}
	key, err := c.key(ctx)
	if err != nil {
		return err
	}
	if err := c.submit(ctx, c.page.UpdateSubmit); err != nil {
		return err
	}

	if fail {
		return c.expectRejected(ctx, hashes, key)
	}

	if err := c.expectAccepted(ctx, key); err != nil {
		return err
	}
	if !c.result.Pass {
		return nil
	}
	link := c.linkText(target)
	if link != target {
		c.renames[target] = link
		c.logger.Debug("record renamed", zap.String("from", target), zap.String("to", link))
	}
	return c.verify(ctx, link, existing)
}

func (c *caseRun) simpleUpdate(ctx context.Context) error {
	if err := c.openRecord(ctx, c.resolveTarget(c.tc.Target)); err != nil {
		return err
	}
	hashes, err := c.snapshot(ctx)
	if err != nil {
		return err
	}
	if err := c.submit(ctx, c.page.UpdateSubmit); err != nil {
		return err
	}
	titles := c.page.TitlesFor(c.tc.Action)
	if err := c.check(c.assert.ExpectMessage(ctx, browser.MessageGood, titles.Success, nil)); err != nil {
		return err
	}
	return c.expectUnchanged(ctx, hashes)
}

func (c *caseRun) delete(ctx context.Context) error {
	if err := c.openRecord(ctx, c.resolveTarget(c.tc.Target)); err != nil {
		return err
	}
	key, err := c.key(ctx)
	if err != nil {
		return err
	}

	locator := browser.Button(c.page.Delete)
	err = c.step(EventAlert, "accept "+locator, func() error {
		text, err := c.session.Driver.AcceptAlert(ctx, locator)
		c.logger.Debug("confirmation accepted", zap.String("text", text))
		return err
	})
	if err != nil {
		return err
	}

	titles := c.page.TitlesFor(c.tc.Action)
	if err := c.check(c.assert.ExpectMessage(ctx, browser.MessageGood, titles.Success, nil)); err != nil {
		return err
	}
	return c.expectKeyCount(ctx, key, 0)
}

func (c *caseRun) cancel(ctx context.Context) error {
	hashes, err := c.snapshot(ctx)
	if err != nil {
		return err
	}
	if err := c.openCreate(ctx); err != nil {
		return err
	}
	if err := c.fill(ctx, c.tc.Fields); err != nil {
		return err
	}
	key, err := c.key(ctx)
	if err != nil {
		return err
	}
	if err := c.click(ctx, browser.Button(c.page.Cancel)); err != nil {
		return err
	}
	if err := c.expectUnchanged(ctx, hashes); err != nil {
		return err
	}
	return c.expectKeyCount(ctx, key, 0)
}

// expectRejected checks a submission that must fail: the bad message with
// the expected lines, no change to any hashed table and no row under key.
func (c *caseRun) expectRejected(ctx context.Context, hashes []string, key string) error {
	title := c.tc.ErrorTitle
	if title == "" {
		title = c.page.TitlesFor(c.tc.Action).Failure
	}
	if err := c.check(c.assert.ExpectMessage(ctx, browser.MessageBad, title, c.tc.ErrorLines)); err != nil {
		return err
	}
	if c.page.Dialog {
		if err := c.closeDialog(ctx); err != nil {
			return err
		}
	}
	if err := c.expectUnchanged(ctx, hashes); err != nil {
		return err
	}
	if c.tc.Action == fixture.ActionCreate || c.tc.Action == fixture.ActionClone {
		return c.expectKeyCount(ctx, key, 0)
	}
	return nil
}

// expectAccepted checks a submission that must succeed: the good message,
// exactly one row under key, and the expected columns of that row.
func (c *caseRun) expectAccepted(ctx context.Context, key string) error {
	titles := c.page.TitlesFor(c.tc.Action)
	if err := c.check(c.assert.ExpectMessage(ctx, browser.MessageGood, titles.Success, nil)); err != nil {
		return err
	}
	if err := c.expectKeyCount(ctx, key, 1); err != nil {
		return err
	}
	if len(c.tc.DB) == 0 {
		return nil
	}
	where := map[string]ir.IRValue{c.page.UniqueKey: ir.IRString(key)}
	return c.check(c.assert.ExpectRow(ctx, c.page.TargetTable, where, c.tc.DB))
}

// verify re-opens the record and reads every checked field back.
func (c *caseRun) verify(ctx context.Context, link string, existing form.FieldSet) error {
	if len(c.tc.Check) == 0 {
		return nil
	}
	if err := c.openRecord(ctx, link); err != nil {
		return err
	}
	c.event(EventRead, fmt.Sprintf("%d fields", len(c.tc.Check)))
	if err := c.check(c.assert.ExpectFields(ctx, c.page.Fields, c.tc.Check, existing)); err != nil {
		return err
	}
	if c.page.Dialog {
		return c.closeDialog(ctx)
	}
	return nil
}

func (c *caseRun) snapshot(ctx context.Context) ([]string, error) {
	hashes := make([]string, len(c.queries))
	for i, q := range c.queries {
		c.event(EventHash, q.Table)
		h, err := c.session.DB.Hash(ctx, q)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("hash captured", zap.String("table", q.Table), zap.String("hash", h))
		hashes[i] = h
	}
	return hashes, nil
}

func (c *caseRun) expectUnchanged(ctx context.Context, hashes []string) error {
	for i, q := range c.queries {
		if err := c.check(c.assert.ExpectUnchangedHash(ctx, q, hashes[i])); err != nil {
			return err
		}
	}
	return nil
}

func (c *caseRun) expectKeyCount(ctx context.Context, key string, want int) error {
	if key == "" && want == 0 {
		return nil
	}
	q := rowquery.Count{
		Table: c.page.TargetTable,
		Where: rowquery.Equals{Column: c.page.UniqueKey, Value: ir.IRString(key)},
	}
	return c.check(c.assert.ExpectRowCount(ctx, q, want))
}

// key returns the record key: the submitted unique field, or the value the
// form shows when the case does not set it.
func (c *caseRun) key(ctx context.Context) (string, error) {
	if v, ok := c.tc.Fields.Get(c.page.UniqueField); ok {
		if t, ok := v.(form.Text); ok {
			return string(t), nil
		}
	}
	var key string
	locator := c.page.Fields.Spec(c.page.UniqueField).Locate(c.page.UniqueField)
	err := c.step(EventRead, locator, func() error {
		var err error
		key, err = c.session.Driver.ReadField(ctx, locator)
		return err
	})
	return key, err
}

// linkText is the name the record is listed under after the submission.
func (c *caseRun) linkText(fallback string) string {
	if v, ok := c.tc.Fields.Get(c.page.LinkField); ok {
		if t, ok := v.(form.Text); ok && t != "" {
			return string(t)
		}
	}
	return fallback
}

// readTables reads the table fields a case is about to change, so their
// expected content can be reconciled against it.
func (c *caseRun) readTables(ctx context.Context) (form.FieldSet, error) {
	var labels []string
	for _, f := range c.tc.Fields {
		switch c.page.Fields.Spec(f.Label).Kind {
		case form.KindMultifield, form.KindInterval:
			labels = append(labels, f.Label)
		}
	}
	if len(labels) == 0 {
		return nil, nil
	}
	c.event(EventRead, fmt.Sprintf("%d tables", len(labels)))
	return c.page.Fields.Read(ctx, c.session.Driver, labels)
}

func (c *caseRun) openList(ctx context.Context) error {
	return c.step(EventOpen, c.page.URL, func() error {
		return c.session.Driver.Open(ctx, c.page.URL)
	})
}

func (c *caseRun) openCreate(ctx context.Context) error {
	if err := c.openList(ctx); err != nil {
		return err
	}
	if c.page.Open == "" {
		return nil
	}
	return c.click(ctx, browser.Button(c.page.Open))
}

func (c *caseRun) openRecord(ctx context.Context, link string) error {
	if err := c.openList(ctx); err != nil {
		return err
	}
	return c.click(ctx, "link:"+link)
}

func (c *caseRun) click(ctx context.Context, locator string) error {
	return c.step(EventClick, locator, func() error {
		return c.session.Driver.Click(ctx, locator)
	})
}

func (c *caseRun) fill(ctx context.Context, fields form.FieldSet) error {
	for _, f := range fields {
		err := c.step(EventFill, f.Label+" = "+form.Describe(f.Value), func() error {
			return c.page.Fields.Fill(ctx, c.session.Driver, form.FieldSet{f})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *caseRun) submit(ctx context.Context, button string) error {
	return c.step(EventSubmit, button, func() error {
		return c.session.Driver.Submit(ctx, button)
	})
}

func (c *caseRun) closeDialog(ctx context.Context) error {
	return c.step(EventDialog, "close", func() error {
		return c.session.Driver.CloseDialog(ctx)
	})
}

func (c *caseRun) screenshot(ctx context.Context) {
	if !c.session.Config.Screenshots || ctx.Err() != nil {
		return
	}
	name := fmt.Sprintf("%s_case%02d", c.scenarioRun.name, c.tc.Index)
	c.event(EventCapture, name)
	path, err := c.session.Driver.Screenshot(ctx, name)
	if err != nil {
		c.logger.Warn("screenshot failed", zap.Error(err))
		return
	}
	c.result.Screenshot = path
}
