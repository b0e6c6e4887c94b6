package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/formharness/internal/form"
)

// Driver is the form-level view of a browser session.
type Driver interface {
	form.Widgets

	Open(ctx context.Context, path string) error
	FillField(ctx context.Context, label string, value form.Value) error
	Submit(ctx context.Context, button string) error
	ReadMessage(ctx context.Context) (Message, error)
	Exists(ctx context.Context, locator string) (bool, error)
	CloseDialog(ctx context.Context) error
	// AcceptAlert clicks locator, which must raise a JavaScript dialog,
	// accepts the dialog and returns its text.
	AcceptAlert(ctx context.Context, locator string) (string, error)
	DismissAlert(ctx context.Context, locator string) (string, error)
	Login(ctx context.Context, user, password string) error
	Screenshot(ctx context.Context, name string) (string, error)
	Close() error
}

// Engine names.
const (
	EngineChromedp = "chromedp"
	EngineRod      = "rod"
)

// Options configures a browser session.
type Options struct {
	Engine        string
	BaseURL       string
	Headless      bool
	Timeout       time.Duration
	WindowWidth   int
	WindowHeight  int
	ScreenshotDir string
	// ExecPath overrides the browser binary.
	ExecPath string
}

func (o Options) withDefaults() Options {
	if o.Engine == "" {
		o.Engine = EngineChromedp
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.WindowWidth == 0 {
		o.WindowWidth = 1920
	}
	if o.WindowHeight == 0 {
		o.WindowHeight = 1080
	}
	return o
}

// engine is what a browser automation library has to provide.
type engine interface {
	navigate(ctx context.Context, url string) error
	waitFor(ctx context.Context, sel selector) error
	click(ctx context.Context, sel selector) error
	typeText(ctx context.Context, sel selector, text string) error
	eval(ctx context.Context, expr string) (string, error)
	clickWithDialog(ctx context.Context, sel selector, accept bool) (string, error)
	screenshot(ctx context.Context) ([]byte, error)
	close() error
}

// Browser implements Driver.
type Browser struct {
	eng    engine
	opts   Options
	base   *url.URL
	logger *zap.Logger
	shots  int
}

// New starts a browser with the configured engine.
func New(ctx context.Context, opts Options, logger *zap.Logger) (*Browser, error) {
	opts = opts.withDefaults()

	var (
		eng engine
		err error
	)
	switch opts.Engine {
	case EngineChromedp:
		eng, err = newChromeEngine(ctx, opts)
	case EngineRod:
		eng, err = newRodEngine(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown browser engine %q", opts.Engine)
	}
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", opts.Engine, err)
	}
	return newBrowser(eng, opts, logger)
}

func newBrowser(eng engine, opts Options, logger *zap.Logger) (*Browser, error) {
	opts = opts.withDefaults()
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Browser{eng: eng, opts: opts, base: base, logger: logger.With(zap.String("engine", opts.Engine))}, nil
}

// Close shuts the browser down.
func (b *Browser) Close() error {
	return b.eng.close()
}

// URL resolves path against the base URL.
func (b *Browser) URL(path string) string {
	ref, err := url.Parse(path)
	if err != nil || ref.IsAbs() {
		return path
	}
	return b.base.ResolveReference(ref).String()
}

// Open navigates and waits for the page body.
func (b *Browser) Open(ctx context.Context, path string) error {
	target := b.URL(path)
	b.logger.Debug("open", zap.String("url", target))
	return b.do(ctx, "open", selector{raw: target}, func(ctx context.Context) error {
		return b.eng.navigate(ctx, target)
	})
}

// Click waits for locator and clicks it.
func (b *Browser) Click(ctx context.Context, locator string) error {
	sel := resolve(locator)
	b.logger.Debug("click", zap.String("locator", locator))
	return b.do(ctx, "click", sel, func(ctx context.Context) error {
		return b.eng.click(ctx, sel)
	})
}

// SetText clears an input and types text into it.
func (b *Browser) SetText(ctx context.Context, locator, text string) error {
	sel := resolve(locator)
	b.logger.Debug("set text", zap.String("label", locator))
	return b.do(ctx, "set text", sel, func(ctx context.Context) error {
		return b.eng.typeText(ctx, sel, text)
	})
}

// SetSelect chooses a dropdown option or radio button by its visible text.
func (b *Browser) SetSelect(ctx context.Context, locator, option string) error {
	var problem string
	if err := b.script(ctx, "select", locator, scriptSetSelect, option, &problem); err != nil {
		return err
	}
	if problem != "" {
		return fmt.Errorf("select %q on %s: %s", option, locator, problem)
	}
	return nil
}

// SetChecked sets a checkbox.
func (b *Browser) SetChecked(ctx context.Context, locator string, on bool) error {
	var problem string
	if err := b.script(ctx, "check", locator, scriptSetChecked, on, &problem); err != nil {
		return err
	}
	if problem != "" {
		return fmt.Errorf("check %s: %s", locator, problem)
	}
	return nil
}

// SetMulti replaces the entries of a multiselect. Each value is typed into
// the search input and picked from the suggestion list.
func (b *Browser) SetMulti(ctx context.Context, locator string, values []string) error {
	if err := b.script(ctx, "clear multiselect", locator, scriptClearMulti, nil, nil); err != nil {
		return err
	}
	for _, v := range values {
		if err := b.SetText(ctx, locator, v); err != nil {
			return err
		}
		suggestion := fmt.Sprintf("xpath://ul[contains(@class,'multiselect-suggest')]/li[@data-label=%s]", xpathLiteral(v))
		if err := b.Click(ctx, suggestion); err != nil {
			return fmt.Errorf("pick %q: %w", v, err)
		}
	}
	return nil
}

// ReadField returns the displayed value of a field.
func (b *Browser) ReadField(ctx context.Context, locator string) (string, error) {
	var v string
	err := b.script(ctx, "read", locator, scriptReadField, nil, &v)
	return v, err
}

// ReadMulti returns the selected entries of a multiselect.
func (b *Browser) ReadMulti(ctx context.Context, locator string) ([]string, error) {
	var v []string
	err := b.script(ctx, "read multiselect", locator, scriptReadMulti, nil, &v)
	return v, err
}

// CountRows counts the rows of a dynamic table by element id.
func (b *Browser) CountRows(ctx context.Context, table string) (int, error) {
	var n int
	err := b.script(ctx, "count rows", "id:"+table, scriptCountRows, nil, &n)
	return n, err
}

// FillField fills label according to the value's type. Tables need a
// layout and go through form.Layout.Fill instead.
func (b *Browser) FillField(ctx context.Context, label string, value form.Value) error {
	switch v := value.(type) {
	case form.Text:
		return b.SetText(ctx, label, string(v))
	case form.Bool:
		return b.SetChecked(ctx, label, bool(v))
	case form.List:
		return b.SetMulti(ctx, label, v)
	default:
		return fmt.Errorf("fill %q: %T values need a field layout", label, value)
	}
}

// Submit clicks the submit button and waits for the page to settle.
func (b *Browser) Submit(ctx context.Context, button string) error {
	if err := b.Click(ctx, Button(button)); err != nil {
		return err
	}
	return b.do(ctx, "submit", selector{raw: "body", expr: "body", css: true}, func(ctx context.Context) error {
		return b.eng.waitFor(ctx, selector{raw: "body", expr: "body", css: true})
	})
}

// ReadMessage waits for the message box and parses it.
func (b *Browser) ReadMessage(ctx context.Context) (Message, error) {
	sel := selector{raw: MessageSelector, expr: MessageSelector, css: true}
	var html string
	err := b.do(ctx, "read message", sel, func(ctx context.Context) error {
		if err := b.eng.waitFor(ctx, sel); err != nil {
			return err
		}
		return b.evalScript(ctx, scriptOuterHTML, sel, nil, &html)
	})
	if err != nil {
		return Message{}, err
	}
	msg, err := ParseMessage(html)
	if err != nil {
		return Message{}, err
	}
	b.logger.Debug("message", zap.String("kind", string(msg.Kind)), zap.String("title", msg.Title))
	return msg, nil
}

// Exists reports whether locator matches an element right now.
func (b *Browser) Exists(ctx context.Context, locator string) (bool, error) {
	var ok bool
	sel := resolve(locator)
	expr, err := buildScript(scriptExists, sel, nil)
	if err != nil {
		return false, err
	}
	raw, err := b.eng.eval(ctx, expr)
	if err != nil {
		return false, err
	}
	if _, err := decodeScript(raw, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// CloseDialog closes the overlay dialog the form lives in.
func (b *Browser) CloseDialog(ctx context.Context) error {
	return b.Click(ctx, "xpath://div[contains(@class,'overlay-dialogue')]//button[contains(@class,'btn-overlay-close')]")
}

// AcceptAlert clicks locator and accepts the confirmation it raises.
func (b *Browser) AcceptAlert(ctx context.Context, locator string) (string, error) {
	return b.alert(ctx, locator, true)
}

// DismissAlert clicks locator and dismisses the confirmation it raises.
func (b *Browser) DismissAlert(ctx context.Context, locator string) (string, error) {
	return b.alert(ctx, locator, false)
}

func (b *Browser) alert(ctx context.Context, locator string, accept bool) (string, error) {
	sel := resolve(locator)
	var text string
	err := b.do(ctx, "alert", sel, func(ctx context.Context) error {
		var err error
		text, err = b.eng.clickWithDialog(ctx, sel, accept)
		return err
	})
	b.logger.Debug("alert", zap.String("text", text), zap.Bool("accept", accept))
	return text, err
}

// Login signs in through the console's login page.
func (b *Browser) Login(ctx context.Context, user, password string) error {
	if err := b.Open(ctx, "index.php"); err != nil {
		return err
	}
	if err := b.SetText(ctx, "id:name", user); err != nil {
		return err
	}
	if err := b.SetText(ctx, "id:password", password); err != nil {
		return err
	}
	if err := b.Submit(ctx, "id:enter"); err != nil {
		return err
	}
	still, err := b.Exists(ctx, "id:enter")
	if err != nil {
		return err
	}
	if still {
		return &LoginError{User: user}
	}
	b.logger.Info("logged in", zap.String("user", user))
	return nil
}

// Screenshot saves a PNG of the viewport under the screenshot directory
// and returns its path.
func (b *Browser) Screenshot(ctx context.Context, name string) (string, error) {
	if b.opts.ScreenshotDir == "" {
		return "", nil
	}
	data, err := b.eng.screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("screenshot: %w", err)
	}
	if err := os.MkdirAll(b.opts.ScreenshotDir, 0o755); err != nil {
		return "", err
	}
	b.shots++
	path := filepath.Join(b.opts.ScreenshotDir, fmt.Sprintf("%02d_%s.png", b.shots, sanitize(name)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// script waits for locator, then runs fn against it.
func (b *Browser) script(ctx context.Context, op, locator, fn string, arg, out any) error {
	sel := resolve(locator)
	return b.do(ctx, op, sel, func(ctx context.Context) error {
		if err := b.eng.waitFor(ctx, sel); err != nil {
			return err
		}
		return b.evalScript(ctx, fn, sel, arg, out)
	})
}

func (b *Browser) evalScript(ctx context.Context, fn string, sel selector, arg, out any) error {
	expr, err := buildScript(fn, sel, arg)
	if err != nil {
		return err
	}
	raw, err := b.eng.eval(ctx, expr)
	if err != nil {
		return err
	}
	found, err := decodeScript(raw, out)
	if err != nil {
		return err
	}
	if !found {
		return &ElementNotFoundError{Locator: sel.raw}
	}
	return nil
}

// do runs fn under the configured timeout and classifies failures.
func (b *Browser) do(ctx context.Context, op string, sel selector, fn func(context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	err := fn(opCtx)
	if err == nil {
		return nil
	}

	var notFound *ElementNotFoundError
	if errors.As(err, &notFound) {
		notFound.Op = op
		return notFound
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || opCtx.Err() != nil {
		if sel.expr != "" && !b.present(ctx, sel) {
			return &ElementNotFoundError{Locator: sel.raw, Op: op}
		}
		return &TimeoutError{Op: op, Locator: sel.raw, After: b.opts.Timeout, Err: err}
	}
	return fmt.Errorf("%s %s: %w", op, sel.raw, err)
}

// present checks for sel with a short deadline of its own.
func (b *Browser) present(ctx context.Context, sel selector) bool {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	expr, err := buildScript(scriptExists, sel, nil)
	if err != nil {
		return false
	}
	raw, err := b.eng.eval(checkCtx, expr)
	if err != nil {
		return false
	}
	var ok bool
	if _, err := decodeScript(raw, &ok); err != nil {
		return false
	}
	return ok
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
