package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// rodEngine drives Chrome with go-rod.
type rodEngine struct {
	launch  *launcher.Launcher
	browser *rod.Browser
	page    *rod.Page
}

func newRodEngine(ctx context.Context, opts Options) (*rodEngine, error) {
	l := launcher.New().Headless(opts.Headless).
		Set("disable-gpu").
		Set("window-size", fmt.Sprintf("%d,%d", opts.WindowWidth, opts.WindowHeight))
	if opts.ExecPath != "" {
		l = l.Bin(opts.ExecPath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	p, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, fmt.Errorf("open page: %w", err)
	}
	return &rodEngine{launch: l, browser: b, page: p}, nil
}

func (e *rodEngine) element(ctx context.Context, sel selector) (*rod.Element, error) {
	p := e.page.Context(ctx)
	if sel.css {
		return p.Element(sel.expr)
	}
	return p.ElementX(sel.expr)
}

func (e *rodEngine) navigate(ctx context.Context, url string) error {
	p := e.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return err
	}
	return p.WaitLoad()
}

func (e *rodEngine) waitFor(ctx context.Context, sel selector) error {
	_, err := e.element(ctx, sel)
	return err
}

func (e *rodEngine) click(ctx context.Context, sel selector) error {
	el, err := e.element(ctx, sel)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodEngine) typeText(ctx context.Context, sel selector, text string) error {
	el, err := e.element(ctx, sel)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(text)
}

func (e *rodEngine) eval(ctx context.Context, expr string) (string, error) {
	res, err := e.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:      "() => " + expr,
		ByValue: true,
	})
	if err != nil {
		return "", err
	}
	return res.Value.String(), nil
}

func (e *rodEngine) clickWithDialog(ctx context.Context, sel selector, accept bool) (string, error) {
	el, err := e.element(ctx, sel)
	if err != nil {
		return "", err
	}

	p := e.page.Context(ctx)
	wait, handle := p.HandleDialog()

	clicked := make(chan error, 1)
	go func() { clicked <- el.Click(proto.InputMouseButtonLeft, 1) }()

	ev := wait()
	if ev == nil {
		return "", fmt.Errorf("no dialog after clicking %s: %w", sel.raw, ctx.Err())
	}
	if err := handle(&proto.PageHandleJavaScriptDialog{Accept: accept}); err != nil {
		return "", err
	}
	if err := <-clicked; err != nil {
		return "", err
	}
	return ev.Message, nil
}

func (e *rodEngine) screenshot(ctx context.Context) ([]byte, error) {
	return e.page.Context(ctx).Screenshot(false, nil)
}

func (e *rodEngine) close() error {
	err := e.browser.Close()
	e.launch.Kill()
	return err
}
