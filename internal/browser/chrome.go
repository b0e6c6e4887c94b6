package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// chromeEngine drives Chrome through the DevTools protocol with chromedp.
type chromeEngine struct {
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

func newChromeEngine(ctx context.Context, opts Options) (*chromeEngine, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	// The browser outlives the caller's context; Close tears it down.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	tab, cancelTab := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(tab); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, err
	}
	return &chromeEngine{tab: tab, cancelTab: cancelTab, cancelAlloc: cancelAlloc}, nil
}

// run executes actions on the tab, stopping when ctx is done.
func (e *chromeEngine) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(e.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func by(sel selector) chromedp.QueryOption {
	if sel.css {
		return chromedp.ByQuery
	}
	return chromedp.BySearch
}

func (e *chromeEngine) navigate(ctx context.Context, url string) error {
	return e.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (e *chromeEngine) waitFor(ctx context.Context, sel selector) error {
	return e.run(ctx, chromedp.WaitReady(sel.expr, by(sel)))
}

func (e *chromeEngine) click(ctx context.Context, sel selector) error {
	return e.run(ctx, chromedp.Click(sel.expr, by(sel)))
}

func (e *chromeEngine) typeText(ctx context.Context, sel selector, text string) error {
	actions := []chromedp.Action{
		chromedp.WaitVisible(sel.expr, by(sel)),
		chromedp.Clear(sel.expr, by(sel)),
	}
	if text != "" {
		actions = append(actions, chromedp.SendKeys(sel.expr, text, by(sel)))
	}
	return e.run(ctx, actions...)
}

func (e *chromeEngine) eval(ctx context.Context, expr string) (string, error) {
	var out string
	if err := e.run(ctx, chromedp.Evaluate(expr, &out)); err != nil {
		return "", err
	}
	return out, nil
}

func (e *chromeEngine) clickWithDialog(ctx context.Context, sel selector, accept bool) (string, error) {
	listenCtx, cancel := context.WithCancel(e.tab)
	defer cancel()

	messages := make(chan string, 1)
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		if ev, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			select {
			case messages <- ev.Message:
			default:
			}
			go chromedp.Run(e.tab, page.HandleJavaScriptDialog(accept))
		}
	})

	if err := e.click(ctx, sel); err != nil {
		return "", err
	}

	select {
	case msg := <-messages:
		return msg, nil
	case <-ctx.Done():
		return "", fmt.Errorf("no dialog after clicking %s: %w", sel.raw, ctx.Err())
	}
}

func (e *chromeEngine) screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := e.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (e *chromeEngine) close() error {
	e.cancelTab()
	e.cancelAlloc()
	return nil
}
