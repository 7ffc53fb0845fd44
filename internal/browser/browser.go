package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Browser is a single chromedp-driven tab and the process behind it
type Browser struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Launch starts a browser with opts and opens its first tab. With stealth
// set, the webdriver init script is installed before any navigation.
// parent bounds the browser's lifetime.
func Launch(parent context.Context, opts []chromedp.ExecAllocatorOption, stealth bool) (*Browser, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	ctx, ctxCancel := chromedp.NewContext(allocCtx)

	b := &Browser{
		ctx: ctx,
		cancel: func() {
			ctxCancel()
			allocCancel()
		},
	}

	var actions []chromedp.Action
	if stealth {
		actions = append(actions, InstallStealth())
	}

	// The first Run allocates the browser process.
	if err := chromedp.Run(ctx, actions...); err != nil {
		b.Close()
		return nil, err
	}

	return b, nil
}

// scope derives a run context from the tab that also ends with ctx
func (b *Browser) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(b.ctx)
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		prev := cancel
		cancel = func() {
			cancelDeadline()
			prev()
		}
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := b.scope(ctx)
	defer cancel()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		// Surface the caller's deadline rather than the derived one.
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return err
}

// Navigate starts loading url and returns once the main frame has committed
// to the new document. Unlike chromedp.Navigate it does not wait for the load
// event, so slow subresources never count against the caller's deadline.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	return b.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		committed := make(chan struct{}, 1)
		listenCtx, stop := context.WithCancel(ctx)
		defer stop()
		chromedp.ListenTarget(listenCtx, func(ev interface{}) {
			if e, ok := ev.(*page.EventFrameNavigated); ok && e.Frame.ParentID == "" {
				select {
				case committed <- struct{}{}:
				default:
				}
			}
		})

		_, _, errorText, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("page load error %s", errorText)
		}

		select {
		case <-committed:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))
}

// WaitBody blocks until the committed document has a body element
func (b *Browser) WaitBody(ctx context.Context) error {
	return b.run(ctx, chromedp.WaitReady("body", chromedp.ByQuery))
}

func (b *Browser) Location(ctx context.Context) (string, error) {
	var url string
	err := b.run(ctx, chromedp.Location(&url))
	return url, err
}

func (b *Browser) Title(ctx context.Context) (string, error) {
	var title string
	err := b.run(ctx, chromedp.Title(&title))
	return title, err
}

// Source returns the serialized DOM, which is what the challenge markers are
// matched against.
func (b *Browser) Source(ctx context.Context) (string, error) {
	var html string
	err := b.run(ctx, chromedp.Evaluate(`document.documentElement ? document.documentElement.outerHTML : ""`, &html))
	return html, err
}

const selectorTextJS = `(() => {
	try {
		const el = document.querySelector(%s);
		return el ? el.innerText : "";
	} catch (e) {
		return "";
	}
})()`

// SelectorText returns the rendered text of the first element matching
// selector without waiting for it to appear.
func (b *Browser) SelectorText(ctx context.Context, selector string) (string, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return "", err
	}
	var text string
	err = b.run(ctx, chromedp.Evaluate(fmt.Sprintf(selectorTextJS, quoted), &text))
	return text, err
}

func (b *Browser) BodyText(ctx context.Context) (string, error) {
	var text string
	err := b.run(ctx, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text))
	return text, err
}

// MoveMouse dispatches a pointer move to the given viewport coordinates
func (b *Browser) MoveMouse(ctx context.Context, x, y float64) error {
	return b.run(ctx, chromedp.MouseEvent(input.MouseMoved, x, y))
}

// ScrollBy scrolls the window vertically by dy pixels
func (b *Browser) ScrollBy(ctx context.Context, dy int) error {
	return b.run(ctx, chromedp.Evaluate(fmt.Sprintf(`window.scrollBy(0, %d)`, dy), nil))
}

// Close terminates the tab and the browser process. Safe to call repeatedly.
func (b *Browser) Close() {
	if b == nil || b.cancel == nil {
		return
	}
	b.cancel()
	b.cancel = nil
}
