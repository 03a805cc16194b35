package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/chat"
)

type BrowserOptions struct {
	URL         string
	Headless    bool
	StepTimeout time.Duration
	ChatID      string
	Selectors   Selectors
}

// BrowserSurface drives a Chrome instance through the DevTools protocol.
type BrowserSurface struct {
	opts BrowserOptions

	ctx           context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	closeOnce     sync.Once
}

// BrowserOpener returns an Opener that launches a browser per session.
func BrowserOpener(opts BrowserOptions) Opener {
	return func(ctx context.Context) (Surface, error) {
		return OpenBrowser(ctx, opts)
	}
}

// OpenBrowser starts the browser, loads the chat page and waits for the chat
// container. The browser lives until Close, independent of ctx.
func OpenBrowser(ctx context.Context, opts BrowserOptions) (*BrowserSurface, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("poller: chat url is empty")
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 10 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	bctx, cancelBrowser := chromedp.NewContext(actx)

	s := &BrowserSurface{
		opts:          opts,
		ctx:           bctx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}

	// The first Run allocates the browser; it must get the long-lived
	// context, not a per-step timeout.
	if err := chromedp.Run(bctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	if err := s.run(ctx,
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(opts.Selectors.Container, chromedp.ByQuery),
	); err != nil {
		s.Close()
		return nil, fmt.Errorf("open chat page: %w", err)
	}

	return s, nil
}

func (s *BrowserSurface) Scan(ctx context.Context) ([]chat.Message, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML(s.opts.Selectors.Container, &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("read chat container: %w", err)
	}
	return ExtractMessages(html, s.opts.Selectors, s.opts.ChatID)
}

func (s *BrowserSurface) Send(ctx context.Context, text string) error {
	sel := s.opts.Selectors
	actions := []chromedp.Action{
		chromedp.WaitVisible(sel.Input, chromedp.ByQuery),
		chromedp.SendKeys(sel.Input, text, chromedp.ByQuery),
	}
	if sel.Submit != "" {
		actions = append(actions, chromedp.Click(sel.Submit, chromedp.ByQuery))
	} else {
		actions = append(actions, chromedp.SendKeys(sel.Input, kb.Enter, chromedp.ByQuery))
	}

	if err := s.run(ctx, actions...); err != nil {
		return fmt.Errorf("type reply: %w", err)
	}
	return nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *BrowserSurface) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = chromedp.Cancel(s.ctx)
		s.cancelBrowser()
		s.cancelAlloc()
	})
	return err
}

// run executes actions with the per-step timeout, aborting early when the
// caller's ctx ends.
func (s *BrowserSurface) run(ctx context.Context, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(s.ctx, s.opts.StepTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(tctx, actions...)
}
