package extractor

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const linksScript = `(function() {
	const out = [];
	for (const a of document.querySelectorAll('a[href]')) {
		const href = a.href || a.getAttribute('href');
		if (href) out.push(href);
	}
	return out;
})()`

type ChromeConfig struct {
	Headless bool
	ExecPath string
}

// Chrome is a Browser backed by a single headless Chrome tab. Visits are
// serialized; the extractor never runs them in parallel anyway.
type Chrome struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewChrome starts the browser process. Close must be called to release it.
func NewChrome(parent context.Context, cfg ChromeConfig) (*Chrome, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.UserAgent(userAgent),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so a missing binary surfaces at startup.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &Chrome{
		ctx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}, nil
}

// Visit navigates to url and reads the visible text and every anchor href.
// The deadline of ctx bounds the whole visit.
func (c *Chrome) Visit(ctx context.Context, url string) (Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	runCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var page Page
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &page.Text),
		chromedp.Evaluate(linksScript, &page.Links),
		chromedp.Location(&page.URL),
	)
	if err != nil {
		if ctx.Err() != nil {
			return Page{}, ctx.Err()
		}
		return Page{}, err
	}
	return page, nil
}

func (c *Chrome) Close() {
	c.cancel()
}
