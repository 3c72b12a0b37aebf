// internal/browser/chrome.go
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentxen/internal/config"
)

// ChromeDriver launches Chromium-family browsers through chromedp.
type ChromeDriver struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	mu       sync.Mutex
	launched []*chromeBrowser
}

// NewChromeDriver creates a driver for the given browser settings.
func NewChromeDriver(cfg config.BrowserConfig, logger *zap.Logger) *ChromeDriver {
	return &ChromeDriver{cfg: cfg, logger: logger.Named("browser")}
}

// Launch starts the browser process and waits for its first tab.
func (d *ChromeDriver) Launch(ctx context.Context) (Browser, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), DefaultAllocatorOptions(d.cfg)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(d.logger.Sugar().Debugf),
		chromedp.WithErrorf(d.logger.Sugar().Warnf),
	)

	// The first Run on a fresh context starts the process and binds it to
	// browserCtx, so it must not run under the caller's shorter-lived ctx.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()

	select {
	case err := <-started:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser launch aborted: %w", ctx.Err())
	}

	d.logger.Info("Browser launched.", zap.Bool("headless", d.cfg.Headless), zap.Bool("maximized", d.cfg.Maximized))
	b := &chromeBrowser{
		cfg:           d.cfg,
		logger:        d.logger,
		ctx:           browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}
	d.mu.Lock()
	d.launched = append(d.launched, b)
	d.mu.Unlock()
	return b, nil
}

// Close shuts down every browser this driver launched that is still open.
func (d *ChromeDriver) Close() error {
	d.mu.Lock()
	launched := d.launched
	d.launched = nil
	d.mu.Unlock()

	for _, b := range launched {
		if err := b.Close(); err != nil {
			return err
		}
	}
	return nil
}

type chromeBrowser struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	ctx           context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc

	mu           sync.Mutex
	initialTaken bool
	closed       bool
}

// NewPage returns a tab. The first call adopts the blank tab the browser
// opened at startup; later calls open new tabs.
func (b *chromeBrowser) NewPage(ctx context.Context) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	if !b.initialTaken {
		b.initialTaken = true
		return &chromePage{cfg: b.cfg, logger: b.logger, ctx: b.ctx}, nil
	}

	tabCtx, tabCancel := chromedp.NewContext(b.ctx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	return &chromePage{cfg: b.cfg, logger: b.logger, ctx: tabCtx, cancel: tabCancel}, nil
}

func (b *chromeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	// Cancelling the browser context asks Chrome to close gracefully; the
	// allocator cancel then waits for the process to exit.
	b.browserCancel()
	b.allocCancel()
	b.logger.Info("Browser closed.")
	return nil
}

type chromePage struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
	ctx    context.Context
	// cancel is nil for the adopted startup tab, which lives as long as the browser.
	cancel context.CancelFunc
}

// run executes actions on the tab, bounded by ctx and timeout.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) (context.Context, error) {
	opCtx, opCancel := context.WithTimeout(ctx, timeout)
	defer opCancel()

	runCtx, runCancel := CombineContext(p.ctx, opCtx)
	defer runCancel()

	err := chromedp.Run(runCtx, actions...)
	return opCtx, err
}

// classify turns a raw chromedp failure into a descriptive error.
func (p *chromePage) classify(ctx, opCtx context.Context, op, selector string, timeout time.Duration, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s canceled: %w", op, ctx.Err())
	}
	if p.ctx.Err() != nil {
		return fmt.Errorf("%s failed: %w", op, ErrClosed)
	}
	if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		// Query actions poll until the selector matches, so a timeout means it never did.
		return fmt.Errorf("%s timed out after %v for selector '%s': %w: %w", op, timeout, selector, ErrElementNotFound, context.DeadlineExceeded)
	}
	return fmt.Errorf("%s failed for selector '%s': %w", op, selector, err)
}

func (p *chromePage) Goto(ctx context.Context, url string) error {
	p.logger.Info("Navigating page.", zap.String("url", url))
	timeout := p.cfg.NavigationTimeout

	opCtx, err := p.run(ctx, timeout, chromedp.Navigate(url))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("navigation canceled: %w", ctx.Err())
	}
	if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("navigation to %s timed out after %v: %w: %w", url, timeout, ErrNavigation, context.DeadlineExceeded)
	}
	return fmt.Errorf("navigation to %s: %w: %w", url, ErrNavigation, err)
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	p.logger.Debug("Attempting to click element", zap.String("selector", selector))
	timeout := p.cfg.ActionTimeout

	opCtx, err := p.run(ctx, timeout,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return p.classify(ctx, opCtx, "click", selector, timeout, err)
	}
	return nil
}

// clearScript empties an input-like element and notifies frameworks that
// listen for input/change events. It reports false when nothing was cleared.
const clearScript = `(function(selector) {
	const el = document.querySelector(selector);
	if (!el || el.disabled || el.readOnly) {
		return false;
	}
	if (el.isContentEditable) {
		el.textContent = "";
	} else {
		el.value = "";
	}
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
})(%s)`

func (p *chromePage) Fill(ctx context.Context, selector, text string) error {
	p.logger.Debug("Attempting to fill element", zap.String("selector", selector), zap.Int("text_length", len(text)))
	timeout := p.cfg.ActionTimeout

	quoted, err := json.Marshal(selector)
	if err != nil {
		return fmt.Errorf("invalid selector '%s': %w", selector, err)
	}

	var cleared bool
	opCtx, err := p.run(ctx, timeout,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(clearScript, quoted), &cleared, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
			return ep.WithReturnByValue(true).WithSilent(true)
		}),
	)
	if err != nil {
		return p.classify(ctx, opCtx, "fill (clear)", selector, timeout, err)
	}
	if !cleared {
		return fmt.Errorf("fill failed for selector '%s': element is disabled, read-only or detached", selector)
	}

	if text == "" {
		return nil
	}
	opCtx, err = p.run(ctx, timeout, chromedp.SendKeys(selector, text, chromedp.ByQuery))
	if err != nil {
		return p.classify(ctx, opCtx, "fill", selector, timeout, err)
	}
	return nil
}

func (p *chromePage) TextContent(ctx context.Context, selector string) (string, error) {
	timeout := p.cfg.ActionTimeout

	var text string
	opCtx, err := p.run(ctx, timeout,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.TextContent(selector, &text, chromedp.ByQuery),
	)
	if err != nil {
		return "", p.classify(ctx, opCtx, "extract", selector, timeout, err)
	}
	return text, nil
}

func (p *chromePage) Screenshot(ctx context.Context, path string) error {
	timeout := p.cfg.ActionTimeout

	var buf []byte
	opCtx, err := p.run(ctx, timeout, chromedp.CaptureScreenshot(&buf))
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("screenshot canceled: %w", ctx.Err())
		}
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("screenshot timed out after %v: %w", timeout, context.DeadlineExceeded)
		}
		return fmt.Errorf("screenshot capture failed: %w", err)
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write screenshot to %s: %w", path, err)
	}
	p.logger.Debug("Screenshot saved.", zap.String("path", path), zap.Int("bytes", len(buf)))
	return nil
}

func (p *chromePage) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}
