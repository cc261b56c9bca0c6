// Package page implements the page accessor on top of headless Chrome via
// chromedp. One Browser is shared per run; each task gets its own tab.
package page

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/propfetch/rightmove-scraper/internal/scraper"
)

// Config controls the shared browser process.
type Config struct {
	UserAgent  string
	Headless   bool
	NavTimeout time.Duration
}

const defaultNavTimeout = 30 * time.Second

// Browser owns the chromedp allocator and warm browser context.
type Browser struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	navTimeout    time.Duration
	logger        *zap.Logger
}

// NewBrowser starts (and warms up) a headless browser process.
func NewBrowser(cfg Config, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = defaultNavTimeout
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Browser{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		navTimeout:    cfg.NavTimeout,
		logger:        logger,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (b *Browser) Close(context.Context) error {
	if b == nil {
		return nil
	}
	b.browserCancel()
	b.allocCancel()
	return nil
}

// Open creates a tab, navigates to url, and returns its accessor. The release
// function closes the tab.
func (b *Browser) Open(ctx context.Context, url string) (scraper.PageAccessor, func(), error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)

	navCtx, cancelNav := context.WithTimeout(tabCtx, b.navTimeout)
	defer cancelNav()
	stop := context.AfterFunc(ctx, cancelNav)
	defer stop()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		cancelTab()
		return nil, nil, fmt.Errorf("navigate %s: %w", url, err)
	}

	acc := &Accessor{
		url:    url,
		tabCtx: tabCtx,
		logger: b.logger,
	}
	return acc, cancelTab, nil
}

// Accessor exposes DOM queries for one tab. It is stateless per call except
// for the crash flag set by the observer installed in WatchCrashes.
type Accessor struct {
	url    string
	tabCtx context.Context
	logger *zap.Logger

	crashed      atomic.Bool
	blockedMu    sync.Mutex
	blocked      map[network.ResourceType]struct{}
	intercepting bool
}

// URL returns the page target.
func (a *Accessor) URL() string {
	return a.url
}

// BlockResourceTypes intercepts requests in the fetch domain and fails those
// whose resource type matches, so images and styling never download.
func (a *Accessor) BlockResourceTypes(ctx context.Context, types ...string) error {
	if err := a.checkCrash(); err != nil {
		return err
	}
	a.blockedMu.Lock()
	if a.blocked == nil {
		a.blocked = make(map[network.ResourceType]struct{})
	}
	for _, t := range types {
		a.blocked[resourceType(t)] = struct{}{}
	}
	install := !a.intercepting
	a.intercepting = true
	a.blockedMu.Unlock()

	if install {
		chromedp.ListenTarget(a.tabCtx, func(ev any) {
			paused, ok := ev.(*fetch.EventRequestPaused)
			if !ok {
				return
			}
			go a.resolveRequest(paused)
		})
	}

	if err := a.run(ctx, 0, fetch.Enable()); err != nil {
		return fmt.Errorf("enable request interception: %w", err)
	}
	return nil
}

func (a *Accessor) resolveRequest(paused *fetch.EventRequestPaused) {
	c := chromedp.FromContext(a.tabCtx)
	execCtx := cdp.WithExecutor(a.tabCtx, c.Target)

	a.blockedMu.Lock()
	_, block := a.blocked[paused.ResourceType]
	a.blockedMu.Unlock()

	var err error
	if block {
		err = fetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
	} else {
		err = fetch.ContinueRequest(paused.RequestID).Do(execCtx)
	}
	if err != nil && a.tabCtx.Err() == nil {
		a.logger.Debug("request interception resolve failed", zap.Error(err))
	}
}

// WatchCrashes flags the accessor when the renderer target crashes. Every
// later call fails with a PAGE_CRASH error, which the orchestrator retries.
func (a *Accessor) WatchCrashes(context.Context) error {
	if err := a.checkCrash(); err != nil {
		return err
	}
	chromedp.ListenTarget(a.tabCtx, func(ev any) {
		if _, ok := ev.(*inspector.EventTargetCrashed); ok {
			a.crashed.Store(true)
		}
	})
	return nil
}

// WaitVisible blocks until the selector renders or the timeout fires.
func (a *Accessor) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := a.checkCrash(); err != nil {
		return err
	}
	if err := a.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return a.checkCrash()
}

// ExtractJSON evaluates expr in the page and unmarshals its result into out.
func (a *Accessor) ExtractJSON(ctx context.Context, expr string, out any) error {
	if err := a.checkCrash(); err != nil {
		return err
	}
	if err := a.run(ctx, 0, chromedp.Evaluate(expr, out)); err != nil {
		return fmt.Errorf("evaluate extraction expression: %w", err)
	}
	return a.checkCrash()
}

// HTML returns the current document markup.
func (a *Accessor) HTML(ctx context.Context) (string, error) {
	if err := a.checkCrash(); err != nil {
		return "", err
	}
	var html string
	if err := a.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("outer html: %w", err)
	}
	return html, nil
}

// run executes actions against the tab, honoring the caller's context and an
// optional timeout.
func (a *Accessor) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx := a.tabCtx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if a.crashed.Load() {
			return scraper.NewError(scraper.KindPageCrash, "page crashed", err)
		}
		return err
	}
	return nil
}

func (a *Accessor) checkCrash() error {
	if a.crashed.Load() {
		return scraper.NewError(scraper.KindPageCrash, "page crashed", nil)
	}
	return nil
}

func resourceType(name string) network.ResourceType {
	switch strings.ToLower(name) {
	case "image":
		return network.ResourceTypeImage
	case "stylesheet":
		return network.ResourceTypeStylesheet
	case "font":
		return network.ResourceTypeFont
	case "media":
		return network.ResourceTypeMedia
	case "script":
		return network.ResourceTypeScript
	default:
		return network.ResourceType(name)
	}
}
