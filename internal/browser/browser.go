package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"
)

const (
	defaultNavTimeout = 30 * time.Second
	defaultActionTime = 10 * time.Second
)

// Options configure the launched browser and its pages.
type Options struct {
	Headless      bool
	SlowMo        time.Duration
	NavTimeout    time.Duration
	ActionTimeout time.Duration
	Width, Height int
}

// Launcher owns playwright lifecycle.
type Launcher struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    Options
	log     zerolog.Logger
}

func NewLauncher(ctx context.Context, opts Options, log zerolog.Logger) (*Launcher, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = defaultNavTimeout
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = defaultActionTime
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--autoplay-policy=no-user-gesture-required",
		},
	}
	if opts.SlowMo > 0 {
		launch.SlowMo = playwright.Float(float64(opts.SlowMo.Milliseconds()))
	}
	browser, err := pw.Chromium.Launch(launch)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	log.Debug().Bool("headless", opts.Headless).Msg("chromium launched")
	return &Launcher{pw: pw, browser: browser, opts: opts, log: log}, nil
}

// NewPage opens a fresh context, restoring cookies from storagePath when the
// file exists.
func (l *Launcher) NewPage(ctx context.Context, storagePath string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(true),
	}
	if l.opts.Width > 0 && l.opts.Height > 0 {
		opts.Viewport = &playwright.Size{Width: l.opts.Width, Height: l.opts.Height}
	}
	restored := false
	if strings.TrimSpace(storagePath) != "" {
		if _, err := os.Stat(storagePath); err == nil {
			opts.StorageStatePath = playwright.String(storagePath)
			restored = true
		}
	}
	bctx, err := l.browser.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("new context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	page.SetDefaultTimeout(float64(l.opts.ActionTimeout.Milliseconds()))
	l.log.Debug().Bool("restored", restored).Msg("page opened")
	return &Page{
		context:    bctx,
		page:       page,
		navTimeout: l.opts.NavTimeout,
		restored:   restored,
	}, nil
}

func (l *Launcher) Close() error {
	if l.browser != nil {
		_ = l.browser.Close()
	}
	if l.pw != nil {
		return l.pw.Stop()
	}
	return nil
}

// Page is the playwright-backed Surface.
type Page struct {
	context    playwright.BrowserContext
	page       playwright.Page
	navTimeout time.Duration
	restored   bool
}

var _ Surface = (*Page)(nil)

// Restored reports whether cookies were loaded from a saved storage state.
func (p *Page) Restored() bool { return p.restored }

func (p *Page) URL() string { return p.page.URL() }

func (p *Page) Close(ctx context.Context) error {
	_ = ctx
	if p.page != nil {
		_ = p.page.Close()
	}
	if p.context != nil {
		return p.context.Close()
	}
	return nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(float64(p.navTimeout.Milliseconds())),
	})
	return wrap(err)
}

// FillSelector types text into the first visible match of selector.
func (p *Page) FillSelector(ctx context.Context, selector, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc := p.page.Locator(selector).First()
	if err := loc.WaitFor(playwright.LocatorWaitForOptions{State: playwright.WaitForSelectorStateVisible}); err != nil {
		return wrap(err)
	}
	return wrap(loc.Fill(text))
}

func (p *Page) SaveState(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	state, err := p.context.StorageState()
	if err != nil {
		return wrap(err)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal storage: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func (p *Page) Exists(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	n, err := p.page.Locator(selector).Count()
	if err != nil {
		return false, wrap(err)
	}
	return n > 0, nil
}

func (p *Page) Find(ctx context.Context, selector string) (Element, bool, error) {
	return first(ctx, p.page.Locator(selector))
}

func (p *Page) FindAll(ctx context.Context, selector string) ([]Element, error) {
	return all(ctx, p.page.Locator(selector))
}

func (p *Page) WaitFor(ctx context.Context, selector string, timeout time.Duration) (Element, bool) {
	loc := p.page.Locator(selector).First()
	if !waitState(ctx, loc, playwright.WaitForSelectorStateAttached, timeout) {
		return nil, false
	}
	return &element{loc: loc}, true
}

func (p *Page) WaitAll(ctx context.Context, selector string, timeout time.Duration) ([]Element, bool) {
	loc := p.page.Locator(selector)
	if !waitState(ctx, loc.First(), playwright.WaitForSelectorStateAttached, timeout) {
		return nil, false
	}
	els, err := all(ctx, loc)
	if err != nil || len(els) == 0 {
		return nil, false
	}
	return els, true
}

func (p *Page) WaitClickable(ctx context.Context, selector string, timeout time.Duration) (Element, bool) {
	loc := p.page.Locator(selector).First()
	if !waitState(ctx, loc, playwright.WaitForSelectorStateVisible, timeout) {
		return nil, false
	}
	enabled, err := loc.IsEnabled()
	if err != nil || !enabled {
		return nil, false
	}
	return &element{loc: loc}, true
}

func (p *Page) Eval(ctx context.Context, script string, args ...any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := p.page.Evaluate(script, args...)
	return v, wrap(err)
}

// Drag presses at from, moves to to in small steps and releases. Sortable
// lists only react to intermediate mouse moves, so a single jump is not
// enough.
func (p *Page) Drag(ctx context.Context, from, to Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mouse := p.page.Mouse()
	if err := mouse.Move(from.X, from.Y); err != nil {
		return wrap(err)
	}
	if err := mouse.Down(); err != nil {
		return wrap(err)
	}
	if err := mouse.Move(to.X, to.Y, playwright.MouseMoveOptions{Steps: playwright.Int(12)}); err != nil {
		_ = mouse.Up()
		return wrap(err)
	}
	return wrap(mouse.Up())
}

func waitState(ctx context.Context, loc playwright.Locator, state *playwright.WaitForSelectorState, timeout time.Duration) bool {
	budget, ok := waitBudget(ctx, timeout)
	if !ok {
		return false
	}
	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   state,
		Timeout: playwright.Float(float64(budget.Milliseconds())),
	})
	return err == nil
}

// waitBudget clips timeout to the ctx deadline. Playwright reads a zero
// timeout as "wait forever", so less than a millisecond left means no wait.
func waitBudget(ctx context.Context, timeout time.Duration) (time.Duration, bool) {
	if ctx.Err() != nil {
		return 0, false
	}
	if timeout <= 0 {
		timeout = defaultActionTime
	}
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if timeout < time.Millisecond {
		return 0, false
	}
	return timeout, true
}

func first(ctx context.Context, loc playwright.Locator) (Element, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	n, err := loc.Count()
	if err != nil {
		return nil, false, wrap(err)
	}
	if n == 0 {
		return nil, false, nil
	}
	return &element{loc: loc.First()}, true, nil
}

func all(ctx context.Context, loc playwright.Locator) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, err := loc.Count()
	if err != nil {
		return nil, wrap(err)
	}
	out := make([]Element, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &element{loc: loc.Nth(i)})
	}
	return out, nil
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("playwright: %w", err)
}
