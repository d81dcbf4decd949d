package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ProxyUsername  string
	ProxyPassword  string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1366,
		ViewportHeight: 900,
		AcceptLanguage: "en-US,en;q=0.9",
		TimezoneID:     "America/New_York",
		Locale:         "en-US",
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"DNT":    "1",
		},
	}
}

// PlaywrightEngine launches a fresh chromium per session.
type PlaywrightEngine struct {
	opts   *Options
	logger *slog.Logger
}

func NewPlaywrightEngine(opts *Options) *PlaywrightEngine {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &PlaywrightEngine{
		opts:   opts,
		logger: slog.Default().With("component", "browser"),
	}
}

func (e *PlaywrightEngine) launchOptions(headless bool) playwright.BrowserTypeLaunchOptions {
	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			fmt.Sprintf("--window-size=%d,%d", e.opts.ViewportWidth, e.opts.ViewportHeight),
		},
	}

	if e.opts.ProxyServer != "" {
		proxy := &playwright.Proxy{Server: e.opts.ProxyServer}
		if e.opts.ProxyUsername != "" {
			proxy.Username = playwright.String(e.opts.ProxyUsername)
			proxy.Password = playwright.String(e.opts.ProxyPassword)
		}
		launchOpts.Proxy = proxy
	}

	return launchOpts
}

func (e *PlaywrightEngine) contextOptions(state []byte) (playwright.BrowserNewContextOptions, error) {
	headers := map[string]string{}
	for k, v := range e.opts.ExtraHeaders {
		headers[k] = v
	}
	if e.opts.AcceptLanguage != "" {
		headers["Accept-Language"] = e.opts.AcceptLanguage
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String(e.opts.UserAgent),
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            playwright.String(e.opts.Locale),
		TimezoneId:        playwright.String(e.opts.TimezoneID),
		Viewport: &playwright.Size{
			Width:  e.opts.ViewportWidth,
			Height: e.opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	}

	if len(state) > 0 {
		var restored playwright.OptionalStorageState
		if err := json.Unmarshal(state, &restored); err != nil {
			return contextOpts, fmt.Errorf("failed to decode storage state: %w", err)
		}
		contextOpts.StorageState = &restored
	}

	return contextOpts, nil
}

func (e *PlaywrightEngine) Open(ctx context.Context, opts SessionOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(e.launchOptions(e.opts.Headless && !opts.Headed))
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts, err := e.contextOptions(opts.StorageState)
	if err != nil {
		// a corrupt state must not prevent a fresh login
		e.logger.Warn("ignoring unreadable storage state", "error", err)
		contextOpts.StorageState = nil
	}

	bctx, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &playwrightSession{
		pw:      pw,
		browser: browser,
		context: bctx,
		timeout: e.opts.Timeout,
	}, nil
}

type playwrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	timeout time.Duration
}

func (s *playwrightSession) NewPage() (Page, error) {
	page, err := s.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(s.timeout.Milliseconds()))

	return &playwrightPage{page: page}, nil
}

func (s *playwrightSession) StorageState() ([]byte, error) {
	state, err := s.context.StorageState()
	if err != nil {
		return nil, fmt.Errorf("failed to read storage state: %w", err)
	}
	return json.Marshal(state)
}

func (s *playwrightSession) Close() error {
	var errs []error

	if s.context != nil {
		if err := s.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

type playwrightPage struct {
	page playwright.Page
}

func ms(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

func (p *playwrightPage) first(selector string) playwright.Locator {
	return p.page.Locator(selector).First()
}

func (p *playwrightPage) Goto(url string, timeout time.Duration) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   ms(timeout),
	})
	return err
}

func (p *playwrightPage) WaitForNetworkIdle(timeout time.Duration) error {
	return p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: ms(timeout),
	})
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Title() (string, error) {
	return p.page.Title()
}

func (p *playwrightPage) Content() (string, error) {
	return p.page.Content()
}

func (p *playwrightPage) InnerText(selector string, timeout time.Duration) (string, error) {
	return p.first(selector).InnerText(playwright.LocatorInnerTextOptions{Timeout: ms(timeout)})
}

func (p *playwrightPage) InnerHTML(selector string, timeout time.Duration) (string, error) {
	return p.first(selector).InnerHTML(playwright.LocatorInnerHTMLOptions{Timeout: ms(timeout)})
}

func (p *playwrightPage) Evaluate(script string, arg any) (any, error) {
	if arg == nil {
		return p.page.Evaluate(script)
	}
	return p.page.Evaluate(script, arg)
}

func (p *playwrightPage) Click(selector string, timeout time.Duration) error {
	return p.first(selector).Click(playwright.LocatorClickOptions{Timeout: ms(timeout)})
}

func (p *playwrightPage) Fill(selector, value string, timeout time.Duration) error {
	return p.first(selector).Fill(value, playwright.LocatorFillOptions{Timeout: ms(timeout)})
}

func (p *playwrightPage) Press(selector, key string, timeout time.Duration) error {
	return p.first(selector).Press(key, playwright.LocatorPressOptions{Timeout: ms(timeout)})
}

func (p *playwrightPage) IsVisible(selector string) (bool, error) {
	return p.first(selector).IsVisible()
}

func (p *playwrightPage) Count(selector string) (int, error) {
	return p.page.Locator(selector).Count()
}

func (p *playwrightPage) Screenshot(path string) error {
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}

func (p *playwrightPage) ElementScreenshot(selector, path string, timeout time.Duration) error {
	_, err := p.first(selector).Screenshot(playwright.LocatorScreenshotOptions{
		Path:    playwright.String(path),
		Timeout: ms(timeout),
	})
	return err
}

func (p *playwrightPage) Close() error {
	return p.page.Close()
}
