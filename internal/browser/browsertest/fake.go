// Package browsertest provides in-memory fakes of the browser interfaces for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/maltedev/tcg-price-scraper/internal/browser"
)

var ErrNotFound = errors.New("element not found")

// Page is a scriptable browser.Page. Selectors are matched literally against
// the maps. Hooks replace the default behavior when set.
type Page struct {
	mu sync.Mutex

	CurrentURL string
	TitleText  string
	HTML       string
	Texts      map[string]string
	HTMLs      map[string]string
	Visible    map[string]bool
	Counts     map[string]int

	NetworkIdleErr error

	OnGoto     func(p *Page, url string) error
	OnClick    func(p *Page, selector string) error
	OnPress    func(p *Page, selector, key string) error
	OnFill     func(p *Page, selector, value string) error
	OnEvaluate func(p *Page, script string, arg any) (any, error)

	Gotos       []string
	Clicks      []string
	Presses     []string
	Filled      map[string]string
	Evaluations int
	Screenshots []string
	Closed      bool
}

func NewPage() *Page {
	return &Page{
		Texts:   map[string]string{},
		HTMLs:   map[string]string{},
		Visible: map[string]bool{},
		Counts:  map[string]int{},
		Filled:  map[string]string{},
	}
}

// SetBody sets the visible body text and the serialized page content.
func (p *Page) SetBody(text, html string) {
	p.Texts["body"] = text
	p.HTML = html
}

func (p *Page) present(selector string) bool {
	return p.Visible[selector] || p.Counts[selector] > 0
}

func (p *Page) Goto(url string, _ time.Duration) error {
	p.mu.Lock()
	p.Gotos = append(p.Gotos, url)
	hook := p.OnGoto
	p.mu.Unlock()

	if hook != nil {
		return hook(p, url)
	}
	p.CurrentURL = url
	return nil
}

func (p *Page) WaitForNetworkIdle(time.Duration) error {
	return p.NetworkIdleErr
}

func (p *Page) URL() string { return p.CurrentURL }

func (p *Page) Title() (string, error) { return p.TitleText, nil }

func (p *Page) Content() (string, error) { return p.HTML, nil }

func (p *Page) InnerText(selector string, _ time.Duration) (string, error) {
	if text, ok := p.Texts[selector]; ok {
		return text, nil
	}
	return "", fmt.Errorf("inner text %s: %w", selector, ErrNotFound)
}

func (p *Page) InnerHTML(selector string, _ time.Duration) (string, error) {
	if html, ok := p.HTMLs[selector]; ok {
		return html, nil
	}
	return "", fmt.Errorf("inner html %s: %w", selector, ErrNotFound)
}

func (p *Page) Evaluate(script string, arg any) (any, error) {
	p.mu.Lock()
	p.Evaluations++
	hook := p.OnEvaluate
	p.mu.Unlock()

	if hook != nil {
		return hook(p, script, arg)
	}
	return nil, nil
}

func (p *Page) Click(selector string, _ time.Duration) error {
	if p.OnClick != nil {
		if err := p.OnClick(p, selector); err != nil {
			return err
		}
		p.Clicks = append(p.Clicks, selector)
		return nil
	}
	if !p.present(selector) {
		return fmt.Errorf("click %s: %w", selector, ErrNotFound)
	}
	p.Clicks = append(p.Clicks, selector)
	return nil
}

func (p *Page) Fill(selector, value string, _ time.Duration) error {
	if p.OnFill != nil {
		if err := p.OnFill(p, selector, value); err != nil {
			return err
		}
	} else if !p.present(selector) {
		return fmt.Errorf("fill %s: %w", selector, ErrNotFound)
	}
	p.Filled[selector] = value
	return nil
}

func (p *Page) Press(selector, key string, _ time.Duration) error {
	if p.OnPress != nil {
		if err := p.OnPress(p, selector, key); err != nil {
			return err
		}
	} else if !p.present(selector) {
		return fmt.Errorf("press %s: %w", selector, ErrNotFound)
	}
	p.Presses = append(p.Presses, selector+":"+key)
	return nil
}

func (p *Page) IsVisible(selector string) (bool, error) {
	return p.Visible[selector], nil
}

func (p *Page) Count(selector string) (int, error) {
	if n, ok := p.Counts[selector]; ok {
		return n, nil
	}
	if p.Visible[selector] {
		return 1, nil
	}
	return 0, nil
}

func (p *Page) Screenshot(path string) error {
	p.Screenshots = append(p.Screenshots, path)
	return os.WriteFile(path, []byte("png"), 0o644)
}

// ElementScreenshot writes a placeholder file when selector is present.
func (p *Page) ElementScreenshot(selector, path string, _ time.Duration) error {
	if !p.present(selector) {
		return fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	p.Screenshots = append(p.Screenshots, path)
	return os.WriteFile(path, []byte("png"), 0o644)
}

func (p *Page) Close() error {
	p.Closed = true
	return nil
}

// Session hands out a single page and a fixed storage state.
type Session struct {
	Page        *Page
	State       []byte
	StateErr    error
	RestoredRaw []byte
	Closed      bool
}

func (s *Session) NewPage() (browser.Page, error) {
	return s.Page, nil
}

func (s *Session) StorageState() ([]byte, error) {
	return s.State, s.StateErr
}

func (s *Session) Close() error {
	s.Closed = true
	return nil
}

// Engine opens sessions around pages produced by NewPageFunc.
type Engine struct {
	mu          sync.Mutex
	NewPageFunc func() *Page
	State       []byte
	OpenErr     error
	Sessions    []*Session
}

func (e *Engine) Open(_ context.Context, opts browser.SessionOptions) (browser.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.OpenErr != nil {
		return nil, e.OpenErr
	}

	page := NewPage()
	if e.NewPageFunc != nil {
		page = e.NewPageFunc()
	}

	s := &Session{Page: page, State: e.State, RestoredRaw: opts.StorageState}
	e.Sessions = append(e.Sessions, s)
	return s, nil
}

// AllClosed reports whether every opened session was closed.
func (e *Engine) AllClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.Sessions {
		if !s.Closed {
			return false
		}
	}
	return true
}
