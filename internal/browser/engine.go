package browser

import (
	"context"
	"time"
)

// Page is the subset of a rendered page the scraper drives. Selectors use the
// playwright selector syntax (css, text=, role=).
type Page interface {
	Goto(url string, timeout time.Duration) error
	WaitForNetworkIdle(timeout time.Duration) error
	URL() string
	Title() (string, error)
	Content() (string, error)
	InnerText(selector string, timeout time.Duration) (string, error)
	InnerHTML(selector string, timeout time.Duration) (string, error)
	Evaluate(script string, arg any) (any, error)
	Click(selector string, timeout time.Duration) error
	Fill(selector, value string, timeout time.Duration) error
	Press(selector, key string, timeout time.Duration) error
	IsVisible(selector string) (bool, error)
	Count(selector string) (int, error)
	Screenshot(path string) error
	// ElementScreenshot saves only the first element matching selector.
	ElementScreenshot(selector, path string, timeout time.Duration) error
	Close() error
}

// Session is one browser context. StorageState returns the serialized
// cookies and local storage of the context.
type Session interface {
	NewPage() (Page, error)
	StorageState() ([]byte, error)
	Close() error
}

type SessionOptions struct {
	// StorageState restores a previously saved session when non-empty.
	StorageState []byte
	// Headed overrides the configured headless mode.
	Headed bool
}

// Engine opens browser sessions. A session is scoped to a single operation and
// must be closed on every exit path.
type Engine interface {
	Open(ctx context.Context, opts SessionOptions) (Session, error)
}
