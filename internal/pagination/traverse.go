package pagination

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/tcg-price-scraper/internal/browser"
	"github.com/maltedev/tcg-price-scraper/internal/models"
)

// ErrGuardExceeded is returned when the target page was not reached within
// the hop guard.
var ErrGuardExceeded = errors.New("pagination guard exceeded")

const DefaultGuard = 20

// Navigator is the part of browser.Navigator the traversal needs.
type Navigator interface {
	Goto(ctx context.Context, page browser.Page, url string) error
}

type Options struct {
	Guard     int
	Container string
	Timeout   time.Duration
}

type Traverser struct {
	nav    Navigator
	reader CursorReader
	opts   Options
	logger *slog.Logger
}

func NewTraverser(nav Navigator, reader CursorReader, opts Options) *Traverser {
	if opts.Guard <= 0 {
		opts.Guard = DefaultGuard
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	return &Traverser{
		nav:    nav,
		reader: reader,
		opts:   opts,
		logger: slog.Default().With("component", "pagination"),
	}
}

// Cursor reads the pager of the loaded page.
func (t *Traverser) Cursor(page browser.Page) models.PaginationCursor {
	cursor, _ := t.reader.Read(page)
	return cursor
}

type signature struct {
	url     string
	label   int
	content string
}

func (t *Traverser) signature(page browser.Page) signature {
	cursor, labelled := t.reader.Read(page)
	sig := signature{url: page.URL()}
	if labelled {
		sig.label = cursor.CurrentPage
	}
	if t.opts.Container != "" {
		sig.content, _ = page.InnerText(t.opts.Container, t.opts.Timeout)
	}
	return sig
}

// a hop is confirmed when any of the three signals moved
func (s signature) changed(other signature) bool {
	return s.url != other.url || s.label != other.label || s.content != other.content
}

// NavigateToPage moves the listing view to target and returns the cursor it
// ends on. The target is clamped to [1, last]. Each hop loads the page by URL
// and is confirmed by a change of URL, pager label or listing content.
func (t *Traverser) NavigateToPage(ctx context.Context, page browser.Page, baseURL string, target, last int) (models.PaginationCursor, error) {
	if last < 1 {
		last = 1
	}
	target = clamp(target, 1, last)

	start, _ := t.reader.Read(page)
	current := clamp(start.CurrentPage, 1, last)
	cursor := models.PaginationCursor{CurrentPage: current, LastPage: last}

	hopsTaken := 0
	for current != target {
		if hopsTaken >= t.opts.Guard {
			return cursor, fmt.Errorf("%w: stuck on page %d of %d heading to %d", ErrGuardExceeded, current, last, target)
		}
		hopsTaken++

		next := PlanHops(current, target, last)[0]
		before := t.signature(page)

		if err := t.nav.Goto(ctx, page, PageURL(baseURL, next)); err != nil {
			return cursor, fmt.Errorf("failed to load page %d: %w", next, err)
		}

		after := t.signature(page)
		if !before.changed(after) {
			t.logger.Warn("page hop not confirmed", "from", current, "to", next, "hop", hopsTaken)
			continue
		}

		landed := next
		if read, labelled := t.reader.Read(page); labelled {
			landed = read.CurrentPage
		}
		current = clamp(landed, 1, last)
		cursor.CurrentPage = current

		t.logger.Debug("page hop", "to", next, "landed", current, "target", target, "hop", hopsTaken)
	}

	return cursor, nil
}
