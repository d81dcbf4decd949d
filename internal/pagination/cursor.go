package pagination

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/maltedev/tcg-price-scraper/internal/browser"
	"github.com/maltedev/tcg-price-scraper/internal/models"
)

// CursorReader reads the pager of the currently loaded page. The boolean is
// false when no pager label named the current page.
type CursorReader interface {
	Read(page browser.Page) (models.PaginationCursor, bool)
}

type pagerSnapshot struct {
	Found  bool     `json:"found"`
	Active string   `json:"active"`
	Labels []string `json:"labels"`
}

// ScriptCursorReader evaluates a small pager query in the page.
type ScriptCursorReader struct {
	Script string
}

func NewScriptCursorReader() *ScriptCursorReader {
	return &ScriptCursorReader{Script: pagerScript}
}

func (r *ScriptCursorReader) Read(page browser.Page) (models.PaginationCursor, bool) {
	snap := pagerSnapshot{}
	if out, err := page.Evaluate(r.Script, nil); err == nil && out != nil {
		if raw, err := json.Marshal(out); err == nil {
			_ = json.Unmarshal(raw, &snap)
		}
	}

	cursor, labelled := CursorFromPager(snap.Active, snap.Labels)
	if !labelled {
		if n := PageFromURL(page.URL()); n > 0 {
			cursor.CurrentPage = n
			if cursor.LastPage < n {
				cursor.LastPage = n
			}
		}
	}
	return cursor, labelled
}

// CursorFromPager derives the cursor from pager labels. Non numeric labels
// such as "Next" or an ellipsis are ignored. Without any number the listing
// is a single page.
func CursorFromPager(active string, labels []string) (models.PaginationCursor, bool) {
	cursor := models.PaginationCursor{CurrentPage: 1, LastPage: 1}

	for _, l := range labels {
		if n, err := strconv.Atoi(strings.TrimSpace(l)); err == nil && n > cursor.LastPage {
			cursor.LastPage = n
		}
	}

	n, err := strconv.Atoi(strings.TrimSpace(active))
	if err != nil || n < 1 {
		return cursor, false
	}

	cursor.CurrentPage = n
	if cursor.LastPage < n {
		cursor.LastPage = n
	}
	return cursor, true
}

// PageURL sets the page query parameter on base.
func PageURL(base string, page int) string {
	u, err := url.Parse(base)
	if err != nil {
		sep := "?"
		if strings.Contains(base, "?") {
			sep = "&"
		}
		return base + sep + "page=" + strconv.Itoa(page)
	}

	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// PageFromURL returns the page query parameter, or 0 when absent.
func PageFromURL(raw string) int {
	u, err := url.Parse(raw)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(u.Query().Get("page"))
	if err != nil || n < 1 {
		return 0
	}
	return n
}

const pagerScript = `() => {
  const pager = document.querySelector('.tcg-pagination, [class*="pagination"], nav[aria-label*="agination"]');
  if (!pager) {
    return { found: false, active: '', labels: [] };
  }
  const active = pager.querySelector('[aria-current="page"], .is-active, .tcg-standard-button--active, .active');
  const labels = Array.from(pager.querySelectorAll('a, button, span'))
    .map((el) => (el.textContent || '').trim())
    .filter(Boolean);
  return { found: true, active: active ? (active.textContent || '').trim() : '', labels: labels };
}`
