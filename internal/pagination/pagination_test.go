package pagination

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/tcg-price-scraper/internal/browser"
	"github.com/maltedev/tcg-price-scraper/internal/browser/browsertest"
	"github.com/maltedev/tcg-price-scraper/internal/models"
)

const base = "https://www.tcgplayer.com/product/600518/booster-bundle?Language=English"

func TestPlanHops(t *testing.T) {
	tests := []struct {
		name    string
		current int
		target  int
		last    int
		want    []int
	}{
		{name: "same page", current: 3, target: 3, last: 10, want: nil},
		{name: "near target", current: 1, target: 4, last: 10, want: []int{4}},
		{name: "exactly one stride", current: 2, target: 7, last: 10, want: []int{7}},
		{name: "via entry and nearest waypoint", current: 1, target: 47, last: 50, want: []int{5, 45, 47}},
		{name: "entry then direct", current: 1, target: 8, last: 50, want: []int{5, 8}},
		{name: "to last page", current: 1, target: 50, last: 50, want: []int{5, 50}},
		{name: "backwards to start", current: 40, target: 2, last: 50, want: []int{1, 2}},
		{name: "target above last is clamped", current: 1, target: 99, last: 12, want: []int{5, 12}},
		{name: "negative target is clamped", current: 9, target: -4, last: 12, want: []int{1}},
		{name: "unknown last means single page", current: 1, target: 7, last: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlanHops(tt.current, tt.target, tt.last))
		})
	}
}

func TestPlanHopsStrideBound(t *testing.T) {
	for last := 1; last <= 60; last += 7 {
		for current := 1; current <= last; current++ {
			for target := -2; target <= last+3; target++ {
				hops := PlanHops(current, target, last)
				pos := current
				for i, h := range hops {
					assert.GreaterOrEqual(t, h, 1)
					assert.LessOrEqual(t, h, last)
					if i >= 2 {
						assert.LessOrEqual(t, abs(h-pos), MaxStride, "stride from %d to %d", pos, h)
					}
					pos = h
				}
				assert.Equal(t, Clamp(target, last), pos)
				assert.LessOrEqual(t, len(hops), DefaultGuard)
			}
		}
	}
}

func TestCursorFromPager(t *testing.T) {
	tests := []struct {
		name     string
		active   string
		labels   []string
		want     models.PaginationCursor
		labelled bool
	}{
		{name: "compressed pager", active: "5", labels: []string{"Prev", "1", "…", "5", "10", "50", "Next"}, want: models.PaginationCursor{CurrentPage: 5, LastPage: 50}, labelled: true},
		{name: "no pager", want: models.PaginationCursor{CurrentPage: 1, LastPage: 1}},
		{name: "active beyond labels", active: " 7 ", labels: []string{"1", "2"}, want: models.PaginationCursor{CurrentPage: 7, LastPage: 7}, labelled: true},
		{name: "non numeric active", active: "Next", labels: []string{"1", "3"}, want: models.PaginationCursor{CurrentPage: 1, LastPage: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, labelled := CursorFromPager(tt.active, tt.labels)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.labelled, labelled)
		})
	}
}

func TestPageURL(t *testing.T) {
	assert.Equal(t, "https://www.tcgplayer.com/product/1?Language=English&page=3", PageURL("https://www.tcgplayer.com/product/1?Language=English", 3))
	assert.Equal(t, "https://www.tcgplayer.com/product/1?page=9", PageURL("https://www.tcgplayer.com/product/1?page=2", 9))
	assert.Equal(t, 3, PageFromURL("https://x.test/p?page=3"))
	assert.Equal(t, 0, PageFromURL("https://x.test/p"))
}

// pagedPage simulates a listing whose pager follows the page query parameter.
func pagedPage(last int) *browsertest.Page {
	page := browsertest.NewPage()
	page.CurrentURL = base
	page.OnEvaluate = func(p *browsertest.Page, _ string, _ any) (any, error) {
		current := PageFromURL(p.CurrentURL)
		if current == 0 {
			current = 1
		}
		if current > last {
			current = last
		}
		labels := []any{"1"}
		for n := 5; n <= last; n += 5 {
			labels = append(labels, strconv.Itoa(n))
		}
		labels = append(labels, strconv.Itoa(last))
		return map[string]any{"found": true, "active": strconv.Itoa(current), "labels": labels}, nil
	}
	return page
}

func newTraverser() *Traverser {
	nav := browser.NewNavigator(browser.NavigatorOptions{NavTimeout: time.Second, NetworkIdleTimeout: time.Second})
	return NewTraverser(nav, NewScriptCursorReader(), Options{Container: ".listing-item"})
}

func TestNavigateToPageWaypoints(t *testing.T) {
	page := pagedPage(50)

	cursor, err := newTraverser().NavigateToPage(context.Background(), page, base, 47, 50)
	require.NoError(t, err)

	assert.Equal(t, models.PaginationCursor{CurrentPage: 47, LastPage: 50}, cursor)
	require.Len(t, page.Gotos, 3)
	assert.Equal(t, []int{5, 45, 47}, []int{PageFromURL(page.Gotos[0]), PageFromURL(page.Gotos[1]), PageFromURL(page.Gotos[2])})
}

func TestNavigateToPageBounds(t *testing.T) {
	tests := []struct {
		name   string
		target int
		last   int
		want   int
	}{
		{name: "negative", target: -3, last: 12, want: 1},
		{name: "zero", target: 0, last: 12, want: 1},
		{name: "above last", target: 40, last: 12, want: 12},
		{name: "inside", target: 9, last: 12, want: 9},
		{name: "no last page", target: 4, last: 0, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := pagedPage(max(tt.last, 1))
			cursor, err := newTraverser().NavigateToPage(context.Background(), page, base, tt.target, tt.last)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cursor.CurrentPage)
			assert.GreaterOrEqual(t, cursor.CurrentPage, 1)
			assert.LessOrEqual(t, cursor.CurrentPage, max(tt.last, 1))
		})
	}
}

func TestNavigateToPageSamePageIsNoop(t *testing.T) {
	page := pagedPage(10)
	page.CurrentURL = PageURL(base, 4)

	cursor, err := newTraverser().NavigateToPage(context.Background(), page, base, 4, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, cursor.CurrentPage)
	assert.Empty(t, page.Gotos)
}

func TestNavigateToPageGuard(t *testing.T) {
	page := pagedPage(50)
	// the site ignores navigation entirely
	page.OnGoto = func(*browsertest.Page, string) error { return nil }

	_, err := newTraverser().NavigateToPage(context.Background(), page, base, 30, 50)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGuardExceeded)
	assert.Len(t, page.Gotos, DefaultGuard)
}

func TestNavigateToPageConfirmedByContent(t *testing.T) {
	page := browsertest.NewPage()
	page.CurrentURL = base
	page.Texts[".listing-item"] = "page one"
	// URL and pager never change, only the listing content does
	page.OnGoto = func(p *browsertest.Page, url string) error {
		p.Texts[".listing-item"] = "listing for " + url
		return nil
	}

	cursor, err := newTraverser().NavigateToPage(context.Background(), page, base, 3, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, cursor.CurrentPage)
	assert.Len(t, page.Gotos, 1)
}

func TestNavigateToPageNavigationError(t *testing.T) {
	page := pagedPage(10)
	page.OnGoto = func(*browsertest.Page, string) error { return errors.New("net::ERR_CONNECTION_RESET") }

	_, err := newTraverser().NavigateToPage(context.Background(), page, base, 3, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrNavigation)
}
