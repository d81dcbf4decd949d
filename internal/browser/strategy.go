package browser

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoStrategy is returned when every strategy of an ordered list failed.
var ErrNoStrategy = errors.New("no strategy succeeded")

// Strategy is one way of locating or acting on a UI element. Strategies are
// tried in order and the first that returns nil wins.
type Strategy struct {
	Name string
	Try  func(page Page) error
}

// FirstSuccess runs strategies in order and returns the name of the first one
// that succeeded.
func FirstSuccess(page Page, strategies []Strategy) (string, error) {
	var failures []string
	for _, s := range strategies {
		if err := s.Try(page); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", s.Name, err))
			continue
		}
		return s.Name, nil
	}
	return "", fmt.Errorf("%w (%s)", ErrNoStrategy, strings.Join(failures, "; "))
}

// ClickStrategies builds one click strategy per selector.
func ClickStrategies(selectors []string, timeout time.Duration) []Strategy {
	out := make([]Strategy, 0, len(selectors))
	for _, sel := range selectors {
		out = append(out, Strategy{
			Name: "click " + sel,
			Try: func(page Page) error {
				return page.Click(sel, timeout)
			},
		})
	}
	return out
}

// VisibleClickStrategies clicks the first selector that is currently visible.
func VisibleClickStrategies(selectors []string, timeout time.Duration) []Strategy {
	out := make([]Strategy, 0, len(selectors))
	for _, sel := range selectors {
		out = append(out, Strategy{
			Name: "click " + sel,
			Try: func(page Page) error {
				visible, err := page.IsVisible(sel)
				if err != nil {
					return err
				}
				if !visible {
					return fmt.Errorf("not visible")
				}
				return page.Click(sel, timeout)
			},
		})
	}
	return out
}

// FillStrategies builds one fill strategy per selector.
func FillStrategies(selectors []string, value string, timeout time.Duration) []Strategy {
	out := make([]Strategy, 0, len(selectors))
	for _, sel := range selectors {
		out = append(out, Strategy{
			Name: "fill " + sel,
			Try: func(page Page) error {
				return page.Fill(sel, value, timeout)
			},
		})
	}
	return out
}

// ElementScreenshotStrategies saves the first selector that has a match to
// path.
func ElementScreenshotStrategies(selectors []string, path string, timeout time.Duration) []Strategy {
	out := make([]Strategy, 0, len(selectors))
	for _, sel := range selectors {
		out = append(out, Strategy{
			Name: sel,
			Try: func(page Page) error {
				n, err := page.Count(sel)
				if err != nil {
					return err
				}
				if n == 0 {
					return fmt.Errorf("no match")
				}
				return page.ElementScreenshot(sel, path, timeout)
			},
		})
	}
	return out
}

// PressStrategy sends a key to the element matched by selector.
func PressStrategy(selector, key string, timeout time.Duration) Strategy {
	return Strategy{
		Name: "press " + key + " on " + selector,
		Try: func(page Page) error {
			return page.Press(selector, key, timeout)
		},
	}
}

var consentSelectors = []string{
	`button:has-text("Accept All")`,
	`button:has-text("I Accept")`,
	`[data-testid="accept-all"]`,
	`button[aria-label*="Accept"]`,
}

// DismissConsent clicks away a cookie consent banner if one is shown. It
// returns the strategy that worked or an empty string.
func DismissConsent(page Page, timeout time.Duration) string {
	name, err := FirstSuccess(page, ClickStrategies(consentSelectors, timeout))
	if err != nil {
		return ""
	}
	return name
}
