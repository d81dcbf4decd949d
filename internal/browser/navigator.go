package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNavigation is returned when a URL could not be loaded within the retry budget.
var ErrNavigation = errors.New("navigation failed")

type NavigatorOptions struct {
	NavTimeout         time.Duration
	NetworkIdleTimeout time.Duration
	RetryTimes         int
	BaseDelay          time.Duration
	ConsentTimeout     time.Duration
}

// Navigator loads pages with bounded retries and linear backoff.
type Navigator struct {
	opts   NavigatorOptions
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewNavigator(opts NavigatorOptions) *Navigator {
	return &Navigator{
		opts:   opts,
		logger: slog.Default().With("component", "navigator"),
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Goto makes RetryTimes+1 attempts at loading url. Network idle is waited for
// but not required. A consent banner is dismissed after a successful load.
func (n *Navigator) Goto(ctx context.Context, page Page, url string) error {
	attempts := n.opts.RetryTimes + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := n.opts.BaseDelay * time.Duration(attempt-1)
			n.logger.Info("retrying navigation", "attempt", attempt, "url", url, "delay", delay)
			if err := n.sleep(ctx, delay); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrNavigation, url, err)
			}
		}

		err := page.Goto(url, n.opts.NavTimeout)
		if err != nil {
			lastErr = err
			n.logger.Warn("navigation failed", "error", err, "attempt", attempt, "url", url)
			continue
		}

		if err := page.WaitForNetworkIdle(n.opts.NetworkIdleTimeout); err != nil {
			n.logger.Debug("network did not settle", "url", url, "error", err)
		}

		if name := DismissConsent(page, n.opts.ConsentTimeout); name != "" {
			n.logger.Debug("dismissed consent banner", "strategy", name)
		}

		return nil
	}

	return fmt.Errorf("%w: %s after %d attempts: %w", ErrNavigation, url, attempts, lastErr)
}

// Visit navigates and then probes for anti-automation pages. A blocked page
// is reported as ErrBlocked.
func (n *Navigator) Visit(ctx context.Context, page Page, url string) error {
	if err := n.Goto(ctx, page, url); err != nil {
		return err
	}

	if verdict := Probe(page); verdict.Blocked {
		n.logger.Warn("anti-automation page detected", "url", url, "phrase", verdict.Phrase)
		return fmt.Errorf("%w: %q on %s", ErrBlocked, verdict.Phrase, url)
	}

	return nil
}
