package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/tcg-price-scraper/internal/models"
	"github.com/maltedev/tcg-price-scraper/internal/notify"
)

type GraphCapturer interface {
	CapturePriceGraph(ctx context.Context, url string) (*models.GraphCaptureResult, error)
}

type GraphOptions struct {
	URLs []string
	// Interval is aligned to the wall clock, so an hourly reporter fires on
	// the hour.
	Interval time.Duration
}

// GraphReporter captures the price chart of every page and posts it.
type GraphReporter struct {
	capturer GraphCapturer
	notifier notify.GraphNotifier
	pacer    Pacer
	opts     GraphOptions
	logger   *slog.Logger
	now      func() time.Time
}

func NewGraphReporter(capturer GraphCapturer, notifier notify.GraphNotifier, pacer Pacer, opts GraphOptions) *GraphReporter {
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	return &GraphReporter{
		capturer: capturer,
		notifier: notifier,
		pacer:    pacer,
		opts:     opts,
		logger:   slog.Default().With("component", "graph_reporter"),
		now:      time.Now,
	}
}

// Run sweeps once right away and then at every interval boundary until ctx is
// cancelled.
func (g *GraphReporter) Run(ctx context.Context) error {
	g.logger.Info("starting graph reporter", "pages", len(g.opts.URLs), "interval", g.opts.Interval)
	g.Sweep(ctx)

	for {
		next := g.nextRun()
		g.logger.Info("next graph capture scheduled", "at", next)

		timer := time.NewTimer(next.Sub(g.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			g.logger.Info("graph reporter stopped")
			return ctx.Err()
		case <-timer.C:
			g.Sweep(ctx)
		}
	}
}

func (g *GraphReporter) nextRun() time.Time {
	return g.now().Truncate(g.opts.Interval).Add(g.opts.Interval)
}

// Sweep captures and posts every page once and returns how many charts were
// delivered.
func (g *GraphReporter) Sweep(ctx context.Context) int {
	sent := 0
	for _, url := range g.opts.URLs {
		if g.pacer != nil {
			if err := g.pacer.Wait(ctx); err != nil {
				return sent
			}
		}

		if err := g.report(ctx, url); err != nil {
			g.logger.Error("graph capture failed", "url", url, "error", err)
			continue
		}
		sent++
	}
	return sent
}

func (g *GraphReporter) report(ctx context.Context, url string) error {
	res, err := g.capturer.CapturePriceGraph(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to capture graph: %w", err)
	}

	switch res.Error {
	case "":
		if g.pacer != nil {
			g.pacer.RecordSuccess()
		}
	case models.ErrBlockedOrChallenge:
		if g.pacer != nil {
			g.pacer.RecordBlocked()
		}
		return fmt.Errorf("page blocked: %s", res.Message)
	default:
		return fmt.Errorf("%s: %s", res.Error, res.Message)
	}

	ev := notify.GraphEvent{URL: url, Title: res.Title, Path: res.Path, CapturedAt: g.now()}
	if err := g.notifier.NotifyGraph(ctx, ev); err != nil {
		return fmt.Errorf("failed to send graph: %w", err)
	}
	return nil
}
