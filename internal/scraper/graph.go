package scraper

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"path"

	"github.com/maltedev/tcg-price-scraper/internal/browser"
	"github.com/maltedev/tcg-price-scraper/internal/models"
)

// chartSelectors locate the price history chart, newest layout first.
var chartSelectors = []string{
	`div[data-testid="History_Line"]`,
	".chart-container",
	".martech-charts-chart",
	"canvas[data-v-8daf4e1f]",
	"div.chart-container canvas",
}

// GraphStore hands out file names for captured charts.
type GraphStore interface {
	NewPath(tag, ext string) (string, error)
}

// CapturePriceGraph saves a screenshot of the price history chart of a
// product page. The chart renders late, so it is polled for up to ChartWait.
func (s *Scraper) CapturePriceGraph(ctx context.Context, url string) (*models.GraphCaptureResult, error) {
	res := &models.GraphCaptureResult{URL: url}

	meta, err := s.execute(ctx, "price_graph", func(r *run) error {
		if s.deps.Graphs == nil {
			return fmt.Errorf("no graph store configured")
		}
		if err := s.load(ctx, r, url); err != nil {
			return err
		}

		if html, err := r.page.Content(); err == nil {
			res.Title, _ = s.deps.Parser.ExtractTitle(html)
		}

		file, err := s.deps.Graphs.NewPath(graphTag(url), ".png")
		if err != nil {
			return err
		}

		strategies := browser.ElementScreenshotStrategies(chartSelectors, file, s.opts.ControlTimeout)
		var lastErr error
		for i := 0; i < s.polls(s.opts.ChartWait); i++ {
			if i > 0 {
				if err := s.sleep(ctx, s.opts.PollInterval); err != nil {
					return err
				}
			}

			selector, err := browser.FirstSuccess(r.page, strategies)
			if err == nil {
				res.Path = file
				res.Selector = selector
				s.logger.Info("price graph captured", "url", url, "selector", selector, "path", file)
				return nil
			}
			if !errors.Is(err, browser.ErrNoStrategy) {
				return err
			}
			lastErr = err
		}

		if err := probeAfterHop(r.page); err != nil {
			return err
		}
		return fail(models.ErrChartNotFound, fmt.Errorf("waited %s: %w", s.opts.ChartWait, lastErr))
	})
	if err != nil {
		return nil, err
	}

	res.Meta = meta
	return res, nil
}

// graphTag names a capture after the last path segment of the product URL,
// which carries the card slug.
func graphTag(raw string) string {
	u, err := neturl.Parse(raw)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "graph"
	}
	return "graph_" + path.Base(u.Path)
}
