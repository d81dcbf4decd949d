package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/maltedev/tcg-price-scraper/internal/database"
	"github.com/maltedev/tcg-price-scraper/internal/monitor"
	"github.com/maltedev/tcg-price-scraper/internal/ratelimit"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor [url...]",
	Short: "Watch product pages and announce new most-recent sales",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := current
		cfg := a.cfg

		urls := cfg.Monitor.URLs
		if len(args) > 0 {
			urls = args
		}
		if len(urls) == 0 {
			return errors.New("no product urls to monitor")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var history monitor.History
		if cfg.Database.Enabled() {
			db, err := database.New(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			store := database.NewHistoryStore(db)
			if err := store.EnsureSchema(ctx); err != nil {
				return err
			}
			history = store
		}

		s := newScraper()
		m := monitor.New(s, history, a.notifiers(),
			ratelimit.NewAdaptiveLimiter(cfg.Monitor.RateLimitMin, cfg.Monitor.RateLimitMax),
			monitor.Options{
				URLs:     urls,
				Interval: cfg.Monitor.Interval,
				Startup:  cfg.Monitor.Startup,
			})

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return m.Run(gctx) })
		if cfg.Monitor.GraphInterval > 0 {
			reporter := a.graphReporter(s, urls)
			g.Go(func() error { return reporter.Run(gctx) })
		}

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
