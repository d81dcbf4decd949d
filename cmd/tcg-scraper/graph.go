package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maltedev/tcg-price-scraper/internal/monitor"
	"github.com/maltedev/tcg-price-scraper/internal/notify"
	"github.com/maltedev/tcg-price-scraper/internal/ratelimit"
	"github.com/maltedev/tcg-price-scraper/internal/scraper"
)

var graphLoop bool

var graphCmd = &cobra.Command{
	Use:   "graph [url...]",
	Short: "Capture the price history chart of each page and post it to the webhook",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := current

		urls := a.cfg.Monitor.URLs
		if len(args) > 0 {
			urls = args
		}
		if len(urls) == 0 {
			return errors.New("no product urls to capture")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reporter := a.graphReporter(newScraper(), urls)
		if !graphLoop {
			sent := reporter.Sweep(ctx)
			fmt.Fprintf(os.Stderr, "%d of %d graphs delivered\n", sent, len(urls))
			if sent == 0 {
				return errors.New("no graph was delivered")
			}
			return nil
		}

		if err := reporter.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	graphCmd.Flags().BoolVar(&graphLoop, "loop", false, "keep running and capture at every monitor.graph_interval (hourly by default)")
}

func (a *app) notifiers() notify.Multi {
	n := notify.Multi{notify.NewWebhookNotifier(a.cfg.Notify.WebhookURL, a.cfg.Notify.Username, a.cfg.Notify.Timeout)}
	if a.redis != nil {
		n = append(n, notify.NewStreamNotifier(a.redis, a.cfg.Redis.Stream))
	}
	return n
}

func (a *app) graphReporter(s *scraper.Scraper, urls []string) *monitor.GraphReporter {
	return monitor.NewGraphReporter(s, a.notifiers(),
		ratelimit.NewAdaptiveLimiter(a.cfg.Monitor.RateLimitMin, a.cfg.Monitor.RateLimitMax),
		monitor.GraphOptions{URLs: urls, Interval: a.cfg.Monitor.GraphInterval})
}
