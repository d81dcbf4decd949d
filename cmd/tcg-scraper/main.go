package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/maltedev/tcg-price-scraper/internal/browser"
	"github.com/maltedev/tcg-price-scraper/internal/config"
	"github.com/maltedev/tcg-price-scraper/internal/logging"
	"github.com/maltedev/tcg-price-scraper/internal/session"
)

var cfgFile string

// app holds what every subcommand needs. It is built once before any command runs.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	redis   *redis.Client
	store   session.Store
	closers []io.Closer
}

var current *app

var rootCmd = &cobra.Command{
	Use:           "tcg-scraper",
	Short:         "Session-aware price and listing scraper for TCGplayer product pages",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfgFile)
		if err != nil {
			return err
		}
		current = a
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")

	rootCmd.AddCommand(serveCmd, fetchCmd, loginCmd, monitorCmd, graphCmd, seedCmd)
}

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	if current != nil {
		if err != nil {
			current.logger.Error("command failed", "error", err)
		}
		current.Close()
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if err != nil {
		os.Exit(1)
	}
}

func newApp(ctx context.Context, path string) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger, logCloser := logging.New(cfg.Logging)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	if cfg.Redis.Enabled() {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, a.redis)

		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}

	if cfg.Auth.StateBackend == "redis" {
		a.store = session.NewRedisStore(a.redis, cfg.Auth.StateKey)
	} else {
		a.store = session.NewFileStore(cfg.Auth.StatePath)
	}

	if cfg.Auth.StateBlob != "" {
		written, err := session.HydrateFromBlob(ctx, a.store, cfg.Auth.StateBlob)
		if err != nil {
			logger.Warn("failed to hydrate session state", "error", err)
		} else if written {
			logger.Info("session state hydrated from environment")
		}
	}

	return a, nil
}

func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	if err := errors.Join(errs...); err != nil {
		fmt.Fprintln(os.Stderr, "shutdown:", err)
	}
}

func (a *app) engine() *browser.PlaywrightEngine {
	b := a.cfg.Browser
	opts := browser.DefaultOptions()
	opts.Headless = b.Headless
	opts.Timeout = a.cfg.Scraper.NavTimeout
	opts.UserAgent = b.UserAgent
	opts.ViewportWidth = b.ViewportWidth
	opts.ViewportHeight = b.ViewportHeight
	opts.AcceptLanguage = b.AcceptLanguage
	opts.TimezoneID = b.TimezoneID
	opts.Locale = b.Locale
	opts.ProxyServer = b.ProxyServer
	opts.ProxyUsername = b.ProxyUsername
	opts.ProxyPassword = b.ProxyPassword
	return browser.NewPlaywrightEngine(opts)
}
