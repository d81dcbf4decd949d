package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maltedev/tcg-price-scraper/internal/api"
	"github.com/maltedev/tcg-price-scraper/internal/database"
	"github.com/maltedev/tcg-price-scraper/internal/scraper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scraping operations over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := current
		cfg := a.cfg

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, _, capture := scraper.NewFromConfig(cfg, a.engine(), a.store)

		var history api.HistoryReader
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

		handlers := api.NewHandlers(s, capture, history, a.logger)
		server := &http.Server{
			Addr: net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler: api.NewRouter(handlers, api.RouterOptions{
				AllowedOrigins: cfg.Server.AllowedOrigins,
				RequestTimeout: cfg.Server.RequestTimeout,
			}),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			a.logger.Info("shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("server shutdown failed", "error", err)
			}
		}()

		a.logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		a.logger.Info("server stopped")
		return nil
	},
}
