package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterOptions struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter mounts every endpoint behind the shared middleware stack.
func NewRouter(h *Handlers, opts RouterOptions) http.Handler {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 170 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	r.Post("/last-sold", h.LastSold)
	r.Post("/sales-snapshot", h.SalesSnapshot)
	r.Post("/price-graph", h.PriceGraph)
	r.Get("/history", h.History)

	r.Route("/products/{productID}", func(r chi.Router) {
		r.Get("/listings", h.ActiveListings)
		r.Get("/pages", h.Pages)
		r.Get("/listings/{page}", h.ListingsPage)
	})

	r.Route("/debug", func(r chi.Router) {
		r.Post("/login", h.DebugLogin)
		r.Get("/visit", h.DebugVisit)
		r.Get("/cookies", h.DebugCookies)
		r.Get("/localstorage", h.DebugLocalStorage)
		r.Get("/proxy-ip", h.DebugProxyIP)
		r.Get("/trace", h.DebugTrace)
		r.Get("/myaccount", h.DebugMyAccount)
		r.Get("/artifact", h.DebugArtifact)
	})

	return r
}
