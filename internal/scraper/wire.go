package scraper

import (
	"github.com/maltedev/tcg-price-scraper/internal/browser"
	"github.com/maltedev/tcg-price-scraper/internal/config"
	"github.com/maltedev/tcg-price-scraper/internal/diagnostics"
	"github.com/maltedev/tcg-price-scraper/internal/pagination"
	"github.com/maltedev/tcg-price-scraper/internal/parser"
	"github.com/maltedev/tcg-price-scraper/internal/session"
)

// NewFromConfig assembles the facade and its collaborators from cfg.
func NewFromConfig(cfg *config.Config, engine browser.Engine, store session.Store) (*Scraper, *session.Manager, *diagnostics.Capturer) {
	nav := browser.NewNavigator(browser.NavigatorOptions{
		NavTimeout:         cfg.Scraper.NavTimeout,
		NetworkIdleTimeout: cfg.Scraper.NetworkIdleTimeout,
		RetryTimes:         cfg.Scraper.RetryTimes,
		BaseDelay:          cfg.Scraper.RetryBaseDelay,
		ConsentTimeout:     cfg.Scraper.ConsentTimeout,
	})

	capture := diagnostics.NewCapturer(cfg.Scraper.DebugDir)

	sessions := session.NewManager(store, nav, capture, session.Options{
		HomeURL:         cfg.Scraper.BaseURL,
		LoginURL:        cfg.Scraper.LoginURL,
		Email:           cfg.Auth.Email,
		Password:        cfg.Auth.Password,
		DisableLogin:    cfg.Auth.DisableLogin,
		VerifyPolls:     cfg.Auth.VerifyPolls,
		VerifyInterval:  cfg.Auth.VerifyPoll,
		SelectorTimeout: cfg.Auth.SelectorWait,
	})

	traverser := pagination.NewTraverser(nav, pagination.NewScriptCursorReader(), pagination.Options{
		Container: parser.ListingsContainer,
	})

	s := New(Deps{
		Engine:    engine,
		Sessions:  sessions,
		Navigator: nav,
		Traverser: traverser,
		Parser:    parser.NewTCGParser(),
		Listings:  parser.NewScriptListingSource(),
		Capture:   capture,
		Graphs:    diagnostics.NewCapturer(cfg.Scraper.GraphDir),
	}, Options{
		ProductURL:      cfg.ProductURL,
		DialogWait:      cfg.Scraper.DialogWait,
		PageWaitTimeout: cfg.Scraper.PageWaitTimeout,
		ControlTimeout:  cfg.Auth.SelectorWait,
		MaxListingPages: cfg.Scraper.MaxListingPages,
		ChartWait:       cfg.Scraper.ChartWait,
		AccountURL:      cfg.Scraper.AccountURL,
		IPEchoURL:       cfg.Scraper.IPEchoURL,
	})

	return s, sessions, capture
}
