package session

import (
	"context"
	"fmt"

	"github.com/maltedev/tcg-price-scraper/internal/browser"
)

// Seed opens a headed browser on the login page and waits for an operator to
// sign in by hand, solving any challenge. The resulting state is saved
// without verification.
func (m *Manager) Seed(ctx context.Context, engine browser.Engine, waitForOperator func() error) error {
	sess, err := engine.Open(ctx, browser.SessionOptions{Headed: true})
	if err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	defer sess.Close()

	page, err := sess.NewPage()
	if err != nil {
		return err
	}
	defer page.Close()

	if err := m.nav.Goto(ctx, page, m.opts.LoginURL); err != nil {
		return fmt.Errorf("failed to open login page: %w", err)
	}

	m.logger.Info("waiting for manual login", "url", m.opts.LoginURL)
	if err := waitForOperator(); err != nil {
		return fmt.Errorf("aborted while waiting for login: %w", err)
	}

	if err := m.nav.Goto(ctx, page, m.opts.HomeURL); err != nil {
		m.logger.Warn("failed to reload home page after login", "error", err)
	}

	if !m.IsAuthenticated(page) {
		m.logger.Warn("home page does not look signed in, saving state anyway")
	}

	state, err := sess.StorageState()
	if err != nil {
		return err
	}
	if err := m.store.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}

	m.logger.Info("session state saved", "bytes", len(state))
	return nil
}
