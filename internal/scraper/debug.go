package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/maltedev/tcg-price-scraper/internal/browser"
	"github.com/maltedev/tcg-price-scraper/internal/models"
	"github.com/maltedev/tcg-price-scraper/internal/session"
)

// LoginOnly runs the session manager on its own.
func (s *Scraper) LoginOnly(ctx context.Context) (*models.LoginResult, error) {
	meta, err := s.execute(ctx, "login_only", func(*run) error { return nil })
	if err != nil {
		return nil, err
	}
	return meta.Login, nil
}

// Visit loads url and reports what the browser ended up on. Title and final
// URL are kept even for a blocked page.
func (s *Scraper) Visit(ctx context.Context, url string) (*models.VisitResult, error) {
	res := &models.VisitResult{URL: url}

	meta, err := s.execute(ctx, "visit", func(r *run) error {
		err := s.deps.Navigator.Visit(ctx, r.page, url)
		res.FinalURL = r.page.URL()
		res.Title, _ = r.page.Title()
		res.Blocked = errors.Is(err, browser.ErrBlocked)
		return err
	})
	if err != nil {
		return nil, err
	}

	res.Meta = meta
	return res, nil
}

// Cookies lists the cookies of the stored session without their values.
func (s *Scraper) Cookies(ctx context.Context) ([]models.CookieInfo, error) {
	state := s.deps.Sessions.LoadState(ctx)
	if state == nil {
		return []models.CookieInfo{}, nil
	}
	return session.CookiesFromState(state)
}

// LocalStorage lists the local storage items of the stored session.
func (s *Scraper) LocalStorage(ctx context.Context) ([]models.LocalStorageEntry, error) {
	state := s.deps.Sessions.LoadState(ctx)
	if state == nil {
		return []models.LocalStorageEntry{}, nil
	}
	return session.LocalStorageFromState(state)
}

// ProxyIP loads the IP echo service in a regular session, so the answer is
// the address the site sees, proxy included.
func (s *Scraper) ProxyIP(ctx context.Context) (*models.ProxyIPResult, error) {
	res := &models.ProxyIPResult{EchoURL: s.opts.IPEchoURL}

	meta, err := s.execute(ctx, "proxy_ip", func(r *run) error {
		if err := s.deps.Navigator.Goto(ctx, r.page, res.EchoURL); err != nil {
			return err
		}

		body, err := r.page.InnerText("body", s.opts.ControlTimeout)
		if err != nil {
			return fmt.Errorf("failed to read echo response: %w", err)
		}
		res.Raw = strings.TrimSpace(body)

		var echo struct {
			IP string `json:"ip"`
		}
		if json.Unmarshal([]byte(res.Raw), &echo) == nil && echo.IP != "" {
			res.IP = echo.IP
		} else if !strings.ContainsAny(res.Raw, " \n{<") {
			res.IP = res.Raw
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Meta = meta
	return res, nil
}

// Trace loads url step by step and times every stage. A failing stage ends
// the trace; the steps run so far are kept.
func (s *Scraper) Trace(ctx context.Context, url string) (*models.TraceResult, error) {
	res := &models.TraceResult{URL: url, Steps: []models.TraceStep{}}

	meta, err := s.execute(ctx, "trace", func(r *run) error {
		res.Steps = append(res.Steps, models.TraceStep{Name: "session", OK: r.login.OK, Detail: string(r.login.Reason)})

		step := func(name string, fn func() (string, error)) error {
			start := s.now()
			detail, err := fn()
			st := models.TraceStep{Name: name, OK: err == nil, Detail: detail, ElapsedMs: s.now().Sub(start).Milliseconds()}
			if err != nil {
				st.Error = err.Error()
			}
			res.Steps = append(res.Steps, st)
			return err
		}

		err := step("navigate", func() (string, error) {
			err := s.deps.Navigator.Goto(ctx, r.page, url)
			res.FinalURL = r.page.URL()
			return res.FinalURL, err
		})
		if err != nil {
			return err
		}

		err = step("challenge_check", func() (string, error) {
			if v := browser.Probe(r.page); v.Blocked {
				return v.Phrase, fmt.Errorf("%w: %q on %s", browser.ErrBlocked, v.Phrase, r.page.URL())
			}
			return "", nil
		})
		if err != nil {
			return err
		}

		_ = step("authenticated", func() (string, error) {
			return strconv.FormatBool(s.deps.Sessions.IsAuthenticated(r.page)), nil
		})
		_ = step("title", func() (string, error) {
			return r.page.Title()
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Meta = meta
	return res, nil
}

// MyAccount opens the account page, which redirects anonymous sessions to
// the login form, and reports whether the session is signed in there.
func (s *Scraper) MyAccount(ctx context.Context) (*models.AccountResult, error) {
	res := &models.AccountResult{URL: s.opts.AccountURL}

	meta, err := s.execute(ctx, "my_account", func(r *run) error {
		err := s.deps.Navigator.Visit(ctx, r.page, res.URL)
		res.FinalURL = r.page.URL()
		res.Title, _ = r.page.Title()
		if err != nil {
			return err
		}
		res.Authenticated = s.deps.Sessions.IsAuthenticated(r.page)
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Meta = meta
	return res, nil
}
