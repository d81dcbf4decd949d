package session

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/maltedev/tcg-price-scraper/internal/browser"
	"github.com/maltedev/tcg-price-scraper/internal/models"
)

var (
	emailSelectors = []string{
		`input[name="email"]`,
		`input[type="email"]`,
		`#email`,
		`input[autocomplete="username"]`,
	}
	passwordSelectors = []string{
		`input[name="password"]`,
		`input[type="password"]`,
		`#password`,
	}
	submitSelectors = []string{
		`button[type="submit"]`,
		`button:has-text("Sign In")`,
		`button:has-text("Log In")`,
	}
	accountSelectors = []string{
		`[data-testid="account-menu"]`,
		`a[href*="/myaccount"]`,
		`.my-account`,
		`button:has-text("My Account")`,
		`[aria-label*="Account"]`,
	}
	signInSelectors = []string{
		`a[href*="/login"]`,
		`button:has-text("Sign In")`,
		`a:has-text("Sign In")`,
	}
	challengePhrases = []string{
		"enter the code",
		"security code",
		"one-time code",
		"2fa",
		"two-factor",
		"one-time password",
	}
)

// Navigator is the part of browser.Navigator the manager needs.
type Navigator interface {
	Goto(ctx context.Context, page browser.Page, url string) error
}

// Capturer records diagnostics around the login flow.
type Capturer interface {
	Capture(page browser.Page, tag string) *models.Artifacts
}

type Options struct {
	HomeURL         string
	LoginURL        string
	Email           string
	Password        string
	DisableLogin    bool
	VerifyPolls     int
	VerifyInterval  time.Duration
	SelectorTimeout time.Duration
}

type nopCapturer struct{}

func (nopCapturer) Capture(browser.Page, string) *models.Artifacts { return nil }

// Manager owns the session state. Callers only ask it to make sure a
// session is signed in and get back a LoginResult.
type Manager struct {
	store   Store
	nav     Navigator
	capture Capturer
	opts    Options
	logger  *slog.Logger
	sleep   func(time.Duration)
}

func NewManager(store Store, nav Navigator, capture Capturer, opts Options) *Manager {
	if opts.VerifyPolls <= 0 {
		opts.VerifyPolls = 10
	}
	if opts.VerifyInterval <= 0 {
		opts.VerifyInterval = time.Second
	}
	if opts.SelectorTimeout <= 0 {
		opts.SelectorTimeout = 4 * time.Second
	}
	if capture == nil {
		capture = nopCapturer{}
	}
	return &Manager{
		store:   store,
		nav:     nav,
		capture: capture,
		opts:    opts,
		logger:  slog.Default().With("component", "session"),
		sleep:   time.Sleep,
	}
}

func (m *Manager) Store() Store {
	return m.store
}

// LoadState returns the persisted state, or nil when there is none or it
// cannot be read.
func (m *Manager) LoadState(ctx context.Context) []byte {
	state, err := m.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoState) {
			m.logger.Warn("failed to load session state", "error", err)
		}
		return nil
	}
	return state
}

// OpenSession opens an engine session restored from the persisted state and
// reports whether a state was found.
func (m *Manager) OpenSession(ctx context.Context, engine browser.Engine) (browser.Session, bool, error) {
	state := m.LoadState(ctx)
	sess, err := engine.Open(ctx, browser.SessionOptions{StorageState: state})
	if err != nil {
		return nil, false, err
	}
	return sess, state != nil, nil
}

// CanLogin reports whether a credential login may be attempted.
func (m *Manager) CanLogin() bool {
	return !m.opts.DisableLogin && m.opts.Email != "" && m.opts.Password != ""
}

func (m *Manager) onLoginPath(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.Contains(strings.ToLower(raw), "/login")
	}
	return strings.Contains(strings.ToLower(u.Path), "login")
}

func anyPresent(page browser.Page, selectors []string) bool {
	for _, sel := range selectors {
		if n, err := page.Count(sel); err == nil && n > 0 {
			return true
		}
	}
	return false
}

func anyVisible(page browser.Page, selectors []string) bool {
	for _, sel := range selectors {
		if ok, err := page.IsVisible(sel); err == nil && ok {
			return true
		}
	}
	return false
}

// IsAuthenticated requires all three signals: not on the login path, an
// account affordance present, and no visible sign-in affordance.
func (m *Manager) IsAuthenticated(page browser.Page) bool {
	if m.onLoginPath(page.URL()) {
		return false
	}
	return anyPresent(page, accountSelectors) && !anyVisible(page, signInSelectors)
}

func challengeShown(page browser.Page) bool {
	body, err := page.InnerText("body", 2*time.Second)
	if err != nil {
		return false
	}
	lower := strings.ToLower(body)
	for _, p := range challengePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// EnsureLoggedIn verifies a restored session and falls back to a credential
// login. It never retries a failed login.
func (m *Manager) EnsureLoggedIn(ctx context.Context, sess browser.Session, page browser.Page, hadState bool) models.LoginResult {
	if hadState {
		if err := m.nav.Goto(ctx, page, m.opts.HomeURL); err != nil {
			m.logger.Warn("failed to load home page with stored state", "error", err)
		} else if m.IsAuthenticated(page) {
			m.logger.Info("stored session is signed in")
			return models.LoginResult{OK: true, Reason: models.LoginReasonExistingState, UsedExistingState: true}
		}

		if m.opts.DisableLogin {
			m.logger.Info("login disabled, continuing with unverified stored state")
			return models.LoginResult{OK: true, Reason: models.LoginReasonStateOnly, UsedExistingState: true}
		}
	}

	switch {
	case m.opts.DisableLogin:
		return models.LoginResult{Reason: models.LoginReasonNoStateNoCreds}
	case m.opts.Email == "" && m.opts.Password == "":
		return models.LoginResult{Reason: models.LoginReasonNoStateNoCreds, UsedExistingState: hadState}
	case m.opts.Email == "" || m.opts.Password == "":
		return models.LoginResult{Reason: models.LoginReasonMissingCreds, UsedExistingState: hadState}
	}

	result := m.Login(ctx, sess, page)
	result.UsedExistingState = hadState
	return result
}

// Login runs the credential flow once. The new state is persisted only when
// the signed-in signal is seen and no challenge is on screen.
func (m *Manager) Login(ctx context.Context, sess browser.Session, page browser.Page) models.LoginResult {
	result := models.LoginResult{LoginAttempted: true}

	if !m.CanLogin() {
		result.LoginAttempted = false
		result.Reason = models.LoginReasonMissingCreds
		return result
	}

	logger := m.logger.With("login_url", m.opts.LoginURL)

	if err := m.nav.Goto(ctx, page, m.opts.LoginURL); err != nil {
		logger.Error("failed to open login page", "error", err)
		result.Reason = models.LoginReasonNavigationError
		result.Artifacts = m.capture.Capture(page, "login_nav")
		return result
	}

	if !m.onLoginPath(page.URL()) && m.IsAuthenticated(page) {
		logger.Info("redirected away from login, already signed in")
		return m.persist(ctx, sess, result)
	}

	result.Artifacts = m.capture.Capture(page, "login_before")

	steps := []struct {
		name       string
		strategies []browser.Strategy
	}{
		{"email", browser.FillStrategies(emailSelectors, m.opts.Email, m.opts.SelectorTimeout)},
		{"password", browser.FillStrategies(passwordSelectors, m.opts.Password, m.opts.SelectorTimeout)},
		{"submit", append(
			browser.ClickStrategies(submitSelectors, m.opts.SelectorTimeout),
			browser.PressStrategy(passwordSelectors[0], "Enter", m.opts.SelectorTimeout),
			browser.PressStrategy(passwordSelectors[1], "Enter", m.opts.SelectorTimeout),
		)},
	}

	for _, step := range steps {
		used, err := browser.FirstSuccess(page, step.strategies)
		if err != nil {
			logger.Error("login step failed", "step", step.name, "error", err)
			result.Reason = models.LoginReasonSelectors
			result.Artifacts = m.capture.Capture(page, "login_selectors")
			return result
		}
		logger.Debug("login step done", "step", step.name, "strategy", used)
	}

	verdict := models.LoginReasonVerification
	for i := 0; i < m.opts.VerifyPolls; i++ {
		if ctx.Err() != nil {
			break
		}
		m.sleep(m.opts.VerifyInterval)

		if challengeShown(page) {
			verdict = models.LoginReasonChallenge
			break
		}
		if m.IsAuthenticated(page) {
			verdict = models.LoginReasonLoggedIn
			break
		}
	}

	if after := m.capture.Capture(page, "login_after"); after != nil {
		result.Artifacts = after
	}

	switch verdict {
	case models.LoginReasonLoggedIn:
		logger.Info("login succeeded")
		return m.persist(ctx, sess, result)
	case models.LoginReasonChallenge:
		logger.Warn("login stopped at a verification challenge, state not saved")
	default:
		logger.Warn("login could not be verified", "polls", m.opts.VerifyPolls)
	}

	result.Reason = verdict
	return result
}

func (m *Manager) persist(ctx context.Context, sess browser.Session, result models.LoginResult) models.LoginResult {
	result.OK = true
	result.Reason = models.LoginReasonLoggedIn

	state, err := sess.StorageState()
	if err != nil {
		m.logger.Error("failed to read session state", "error", err)
		return result
	}
	if err := m.store.Save(ctx, state); err != nil {
		m.logger.Error("failed to persist session state", "error", err)
	}
	return result
}
