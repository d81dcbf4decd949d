package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maltedev/tcg-price-scraper/internal/browser"
	"github.com/maltedev/tcg-price-scraper/internal/models"
	"github.com/maltedev/tcg-price-scraper/internal/pagination"
	"github.com/maltedev/tcg-price-scraper/internal/parser"
)

// Failure is an operational failure carrying the code reported in the
// result payload.
type Failure struct {
	Code models.ErrorCode
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Code)
	}
	return fmt.Sprintf("%s: %v", f.Code, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func fail(code models.ErrorCode, err error) error {
	return &Failure{Code: code, Err: err}
}

// classify maps an error from the lower layers onto a result code.
func classify(err error) *Failure {
	var f *Failure
	switch {
	case errors.As(err, &f):
		return f
	case errors.Is(err, browser.ErrBlocked):
		return &Failure{Code: models.ErrBlockedOrChallenge, Err: err}
	case errors.Is(err, browser.ErrNavigation):
		return &Failure{Code: models.ErrTimeoutNav, Err: err}
	case errors.Is(err, pagination.ErrGuardExceeded):
		return &Failure{Code: models.ErrPaginationFailed, Err: err}
	case errors.Is(err, parser.ErrContainerNotFound):
		return &Failure{Code: models.ErrListingsContainerMissing, Err: err}
	default:
		return &Failure{Code: models.ErrInternal, Err: err}
	}
}

// SessionManager is the part of session.Manager the facade drives.
type SessionManager interface {
	OpenSession(ctx context.Context, engine browser.Engine) (browser.Session, bool, error)
	EnsureLoggedIn(ctx context.Context, sess browser.Session, page browser.Page, hadState bool) models.LoginResult
	Login(ctx context.Context, sess browser.Session, page browser.Page) models.LoginResult
	IsAuthenticated(page browser.Page) bool
	CanLogin() bool
	LoadState(ctx context.Context) []byte
}

type Visitor interface {
	Goto(ctx context.Context, page browser.Page, url string) error
	Visit(ctx context.Context, page browser.Page, url string) error
}

type Capturer interface {
	Capture(page browser.Page, tag string) *models.Artifacts
}

type Deps struct {
	Engine    browser.Engine
	Sessions  SessionManager
	Navigator Visitor
	Traverser *pagination.Traverser
	Parser    parser.Parser
	Listings  parser.ListingSource
	Capture   Capturer
	Graphs    GraphStore
}

type Options struct {
	ProductURL      func(productID string) string
	DialogWait      time.Duration
	PageWaitTimeout time.Duration
	ControlTimeout  time.Duration
	MaxListingPages int
	PollInterval    time.Duration
	ChartWait       time.Duration
	AccountURL      string
	IPEchoURL       string
}

// Scraper is the orchestration facade. Operations run one at a time, each in
// its own engine session that is closed on every exit path.
type Scraper struct {
	mu sync.Mutex

	deps   Deps
	opts   Options
	logger *slog.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

func New(deps Deps, opts Options) *Scraper {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.ControlTimeout <= 0 {
		opts.ControlTimeout = 3 * time.Second
	}
	if opts.AccountURL == "" {
		opts.AccountURL = "https://www.tcgplayer.com/myaccount/"
	}
	if opts.IPEchoURL == "" {
		opts.IPEchoURL = "https://api.ipify.org?format=json"
	}
	if opts.ChartWait <= 0 {
		opts.ChartWait = 8 * time.Second
	}
	if opts.MaxListingPages <= 0 {
		opts.MaxListingPages = 10
	}
	if opts.ProductURL == nil {
		opts.ProductURL = func(id string) string {
			return fmt.Sprintf("https://www.tcgplayer.com/product/%s?Language=English", id)
		}
	}
	return &Scraper{
		deps:   deps,
		opts:   opts,
		logger: slog.Default().With("component", "scraper"),
		now:    time.Now,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// polls returns how many checks fit in wait at the configured interval,
// counting the immediate first one.
func (s *Scraper) polls(wait time.Duration) int {
	n := int(wait / s.opts.PollInterval)
	if n < 1 {
		n = 1
	}
	return n + 1
}

type run struct {
	sess  browser.Session
	page  browser.Page
	login models.LoginResult
}

// execute opens a session, makes sure it is signed in and runs fn against
// its page. A failure returned by fn ends up in the meta with diagnostics
// attached. Only an engine that cannot start is returned as an error.
func (s *Scraper) execute(ctx context.Context, op string, fn func(r *run) error) (models.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	logger := s.logger.With("op", op)

	sess, hadState, err := s.deps.Sessions.OpenSession(ctx, s.deps.Engine)
	if err != nil {
		return models.Meta{}, fmt.Errorf("failed to open browser session: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("failed to close browser session", "error", err)
		}
	}()

	page, err := sess.NewPage()
	if err != nil {
		return models.Meta{}, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	r := &run{sess: sess, page: page}
	r.login = s.deps.Sessions.EnsureLoggedIn(ctx, sess, page, hadState)
	logger.Debug("session ready", "login_ok", r.login.OK, "reason", r.login.Reason)

	opErr := fn(r)

	login := r.login
	meta := models.Meta{Login: &login, Timestamp: start.UTC()}
	if opErr != nil {
		f := classify(opErr)
		meta.Error = f.Code
		meta.Message = f.Error()
		meta.Artifacts = s.deps.Capture.Capture(page, string(f.Code))
		logger.Warn("operation failed", "code", f.Code, "error", f.Err)
	}
	meta.ElapsedMs = s.now().Sub(start).Milliseconds()

	return meta, nil
}

// load visits url and, when the session is still anonymous and no login was
// tried yet, runs one login and reloads.
func (s *Scraper) load(ctx context.Context, r *run, url string) error {
	if err := s.deps.Navigator.Visit(ctx, r.page, url); err != nil {
		return err
	}

	if r.login.LoginAttempted || !s.deps.Sessions.CanLogin() || s.deps.Sessions.IsAuthenticated(r.page) {
		return nil
	}

	s.logger.Info("target page is not signed in, trying one login", "url", url)
	second := s.deps.Sessions.Login(ctx, r.sess, r.page)
	second.UsedExistingState = r.login.UsedExistingState
	r.login = second

	return s.deps.Navigator.Visit(ctx, r.page, url)
}

// readListings polls the listing adapter until the container renders or the
// page wait runs out.
func (s *Scraper) readListings(ctx context.Context, page browser.Page) ([]parser.RawListing, error) {
	var lastErr error
	for i := 0; i < s.polls(s.opts.PageWaitTimeout); i++ {
		if i > 0 {
			if err := s.sleep(ctx, s.opts.PollInterval); err != nil {
				return nil, err
			}
		}

		raws, err := s.deps.Listings.RawListings(page)
		if err == nil {
			return raws, nil
		}
		if !errors.Is(err, parser.ErrContainerNotFound) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fail(models.ErrListingsContainerMissing, fmt.Errorf("waited %s: %w", s.opts.PageWaitTimeout, lastErr))
}

// probeAfterHop catches a challenge served in place of a listings page.
func probeAfterHop(page browser.Page) error {
	if v := browser.Probe(page); v.Blocked {
		return fmt.Errorf("%w: %q on %s", browser.ErrBlocked, v.Phrase, page.URL())
	}
	return nil
}
