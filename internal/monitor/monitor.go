// Package monitor polls product pages for new most-recent sales.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maltedev/tcg-price-scraper/internal/models"
	"github.com/maltedev/tcg-price-scraper/internal/notify"
)

type Fetcher interface {
	FetchLastSoldOnce(ctx context.Context, url string) (*models.LastSoldResult, error)
}

// History persists observations. It is optional.
type History interface {
	LastPrice(ctx context.Context, url string) (*float64, error)
	Record(ctx context.Context, obs models.SaleObservation) error
}

// Pacer spaces out fetches and learns from blocked responses.
type Pacer interface {
	Wait(ctx context.Context) error
	RecordSuccess()
	RecordBlocked()
}

type Options struct {
	URLs     []string
	Interval time.Duration
	Startup  bool
}

type Monitor struct {
	fetcher  Fetcher
	history  History
	notifier notify.Notifier
	pacer    Pacer
	opts     Options
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.Mutex
	last map[string]float64
}

func New(fetcher Fetcher, history History, notifier notify.Notifier, pacer Pacer, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if notifier == nil {
		notifier = notify.Multi{}
	}
	return &Monitor{
		fetcher:  fetcher,
		history:  history,
		notifier: notifier,
		pacer:    pacer,
		opts:     opts,
		logger:   slog.Default().With("component", "monitor"),
		now:      time.Now,
		last:     map[string]float64{},
	}
}

// Run sweeps all pages every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("starting monitor", "pages", len(m.opts.URLs), "interval", m.opts.Interval)

	if m.opts.Startup {
		err := m.notifier.NotifyStartup(ctx, notify.Startup{URLs: m.opts.URLs, Interval: m.opts.Interval})
		if err != nil {
			m.logger.Error("failed to send startup notification", "error", err)
		}
	}

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	m.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep checks every page once and returns how many new sales were seen.
func (m *Monitor) Sweep(ctx context.Context) int {
	found := 0
	for _, url := range m.opts.URLs {
		if m.pacer != nil {
			if err := m.pacer.Wait(ctx); err != nil {
				return found
			}
		}

		isNew, err := m.check(ctx, url)
		if err != nil {
			m.logger.Error("check failed", "url", url, "error", err)
			continue
		}
		if isNew {
			found++
		}
	}
	return found
}

func (m *Monitor) check(ctx context.Context, url string) (bool, error) {
	res, err := m.fetcher.FetchLastSoldOnce(ctx, url)
	if err != nil {
		return false, fmt.Errorf("failed to fetch last sold: %w", err)
	}

	switch res.Error {
	case "":
		m.recordSuccess()
	case models.ErrBlockedOrChallenge:
		m.recordBlocked()
		m.logger.Warn("page blocked, backing off", "url", url)
		return false, nil
	default:
		m.logger.Warn("fetch reported an error", "url", url, "code", res.Error, "message", res.Message)
		return false, nil
	}

	if res.MostRecentSale == nil {
		m.logger.Debug("no recent sale on page", "url", url)
		return false, nil
	}

	price := *res.MostRecentSale
	prev := m.previous(ctx, url)
	if prev != nil && *prev == price {
		return false, nil
	}

	obs := models.SaleObservation{URL: url, Title: res.Title, Price: price, ObservedAt: m.now().UTC()}
	m.remember(url, price)
	if m.history != nil {
		if err := m.history.Record(ctx, obs); err != nil {
			m.logger.Error("failed to record observation", "url", url, "error", err)
		}
	}

	// the first value seen for a page is a baseline, not a sale
	if prev == nil {
		m.logger.Info("baseline recorded", "url", url, "price", price)
		return false, nil
	}

	ev := notify.SaleEvent{URL: url, Title: res.Title, Price: price, Previous: prev, ObservedAt: obs.ObservedAt}
	m.logger.Info("new sale", "url", url, "price", price, "previous", *prev)
	if err := m.notifier.NotifySale(ctx, ev); err != nil {
		m.logger.Error("failed to send sale notification", "url", url, "error", err)
	}
	return true, nil
}

func (m *Monitor) previous(ctx context.Context, url string) *float64 {
	m.mu.Lock()
	v, ok := m.last[url]
	m.mu.Unlock()
	if ok {
		return &v
	}

	if m.history == nil {
		return nil
	}
	stored, err := m.history.LastPrice(ctx, url)
	if err != nil {
		m.logger.Error("failed to read last price", "url", url, "error", err)
		return nil
	}
	return stored
}

func (m *Monitor) remember(url string, price float64) {
	m.mu.Lock()
	m.last[url] = price
	m.mu.Unlock()
}

func (m *Monitor) recordSuccess() {
	if m.pacer != nil {
		m.pacer.RecordSuccess()
	}
}

func (m *Monitor) recordBlocked() {
	if m.pacer != nil {
		m.pacer.RecordBlocked()
	}
}
