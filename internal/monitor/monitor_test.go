package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/maltedev/tcg-price-scraper/internal/models"
	"github.com/maltedev/tcg-price-scraper/internal/notify"
)

const pageURL = "https://www.tcgplayer.com/product/42/dark-magician"

type scriptedFetcher struct {
	mu      sync.Mutex
	results []*models.LastSoldResult
	calls   int
}

func (f *scriptedFetcher) FetchLastSoldOnce(_ context.Context, url string) (*models.LastSoldResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := min(f.calls, len(f.results)-1)
	f.calls++
	res := *f.results[i]
	res.URL = url
	return &res, nil
}

func sale(price float64) *models.LastSoldResult {
	return &models.LastSoldResult{MostRecentSale: &price}
}

type memHistory struct {
	last    map[string]float64
	records []models.SaleObservation
}

func (h *memHistory) LastPrice(_ context.Context, url string) (*float64, error) {
	if v, ok := h.last[url]; ok {
		return &v, nil
	}
	return nil, nil
}

func (h *memHistory) Record(_ context.Context, obs models.SaleObservation) error {
	h.records = append(h.records, obs)
	return nil
}

type countingPacer struct {
	mu                      sync.Mutex
	waits, success, blocked int
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	p.waits++
	p.mu.Unlock()
	return ctx.Err()
}

func (p *countingPacer) RecordSuccess() { p.success++ }
func (p *countingPacer) RecordBlocked() { p.blocked++ }

type recordingNotifier struct {
	mu       sync.Mutex
	sales    []notify.SaleEvent
	startups []notify.Startup
}

func (r *recordingNotifier) NotifySale(_ context.Context, ev notify.SaleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sales = append(r.sales, ev)
	return nil
}

func (r *recordingNotifier) NotifyStartup(_ context.Context, s notify.Startup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startups = append(r.startups, s)
	return nil
}

func (r *recordingNotifier) startupCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.startups)
}

func TestSweepDetectsNewSales(t *testing.T) {
	changed := sale(12.5)
	changed.Title = "Dark Magician (LOB)"
	fetcher := &scriptedFetcher{results: []*models.LastSoldResult{sale(10), sale(10), changed}}
	history := &memHistory{last: map[string]float64{}}
	notifier := &recordingNotifier{}
	pacer := &countingPacer{}

	m := New(fetcher, history, notifier, pacer, Options{URLs: []string{pageURL}})
	ctx := context.Background()

	assert.Equal(t, 0, m.Sweep(ctx), "first value is a baseline")
	assert.Equal(t, 0, m.Sweep(ctx), "unchanged price")
	assert.Equal(t, 1, m.Sweep(ctx))

	require.Len(t, notifier.sales, 1)
	assert.Equal(t, 12.5, notifier.sales[0].Price)
	assert.Equal(t, "Dark Magician (LOB)", notifier.sales[0].Title, "alerts use the page title")
	require.NotNil(t, notifier.sales[0].Previous)
	assert.Equal(t, 10.0, *notifier.sales[0].Previous)

	require.Len(t, history.records, 2)
	assert.Equal(t, "Dark Magician (LOB)", history.records[1].Title)
	assert.Equal(t, 3, pacer.waits)
	assert.Equal(t, 3, pacer.success)
}

func TestSweepUsesStoredPrice(t *testing.T) {
	fetcher := &scriptedFetcher{results: []*models.LastSoldResult{sale(8)}}
	history := &memHistory{last: map[string]float64{pageURL: 7}}
	notifier := &recordingNotifier{}

	m := New(fetcher, history, notifier, nil, Options{URLs: []string{pageURL}})

	assert.Equal(t, 1, m.Sweep(context.Background()))
	require.Len(t, notifier.sales, 1)
	assert.Equal(t, 7.0, *notifier.sales[0].Previous)
}

func TestSweepSkipsFailures(t *testing.T) {
	tests := []struct {
		name        string
		result      *models.LastSoldResult
		wantBlocked int
	}{
		{name: "blocked page", result: &models.LastSoldResult{Meta: models.Meta{Error: models.ErrBlockedOrChallenge}}, wantBlocked: 1},
		{name: "navigation timeout", result: &models.LastSoldResult{Meta: models.Meta{Error: models.ErrTimeoutNav}}},
		{name: "no sale on page", result: &models.LastSoldResult{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := &memHistory{last: map[string]float64{pageURL: 1}}
			notifier := &recordingNotifier{}
			pacer := &countingPacer{}

			m := New(&scriptedFetcher{results: []*models.LastSoldResult{tt.result}}, history, notifier, pacer, Options{URLs: []string{pageURL}})

			assert.Equal(t, 0, m.Sweep(context.Background()))
			assert.Empty(t, notifier.sales)
			assert.Empty(t, history.records)
			assert.Equal(t, tt.wantBlocked, pacer.blocked)
		})
	}
}

type failingFetcher struct{}

func (failingFetcher) FetchLastSoldOnce(context.Context, string) (*models.LastSoldResult, error) {
	return nil, errors.New("browser crashed")
}

func TestSweepContinuesAfterEngineError(t *testing.T) {
	m := New(failingFetcher{}, nil, nil, nil, Options{URLs: []string{pageURL, pageURL + "-2"}})
	assert.Equal(t, 0, m.Sweep(context.Background()))
}

func TestRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	notifier := &recordingNotifier{}
	fetcher := &scriptedFetcher{results: []*models.LastSoldResult{sale(1)}}
	m := New(fetcher, nil, notifier, nil, Options{
		URLs:     []string{pageURL},
		Interval: 5 * time.Millisecond,
		Startup:  true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		fetcher.mu.Lock()
		defer fetcher.mu.Unlock()
		return fetcher.calls >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}

	assert.Equal(t, 1, notifier.startupCount())
}
