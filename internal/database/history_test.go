package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/tcg-price-scraper/internal/models"
)

const cardURL = "https://www.tcgplayer.com/product/42/pokemon-charizard"

func newMockStore(t *testing.T) (*HistoryStore, pgxmock.PgxPoolIface) {
	t.Helper()

	mockPool, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)

	mockPool.ExpectPing()
	db, err := Wrap(context.Background(), mockPool)
	require.NoError(t, err)

	t.Cleanup(mockPool.Close)
	return NewHistoryStore(db), mockPool
}

func TestWrapPingFailure(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)

	pingErr := errors.New("database unavailable")
	mockPool.ExpectPing().WillReturnError(pingErr)
	mockPool.ExpectClose()

	_, err = Wrap(context.Background(), mockPool)
	assert.ErrorIs(t, err, pingErr)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestHistoryStore_LastPrice(t *testing.T) {
	ctx := context.Background()

	t.Run("known page", func(t *testing.T) {
		store, mockPool := newMockStore(t)
		mockPool.ExpectQuery(sqlLastPrice).
			WithArgs(cardURL).
			WillReturnRows(pgxmock.NewRows([]string{"last_price"}).AddRow(12.5))

		price, err := store.LastPrice(ctx, cardURL)
		require.NoError(t, err)
		require.NotNil(t, price)
		assert.Equal(t, 12.5, *price)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("unknown page", func(t *testing.T) {
		store, mockPool := newMockStore(t)
		mockPool.ExpectQuery(sqlLastPrice).
			WithArgs(cardURL).
			WillReturnError(pgx.ErrNoRows)

		price, err := store.LastPrice(ctx, cardURL)
		require.NoError(t, err)
		assert.Nil(t, price)
	})

	t.Run("query error", func(t *testing.T) {
		store, mockPool := newMockStore(t)
		mockPool.ExpectQuery(sqlLastPrice).
			WithArgs(cardURL).
			WillReturnError(errors.New("connection reset"))

		_, err := store.LastPrice(ctx, cardURL)
		assert.Error(t, err)
	})
}

func TestHistoryStore_Record(t *testing.T) {
	ctx := context.Background()
	obs := models.SaleObservation{
		URL:        cardURL,
		Title:      "Charizard",
		Price:      19.99,
		ObservedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	t.Run("commits both writes", func(t *testing.T) {
		store, mockPool := newMockStore(t)
		mockPool.ExpectBegin()
		mockPool.ExpectExec(sqlInsertObservation).
			WithArgs(pgxmock.AnyArg(), obs.URL, obs.Title, obs.Price, obs.ObservedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectExec(sqlUpsertTracked).
			WithArgs(obs.URL, obs.Price, obs.ObservedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()

		require.NoError(t, store.Record(ctx, obs))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("rolls back on failure", func(t *testing.T) {
		store, mockPool := newMockStore(t)
		mockPool.ExpectBegin()
		mockPool.ExpectExec(sqlInsertObservation).
			WithArgs(pgxmock.AnyArg(), obs.URL, obs.Title, obs.Price, obs.ObservedAt).
			WillReturnError(errors.New("disk full"))
		mockPool.ExpectRollback()

		err := store.Record(ctx, obs)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestHistoryStore_Recent(t *testing.T) {
	store, mockPool := newMockStore(t)
	seen := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mockPool.ExpectQuery(sqlRecentObservations).
		WithArgs(cardURL, 20).
		WillReturnRows(pgxmock.NewRows([]string{"url", "title", "price", "observed_at"}).
			AddRow(cardURL, "Charizard", 19.99, seen).
			AddRow(cardURL, "Charizard", 17.5, seen.Add(-time.Hour)))

	got, err := store.Recent(context.Background(), cardURL, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 19.99, got[0].Price)
	assert.Equal(t, seen, got[0].ObservedAt)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestHistoryStore_EnsureSchema(t *testing.T) {
	store, mockPool := newMockStore(t)
	mockPool.ExpectExec(sqlCreateSchema).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
