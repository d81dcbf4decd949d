package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/tcg-price-scraper/internal/models"
)

const (
	sqlCreateSchema = `
		CREATE TABLE IF NOT EXISTS sale_observation (
			id          UUID PRIMARY KEY,
			url         TEXT NOT NULL,
			title       TEXT NOT NULL DEFAULT '',
			price       DOUBLE PRECISION NOT NULL,
			observed_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS sale_observation_url_idx ON sale_observation (url, observed_at DESC);
		CREATE TABLE IF NOT EXISTS tracked_product (
			url        TEXT PRIMARY KEY,
			last_price DOUBLE PRECISION NOT NULL,
			last_seen  TIMESTAMPTZ NOT NULL
		);`

	sqlLastPrice = `SELECT last_price FROM tracked_product WHERE url = $1`

	sqlInsertObservation = `
		INSERT INTO sale_observation (id, url, title, price, observed_at)
		VALUES ($1, $2, $3, $4, $5)`

	sqlUpsertTracked = `
		INSERT INTO tracked_product (url, last_price, last_seen)
		VALUES ($1, $2, $3)
		ON CONFLICT (url) DO UPDATE SET
			last_price = EXCLUDED.last_price,
			last_seen = EXCLUDED.last_seen`

	sqlRecentObservations = `
		SELECT url, title, price, observed_at
		FROM sale_observation
		WHERE url = $1
		ORDER BY observed_at DESC
		LIMIT $2`
)

// HistoryStore keeps the most recent sale seen per product page and every
// change of it.
type HistoryStore struct {
	db     *DB
	logger *slog.Logger
}

func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{
		db:     db,
		logger: slog.Default().With("component", "history"),
	}
}

func (s *HistoryStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.pool.Exec(ctx, sqlCreateSchema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// LastPrice returns the last recorded sale price of url, or nil when the page
// was never recorded.
func (s *HistoryStore) LastPrice(ctx context.Context, url string) (*float64, error) {
	var price float64
	err := s.db.pool.QueryRow(ctx, sqlLastPrice, url).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last price: %w", err)
	}
	return &price, nil
}

// Record stores an observation and makes it the last price of its page.
func (s *HistoryStore) Record(ctx context.Context, obs models.SaleObservation) error {
	err := s.db.Transaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, sqlInsertObservation, uuid.New(), obs.URL, obs.Title, obs.Price, obs.ObservedAt); err != nil {
			return fmt.Errorf("failed to insert observation: %w", err)
		}
		if _, err := tx.Exec(ctx, sqlUpsertTracked, obs.URL, obs.Price, obs.ObservedAt); err != nil {
			return fmt.Errorf("failed to update tracked product: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("sale recorded", "url", obs.URL, "price", obs.Price)
	return nil
}

// Recent lists the latest observations of url, newest first.
func (s *HistoryStore) Recent(ctx context.Context, url string, limit int) ([]models.SaleObservation, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.pool.Query(ctx, sqlRecentObservations, url, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	out := []models.SaleObservation{}
	for rows.Next() {
		var obs models.SaleObservation
		if err := rows.Scan(&obs.URL, &obs.Title, &obs.Price, &obs.ObservedAt); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read observations: %w", err)
	}
	return out, nil
}
