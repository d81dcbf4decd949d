package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	EventTypeNewSale = "NEW_SALE_DETECTED"
	EventTypeStartup = "MONITOR_STARTED"
	EventTypeGraph   = "PRICE_GRAPH_CAPTURED"
)

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// StreamNotifier publishes monitor events to a redis stream.
type StreamNotifier struct {
	redis  RedisClient
	stream string
	logger *slog.Logger
	now    func() time.Time
}

func NewStreamNotifier(client RedisClient, stream string) *StreamNotifier {
	return &StreamNotifier{
		redis:  client,
		stream: stream,
		logger: slog.Default().With("component", "stream"),
		now:    time.Now,
	}
}

func (s *StreamNotifier) NotifySale(ctx context.Context, ev SaleEvent) error {
	payload := map[string]any{
		"url":         ev.URL,
		"title":       ev.Title,
		"price":       ev.Price,
		"observed_at": ev.ObservedAt.UTC().Format(time.RFC3339),
	}
	if ev.Previous != nil {
		payload["previous_price"] = *ev.Previous
	}
	return s.publish(ctx, EventTypeNewSale, ev.URL, payload)
}

func (s *StreamNotifier) NotifyStartup(ctx context.Context, st Startup) error {
	payload := map[string]any{
		"urls":             st.URLs,
		"interval_seconds": int(st.Interval.Seconds()),
	}
	return s.publish(ctx, EventTypeStartup, "monitor", payload)
}

func (s *StreamNotifier) NotifyGraph(ctx context.Context, ev GraphEvent) error {
	payload := map[string]any{
		"url":         ev.URL,
		"title":       ev.Title,
		"path":        ev.Path,
		"captured_at": ev.CapturedAt.UTC().Format(time.RFC3339),
	}
	return s.publish(ctx, EventTypeGraph, ev.URL, payload)
}

func (s *StreamNotifier) publish(ctx context.Context, eventType, aggregateID string, payload map[string]any) error {
	id := uuid.New()
	created := s.now().UTC()

	data, err := json.Marshal(map[string]any{
		"id":           id.String(),
		"type":         eventType,
		"aggregate_id": aggregateID,
		"timestamp":    created.Format(time.RFC3339),
		"payload":      payload,
		"metadata": map[string]any{
			"source": "tcg-price-scraper",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal stream data: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"data":         string(data),
			"type":         eventType,
			"timestamp":    fmt.Sprintf("%d", created.UnixNano()),
			"original_id":  id.String(),
			"aggregate_id": aggregateID,
		},
	}

	if _, err := s.redis.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	s.logger.Info("event published", "event_id", id, "event_type", eventType, "stream", s.stream)
	return nil
}
