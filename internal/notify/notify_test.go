package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRedisClient is a mock for Redis client
type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if err := mockArgs.Error(0); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal("1234567890-0")
	}
	return cmd
}

type recordingNotifier struct {
	sales    []SaleEvent
	startups int
	err      error
}

func (r *recordingNotifier) NotifySale(_ context.Context, ev SaleEvent) error {
	r.sales = append(r.sales, ev)
	return r.err
}

func (r *recordingNotifier) NotifyStartup(context.Context, Startup) error {
	r.startups++
	return r.err
}

func TestCardName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.tcgplayer.com/product/42/pokemon-base-set-charizard", "Pokemon Base Set Charizard"},
		{"https://www.tcgplayer.com/product/42/pokemon-base-set-charizard?Language=English", "Pokemon Base Set Charizard"},
		{"https://www.tcgplayer.com/product/42?Language=English", "Product 42"},
		{"https://www.tcgplayer.com/search/all", "Unknown Card"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, CardName(tt.url))
		})
	}
}

func TestMessages(t *testing.T) {
	prev := 10.0
	msg := SaleMessage(SaleEvent{URL: "https://www.tcgplayer.com/product/42/dark-magician", Price: 12.5, Previous: &prev})
	assert.Equal(t, "💰 New Sale: Dark Magician - $12.50 (was $10.00)\nhttps://www.tcgplayer.com/product/42/dark-magician", msg)

	startup := StartupMessage(Startup{
		URLs:     []string{"https://www.tcgplayer.com/product/1/blue-eyes-white-dragon", "https://www.tcgplayer.com/product/2/dark-magician"},
		Interval: 5 * time.Minute,
	})
	assert.Contains(t, startup, "Monitoring 2 cards")
	assert.Contains(t, startup, "• Blue Eyes White Dragon\n• Dark Magician\n")
	assert.Contains(t, startup, "Every 5 minutes")
	assert.Contains(t, startup, "New sales only")
}

func TestWebhookNotifier(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, "", time.Second)
	require.NoError(t, n.NotifySale(context.Background(), SaleEvent{URL: "https://www.tcgplayer.com/product/42/dark-magician", Price: 3}))

	assert.Equal(t, DefaultUsername, got.Username)
	assert.Contains(t, got.Content, "Dark Magician - $3.00")
}

func TestWebhookNotifierGraph(t *testing.T) {
	var (
		caption  webhookPayload
		fileName string
		image    []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.Unmarshal([]byte(r.FormValue("payload_json")), &caption)

		f, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		fileName = header.Filename
		image, _ = io.ReadAll(f)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "graph_dark-magician.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG"), 0o644))

	n := NewWebhookNotifier(server.URL, "", time.Second)
	err := n.NotifyGraph(context.Background(), GraphEvent{
		URL:        "https://www.tcgplayer.com/product/42/dark-magician",
		Path:       path,
		CapturedAt: time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, "graph_dark-magician.png", fileName)
	assert.Equal(t, []byte("\x89PNG"), image)
	assert.Equal(t, DefaultUsername, caption.Username)
	assert.Contains(t, caption.Content, "Price Graph Captured")
	assert.Contains(t, caption.Content, "**Card:** Dark Magician")
	assert.Contains(t, caption.Content, "2025-03-01 13:00:00")

	// a missing file never reaches the webhook
	assert.Error(t, n.NotifyGraph(context.Background(), GraphEvent{Path: filepath.Join(t.TempDir(), "gone.png")}))
	assert.NoError(t, NewWebhookNotifier("", "", 0).NotifyGraph(context.Background(), GraphEvent{Path: "gone.png"}))
}

func TestWebhookNotifierErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	err := NewWebhookNotifier(server.URL, "bot", time.Second).NotifyStartup(context.Background(), Startup{})
	assert.Error(t, err)

	// an unset webhook is a no-op
	assert.NoError(t, NewWebhookNotifier("", "", 0).NotifyStartup(context.Background(), Startup{}))
}

func TestStreamNotifier(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes sale events", func(t *testing.T) {
		client := new(MockRedisClient)
		client.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			values, ok := args.Values.(map[string]any)
			if !ok || args.Stream != "tcg:sales" || values["type"] != EventTypeNewSale {
				return false
			}

			var data map[string]any
			if err := json.Unmarshal([]byte(values["data"].(string)), &data); err != nil {
				return false
			}
			payload := data["payload"].(map[string]any)
			return payload["price"] == 7.25 && payload["previous_price"] == 5.0
		})).Return(nil)

		prev := 5.0
		n := NewStreamNotifier(client, "tcg:sales")
		require.NoError(t, n.NotifySale(ctx, SaleEvent{URL: "https://x/product/1", Price: 7.25, Previous: &prev, ObservedAt: time.Now()}))
		client.AssertExpectations(t)
	})

	t.Run("publishes graph events", func(t *testing.T) {
		client := new(MockRedisClient)
		client.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			values, ok := args.Values.(map[string]any)
			return ok && values["type"] == EventTypeGraph && values["aggregate_id"] == "https://x/product/1"
		})).Return(nil)

		n := NewStreamNotifier(client, "tcg:sales")
		require.NoError(t, n.NotifyGraph(ctx, GraphEvent{URL: "https://x/product/1", Path: "g.png", CapturedAt: time.Now()}))
		client.AssertExpectations(t)
	})

	t.Run("reports redis errors", func(t *testing.T) {
		client := new(MockRedisClient)
		client.On("XAdd", ctx, mock.Anything).Return(errors.New("NOGROUP"))

		err := NewStreamNotifier(client, "tcg:sales").NotifyStartup(ctx, Startup{URLs: []string{"u"}})
		assert.ErrorContains(t, err, "NOGROUP")
	})
}

func TestMulti(t *testing.T) {
	ok := &recordingNotifier{}
	broken := &recordingNotifier{err: errors.New("down")}
	m := Multi{broken, ok}

	err := m.NotifySale(context.Background(), SaleEvent{URL: "u", Price: 1})
	assert.ErrorContains(t, err, "down")
	assert.Len(t, ok.sales, 1, "a failing notifier does not stop the others")

	require.Error(t, m.NotifyStartup(context.Background(), Startup{}))
	assert.Equal(t, 1, ok.startups)

	graphs := &graphRecorder{}
	require.NoError(t, Multi{ok, graphs}.NotifyGraph(context.Background(), GraphEvent{URL: "u", Path: "g.png"}))
	assert.Equal(t, []string{"g.png"}, graphs.paths, "members without graph support are skipped")
}

type graphRecorder struct {
	recordingNotifier
	paths []string
}

func (g *graphRecorder) NotifyGraph(_ context.Context, ev GraphEvent) error {
	g.paths = append(g.paths, ev.Path)
	return nil
}
