package session

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/tcg-price-scraper/internal/models"
)

// MockRedisClient is a mock for the redis client
type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	cmd := redis.NewStringCmd(ctx)
	if err := args.Error(1); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(args.String(0))
	}
	return cmd
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	cmd := redis.NewStatusCmd(ctx)
	if err := args.Error(0); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal("OK")
	}
	return cmd
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "state.json")
	store := NewFileStore(path)

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoState)

	require.NoError(t, store.Save(ctx, []byte(`{"cookies":[]}`)))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"cookies":[]}`, string(got))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")

	require.NoError(t, os.WriteFile(path, nil, 0o600))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoState)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()

	t.Run("load existing state", func(t *testing.T) {
		client := new(MockRedisClient)
		client.On("Get", ctx, "tcg:session-state").Return(`{"cookies":[]}`, nil)

		got, err := NewRedisStore(client, "tcg:session-state").Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, `{"cookies":[]}`, string(got))
		client.AssertExpectations(t)
	})

	t.Run("missing key", func(t *testing.T) {
		client := new(MockRedisClient)
		client.On("Get", ctx, "k").Return("", redis.Nil)

		_, err := NewRedisStore(client, "k").Load(ctx)
		assert.ErrorIs(t, err, ErrNoState)
	})

	t.Run("connection error", func(t *testing.T) {
		client := new(MockRedisClient)
		client.On("Get", ctx, "k").Return("", errors.New("connection refused"))

		_, err := NewRedisStore(client, "k").Load(ctx)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoState)
	})

	t.Run("save", func(t *testing.T) {
		client := new(MockRedisClient)
		client.On("Set", ctx, "k", []byte(`{}`), time.Duration(0)).Return(nil)

		require.NoError(t, NewRedisStore(client, "k").Save(ctx, []byte(`{}`)))
		client.AssertExpectations(t)
	})

	t.Run("save error", func(t *testing.T) {
		client := new(MockRedisClient)
		client.On("Set", ctx, "k", mock.Anything, mock.Anything).Return(errors.New("READONLY"))

		assert.Error(t, NewRedisStore(client, "k").Save(ctx, []byte(`{}`)))
	})
}

func TestHydrator(t *testing.T) {
	ctx := context.Background()
	blob := base64.StdEncoding.EncodeToString([]byte(`{"cookies":[{"name":"sid"}]}`))

	t.Run("writes into empty store once", func(t *testing.T) {
		var h Hydrator
		store := &memStore{}

		written, err := h.Hydrate(ctx, store, blob)
		require.NoError(t, err)
		assert.True(t, written)
		assert.Equal(t, 1, store.saves)

		// later calls are no-ops even with another blob
		other := base64.StdEncoding.EncodeToString([]byte(`{"cookies":[]}`))
		written, err = h.Hydrate(ctx, &memStore{}, other)
		require.NoError(t, err)
		assert.True(t, written)
		assert.Equal(t, 1, store.saves)
	})

	t.Run("never overwrites existing state", func(t *testing.T) {
		var h Hydrator
		store := &memStore{state: []byte(`{"cookies":[{"name":"kept"}]}`)}

		written, err := h.Hydrate(ctx, store, blob)
		require.NoError(t, err)
		assert.False(t, written)
		assert.Equal(t, 0, store.saves)
	})

	t.Run("empty blob", func(t *testing.T) {
		var h Hydrator
		written, err := h.Hydrate(ctx, &memStore{}, "  ")
		require.NoError(t, err)
		assert.False(t, written)
	})

	t.Run("invalid blob", func(t *testing.T) {
		var h Hydrator
		_, err := h.Hydrate(ctx, &memStore{}, "%%%")
		assert.Error(t, err)

		var h2 Hydrator
		_, err = h2.Hydrate(ctx, &memStore{}, base64.StdEncoding.EncodeToString([]byte("not json")))
		assert.Error(t, err)
	})
}

func TestCookiesFromState(t *testing.T) {
	state := []byte(`{"cookies":[{"name":"sid","value":"secret","domain":".tcgplayer.com","path":"/","expires":1700000000}],"origins":[]}`)

	cookies, err := CookiesFromState(state)
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.Equal(t, ".tcgplayer.com", cookies[0].Domain)

	_, err = CookiesFromState([]byte("nope"))
	assert.Error(t, err)
}

func TestLocalStorageFromState(t *testing.T) {
	state := []byte(`{"cookies":[],"origins":[
		{"origin":"https://www.tcgplayer.com","localStorage":[{"name":"cart","value":"abcd"},{"name":"consent","value":"1"}]},
		{"origin":"https://store.tcgplayer.com","localStorage":[]}]}`)

	entries, err := LocalStorageFromState(state)
	require.NoError(t, err)
	assert.Equal(t, []models.LocalStorageEntry{
		{Origin: "https://www.tcgplayer.com", Name: "cart", Size: 4},
		{Origin: "https://www.tcgplayer.com", Name: "consent", Size: 1},
	}, entries)

	empty, err := LocalStorageFromState([]byte(`{"cookies":[]}`))
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = LocalStorageFromState([]byte("nope"))
	assert.Error(t, err)
}
