package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoState means no session state has been saved yet.
var ErrNoState = errors.New("no session state")

// Store persists the serialized browser session state. Concurrent writers
// are not coordinated; the last write wins.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, state []byte) error
}

type FileStore struct {
	mu   sync.RWMutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoState
	}
	return data, nil
}

func (s *FileStore) Save(_ context.Context, state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create state dir: %w", err)
		}
	}

	// Write to temp file first for atomicity
	tmpFile := s.path + ".tmp"
	if err := os.WriteFile(tmpFile, state, 0o600); err != nil {
		return fmt.Errorf("failed to write session state: %w", err)
	}

	return os.Rename(tmpFile, s.path)
}

// RedisClient is the subset of the redis client used by RedisStore.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStore keeps the state under a single key so several workers can share
// one signed-in session.
type RedisStore struct {
	client RedisClient
	key    string
}

func NewRedisStore(client RedisClient, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session state from redis: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoState
	}
	return data, nil
}

func (s *RedisStore) Save(ctx context.Context, state []byte) error {
	if err := s.client.Set(ctx, s.key, state, 0).Err(); err != nil {
		return fmt.Errorf("failed to save session state to redis: %w", err)
	}
	return nil
}
