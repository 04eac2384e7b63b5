package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/retrofails/backend/internal/navigation"
)

// NavigationSession is one visitor's browser position plus the criteria that
// produced the collection the position refers to.
type NavigationSession struct {
	State      navigation.State `json:"state"`
	Search     string           `json:"search"`
	Categories []string         `json:"categories"`
	Sort       string           `json:"sort"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func NewNavigationSession() *NavigationSession {
	return &NavigationSession{State: navigation.NewState(), Categories: []string{}}
}

// ErrSessionNotFound is returned by stores for unknown or expired ids.
var ErrSessionNotFound = errors.New("navigation session not found")

// NavigationStore persists navigation sessions between requests.
type NavigationStore interface {
	Load(ctx context.Context, id string) (*NavigationSession, error)
	Save(ctx context.Context, id string, session *NavigationSession) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	raw    []byte
	expiry time.Time
}

// MemoryNavigationStore keeps sessions in process with a TTL.
type MemoryNavigationStore struct {
	mu      sync.RWMutex
	data    map[string]memoryEntry
	ttl     time.Duration
	maxSize int
}

func NewMemoryNavigationStore(ttl time.Duration, maxSize int) *MemoryNavigationStore {
	if maxSize <= 0 {
		maxSize = 10000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryNavigationStore{
		data:    make(map[string]memoryEntry),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

func (ms *MemoryNavigationStore) Load(_ context.Context, id string) (*NavigationSession, error) {
	ms.mu.RLock()
	entry, ok := ms.data[id]
	ms.mu.RUnlock()
	if !ok || time.Now().After(entry.expiry) {
		return nil, ErrSessionNotFound
	}
	var session NavigationSession
	if err := json.Unmarshal(entry.raw, &session); err != nil {
		return nil, fmt.Errorf("failed to decode navigation session: %w", err)
	}
	return &session, nil
}

func (ms *MemoryNavigationStore) Save(_ context.Context, id string, session *NavigationSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode navigation session: %w", err)
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if _, exists := ms.data[id]; !exists && len(ms.data) >= ms.maxSize {
		ms.evictExpired(time.Now())
		if len(ms.data) >= ms.maxSize {
			ms.evictOldest()
		}
	}
	ms.data[id] = memoryEntry{raw: raw, expiry: time.Now().Add(ms.ttl)}
	return nil
}

func (ms *MemoryNavigationStore) Delete(_ context.Context, id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.data, id)
	return nil
}

func (ms *MemoryNavigationStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.data)
}

func (ms *MemoryNavigationStore) evictExpired(now time.Time) {
	for id, entry := range ms.data {
		if now.After(entry.expiry) {
			delete(ms.data, id)
		}
	}
}

func (ms *MemoryNavigationStore) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, entry := range ms.data {
		if oldestID == "" || entry.expiry.Before(oldest) {
			oldestID = id
			oldest = entry.expiry
		}
	}
	delete(ms.data, oldestID)
}

// RedisNavigationStore keeps sessions in Redis so several server instances
// share them.
type RedisNavigationStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisNavigationStore connects using a redis:// URL and pings once.
func NewRedisNavigationStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisNavigationStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisNavigationStore{client: client, ttl: ttl, prefix: "catalog:nav:"}, nil
}

func (rs *RedisNavigationStore) key(id string) string {
	return rs.prefix + id
}

func (rs *RedisNavigationStore) Load(ctx context.Context, id string) (*NavigationSession, error) {
	raw, err := rs.client.Get(ctx, rs.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load navigation session: %w", err)
	}
	var session NavigationSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to decode navigation session: %w", err)
	}
	return &session, nil
}

func (rs *RedisNavigationStore) Save(ctx context.Context, id string, session *NavigationSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode navigation session: %w", err)
	}
	if err := rs.client.Set(ctx, rs.key(id), raw, rs.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save navigation session: %w", err)
	}
	return nil
}

func (rs *RedisNavigationStore) Delete(ctx context.Context, id string) error {
	return rs.client.Del(ctx, rs.key(id)).Err()
}

func (rs *RedisNavigationStore) Ping(ctx context.Context) error {
	return rs.client.Ping(ctx).Err()
}

func (rs *RedisNavigationStore) Close() error {
	return rs.client.Close()
}
