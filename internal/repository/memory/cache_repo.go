package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	apperrors "github.com/yourusername/quiz-engine/internal/pkg/errors"
)

type cacheItem struct {
	value     []byte
	expiresAt time.Time
}

// CacheRepo - кеш в памяти с TTL, реализует repository.CacheRepository
type CacheRepo struct {
	mu    sync.Mutex
	items map[string]cacheItem
	now   func() time.Time
}

func newCacheRepo() *CacheRepo {
	return &CacheRepo{items: make(map[string]cacheItem), now: time.Now}
}

func (c *CacheRepo) liveLocked(key string) (cacheItem, bool) {
	it, ok := c.items[key]
	if !ok {
		return cacheItem{}, false
	}
	if !it.expiresAt.IsZero() && !c.now().Before(it.expiresAt) {
		delete(c.items, key)
		return cacheItem{}, false
	}
	return it, true
}

func (c *CacheRepo) expiry(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return c.now().Add(d)
}

// Delete удаляет ключ
func (c *CacheRepo) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

// SetJSON сохраняет значение в JSON
func (c *CacheRepo) SetJSON(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = cacheItem{value: data, expiresAt: c.expiry(expiration)}
	return nil
}

// GetJSON читает значение, ErrNotFound - если ключа нет или он истек
func (c *CacheRepo) GetJSON(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	it, ok := c.liveLocked(key)
	c.mu.Unlock()
	if !ok {
		return apperrors.ErrNotFound
	}
	return json.Unmarshal(it.value, dest)
}

// SetNX устанавливает значение, только если ключа нет
func (c *CacheRepo) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.liveLocked(key); ok {
		return false, nil
	}
	c.items[key] = cacheItem{value: data, expiresAt: c.expiry(expiration)}
	return true, nil
}
