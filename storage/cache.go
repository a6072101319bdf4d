package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotFound indicates a requested key does not exist.
	ErrNotFound = errors.New("storage: record not found")
)

// Cache is a string-keyed byte store. Writes are idempotent: a key always
// maps to the same content for its whole lifetime, so concurrent writers
// cannot conflict.
type Cache interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

var (
	_ Cache = (*Store)(nil)
	_ Cache = (*MemoryCache)(nil)
)

// Get returns the cached payload for key or ErrNotFound.
func (s *Store) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("cache key is required")
	}

	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM kv_cache WHERE cache_key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry %q: %w", key, err)
	}

	return payload, nil
}

// Set stores payload under key, replacing any previous value.
func (s *Store) Set(key string, value []byte) error {
	if key == "" {
		return errors.New("cache key is required")
	}
	if value == nil {
		value = []byte{}
	}

	_, err := s.db.Exec(
		`INSERT INTO kv_cache (cache_key, payload, cached_at)
		VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload, cached_at = excluded.cached_at`,
		key,
		value,
		nowUnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("set cache entry %q: %w", key, err)
	}

	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	if key == "" {
		return errors.New("cache key is required")
	}

	if _, err := s.db.Exec(`DELETE FROM kv_cache WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("delete cache entry %q: %w", key, err)
	}

	return nil
}

// Count returns the number of cached entries.
func (s *Store) Count() (int64, error) {
	var count int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM kv_cache`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return count, nil
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryCache returns an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

func (c *MemoryCache) Get(key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (c *MemoryCache) Set(key string, value []byte) error {
	if key == "" {
		return errors.New("cache key is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = append([]byte(nil), value...)
	return nil
}

func (c *MemoryCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Len returns the number of entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
