// internal/infrastructure/cache/redis/symbol_cache.go
package redis

import (
	"context"
	"sync"
	"time"

	"crypto-kline-keeper/pkg/logger"
)

const symbolsKey = "symbols"

// SymbolCache — кэш списка торгуемых символов с политикой
// get-or-fetch-with-expiry. Слой Redis опционален: при выключенном
// Redis работает локальная копия с тем же TTL.
type SymbolCache struct {
	cache *Cache // nil, если Redis выключен
	ttl   time.Duration
	fetch func(ctx context.Context) ([]string, error)

	mu        sync.Mutex
	local     []string
	expiresAt time.Time
}

// NewSymbolCache создает кэш символов поверх fetch-функции
func NewSymbolCache(cache *Cache, ttl time.Duration, fetch func(ctx context.Context) ([]string, error)) *SymbolCache {
	return &SymbolCache{cache: cache, ttl: ttl, fetch: fetch}
}

// Get возвращает список символов: локальная копия → Redis → источник.
// Просроченные копии обновляются из источника; при его сбое
// возвращается последняя известная копия, если она есть.
func (c *SymbolCache) Get(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if len(c.local) > 0 && now.Before(c.expiresAt) {
		return c.local, nil
	}

	if c.cache != nil {
		var cached []string
		if err := c.cache.Get(ctx, symbolsKey, &cached); err == nil && len(cached) > 0 {
			c.local = cached
			c.expiresAt = now.Add(c.ttl)
			return cached, nil
		}
	}

	symbols, err := c.fetch(ctx)
	if err != nil {
		if len(c.local) > 0 {
			logger.Warn("⚠️  Symbol fetch failed, using stale cache (%d symbols): %v", len(c.local), err)
			return c.local, nil
		}
		return nil, err
	}

	c.local = symbols
	c.expiresAt = now.Add(c.ttl)

	if c.cache != nil {
		if err := c.cache.Set(ctx, symbolsKey, symbols, c.ttl); err != nil {
			logger.Warn("⚠️  Failed to cache symbols in Redis: %v", err)
		}
	}

	return symbols, nil
}

// Invalidate сбрасывает кэш символов
func (c *SymbolCache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.local = nil
	c.expiresAt = time.Time{}
	if c.cache != nil {
		_ = c.cache.Delete(ctx, symbolsKey)
	}
}
