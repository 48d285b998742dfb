// internal/infrastructure/cache/redis/symbol_cache_test.go
package redis

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestSymbolCacheGetCachesLocally(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) ([]string, error) {
		calls++
		return []string{"BTCUSDT", "ETHUSDT"}, nil
	}

	c := NewSymbolCache(nil, time.Hour, fetch)

	for i := 0; i < 3; i++ {
		symbols, err := c.Get(context.Background())
		if err != nil {
			t.Fatalf("Get #%d: %v", i+1, err)
		}
		if !reflect.DeepEqual(symbols, []string{"BTCUSDT", "ETHUSDT"}) {
			t.Fatalf("Get #%d returned %v", i+1, symbols)
		}
	}

	if calls != 1 {
		t.Errorf("source fetched %d times, want 1 (local copy within TTL)", calls)
	}
}

func TestSymbolCacheInvalidateForcesRefetch(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) ([]string, error) {
		calls++
		return []string{"BTCUSDT"}, nil
	}

	c := NewSymbolCache(nil, time.Hour, fetch)

	if _, err := c.Get(context.Background()); err != nil {
		t.Fatalf("first Get: %v", err)
	}
	c.Invalidate(context.Background())
	if _, err := c.Get(context.Background()); err != nil {
		t.Fatalf("Get after Invalidate: %v", err)
	}

	if calls != 2 {
		t.Errorf("source fetched %d times, want 2 (invalidate drops the copy)", calls)
	}
}

func TestSymbolCacheStaleFallback(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) ([]string, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("exchange unavailable")
		}
		return []string{"BTCUSDT"}, nil
	}

	// Нулевой TTL: копия просрочена сразу, второй Get идет в источник
	c := NewSymbolCache(nil, 0, fetch)

	if _, err := c.Get(context.Background()); err != nil {
		t.Fatalf("first Get: %v", err)
	}

	symbols, err := c.Get(context.Background())
	if err != nil {
		t.Fatalf("Get with failing source must fall back to stale copy, got %v", err)
	}
	if !reflect.DeepEqual(symbols, []string{"BTCUSDT"}) {
		t.Errorf("stale copy = %v, want [BTCUSDT]", symbols)
	}
	if calls != 2 {
		t.Errorf("source fetched %d times, want 2", calls)
	}
}
