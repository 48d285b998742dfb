// internal/core/domain/ingest/ingestor_test.go
package ingest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"crypto-kline-keeper/internal/core/domain/kline"
	"crypto-kline-keeper/internal/core/domain/kline/klinetest"
	"crypto-kline-keeper/internal/infrastructure/config"
	"crypto-kline-keeper/pkg/retry"
	"crypto-kline-keeper/pkg/timegrid"
)

type staticLister []string

func (l staticLister) Get(ctx context.Context) ([]string, error) {
	return l, nil
}

type failingLister struct{ err error }

func (l failingLister) Get(ctx context.Context) ([]string, error) {
	return nil, l.err
}

func testKeeperConfig() *config.KeeperConfig {
	return &config.KeeperConfig{
		IngestWindow: 30 * time.Minute,
		FetchLimit:   1500,
	}
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func TestIngestOneStoresWindow(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.Local)
	nowMs := timegrid.ToMs(now)

	store := klinetest.NewMemStore()
	source := klinetest.NewFakeSource()
	source.ProvideGrid("BTCUSDT", kline.Fine, timegrid.Grid(nowMs-29*timegrid.FineBucketMs, nowMs, timegrid.FineBucketMs))

	ing := NewIngestor(store, source, staticLister{"BTCUSDT"}, testKeeperConfig()).
		WithClock(func() time.Time { return now })

	if !ing.IngestOne(context.Background(), "BTCUSDT") {
		t.Fatal("IngestOne returned false")
	}
	if got := store.CountRows(kline.Fine, "BTCUSDT"); got != 30 {
		t.Errorf("stored %d rows, want 30", got)
	}

	call := source.Calls[0]
	if call.StartMs != timegrid.Align(nowMs-30*time.Minute.Milliseconds(), timegrid.FineBucketMs) {
		t.Errorf("window start = %d", call.StartMs)
	}
	if call.EndMs != nowMs {
		t.Errorf("window end = %d", call.EndMs)
	}
	if call.MaxRows != 1500 {
		t.Errorf("maxRows = %d", call.MaxRows)
	}

	// Повторный инжест того же окна не дублирует строки
	if !ing.IngestOne(context.Background(), "BTCUSDT") {
		t.Fatal("repeated IngestOne returned false")
	}
	if got := store.CountRows(kline.Fine, "BTCUSDT"); got != 30 {
		t.Errorf("after repeat: %d rows, want 30", got)
	}
}

func TestIngestOneEmptyWindow(t *testing.T) {
	store := klinetest.NewMemStore()
	source := klinetest.NewFakeSource()

	ing := NewIngestor(store, source, staticLister{"BTCUSDT"}, testKeeperConfig())

	if ing.IngestOne(context.Background(), "BTCUSDT") {
		t.Error("IngestOne reported success for empty window")
	}
}

func TestIngestOneRetriesSourceError(t *testing.T) {
	store := klinetest.NewMemStore()
	source := klinetest.NewFakeSource()
	source.Err = errors.New("binance down")

	ing := NewIngestor(store, source, staticLister{"BTCUSDT"}, testKeeperConfig()).
		WithRetry(fastRetry())

	if ing.IngestOne(context.Background(), "BTCUSDT") {
		t.Error("IngestOne reported success despite source failure")
	}
	if len(source.Calls) != 2 {
		t.Errorf("source called %d times, want 2", len(source.Calls))
	}
}

func TestIngestAllIsolatesFailures(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.Local)
	nowMs := timegrid.ToMs(now)
	grid := timegrid.Grid(nowMs-9*timegrid.FineBucketMs, nowMs, timegrid.FineBucketMs)

	store := klinetest.NewMemStore()
	store.Fail = func(op, symbol string) error {
		if op == "upsert" && symbol == "ETHUSDT" {
			return &kline.StorageError{Op: "upsert", Err: errors.New("deadlock")}
		}
		return nil
	}

	source := klinetest.NewFakeSource()
	source.ProvideGrid("BTCUSDT", kline.Fine, grid)
	source.ProvideGrid("ETHUSDT", kline.Fine, grid)
	source.ProvideGrid("SOLUSDT", kline.Fine, grid)

	ing := NewIngestor(store, source, staticLister{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, testKeeperConfig()).
		WithClock(func() time.Time { return now }).
		WithRetry(fastRetry())

	succeeded, failed, err := ing.IngestAll(context.Background())
	if err != nil {
		t.Fatalf("IngestAll: %v", err)
	}
	if succeeded != 2 || failed != 1 {
		t.Errorf("succeeded=%d failed=%d, want 2/1", succeeded, failed)
	}
	if store.CountRows(kline.Fine, "SOLUSDT") != 10 {
		t.Error("symbol after the failed one was not ingested")
	}
}

func TestIngestAllListerError(t *testing.T) {
	ing := NewIngestor(klinetest.NewMemStore(), klinetest.NewFakeSource(),
		failingLister{err: errors.New("redis down")}, testKeeperConfig())

	if _, _, err := ing.IngestAll(context.Background()); err == nil {
		t.Error("expected error from symbol lister")
	}
}

func TestFilterSymbols(t *testing.T) {
	all := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}

	tests := []struct {
		filter string
		want   []string
	}{
		{"", all},
		{"BTCUSDT", []string{"BTCUSDT"}},
		{"ethusdt, SOLUSDT", []string{"ETHUSDT", "SOLUSDT"}},
		{"XRPUSDT", nil},
	}

	for _, tt := range tests {
		if got := FilterSymbols(all, tt.filter); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("FilterSymbols(%q) = %v, want %v", tt.filter, got, tt.want)
		}
	}
}
