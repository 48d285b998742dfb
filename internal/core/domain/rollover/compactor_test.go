// internal/core/domain/rollover/compactor_test.go
package rollover

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"crypto-kline-keeper/internal/core/domain/kline"
	"crypto-kline-keeper/internal/core/domain/kline/klinetest"
	"crypto-kline-keeper/pkg/timegrid"
)

func candle(symbol string, openTime int64, open, high, low, close float64) kline.Record {
	rec := klinetest.SimpleRecord(symbol, kline.Fine, openTime, open)
	rec.High = decimal.NewFromFloat(high)
	rec.Low = decimal.NewFromFloat(low)
	rec.Close = decimal.NewFromFloat(close)
	return rec
}

func TestAggregateBuckets(t *testing.T) {
	base := timegrid.ToMs(time.Date(2026, 8, 22, 10, 0, 0, 0, time.Local))

	fine := []kline.Record{
		candle("BTCUSDT", base, 100, 105, 99, 101),
		candle("BTCUSDT", base+timegrid.FineBucketMs, 101, 110, 100, 108),
		candle("BTCUSDT", base+29*timegrid.FineBucketMs, 108, 109, 95, 96),
		candle("BTCUSDT", base+30*timegrid.FineBucketMs, 96, 97, 90, 92),
	}

	out := AggregateBuckets(fine)
	if len(out) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(out))
	}

	first := out[0]
	if first.OpenTime != base {
		t.Errorf("bucket open_time = %d, want %d", first.OpenTime, base)
	}
	if first.CloseTime != base+timegrid.CoarseBucketMs-1 {
		t.Errorf("bucket close_time = %d", first.CloseTime)
	}
	if !first.Open.Equal(decimal.NewFromInt(100)) {
		t.Errorf("open = %s, want 100", first.Open)
	}
	if !first.Close.Equal(decimal.NewFromInt(96)) {
		t.Errorf("close = %s, want 96", first.Close)
	}
	if !first.High.Equal(decimal.NewFromInt(110)) {
		t.Errorf("high = %s, want 110", first.High)
	}
	if !first.Low.Equal(decimal.NewFromInt(95)) {
		t.Errorf("low = %s, want 95", first.Low)
	}
	if !first.Volume.Equal(decimal.NewFromInt(3)) {
		t.Errorf("volume = %s, want 3", first.Volume)
	}
	if first.TradesCount != 3 {
		t.Errorf("trades = %d, want 3", first.TradesCount)
	}

	second := out[1]
	if second.OpenTime != base+timegrid.CoarseBucketMs {
		t.Errorf("second bucket open_time = %d", second.OpenTime)
	}
	if !second.Open.Equal(decimal.NewFromInt(96)) || !second.Close.Equal(decimal.NewFromInt(92)) {
		t.Errorf("second bucket open/close = %s/%s", second.Open, second.Close)
	}
}

func TestAggregateBucketsEmpty(t *testing.T) {
	if out := AggregateBuckets(nil); out != nil {
		t.Errorf("expected nil for empty input, got %v", out)
	}
}

func seedDay(s *klinetest.MemStore, symbol string, day time.Time) {
	dayMs := timegrid.ToMs(day)
	klinetest.SeedGrid(s, symbol, kline.Fine, []int64{
		dayMs,
		dayMs + timegrid.FineBucketMs,
		dayMs + timegrid.CoarseBucketMs,
	})
}

func TestRunCompactsBacklog(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.Local)
	clock := func() time.Time { return now }
	today := timegrid.DayStart(now)
	day22 := timegrid.DayStart(time.Date(2026, 8, 22, 0, 0, 0, 0, time.Local))
	day23 := timegrid.NextDay(day22)

	store := klinetest.NewMemStore()
	store.Now = clock
	seedDay(store, "BTCUSDT", day22)
	seedDay(store, "BTCUSDT", day23)
	klinetest.SeedGrid(store, "BTCUSDT", kline.Fine, []int64{timegrid.ToMs(today)})

	compactor := NewCompactor(store).WithClock(clock)
	if err := compactor.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := store.CountRows(kline.Coarse, "BTCUSDT"); got != 4 {
		t.Errorf("coarse rows = %d, want 4 (2 buckets x 2 days)", got)
	}
	if got := store.CountRows(kline.Fine, "BTCUSDT"); got != 1 {
		t.Errorf("fine rows = %d, want 1 (today only)", got)
	}
	if _, ok := store.RecordAt(kline.Coarse, "BTCUSDT", timegrid.ToMs(day22)); !ok {
		t.Error("missing coarse bucket at start of first day")
	}

	status, found, _ := store.GetStatus(context.Background(), StatusKeyLastProcessed)
	if !found || status != "2026-08-23" {
		t.Errorf("last processed = %q (found=%v), want 2026-08-23", status, found)
	}

	// Повторный запуск ничего не меняет
	if err := compactor.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if got := store.CountRows(kline.Coarse, "BTCUSDT"); got != 4 {
		t.Errorf("after second run: coarse rows = %d, want 4", got)
	}
}

func TestRunEmptyStore(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.Local)
	store := klinetest.NewMemStore()

	compactor := NewCompactor(store).WithClock(func() time.Time { return now })
	if err := compactor.Run(context.Background()); err != nil {
		t.Fatalf("Run on empty store: %v", err)
	}

	if _, found, _ := store.GetStatus(context.Background(), StatusKeyLastProcessed); found {
		t.Error("status should stay unset when there is nothing to compact")
	}
}

func TestRunHaltsDayOnSymbolFailure(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.Local)
	clock := func() time.Time { return now }
	day22 := timegrid.DayStart(time.Date(2026, 8, 22, 0, 0, 0, 0, time.Local))

	store := klinetest.NewMemStore()
	store.Now = clock
	seedDay(store, "AAAUSDT", day22)
	seedDay(store, "BBBUSDT", day22)

	store.Fail = func(op, symbol string) error {
		if op == "upsert" && symbol == "AAAUSDT" {
			return &kline.StorageError{Op: "upsert", Err: errors.New("connection reset")}
		}
		return nil
	}

	compactor := NewCompactor(store).WithClock(clock)
	if err := compactor.Run(context.Background()); err == nil {
		t.Fatal("expected error when a symbol fails to compact")
	}

	// Сбойный день не подчищен и дата не продвинута
	if got := store.CountRows(kline.Fine, "AAAUSDT"); got != 3 {
		t.Errorf("fine rows pruned despite failure: %d left", got)
	}
	if _, found, _ := store.GetStatus(context.Background(), StatusKeyLastProcessed); found {
		t.Error("status advanced despite failure")
	}
	// Второй символ дня все же агрегирован
	if got := store.CountRows(kline.Coarse, "BBBUSDT"); got != 2 {
		t.Errorf("healthy symbol not compacted: %d coarse rows", got)
	}

	// После устранения сбоя компактор догоняет
	store.Fail = nil
	if err := compactor.Run(context.Background()); err != nil {
		t.Fatalf("Run after recovery: %v", err)
	}
	if got := store.CountRows(kline.Coarse, "AAAUSDT"); got != 2 {
		t.Errorf("coarse rows after recovery = %d, want 2", got)
	}
	if got := store.CountRows(kline.Fine, "AAAUSDT"); got != 0 {
		t.Errorf("fine rows after recovery = %d, want 0", got)
	}

	status, _, _ := store.GetStatus(context.Background(), StatusKeyLastProcessed)
	if status != "2026-08-23" {
		t.Errorf("last processed = %q, want 2026-08-23", status)
	}
}
