// internal/core/domain/kline/klinetest/store.go
package klinetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"crypto-kline-keeper/internal/core/domain/kline"
	"crypto-kline-keeper/pkg/timegrid"
)

// MemStore — хранилище в памяти для тестов. Повторяет контракт
// Postgres-репозитория: вставка только при отсутствии ключа,
// выборки по возрастанию, полуинтервалы.
type MemStore struct {
	mu     sync.Mutex
	tables map[kline.Granularity]map[string]map[int64]kline.Record
	status map[string]string

	// Now задает границу текущего дня для QueryMergedRange
	Now func() time.Time

	// Fail, если задан, позволяет инжектировать ошибку для операции.
	// op: "upsert", "query", "delete", "status".
	Fail func(op, symbol string) error
}

func NewMemStore() *MemStore {
	return &MemStore{
		tables: map[kline.Granularity]map[string]map[int64]kline.Record{
			kline.Fine:   {},
			kline.Coarse: {},
		},
		status: map[string]string{},
		Now:    time.Now,
	}
}

func (s *MemStore) fail(op, symbol string) error {
	if s.Fail != nil {
		return s.Fail(op, symbol)
	}
	return nil
}

func (s *MemStore) Upsert(ctx context.Context, g kline.Granularity, records []kline.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, rec := range records {
		if err := s.fail("upsert", rec.Symbol); err != nil {
			return inserted, err
		}
		bySymbol := s.tables[g]
		if bySymbol[rec.Symbol] == nil {
			bySymbol[rec.Symbol] = map[int64]kline.Record{}
		}
		if _, exists := bySymbol[rec.Symbol][rec.OpenTime]; exists {
			continue
		}
		bySymbol[rec.Symbol][rec.OpenTime] = rec
		inserted++
	}
	return inserted, nil
}

func (s *MemStore) QueryRange(ctx context.Context, g kline.Granularity, symbol string, fromMs, toMs int64) ([]kline.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("query", symbol); err != nil {
		return nil, err
	}

	var out []kline.Record
	for ts, rec := range s.tables[g][symbol] {
		if ts >= fromMs && ts < toMs {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })
	return out, nil
}

func (s *MemStore) QueryMergedRange(ctx context.Context, symbol string, fromMs, toMs int64) ([]kline.Record, error) {
	todayStart := timegrid.DayStartMs(s.Now())

	var merged []kline.Record
	if coarseEnd := min64(toMs, todayStart); coarseEnd > fromMs {
		rows, err := s.QueryRange(ctx, kline.Coarse, symbol, fromMs, coarseEnd)
		if err != nil {
			return nil, err
		}
		merged = append(merged, rows...)
	}
	if fineStart := max64(fromMs, todayStart); fineStart < toMs {
		rows, err := s.QueryRange(ctx, kline.Fine, symbol, fineStart, toMs)
		if err != nil {
			return nil, err
		}
		merged = append(merged, rows...)
	}
	return merged, nil
}

func (s *MemStore) FirstLastSeen(ctx context.Context, g kline.Granularity, symbol string) (kline.RangeInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("query", symbol); err != nil {
		return kline.RangeInfo{}, err
	}

	rows := s.tables[g][symbol]
	if len(rows) == 0 {
		return kline.RangeInfo{}, nil
	}

	info := kline.RangeInfo{HasData: true, MinTime: 1<<63 - 1}
	for ts := range rows {
		if ts < info.MinTime {
			info.MinTime = ts
		}
		if ts > info.MaxTime {
			info.MaxTime = ts
		}
	}
	return info, nil
}

func (s *MemStore) Symbols(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("query", ""); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	for _, bySymbol := range s.tables {
		for sym, rows := range bySymbol {
			if len(rows) > 0 {
				seen[sym] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemStore) SymbolStats(ctx context.Context) (map[string]kline.SymbolStats, error) {
	symbols, err := s.Symbols(ctx)
	if err != nil {
		return nil, err
	}

	out := map[string]kline.SymbolStats{}
	for _, sym := range symbols {
		var stats kline.SymbolStats
		for _, g := range []kline.Granularity{kline.Fine, kline.Coarse} {
			info, err := s.FirstLastSeen(ctx, g, sym)
			if err != nil {
				return nil, err
			}
			ts := kline.TableStats{}
			if info.HasData {
				s.mu.Lock()
				ts = kline.TableStats{
					Count:   int64(len(s.tables[g][sym])),
					MinTime: info.MinTime,
					MaxTime: info.MaxTime,
				}
				s.mu.Unlock()
			}
			if g == kline.Fine {
				stats.Fine = ts
			} else {
				stats.Coarse = ts
			}
		}
		out[sym] = stats
	}
	return out, nil
}

func (s *MemStore) FineSymbolsIn(ctx context.Context, fromMs, toMs int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("query", ""); err != nil {
		return nil, err
	}

	var out []string
	for sym, rows := range s.tables[kline.Fine] {
		for ts := range rows {
			if ts >= fromMs && ts < toMs {
				out = append(out, sym)
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemStore) DeleteFineBefore(ctx context.Context, beforeMs int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("delete", ""); err != nil {
		return 0, err
	}

	var deleted int64
	for _, rows := range s.tables[kline.Fine] {
		for ts := range rows {
			if ts < beforeMs {
				delete(rows, ts)
				deleted++
			}
		}
	}
	return deleted, nil
}

func (s *MemStore) GetStatus(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("status", ""); err != nil {
		return "", false, err
	}
	v, ok := s.status[key]
	return v, ok, nil
}

func (s *MemStore) SetStatus(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("status", ""); err != nil {
		return err
	}
	s.status[key] = value
	return nil
}

// CountRows возвращает число строк символа в таблице (для проверок)
func (s *MemStore) CountRows(g kline.Granularity, symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables[g][symbol])
}

// RecordAt возвращает сохраненную свечу (для проверок)
func (s *MemStore) RecordAt(g kline.Granularity, symbol string, openTime int64) (kline.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tables[g][symbol][openTime]
	return rec, ok
}

// SimpleRecord строит свечу с ценой price и объемом 1 (для тестов)
func SimpleRecord(symbol string, g kline.Granularity, openTime int64, price float64) kline.Record {
	p := decimal.NewFromFloat(price)
	return kline.Record{
		Symbol:              symbol,
		OpenTime:            openTime,
		CloseTime:           openTime + g.BucketMs() - 1,
		Open:                p,
		High:                p,
		Low:                 p,
		Close:               p,
		Volume:              decimal.NewFromInt(1),
		QuoteVolume:         p,
		TradesCount:         1,
		TakerBuyBaseVolume:  decimal.NewFromInt(1),
		TakerBuyQuoteVolume: p,
	}
}

// SeedGrid заполняет хранилище свечами в заданных точках сетки
func SeedGrid(s *MemStore, symbol string, g kline.Granularity, openTimes []int64) {
	records := make([]kline.Record, 0, len(openTimes))
	for _, ts := range openTimes {
		records = append(records, SimpleRecord(symbol, g, ts, 100))
	}
	s.Upsert(context.Background(), g, records)
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
