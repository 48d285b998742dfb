// internal/core/domain/kline/klinetest/source.go
package klinetest

import (
	"context"
	"sort"
	"sync"

	"crypto-kline-keeper/internal/core/domain/kline"
)

// FetchCall — параметры одного обращения к фейковому источнику
type FetchCall struct {
	Symbol  string
	G       kline.Granularity
	StartMs int64
	EndMs   int64
	MaxRows int
}

// FakeSource — источник рыночных данных для тестов: отдает заранее
// заданные серии, обрезает по [start, end] и maxRows, пишет журнал
// вызовов.
type FakeSource struct {
	mu      sync.Mutex
	series  map[string]map[kline.Granularity][]kline.Record
	symbols []string

	Err   error // если задана, каждый вызов возвращает эту ошибку
	Calls []FetchCall
}

func NewFakeSource() *FakeSource {
	return &FakeSource{
		series: map[string]map[kline.Granularity][]kline.Record{},
	}
}

// Provide регистрирует серию свечей для символа
func (f *FakeSource) Provide(symbol string, g kline.Granularity, records []kline.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.series[symbol] == nil {
		f.series[symbol] = map[kline.Granularity][]kline.Record{}
	}
	f.series[symbol][g] = append(f.series[symbol][g], records...)
	sort.Slice(f.series[symbol][g], func(i, j int) bool {
		return f.series[symbol][g][i].OpenTime < f.series[symbol][g][j].OpenTime
	})
}

// ProvideGrid регистрирует свечи в заданных точках сетки
func (f *FakeSource) ProvideGrid(symbol string, g kline.Granularity, openTimes []int64) {
	records := make([]kline.Record, 0, len(openTimes))
	for _, ts := range openTimes {
		records = append(records, SimpleRecord(symbol, g, ts, 100))
	}
	f.Provide(symbol, g, records)
}

// SetSymbols задает ответ FetchSymbols
func (f *FakeSource) SetSymbols(symbols []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.symbols = symbols
}

func (f *FakeSource) FetchCandles(ctx context.Context, symbol string, g kline.Granularity, startMs, endMs int64, maxRows int) ([]kline.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, FetchCall{Symbol: symbol, G: g, StartMs: startMs, EndMs: endMs, MaxRows: maxRows})

	if f.Err != nil {
		return nil, &kline.SourceError{Op: "fetch candles", Symbol: symbol, Err: f.Err}
	}

	var out []kline.Record
	for _, rec := range f.series[symbol][g] {
		if rec.OpenTime >= startMs && rec.OpenTime <= endMs {
			out = append(out, rec)
			if maxRows > 0 && len(out) >= maxRows {
				break
			}
		}
	}
	return out, nil
}

func (f *FakeSource) FetchSymbols(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, &kline.SourceError{Op: "fetch symbols", Err: f.Err}
	}
	return f.symbols, nil
}
