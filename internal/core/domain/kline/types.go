// internal/core/domain/kline/types.go
package kline

import (
	"fmt"

	"github.com/shopspring/decimal"

	"crypto-kline-keeper/pkg/timegrid"
)

// Granularity — разрешение хранимой сетки свечей
type Granularity int

const (
	Fine   Granularity = iota // 1-минутная сетка (текущий день)
	Coarse                    // 30-минутная сетка (архив)
)

// BucketMs возвращает размер бакета в миллисекундах
func (g Granularity) BucketMs() int64 {
	if g == Coarse {
		return timegrid.CoarseBucketMs
	}
	return timegrid.FineBucketMs
}

// Interval возвращает строку интервала для API биржи
func (g Granularity) Interval() string {
	if g == Coarse {
		return timegrid.IntervalCoarse
	}
	return timegrid.IntervalFine
}

// Table возвращает имя таблицы хранилища
func (g Granularity) Table() string {
	if g == Coarse {
		return "kline_30m"
	}
	return "kline_1m"
}

func (g Granularity) String() string {
	if g == Coarse {
		return "30min"
	}
	return "1min"
}

// Record — одна свеча. open_time всегда кратен размеру бакета своей
// сетки; пара (symbol, open_time) уникальна в пределах таблицы.
type Record struct {
	Symbol              string          `db:"symbol"`
	OpenTime            int64           `db:"open_time"`
	CloseTime           int64           `db:"close_time"`
	Open                decimal.Decimal `db:"open_price"`
	High                decimal.Decimal `db:"high_price"`
	Low                 decimal.Decimal `db:"low_price"`
	Close               decimal.Decimal `db:"close_price"`
	Volume              decimal.Decimal `db:"volume"`
	QuoteVolume         decimal.Decimal `db:"quote_volume"`
	TradesCount         int64           `db:"trades_count"`
	TakerBuyBaseVolume  decimal.Decimal `db:"taker_buy_base_volume"`
	TakerBuyQuoteVolume decimal.Decimal `db:"taker_buy_quote_volume"`
}

// Validate проверяет выравнивание свечи по своей сетке
func (r Record) Validate(g Granularity) error {
	if r.Symbol == "" {
		return &DataShapeError{Field: "symbol", Reason: "empty"}
	}
	if !timegrid.IsAligned(r.OpenTime, g.BucketMs()) {
		return &DataShapeError{
			Field:  "open_time",
			Reason: fmt.Sprintf("%d is not aligned to %s grid", r.OpenTime, g),
		}
	}
	return nil
}

// RangeInfo — первый и последний наблюдавшийся open_time символа
type RangeInfo struct {
	MinTime int64
	MaxTime int64
	HasData bool
}

// TableStats — статистика одного символа в одной таблице
type TableStats struct {
	Count   int64
	MinTime int64
	MaxTime int64
}

// SymbolStats — статистика символа по обеим сеткам
type SymbolStats struct {
	Fine   TableStats
	Coarse TableStats
}
