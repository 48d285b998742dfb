// internal/core/domain/rollover/compactor.go
package rollover

import (
	"context"
	"fmt"
	"time"

	"crypto-kline-keeper/internal/core/domain/kline"
	"crypto-kline-keeper/pkg/logger"
	"crypto-kline-keeper/pkg/timegrid"
)

// StatusKeyLastProcessed — статусный ключ с датой последнего
// скомпактированного дня в формате YYYY-MM-DD.
const StatusKeyLastProcessed = "last_processed_date"

// Compactor переносит завершившиеся дни из мелкой сетки в архивную:
// сворачивает 1-минутные свечи в 30-минутные и удаляет исходные
// строки. Дата последнего обработанного дня хранится в статусной
// таблице, поэтому после простоя или сбоя компактор догоняет
// пропущенные дни сам.
type Compactor struct {
	store kline.Store
	now   func() time.Time
}

// NewCompactor создает компактор дневного роловера
func NewCompactor(store kline.Store) *Compactor {
	return &Compactor{store: store, now: time.Now}
}

// WithClock подменяет часы (для тестов)
func (c *Compactor) WithClock(now func() time.Time) *Compactor {
	c.now = now
	return c
}

// Run компактирует все завершившиеся дни после последнего
// обработанного. Текущий день не трогается. Сбой дня останавливает
// проход; незавершенный день будет повторен в следующем цикле,
// повторная агрегация безопасна благодаря идемпотентной вставке.
func (c *Compactor) Run(ctx context.Context) error {
	today := timegrid.DayStart(c.now())

	last, err := c.lastProcessedDay(ctx, today)
	if err != nil {
		return err
	}

	processed := 0
	for day := timegrid.NextDay(last); day.Before(today); day = timegrid.NextDay(day) {
		if err := c.processDay(ctx, day); err != nil {
			return fmt.Errorf("rollover %s: %w", day.Format(timegrid.DateFormat), err)
		}
		processed++
	}

	if processed > 0 {
		logger.Info("🔄 Rollover complete: %d day(s) compacted", processed)
	}
	return nil
}

// lastProcessedDay читает дату последнего обработанного дня. При
// первом запуске стартовая точка выводится из самой ранней
// 1-минутной свечи, чтобы накопившийся бэклог был скомпактирован.
func (c *Compactor) lastProcessedDay(ctx context.Context, today time.Time) (time.Time, error) {
	value, found, err := c.store.GetStatus(ctx, StatusKeyLastProcessed)
	if err != nil {
		return time.Time{}, err
	}
	if found {
		day, err := time.ParseInLocation(timegrid.DateFormat, value, time.Local)
		if err != nil {
			return time.Time{}, &kline.DataShapeError{Field: StatusKeyLastProcessed, Reason: err.Error()}
		}
		return day, nil
	}

	stats, err := c.store.SymbolStats(ctx)
	if err != nil {
		return time.Time{}, err
	}

	var earliest int64
	hasFine := false
	for _, s := range stats {
		if s.Fine.Count > 0 && (!hasFine || s.Fine.MinTime < earliest) {
			earliest = s.Fine.MinTime
			hasFine = true
		}
	}
	if !hasFine {
		return prevDay(today), nil
	}
	return prevDay(timegrid.DayStart(timegrid.FromMs(earliest))), nil
}

// processDay агрегирует и подчищает один завершившийся день. Дата
// продвигается только после успешной агрегации всех символов и
// удаления мелкой сетки дня.
func (c *Compactor) processDay(ctx context.Context, day time.Time) error {
	dayStartMs := timegrid.ToMs(day)
	dayEndMs := timegrid.ToMs(timegrid.NextDay(day))
	date := day.Format(timegrid.DateFormat)

	symbols, err := c.store.FineSymbolsIn(ctx, dayStartMs, dayEndMs)
	if err != nil {
		return err
	}

	var failed []string
	for _, symbol := range symbols {
		if err := c.aggregateSymbolDay(ctx, symbol, dayStartMs, dayEndMs); err != nil {
			logger.Error("❌ Failed to compact %s for %s: %v", symbol, date, err)
			failed = append(failed, symbol)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d symbols failed: %v", len(failed), len(symbols), failed)
	}

	deleted, err := c.store.DeleteFineBefore(ctx, dayEndMs)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logger.Info("🧹 Pruned %d fine candles for %s (%d symbols)", deleted, date, len(symbols))
	}

	return c.store.SetStatus(ctx, StatusKeyLastProcessed, date)
}

func (c *Compactor) aggregateSymbolDay(ctx context.Context, symbol string, dayStartMs, dayEndMs int64) error {
	rows, err := c.store.QueryRange(ctx, kline.Fine, symbol, dayStartMs, dayEndMs)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	coarse := AggregateBuckets(rows)
	inserted, err := c.store.Upsert(ctx, kline.Coarse, coarse)
	if err != nil {
		return err
	}

	logger.Debug("Compacted %s: %d fine -> %d coarse (%d new)", symbol, len(rows), len(coarse), inserted)
	return nil
}

// AggregateBuckets сворачивает 1-минутные свечи в 30-минутные бакеты.
// Вход отсортирован по open_time; бакеты без единой свечи не
// порождаются, частично заполненные агрегируются из того, что есть.
func AggregateBuckets(fine []kline.Record) []kline.Record {
	var out []kline.Record
	for _, rec := range fine {
		bucket := timegrid.Align(rec.OpenTime, timegrid.CoarseBucketMs)

		if len(out) == 0 || out[len(out)-1].OpenTime != bucket {
			agg := rec
			agg.OpenTime = bucket
			agg.CloseTime = bucket + timegrid.CoarseBucketMs - 1
			out = append(out, agg)
			continue
		}

		agg := &out[len(out)-1]
		if rec.High.GreaterThan(agg.High) {
			agg.High = rec.High
		}
		if rec.Low.LessThan(agg.Low) {
			agg.Low = rec.Low
		}
		agg.Close = rec.Close
		agg.Volume = agg.Volume.Add(rec.Volume)
		agg.QuoteVolume = agg.QuoteVolume.Add(rec.QuoteVolume)
		agg.TradesCount += rec.TradesCount
		agg.TakerBuyBaseVolume = agg.TakerBuyBaseVolume.Add(rec.TakerBuyBaseVolume)
		agg.TakerBuyQuoteVolume = agg.TakerBuyQuoteVolume.Add(rec.TakerBuyQuoteVolume)
	}
	return out
}

func prevDay(day time.Time) time.Time {
	return timegrid.DayStart(day.AddDate(0, 0, -1))
}
