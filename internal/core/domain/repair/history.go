// internal/core/domain/repair/history.go
package repair

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"crypto-kline-keeper/internal/core/domain/kline"
	"crypto-kline-keeper/internal/infrastructure/config"
	"crypto-kline-keeper/pkg/logger"
	"crypto-kline-keeper/pkg/retry"
	"crypto-kline-keeper/pkg/timegrid"
)

// Historian наполняет хранилище историей с нуля: архивная сетка за
// заданное число прошедших дней плюс мелкая сетка текущего дня.
// Повторный запуск безопасен, уже загруженные свечи пропускаются.
type Historian struct {
	store  kline.Store
	source kline.MarketDataSource
	cfg    *config.KeeperConfig

	limiter *rate.Limiter
	retry   retry.Config
	now     func() time.Time
}

// NewHistorian создает загрузчик истории
func NewHistorian(store kline.Store, source kline.MarketDataSource, cfg *config.KeeperConfig) *Historian {
	return &Historian{
		store:   store,
		source:  source,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.FetchDelay), 1),
		retry:   retry.DefaultConfig(),
		now:     time.Now,
	}
}

// WithClock подменяет часы (для тестов)
func (h *Historian) WithClock(now func() time.Time) *Historian {
	h.now = now
	return h
}

// WithRetry подменяет политику повторов
func (h *Historian) WithRetry(cfg retry.Config) *Historian {
	h.retry = cfg
	return h
}

// BackfillSymbol загружает историю одного символа: days прошедших дней
// в архивную сетку и текущий день в мелкую. Возвращает число
// вставленных свечей.
func (h *Historian) BackfillSymbol(ctx context.Context, symbol string, days int) (int, error) {
	now := h.now()
	todayMs := timegrid.DayStartMs(now)
	startMs := timegrid.ToMs(timegrid.DayStart(now).AddDate(0, 0, -days))
	nowMs := timegrid.ToMs(now)

	coarse, err := h.fetchRange(ctx, symbol, kline.Coarse, startMs, todayMs-1)
	if err != nil {
		return coarse, err
	}

	fine, err := h.fetchRange(ctx, symbol, kline.Fine, todayMs, nowMs)
	if err != nil {
		return coarse + fine, err
	}

	logger.Info("📥 Backfilled %s: %d coarse + %d fine candles", symbol, coarse, fine)
	return coarse + fine, nil
}

// BackfillAll загружает историю по всем символам с изоляцией сбоев
func (h *Historian) BackfillAll(ctx context.Context, symbols []string, days int) (inserted, failed int, err error) {
	for _, symbol := range symbols {
		n, err := h.BackfillSymbol(ctx, symbol, days)
		inserted += n
		if err != nil {
			logger.Error("❌ Backfill failed for %s: %v", symbol, err)
			failed++
		}
	}

	logger.Info("📥 Initial backfill: %d candles, %d of %d symbols failed",
		inserted, failed, len(symbols))
	return inserted, failed, nil
}

// fetchRange страничит источник по диапазону [startMs, endMs]: каждый
// следующий запрос начинается за последней полученной свечой.
func (h *Historian) fetchRange(ctx context.Context, symbol string, g kline.Granularity, startMs, endMs int64) (int, error) {
	inserted := 0
	cursor := startMs

	for cursor <= endMs {
		if err := h.limiter.Wait(ctx); err != nil {
			return inserted, err
		}

		var rows []kline.Record
		err := retry.Do(ctx, h.retry, func() error {
			var fetchErr error
			rows, fetchErr = h.source.FetchCandles(ctx, symbol, g, cursor, endMs, h.cfg.FetchLimit)
			return fetchErr
		})
		if err != nil {
			return inserted, err
		}
		if len(rows) == 0 {
			break
		}

		n, err := h.store.Upsert(ctx, g, rows)
		inserted += n
		if err != nil {
			return inserted, err
		}

		next := rows[len(rows)-1].OpenTime + g.BucketMs()
		if next <= cursor {
			break
		}
		cursor = next
	}

	return inserted, nil
}
