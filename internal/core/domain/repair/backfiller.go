// internal/core/domain/repair/backfiller.go
package repair

import (
	"context"

	"golang.org/x/time/rate"

	"crypto-kline-keeper/internal/core/domain/integrity"
	"crypto-kline-keeper/internal/core/domain/kline"
	"crypto-kline-keeper/internal/infrastructure/config"
	"crypto-kline-keeper/pkg/logger"
	"crypto-kline-keeper/pkg/retry"
	"crypto-kline-keeper/pkg/timegrid"
)

// Period — непрерывный отрезок пропущенных бакетов
type Period struct {
	StartMs int64 // первый пропущенный бакет
	EndMs   int64 // последний пропущенный бакет
	Count   int
}

// FindMissingPeriods группирует отсортированные пропущенные точки
// сетки в непрерывные периоды: соседние бакеты сливаются в один отрезок
func FindMissingPeriods(missing []int64, bucketMs int64) []Period {
	if len(missing) == 0 || bucketMs <= 0 {
		return nil
	}

	periods := []Period{{StartMs: missing[0], EndMs: missing[0], Count: 1}}
	for _, ts := range missing[1:] {
		last := &periods[len(periods)-1]
		if ts == last.EndMs+bucketMs {
			last.EndMs = ts
			last.Count++
			continue
		}
		periods = append(periods, Period{StartMs: ts, EndMs: ts, Count: 1})
	}
	return periods
}

// Backfiller закрывает внутренние дыры свечных рядов: находит пропуски
// той же процедурой, что и проверка целостности, и дотягивает их из
// источника. Существующие свечи не перезаписываются.
type Backfiller struct {
	store   kline.Store
	source  kline.MarketDataSource
	checker *integrity.Checker
	cfg     *config.KeeperConfig

	limiter *rate.Limiter
	retry   retry.Config
}

// NewBackfiller создает репер пропусков
func NewBackfiller(store kline.Store, source kline.MarketDataSource, checker *integrity.Checker, cfg *config.KeeperConfig) *Backfiller {
	return &Backfiller{
		store:   store,
		source:  source,
		checker: checker,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.FetchDelay), 1),
		retry:   retry.DefaultConfig(),
	}
}

// WithRetry подменяет политику повторов
func (b *Backfiller) WithRetry(cfg retry.Config) *Backfiller {
	b.retry = cfg
	return b
}

// RepairSymbol находит и закрывает пропуски одного символа в обеих
// сетках. Возвращает число довставленных свечей.
func (b *Backfiller) RepairSymbol(ctx context.Context, symbol string) (int, error) {
	sr := b.checker.CheckSymbol(ctx, symbol)

	total := 0
	for _, grid := range []*integrity.GridReport{&sr.Fine, &sr.Coarse} {
		if grid.Err != nil {
			return total, grid.Err
		}
		inserted, err := b.repairGrid(ctx, symbol, grid)
		total += inserted
		if err != nil {
			return total, err
		}
	}

	if total > 0 {
		logger.Info("🔧 Repaired %s: %d candles inserted", symbol, total)
	}
	return total, nil
}

// RepairAll чинит все символы хранилища. Сбой одного символа не
// прерывает остальных.
func (b *Backfiller) RepairAll(ctx context.Context, symbols []string) (inserted, failed int, err error) {
	for _, symbol := range symbols {
		n, err := b.RepairSymbol(ctx, symbol)
		inserted += n
		if err != nil {
			logger.Error("❌ Repair failed for %s: %v", symbol, err)
			failed++
		}
	}

	logger.Info("🔧 Repair pass: %d candles inserted, %d of %d symbols failed",
		inserted, failed, len(symbols))
	return inserted, failed, nil
}

func (b *Backfiller) repairGrid(ctx context.Context, symbol string, grid *integrity.GridReport) (int, error) {
	periods := FindMissingPeriods(grid.Missing, grid.Granularity.BucketMs())
	if len(periods) == 0 {
		return 0, nil
	}

	logger.Info("🔍 %s [%s]: %d gap(s), %d candles to backfill",
		symbol, grid.Granularity, len(periods), len(grid.Missing))

	inserted := 0
	for _, p := range periods {
		if err := b.limiter.Wait(ctx); err != nil {
			return inserted, err
		}
		n, err := b.fetchPeriod(ctx, symbol, grid.Granularity, p)
		inserted += n
		if err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}

// fetchPeriod дотягивает один отрезок. Конец сдвигается на бакет
// вперед: лишняя свеча на границе гасится идемпотентной вставкой.
func (b *Backfiller) fetchPeriod(ctx context.Context, symbol string, g kline.Granularity, p Period) (int, error) {
	endMs := p.EndMs + g.BucketMs()

	var rows []kline.Record
	err := retry.Do(ctx, b.retry, func() error {
		var fetchErr error
		rows, fetchErr = b.source.FetchCandles(ctx, symbol, g, p.StartMs, endMs, b.cfg.FetchLimit)
		return fetchErr
	})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		// Источник тоже не знает этот отрезок (делистинг, пауза торгов)
		logger.Warn("⚠️  Source has no candles for %s gap %s .. %s",
			symbol,
			timegrid.FromMs(p.StartMs).Format("2006-01-02 15:04"),
			timegrid.FromMs(p.EndMs).Format("2006-01-02 15:04"))
		return 0, nil
	}

	return b.store.Upsert(ctx, g, rows)
}
