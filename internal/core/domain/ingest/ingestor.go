// internal/core/domain/ingest/ingestor.go
package ingest

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"crypto-kline-keeper/internal/core/domain/kline"
	"crypto-kline-keeper/internal/infrastructure/config"
	"crypto-kline-keeper/pkg/logger"
	"crypto-kline-keeper/pkg/retry"
	"crypto-kline-keeper/pkg/timegrid"
)

// SymbolLister предоставляет актуальный список символов для инжеста
type SymbolLister interface {
	Get(ctx context.Context) ([]string, error)
}

// Ingestor дотягивает свежие 1-минутные свечи скользящим окном.
// Окно шире периода цикла, поэтому каждый бакет запрашивается
// несколько раз; дубликаты гасятся идемпотентной вставкой хранилища.
type Ingestor struct {
	store   kline.Store
	source  kline.MarketDataSource
	symbols SymbolLister
	cfg     *config.KeeperConfig

	limiter *rate.Limiter
	retry   retry.Config
	now     func() time.Time
}

// NewIngestor создает инжестор свечей
func NewIngestor(store kline.Store, source kline.MarketDataSource, symbols SymbolLister, cfg *config.KeeperConfig) *Ingestor {
	return &Ingestor{
		store:   store,
		source:  source,
		symbols: symbols,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.FetchDelay), 1),
		retry:   retry.DefaultConfig(),
		now:     time.Now,
	}
}

// WithClock подменяет часы (для тестов)
func (i *Ingestor) WithClock(now func() time.Time) *Ingestor {
	i.now = now
	return i
}

// WithRetry подменяет политику повторов
func (i *Ingestor) WithRetry(cfg retry.Config) *Ingestor {
	i.retry = cfg
	return i
}

// IngestOne забирает окно 1-минутных свечей одного символа.
// Возвращает true, если данные получены и сохранены.
func (i *Ingestor) IngestOne(ctx context.Context, symbol string) bool {
	endMs := timegrid.ToMs(i.now())
	startMs := timegrid.Align(endMs-i.cfg.IngestWindow.Milliseconds(), timegrid.FineBucketMs)

	var records []kline.Record
	err := retry.Do(ctx, i.retry, func() error {
		var fetchErr error
		records, fetchErr = i.source.FetchCandles(ctx, symbol, kline.Fine, startMs, endMs, i.cfg.FetchLimit)
		return fetchErr
	})
	if err != nil {
		logger.Error("❌ Failed to fetch candles for %s: %v", symbol, err)
		return false
	}

	if len(records) == 0 {
		logger.Warn("⚠️  No candles returned for %s in ingest window", symbol)
		return false
	}

	inserted, err := i.store.Upsert(ctx, kline.Fine, records)
	if err != nil {
		logger.Error("❌ Failed to store candles for %s: %v", symbol, err)
		return false
	}

	logger.Debug("Ingested %s: %d fetched, %d new", symbol, len(records), inserted)
	return true
}

// IngestAll прогоняет инжест по всем символам. Сбой одного символа
// не прерывает цикл по остальным.
func (i *Ingestor) IngestAll(ctx context.Context) (succeeded, failed int, err error) {
	symbols, err := i.symbols.Get(ctx)
	if err != nil {
		return 0, 0, err
	}
	symbols = FilterSymbols(symbols, i.cfg.SymbolFilter)

	for _, symbol := range symbols {
		if err := i.limiter.Wait(ctx); err != nil {
			return succeeded, failed, err
		}
		if i.IngestOne(ctx, symbol) {
			succeeded++
		} else {
			failed++
		}
	}

	logger.Info("📊 Ingest cycle: %d ok, %d failed of %d symbols", succeeded, failed, len(symbols))
	return succeeded, failed, nil
}

// FilterSymbols оставляет только символы из фильтра (список через
// запятую). Пустой фильтр пропускает все.
func FilterSymbols(symbols []string, filter string) []string {
	if filter == "" {
		return symbols
	}

	allowed := map[string]bool{}
	for _, s := range strings.Split(filter, ",") {
		if s = strings.TrimSpace(s); s != "" {
			allowed[strings.ToUpper(s)] = true
		}
	}

	var out []string
	for _, sym := range symbols {
		if allowed[strings.ToUpper(sym)] {
			out = append(out, sym)
		}
	}
	return out
}
