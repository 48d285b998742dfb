// internal/infrastructure/persistence/postgres/repository/klinestore/repository.go
package klinestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"crypto-kline-keeper/internal/core/domain/kline"
	"crypto-kline-keeper/pkg/timegrid"
)

const candleColumns = `
	symbol, open_time, close_time,
	open_price, high_price, low_price, close_price,
	volume, quote_volume, trades_count,
	taker_buy_base_volume, taker_buy_quote_volume`

// Repository — PostgreSQL реализация kline.Store
type Repository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewRepository создает репозиторий свечей
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// WithClock подменяет часы (граница текущего дня в merged-чтении)
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

// Upsert вставляет свечи с ключом (symbol, open_time). Существующие
// строки молча пропускаются и никогда не перезаписываются.
func (r *Repository) Upsert(ctx context.Context, g kline.Granularity, records []kline.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, &kline.StorageError{Op: "begin upsert", Err: err}
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (symbol, open_time) DO NOTHING
	`, g.Table(), candleColumns)

	inserted := 0
	for _, rec := range records {
		result, err := tx.ExecContext(ctx, query,
			rec.Symbol, rec.OpenTime, rec.CloseTime,
			rec.Open, rec.High, rec.Low, rec.Close,
			rec.Volume, rec.QuoteVolume, rec.TradesCount,
			rec.TakerBuyBaseVolume, rec.TakerBuyQuoteVolume,
		)
		if err != nil {
			return 0, &kline.StorageError{Op: "upsert " + g.Table(), Err: err}
		}
		if n, _ := result.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, &kline.StorageError{Op: "commit upsert", Err: err}
	}

	return inserted, nil
}

// QueryRange возвращает свечи символа по возрастанию, toMs не включается
func (r *Repository) QueryRange(ctx context.Context, g kline.Granularity, symbol string, fromMs, toMs int64) ([]kline.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE symbol = $1 AND open_time >= $2 AND open_time < $3
		ORDER BY open_time
	`, candleColumns, g.Table())

	var records []kline.Record
	if err := r.db.SelectContext(ctx, &records, query, symbol, fromMs, toMs); err != nil {
		return nil, &kline.StorageError{Op: "query " + g.Table(), Err: err}
	}
	return records, nil
}

// QueryMergedRange — архивная сетка до начала текущего дня, затем
// мелкая сетка от начала дня; порядок сохраняется через границу.
func (r *Repository) QueryMergedRange(ctx context.Context, symbol string, fromMs, toMs int64) ([]kline.Record, error) {
	todayStart := timegrid.DayStartMs(r.now())

	var merged []kline.Record

	if coarseEnd := minInt64(toMs, todayStart); coarseEnd > fromMs {
		rows, err := r.QueryRange(ctx, kline.Coarse, symbol, fromMs, coarseEnd)
		if err != nil {
			return nil, err
		}
		merged = append(merged, rows...)
	}

	if fineStart := maxInt64(fromMs, todayStart); fineStart < toMs {
		rows, err := r.QueryRange(ctx, kline.Fine, symbol, fineStart, toMs)
		if err != nil {
			return nil, err
		}
		merged = append(merged, rows...)
	}

	return merged, nil
}

// FirstLastSeen возвращает минимальный и максимальный open_time символа
func (r *Repository) FirstLastSeen(ctx context.Context, g kline.Granularity, symbol string) (kline.RangeInfo, error) {
	query := fmt.Sprintf(`SELECT MIN(open_time), MAX(open_time) FROM %s WHERE symbol = $1`, g.Table())

	var minTime, maxTime sql.NullInt64
	if err := r.db.QueryRowContext(ctx, query, symbol).Scan(&minTime, &maxTime); err != nil {
		return kline.RangeInfo{}, &kline.StorageError{Op: "first/last " + g.Table(), Err: err}
	}

	if !minTime.Valid {
		return kline.RangeInfo{}, nil
	}
	return kline.RangeInfo{MinTime: minTime.Int64, MaxTime: maxTime.Int64, HasData: true}, nil
}

// Symbols возвращает все символы из обеих таблиц
func (r *Repository) Symbols(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT symbol FROM kline_1m
		UNION
		SELECT DISTINCT symbol FROM kline_30m
		ORDER BY 1
	`

	var symbols []string
	if err := r.db.SelectContext(ctx, &symbols, query); err != nil {
		return nil, &kline.StorageError{Op: "list symbols", Err: err}
	}
	return symbols, nil
}

// SymbolStats возвращает счетчики и диапазоны по каждому символу
func (r *Repository) SymbolStats(ctx context.Context) (map[string]kline.SymbolStats, error) {
	stats := map[string]kline.SymbolStats{}

	for _, g := range []kline.Granularity{kline.Fine, kline.Coarse} {
		query := fmt.Sprintf(`
			SELECT symbol, COUNT(*), MIN(open_time), MAX(open_time)
			FROM %s
			GROUP BY symbol
		`, g.Table())

		rows, err := r.db.QueryContext(ctx, query)
		if err != nil {
			return nil, &kline.StorageError{Op: "stats " + g.Table(), Err: err}
		}

		for rows.Next() {
			var symbol string
			var ts kline.TableStats
			if err := rows.Scan(&symbol, &ts.Count, &ts.MinTime, &ts.MaxTime); err != nil {
				rows.Close()
				return nil, &kline.StorageError{Op: "scan stats " + g.Table(), Err: err}
			}

			entry := stats[symbol]
			if g == kline.Fine {
				entry.Fine = ts
			} else {
				entry.Coarse = ts
			}
			stats[symbol] = entry
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, &kline.StorageError{Op: "iterate stats " + g.Table(), Err: err}
		}
		rows.Close()
	}

	return stats, nil
}

// FineSymbolsIn возвращает символы с 1-минутными свечами в [fromMs, toMs)
func (r *Repository) FineSymbolsIn(ctx context.Context, fromMs, toMs int64) ([]string, error) {
	query := `
		SELECT DISTINCT symbol FROM kline_1m
		WHERE open_time >= $1 AND open_time < $2
		ORDER BY symbol
	`

	var symbols []string
	if err := r.db.SelectContext(ctx, &symbols, query, fromMs, toMs); err != nil {
		return nil, &kline.StorageError{Op: "fine symbols", Err: err}
	}
	return symbols, nil
}

// DeleteFineBefore удаляет 1-минутные свечи строго раньше beforeMs.
// Повторный вызов безопасен (идемпотентное удаление).
func (r *Repository) DeleteFineBefore(ctx context.Context, beforeMs int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM kline_1m WHERE open_time < $1`, beforeMs)
	if err != nil {
		return 0, &kline.StorageError{Op: "prune kline_1m", Err: err}
	}

	deleted, _ := result.RowsAffected()
	return deleted, nil
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
