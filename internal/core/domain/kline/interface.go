// internal/core/domain/kline/interface.go
package kline

import "context"

// Store — долговременное идемпотентное хранилище свечей плюс
// статусная таблица ключ-значение. Любой вызов может вернуть
// *StorageError; вызывающие обязаны изолировать сбой на уровне символа.
type Store interface {
	// Upsert вставляет записи с ключом (symbol, open_time); коллизии
	// молча пропускаются, существующие значения не перезаписываются.
	// Возвращает число реально вставленных строк.
	Upsert(ctx context.Context, g Granularity, records []Record) (int, error)

	// QueryRange возвращает свечи символа по возрастанию open_time,
	// toMs не включается.
	QueryRange(ctx context.Context, g Granularity, symbol string, fromMs, toMs int64) ([]Record, error)

	// QueryMergedRange — объединенное чтение: архивная сетка до начала
	// текущего дня, затем мелкая сетка от начала дня. Единственный
	// путь чтения для потребителей, которым нужен сплошной ряд.
	QueryMergedRange(ctx context.Context, symbol string, fromMs, toMs int64) ([]Record, error)

	// FirstLastSeen возвращает первый и последний open_time символа
	FirstLastSeen(ctx context.Context, g Granularity, symbol string) (RangeInfo, error)

	// Symbols возвращает все символы из обеих таблиц
	Symbols(ctx context.Context) ([]string, error)

	// SymbolStats возвращает счетчики и диапазоны по каждому символу
	SymbolStats(ctx context.Context) (map[string]SymbolStats, error)

	// FineSymbolsIn возвращает символы, у которых есть хотя бы одна
	// 1-минутная свеча в полуинтервале [fromMs, toMs)
	FineSymbolsIn(ctx context.Context, fromMs, toMs int64) ([]string, error)

	// DeleteFineBefore удаляет 1-минутные свечи строго раньше beforeMs
	DeleteFineBefore(ctx context.Context, beforeMs int64) (int64, error)

	GetStatus(ctx context.Context, key string) (string, bool, error)
	SetStatus(ctx context.Context, key, value string) error
}

// MarketDataSource — внешний источник свечей. Результат отсортирован
// по возрастанию open_time, может быть усечен ниже maxRows и может
// содержать уже полученные ранее бакеты.
type MarketDataSource interface {
	FetchCandles(ctx context.Context, symbol string, g Granularity, startMs, endMs int64, maxRows int) ([]Record, error)
	FetchSymbols(ctx context.Context) ([]string, error)
}
