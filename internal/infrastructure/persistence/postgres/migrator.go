// internal/infrastructure/persistence/postgres/migrator.go
package postgres

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"crypto-kline-keeper/pkg/logger"
)

// Схема хранилища: две свечные таблицы с уникальным ключом
// (symbol, open_time) и вторичным индексом по open_time для
// диапазонных выборок, плюс статусная таблица ключ-значение.
var migrations = []struct {
	Name string
	SQL  string
}{
	{
		Name: "create_kline_1m",
		SQL: `
		CREATE TABLE IF NOT EXISTS kline_1m (
			symbol VARCHAR(32) NOT NULL,
			open_time BIGINT NOT NULL,
			close_time BIGINT NOT NULL,
			open_price DECIMAL(32, 12) NOT NULL,
			high_price DECIMAL(32, 12) NOT NULL,
			low_price DECIMAL(32, 12) NOT NULL,
			close_price DECIMAL(32, 12) NOT NULL,
			volume DECIMAL(32, 12) NOT NULL,
			quote_volume DECIMAL(32, 12) NOT NULL,
			trades_count BIGINT NOT NULL,
			taker_buy_base_volume DECIMAL(32, 12) NOT NULL,
			taker_buy_quote_volume DECIMAL(32, 12) NOT NULL,
			PRIMARY KEY (symbol, open_time)
		);

		CREATE INDEX IF NOT EXISTS idx_kline_1m_open_time ON kline_1m(open_time);
		`,
	},
	{
		Name: "create_kline_30m",
		SQL: `
		CREATE TABLE IF NOT EXISTS kline_30m (
			symbol VARCHAR(32) NOT NULL,
			open_time BIGINT NOT NULL,
			close_time BIGINT NOT NULL,
			open_price DECIMAL(32, 12) NOT NULL,
			high_price DECIMAL(32, 12) NOT NULL,
			low_price DECIMAL(32, 12) NOT NULL,
			close_price DECIMAL(32, 12) NOT NULL,
			volume DECIMAL(32, 12) NOT NULL,
			quote_volume DECIMAL(32, 12) NOT NULL,
			trades_count BIGINT NOT NULL,
			taker_buy_base_volume DECIMAL(32, 12) NOT NULL,
			taker_buy_quote_volume DECIMAL(32, 12) NOT NULL,
			PRIMARY KEY (symbol, open_time)
		);

		CREATE INDEX IF NOT EXISTS idx_kline_30m_open_time ON kline_30m(open_time);
		`,
	},
	{
		Name: "create_keeper_status",
		SQL: `
		CREATE TABLE IF NOT EXISTS keeper_status (
			status_key VARCHAR(64) PRIMARY KEY,
			status_value TEXT NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
		`,
	},
}

// Migrate приводит схему к актуальному виду. Все выражения
// идемпотентны, повторный запуск безопасен.
func Migrate(db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.Exec(m.SQL); err != nil {
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
		logger.Debug("📂 Applied migration: %s", m.Name)
	}

	logger.Info("✅ Database schema is up to date (%d migrations)", len(migrations))
	return nil
}
