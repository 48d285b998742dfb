// internal/infrastructure/persistence/postgres/repository/klinestore/status.go
package klinestore

import (
	"context"
	"database/sql"
	"errors"

	"crypto-kline-keeper/internal/core/domain/kline"
)

// GetStatus читает значение статусного ключа
func (r *Repository) GetStatus(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT status_value FROM keeper_status WHERE status_key = $1`, key,
	).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &kline.StorageError{Op: "get status", Err: err}
	}
	return value, true, nil
}

// SetStatus записывает значение статусного ключа
func (r *Repository) SetStatus(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO keeper_status (status_key, status_value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (status_key) DO UPDATE
		SET status_value = EXCLUDED.status_value, updated_at = NOW()
	`, key, value)

	if err != nil {
		return &kline.StorageError{Op: "set status", Err: err}
	}
	return nil
}
