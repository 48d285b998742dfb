// internal/core/domain/kline/errors.go
package kline

import (
	"errors"
	"fmt"
)

// StorageError — сбой ввода-вывода хранилища. Повторяемая ошибка:
// вызывающий логирует и переходит к следующему символу/циклу.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// SourceError — сбой обращения к источнику рыночных данных.
// Также повторяемая, изоляция на уровне символа.
type SourceError struct {
	Op     string
	Symbol string
	Err    error
}

func (e *SourceError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("source %s [%s]: %v", e.Op, e.Symbol, e.Err)
	}
	return fmt.Sprintf("source %s: %v", e.Op, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// DataShapeError — одна запись источника не распарсилась в валидную
// свечу. Отбрасывается запись, а не вся пачка.
type DataShapeError struct {
	Field  string
	Reason string
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("bad candle field %q: %s", e.Field, e.Reason)
}

// ConsistencyWarning — неблокирующее расхождение, найденное проверкой
// целостности. Не останавливает обработку остальных символов,
// накапливается в отчете прогона.
type ConsistencyWarning struct {
	Symbol string
	Detail string
}

func (e *ConsistencyWarning) Error() string {
	return fmt.Sprintf("consistency [%s]: %s", e.Symbol, e.Detail)
}

// IsStorage проверяет, является ли ошибка ошибкой хранилища
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsSource проверяет, является ли ошибка ошибкой источника
func IsSource(err error) bool {
	var se *SourceError
	return errors.As(err, &se)
}
