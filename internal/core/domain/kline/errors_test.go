// internal/core/domain/kline/errors_test.go
package kline

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("connection refused")

	storage := &StorageError{Op: "upsert kline_1m", Err: cause}
	if !IsStorage(storage) {
		t.Error("IsStorage failed on StorageError")
	}
	if IsSource(storage) {
		t.Error("IsSource matched StorageError")
	}
	if !errors.Is(storage, cause) {
		t.Error("StorageError does not unwrap to its cause")
	}

	// Классификация переживает дополнительное оборачивание
	wrapped := fmt.Errorf("after 3 attempts: %w", &SourceError{Op: "fetch candles", Symbol: "BTCUSDT", Err: cause})
	if !IsSource(wrapped) {
		t.Error("IsSource failed on wrapped SourceError")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("wrapped SourceError does not unwrap to its cause")
	}
}

func TestValidateAlignment(t *testing.T) {
	rec := Record{Symbol: "BTCUSDT", OpenTime: 1700000040000}
	if err := rec.Validate(Fine); err != nil {
		t.Errorf("aligned fine candle rejected: %v", err)
	}

	// Минутная метка не лежит на 30-минутной сетке
	if err := rec.Validate(Coarse); err == nil {
		t.Error("misaligned coarse candle accepted")
	} else {
		var shapeErr *DataShapeError
		if !errors.As(err, &shapeErr) || shapeErr.Field != "open_time" {
			t.Errorf("unexpected error: %v", err)
		}
	}

	rec.Symbol = ""
	if err := rec.Validate(Fine); err == nil {
		t.Error("empty symbol accepted")
	}
}
