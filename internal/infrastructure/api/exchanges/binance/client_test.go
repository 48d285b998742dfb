// internal/infrastructure/api/exchanges/binance/client_test.go
package binance

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"crypto-kline-keeper/internal/core/domain/kline"
)

const validRow = `[1700000040000,"35000.1","35010.0","34990.5","35005.2","12.5",1700000099999,"437512.5",321,"6.2","217000.1","0"]`

func TestParseKlinesValidRow(t *testing.T) {
	c := &BinanceClient{}

	records, err := c.parseKlines("BTCUSDT", kline.Fine, []byte(`[`+validRow+`]`))
	if err != nil {
		t.Fatalf("parseKlines: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.Symbol != "BTCUSDT" {
		t.Errorf("symbol = %q", rec.Symbol)
	}
	if rec.OpenTime != 1700000040000 {
		t.Errorf("open_time = %d", rec.OpenTime)
	}
	if rec.CloseTime != 1700000099999 {
		t.Errorf("close_time = %d", rec.CloseTime)
	}
	if !rec.Open.Equal(decimal.RequireFromString("35000.1")) {
		t.Errorf("open_price = %s", rec.Open)
	}
	if rec.TradesCount != 321 {
		t.Errorf("trades_count = %d", rec.TradesCount)
	}
	if !rec.TakerBuyQuoteVolume.Equal(decimal.RequireFromString("217000.1")) {
		t.Errorf("taker_buy_quote_volume = %s", rec.TakerBuyQuoteVolume)
	}
}

func TestParseKlinesDropsMalformedRow(t *testing.T) {
	c := &BinanceClient{}

	// Вторая строка усечена, третья не выровнена по минутной сетке
	body := `[` + validRow + `,` +
		`[1700000100000,"1","1"],` +
		`[1700000161000,"1","1","1","1","1",1700000220999,"1",1,"1","1","0"]` +
		`]`

	records, err := c.parseKlines("BTCUSDT", kline.Fine, []byte(body))
	if err != nil {
		t.Fatalf("parseKlines: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 surviving record, got %d", len(records))
	}
	if records[0].OpenTime != 1700000040000 {
		t.Errorf("surviving open_time = %d", records[0].OpenTime)
	}
}

func TestParseKlinesInvalidPayload(t *testing.T) {
	c := &BinanceClient{}

	if _, err := c.parseKlines("BTCUSDT", kline.Fine, []byte(`{"code":-1121}`)); err == nil {
		t.Fatal("expected error for non-array payload")
	} else if !kline.IsSource(err) {
		t.Errorf("expected SourceError, got %T", err)
	}
}

func TestParseKlineRowBadNumber(t *testing.T) {
	row := []interface{}{
		"not-a-timestamp", "1", "1", "1", "1", "1",
		"1700000099999", "1", "1", "1", "1", "0",
	}

	_, err := parseKlineRow("BTCUSDT", row)
	if err == nil {
		t.Fatal("expected error for bad open_time")
	}
	var shapeErr *kline.DataShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected DataShapeError, got %T", err)
	}
	if shapeErr.Field != "open_time" {
		t.Errorf("field = %q", shapeErr.Field)
	}
}
