// internal/infrastructure/api/exchanges/binance/client.go
package binance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"crypto-kline-keeper/internal/core/domain/kline"
	"crypto-kline-keeper/internal/infrastructure/config"
	"crypto-kline-keeper/pkg/logger"
)

// BinanceClient - клиент Binance Futures API, реализует
// kline.MarketDataSource
type BinanceClient struct {
	httpClient *http.Client
	futuresURL string
}

// ExchangeInfoResponse - ответ /fapi/v1/exchangeInfo
type ExchangeInfoResponse struct {
	Symbols []ExchangeSymbol `json:"symbols"`
}

// ExchangeSymbol - описание одного контракта
type ExchangeSymbol struct {
	Symbol       string `json:"symbol"`
	Status       string `json:"status"`
	ContractType string `json:"contractType"`
	QuoteAsset   string `json:"quoteAsset"`
}

// NewBinanceClient создает нового клиента для Binance Futures
func NewBinanceClient(cfg *config.BinanceConfig) *BinanceClient {
	return &BinanceClient{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		futuresURL: cfg.FuturesURL,
	}
}

// FetchCandles получает свечи контракта за [startMs, endMs].
// Ответ может быть усечен лимитом maxRows; вызывающий обязан
// страничить сам.
func (c *BinanceClient) FetchCandles(ctx context.Context, symbol string, g kline.Granularity, startMs, endMs int64, maxRows int) ([]kline.Record, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", g.Interval())
	params.Set("startTime", strconv.FormatInt(startMs, 10))
	params.Set("endTime", strconv.FormatInt(endMs, 10))
	params.Set("limit", strconv.Itoa(maxRows))

	endpoint := c.futuresURL + "/fapi/v1/klines?" + params.Encode()

	body, err := c.makeRequest(ctx, endpoint)
	if err != nil {
		return nil, &kline.SourceError{Op: "fetch candles", Symbol: symbol, Err: err}
	}

	return c.parseKlines(symbol, g, body)
}

// FetchSymbols возвращает торгуемые USDT perpetual контракты
func (c *BinanceClient) FetchSymbols(ctx context.Context) ([]string, error) {
	body, err := c.makeRequest(ctx, c.futuresURL+"/fapi/v1/exchangeInfo")
	if err != nil {
		return nil, &kline.SourceError{Op: "fetch symbols", Err: err}
	}

	var info ExchangeInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, &kline.SourceError{Op: "parse exchange info", Err: err}
	}

	var symbols []string
	for _, s := range info.Symbols {
		if s.Status == "TRADING" && s.ContractType == "PERPETUAL" && s.QuoteAsset == "USDT" {
			symbols = append(symbols, s.Symbol)
		}
	}
	return symbols, nil
}

// parseKlines парсит массив свечей Binance. Битая запись
// отбрасывается по одной, остальная пачка сохраняется.
func (c *BinanceClient) parseKlines(symbol string, g kline.Granularity, body []byte) ([]kline.Record, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var raw [][]interface{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, &kline.SourceError{Op: "parse klines", Symbol: symbol, Err: err}
	}

	records := make([]kline.Record, 0, len(raw))
	for _, row := range raw {
		rec, err := parseKlineRow(symbol, row)
		if err != nil {
			logger.Debug("Dropping malformed candle for %s: %v", symbol, err)
			continue
		}
		if err := rec.Validate(g); err != nil {
			logger.Debug("Dropping misaligned candle for %s: %v", symbol, err)
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// Раскладка строки /fapi/v1/klines:
// [0] openTime [1] open [2] high [3] low [4] close [5] volume
// [6] closeTime [7] quoteVolume [8] trades [9] takerBuyBase
// [10] takerBuyQuote [11] ignore
func parseKlineRow(symbol string, row []interface{}) (kline.Record, error) {
	if len(row) < 11 {
		return kline.Record{}, &kline.DataShapeError{Field: "row", Reason: fmt.Sprintf("%d columns, need 11", len(row))}
	}

	rec := kline.Record{Symbol: symbol}
	var err error

	if rec.OpenTime, err = toInt64(row[0]); err != nil {
		return kline.Record{}, &kline.DataShapeError{Field: "open_time", Reason: err.Error()}
	}
	if rec.CloseTime, err = toInt64(row[6]); err != nil {
		return kline.Record{}, &kline.DataShapeError{Field: "close_time", Reason: err.Error()}
	}
	if rec.Open, err = toDecimal(row[1]); err != nil {
		return kline.Record{}, &kline.DataShapeError{Field: "open_price", Reason: err.Error()}
	}
	if rec.High, err = toDecimal(row[2]); err != nil {
		return kline.Record{}, &kline.DataShapeError{Field: "high_price", Reason: err.Error()}
	}
	if rec.Low, err = toDecimal(row[3]); err != nil {
		return kline.Record{}, &kline.DataShapeError{Field: "low_price", Reason: err.Error()}
	}
	if rec.Close, err = toDecimal(row[4]); err != nil {
		return kline.Record{}, &kline.DataShapeError{Field: "close_price", Reason: err.Error()}
	}
	if rec.Volume, err = toDecimal(row[5]); err != nil {
		return kline.Record{}, &kline.DataShapeError{Field: "volume", Reason: err.Error()}
	}
	if rec.QuoteVolume, err = toDecimal(row[7]); err != nil {
		return kline.Record{}, &kline.DataShapeError{Field: "quote_volume", Reason: err.Error()}
	}
	if rec.TradesCount, err = toInt64(row[8]); err != nil {
		return kline.Record{}, &kline.DataShapeError{Field: "trades_count", Reason: err.Error()}
	}
	if rec.TakerBuyBaseVolume, err = toDecimal(row[9]); err != nil {
		return kline.Record{}, &kline.DataShapeError{Field: "taker_buy_base_volume", Reason: err.Error()}
	}
	if rec.TakerBuyQuoteVolume, err = toDecimal(row[10]); err != nil {
		return kline.Record{}, &kline.DataShapeError{Field: "taker_buy_quote_volume", Reason: err.Error()}
	}

	return rec, nil
}

// toInt64 конвертирует ячейку ответа в int64. UseNumber гарантирует
// json.Number для чисел, но Binance отдает часть полей строками.
func toInt64(v interface{}) (int64, error) {
	switch val := v.(type) {
	case json.Number:
		return val.Int64()
	case string:
		return strconv.ParseInt(val, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

// toDecimal конвертирует ячейку ответа в decimal.Decimal
func toDecimal(v interface{}) (decimal.Decimal, error) {
	switch val := v.(type) {
	case json.Number:
		return decimal.NewFromString(val.String())
	case string:
		return decimal.NewFromString(val)
	default:
		return decimal.Decimal{}, fmt.Errorf("unexpected type %T", v)
	}
}

// makeRequest выполняет HTTP запрос
func (c *BinanceClient) makeRequest(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "CryptoKlineKeeper/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance API returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return body, nil
}
