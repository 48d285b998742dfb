// cmd/init/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"crypto-kline-keeper/internal/core/domain/ingest"
	"crypto-kline-keeper/internal/core/domain/repair"
	"crypto-kline-keeper/internal/infrastructure/api/exchanges/binance"
	"crypto-kline-keeper/internal/infrastructure/config"
	"crypto-kline-keeper/internal/infrastructure/persistence/postgres"
	"crypto-kline-keeper/internal/infrastructure/persistence/postgres/repository/klinestore"
	"crypto-kline-keeper/pkg/logger"
)

func main() {
	symbolFlag := flag.String("symbol", "", "загрузить историю только одного символа")
	days := flag.Int("days", 0, "глубина истории в днях (по умолчанию из конфигурации)")
	flag.Parse()

	fmt.Println("══════════════════════════════════════════════════")
	fmt.Println("      ПЕРВОНАЧАЛЬНАЯ ЗАГРУЗКА ИСТОРИИ СВЕЧЕЙ")
	fmt.Println("══════════════════════════════════════════════════")

	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}

	if err := logger.InitGlobal(cfg.LogPath, cfg.LogLevel, cfg.Debug); err != nil {
		log.Fatalf("Не удалось инициализировать логгер: %v", err)
	}
	defer logger.GetLogger().Close()

	if *days <= 0 {
		*days = cfg.Keeper.AnalysisDays
	}

	db, err := postgres.Connect(&cfg.Database)
	if err != nil {
		log.Fatalf("Не удалось подключиться к базе данных: %v", err)
	}
	defer db.Close()

	store := klinestore.NewRepository(db)
	client := binance.NewBinanceClient(&cfg.Binance)
	historian := repair.NewHistorian(store, client, &cfg.Keeper)

	ctx, cancel := context.WithTimeout(context.Background(), 6*time.Hour)
	defer cancel()

	var symbols []string
	if *symbolFlag != "" {
		symbols = []string{*symbolFlag}
	} else {
		symbols, err = client.FetchSymbols(ctx)
		if err != nil {
			log.Fatalf("Не удалось получить список контрактов: %v", err)
		}
		symbols = ingest.FilterSymbols(symbols, cfg.Keeper.SymbolFilter)
	}

	fmt.Printf("📥 Загружаем %d дней истории для %d символов...\n", *days, len(symbols))

	inserted, failed, err := historian.BackfillAll(ctx, symbols, *days)
	if err != nil {
		log.Fatalf("Загрузка прервана: %v", err)
	}

	fmt.Printf("✅ Загружено %d свечей, сбойных символов: %d\n", inserted, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
