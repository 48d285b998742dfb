// cmd/repair/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"crypto-kline-keeper/internal/core/domain/ingest"
	"crypto-kline-keeper/internal/core/domain/integrity"
	"crypto-kline-keeper/internal/core/domain/repair"
	"crypto-kline-keeper/internal/infrastructure/api/exchanges/binance"
	"crypto-kline-keeper/internal/infrastructure/config"
	"crypto-kline-keeper/internal/infrastructure/persistence/postgres"
	"crypto-kline-keeper/internal/infrastructure/persistence/postgres/repository/klinestore"
	"crypto-kline-keeper/pkg/logger"
)

func main() {
	symbolFlag := flag.String("symbol", "", "чинить только один символ")
	checkOnly := flag.Bool("check-only", false, "только показать пропуски, ничего не чинить")
	repairAll := flag.Bool("repair-all", false, "чинить все символы хранилища")
	flag.Parse()

	if *symbolFlag == "" && !*repairAll && !*checkOnly {
		log.Fatal("Укажите --symbol, --repair-all или --check-only")
	}

	fmt.Println("══════════════════════════════════════════════════")
	fmt.Println("      ВОССТАНОВЛЕНИЕ ПРОПУЩЕННЫХ СВЕЧЕЙ")
	fmt.Println("══════════════════════════════════════════════════")

	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}

	if err := logger.InitGlobal(cfg.LogPath, cfg.LogLevel, cfg.Debug); err != nil {
		log.Fatalf("Не удалось инициализировать логгер: %v", err)
	}
	defer logger.GetLogger().Close()

	db, err := postgres.Connect(&cfg.Database)
	if err != nil {
		log.Fatalf("Не удалось подключиться к базе данных: %v", err)
	}
	defer db.Close()

	store := klinestore.NewRepository(db)
	checker := integrity.NewChecker(store, &cfg.Keeper)

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	var symbols []string
	if *symbolFlag != "" {
		symbols = []string{*symbolFlag}
	} else {
		symbols, err = store.Symbols(ctx)
		if err != nil {
			log.Fatalf("Не удалось получить список символов: %v", err)
		}
		symbols = ingest.FilterSymbols(symbols, cfg.Keeper.SymbolFilter)
	}

	if *checkOnly {
		report := checker.CheckSymbols(ctx, symbols)
		integrity.PrintReport(report, &cfg.Keeper, true)
		return
	}

	client := binance.NewBinanceClient(&cfg.Binance)
	backfiller := repair.NewBackfiller(store, client, checker, &cfg.Keeper)

	inserted, failed, err := backfiller.RepairAll(ctx, symbols)
	if err != nil {
		log.Fatalf("Восстановление прервано: %v", err)
	}

	fmt.Printf("✅ Довставлено %d свечей, сбойных символов: %d\n", inserted, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
