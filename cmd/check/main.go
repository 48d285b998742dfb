// cmd/check/main.go
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
	"crypto-kline-keeper/internal/infrastructure/config"
	"crypto-kline-keeper/internal/infrastructure/persistence/postgres"
	"crypto-kline-keeper/internal/infrastructure/persistence/postgres/repository/klinestore"
	"crypto-kline-keeper/pkg/logger"
	"crypto-kline-keeper/pkg/timegrid"
)

func main() {
	symbolFlag := flag.String("symbol", "", "проверить только один символ")
	detailed := flag.Bool("detailed", false, "построчный вывод по каждому символу")
	stats := flag.Bool("stats", false, "вывести статистику хранилища по символам")
	tail := flag.Int("tail", 0, "вывести последние N свечей сплошного ряда (требует --symbol)")
	flag.Parse()

	if *tail > 0 && *symbolFlag == "" {
		log.Fatal("--tail требует --symbol")
	}

	fmt.Println("══════════════════════════════════════════════════")
	fmt.Println("      ПРОВЕРКА ЦЕЛОСТНОСТИ СВЕЧНЫХ ДАННЫХ")
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
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

	if *tail > 0 {
		series, err := checker.ContinuousSeries(ctx, *symbolFlag)
		if err != nil {
			log.Fatalf("Не удалось получить сплошной ряд: %v", err)
		}
		if len(series) > *tail {
			series = series[len(series)-*tail:]
		}
		fmt.Printf("\nПоследние %d свечей %s (архив + текущий день):\n", len(series), *symbolFlag)
		for _, rec := range series {
			width := "30m"
			if rec.CloseTime-rec.OpenTime < timegrid.CoarseBucketMs-1 {
				width = "1m"
			}
			fmt.Printf("  %s  [%s]  close=%s  vol=%s\n",
				timegrid.FromMs(rec.OpenTime).Format("2006-01-02 15:04"),
				width, rec.Close, rec.Volume)
		}
		fmt.Println()
	}

	report := checker.CheckSymbols(ctx, symbols)
	integrity.PrintReport(report, &cfg.Keeper, *detailed)

	if *stats {
		symbolStats, err := store.SymbolStats(ctx)
		if err != nil {
			log.Fatalf("Не удалось получить статистику хранилища: %v", err)
		}
		integrity.PrintStats(symbolStats)
	}

	if len(report.Warnings) > 0 {
		os.Exit(1)
	}
}
