// cmd/keeper/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"crypto-kline-keeper/application/keeper"
	"crypto-kline-keeper/internal/core/domain/ingest"
	"crypto-kline-keeper/internal/core/domain/rollover"
	"crypto-kline-keeper/internal/infrastructure/api/exchanges/binance"
	rediscache "crypto-kline-keeper/internal/infrastructure/cache/redis"
	"crypto-kline-keeper/internal/infrastructure/config"
	"crypto-kline-keeper/internal/infrastructure/persistence/postgres"
	"crypto-kline-keeper/internal/infrastructure/persistence/postgres/repository/klinestore"
	"crypto-kline-keeper/pkg/logger"
)

func main() {
	refreshSymbols := flag.Bool("refresh-symbols", false, "сбросить кэш символов перед запуском")
	flag.Parse()

	fmt.Println("══════════════════════════════════════════════════")
	fmt.Println("    ХРАНИТЕЛЬ СВЕЧНЫХ ДАННЫХ - BINANCE FUTURES")
	fmt.Println("══════════════════════════════════════════════════")

	// Загружаем конфигурацию
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}

	if err := logger.InitGlobal(cfg.LogPath, cfg.LogLevel, cfg.Debug); err != nil {
		log.Fatalf("Не удалось инициализировать логгер: %v", err)
	}
	defer logger.GetLogger().Close()

	fmt.Printf("🔧 Конфигурация:\n")
	fmt.Printf("   База данных: %s:%d/%s\n", cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
	fmt.Printf("   Окно инжеста: %s\n", cfg.Keeper.IngestWindow)
	fmt.Printf("   Интервал цикла: %s\n", cfg.Keeper.ScanInterval)
	fmt.Printf("   Глубина архива: %d дней\n", cfg.Keeper.AnalysisDays)
	if cfg.Keeper.SymbolFilter != "" {
		fmt.Printf("   Фильтр символов: %s\n", cfg.Keeper.SymbolFilter)
	}
	fmt.Println()

	// Подключаемся к PostgreSQL
	db, err := postgres.Connect(&cfg.Database)
	if err != nil {
		log.Fatalf("Не удалось подключиться к базе данных: %v", err)
	}
	defer db.Close()

	store := klinestore.NewRepository(db)
	client := binance.NewBinanceClient(&cfg.Binance)

	// Redis опционален: без него кэш символов живет в памяти процесса
	var cache *rediscache.Cache
	if cfg.Redis.Enabled {
		cache = rediscache.NewCache(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		defer cache.Close()
	}
	symbols := rediscache.NewSymbolCache(cache, cfg.Redis.SymbolsTTL, client.FetchSymbols)
	if *refreshSymbols {
		symbols.Invalidate(context.Background())
		fmt.Println("🔄 Кэш символов сброшен, список будет получен заново")
	}

	ingestor := ingest.NewIngestor(store, client, symbols, &cfg.Keeper)
	compactor := rollover.NewCompactor(store)

	service := keeper.New(ingestor, compactor, &cfg.Keeper)
	service.Start()

	fmt.Println("🚀 Хранитель запущен!")
	fmt.Println("──────────────────────────────────────────────────")

	// Ждем сигнал остановки
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	fmt.Println()
	fmt.Println("🛑 Останавливаемся...")

	// Сводка фоновых задач перед остановкой
	status := map[string]string{}
	for _, job := range service.Jobs() {
		status[job.Name] = fmt.Sprintf("runs=%d lastErr=%v", job.Runs, job.LastErr)
	}
	logger.GetLogger().Status(status)

	service.Stop()
}
