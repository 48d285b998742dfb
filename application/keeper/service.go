// application/keeper/service.go
package keeper

import (
	"context"
	"time"

	"crypto-kline-keeper/application/scheduler"
	"crypto-kline-keeper/internal/core/domain/ingest"
	"crypto-kline-keeper/internal/core/domain/rollover"
	"crypto-kline-keeper/internal/infrastructure/config"
	"crypto-kline-keeper/pkg/logger"
)

// Service — фоновый цикл поддержания свечных данных: дневной роловер
// в архивную сетку плюс инжест свежих 1-минутных свечей.
type Service struct {
	ingestor  *ingest.Ingestor
	compactor *rollover.Compactor
	sched     *scheduler.Scheduler
	cfg       *config.KeeperConfig
}

// New собирает сервис поверх готовых компонентов
func New(ingestor *ingest.Ingestor, compactor *rollover.Compactor, cfg *config.KeeperConfig) *Service {
	return &Service{
		ingestor:  ingestor,
		compactor: compactor,
		sched:     scheduler.New(),
		cfg:       cfg,
	}
}

// RunCycle выполняет один проход. Сперва роловер: он освобождает
// мелкую сетку от завершившихся дней; его сбой не останавливает
// инжест, пропущенные дни будут догнаны следующим циклом.
func (s *Service) RunCycle(ctx context.Context) error {
	if err := s.compactor.Run(ctx); err != nil {
		logger.Error("❌ Rollover failed, will retry next cycle: %v", err)
	}

	_, failed, err := s.ingestor.IngestAll(ctx)
	if err != nil {
		return err
	}
	if failed > 0 {
		logger.Warn("⚠️  Ingest finished with %d failed symbols", failed)
	}
	return nil
}

// Start регистрирует цикл в планировщике. Первый проход уходит на
// первом же тике, не дожидаясь интервала; Stop() его дождется.
func (s *Service) Start() {
	s.sched.Register(&scheduler.Job{
		Name:           "kline-scan",
		Description:    "Ingest fine candles and roll completed days into the archive grid",
		Schedule:       scheduler.Every(s.cfg.ScanInterval),
		Handler:        s.RunCycle,
		Timeout:        time.Hour,
		RunImmediately: true,
	})
	s.sched.Start()
}

// Stop останавливает планировщик, дожидаясь текущего цикла
func (s *Service) Stop() {
	s.sched.Stop()
}

// Jobs возвращает состояние фоновых задач
func (s *Service) Jobs() []scheduler.JobStatus {
	return s.sched.Jobs()
}
