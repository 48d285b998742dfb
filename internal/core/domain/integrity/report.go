// internal/core/domain/integrity/report.go
package integrity

import (
	"sort"
	"time"

	"crypto-kline-keeper/internal/core/domain/kline"
	"crypto-kline-keeper/internal/infrastructure/config"
	"crypto-kline-keeper/pkg/logger"
	"crypto-kline-keeper/pkg/timegrid"
)

const timestampFormat = "2006-01-02 15:04"

// PrintReport выводит отчет прогона в лог. В обычном режиме печатаются
// только проблемные символы и сводка; detailed добавляет построчный
// вывод по каждому символу.
func PrintReport(report *RunReport, cfg *config.KeeperConfig, detailed bool) {
	logger.Section("KLINE DATA INTEGRITY CHECK")
	logger.Info("Run %s started at %s, %d symbols",
		report.RunID, report.StartedAt.Format(time.RFC3339), len(report.Symbols))

	complete := 0
	var noData []string
	for i := range report.Symbols {
		sr := &report.Symbols[i]

		min, ok := sr.MinIntegrity()
		switch {
		case !ok && sr.Fine.Err == nil && sr.Coarse.Err == nil:
			noData = append(noData, sr.Symbol)
		case ok && min >= 100:
			complete++
		}

		if detailed || sr.Fine.Err != nil || sr.Coarse.Err != nil || (ok && min < cfg.IntegrityThreshold) {
			printGrid(sr.Symbol, &sr.Fine, cfg.MissingSampleLimit)
			printGrid(sr.Symbol, &sr.Coarse, cfg.MissingSampleLimit)
		}
	}

	logger.Section("SUMMARY")
	logger.Info("✅ Complete: %d of %d symbols", complete, len(report.Symbols))
	if len(noData) > 0 {
		logger.Warn("⚠️  No data: %d symbols %v", len(noData), truncate(noData, cfg.MissingSampleLimit))
	}

	below := report.BelowThreshold(cfg.IntegrityThreshold)
	if len(below) > 0 {
		logger.Warn("⚠️  Below %.0f%% threshold: %d symbols", cfg.IntegrityThreshold, len(below))
	}

	if worst := report.WorstOffenders(5); len(worst) > 0 {
		logger.Info("Worst offenders:")
		for _, sr := range worst {
			min, _ := sr.MinIntegrity()
			logger.Info("   %s: %.2f%% (%d + %d missing)",
				sr.Symbol, min, len(sr.Fine.Missing), len(sr.Coarse.Missing))
		}
	}

	for _, w := range report.Warnings {
		logger.Error("❌ %v", w)
	}
}

func printGrid(symbol string, r *GridReport, sampleLimit int) {
	label := r.Granularity.String()

	switch {
	case r.Err != nil:
		logger.Error("❌ %s [%s]: check failed: %v", symbol, label, r.Err)
	case r.WindowTo <= r.WindowFrom:
		logger.Debug("%s [%s]: window is empty, skipped", symbol, label)
	case !r.HasData:
		logger.Warn("⚠️  %s [%s]: no data in %s .. %s", symbol, label,
			timegrid.FromMs(r.WindowFrom).Format(timestampFormat),
			timegrid.FromMs(r.WindowTo).Format(timestampFormat))
	case len(r.Missing) == 0:
		logger.Info("✅ %s [%s]: %d/%d candles, 100%%", symbol, label, r.Present, r.Expected)
	default:
		logger.Warn("⚠️  %s [%s]: %d/%d candles, %.2f%%, %d gap(s)",
			symbol, label, r.Present, r.Expected, r.Integrity, len(r.Missing))
		for i, ts := range r.Missing {
			if i >= sampleLimit {
				logger.Warn("      ... and %d more", len(r.Missing)-sampleLimit)
				break
			}
			logger.Warn("      missing %s", timegrid.FromMs(ts).Format(timestampFormat))
		}
	}
}

// PrintStats выводит счетчики и диапазоны хранилища по символам
func PrintStats(stats map[string]kline.SymbolStats) {
	logger.Section("STORAGE STATS")

	symbols := make([]string, 0, len(stats))
	for sym := range stats {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var totalFine, totalCoarse int64
	for _, sym := range symbols {
		s := stats[sym]
		totalFine += s.Fine.Count
		totalCoarse += s.Coarse.Count
		logger.Info("%s: 1min %d rows [%s .. %s], 30min %d rows [%s .. %s]",
			sym,
			s.Fine.Count, statTime(s.Fine.Count, s.Fine.MinTime), statTime(s.Fine.Count, s.Fine.MaxTime),
			s.Coarse.Count, statTime(s.Coarse.Count, s.Coarse.MinTime), statTime(s.Coarse.Count, s.Coarse.MaxTime))
	}
	logger.Info("Total: %d symbols, %d fine rows, %d coarse rows", len(symbols), totalFine, totalCoarse)
}

func statTime(count, ms int64) string {
	if count == 0 {
		return "-"
	}
	return timegrid.FromMs(ms).Format(timestampFormat)
}

func truncate(items []string, limit int) []string {
	if len(items) <= limit {
		return items
	}
	return items[:limit]
}
