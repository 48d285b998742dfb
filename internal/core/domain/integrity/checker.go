// internal/core/domain/integrity/checker.go
package integrity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"crypto-kline-keeper/internal/core/domain/kline"
	"crypto-kline-keeper/internal/infrastructure/config"
	"crypto-kline-keeper/pkg/timegrid"
)

// GridReport — результат проверки одного символа в одной сетке.
// Проверяются только внутренние пропуски: ожидаемая сетка строится от
// первой до последней наблюденной свечи, края ряда пропуском не
// считаются (символ мог начать торговаться позже начала окна).
type GridReport struct {
	Granularity kline.Granularity
	WindowFrom  int64 // полуинтервал [WindowFrom, WindowTo)
	WindowTo    int64
	HasData     bool
	FirstMs     int64
	LastMs      int64
	Expected    int
	Present     int
	Missing     []int64
	Integrity   float64 // процент полноты, 0..100
	Err         error
}

// Complete сообщает, что сетка проверена и пропусков нет
func (r *GridReport) Complete() bool {
	return r.Err == nil && r.HasData && len(r.Missing) == 0
}

// SymbolReport — проверка символа в обеих сетках
type SymbolReport struct {
	Symbol string
	Fine   GridReport
	Coarse GridReport
}

// MinIntegrity возвращает худший процент полноты по сеткам с данными
func (r *SymbolReport) MinIntegrity() (float64, bool) {
	min, has := 0.0, false
	for _, g := range []*GridReport{&r.Fine, &r.Coarse} {
		if g.Err != nil || !g.HasData {
			continue
		}
		if !has || g.Integrity < min {
			min = g.Integrity
			has = true
		}
	}
	return min, has
}

// RunReport — итог одного прогона проверки целостности
type RunReport struct {
	RunID     string
	StartedAt time.Time
	Symbols   []SymbolReport
	Warnings  []*kline.ConsistencyWarning
}

// BelowThreshold возвращает символы с полнотой ниже порога,
// отсортированные от худшего к лучшему
func (r *RunReport) BelowThreshold(threshold float64) []SymbolReport {
	var out []SymbolReport
	for _, sr := range r.Symbols {
		if min, ok := sr.MinIntegrity(); ok && min < threshold {
			out = append(out, sr)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := out[i].MinIntegrity()
		b, _ := out[j].MinIntegrity()
		return a < b
	})
	return out
}

// WorstOffenders возвращает до n символов с худшей полнотой
func (r *RunReport) WorstOffenders(n int) []SymbolReport {
	ranked := r.BelowThreshold(100.0)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Checker проверяет целостность свечных рядов: мелкую сетку текущего
// дня и архивную сетку прошедших дней.
type Checker struct {
	store kline.Store
	cfg   *config.KeeperConfig
	now   func() time.Time
}

// NewChecker создает проверку целостности
func NewChecker(store kline.Store, cfg *config.KeeperConfig) *Checker {
	return &Checker{store: store, cfg: cfg, now: time.Now}
}

// WithClock подменяет часы (для тестов)
func (c *Checker) WithClock(now func() time.Time) *Checker {
	c.now = now
	return c
}

// FineWindow — окно проверки мелкой сетки: от начала текущего дня до
// текущего момента минус исключение. Последние минуты не проверяются,
// инжест мог их еще не дотянуть.
func (c *Checker) FineWindow() (fromMs, toMs int64) {
	now := c.now()
	fromMs = timegrid.DayStartMs(now)
	toMs = timegrid.Align(timegrid.ToMs(now)-c.cfg.CheckExclusion.Milliseconds(), timegrid.FineBucketMs)
	return fromMs, toMs
}

// CoarseWindow — окно проверки архивной сетки: AnalysisDays полных
// дней до начала текущего дня
func (c *Checker) CoarseWindow() (fromMs, toMs int64) {
	today := timegrid.DayStart(c.now())
	return timegrid.ToMs(today.AddDate(0, 0, -c.cfg.AnalysisDays)), timegrid.ToMs(today)
}

// ContinuousSeries возвращает сплошной ряд символа за окно анализа
// плюс текущий день: архивная сетка до локальной полуночи, мелкая
// после. Потребители, которым нужен непрерывный ряд, читают только
// этим путем.
func (c *Checker) ContinuousSeries(ctx context.Context, symbol string) ([]kline.Record, error) {
	fromMs, _ := c.CoarseWindow()
	return c.store.QueryMergedRange(ctx, symbol, fromMs, timegrid.ToMs(c.now()))
}

// CheckGrid проверяет один символ в одной сетке в заданном окне
func (c *Checker) CheckGrid(ctx context.Context, symbol string, g kline.Granularity, fromMs, toMs int64) GridReport {
	report := GridReport{Granularity: g, WindowFrom: fromMs, WindowTo: toMs}
	if toMs <= fromMs {
		// Окно пусто (например раннее утро при большом исключении)
		return report
	}

	rows, err := c.store.QueryRange(ctx, g, symbol, fromMs, toMs)
	if err != nil {
		report.Err = err
		return report
	}
	if len(rows) == 0 {
		return report
	}

	observed := make([]int64, len(rows))
	for i, rec := range rows {
		observed[i] = rec.OpenTime
	}

	report.HasData = true
	report.FirstMs = observed[0]
	report.LastMs = observed[len(observed)-1]
	report.Present = len(observed)
	report.Expected = len(timegrid.Grid(report.FirstMs, report.LastMs, g.BucketMs()))
	report.Missing = MissingInterior(observed, g.BucketMs())
	report.Integrity = 100 * float64(report.Present) / float64(report.Expected)
	return report
}

// CheckSymbol проверяет обе сетки одного символа
func (c *Checker) CheckSymbol(ctx context.Context, symbol string) SymbolReport {
	fineFrom, fineTo := c.FineWindow()
	coarseFrom, coarseTo := c.CoarseWindow()

	return SymbolReport{
		Symbol: symbol,
		Fine:   c.CheckGrid(ctx, symbol, kline.Fine, fineFrom, fineTo),
		Coarse: c.CheckGrid(ctx, symbol, kline.Coarse, coarseFrom, coarseTo),
	}
}

// CheckSymbols прогоняет проверку по заданным символам. Сбой запроса
// по одному символу оседает предупреждением, остальные проверяются.
func (c *Checker) CheckSymbols(ctx context.Context, symbols []string) *RunReport {
	report := &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: c.now(),
	}

	for _, symbol := range symbols {
		sr := c.CheckSymbol(ctx, symbol)
		for _, grid := range []*GridReport{&sr.Fine, &sr.Coarse} {
			if grid.Err != nil {
				report.Warnings = append(report.Warnings, &kline.ConsistencyWarning{
					Symbol: symbol,
					Detail: fmt.Sprintf("%s grid check failed: %v", grid.Granularity, grid.Err),
				})
			}
		}
		report.Symbols = append(report.Symbols, sr)
	}

	return report
}

// CheckAll проверяет все символы хранилища
func (c *Checker) CheckAll(ctx context.Context) (*RunReport, error) {
	symbols, err := c.store.Symbols(ctx)
	if err != nil {
		return nil, err
	}
	return c.CheckSymbols(ctx, symbols), nil
}

// MissingInterior возвращает точки сетки, отсутствующие между
// соседними наблюденными свечами. Вход отсортирован по возрастанию.
// Для пустого ряда или единственной свечи пропусков нет.
func MissingInterior(observed []int64, bucketMs int64) []int64 {
	if len(observed) < 2 || bucketMs <= 0 {
		return nil
	}

	var missing []int64
	prev := observed[0]
	for _, ts := range observed[1:] {
		for want := prev + bucketMs; want < ts; want += bucketMs {
			missing = append(missing, want)
		}
		prev = ts
	}
	return missing
}
