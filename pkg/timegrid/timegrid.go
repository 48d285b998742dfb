// pkg/timegrid/timegrid.go
package timegrid

import "time"

// Align выравнивает метку времени вниз к началу бакета
func Align(ms, bucketMs int64) int64 {
	if bucketMs <= 0 {
		return ms
	}
	return ms - ms%bucketMs
}

// IsAligned проверяет, что метка времени лежит на сетке бакетов
func IsAligned(ms, bucketMs int64) bool {
	return bucketMs > 0 && ms%bucketMs == 0
}

// DayStart возвращает локальную полночь для заданного момента.
// Граница суток — локальное время процесса; если таймзона хоста
// отличается от расчетной границы биржи, бакеты сместятся вместе с ней.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DayStartMs возвращает локальную полночь в миллисекундах epoch
func DayStartMs(t time.Time) int64 {
	return DayStart(t).UnixMilli()
}

// NextDay возвращает полночь следующего дня
func NextDay(t time.Time) time.Time {
	return DayStart(t).AddDate(0, 0, 1)
}

// ToMs переводит время в миллисекунды epoch
func ToMs(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMs переводит миллисекунды epoch в локальное время
func FromMs(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// Grid перечисляет все точки сетки от first до last включительно.
// first должен лежать на сетке (open_time свечи всегда выровнен биржей).
func Grid(firstMs, lastMs, bucketMs int64) []int64 {
	if bucketMs <= 0 || lastMs < firstMs {
		return nil
	}
	points := make([]int64, 0, (lastMs-firstMs)/bucketMs+1)
	for ts := firstMs; ts <= lastMs; ts += bucketMs {
		points = append(points, ts)
	}
	return points
}

// CountBuckets считает число точек сетки в полуинтервале [fromMs, toMs)
func CountBuckets(fromMs, toMs, bucketMs int64) int {
	if bucketMs <= 0 || toMs <= fromMs {
		return 0
	}
	first := Align(fromMs, bucketMs)
	if first < fromMs {
		first += bucketMs
	}
	if first >= toMs {
		return 0
	}
	return int((toMs-1-first)/bucketMs) + 1
}
