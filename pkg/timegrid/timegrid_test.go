package timegrid

import (
	"testing"
	"time"
)

func TestAlign(t *testing.T) {
	tests := []struct {
		name     string
		ms       int64
		bucketMs int64
		expected int64
	}{
		{"Already aligned 1m", 120_000, FineBucketMs, 120_000},
		{"Mid-minute", 125_500, FineBucketMs, 120_000},
		{"Already aligned 30m", 3_600_000, CoarseBucketMs, 3_600_000},
		{"Inside 30m bucket", 3_600_000 + 900_000, CoarseBucketMs, 3_600_000},
		{"Zero", 0, FineBucketMs, 0},
	}

	for _, tt := range tests {
		if got := Align(tt.ms, tt.bucketMs); got != tt.expected {
			t.Errorf("%s: Align(%d, %d) = %d, expected %d", tt.name, tt.ms, tt.bucketMs, got, tt.expected)
		}
	}
}

func TestIsAligned(t *testing.T) {
	if !IsAligned(1_800_000, CoarseBucketMs) {
		t.Error("Expected 1_800_000 to be aligned to coarse grid")
	}
	if IsAligned(1_860_000, CoarseBucketMs) {
		t.Error("Expected 1_860_000 (minute 31) not to be aligned to coarse grid")
	}
	if !IsAligned(1_860_000, FineBucketMs) {
		t.Error("Expected 1_860_000 to be aligned to fine grid")
	}
}

func TestCoarseGridMinuteOfHour(t *testing.T) {
	// Все точки 30-минутной сетки должны иметь минуту часа 0 или 30 (UTC)
	for ts := int64(0); ts < 24*3_600_000; ts += CoarseBucketMs {
		minute := time.UnixMilli(ts).UTC().Minute()
		if minute != 0 && minute != 30 {
			t.Fatalf("Coarse grid point %d has minute %d, expected 0 or 30", ts, minute)
		}
	}
}

func TestGrid(t *testing.T) {
	points := Grid(0, 5*FineBucketMs, FineBucketMs)
	if len(points) != 6 {
		t.Fatalf("Expected 6 grid points, got %d", len(points))
	}
	for i, p := range points {
		if p != int64(i)*FineBucketMs {
			t.Errorf("Grid point %d = %d, expected %d", i, p, int64(i)*FineBucketMs)
		}
	}

	// Единственная точка
	single := Grid(120_000, 120_000, FineBucketMs)
	if len(single) != 1 || single[0] != 120_000 {
		t.Errorf("Expected single grid point 120000, got %v", single)
	}

	// Пустая сетка при last < first
	if got := Grid(120_000, 60_000, FineBucketMs); got != nil {
		t.Errorf("Expected nil grid for inverted range, got %v", got)
	}
}

func TestCountBuckets(t *testing.T) {
	tests := []struct {
		name     string
		from     int64
		to       int64
		bucketMs int64
		expected int
	}{
		{"Whole hour of minutes", 0, 3_600_000, FineBucketMs, 60},
		{"Half-open excludes end", 0, 60_000, FineBucketMs, 1},
		{"Empty range", 60_000, 60_000, FineBucketMs, 0},
		{"Day of coarse buckets", 0, 86_400_000, CoarseBucketMs, CoarseBucketsPerDay},
		{"Unaligned start rounds up", 30_000, 120_000, FineBucketMs, 1},
	}

	for _, tt := range tests {
		if got := CountBuckets(tt.from, tt.to, tt.bucketMs); got != tt.expected {
			t.Errorf("%s: CountBuckets = %d, expected %d", tt.name, got, tt.expected)
		}
	}
}

func TestDayStart(t *testing.T) {
	now := time.Date(2024, 12, 30, 15, 42, 7, 0, time.Local)
	start := DayStart(now)

	if start.Hour() != 0 || start.Minute() != 0 || start.Second() != 0 {
		t.Errorf("DayStart is not midnight: %v", start)
	}
	if start.Day() != 30 {
		t.Errorf("DayStart changed the day: %v", start)
	}

	next := NextDay(now)
	if next.Day() != 31 || next.Hour() != 0 || next.Minute() != 0 {
		t.Errorf("NextDay is not the following midnight: %v", next)
	}
}
