// application/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestDailyAtNextRun(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	// Время сегодня еще не наступило
	next := DailyAt(12, 30).nextRun(now)
	want := time.Date(2026, 8, 24, 12, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("nextRun = %v, want %v", next, want)
	}

	// Время сегодня уже прошло — переносим на завтра
	next = DailyAt(9, 0).nextRun(now)
	want = time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("nextRun = %v, want %v", next, want)
	}
}

func TestEveryNextRun(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	next := Every(5 * time.Minute).nextRun(now)
	if !next.Equal(now.Add(5 * time.Minute)) {
		t.Errorf("nextRun = %v, want now+5m", next)
	}
}

func TestRunImmediatelyTrackedByStop(t *testing.T) {
	started := make(chan struct{})
	finished := make(chan struct{})

	s := New()
	s.Register(&Job{
		Name:           "immediate",
		Schedule:       Every(time.Hour),
		RunImmediately: true,
		Handler: func(ctx context.Context) error {
			close(started)
			time.Sleep(50 * time.Millisecond)
			close(finished)
			return nil
		},
	})
	s.Start()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("immediate job did not start on the first tick")
	}

	// Stop обязан дождаться идущего запуска
	s.Stop()
	select {
	case <-finished:
	default:
		t.Fatal("Stop returned while the immediate run was still in flight")
	}

	jobs := s.Jobs()
	if jobs[0].Runs != 1 {
		t.Errorf("runs = %d after immediate pass, want 1", jobs[0].Runs)
	}
	if jobs[0].LastErr != nil {
		t.Errorf("lastErr = %v", jobs[0].LastErr)
	}
}

func TestRegisterSchedulesFirstRun(t *testing.T) {
	s := New()
	s.Register(&Job{
		Name:     "noop",
		Schedule: Every(time.Hour),
		Handler:  func(ctx context.Context) error { return nil },
	})

	jobs := s.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("registered %d jobs, want 1", len(jobs))
	}
	if jobs[0].NextRun.IsZero() {
		t.Error("first run time is not scheduled")
	}
	if jobs[0].Runs != 0 {
		t.Errorf("runs = %d before start", jobs[0].Runs)
	}
}
