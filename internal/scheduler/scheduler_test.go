package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"retrievr/monitor-service/internal/model"
	"retrievr/monitor-service/internal/orchestrator"
)

// --- mock cycle runner ---

type mockRunner struct {
	calls   atomic.Int32
	running atomic.Bool
	err     error
	started chan struct{}
}

func (m *mockRunner) RunCycle(ctx context.Context) (model.CycleSummary, error) {
	m.calls.Add(1)
	if m.started != nil {
		select {
		case m.started <- struct{}{}:
		default:
		}
	}
	return model.CycleSummary{}, m.err
}

func (m *mockRunner) Running() bool { return m.running.Load() }

// --- mock stats source ---

type mockStats struct {
	calls atomic.Int32
	stats model.DashboardStats
	err   error
}

func (m *mockStats) DashboardStats(ctx context.Context) (model.DashboardStats, error) {
	m.calls.Add(1)
	if m.err != nil {
		return model.DashboardStats{}, m.err
	}
	return m.stats, nil
}

func TestRunNow_FailsFastWhileCycleInFlight(t *testing.T) {
	runner := &mockRunner{}
	runner.running.Store(true)
	s := New(runner, &mockStats{}, nil, 15)

	if err := s.RunNow(); !errors.Is(err, orchestrator.ErrCycleInProgress) {
		t.Fatalf("RunNow() = %v, want ErrCycleInProgress", err)
	}

	time.Sleep(20 * time.Millisecond)
	if got := runner.calls.Load(); got != 0 {
		t.Errorf("RunCycle calls = %d, want 0", got)
	}
}

func TestRunNow_StartsCycleEvenWhilePaused(t *testing.T) {
	runner := &mockRunner{started: make(chan struct{}, 1)}
	s := New(runner, &mockStats{}, nil, 15)
	s.Pause()

	if err := s.RunNow(); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}

	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle never started")
	}
	if got := runner.calls.Load(); got != 1 {
		t.Errorf("RunCycle calls = %d, want 1", got)
	}
}

func TestTick_SkipsWhenPaused(t *testing.T) {
	runner := &mockRunner{}
	s := New(runner, &mockStats{}, nil, 15)

	s.Pause()
	s.tick(context.Background())
	if got := runner.calls.Load(); got != 0 {
		t.Fatalf("RunCycle calls while paused = %d, want 0", got)
	}

	s.Resume()
	s.tick(context.Background())
	if got := runner.calls.Load(); got != 1 {
		t.Errorf("RunCycle calls after resume = %d, want 1", got)
	}
}

func TestPausedReportsFlag(t *testing.T) {
	s := New(&mockRunner{}, &mockStats{}, nil, 15)
	if s.Paused() {
		t.Fatal("new scheduler starts paused")
	}
	s.Pause()
	if !s.Paused() {
		t.Fatal("Paused() = false after Pause")
	}
	s.Resume()
	if s.Paused() {
		t.Fatal("Paused() = true after Resume")
	}
}

func TestReschedule_SwapsSpec(t *testing.T) {
	s := New(&mockRunner{}, &mockStats{}, nil, 15)
	if got := s.Interval(); got != "@every 15m" {
		t.Fatalf("Interval() = %q, want @every 15m", got)
	}

	if err := s.Reschedule(30); err != nil {
		t.Fatalf("Reschedule(30) error = %v", err)
	}
	if got := s.Interval(); got != "@every 30m" {
		t.Errorf("Interval() = %q, want @every 30m", got)
	}
}

func TestReschedule_RejectsSubMinuteInterval(t *testing.T) {
	s := New(&mockRunner{}, &mockStats{}, nil, 15)
	if err := s.Reschedule(0); err == nil {
		t.Fatal("Reschedule(0) = nil, want error")
	}
	if got := s.Interval(); got != "@every 15m" {
		t.Errorf("Interval() = %q after rejected reschedule, want unchanged", got)
	}
}

func TestDailySummary_PullsStats(t *testing.T) {
	stats := &mockStats{stats: model.DashboardStats{ActiveProfiles: 2, TotalListings: 40}}
	s := New(&mockRunner{}, stats, nil, 15)

	s.dailySummary(context.Background())
	if got := stats.calls.Load(); got != 1 {
		t.Errorf("DashboardStats calls = %d, want 1", got)
	}
}

func TestRunCycle_OverlapIsNotAnError(t *testing.T) {
	runner := &mockRunner{err: orchestrator.ErrCycleInProgress}
	s := New(runner, &mockStats{}, nil, 15)

	// Overlap is normal cadence noise; it is logged and swallowed.
	s.runCycle(context.Background())
	if got := runner.calls.Load(); got != 1 {
		t.Errorf("RunCycle calls = %d, want 1", got)
	}
}
