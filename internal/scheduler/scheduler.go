// Package scheduler wires up the cron jobs that drive the monitoring
// loop: the periodic cycle and a daily stats digest.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"retrievr/monitor-service/internal/events"
	"retrievr/monitor-service/internal/model"
	"retrievr/monitor-service/internal/orchestrator"
)

// dailySummarySpec fires the stats digest at 09:00 server time.
const dailySummarySpec = "0 9 * * *"

// CycleRunner is the orchestrator surface the scheduler drives.
type CycleRunner interface {
	RunCycle(ctx context.Context) (model.CycleSummary, error)
	Running() bool
}

// StatsSource feeds the daily digest.
type StatsSource interface {
	DashboardStats(ctx context.Context) (model.DashboardStats, error)
}

// Scheduler wraps robfig/cron and manages the cycle cadence.
type Scheduler struct {
	cron   *cron.Cron
	runner CycleRunner
	stats  StatsSource
	events *events.Publisher
	paused atomic.Bool

	mu      sync.Mutex
	spec    string // cron spec, e.g. "@every 15m"
	entryID cron.EntryID
	runCtx  context.Context
}

// New creates a Scheduler that fires every intervalMinutes minutes.
func New(runner CycleRunner, stats StatsSource, pub *events.Publisher, intervalMinutes int) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cron.DefaultLogger)),
		runner: runner,
		stats:  stats,
		events: pub,
		spec:   fmt.Sprintf("@every %dm", intervalMinutes),
	}
}

// Start registers the jobs and starts the scheduler. Also runs one cycle
// immediately so new profiles are searched without waiting for the first
// tick.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	id, err := s.cron.AddFunc(s.spec, func() {
		s.tick(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.mu.Lock()
	s.entryID = id
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(dailySummarySpec, func() {
		s.dailySummary(ctx)
	}); err != nil {
		return fmt.Errorf("cron.AddFunc daily summary: %w", err)
	}

	s.cron.Start()
	log.Printf("[scheduler] Cron started — spec: %s", s.spec)

	// Run immediately on startup (non-blocking)
	go s.runCycle(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[scheduler] Cron stopped")
}

// Pause makes scheduled ticks no-ops until Resume. Manual runs still go
// through.
func (s *Scheduler) Pause() {
	s.paused.Store(true)
	log.Println("[scheduler] Paused")
}

func (s *Scheduler) Resume() {
	s.paused.Store(false)
	log.Println("[scheduler] Resumed")
}

func (s *Scheduler) Paused() bool {
	return s.paused.Load()
}

// RunNow starts one cycle in the background, bypassing the pause flag.
// It reports ErrCycleInProgress without starting anything when a cycle
// is already in flight.
func (s *Scheduler) RunNow() error {
	if s.runner.Running() {
		return orchestrator.ErrCycleInProgress
	}

	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	go s.runCycle(ctx)
	return nil
}

// Reschedule swaps the cycle cadence at runtime. The daily digest keeps
// its own schedule.
func (s *Scheduler) Reschedule(intervalMinutes int) error {
	if intervalMinutes < 1 {
		return fmt.Errorf("interval must be at least 1 minute, got %d", intervalMinutes)
	}
	spec := fmt.Sprintf("@every %dm", intervalMinutes)

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() {
		s.tick(s.runCtx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Remove(s.entryID)
	s.entryID = id
	s.spec = spec

	log.Printf("[scheduler] Rescheduled — spec: %s", spec)
	return nil
}

// Interval returns the active cycle spec for the status endpoint.
func (s *Scheduler) Interval() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.paused.Load() {
		log.Println("[scheduler] Paused — skipping cycle")
		return
	}
	s.runCycle(ctx)
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if _, err := s.runner.RunCycle(ctx); err != nil {
		if errors.Is(err, orchestrator.ErrCycleInProgress) {
			log.Println("[scheduler] Previous cycle still running — skipping")
			return
		}
		log.Printf("[scheduler] Cycle error: %v", err)
	}
}

func (s *Scheduler) dailySummary(ctx context.Context) {
	stats, err := s.stats.DashboardStats(ctx)
	if err != nil {
		log.Printf("[scheduler] Daily summary failed: %v", err)
		return
	}

	log.Printf("[scheduler] Daily summary: %d active profiles, %d listings (%d matches), %d scraped in 24h",
		stats.ActiveProfiles, stats.TotalListings, stats.MatchesFound, stats.RecentListings)
	s.events.Publish(ctx, events.ChannelDailySummary, stats)
}
