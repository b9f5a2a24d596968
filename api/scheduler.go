/*
scheduler.go - Daily run scheduler

PURPOSE:
  Fires the reconciliation once per day at the configured hour. A
  background goroutine checks periodically; a day that already has a
  completed run (per the run store) is skipped, so restarts during the day
  do not trigger a second run.

USAGE:
  scheduler := NewDailyScheduler(driver, store, logger)
  scheduler.Start()
  // ...
  scheduler.Stop()

SEE ALSO:
  - handlers.go: manual trigger endpoint
  - reconcile/driver.go: the run itself
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/lesson-reconciler/reconcile"
	"github.com/warp/lesson-reconciler/store/sqlite"
)

// DailyScheduler triggers one reconciliation run per day.
type DailyScheduler struct {
	Driver        *reconcile.Driver
	Store         *sqlite.Store
	RunHour       int // local hour after which today's run may fire
	CheckInterval time.Duration
	Log           *zap.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	running bool // guards against overlapping runs
}

// NewDailyScheduler creates a scheduler with a 10-minute check interval.
func NewDailyScheduler(driver *reconcile.Driver, store *sqlite.Store, log *zap.Logger) *DailyScheduler {
	return &DailyScheduler{
		Driver:        driver,
		Store:         store,
		RunHour:       6,
		CheckInterval: 10 * time.Minute,
		Log:           log,
		stop:          make(chan struct{}),
	}
}

// Start begins the background check loop.
func (s *DailyScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.loop()

	s.Log.Info("scheduler started",
		zap.Int("run_hour", s.RunHour),
		zap.Duration("check_interval", s.CheckInterval))
}

// Stop halts the check loop and waits for it to finish. An in-flight run
// is allowed to complete.
func (s *DailyScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.Log.Info("scheduler stopped")
	}
}

func (s *DailyScheduler) loop() {
	defer s.wg.Done()

	s.checkAndRun()
	for {
		select {
		case <-s.ticker.C:
			s.checkAndRun()
		case <-s.stop:
			return
		}
	}
}

func (s *DailyScheduler) checkAndRun() {
	ctx := context.Background()
	now := time.Now()

	if now.Hour() < s.RunHour {
		return
	}

	done, err := s.Store.HasCompletedRunOn(ctx, now.UTC())
	if err != nil {
		s.Log.Error("run history check failed", zap.Error(err))
		return
	}
	if done {
		return
	}

	if err := s.Execute(ctx); err != nil {
		s.Log.Error("scheduled run failed", zap.Error(err))
	}
}

// RunNow triggers an immediate run regardless of today's run history.
// Used by the manual trigger endpoint.
func (s *DailyScheduler) RunNow(ctx context.Context) error {
	return s.Execute(ctx)
}

// Execute performs one reconciliation run and persists its audit record.
// Concurrent calls beyond the first are rejected silently; one run at a
// time matches the sequential remote-mutation model.
func (s *DailyScheduler) Execute(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.Log.Warn("run already in progress, ignoring trigger")
		return nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	result, runErr := s.Driver.Run(ctx)

	record := sqlite.RunRecord{
		ID:               result.ID,
		Status:           sqlite.RunCompleted,
		StartedAt:        result.StartedAt,
		StaffProcessed:   result.StaffProcessed,
		ClientsProcessed: result.ClientsProcessed,
		ClientsFailed:    result.ClientsFailed,
		ClientsNotified:  result.ClientsNotified,
		LessonsPaid:      result.LessonsPaid,
		ReportsSent:      result.ReportsSent,
	}
	if !result.CompletedAt.IsZero() {
		completed := result.CompletedAt
		record.CompletedAt = &completed
	}
	if runErr != nil {
		record.Status = sqlite.RunFailed
		record.Error = runErr.Error()
	}

	if err := s.Store.SaveRun(context.WithoutCancel(ctx), record); err != nil {
		s.Log.Error("failed to persist run record",
			zap.String("run_id", result.ID),
			zap.Error(err))
	}
	return runErr
}
