package application

import (
	"context"
	"log"
	"time"
)

// Scheduler triggers a nightly bulk reconciliation run.
type Scheduler struct {
	bulk       *Bulk
	dailyAt    string
	runTimeout time.Duration
	logger     *log.Logger
}

// NewScheduler constructs a Scheduler. An empty dailyAt disables it.
func NewScheduler(bulk *Bulk, dailyAt string, runTimeout time.Duration, logger *log.Logger) *Scheduler {
	return &Scheduler{bulk: bulk, dailyAt: dailyAt, runTimeout: runTimeout, logger: logger}
}

// Start begins the scheduler loop. It returns when ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.bulk == nil || s.dailyAt == "" {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now.UTC()) {
				continue
			}
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	at, err := time.Parse("15:04", s.dailyAt)
	if err != nil {
		return false
	}
	return now.Hour() == at.Hour() && now.Minute() == at.Minute()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}
	report, err := s.bulk.ReconcileAll(runCtx)
	if err != nil && s.logger != nil {
		s.logger.Printf("scheduled reconcile error: %v", err)
		return
	}
	if s.logger != nil {
		s.logger.Printf("scheduled reconcile done: run=%s succeeded=%d failed=%d", report.RunID, report.Succeeded, report.Failed)
	}
}
