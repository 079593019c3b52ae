package application

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	ledger "receivables-cloud/internal/ledger/domain"
	reconcile "receivables-cloud/internal/reconcile/domain"
	snapshotapp "receivables-cloud/internal/snapshot/application"
)

// AccountLister enumerates the account population.
type AccountLister interface {
	ListAccounts(ctx context.Context) ([]ledger.AccountRef, error)
}

// RunRecorder persists bulk run reports. Persistence is best effort; a
// recorder failure never fails the run itself.
type RunRecorder interface {
	SaveRun(ctx context.Context, report reconcile.Report) error
}

// Bulk drives the drift corrector across the full account population with
// a bounded worker pool.
type Bulk struct {
	corrector     *Corrector
	lister        AccountLister
	runs          RunRecorder
	bus           EventPublisher
	logger        *log.Logger
	clock         snapshotapp.Clock
	workers       int
	progressEvery int
}

// NewBulk constructs the bulk reconciliation driver. runs and bus are
// optional; workers and progressEvery fall back to config defaults when
// non-positive.
func NewBulk(corrector *Corrector, lister AccountLister, runs RunRecorder, bus EventPublisher, logger *log.Logger, clock snapshotapp.Clock, workers, progressEvery int) (*Bulk, error) {
	if corrector == nil {
		return nil, errors.New("bulk reconciler: nil corrector")
	}
	if lister == nil {
		return nil, errors.New("bulk reconciler: nil account lister")
	}
	if clock == nil {
		clock = snapshotapp.SystemClock{}
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	if progressEvery <= 0 {
		progressEvery = defaultProgressEvery
	}
	return &Bulk{
		corrector:     corrector,
		lister:        lister,
		runs:          runs,
		bus:           bus,
		logger:        logger,
		clock:         clock,
		workers:       workers,
		progressEvery: progressEvery,
	}, nil
}

// ReconcileAll reconciles every account once, with bounded concurrency.
// One account's failure never aborts the others. Cancellation stops the
// feed of new work, lets in-flight corrections finish, and still returns
// the partial report. Re-running against an unchanged ledger yields all
// unchanged outcomes.
func (b *Bulk) ReconcileAll(ctx context.Context) (reconcile.Report, error) {
	refs, err := b.lister.ListAccounts(ctx)
	if err != nil {
		return reconcile.Report{}, err
	}

	seen := make(map[string]struct{}, len(refs))
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref.ID]; dup {
			continue
		}
		seen[ref.ID] = struct{}{}
		ids = append(ids, ref.ID)
	}

	startedAt := b.clock.Now().UTC()
	report := reconcile.Report{
		RunID:     uuid.NewString(),
		StartedAt: startedAt,
	}

	jobs := make(chan string)
	records := make(chan reconcile.CorrectionRecord)

	go func() {
		defer close(jobs)
		for _, id := range ids {
			select {
			case <-ctx.Done():
				return
			case jobs <- id:
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				record, _ := b.corrector.Reconcile(ctx, id)
				records <- record
			}
		}()
	}
	go func() {
		wg.Wait()
		close(records)
	}()

	processed := 0
	for record := range records {
		report.Tally(record)
		processed++
		if b.logger != nil && b.progressEvery > 0 && processed%b.progressEvery == 0 {
			b.logf("reconcile progress: run=%s processed=%d total=%d corrected=%d failed=%d",
				report.RunID, processed, len(ids), report.Corrected, report.Failed)
		}
	}

	report.Canceled = ctx.Err() != nil
	report.FinishedAt = b.clock.Now().UTC()
	report.ElapsedMs = report.FinishedAt.Sub(startedAt).Milliseconds()

	b.finishRun(ctx, report)
	return report, nil
}

func (b *Bulk) finishRun(ctx context.Context, report reconcile.Report) {
	// Use a detached context so a canceled run still persists its report.
	saveCtx := context.WithoutCancel(ctx)
	if b.runs != nil {
		if err := b.runs.SaveRun(saveCtx, report); err != nil {
			b.logf("reconcile run save error: run=%s err=%v", report.RunID, err)
		}
	}
	if b.bus != nil {
		_ = b.bus.Publish(saveCtx, ReconciliationCompleted{
			RunID:      report.RunID,
			Succeeded:  report.Succeeded,
			Failed:     report.Failed,
			Corrected:  report.Corrected,
			Canceled:   report.Canceled,
			OccurredAt: report.FinishedAt,
		})
	}
	b.logf("reconcile run finished: run=%s total=%d succeeded=%d failed=%d corrected=%d elapsed_ms=%d canceled=%v",
		report.RunID, report.Total, report.Succeeded, report.Failed, report.Corrected, report.ElapsedMs, report.Canceled)
}

func (b *Bulk) logf(format string, args ...any) {
	if b.logger != nil {
		b.logger.Printf(format, args...)
	}
}
