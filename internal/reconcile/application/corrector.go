package application

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	ledger "receivables-cloud/internal/ledger/domain"
	reconcile "receivables-cloud/internal/reconcile/domain"
	snapshotapp "receivables-cloud/internal/snapshot/application"
)

// DebtWriter is the conditional-write surface the corrector needs. The
// write must succeed only when the stored field still equals
// expectedPrevious, which serializes concurrent corrections of one account
// without a global lock.
type DebtWriter interface {
	WriteStoredDebt(ctx context.Context, accountID string, value, expectedPrevious decimal.Decimal) error
}

const defaultWriteRetries = 3

// Corrector compares stored debt against computed truth and repairs drift.
type Corrector struct {
	snapshots *snapshotapp.SnapshotService
	writer    DebtWriter
	bus       EventPublisher
	clock     snapshotapp.Clock
	retries   int
}

// NewCorrector constructs a drift corrector. The bus is optional.
func NewCorrector(snapshots *snapshotapp.SnapshotService, writer DebtWriter, bus EventPublisher, clock snapshotapp.Clock) (*Corrector, error) {
	if snapshots == nil {
		return nil, errors.New("corrector: nil snapshot service")
	}
	if writer == nil {
		return nil, errors.New("corrector: nil debt writer")
	}
	if clock == nil {
		clock = snapshotapp.SystemClock{}
	}
	return &Corrector{
		snapshots: snapshots,
		writer:    writer,
		bus:       bus,
		clock:     clock,
		retries:   defaultWriteRetries,
	}, nil
}

// Reconcile computes the canonical debt for one account, compares it with
// the stored field using exact decimal equality, and conditionally writes
// the correction. A lost write race triggers a full recompute and retry; a
// bounded number of losses surfaces ErrWriteConflict. An account that
// vanishes between read and write yields a failed record without an error.
// The returned record is populated in every case, including failures.
func (c *Corrector) Reconcile(ctx context.Context, accountID string) (reconcile.CorrectionRecord, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		snap, bundle, err := c.snapshots.ComputeWithStored(ctx, accountID)
		if err != nil {
			return c.failedRecord(accountID, err), err
		}

		record := reconcile.CorrectionRecord{
			AccountID: accountID,
			Previous:  bundle.StoredDebt,
			Computed:  snap.Debt,
			Delta:     snap.Debt.Sub(bundle.StoredDebt),
			At:        c.clock.Now().UTC(),
		}

		if snap.Debt.Equal(bundle.StoredDebt) {
			record.Status = reconcile.StatusUnchanged
			record.Delta = decimal.Zero
			return record, nil
		}

		err = c.writer.WriteStoredDebt(ctx, accountID, snap.Debt, bundle.StoredDebt)
		switch {
		case err == nil:
			record.Status = reconcile.StatusCorrected
			c.publishCorrection(ctx, record)
			return record, nil
		case errors.Is(err, ledger.ErrAccountNotFound):
			// Account deleted between read and write. Report, don't raise.
			record.Status = reconcile.StatusFailed
			record.Reason = reconcile.ReasonNotFound
			return record, nil
		case errors.Is(err, ledger.ErrWriteConflict):
			lastErr = err
			continue
		default:
			record.Status = reconcile.StatusFailed
			record.Reason = reconcile.ReasonUnavailable
			return record, err
		}
	}

	record := c.failedRecord(accountID, lastErr)
	return record, lastErr
}

func (c *Corrector) failedRecord(accountID string, err error) reconcile.CorrectionRecord {
	record := reconcile.CorrectionRecord{
		AccountID: accountID,
		Previous:  decimal.Zero,
		Computed:  decimal.Zero,
		Delta:     decimal.Zero,
		Status:    reconcile.StatusFailed,
		Reason:    failureReason(err),
		At:        c.clock.Now().UTC(),
	}
	return record
}

func (c *Corrector) publishCorrection(ctx context.Context, record reconcile.CorrectionRecord) {
	if c.bus == nil {
		return
	}
	_ = c.bus.Publish(ctx, CorrectionApplied{
		AccountID:  record.AccountID,
		Previous:   record.Previous,
		Computed:   record.Computed,
		Delta:      record.Delta,
		OccurredAt: record.At,
	})
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		return reconcile.ReasonNotFound
	case errors.Is(err, ledger.ErrWriteConflict):
		return reconcile.ReasonConflict
	default:
		return reconcile.ReasonUnavailable
	}
}
