package application

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// GlobalSummary is the system-wide receivables aggregate.
type GlobalSummary struct {
	TotalDebt                decimal.Decimal `json:"total_debt"`
	TotalAccounts            int             `json:"total_accounts"`
	TotalOutstandingInvoices int             `json:"total_outstanding_invoices"`
	TotalAllocatedPayments   int             `json:"total_allocated_payments"`
	Skipped                  int             `json:"skipped"`
	ComputedAt               time.Time       `json:"computed_at"`
}

// Aggregator folds per-account snapshots into a global summary.
type Aggregator struct {
	snapshots *SnapshotService
	reader    LedgerReader
	clock     Clock
}

// NewAggregator constructs the aggregator.
func NewAggregator(snapshots *SnapshotService, reader LedgerReader, clock Clock) (*Aggregator, error) {
	if snapshots == nil {
		return nil, errors.New("aggregator: nil snapshot service")
	}
	if reader == nil {
		return nil, errors.New("aggregator: nil ledger reader")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Aggregator{snapshots: snapshots, reader: reader, clock: clock}, nil
}

// ComputeGlobalSummary folds the snapshot calculator over every account
// exactly once. Duplicate listing entries are deduped by id. An account
// whose snapshot fails is skipped and tallied, never aborting the fold.
// Decimal addition is commutative, so the totals do not depend on the
// account enumeration order.
func (a *Aggregator) ComputeGlobalSummary(ctx context.Context) (GlobalSummary, error) {
	refs, err := a.reader.ListAccounts(ctx)
	if err != nil {
		return GlobalSummary{}, err
	}

	summary := GlobalSummary{
		TotalDebt:  decimal.Zero,
		ComputedAt: a.clock.Now().UTC(),
	}

	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref.ID]; dup {
			continue
		}
		seen[ref.ID] = struct{}{}

		snap, err := a.snapshots.ComputeSnapshot(ctx, ref.ID)
		if err != nil {
			summary.Skipped++
			continue
		}
		summary.TotalDebt = summary.TotalDebt.Add(snap.Debt)
		summary.TotalAccounts++
		summary.TotalOutstandingInvoices += snap.OutstandingInvoices
		summary.TotalAllocatedPayments += snap.AllocatedPayments
	}
	return summary, nil
}
