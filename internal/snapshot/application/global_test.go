package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	ledger "receivables-cloud/internal/ledger/domain"
	"receivables-cloud/internal/ledger/infrastructure/memory"
	snapshotapp "receivables-cloud/internal/snapshot/application"
)

func TestComputeGlobalSummary_MatchesPerAccountSnapshots(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedAccount(t, store, "acct-1", "150", []string{"100", "50"}, []string{"30"})
	seedAccount(t, store, "acct-2", "0", []string{"20.50"}, nil)
	seedAccount(t, store, "acct-3", "5", nil, nil)

	svc, agg := newAggregator(t, store)

	summary, err := agg.ComputeGlobalSummary(ctx)
	if err != nil {
		t.Fatalf("compute global summary: %v", err)
	}

	want := decimal.Zero
	for _, id := range []string{"acct-1", "acct-2", "acct-3"} {
		snap, err := svc.ComputeSnapshot(ctx, id)
		if err != nil {
			t.Fatalf("compute snapshot %s: %v", id, err)
		}
		want = want.Add(snap.Debt)
	}
	if !summary.TotalDebt.Equal(want) {
		t.Fatalf("total debt mismatch: got=%s want=%s", summary.TotalDebt, want)
	}
	if summary.TotalAccounts != 3 {
		t.Fatalf("total accounts: got=%d want=3", summary.TotalAccounts)
	}
	if summary.TotalOutstandingInvoices != 3 {
		t.Fatalf("total outstanding invoices: got=%d want=3", summary.TotalOutstandingInvoices)
	}
	if summary.TotalAllocatedPayments != 1 {
		t.Fatalf("total allocated payments: got=%d want=1", summary.TotalAllocatedPayments)
	}
	if summary.Skipped != 0 {
		t.Fatalf("skipped: got=%d want=0", summary.Skipped)
	}
}

func TestComputeGlobalSummary_DedupesDuplicateListings(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedAccount(t, store, "acct-1", "100", []string{"100"}, nil)

	duplicating := &duplicatingReader{inner: store}
	svc := newSnapshotService(t, duplicating)
	agg, err := snapshotapp.NewAggregator(svc, duplicating, nil)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	summary, err := agg.ComputeGlobalSummary(ctx)
	if err != nil {
		t.Fatalf("compute global summary: %v", err)
	}
	if !summary.TotalDebt.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("duplicate account double counted: got=%s want=100", summary.TotalDebt)
	}
	if summary.TotalAccounts != 1 {
		t.Fatalf("total accounts: got=%d want=1", summary.TotalAccounts)
	}
}

func TestComputeGlobalSummary_SkipsFailingAccounts(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedAccount(t, store, "acct-1", "10", []string{"10"}, nil)
	seedAccount(t, store, "acct-2", "20", []string{"20"}, nil)
	store.SetReadError("acct-2", ledger.ErrUnavailable)

	_, agg := newAggregator(t, store)

	summary, err := agg.ComputeGlobalSummary(ctx)
	if err != nil {
		t.Fatalf("compute global summary: %v", err)
	}
	if summary.Skipped != 1 {
		t.Fatalf("skipped: got=%d want=1", summary.Skipped)
	}
	if summary.TotalAccounts != 1 {
		t.Fatalf("total accounts: got=%d want=1", summary.TotalAccounts)
	}
	if !summary.TotalDebt.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("total debt: got=%s want=10", summary.TotalDebt)
	}
}

func TestComputeSnapshot_NotFound(t *testing.T) {
	store := memory.NewStore()
	svc := newSnapshotService(t, store)

	_, err := svc.ComputeSnapshot(context.Background(), "missing")
	if !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

type duplicatingReader struct {
	inner snapshotapp.LedgerReader
}

func (r *duplicatingReader) ListAccounts(ctx context.Context) ([]ledger.AccountRef, error) {
	refs, err := r.inner.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	return append(refs, refs...), nil
}

func (r *duplicatingReader) LoadAccountLedger(ctx context.Context, accountID string) (ledger.AccountLedger, error) {
	return r.inner.LoadAccountLedger(ctx, accountID)
}

func newSnapshotService(t *testing.T, reader snapshotapp.LedgerReader) *snapshotapp.SnapshotService {
	t.Helper()
	svc, err := snapshotapp.NewSnapshotService(reader, fixedClock{now: time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("new snapshot service: %v", err)
	}
	return svc
}

func newAggregator(t *testing.T, store *memory.Store) (*snapshotapp.SnapshotService, *snapshotapp.Aggregator) {
	t.Helper()
	svc := newSnapshotService(t, store)
	agg, err := snapshotapp.NewAggregator(svc, store, nil)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	return svc, agg
}

func seedAccount(t *testing.T, store *memory.Store, id, storedDebt string, invoiceAmounts, paymentAmounts []string) {
	t.Helper()
	stored, err := decimal.NewFromString(storedDebt)
	if err != nil {
		t.Fatalf("parse stored debt %q: %v", storedDebt, err)
	}
	store.PutAccount(ledger.Account{ID: id, Status: ledger.AccountActive, StoredDebt: stored})
	for i, raw := range invoiceAmounts {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			t.Fatalf("parse invoice amount %q: %v", raw, err)
		}
		store.PutInvoice(ledger.Invoice{
			ID:        id + "-inv-" + string(rune('a'+i)),
			AccountID: id,
			Amount:    amount,
			Status:    ledger.InvoiceUnpaid,
		})
	}
	for i, raw := range paymentAmounts {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			t.Fatalf("parse payment amount %q: %v", raw, err)
		}
		store.PutPayment(ledger.Payment{
			ID:        id + "-pay-" + string(rune('a'+i)),
			AccountID: id,
			Amount:    amount,
			Allocated: true,
		})
	}
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }
