package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	ledger "receivables-cloud/internal/ledger/domain"
	"receivables-cloud/internal/ledger/infrastructure/memory"
	reconcileapp "receivables-cloud/internal/reconcile/application"
	reconcile "receivables-cloud/internal/reconcile/domain"
	snapshotapp "receivables-cloud/internal/snapshot/application"
)

func TestReconcile_CorrectsDriftThenReportsUnchanged(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.PutAccount(ledger.Account{ID: "acct-1", Status: ledger.AccountActive, StoredDebt: dec(t, "150")})
	store.PutInvoice(ledger.Invoice{ID: "inv-1", AccountID: "acct-1", Amount: dec(t, "100"), Status: ledger.InvoiceUnpaid})
	store.PutInvoice(ledger.Invoice{ID: "inv-2", AccountID: "acct-1", Amount: dec(t, "50"), Status: ledger.InvoiceUnpaid})
	store.PutPayment(ledger.Payment{ID: "pay-1", AccountID: "acct-1", Amount: dec(t, "30"), Allocated: true})

	corrector := newCorrector(t, store, nil)

	first, err := corrector.Reconcile(ctx, "acct-1")
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	if first.Status != reconcile.StatusCorrected {
		t.Fatalf("first status: got=%s want=corrected", first.Status)
	}
	if !first.Computed.Equal(dec(t, "120")) {
		t.Fatalf("computed: got=%s want=120", first.Computed)
	}
	if !first.Delta.Equal(dec(t, "-30")) {
		t.Fatalf("delta: got=%s want=-30", first.Delta)
	}

	stored, err := store.ReadStoredDebt(ctx, "acct-1")
	if err != nil {
		t.Fatalf("read stored debt: %v", err)
	}
	if !stored.Equal(dec(t, "120")) {
		t.Fatalf("stored debt: got=%s want=120", stored)
	}

	second, err := corrector.Reconcile(ctx, "acct-1")
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if second.Status != reconcile.StatusUnchanged {
		t.Fatalf("second status: got=%s want=unchanged", second.Status)
	}
	if !second.Delta.IsZero() {
		t.Fatalf("second delta: got=%s want=0", second.Delta)
	}
}

func TestReconcile_MissingAccountSurfacesNotFound(t *testing.T) {
	store := memory.NewStore()
	corrector := newCorrector(t, store, nil)

	record, err := corrector.Reconcile(context.Background(), "missing")
	if !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if record.Status != reconcile.StatusFailed {
		t.Fatalf("record status: got=%s want=failed", record.Status)
	}
	if record.Reason != reconcile.ReasonNotFound {
		t.Fatalf("record reason: got=%s want=%s", record.Reason, reconcile.ReasonNotFound)
	}
}

func TestReconcile_AccountDeletedBetweenReadAndWrite(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.PutAccount(ledger.Account{ID: "acct-1", Status: ledger.AccountActive, StoredDebt: dec(t, "10")})
	store.PutInvoice(ledger.Invoice{ID: "inv-1", AccountID: "acct-1", Amount: dec(t, "25"), Status: ledger.InvoiceUnpaid})

	writer := &deletingWriter{store: store}
	snapshots := newSnapshotService(t, store)
	corrector, err := reconcileapp.NewCorrector(snapshots, writer, nil, nil)
	if err != nil {
		t.Fatalf("new corrector: %v", err)
	}

	record, err := corrector.Reconcile(ctx, "acct-1")
	if err != nil {
		t.Fatalf("reconcile should not raise on delete race: %v", err)
	}
	if record.Status != reconcile.StatusFailed {
		t.Fatalf("status: got=%s want=failed", record.Status)
	}
	if record.Reason != reconcile.ReasonNotFound {
		t.Fatalf("reason: got=%s want=%s", record.Reason, reconcile.ReasonNotFound)
	}
}

func TestReconcile_RetriesLostWriteRace(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.PutAccount(ledger.Account{ID: "acct-1", Status: ledger.AccountActive, StoredDebt: dec(t, "999")})
	store.PutInvoice(ledger.Invoice{ID: "inv-1", AccountID: "acct-1", Amount: dec(t, "40"), Status: ledger.InvoiceUnpaid})

	writer := &racingWriter{store: store, conflicts: 1}
	snapshots := newSnapshotService(t, store)
	corrector, err := reconcileapp.NewCorrector(snapshots, writer, nil, nil)
	if err != nil {
		t.Fatalf("new corrector: %v", err)
	}

	record, err := corrector.Reconcile(ctx, "acct-1")
	if err != nil {
		t.Fatalf("reconcile after retry: %v", err)
	}
	if record.Status != reconcile.StatusCorrected {
		t.Fatalf("status: got=%s want=corrected", record.Status)
	}
	stored, err := store.ReadStoredDebt(ctx, "acct-1")
	if err != nil {
		t.Fatalf("read stored debt: %v", err)
	}
	if !stored.Equal(dec(t, "40")) {
		t.Fatalf("stored debt after retry: got=%s want=40", stored)
	}
}

func TestReconcile_ConcurrentReconcilesConvergeOnTruth(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.PutAccount(ledger.Account{ID: "acct-1", Status: ledger.AccountActive, StoredDebt: dec(t, "777")})
	store.PutInvoice(ledger.Invoice{ID: "inv-1", AccountID: "acct-1", Amount: dec(t, "60"), Status: ledger.InvoiceUnpaid})

	corrector := newCorrector(t, store, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = corrector.Reconcile(ctx, "acct-1")
		}()
	}
	wg.Wait()

	stored, err := store.ReadStoredDebt(ctx, "acct-1")
	if err != nil {
		t.Fatalf("read stored debt: %v", err)
	}
	if !stored.Equal(dec(t, "60")) {
		t.Fatalf("stored debt: got=%s want=60", stored)
	}
}

func TestReconcile_PublishesCorrectionApplied(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.PutAccount(ledger.Account{ID: "acct-1", Status: ledger.AccountActive, StoredDebt: dec(t, "5")})
	store.PutInvoice(ledger.Invoice{ID: "inv-1", AccountID: "acct-1", Amount: dec(t, "15"), Status: ledger.InvoiceUnpaid})

	recorder := newEventRecorder()
	corrector := newCorrector(t, store, recorder)

	if _, err := corrector.Reconcile(ctx, "acct-1"); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	events := recorder.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	applied, ok := events[0].(reconcileapp.CorrectionApplied)
	if !ok {
		t.Fatalf("unexpected event type %T", events[0])
	}
	if !applied.Delta.Equal(dec(t, "10")) {
		t.Fatalf("event delta: got=%s want=10", applied.Delta)
	}
}

type deletingWriter struct {
	store *memory.Store
}

func (w *deletingWriter) WriteStoredDebt(ctx context.Context, accountID string, value, expectedPrevious decimal.Decimal) error {
	w.store.DeleteAccount(accountID)
	return w.store.WriteStoredDebt(ctx, accountID, value, expectedPrevious)
}

type racingWriter struct {
	store     *memory.Store
	mu        sync.Mutex
	conflicts int
}

func (w *racingWriter) WriteStoredDebt(ctx context.Context, accountID string, value, expectedPrevious decimal.Decimal) error {
	w.mu.Lock()
	race := w.conflicts > 0
	if race {
		w.conflicts--
	}
	w.mu.Unlock()
	if race {
		// Another writer slipped in a different stored value first.
		if err := w.store.WriteStoredDebt(ctx, accountID, expectedPrevious.Add(decimal.NewFromInt(1)), expectedPrevious); err != nil {
			return err
		}
	}
	return w.store.WriteStoredDebt(ctx, accountID, value, expectedPrevious)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []any
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{}
}

func (r *eventRecorder) Publish(ctx context.Context, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) Events() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.events...)
}

func newSnapshotService(t *testing.T, store *memory.Store) *snapshotapp.SnapshotService {
	t.Helper()
	svc, err := snapshotapp.NewSnapshotService(store, nil)
	if err != nil {
		t.Fatalf("new snapshot service: %v", err)
	}
	return svc
}

func newCorrector(t *testing.T, store *memory.Store, bus reconcileapp.EventPublisher) *reconcileapp.Corrector {
	t.Helper()
	corrector, err := reconcileapp.NewCorrector(newSnapshotService(t, store), store, bus, nil)
	if err != nil {
		t.Fatalf("new corrector: %v", err)
	}
	return corrector
}

func dec(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", value, err)
	}
	return d
}
