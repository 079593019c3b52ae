package snapshot

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	ledger "receivables-cloud/internal/ledger/domain"
)

func TestCompute_DebtIsOutstandingMinusAllocated(t *testing.T) {
	at := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)
	invoices := []ledger.Invoice{
		{ID: "inv-1", AccountID: "acct-1", Amount: dec(t, "100"), Status: ledger.InvoiceUnpaid},
		{ID: "inv-2", AccountID: "acct-1", Amount: dec(t, "50"), Status: ledger.InvoiceUnpaid},
	}
	payments := []ledger.Payment{
		{ID: "pay-1", AccountID: "acct-1", Amount: dec(t, "30"), Allocated: true},
	}

	snap := Compute("acct-1", invoices, payments, at)

	if !snap.Debt.Equal(dec(t, "120")) {
		t.Fatalf("debt mismatch: got=%s want=120", snap.Debt)
	}
	if snap.OutstandingInvoices != 2 {
		t.Fatalf("outstanding invoices: got=%d want=2", snap.OutstandingInvoices)
	}
	if snap.AllocatedPayments != 1 {
		t.Fatalf("allocated payments: got=%d want=1", snap.AllocatedPayments)
	}
	if !snap.ComputedAt.Equal(at) {
		t.Fatalf("computed at: got=%s want=%s", snap.ComputedAt, at)
	}
}

func TestCompute_UnallocatedPaymentsInvisible(t *testing.T) {
	at := time.Now().UTC()
	invoices := []ledger.Invoice{
		{ID: "inv-1", AccountID: "acct-1", Amount: dec(t, "80.25"), Status: ledger.InvoiceUnpaid},
	}
	pending := ledger.Payment{ID: "pay-1", AccountID: "acct-1", Amount: dec(t, "19.75"), Allocated: false}

	before := Compute("acct-1", invoices, []ledger.Payment{pending}, at)
	if !before.Debt.Equal(dec(t, "80.25")) {
		t.Fatalf("unallocated payment changed debt: got=%s want=80.25", before.Debt)
	}

	pending.Allocated = true
	after := Compute("acct-1", invoices, []ledger.Payment{pending}, at)
	if !after.Debt.Equal(dec(t, "60.50")) {
		t.Fatalf("allocated payment not applied: got=%s want=60.50", after.Debt)
	}
	if !before.Debt.Sub(after.Debt).Equal(pending.Amount) {
		t.Fatalf("allocation delta mismatch: got=%s want=%s", before.Debt.Sub(after.Debt), pending.Amount)
	}
}

func TestCompute_IgnoresPaidCancelledAndForeignRows(t *testing.T) {
	at := time.Now().UTC()
	invoices := []ledger.Invoice{
		{ID: "inv-1", AccountID: "acct-1", Amount: dec(t, "40"), Status: ledger.InvoiceUnpaid},
		{ID: "inv-2", AccountID: "acct-1", Amount: dec(t, "75"), Status: ledger.InvoicePaid},
		{ID: "inv-3", AccountID: "acct-1", Amount: dec(t, "33"), Status: ledger.InvoiceCancelled},
		{ID: "inv-4", AccountID: "acct-2", Amount: dec(t, "500"), Status: ledger.InvoiceUnpaid},
	}
	payments := []ledger.Payment{
		{ID: "pay-1", AccountID: "acct-2", Amount: dec(t, "10"), Allocated: true},
	}

	snap := Compute("acct-1", invoices, payments, at)
	if !snap.Debt.Equal(dec(t, "40")) {
		t.Fatalf("debt mismatch: got=%s want=40", snap.Debt)
	}
	if snap.AllocatedPayments != 0 {
		t.Fatalf("foreign payment counted: got=%d want=0", snap.AllocatedPayments)
	}
}

func TestCompute_DeterministicForSameRows(t *testing.T) {
	at := time.Now().UTC()
	invoices := []ledger.Invoice{
		{ID: "inv-1", AccountID: "acct-1", Amount: dec(t, "10.10"), Status: ledger.InvoiceUnpaid},
		{ID: "inv-2", AccountID: "acct-1", Amount: dec(t, "0.01"), Status: ledger.InvoiceUnpaid},
	}
	payments := []ledger.Payment{
		{ID: "pay-1", AccountID: "acct-1", Amount: dec(t, "3.33"), Allocated: true},
	}

	first := Compute("acct-1", invoices, payments, at)
	second := Compute("acct-1", invoices, payments, at)
	if first.Debt.String() != second.Debt.String() {
		t.Fatalf("snapshot not deterministic: %s vs %s", first.Debt, second.Debt)
	}
	if !first.Debt.Equal(dec(t, "6.78")) {
		t.Fatalf("debt mismatch: got=%s want=6.78", first.Debt)
	}
}

func dec(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", value, err)
	}
	return d
}
