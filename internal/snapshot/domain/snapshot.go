package snapshot

import (
	"time"

	"github.com/shopspring/decimal"

	ledger "receivables-cloud/internal/ledger/domain"
)

// Snapshot is the computed canonical financial state of one account at a
// point in time. It is derived, never persisted except via the stored debt
// field.
type Snapshot struct {
	AccountID           string          `json:"account_id"`
	Debt                decimal.Decimal `json:"debt"`
	InvoiceTotal        decimal.Decimal `json:"invoice_total"`
	PaymentTotal        decimal.Decimal `json:"payment_total"`
	OutstandingInvoices int             `json:"outstanding_invoices"`
	AllocatedPayments   int             `json:"allocated_payments"`
	ComputedAt          time.Time       `json:"computed_at"`
}

// Compute folds ledger rows into a snapshot. Debt is the exact decimal sum
// of outstanding invoice amounts minus allocated payment amounts. Payments
// without the allocation flag and invoices outside the outstanding predicate
// never contribute. The fold is side-effect free and deterministic: the same
// rows always produce the same snapshot values.
func Compute(accountID string, invoices []ledger.Invoice, payments []ledger.Payment, at time.Time) Snapshot {
	snap := Snapshot{
		AccountID:    accountID,
		Debt:         decimal.Zero,
		InvoiceTotal: decimal.Zero,
		PaymentTotal: decimal.Zero,
		ComputedAt:   at.UTC(),
	}

	for _, inv := range invoices {
		if inv.AccountID != accountID {
			continue
		}
		if !inv.Status.Outstanding() {
			continue
		}
		snap.InvoiceTotal = snap.InvoiceTotal.Add(inv.Amount)
		snap.OutstandingInvoices++
	}

	for _, pay := range payments {
		if pay.AccountID != accountID {
			continue
		}
		if !pay.Allocated {
			continue
		}
		snap.PaymentTotal = snap.PaymentTotal.Add(pay.Amount)
		snap.AllocatedPayments++
	}

	snap.Debt = snap.InvoiceTotal.Sub(snap.PaymentTotal)
	return snap
}
