package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the billing state of an invoice.
type InvoiceStatus string

const (
	InvoiceUnpaid    InvoiceStatus = "unpaid"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Outstanding reports whether an invoice in this status still contributes
// to account debt. The predicate is fixed; callers must not vary it.
func (s InvoiceStatus) Outstanding() bool {
	return s == InvoiceUnpaid
}

// Invoice is a billable document owned by an account.
type Invoice struct {
	ID        string
	AccountID string
	Amount    decimal.Decimal
	Status    InvoiceStatus
	IssuedAt  time.Time
}
