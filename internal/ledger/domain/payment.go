package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is a money-received event. Only allocated payments reduce debt;
// an unallocated payment is pending and invisible to snapshot computation.
type Payment struct {
	ID         string
	AccountID  string
	InvoiceID  string
	Amount     decimal.Decimal
	Allocated  bool
	ReceivedAt time.Time
}
