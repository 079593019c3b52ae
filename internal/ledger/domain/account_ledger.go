package ledger

import "github.com/shopspring/decimal"

// AccountLedger bundles one account's ledger rows read at a single logical
// instant. Stores must populate it from one consistent read so a snapshot
// never observes a mix of pre- and post-write invoice and payment state.
// Payments contains allocated payments only, per the read contract.
type AccountLedger struct {
	AccountID  string
	StoredDebt decimal.Decimal
	Invoices   []Invoice
	Payments   []Payment
}
