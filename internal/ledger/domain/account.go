package ledger

import "github.com/shopspring/decimal"

// AccountStatus represents the lifecycle state of an account.
type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountInactive AccountStatus = "inactive"
)

// AccountRef identifies an account in a population listing.
type AccountRef struct {
	ID     string
	Status AccountStatus
}

// Account is a receivables account. StoredDebt is the persisted summary
// field; it may drift from the value the ledger rows imply.
type Account struct {
	ID         string
	Name       string
	Status     AccountStatus
	StoredDebt decimal.Decimal
}
