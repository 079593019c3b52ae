package reconcile

import (
	"time"

	"github.com/shopspring/decimal"
)

// CorrectionStatus is the outcome of one drift-correction pass.
type CorrectionStatus string

const (
	StatusCorrected CorrectionStatus = "corrected"
	StatusUnchanged CorrectionStatus = "unchanged"
	StatusFailed    CorrectionStatus = "failed"
)

// Failure reasons carried on failed correction records.
const (
	ReasonNotFound    = "not_found"
	ReasonUnavailable = "ledger_unavailable"
	ReasonConflict    = "conflict"
)

// CorrectionRecord is the audit output of one reconciliation of one
// account: the stored value before, the computed truth, and the signed
// delta applied. It lives only for the duration of a run and its report.
type CorrectionRecord struct {
	AccountID string           `json:"account_id"`
	Previous  decimal.Decimal  `json:"previous"`
	Computed  decimal.Decimal  `json:"computed"`
	Delta     decimal.Decimal  `json:"delta"`
	Status    CorrectionStatus `json:"status"`
	Reason    string           `json:"reason,omitempty"`
	At        time.Time        `json:"at"`
}
