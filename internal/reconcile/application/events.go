package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CorrectionApplied is emitted when a drift correction rewrites an
// account's stored debt field.
type CorrectionApplied struct {
	AccountID  string          `json:"account_id"`
	Previous   decimal.Decimal `json:"previous"`
	Computed   decimal.Decimal `json:"computed"`
	Delta      decimal.Decimal `json:"delta"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// ReconciliationCompleted is emitted when a bulk run finishes, including
// partial runs cut short by cancellation.
type ReconciliationCompleted struct {
	RunID      string    `json:"run_id"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Corrected  int       `json:"corrected"`
	Canceled   bool      `json:"canceled"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher delivers domain events to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}
