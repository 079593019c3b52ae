package application

import (
	"context"
	"errors"
	"time"

	ledger "receivables-cloud/internal/ledger/domain"
	snapshot "receivables-cloud/internal/snapshot/domain"
)

// LedgerReader is the read surface the snapshot core needs from the ledger
// store. LoadAccountLedger must observe the account's rows at a single
// logical instant.
type LedgerReader interface {
	ListAccounts(ctx context.Context) ([]ledger.AccountRef, error)
	LoadAccountLedger(ctx context.Context, accountID string) (ledger.AccountLedger, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// SnapshotService derives canonical per-account snapshots from ledger rows.
type SnapshotService struct {
	reader LedgerReader
	clock  Clock
}

// NewSnapshotService constructs the service.
func NewSnapshotService(reader LedgerReader, clock Clock) (*SnapshotService, error) {
	if reader == nil {
		return nil, errors.New("snapshot service: nil ledger reader")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &SnapshotService{reader: reader, clock: clock}, nil
}

// ComputeSnapshot computes the canonical snapshot for one account.
// NotFound and store failures surface to the caller unchanged.
func (s *SnapshotService) ComputeSnapshot(ctx context.Context, accountID string) (snapshot.Snapshot, error) {
	bundle, err := s.reader.LoadAccountLedger(ctx, accountID)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	return snapshot.Compute(accountID, bundle.Invoices, bundle.Payments, s.clock.Now()), nil
}

// ComputeWithStored computes the snapshot and returns the stored debt field
// read at the same instant, for drift comparison.
func (s *SnapshotService) ComputeWithStored(ctx context.Context, accountID string) (snapshot.Snapshot, ledger.AccountLedger, error) {
	bundle, err := s.reader.LoadAccountLedger(ctx, accountID)
	if err != nil {
		return snapshot.Snapshot{}, ledger.AccountLedger{}, err
	}
	return snapshot.Compute(accountID, bundle.Invoices, bundle.Payments, s.clock.Now()), bundle, nil
}
