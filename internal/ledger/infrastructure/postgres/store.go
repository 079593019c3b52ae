package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	ledger "receivables-cloud/internal/ledger/domain"
)

// Store is the postgres ledger store. Reads that feed a snapshot run inside
// a single repeatable-read transaction so invoices, payments and the stored
// debt field are observed at one logical instant.
type Store struct {
	db *sql.DB
}

// NewStore constructs a postgres ledger store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ListAccounts returns refs for the whole account population.
func (s *Store) ListAccounts(ctx context.Context) ([]ledger.AccountRef, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, status
FROM accounts
ORDER BY id ASC`)
	if err != nil {
		return nil, unavailable("list accounts", err)
	}
	defer rows.Close()

	var refs []ledger.AccountRef
	for rows.Next() {
		var ref ledger.AccountRef
		if err := rows.Scan(&ref.ID, &ref.Status); err != nil {
			return nil, unavailable("scan account ref", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate account refs", err)
	}
	return refs, nil
}

// LoadAccountLedger reads the account's stored debt, invoices and allocated
// payments inside one read-only transaction.
func (s *Store) LoadAccountLedger(ctx context.Context, accountID string) (ledger.AccountLedger, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return ledger.AccountLedger{}, unavailable("begin snapshot tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	bundle := ledger.AccountLedger{AccountID: accountID}
	err = tx.QueryRowContext(ctx, `
SELECT stored_debt
FROM accounts
WHERE id = $1`, accountID).Scan(&bundle.StoredDebt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.AccountLedger{}, ledger.ErrAccountNotFound
	}
	if err != nil {
		return ledger.AccountLedger{}, unavailable("read stored debt", err)
	}

	bundle.Invoices, err = loadInvoices(ctx, tx, accountID)
	if err != nil {
		return ledger.AccountLedger{}, err
	}
	bundle.Payments, err = loadAllocatedPayments(ctx, tx, accountID)
	if err != nil {
		return ledger.AccountLedger{}, err
	}

	if err := tx.Commit(); err != nil {
		return ledger.AccountLedger{}, unavailable("commit snapshot tx", err)
	}
	return bundle, nil
}

// ReadStoredDebt returns the persisted debt summary field for one account.
func (s *Store) ReadStoredDebt(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var debt decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
SELECT stored_debt
FROM accounts
WHERE id = $1`, accountID).Scan(&debt)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ledger.ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, unavailable("read stored debt", err)
	}
	return debt, nil
}

// WriteStoredDebt updates the stored debt field only when its current value
// still equals expectedPrevious. A lost race reports ErrWriteConflict; a
// vanished account reports ErrAccountNotFound.
func (s *Store) WriteStoredDebt(ctx context.Context, accountID string, value, expectedPrevious decimal.Decimal) error {
	result, err := s.db.ExecContext(ctx, `
UPDATE accounts
SET stored_debt = $2, updated_at = now()
WHERE id = $1 AND stored_debt = $3`, accountID, value, expectedPrevious)
	if err != nil {
		return unavailable("write stored debt", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return unavailable("write stored debt", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `
SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists)
	if err != nil {
		return unavailable("check account exists", err)
	}
	if !exists {
		return ledger.ErrAccountNotFound
	}
	return ledger.ErrWriteConflict
}

func loadInvoices(ctx context.Context, tx *sql.Tx, accountID string) ([]ledger.Invoice, error) {
	rows, err := tx.QueryContext(ctx, `
SELECT id, account_id, amount, status, issued_at
FROM invoices
WHERE account_id = $1
ORDER BY issued_at ASC, id ASC`, accountID)
	if err != nil {
		return nil, unavailable("query invoices", err)
	}
	defer rows.Close()

	var result []ledger.Invoice
	for rows.Next() {
		var inv ledger.Invoice
		if err := rows.Scan(&inv.ID, &inv.AccountID, &inv.Amount, &inv.Status, &inv.IssuedAt); err != nil {
			return nil, unavailable("scan invoice", err)
		}
		inv.IssuedAt = inv.IssuedAt.UTC()
		result = append(result, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate invoices", err)
	}
	return result, nil
}

func loadAllocatedPayments(ctx context.Context, tx *sql.Tx, accountID string) ([]ledger.Payment, error) {
	rows, err := tx.QueryContext(ctx, `
SELECT id, account_id, COALESCE(invoice_id, ''), amount, allocated, received_at
FROM payments
WHERE account_id = $1 AND allocated = TRUE
ORDER BY received_at ASC, id ASC`, accountID)
	if err != nil {
		return nil, unavailable("query payments", err)
	}
	defer rows.Close()

	var result []ledger.Payment
	for rows.Next() {
		var pay ledger.Payment
		if err := rows.Scan(&pay.ID, &pay.AccountID, &pay.InvoiceID, &pay.Amount, &pay.Allocated, &pay.ReceivedAt); err != nil {
			return nil, unavailable("scan payment", err)
		}
		pay.ReceivedAt = pay.ReceivedAt.UTC()
		result = append(result, pay)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate payments", err)
	}
	return result, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ledger.ErrUnavailable, op, err)
}
