package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	ledger "receivables-cloud/internal/ledger/domain"
)

// Store is an in-memory ledger store, safe for concurrent use. It backs
// tests and local development; error injection hooks simulate transient
// store failures per account.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*ledger.Account
	order    []string
	invoices map[string][]ledger.Invoice
	payments map[string][]ledger.Payment

	listErr  error
	readErrs map[string]error
}

// NewStore constructs an empty in-memory ledger store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*ledger.Account),
		invoices: make(map[string][]ledger.Invoice),
		payments: make(map[string][]ledger.Payment),
		readErrs: make(map[string]error),
	}
}

// PutAccount inserts or replaces an account.
func (s *Store) PutAccount(account ledger.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.ID]; !exists {
		s.order = append(s.order, account.ID)
	}
	copied := account
	s.accounts[account.ID] = &copied
}

// PutInvoice appends an invoice to its account.
func (s *Store) PutInvoice(invoice ledger.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[invoice.AccountID] = append(s.invoices[invoice.AccountID], invoice)
}

// PutPayment appends a payment to its account.
func (s *Store) PutPayment(payment ledger.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[payment.AccountID] = append(s.payments[payment.AccountID], payment)
}

// DeleteAccount removes an account, simulating a concurrent deletion.
func (s *Store) DeleteAccount(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, accountID)
}

// SetReadError forces reads of one account to fail with err until cleared.
func (s *Store) SetReadError(accountID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.readErrs, accountID)
		return
	}
	s.readErrs[accountID] = err
}

// SetListError forces ListAccounts to fail with err until cleared.
func (s *Store) SetListError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErr = err
}

// ListAccounts returns refs for every account in insertion order.
func (s *Store) ListAccounts(ctx context.Context) ([]ledger.AccountRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	refs := make([]ledger.AccountRef, 0, len(s.order))
	for _, id := range s.order {
		account, ok := s.accounts[id]
		if !ok {
			continue
		}
		refs = append(refs, ledger.AccountRef{ID: account.ID, Status: account.Status})
	}
	return refs, nil
}

// LoadAccountLedger returns the account's rows under one lock acquisition,
// the in-memory equivalent of a single-transaction read.
func (s *Store) LoadAccountLedger(ctx context.Context, accountID string) (ledger.AccountLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readErrs[accountID]; err != nil {
		return ledger.AccountLedger{}, err
	}
	account, ok := s.accounts[accountID]
	if !ok {
		return ledger.AccountLedger{}, ledger.ErrAccountNotFound
	}

	bundle := ledger.AccountLedger{
		AccountID:  accountID,
		StoredDebt: account.StoredDebt,
	}
	bundle.Invoices = append(bundle.Invoices, s.invoices[accountID]...)
	for _, payment := range s.payments[accountID] {
		if payment.Allocated {
			bundle.Payments = append(bundle.Payments, payment)
		}
	}
	return bundle, nil
}

// ReadStoredDebt returns the persisted debt summary field.
func (s *Store) ReadStoredDebt(ctx context.Context, accountID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readErrs[accountID]; err != nil {
		return decimal.Zero, err
	}
	account, ok := s.accounts[accountID]
	if !ok {
		return decimal.Zero, ledger.ErrAccountNotFound
	}
	return account.StoredDebt, nil
}

// WriteStoredDebt conditionally updates the stored debt field. The write
// succeeds only when the current value still equals expectedPrevious.
func (s *Store) WriteStoredDebt(ctx context.Context, accountID string, value, expectedPrevious decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	if !account.StoredDebt.Equal(expectedPrevious) {
		return ledger.ErrWriteConflict
	}
	account.StoredDebt = value
	return nil
}
