package ledger

import "errors"

var (
	// ErrAccountNotFound is returned when a referenced account is absent.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrUnavailable is returned on transient store read/write failures.
	ErrUnavailable = errors.New("ledger: store unavailable")
	// ErrWriteConflict is returned when a conditional stored-debt write
	// loses the race against a concurrent writer.
	ErrWriteConflict = errors.New("ledger: stored debt write conflict")
)
