package services

import "errors"

// Error taxonomy. Callers branch with errors.Is; the handlers map these to
// HTTP codes so the gateway's redelivery logic can react correctly.
var (
	// ErrBadEvent marks malformed or incomplete input. Rejected before any
	// write; the gateway must not redeliver.
	ErrBadEvent = errors.New("bad event")

	// ErrTransactionNotFound means no transaction exists for the order id.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrStoreUnavailable marks a transient store failure. Retryable; a
	// webhook caller should have the gateway redeliver.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNoVoucherAvailable means the pool has no matching available
	// voucher. Recorded on the transaction, never a reconciliation failure.
	ErrNoVoucherAvailable = errors.New("no voucher available")
)
