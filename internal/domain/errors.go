package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrRateLimited  = errors.New("rate limited")

	// ErrIntegrity signals a hash-chain verification mismatch. It is never
	// auto-corrected; the affected operation fails and the fault is logged
	// for the operator.
	ErrIntegrity = errors.New("ledger integrity violation")

	// ErrUnavailable is a retryable storage fault. A caller seeing this after
	// a cast-vote call must check the receipt or voting status before
	// resubmitting: the append and the voted flag flip atomically, but the
	// acknowledgement may have been lost in transit.
	ErrUnavailable = errors.New("storage unavailable")
)
