package domain

import "errors"

// Validation errors, rejected at construction and never persisted.
var (
	ErrInvalidAmount    = errors.New("amount must be non-negative")
	ErrInvalidCurrency  = errors.New("currency code is required")
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrNegativeResult   = errors.New("operation would produce a negative amount")
	ErrInvalidPeriod    = errors.New("invalid rental period")
)

// State conflicts. Callers must re-fetch the contract before retrying.
var (
	ErrInvalidContractState = errors.New("invalid contract state transition")
	ErrContractNotUpdatable = errors.New("contract is not updatable in its current state")
	ErrContractAlreadySaved = errors.New("contract already has an identity")
)

// Lookup and policy errors surfaced by the service layer.
var (
	ErrContractNotFound = errors.New("contract not found")
	ErrCarNotFound      = errors.New("car not found")
	ErrCarUnavailable   = errors.New("car is not available for the requested period")
	ErrCarBusy          = errors.New("car is being booked by another request, try again")
	ErrUnauthorized     = errors.New("contract does not belong to this client")
	ErrEmailNotVerified = errors.New("client email is not verified")
	ErrBannedClient     = errors.New("client account is banned")
)
