package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrForbidden          = errors.New("forbidden")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrRateLimited        = errors.New("too many requests")
	ErrLockNotAcquired    = errors.New("lock not acquired")

	// Categories. Typed errors below match one of these through errors.Is so
	// callers can pick between re-prompting, redirecting and a cool-down.
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("state conflict")
	ErrCapacity   = errors.New("capacity exhausted")

	// Storage-level conflicts reported by repositories.
	ErrSequenceTaken      = errors.New("sequence already active for plan")
	ErrActiveOrderExists  = errors.New("user already has an active order")
	ErrClaimRefTaken      = errors.New("transaction reference already claimed")
	ErrImportInProgress   = errors.New("another statement import is running")
	ErrTransactionSettled = errors.New("bank transaction already settled")
)

// SequenceExhaustedError means every amount slot of a plan is held by an
// active order. Clients should retry after some orders expire.
type SequenceExhaustedError struct {
	PlanType string
	PoolSize int
}

func (e *SequenceExhaustedError) Error() string {
	return fmt.Sprintf("all %d payment slots for plan %q are in use; try again later", e.PoolSize, e.PlanType)
}

func (e *SequenceExhaustedError) Is(target error) bool { return target == ErrCapacity }

// DuplicatePendingOrderError carries the in-flight order so the client can
// redirect to it.
type DuplicatePendingOrderError struct {
	OrderID   string
	Status    string
	ExpiresAt time.Time
}

func (e *DuplicatePendingOrderError) Error() string {
	return fmt.Sprintf("user already has an active order %s (%s)", e.OrderID, e.Status)
}

func (e *DuplicatePendingOrderError) Is(target error) bool { return target == ErrConflict }

type DuplicateClaimError struct {
	TxnRef string
}

func (e *DuplicateClaimError) Error() string {
	return "transaction reference is already attached to another order"
}

func (e *DuplicateClaimError) Is(target error) bool { return target == ErrConflict }

type AlreadyDecidedError struct {
	OrderID string
	Status  string
}

func (e *AlreadyDecidedError) Error() string {
	return fmt.Sprintf("order %s is already %s", e.OrderID, e.Status)
}

func (e *AlreadyDecidedError) Is(target error) bool { return target == ErrConflict }

// Reasons reported by OrderNotSubmittableError.
const (
	ReasonExpired     = "expired"
	ReasonWrongStatus = "wrong_status"
)

type OrderNotSubmittableError struct {
	OrderID string
	Status  string
	Reason  string
}

func (e *OrderNotSubmittableError) Error() string {
	if e.Reason == ReasonExpired {
		return fmt.Sprintf("order %s has expired", e.OrderID)
	}
	return fmt.Sprintf("order %s cannot accept a claim in status %s", e.OrderID, e.Status)
}

func (e *OrderNotSubmittableError) Is(target error) bool { return target == ErrConflict }

type InvalidTransactionIDError struct {
	Value  string
	Format string
}

func (e *InvalidTransactionIDError) Error() string {
	return fmt.Sprintf("invalid transaction id: expected %s", e.Format)
}

func (e *InvalidTransactionIDError) Is(target error) bool { return target == ErrValidation }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Reason }

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation || target == ErrInvalidArgument
}

// MalformedStatementError fails a whole import; per-row problems never do.
type MalformedStatementError struct {
	Reason string
}

func (e *MalformedStatementError) Error() string { return "malformed statement: " + e.Reason }

func (e *MalformedStatementError) Is(target error) bool { return target == ErrValidation }
