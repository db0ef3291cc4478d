package repository

import (
	"context"
	"database/sql"
	"time"

	"carrental-backend/internal/domain"

	"github.com/google/uuid"
)

// ContractRepository is the persistence boundary for rental contracts.
//
// Create and UpdatePeriod are atomic check-and-write operations: both take a
// row lock on the target car for the duration of the overlap check and the
// write, so concurrent bookings for the same car are serialized. A booking
// that cannot acquire the lock within the configured timeout fails with
// domain.ErrCarBusy, which is safe to retry.
//
// State writes are compare-and-set: the caller passes the state it loaded the
// contract in, and a row that changed underneath it fails with a
// domain.ErrInvalidContractState conflict instead of silently overwriting.
type ContractRepository interface {
	Create(ctx context.Context, c *domain.Contract) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]domain.Contract, error)
	UpdateState(ctx context.Context, c *domain.Contract, from domain.RentalState) error
	// UpdateStateWithAvailabilityCheck is for transitions that bring a
	// contract's period back into the set blocking the car; the write
	// repeats the overlap check under the car lock and fails with
	// domain.ErrCarUnavailable if the slot has been taken meanwhile.
	UpdateStateWithAvailabilityCheck(ctx context.Context, c *domain.Contract, from domain.RentalState) error
	UpdatePeriod(ctx context.Context, c *domain.Contract) error
	CountOverlapping(ctx context.Context, carID uuid.UUID, period domain.RentalPeriod, excludeID uuid.UUID) (int, error)

	// Lifecycle-boundary queries used by the scheduler jobs. The list
	// methods lock the selected rows, so each batch runs in one
	// transaction from selection through the final state write.
	BeginTx(ctx context.Context) (*sql.Tx, error)
	ListConfirmedDue(ctx context.Context, tx *sql.Tx, now time.Time) ([]domain.Contract, error)
	ListActiveDue(ctx context.Context, tx *sql.Tx, now time.Time) ([]domain.Contract, error)
	UpdateStateTx(ctx context.Context, tx *sql.Tx, c *domain.Contract) error
}
