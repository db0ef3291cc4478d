package service

import (
	"context"
	"time"

	"carrental-backend/internal/domain"

	"github.com/google/uuid"
)

// IdentityService is the narrow port onto the client identity context.
// Consulted before any contract mutation; failures fail closed.
type IdentityService interface {
	IsClientVerified(ctx context.Context, clientID uuid.UUID) (bool, error)
	IsClientActive(ctx context.Context, clientID uuid.UUID) (bool, error)
}

// CatalogService is the narrow port onto the car catalog context. The rate
// is snapshotted into the contract's cost at creation and date-update time,
// never re-derived later.
type CatalogService interface {
	CurrentDailyRate(ctx context.Context, carID uuid.UUID) (domain.Money, error)
}

// PolicyService holds the stateless booking rules: car availability and the
// early-cancellation fee.
type PolicyService interface {
	IsCarAvailableForRental(ctx context.Context, carID uuid.UUID, period domain.RentalPeriod, excludeContractID uuid.UUID) (bool, error)
	CanCancelWithoutFee(c *domain.Contract, now time.Time) bool
	CalculateCancellationFee(c *domain.Contract, now time.Time) (domain.Money, error)
}

// BookingService orchestrates the contract lifecycle on behalf of clients
// and administrators.
type BookingService interface {
	CreateContract(ctx context.Context, clientID, carID uuid.UUID, start, end time.Time) (*domain.Contract, error)
	ConfirmContract(ctx context.Context, contractID uuid.UUID) (*domain.Contract, error)
	CancelContract(ctx context.Context, clientID, contractID uuid.UUID, reason string) (*domain.Contract, error)
	ApproveCancellation(ctx context.Context, contractID uuid.UUID) (*domain.Contract, error)
	RejectCancellation(ctx context.Context, contractID uuid.UUID) (*domain.Contract, error)
	UpdateContractDates(ctx context.Context, clientID, contractID uuid.UUID, start, end time.Time) (*domain.Contract, error)
	GetContract(ctx context.Context, clientID, contractID uuid.UUID) (*domain.Contract, error)
	ListClientContracts(ctx context.Context, clientID uuid.UUID) ([]domain.Contract, error)
}
