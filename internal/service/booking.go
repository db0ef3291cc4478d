package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"

	"github.com/google/uuid"
)

type bookingService struct {
	contractRepo repository.ContractRepository
	identity     IdentityService
	catalog      CatalogService
	policy       PolicyService
	log          *slog.Logger
}

func NewBookingService(
	contractRepo repository.ContractRepository,
	identity IdentityService,
	catalog CatalogService,
	policy PolicyService,
) BookingService {
	return &bookingService{
		contractRepo: contractRepo,
		identity:     identity,
		catalog:      catalog,
		policy:       policy,
		log:          logger.WithService("booking"),
	}
}

// CreateContract books a car for a client. The identity gates run before any
// availability work; the overlap check and the insert are one atomic
// operation inside the repository, serialized per car.
func (s *bookingService) CreateContract(ctx context.Context, clientID, carID uuid.UUID, start, end time.Time) (*domain.Contract, error) {
	if err := s.checkClient(ctx, clientID); err != nil {
		return nil, err
	}

	period, err := domain.NewRentalPeriod(start, end)
	if err != nil {
		return nil, err
	}

	rate, err := s.catalog.CurrentDailyRate(ctx, carID)
	if err != nil {
		return nil, fmt.Errorf("fetch daily rate for car %s: %w", carID, err)
	}

	contract, err := domain.NewContract(clientID, carID, period, rate)
	if err != nil {
		return nil, err
	}

	if err := s.contractRepo.Create(ctx, contract); err != nil {
		return nil, err
	}

	s.log.Info("Contract created",
		"contract_id", contract.ID,
		"client_id", clientID,
		"car_id", carID,
		"total_cost", contract.TotalCost.String())
	return contract, nil
}

// ConfirmContract moves a pending contract to CONFIRMED. Administrative
// operation; caller identity is gated upstream.
func (s *bookingService) ConfirmContract(ctx context.Context, contractID uuid.UUID) (*domain.Contract, error) {
	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	prev := contract.State
	if err := contract.Confirm(); err != nil {
		return nil, err
	}
	if err := s.contractRepo.UpdateState(ctx, contract, prev); err != nil {
		return nil, err
	}
	return contract, nil
}

// CancelContract cancels the client's own contract. Inside the free window
// the contract goes straight to CANCELLED (passing through the cancellation
// request within this call); otherwise it parks in CANCELLATION_REQUESTED
// for an administrator to resolve, with a 30% fee attached.
func (s *bookingService) CancelContract(ctx context.Context, clientID, contractID uuid.UUID, reason string) (*domain.Contract, error) {
	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if contract.ClientID != clientID {
		return nil, domain.ErrUnauthorized
	}

	now := time.Now().UTC()
	prev := contract.State
	if err := contract.RequestCancellation(); err != nil {
		return nil, err
	}

	if s.policy.CanCancelWithoutFee(contract, now) {
		if err := contract.Cancel(); err != nil {
			return nil, err
		}
		contract.Comment = reason
		if err := s.contractRepo.UpdateState(ctx, contract, prev); err != nil {
			return nil, err
		}
		s.log.Info("Contract cancelled without fee", "contract_id", contract.ID)
		return contract, nil
	}

	fee, err := s.policy.CalculateCancellationFee(contract, now)
	if err != nil {
		return nil, err
	}
	contract.Comment = reason
	if err := s.contractRepo.UpdateState(ctx, contract, prev); err != nil {
		return nil, err
	}
	s.log.Info("Cancellation requested",
		"contract_id", contract.ID,
		"cancellation_fee", fee.String())
	return contract, nil
}

// ApproveCancellation resolves a cancellation request to CANCELLED.
func (s *bookingService) ApproveCancellation(ctx context.Context, contractID uuid.UUID) (*domain.Contract, error) {
	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	prev := contract.State
	if err := contract.Cancel(); err != nil {
		return nil, err
	}
	if err := s.contractRepo.UpdateState(ctx, contract, prev); err != nil {
		return nil, err
	}
	s.log.Info("Cancellation request approved", "contract_id", contract.ID)
	return contract, nil
}

// RejectCancellation resolves a cancellation request back to ACTIVE. A parked
// contract does not block its car, so the slot may have been booked by someone
// else while the request sat open; re-activation repeats the availability
// check under the car lock and fails with domain.ErrCarUnavailable if so.
func (s *bookingService) RejectCancellation(ctx context.Context, contractID uuid.UUID) (*domain.Contract, error) {
	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	prev := contract.State
	if err := contract.Activate(); err != nil {
		return nil, err
	}
	if err := s.contractRepo.UpdateStateWithAvailabilityCheck(ctx, contract, prev); err != nil {
		return nil, err
	}
	s.log.Info("Cancellation request rejected", "contract_id", contract.ID)
	return contract, nil
}

// UpdateContractDates replaces the rental window on an updatable contract,
// re-snapshotting the car's current daily rate into the cost. The new period
// is re-validated for overlaps under the car lock, excluding this contract.
func (s *bookingService) UpdateContractDates(ctx context.Context, clientID, contractID uuid.UUID, start, end time.Time) (*domain.Contract, error) {
	if err := s.checkClient(ctx, clientID); err != nil {
		return nil, err
	}

	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if contract.ClientID != clientID {
		return nil, domain.ErrUnauthorized
	}

	period, err := domain.NewRentalPeriod(start, end)
	if err != nil {
		return nil, err
	}

	rate, err := s.catalog.CurrentDailyRate(ctx, contract.CarID)
	if err != nil {
		return nil, fmt.Errorf("fetch daily rate for car %s: %w", contract.CarID, err)
	}

	if err := contract.UpdateDates(period, rate); err != nil {
		return nil, err
	}
	if err := s.contractRepo.UpdatePeriod(ctx, contract); err != nil {
		return nil, err
	}

	s.log.Info("Contract dates updated",
		"contract_id", contract.ID,
		"total_cost", contract.TotalCost.String())
	return contract, nil
}

func (s *bookingService) GetContract(ctx context.Context, clientID, contractID uuid.UUID) (*domain.Contract, error) {
	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if contract.ClientID != clientID {
		return nil, domain.ErrUnauthorized
	}
	return contract, nil
}

func (s *bookingService) ListClientContracts(ctx context.Context, clientID uuid.UUID) ([]domain.Contract, error) {
	return s.contractRepo.ListByClient(ctx, clientID)
}

// checkClient runs the identity gates. Both must pass before any
// availability check or mutation.
func (s *bookingService) checkClient(ctx context.Context, clientID uuid.UUID) error {
	verified, err := s.identity.IsClientVerified(ctx, clientID)
	if err != nil {
		return fmt.Errorf("verify client %s: %w", clientID, err)
	}
	if !verified {
		return domain.ErrEmailNotVerified
	}

	active, err := s.identity.IsClientActive(ctx, clientID)
	if err != nil {
		return fmt.Errorf("check client status %s: %w", clientID, err)
	}
	if !active {
		return domain.ErrBannedClient
	}
	return nil
}
