package service

import (
	"context"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cancellation terms: free when more than freeCancellationDays whole days
// remain before the rental starts, otherwise cancellationFeePercent of the
// total cost.
const freeCancellationDays = 5

var cancellationFeeRate = decimal.NewFromFloat(0.30)

type policyService struct {
	contractRepo repository.ContractRepository
}

func NewPolicyService(contractRepo repository.ContractRepository) PolicyService {
	return &policyService{contractRepo: contractRepo}
}

// IsCarAvailableForRental reports whether no PENDING, CONFIRMED or ACTIVE
// contract on the car overlaps the period. excludeContractID (uuid.Nil for
// none) skips a contract when re-validating its own date change.
//
// This answer is advisory: the authoritative check runs again inside the
// repository's car-locked transaction when the contract is written.
func (s *policyService) IsCarAvailableForRental(ctx context.Context, carID uuid.UUID, period domain.RentalPeriod, excludeContractID uuid.UUID) (bool, error) {
	n, err := s.contractRepo.CountOverlapping(ctx, carID, period, excludeContractID)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// CanCancelWithoutFee reports whether more than five whole days remain
// between now and the rental start.
func (s *policyService) CanCancelWithoutFee(c *domain.Contract, now time.Time) bool {
	daysUntilStart := int64(c.Period.Start().Sub(now).Hours() / 24)
	return daysUntilStart > freeCancellationDays
}

// CalculateCancellationFee returns zero inside the free window, otherwise
// 30% of the contract's total cost. The fee is informational; billing
// execution happens elsewhere.
func (s *policyService) CalculateCancellationFee(c *domain.Contract, now time.Time) (domain.Money, error) {
	if s.CanCancelWithoutFee(c, now) {
		return domain.Zero(c.TotalCost.Currency()), nil
	}
	return c.TotalCost.MultiplyDecimal(cancellationFeeRate)
}
