package service

import (
	"context"
	"testing"
	"time"

	"carrental-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func policyContract(t *testing.T, startsIn time.Duration) *domain.Contract {
	t.Helper()
	start := time.Now().UTC().Add(startsIn)
	period, err := domain.NewRentalPeriod(start, start.AddDate(0, 0, 2))
	require.NoError(t, err)
	rate, err := domain.NewMoneyFromString("1000.00", "EUR")
	require.NoError(t, err)
	c, err := domain.NewContract(uuid.New(), uuid.New(), period, rate)
	require.NoError(t, err)
	return c
}

func TestCanCancelWithoutFee(t *testing.T) {
	policy := NewPolicyService(newFakeContractRepo())
	now := time.Now().UTC()

	tests := []struct {
		name     string
		startsIn time.Duration
		free     bool
	}{
		{"Six days ahead", 6*24*time.Hour + time.Hour, true},
		{"Well ahead", 30 * 24 * time.Hour, true},
		{"Exactly five days", 5 * 24 * time.Hour, false},
		{"Two days ahead", 2 * 24 * time.Hour, false},
		{"Starts within the hour", time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := policyContract(t, tt.startsIn)
			assert.Equal(t, tt.free, policy.CanCancelWithoutFee(c, now))
		})
	}
}

func TestCalculateCancellationFee(t *testing.T) {
	policy := NewPolicyService(newFakeContractRepo())
	now := time.Now().UTC()

	t.Run("Free window yields zero fee", func(t *testing.T) {
		c := policyContract(t, 7*24*time.Hour)
		fee, err := policy.CalculateCancellationFee(c, now)
		require.NoError(t, err)
		assert.True(t, fee.IsZero())
		assert.Equal(t, "EUR", fee.Currency())
	})

	t.Run("Late cancellation costs thirty percent", func(t *testing.T) {
		c := policyContract(t, 2*24*time.Hour)
		fee, err := policy.CalculateCancellationFee(c, now)
		require.NoError(t, err)
		assert.Equal(t, "600.00 EUR", fee.String())
	})
}

func TestIsCarAvailableForRental(t *testing.T) {
	ctx := context.Background()
	repo := newFakeContractRepo()
	policy := NewPolicyService(repo)
	carID := uuid.New()
	day := func(d int) time.Time { return time.Now().UTC().AddDate(0, 0, d) }

	existingPeriod, err := domain.NewRentalPeriod(day(10), day(15))
	require.NoError(t, err)
	rate, _ := domain.NewMoneyFromString("100.00", "EUR")
	existing, err := domain.NewContract(uuid.New(), carID, existingPeriod, rate)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, existing))

	t.Run("Overlapping period unavailable", func(t *testing.T) {
		period, err := domain.NewRentalPeriod(day(12), day(14))
		require.NoError(t, err)
		free, err := policy.IsCarAvailableForRental(ctx, carID, period, uuid.Nil)
		require.NoError(t, err)
		assert.False(t, free)
	})

	t.Run("Disjoint period available", func(t *testing.T) {
		period, err := domain.NewRentalPeriod(day(16), day(20))
		require.NoError(t, err)
		free, err := policy.IsCarAvailableForRental(ctx, carID, period, uuid.Nil)
		require.NoError(t, err)
		assert.True(t, free)
	})

	t.Run("Own contract excluded when revalidating", func(t *testing.T) {
		period, err := domain.NewRentalPeriod(day(12), day(14))
		require.NoError(t, err)
		free, err := policy.IsCarAvailableForRental(ctx, carID, period, existing.ID)
		require.NoError(t, err)
		assert.True(t, free)
	})

	t.Run("Cancelled contracts do not block", func(t *testing.T) {
		stored, err := repo.GetByID(ctx, existing.ID)
		require.NoError(t, err)
		require.NoError(t, stored.RequestCancellation())
		require.NoError(t, stored.Cancel())
		require.NoError(t, repo.UpdateState(ctx, stored, domain.StatePending))

		period, err := domain.NewRentalPeriod(day(12), day(14))
		require.NoError(t, err)
		free, err := policy.IsCarAvailableForRental(ctx, carID, period, uuid.Nil)
		require.NoError(t, err)
		assert.True(t, free)
	})
}
