package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"carrental-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeContractRepo is an in-memory ContractRepository that mirrors the
// store's overlap semantics for PENDING/CONFIRMED/ACTIVE contracts.
type fakeContractRepo struct {
	contracts map[uuid.UUID]domain.Contract
}

func newFakeContractRepo() *fakeContractRepo {
	return &fakeContractRepo{contracts: make(map[uuid.UUID]domain.Contract)}
}

func (r *fakeContractRepo) Create(ctx context.Context, c *domain.Contract) error {
	if c.ID != uuid.Nil {
		return domain.ErrContractAlreadySaved
	}
	n, _ := r.CountOverlapping(ctx, c.CarID, c.Period, uuid.Nil)
	if n > 0 {
		return domain.ErrCarUnavailable
	}
	c.ID = uuid.New()
	r.contracts[c.ID] = *c
	return nil
}

func (r *fakeContractRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Contract, error) {
	c, ok := r.contracts[id]
	if !ok {
		return nil, domain.ErrContractNotFound
	}
	copied := c
	return &copied, nil
}

func (r *fakeContractRepo) ListByClient(_ context.Context, clientID uuid.UUID) ([]domain.Contract, error) {
	var out []domain.Contract
	for _, c := range r.contracts {
		if c.ClientID == clientID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeContractRepo) UpdateState(_ context.Context, c *domain.Contract, from domain.RentalState) error {
	stored, ok := r.contracts[c.ID]
	if !ok {
		return domain.ErrContractNotFound
	}
	if stored.State != from {
		return fmt.Errorf("%w: contract %s is no longer %s", domain.ErrInvalidContractState, c.ID, from)
	}
	r.contracts[c.ID] = *c
	return nil
}

func (r *fakeContractRepo) UpdateStateWithAvailabilityCheck(ctx context.Context, c *domain.Contract, from domain.RentalState) error {
	n, err := r.CountOverlapping(ctx, c.CarID, c.Period, c.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return domain.ErrCarUnavailable
	}
	return r.UpdateState(ctx, c, from)
}

func (r *fakeContractRepo) UpdatePeriod(ctx context.Context, c *domain.Contract) error {
	if _, ok := r.contracts[c.ID]; !ok {
		return domain.ErrContractNotFound
	}
	n, _ := r.CountOverlapping(ctx, c.CarID, c.Period, c.ID)
	if n > 0 {
		return domain.ErrCarUnavailable
	}
	r.contracts[c.ID] = *c
	return nil
}

func (r *fakeContractRepo) CountOverlapping(_ context.Context, carID uuid.UUID, period domain.RentalPeriod, excludeID uuid.UUID) (int, error) {
	n := 0
	for _, c := range r.contracts {
		if c.CarID != carID || c.ID == excludeID {
			continue
		}
		switch c.State {
		case domain.StatePending, domain.StateConfirmed, domain.StateActive:
			if c.Period.Overlaps(period) {
				n++
			}
		}
	}
	return n, nil
}

func (r *fakeContractRepo) BeginTx(context.Context) (*sql.Tx, error) {
	return nil, errors.New("fake repo has no transactions")
}

func (r *fakeContractRepo) ListConfirmedDue(context.Context, *sql.Tx, time.Time) ([]domain.Contract, error) {
	return nil, nil
}

func (r *fakeContractRepo) ListActiveDue(context.Context, *sql.Tx, time.Time) ([]domain.Contract, error) {
	return nil, nil
}

func (r *fakeContractRepo) UpdateStateTx(_ context.Context, _ *sql.Tx, c *domain.Contract) error {
	if _, ok := r.contracts[c.ID]; !ok {
		return domain.ErrContractNotFound
	}
	r.contracts[c.ID] = *c
	return nil
}

type fakeIdentity struct {
	verified bool
	active   bool
}

func (f *fakeIdentity) IsClientVerified(context.Context, uuid.UUID) (bool, error) {
	return f.verified, nil
}

func (f *fakeIdentity) IsClientActive(context.Context, uuid.UUID) (bool, error) {
	return f.active, nil
}

type fakeCatalog struct {
	rate domain.Money
	err  error
}

func (f *fakeCatalog) CurrentDailyRate(context.Context, uuid.UUID) (domain.Money, error) {
	return f.rate, f.err
}

type bookingFixture struct {
	repo    *fakeContractRepo
	booking BookingService
	policy  PolicyService
	catalog *fakeCatalog
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	repo := newFakeContractRepo()
	rate, err := domain.NewMoneyFromString("1000.00", "EUR")
	require.NoError(t, err)
	catalog := &fakeCatalog{rate: rate}
	policy := NewPolicyService(repo)
	booking := NewBookingService(repo, &fakeIdentity{verified: true, active: true}, catalog, policy)
	return &bookingFixture{repo: repo, booking: booking, policy: policy, catalog: catalog}
}

func TestCreateContract(t *testing.T) {
	ctx := context.Background()
	clientID, carID := uuid.New(), uuid.New()
	start := time.Now().UTC().AddDate(0, 0, 10)

	t.Run("Happy path", func(t *testing.T) {
		fx := newBookingFixture(t)
		c, err := fx.booking.CreateContract(ctx, clientID, carID, start, start.AddDate(0, 0, 2))
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, c.ID)
		assert.Equal(t, domain.StatePending, c.State)
		assert.Equal(t, "2000.00 EUR", c.TotalCost.String())
	})

	t.Run("Unverified client blocked", func(t *testing.T) {
		fx := newBookingFixture(t)
		booking := NewBookingService(fx.repo, &fakeIdentity{verified: false, active: true}, fx.catalog, fx.policy)

		_, err := booking.CreateContract(ctx, clientID, carID, start, start.AddDate(0, 0, 2))
		assert.ErrorIs(t, err, domain.ErrEmailNotVerified)
		assert.Empty(t, fx.repo.contracts)
	})

	t.Run("Banned client blocked", func(t *testing.T) {
		fx := newBookingFixture(t)
		booking := NewBookingService(fx.repo, &fakeIdentity{verified: true, active: false}, fx.catalog, fx.policy)

		_, err := booking.CreateContract(ctx, clientID, carID, start, start.AddDate(0, 0, 2))
		assert.ErrorIs(t, err, domain.ErrBannedClient)
		assert.Empty(t, fx.repo.contracts)
	})

	t.Run("Invalid period rejected", func(t *testing.T) {
		fx := newBookingFixture(t)
		_, err := fx.booking.CreateContract(ctx, clientID, carID, start, start.Add(10*time.Minute))
		assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
	})

	t.Run("Catalog failure propagates", func(t *testing.T) {
		fx := newBookingFixture(t)
		fx.catalog.err = errors.New("catalog down")

		_, err := fx.booking.CreateContract(ctx, clientID, carID, start, start.AddDate(0, 0, 2))
		assert.Error(t, err)
		assert.Empty(t, fx.repo.contracts)
	})
}

func TestCreateContractAvailability(t *testing.T) {
	ctx := context.Background()
	fx := newBookingFixture(t)
	clientID, carID := uuid.New(), uuid.New()
	base := time.Now().UTC()
	day := func(d int) time.Time { return base.AddDate(0, 0, d) }

	_, err := fx.booking.CreateContract(ctx, clientID, carID, day(10), day(15))
	require.NoError(t, err)

	t.Run("Overlapping request rejected", func(t *testing.T) {
		_, err := fx.booking.CreateContract(ctx, uuid.New(), carID, day(12), day(14))
		assert.ErrorIs(t, err, domain.ErrCarUnavailable)
	})

	t.Run("Disjoint request accepted", func(t *testing.T) {
		_, err := fx.booking.CreateContract(ctx, uuid.New(), carID, day(16), day(20))
		assert.NoError(t, err)
	})

	t.Run("Other car unaffected", func(t *testing.T) {
		_, err := fx.booking.CreateContract(ctx, uuid.New(), uuid.New(), day(12), day(14))
		assert.NoError(t, err)
	})
}

func TestCancelContract(t *testing.T) {
	ctx := context.Background()
	clientID, carID := uuid.New(), uuid.New()

	t.Run("Outside fee window cancels directly", func(t *testing.T) {
		fx := newBookingFixture(t)
		start := time.Now().UTC().AddDate(0, 0, 6).Add(time.Hour)
		c, err := fx.booking.CreateContract(ctx, clientID, carID, start, start.AddDate(0, 0, 2))
		require.NoError(t, err)

		cancelled, err := fx.booking.CancelContract(ctx, clientID, c.ID, "plans changed")
		require.NoError(t, err)
		assert.Equal(t, domain.StateCancelled, cancelled.State)
		assert.Equal(t, "plans changed", cancelled.Comment)

		fee, err := fx.policy.CalculateCancellationFee(c, time.Now().UTC())
		require.NoError(t, err)
		assert.True(t, fee.IsZero())
	})

	t.Run("Inside fee window parks in cancellation requested", func(t *testing.T) {
		fx := newBookingFixture(t)
		start := time.Now().UTC().AddDate(0, 0, 2)
		c, err := fx.booking.CreateContract(ctx, clientID, carID, start, start.AddDate(0, 0, 2))
		require.NoError(t, err)

		requested, err := fx.booking.CancelContract(ctx, clientID, c.ID, "")
		require.NoError(t, err)
		assert.Equal(t, domain.StateCancellationRequested, requested.State)

		fee, err := fx.policy.CalculateCancellationFee(c, time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, "600.00 EUR", fee.String()) // 30% of 2000
	})

	t.Run("Another client's contract is off limits", func(t *testing.T) {
		fx := newBookingFixture(t)
		start := time.Now().UTC().AddDate(0, 0, 10)
		c, err := fx.booking.CreateContract(ctx, clientID, carID, start, start.AddDate(0, 0, 2))
		require.NoError(t, err)

		_, err = fx.booking.CancelContract(ctx, uuid.New(), c.ID, "")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("Already cancelled contract rejects another cancel", func(t *testing.T) {
		fx := newBookingFixture(t)
		start := time.Now().UTC().AddDate(0, 0, 10)
		c, err := fx.booking.CreateContract(ctx, clientID, carID, start, start.AddDate(0, 0, 2))
		require.NoError(t, err)

		_, err = fx.booking.CancelContract(ctx, clientID, c.ID, "")
		require.NoError(t, err)
		_, err = fx.booking.CancelContract(ctx, clientID, c.ID, "")
		assert.ErrorIs(t, err, domain.ErrInvalidContractState)
	})
}

func TestResolveCancellation(t *testing.T) {
	ctx := context.Background()
	clientID, carID := uuid.New(), uuid.New()

	setup := func(t *testing.T) (*bookingFixture, uuid.UUID) {
		fx := newBookingFixture(t)
		start := time.Now().UTC().AddDate(0, 0, 2)
		c, err := fx.booking.CreateContract(ctx, clientID, carID, start, start.AddDate(0, 0, 2))
		require.NoError(t, err)
		_, err = fx.booking.CancelContract(ctx, clientID, c.ID, "")
		require.NoError(t, err)
		return fx, c.ID
	}

	t.Run("Approve moves to cancelled", func(t *testing.T) {
		fx, id := setup(t)
		c, err := fx.booking.ApproveCancellation(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StateCancelled, c.State)
	})

	t.Run("Reject moves back to active", func(t *testing.T) {
		fx, id := setup(t)
		c, err := fx.booking.RejectCancellation(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StateActive, c.State)
	})

	t.Run("Reject fails once the slot is re-booked", func(t *testing.T) {
		fx, id := setup(t)

		// A parked contract frees the car, so another client can take
		// the same window while the request sits open.
		parked, err := fx.repo.GetByID(ctx, id)
		require.NoError(t, err)
		_, err = fx.booking.CreateContract(ctx, uuid.New(), carID, parked.Period.Start(), parked.Period.End())
		require.NoError(t, err)

		_, err = fx.booking.RejectCancellation(ctx, id)
		assert.ErrorIs(t, err, domain.ErrCarUnavailable)

		still, err := fx.repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StateCancellationRequested, still.State)
	})

	t.Run("Resolution requires a pending request", func(t *testing.T) {
		fx := newBookingFixture(t)
		start := time.Now().UTC().AddDate(0, 0, 10)
		c, err := fx.booking.CreateContract(ctx, clientID, carID, start, start.AddDate(0, 0, 2))
		require.NoError(t, err)

		_, err = fx.booking.ApproveCancellation(ctx, c.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidContractState)
	})
}

func TestUpdateContractDates(t *testing.T) {
	ctx := context.Background()
	clientID, carID := uuid.New(), uuid.New()
	base := time.Now().UTC()
	day := func(d int) time.Time { return base.AddDate(0, 0, d) }

	t.Run("Updates period and recomputes cost", func(t *testing.T) {
		fx := newBookingFixture(t)
		c, err := fx.booking.CreateContract(ctx, clientID, carID, day(10), day(12))
		require.NoError(t, err)

		updated, err := fx.booking.UpdateContractDates(ctx, clientID, c.ID, day(20), day(23))
		require.NoError(t, err)
		assert.Equal(t, "3000.00 EUR", updated.TotalCost.String())
	})

	t.Run("New period must be free", func(t *testing.T) {
		fx := newBookingFixture(t)
		_, err := fx.booking.CreateContract(ctx, uuid.New(), carID, day(20), day(25))
		require.NoError(t, err)
		c, err := fx.booking.CreateContract(ctx, clientID, carID, day(10), day(12))
		require.NoError(t, err)

		_, err = fx.booking.UpdateContractDates(ctx, clientID, c.ID, day(21), day(23))
		assert.ErrorIs(t, err, domain.ErrCarUnavailable)
	})

	t.Run("Rejected once the contract is no longer updatable", func(t *testing.T) {
		fx := newBookingFixture(t)
		c, err := fx.booking.CreateContract(ctx, clientID, carID, day(10), day(12))
		require.NoError(t, err)

		stored, err := fx.repo.GetByID(ctx, c.ID)
		require.NoError(t, err)
		require.NoError(t, stored.Confirm())
		require.NoError(t, stored.Activate())
		require.NoError(t, fx.repo.UpdateState(ctx, stored, domain.StatePending))

		_, err = fx.booking.UpdateContractDates(ctx, clientID, c.ID, day(20), day(23))
		assert.ErrorIs(t, err, domain.ErrContractNotUpdatable)
	})
}

// Walks a contract through its whole life: booked, confirmed, activated and
// completed by the lifecycle transitions, then frozen.
func TestContractLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	fx := newBookingFixture(t)
	clientID, carID := uuid.New(), uuid.New()
	start := time.Now().UTC().AddDate(0, 0, 1)

	c, err := fx.booking.CreateContract(ctx, clientID, carID, start, start.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, "2000.00 EUR", c.TotalCost.String())

	c, err = fx.booking.ConfirmContract(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateConfirmed, c.State)

	// The scheduler's transitions once the period boundaries pass.
	stored, err := fx.repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.NoError(t, stored.Activate())
	require.NoError(t, fx.repo.UpdateState(ctx, stored, domain.StateConfirmed))

	stored, err = fx.repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.NoError(t, stored.Complete())
	require.NoError(t, fx.repo.UpdateState(ctx, stored, domain.StateActive))

	final, err := fx.booking.GetContract(ctx, clientID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, final.State)

	_, err = fx.booking.UpdateContractDates(ctx, clientID, c.ID, start.AddDate(0, 0, 10), start.AddDate(0, 0, 12))
	assert.ErrorIs(t, err, domain.ErrContractNotUpdatable)

	_, err = fx.booking.GetContract(ctx, uuid.New(), c.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
