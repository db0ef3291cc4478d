package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type RentalState string

const (
	StatePending               RentalState = "PENDING"
	StateConfirmed             RentalState = "CONFIRMED"
	StateActive                RentalState = "ACTIVE"
	StateCancellationRequested RentalState = "CANCELLATION_REQUESTED"
	StateCompleted             RentalState = "COMPLETED"
	StateCancelled             RentalState = "CANCELLED"
)

// stateRule describes where a state may go and whether the contract's dates
// and cost may still be changed while in it.
type stateRule struct {
	next      []RentalState
	updatable bool
}

var stateRules = map[RentalState]stateRule{
	StatePending:               {next: []RentalState{StateConfirmed, StateCancellationRequested}, updatable: true},
	StateConfirmed:             {next: []RentalState{StateActive, StateCancellationRequested}, updatable: true},
	StateActive:                {next: []RentalState{StateCompleted, StateCancellationRequested}},
	StateCancellationRequested: {next: []RentalState{StateCancelled, StateActive}},
	StateCompleted:             {},
	StateCancelled:             {},
}

// Valid reports whether s is a known lifecycle state.
func (s RentalState) Valid() bool {
	_, ok := stateRules[s]
	return ok
}

// CanTransitionTo reports whether target is reachable from s in one step.
func (s RentalState) CanTransitionTo(target RentalState) bool {
	for _, next := range stateRules[s].next {
		if next == target {
			return true
		}
	}
	return false
}

// IsUpdatable reports whether dates and cost may be changed while in s.
func (s RentalState) IsUpdatable() bool { return stateRules[s].updatable }

// IsTerminal reports an end-of-life state with no outgoing transitions.
func (s RentalState) IsTerminal() bool { return len(stateRules[s].next) == 0 }

// Contract is the booking aggregate root. ID is uuid.Nil until the contract
// is first persisted and never changes afterwards. All state changes go
// through the transition table; TotalCost is always recomputed from the
// period and the daily rate, never adjusted in place.
type Contract struct {
	ID        uuid.UUID
	ClientID  uuid.UUID
	CarID     uuid.UUID
	Period    RentalPeriod
	TotalCost Money
	State     RentalState
	Comment   string
	CreatedOn time.Time
	UpdatedOn time.Time
}

// NewContract creates a PENDING contract with its cost snapshotted from the
// car's current daily rate.
func NewContract(clientID, carID uuid.UUID, period RentalPeriod, dailyRate Money) (*Contract, error) {
	cost, err := dailyRate.Multiply(period.DurationDays())
	if err != nil {
		return nil, err
	}
	return &Contract{
		ClientID:  clientID,
		CarID:     carID,
		Period:    period,
		TotalCost: cost,
		State:     StatePending,
	}, nil
}

func (c *Contract) Confirm() error  { return c.transitionTo(StateConfirmed) }
func (c *Contract) Activate() error { return c.transitionTo(StateActive) }
func (c *Contract) Complete() error { return c.transitionTo(StateCompleted) }
func (c *Contract) Cancel() error   { return c.transitionTo(StateCancelled) }

func (c *Contract) RequestCancellation() error {
	return c.transitionTo(StateCancellationRequested)
}

// UpdateDates replaces the rental period and recomputes the total cost from
// the supplied daily rate. Only allowed while the current state is updatable.
func (c *Contract) UpdateDates(period RentalPeriod, dailyRate Money) error {
	if !c.State.IsUpdatable() {
		return fmt.Errorf("%w: state %s", ErrContractNotUpdatable, c.State)
	}
	cost, err := dailyRate.Multiply(period.DurationDays())
	if err != nil {
		return err
	}
	c.Period = period
	c.TotalCost = cost
	return nil
}

func (c *Contract) transitionTo(target RentalState) error {
	if !c.State.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidContractState, c.State, target)
	}
	c.State = target
	return nil
}
