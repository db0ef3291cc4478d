package jobs

import (
	"context"
	"database/sql"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
)

// ActivateConfirmedContracts promotes CONFIRMED contracts whose rental
// period has started to ACTIVE. Idempotent: a contract advanced on one run
// is not selected by the next.
func (jr *JobRunner) ActivateConfirmedContracts() {
	jr.runWithRecovery("ActivateConfirmedContracts", func() {
		jr.advanceDueContracts("activate", jr.store.ListConfirmedDue, (*domain.Contract).Activate)
	})
}

// CompleteActiveContracts promotes ACTIVE contracts whose rental period has
// ended to COMPLETED. Idempotent for the same reason.
func (jr *JobRunner) CompleteActiveContracts() {
	jr.runWithRecovery("CompleteActiveContracts", func() {
		jr.advanceDueContracts("complete", jr.store.ListActiveDue, (*domain.Contract).Complete)
	})
}

// advanceDueContracts runs one batch in a single transaction: select the due
// contracts (row-locked), apply the transition to each, persist, commit. A
// contract whose transition is rejected is skipped and logged; it will be
// re-examined on the next run. A storage error aborts the whole batch so a
// partial failure never leaves some contracts advanced and others not.
func (jr *JobRunner) advanceDueContracts(
	action string,
	listDue func(ctx context.Context, tx *sql.Tx, now time.Time) ([]domain.Contract, error),
	transition func(*domain.Contract) error,
) {
	ctx := context.Background()
	now := time.Now().UTC()

	tx, err := jr.store.BeginTx(ctx)
	if err != nil {
		logger.Error("Failed to begin batch transaction", "action", action, "error", err)
		return
	}
	defer tx.Rollback()

	due, err := listDue(ctx, tx, now)
	if err != nil {
		logger.Error("Failed to load due contracts", "action", action, "error", err)
		return
	}

	advanced := 0
	for i := range due {
		contract := &due[i]
		if err := transition(contract); err != nil {
			logger.Warn("Skipping contract with rejected transition",
				"action", action,
				"contract_id", contract.ID,
				"state", contract.State,
				"error", err)
			continue
		}
		if err := jr.store.UpdateStateTx(ctx, tx, contract); err != nil {
			logger.Error("Failed to persist contract state, aborting batch",
				"action", action,
				"contract_id", contract.ID,
				"error", err)
			return
		}
		advanced++
	}

	if err := tx.Commit(); err != nil {
		logger.Error("Failed to commit batch", "action", action, "error", err)
		return
	}

	logger.Info("Advanced due contracts", "action", action, "count", advanced, "examined", len(due))
}
