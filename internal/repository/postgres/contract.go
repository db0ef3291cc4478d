package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// lockNotAvailable is the Postgres error code raised when lock_timeout
// expires while waiting on the car row lock.
const lockNotAvailable = "55P03"

const contractColumns = `id, client_id, car_id, period_start, period_end, cost_amount, cost_currency, state, comment, created_on, updated_on`

type contractRepository struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func NewContractRepository(db *sql.DB, lockTimeout time.Duration) repository.ContractRepository {
	return &contractRepository{db: db, lockTimeout: lockTimeout}
}

// Create persists a new contract. The target car row is locked first, then
// the overlap check and the insert run under that lock, so two concurrent
// bookings for the same car cannot both pass the check.
func (r *contractRepository) Create(ctx context.Context, c *domain.Contract) error {
	if c.ID != uuid.Nil {
		return domain.ErrContractAlreadySaved
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.lockCar(ctx, tx, c.CarID); err != nil {
		return err
	}

	n, err := countOverlapping(ctx, tx, c.CarID, c.Period, uuid.Nil)
	if err != nil {
		return err
	}
	if n > 0 {
		return domain.ErrCarUnavailable
	}

	now := time.Now().UTC()
	id := uuid.New()
	query := `INSERT INTO contracts (id, client_id, car_id, period_start, period_end, duration_minutes,
	                                 cost_amount, cost_currency, state, comment, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = tx.ExecContext(ctx, query,
		id, c.ClientID, c.CarID,
		c.Period.Start(), c.Period.End(), c.Period.DurationMinutes(),
		c.TotalCost.Amount(), c.TotalCost.Currency(),
		c.State, c.Comment, now, now)
	if err != nil {
		return fmt.Errorf("insert contract: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit booking transaction: %w", err)
	}

	// Identity is assigned exactly once, at first persistence.
	c.ID = id
	c.CreatedOn = now
	c.UpdatedOn = now
	return nil
}

func (r *contractRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`
	c, err := scanContract(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrContractNotFound
	}
	return c, err
}

func (r *contractRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE client_id = $1 ORDER BY created_on DESC`
	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectContracts(rows)
}

// UpdateState writes the contract's state and comment, but only if the row is
// still in the state the caller loaded it in. A row changed underneath us is
// reported as a state conflict so the caller can reload and retry. Dates and
// cost are left alone; UpdatePeriod owns those.
func (r *contractRepository) UpdateState(ctx context.Context, c *domain.Contract, from domain.RentalState) error {
	query := `UPDATE contracts SET state = $1, comment = $2, updated_on = $3 WHERE id = $4 AND state = $5`
	res, err := r.db.ExecContext(ctx, query, c.State, c.Comment, time.Now().UTC(), c.ID, from)
	if err != nil {
		return err
	}
	return requireStateMatch(res, c.ID, from)
}

// UpdateStateWithAvailabilityCheck persists a state change for a contract that
// is re-entering the active lifecycle. Its period stopped counting against the
// car while the contract was parked, so the slot may have been re-booked in
// the meantime; the write runs under the car lock and repeats the overlap
// check, excluding the contract's own row.
func (r *contractRepository) UpdateStateWithAvailabilityCheck(ctx context.Context, c *domain.Contract, from domain.RentalState) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.lockCar(ctx, tx, c.CarID); err != nil {
		return err
	}

	n, err := countOverlapping(ctx, tx, c.CarID, c.Period, c.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return domain.ErrCarUnavailable
	}

	query := `UPDATE contracts SET state = $1, comment = $2, updated_on = $3 WHERE id = $4 AND state = $5`
	res, err := tx.ExecContext(ctx, query, c.State, c.Comment, time.Now().UTC(), c.ID, from)
	if err != nil {
		return err
	}
	if err := requireStateMatch(res, c.ID, from); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdatePeriod writes new dates and cost under the same car lock and overlap
// re-check as Create, excluding the contract's own row from the check.
func (r *contractRepository) UpdatePeriod(ctx context.Context, c *domain.Contract) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.lockCar(ctx, tx, c.CarID); err != nil {
		return err
	}

	n, err := countOverlapping(ctx, tx, c.CarID, c.Period, c.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return domain.ErrCarUnavailable
	}

	query := `UPDATE contracts
	          SET period_start = $1, period_end = $2, duration_minutes = $3,
	              cost_amount = $4, cost_currency = $5, updated_on = $6
	          WHERE id = $7 AND state = $8`
	res, err := tx.ExecContext(ctx, query,
		c.Period.Start(), c.Period.End(), c.Period.DurationMinutes(),
		c.TotalCost.Amount(), c.TotalCost.Currency(),
		time.Now().UTC(), c.ID, c.State)
	if err != nil {
		return err
	}
	if err := requireStateMatch(res, c.ID, c.State); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *contractRepository) CountOverlapping(ctx context.Context, carID uuid.UUID, period domain.RentalPeriod, excludeID uuid.UUID) (int, error) {
	return countOverlapping(ctx, r.db, carID, period, excludeID)
}

func (r *contractRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

func (r *contractRepository) ListConfirmedDue(ctx context.Context, tx *sql.Tx, now time.Time) ([]domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts
	          WHERE state = $1 AND period_start < $2
	          ORDER BY period_start FOR UPDATE`
	rows, err := tx.QueryContext(ctx, query, domain.StateConfirmed, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectContracts(rows)
}

func (r *contractRepository) ListActiveDue(ctx context.Context, tx *sql.Tx, now time.Time) ([]domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts
	          WHERE state = $1 AND period_end < $2
	          ORDER BY period_end FOR UPDATE`
	rows, err := tx.QueryContext(ctx, query, domain.StateActive, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectContracts(rows)
}

func (r *contractRepository) UpdateStateTx(ctx context.Context, tx *sql.Tx, c *domain.Contract) error {
	query := `UPDATE contracts SET state = $1, comment = $2, updated_on = $3 WHERE id = $4`
	res, err := tx.ExecContext(ctx, query, c.State, c.Comment, time.Now().UTC(), c.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// lockCar takes a row-level exclusive lock on the car, bounding the wait so
// a contended booking fails fast with a retryable error instead of queuing.
func (r *contractRepository) lockCar(ctx context.Context, tx *sql.Tx, carID uuid.UUID) error {
	timeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
	if _, err := tx.ExecContext(ctx, timeout); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}

	var id uuid.UUID
	err := tx.QueryRowContext(ctx, `SELECT id FROM cars WHERE id = $1 FOR UPDATE`, carID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrCarNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == lockNotAvailable {
		return domain.ErrCarBusy
	}
	if err != nil {
		return fmt.Errorf("lock car %s: %w", carID, err)
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// countOverlapping counts contracts in an active lifecycle state whose
// period shares at least one instant with the given one. Intervals are
// closed: touching endpoints count as overlapping.
func countOverlapping(ctx context.Context, q querier, carID uuid.UUID, period domain.RentalPeriod, excludeID uuid.UUID) (int, error) {
	query := `SELECT count(*) FROM contracts
	          WHERE car_id = $1
	            AND state IN ($2, $3, $4)
	            AND period_end >= $5
	            AND period_start <= $6`
	args := []any{carID, domain.StatePending, domain.StateConfirmed, domain.StateActive, period.Start(), period.End()}
	if excludeID != uuid.Nil {
		query += ` AND id <> $7`
		args = append(args, excludeID)
	}

	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count overlapping contracts: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContract(row rowScanner) (*domain.Contract, error) {
	var (
		c          domain.Contract
		start, end time.Time
		amount     decimal.Decimal
		currency   string
		comment    sql.NullString
	)
	err := row.Scan(&c.ID, &c.ClientID, &c.CarID, &start, &end,
		&amount, &currency, &c.State, &comment, &c.CreatedOn, &c.UpdatedOn)
	if err != nil {
		return nil, err
	}

	period, err := domain.NewRentalPeriod(start, end)
	if err != nil {
		return nil, fmt.Errorf("stored period for contract %s: %w", c.ID, err)
	}
	cost, err := domain.NewMoney(amount, currency)
	if err != nil {
		return nil, fmt.Errorf("stored cost for contract %s: %w", c.ID, err)
	}

	c.Period = period
	c.TotalCost = cost
	c.Comment = comment.String
	return &c, nil
}

func collectContracts(rows *sql.Rows) ([]domain.Contract, error) {
	var contracts []domain.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, *c)
	}
	return contracts, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrContractNotFound
	}
	return nil
}

func requireStateMatch(res sql.Result, id uuid.UUID, from domain.RentalState) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: contract %s is no longer %s", domain.ErrInvalidContractState, id, from)
	}
	return nil
}
