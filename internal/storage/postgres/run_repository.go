package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

type runRepository struct {
	db *sql.DB
}

// NewRunRepository создаёт PostgreSQL-реализацию RunRepository.
func NewRunRepository(store *Store) domain.RunRepository {
	return &runRepository{db: store.DB()}
}

func (r *runRepository) Create(run domain.ProvisioningRun) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Частичный уникальный индекс по (order_id) WHERE outcome='pending'
	// превращает второй параллельный Create в unique violation.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO provisioning_runs (
			id, order_id, outcome, failed_step, last_error, version, started_at, finished_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		run.ID, run.OrderID, string(run.Outcome), string(run.FailedStep),
		run.LastError, run.Version, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrRunAlreadyActive
		}
		return fmt.Errorf("insert provisioning run: %w", err)
	}

	for i, step := range run.Steps {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO provisioning_steps (
				run_id, position, name, status, attempts, last_error, external_ref
			) VALUES ($1,$2,$3,$4,$5,$6,$7)
		`,
			run.ID, i, string(step.Name), string(step.Status),
			step.Attempts, step.LastError, step.ExternalRef,
		); err != nil {
			return fmt.Errorf("insert provisioning step: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create run: %w", err)
	}

	return nil
}

func (r *runRepository) Get(id string) (domain.ProvisioningRun, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.getByQuery(ctx, `
		SELECT id, order_id, outcome, failed_step, last_error, version, started_at, finished_at
		FROM provisioning_runs
		WHERE id = $1
	`, id)
}

func (r *runRepository) GetActiveByOrder(orderID string) (domain.ProvisioningRun, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.getByQuery(ctx, `
		SELECT id, order_id, outcome, failed_step, last_error, version, started_at, finished_at
		FROM provisioning_runs
		WHERE order_id = $1
		  AND outcome = 'pending'
	`, orderID)
}

func (r *runRepository) getByQuery(ctx context.Context, query, arg string) (domain.ProvisioningRun, error) {
	var (
		run        domain.ProvisioningRun
		outcome    string
		failedStep string
		finishedAt sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&run.ID, &run.OrderID, &outcome, &failedStep,
		&run.LastError, &run.Version, &run.StartedAt, &finishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ProvisioningRun{}, domain.ErrRunNotFound
		}
		return domain.ProvisioningRun{}, fmt.Errorf("select provisioning run: %w", err)
	}
	run.Outcome = domain.RunOutcome(outcome)
	run.FailedStep = domain.StepName(failedStep)
	if finishedAt.Valid {
		t := finishedAt.Time.UTC()
		run.FinishedAt = &t
	}

	steps, err := r.loadSteps(ctx, run.ID)
	if err != nil {
		return domain.ProvisioningRun{}, err
	}
	run.Steps = steps

	return run, nil
}

func (r *runRepository) Save(run domain.ProvisioningRun) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE provisioning_runs
		SET outcome = $1,
		    failed_step = $2,
		    last_error = $3,
		    version = version + 1,
		    finished_at = $4
		WHERE id = $5
		  AND version = $6
	`,
		string(run.Outcome), string(run.FailedStep), run.LastError,
		run.FinishedAt, run.ID, run.Version,
	)
	if err != nil {
		return fmt.Errorf("update provisioning run: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, checkErr := r.runExistsTx(ctx, tx, run.ID)
		if checkErr != nil {
			err = checkErr
			return err
		}
		if !exists {
			err = domain.ErrRunNotFound
			return err
		}
		err = domain.ErrRunVersionConflict
		return err
	}

	for i, step := range run.Steps {
		if _, err = tx.ExecContext(ctx, `
			UPDATE provisioning_steps
			SET position = $3,
			    status = $4,
			    attempts = $5,
			    last_error = $6,
			    external_ref = $7
			WHERE run_id = $1
			  AND name = $2
		`,
			run.ID, string(step.Name), i, string(step.Status),
			step.Attempts, step.LastError, step.ExternalRef,
		); err != nil {
			return fmt.Errorf("update provisioning step: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save run: %w", err)
	}

	return nil
}

func (r *runRepository) loadSteps(ctx context.Context, runID string) ([]domain.StepRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, status, attempts, last_error, external_ref
		FROM provisioning_steps
		WHERE run_id = $1
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("load provisioning steps: %w", err)
	}
	defer rows.Close()

	steps := make([]domain.StepRecord, 0, len(domain.StepOrder))
	for rows.Next() {
		var (
			step   domain.StepRecord
			name   string
			status string
		)
		if err := rows.Scan(&name, &status, &step.Attempts, &step.LastError, &step.ExternalRef); err != nil {
			return nil, fmt.Errorf("scan provisioning step: %w", err)
		}
		step.Name = domain.StepName(name)
		step.Status = domain.StepStatus(status)
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provisioning steps: %w", err)
	}

	return steps, nil
}

func (r *runRepository) runExistsTx(ctx context.Context, tx *sql.Tx, runID string) (bool, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM provisioning_runs WHERE id = $1`, runID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check run exists: %w", err)
}

var _ domain.RunRepository = (*runRepository)(nil)
