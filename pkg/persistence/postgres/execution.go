package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/conduit/pkg/models"
	"github.com/dukex/conduit/pkg/persistence"
)

// ExecutionRepository handles execution-record database operations. Expired
// rows are filtered on read; a periodic DELETE on expires_at is left to
// operational tooling.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// CreateExecution inserts a new execution record.
func (r *ExecutionRepository) CreateExecution(ctx context.Context, execution *models.Execution) error {
	triggerDataJSON, err := json.Marshal(execution.TriggerData)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger data: %w", err)
	}

	stepsJSON, err := json.Marshal(execution.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	query := `
		INSERT INTO executions (
			workflow_id, id, workflow_name, status, trigger_type, trigger_data,
			steps, error_message, started_at, updated_at, finished_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.WorkflowID,
		execution.ID,
		execution.WorkflowName,
		execution.Status,
		execution.TriggerType,
		triggerDataJSON,
		stepsJSON,
		execution.Error,
		execution.StartedAt,
		execution.UpdatedAt,
		execution.FinishedAt,
		time.Unix(execution.TTL, 0).UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create execution %s: %w", execution.ID, err)
	}

	return nil
}

// UpdateExecution updates an existing record. Missing rows are reported, never
// created.
func (r *ExecutionRepository) UpdateExecution(ctx context.Context, execution *models.Execution) error {
	stepsJSON, err := json.Marshal(execution.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	query := `
		UPDATE executions SET
			status = $1,
			steps = $2,
			error_message = $3,
			updated_at = $4,
			finished_at = $5
		WHERE workflow_id = $6 AND id = $7
	`

	result, err := r.db.ExecContext(ctx, query,
		execution.Status,
		stepsJSON,
		execution.Error,
		execution.UpdatedAt,
		execution.FinishedAt,
		execution.WorkflowID,
		execution.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update execution %s: %w", execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrExecutionNotFound
	}

	return nil
}

// ExecutionByID returns a single execution record.
func (r *ExecutionRepository) ExecutionByID(ctx context.Context, workflowID, executionID string) (*models.Execution, error) {
	query := `
		SELECT
			workflow_id
		  , id
		  , workflow_name
		  , status
		  , trigger_type
		  , trigger_data
		  , steps
		  , error_message
		  , started_at
		  , updated_at
		  , finished_at
		  , expires_at
		FROM executions
		WHERE workflow_id = $1 AND id = $2 AND expires_at > NOW()
	`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, workflowID, executionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

// ExecutionsByWorkflow returns executions most recent first. Execution ids are
// time-sortable, so ordering by id descending matches creation order.
func (r *ExecutionRepository) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	query := `
		SELECT
			workflow_id
		  , id
		  , workflow_name
		  , status
		  , trigger_type
		  , trigger_data
		  , steps
		  , error_message
		  , started_at
		  , updated_at
		  , finished_at
		  , expires_at
		FROM executions
		WHERE workflow_id = $1 AND expires_at > NOW()
		ORDER BY id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution       models.Execution
		triggerDataJSON []byte
		stepsJSON       []byte
		errorMessage    sql.NullString
		expiresAt       time.Time
	)

	err := row.Scan(
		&execution.WorkflowID,
		&execution.ID,
		&execution.WorkflowName,
		&execution.Status,
		&execution.TriggerType,
		&triggerDataJSON,
		&stepsJSON,
		&errorMessage,
		&execution.StartedAt,
		&execution.UpdatedAt,
		&execution.FinishedAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}

	if len(triggerDataJSON) > 0 {
		if err := json.Unmarshal(triggerDataJSON, &execution.TriggerData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger data: %w", err)
		}
	}

	if err := json.Unmarshal(stepsJSON, &execution.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}

	execution.Error = errorMessage.String
	execution.TTL = expiresAt.Unix()

	return &execution, nil
}
