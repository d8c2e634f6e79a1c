package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukex/conduit/pkg/models"
	"github.com/dukex/conduit/pkg/persistence"
)

// PollStateRepository handles poll-state database operations.
type PollStateRepository struct {
	db *sql.DB
}

// PollState returns the polling bookkeeping for a workflow.
func (r *PollStateRepository) PollState(ctx context.Context, workflowID string) (*models.PollState, error) {
	query := `
		SELECT
			workflow_id
		  , seen_item_ids
		  , last_content_hash
		  , last_checked_at
		  , consecutive_failures
		  , last_error
		FROM poll_states
		WHERE workflow_id = $1
	`

	var (
		state       models.PollState
		seenJSON    []byte
		contentHash sql.NullString
		checkedAt   sql.NullTime
		lastError   sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, workflowID).Scan(
		&state.WorkflowID,
		&seenJSON,
		&contentHash,
		&checkedAt,
		&state.ConsecutiveFailures,
		&lastError,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrPollStateNotFound
		}

		return nil, fmt.Errorf("failed to query poll state %s: %w", workflowID, err)
	}

	if err := json.Unmarshal(seenJSON, &state.SeenItemIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal seen item ids: %w", err)
	}

	state.LastContentHash = contentHash.String
	state.LastCheckedAt = checkedAt.Time
	state.LastError = lastError.String

	return &state, nil
}

// SavePollState upserts the polling bookkeeping for a workflow.
func (r *PollStateRepository) SavePollState(ctx context.Context, state *models.PollState) error {
	seenJSON, err := json.Marshal(state.SeenItemIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal seen item ids: %w", err)
	}

	query := `
		INSERT INTO poll_states (
			workflow_id, seen_item_ids, last_content_hash, last_checked_at,
			consecutive_failures, last_error
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (workflow_id) DO UPDATE SET
			seen_item_ids = EXCLUDED.seen_item_ids,
			last_content_hash = EXCLUDED.last_content_hash,
			last_checked_at = EXCLUDED.last_checked_at,
			consecutive_failures = EXCLUDED.consecutive_failures,
			last_error = EXCLUDED.last_error
	`

	_, err = r.db.ExecContext(ctx, query,
		state.WorkflowID,
		seenJSON,
		state.LastContentHash,
		state.LastCheckedAt,
		state.ConsecutiveFailures,
		state.LastError,
	)
	if err != nil {
		return fmt.Errorf("failed to save poll state %s: %w", state.WorkflowID, err)
	}

	return nil
}
