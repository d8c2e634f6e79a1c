package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/conduit/pkg/models"
	"github.com/dukex/conduit/pkg/persistence"
)

// ScheduleRuleRepository handles schedule-rule database operations.
type ScheduleRuleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// ScheduleRules returns all rules in the registry.
func (r *ScheduleRuleRepository) ScheduleRules(ctx context.Context) ([]*models.ScheduleRule, error) {
	query := `
		SELECT
			name
		  , schedule_expr
		  , active
		  , target
		  , next_due_at
		  , created_at
		  , updated_at
		FROM schedule_rules
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule rules: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	rules := make([]*models.ScheduleRule, 0)

	for rows.Next() {
		rule, err := scanScheduleRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule rule: %w", err)
		}

		rules = append(rules, rule)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating schedule rules: %w", err)
	}

	return rules, nil
}

// ScheduleRuleByName returns a single rule by its name.
func (r *ScheduleRuleRepository) ScheduleRuleByName(ctx context.Context, name string) (*models.ScheduleRule, error) {
	query := `
		SELECT
			name
		  , schedule_expr
		  , active
		  , target
		  , next_due_at
		  , created_at
		  , updated_at
		FROM schedule_rules
		WHERE name = $1
	`

	rule, err := scanScheduleRule(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrScheduleRuleNotFound
		}

		return nil, fmt.Errorf("failed to scan schedule rule: %w", err)
	}

	return rule, nil
}

// SaveScheduleRule upserts a rule.
func (r *ScheduleRuleRepository) SaveScheduleRule(ctx context.Context, rule *models.ScheduleRule) error {
	targetJSON, err := json.Marshal(rule.Target)
	if err != nil {
		return fmt.Errorf("failed to marshal rule target: %w", err)
	}

	query := `
		INSERT INTO schedule_rules (
			name, schedule_expr, active, target, next_due_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name) DO UPDATE SET
			schedule_expr = EXCLUDED.schedule_expr,
			active = EXCLUDED.active,
			target = EXCLUDED.target,
			next_due_at = EXCLUDED.next_due_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		rule.Name,
		rule.ScheduleExpr,
		rule.Active,
		targetJSON,
		rule.NextDueAt,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule rule %s: %w", rule.Name, err)
	}

	return nil
}

// DeleteScheduleRule removes a rule. Deleting a missing rule is a no-op.
func (r *ScheduleRuleRepository) DeleteScheduleRule(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM schedule_rules WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("failed to delete schedule rule %s: %w", name, err)
	}

	return nil
}

func scanScheduleRule(row rowScanner) (*models.ScheduleRule, error) {
	var (
		rule       models.ScheduleRule
		targetJSON []byte
		nextDueAt  sql.NullTime
	)

	err := row.Scan(
		&rule.Name,
		&rule.ScheduleExpr,
		&rule.Active,
		&targetJSON,
		&nextDueAt,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(targetJSON, &rule.Target); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule target: %w", err)
	}

	if nextDueAt.Valid {
		rule.NextDueAt = nextDueAt.Time.UTC()
	}

	return &rule, nil
}
