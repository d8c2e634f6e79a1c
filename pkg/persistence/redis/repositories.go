package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dukex/conduit/pkg/models"
	"github.com/dukex/conduit/pkg/persistence"
)

// WorkflowRepository stores workflows under conduit:workflows:<id> with a set
// index for listing.
type WorkflowRepository struct {
	client goredis.UniversalClient
}

func workflowKey(id string) string { return buildKey("workflows", id) }

func workflowIndexKey() string { return buildKey("workflows", "index") }

func (r *WorkflowRepository) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	ids, err := r.client.SMembers(ctx, workflowIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := r.WorkflowByID(ctx, id)
		if err != nil {
			if persistence.IsWorkflowNotFound(err) {
				continue
			}

			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

func (r *WorkflowRepository) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	data, err := r.client.Get(ctx, workflowKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to get workflow %s: %w", id, err)
	}

	var workflow models.Workflow
	if err := json.Unmarshal(data, &workflow); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", id, err)
	}

	return &workflow, nil
}

func (r *WorkflowRepository) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	workflow.UpdatedAt = time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = workflow.UpdatedAt
	}

	data, err := json.Marshal(workflow)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, workflowKey(workflow.ID), data, 0)
	pipe.SAdd(ctx, workflowIndexKey(), workflow.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) SetWorkflowEnabled(ctx context.Context, id string, enabled bool) error {
	workflow, err := r.WorkflowByID(ctx, id)
	if err != nil {
		return err
	}

	workflow.Enabled = enabled

	return r.SaveWorkflow(ctx, workflow)
}

// ExecutionRepository stores executions under conduit:executions:<wf>:<id>
// with per-workflow set indexes. Keys expire at the record's TTL.
type ExecutionRepository struct {
	client goredis.UniversalClient
}

func executionKey(workflowID, executionID string) string {
	return buildKey("executions", workflowID, executionID)
}

func executionIndexKey(workflowID string) string {
	return buildKey("executions", workflowID, "index")
}

func (r *ExecutionRepository) CreateExecution(ctx context.Context, execution *models.Execution) error {
	data, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", execution.ID, err)
	}

	expiry := time.Unix(execution.TTL, 0)

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, executionKey(execution.WorkflowID, execution.ID), data, 0)
	pipe.ExpireAt(ctx, executionKey(execution.WorkflowID, execution.ID), expiry)
	pipe.SAdd(ctx, executionIndexKey(execution.WorkflowID), execution.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create execution %s: %w", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) UpdateExecution(ctx context.Context, execution *models.Execution) error {
	data, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", execution.ID, err)
	}

	// SET XX with KeepTTL: the write only lands when the record still exists
	// and preserves the remaining retention window.
	set, err := r.client.SetArgs(ctx, executionKey(execution.WorkflowID, execution.ID), data, goredis.SetArgs{
		Mode:    "XX",
		KeepTTL: true,
	}).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("failed to update execution %s: %w", execution.ID, err)
	}

	if set == "" {
		return persistence.ErrExecutionNotFound
	}

	return nil
}

func (r *ExecutionRepository) ExecutionByID(ctx context.Context, workflowID, executionID string) (*models.Execution, error) {
	data, err := r.client.Get(ctx, executionKey(workflowID, executionID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to get execution %s: %w", executionID, err)
	}

	var execution models.Execution
	if err := json.Unmarshal(data, &execution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", executionID, err)
	}

	return &execution, nil
}

func (r *ExecutionRepository) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	ids, err := r.client.SMembers(ctx, executionIndexKey(workflowID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list executions for workflow %s: %w", workflowID, err)
	}

	executions := make([]*models.Execution, 0, len(ids))

	for _, id := range ids {
		execution, err := r.ExecutionByID(ctx, workflowID, id)
		if err != nil {
			// Expired records linger in the index until observed here.
			if persistence.IsExecutionNotFound(err) {
				r.client.SRem(ctx, executionIndexKey(workflowID), id)

				continue
			}

			return nil, err
		}

		executions = append(executions, execution)
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].ID > executions[j].ID
	})

	return executions, nil
}

// PollStateRepository stores poll state under conduit:poll_states:<wf>.
type PollStateRepository struct {
	client goredis.UniversalClient
}

func pollStateKey(workflowID string) string { return buildKey("poll_states", workflowID) }

func (r *PollStateRepository) PollState(ctx context.Context, workflowID string) (*models.PollState, error) {
	data, err := r.client.Get(ctx, pollStateKey(workflowID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.ErrPollStateNotFound
		}

		return nil, fmt.Errorf("failed to get poll state %s: %w", workflowID, err)
	}

	var state models.PollState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal poll state %s: %w", workflowID, err)
	}

	return &state, nil
}

func (r *PollStateRepository) SavePollState(ctx context.Context, state *models.PollState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal poll state %s: %w", state.WorkflowID, err)
	}

	if err := r.client.Set(ctx, pollStateKey(state.WorkflowID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save poll state %s: %w", state.WorkflowID, err)
	}

	return nil
}

// ScheduleRuleRepository stores schedule rules under conduit:schedule_rules:<name>.
type ScheduleRuleRepository struct {
	client goredis.UniversalClient
}

func scheduleRuleKey(name string) string { return buildKey("schedule_rules", name) }

func scheduleRuleIndexKey() string { return buildKey("schedule_rules", "index") }

func (r *ScheduleRuleRepository) ScheduleRules(ctx context.Context) ([]*models.ScheduleRule, error) {
	names, err := r.client.SMembers(ctx, scheduleRuleIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule rules: %w", err)
	}

	rules := make([]*models.ScheduleRule, 0, len(names))

	for _, name := range names {
		rule, err := r.ScheduleRuleByName(ctx, name)
		if err != nil {
			if persistence.IsScheduleRuleNotFound(err) {
				continue
			}

			return nil, err
		}

		rules = append(rules, rule)
	}

	return rules, nil
}

func (r *ScheduleRuleRepository) ScheduleRuleByName(ctx context.Context, name string) (*models.ScheduleRule, error) {
	data, err := r.client.Get(ctx, scheduleRuleKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.ErrScheduleRuleNotFound
		}

		return nil, fmt.Errorf("failed to get schedule rule %s: %w", name, err)
	}

	var rule models.ScheduleRule
	if err := json.Unmarshal(data, &rule); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schedule rule %s: %w", name, err)
	}

	return &rule, nil
}

func (r *ScheduleRuleRepository) SaveScheduleRule(ctx context.Context, rule *models.ScheduleRule) error {
	data, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule rule %s: %w", rule.Name, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, scheduleRuleKey(rule.Name), data, 0)
	pipe.SAdd(ctx, scheduleRuleIndexKey(), rule.Name)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save schedule rule %s: %w", rule.Name, err)
	}

	return nil
}

func (r *ScheduleRuleRepository) DeleteScheduleRule(ctx context.Context, name string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, scheduleRuleKey(name))
	pipe.SRem(ctx, scheduleRuleIndexKey(), name)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete schedule rule %s: %w", name, err)
	}

	return nil
}
