// Package persistence provides the data storage abstraction for workflows,
// executions, poll state and schedule rules.
package persistence

import (
	"context"

	"github.com/dukex/conduit/pkg/models"
)

// WorkflowRepository reads and updates workflow definitions. The execution
// engine only ever flips the enabled flag; full CRUD belongs to the API layer.
type WorkflowRepository interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	SetWorkflowEnabled(ctx context.Context, id string, enabled bool) error
}

// ExecutionRepository stores execution records. Updates are conditional on the
// record existing so they are safe against concurrent deletion.
type ExecutionRepository interface {
	CreateExecution(ctx context.Context, execution *models.Execution) error
	UpdateExecution(ctx context.Context, execution *models.Execution) error
	ExecutionByID(ctx context.Context, workflowID, executionID string) (*models.Execution, error)
	// ExecutionsByWorkflow returns executions most recent first.
	ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error)
}

// PollStateRepository stores per-workflow polling bookkeeping.
type PollStateRepository interface {
	PollState(ctx context.Context, workflowID string) (*models.PollState, error)
	SavePollState(ctx context.Context, state *models.PollState) error
}

// ScheduleRuleRepository stores schedule-registry rule definitions.
// DeleteScheduleRule of a missing rule is a no-op.
type ScheduleRuleRepository interface {
	ScheduleRules(ctx context.Context) ([]*models.ScheduleRule, error)
	ScheduleRuleByName(ctx context.Context, name string) (*models.ScheduleRule, error)
	SaveScheduleRule(ctx context.Context, rule *models.ScheduleRule) error
	DeleteScheduleRule(ctx context.Context, name string) error
}

// Persistence aggregates the repositories of a single backend.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	PollStateRepository() PollStateRepository
	ScheduleRuleRepository() ScheduleRuleRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
