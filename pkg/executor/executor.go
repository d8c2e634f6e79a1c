// Package executor turns queued trigger messages into tracked execution
// records: it validates the workflow, resolves secrets, delegates to the
// external step orchestrator and reconciles the reported outcome into a stable
// step-results array.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/conduit/pkg/models"
	"github.com/dukex/conduit/pkg/persistence"
	"github.com/dukex/conduit/pkg/secrets"
	"github.com/dukex/conduit/pkg/steprunner"
)

// ErrWorkflowDisabled is returned when a trigger message targets a disabled
// workflow. Like a missing workflow, this fails the message without creating
// an execution record.
var ErrWorkflowDisabled = errors.New("workflow is disabled")

// Executor processes trigger messages one at a time. Concurrency comes from
// running multiple executors; no ordering is assumed across messages.
type Executor struct {
	workflows  persistence.WorkflowRepository
	executions persistence.ExecutionRepository
	runner     steprunner.Runner
	secrets    secrets.Store
	namespace  string
	logger     *slog.Logger
	now        func() time.Time
}

// New wires an executor. The secrets store is normally a *secrets.Cache; the
// namespace scopes which secrets executions can reference.
func New(
	workflows persistence.WorkflowRepository,
	executions persistence.ExecutionRepository,
	runner steprunner.Runner,
	secretStore secrets.Store,
	namespace string,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		workflows:  workflows,
		executions: executions,
		runner:     runner,
		secrets:    secretStore,
		namespace:  namespace,
		logger:     logger.With("module", "executor"),
		now:        time.Now,
	}
}

// HandleTrigger runs one trigger message to a terminal execution state. A
// returned error means the message should be redelivered per queue policy; a
// reported orchestration failure is recorded on the execution and is not a
// message error.
func (e *Executor) HandleTrigger(ctx context.Context, msg *models.TriggerMessage) (*models.Execution, error) {
	logger := e.logger.With("workflow_id", msg.WorkflowID)

	workflow, err := e.workflows.WorkflowByID(ctx, msg.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", msg.WorkflowID, err)
	}

	if !workflow.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowDisabled, workflow.ID)
	}

	executionID := msg.ExecutionID
	if executionID == "" {
		executionID = models.NewExecutionID()
	}

	logger = logger.With("execution_id", executionID)

	now := e.now().UTC()
	execution := &models.Execution{
		WorkflowID:   workflow.ID,
		ID:           executionID,
		WorkflowName: workflow.Name,
		Status:       models.ExecutionPending,
		TriggerType:  msg.TriggerType,
		TriggerData:  msg.TriggerData,
		Steps:        []models.StepResult{},
		StartedAt:    now,
		UpdatedAt:    now,
		TTL:          models.ExecutionTTL(now),
	}

	err = e.executions.CreateExecution(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution record: %w", err)
	}

	input := &models.ExecutionInput{
		ExecutionID: executionID,
		WorkflowID:  workflow.ID,
		Workflow:    workflow,
		TriggerData: msg.TriggerData,
		Context: models.ExecutionContext{
			Trigger: nonNilMap(msg.TriggerData),
			Steps:   map[string]map[string]any{},
			Secrets: e.resolveSecrets(ctx, logger),
		},
	}

	execution.Status = models.ExecutionRunning
	execution.UpdatedAt = e.now().UTC()

	err = e.executions.UpdateExecution(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to mark execution running: %w", err)
	}

	logger.InfoContext(ctx, "Starting execution", "trigger_type", msg.TriggerType)

	result, err := e.runner.Run(ctx, input)
	if err != nil {
		// Hard invocation failure. Record it, then propagate so the queue's
		// retry/park policy governs redelivery.
		e.finishExecution(ctx, logger, execution, models.ExecutionFailed,
			skippedSteps(workflow), err.Error())

		return execution, fmt.Errorf("step orchestrator invocation failed: %w", err)
	}

	if result.Succeeded() {
		e.finishExecution(ctx, logger, execution, models.ExecutionSuccess,
			successSteps(workflow, result), "")

		return execution, nil
	}

	e.finishExecution(ctx, logger, execution, models.ExecutionFailed,
		failedSteps(workflow, result), result.ErrorMessage())

	return execution, nil
}

// resolveSecrets fetches the namespace's secrets. A fetch failure degrades to
// an empty set: steps that actually need a missing secret fail individually
// and visibly, instead of every execution blocking on a secret-store outage.
func (e *Executor) resolveSecrets(ctx context.Context, logger *slog.Logger) map[string]string {
	values, err := e.secrets.Fetch(ctx, e.namespace)
	if err != nil {
		logger.ErrorContext(ctx, "Secret fetch failed, continuing with empty set", "error", err)

		return map[string]string{}
	}

	return values
}

func (e *Executor) finishExecution(ctx context.Context, logger *slog.Logger, execution *models.Execution, status models.ExecutionStatus, steps []models.StepResult, errMsg string) {
	now := e.now().UTC()

	execution.Status = status
	execution.Steps = steps
	execution.Error = errMsg
	execution.UpdatedAt = now
	execution.FinishedAt = &now

	err := e.executions.UpdateExecution(ctx, execution)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to write terminal execution record", "error", err)

		return
	}

	logger.InfoContext(ctx, "Execution finished", "status", status)
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}

	return m
}

// successSteps reconstructs step results in the workflow's step order,
// attaching each step's reported output. The orchestrator's reporting order is
// irrelevant.
func successSteps(workflow *models.Workflow, result *steprunner.Result) []models.StepResult {
	steps := make([]models.StepResult, 0, len(workflow.Steps))

	for _, step := range workflow.Steps {
		stepResult := models.StepResult{
			StepID: step.ID,
			Name:   step.Name,
			Action: step.Action,
			Status: models.StepSuccess,
		}

		if output, ok := result.Context.Steps[step.ID]; ok {
			stepResult.Output = output
		}

		steps = append(steps, stepResult)
	}

	return steps
}

// failedSteps classifies each step around the failing one: before it success,
// the step itself failed, after it skipped. Without a failing index the
// fallback treats any step with no recorded output as skipped. That is an
// approximation, since a step can legitimately succeed with no output.
func failedSteps(workflow *models.Workflow, result *steprunner.Result) []models.StepResult {
	steps := make([]models.StepResult, 0, len(workflow.Steps))

	for i, step := range workflow.Steps {
		stepResult := models.StepResult{
			StepID: step.ID,
			Name:   step.Name,
			Action: step.Action,
		}

		output, hasOutput := result.Context.Steps[step.ID]
		if hasOutput {
			stepResult.Output = output
		}

		switch {
		case result.FailedStepIndex != nil && i < *result.FailedStepIndex:
			stepResult.Status = models.StepSuccess
		case result.FailedStepIndex != nil && i == *result.FailedStepIndex:
			stepResult.Status = models.StepFailed
			stepResult.Error = result.ErrorMessage()
		case result.FailedStepIndex != nil:
			stepResult.Status = models.StepSkipped
		case hasOutput:
			stepResult.Status = models.StepSuccess
		default:
			stepResult.Status = models.StepSkipped
		}

		steps = append(steps, stepResult)
	}

	return steps
}

// skippedSteps marks every step skipped; used when the orchestrator call
// itself failed and no per-step information exists.
func skippedSteps(workflow *models.Workflow) []models.StepResult {
	steps := make([]models.StepResult, 0, len(workflow.Steps))

	for _, step := range workflow.Steps {
		steps = append(steps, models.StepResult{
			StepID: step.ID,
			Name:   step.Name,
			Action: step.Action,
			Status: models.StepSkipped,
		})
	}

	return steps
}
