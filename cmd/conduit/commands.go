package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	cli "github.com/urfave/cli/v3"

	"github.com/dukex/conduit/pkg/cmd"
	"github.com/dukex/conduit/pkg/interpolate"
	"github.com/dukex/conduit/pkg/log"
	"github.com/dukex/conduit/pkg/models"
	"github.com/dukex/conduit/pkg/reconciler"
	"github.com/dukex/conduit/pkg/schedule"
)

// TriggerWorkflow publishes a manual trigger message for a workflow. The
// worker assigns and records the execution; the id is printed so the result
// can be looked up.
func TriggerWorkflow(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("conduit-cli")

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := persistence.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	workflowID := command.String("workflow-id")

	workflow, err := persistence.WorkflowRepository().WorkflowByID(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
	}

	if !workflow.Enabled {
		return fmt.Errorf("workflow %s is disabled", workflowID)
	}

	triggerData := map[string]any{}
	if raw := command.String("data"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &triggerData); err != nil {
			return fmt.Errorf("--data must be a JSON object: %w", err)
		}
	}

	triggerQueue, err := cmd.NewQueue(command.String("queue-transport"), "conduit-cli", logger)
	if err != nil {
		return err
	}

	defer func() {
		err := triggerQueue.Close()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close trigger queue", "error", err)
		}
	}()

	msg := &models.TriggerMessage{
		WorkflowID:  workflow.ID,
		ExecutionID: models.NewExecutionID(),
		TriggerType: models.TriggerManual,
		TriggerData: triggerData,
	}

	err = triggerQueue.Publish(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to publish trigger: %w", err)
	}

	fmt.Printf("Triggered workflow %s (execution %s)\n", workflow.ID, msg.ExecutionID)

	return nil
}

// ValidateWorkflows checks every stored workflow definition and reports the
// problems found. A non-zero exit means at least one workflow is invalid.
func ValidateWorkflows(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("conduit-cli")

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := persistence.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	workflows, err := persistence.WorkflowRepository().Workflows(ctx)
	if err != nil {
		return fmt.Errorf("failed to list workflows: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	invalid := 0

	for _, workflow := range workflows {
		var problems []string

		if err := validate.Struct(workflow); err != nil {
			problems = append(problems, err.Error())
		}

		if err := workflow.Trigger.Validate(); err != nil {
			problems = append(problems, err.Error())
		}

		for _, step := range workflow.Steps {
			if err := interpolate.Check(step.Config); err != nil {
				problems = append(problems, fmt.Sprintf("step %s: %s", step.ID, err))
			}
		}

		if len(problems) == 0 {
			fmt.Printf("OK   %s (%s)\n", workflow.ID, workflow.Name)

			continue
		}

		invalid++

		fmt.Printf("FAIL %s (%s)\n", workflow.ID, workflow.Name)

		for _, problem := range problems {
			fmt.Printf("     %s\n", problem)
		}
	}

	fmt.Printf("Validated %d workflows, %d invalid\n", len(workflows), invalid)

	if invalid > 0 {
		return fmt.Errorf("%d invalid workflows", invalid)
	}

	return nil
}

// ReconcileRules rebuilds the schedule-rule registry from the stored workflow
// triggers. Useful after restoring a database or changing environments.
func ReconcileRules(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("conduit-cli")

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := persistence.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	workflows, err := persistence.WorkflowRepository().Workflows(ctx)
	if err != nil {
		return fmt.Errorf("failed to list workflows: %w", err)
	}

	registry := schedule.NewRegistry(persistence.ScheduleRuleRepository())
	syncer := reconciler.New(registry, command.String("environment"), logger)
	failed := 0

	for _, workflow := range workflows {
		trigger := workflow.Trigger

		result := syncer.SyncRule(ctx, workflow.ID, nil, &trigger)
		if result.Err() != nil {
			failed++

			logger.ErrorContext(ctx, "Failed to reconcile workflow rules",
				"workflow_id", workflow.ID, "error", result.Err())

			continue
		}

		if !workflow.Enabled {
			result = syncer.SyncEnabled(ctx, workflow.ID, &trigger, false)
			if result.Err() != nil {
				failed++

				logger.ErrorContext(ctx, "Failed to disable workflow rules",
					"workflow_id", workflow.ID, "error", result.Err())

				continue
			}
		}

		fmt.Printf("Reconciled %s\n", workflow.ID)
	}

	if failed > 0 {
		return fmt.Errorf("failed to reconcile %d workflows", failed)
	}

	return nil
}
