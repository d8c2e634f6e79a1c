package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/conduit/pkg/models"
	"github.com/dukex/conduit/pkg/poller"
	"github.com/dukex/conduit/pkg/reconciler"
)

// Publisher enqueues trigger messages for fired cron rules.
type Publisher interface {
	Publish(ctx context.Context, msg *models.TriggerMessage) error
}

// Dispatcher routes fired schedule rules to their targets: cron rules publish
// a trigger message, poll rules run a change-detection pass in-process.
type Dispatcher struct {
	publisher Publisher
	poller    *poller.Poller
	logger    *slog.Logger
}

func NewDispatcher(publisher Publisher, changePoller *poller.Poller, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		poller:    changePoller,
		logger:    logger.With("module", "dispatcher"),
	}
}

// Fire handles one due rule. Errors propagate so the scheduler retries the
// rule on the next tick.
func (d *Dispatcher) Fire(ctx context.Context, rule *models.ScheduleRule) error {
	if rule.Target == nil {
		d.logger.WarnContext(ctx, "Rule has no target, skipping", "rule", rule.Name)

		return nil
	}

	workflowID, _ := rule.Target.Payload["workflow_id"].(string)
	if workflowID == "" {
		d.logger.WarnContext(ctx, "Rule target carries no workflow id, skipping", "rule", rule.Name)

		return nil
	}

	switch rule.Target.Ref {
	case reconciler.TargetQueue:
		msg := &models.TriggerMessage{
			WorkflowID:  workflowID,
			TriggerType: models.TriggerCron,
			TriggerData: map[string]any{
				"rule_name": rule.Name,
				"fired_at":  rule.NextDueAt,
			},
		}

		err := d.publisher.Publish(ctx, msg)
		if err != nil {
			return fmt.Errorf("failed to publish cron trigger: %w", err)
		}

		return nil
	case reconciler.TargetPoller:
		return d.poller.Poll(ctx, workflowID)
	default:
		d.logger.WarnContext(ctx, "Rule has unknown target, skipping",
			"rule", rule.Name, "target", rule.Target.Ref)

		return nil
	}
}
