// Package reconciler keeps external schedule-registry rules idempotently in
// sync with workflow trigger configuration. Cron and poll triggers each map to
// one rule; manual and webhook triggers have no registry footprint.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/conduit/pkg/models"
)

// Reconciler aligns registry state with workflow state. Safe under retries,
// out-of-order delivery and concurrent calls for the same workflow, because
// every operation is an idempotent upsert or a not-found-tolerant delete.
type Reconciler struct {
	registry Registry
	env      string
	logger   *slog.Logger
}

// New creates a reconciler. The environment name is part of every rule name so
// multiple deployments can share a registry.
func New(registry Registry, env string, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		registry: registry,
		env:      env,
		logger:   logger.With("module", "reconciler"),
	}
}

// RuleName derives the deterministic registry rule name for a workflow and
// trigger kind. Cron and poll use distinct suffixes so the two kinds never
// collide for the same workflow.
func (r *Reconciler) RuleName(workflowID string, kind models.TriggerKind) string {
	suffix := "schedule"
	if kind == models.TriggerPoll {
		suffix = "poll"
	}

	return fmt.Sprintf("conduit-%s-%s-%s", r.env, workflowID, suffix)
}

// CronExpr formats a workflow cron schedule as a registry schedule expression.
func CronExpr(schedule string) string {
	return fmt.Sprintf("cron(%s)", schedule)
}

// RateExpr formats a polling interval as a registry schedule expression.
func RateExpr(minutes int) string {
	return fmt.Sprintf("rate(%d minutes)", minutes)
}

// Target refs understood by the scheduler when a rule fires.
const (
	TargetQueue  = "queue"
	TargetPoller = "poller"
)

// SyncRule reconciles registry rules after a trigger configuration change. The
// old trigger is the configuration before the change (nil when the workflow is
// new); the new trigger is the configuration after it (nil when the workflow
// was deleted). Each kind is evaluated independently because a workflow can
// change kind entirely.
func (r *Reconciler) SyncRule(ctx context.Context, workflowID string, oldTrigger, newTrigger *models.Trigger) Result {
	var result Result

	for _, kind := range []models.TriggerKind{models.TriggerCron, models.TriggerPoll} {
		r.syncKind(ctx, &result, workflowID, kind, oldTrigger, newTrigger)
	}

	return result
}

func (r *Reconciler) syncKind(ctx context.Context, result *Result, workflowID string, kind models.TriggerKind, oldTrigger, newTrigger *models.Trigger) {
	name := r.RuleName(workflowID, kind)
	oldIsKind := oldTrigger != nil && oldTrigger.Kind == kind
	newIsKind := newTrigger != nil && newTrigger.Kind == kind

	switch {
	case newIsKind:
		if err := newTrigger.Validate(); err != nil {
			// Cannot create a live rule from incomplete configuration. The
			// workflow stays persisted without one until corrected.
			r.logger.WarnContext(ctx, "Trigger configuration incomplete, skipping rule",
				"workflow_id", workflowID, "rule", name, "error", err)
			result.record("skip", name, nil)

			return
		}

		r.upsertRule(ctx, result, workflowID, kind, name, newTrigger)
	case oldIsKind:
		r.deleteRule(ctx, result, name)
	}
}

func (r *Reconciler) upsertRule(ctx context.Context, result *Result, workflowID string, kind models.TriggerKind, name string, trigger *models.Trigger) {
	var (
		expr   string
		target *models.RuleTarget
	)

	if kind == models.TriggerCron {
		expr = CronExpr(trigger.Cron.Schedule)
		target = &models.RuleTarget{
			Ref: TargetQueue,
			Payload: map[string]any{
				"workflow_id":  workflowID,
				"trigger_type": string(models.TriggerCron),
			},
		}
	} else {
		expr = RateExpr(trigger.Poll.Interval())
		target = &models.RuleTarget{
			Ref:     TargetPoller,
			Payload: map[string]any{"workflow_id": workflowID},
		}
	}

	err := r.registry.PutRule(ctx, name, expr)
	result.record("put_rule", name, err)

	if err != nil {
		return
	}

	err = r.registry.PutTarget(ctx, name, target)
	result.record("put_target", name, err)
}

func (r *Reconciler) deleteRule(ctx context.Context, result *Result, name string) {
	err := r.registry.RemoveTargets(ctx, name)
	result.record("remove_targets", name, swallowNotFound(err))

	err = r.registry.DeleteRule(ctx, name)
	result.record("delete_rule", name, swallowNotFound(err))
}

// SyncEnabled flips the active flag of the workflow's rule to match the enabled
// state. It never deletes the rule, so disabling stays reversible without
// reconstructing configuration.
func (r *Reconciler) SyncEnabled(ctx context.Context, workflowID string, trigger *models.Trigger, enabled bool) Result {
	var result Result

	if trigger == nil || (trigger.Kind != models.TriggerCron && trigger.Kind != models.TriggerPoll) {
		return result
	}

	name := r.RuleName(workflowID, trigger.Kind)

	if enabled {
		err := r.registry.EnableRule(ctx, name)
		result.record("enable_rule", name, swallowNotFound(err))
	} else {
		err := r.registry.DisableRule(ctx, name)
		result.record("disable_rule", name, swallowNotFound(err))
	}

	return result
}

func swallowNotFound(err error) error {
	if errors.Is(err, ErrRuleNotFound) {
		return nil
	}

	return err
}
