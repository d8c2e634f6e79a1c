// Package schedule provides the in-process schedule registry: rules persisted
// through the persistence layer with precomputed next fire times, and a central
// poller that fires due rules without individual timers.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/conduit/pkg/models"
	"github.com/dukex/conduit/pkg/persistence"
	"github.com/dukex/conduit/pkg/reconciler"
)

// Registry implements reconciler.Registry on top of a schedule-rule repository.
// Each rule carries its schedule expression and a precomputed NextDueAt so the
// poller can find due rules with a single list call.
type Registry struct {
	rules persistence.ScheduleRuleRepository
	now   func() time.Time
}

// NewRegistry creates a persistence-backed registry.
func NewRegistry(rules persistence.ScheduleRuleRepository) *Registry {
	return &Registry{rules: rules, now: time.Now}
}

// PutRule creates or updates a rule. New rules start active; updates keep the
// active flag and target. NextDueAt is recomputed from the new expression.
func (r *Registry) PutRule(ctx context.Context, name, scheduleExpr string) error {
	expr, err := ParseExpr(scheduleExpr)
	if err != nil {
		return err
	}

	now := r.now().UTC()

	rule, err := r.rules.ScheduleRuleByName(ctx, name)
	if err != nil {
		if !persistence.IsScheduleRuleNotFound(err) {
			return err
		}

		rule = &models.ScheduleRule{Name: name, Active: true, CreatedAt: now}
	}

	rule.ScheduleExpr = scheduleExpr
	rule.NextDueAt = expr.Next(now)
	rule.UpdatedAt = now

	return r.rules.SaveScheduleRule(ctx, rule)
}

// PutTarget sets what the rule invokes when it fires.
func (r *Registry) PutTarget(ctx context.Context, ruleName string, target *models.RuleTarget) error {
	return r.mutate(ctx, ruleName, func(rule *models.ScheduleRule) {
		rule.Target = target
	})
}

func (r *Registry) EnableRule(ctx context.Context, name string) error {
	return r.mutate(ctx, name, func(rule *models.ScheduleRule) {
		rule.Active = true
	})
}

func (r *Registry) DisableRule(ctx context.Context, name string) error {
	return r.mutate(ctx, name, func(rule *models.ScheduleRule) {
		rule.Active = false
	})
}

func (r *Registry) RemoveTargets(ctx context.Context, ruleName string) error {
	return r.mutate(ctx, ruleName, func(rule *models.ScheduleRule) {
		rule.Target = nil
	})
}

// DeleteRule removes a rule; a missing rule reports ErrRuleNotFound, which the
// reconciler swallows.
func (r *Registry) DeleteRule(ctx context.Context, name string) error {
	_, err := r.rules.ScheduleRuleByName(ctx, name)
	if err != nil {
		if persistence.IsScheduleRuleNotFound(err) {
			return reconciler.ErrRuleNotFound
		}

		return err
	}

	return r.rules.DeleteScheduleRule(ctx, name)
}

func (r *Registry) mutate(ctx context.Context, name string, apply func(*models.ScheduleRule)) error {
	rule, err := r.rules.ScheduleRuleByName(ctx, name)
	if err != nil {
		if persistence.IsScheduleRuleNotFound(err) {
			return reconciler.ErrRuleNotFound
		}

		return fmt.Errorf("failed to load schedule rule %s: %w", name, err)
	}

	apply(rule)
	rule.UpdatedAt = r.now().UTC()

	return r.rules.SaveScheduleRule(ctx, rule)
}
