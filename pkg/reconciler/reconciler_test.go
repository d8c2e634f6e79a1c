package reconciler_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/conduit/pkg/models"
	"github.com/dukex/conduit/pkg/reconciler"
)

// fakeRegistry is an in-memory registry with EventBridge-like semantics:
// operations on missing rules return ErrRuleNotFound.
type fakeRegistry struct {
	rules   map[string]*fakeRule
	actions []string
}

type fakeRule struct {
	expr   string
	active bool
	target *models.RuleTarget
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{rules: make(map[string]*fakeRule)}
}

func (f *fakeRegistry) PutRule(_ context.Context, name, expr string) error {
	f.actions = append(f.actions, "put_rule:"+name)

	if rule, ok := f.rules[name]; ok {
		rule.expr = expr

		return nil
	}

	f.rules[name] = &fakeRule{expr: expr, active: true}

	return nil
}

func (f *fakeRegistry) PutTarget(_ context.Context, name string, target *models.RuleTarget) error {
	f.actions = append(f.actions, "put_target:"+name)

	rule, ok := f.rules[name]
	if !ok {
		return reconciler.ErrRuleNotFound
	}

	rule.target = target

	return nil
}

func (f *fakeRegistry) EnableRule(_ context.Context, name string) error {
	rule, ok := f.rules[name]
	if !ok {
		return reconciler.ErrRuleNotFound
	}

	rule.active = true

	return nil
}

func (f *fakeRegistry) DisableRule(_ context.Context, name string) error {
	rule, ok := f.rules[name]
	if !ok {
		return reconciler.ErrRuleNotFound
	}

	rule.active = false

	return nil
}

func (f *fakeRegistry) RemoveTargets(_ context.Context, name string) error {
	rule, ok := f.rules[name]
	if !ok {
		return reconciler.ErrRuleNotFound
	}

	rule.target = nil

	return nil
}

func (f *fakeRegistry) DeleteRule(_ context.Context, name string) error {
	if _, ok := f.rules[name]; !ok {
		return reconciler.ErrRuleNotFound
	}

	delete(f.rules, name)

	return nil
}

func newReconciler(registry reconciler.Registry) *reconciler.Reconciler {
	return reconciler.New(registry, "test", slog.Default())
}

func cronTrigger(schedule string) *models.Trigger {
	return &models.Trigger{Kind: models.TriggerCron, Cron: &models.CronConfig{Schedule: schedule}}
}

func pollTrigger(url string, interval int) *models.Trigger {
	return &models.Trigger{Kind: models.TriggerPoll, Poll: &models.PollConfig{
		URL:             url,
		ContentType:     models.PollContentRSS,
		IntervalMinutes: interval,
	}}
}

func TestSyncRule_CreatesCronRule(t *testing.T) {
	registry := newFakeRegistry()
	r := newReconciler(registry)

	result := r.SyncRule(context.Background(), "wf-1", nil, cronTrigger("0 9 * * *"))
	require.True(t, result.OK())

	rule := registry.rules["conduit-test-wf-1-schedule"]
	require.NotNil(t, rule)
	assert.Equal(t, "cron(0 9 * * *)", rule.expr)
	assert.True(t, rule.active)
	require.NotNil(t, rule.target)
	assert.Equal(t, reconciler.TargetQueue, rule.target.Ref)
	assert.Equal(t, "wf-1", rule.target.Payload["workflow_id"])
}

func TestSyncRule_CreatesPollRuleWithIntervalFloor(t *testing.T) {
	registry := newFakeRegistry()
	r := newReconciler(registry)

	result := r.SyncRule(context.Background(), "wf-1", nil, pollTrigger("https://example.com/feed", 1))
	require.True(t, result.OK())

	rule := registry.rules["conduit-test-wf-1-poll"]
	require.NotNil(t, rule)
	// Requested interval of 1 minute is raised to the 5-minute floor.
	assert.Equal(t, "rate(5 minutes)", rule.expr)
	require.NotNil(t, rule.target)
	assert.Equal(t, reconciler.TargetPoller, rule.target.Ref)
}

func TestSyncRule_IsIdempotent(t *testing.T) {
	registry := newFakeRegistry()
	r := newReconciler(registry)
	trigger := cronTrigger("0 9 * * *")

	result := r.SyncRule(context.Background(), "wf-1", nil, trigger)
	require.True(t, result.OK())

	result = r.SyncRule(context.Background(), "wf-1", trigger, trigger)
	require.True(t, result.OK())

	assert.Len(t, registry.rules, 1)
}

func TestSyncRule_KindChangeDeletesOldRule(t *testing.T) {
	registry := newFakeRegistry()
	r := newReconciler(registry)

	oldTrigger := cronTrigger("0 9 * * *")
	result := r.SyncRule(context.Background(), "wf-1", nil, oldTrigger)
	require.True(t, result.OK())

	newTrigger := pollTrigger("https://example.com/feed", 10)
	result = r.SyncRule(context.Background(), "wf-1", oldTrigger, newTrigger)
	require.True(t, result.OK())

	assert.NotContains(t, registry.rules, "conduit-test-wf-1-schedule")
	assert.Contains(t, registry.rules, "conduit-test-wf-1-poll")
}

func TestSyncRule_RemovedTriggerDeletesRule(t *testing.T) {
	registry := newFakeRegistry()
	r := newReconciler(registry)

	trigger := pollTrigger("https://example.com/feed", 10)
	result := r.SyncRule(context.Background(), "wf-1", nil, trigger)
	require.True(t, result.OK())

	result = r.SyncRule(context.Background(), "wf-1", trigger, nil)
	require.True(t, result.OK())

	assert.Empty(t, registry.rules)
}

func TestSyncRule_DeleteOfMissingRuleIsSwallowed(t *testing.T) {
	registry := newFakeRegistry()
	r := newReconciler(registry)

	// Rule was never created (or a prior partial failure removed it).
	result := r.SyncRule(context.Background(), "wf-1", cronTrigger("0 9 * * *"), nil)
	require.True(t, result.OK())
}

func TestSyncRule_IncompleteConfigSkipsCreation(t *testing.T) {
	registry := newFakeRegistry()
	r := newReconciler(registry)

	incomplete := &models.Trigger{Kind: models.TriggerCron, Cron: &models.CronConfig{}}

	result := r.SyncRule(context.Background(), "wf-1", nil, incomplete)
	require.True(t, result.OK())
	assert.Empty(t, registry.rules)
}

func TestSyncRule_ManualTriggerIsNoOp(t *testing.T) {
	registry := newFakeRegistry()
	r := newReconciler(registry)

	result := r.SyncRule(context.Background(), "wf-1", nil, &models.Trigger{Kind: models.TriggerManual})
	require.True(t, result.OK())
	assert.Empty(t, registry.actions)
}

func TestSyncEnabled_FlipsActiveWithoutDeleting(t *testing.T) {
	registry := newFakeRegistry()
	r := newReconciler(registry)
	trigger := cronTrigger("0 9 * * *")

	result := r.SyncRule(context.Background(), "wf-1", nil, trigger)
	require.True(t, result.OK())

	result = r.SyncEnabled(context.Background(), "wf-1", trigger, false)
	require.True(t, result.OK())

	rule := registry.rules["conduit-test-wf-1-schedule"]
	require.NotNil(t, rule)
	assert.False(t, rule.active)
	// Definition survives disabling.
	assert.Equal(t, "cron(0 9 * * *)", rule.expr)
	assert.NotNil(t, rule.target)

	result = r.SyncEnabled(context.Background(), "wf-1", trigger, true)
	require.True(t, result.OK())
	assert.True(t, rule.active)
}

func TestSyncEnabled_MissingRuleIsSwallowed(t *testing.T) {
	registry := newFakeRegistry()
	r := newReconciler(registry)

	result := r.SyncEnabled(context.Background(), "wf-1", cronTrigger("0 9 * * *"), false)
	require.True(t, result.OK())
}

func TestSyncEnabled_ManualTriggerIsNoOp(t *testing.T) {
	registry := newFakeRegistry()
	r := newReconciler(registry)

	result := r.SyncEnabled(context.Background(), "wf-1", &models.Trigger{Kind: models.TriggerWebhook}, false)
	require.True(t, result.OK())
	assert.Empty(t, result.Ops)
}
