package file

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/conduit/pkg/models"
	"github.com/dukex/conduit/pkg/persistence"
)

func testWorkflow(id string) *models.Workflow {
	return &models.Workflow{
		ID:      id,
		Name:    "File Test Workflow",
		Enabled: true,
		Trigger: models.Trigger{
			Kind: models.TriggerCron,
			Cron: &models.CronConfig{Schedule: "0 * * * *"},
		},
		Steps: []models.WorkflowStep{
			{ID: "fetch", Name: "Fetch", Action: "http_request", Config: map[string]any{"url": "https://example.com"}},
		},
	}
}

func TestWorkflowRepository_SaveAndLoad(t *testing.T) {
	t.Parallel()

	repo := NewWorkflowRepository(t.TempDir())

	workflow := testWorkflow("wf-file-1")
	require.NoError(t, repo.SaveWorkflow(t.Context(), workflow))
	assert.False(t, workflow.CreatedAt.IsZero())

	loaded, err := repo.WorkflowByID(t.Context(), "wf-file-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.Name, loaded.Name)
	assert.Equal(t, models.TriggerCron, loaded.Trigger.Kind)
	require.NotNil(t, loaded.Trigger.Cron)
	assert.Equal(t, "0 * * * *", loaded.Trigger.Cron.Schedule)

	all, err := repo.Workflows(t.Context())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestWorkflowRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewWorkflowRepository(t.TempDir())

	_, err := repo.WorkflowByID(t.Context(), "missing")
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestWorkflowRepository_SchemaValidation(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	repo := NewWorkflowRepository(root)

	// A hand-edited document missing required fields must be rejected on load.
	require.NoError(t, writeDocument(root, workflowsKind, "wf-broken", map[string]any{
		"workflow_id": "wf-broken",
		"trigger":     map[string]any{"type": "manual"},
	}))

	_, err := repo.WorkflowByID(t.Context(), "wf-broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation")
}

func TestWorkflowRepository_SetWorkflowEnabled(t *testing.T) {
	t.Parallel()

	repo := NewWorkflowRepository(t.TempDir())

	require.NoError(t, repo.SaveWorkflow(t.Context(), testWorkflow("wf-file-2")))
	require.NoError(t, repo.SetWorkflowEnabled(t.Context(), "wf-file-2", false))

	loaded, err := repo.WorkflowByID(t.Context(), "wf-file-2")
	require.NoError(t, err)
	assert.False(t, loaded.Enabled)

	err = repo.SetWorkflowEnabled(t.Context(), "missing", false)
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestExecutionRepository_ConditionalUpdate(t *testing.T) {
	t.Parallel()

	repo := NewExecutionRepository(t.TempDir())

	now := time.Now().UTC()
	execution := &models.Execution{
		WorkflowID: "wf-file-1",
		ID:         models.NewExecutionID(),
		Status:     models.ExecutionPending,
		StartedAt:  now,
		UpdatedAt:  now,
		TTL:        models.ExecutionTTL(now),
	}

	err := repo.UpdateExecution(t.Context(), execution)
	assert.ErrorIs(t, err, persistence.ErrExecutionNotFound)

	require.NoError(t, repo.CreateExecution(t.Context(), execution))

	execution.Status = models.ExecutionRunning
	require.NoError(t, repo.UpdateExecution(t.Context(), execution))

	loaded, err := repo.ExecutionByID(t.Context(), "wf-file-1", execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionRunning, loaded.Status)
}

func TestExecutionRepository_MostRecentFirst(t *testing.T) {
	t.Parallel()

	repo := NewExecutionRepository(t.TempDir())

	now := time.Now().UTC()

	// Explicit ids: ULID order is only guaranteed across milliseconds, and the
	// ordering contract is lexicographic on the id either way.
	ids := []string{"ex_01A000000000000000000000001", "ex_01B000000000000000000000002", "ex_01C000000000000000000000003"}

	for _, id := range ids {
		execution := &models.Execution{
			WorkflowID: "wf-file-1",
			ID:         id,
			Status:     models.ExecutionSuccess,
			StartedAt:  now,
			UpdatedAt:  now,
			TTL:        models.ExecutionTTL(now),
		}
		require.NoError(t, repo.CreateExecution(t.Context(), execution))
	}

	// Unrelated workflow records must not leak into the listing.
	require.NoError(t, repo.CreateExecution(t.Context(), &models.Execution{
		WorkflowID: "wf-other",
		ID:         models.NewExecutionID(),
		Status:     models.ExecutionSuccess,
		StartedAt:  now,
		UpdatedAt:  now,
		TTL:        models.ExecutionTTL(now),
	}))

	executions, err := repo.ExecutionsByWorkflow(t.Context(), "wf-file-1")
	require.NoError(t, err)
	require.Len(t, executions, 3)
	assert.Equal(t, ids[2], executions[0].ID)
	assert.Equal(t, ids[0], executions[2].ID)
}

func TestPollStateRepository_RoundTrip(t *testing.T) {
	t.Parallel()

	repo := NewPollStateRepository(t.TempDir())

	_, err := repo.PollState(t.Context(), "wf-file-1")
	assert.ErrorIs(t, err, persistence.ErrPollStateNotFound)

	state := &models.PollState{
		WorkflowID:    "wf-file-1",
		SeenItemIDs:   []string{"item-1", "item-2"},
		LastCheckedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.SavePollState(t.Context(), state))

	loaded, err := repo.PollState(t.Context(), "wf-file-1")
	require.NoError(t, err)
	assert.Equal(t, state.SeenItemIDs, loaded.SeenItemIDs)
}

func TestScheduleRuleRepository_DeleteMissingIsNoop(t *testing.T) {
	t.Parallel()

	repo := NewScheduleRuleRepository(t.TempDir())

	require.NoError(t, repo.DeleteScheduleRule(t.Context(), "never-created"))

	rule := &models.ScheduleRule{
		Name:         "conduit-dev-wf-file-1-schedule",
		ScheduleExpr: "cron(0 * * * *)",
		Active:       true,
		NextDueAt:    time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, repo.SaveScheduleRule(t.Context(), rule))

	rules, err := repo.ScheduleRules(t.Context())
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	require.NoError(t, repo.DeleteScheduleRule(t.Context(), rule.Name))

	_, err = repo.ScheduleRuleByName(t.Context(), rule.Name)
	assert.ErrorIs(t, err, persistence.ErrScheduleRuleNotFound)
}
