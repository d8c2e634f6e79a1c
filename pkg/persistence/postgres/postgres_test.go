package postgres_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/dukex/conduit/pkg/models"
	"github.com/dukex/conduit/pkg/persistence"
	"github.com/dukex/conduit/pkg/persistence/postgres"
)

var postgresContainer *pgcontainer.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"executions", "poll_states", "schedule_rules", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgres.Persistence, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = pgcontainer.Run(ctx,
			"postgres:16-alpine",
			pgcontainer.WithDatabase("conduit_test"),
			pgcontainer.WithUsername("conduit"),
			pgcontainer.WithPassword("conduit"),
			pgcontainer.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgres.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx
}

func testWorkflow(id string) *models.Workflow {
	return &models.Workflow{
		ID:      id,
		Name:    "Daily digest",
		Enabled: true,
		Trigger: models.Trigger{
			Kind: models.TriggerCron,
			Cron: &models.CronConfig{Schedule: "0 9 * * *"},
		},
		Steps: []models.WorkflowStep{
			{ID: "fetch", Name: "Fetch items", Action: "http_request", Config: map[string]any{"url": "https://example.com"}},
			{ID: "send", Name: "Send digest", Action: "send_email"},
		},
	}
}

func TestWorkflowRepository_Lifecycle(t *testing.T) {
	p, ctx := setupTestDB(t)
	repo := p.WorkflowRepository()

	_, err := repo.WorkflowByID(ctx, "wf-missing")
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	workflow := testWorkflow("wf-1")
	require.NoError(t, repo.SaveWorkflow(ctx, workflow))

	loaded, err := repo.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Daily digest", loaded.Name)
	assert.Equal(t, models.TriggerCron, loaded.Trigger.Kind)
	require.Len(t, loaded.Steps, 2)
	assert.Equal(t, "http_request", loaded.Steps[0].Action)

	require.NoError(t, repo.SetWorkflowEnabled(ctx, "wf-1", false))

	loaded, err = repo.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.False(t, loaded.Enabled)

	err = repo.SetWorkflowEnabled(ctx, "wf-missing", false)
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	all, err := repo.Workflows(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestExecutionRepository_CreateUpdateList(t *testing.T) {
	p, ctx := setupTestDB(t)
	repo := p.ExecutionRepository()

	now := time.Now().UTC().Truncate(time.Second)

	first := &models.Execution{
		WorkflowID:   "wf-1",
		ID:           models.NewExecutionID(),
		WorkflowName: "Daily digest",
		Status:       models.ExecutionPending,
		TriggerType:  models.TriggerCron,
		Steps:        []models.StepResult{},
		StartedAt:    now,
		UpdatedAt:    now,
		TTL:          models.ExecutionTTL(now),
	}
	require.NoError(t, repo.CreateExecution(ctx, first))

	second := &models.Execution{
		WorkflowID:  "wf-1",
		ID:          models.NewExecutionID(),
		Status:      models.ExecutionPending,
		TriggerType: models.TriggerManual,
		Steps:       []models.StepResult{},
		StartedAt:   now.Add(time.Second),
		UpdatedAt:   now.Add(time.Second),
		TTL:         models.ExecutionTTL(now),
	}
	require.NoError(t, repo.CreateExecution(ctx, second))

	first.Status = models.ExecutionSuccess
	finished := now.Add(2 * time.Second)
	first.FinishedAt = &finished
	first.Steps = []models.StepResult{
		{StepID: "fetch", Name: "Fetch items", Action: "http_request", Status: models.StepSuccess},
	}
	require.NoError(t, repo.UpdateExecution(ctx, first))

	loaded, err := repo.ExecutionByID(ctx, "wf-1", first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionSuccess, loaded.Status)
	require.Len(t, loaded.Steps, 1)
	assert.Equal(t, models.StepSuccess, loaded.Steps[0].Status)
	require.NotNil(t, loaded.FinishedAt)

	missing := &models.Execution{WorkflowID: "wf-1", ID: "ex_missing"}
	err = repo.UpdateExecution(ctx, missing)
	require.ErrorIs(t, err, persistence.ErrExecutionNotFound)

	executions, err := repo.ExecutionsByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, executions, 2)
	// ULID ids sort by creation time, newest first.
	assert.Equal(t, second.ID, executions[0].ID)
	assert.Equal(t, first.ID, executions[1].ID)
}

func TestPollStateRepository_Roundtrip(t *testing.T) {
	p, ctx := setupTestDB(t)
	repo := p.PollStateRepository()

	_, err := repo.PollState(ctx, "wf-1")
	require.ErrorIs(t, err, persistence.ErrPollStateNotFound)

	state := &models.PollState{
		WorkflowID:          "wf-1",
		SeenItemIDs:         []string{"a", "b"},
		LastContentHash:     "abc123",
		LastCheckedAt:       time.Now().UTC().Truncate(time.Second),
		ConsecutiveFailures: 2,
		LastError:           "timeout",
	}
	require.NoError(t, repo.SavePollState(ctx, state))

	loaded, err := repo.PollState(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, loaded.SeenItemIDs)
	assert.Equal(t, "abc123", loaded.LastContentHash)
	assert.Equal(t, 2, loaded.ConsecutiveFailures)
	assert.Equal(t, "timeout", loaded.LastError)

	state.ConsecutiveFailures = 0
	state.LastError = ""
	require.NoError(t, repo.SavePollState(ctx, state))

	loaded, err = repo.PollState(ctx, "wf-1")
	require.NoError(t, err)
	assert.Zero(t, loaded.ConsecutiveFailures)
	assert.Empty(t, loaded.LastError)
}

func TestScheduleRuleRepository_Lifecycle(t *testing.T) {
	p, ctx := setupTestDB(t)
	repo := p.ScheduleRuleRepository()

	_, err := repo.ScheduleRuleByName(ctx, "missing")
	require.ErrorIs(t, err, persistence.ErrScheduleRuleNotFound)

	now := time.Now().UTC().Truncate(time.Second)
	rule := &models.ScheduleRule{
		Name:         "conduit-test-wf-1-schedule",
		ScheduleExpr: "cron(0 9 * * ? *)",
		Active:       true,
		Target:       &models.RuleTarget{Ref: "queue", Payload: map[string]any{"workflow_id": "wf-1"}},
		NextDueAt:    now.Add(time.Hour),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, repo.SaveScheduleRule(ctx, rule))

	loaded, err := repo.ScheduleRuleByName(ctx, rule.Name)
	require.NoError(t, err)
	assert.Equal(t, "cron(0 9 * * ? *)", loaded.ScheduleExpr)
	assert.True(t, loaded.Active)
	require.NotNil(t, loaded.Target)
	assert.Equal(t, "queue", loaded.Target.Ref)

	rule.Active = false
	require.NoError(t, repo.SaveScheduleRule(ctx, rule))

	loaded, err = repo.ScheduleRuleByName(ctx, rule.Name)
	require.NoError(t, err)
	assert.False(t, loaded.Active)

	rules, err := repo.ScheduleRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	require.NoError(t, repo.DeleteScheduleRule(ctx, rule.Name))
	// Deleting again is a no-op.
	require.NoError(t, repo.DeleteScheduleRule(ctx, rule.Name))

	_, err = repo.ScheduleRuleByName(ctx, rule.Name)
	require.ErrorIs(t, err, persistence.ErrScheduleRuleNotFound)
}
