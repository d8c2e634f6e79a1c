package web_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dukex/conduit/pkg/mocks"
	"github.com/dukex/conduit/pkg/models"
	"github.com/dukex/conduit/pkg/persistence"
	"github.com/dukex/conduit/pkg/web"
)

func setupTestApp(t *testing.T) (*fiber.App, *mocks.MockWorkflowRepository, *mocks.MockPublisher) {
	t.Helper()

	workflows := &mocks.MockWorkflowRepository{}
	publisher := &mocks.MockPublisher{}
	handlers := web.NewWebhookHandlers(workflows, publisher, slog.Default())

	app := fiber.New()
	handlers.Register(app)

	return app, workflows, publisher
}

func webhookWorkflow(enabled bool) *models.Workflow {
	return &models.Workflow{
		ID:      "wf-1",
		Name:    "Order intake",
		Enabled: enabled,
		Trigger: models.Trigger{Kind: models.TriggerWebhook},
		Steps: []models.WorkflowStep{
			{ID: "notify", Name: "Notify", Action: "http_request"},
		},
	}
}

func TestWebhookHandlers_HandleWebhook(t *testing.T) {
	t.Parallel()

	t.Run("accepts and enqueues a trigger message", func(t *testing.T) {
		t.Parallel()

		app, workflows, publisher := setupTestApp(t)
		workflows.On("WorkflowByID", mock.Anything, "wf-1").Return(webhookWorkflow(true), nil)

		var published *models.TriggerMessage

		publisher.On("Publish", mock.Anything, mock.AnythingOfType("*models.TriggerMessage")).
			Run(func(args mock.Arguments) {
				published = args.Get(1).(*models.TriggerMessage)
			}).
			Return(nil)

		body := bytes.NewBufferString(`{"order_id": "o-42"}`)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/wf-1?source=shop", body)
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
		assert.Equal(t, "wf-1", payload["workflow_id"])
		assert.Equal(t, "queued", payload["status"])
		assert.NotEmpty(t, payload["execution_id"])

		require.NotNil(t, published)
		assert.Equal(t, "wf-1", published.WorkflowID)
		assert.Equal(t, payload["execution_id"], published.ExecutionID)
		assert.Equal(t, models.TriggerWebhook, published.TriggerType)
		assert.Equal(t, map[string]any{"order_id": "o-42"}, published.TriggerData["body"])
		assert.Equal(t, "POST", published.TriggerData["method"])

		query, ok := published.TriggerData["query"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "shop", query["source"])
	})

	t.Run("returns 404 for unknown workflow", func(t *testing.T) {
		t.Parallel()

		app, workflows, publisher := setupTestApp(t)
		workflows.On("WorkflowByID", mock.Anything, "missing").
			Return(nil, persistence.ErrWorkflowNotFound)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/missing", nil)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("rejects disabled workflow", func(t *testing.T) {
		t.Parallel()

		app, workflows, publisher := setupTestApp(t)
		workflows.On("WorkflowByID", mock.Anything, "wf-1").Return(webhookWorkflow(false), nil)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/wf-1", nil)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("rejects workflow without webhook trigger", func(t *testing.T) {
		t.Parallel()

		app, workflows, publisher := setupTestApp(t)
		workflow := webhookWorkflow(true)
		workflow.Trigger = models.Trigger{
			Kind: models.TriggerCron,
			Cron: &models.CronConfig{Schedule: "0 * * * *"},
		}
		workflows.On("WorkflowByID", mock.Anything, "wf-1").Return(workflow, nil)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/wf-1", nil)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("rejects malformed JSON body", func(t *testing.T) {
		t.Parallel()

		app, workflows, _ := setupTestApp(t)
		workflows.On("WorkflowByID", mock.Anything, "wf-1").Return(webhookWorkflow(true), nil)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/wf-1", bytes.NewBufferString("{not json"))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("returns 500 when publish fails", func(t *testing.T) {
		t.Parallel()

		app, workflows, publisher := setupTestApp(t)
		workflows.On("WorkflowByID", mock.Anything, "wf-1").Return(webhookWorkflow(true), nil)
		publisher.On("Publish", mock.Anything, mock.Anything).Return(assert.AnError)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/wf-1", nil)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}

func TestWebhookHandlers_Health(t *testing.T) {
	t.Parallel()

	app, _, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
