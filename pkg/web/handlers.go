// Package web provides the webhook intake endpoint: inbound webhook calls are
// validated against the target workflow and enqueued as trigger messages. The
// workflow CRUD API lives elsewhere.
package web

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/dukex/conduit/pkg/models"
	"github.com/dukex/conduit/pkg/persistence"
)

// Publisher enqueues trigger messages for accepted webhook calls.
type Publisher interface {
	Publish(ctx context.Context, msg *models.TriggerMessage) error
}

// WebhookHandlers serves webhook intake requests.
type WebhookHandlers struct {
	workflows persistence.WorkflowRepository
	publisher Publisher
	logger    *slog.Logger
}

func NewWebhookHandlers(workflows persistence.WorkflowRepository, publisher Publisher, logger *slog.Logger) *WebhookHandlers {
	return &WebhookHandlers{
		workflows: workflows,
		publisher: publisher,
		logger:    logger.With("module", "web"),
	}
}

// Register mounts the intake routes.
func (h *WebhookHandlers) Register(app *fiber.App) {
	app.Post("/webhooks/:workflowID", h.HandleWebhook)
	app.Get("/health", h.Health)
}

// HandleWebhook accepts an inbound webhook call for a workflow and enqueues a
// trigger message. The execution id is assigned here so the caller can poll
// for the result.
func (h *WebhookHandlers) HandleWebhook(c fiber.Ctx) error {
	workflowID := c.Params("workflowID")

	workflow, err := h.workflows.WorkflowByID(c.Context(), workflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "workflow not found")
		}

		return internalError(c, err)
	}

	if !workflow.Enabled {
		return conflict(c, "workflow is disabled")
	}

	if workflow.Trigger.Kind != models.TriggerWebhook {
		return badRequest(c, "workflow is not webhook-triggered")
	}

	var body map[string]any
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return badRequest(c, "request body must be a JSON object")
		}
	}

	headers := make(map[string]any)
	for key, values := range c.GetReqHeaders() {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	query := make(map[string]any)
	for key, value := range c.Queries() {
		query[key] = value
	}

	msg := &models.TriggerMessage{
		WorkflowID:  workflow.ID,
		ExecutionID: models.NewExecutionID(),
		TriggerType: models.TriggerWebhook,
		TriggerData: map[string]any{
			"body":    body,
			"headers": headers,
			"query":   query,
			"method":  c.Method(),
		},
	}

	if err := h.publisher.Publish(c.Context(), msg); err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to enqueue webhook trigger",
			"workflow_id", workflow.ID, "error", err)

		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"workflow_id":  workflow.ID,
		"execution_id": msg.ExecutionID,
		"status":       "queued",
	})
}

// Health reports process liveness.
func (h *WebhookHandlers) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
