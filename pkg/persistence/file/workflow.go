package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dukex/conduit/pkg/models"
	"github.com/dukex/conduit/pkg/persistence"
)

const workflowsKind = "workflows"

// workflowSchema validates workflow documents on load. File-backed workflows
// are edited by hand, so malformed documents are caught here instead of deep
// inside the engine.
const workflowSchema = `{
	"type": "object",
	"required": ["workflow_id", "name", "trigger"],
	"properties": {
		"workflow_id": {"type": "string", "minLength": 1},
		"name": {"type": "string", "minLength": 3},
		"description": {"type": "string"},
		"enabled": {"type": "boolean"},
		"trigger": {
			"type": "object",
			"required": ["type"],
			"properties": {
				"type": {"type": "string", "enum": ["manual", "webhook", "cron", "poll"]},
				"config": {"type": "object"}
			}
		},
		"steps": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["step_id", "name", "action"],
				"properties": {
					"step_id": {"type": "string", "minLength": 1},
					"name": {"type": "string", "minLength": 1},
					"action": {"type": "string", "minLength": 1},
					"config": {"type": "object"}
				}
			}
		}
	}
}`

// WorkflowRepository handles workflow file operations.
type WorkflowRepository struct {
	root   string
	schema *gojsonschema.Schema
}

// NewWorkflowRepository creates a workflow repository rooted at the given directory.
func NewWorkflowRepository(root string) *WorkflowRepository {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(workflowSchema))
	if err != nil {
		panic(fmt.Errorf("invalid workflow schema: %w", err))
	}

	return &WorkflowRepository{root: root, schema: schema}
}

func (r *WorkflowRepository) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	ids, err := listDocumentIDs(r.root, workflowsKind)
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := r.WorkflowByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

func (r *WorkflowRepository) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	var raw map[string]any
	if err := readDocument(r.root, workflowsKind, id, &raw); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, err
	}

	result, err := r.schema.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to validate workflow %s: %w", id, err)
	}

	if !result.Valid() {
		return nil, fmt.Errorf("workflow %s failed schema validation: %v", id, result.Errors())
	}

	var workflow models.Workflow
	if err := readDocument(r.root, workflowsKind, id, &workflow); err != nil {
		return nil, err
	}

	return &workflow, nil
}

func (r *WorkflowRepository) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	workflow.UpdatedAt = time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = workflow.UpdatedAt
	}

	return writeDocument(r.root, workflowsKind, workflow.ID, workflow)
}

func (r *WorkflowRepository) SetWorkflowEnabled(ctx context.Context, id string, enabled bool) error {
	workflow, err := r.WorkflowByID(ctx, id)
	if err != nil {
		return err
	}

	workflow.Enabled = enabled

	return r.SaveWorkflow(ctx, workflow)
}
