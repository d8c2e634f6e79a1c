package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/dukex/conduit/pkg/models"
	"github.com/dukex/conduit/pkg/persistence"
)

const executionsKind = "executions"

// ExecutionRepository handles execution record file operations. Records are
// stored under a composite id so different workflows never collide.
type ExecutionRepository struct {
	root string
}

// NewExecutionRepository creates an execution repository rooted at the given directory.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func executionDocumentID(workflowID, executionID string) string {
	return workflowID + "_" + executionID
}

func (r *ExecutionRepository) CreateExecution(_ context.Context, execution *models.Execution) error {
	return writeDocument(r.root, executionsKind, executionDocumentID(execution.WorkflowID, execution.ID), execution)
}

// UpdateExecution writes an existing record. The existence check makes the
// update conditional, so racing against TTL expiry or deletion surfaces as
// ErrExecutionNotFound instead of resurrecting the record.
func (r *ExecutionRepository) UpdateExecution(_ context.Context, execution *models.Execution) error {
	docID := executionDocumentID(execution.WorkflowID, execution.ID)
	if !documentExists(r.root, executionsKind, docID) {
		return persistence.ErrExecutionNotFound
	}

	return writeDocument(r.root, executionsKind, docID, execution)
}

func (r *ExecutionRepository) ExecutionByID(_ context.Context, workflowID, executionID string) (*models.Execution, error) {
	var execution models.Execution

	err := readDocument(r.root, executionsKind, executionDocumentID(workflowID, executionID), &execution)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, err
	}

	return &execution, nil
}

func (r *ExecutionRepository) ExecutionsByWorkflow(_ context.Context, workflowID string) ([]*models.Execution, error) {
	ids, err := listDocumentIDs(r.root, executionsKind)
	if err != nil {
		return nil, err
	}

	prefix := workflowID + "_"
	executions := make([]*models.Execution, 0)

	for _, id := range ids {
		if len(id) <= len(prefix) || id[:len(prefix)] != prefix {
			continue
		}

		var execution models.Execution
		if err := readDocument(r.root, executionsKind, id, &execution); err != nil {
			return nil, fmt.Errorf("failed to load execution %s: %w", id, err)
		}

		executions = append(executions, &execution)
	}

	// Execution ids are time-sortable; descending id order is most recent first.
	sort.Slice(executions, func(i, j int) bool {
		return executions[i].ID > executions[j].ID
	})

	return executions, nil
}
