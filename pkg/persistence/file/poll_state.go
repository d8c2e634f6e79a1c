package file

import (
	"context"
	"errors"
	"io/fs"

	"github.com/dukex/conduit/pkg/models"
	"github.com/dukex/conduit/pkg/persistence"
)

const pollStatesKind = "poll_states"

// PollStateRepository handles poll state file operations.
type PollStateRepository struct {
	root string
}

// NewPollStateRepository creates a poll state repository rooted at the given directory.
func NewPollStateRepository(root string) *PollStateRepository {
	return &PollStateRepository{root: root}
}

func (r *PollStateRepository) PollState(_ context.Context, workflowID string) (*models.PollState, error) {
	var state models.PollState

	err := readDocument(r.root, pollStatesKind, workflowID, &state)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.ErrPollStateNotFound
		}

		return nil, err
	}

	return &state, nil
}

func (r *PollStateRepository) SavePollState(_ context.Context, state *models.PollState) error {
	return writeDocument(r.root, pollStatesKind, state.WorkflowID, state)
}
