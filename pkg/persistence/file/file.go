// Package file provides file-based persistence for development and tests.
// Records are stored as JSON documents under a root directory, one subdirectory
// per record kind.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/dukex/conduit/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root          string
	workflows     *WorkflowRepository
	executions    *ExecutionRepository
	pollStates    *PollStateRepository
	scheduleRules *ScheduleRuleRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
// Accepts plain paths as well as file:// URLs.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		workflows:     NewWorkflowRepository(cleanRoot),
		executions:    NewExecutionRepository(cleanRoot),
		pollStates:    NewPollStateRepository(cleanRoot),
		scheduleRules: NewScheduleRuleRepository(cleanRoot),
	}
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflows
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executions
}

func (p *Persistence) PollStateRepository() persistence.PollStateRepository {
	return p.pollStates
}

func (p *Persistence) ScheduleRuleRepository() persistence.ScheduleRuleRepository {
	return p.scheduleRules
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file persistence there is nothing
// to clean up.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}
