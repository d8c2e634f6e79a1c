// Package poller decides, from polled external content, whether a
// poll-triggered workflow should fire, and applies the consecutive-failure
// auto-disable policy.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/conduit/pkg/models"
	"github.com/dukex/conduit/pkg/notify"
	"github.com/dukex/conduit/pkg/persistence"
	"github.com/dukex/conduit/pkg/reconciler"
)

const (
	// MaxConsecutiveFailures is the auto-disable threshold: reaching it
	// disables the workflow and its schedule rule.
	MaxConsecutiveFailures = 4

	// maxErrorLen caps the recorded last_error.
	maxErrorLen = 1000
)

// Decision is the outcome of one change-detection evaluation. TriggerData is
// shaped for direct enqueue as a trigger message payload.
type Decision struct {
	ShouldExecute bool
	TriggerData   map[string]any
}

// Publisher enqueues trigger messages for detected changes.
type Publisher interface {
	Publish(ctx context.Context, msg *models.TriggerMessage) error
}

// RuleSyncer flips schedule-rule state when a workflow is auto-disabled.
type RuleSyncer interface {
	SyncEnabled(ctx context.Context, workflowID string, trigger *models.Trigger, enabled bool) reconciler.Result
}

// Poller runs one change-detection pass per scheduled poll invocation.
type Poller struct {
	workflows  persistence.WorkflowRepository
	pollStates persistence.PollStateRepository
	fetcher    Fetcher
	publisher  Publisher
	syncer     RuleSyncer
	notifier   notify.Notifier
	logger     *slog.Logger
	now        func() time.Time
}

// NewPoller wires a poller.
func NewPoller(
	workflows persistence.WorkflowRepository,
	pollStates persistence.PollStateRepository,
	fetcher Fetcher,
	publisher Publisher,
	syncer RuleSyncer,
	notifier notify.Notifier,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		workflows:  workflows,
		pollStates: pollStates,
		fetcher:    fetcher,
		publisher:  publisher,
		syncer:     syncer,
		notifier:   notifier,
		logger:     logger.With("module", "poller"),
		now:        time.Now,
	}
}

// Poll runs one poll for the workflow. Fetch and parse failures are recorded
// in poll state rather than returned; only infrastructure errors (store or
// queue unavailable) propagate.
func (p *Poller) Poll(ctx context.Context, workflowID string) error {
	logger := p.logger.With("workflow_id", workflowID)

	workflow, err := p.workflows.WorkflowByID(ctx, workflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			logger.WarnContext(ctx, "Poll fired for missing workflow")

			return nil
		}

		return fmt.Errorf("failed to load workflow: %w", err)
	}

	if !workflow.Enabled {
		logger.InfoContext(ctx, "Skipping poll for disabled workflow")

		return nil
	}

	if workflow.Trigger.Kind != models.TriggerPoll || workflow.Trigger.Poll == nil || workflow.Trigger.Poll.URL == "" {
		logger.WarnContext(ctx, "Poll fired for workflow without poll trigger")

		return nil
	}

	state, err := p.pollStates.PollState(ctx, workflowID)
	if err != nil {
		if !persistence.IsPollStateNotFound(err) {
			return fmt.Errorf("failed to load poll state: %w", err)
		}

		state = &models.PollState{WorkflowID: workflowID}
	}

	decision, checkErr := p.check(ctx, workflow.Trigger.Poll, state)
	state.LastCheckedAt = p.now().UTC()

	if checkErr != nil {
		p.recordFailure(ctx, workflow, state, checkErr)

		if err := p.pollStates.SavePollState(ctx, state); err != nil {
			return fmt.Errorf("failed to save poll state: %w", err)
		}

		return nil
	}

	state.ConsecutiveFailures = 0
	state.LastError = ""

	if err := p.pollStates.SavePollState(ctx, state); err != nil {
		return fmt.Errorf("failed to save poll state: %w", err)
	}

	if !decision.ShouldExecute {
		logger.DebugContext(ctx, "No change detected")

		return nil
	}

	logger.InfoContext(ctx, "Change detected, enqueueing execution")

	err = p.publisher.Publish(ctx, &models.TriggerMessage{
		WorkflowID:  workflowID,
		ExecutionID: models.NewExecutionID(),
		TriggerType: models.TriggerPoll,
		TriggerData: decision.TriggerData,
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue trigger message: %w", err)
	}

	return nil
}

func (p *Poller) check(ctx context.Context, config *models.PollConfig, state *models.PollState) (*Decision, error) {
	content, err := p.fetcher.Fetch(ctx, config.URL)
	if err != nil {
		return nil, err
	}

	if config.ContentType.IsFeed() {
		return checkFeed(content, state)
	}

	return checkContent(content, state), nil
}

// recordFailure increments the failure counter and, exactly when the threshold
// is reached, disables the workflow and its rule and notifies the operator.
func (p *Poller) recordFailure(ctx context.Context, workflow *models.Workflow, state *models.PollState, cause error) {
	state.ConsecutiveFailures++
	state.LastError = truncate(cause.Error(), maxErrorLen)

	logger := p.logger.With("workflow_id", workflow.ID, "consecutive_failures", state.ConsecutiveFailures)
	logger.ErrorContext(ctx, "Poll failed", "error", cause)

	if state.ConsecutiveFailures != MaxConsecutiveFailures {
		return
	}

	logger.ErrorContext(ctx, "Failure threshold reached, disabling workflow")

	err := p.workflows.SetWorkflowEnabled(ctx, workflow.ID, false)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to disable workflow", "error", err)
	}

	result := p.syncer.SyncEnabled(ctx, workflow.ID, &workflow.Trigger, false)
	if !result.OK() {
		logger.ErrorContext(ctx, "Failed to disable schedule rule", "error", result.Err())
	}

	p.notifier.Notify(ctx, fmt.Sprintf(
		"Workflow %q (%s) disabled after %d consecutive poll failures. Last error: %s",
		workflow.Name, workflow.ID, MaxConsecutiveFailures, state.LastError,
	))
}
