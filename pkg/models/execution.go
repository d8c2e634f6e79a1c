package models

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
)

// ExecutionStatus is the lifecycle state of an execution record. Transitions are
// pending -> running -> success|failed; terminal states are final.
type ExecutionStatus string

const (
	ExecutionPending ExecutionStatus = "pending"
	ExecutionRunning ExecutionStatus = "running"
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
)

// IsTerminal reports whether the status is final.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionSuccess || s == ExecutionFailed
}

// StepStatus is the terminal state of one step within an execution.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// ExecutionRetention is how long execution records are kept before the store's
// native expiry removes them.
const ExecutionRetention = 90 * 24 * time.Hour

// Execution is one run of a workflow. Created when a trigger message is
// accepted, mutated only by the orchestrator, removed by TTL expiry.
type Execution struct {
	WorkflowID   string          `json:"workflow_id"  validate:"required"`
	ID           string          `json:"execution_id" validate:"required"`
	WorkflowName string          `json:"workflow_name"`
	Status       ExecutionStatus `json:"status"`
	TriggerType  TriggerKind     `json:"trigger_type"`
	TriggerData  map[string]any  `json:"trigger_data,omitempty"`
	Steps        []StepResult    `json:"steps"`
	StartedAt    time.Time       `json:"started_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	Error        string          `json:"error,omitempty"`
	TTL          int64           `json:"ttl"`
}

// StepResult is the recorded outcome of one step. The Steps array of an
// execution always matches the workflow's step order at execution start time.
type StepResult struct {
	StepID     string     `json:"step_id"`
	Name       string     `json:"name"`
	Action     string     `json:"action"`
	Status     StepStatus `json:"status"`
	DurationMS int64      `json:"duration_ms,omitempty"`
	Input      any        `json:"input,omitempty"`
	Output     any        `json:"output,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// NewExecutionID returns a fresh time-sortable execution id. ULIDs sort
// lexicographically by creation time, so "most recent first" listings need no
// secondary index.
func NewExecutionID() string {
	return "ex_" + watermill.NewULID()
}

// ExecutionTTL computes the epoch-seconds expiry for a record created at the
// given time.
func ExecutionTTL(createdAt time.Time) int64 {
	return createdAt.Add(ExecutionRetention).Unix()
}
