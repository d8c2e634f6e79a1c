// Package persistence provides standardized error types for persistence operations.
package persistence

import "errors"

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates an execution record was not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrPollStateNotFound indicates no poll state exists yet for the workflow.
	ErrPollStateNotFound = errors.New("poll state not found")

	// ErrScheduleRuleNotFound indicates a schedule rule was not found by name.
	ErrScheduleRuleNotFound = errors.New("schedule rule not found")
)

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsPollStateNotFound checks if an error indicates poll state was not found.
func IsPollStateNotFound(err error) bool {
	return errors.Is(err, ErrPollStateNotFound)
}

// IsScheduleRuleNotFound checks if an error indicates a schedule rule was not found.
func IsScheduleRuleNotFound(err error) bool {
	return errors.Is(err, ErrScheduleRuleNotFound)
}
