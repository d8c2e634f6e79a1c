// Package models defines the core domain models for the workflow automation engine.
package models

import "time"

// Workflow is a persisted definition of a trigger and an ordered list of steps.
// It is owned by the API layer; the execution engine treats it as read-only.
type Workflow struct {
	ID          string         `json:"workflow_id"    validate:"required"`
	Name        string         `json:"name"           validate:"required,min=3"`
	Description string         `json:"description"`
	Enabled     bool           `json:"enabled"`
	Trigger     Trigger        `json:"trigger"        validate:"required"`
	Steps       []WorkflowStep `json:"steps"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// WorkflowStep is one configured action within a workflow. The action itself is
// executed by the external step orchestrator; the engine only carries the
// configuration and reconciles the reported results.
type WorkflowStep struct {
	ID     string         `json:"step_id" validate:"required"`
	Name   string         `json:"name"    validate:"required"`
	Action string         `json:"action"  validate:"required"`
	Config map[string]any `json:"config"`
}

// StepByID returns the step with the given id and whether it exists.
func (w *Workflow) StepByID(stepID string) (WorkflowStep, bool) {
	for _, step := range w.Steps {
		if step.ID == stepID {
			return step, true
		}
	}

	return WorkflowStep{}, false
}
