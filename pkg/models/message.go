package models

// TriggerMessage is the wire shape placed on the durable trigger queue. One
// message maps to at most one execution. ExecutionID may be pre-assigned by the
// trigger source; the orchestrator generates one when it is absent.
type TriggerMessage struct {
	WorkflowID  string         `json:"workflow_id"  validate:"required"`
	ExecutionID string         `json:"execution_id,omitempty"`
	TriggerType TriggerKind    `json:"trigger_type" validate:"required"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

// ExecutionContext is the three-namespace variable context handed to the
// external step orchestrator. It is ephemeral: the only persisted trace of it
// is the execution's step-results array.
type ExecutionContext struct {
	Trigger map[string]any            `json:"trigger"`
	Steps   map[string]map[string]any `json:"steps"`
	Secrets map[string]string         `json:"secrets"`
}

// ExecutionInput is the full payload handed to the external step orchestrator.
type ExecutionInput struct {
	ExecutionID string           `json:"execution_id"`
	WorkflowID  string           `json:"workflow_id"`
	Workflow    *Workflow        `json:"workflow"`
	TriggerData map[string]any   `json:"trigger_data,omitempty"`
	Context     ExecutionContext `json:"context"`
}
