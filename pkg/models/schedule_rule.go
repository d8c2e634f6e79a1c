package models

import "time"

// RuleTarget describes what a schedule rule invokes when it fires: a target
// reference (queue topic or poller) and the templated payload delivered to it.
type RuleTarget struct {
	Ref     string         `json:"ref"               validate:"required"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ScheduleRule is one entry in the schedule registry. Rules are keyed by a name
// derived deterministically from workflow id and trigger kind, so cron and poll
// rules for the same workflow never collide. Inactive rules keep their
// definition; disabling is reversible without reconstructing configuration.
type ScheduleRule struct {
	Name         string      `json:"name"          validate:"required"`
	ScheduleExpr string      `json:"schedule_expr" validate:"required"`
	Active       bool        `json:"active"`
	Target       *RuleTarget `json:"target,omitempty"`

	// NextDueAt is the precomputed next fire time, enabling the central
	// poller to query due rules without evaluating every expression.
	NextDueAt time.Time `json:"next_due_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
