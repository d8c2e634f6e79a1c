package reconciler

import (
	"context"
	"errors"

	"github.com/dukex/conduit/pkg/models"
)

// ErrRuleNotFound is returned by registry implementations when an operation
// targets a rule that does not exist. The reconciler swallows it on delete,
// enable and disable so reconciliation stays repeatable.
var ErrRuleNotFound = errors.New("schedule rule not found")

// Registry is the external schedule registry the reconciler keeps in sync with
// workflow state. All operations are idempotent or treated as such.
type Registry interface {
	// PutRule creates or updates a rule with the given schedule expression.
	// New rules start active; updates preserve the active flag and target.
	PutRule(ctx context.Context, name, scheduleExpr string) error
	// PutTarget sets what the rule invokes when it fires.
	PutTarget(ctx context.Context, ruleName string, target *models.RuleTarget) error
	EnableRule(ctx context.Context, name string) error
	DisableRule(ctx context.Context, name string) error
	RemoveTargets(ctx context.Context, ruleName string) error
	DeleteRule(ctx context.Context, name string) error
}
