package reconciler

import "errors"

// Op records one registry operation attempted during reconciliation.
type Op struct {
	Action string
	Rule   string
	Err    error
}

// Result is the outcome of a reconciliation call. Reconciliation is
// best-effort, so failures are collected here instead of aborting the call;
// callers decide whether to log and continue or to surface them.
type Result struct {
	Ops []Op
}

func (r *Result) record(action, rule string, err error) {
	r.Ops = append(r.Ops, Op{Action: action, Rule: rule, Err: err})
}

// OK reports whether every attempted operation succeeded.
func (r Result) OK() bool {
	for _, op := range r.Ops {
		if op.Err != nil {
			return false
		}
	}

	return true
}

// Err returns the joined errors of all failed operations, or nil.
func (r Result) Err() error {
	var errs []error

	for _, op := range r.Ops {
		if op.Err != nil {
			errs = append(errs, op.Err)
		}
	}

	return errors.Join(errs...)
}
