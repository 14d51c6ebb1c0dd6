package reconcile

import "fmt"

// ScopeError reports that a run's scope could not be resolved, most often
// because the epic id passed on the command line does not exist in the
// Ledger. Scope resolution failures abort the run before any store is
// touched.
type ScopeError struct {
	EpicID string
	Err    error
}

func (e *ScopeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolving epic %q: %v", e.EpicID, e.Err)
	}
	return fmt.Sprintf("epic %q not found in ledger", e.EpicID)
}

func (e *ScopeError) Unwrap() error { return e.Err }
