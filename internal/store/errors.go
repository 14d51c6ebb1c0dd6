package store

import "fmt"

// TransportError wraps a failed adapter call against an external store.
// The reconciliation engine treats it as fatal during fetch and Ledger
// writes, and as a recorded per-item failure during back-propagation.
type TransportError struct {
	Store string // adapter name, e.g. "grist"
	Op    string // operation, e.g. "fetch items"
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Store, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrNotInitialized indicates an adapter was used before Init.
type ErrNotInitialized struct {
	Store string
}

func (e *ErrNotInitialized) Error() string {
	return fmt.Sprintf("%s store not initialized", e.Store)
}
