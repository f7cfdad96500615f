// Package storage provides the persisted key-value layer shared by the
// audit ledger, history buffer, and user preferences. Values are opaque
// strings (JSON blobs encoded by the owning package). Every write is a
// full replacement of one logical record; concurrent writers to the same
// key are not coordinated and the last write wins.
package storage

import (
	"context"
	"fmt"
)

// Store is a synchronous key-to-string store. A missing key is reported
// through the boolean, not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Record types used to namespace keys so ledger, history, and preferences
// blobs for the same calculator never collide.
const (
	RecordLedger      = "ledger"
	RecordHistory     = "history"
	RecordPreferences = "preferences"
)

// Key builds the namespaced storage key for a calculator and record type.
// Preferences use a fixed calculator name ("global") since they span pages.
func Key(calculator, recordType string) string {
	return fmt.Sprintf("dosecalc:%s:%s", calculator, recordType)
}

// PersistenceError wraps a backend failure. The in-memory state of the
// caller remains authoritative for the session when one is returned.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
