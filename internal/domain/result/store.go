// Package result holds the most recently computed result bundle for one
// calculator instance. The bundle is the source of truth for report
// generation; it is replaced whole on every recompute and cleared on form
// reset. No partial updates exist.
package result

import (
	"sync"
	"time"
)

// Bundle is the single in-memory snapshot representing the current answer.
type Bundle struct {
	PatientFields  map[string]string `json:"patient_fields"`
	InputFields    map[string]string `json:"input_fields"`
	MainResult     string            `json:"main_result"`
	Interpretation string            `json:"interpretation"`
	Timestamp      time.Time         `json:"timestamp"`
}

// IsEmpty reports whether the bundle is the empty sentinel.
func (b Bundle) IsEmpty() bool {
	return b.MainResult == "" && b.Timestamp.IsZero()
}

// Empty returns the defined empty sentinel bundle.
func Empty() Bundle { return Bundle{} }

// Store owns the current bundle for one calculator instance.
type Store struct {
	mu     sync.Mutex
	bundle Bundle
	now    func() time.Time
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

// SetResult replaces the entire current bundle and stamps it with the
// current wall-clock time. The stored bundle is returned.
func (s *Store) SetResult(b Bundle) Bundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.Timestamp = s.now()
	s.bundle = b
	return s.bundle
}

// GetResult returns the last stored bundle, or the empty sentinel.
func (s *Store) GetResult() Bundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bundle
}

// Clear resets the store to the empty sentinel. Hiding the results panel
// is coordinated by the orchestrator, which owns the visibility state.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundle = Bundle{}
}
