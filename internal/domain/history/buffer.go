// Package history keeps a small per-calculator cache of the last few
// calculations for quick recall into the form. It is deliberately separate
// from the audit ledger: the buffer is capped and evicts oldest-first,
// while the ledger grows without bound until explicitly cleared.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dosecalc/dosecalc/internal/platform/storage"
)

// DefaultCapacity is the number of entries retained per calculator.
const DefaultCapacity = 3

var (
	ErrConfirmationRequired = errors.New("history: clearing requires explicit confirmation")
	ErrIndexOutOfRange      = errors.New("history: no entry at that index")
)

// Entry is one recallable calculation. RawInputs feed form re-population;
// FormattedInputs and ComputedValue are for display only.
type Entry struct {
	PatientName     string            `json:"patient_name"`
	RawInputs       map[string]string `json:"raw_inputs"`
	FormattedInputs map[string]string `json:"formatted_inputs"`
	ComputedValue   string            `json:"computed_value"`
	DateLabel       string            `json:"date_label"`
}

// Buffer is the ring buffer for one calculator. Most recent entry first;
// length never exceeds capacity.
type Buffer struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	store    storage.Store
	key      string
	logger   zerolog.Logger
}

// NewBuffer loads any persisted entries for calculatorPath. A capacity of
// zero or less falls back to DefaultCapacity.
func NewBuffer(ctx context.Context, store storage.Store, calculatorPath string, capacity int, logger zerolog.Logger) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b := &Buffer{
		capacity: capacity,
		store:    store,
		key:      storage.Key(calculatorPath, storage.RecordHistory),
		logger:   logger.With().Str("calculator", calculatorPath).Logger(),
	}
	raw, ok, err := store.Get(ctx, b.key)
	if err != nil {
		b.logger.Error().Err(err).Msg("history load failed; starting empty")
		return b
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &b.entries); err != nil {
			b.logger.Error().Err(err).Msg("history blob corrupt; starting empty")
			b.entries = nil
		}
		if len(b.entries) > b.capacity {
			b.entries = b.entries[:b.capacity]
		}
	}
	return b
}

// Push inserts the entry at the front, evicts beyond capacity, and
// persists. On persistence failure the in-memory buffer is still updated
// and the error is returned for a non-blocking notification.
func (b *Buffer) Push(ctx context.Context, e Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append([]Entry{e}, b.entries...)
	if len(b.entries) > b.capacity {
		b.entries = b.entries[:b.capacity]
	}
	if err := b.persistLocked(ctx); err != nil {
		b.logger.Error().Err(err).Msg("history persist failed")
		return err
	}
	return nil
}

// Entries returns a copy, most recent first.
func (b *Buffer) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Load returns the entry at index (0 = most recent) so its raw values can
// be copied back into the form. It never recomputes; the user must
// explicitly re-trigger the compute step.
func (b *Buffer) Load(index int) (Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.entries) {
		return Entry{}, ErrIndexOutOfRange
	}
	return b.entries[index], nil
}

// Clear discards all entries; refuses without explicit confirmation.
func (b *Buffer) Clear(ctx context.Context, confirm bool) error {
	if !confirm {
		return ErrConfirmationRequired
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
	if err := b.store.Remove(ctx, b.key); err != nil {
		b.logger.Error().Err(err).Msg("history clear persist failed")
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (b *Buffer) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(b.entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return b.store.Set(ctx, b.key, string(raw))
}
