package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dosecalc/dosecalc/internal/platform/storage"
)

var (
	// ErrConfirmationRequired is returned by Clear when the caller has not
	// explicitly confirmed discarding all records.
	ErrConfirmationRequired = errors.New("audit: clearing the ledger requires explicit confirmation")
	// ErrNotFound is returned when no record carries the requested id.
	ErrNotFound = errors.New("audit: record not found")
)

// Ledger is the append-only log for one calculator path. Append is the
// only mutation; the in-memory list remains authoritative for the session
// even when persistence fails.
type Ledger struct {
	mu      sync.Mutex
	records []Record
	store   storage.Store
	key     string
	logger  zerolog.Logger
	now     func() time.Time
}

// NewLedger creates the ledger for calculatorPath, loading any persisted
// records. A load failure starts an empty session ledger and is logged,
// never fatal.
func NewLedger(ctx context.Context, store storage.Store, calculatorPath string, logger zerolog.Logger) *Ledger {
	l := &Ledger{
		store:  store,
		key:    storage.Key(calculatorPath, storage.RecordLedger),
		logger: logger.With().Str("calculator", calculatorPath).Logger(),
		now:    time.Now,
	}
	raw, ok, err := store.Get(ctx, l.key)
	if err != nil {
		l.logger.Error().Err(err).Msg("audit ledger load failed; starting empty")
		return l
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &l.records); err != nil {
			l.logger.Error().Err(err).Msg("audit ledger blob corrupt; starting empty")
			l.records = nil
		}
	}
	return l
}

// Append assigns a unique id and both timestamp representations, appends
// the record, and persists the full list. When persistence fails the
// record is still appended in memory and the error is returned for the
// caller to surface as a non-blocking notification.
func (l *Ledger) Append(ctx context.Context, rec Record) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.now()
	rec.ID = newID(ts)
	rec.Timestamp = ts
	rec.TimestampFormatted = ts.Format(timestampLayout)
	l.records = append(l.records, rec)

	if err := l.persistLocked(ctx); err != nil {
		l.logger.Error().Err(err).Str("record_id", rec.ID).Msg("audit ledger persist failed")
		return rec, err
	}
	return rec, nil
}

// List returns a copy of all records in append order.
func (l *Ledger) List() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// ExportOne serializes the record with the given id to the stable
// interchange shape.
func (l *Ledger) ExportOne(id string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range l.records {
		if rec.ID == id {
			return json.MarshalIndent(rec, "", "  ")
		}
	}
	return nil, ErrNotFound
}

// ExportAll serializes every record to a single downloadable document.
func (l *Ledger) ExportAll() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return json.MarshalIndent(l.records, "", "  ")
}

// Clear discards all records. It refuses without explicit confirmation.
func (l *Ledger) Clear(ctx context.Context, confirm bool) error {
	if !confirm {
		return ErrConfirmationRequired
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
	if err := l.store.Remove(ctx, l.key); err != nil {
		l.logger.Error().Err(err).Msg("audit ledger clear persist failed")
		return fmt.Errorf("clear ledger: %w", err)
	}
	return nil
}

func (l *Ledger) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(l.records)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	return l.store.Set(ctx, l.key, string(raw))
}
