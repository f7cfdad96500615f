package audit

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dosecalc/dosecalc/internal/platform/storage"
)

// Service owns one Ledger per calculator path, created lazily so a ledger
// is loaded from storage the first time its calculator is touched. The
// calculator paths passed at construction are loaded on demand for the
// cross-calculator views, so persisted records stay visible after a
// process restart even when their calculator has not been used yet.
type Service struct {
	mu      sync.Mutex
	store   storage.Store
	logger  zerolog.Logger
	known   []string
	ledgers map[string]*Ledger
}

func NewService(store storage.Store, logger zerolog.Logger, calculatorPaths ...string) *Service {
	return &Service{
		store:   store,
		logger:  logger,
		known:   calculatorPaths,
		ledgers: make(map[string]*Ledger),
	}
}

// Ledger returns the ledger for calculatorPath, loading it on first use.
func (s *Service) Ledger(ctx context.Context, calculatorPath string) *Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.ledgers[calculatorPath]; ok {
		return l
	}
	l := NewLedger(ctx, s.store, calculatorPath, s.logger)
	s.ledgers[calculatorPath] = l
	return l
}

// ListAll merges the records of every known calculator's ledger, oldest
// first. Used by the cross-calculator audit view; per-calculator export
// stays on the individual ledger.
func (s *Service) ListAll(ctx context.Context) []Record {
	for _, path := range s.known {
		s.Ledger(ctx, path)
	}

	s.mu.Lock()
	ledgers := make([]*Ledger, 0, len(s.ledgers))
	for _, l := range s.ledgers {
		ledgers = append(ledgers, l)
	}
	s.mu.Unlock()

	var out []Record
	for _, l := range ledgers {
		out = append(out, l.List()...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// FindRecord searches every known ledger for id.
func (s *Service) FindRecord(ctx context.Context, id string) (Record, bool) {
	for _, rec := range s.ListAll(ctx) {
		if rec.ID == id {
			return rec, true
		}
	}
	return Record{}, false
}
