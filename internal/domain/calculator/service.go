package calculator

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dosecalc/dosecalc/internal/domain/audit"
	"github.com/dosecalc/dosecalc/internal/domain/history"
	"github.com/dosecalc/dosecalc/internal/platform/bus"
	"github.com/dosecalc/dosecalc/internal/platform/storage"
)

var ErrUnknownCalculator = errors.New("calculator: unknown calculator")

// Service owns one Session per registered calculator, created lazily on
// first touch so a calculator's ledger and history load from storage only
// when it is actually used.
type Service struct {
	mu       sync.Mutex
	registry *Registry
	store    storage.Store
	audit    *audit.Service
	bus      *bus.Bus
	histCap  int
	logger   zerolog.Logger
	sessions map[string]*Session
}

func NewService(reg *Registry, store storage.Store, auditSvc *audit.Service, b *bus.Bus, historyCapacity int, logger zerolog.Logger) *Service {
	return &Service{
		registry: reg,
		store:    store,
		audit:    auditSvc,
		bus:      b,
		histCap:  historyCapacity,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Registry exposes the calculator configurations.
func (s *Service) Registry() *Registry { return s.registry }

// Session returns the session for the named calculator, creating it on
// first use.
func (s *Service) Session(ctx context.Context, name string) (*Session, error) {
	cfg, ok := s.registry.Get(name)
	if !ok {
		return nil, ErrUnknownCalculator
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[name]; ok {
		return sess, nil
	}
	sess := newSession(
		cfg,
		s.audit.Ledger(ctx, name),
		history.NewBuffer(ctx, s.store, name, s.histCap, s.logger),
		s.bus,
		s.logger,
	)
	s.sessions[name] = sess
	return sess, nil
}
