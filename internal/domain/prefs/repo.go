package prefs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dosecalc/dosecalc/internal/platform/storage"
)

type Repository interface {
	Load(ctx context.Context) (Preferences, error)
	Save(ctx context.Context, p Preferences) error
}

// RepoKV persists preferences as one JSON blob under a fixed key.
// Preferences span all calculators, so the key uses the "global" namespace.
type RepoKV struct {
	store storage.Store
	key   string
}

func NewRepoKV(store storage.Store) *RepoKV {
	return &RepoKV{store: store, key: storage.Key("global", storage.RecordPreferences)}
}

// Load returns the persisted preferences migrated to the current schema,
// or the defaults on first use.
func (r *RepoKV) Load(ctx context.Context) (Preferences, error) {
	raw, ok, err := r.store.Get(ctx, r.key)
	if err != nil {
		return Defaults(), err
	}
	if !ok {
		return Defaults(), nil
	}
	var p Preferences
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Defaults(), fmt.Errorf("decode preferences: %w", err)
	}
	return migrate(p), nil
}

// Save writes the full preferences blob (read-modify-write is the caller's
// responsibility; this is the write half).
func (r *RepoKV) Save(ctx context.Context, p Preferences) error {
	p.SchemaVersion = SchemaVersion
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	return r.store.Set(ctx, r.key, string(raw))
}
