package prefs

import "context"

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context) (Preferences, error) {
	return s.repo.Load(ctx)
}

// Update performs the full read-modify-write save of the toggle set and
// identity fields.
func (s *Service) Update(ctx context.Context, p Preferences) (Preferences, error) {
	p.SchemaVersion = SchemaVersion
	if err := s.repo.Save(ctx, p); err != nil {
		return p, err
	}
	return p, nil
}
