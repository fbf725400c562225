package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the therapist's availability, or an empty unsaved one when the
// therapist has never published any.
func (s *Service) Get(ctx context.Context, therapistID uuid.UUID) (*TherapistAvailability, error) {
	a, err := s.repo.Get(ctx, therapistID)
	if errors.Is(err, ErrNotFound) {
		return Empty(therapistID), nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Replace overwrites the availability document after normalizing it. The
// caller's VersionID must match the stored one.
func (s *Service) Replace(ctx context.Context, a *TherapistAvailability) error {
	if a.TherapistID == uuid.Nil {
		return fmt.Errorf("therapist_id is required")
	}
	if err := a.Normalize(); err != nil {
		return err
	}
	return s.repo.Save(ctx, a)
}

// Save writes a document produced by Add or Prune without renormalizing.
func (s *Service) Save(ctx context.Context, a *TherapistAvailability) error {
	return s.repo.Save(ctx, a)
}
