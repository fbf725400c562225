package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/frontdesk/internal/domain/staff"
)

// TherapistLookup resolves the display name for an assigned therapist.
type TherapistLookup interface {
	Lookup(ctx context.Context, id uuid.UUID) (*staff.Therapist, error)
}

type Service struct {
	repo       Repository
	therapists TherapistLookup
}

func NewService(repo Repository, therapists TherapistLookup) *Service {
	return &Service{repo: repo, therapists: therapists}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	p.Code = strings.TrimSpace(p.Code)
	p.Name = strings.TrimSpace(p.Name)
	if p.Code == "" {
		return fmt.Errorf("code is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.AssignedTherapistID != nil {
		t, err := s.therapists.Lookup(ctx, *p.AssignedTherapistID)
		if err != nil {
			return fmt.Errorf("assigned therapist: %w", err)
		}
		p.AssignedDoctor = t.Name
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// Update changes contact details. The therapist assignment only changes
// through an accepted transfer.
func (s *Service) Update(ctx context.Context, p *Patient) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) List(ctx context.Context, therapistID *uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, therapistID, limit, offset)
}

// AssignTherapist rewrites the primary therapist id and display name together.
func (s *Service) AssignTherapist(ctx context.Context, id uuid.UUID, therapistID *uuid.UUID, name string) error {
	return s.repo.UpdateAssignment(ctx, id, therapistID, name)
}
