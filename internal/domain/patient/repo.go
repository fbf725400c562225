package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("patient not found")

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, therapistID *uuid.UUID, limit, offset int) ([]*Patient, int, error)
	// UpdateAssignment sets the primary therapist id and display name.
	UpdateAssignment(ctx context.Context, id uuid.UUID, therapistID *uuid.UUID, doctor string) error
}
