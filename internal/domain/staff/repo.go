package staff

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("therapist not found")

type Repository interface {
	Create(ctx context.Context, t *Therapist) error
	GetByID(ctx context.Context, id uuid.UUID) (*Therapist, error)
	Update(ctx context.Context, t *Therapist) error
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Therapist, int, error)
}
