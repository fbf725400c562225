package availability

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound means the therapist has never saved an availability.
	ErrNotFound = errors.New("availability not found")
	// ErrVersionConflict means the stored document changed since it was read.
	ErrVersionConflict = errors.New("availability was modified concurrently")
)

// Repository persists one availability document per therapist.
//
// Save inserts when VersionID is 0 and otherwise updates only if the stored
// version still equals VersionID, returning ErrVersionConflict when it does
// not. On success VersionID is incremented.
type Repository interface {
	Get(ctx context.Context, therapistID uuid.UUID) (*TherapistAvailability, error)
	Save(ctx context.Context, a *TherapistAvailability) error
}
