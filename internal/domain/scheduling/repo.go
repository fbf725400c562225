package scheduling

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("appointment not found")
	// ErrStaleStatus means the appointment's status changed before the
	// update could be applied.
	ErrStaleStatus = errors.New("appointment status changed concurrently")
)

// Filter narrows List. Zero fields are ignored.
type Filter struct {
	PatientID   *uuid.UUID
	TherapistID *uuid.UUID
	Date        string
	Status      string
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error)
	ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error)
	ListActiveByTherapist(ctx context.Context, therapistID uuid.UUID) ([]*Appointment, error)
	// FindActiveAt returns the therapist's active appointments starting at
	// exactly date and clock time.
	FindActiveAt(ctx context.Context, therapistID uuid.UUID, date, clock string) ([]*Appointment, error)
	UpdateTherapist(ctx context.Context, id uuid.UUID, therapistID *uuid.UUID, doctor string) error
	// UpdateStatus moves from -> to, returning ErrStaleStatus when the stored
	// status is no longer from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
}
