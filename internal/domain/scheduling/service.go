package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinic/frontdesk/internal/domain/availability"
	"github.com/clinic/frontdesk/internal/domain/patient"
	"github.com/clinic/frontdesk/internal/domain/staff"
)

// ErrInvalidTransition is returned for a status move the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid appointment status transition")

type PatientLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type TherapistLookup interface {
	Lookup(ctx context.Context, id uuid.UUID) (*staff.Therapist, error)
}

type Service struct {
	appointments AppointmentRepository
	patients     PatientLookup
	therapists   TherapistLookup
}

func NewService(appt AppointmentRepository, patients PatientLookup, therapists TherapistLookup) *Service {
	return &Service{appointments: appt, patients: patients, therapists: therapists}
}

// CreateAppointment validates and books an appointment. The therapist
// defaults to the patient's primary therapist; display names are copied
// from the patient and therapist records.
func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if err := availability.ValidDate(a.Date); err != nil {
		return err
	}
	mins, err := availability.ParseStartClock(a.Time)
	if err != nil {
		return err
	}
	a.Time = availability.FormatClock(mins)
	if a.DurationMinutes != nil {
		if err := availability.ValidDuration(*a.DurationMinutes); err != nil {
			return fmt.Errorf("duration_minutes: %w", err)
		}
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	if !validAppointmentStatuses[a.Status] {
		return fmt.Errorf("invalid appointment status: %s", a.Status)
	}

	p, err := s.patients.Get(ctx, a.PatientID)
	if err != nil {
		return fmt.Errorf("patient: %w", err)
	}
	a.PatientName = p.Name
	if a.TherapistID == nil {
		a.TherapistID = p.AssignedTherapistID
	}
	if a.TherapistID != nil {
		t, err := s.therapists.Lookup(ctx, *a.TherapistID)
		if err != nil {
			return fmt.Errorf("therapist: %w", err)
		}
		a.Doctor = t.Name
	}
	return s.appointments.Create(ctx, a)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.List(ctx, f, limit, offset)
}

// UpdateStatus moves an appointment along its lifecycle. Setting the status
// it already has is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Appointment, error) {
	if !validAppointmentStatuses[status] {
		return nil, fmt.Errorf("invalid appointment status: %s", status)
	}
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == status {
		return a, nil
	}
	if !CanTransition(a.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, status)
	}
	if err := s.appointments.UpdateStatus(ctx, id, a.Status, status); err != nil {
		return nil, err
	}
	a.Status = status
	return a, nil
}

func (s *Service) ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	return s.appointments.ListActiveByPatient(ctx, patientID)
}

func (s *Service) ListActiveByTherapist(ctx context.Context, therapistID uuid.UUID) ([]*Appointment, error) {
	return s.appointments.ListActiveByTherapist(ctx, therapistID)
}

func (s *Service) FindActiveAt(ctx context.Context, therapistID uuid.UUID, date, clock string) ([]*Appointment, error) {
	return s.appointments.FindActiveAt(ctx, therapistID, date, clock)
}

// Reassign points one appointment at a different therapist.
func (s *Service) Reassign(ctx context.Context, id uuid.UUID, therapistID *uuid.UUID, doctor string) error {
	return s.appointments.UpdateTherapist(ctx, id, therapistID, doctor)
}
