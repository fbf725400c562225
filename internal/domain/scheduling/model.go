package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/frontdesk/internal/domain/availability"
)

// Appointment statuses. Pending and ongoing appointments are active.
const (
	StatusPending   = "pending"
	StatusOngoing   = "ongoing"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

var validAppointmentStatuses = map[string]bool{
	StatusPending: true, StatusOngoing: true, StatusCompleted: true, StatusCancelled: true,
}

// allowed status moves; completed and cancelled are terminal.
var statusTransitions = map[string][]string{
	StatusPending: {StatusOngoing, StatusCancelled},
	StatusOngoing: {StatusCompleted, StatusCancelled},
}

// ActiveStatuses lists the statuses that still occupy a therapist's time.
var ActiveStatuses = []string{StatusPending, StatusOngoing}

// Appointment maps to the appointment table. PatientName and Doctor are
// display copies of the patient's and therapist's names.
type Appointment struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	PatientName     string     `db:"patient_name" json:"patient_name"`
	TherapistID     *uuid.UUID `db:"therapist_id" json:"therapist_id,omitempty"`
	Doctor          string     `db:"doctor" json:"doctor"`
	Date            string     `db:"date" json:"date"`
	Time            string     `db:"time" json:"time"`
	DurationMinutes *int       `db:"duration_minutes" json:"duration_minutes,omitempty"`
	Status          string     `db:"status" json:"status"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the appointment is pending or ongoing.
func (a *Appointment) IsActive() bool {
	return a.Status == StatusPending || a.Status == StatusOngoing
}

// EffectiveDuration returns the length in minutes, defaulting to 30 when
// unset or non-positive.
func (a *Appointment) EffectiveDuration() int {
	if a.DurationMinutes == nil || *a.DurationMinutes <= 0 {
		return availability.DefaultDurationMinutes
	}
	return *a.DurationMinutes
}

// Booking projects the appointment onto the availability calendar.
func (a *Appointment) Booking() availability.Booking {
	return availability.Booking{Date: a.Date, Time: a.Time, DurationMinutes: a.EffectiveDuration()}
}

// Bookings projects a list of appointments.
func Bookings(apts []*Appointment) []availability.Booking {
	out := make([]availability.Booking, 0, len(apts))
	for _, a := range apts {
		out = append(out, a.Booking())
	}
	return out
}

// CanTransition reports whether status may move from one value to another.
func CanTransition(from, to string) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
