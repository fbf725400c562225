package transfer

import (
	"time"

	"github.com/google/uuid"
)

// Request statuses. Accepted and rejected are terminal.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

var validRequestStatuses = map[string]bool{
	StatusPending: true, StatusAccepted: true, StatusRejected: true,
}

// Conflict reasons.
const (
	ReasonNoAvailability  = "no_availability"
	ReasonSlotUnavailable = "slot_unavailable"
	ReasonAlreadyBooked   = "already_booked"
)

// Request maps to the transfer_request table. Names are display copies taken
// when the request is created.
type Request struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	PatientID         uuid.UUID  `db:"patient_id" json:"patient_id"`
	PatientCode       string     `db:"patient_code" json:"patient_code"`
	PatientName       string     `db:"patient_name" json:"patient_name"`
	FromTherapistID   *uuid.UUID `db:"from_therapist_id" json:"from_therapist_id,omitempty"`
	FromTherapistName string     `db:"from_therapist_name" json:"from_therapist_name,omitempty"`
	ToTherapistID     uuid.UUID  `db:"to_therapist_id" json:"to_therapist_id"`
	ToTherapistName   string     `db:"to_therapist_name" json:"to_therapist_name"`
	RequestedBy       uuid.UUID  `db:"requested_by" json:"requested_by"`
	RequestedByName   string     `db:"requested_by_name" json:"requested_by_name"`
	Status            string     `db:"status" json:"status"`
	Reason            string     `db:"reason" json:"reason,omitempty"`
	ResponseReason    string     `db:"response_reason" json:"response_reason,omitempty"`
	RequestedAt       time.Time  `db:"requested_at" json:"requested_at"`
	RespondedAt       *time.Time `db:"responded_at" json:"responded_at,omitempty"`
}

// IsPending reports whether the request still awaits a response.
func (r *Request) IsPending() bool {
	return r.Status == StatusPending
}

// History maps to the transfer_history table. Rows are append-only.
type History struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	RequestID         uuid.UUID  `db:"request_id" json:"request_id"`
	PatientID         uuid.UUID  `db:"patient_id" json:"patient_id"`
	PatientName       string     `db:"patient_name" json:"patient_name"`
	FromTherapistID   *uuid.UUID `db:"from_therapist_id" json:"from_therapist_id,omitempty"`
	FromTherapistName string     `db:"from_therapist_name" json:"from_therapist_name,omitempty"`
	ToTherapistID     uuid.UUID  `db:"to_therapist_id" json:"to_therapist_id"`
	ToTherapistName   string     `db:"to_therapist_name" json:"to_therapist_name"`
	AppointmentsMoved int        `db:"appointments_moved" json:"appointments_moved"`
	TransferredAt     time.Time  `db:"transferred_at" json:"transferred_at"`
}

// Conflict describes one appointment the destination therapist cannot
// cleanly take over. It is derived on demand and never stored.
type Conflict struct {
	AppointmentID   uuid.UUID  `json:"appointment_id"`
	Date            string     `json:"date"`
	Time            string     `json:"time"`
	DurationMinutes int        `json:"duration_minutes"`
	Reason          string     `json:"reason"`
	ConflictsWith   *uuid.UUID `json:"conflicts_with,omitempty"`
}

// CreateInput carries a new transfer request.
type CreateInput struct {
	PatientID     uuid.UUID `json:"patient_id"`
	ToTherapistID uuid.UUID `json:"to_therapist_id"`
	RequestedBy   uuid.UUID `json:"-"`
	Reason        string    `json:"reason"`
}

// ListFilter selects requests. Zero fields are ignored.
type ListFilter struct {
	ToTherapistID *uuid.UUID
	RequestedBy   *uuid.UUID
	Status        string
}
