package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table. Code is the clinic-facing patient id
// printed on cards and referrals; ID is the internal key.
type Patient struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	Code                string     `db:"code" json:"code"`
	Name                string     `db:"name" json:"name"`
	Email               string     `db:"email" json:"email,omitempty"`
	Phone               string     `db:"phone" json:"phone,omitempty"`
	AssignedTherapistID *uuid.UUID `db:"assigned_therapist_id" json:"assigned_therapist_id,omitempty"`
	AssignedDoctor      string     `db:"assigned_doctor" json:"assigned_doctor"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// AssignedTo reports whether the patient's primary therapist is id.
func (p Patient) AssignedTo(id uuid.UUID) bool {
	return p.AssignedTherapistID != nil && *p.AssignedTherapistID == id
}
