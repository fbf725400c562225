package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"

	"github.com/clinic/frontdesk/internal/platform/docstore"
)

const appointmentTable = "appointment"

type appointmentRepoSupabase struct{ client *docstore.Client }

func NewAppointmentRepoSupabase(client *docstore.Client) AppointmentRepository {
	return &appointmentRepoSupabase{client: client}
}

func (r *appointmentRepoSupabase) selectAll(count string) *postgrest.FilterBuilder {
	return r.client.From(appointmentTable).Select("*", count, false)
}

func (r *appointmentRepoSupabase) fetch(q *postgrest.FilterBuilder) ([]*Appointment, error) {
	data, _, err := q.Execute()
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	return docstore.DecodeAll[*Appointment](data)
}

func (r *appointmentRepoSupabase) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	if _, _, err := r.client.From(appointmentTable).Insert(a, false, "", docstore.Returning, "").Execute(); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoSupabase) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	data, _, err := r.selectAll("").Eq("id", id.String()).Execute()
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	a, err := docstore.DecodeOne[Appointment](data)
	if errors.Is(err, docstore.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (r *appointmentRepoSupabase) List(_ context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	q := r.selectAll("exact")
	if f.PatientID != nil {
		q = q.Eq("patient_id", f.PatientID.String())
	}
	if f.TherapistID != nil {
		q = q.Eq("therapist_id", f.TherapistID.String())
	}
	if f.Date != "" {
		q = q.Eq("date", f.Date)
	}
	if f.Status != "" {
		q = q.Eq("status", f.Status)
	}
	from, to := docstore.Span(limit, offset)
	data, count, err := q.Order("date", docstore.Asc).Order("time", docstore.Asc).Range(from, to, "").Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	items, err := docstore.DecodeAll[*Appointment](data)
	return items, int(count), err
}

func (r *appointmentRepoSupabase) ListActiveByPatient(_ context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	return r.fetch(r.selectAll("").
		Eq("patient_id", patientID.String()).
		In("status", ActiveStatuses).
		Order("date", docstore.Asc).Order("time", docstore.Asc))
}

func (r *appointmentRepoSupabase) ListActiveByTherapist(_ context.Context, therapistID uuid.UUID) ([]*Appointment, error) {
	return r.fetch(r.selectAll("").
		Eq("therapist_id", therapistID.String()).
		In("status", ActiveStatuses).
		Order("date", docstore.Asc).Order("time", docstore.Asc))
}

func (r *appointmentRepoSupabase) FindActiveAt(_ context.Context, therapistID uuid.UUID, date, clock string) ([]*Appointment, error) {
	return r.fetch(r.selectAll("").
		Eq("therapist_id", therapistID.String()).
		Eq("date", date).
		Eq("time", clock).
		In("status", ActiveStatuses))
}

func (r *appointmentRepoSupabase) UpdateTherapist(_ context.Context, id uuid.UUID, therapistID *uuid.UUID, doctor string) error {
	patch := map[string]interface{}{
		"therapist_id": therapistID,
		"doctor":       doctor,
		"updated_at":   time.Now().UTC(),
	}
	rows, err := r.fetch(r.client.From(appointmentTable).
		Update(patch, docstore.Returning, "").
		Eq("id", id.String()))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepoSupabase) UpdateStatus(_ context.Context, id uuid.UUID, from, to string) error {
	patch := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	rows, err := r.fetch(r.client.From(appointmentTable).
		Update(patch, docstore.Returning, "").
		Eq("id", id.String()).
		Eq("status", from))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrStaleStatus
	}
	return nil
}
