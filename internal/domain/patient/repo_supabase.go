package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/frontdesk/internal/platform/docstore"
)

const patientTable = "patient"

type repoSupabase struct{ client *docstore.Client }

func NewRepoSupabase(client *docstore.Client) Repository {
	return &repoSupabase{client: client}
}

func (r *repoSupabase) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if _, _, err := r.client.From(patientTable).Insert(p, false, "", docstore.Returning, "").Execute(); err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *repoSupabase) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	data, _, err := r.client.From(patientTable).Select("*", "", false).Eq("id", id.String()).Execute()
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	p, err := docstore.DecodeOne[Patient](data)
	if errors.Is(err, docstore.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *repoSupabase) patch(id uuid.UUID, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now().UTC()
	data, _, err := r.client.From(patientTable).Update(fields, docstore.Returning, "").Eq("id", id.String()).Execute()
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	rows, err := docstore.DecodeAll[Patient](data)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoSupabase) Update(_ context.Context, p *Patient) error {
	return r.patch(p.ID, map[string]interface{}{
		"name":  p.Name,
		"email": p.Email,
		"phone": p.Phone,
	})
}

func (r *repoSupabase) UpdateAssignment(_ context.Context, id uuid.UUID, therapistID *uuid.UUID, doctor string) error {
	return r.patch(id, map[string]interface{}{
		"assigned_therapist_id": therapistID,
		"assigned_doctor":       doctor,
	})
}

func (r *repoSupabase) List(_ context.Context, therapistID *uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	from, to := docstore.Span(limit, offset)
	q := r.client.From(patientTable).Select("*", "exact", false)
	if therapistID != nil {
		q = q.Eq("assigned_therapist_id", therapistID.String())
	}
	data, count, err := q.Order("name", docstore.Asc).Range(from, to, "").Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	rows, err := docstore.DecodeAll[*Patient](data)
	if err != nil {
		return nil, 0, err
	}
	return rows, int(count), nil
}
