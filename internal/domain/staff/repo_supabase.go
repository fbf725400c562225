package staff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/frontdesk/internal/platform/docstore"
)

const therapistTable = "therapist"

type repoSupabase struct{ client *docstore.Client }

func NewRepoSupabase(client *docstore.Client) Repository {
	return &repoSupabase{client: client}
}

func (r *repoSupabase) Create(_ context.Context, t *Therapist) error {
	t.ID = uuid.New()
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	if _, _, err := r.client.From(therapistTable).Insert(t, false, "", docstore.Returning, "").Execute(); err != nil {
		return fmt.Errorf("insert therapist: %w", err)
	}
	return nil
}

func (r *repoSupabase) GetByID(_ context.Context, id uuid.UUID) (*Therapist, error) {
	data, _, err := r.client.From(therapistTable).Select("*", "", false).Eq("id", id.String()).Execute()
	if err != nil {
		return nil, fmt.Errorf("get therapist: %w", err)
	}
	t, err := docstore.DecodeOne[Therapist](data)
	if errors.Is(err, docstore.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (r *repoSupabase) Update(_ context.Context, t *Therapist) error {
	t.UpdatedAt = time.Now().UTC()
	patch := map[string]interface{}{
		"name":       t.Name,
		"email":      t.Email,
		"phone":      t.Phone,
		"active":     t.Active,
		"updated_at": t.UpdatedAt,
	}
	data, _, err := r.client.From(therapistTable).Update(patch, docstore.Returning, "").Eq("id", t.ID.String()).Execute()
	if err != nil {
		return fmt.Errorf("update therapist: %w", err)
	}
	rows, err := docstore.DecodeAll[Therapist](data)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoSupabase) List(_ context.Context, activeOnly bool, limit, offset int) ([]*Therapist, int, error) {
	from, to := docstore.Span(limit, offset)
	q := r.client.From(therapistTable).Select("*", "exact", false)
	if activeOnly {
		q = q.Eq("active", "true")
	}
	data, count, err := q.Order("name", docstore.Asc).Range(from, to, "").Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("list therapists: %w", err)
	}
	rows, err := docstore.DecodeAll[*Therapist](data)
	if err != nil {
		return nil, 0, err
	}
	return rows, int(count), nil
}
