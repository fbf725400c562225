package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/frontdesk/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Querier(ctx, r.pool)
}

func (r *repoPG) Get(ctx context.Context, therapistID uuid.UUID) (*TherapistAvailability, error) {
	var (
		a   TherapistAvailability
		raw []byte
	)
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT therapist_id, days, version_id, updated_at
		FROM therapist_availability WHERE therapist_id = $1`, therapistID).
		Scan(&a.TherapistID, &raw, &a.VersionID, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &a.Days); err != nil {
		return nil, fmt.Errorf("decode availability days: %w", err)
	}
	if a.Days == nil {
		a.Days = Days{}
	}
	return &a, nil
}

func (r *repoPG) Save(ctx context.Context, a *TherapistAvailability) error {
	days, err := json.Marshal(a.Days)
	if err != nil {
		return fmt.Errorf("encode availability days: %w", err)
	}

	if a.VersionID == 0 {
		tag, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO therapist_availability (therapist_id, days, version_id, updated_at)
			VALUES ($1, $2, 1, NOW())
			ON CONFLICT (therapist_id) DO NOTHING`,
			a.TherapistID, string(days))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrVersionConflict
		}
		a.VersionID = 1
		return nil
	}

	err = r.conn(ctx).QueryRow(ctx, `
		UPDATE therapist_availability
		SET days = $2, version_id = version_id + 1, updated_at = NOW()
		WHERE therapist_id = $1 AND version_id = $3
		RETURNING version_id, updated_at`,
		a.TherapistID, string(days), a.VersionID).Scan(&a.VersionID, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVersionConflict
	}
	return err
}
