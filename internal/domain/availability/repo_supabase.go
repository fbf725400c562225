package availability

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/frontdesk/internal/platform/docstore"
)

const availabilityTable = "therapist_availability"

type repoSupabase struct{ client *docstore.Client }

func NewRepoSupabase(client *docstore.Client) Repository {
	return &repoSupabase{client: client}
}

func (r *repoSupabase) Get(_ context.Context, therapistID uuid.UUID) (*TherapistAvailability, error) {
	data, _, err := r.client.From(availabilityTable).
		Select("*", "", false).
		Eq("therapist_id", therapistID.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("get availability: %w", err)
	}
	a, err := docstore.DecodeOne[TherapistAvailability](data)
	if errors.Is(err, docstore.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if a.Days == nil {
		a.Days = Days{}
	}
	return a, nil
}

func (r *repoSupabase) Save(_ context.Context, a *TherapistAvailability) error {
	now := time.Now().UTC()

	if a.VersionID == 0 {
		row := TherapistAvailability{TherapistID: a.TherapistID, Days: a.Days, VersionID: 1, UpdatedAt: now}
		if _, _, err := r.client.From(availabilityTable).
			Insert(row, false, "", docstore.Returning, "").
			Execute(); err != nil {
			return fmt.Errorf("insert availability: %w", err)
		}
		a.VersionID, a.UpdatedAt = 1, now
		return nil
	}

	patch := map[string]interface{}{
		"days":       a.Days,
		"version_id": a.VersionID + 1,
		"updated_at": now,
	}
	data, _, err := r.client.From(availabilityTable).
		Update(patch, docstore.Returning, "").
		Eq("therapist_id", a.TherapistID.String()).
		Eq("version_id", strconv.Itoa(a.VersionID)).
		Execute()
	if err != nil {
		return fmt.Errorf("update availability: %w", err)
	}
	rows, err := docstore.DecodeAll[TherapistAvailability](data)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrVersionConflict
	}
	a.VersionID, a.UpdatedAt = rows[0].VersionID, rows[0].UpdatedAt
	return nil
}
