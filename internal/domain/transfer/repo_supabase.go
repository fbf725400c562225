package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"

	"github.com/clinic/frontdesk/internal/platform/docstore"
)

const (
	requestTable = "transfer_request"
	historyTable = "transfer_history"
)

// -- Request --

type requestRepoSupabase struct{ client *docstore.Client }

func NewRequestRepoSupabase(client *docstore.Client) RequestRepository {
	return &requestRepoSupabase{client: client}
}

func (r *requestRepoSupabase) selectAll(count string) *postgrest.FilterBuilder {
	return r.client.From(requestTable).Select("*", count, false)
}

func (r *requestRepoSupabase) one(q *postgrest.FilterBuilder) (*Request, error) {
	data, _, err := q.Execute()
	if err != nil {
		return nil, fmt.Errorf("get transfer request: %w", err)
	}
	req, err := docstore.DecodeOne[Request](data)
	if errors.Is(err, docstore.ErrNoRows) {
		return nil, ErrNotFound
	}
	return req, err
}

func (r *requestRepoSupabase) Create(_ context.Context, q *Request) error {
	q.ID = uuid.New()
	q.RequestedAt = time.Now().UTC()
	if _, _, err := r.client.From(requestTable).Insert(q, false, "", docstore.Returning, "").Execute(); err != nil {
		// PostgREST passes the SQLSTATE of the partial unique index through.
		if strings.Contains(err.Error(), uniqueViolation) {
			return ErrPendingRequestExists
		}
		return fmt.Errorf("insert transfer request: %w", err)
	}
	return nil
}

func (r *requestRepoSupabase) GetByID(_ context.Context, id uuid.UUID) (*Request, error) {
	return r.one(r.selectAll("").Eq("id", id.String()))
}

func (r *requestRepoSupabase) FindPendingByPatient(_ context.Context, patientID uuid.UUID) (*Request, error) {
	return r.one(r.selectAll("").
		Eq("patient_id", patientID.String()).
		Eq("status", StatusPending).
		Limit(1, ""))
}

func (r *requestRepoSupabase) List(_ context.Context, f ListFilter, limit, offset int) ([]*Request, int, error) {
	q := r.selectAll("exact")
	if f.ToTherapistID != nil {
		q = q.Eq("to_therapist_id", f.ToTherapistID.String())
	}
	if f.RequestedBy != nil {
		q = q.Eq("requested_by", f.RequestedBy.String())
	}
	if f.Status != "" {
		q = q.Eq("status", f.Status)
	}
	from, to := docstore.Span(limit, offset)
	data, count, err := q.Order("requested_at", docstore.Desc).Range(from, to, "").Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("list transfer requests: %w", err)
	}
	items, err := docstore.DecodeAll[*Request](data)
	return items, int(count), err
}

func (r *requestRepoSupabase) UpdateStatus(_ context.Context, id uuid.UUID, from, to string, respondedAt *time.Time, responseReason string) error {
	patch := map[string]interface{}{
		"status":          to,
		"responded_at":    respondedAt,
		"response_reason": nil,
	}
	if responseReason != "" {
		patch["response_reason"] = responseReason
	}
	data, _, err := r.client.From(requestTable).
		Update(patch, docstore.Returning, "").
		Eq("id", id.String()).
		Eq("status", from).
		Execute()
	if err != nil {
		return fmt.Errorf("update transfer request: %w", err)
	}
	rows, err := docstore.DecodeAll[Request](data)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotPending
	}
	return nil
}

// -- History --

type historyRepoSupabase struct{ client *docstore.Client }

func NewHistoryRepoSupabase(client *docstore.Client) HistoryRepository {
	return &historyRepoSupabase{client: client}
}

func (r *historyRepoSupabase) Append(_ context.Context, h *History) error {
	h.ID = uuid.New()
	h.TransferredAt = time.Now().UTC()
	if _, _, err := r.client.From(historyTable).Insert(h, false, "", docstore.Returning, "").Execute(); err != nil {
		return fmt.Errorf("insert transfer history: %w", err)
	}
	return nil
}

func (r *historyRepoSupabase) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*History, int, error) {
	from, to := docstore.Span(limit, offset)
	data, count, err := r.client.From(historyTable).
		Select("*", "exact", false).
		Eq("patient_id", patientID.String()).
		Order("transferred_at", docstore.Desc).
		Range(from, to, "").
		Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("list transfer history: %w", err)
	}
	items, err := docstore.DecodeAll[*History](data)
	return items, int(count), err
}
