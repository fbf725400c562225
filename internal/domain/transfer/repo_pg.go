package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/frontdesk/internal/platform/db"
)

// uniqueViolation is the Postgres SQLSTATE for a unique index hit.
const uniqueViolation = "23505"

// -- Request --

type requestRepoPG struct{ pool *pgxpool.Pool }

func NewRequestRepoPG(pool *pgxpool.Pool) RequestRepository {
	return &requestRepoPG{pool: pool}
}

func (r *requestRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Querier(ctx, r.pool)
}

const reqCols = `id, patient_id, patient_code, patient_name, from_therapist_id,
	COALESCE(from_therapist_name, ''), to_therapist_id, to_therapist_name,
	requested_by, requested_by_name, status, COALESCE(reason, ''), COALESCE(response_reason, ''),
	requested_at, responded_at`

func (r *requestRepoPG) scanRequest(row pgx.Row) (*Request, error) {
	var q Request
	err := row.Scan(&q.ID, &q.PatientID, &q.PatientCode, &q.PatientName, &q.FromTherapistID,
		&q.FromTherapistName, &q.ToTherapistID, &q.ToTherapistName,
		&q.RequestedBy, &q.RequestedByName, &q.Status, &q.Reason, &q.ResponseReason, &q.RequestedAt, &q.RespondedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &q, err
}

func (r *requestRepoPG) Create(ctx context.Context, q *Request) error {
	q.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO transfer_request (id, patient_id, patient_code, patient_name,
			from_therapist_id, from_therapist_name, to_therapist_id, to_therapist_name,
			requested_by, requested_by_name, status, reason)
		VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,$8,$9,$10,$11,NULLIF($12,''))
		RETURNING requested_at`,
		q.ID, q.PatientID, q.PatientCode, q.PatientName,
		q.FromTherapistID, q.FromTherapistName, q.ToTherapistID, q.ToTherapistName,
		q.RequestedBy, q.RequestedByName, q.Status, q.Reason).Scan(&q.RequestedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrPendingRequestExists
	}
	return err
}

func (r *requestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	return r.scanRequest(r.conn(ctx).QueryRow(ctx, `SELECT `+reqCols+` FROM transfer_request WHERE id = $1`, id))
}

func (r *requestRepoPG) FindPendingByPatient(ctx context.Context, patientID uuid.UUID) (*Request, error) {
	return r.scanRequest(r.conn(ctx).QueryRow(ctx, `SELECT `+reqCols+` FROM transfer_request
		WHERE patient_id = $1 AND status = $2 LIMIT 1`, patientID, StatusPending))
}

func (r *requestRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Request, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.ToTherapistID != nil {
		where += fmt.Sprintf(` AND to_therapist_id = $%d`, idx)
		args = append(args, *f.ToTherapistID)
		idx++
	}
	if f.RequestedBy != nil {
		where += fmt.Sprintf(` AND requested_by = $%d`, idx)
		args = append(args, *f.RequestedBy)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM transfer_request`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + reqCols + ` FROM transfer_request` + where +
		fmt.Sprintf(` ORDER BY requested_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Request
	for rows.Next() {
		q, err := r.scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, q)
	}
	return items, total, rows.Err()
}

func (r *requestRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, respondedAt *time.Time, responseReason string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE transfer_request SET status = $3, responded_at = $4, response_reason = NULLIF($5,'')
		WHERE id = $1 AND status = $2`, id, from, to, respondedAt, responseReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}
	return nil
}

// -- History --

type historyRepoPG struct{ pool *pgxpool.Pool }

func NewHistoryRepoPG(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepoPG{pool: pool}
}

func (r *historyRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Querier(ctx, r.pool)
}

const histCols = `id, request_id, patient_id, patient_name, from_therapist_id,
	COALESCE(from_therapist_name, ''), to_therapist_id, to_therapist_name,
	appointments_moved, transferred_at`

func (r *historyRepoPG) Append(ctx context.Context, h *History) error {
	h.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO transfer_history (id, request_id, patient_id, patient_name,
			from_therapist_id, from_therapist_name, to_therapist_id, to_therapist_name,
			appointments_moved)
		VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,$8,$9)
		RETURNING transferred_at`,
		h.ID, h.RequestID, h.PatientID, h.PatientName,
		h.FromTherapistID, h.FromTherapistName, h.ToTherapistID, h.ToTherapistName,
		h.AppointmentsMoved).Scan(&h.TransferredAt)
}

func (r *historyRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*History, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM transfer_history WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+histCols+` FROM transfer_history
		WHERE patient_id = $1 ORDER BY transferred_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*History
	for rows.Next() {
		var h History
		if err := rows.Scan(&h.ID, &h.RequestID, &h.PatientID, &h.PatientName, &h.FromTherapistID,
			&h.FromTherapistName, &h.ToTherapistID, &h.ToTherapistName,
			&h.AppointmentsMoved, &h.TransferredAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &h)
	}
	return items, total, rows.Err()
}
