package transfer

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RequestRepository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	FindPendingByPatient(ctx context.Context, patientID uuid.UUID) (*Request, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Request, int, error)
	// UpdateStatus moves a request from one status to another only if it is
	// still in from, recording the responder's reason. The requester's
	// reason is never touched. It returns ErrNotPending when no row matched.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, respondedAt *time.Time, responseReason string) error
}

type HistoryRepository interface {
	Append(ctx context.Context, h *History) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*History, int, error)
}
