package transfer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/frontdesk/internal/domain/availability"
	"github.com/clinic/frontdesk/internal/domain/patient"
	"github.com/clinic/frontdesk/internal/domain/scheduling"
	"github.com/clinic/frontdesk/internal/domain/staff"
	"github.com/clinic/frontdesk/internal/platform/notification"
)

// -- requests --

type mockRequestRepo struct {
	items   map[uuid.UUID]Request
	creates int
	updates int
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{items: make(map[uuid.UUID]Request)}
}

func (m *mockRequestRepo) Create(_ context.Context, r *Request) error {
	for _, existing := range m.items {
		if existing.PatientID == r.PatientID && existing.Status == StatusPending {
			return ErrPendingRequestExists
		}
	}
	r.ID = uuid.New()
	r.RequestedAt = time.Now().UTC()
	m.items[r.ID] = *r
	m.creates++
	return nil
}

func (m *mockRequestRepo) GetByID(_ context.Context, id uuid.UUID) (*Request, error) {
	r, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *mockRequestRepo) FindPendingByPatient(_ context.Context, patientID uuid.UUID) (*Request, error) {
	for _, r := range m.items {
		if r.PatientID == patientID && r.Status == StatusPending {
			out := r
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRequestRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*Request, int, error) {
	var out []*Request
	for _, r := range m.items {
		if f.ToTherapistID != nil && r.ToTherapistID != *f.ToTherapistID {
			continue
		}
		if f.RequestedBy != nil && r.RequestedBy != *f.RequestedBy {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		r := r
		out = append(out, &r)
	}
	return out, len(out), nil
}

func (m *mockRequestRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to string, at *time.Time, responseReason string) error {
	r, ok := m.items[id]
	if !ok || r.Status != from {
		return ErrNotPending
	}
	r.Status = to
	r.RespondedAt = at
	r.ResponseReason = responseReason
	m.items[id] = r
	m.updates++
	return nil
}

// -- history --

type mockHistoryRepo struct {
	items     []History
	appendErr error
}

func (m *mockHistoryRepo) Append(_ context.Context, h *History) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	h.ID = uuid.New()
	h.TransferredAt = time.Now().UTC()
	m.items = append(m.items, *h)
	return nil
}

func (m *mockHistoryRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*History, int, error) {
	var out []*History
	for i := range m.items {
		if m.items[i].PatientID == patientID {
			h := m.items[i]
			out = append(out, &h)
		}
	}
	return out, len(out), nil
}

// -- patients --

type mockPatients struct {
	items     map[uuid.UUID]patient.Patient
	gets      int
	assignErr error
}

func (m *mockPatients) Get(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	m.gets++
	p, ok := m.items[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	return &p, nil
}

func (m *mockPatients) AssignTherapist(_ context.Context, id uuid.UUID, therapistID *uuid.UUID, name string) error {
	if m.assignErr != nil {
		return m.assignErr
	}
	p, ok := m.items[id]
	if !ok {
		return patient.ErrNotFound
	}
	p.AssignedTherapistID = therapistID
	p.AssignedDoctor = name
	m.items[id] = p
	return nil
}

// -- appointments --

type mockAppointments struct {
	items       map[uuid.UUID]scheduling.Appointment
	reassignErr error
}

func (m *mockAppointments) add(a scheduling.Appointment) uuid.UUID {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	m.items[a.ID] = a
	return a.ID
}

func (m *mockAppointments) filter(keep func(a scheduling.Appointment) bool) []*scheduling.Appointment {
	var out []*scheduling.Appointment
	for _, a := range m.items {
		if a.IsActive() && keep(a) {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out
}

func (m *mockAppointments) ListActiveByPatient(_ context.Context, patientID uuid.UUID) ([]*scheduling.Appointment, error) {
	return m.filter(func(a scheduling.Appointment) bool { return a.PatientID == patientID }), nil
}

func (m *mockAppointments) ListActiveByTherapist(_ context.Context, therapistID uuid.UUID) ([]*scheduling.Appointment, error) {
	return m.filter(func(a scheduling.Appointment) bool {
		return a.TherapistID != nil && *a.TherapistID == therapistID
	}), nil
}

func (m *mockAppointments) FindActiveAt(_ context.Context, therapistID uuid.UUID, date, clock string) ([]*scheduling.Appointment, error) {
	return m.filter(func(a scheduling.Appointment) bool {
		return a.TherapistID != nil && *a.TherapistID == therapistID && a.Date == date && a.Time == clock
	}), nil
}

func (m *mockAppointments) Reassign(_ context.Context, id uuid.UUID, therapistID *uuid.UUID, doctor string) error {
	if m.reassignErr != nil {
		return m.reassignErr
	}
	a, ok := m.items[id]
	if !ok {
		return scheduling.ErrNotFound
	}
	a.TherapistID = therapistID
	a.Doctor = doctor
	m.items[id] = a
	return nil
}

// -- availability --

type mockAvailability struct {
	items   map[uuid.UUID]*availability.TherapistAvailability
	saves   int
	saveErr error
}

func (m *mockAvailability) Get(_ context.Context, id uuid.UUID) (*availability.TherapistAvailability, error) {
	a, ok := m.items[id]
	if !ok {
		return availability.Empty(id), nil
	}
	return a.Clone(), nil
}

func (m *mockAvailability) Save(_ context.Context, a *availability.TherapistAvailability) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	current := 0
	if stored, ok := m.items[a.TherapistID]; ok {
		current = stored.VersionID
	}
	if a.VersionID != current {
		return availability.ErrVersionConflict
	}
	a.VersionID++
	m.items[a.TherapistID] = a.Clone()
	m.saves++
	return nil
}

// -- therapists --

type stubTherapists map[uuid.UUID]staff.Therapist

func (s stubTherapists) Lookup(_ context.Context, id uuid.UUID) (*staff.Therapist, error) {
	t, ok := s[id]
	if !ok {
		return nil, staff.ErrNotFound
	}
	return &t, nil
}

// -- notifications --

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []notification.Message
}

func (r *recordingDispatcher) Dispatch(_ context.Context, msg notification.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
}

func (r *recordingDispatcher) to(addr string) []notification.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notification.Message
	for _, m := range r.sent {
		if m.To == addr {
			out = append(out, m)
		}
	}
	return out
}

// -- transactions --

// rollbackTx reports itself atomic but cannot actually roll the mocks back,
// so tests can tell whether the service tried to compensate.
type rollbackTx struct{ calls int }

func (t *rollbackTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

func (t *rollbackTx) Atomic() bool { return true }
