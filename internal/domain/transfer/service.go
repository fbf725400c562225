package transfer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/frontdesk/internal/domain/availability"
	"github.com/clinic/frontdesk/internal/domain/patient"
	"github.com/clinic/frontdesk/internal/domain/scheduling"
	"github.com/clinic/frontdesk/internal/domain/staff"
	"github.com/clinic/frontdesk/internal/platform/db"
	"github.com/clinic/frontdesk/internal/platform/notification"
)

// Accept steps, used as failure labels.
const (
	stepAvailabilityAdd   = "availability_add"
	stepRequestStatus     = "request_status"
	stepPatientAssignment = "patient_assignment"
	stepReassign          = "appointment_reassign"
	stepAvailabilityPrune = "availability_prune"
	stepHistory           = "history"
)

type PatientStore interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	AssignTherapist(ctx context.Context, id uuid.UUID, therapistID *uuid.UUID, name string) error
}

type AppointmentStore interface {
	ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*scheduling.Appointment, error)
	ListActiveByTherapist(ctx context.Context, therapistID uuid.UUID) ([]*scheduling.Appointment, error)
	FindActiveAt(ctx context.Context, therapistID uuid.UUID, date, clock string) ([]*scheduling.Appointment, error)
	Reassign(ctx context.Context, id uuid.UUID, therapistID *uuid.UUID, doctor string) error
}

type AvailabilityStore interface {
	Get(ctx context.Context, therapistID uuid.UUID) (*availability.TherapistAvailability, error)
	Save(ctx context.Context, a *availability.TherapistAvailability) error
}

type TherapistLookup interface {
	Lookup(ctx context.Context, id uuid.UUID) (*staff.Therapist, error)
}

// Deps wires a Service. Tx, Notifier, Metrics and Now have usable defaults.
type Deps struct {
	Requests     RequestRepository
	History      HistoryRepository
	Patients     PatientStore
	Appointments AppointmentStore
	Availability AvailabilityStore
	Therapists   TherapistLookup
	Tx           db.Transactor
	Notifier     notification.Dispatcher
	Metrics      *Metrics
	Logger       zerolog.Logger
	Now          func() time.Time
}

type Service struct {
	requests     RequestRepository
	history      HistoryRepository
	patients     PatientStore
	appointments AppointmentStore
	availability AvailabilityStore
	therapists   TherapistLookup
	tx           db.Transactor
	notifier     notification.Dispatcher
	metrics      *Metrics
	logger       zerolog.Logger
	now          func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		requests:     d.Requests,
		history:      d.History,
		patients:     d.Patients,
		appointments: d.Appointments,
		availability: d.Availability,
		therapists:   d.Therapists,
		tx:           d.Tx,
		notifier:     d.Notifier,
		metrics:      d.Metrics,
		logger:       d.Logger.With().Str("component", "transfer").Logger(),
		now:          d.Now,
	}
	if s.tx == nil {
		s.tx = db.NoopTransactor{}
	}
	if s.notifier == nil {
		s.notifier = notification.Discard{}
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CheckConflicts reports which of the patient's active appointments the
// destination therapist could not cleanly take over. It never writes. When
// a record it needs cannot be loaded it logs and reports no conflicts.
func (s *Service) CheckConflicts(ctx context.Context, patientID, toTherapistID uuid.UUID) ([]Conflict, error) {
	if toTherapistID == uuid.Nil {
		return nil, ErrDestinationRequired
	}
	if patientID == uuid.Nil {
		return nil, ErrPatientRequired
	}

	log := s.logger.With().Str("patient_id", patientID.String()).Str("to_therapist_id", toTherapistID.String()).Logger()

	if _, err := s.therapists.Lookup(ctx, toTherapistID); err != nil {
		log.Warn().Err(err).Msg("conflict check: destination therapist lookup failed")
		return []Conflict{}, nil
	}
	apts, err := s.appointments.ListActiveByPatient(ctx, patientID)
	if err != nil {
		log.Warn().Err(err).Msg("conflict check: appointment lookup failed")
		return []Conflict{}, nil
	}
	dest, err := s.availability.Get(ctx, toTherapistID)
	if err != nil {
		log.Warn().Err(err).Msg("conflict check: availability lookup failed")
		return []Conflict{}, nil
	}

	conflicts, lookupErr := DetectConflicts(ctx, dest, apts, s.bookingFinder(toTherapistID))
	if lookupErr != nil {
		log.Warn().Err(lookupErr).Msg("conflict check: existing booking lookup failed")
	}
	s.metrics.conflictsFound(conflicts)
	return conflicts, nil
}

// Create opens a pending transfer request. Appointments and availability are
// untouched until the destination therapist accepts.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Request, error) {
	if in.ToTherapistID == uuid.Nil {
		return nil, ErrDestinationRequired
	}
	if in.RequestedBy == uuid.Nil {
		return nil, ErrRequesterRequired
	}
	if in.ToTherapistID == in.RequestedBy {
		return nil, ErrSelfTransfer
	}
	if in.PatientID == uuid.Nil {
		return nil, ErrPatientRequired
	}

	p, err := s.patient(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	if p.AssignedTo(in.ToTherapistID) {
		return nil, ErrAlreadyAssigned
	}
	to, err := s.therapist(ctx, in.ToTherapistID)
	if err != nil {
		return nil, err
	}
	if !to.Active {
		return nil, ErrTherapistInactive
	}
	by, err := s.therapists.Lookup(ctx, in.RequestedBy)
	if errors.Is(err, staff.ErrNotFound) {
		return nil, ErrRequesterRequired
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.requests.FindPendingByPatient(ctx, in.PatientID); err == nil {
		return nil, ErrPendingRequestExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	req := &Request{
		PatientID:         p.ID,
		PatientCode:       p.Code,
		PatientName:       p.Name,
		FromTherapistID:   p.AssignedTherapistID,
		FromTherapistName: p.AssignedDoctor,
		ToTherapistID:     to.ID,
		ToTherapistName:   to.Name,
		RequestedBy:       by.ID,
		RequestedByName:   by.Name,
		Status:            StatusPending,
		Reason:            strings.TrimSpace(in.Reason),
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}
	s.metrics.transition("created")
	s.logger.Info().Str("request_id", req.ID.String()).Str("patient_id", req.PatientID.String()).
		Str("to_therapist_id", req.ToTherapistID.String()).Msg("transfer requested")

	data := messageData(req, 0)
	s.notify(ctx, req.ToTherapistID, notification.TemplateTransferRequested, data)
	if req.FromTherapistID != nil && *req.FromTherapistID != req.RequestedBy {
		s.notify(ctx, *req.FromTherapistID, notification.TemplateTransferReleased, data)
	}
	return req, nil
}

// Accept moves the patient and all of their active appointments to the
// destination therapist. Unless confirm is set, an appointment that clashes
// with one the destination already has at the same date and time stops the
// accept with a *ConflictError. Missing or too-short availability does not.
//
// The writes run in one unit of work. On a store without transactions each
// completed write is undone in reverse order when a later one fails.
func (s *Service) Accept(ctx context.Context, id, actor uuid.UUID, confirm bool) (*Request, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.IsPending() {
		return nil, ErrNotPending
	}
	if req.ToTherapistID != actor {
		return nil, ErrNotAddressee
	}

	to, err := s.therapist(ctx, req.ToTherapistID)
	if err != nil {
		return nil, err
	}
	p, err := s.patient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	apts, err := s.appointments.ListActiveByPatient(ctx, req.PatientID)
	if err != nil {
		return nil, fmt.Errorf("list active appointments: %w", err)
	}
	dest, err := s.availability.Get(ctx, req.ToTherapistID)
	if err != nil {
		return nil, fmt.Errorf("load destination availability: %w", err)
	}

	if !confirm {
		conflicts, lookupErr := DetectConflicts(ctx, dest, apts, s.bookingFinder(req.ToTherapistID))
		if lookupErr != nil {
			s.logger.Warn().Err(lookupErr).Str("request_id", id.String()).Msg("accept: existing booking lookup failed")
		}
		if booked := OnlyReason(conflicts, ReasonAlreadyBooked); len(booked) > 0 {
			s.metrics.conflictsFound(booked)
			return nil, &ConflictError{Conflicts: booked}
		}
	}

	now := s.now().UTC()
	undo := &undoLog{}
	run := &acceptRun{req: req, patient: p, to: to, apts: apts, dest: dest, at: now}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.applyAccept(ctx, run, undo)
	})
	if err != nil {
		step := "unknown"
		var se *StepError
		if errors.As(err, &se) {
			step = se.Step
		}
		s.metrics.failure(step)
		s.logger.Error().Err(err).Str("request_id", id.String()).Str("step", step).Msg("transfer accept failed")
		if !s.tx.Atomic() {
			if failed := undo.replay(context.WithoutCancel(ctx), s.logger); failed > 0 {
				s.logger.Error().Int("failed", failed).Str("request_id", id.String()).Msg("transfer left partially applied")
			}
		}
		return nil, err
	}

	req.Status = StatusAccepted
	req.RespondedAt = &now
	s.metrics.transition(StatusAccepted)
	s.logger.Info().Str("request_id", id.String()).Int("appointments_moved", len(apts)).Msg("transfer accepted")

	data := messageData(req, len(apts))
	s.notify(ctx, req.RequestedBy, notification.TemplateTransferAccepted, data)
	if src := p.AssignedTherapistID; src != nil && *src != req.RequestedBy && *src != req.ToTherapistID {
		s.notify(ctx, *src, notification.TemplateTransferAccepted, data)
	}
	return req, nil
}

type acceptRun struct {
	req     *Request
	patient *patient.Patient
	to      *staff.Therapist
	apts    []*scheduling.Appointment
	dest    *availability.TherapistAvailability
	at      time.Time
}

func (s *Service) applyAccept(ctx context.Context, r *acceptRun, undo *undoLog) error {
	toID := r.to.ID

	if len(r.apts) > 0 {
		added, err := availability.Add(r.dest, scheduling.Bookings(r.apts))
		if err != nil {
			return &StepError{Step: stepAvailabilityAdd, Err: err}
		}
		prev := r.dest.Clone()
		if err := s.availability.Save(ctx, added); err != nil {
			return &StepError{Step: stepAvailabilityAdd, Err: err}
		}
		undo.push(stepAvailabilityAdd, func(ctx context.Context) error {
			prev.VersionID = added.VersionID
			return s.availability.Save(ctx, prev)
		})
	}

	if err := s.requests.UpdateStatus(ctx, r.req.ID, StatusPending, StatusAccepted, &r.at, ""); err != nil {
		return &StepError{Step: stepRequestStatus, Err: err}
	}
	undo.push(stepRequestStatus, func(ctx context.Context) error {
		return s.requests.UpdateStatus(ctx, r.req.ID, StatusAccepted, StatusPending, nil, "")
	})

	prevID, prevName := r.patient.AssignedTherapistID, r.patient.AssignedDoctor
	if err := s.patients.AssignTherapist(ctx, r.patient.ID, &toID, r.to.Name); err != nil {
		return &StepError{Step: stepPatientAssignment, Err: err}
	}
	undo.push(stepPatientAssignment, func(ctx context.Context) error {
		return s.patients.AssignTherapist(ctx, r.patient.ID, prevID, prevName)
	})

	for _, a := range r.apts {
		a := a
		if err := s.appointments.Reassign(ctx, a.ID, &toID, r.to.Name); err != nil {
			return &StepError{Step: stepReassign, Err: err}
		}
		undo.push(stepReassign, func(ctx context.Context) error {
			return s.appointments.Reassign(ctx, a.ID, a.TherapistID, a.Doctor)
		})
	}

	if src := prevID; src != nil && *src != toID {
		if err := s.pruneSource(ctx, *src, r.apts, undo); err != nil {
			return &StepError{Step: stepAvailabilityPrune, Err: err}
		}
	}

	h := &History{
		RequestID:         r.req.ID,
		PatientID:         r.patient.ID,
		PatientName:       r.patient.Name,
		FromTherapistID:   prevID,
		FromTherapistName: prevName,
		ToTherapistID:     toID,
		ToTherapistName:   r.to.Name,
		AppointmentsMoved: len(r.apts),
	}
	if err := s.history.Append(ctx, h); err != nil {
		return &StepError{Step: stepHistory, Err: err}
	}
	return nil
}

// pruneSource drops the source therapist's slots that only existed for the
// appointments that just moved away.
func (s *Service) pruneSource(ctx context.Context, from uuid.UUID, apts []*scheduling.Appointment, undo *undoLog) error {
	released := make([]*scheduling.Appointment, 0, len(apts))
	moved := make(map[uuid.UUID]bool, len(apts))
	for _, a := range apts {
		moved[a.ID] = true
		if a.TherapistID != nil && *a.TherapistID == from {
			released = append(released, a)
		}
	}
	if len(released) == 0 {
		return nil
	}

	src, err := s.availability.Get(ctx, from)
	if err != nil {
		return err
	}
	if src.VersionID == 0 {
		return nil
	}
	active, err := s.appointments.ListActiveByTherapist(ctx, from)
	if err != nil {
		return err
	}
	remaining := make([]*scheduling.Appointment, 0, len(active))
	for _, a := range active {
		if !moved[a.ID] {
			remaining = append(remaining, a)
		}
	}

	pruned, err := availability.Prune(src, scheduling.Bookings(released), scheduling.Bookings(remaining))
	if err != nil {
		return err
	}
	prev := src.Clone()
	if err := s.availability.Save(ctx, pruned); err != nil {
		return err
	}
	undo.push(stepAvailabilityPrune, func(ctx context.Context) error {
		prev.VersionID = pruned.VersionID
		return s.availability.Save(ctx, prev)
	})
	return nil
}

// Reject closes a pending request without touching anything else.
func (s *Service) Reject(ctx context.Context, id, actor uuid.UUID, reason string) (*Request, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.IsPending() {
		return nil, ErrNotPending
	}
	if req.ToTherapistID != actor {
		return nil, ErrNotAddressee
	}

	reason = strings.TrimSpace(reason)
	now := s.now().UTC()
	if err := s.requests.UpdateStatus(ctx, id, StatusPending, StatusRejected, &now, reason); err != nil {
		return nil, err
	}
	req.Status = StatusRejected
	req.RespondedAt = &now
	req.ResponseReason = reason
	s.metrics.transition(StatusRejected)
	s.logger.Info().Str("request_id", id.String()).Msg("transfer rejected")

	s.notify(ctx, req.RequestedBy, notification.TemplateTransferRejected, messageData(req, 0))
	return req, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	return s.requests.GetByID(ctx, id)
}

// ListIncoming returns requests addressed to the therapist, newest first.
func (s *Service) ListIncoming(ctx context.Context, therapistID uuid.UUID, status string, limit, offset int) ([]*Request, int, error) {
	return s.List(ctx, ListFilter{ToTherapistID: &therapistID, Status: status}, limit, offset)
}

// ListOutgoing returns requests the therapist raised, newest first.
func (s *Service) ListOutgoing(ctx context.Context, therapistID uuid.UUID, status string, limit, offset int) ([]*Request, int, error) {
	return s.List(ctx, ListFilter{RequestedBy: &therapistID, Status: status}, limit, offset)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Request, int, error) {
	if f.Status != "" && !validRequestStatuses[f.Status] {
		return nil, 0, ErrInvalidStatus
	}
	return s.requests.List(ctx, f, limit, offset)
}

func (s *Service) ListHistory(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*History, int, error) {
	if patientID == uuid.Nil {
		return nil, 0, ErrPatientRequired
	}
	return s.history.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) bookingFinder(therapistID uuid.UUID) BookingFinder {
	return func(ctx context.Context, date, clock string) ([]*scheduling.Appointment, error) {
		return s.appointments.FindActiveAt(ctx, therapistID, date, clock)
	}
}

func (s *Service) patient(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, err := s.patients.Get(ctx, id)
	if errors.Is(err, patient.ErrNotFound) {
		return nil, ErrUnknownPatient
	}
	return p, err
}

func (s *Service) therapist(ctx context.Context, id uuid.UUID) (*staff.Therapist, error) {
	t, err := s.therapists.Lookup(ctx, id)
	if errors.Is(err, staff.ErrNotFound) {
		return nil, ErrUnknownTherapist
	}
	return t, err
}

// notify sends one message per contact channel the therapist has on file.
// Failures are logged and never returned.
func (s *Service) notify(ctx context.Context, therapistID uuid.UUID, templateID string, data map[string]string) {
	t, err := s.therapists.Lookup(ctx, therapistID)
	if err != nil {
		s.logger.Warn().Err(err).Str("therapist_id", therapistID.String()).Str("template", templateID).
			Msg("notification skipped: therapist lookup failed")
		return
	}
	if t.Email != "" {
		s.notifier.Dispatch(ctx, notification.Message{
			Channel: notification.ChannelEmail, To: t.Email, TemplateID: templateID, Data: data,
		})
	}
	if t.Phone != "" {
		s.notifier.Dispatch(ctx, notification.Message{
			Channel: notification.ChannelSMS, To: t.Phone, TemplateID: templateID, Data: data,
		})
	}
}

func messageData(req *Request, moved int) map[string]string {
	from := req.FromTherapistName
	if from == "" {
		from = "no current therapist"
	}
	reason := req.Reason
	if reason == "" {
		reason = "none given"
	}
	response := req.ResponseReason
	if response == "" {
		response = "none given"
	}
	return map[string]string{
		"patient_name":       req.PatientName,
		"patient_code":       req.PatientCode,
		"from_therapist":     from,
		"to_therapist":       req.ToTherapistName,
		"requested_by":       req.RequestedByName,
		"appointments_moved": strconv.Itoa(moved),
		"reason":             reason,
		"response_reason":    response,
	}
}
