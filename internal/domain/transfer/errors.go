package transfer

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("transfer request not found")
	ErrDestinationRequired  = errors.New("a destination therapist is required")
	ErrPatientRequired      = errors.New("patient_id is required")
	ErrRequesterRequired    = errors.New("the requesting therapist is unknown")
	ErrSelfTransfer         = errors.New("cannot transfer a patient to yourself")
	ErrAlreadyAssigned      = errors.New("patient is already assigned to the destination therapist")
	ErrPendingRequestExists = errors.New("patient already has a pending transfer request")
	ErrNotPending           = errors.New("transfer request is no longer pending")
	ErrNotAddressee         = errors.New("only the destination therapist can respond to this request")
	ErrUnknownTherapist     = errors.New("therapist not found")
	ErrTherapistInactive    = errors.New("destination therapist is inactive")
	ErrUnknownPatient       = errors.New("patient not found")
	ErrInvalidStatus        = errors.New("invalid transfer request status")
)

// ConflictError is returned by Accept when the destination therapist is
// already booked at the time of one or more transferred appointments and the
// caller did not confirm.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%d appointment(s) clash with existing bookings of the destination therapist", len(e.Conflicts))
}

// StepError reports which step of an accept failed. The step name is kept
// for logs and metrics; callers see a generic failure.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("accept transfer: %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
