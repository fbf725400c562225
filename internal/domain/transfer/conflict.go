package transfer

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinic/frontdesk/internal/domain/availability"
	"github.com/clinic/frontdesk/internal/domain/scheduling"
)

// BookingFinder returns the destination therapist's active appointments at
// an exact date and time.
type BookingFinder func(ctx context.Context, date, clock string) ([]*scheduling.Appointment, error)

// DetectConflicts checks every appointment independently against the
// destination's availability. find may be nil, in which case the
// already_booked check is skipped. A lookup error from find is treated as
// "not booked"; it is returned alongside the conflicts so the caller can log
// it.
func DetectConflicts(ctx context.Context, dest *availability.TherapistAvailability, apts []*scheduling.Appointment, find BookingFinder) ([]Conflict, error) {
	conflicts := make([]Conflict, 0)
	var lookupErr error

	for _, apt := range apts {
		c := Conflict{
			AppointmentID:   apt.ID,
			Date:            apt.Date,
			Time:            apt.Time,
			DurationMinutes: apt.EffectiveDuration(),
		}

		day, ok := dest.Day(apt.Date)
		if !ok {
			c.Reason = ReasonNoAvailability
			conflicts = append(conflicts, c)
			continue
		}

		if !fitsAny(day.Slots, apt.Booking()) {
			c.Reason = ReasonSlotUnavailable
			conflicts = append(conflicts, c)
			continue
		}

		if find == nil {
			continue
		}
		existing, err := find(ctx, apt.Date, apt.Time)
		if err != nil {
			lookupErr = err
			continue
		}
		if other := firstOther(existing, apt.ID); other != nil {
			c.Reason = ReasonAlreadyBooked
			c.ConflictsWith = &other.ID
			conflicts = append(conflicts, c)
		}
	}
	return conflicts, lookupErr
}

func fitsAny(slots []availability.Slot, b availability.Booking) bool {
	want, err := b.Window()
	if err != nil {
		return false
	}
	for _, s := range slots {
		w, err := s.Window()
		if err != nil {
			continue
		}
		if availability.Fits(w, want) {
			return true
		}
	}
	return false
}

func firstOther(apts []*scheduling.Appointment, self uuid.UUID) *scheduling.Appointment {
	for _, a := range apts {
		if a.ID != self {
			return a
		}
	}
	return nil
}

// OnlyReason filters conflicts down to one reason.
func OnlyReason(conflicts []Conflict, reason string) []Conflict {
	var out []Conflict
	for _, c := range conflicts {
		if c.Reason == reason {
			out = append(out, c)
		}
	}
	return out
}
