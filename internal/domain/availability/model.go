package availability

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	MinutesPerDay          = 24 * 60
	DefaultDurationMinutes = 30
	DateLayout             = "2006-01-02"
)

// Slot is one open interval within a day, as "HH:MM" clock strings. An End at
// or before Start means the slot runs past midnight.
type Slot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DaySchedule is a therapist's schedule for one calendar date.
type DaySchedule struct {
	Enabled bool   `json:"enabled"`
	Slots   []Slot `json:"slots"`
}

// Days maps an ISO date (YYYY-MM-DD) to its schedule.
type Days map[string]DaySchedule

// TherapistAvailability maps to the therapist_availability table. Days is
// stored as a single JSON document.
type TherapistAvailability struct {
	TherapistID uuid.UUID `db:"therapist_id" json:"therapist_id"`
	Days        Days      `db:"days" json:"days"`
	VersionID   int       `db:"version_id" json:"version_id"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// GetVersionID returns the current version.
func (a *TherapistAvailability) GetVersionID() int { return a.VersionID }

// SetVersionID sets the current version.
func (a *TherapistAvailability) SetVersionID(v int) { a.VersionID = v }

// Empty returns an unsaved availability with no dates.
func Empty(therapistID uuid.UUID) *TherapistAvailability {
	return &TherapistAvailability{TherapistID: therapistID, Days: Days{}}
}

// Clone returns a deep copy; a nil receiver yields an empty availability.
func (a *TherapistAvailability) Clone() *TherapistAvailability {
	if a == nil {
		return &TherapistAvailability{Days: Days{}}
	}
	out := *a
	out.Days = make(Days, len(a.Days))
	for date, day := range a.Days {
		day.Slots = append([]Slot(nil), day.Slots...)
		out.Days[date] = day
	}
	return &out
}

// Day returns the enabled schedule for date, or false when the therapist is
// not available that day at all.
func (a *TherapistAvailability) Day(date string) (DaySchedule, bool) {
	if a == nil {
		return DaySchedule{}, false
	}
	day, ok := a.Days[date]
	if !ok || !day.Enabled {
		return DaySchedule{}, false
	}
	return day, true
}

// Normalize rewrites every slot in canonical HH:MM form and sorts each day.
// It fails on the first malformed date or clock string.
func (a *TherapistAvailability) Normalize() error {
	if a.Days == nil {
		a.Days = Days{}
	}
	for date, day := range a.Days {
		if err := ValidDate(date); err != nil {
			return err
		}
		slots := make([]Slot, 0, len(day.Slots))
		for _, s := range day.Slots {
			n, err := s.Normalize()
			if err != nil {
				return fmt.Errorf("%s: %w", date, err)
			}
			slots = append(slots, n)
		}
		day.Slots = SortSlots(dedupe(slots))
		a.Days[date] = day
	}
	return nil
}

// Booking is the part of an appointment the availability math needs.
type Booking struct {
	Date            string
	Time            string
	DurationMinutes int
}

// Duration returns the booking length, defaulting to 30 minutes.
func (b Booking) Duration() int {
	if b.DurationMinutes <= 0 {
		return DefaultDurationMinutes
	}
	return b.DurationMinutes
}

// Window returns [start, start+duration) on the minute clock. A booking
// that starts at "24:00" or lasts a day or more has no slot to map to.
func (b Booking) Window() (Window, error) {
	start, err := ParseStartClock(b.Time)
	if err != nil {
		return Window{}, err
	}
	d := b.Duration()
	if err := ValidDuration(d); err != nil {
		return Window{}, fmt.Errorf("booking on %s at %s: %w", b.Date, b.Time, err)
	}
	return Window{Start: start, End: start + d}, nil
}

// Slot synthesizes the availability slot that exactly covers the booking.
func (b Booking) Slot() (Slot, error) {
	w, err := b.Window()
	if err != nil {
		return Slot{}, err
	}
	return Slot{Start: FormatClock(w.Start), End: FormatClock(w.End)}, nil
}
