package availability

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ParseClock converts "HH:MM" to minutes after midnight. "24:00" is accepted
// as an end-of-day marker.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return h*60 + m, nil
}

// ParseStartClock parses the time something begins at. Unlike ParseClock
// it rejects "24:00": a start at the end of the day belongs to the next date.
func ParseStartClock(s string) (int, error) {
	m, err := ParseClock(s)
	if err != nil {
		return 0, err
	}
	if m >= MinutesPerDay {
		return 0, fmt.Errorf("invalid start time %q, use 00:00 on the next date", s)
	}
	return m, nil
}

// ValidDuration checks that a booking length fits within one day.
func ValidDuration(minutes int) error {
	if minutes <= 0 || minutes >= MinutesPerDay {
		return fmt.Errorf("duration must be between 1 and %d minutes, got %d", MinutesPerDay-1, minutes)
	}
	return nil
}

// FormatClock renders minutes as "HH:MM", wrapping modulo one day.
func FormatClock(minutes int) string {
	m := ((minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ValidDate checks the YYYY-MM-DD layout.
func ValidDate(s string) error {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("invalid date %q", s)
	}
	return nil
}

// Window is a half-open [Start, End) minute range. End may exceed
// MinutesPerDay when the range crosses midnight.
type Window struct {
	Start int
	End   int
}

func (w Window) shift(d int) Window { return Window{Start: w.Start + d, End: w.End + d} }

func (w Window) contains(o Window) bool { return w.Start <= o.Start && o.End <= w.End }

func (w Window) overlaps(o Window) bool { return o.Start < w.End && w.Start < o.End }

func (w Window) wraps() bool { return w.End > MinutesPerDay }

// Window converts the slot to minutes, adding a day to End when the slot
// wraps past midnight.
func (s Slot) Window() (Window, error) {
	start, err := ParseClock(s.Start)
	if err != nil {
		return Window{}, err
	}
	end, err := ParseClock(s.End)
	if err != nil {
		return Window{}, err
	}
	if end <= start {
		end += MinutesPerDay
	}
	return Window{Start: start, End: end}, nil
}

// Normalize returns the slot with zero-padded clock strings.
func (s Slot) Normalize() (Slot, error) {
	w, err := s.Window()
	if err != nil {
		return Slot{}, err
	}
	return Slot{Start: FormatClock(w.Start), End: FormatClock(w.End)}, nil
}

// Fits reports whether apt lies entirely within slot. For a slot that wraps
// past midnight, an early-morning appointment is compared against the
// slot's next-day tail.
func Fits(slot, apt Window) bool {
	if slot.contains(apt) {
		return true
	}
	return slot.wraps() && slot.contains(apt.shift(MinutesPerDay))
}

// Intersects reports whether apt shares any minute with slot, with the same
// wraparound handling as Fits.
func Intersects(slot, apt Window) bool {
	if slot.overlaps(apt) {
		return true
	}
	return slot.wraps() && slot.overlaps(apt.shift(MinutesPerDay))
}

// SortSlots orders slots by start time, then end time. Unparseable slots
// sort last in their original order.
func SortSlots(slots []Slot) []Slot {
	type keyed struct {
		slot Slot
		w    Window
		ok   bool
	}
	ks := make([]keyed, len(slots))
	for i, s := range slots {
		w, err := s.Window()
		ks[i] = keyed{slot: s, w: w, ok: err == nil}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		a, b := ks[i], ks[j]
		if a.ok != b.ok {
			return a.ok
		}
		if a.w.Start != b.w.Start {
			return a.w.Start < b.w.Start
		}
		return a.w.End < b.w.End
	})
	out := make([]Slot, len(ks))
	for i, k := range ks {
		out[i] = k.slot
	}
	return out
}

func dedupe(slots []Slot) []Slot {
	seen := make(map[Slot]bool, len(slots))
	out := slots[:0:0]
	for _, s := range slots {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
