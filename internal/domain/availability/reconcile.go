package availability

import (
	"fmt"
	"sort"
)

// Add returns a copy of avail extended with a slot for every booking, so the
// therapist is shown as available for each transferred appointment.
//
// A date with no enabled schedule is replaced by exactly the synthesized
// slots. On an enabled date a synthesized slot is appended unless an
// existing slot already equals or covers it. avail is not modified.
func Add(avail *TherapistAvailability, bookings []Booking) (*TherapistAvailability, error) {
	out := avail.Clone()
	byDate, dates := groupByDate(bookings)

	for _, date := range dates {
		synthesized := make([]Slot, 0, len(byDate[date]))
		for _, b := range byDate[date] {
			s, err := b.Slot()
			if err != nil {
				return nil, fmt.Errorf("booking on %s: %w", date, err)
			}
			synthesized = append(synthesized, s)
		}

		day, ok := out.Day(date)
		if !ok {
			out.Days[date] = DaySchedule{Enabled: true, Slots: SortSlots(dedupe(synthesized))}
			continue
		}

		merged := append([]Slot(nil), day.Slots...)
		for _, s := range synthesized {
			if covered(merged, s) {
				continue
			}
			merged = append(merged, s)
		}
		day.Slots = SortSlots(merged)
		out.Days[date] = day
	}
	return out, nil
}

// Prune returns a copy of avail without the slots that existed only for the
// transferred bookings. A slot synthesized for a transferred booking is kept
// if it still overlaps one of the remaining bookings; a date left with no
// slots is removed. avail is not modified.
func Prune(avail *TherapistAvailability, transferred, remaining []Booking) (*TherapistAvailability, error) {
	out := avail.Clone()
	byDate, dates := groupByDate(transferred)
	remainingByDate, _ := groupByDate(remaining)

	for _, date := range dates {
		day, ok := out.Days[date]
		if !ok {
			continue
		}

		released := make(map[Slot]bool, len(byDate[date]))
		for _, b := range byDate[date] {
			s, err := b.Slot()
			if err != nil {
				return nil, fmt.Errorf("booking on %s: %w", date, err)
			}
			released[s] = true
		}

		kept := make([]Slot, 0, len(day.Slots))
		for _, s := range day.Slots {
			key := s
			if n, err := s.Normalize(); err == nil {
				key = n
			}
			if !released[key] || stillNeeded(s, remainingByDate[date]) {
				kept = append(kept, s)
			}
		}

		if len(kept) == 0 {
			delete(out.Days, date)
			continue
		}
		day.Slots = kept
		out.Days[date] = day
	}
	return out, nil
}

func covered(existing []Slot, s Slot) bool {
	want, err := s.Window()
	if err != nil {
		return false
	}
	for _, e := range existing {
		if e == s {
			return true
		}
		w, err := e.Window()
		if err != nil {
			continue
		}
		if Fits(w, want) {
			return true
		}
	}
	return false
}

func stillNeeded(s Slot, remaining []Booking) bool {
	w, err := s.Window()
	if err != nil {
		return true
	}
	for _, b := range remaining {
		bw, err := b.Window()
		if err != nil {
			continue
		}
		if Intersects(w, bw) {
			return true
		}
	}
	return false
}

// groupByDate buckets bookings by date, returning the dates in sorted order.
func groupByDate(bookings []Booking) (map[string][]Booking, []string) {
	byDate := make(map[string][]Booking)
	for _, b := range bookings {
		byDate[b.Date] = append(byDate[b.Date], b)
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return byDate, dates
}
