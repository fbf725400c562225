package availability

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
)

const day1 = "2024-06-01"

func availWith(days Days) *TherapistAvailability {
	return &TherapistAvailability{TherapistID: uuid.New(), Days: days, VersionID: 3}
}

func TestAdd_MissingDateGetsExactSlots(t *testing.T) {
	a := availWith(Days{})
	out, err := Add(a, []Booking{
		{Date: day1, Time: "14:00", DurationMinutes: 60},
		{Date: day1, Time: "10:00"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	day := out.Days[day1]
	if !day.Enabled {
		t.Error("expected date to be enabled")
	}
	want := []Slot{{"10:00", "10:30"}, {"14:00", "15:00"}}
	if !reflect.DeepEqual(day.Slots, want) {
		t.Errorf("expected %v, got %v", want, day.Slots)
	}
	if len(a.Days) != 0 {
		t.Error("input availability was modified")
	}
	if out.VersionID != a.VersionID || out.TherapistID != a.TherapistID {
		t.Error("expected identity and version to carry over")
	}
}

func TestAdd_DisabledDateIsReplaced(t *testing.T) {
	a := availWith(Days{day1: {Enabled: false, Slots: []Slot{{"08:00", "12:00"}}}})
	out, err := Add(a, []Booking{{Date: day1, Time: "15:00"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := DaySchedule{Enabled: true, Slots: []Slot{{"15:00", "15:30"}}}
	if !reflect.DeepEqual(out.Days[day1], want) {
		t.Errorf("expected %v, got %v", want, out.Days[day1])
	}
}

func TestAdd_AppendsAndSorts(t *testing.T) {
	a := availWith(Days{day1: {Enabled: true, Slots: []Slot{{"14:00", "15:00"}}}})
	out, err := Add(a, []Booking{{Date: day1, Time: "10:00", DurationMinutes: 45}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Slot{{"10:00", "10:45"}, {"14:00", "15:00"}}
	if !reflect.DeepEqual(out.Days[day1].Slots, want) {
		t.Errorf("expected %v, got %v", want, out.Days[day1].Slots)
	}
}

func TestAdd_CoveredSlotLeavesScheduleUnchanged(t *testing.T) {
	a := availWith(Days{day1: {Enabled: true, Slots: []Slot{{"09:00", "10:00"}}}})
	out, err := Add(a, []Booking{{Date: day1, Time: "09:00", DurationMinutes: 30}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(out.Days, a.Days) {
		t.Errorf("expected unchanged schedule, got %v", out.Days)
	}
}

func TestAdd_Idempotent(t *testing.T) {
	a := availWith(Days{
		day1:         {Enabled: true, Slots: []Slot{{"09:00", "10:00"}}},
		"2024-06-02": {Enabled: false},
	})
	bookings := []Booking{
		{Date: day1, Time: "11:00"},
		{Date: "2024-06-02", Time: "23:45", DurationMinutes: 30},
		{Date: "2024-06-03", Time: "08:00", DurationMinutes: 90},
	}
	once, err := Add(a, bookings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	twice, err := Add(once, bookings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(once.Days, twice.Days) {
		t.Errorf("second add changed schedule:\n once: %v\ntwice: %v", once.Days, twice.Days)
	}
}

func TestAdd_MidnightWrapSlot(t *testing.T) {
	out, err := Add(availWith(Days{}), []Booking{{Date: day1, Time: "23:45", DurationMinutes: 30}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Slot{{"23:45", "00:15"}}
	if !reflect.DeepEqual(out.Days[day1].Slots, want) {
		t.Errorf("expected %v, got %v", want, out.Days[day1].Slots)
	}
}

func TestAdd_InvalidBookingTime(t *testing.T) {
	if _, err := Add(availWith(Days{}), []Booking{{Date: day1, Time: "late"}}); err == nil {
		t.Error("expected error for invalid time")
	}
}

func TestAdd_NilAvailability(t *testing.T) {
	out, err := Add(nil, []Booking{{Date: day1, Time: "10:00"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Days[day1].Slots) != 1 {
		t.Errorf("expected one slot, got %v", out.Days[day1].Slots)
	}
}

func TestPrune_RemovesDateAddedOnlyForTransfer(t *testing.T) {
	bookings := []Booking{{Date: day1, Time: "10:00"}}
	added, err := Add(availWith(Days{}), bookings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := Prune(added, bookings, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := out.Days[day1]; ok {
		t.Errorf("expected %s to be removed, got %v", day1, out.Days[day1])
	}
}

func TestPrune_RestoresPriorSlots(t *testing.T) {
	a := availWith(Days{day1: {Enabled: true, Slots: []Slot{{"14:00", "15:00"}}}})
	bookings := []Booking{{Date: day1, Time: "10:00"}}
	added, _ := Add(a, bookings)

	out, err := Prune(added, bookings, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(out.Days, a.Days) {
		t.Errorf("expected %v, got %v", a.Days, out.Days)
	}
}

func TestPrune_KeepsSlotStillInUse(t *testing.T) {
	a := availWith(Days{day1: {Enabled: true, Slots: []Slot{{"10:00", "10:30"}, {"14:00", "15:00"}}}})
	transferred := []Booking{{Date: day1, Time: "10:00"}}
	remaining := []Booking{{Date: day1, Time: "10:15", DurationMinutes: 15}}

	out, err := Prune(a, transferred, remaining)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Days[day1].Slots) != 2 {
		t.Errorf("expected both slots kept, got %v", out.Days[day1].Slots)
	}
}

func TestPrune_MatchesUnpaddedStoredSlot(t *testing.T) {
	a := availWith(Days{day1: {Enabled: true, Slots: []Slot{{"9:00", "9:30"}, {"14:00", "15:00"}}}})
	out, err := Prune(a, []Booking{{Date: day1, Time: "09:00"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Slot{{"14:00", "15:00"}}
	if !reflect.DeepEqual(out.Days[day1].Slots, want) {
		t.Errorf("expected %v, got %v", want, out.Days[day1].Slots)
	}
}

func TestPrune_UnknownDateIsNoop(t *testing.T) {
	a := availWith(Days{day1: {Enabled: true, Slots: []Slot{{"14:00", "15:00"}}}})
	out, err := Prune(a, []Booking{{Date: "2024-07-01", Time: "10:00"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(out.Days, a.Days) {
		t.Errorf("expected unchanged, got %v", out.Days)
	}
}

func TestAdd_RejectsBookingLongerThanADay(t *testing.T) {
	a := availWith(Days{})
	if _, err := Add(a, []Booking{{Date: day1, Time: "09:00", DurationMinutes: 2000}}); err == nil {
		t.Fatal("expected error instead of a slot that cannot cover the booking")
	}
	if len(a.Days) != 0 {
		t.Error("input must not be modified")
	}
}
