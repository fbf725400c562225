package sandbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/frontdesk/internal/domain/availability"
	"github.com/clinic/frontdesk/internal/domain/patient"
	"github.com/clinic/frontdesk/internal/domain/scheduling"
	"github.com/clinic/frontdesk/internal/domain/staff"
)

// ---------------------------------------------------------------------------
// In-memory targets
// ---------------------------------------------------------------------------

type memTargets struct {
	therapists   []*staff.Therapist
	schedules    map[uuid.UUID]*availability.TherapistAvailability
	patients     []*patient.Patient
	appointments []*scheduling.Appointment
	failPatients bool
}

func newMemTargets() *memTargets {
	return &memTargets{schedules: make(map[uuid.UUID]*availability.TherapistAvailability)}
}

type memTherapists struct{ m *memTargets }

func (s memTherapists) Create(_ context.Context, t *staff.Therapist) error {
	t.ID = uuid.New()
	s.m.therapists = append(s.m.therapists, t)
	return nil
}

type memSchedules struct{ m *memTargets }

func (s memSchedules) Replace(_ context.Context, a *availability.TherapistAvailability) error {
	if err := a.Normalize(); err != nil {
		return err
	}
	s.m.schedules[a.TherapistID] = a
	return nil
}

type memPatients struct{ m *memTargets }

func (s memPatients) Create(_ context.Context, p *patient.Patient) error {
	if s.m.failPatients {
		return errors.New("insert failed")
	}
	p.ID = uuid.New()
	s.m.patients = append(s.m.patients, p)
	return nil
}

type memAppointments struct{ m *memTargets }

func (s memAppointments) CreateAppointment(_ context.Context, a *scheduling.Appointment) error {
	a.ID = uuid.New()
	s.m.appointments = append(s.m.appointments, a)
	return nil
}

func (m *memTargets) targets() Targets {
	return Targets{
		Therapists:   memTherapists{m},
		Schedules:    memSchedules{m},
		Patients:     memPatients{m},
		Appointments: memAppointments{m},
	}
}

// 2025-06-09 is a Monday.
var monday = time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)

func testConfig() SeedConfig {
	cfg := DefaultSeedConfig()
	cfg.StartDate = monday
	cfg.Seed = 42
	return cfg
}

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

func TestDataGenerator_Deterministic(t *testing.T) {
	a := NewDataGenerator(7)
	b := NewDataGenerator(7)
	for i := 0; i < 5; i++ {
		ta, tb := a.GenerateTherapist(), b.GenerateTherapist()
		if ta.Name != tb.Name || ta.Phone != tb.Phone {
			t.Fatalf("same seed produced different therapists: %q vs %q", ta.Name, tb.Name)
		}
	}
}

func TestDataGenerator_GenerateTherapist(t *testing.T) {
	th := NewDataGenerator(1).GenerateTherapist()
	if !strings.HasPrefix(th.Name, "Dr. ") {
		t.Errorf("expected a Dr. prefix, got %q", th.Name)
	}
	if !th.Active {
		t.Error("expected an active therapist")
	}
	if !strings.Contains(th.Email, "@") || th.Phone == "" {
		t.Errorf("expected contact details, got email=%q phone=%q", th.Email, th.Phone)
	}
}

func TestDataGenerator_GenerateSchedule_ClosesWeekends(t *testing.T) {
	dates := []string{"2025-06-13", "2025-06-14", "2025-06-15", "2025-06-16"} // Fri..Mon
	sched := NewDataGenerator(3).GenerateSchedule(uuid.New(), dates)

	for _, weekend := range []string{"2025-06-14", "2025-06-15"} {
		day, ok := sched.Days[weekend]
		if !ok || day.Enabled {
			t.Errorf("%s: expected a published closed day, got %+v", weekend, day)
		}
	}
	for _, weekday := range []string{"2025-06-13", "2025-06-16"} {
		day, ok := sched.Day(weekday)
		if !ok || len(day.Slots) == 0 {
			t.Errorf("%s: expected open slots", weekday)
		}
	}
}

func TestDataGenerator_GeneratePatient(t *testing.T) {
	gen := NewDataGenerator(5)
	th := &staff.Therapist{ID: uuid.New(), Name: "Dr. Ana Alvarez"}

	p1 := gen.GeneratePatient(th)
	p2 := gen.GeneratePatient(nil)

	if p1.Code != "P-00001" || p2.Code != "P-00002" {
		t.Errorf("expected sequential codes, got %s and %s", p1.Code, p2.Code)
	}
	if !p1.AssignedTo(th.ID) || p1.AssignedDoctor != th.Name {
		t.Errorf("expected p1 assigned to %s, got %v %q", th.ID, p1.AssignedTherapistID, p1.AssignedDoctor)
	}
	if p2.AssignedTherapistID != nil || p2.AssignedDoctor != "" {
		t.Error("expected p2 unassigned")
	}
}

func TestDataGenerator_GenerateAppointment_FitsSchedule(t *testing.T) {
	gen := NewDataGenerator(11)
	dates := []string{"2025-06-09", "2025-06-10", "2025-06-11"}
	sched := gen.GenerateSchedule(uuid.New(), dates)
	p := &patient.Patient{ID: uuid.New(), Name: "Rosa Santos", AssignedDoctor: "Dr. Ben Brooks"}

	for i := 0; i < 50; i++ {
		apt := gen.GenerateAppointment(p, sched, dates)
		if apt == nil {
			t.Fatal("expected an appointment")
		}
		assertInsideSchedule(t, apt, sched)
		if *apt.TherapistID != sched.TherapistID {
			t.Fatalf("expected therapist %s, got %s", sched.TherapistID, apt.TherapistID)
		}
		if apt.Status != scheduling.StatusPending {
			t.Fatalf("expected pending status, got %s", apt.Status)
		}
	}
}

func TestDataGenerator_GenerateAppointment_NoOpenDay(t *testing.T) {
	gen := NewDataGenerator(1)
	dates := []string{"2025-06-14", "2025-06-15"} // weekend only
	sched := gen.GenerateSchedule(uuid.New(), dates)

	if apt := gen.GenerateAppointment(&patient.Patient{ID: uuid.New()}, sched, dates); apt != nil {
		t.Errorf("expected nil when every day is closed, got %+v", apt)
	}
}

func assertInsideSchedule(t *testing.T, apt *scheduling.Appointment, sched *availability.TherapistAvailability) {
	t.Helper()
	day, ok := sched.Day(apt.Date)
	if !ok {
		t.Fatalf("appointment on closed day %s", apt.Date)
	}
	start, err := availability.ParseClock(apt.Time)
	if err != nil {
		t.Fatalf("bad time %q: %v", apt.Time, err)
	}
	end := start + apt.EffectiveDuration()
	for _, s := range day.Slots {
		from, _ := availability.ParseClock(s.Start)
		to, _ := availability.ParseClock(s.End)
		if start >= from && end <= to {
			return
		}
	}
	t.Fatalf("appointment %s %s (%d min) outside every slot %+v", apt.Date, apt.Time, apt.EffectiveDuration(), day.Slots)
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

func TestSeeder_Dates(t *testing.T) {
	cfg := testConfig()
	cfg.ScheduleDays = 3
	s := NewSeeder(cfg, newMemTargets().targets(), zerolog.Nop())

	got := s.Dates()
	want := []string{"2025-06-09", "2025-06-10", "2025-06-11"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Dates() = %v, want %v", got, want)
	}
}

func TestSeeder_Run(t *testing.T) {
	m := newMemTargets()
	cfg := testConfig()
	result, err := NewSeeder(cfg, m.targets(), zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Therapists != cfg.TherapistCount || len(m.therapists) != cfg.TherapistCount {
		t.Errorf("expected %d therapists, got %d", cfg.TherapistCount, result.Therapists)
	}
	if result.Schedules != cfg.TherapistCount || len(m.schedules) != cfg.TherapistCount {
		t.Errorf("expected a schedule per therapist, got %d", result.Schedules)
	}
	if result.Patients != cfg.PatientCount {
		t.Errorf("expected %d patients, got %d", cfg.PatientCount, result.Patients)
	}
	wantUnassigned := cfg.PatientCount / cfg.UnassignedEvery
	if result.Unassigned != wantUnassigned {
		t.Errorf("expected %d unassigned patients, got %d", wantUnassigned, result.Unassigned)
	}
	if result.Appointments != len(m.appointments) || result.Appointments == 0 {
		t.Errorf("expected appointments to be booked, result=%d stored=%d", result.Appointments, len(m.appointments))
	}
}

func TestSeeder_AppointmentsFollowAssignment(t *testing.T) {
	m := newMemTargets()
	if _, err := NewSeeder(testConfig(), m.targets(), zerolog.Nop()).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	byID := make(map[uuid.UUID]*patient.Patient, len(m.patients))
	for _, p := range m.patients {
		byID[p.ID] = p
	}

	taken := make(map[string]bool)
	for _, apt := range m.appointments {
		p := byID[apt.PatientID]
		if p == nil {
			t.Fatalf("appointment for unknown patient %s", apt.PatientID)
		}
		if p.AssignedTherapistID == nil {
			t.Fatalf("unassigned patient %s got an appointment", p.Code)
		}
		if *apt.TherapistID != *p.AssignedTherapistID {
			t.Errorf("appointment therapist %s differs from assigned %s", apt.TherapistID, p.AssignedTherapistID)
		}
		assertInsideSchedule(t, apt, m.schedules[*apt.TherapistID])

		key := apt.TherapistID.String() + apt.Date + apt.Time
		if taken[key] {
			t.Errorf("therapist double-booked at %s %s", apt.Date, apt.Time)
		}
		taken[key] = true
	}
}

func TestSeeder_StopsOnWriteFailure(t *testing.T) {
	m := newMemTargets()
	m.failPatients = true

	result, err := NewSeeder(testConfig(), m.targets(), zerolog.Nop()).Run(context.Background())
	if err == nil {
		t.Fatal("expected error when a patient write fails")
	}
	if result.Patients != 0 || result.Appointments != 0 {
		t.Errorf("expected nothing after the failed write, got %+v", result)
	}
	if result.Therapists != testConfig().TherapistCount {
		t.Errorf("expected therapists written before the failure, got %d", result.Therapists)
	}
}
