// Package sandbox generates reproducible demo data for a clinic: therapists
// with published schedules, patients assigned to them, and upcoming
// appointments booked inside those schedules. It backs the `seed` command
// used for developer on-boarding and UI demos.
package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/frontdesk/internal/domain/availability"
	"github.com/clinic/frontdesk/internal/domain/patient"
	"github.com/clinic/frontdesk/internal/domain/scheduling"
	"github.com/clinic/frontdesk/internal/domain/staff"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SeedConfig controls the volume and shape of generated data.
type SeedConfig struct {
	TherapistCount         int `json:"therapistCount"`
	PatientCount           int `json:"patientCount"`
	AppointmentsPerPatient int `json:"appointmentsPerPatient"`
	// ScheduleDays is how many consecutive days, from StartDate, each
	// therapist publishes. Weekends are published as closed.
	ScheduleDays int `json:"scheduleDays"`
	// UnassignedEvery leaves every Nth patient without a therapist; 0
	// assigns everyone.
	UnassignedEvery int       `json:"unassignedEvery"`
	StartDate       time.Time `json:"startDate"`
	Seed            int64     `json:"seed"`
}

// DefaultSeedConfig returns a small clinic: enough therapists that
// transfers have somewhere to go, and enough bookings that some collide.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		TherapistCount:         4,
		PatientCount:           24,
		AppointmentsPerPatient: 2,
		ScheduleDays:           14,
		UnassignedEvery:        6,
	}
}

// SeedResult summarizes the output of a seed run.
type SeedResult struct {
	Therapists   int           `json:"therapists"`
	Schedules    int           `json:"schedules"`
	Patients     int           `json:"patients"`
	Unassigned   int           `json:"unassigned"`
	Appointments int           `json:"appointments"`
	Duration     time.Duration `json:"duration"`
}

// ---------------------------------------------------------------------------
// Name and shift pools
// ---------------------------------------------------------------------------

var (
	firstNames = []string{
		"Ana", "Ben", "Carla", "Diego", "Elena", "Farid", "Grace", "Hiro",
		"Ines", "Jonas", "Kavya", "Liam", "Maya", "Nikolai", "Olivia", "Pedro",
		"Quinn", "Rosa", "Samir", "Tara", "Uma", "Victor", "Wen", "Yusuf",
	}
	lastNames = []string{
		"Alvarez", "Brooks", "Chen", "Dubois", "Eriksen", "Fischer", "Garcia",
		"Haddad", "Ivanova", "Jensen", "Kowalski", "Lopez", "Moreau", "Nakamura",
		"Okafor", "Patel", "Rossi", "Santos", "Tanaka", "Weber",
	}
	// shifts never cross midnight, so a booking fits when it sits between
	// start and end.
	shifts = []availability.Slot{
		{Start: "08:00", End: "12:00"},
		{Start: "09:00", End: "13:00"},
		{Start: "13:00", End: "17:00"},
		{Start: "14:00", End: "18:30"},
		{Start: "16:00", End: "20:00"},
	}
	durations = []int{30, 45, 60}
)

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator produces deterministic clinic records. Records come back
// without ids; the stores assign them on create.
type DataGenerator struct {
	rng     *rand.Rand
	counter int
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) personName() (first, last string) {
	return g.pick(firstNames), g.pick(lastNames)
}

func (g *DataGenerator) randomPhone() string {
	return fmt.Sprintf("+1%03d%03d%04d",
		200+g.rng.Intn(800),
		200+g.rng.Intn(800),
		g.rng.Intn(10000),
	)
}

// GenerateTherapist produces an active therapist with email and phone.
func (g *DataGenerator) GenerateTherapist() *staff.Therapist {
	first, last := g.personName()
	return &staff.Therapist{
		Name:   fmt.Sprintf("Dr. %s %s", first, last),
		Email:  fmt.Sprintf("%s.%s@clinic.example.com", strings.ToLower(first), strings.ToLower(last)),
		Phone:  g.randomPhone(),
		Active: true,
	}
}

// GenerateSchedule publishes one or two shifts on each weekday in dates and
// a closed day on weekends.
func (g *DataGenerator) GenerateSchedule(therapistID uuid.UUID, dates []string) *availability.TherapistAvailability {
	a := availability.Empty(therapistID)
	for _, date := range dates {
		d, err := time.Parse(availability.DateLayout, date)
		if err != nil {
			continue
		}
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			a.Days[date] = availability.DaySchedule{Enabled: false, Slots: []availability.Slot{}}
			continue
		}
		first := shifts[g.rng.Intn(len(shifts))]
		slots := []availability.Slot{first}
		if g.rng.Intn(3) == 0 {
			second := shifts[g.rng.Intn(len(shifts))]
			if second != first {
				slots = append(slots, second)
			}
		}
		a.Days[date] = availability.DaySchedule{Enabled: true, Slots: availability.SortSlots(slots)}
	}
	return a
}

// GeneratePatient produces a patient with a sequential clinic code. A nil
// therapist leaves the patient unassigned.
func (g *DataGenerator) GeneratePatient(therapist *staff.Therapist) *patient.Patient {
	g.counter++
	first, last := g.personName()
	p := &patient.Patient{
		Code:  fmt.Sprintf("P-%05d", g.counter),
		Name:  first + " " + last,
		Email: fmt.Sprintf("%s.%s%d@mail.example.com", strings.ToLower(first), strings.ToLower(last), g.counter),
		Phone: g.randomPhone(),
	}
	if therapist != nil {
		id := therapist.ID
		p.AssignedTherapistID = &id
		p.AssignedDoctor = therapist.Name
	}
	return p
}

// GenerateAppointment books p inside one of the therapist's enabled slots on
// a 15 minute grid. It returns nil when the schedule has no open day.
func (g *DataGenerator) GenerateAppointment(p *patient.Patient, sched *availability.TherapistAvailability, dates []string) *scheduling.Appointment {
	var open []string
	for _, date := range dates {
		if _, ok := sched.Day(date); ok {
			open = append(open, date)
		}
	}
	if len(open) == 0 {
		return nil
	}

	date := g.pick(open)
	day, _ := sched.Day(date)
	slot := day.Slots[g.rng.Intn(len(day.Slots))]
	start, err := availability.ParseClock(slot.Start)
	if err != nil {
		return nil
	}
	end, err := availability.ParseClock(slot.End)
	if err != nil || end <= start {
		return nil
	}

	duration := durations[g.rng.Intn(len(durations))]
	if duration > end-start {
		duration = end - start
	}
	steps := (end-start-duration)/15 + 1
	at := start + 15*g.rng.Intn(steps)

	therapistID := sched.TherapistID
	return &scheduling.Appointment{
		PatientID:       p.ID,
		PatientName:     p.Name,
		TherapistID:     &therapistID,
		Doctor:          p.AssignedDoctor,
		Date:            date,
		Time:            availability.FormatClock(at),
		DurationMinutes: &duration,
		Status:          scheduling.StatusPending,
	}
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

type TherapistCreator interface {
	Create(ctx context.Context, t *staff.Therapist) error
}

type ScheduleWriter interface {
	Replace(ctx context.Context, a *availability.TherapistAvailability) error
}

type PatientCreator interface {
	Create(ctx context.Context, p *patient.Patient) error
}

type AppointmentCreator interface {
	CreateAppointment(ctx context.Context, a *scheduling.Appointment) error
}

// Targets are the services the seeder writes through, so generated data
// passes the same validation as API writes.
type Targets struct {
	Therapists   TherapistCreator
	Schedules    ScheduleWriter
	Patients     PatientCreator
	Appointments AppointmentCreator
}

// Seeder orchestrates generation and persistence of a demo clinic.
type Seeder struct {
	generator *DataGenerator
	config    SeedConfig
	targets   Targets
	logger    zerolog.Logger
}

// NewSeeder creates a new Seeder with the given config.
func NewSeeder(config SeedConfig, targets Targets, logger zerolog.Logger) *Seeder {
	if config.StartDate.IsZero() {
		config.StartDate = time.Now()
	}
	return &Seeder{
		generator: NewDataGenerator(config.Seed),
		config:    config,
		targets:   targets,
		logger:    logger.With().Str("component", "sandbox").Logger(),
	}
}

// Dates returns the ScheduleDays consecutive dates starting at StartDate.
func (s *Seeder) Dates() []string {
	start := s.config.StartDate
	dates := make([]string, 0, s.config.ScheduleDays)
	for i := 0; i < s.config.ScheduleDays; i++ {
		dates = append(dates, start.AddDate(0, 0, i).Format(availability.DateLayout))
	}
	return dates
}

// Run creates therapists, their schedules, patients (round-robin across
// therapists) and appointments, stopping at the first failed write.
func (s *Seeder) Run(ctx context.Context) (*SeedResult, error) {
	start := time.Now()
	result := &SeedResult{}
	dates := s.Dates()

	therapists := make([]*staff.Therapist, 0, s.config.TherapistCount)
	schedules := make(map[uuid.UUID]*availability.TherapistAvailability, s.config.TherapistCount)
	for i := 0; i < s.config.TherapistCount; i++ {
		t := s.generator.GenerateTherapist()
		if err := s.targets.Therapists.Create(ctx, t); err != nil {
			return result, fmt.Errorf("create therapist %s: %w", t.Name, err)
		}
		therapists = append(therapists, t)
		result.Therapists++

		sched := s.generator.GenerateSchedule(t.ID, dates)
		if err := s.targets.Schedules.Replace(ctx, sched); err != nil {
			return result, fmt.Errorf("publish schedule for %s: %w", t.Name, err)
		}
		schedules[t.ID] = sched
		result.Schedules++
	}

	// therapist|date|time already taken
	booked := make(map[string]bool)
	for i := 0; i < s.config.PatientCount; i++ {
		var assigned *staff.Therapist
		unassigned := s.config.UnassignedEvery > 0 && (i+1)%s.config.UnassignedEvery == 0
		if len(therapists) > 0 && !unassigned {
			assigned = therapists[i%len(therapists)]
		}

		p := s.generator.GeneratePatient(assigned)
		if err := s.targets.Patients.Create(ctx, p); err != nil {
			return result, fmt.Errorf("create patient %s: %w", p.Code, err)
		}
		result.Patients++
		if assigned == nil {
			result.Unassigned++
			continue
		}

		for j := 0; j < s.config.AppointmentsPerPatient; j++ {
			apt := s.freeAppointment(p, schedules[assigned.ID], dates, booked)
			if apt == nil {
				s.logger.Debug().Str("patient", p.Code).Msg("no free time left for appointment")
				break
			}
			if err := s.targets.Appointments.CreateAppointment(ctx, apt); err != nil {
				return result, fmt.Errorf("book appointment for %s: %w", p.Code, err)
			}
			result.Appointments++
		}
	}

	result.Duration = time.Since(start)
	s.logger.Info().
		Int("therapists", result.Therapists).
		Int("patients", result.Patients).
		Int("appointments", result.Appointments).
		Dur("duration", result.Duration).
		Msg("sandbox seeded")
	return result, nil
}

// freeAppointment retries a few times to avoid double-booking a therapist at
// the same start time.
func (s *Seeder) freeAppointment(p *patient.Patient, sched *availability.TherapistAvailability, dates []string, booked map[string]bool) *scheduling.Appointment {
	for attempt := 0; attempt < 8; attempt++ {
		apt := s.generator.GenerateAppointment(p, sched, dates)
		if apt == nil {
			return nil
		}
		key := apt.TherapistID.String() + "|" + apt.Date + "|" + apt.Time
		if booked[key] {
			continue
		}
		booked[key] = true
		return apt
	}
	return nil
}
