// Package notification renders and delivers best-effort email and SMS
// messages about patient transfers. Delivery is decoupled from the caller
// through a Dispatcher so a failed send can never change a transfer outcome.
package notification

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Channel is the medium a message is delivered through.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Template IDs.
const (
	TemplateTransferRequested = "transfer-requested"
	TemplateTransferAccepted  = "transfer-accepted"
	TemplateTransferRejected  = "transfer-rejected"
	TemplateTransferReleased  = "transfer-released"
)

// Message is one queued notification. Data fills the template placeholders.
type Message struct {
	ID         string            `json:"id"`
	Channel    Channel           `json:"channel"`
	To         string            `json:"to"`
	TemplateID string            `json:"template_id"`
	Data       map[string]string `json:"data,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender is the interface for sending SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// ---------------------------------------------------------------------------
// Destination validation
// ---------------------------------------------------------------------------

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s looks like a deliverable address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// ValidPhone accepts 10 to 15 digits, ignoring a leading + and common
// separators.
func ValidPhone(s string) bool {
	digits := 0
	for i, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return false
		}
	}
	return digits >= 10 && digits <= 15
}

// ---------------------------------------------------------------------------
// Template Engine
// ---------------------------------------------------------------------------

// Template defines a reusable notification template. SMS messages use Body
// only.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the transfer templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplateTransferRequested,
			Name:    "Transfer Requested",
			Subject: "Transfer request for {{patient_name}}",
			Body:    "{{requested_by}} asked to transfer {{patient_name}} ({{patient_code}}) from {{from_therapist}} to you. Please review the request.",
		},
		{
			ID:      TemplateTransferReleased,
			Name:    "Transfer Released",
			Subject: "{{patient_name}} is being transferred",
			Body:    "{{requested_by}} asked to transfer your patient {{patient_name}} ({{patient_code}}) to {{to_therapist}}. No action is needed until it is accepted.",
		},
		{
			ID:      TemplateTransferAccepted,
			Name:    "Transfer Accepted",
			Subject: "Transfer of {{patient_name}} accepted",
			Body:    "{{to_therapist}} accepted the transfer of {{patient_name}} ({{patient_code}}). {{appointments_moved}} appointment(s) were moved.",
		},
		{
			ID:      TemplateTransferRejected,
			Name:    "Transfer Rejected",
			Subject: "Transfer of {{patient_name}} declined",
			Body:    "{{to_therapist}} declined the transfer of {{patient_name}} ({{patient_code}}). Reason: {{response_reason}}",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// ---------------------------------------------------------------------------
// Manager
// ---------------------------------------------------------------------------

// Delivery outcomes counted by Manager.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Manager renders messages and hands them to the channel's sender.
type Manager struct {
	emailSender EmailSender
	smsSender   SMSSender
	templates   *TemplateEngine
	logger      zerolog.Logger

	mu    sync.Mutex
	stats map[string]int
}

// NewManager constructs a Manager.
func NewManager(email EmailSender, sms SMSSender, tpl *TemplateEngine, logger zerolog.Logger) *Manager {
	return &Manager{
		emailSender: email,
		smsSender:   sms,
		templates:   tpl,
		logger:      logger.With().Str("component", "notification").Logger(),
		stats:       make(map[string]int),
	}
}

func (m *Manager) count(outcome string) {
	m.mu.Lock()
	m.stats[outcome]++
	m.mu.Unlock()
}

// Deliver renders and sends one message. A destination that fails
// validation is skipped and logged, not treated as an error.
func (m *Manager) Deliver(ctx context.Context, msg Message) error {
	log := m.logger.With().
		Str("notification_id", msg.ID).
		Str("channel", string(msg.Channel)).
		Str("template", msg.TemplateID).
		Logger()

	subject, body, err := m.templates.Render(msg.TemplateID, msg.Data)
	if err != nil {
		m.count(OutcomeFailed)
		log.Error().Err(err).Msg("render notification")
		return err
	}

	switch msg.Channel {
	case ChannelEmail:
		if !ValidEmail(msg.To) {
			m.count(OutcomeSkipped)
			log.Warn().Msg("invalid email destination, skipping")
			return nil
		}
		err = m.emailSender.SendEmail(ctx, msg.To, subject, body)
	case ChannelSMS:
		if !ValidPhone(msg.To) {
			m.count(OutcomeSkipped)
			log.Warn().Msg("invalid phone destination, skipping")
			return nil
		}
		err = m.smsSender.SendSMS(ctx, msg.To, body)
	default:
		err = fmt.Errorf("unsupported notification channel: %s", msg.Channel)
	}

	if err != nil {
		m.count(OutcomeFailed)
		log.Error().Err(err).Msg("notification delivery failed")
		return err
	}
	m.count(OutcomeSent)
	log.Debug().Msg("notification sent")
	return nil
}

// Stats returns delivery counts grouped by outcome.
func (m *Manager) Stats() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.stats))
	for k, v := range m.stats {
		out[k] = v
	}
	return out
}

// ---------------------------------------------------------------------------
// HTTP Handler
// ---------------------------------------------------------------------------

// Handler exposes delivery statistics over HTTP.
type Handler struct {
	manager *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{manager: mgr}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications/stats", h.HandleStats)
}

// HandleStats handles GET /notifications/stats.
func (h *Handler) HandleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.Stats())
}
