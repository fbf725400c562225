package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// Template Engine Tests
// ---------------------------------------------------------------------------

func TestTemplateEngine_RegisterAndRender(t *testing.T) {
	eng := NewTemplateEngine()
	eng.RegisterTemplate(Template{
		ID:      "test-tpl",
		Name:    "Test Template",
		Subject: "Hello {{name}}",
		Body:    "Dear {{name}}, your code is {{code}}.",
	})

	subject, body, err := eng.Render("test-tpl", map[string]string{
		"name": "Alice",
		"code": "1234",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Hello Alice" {
		t.Errorf("subject = %q, want %q", subject, "Hello Alice")
	}
	if body != "Dear Alice, your code is 1234." {
		t.Errorf("body = %q, want %q", body, "Dear Alice, your code is 1234.")
	}
}

func TestTemplateEngine_RenderMissing(t *testing.T) {
	eng := NewTemplateEngine()
	_, _, err := eng.Render("nonexistent", nil)
	if err == nil {
		t.Fatal("expected error for missing template, got nil")
	}
}

func TestTemplateEngine_BuiltInTemplates(t *testing.T) {
	eng := NewTemplateEngine()
	data := map[string]string{
		"patient_name":       "Maria",
		"patient_code":       "P-001",
		"from_therapist":     "Dr. Ana",
		"to_therapist":       "Dr. Ben",
		"requested_by":       "Front Desk",
		"appointments_moved": "2",
		"reason":             "moving closer to work",
		"response_reason":    "schedule full",
	}
	for _, id := range []string{
		TemplateTransferRequested,
		TemplateTransferReleased,
		TemplateTransferAccepted,
		TemplateTransferRejected,
	} {
		subject, body, err := eng.Render(id, data)
		if err != nil {
			t.Errorf("built-in template %q: %v", id, err)
			continue
		}
		if strings.Contains(subject+body, "{{") {
			t.Errorf("template %q left placeholders: %q / %q", id, subject, body)
		}
	}
}

func TestTemplateEngine_UnknownKeysLeftAsIs(t *testing.T) {
	eng := NewTemplateEngine()
	_, body, _ := eng.Render(TemplateTransferRejected, map[string]string{"patient_name": "Maria"})
	if !strings.Contains(body, "{{response_reason}}") {
		t.Errorf("expected unfilled placeholder to remain, got %q", body)
	}
}

// ---------------------------------------------------------------------------
// Validation Tests
// ---------------------------------------------------------------------------

func TestValidEmail(t *testing.T) {
	cases := map[string]bool{
		"ana@clinic.test":   true,
		" ana@clinic.test ": true,
		"ana@clinic":        false,
		"ana clinic@x.io":   false,
		"@clinic.test":      false,
		"":                  false,
	}
	for in, want := range cases {
		if got := ValidEmail(in); got != want {
			t.Errorf("ValidEmail(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestValidPhone(t *testing.T) {
	cases := map[string]bool{
		"0812345678":       true,
		"+66 81 234 5678":  true,
		"081-234-5678":     true,
		"(081) 234.5678":   true,
		"12345":            false,
		"1234567890123456": false,
		"08123x5678":       false,
		"66+812345678":     false,
		"":                 false,
	}
	for in, want := range cases {
		if got := ValidPhone(in); got != want {
			t.Errorf("ValidPhone(%q) = %v, want %v", in, got, want)
		}
	}
}

// ---------------------------------------------------------------------------
// Manager Tests
// ---------------------------------------------------------------------------

func newTestManager() (*Manager, *MockEmailSender, *MockSMSSender) {
	email := &MockEmailSender{}
	sms := &MockSMSSender{}
	return NewManager(email, sms, NewTemplateEngine(), zerolog.Nop()), email, sms
}

func TestManager_DeliverEmail(t *testing.T) {
	mgr, email, _ := newTestManager()
	err := mgr.Deliver(context.Background(), Message{
		Channel:    ChannelEmail,
		To:         "ben@clinic.test",
		TemplateID: TemplateTransferRequested,
		Data:       map[string]string{"patient_name": "Maria"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := email.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 email, got %d", len(calls))
	}
	if calls[0].Subject != "Transfer request for Maria" {
		t.Errorf("unexpected subject %q", calls[0].Subject)
	}
	if mgr.Stats()[OutcomeSent] != 1 {
		t.Errorf("expected 1 sent, got %v", mgr.Stats())
	}
}

func TestManager_DeliverSMS(t *testing.T) {
	mgr, _, sms := newTestManager()
	err := mgr.Deliver(context.Background(), Message{
		Channel:    ChannelSMS,
		To:         "0812345678",
		TemplateID: TemplateTransferAccepted,
		Data:       map[string]string{"patient_name": "Maria", "to_therapist": "Dr. Ben"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := sms.Calls()
	if len(calls) != 1 || !strings.Contains(calls[0].Body, "Dr. Ben accepted") {
		t.Errorf("unexpected sms calls: %+v", calls)
	}
}

func TestManager_InvalidDestinationSkipped(t *testing.T) {
	mgr, email, sms := newTestManager()
	ctx := context.Background()
	if err := mgr.Deliver(ctx, Message{Channel: ChannelEmail, To: "not-an-email", TemplateID: TemplateTransferRejected}); err != nil {
		t.Errorf("expected skip without error, got %v", err)
	}
	if err := mgr.Deliver(ctx, Message{Channel: ChannelSMS, To: "123", TemplateID: TemplateTransferRejected}); err != nil {
		t.Errorf("expected skip without error, got %v", err)
	}
	if len(email.Calls())+len(sms.Calls()) != 0 {
		t.Error("expected no sender calls for invalid destinations")
	}
	if mgr.Stats()[OutcomeSkipped] != 2 {
		t.Errorf("expected 2 skipped, got %v", mgr.Stats())
	}
}

func TestManager_SenderFailure(t *testing.T) {
	mgr, email, _ := newTestManager()
	email.ShouldFail = true
	email.FailError = "smtp down"

	err := mgr.Deliver(context.Background(), Message{Channel: ChannelEmail, To: "ben@clinic.test", TemplateID: TemplateTransferRequested})
	if err == nil || err.Error() != "smtp down" {
		t.Errorf("expected smtp down, got %v", err)
	}
	if mgr.Stats()[OutcomeFailed] != 1 {
		t.Errorf("expected 1 failed, got %v", mgr.Stats())
	}
}

func TestManager_UnknownTemplateAndChannel(t *testing.T) {
	mgr, _, _ := newTestManager()
	ctx := context.Background()
	if err := mgr.Deliver(ctx, Message{Channel: ChannelEmail, To: "ben@clinic.test", TemplateID: "nope"}); err == nil {
		t.Error("expected error for unknown template")
	}
	if err := mgr.Deliver(ctx, Message{Channel: "pigeon", To: "ben", TemplateID: TemplateTransferRequested}); err == nil {
		t.Error("expected error for unknown channel")
	}
}

// ---------------------------------------------------------------------------
// HTTP Handler Tests
// ---------------------------------------------------------------------------

func TestHandler_Stats(t *testing.T) {
	mgr, _, _ := newTestManager()
	mgr.Deliver(context.Background(), Message{Channel: ChannelEmail, To: "ben@clinic.test", TemplateID: TemplateTransferRequested})

	e := echo.New()
	h := NewHandler(mgr)
	req := httptest.NewRequest(http.MethodGet, "/notifications/stats", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.HandleStats(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var stats map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats[OutcomeSent] != 1 {
		t.Errorf("expected sent=1, got %v", stats)
	}
}
