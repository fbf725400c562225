package scheduling

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *fixture, *echo.Echo) {
	f := newFixture()
	return NewHandler(f.svc), f, echo.New()
}

func TestHandler_CreateAppointment(t *testing.T) {
	h, f, e := newTestHandler()
	body := `{"patient_id":"` + f.patientID.String() + `","date":"2024-06-01","time":"10:00","duration_minutes":45}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"doctor":"Dr. Ana"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_CreateAppointment_BadRequest(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	if err := h.CreateAppointment(c); err == nil {
		t.Error("expected error for missing patient_id")
	}
}

func TestHandler_GetAppointment_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetAppointment(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_ListAppointments(t *testing.T) {
	h, f, e := newTestHandler()
	f.svc.CreateAppointment(context.Background(), &Appointment{PatientID: f.patientID, Date: "2024-06-01", Time: "10:00"})

	req := httptest.NewRequest(http.MethodGet, "/?patient_id="+f.patientID.String(), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListAppointments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_ListAppointments_InvalidFilter(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?therapist_id=x", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.ListAppointments(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_UpdateStatus_Conflict(t *testing.T) {
	h, f, e := newTestHandler()
	a := &Appointment{PatientID: f.patientID, Date: "2024-06-01", Time: "10:00", Status: StatusCancelled}
	f.svc.CreateAppointment(context.Background(), a)

	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"ongoing"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())

	err := h.UpdateStatus(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusConflict {
		t.Errorf("expected 409, got %v", err)
	}
}
