package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestAuthSkipper(t *testing.T) {
	e := echo.New()
	tests := []struct {
		route string
		skip  bool
	}{
		{"/health", true},
		{"/health/db", true},
		{"/metrics", true},
		{"/api/v1/transfers", false},
		{"/api/v1/transfers/:id/accept", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
			c.SetPath(tt.route)
			if got := AuthSkipper(c); got != tt.skip {
				t.Errorf("AuthSkipper(%q) = %v, want %v", tt.route, got, tt.skip)
			}
		})
	}
}

func TestNewSkipper_MatchesRouteNotURL(t *testing.T) {
	e := echo.New()
	skip := NewSkipper("/health")

	// The URL looks public but the matched route is an API route.
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), httptest.NewRecorder())
	c.SetPath("/api/v1/patients/:id")
	if skip(c) {
		t.Error("expected route pattern, not URL, to decide")
	}
}
