package auth

import (
	"github.com/labstack/echo/v4"
)

// PublicPaths are the probe and scrape routes served without credentials.
var PublicPaths = []string{"/health", "/health/db", "/metrics"}

// NewSkipper lets requests for the given routes bypass authentication.
// It matches the registered route pattern (c.Path()), not the raw URL, so
// a request for an unregistered path never slips through.
func NewSkipper(paths ...string) func(echo.Context) bool {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return func(c echo.Context) bool {
		_, ok := set[c.Path()]
		return ok
	}
}

// AuthSkipper skips authentication for PublicPaths.
var AuthSkipper = NewSkipper(PublicPaths...)
