package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeadersConfig controls the transport-dependent headers.
type SecurityHeadersConfig struct {
	// HSTS pins browsers to https. Leave it off when serving plain http
	// locally.
	HSTS bool
}

// SecurityHeaders sets the response headers a JSON API serving patient
// records should always send.
func SecurityHeaders(cfg SecurityHeadersConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "no-referrer")
			if cfg.HSTS {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			// responses carry patient names
			h.Set("Cache-Control", "no-store")
			return next(c)
		}
	}
}
