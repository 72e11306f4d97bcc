package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// APIKeyMiddleware creates an Echo middleware that authenticates requests
// against a shared API key. The key is accepted either as a bearer token
// ("Authorization: Bearer <key>") or in the X-API-Key header.
//
// Comparison is constant-time so the key cannot be recovered by timing
// probes. Health and metrics endpoints are registered outside the guarded
// group and stay open for probes and scrapers.
func APIKeyMiddleware(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			presented := presentedKey(c.Request())
			if presented == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing API key")
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid API key")
			}
			return next(c)
		}
	}
}

// presentedKey extracts the client's API key from the request headers.
func presentedKey(r *http.Request) string {
	if auth := r.Header.Get(echo.HeaderAuthorization); auth != "" {
		const prefix = "Bearer "
		if strings.HasPrefix(auth, prefix) {
			return strings.TrimSpace(auth[len(prefix):])
		}
	}
	return r.Header.Get("X-API-Key")
}
