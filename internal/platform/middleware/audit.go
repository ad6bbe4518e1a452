package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/uwscope/scope-web-sub000/internal/platform/auth"
)

// AccessEntry records who touched which patient record and how.
type AccessEntry struct {
	Timestamp time.Time
	RequestID string
	UserID    string
	Role      string
	PatientID string
	Resource  string
	Action    string // read, create, update, delete
	Method    string
	Route     string
	Status    int
}

// Audit logs every request that reaches a patient record. Routes are
// recognized by their registered pattern, so only /patient/:id/... is
// audited; the registry listing is covered by the request log.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			route := c.Path()
			if !strings.HasPrefix(route, "/patient/:id") {
				return err
			}

			req := c.Request()
			entry := AccessEntry{
				Timestamp: time.Now().UTC(),
				UserID:    auth.UserIDFromContext(req.Context()),
				PatientID: c.Param("id"),
				Resource:  resourceOf(route),
				Action:    actionOf(req.Method),
				Method:    req.Method,
				Route:     route,
				Status:    c.Response().Status,
			}
			entry.RequestID, _ = c.Get("request_id").(string)
			if ident, ok := auth.IdentityFromContext(req.Context()); ok {
				entry.Role = string(ident.Role)
			}
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					entry.Status = he.Code
				}
			}

			logger.Info().
				Str("type", "record_access").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("role", entry.Role).
				Str("patient_id", entry.PatientID).
				Str("resource", entry.Resource).
				Str("action", entry.Action).
				Str("route", entry.Route).
				Int("status", entry.Status).
				Time("at", entry.Timestamp).
				Msg("record_access")

			return err
		}
	}
}

func actionOf(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// resourceOf maps "/patient/:id/sessions/:sid" to "sessions" and the bare
// record route to "patient".
func resourceOf(route string) string {
	rest := strings.TrimPrefix(strings.TrimPrefix(route, "/patient/:id"), "/")
	if rest == "" {
		return "patient"
	}
	seg, _, _ := strings.Cut(rest, "/")
	return seg
}
