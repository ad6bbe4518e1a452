package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/uwscope/scope-web-sub000/internal/model"
)

// RequireRole returns middleware that checks the caller has one of roles.
// Study staff pass every role check.
func RequireRole(roles ...model.ProviderRole) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ident, ok := IdentityFromContext(c.Request().Context())
			if ok {
				if ident.Role == model.RoleStudyStaff {
					return next(c)
				}
				for _, required := range roles {
					if ident.Role == required {
						return next(c)
					}
				}
			}
			names := make([]string, len(roles))
			for i, r := range roles {
				names[i] = string(r)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(names, " or ")))
		}
	}
}

// RequirePatientAccess lets providers reach any patient and patients reach
// only their own record. param names the path parameter holding the id.
func RequirePatientAccess(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ident, ok := IdentityFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "no identity")
			}
			if ident.IsPatient() && ident.PatientID != c.Param(param) {
				return echo.NewHTTPError(http.StatusForbidden, "patients may only access their own record")
			}
			return next(c)
		}
	}
}
