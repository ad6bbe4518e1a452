package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists routes that bypass bearer authentication: infrastructure
// endpoints and the token endpoints themselves.
var publicPaths = map[string]bool{
	"/health":        true,
	"/health/db":     true,
	"/metrics":       true,
	"/auth/login":    true,
	"/auth/refresh":  true,
	"/auth/password": true,
	"/auth/forgot":   true,
	"/auth/reset":    true,
}

// AuthSkipper returns true for requests whose route should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether path is a public endpoint.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
