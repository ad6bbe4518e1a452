package devserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/uwscope/scope-web-sub000/internal/authstore"
	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/platform/auth"
	"github.com/uwscope/scope-web-sub000/internal/platform/db"
	"github.com/uwscope/scope-web-sub000/internal/platform/metrics"
	"github.com/uwscope/scope-web-sub000/internal/platform/middleware"
	"github.com/uwscope/scope-web-sub000/pkg/pagination"
)

// Options wires a development backend.
type Options struct {
	Repo     Repository
	Provider authstore.Provider
	JWT      auth.JWTConfig
	// DevIdentity, when set, is used for requests without a bearer token.
	DevIdentity *model.Identity
	// Pinger backs /health/db. Nil reports the in-memory backend.
	Pinger         db.Pinger
	Metrics        *metrics.Collector
	Logger         zerolog.Logger
	CORSOrigins    []string
	RateLimit      middleware.RateLimitConfig
	RequestTimeout time.Duration
	BodyLimit      string
	HSTS           bool
}

// New builds the echo instance serving the resource and auth endpoints.
func New(opts Options) *echo.Echo {
	logger := opts.Logger.With().Str("component", "devserver").Logger()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  opts.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
		ExposeHeaders: []string{pagination.TotalCountHeader, "Link"},
	}))
	e.Use(middleware.BodyLimit(opts.BodyLimit))
	e.Use(middleware.SecurityHeaders(opts.HSTS))
	e.Use(middleware.Metrics(opts.Metrics))
	e.Use(middleware.RequestTimeout(opts.RequestTimeout))

	jwtCfg := opts.JWT
	jwtCfg.Skipper = auth.AuthSkipper
	if opts.DevIdentity != nil {
		dev := auth.DevAuthMiddleware(jwtCfg, *opts.DevIdentity)
		e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
			guarded := dev(next)
			return func(c echo.Context) error {
				if auth.AuthSkipper(c) {
					return next(c)
				}
				return guarded(c)
			}
		})
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	rl := opts.RateLimit
	if rl.RequestsPerSecond <= 0 {
		rl = middleware.DefaultRateLimitConfig()
	}
	e.Use(middleware.RateLimit(rl))
	e.Use(middleware.Audit(logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(opts.Pinger))
	if opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(opts.Metrics.Handler()))
	}

	NewHandler(opts.Repo, logger).RegisterRoutes(e)
	if opts.Provider != nil {
		NewAuthHandler(opts.Provider, logger).RegisterRoutes(e)
	}
	return e
}
