package devserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/platform/auth"
)

const defaultScheduleHorizon = 28 * 24 * time.Hour

// Handler serves the roster and per-patient resource endpoints.
type Handler struct {
	repo    Repository
	logger  zerolog.Logger
	now     func() time.Time
	horizon time.Duration
}

func NewHandler(repo Repository, logger zerolog.Logger) *Handler {
	return &Handler{
		repo:    repo,
		logger:  logger,
		now:     time.Now,
		horizon: defaultScheduleHorizon,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	providers := auth.RequireRole(model.RoleSocialWorker, model.RolePsychiatrist)

	e.GET("/identity", h.GetIdentity)
	e.GET("/config", h.GetConfig)
	e.GET("/patients", h.ListPatients, providers)
	e.POST("/patients", h.CreatePatient, providers)
	e.GET("/providers", h.ListProviders, providers)

	p := e.Group("/patient/:id", auth.RequirePatientAccess("id"))
	p.GET("", h.GetPatient)

	p.PUT("/profile", h.PutProfile, providers)
	p.PUT("/clinicalhistory", h.PutClinicalHistory, providers)
	p.PUT("/valuesinventory", h.PutValuesInventory)
	p.PUT("/safety", h.PutSafetyPlan)

	p.POST("/sessions", h.AddSession, providers)
	p.PUT("/sessions/:sid", h.PutSession, providers)
	p.POST("/casereviews", h.AddCaseReview, providers)
	p.PUT("/casereviews/:rid", h.PutCaseReview, providers)
	p.PUT("/assessments/:aid", h.PutAssessment, providers)
	p.POST("/assessmentlogs", h.AddAssessmentLog)
	p.PUT("/assessmentlogs/:lid", h.PutAssessmentLog)

	p.POST("/values", h.AddValue)
	p.PUT("/values/:vid", h.PutValue)
	p.POST("/activities", h.AddActivity)
	p.PUT("/activities/:aid", h.PutActivity)
	p.POST("/activities/schedule", h.AddActivitySchedule)
	p.POST("/activitylogs", h.AddActivityLog)
	p.POST("/moodlogs", h.AddMoodLog)

	p.POST("/pushsubscriptions", h.AddPushSubscription)
	p.DELETE("/pushsubscriptions/:sid", h.DeletePushSubscription)
}

// conflictResponse is the body of a 409.
type conflictResponse struct {
	Error   string `json:"error"`
	Current any    `json:"current"`
}

// mutate runs fn against the patient in the :id parameter and writes its
// result, or maps its error to a status.
func (h *Handler) mutate(c echo.Context, status int, fn func(*model.PatientDocument) (any, error)) error {
	var out any
	_, err := h.repo.UpdatePatient(c.Request().Context(), c.Param("id"), func(doc *model.PatientDocument) error {
		v, err := fn(doc)
		out = v
		return err
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(status, out)
}

func (h *Handler) fail(c echo.Context, err error) error {
	var ce *ConflictError
	switch {
	case errors.As(err, &ce):
		h.logger.Info().Str("patient_id", c.Param("id")).Str("resource", ce.Resource).Msg("stale revision rejected")
		return c.JSON(http.StatusConflict, conflictResponse{Error: "conflict", Current: ce.Current})
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
}

func bind[T any](c echo.Context) (T, error) {
	var v T
	if err := c.Bind(&v); err != nil {
		return v, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return v, nil
}

func (h *Handler) today() model.Date { return model.NewDate(h.now().UTC()) }
