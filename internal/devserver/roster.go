package devserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/platform/auth"
	"github.com/uwscope/scope-web-sub000/pkg/pagination"
)

func (h *Handler) GetIdentity(c echo.Context) error {
	ident, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no identity")
	}
	return c.JSON(http.StatusOK, ident)
}

func (h *Handler) GetConfig(c echo.Context) error {
	cfg, err := h.repo.GetConfig(c.Request().Context())
	if errors.Is(err, ErrNotFound) {
		return c.JSON(http.StatusOK, DefaultAppConfig())
	}
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, cfg)
}

// DefaultAppConfig lists the instruments and life areas the clients know.
func DefaultAppConfig() map[string]any {
	instruments := []map[string]any{}
	for _, id := range []string{model.AssessmentPHQ9, model.AssessmentGAD7, model.AssessmentMedication} {
		entry := map[string]any{"id": id, "name": "Medication Tracking"}
		if in, ok := model.Instruments[id]; ok {
			entry["name"] = in.Name
			entry["questions"] = in.Questions
			entry["maxPoint"] = in.MaxPoint
		}
		instruments = append(instruments, entry)
	}
	lifeAreas := make([]map[string]any, 0, len(model.LifeAreas))
	for _, la := range model.LifeAreas {
		lifeAreas = append(lifeAreas, map[string]any{"id": la.ID, "name": la.Name})
	}
	return map[string]any{
		"assessments": instruments,
		"lifeAreas":   lifeAreas,
	}
}

func (h *Handler) ListPatients(c echo.Context) error {
	out, err := h.repo.ListPatients(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, pagination.Apply(c, out))
}

func (h *Handler) ListProviders(c echo.Context) error {
	out, err := h.repo.ListProviders(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, pagination.Apply(c, out))
}

// CreatePatient enrolls a patient from a profile and answers with the new
// roster row.
func (h *Handler) CreatePatient(c echo.Context) error {
	p, err := bind[model.Profile](c)
	if err != nil {
		return err
	}
	if strings.TrimSpace(p.Name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "profile name is required")
	}
	doc := NewPatientDocument(uuid.NewString(), p, h.today())
	if err := h.repo.CreatePatient(c.Request().Context(), doc); err != nil {
		return h.fail(c, err)
	}
	h.logger.Info().Str("patient_id", doc.PatientID).Msg("patient enrolled")
	return c.JSON(http.StatusCreated, doc.Summary())
}

// NewPatientDocument builds the document of a newly enrolled patient: every
// singleton at its first revision and one unassigned assessment per
// instrument.
func NewPatientDocument(id string, p model.Profile, enrolled model.Date) model.PatientDocument {
	p.Rev = 1
	if p.EnrollmentDate == nil {
		p.EnrollmentDate = &enrolled
	}
	if p.DepressionTreatmentStatus == "" {
		p.DepressionTreatmentStatus = model.TreatmentStatusActive
	}
	doc := model.PatientDocument{
		PatientID: id,
		Identity: model.Identity{
			Name:      p.Name,
			Role:      model.RolePatient,
			PatientID: id,
		},
		Profile:             p,
		ClinicalHistory:     model.ClinicalHistory{Rev: 1},
		ValuesInventory:     model.ValuesInventory{Rev: 1},
		SafetyPlan:          model.SafetyPlan{Rev: 1},
		Sessions:            []model.Session{},
		CaseReviews:         []model.CaseReview{},
		AssessmentLogs:      []model.AssessmentLog{},
		Activities:          []model.Activity{},
		ActivitySchedules:   []model.ActivitySchedule{},
		ScheduledActivities: []model.ScheduledActivity{},
		ActivityLogs:        []model.ActivityLog{},
		MoodLogs:            []model.MoodLog{},
		Values:              []model.Value{},
		PushSubscriptions:   []model.PushSubscription{},
	}
	for _, aid := range []string{model.AssessmentPHQ9, model.AssessmentGAD7, model.AssessmentMedication} {
		doc.Assessments = append(doc.Assessments, model.Assessment{AssessmentID: aid, Rev: 1})
	}
	return doc
}

func (h *Handler) GetPatient(c echo.Context) error {
	doc, err := h.repo.GetPatient(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	for _, issue := range model.CheckIntegrity(&doc) {
		h.logger.Warn().Str("patient_id", doc.PatientID).Str("issue", issue.String()).Msg("patient document integrity")
	}
	return c.JSON(http.StatusOK, doc)
}
