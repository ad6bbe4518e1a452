package devserver

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/uwscope/scope-web-sub000/internal/model"
)

func putSingleton[T any](h *Handler, c echo.Context, s singleton[T], check func(*T) error) error {
	v, err := bind[T](c)
	if err != nil {
		return err
	}
	if check != nil {
		if err := check(&v); err != nil {
			return h.fail(c, err)
		}
	}
	return h.mutate(c, http.StatusOK, func(doc *model.PatientDocument) (any, error) {
		return s.put(doc, v)
	})
}

func addEntity[T any](h *Handler, c echo.Context, col collection[T], check func(*model.PatientDocument, *T) error) error {
	v, err := bind[T](c)
	if err != nil {
		return err
	}
	return h.mutate(c, http.StatusCreated, func(doc *model.PatientDocument) (any, error) {
		if check != nil {
			if err := check(doc, &v); err != nil {
				return nil, err
			}
		}
		return col.add(doc, v), nil
	})
}

func putEntity[T any](h *Handler, c echo.Context, col collection[T], param string, check func(*model.PatientDocument, *T) error) error {
	v, err := bind[T](c)
	if err != nil {
		return err
	}
	id := c.Param(param)
	if bodyID := *col.id(&v); bodyID != "" && bodyID != id {
		return echo.NewHTTPError(http.StatusBadRequest, "body id does not match path")
	}
	return h.mutate(c, http.StatusOK, func(doc *model.PatientDocument) (any, error) {
		if check != nil {
			if err := check(doc, &v); err != nil {
				return nil, err
			}
		}
		return col.put(doc, id, v)
	})
}

func (h *Handler) PutProfile(c echo.Context) error {
	return putSingleton(h, c, profile, func(p *model.Profile) error {
		if strings.TrimSpace(p.Name) == "" {
			return invalid("profile name is required")
		}
		return nil
	})
}

func (h *Handler) PutClinicalHistory(c echo.Context) error {
	return putSingleton(h, c, clinicalHistory, nil)
}

func (h *Handler) PutValuesInventory(c echo.Context) error {
	return putSingleton(h, c, valuesInventory, func(v *model.ValuesInventory) error {
		now := h.today()
		v.LastUpdatedDateTime = &now
		return nil
	})
}

func (h *Handler) PutSafetyPlan(c echo.Context) error {
	return putSingleton(h, c, safetyPlan, func(p *model.SafetyPlan) error {
		now := h.today()
		p.LastUpdatedDateTime = &now
		return nil
	})
}

func (h *Handler) AddSession(c echo.Context) error {
	return addEntity(h, c, sessions, func(_ *model.PatientDocument, s *model.Session) error {
		*s = s.Normalized()
		return nil
	})
}

func (h *Handler) PutSession(c echo.Context) error {
	return putEntity(h, c, sessions, "sid", func(_ *model.PatientDocument, s *model.Session) error {
		*s = s.Normalized()
		return nil
	})
}

func (h *Handler) AddCaseReview(c echo.Context) error {
	return addEntity(h, c, caseReviews, func(_ *model.PatientDocument, r *model.CaseReview) error {
		*r = r.Normalized()
		return nil
	})
}

func (h *Handler) PutCaseReview(c echo.Context) error {
	return putEntity(h, c, caseReviews, "rid", func(_ *model.PatientDocument, r *model.CaseReview) error {
		*r = r.Normalized()
		return nil
	})
}

func (h *Handler) PutAssessment(c echo.Context) error {
	return putEntity(h, c, assessments, "aid", func(_ *model.PatientDocument, a *model.Assessment) error {
		if a.Assigned && a.AssignedDate == nil {
			now := h.today()
			a.AssignedDate = &now
		}
		return nil
	})
}

func (h *Handler) checkAssessmentLog(doc *model.PatientDocument, l *model.AssessmentLog) error {
	if _, ok := assessments.find(doc, l.AssessmentID); !ok {
		return invalid("unknown assessment %q", l.AssessmentID)
	}
	if err := l.Validate(); err != nil {
		return invalid("%v", err)
	}
	if l.RecordedDate.IsZero() {
		l.RecordedDate = h.today()
	}
	return nil
}

func (h *Handler) AddAssessmentLog(c echo.Context) error {
	return addEntity(h, c, assessmentLogs, h.checkAssessmentLog)
}

func (h *Handler) PutAssessmentLog(c echo.Context) error {
	return putEntity(h, c, assessmentLogs, "lid", h.checkAssessmentLog)
}

func (h *Handler) checkValue(_ *model.PatientDocument, v *model.Value) error {
	if strings.TrimSpace(v.Name) == "" {
		return invalid("value name is required")
	}
	if !model.IsLifeArea(v.LifeAreaID) {
		return invalid("unknown life area %q", v.LifeAreaID)
	}
	v.EditedDate = h.today()
	return nil
}

func (h *Handler) AddValue(c echo.Context) error {
	return addEntity(h, c, values, h.checkValue)
}

func (h *Handler) PutValue(c echo.Context) error {
	return putEntity(h, c, values, "vid", h.checkValue)
}

func (h *Handler) checkActivity(doc *model.PatientDocument, a *model.Activity) error {
	if strings.TrimSpace(a.Name) == "" {
		return invalid("activity name is required")
	}
	if a.ValueID != "" {
		if _, ok := values.find(doc, a.ValueID); !ok {
			return invalid("unknown value %q", a.ValueID)
		}
	}
	a.EditedDate = h.today()
	return nil
}

func (h *Handler) AddActivity(c echo.Context) error {
	return addEntity(h, c, activities, h.checkActivity)
}

func (h *Handler) PutActivity(c echo.Context) error {
	return putEntity(h, c, activities, "aid", h.checkActivity)
}

func (h *Handler) AddMoodLog(c echo.Context) error {
	return addEntity(h, c, moodLogs, func(_ *model.PatientDocument, m *model.MoodLog) error {
		if err := m.Validate(); err != nil {
			return invalid("%v", err)
		}
		if m.RecordedDate.IsZero() {
			m.RecordedDate = h.today()
		}
		return nil
	})
}

// AddPushSubscription registers a device. Registering an endpoint that is
// already stored answers with the stored subscription.
func (h *Handler) AddPushSubscription(c echo.Context) error {
	sub, err := bind[model.PushSubscription](c)
	if err != nil {
		return err
	}
	if sub.Endpoint == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "endpoint is required")
	}
	return h.mutate(c, http.StatusCreated, func(doc *model.PatientDocument) (any, error) {
		for _, s := range doc.PushSubscriptions {
			if s.SameEndpoint(sub) {
				return s, nil
			}
		}
		return pushSubscriptions.add(doc, sub), nil
	})
}

func (h *Handler) DeletePushSubscription(c echo.Context) error {
	_, err := h.repo.UpdatePatient(c.Request().Context(), c.Param("id"), func(doc *model.PatientDocument) error {
		return pushSubscriptions.remove(doc, c.Param("sid"))
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
