package devserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/service"
)

// AddActivitySchedule stores a schedule and materializes its instances from
// now until the scheduling horizon.
func (h *Handler) AddActivitySchedule(c echo.Context) error {
	s, err := bind[model.ActivitySchedule](c)
	if err != nil {
		return err
	}
	if s.Date.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "schedule date is required")
	}
	if s.TimeOfDay < 0 || s.TimeOfDay > 23 {
		return echo.NewHTTPError(http.StatusBadRequest, "timeOfDay must be an hour between 0 and 23")
	}

	return h.mutate(c, http.StatusCreated, func(doc *model.PatientDocument) (any, error) {
		act, ok := activities.find(doc, s.ActivityID)
		if !ok {
			return nil, invalid("unknown activity %q", s.ActivityID)
		}
		var value *model.Value
		if act.ValueID != "" {
			value, _ = values.find(doc, act.ValueID)
		}
		s.EditedDate = h.today()
		s = activitySchedules.add(doc, s)

		now := h.now()
		instances := model.ExpandSchedule(s, *act, value, now, now.Add(h.horizon))
		for i := range instances {
			instances[i].ScheduledActivityID = uuid.NewString()
			instances[i].Rev = 1
		}
		doc.ScheduledActivities = append(doc.ScheduledActivities, instances...)

		if instances == nil {
			instances = []model.ScheduledActivity{}
		}
		return service.ScheduleResult{ActivitySchedule: s, ScheduledActivities: instances}, nil
	})
}

// AddActivityLog records the outcome of a scheduled activity, which marks the
// instance completed. The log snapshots the instance's schedule data.
func (h *Handler) AddActivityLog(c echo.Context) error {
	return addEntity(h, c, activityLogs, func(doc *model.PatientDocument, l *model.ActivityLog) error {
		sa, ok := scheduledActivities.find(doc, l.ScheduledActivityID)
		if !ok {
			return invalid("unknown scheduled activity %q", l.ScheduledActivityID)
		}
		switch l.Success {
		case model.SuccessYes, model.SuccessNo, model.SuccessSomethingElse:
		default:
			return invalid("success must be one of %s, %s or %s", model.SuccessYes, model.SuccessNo, model.SuccessSomethingElse)
		}
		for _, r := range []*int{l.Pleasure, l.Accomplishment} {
			if r != nil && (*r < 0 || *r > 10) {
				return invalid("ratings must be between 0 and 10")
			}
		}
		if l.RecordedDate.IsZero() {
			l.RecordedDate = h.today()
		}
		if l.DataSnapshot == nil {
			snap := sa.DataSnapshot
			l.DataSnapshot = &snap
		}
		sa.Completed = true
		sa.Rev++
		return nil
	})
}
