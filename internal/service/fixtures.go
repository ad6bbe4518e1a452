package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/uwscope/scope-web-sub000/internal/model"
)

// withFallback runs call and, when fixture fallback is enabled and the backend
// could not be reached, answers with fixture() after the configured delay.
// Conflicts, client errors and cancellation are always returned as-is.
func withFallback[T any](ctx context.Context, c *Client, endpoint string, call func() (T, error), fixture func() T) (T, error) {
	v, err := call()
	if err == nil || !c.fixtures || !fallbackable(ctx, err) {
		return v, err
	}

	c.logger.Warn().Err(err).Str("endpoint", endpoint).Dur("delay", c.fixtureDelay).Msg("answering with fixture data")
	c.metrics.Fallback(endpoint)

	if c.fixtureDelay > 0 {
		timer := time.NewTimer(c.fixtureDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	return fixture(), nil
}

func fallbackable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status == 404 || he.Status == 501 || he.Status >= 500
	}
	return false
}

func fixtureID() string {
	return uuid.NewString()
}

func fixtureConfig() map[string]any {
	return map[string]any{
		"assessments": []any{
			map[string]any{"id": model.AssessmentPHQ9, "name": "PHQ-9"},
			map[string]any{"id": model.AssessmentGAD7, "name": "GAD-7"},
			map[string]any{"id": model.AssessmentMedication, "name": "Medication Tracking"},
		},
		"lifeAreas":   lifeAreaIDs(),
		"generatedAt": time.Now().UTC(),
	}
}

func lifeAreaIDs() []any {
	ids := make([]any, 0, len(model.LifeAreas))
	for _, la := range model.LifeAreas {
		ids = append(ids, la.ID)
	}
	return ids
}

func fixtureSchedule(s model.ActivitySchedule) ScheduleResult {
	s.ActivityScheduleID = fixtureID()
	now := time.Now()
	if s.EditedDate.IsZero() {
		s.EditedDate = model.NewDate(now)
	}
	instances := model.ExpandSchedule(s, model.Activity{ActivityID: s.ActivityID}, nil, now, now.AddDate(0, 0, 14))
	for i := range instances {
		instances[i].ScheduledActivityID = fixtureID()
	}
	return ScheduleResult{ActivitySchedule: s, ScheduledActivities: instances}
}

func fixtureActivityLog(l model.ActivityLog) model.ActivityLog {
	l.LogID = fixtureID()
	if l.RecordedDate.IsZero() {
		l.RecordedDate = model.NewDate(time.Now())
	}
	return l
}

func fixtureMoodLog(m model.MoodLog) model.MoodLog {
	m.LogID = fixtureID()
	if m.RecordedDate.IsZero() {
		m.RecordedDate = model.NewDate(time.Now())
	}
	return m
}
