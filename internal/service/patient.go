package service

import (
	"context"
	"net/http"
	"net/url"

	"github.com/uwscope/scope-web-sub000/internal/model"
)

// ScheduleResult is the answer to adding an activity schedule: the schedule
// and the instances the backend materialized from it.
type ScheduleResult struct {
	ActivitySchedule    model.ActivitySchedule    `json:"activitySchedule"`
	ScheduledActivities []model.ScheduledActivity `json:"scheduledActivities"`
}

// PatientService reaches the per-patient resource endpoints.
type PatientService struct {
	c         *Client
	patientID string
	base      string
}

func NewPatientService(c *Client, patientID string) *PatientService {
	return &PatientService{
		c:         c,
		patientID: patientID,
		base:      "/patient/" + url.PathEscape(patientID),
	}
}

func (s *PatientService) PatientID() string { return s.patientID }

func (s *PatientService) path(parts ...string) string {
	p := s.base
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// GetPatient loads the whole patient document in one round trip.
func (s *PatientService) GetPatient(ctx context.Context) (model.PatientDocument, error) {
	return send[model.PatientDocument](ctx, s.c, http.MethodGet, s.base, nil)
}

func (s *PatientService) UpdateProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	return send[model.Profile](ctx, s.c, http.MethodPut, s.path("profile"), p)
}

func (s *PatientService) UpdateClinicalHistory(ctx context.Context, h model.ClinicalHistory) (model.ClinicalHistory, error) {
	return send[model.ClinicalHistory](ctx, s.c, http.MethodPut, s.path("clinicalhistory"), h)
}

func (s *PatientService) UpdateValuesInventory(ctx context.Context, v model.ValuesInventory) (model.ValuesInventory, error) {
	return send[model.ValuesInventory](ctx, s.c, http.MethodPut, s.path("valuesinventory"), v)
}

func (s *PatientService) UpdateSafetyPlan(ctx context.Context, p model.SafetyPlan) (model.SafetyPlan, error) {
	return send[model.SafetyPlan](ctx, s.c, http.MethodPut, s.path("safety"), p)
}

func (s *PatientService) AddSession(ctx context.Context, d model.Draft[model.Session]) (model.Session, error) {
	return send[model.Session](ctx, s.c, http.MethodPost, s.path("sessions"), d.Value)
}

func (s *PatientService) UpdateSession(ctx context.Context, v model.Session) (model.Session, error) {
	if v.SessionID == "" {
		return model.Session{}, model.ErrDraftEntity
	}
	return send[model.Session](ctx, s.c, http.MethodPut, s.path("sessions", v.SessionID), v)
}

func (s *PatientService) AddCaseReview(ctx context.Context, d model.Draft[model.CaseReview]) (model.CaseReview, error) {
	return send[model.CaseReview](ctx, s.c, http.MethodPost, s.path("casereviews"), d.Value)
}

func (s *PatientService) UpdateCaseReview(ctx context.Context, v model.CaseReview) (model.CaseReview, error) {
	if v.ReviewID == "" {
		return model.CaseReview{}, model.ErrDraftEntity
	}
	return send[model.CaseReview](ctx, s.c, http.MethodPut, s.path("casereviews", v.ReviewID), v)
}

// UpdateAssessment changes how an instrument is assigned. Assessments exist for
// every instrument from enrollment, so there is no add path.
func (s *PatientService) UpdateAssessment(ctx context.Context, v model.Assessment) (model.Assessment, error) {
	if v.AssessmentID == "" {
		return model.Assessment{}, model.ErrDraftEntity
	}
	return send[model.Assessment](ctx, s.c, http.MethodPut, s.path("assessments", v.AssessmentID), v)
}

func (s *PatientService) AddAssessmentLog(ctx context.Context, d model.Draft[model.AssessmentLog]) (model.AssessmentLog, error) {
	return send[model.AssessmentLog](ctx, s.c, http.MethodPost, s.path("assessmentlogs"), d.Value)
}

func (s *PatientService) UpdateAssessmentLog(ctx context.Context, v model.AssessmentLog) (model.AssessmentLog, error) {
	if v.LogID == "" {
		return model.AssessmentLog{}, model.ErrDraftEntity
	}
	return send[model.AssessmentLog](ctx, s.c, http.MethodPut, s.path("assessmentlogs", v.LogID), v)
}

func (s *PatientService) AddActivity(ctx context.Context, d model.Draft[model.Activity]) (model.Activity, error) {
	return send[model.Activity](ctx, s.c, http.MethodPost, s.path("activities"), d.Value)
}

func (s *PatientService) UpdateActivity(ctx context.Context, v model.Activity) (model.Activity, error) {
	if v.ActivityID == "" {
		return model.Activity{}, model.ErrDraftEntity
	}
	return send[model.Activity](ctx, s.c, http.MethodPut, s.path("activities", v.ActivityID), v)
}

func (s *PatientService) AddValue(ctx context.Context, d model.Draft[model.Value]) (model.Value, error) {
	return send[model.Value](ctx, s.c, http.MethodPost, s.path("values"), d.Value)
}

func (s *PatientService) UpdateValue(ctx context.Context, v model.Value) (model.Value, error) {
	if v.ValueID == "" {
		return model.Value{}, model.ErrDraftEntity
	}
	return send[model.Value](ctx, s.c, http.MethodPut, s.path("values", v.ValueID), v)
}

func (s *PatientService) AddActivitySchedule(ctx context.Context, d model.Draft[model.ActivitySchedule]) (ScheduleResult, error) {
	return withFallback(ctx, s.c, "/activities/schedule",
		func() (ScheduleResult, error) {
			return send[ScheduleResult](ctx, s.c, http.MethodPost, s.path("activities", "schedule"), d.Value)
		},
		func() ScheduleResult { return fixtureSchedule(d.Value) },
	)
}

func (s *PatientService) AddActivityLog(ctx context.Context, d model.Draft[model.ActivityLog]) (model.ActivityLog, error) {
	return withFallback(ctx, s.c, "/activitylogs",
		func() (model.ActivityLog, error) {
			return send[model.ActivityLog](ctx, s.c, http.MethodPost, s.path("activitylogs"), d.Value)
		},
		func() model.ActivityLog { return fixtureActivityLog(d.Value) },
	)
}

func (s *PatientService) AddMoodLog(ctx context.Context, d model.Draft[model.MoodLog]) (model.MoodLog, error) {
	return withFallback(ctx, s.c, "/moodlogs",
		func() (model.MoodLog, error) {
			return send[model.MoodLog](ctx, s.c, http.MethodPost, s.path("moodlogs"), d.Value)
		},
		func() model.MoodLog { return fixtureMoodLog(d.Value) },
	)
}

func (s *PatientService) AddPushSubscription(ctx context.Context, sub model.PushSubscription) (model.PushSubscription, error) {
	return send[model.PushSubscription](ctx, s.c, http.MethodPost, s.path("pushsubscriptions"), sub)
}

func (s *PatientService) DeletePushSubscription(ctx context.Context, subscriptionID string) error {
	if subscriptionID == "" {
		return model.ErrDraftEntity
	}
	return s.c.Do(ctx, http.MethodDelete, s.path("pushsubscriptions", subscriptionID), nil, nil)
}
