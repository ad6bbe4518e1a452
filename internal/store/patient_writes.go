package store

import (
	"context"
	"fmt"

	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/platform/metrics"
	"github.com/uwscope/scope-web-sub000/internal/platform/query"
)

func (s *PatientStore) UpdateProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	return writeSingleton(ctx, s, s.profile, ResourceProfile, func(ctx context.Context) (model.Profile, error) {
		return s.api.UpdateProfile(ctx, p)
	})
}

func (s *PatientStore) UpdateClinicalHistory(ctx context.Context, h model.ClinicalHistory) (model.ClinicalHistory, error) {
	return writeSingleton(ctx, s, s.clinicalHistory, ResourceClinicalHistory, func(ctx context.Context) (model.ClinicalHistory, error) {
		return s.api.UpdateClinicalHistory(ctx, h)
	})
}

func (s *PatientStore) UpdateSafetyPlan(ctx context.Context, p model.SafetyPlan) (model.SafetyPlan, error) {
	now := model.NewDate(s.now())
	p.LastUpdatedDateTime = &now
	return writeSingleton(ctx, s, s.safetyPlan, ResourceSafetyPlan, func(ctx context.Context) (model.SafetyPlan, error) {
		return s.api.UpdateSafetyPlan(ctx, p)
	})
}

func (s *PatientStore) UpdateValuesInventory(ctx context.Context, v model.ValuesInventory) (model.ValuesInventory, error) {
	return writeSingleton(ctx, s, s.valuesInventory, ResourceValuesInventory, func(ctx context.Context) (model.ValuesInventory, error) {
		return s.api.UpdateValuesInventory(ctx, v)
	})
}

// AssignSafetyPlan turns the safety plan exercise on or off for the patient.
func (s *PatientStore) AssignSafetyPlan(ctx context.Context, assigned bool) (model.SafetyPlan, error) {
	plan := s.SafetyPlan()
	if assigned && !plan.Assigned {
		now := model.NewDate(s.now())
		plan.AssignedDateTime = &now
	}
	plan.Assigned = assigned
	return writeSingleton(ctx, s, s.safetyPlan, ResourceSafetyPlan, func(ctx context.Context) (model.SafetyPlan, error) {
		return s.api.UpdateSafetyPlan(ctx, plan)
	})
}

// AssignValuesInventory turns the values inventory exercise on or off.
func (s *PatientStore) AssignValuesInventory(ctx context.Context, assigned bool) (model.ValuesInventory, error) {
	inv := s.ValuesInventory()
	if assigned && !inv.Assigned {
		now := model.NewDate(s.now())
		inv.AssignedDateTime = &now
	}
	inv.Assigned = assigned
	return s.UpdateValuesInventory(ctx, inv)
}

// AddSession saves a new session. The checklists are sent with every key.
func (s *PatientStore) AddSession(ctx context.Context, d model.Draft[model.Session]) (model.Session, error) {
	d.Value = d.Value.Normalized()
	return writeCollection(ctx, s, s.sessions, writeOpts[model.Session]{resource: ResourceSessions, order: newestFirst[model.Session]},
		func(ctx context.Context) (model.Session, error) { return s.api.AddSession(ctx, d) })
}

func (s *PatientStore) UpdateSession(ctx context.Context, v model.Session) (model.Session, error) {
	if v.SessionID == "" {
		return model.Session{}, model.ErrDraftEntity
	}
	v = v.Normalized()
	return writeCollection(ctx, s, s.sessions, writeOpts[model.Session]{resource: ResourceSessions, update: true, order: newestFirst[model.Session]},
		func(ctx context.Context) (model.Session, error) { return s.api.UpdateSession(ctx, v) })
}

func (s *PatientStore) AddCaseReview(ctx context.Context, d model.Draft[model.CaseReview]) (model.CaseReview, error) {
	d.Value = d.Value.Normalized()
	return writeCollection(ctx, s, s.caseReviews, writeOpts[model.CaseReview]{resource: ResourceCaseReviews, order: newestFirst[model.CaseReview]},
		func(ctx context.Context) (model.CaseReview, error) { return s.api.AddCaseReview(ctx, d) })
}

func (s *PatientStore) UpdateCaseReview(ctx context.Context, v model.CaseReview) (model.CaseReview, error) {
	if v.ReviewID == "" {
		return model.CaseReview{}, model.ErrDraftEntity
	}
	v = v.Normalized()
	return writeCollection(ctx, s, s.caseReviews, writeOpts[model.CaseReview]{resource: ResourceCaseReviews, update: true, order: newestFirst[model.CaseReview]},
		func(ctx context.Context) (model.CaseReview, error) { return s.api.UpdateCaseReview(ctx, v) })
}

func (s *PatientStore) UpdateAssessment(ctx context.Context, v model.Assessment) (model.Assessment, error) {
	if v.AssessmentID == "" {
		return model.Assessment{}, model.ErrDraftEntity
	}
	return writeCollection(ctx, s, s.assessments, writeOpts[model.Assessment]{resource: ResourceAssessments, update: true},
		func(ctx context.Context) (model.Assessment, error) { return s.api.UpdateAssessment(ctx, v) })
}

// AssignAssessment changes whether and how often an instrument is given.
func (s *PatientStore) AssignAssessment(ctx context.Context, assessmentID string, assigned bool, frequency, dayOfWeek string) (model.Assessment, error) {
	if _, ok := model.Instruments[assessmentID]; !ok && assessmentID != model.AssessmentMedication {
		return model.Assessment{}, fmt.Errorf("unknown assessment %q", assessmentID)
	}
	a, ok := s.AssessmentByID(assessmentID)
	if !ok {
		a = model.Assessment{AssessmentID: assessmentID}
	}
	if assigned && !a.Assigned {
		now := model.NewDate(s.now())
		a.AssignedDate = &now
	}
	a.Assigned = assigned
	a.Frequency = frequency
	a.DayOfWeek = dayOfWeek
	return s.UpdateAssessment(ctx, a)
}

func (s *PatientStore) AddAssessmentLog(ctx context.Context, d model.Draft[model.AssessmentLog]) (model.AssessmentLog, error) {
	if err := d.Value.Validate(); err != nil {
		return model.AssessmentLog{}, err
	}
	return writeCollection(ctx, s, s.assessmentLogs, writeOpts[model.AssessmentLog]{resource: ResourceAssessmentLogs, order: newestFirst[model.AssessmentLog]},
		func(ctx context.Context) (model.AssessmentLog, error) { return s.api.AddAssessmentLog(ctx, d) })
}

func (s *PatientStore) UpdateAssessmentLog(ctx context.Context, v model.AssessmentLog) (model.AssessmentLog, error) {
	if v.LogID == "" {
		return model.AssessmentLog{}, model.ErrDraftEntity
	}
	if err := v.Validate(); err != nil {
		return model.AssessmentLog{}, err
	}
	return writeCollection(ctx, s, s.assessmentLogs, writeOpts[model.AssessmentLog]{resource: ResourceAssessmentLogs, update: true, order: newestFirst[model.AssessmentLog]},
		func(ctx context.Context) (model.AssessmentLog, error) { return s.api.UpdateAssessmentLog(ctx, v) })
}

func (s *PatientStore) AddActivity(ctx context.Context, d model.Draft[model.Activity]) (model.Activity, error) {
	if d.Value.EditedDate.IsZero() {
		d.Value.EditedDate = model.NewDate(s.now())
	}
	return writeCollection(ctx, s, s.activities, writeOpts[model.Activity]{resource: ResourceActivities, order: newestFirst[model.Activity]},
		func(ctx context.Context) (model.Activity, error) { return s.api.AddActivity(ctx, d) })
}

func (s *PatientStore) UpdateActivity(ctx context.Context, v model.Activity) (model.Activity, error) {
	if v.ActivityID == "" {
		return model.Activity{}, model.ErrDraftEntity
	}
	v.EditedDate = model.NewDate(s.now())
	return writeCollection(ctx, s, s.activities, writeOpts[model.Activity]{resource: ResourceActivities, update: true, order: newestFirst[model.Activity]},
		func(ctx context.Context) (model.Activity, error) { return s.api.UpdateActivity(ctx, v) })
}

// DeleteActivity soft-deletes an activity. It stays resolvable by id.
func (s *PatientStore) DeleteActivity(ctx context.Context, activityID string) (model.Activity, error) {
	a, ok := s.ActivityByID(activityID)
	if !ok {
		return model.Activity{}, fmt.Errorf("activity %q not found", activityID)
	}
	a.IsDeleted = true
	return s.UpdateActivity(ctx, a)
}

func (s *PatientStore) AddValue(ctx context.Context, d model.Draft[model.Value]) (model.Value, error) {
	if !model.IsLifeArea(d.Value.LifeAreaID) {
		return model.Value{}, fmt.Errorf("unknown life area %q", d.Value.LifeAreaID)
	}
	if d.Value.EditedDate.IsZero() {
		d.Value.EditedDate = model.NewDate(s.now())
	}
	return writeCollection(ctx, s, s.values, writeOpts[model.Value]{resource: ResourceValues, order: newestFirst[model.Value]},
		func(ctx context.Context) (model.Value, error) { return s.api.AddValue(ctx, d) })
}

func (s *PatientStore) UpdateValue(ctx context.Context, v model.Value) (model.Value, error) {
	if v.ValueID == "" {
		return model.Value{}, model.ErrDraftEntity
	}
	v.EditedDate = model.NewDate(s.now())
	return writeCollection(ctx, s, s.values, writeOpts[model.Value]{resource: ResourceValues, update: true, order: newestFirst[model.Value]},
		func(ctx context.Context) (model.Value, error) { return s.api.UpdateValue(ctx, v) })
}

// AddActivitySchedule saves a schedule and folds in the instances the backend
// materialized for it.
func (s *PatientStore) AddActivitySchedule(ctx context.Context, d model.Draft[model.ActivitySchedule]) (model.ActivitySchedule, error) {
	if _, ok := s.ActivityByID(d.Value.ActivityID); !ok {
		return model.ActivitySchedule{}, fmt.Errorf("activity %q not found", d.Value.ActivityID)
	}
	if d.Value.EditedDate.IsZero() {
		d.Value.EditedDate = model.NewDate(s.now())
	}

	var instances []model.ScheduledActivity
	saved, err := writeCollection(ctx, s, s.activitySchedules,
		writeOpts[model.ActivitySchedule]{resource: ResourceActivitySchedules, order: newestFirst[model.ActivitySchedule]},
		func(ctx context.Context) (model.ActivitySchedule, error) {
			res, err := s.api.AddActivitySchedule(ctx, d)
			instances = res.ScheduledActivities
			return res.ActivitySchedule, err
		})
	if err != nil || len(instances) == 0 {
		return saved, err
	}

	_, err = s.scheduledActivities.Mutate(ctx, func(context.Context) (query.Reducer[[]model.ScheduledActivity], error) {
		return func(items []model.ScheduledActivity) []model.ScheduledActivity {
			for _, inst := range instances {
				items, _ = upsert(items, inst)
			}
			return newestFirst(items)
		}, nil
	})
	return saved, err
}

// AddActivityLog records the patient's outcome for one scheduled activity and
// marks the instance completed.
func (s *PatientStore) AddActivityLog(ctx context.Context, d model.Draft[model.ActivityLog]) (model.ActivityLog, error) {
	sa, ok := s.ScheduledActivityByID(d.Value.ScheduledActivityID)
	if !ok {
		s.logger.Warn().
			Str("resource", string(ResourceActivityLogs)).
			Str("parent_id", d.Value.ScheduledActivityID).
			Msg("activity log references an unknown scheduled activity")
		s.metrics.Assertion(metrics.AssertionDanglingParent, string(ResourceActivityLogs))
	} else if d.Value.DataSnapshot == nil {
		snap := sa.DataSnapshot
		d.Value.DataSnapshot = &snap
	}
	if d.Value.RecordedDate.IsZero() {
		d.Value.RecordedDate = model.NewDate(s.now())
	}

	saved, err := writeCollection(ctx, s, s.activityLogs, writeOpts[model.ActivityLog]{resource: ResourceActivityLogs, order: newestFirst[model.ActivityLog]},
		func(ctx context.Context) (model.ActivityLog, error) { return s.api.AddActivityLog(ctx, d) })
	if err != nil || !ok {
		return saved, err
	}

	_, err = s.scheduledActivities.Mutate(ctx, func(context.Context) (query.Reducer[[]model.ScheduledActivity], error) {
		return func(items []model.ScheduledActivity) []model.ScheduledActivity {
			current, found := findByID(items, sa.ScheduledActivityID)
			if !found {
				return items
			}
			current.Completed = true
			out, _ := upsert(items, current)
			return out
		}, nil
	})
	return saved, err
}

func (s *PatientStore) AddMoodLog(ctx context.Context, d model.Draft[model.MoodLog]) (model.MoodLog, error) {
	if err := d.Value.Validate(); err != nil {
		return model.MoodLog{}, err
	}
	if d.Value.RecordedDate.IsZero() {
		d.Value.RecordedDate = model.NewDate(s.now())
	}
	return writeCollection(ctx, s, s.moodLogs, writeOpts[model.MoodLog]{resource: ResourceMoodLogs, order: newestFirst[model.MoodLog]},
		func(ctx context.Context) (model.MoodLog, error) { return s.api.AddMoodLog(ctx, d) })
}

// SetPushSubscriptions replaces the locally known subscriptions after the push
// manager changed them on the server.
func (s *PatientStore) SetPushSubscriptions(subs []model.PushSubscription) {
	s.pushSubscriptions.Seed(subs)
}
