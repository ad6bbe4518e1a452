package store

import (
	"time"

	"github.com/uwscope/scope-web-sub000/internal/model"
)

// The Recent* views keep the entries of the last RecentWindow, relying on each
// collection being sorted newest first. They return nil when nothing is recent.

func (s *PatientStore) cutoff() time.Time {
	return s.now().Add(-s.window)
}

func (s *PatientStore) RecentActivities() []model.Activity {
	return recent(s.Activities(), s.cutoff())
}

func (s *PatientStore) RecentActivityLogs() []model.ActivityLog {
	return recent(s.activityLogs.Value(), s.cutoff())
}

func (s *PatientStore) RecentAssessmentLogs() []model.AssessmentLog {
	return recent(s.assessmentLogs.Value(), s.cutoff())
}

func (s *PatientStore) RecentMoodLogs() []model.MoodLog {
	return recent(s.moodLogs.Value(), s.cutoff())
}

func (s *PatientStore) RecentScheduledActivities() []model.ScheduledActivity {
	return recent(s.scheduledActivities.Value(), s.cutoff())
}

func (s *PatientStore) RecentValues() []model.Value {
	return recent(s.values.Value(), s.cutoff())
}

// Attention summarizes why a caseload row should be looked at.
type Attention struct {
	// ElevatedScores lists instruments whose recent score is moderate or worse.
	ElevatedScores []string
	// Inactive is set when the patient recorded nothing in the window.
	Inactive bool
}

func (a Attention) Needed() bool {
	return len(a.ElevatedScores) > 0 || a.Inactive
}

// moderateBand is the PHQ-9 and GAD-7 total at which care managers follow up.
const moderateBand = 10

// Attention derives the caseload flags from the recent views. A store whose
// details have not loaded yet needs no attention.
func (s *PatientStore) Attention() Attention {
	var a Attention
	if !s.Loaded() || s.Profile().ExitedStudy() {
		return a
	}

	logs := s.RecentAssessmentLogs()
	for _, id := range []string{model.AssessmentPHQ9, model.AssessmentGAD7} {
		for _, l := range logs {
			if l.AssessmentID != id {
				continue
			}
			if total, ok := l.Total(); ok && total >= moderateBand {
				a.ElevatedScores = append(a.ElevatedScores, id)
			}
			break
		}
	}

	a.Inactive = logs == nil && s.RecentActivityLogs() == nil && s.RecentMoodLogs() == nil
	return a
}
