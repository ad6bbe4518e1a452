package model

import "fmt"

// IntegrityIssue describes a child record whose parent reference does not
// resolve within the same patient document.
type IntegrityIssue struct {
	Resource string
	ID       string
	Parent   string
	ParentID string
}

func (i IntegrityIssue) String() string {
	return fmt.Sprintf("%s %s references missing %s %s", i.Resource, i.ID, i.Parent, i.ParentID)
}

// CheckIntegrity returns every dangling parent reference in doc.
func CheckIntegrity(doc *PatientDocument) []IntegrityIssue {
	var issues []IntegrityIssue

	values := make(map[string]bool, len(doc.Values))
	for _, v := range doc.Values {
		values[v.ValueID] = true
	}
	activities := make(map[string]bool, len(doc.Activities))
	for _, a := range doc.Activities {
		activities[a.ActivityID] = true
		if a.ValueID != "" && !values[a.ValueID] {
			issues = append(issues, IntegrityIssue{"activity", a.ActivityID, "value", a.ValueID})
		}
	}
	schedules := make(map[string]bool, len(doc.ActivitySchedules))
	for _, s := range doc.ActivitySchedules {
		schedules[s.ActivityScheduleID] = true
		if !activities[s.ActivityID] {
			issues = append(issues, IntegrityIssue{"activitySchedule", s.ActivityScheduleID, "activity", s.ActivityID})
		}
	}
	scheduled := make(map[string]bool, len(doc.ScheduledActivities))
	for _, sa := range doc.ScheduledActivities {
		scheduled[sa.ScheduledActivityID] = true
		if !schedules[sa.ActivityScheduleID] {
			issues = append(issues, IntegrityIssue{"scheduledActivity", sa.ScheduledActivityID, "activitySchedule", sa.ActivityScheduleID})
		}
	}
	for _, l := range doc.ActivityLogs {
		if !scheduled[l.ScheduledActivityID] {
			issues = append(issues, IntegrityIssue{"activityLog", l.LogID, "scheduledActivity", l.ScheduledActivityID})
		}
	}
	assessments := make(map[string]bool, len(doc.Assessments))
	for _, a := range doc.Assessments {
		assessments[a.AssessmentID] = true
	}
	for _, l := range doc.AssessmentLogs {
		if !assessments[l.AssessmentID] {
			issues = append(issues, IntegrityIssue{"assessmentLog", l.LogID, "assessment", l.AssessmentID})
		}
	}
	return issues
}
