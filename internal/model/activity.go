package model

import "time"

// Activity is a named behavior the patient plans, optionally linked to a value.
type Activity struct {
	ActivityID      string `json:"activityId,omitempty"`
	Name            string `json:"name"`
	ValueID         string `json:"valueId,omitempty"`
	EnjoymentLevel  *int   `json:"enjoyment,omitempty"`
	ImportanceLevel *int   `json:"importance,omitempty"`
	EditedDate      Date   `json:"editedDate"`
	IsDeleted       bool   `json:"isDeleted,omitempty"`
	Rev             int    `json:"_rev,omitempty"`
}

func (a Activity) EntityID() string { return a.ActivityID }
func (a Activity) EntityDate() Date { return a.EditedDate }

// ActivitySchedule attaches a recurrence rule to an activity.
type ActivitySchedule struct {
	ActivityScheduleID string          `json:"activityScheduleId,omitempty"`
	ActivityID         string          `json:"activityId"`
	EditedDate         Date            `json:"editedDate"`
	Date               Date            `json:"date"`
	TimeOfDay          int             `json:"timeOfDay"`
	HasReminder        bool            `json:"hasReminder"`
	ReminderTimeOfDay  int             `json:"reminderTimeOfDay,omitempty"`
	HasRepetition      bool            `json:"hasRepetition"`
	RepeatDayFlags     map[string]bool `json:"repeatDayFlags,omitempty"`
	Rev                int             `json:"_rev,omitempty"`
}

func (s ActivitySchedule) EntityID() string { return s.ActivityScheduleID }
func (s ActivitySchedule) EntityDate() Date { return s.EditedDate }

// ScheduleSnapshot freezes the schedule, activity and value as they were when an
// instance was scheduled, so later edits do not rewrite history.
type ScheduleSnapshot struct {
	ActivitySchedule ActivitySchedule `json:"activitySchedule"`
	Activity         Activity         `json:"activity"`
	Value            *Value           `json:"value,omitempty"`
}

// ScheduledActivity is one materialized instance of a schedule.
type ScheduledActivity struct {
	ScheduledActivityID string           `json:"scheduledActivityId,omitempty"`
	ActivityScheduleID  string           `json:"activityScheduleId"`
	DueDate             Date             `json:"dueDate"`
	DueTimeOfDay        int              `json:"dueTimeOfDay"`
	DueDateTime         Date             `json:"dueDateTime"`
	ReminderDateTime    *Date            `json:"reminderDateTime,omitempty"`
	Completed           bool             `json:"completed"`
	DataSnapshot        ScheduleSnapshot `json:"dataSnapshot"`
	Rev                 int              `json:"_rev,omitempty"`
}

func (s ScheduledActivity) EntityID() string { return s.ScheduledActivityID }
func (s ScheduledActivity) EntityDate() Date { return s.DueDateTime }

// Activity log outcomes.
const (
	SuccessYes           = "Yes"
	SuccessNo            = "No"
	SuccessSomethingElse = "SomethingElse"
)

// ActivityLog is the patient's completion record for one scheduled activity.
type ActivityLog struct {
	LogID               string            `json:"logId,omitempty"`
	ScheduledActivityID string            `json:"scheduledActivityId"`
	RecordedDate        Date              `json:"recordedDate"`
	Success             string            `json:"success"`
	Alternative         string            `json:"alternative,omitempty"`
	Pleasure            *int              `json:"pleasure,omitempty"`
	Accomplishment      *int              `json:"accomplishment,omitempty"`
	Comment             string            `json:"comment,omitempty"`
	DataSnapshot        *ScheduleSnapshot `json:"dataSnapshot,omitempty"`
	Rev                 int               `json:"_rev,omitempty"`
}

func (l ActivityLog) EntityID() string { return l.LogID }
func (l ActivityLog) EntityDate() Date { return l.RecordedDate }

// Completed reports whether the patient did the planned activity.
func (l ActivityLog) Completed() bool { return l.Success == SuccessYes }

// ExpandSchedule materializes the instances of schedule that fall within
// [from, to). Each instance snapshots the schedule, activity and value.
func ExpandSchedule(schedule ActivitySchedule, activity Activity, value *Value, from, to time.Time) []ScheduledActivity {
	snapshot := ScheduleSnapshot{ActivitySchedule: schedule, Activity: activity}
	if value != nil {
		v := *value
		snapshot.Value = &v
	}

	start := startOfDay(schedule.Date.Time)
	instance := func(day time.Time) ScheduledActivity {
		due := day.Add(time.Duration(schedule.TimeOfDay) * time.Hour)
		sa := ScheduledActivity{
			ActivityScheduleID: schedule.ActivityScheduleID,
			DueDate:            NewDate(day),
			DueTimeOfDay:       schedule.TimeOfDay,
			DueDateTime:        NewDate(due),
			DataSnapshot:       snapshot,
		}
		if schedule.HasReminder {
			r := NewDate(day.Add(time.Duration(schedule.ReminderTimeOfDay) * time.Hour))
			sa.ReminderDateTime = &r
		}
		return sa
	}

	var out []ScheduledActivity
	if !schedule.HasRepetition {
		due := start.Add(time.Duration(schedule.TimeOfDay) * time.Hour)
		if !due.Before(from) && due.Before(to) {
			out = append(out, instance(start))
		}
		return out
	}

	day := start
	if fromDay := startOfDay(from); fromDay.After(day) {
		day = fromDay
	}
	for ; day.Before(to); day = day.AddDate(0, 0, 1) {
		if !schedule.RepeatDayFlags[day.Weekday().String()] {
			continue
		}
		due := day.Add(time.Duration(schedule.TimeOfDay) * time.Hour)
		if due.Before(from) || !due.Before(to) {
			continue
		}
		out = append(out, instance(day))
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
