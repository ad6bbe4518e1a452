package devserver

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/uwscope/scope-web-sub000/internal/model"
)

// ErrInvalid marks a request the backend refuses to store.
var ErrInvalid = errors.New("invalid request")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// ConflictError rejects a write made against a stale revision. Current is
// what the client should replace its copy with.
type ConflictError struct {
	Resource string
	Current  any
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: revision conflict", e.Resource)
}

// collection describes one array of a patient document. Every entity carries
// an id and a revision counter starting at 1.
type collection[T any] struct {
	name  string
	items func(*model.PatientDocument) *[]T
	id    func(*T) *string
	rev   func(*T) *int
}

// add assigns a fresh id and the first revision, then appends v.
func (col collection[T]) add(doc *model.PatientDocument, v T) T {
	*col.id(&v) = uuid.NewString()
	*col.rev(&v) = 1
	*col.items(doc) = append(*col.items(doc), v)
	return v
}

// put replaces the entity with id. The incoming revision must equal the
// stored one; a mismatch yields the whole collection as the conflict snapshot.
func (col collection[T]) put(doc *model.PatientDocument, id string, v T) (T, error) {
	items := *col.items(doc)
	i := col.index(items, id)
	if i < 0 {
		return v, fmt.Errorf("%s %s: %w", col.name, id, ErrNotFound)
	}
	stored := *col.rev(&items[i])
	if *col.rev(&v) != stored {
		return v, &ConflictError{Resource: col.name, Current: col.snapshot(items)}
	}
	*col.id(&v) = id
	*col.rev(&v) = stored + 1
	items[i] = v
	return v, nil
}

// remove deletes the entity with id.
func (col collection[T]) remove(doc *model.PatientDocument, id string) error {
	items := *col.items(doc)
	i := col.index(items, id)
	if i < 0 {
		return fmt.Errorf("%s %s: %w", col.name, id, ErrNotFound)
	}
	*col.items(doc) = slices.Delete(items, i, i+1)
	return nil
}

func (col collection[T]) find(doc *model.PatientDocument, id string) (*T, bool) {
	items := *col.items(doc)
	if i := col.index(items, id); i >= 0 {
		return &items[i], true
	}
	return nil, false
}

func (col collection[T]) index(items []T, id string) int {
	return slices.IndexFunc(items, func(item T) bool { return *col.id(&item) == id })
}

func (col collection[T]) snapshot(items []T) []T {
	if items == nil {
		return []T{}
	}
	return slices.Clone(items)
}

// singleton describes a one-per-patient object of a patient document.
type singleton[T any] struct {
	name string
	get  func(*model.PatientDocument) *T
	rev  func(*T) *int
}

// put overwrites the object when the incoming revision is current.
func (s singleton[T]) put(doc *model.PatientDocument, v T) (T, error) {
	cur := s.get(doc)
	stored := *s.rev(cur)
	if *s.rev(&v) != stored {
		return v, &ConflictError{Resource: s.name, Current: *cur}
	}
	*s.rev(&v) = stored + 1
	*cur = v
	return v, nil
}

var (
	sessions = collection[model.Session]{
		name:  "sessions",
		items: func(d *model.PatientDocument) *[]model.Session { return &d.Sessions },
		id:    func(v *model.Session) *string { return &v.SessionID },
		rev:   func(v *model.Session) *int { return &v.Rev },
	}
	caseReviews = collection[model.CaseReview]{
		name:  "caseReviews",
		items: func(d *model.PatientDocument) *[]model.CaseReview { return &d.CaseReviews },
		id:    func(v *model.CaseReview) *string { return &v.ReviewID },
		rev:   func(v *model.CaseReview) *int { return &v.Rev },
	}
	assessments = collection[model.Assessment]{
		name:  "assessments",
		items: func(d *model.PatientDocument) *[]model.Assessment { return &d.Assessments },
		id:    func(v *model.Assessment) *string { return &v.AssessmentID },
		rev:   func(v *model.Assessment) *int { return &v.Rev },
	}
	assessmentLogs = collection[model.AssessmentLog]{
		name:  "assessmentLogs",
		items: func(d *model.PatientDocument) *[]model.AssessmentLog { return &d.AssessmentLogs },
		id:    func(v *model.AssessmentLog) *string { return &v.LogID },
		rev:   func(v *model.AssessmentLog) *int { return &v.Rev },
	}
	activities = collection[model.Activity]{
		name:  "activities",
		items: func(d *model.PatientDocument) *[]model.Activity { return &d.Activities },
		id:    func(v *model.Activity) *string { return &v.ActivityID },
		rev:   func(v *model.Activity) *int { return &v.Rev },
	}
	activitySchedules = collection[model.ActivitySchedule]{
		name:  "activitySchedules",
		items: func(d *model.PatientDocument) *[]model.ActivitySchedule { return &d.ActivitySchedules },
		id:    func(v *model.ActivitySchedule) *string { return &v.ActivityScheduleID },
		rev:   func(v *model.ActivitySchedule) *int { return &v.Rev },
	}
	scheduledActivities = collection[model.ScheduledActivity]{
		name:  "scheduledActivities",
		items: func(d *model.PatientDocument) *[]model.ScheduledActivity { return &d.ScheduledActivities },
		id:    func(v *model.ScheduledActivity) *string { return &v.ScheduledActivityID },
		rev:   func(v *model.ScheduledActivity) *int { return &v.Rev },
	}
	activityLogs = collection[model.ActivityLog]{
		name:  "activityLogs",
		items: func(d *model.PatientDocument) *[]model.ActivityLog { return &d.ActivityLogs },
		id:    func(v *model.ActivityLog) *string { return &v.LogID },
		rev:   func(v *model.ActivityLog) *int { return &v.Rev },
	}
	moodLogs = collection[model.MoodLog]{
		name:  "moodLogs",
		items: func(d *model.PatientDocument) *[]model.MoodLog { return &d.MoodLogs },
		id:    func(v *model.MoodLog) *string { return &v.LogID },
		rev:   func(v *model.MoodLog) *int { return &v.Rev },
	}
	values = collection[model.Value]{
		name:  "values",
		items: func(d *model.PatientDocument) *[]model.Value { return &d.Values },
		id:    func(v *model.Value) *string { return &v.ValueID },
		rev:   func(v *model.Value) *int { return &v.Rev },
	}
)

// Push subscriptions carry no revision; they are only added and removed.
var pushSubscriptions = collection[model.PushSubscription]{
	name:  "pushSubscriptions",
	items: func(d *model.PatientDocument) *[]model.PushSubscription { return &d.PushSubscriptions },
	id:    func(v *model.PushSubscription) *string { return &v.SubscriptionID },
	rev:   func(*model.PushSubscription) *int { return new(int) },
}

var (
	profile = singleton[model.Profile]{
		name: "profile",
		get:  func(d *model.PatientDocument) *model.Profile { return &d.Profile },
		rev:  func(v *model.Profile) *int { return &v.Rev },
	}
	clinicalHistory = singleton[model.ClinicalHistory]{
		name: "clinicalHistory",
		get:  func(d *model.PatientDocument) *model.ClinicalHistory { return &d.ClinicalHistory },
		rev:  func(v *model.ClinicalHistory) *int { return &v.Rev },
	}
	valuesInventory = singleton[model.ValuesInventory]{
		name: "valuesInventory",
		get:  func(d *model.PatientDocument) *model.ValuesInventory { return &d.ValuesInventory },
		rev:  func(v *model.ValuesInventory) *int { return &v.Rev },
	}
	safetyPlan = singleton[model.SafetyPlan]{
		name: "safetyPlan",
		get:  func(d *model.PatientDocument) *model.SafetyPlan { return &d.SafetyPlan },
		rev:  func(v *model.SafetyPlan) *int { return &v.Rev },
	}
)
