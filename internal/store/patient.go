package store

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/platform/metrics"
	"github.com/uwscope/scope-web-sub000/internal/platform/observe"
	"github.com/uwscope/scope-web-sub000/internal/platform/query"
)

// Resource names one sub-resource of the patient aggregate.
type Resource string

const (
	ResourceProfile             Resource = "profile"
	ResourceClinicalHistory     Resource = "clinicalHistory"
	ResourceValuesInventory     Resource = "valuesInventory"
	ResourceSafetyPlan          Resource = "safetyPlan"
	ResourceSessions            Resource = "sessions"
	ResourceCaseReviews         Resource = "caseReviews"
	ResourceAssessments         Resource = "assessments"
	ResourceAssessmentLogs      Resource = "assessmentLogs"
	ResourceActivities          Resource = "activities"
	ResourceActivitySchedules   Resource = "activitySchedules"
	ResourceScheduledActivities Resource = "scheduledActivities"
	ResourceActivityLogs        Resource = "activityLogs"
	ResourceMoodLogs            Resource = "moodLogs"
	ResourceValues              Resource = "values"
	ResourcePushSubscriptions   Resource = "pushSubscriptions"
)

// LoadState is what a view needs to show a spinner or an error for one
// sub-resource.
type LoadState struct {
	State   query.State
	Pending bool
	Done    bool
	Err     error
}

type stateful interface {
	State() query.State
	Err() error
	Subscribe(fn func()) func()
}

// Options tune the derived views of the stores.
type Options struct {
	// RecentWindow is the look-back period of the Recent* views.
	RecentWindow time.Duration
	// Now is the clock used by the Recent* views.
	Now     func() time.Time
	Logger  zerolog.Logger
	Metrics *metrics.Collector
}

func (o Options) withDefaults() Options {
	if o.RecentWindow <= 0 {
		o.RecentWindow = 14 * 24 * time.Hour
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// PatientStore is the client-side aggregate of one patient. Each sub-resource
// has its own query so that views can track it independently; the initial load
// is still a single request.
type PatientStore struct {
	observe.Subject

	patientID string
	api       PatientAPI
	logger    zerolog.Logger
	metrics   *metrics.Collector
	now       func() time.Time
	window    time.Duration

	loadMu  sync.Mutex
	loadSeq uint64
	loaded  atomic.Bool

	profile             *query.Query[model.Profile]
	clinicalHistory     *query.Query[model.ClinicalHistory]
	valuesInventory     *query.Query[model.ValuesInventory]
	safetyPlan          *query.Query[model.SafetyPlan]
	sessions            *query.Query[[]model.Session]
	caseReviews         *query.Query[[]model.CaseReview]
	assessments         *query.Query[[]model.Assessment]
	assessmentLogs      *query.Query[[]model.AssessmentLog]
	activities          *query.Query[[]model.Activity]
	activitySchedules   *query.Query[[]model.ActivitySchedule]
	scheduledActivities *query.Query[[]model.ScheduledActivity]
	activityLogs        *query.Query[[]model.ActivityLog]
	moodLogs            *query.Query[[]model.MoodLog]
	values              *query.Query[[]model.Value]
	pushSubscriptions   *query.Query[[]model.PushSubscription]

	resources map[Resource]stateful
}

// NewPatientStore returns an unloaded store. The roster summary, when given,
// fills the profile so lists can render before the detail load finishes.
func NewPatientStore(summary model.PatientSummary, api PatientAPI, opts Options) *PatientStore {
	opts = opts.withDefaults()
	s := &PatientStore{
		patientID: summary.PatientID,
		api:       api,
		logger:    opts.Logger.With().Str("patient_id", summary.PatientID).Logger(),
		metrics:   opts.Metrics,
		now:       opts.Now,
		window:    opts.RecentWindow,

		profile:             query.New(summary.Profile),
		clinicalHistory:     query.New(model.ClinicalHistory{}),
		valuesInventory:     query.New(model.ValuesInventory{}),
		safetyPlan:          query.New(model.SafetyPlan{}),
		sessions:            query.New[[]model.Session](nil),
		caseReviews:         query.New[[]model.CaseReview](nil),
		assessments:         query.New[[]model.Assessment](nil),
		assessmentLogs:      query.New[[]model.AssessmentLog](nil),
		activities:          query.New[[]model.Activity](nil),
		activitySchedules:   query.New[[]model.ActivitySchedule](nil),
		scheduledActivities: query.New[[]model.ScheduledActivity](nil),
		activityLogs:        query.New[[]model.ActivityLog](nil),
		moodLogs:            query.New[[]model.MoodLog](nil),
		values:              query.New[[]model.Value](nil),
		pushSubscriptions:   query.New[[]model.PushSubscription](nil),
	}

	s.resources = map[Resource]stateful{
		ResourceProfile:             s.profile,
		ResourceClinicalHistory:     s.clinicalHistory,
		ResourceValuesInventory:     s.valuesInventory,
		ResourceSafetyPlan:          s.safetyPlan,
		ResourceSessions:            s.sessions,
		ResourceCaseReviews:         s.caseReviews,
		ResourceAssessments:         s.assessments,
		ResourceAssessmentLogs:      s.assessmentLogs,
		ResourceActivities:          s.activities,
		ResourceActivitySchedules:   s.activitySchedules,
		ResourceScheduledActivities: s.scheduledActivities,
		ResourceActivityLogs:        s.activityLogs,
		ResourceMoodLogs:            s.moodLogs,
		ResourceValues:              s.values,
		ResourcePushSubscriptions:   s.pushSubscriptions,
	}
	for _, q := range s.resources {
		q.Subscribe(s.Notify)
	}
	return s
}

func (s *PatientStore) PatientID() string { return s.patientID }

// Load fetches the whole patient document in one request and seeds every
// sub-resource from it. On failure every sub-resource is rejected with the
// same error. A load that finishes after a newer one started is discarded.
func (s *PatientStore) Load(ctx context.Context) error {
	s.loadMu.Lock()
	s.loadSeq++
	seq := s.loadSeq
	s.loadMu.Unlock()

	s.profile.Begin()
	s.clinicalHistory.Begin()
	s.valuesInventory.Begin()
	s.safetyPlan.Begin()
	s.sessions.Begin()
	s.caseReviews.Begin()
	s.assessments.Begin()
	s.assessmentLogs.Begin()
	s.activities.Begin()
	s.activitySchedules.Begin()
	s.scheduledActivities.Begin()
	s.activityLogs.Begin()
	s.moodLogs.Begin()
	s.values.Begin()
	s.pushSubscriptions.Begin()

	doc, err := s.api.GetPatient(ctx)

	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if seq != s.loadSeq {
		return err
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("patient load failed")
		s.failAll(err)
		return err
	}
	s.seed(doc)
	s.loaded.Store(true)
	s.reportIntegrity(&doc)
	return nil
}

func (s *PatientStore) seed(doc model.PatientDocument) {
	s.profile.Seed(doc.Profile)
	s.clinicalHistory.Seed(doc.ClinicalHistory)
	s.valuesInventory.Seed(doc.ValuesInventory)
	s.safetyPlan.Seed(doc.SafetyPlan)
	s.sessions.Seed(newestFirst(doc.Sessions))
	s.caseReviews.Seed(newestFirst(doc.CaseReviews))
	s.assessments.Seed(doc.Assessments)
	s.assessmentLogs.Seed(newestFirst(doc.AssessmentLogs))
	s.activities.Seed(newestFirst(doc.Activities))
	s.activitySchedules.Seed(newestFirst(doc.ActivitySchedules))
	s.scheduledActivities.Seed(newestFirst(doc.ScheduledActivities))
	s.activityLogs.Seed(newestFirst(doc.ActivityLogs))
	s.moodLogs.Seed(newestFirst(doc.MoodLogs))
	s.values.Seed(newestFirst(doc.Values))
	s.pushSubscriptions.Seed(doc.PushSubscriptions)
}

func (s *PatientStore) failAll(err error) {
	s.profile.Fail(err)
	s.clinicalHistory.Fail(err)
	s.valuesInventory.Fail(err)
	s.safetyPlan.Fail(err)
	s.sessions.Fail(err)
	s.caseReviews.Fail(err)
	s.assessments.Fail(err)
	s.assessmentLogs.Fail(err)
	s.activities.Fail(err)
	s.activitySchedules.Fail(err)
	s.scheduledActivities.Fail(err)
	s.activityLogs.Fail(err)
	s.moodLogs.Fail(err)
	s.values.Fail(err)
	s.pushSubscriptions.Fail(err)
}

func (s *PatientStore) reportIntegrity(doc *model.PatientDocument) {
	for _, issue := range model.CheckIntegrity(doc) {
		s.logger.Warn().
			Str("resource", issue.Resource).
			Str("id", issue.ID).
			Str("parent", issue.Parent).
			Str("parent_id", issue.ParentID).
			Msg("dangling parent reference")
		s.metrics.Assertion(metrics.AssertionDanglingParent, issue.Resource)
	}
}

// LoadState reports the display state of one sub-resource.
func (s *PatientStore) LoadState(r Resource) LoadState {
	q, ok := s.resources[r]
	if !ok {
		return LoadState{}
	}
	st := q.State()
	return LoadState{
		State:   st,
		Pending: st == query.Pending,
		Done:    st == query.Fulfilled || st == query.Rejected,
		Err:     q.Err(),
	}
}

// Loading reports whether any sub-resource is pending.
func (s *PatientStore) Loading() bool {
	for _, q := range s.resources {
		if q.State() == query.Pending {
			return true
		}
	}
	return false
}

// Loaded reports whether a detail load has completed successfully.
func (s *PatientStore) Loaded() bool {
	return s.loaded.Load()
}

func (s *PatientStore) Profile() model.Profile                 { return s.profile.Value() }
func (s *PatientStore) ClinicalHistory() model.ClinicalHistory { return s.clinicalHistory.Value() }
func (s *PatientStore) ValuesInventory() model.ValuesInventory { return s.valuesInventory.Value() }
func (s *PatientStore) SafetyPlan() model.SafetyPlan           { return s.safetyPlan.Value() }

func (s *PatientStore) Sessions() []model.Session       { return slices.Clone(s.sessions.Value()) }
func (s *PatientStore) CaseReviews() []model.CaseReview { return slices.Clone(s.caseReviews.Value()) }
func (s *PatientStore) Assessments() []model.Assessment { return slices.Clone(s.assessments.Value()) }
func (s *PatientStore) AssessmentLogs() []model.AssessmentLog {
	return slices.Clone(s.assessmentLogs.Value())
}
func (s *PatientStore) ActivitySchedules() []model.ActivitySchedule {
	return slices.Clone(s.activitySchedules.Value())
}
func (s *PatientStore) ScheduledActivities() []model.ScheduledActivity {
	return slices.Clone(s.scheduledActivities.Value())
}
func (s *PatientStore) ActivityLogs() []model.ActivityLog { return slices.Clone(s.activityLogs.Value()) }
func (s *PatientStore) MoodLogs() []model.MoodLog         { return slices.Clone(s.moodLogs.Value()) }
func (s *PatientStore) Values() []model.Value             { return slices.Clone(s.values.Value()) }
func (s *PatientStore) PushSubscriptions() []model.PushSubscription {
	return slices.Clone(s.pushSubscriptions.Value())
}

// Activities returns the activities that have not been deleted.
func (s *PatientStore) Activities() []model.Activity {
	all := s.activities.Value()
	out := make([]model.Activity, 0, len(all))
	for _, a := range all {
		if !a.IsDeleted {
			out = append(out, a)
		}
	}
	return out
}

// ActivityByID looks an activity up by id, deleted ones included, so that
// historical logs can still show what was planned.
func (s *PatientStore) ActivityByID(id string) (model.Activity, bool) {
	return findByID(s.activities.Value(), id)
}

func (s *PatientStore) ValueByID(id string) (model.Value, bool) {
	return findByID(s.values.Value(), id)
}

func (s *PatientStore) AssessmentByID(id string) (model.Assessment, bool) {
	return findByID(s.assessments.Value(), id)
}

func (s *PatientStore) ScheduledActivityByID(id string) (model.ScheduledActivity, bool) {
	return findByID(s.scheduledActivities.Value(), id)
}

// SessionsAndReviews merges sessions and case reviews newest first.
func (s *PatientStore) SessionsAndReviews() []model.SessionOrCaseReview {
	return model.MergeEncounters(s.Sessions(), s.CaseReviews())
}

// AssessmentLogsFor returns the logs of one instrument, newest first.
func (s *PatientStore) AssessmentLogsFor(assessmentID string) []model.AssessmentLog {
	var out []model.AssessmentLog
	for _, l := range s.assessmentLogs.Value() {
		if l.AssessmentID == assessmentID {
			out = append(out, l)
		}
	}
	return out
}

// LatestScore returns the newest total score of an instrument.
func (s *PatientStore) LatestScore(assessmentID string) (int, bool) {
	for _, l := range s.assessmentLogs.Value() {
		if l.AssessmentID != assessmentID {
			continue
		}
		if total, ok := l.Total(); ok {
			return total, true
		}
	}
	return 0, false
}
